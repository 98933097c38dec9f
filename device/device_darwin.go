package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// these constants should be part of "golang.org/x/sys/unix", but aren't, yet
const (
	dkiocGetBlockSize         = 0x40046418
	dkiocGetPhysicalBlockSize = 0x4004644D
)

func getSectorSizes(f *os.File) (logical, physical int, err error) {
	fd := int(f.Fd())
	logical, err = unix.IoctlGetInt(fd, dkiocGetBlockSize)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get device logical sector size: %v", err)
	}
	physical, err = unix.IoctlGetInt(fd, dkiocGetPhysicalBlockSize)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get device physical sector size: %v", err)
	}
	return logical, physical, nil
}

// ReReadPartitionTable is a no-op, the kernel notices changes on close.
func (d *Device) ReReadPartitionTable() error {
	return nil
}
