package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	blksszGet = 0x1268
	blkbszGet = 0x80081270
	blkrrpart = 0x125f
)

// getSectorSizes logical and physical sector sizes of a block device
func getSectorSizes(f *os.File) (logical, physical int, err error) {
	fd := int(f.Fd())
	logical, err = unix.IoctlGetInt(fd, blksszGet)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get device logical sector size: %v", err)
	}
	physical, err = unix.IoctlGetInt(fd, blkbszGet)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get device physical sector size: %v", err)
	}
	return logical, physical, nil
}

// ReReadPartitionTable forces the kernel to re-read the partition table of a block
// device through BLKRRPART. It does nothing for image files.
func (d *Device) ReReadPartitionTable() error {
	if d.Type != BlockDevice {
		return nil
	}
	if _, err := unix.IoctlGetInt(int(d.f.Fd()), blkrrpart); err != nil {
		return fmt.Errorf("unable to re-read the partition table, kernel still uses old partition table: %v", err)
	}
	return nil
}
