//go:build !linux && !darwin

package device

import (
	"errors"
	"os"
)

func getSectorSizes(_ *os.File) (logical, physical int, err error) {
	return 0, 0, errors.New("block devices not supported on this platform")
}

func (d *Device) ReReadPartitionTable() error {
	if d.Type == BlockDevice {
		return errors.New("re-reading the partition table is not supported on this platform")
	}
	return nil
}
