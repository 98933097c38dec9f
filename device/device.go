// Package device opens disk images and block devices for partitioning. It determines
// the size and the logical and physical sector sizes, and gives access to the device
// through util.File.
package device

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/diskfs/go-fdisk/partition"
)

// when we use a disk image we cannot get the logical sector size from the kernel,
// so we use the default sector size of 512
const defaultSectorSize = 512

// Type kind of device behind a Device
type Type int

const (
	Unknown Type = iota
	File
	BlockDevice
)

func (t Type) String() string {
	switch t {
	case File:
		return "file"
	case BlockDevice:
		return "block device"
	default:
		return "unknown"
	}
}

// ErrReadOnly returned when writing to a device opened read-only
var ErrReadOnly = errors.New("device opened read-only")

// Device an open image file or block device
type Device struct {
	Path               string
	Type               Type
	Size               int64
	LogicalSectorSize  int
	PhysicalSectorSize int
	ReadOnly           bool
	f                  *os.File
}

// DetermineType whether f is a regular file or a block device
func DetermineType(f *os.File) (Type, error) {
	info, err := f.Stat()
	if err != nil {
		return Unknown, fmt.Errorf("could not stat file: %v", err)
	}
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		return File, nil
	case mode&os.ModeDevice != 0:
		return BlockDevice, nil
	default:
		return Unknown, fmt.Errorf("device %s is neither a block device nor a regular file", info.Name())
	}
}

func initDevice(f *os.File, readOnly bool) (*Device, error) {
	d := &Device{
		Path:               f.Name(),
		ReadOnly:           readOnly,
		LogicalSectorSize:  defaultSectorSize,
		PhysicalSectorSize: defaultSectorSize,
		f:                  f,
	}
	var err error
	d.Type, err = DetermineType(f)
	if err != nil {
		return nil, err
	}
	switch d.Type {
	case File:
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("could not get info for %s: %v", f.Name(), err)
		}
		d.Size = info.Size()
	case BlockDevice:
		// the kernel reports the device size as the end offset
		d.Size, err = f.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("could not get size of device %s: %v", f.Name(), err)
		}
		d.LogicalSectorSize, d.PhysicalSectorSize, err = getSectorSizes(f)
		if err != nil {
			return nil, fmt.Errorf("unable to get sector sizes for device %s: %v", f.Name(), err)
		}
	}
	if d.Size <= 0 {
		return nil, fmt.Errorf("could not get size for device %s", f.Name())
	}
	return d, nil
}

// Open a Device from a path to a block device, e.g. /dev/sda, or to an image file.
// The device must exist. Writable devices are opened exclusively.
func Open(path string, readOnly bool) (*Device, error) {
	if path == "" {
		return nil, fmt.Errorf("must pass device name: %w", partition.ErrInvalidArgument)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("provided device %s does not exist: %w", path, partition.ErrNotFound)
	}
	mode := os.O_RDONLY
	if !readOnly {
		mode = os.O_RDWR | os.O_EXCL
	}
	f, err := os.OpenFile(path, mode, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open device %s with mode %v: %v: %w", path, mode, err, partition.ErrIO)
	}
	d, err := initDevice(f, readOnly)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%v: %w", err, partition.ErrIO)
	}
	return d, nil
}

// Create a new image file of size bytes. The file must not exist.
func Create(path string, size int64) (*Device, error) {
	if path == "" {
		return nil, fmt.Errorf("must pass device name: %w", partition.ErrInvalidArgument)
	}
	if size <= 0 {
		return nil, fmt.Errorf("must pass valid device size to create: %w", partition.ErrInvalidArgument)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_EXCL|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not create device %s: %v: %w", path, err, partition.ErrIO)
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not expand device %s to size %d: %v: %w", path, size, err, partition.ErrIO)
	}
	d, err := initDevice(f, false)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%v: %w", err, partition.ErrIO)
	}
	return d, nil
}

func (d *Device) ReadAt(b []byte, off int64) (int, error) {
	return d.f.ReadAt(b, off)
}

func (d *Device) WriteAt(b []byte, off int64) (int, error) {
	if d.ReadOnly {
		return 0, ErrReadOnly
	}
	return d.f.WriteAt(b, off)
}

func (d *Device) Seek(offset int64, whence int) (int64, error) {
	return d.f.Seek(offset, whence)
}

// Sync flushes written data to stable storage.
func (d *Device) Sync() error {
	if d.ReadOnly {
		return nil
	}
	return d.f.Sync()
}

func (d *Device) Close() error {
	return d.f.Close()
}
