// Package fdisk edits the partition table of a disk image or block device in memory
// and writes it back on request.
//
// A Context binds one device and at most one active disk label. Partitions are changed
// either one at a time, or by building a detached partition.Table of the wanted
// partitions and merging it into the label with ApplyTable. Every change is checked
// against the label geometry and the existing partitions; a failed change leaves the
// label as it was. The device is only written by WriteDisklabel.
//
// Some examples:
//
// 1. Create a GPT on a 10MB image with a single partition filling the disk.
//
//	import fdisk "github.com/diskfs/go-fdisk"
//
//	cxt := fdisk.New()
//	err := cxt.AssignDevice("/tmp/disk.img", false)
//	err = cxt.CreateDisklabel(label.GPT)
//	p := partition.New()
//	_, err = cxt.AddPartition(p)
//	err = cxt.WriteDisklabel()
//	err = cxt.DeassignDevice(false)
//
// 2. Replace the partitions of an existing MBR disk.
//
//	cxt := fdisk.New()
//	err := cxt.AssignDevice("/dev/sdb", false)
//	t := partition.NewTable()
//	boot := partition.New()
//	_ = boot.SetStart(2048)
//	_ = boot.SetSize(204800)
//	boot.SetType("ef")
//	boot.SetBootable(true)
//	_ = t.Add(boot)
//	root := partition.New()
//	root.SetType("83")
//	_ = t.Add(root)
//	err = cxt.DeleteAllPartitions()
//	err = cxt.ApplyTable(t)
//	err = cxt.WriteDisklabel()
package fdisk

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/diskfs/go-fdisk/device"
	"github.com/diskfs/go-fdisk/label"
	"github.com/diskfs/go-fdisk/partition"
	"github.com/diskfs/go-fdisk/util"
)

// Context a partitioning session on one device
type Context struct {
	log        *log.Entry
	sectorSize int
	grain      int64

	dev      *device.Device
	file     util.File
	name     string
	size     int64
	lss, pss int
	readOnly bool

	label *label.Label
}

// Option configures a Context
type Option func(*Context)

// WithLogger logs through l instead of the standard logger
func WithLogger(l *log.Entry) Option {
	return func(c *Context) {
		c.log = l
	}
}

// WithSectorSize overrides the logical sector size of images, default 512.
// Block devices always use the size reported by the kernel.
func WithSectorSize(n int) Option {
	return func(c *Context) {
		c.sectorSize = n
	}
}

// WithGrain sets the partition alignment in bytes, default 1 MiB.
func WithGrain(bytes int64) Option {
	return func(c *Context) {
		c.grain = bytes
	}
}

// New returns a Context with no device assigned.
func New(opts ...Option) *Context {
	c := &Context{}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = log.NewEntry(log.StandardLogger())
	}
	return c
}

// ErrNoDevice returned by operations that need an assigned device
var ErrNoDevice = fmt.Errorf("no device assigned: %w", partition.ErrInvalidArgument)

// ErrNoLabel returned by operations that need an active label
var ErrNoLabel = fmt.Errorf("no disk label: %w", partition.ErrNotFound)

// AssignDevice opens the device or image at path and reads its label, if any.
// A previously assigned device is released without syncing.
func (c *Context) AssignDevice(path string, readOnly bool) error {
	d, err := device.Open(path, readOnly)
	if err != nil {
		return err
	}
	lss, pss := d.LogicalSectorSize, d.PhysicalSectorSize
	if d.Type == device.File && c.sectorSize > 0 {
		lss = c.sectorSize
		if pss < lss {
			pss = lss
		}
	}
	if err := c.assign(d, d, path, d.Size, lss, pss, readOnly); err != nil {
		_ = d.Close()
		return err
	}
	return nil
}

// AssignFile uses f as the device. size is the device size in bytes. The Context does
// not close f.
func (c *Context) AssignFile(f util.File, size int64, readOnly bool) error {
	if f == nil || size <= 0 {
		return fmt.Errorf("invalid file of size %d: %w", size, partition.ErrInvalidArgument)
	}
	lss := c.sectorSize
	if lss <= 0 {
		lss = 512
	}
	return c.assign(nil, f, "", size, lss, lss, readOnly)
}

func (c *Context) assign(d *device.Device, f util.File, name string, size int64, lss, pss int, readOnly bool) error {
	if c.file != nil {
		if err := c.DeassignDevice(true); err != nil {
			return err
		}
	}
	c.dev, c.file, c.name = d, f, name
	c.size, c.lss, c.pss = size, lss, pss
	c.readOnly = readOnly
	c.log = c.log.WithField("device", name)
	c.log.WithFields(log.Fields{
		"size":               size,
		"logicalSectorSize":  lss,
		"physicalSectorSize": pss,
		"readOnly":           readOnly,
	}).Debug("assigned device")

	err := c.ReadDisklabel()
	if err != nil && !errors.Is(err, partition.ErrNotFound) {
		c.release()
		return err
	}
	return nil
}

// DeassignDevice drops the label and closes the device. Unless nosync is set,
// written data is flushed and the kernel re-reads the partition table of a block
// device.
func (c *Context) DeassignDevice(nosync bool) error {
	if c.file == nil {
		return ErrNoDevice
	}
	var err error
	if c.dev != nil {
		if !nosync && !c.readOnly {
			if serr := c.dev.Sync(); serr != nil {
				err = fmt.Errorf("unable to sync %s: %v: %w", c.name, serr, partition.ErrIO)
			} else if rerr := c.dev.ReReadPartitionTable(); rerr != nil {
				c.log.Warnf("%v", rerr)
			}
		}
		if cerr := c.dev.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("unable to close %s: %v: %w", c.name, cerr, partition.ErrIO)
		}
	}
	c.log.Debug("deassigned device")
	c.release()
	return err
}

func (c *Context) release() {
	if c.label != nil {
		c.label.Release()
		c.label = nil
	}
	c.dev, c.file, c.name = nil, nil, ""
	c.size, c.lss, c.pss = 0, 0, 0
}

// IsReadOnly whether the device was assigned read-only
func (c *Context) IsReadOnly() bool {
	return c.readOnly
}

func (c *Context) disk() label.Disk {
	return label.Disk{
		Size:               c.size,
		LogicalSectorSize:  c.lss,
		PhysicalSectorSize: c.pss,
		Grain:              c.grain,
	}
}

// CreateDisklabel replaces the in-memory label with a new, empty one of the given
// format. The device is not touched.
func (c *Context) CreateDisklabel(format label.Format) error {
	if c.file == nil {
		return ErrNoDevice
	}
	l, err := label.Create(format, c.disk())
	if err != nil {
		return err
	}
	c.setLabel(l)
	c.log.WithField("id", l.ID()).Debugf("created %s label", l.Name())
	return nil
}

// ReadDisklabel probes the device and makes the label found the active one.
func (c *Context) ReadDisklabel() error {
	if c.file == nil {
		return ErrNoDevice
	}
	l, err := label.Probe(c.file, c.disk())
	if err != nil {
		c.log.Debugf("no label found: %v", err)
		return err
	}
	c.setLabel(l)
	c.log.WithFields(log.Fields{
		"id":         l.ID(),
		"partitions": l.Nents(),
	}).Debugf("found %s label", l.Name())
	return nil
}

func (c *Context) setLabel(l *label.Label) {
	if c.label != nil {
		c.label.Release()
	}
	c.label = l
}

// Label the active label, nil when there is none. It must not be changed directly.
func (c *Context) Label() *label.Label {
	return c.label
}

func (c *Context) HasLabel() bool {
	return c.label != nil
}

// WriteDisklabel writes the active label to the device.
func (c *Context) WriteDisklabel() error {
	if c.label == nil {
		return ErrNoLabel
	}
	if c.readOnly {
		return fmt.Errorf("cannot write label: %w", device.ErrReadOnly)
	}
	if err := c.label.Write(c.file); err != nil {
		return err
	}
	c.log.Debugf("wrote %s label with %d partitions", c.label.Name(), c.label.Nents())
	if c.log.Logger.IsLevelEnabled(log.TraceLevel) {
		b := make([]byte, c.lss)
		if _, err := c.file.ReadAt(b, 0); err == nil {
			c.log.Tracef("sector 0:\n%s", util.DumpSector(b))
		}
	}
	return nil
}

// VerifyDisklabel reports every inconsistency of the active label.
func (c *Context) VerifyDisklabel() error {
	if c.label == nil {
		return ErrNoLabel
	}
	return c.label.Verify()
}

// FirstLBA first usable sector, aligned to the grain
func (c *Context) FirstLBA() uint64 {
	if c.label == nil {
		return 0
	}
	geo := c.label.Geometry()
	first := util.AlignUp(geo.FirstUsableLBA, geo.Grain)
	if first > geo.LastUsableLBA {
		return geo.FirstUsableLBA
	}
	return first
}

// LastLBA last usable sector
func (c *Context) LastLBA() uint64 {
	if c.label == nil {
		return 0
	}
	return c.label.Geometry().LastUsableLBA
}

// Grain alignment in sectors
func (c *Context) Grain() uint64 {
	if c.label == nil {
		return 1
	}
	return c.label.Geometry().Grain
}
