// Package partition provides the format-independent building blocks for editing
// partition tables in memory: a single Partition entry and a detached Table of entries.
//
// Neither type knows anything about a real disk. Values set on a Partition are only
// checked for sanity; whether they fit a device is decided when they are committed to
// a label, see github.com/diskfs/go-fdisk/label.
//
// A Partition may be held by several containers at once. Each holder owns one reference;
// the entry is released when the last reference is dropped:
//
//	p := partition.New()
//	_ = p.SetStart(2048)
//	_ = p.SetSize(20480)
//	t := partition.NewTable()
//	_ = t.Add(p) // t now holds a second reference
//	p.Unref()    // t is the sole owner
package partition

import (
	"fmt"
	"math"
	"sync/atomic"
)

// AttrLegacyBootable attribute bit for a legacy BIOS bootable partition. On MBR labels
// it is stored as the active (0x80) flag.
const AttrLegacyBootable uint64 = 1 << 2

type field uint8

const (
	fieldStart field = 1 << iota
	fieldPartno
	fieldType
	fieldName
	fieldUUID
	fieldAttrs
)

// Partition a single partition entry. The zero value is not usable, create one with New().
type Partition struct {
	refs   atomic.Int32
	start  uint64 // first LBA
	size   uint64 // number of sectors, 0 when not yet resolved
	partno int
	typ    string
	name   string
	uuid   string
	attrs  uint64
	set    field
}

// New returns an empty partition holding a single reference.
func New() *Partition {
	p := &Partition{}
	p.refs.Store(1)
	return p
}

// Ref takes another reference on the partition.
func (p *Partition) Ref() {
	if p.refs.Add(1) <= 1 {
		panic("partition: Ref of released partition")
	}
}

// Unref drops a reference and reports whether it was the last one.
func (p *Partition) Unref() bool {
	n := p.refs.Add(-1)
	if n < 0 {
		panic("partition: negative reference count")
	}
	return n == 0
}

// RefCount current number of holders, 0 once released
func (p *Partition) RefCount() int {
	return int(p.refs.Load())
}

// Released whether the last reference has been dropped
func (p *Partition) Released() bool {
	return p.refs.Load() <= 0
}

func overflows(start, size uint64) bool {
	return size != 0 && start > math.MaxUint64-(size-1)
}

// SetStart sets the first LBA of the partition.
func (p *Partition) SetStart(lba uint64) error {
	if overflows(lba, p.size) {
		return fmt.Errorf("start %d with size %d overflows the LBA space: %w", lba, p.size, ErrInvalidArgument)
	}
	p.start = lba
	p.set |= fieldStart
	return nil
}

// UnsetStart marks the start as unknown so it is placed when committed.
func (p *Partition) UnsetStart() {
	p.start = 0
	p.set &^= fieldStart
}

// SetSize sets the size in sectors. 0 means it is computed when committed.
func (p *Partition) SetSize(sectors uint64) error {
	if overflows(p.start, sectors) {
		return fmt.Errorf("size %d at start %d overflows the LBA space: %w", sectors, p.start, ErrInvalidArgument)
	}
	p.size = sectors
	return nil
}

// SetPartno sets the slot index in the label, starting at 0.
func (p *Partition) SetPartno(n int) error {
	if n < 0 {
		return fmt.Errorf("partition number %d: %w", n, ErrInvalidArgument)
	}
	p.partno = n
	p.set |= fieldPartno
	return nil
}

// UnsetPartno lets the label allocate a slot on commit.
func (p *Partition) UnsetPartno() {
	p.partno = 0
	p.set &^= fieldPartno
}

// SetType sets the format specific type: a GUID for gpt, a hex byte such as "83" for mbr.
func (p *Partition) SetType(t string) {
	p.typ = t
	p.set |= fieldType
}

func (p *Partition) SetName(name string) {
	p.name = name
	p.set |= fieldName
}

// SetUUID sets the unique partition GUID, only meaningful for gpt.
func (p *Partition) SetUUID(id string) {
	p.uuid = id
	p.set |= fieldUUID
}

func (p *Partition) SetAttrs(attrs uint64) {
	p.attrs = attrs
	p.set |= fieldAttrs
}

// SetBootable sets or clears AttrLegacyBootable.
func (p *Partition) SetBootable(bootable bool) {
	attrs := p.attrs
	if bootable {
		attrs |= AttrLegacyBootable
	} else {
		attrs &^= AttrLegacyBootable
	}
	p.SetAttrs(attrs)
}

// Start first LBA and whether it was set
func (p *Partition) Start() (uint64, bool) {
	return p.start, p.set&fieldStart != 0
}

// Size in sectors, 0 when unresolved
func (p *Partition) Size() uint64 {
	return p.size
}

// End last LBA of the partition, inclusive. Only meaningful when Size() > 0.
func (p *Partition) End() uint64 {
	if p.size == 0 {
		return p.start
	}
	return p.start + p.size - 1
}

// Partno slot index and whether it was set
func (p *Partition) Partno() (int, bool) {
	return p.partno, p.set&fieldPartno != 0
}

func (p *Partition) Type() string {
	return p.typ
}

func (p *Partition) Name() string {
	return p.name
}

func (p *Partition) UUID() string {
	return p.uuid
}

func (p *Partition) Attrs() uint64 {
	return p.attrs
}

func (p *Partition) Bootable() bool {
	return p.attrs&AttrLegacyBootable != 0
}

// HasType, HasName, HasUUID and HasAttrs report whether the field was explicitly set.
func (p *Partition) HasType() bool  { return p.set&fieldType != 0 }
func (p *Partition) HasName() bool  { return p.set&fieldName != 0 }
func (p *Partition) HasUUID() bool  { return p.set&fieldUUID != 0 }
func (p *Partition) HasAttrs() bool { return p.set&fieldAttrs != 0 }

// Clone returns an independent copy holding a single reference.
func (p *Partition) Clone() *Partition {
	c := New()
	c.start = p.start
	c.size = p.size
	c.partno = p.partno
	c.typ = p.typ
	c.name = p.name
	c.uuid = p.uuid
	c.attrs = p.attrs
	c.set = p.set
	return c
}

// Merge copies every field that is set on from into p. A zero size on from
// keeps the size of p. p is unchanged when the merged start and size would
// overflow the LBA space.
func (p *Partition) Merge(from *Partition) error {
	start, size := p.start, p.size
	if from.set&fieldStart != 0 {
		start = from.start
	}
	if from.size != 0 {
		size = from.size
	}
	if overflows(start, size) {
		return fmt.Errorf("merged start %d with size %d overflows the LBA space: %w", start, size, ErrInvalidArgument)
	}
	if from.set&fieldStart != 0 {
		p.start = from.start
		p.set |= fieldStart
	}
	if from.size != 0 {
		p.size = from.size
	}
	if from.set&fieldPartno != 0 {
		p.partno = from.partno
		p.set |= fieldPartno
	}
	if from.set&fieldType != 0 {
		p.SetType(from.typ)
	}
	if from.set&fieldName != 0 {
		p.SetName(from.name)
	}
	if from.set&fieldUUID != 0 {
		p.SetUUID(from.uuid)
	}
	if from.set&fieldAttrs != 0 {
		p.SetAttrs(from.attrs)
	}
	return nil
}

// Overlaps whether the sector ranges of two sized partitions intersect
func (p *Partition) Overlaps(o *Partition) bool {
	if p.size == 0 || o.size == 0 {
		return false
	}
	return p.start <= o.End() && o.start <= p.End()
}

// Equal compares the values of two partitions, ignoring reference counts
func (p *Partition) Equal(o *Partition) bool {
	return p != nil && o != nil &&
		p.start == o.start &&
		p.size == o.size &&
		p.partno == o.partno &&
		p.typ == o.typ &&
		p.name == o.name &&
		p.uuid == o.uuid &&
		p.attrs == o.attrs &&
		p.set == o.set
}

func (p *Partition) String() string {
	partno := "-"
	if n, ok := p.Partno(); ok {
		partno = fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("partno=%s start=%d size=%d type=%s name=%q", partno, p.start, p.size, p.typ, p.name)
}
