package label

import (
	"fmt"
	"strings"

	"github.com/diskfs/go-fdisk/partition"
	"github.com/diskfs/go-fdisk/partition/gpt"
	"github.com/diskfs/go-fdisk/partition/mbr"
)

// Format the kind of partition table held by a Label
type Format int

const (
	Unknown Format = iota
	GPT
	MBR
)

func (f Format) String() string {
	switch f {
	case GPT:
		return "gpt"
	case MBR:
		return "mbr"
	default:
		return "unknown"
	}
}

// ParseFormat accepts "gpt", "mbr" and its alias "dos"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "gpt":
		return GPT, nil
	case "mbr", "dos":
		return MBR, nil
	default:
		return Unknown, fmt.Errorf("unknown label format %q: %w", s, partition.ErrNotSupported)
	}
}

const (
	defaultSectorSize = 512
	defaultGrain      = 1024 * 1024
)

// Disk describes the device a label is laid out for
type Disk struct {
	Size               int64 // in bytes
	LogicalSectorSize  int
	PhysicalSectorSize int
	Grain              int64 // alignment in bytes, 0 selects the default of 1 MiB
}

func (d Disk) normalize() Disk {
	if d.LogicalSectorSize <= 0 {
		d.LogicalSectorSize = defaultSectorSize
	}
	if d.PhysicalSectorSize < d.LogicalSectorSize {
		d.PhysicalSectorSize = d.LogicalSectorSize
	}
	return d
}

func (d Disk) sectors() uint64 {
	if d.Size <= 0 {
		return 0
	}
	return uint64(d.Size) / uint64(d.LogicalSectorSize)
}

// grainSectors alignment in sectors. Devices smaller than four grains are aligned
// to the physical sector only.
func (d Disk) grainSectors() uint64 {
	grain := d.Grain
	if grain <= 0 {
		grain = defaultGrain
	}
	if grain < int64(d.PhysicalSectorSize) {
		grain = int64(d.PhysicalSectorSize)
	}
	if d.Size <= 4*grain {
		grain = int64(d.PhysicalSectorSize)
	}
	n := uint64(grain) / uint64(d.LogicalSectorSize)
	if n == 0 {
		n = 1
	}
	return n
}

// Geometry the usable window of a label and the device it describes
type Geometry struct {
	TotalSectors       uint64
	SectorSize         int
	PhysicalSectorSize int
	FirstUsableLBA     uint64
	LastUsableLBA      uint64
	Grain              uint64 // alignment in sectors
	MaxPartitions      int
}

// Label a disk label. All slots hold partitions owned by the label; callers only
// ever see clones.
type Label struct {
	format Format
	geo    Geometry
	id     string
	slots  []*partition.Partition

	// on-disk templates that keep header details across a write
	gpt *gpt.Table
	mbr *mbr.Table

	// set on a freshly created label, stale signatures of other formats are cleared on write
	wipe bool
}

// Create returns an empty label of the given format laid out for d.
func Create(format Format, d Disk) (*Label, error) {
	d = d.normalize()
	if d.sectors() == 0 {
		return nil, fmt.Errorf("device of %d bytes has no sectors: %w", d.Size, partition.ErrInvalidArgument)
	}
	var (
		l   *Label
		err error
	)
	switch format {
	case GPT:
		l, err = createGPT(d)
	case MBR:
		l, err = createMBR(d)
	default:
		return nil, fmt.Errorf("cannot create %s label: %w", format, partition.ErrNotSupported)
	}
	if err != nil {
		return nil, err
	}
	l.wipe = true
	return l, nil
}

func newLabel(format Format, d Disk, first, last uint64, maxParts int, id string) *Label {
	return &Label{
		format: format,
		id:     id,
		geo: Geometry{
			TotalSectors:       d.sectors(),
			SectorSize:         d.LogicalSectorSize,
			PhysicalSectorSize: d.PhysicalSectorSize,
			FirstUsableLBA:     first,
			LastUsableLBA:      last,
			Grain:              d.grainSectors(),
			MaxPartitions:      maxParts,
		},
		slots: make([]*partition.Partition, maxParts),
	}
}

// Name short name of the format, "gpt" or "mbr"
func (l *Label) Name() string {
	return l.format.String()
}

func (l *Label) Format() Format {
	return l.format
}

// ID disk identifier: the disk GUID for gpt, the hex disk signature for mbr
func (l *Label) ID() string {
	return l.id
}

func (l *Label) Geometry() Geometry {
	return l.geo
}

// Nents number of used slots
func (l *Label) Nents() int {
	n := 0
	for _, p := range l.slots {
		if p != nil {
			n++
		}
	}
	return n
}

// Partition returns a clone of the partition in slot partno. The caller owns the clone.
func (l *Label) Partition(partno int) (*partition.Partition, error) {
	if partno < 0 || partno >= len(l.slots) || l.slots[partno] == nil {
		return nil, partition.NewInvalidPartitionError(partno)
	}
	return l.slots[partno].Clone(), nil
}

// Partitions returns a snapshot of all used slots, in partno order. Changing the
// snapshot does not change the label.
func (l *Label) Partitions() *partition.Table {
	t := partition.NewTable()
	for _, p := range l.slots {
		if p == nil {
			continue
		}
		c := p.Clone()
		_ = t.Add(c)
		c.Unref()
	}
	return t
}

// NextPartno lowest free slot
func (l *Label) NextPartno() (int, error) {
	for i, p := range l.slots {
		if p == nil {
			return i, nil
		}
	}
	return -1, partition.NewMaxPartitionsExceededError(len(l.slots)+1, len(l.slots))
}

// CommitPartition validates p against the geometry and the other slots and stores a
// copy of it in slot partno, replacing any previous occupant. Unset type fields get
// the format default. p is not retained.
func (l *Label) CommitPartition(partno int, p *partition.Partition) error {
	if p == nil {
		return fmt.Errorf("cannot commit nil partition: %w", partition.ErrInvalidArgument)
	}
	if err := l.checkPartno(partno); err != nil {
		return err
	}
	c := p.Clone()
	_ = c.SetPartno(partno)
	if err := l.check(c); err != nil {
		c.Unref()
		return err
	}
	if err := l.normalizeEntry(c); err != nil {
		c.Unref()
		return err
	}
	if old := l.slots[partno]; old != nil {
		old.Unref()
	}
	l.slots[partno] = c
	return nil
}

// DeletePartition empties slot partno.
func (l *Label) DeletePartition(partno int) error {
	if partno < 0 || partno >= len(l.slots) || l.slots[partno] == nil {
		return partition.NewInvalidPartitionError(partno)
	}
	l.slots[partno].Unref()
	l.slots[partno] = nil
	return nil
}

// DeleteAll empties every slot.
func (l *Label) DeleteAll() {
	for i, p := range l.slots {
		if p != nil {
			p.Unref()
			l.slots[i] = nil
		}
	}
}

// Clone returns a deep copy. Changes to the copy do not affect l.
func (l *Label) Clone() *Label {
	c := *l
	c.slots = make([]*partition.Partition, len(l.slots))
	for i, p := range l.slots {
		if p != nil {
			c.slots[i] = p.Clone()
		}
	}
	if l.gpt != nil {
		t := *l.gpt
		t.Partitions = nil
		c.gpt = &t
	}
	if l.mbr != nil {
		t := *l.mbr
		t.Partitions = nil
		c.mbr = &t
	}
	return &c
}

// Release drops every held partition. The label must not be used afterwards.
func (l *Label) Release() {
	l.DeleteAll()
	l.slots = nil
}

func (l *Label) checkPartno(partno int) error {
	if partno < 0 {
		return fmt.Errorf("partition number %d: %w", partno, partition.ErrInvalidArgument)
	}
	if partno >= len(l.slots) {
		if l.format == MBR {
			return fmt.Errorf("partition number %d is a logical partition: %w", partno, partition.ErrNotSupported)
		}
		return partition.NewMaxPartitionsExceededError(partno+1, len(l.slots))
	}
	return nil
}

// check the geometry and overlap rules for an entry about to be stored in its slot
func (l *Label) check(p *partition.Partition) error {
	start, ok := p.Start()
	if !ok || p.Size() == 0 {
		return fmt.Errorf("partition %s has no resolved start and size: %w", p, partition.ErrInvalidArgument)
	}
	if err := l.CheckRange(p); err != nil {
		return err
	}
	partno, _ := p.Partno()
	for i, o := range l.slots {
		if o == nil || i == partno {
			continue
		}
		if p.Overlaps(o) {
			return fmt.Errorf("partition %d at %d: %w", partno, start, partition.NewOverlapError(p, o))
		}
	}
	return nil
}

// CheckRange whether p lies in the usable window
func (l *Label) CheckRange(p *partition.Partition) error {
	start, _ := p.Start()
	end := p.End()
	if p.Size() == 0 || end < start ||
		start < l.geo.FirstUsableLBA || start > l.geo.LastUsableLBA || end > l.geo.LastUsableLBA {
		return partition.NewOutOfRangeError(start, end, l.geo.FirstUsableLBA, l.geo.LastUsableLBA)
	}
	return nil
}

func (l *Label) normalizeEntry(p *partition.Partition) error {
	switch l.format {
	case GPT:
		return normalizeGPT(p)
	case MBR:
		return normalizeMBR(p)
	}
	return fmt.Errorf("label format %s: %w", l.format, partition.ErrNotSupported)
}
