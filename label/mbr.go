package label

import (
	"fmt"
	"math"

	uuid "github.com/google/uuid"

	"github.com/diskfs/go-fdisk/partition"
	"github.com/diskfs/go-fdisk/partition/mbr"
)

// DefaultMBRType type given to mbr partitions committed without one
var DefaultMBRType = mbr.Linux.String()

func mbrID(sig uint32) string {
	return fmt.Sprintf("0x%08x", sig)
}

func mbrLastLBA(sectors uint64) uint64 {
	last := sectors - 1
	if last > math.MaxUint32 {
		last = math.MaxUint32
	}
	return last
}

func createMBR(d Disk) (*Label, error) {
	if d.sectors() < 2 {
		return nil, fmt.Errorf("device of %d sectors too small for an mbr: %w", d.sectors(), partition.ErrOutOfRange)
	}
	t := &mbr.Table{
		LogicalSectorSize:  d.LogicalSectorSize,
		PhysicalSectorSize: d.PhysicalSectorSize,
		DiskSignature:      uuid.New().ID(),
	}
	l := newLabel(MBR, d, 1, mbrLastLBA(d.sectors()), mbr.PartitionEntriesCount, mbrID(t.DiskSignature))
	l.mbr = t
	return l, nil
}

func fromMBR(t *mbr.Table, d Disk) *Label {
	l := newLabel(MBR, d, 1, mbrLastLBA(d.sectors()), mbr.PartitionEntriesCount, mbrID(t.DiskSignature))
	// extended containers are kept as read so they survive a rewrite
	for i, e := range t.Partitions {
		if e == nil || e.Type == mbr.Empty || i >= len(l.slots) {
			continue
		}
		p := partition.New()
		_ = p.SetPartno(i)
		_ = p.SetStart(uint64(e.Start))
		_ = p.SetSize(uint64(e.Size))
		p.SetType(e.Type.String())
		p.SetBootable(e.Bootable)
		l.slots[i] = p
	}
	t.Partitions = nil
	l.mbr = t
	return l
}

// normalizeMBR validates the mbr specific fields and fills in defaults
func normalizeMBR(p *partition.Partition) error {
	if !p.HasType() || p.Type() == "" {
		p.SetType(DefaultMBRType)
	}
	typ, err := mbr.ParseType(p.Type())
	if err != nil {
		return fmt.Errorf("%v: %w", err, partition.ErrInvalidArgument)
	}
	switch {
	case typ == mbr.Empty:
		return fmt.Errorf("mbr partition type cannot be empty: %w", partition.ErrInvalidArgument)
	case typ.IsExtended():
		return fmt.Errorf("extended partition type %s: %w", typ, partition.ErrNotSupported)
	case typ == mbr.GPTProtective:
		return fmt.Errorf("protective type %s on an mbr label: %w", typ, partition.ErrInvalidArgument)
	}
	p.SetType(typ.String())
	if p.Attrs()&^partition.AttrLegacyBootable != 0 {
		return fmt.Errorf("mbr partitions only carry the boot flag, got attributes %#x: %w", p.Attrs(), partition.ErrNotSupported)
	}
	p.SetAttrs(p.Attrs())
	return nil
}

func (l *Label) toMBR() *mbr.Table {
	t := *l.mbr
	t.Partitions = make([]*mbr.Partition, mbr.PartitionEntriesCount)
	for i := range t.Partitions {
		t.Partitions[i] = &mbr.Partition{Type: mbr.Empty}
		p := l.slots[i]
		if p == nil {
			continue
		}
		start, _ := p.Start()
		// slots are range checked, the last usable LBA fits 32 bits
		typ, _ := mbr.ParseType(p.Type())
		t.Partitions[i] = &mbr.Partition{
			Bootable: p.Bootable(),
			Type:     typ,
			Start:    uint32(start),
			Size:     uint32(p.Size()),
		}
	}
	return &t
}
