package label

import (
	"fmt"
	"strings"

	uuid "github.com/google/uuid"

	"github.com/diskfs/go-fdisk/partition"
	"github.com/diskfs/go-fdisk/partition/gpt"
)

// DefaultGPTType type given to gpt partitions committed without one
const DefaultGPTType = string(gpt.LinuxFilesystem)

func createGPT(d Disk) (*Label, error) {
	t := gpt.NewTable(d.Size, d.LogicalSectorSize, d.PhysicalSectorSize)
	if t.LastUsableLBA() < t.FirstUsableLBA() {
		return nil, fmt.Errorf("device of %d sectors too small for a gpt: %w", d.sectors(), partition.ErrOutOfRange)
	}
	l := newLabel(GPT, d, t.FirstUsableLBA(), t.LastUsableLBA(), t.MaxPartitions(), t.GUID)
	l.gpt = t
	return l, nil
}

func fromGPT(t *gpt.Table, d Disk) (*Label, error) {
	l := newLabel(GPT, d, t.FirstUsableLBA(), t.LastUsableLBA(), t.MaxPartitions(), t.GUID)
	for _, e := range t.Partitions {
		if e.Index < 1 || e.Index > len(l.slots) {
			return nil, fmt.Errorf("gpt entry index %d outside of 1-%d: %w", e.Index, len(l.slots), partition.ErrInvalidArgument)
		}
		p := partition.New()
		_ = p.SetPartno(e.Index - 1)
		if err := p.SetStart(e.Start); err != nil {
			return nil, err
		}
		if err := p.SetSize(e.Sectors()); err != nil {
			return nil, err
		}
		p.SetType(string(e.Type))
		p.SetName(e.Name)
		p.SetUUID(e.GUID)
		p.SetAttrs(e.Attributes)
		l.slots[e.Index-1] = p
	}
	t.Partitions = nil
	l.gpt = t
	return l, nil
}

// normalizeGPT validates the gpt specific fields and fills in defaults
func normalizeGPT(p *partition.Partition) error {
	if !p.HasType() || p.Type() == "" {
		p.SetType(DefaultGPTType)
	}
	typ, err := gpt.ParseType(p.Type())
	if err != nil {
		return fmt.Errorf("invalid gpt partition type %q: %v: %w", p.Type(), err, partition.ErrInvalidArgument)
	}
	if typ == gpt.Unused {
		return fmt.Errorf("gpt partition type cannot be the unused type: %w", partition.ErrInvalidArgument)
	}
	p.SetType(string(typ))
	if err := gpt.ValidateName(p.Name()); err != nil {
		return fmt.Errorf("%v: %w", err, partition.ErrInvalidArgument)
	}
	// every field is stored on disk, mark them set as a probed entry would be
	p.SetName(p.Name())
	p.SetAttrs(p.Attrs())
	if p.UUID() == "" {
		p.SetUUID(strings.ToUpper(uuid.NewString()))
		return nil
	}
	id, err := uuid.Parse(p.UUID())
	if err != nil {
		return fmt.Errorf("invalid partition GUID %q: %w", p.UUID(), partition.ErrInvalidArgument)
	}
	p.SetUUID(strings.ToUpper(id.String()))
	return nil
}

func (l *Label) toGPT() *gpt.Table {
	t := *l.gpt
	t.ProtectiveMBR = true
	t.Partitions = make([]*gpt.Partition, 0, l.Nents())
	for i, p := range l.slots {
		if p == nil {
			continue
		}
		start, _ := p.Start()
		t.Partitions = append(t.Partitions, &gpt.Partition{
			Index:      i + 1,
			Start:      start,
			End:        p.End(),
			Type:       gpt.Type(p.Type()),
			Name:       p.Name(),
			GUID:       p.UUID(),
			Attributes: p.Attrs(),
		})
	}
	return &t
}
