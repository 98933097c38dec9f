package label

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/diskfs/go-fdisk/partition"
	"github.com/diskfs/go-fdisk/partition/gpt"
	"github.com/diskfs/go-fdisk/partition/mbr"
)

// Verify checks the whole label and reports every problem found, nil when the label
// is consistent. Labels read from disk are not checked on Probe, so this is how
// a damaged table is detected.
func (l *Label) Verify() error {
	var result *multierror.Error
	var prev *partition.Partition
	for _, p := range l.sorted() {
		partno, _ := p.Partno()
		if err := l.CheckRange(p); err != nil {
			result = multierror.Append(result, fmt.Errorf("partition %d: %w", partno, err))
		}
		if prev != nil && prev.Overlaps(p) {
			result = multierror.Append(result, partition.NewOverlapError(prev, p))
		}
		if err := l.verifyType(p); err != nil {
			result = multierror.Append(result, fmt.Errorf("partition %d: %w", partno, err))
		}
		if prev == nil || p.End() > prev.End() {
			prev = p
		}
	}
	return result.ErrorOrNil()
}

func (l *Label) verifyType(p *partition.Partition) error {
	switch l.format {
	case GPT:
		if _, err := gpt.ParseType(p.Type()); err != nil {
			return fmt.Errorf("invalid type %q: %w", p.Type(), partition.ErrInvalidArgument)
		}
		if err := gpt.ValidateName(p.Name()); err != nil {
			return fmt.Errorf("%v: %w", err, partition.ErrInvalidArgument)
		}
	case MBR:
		if _, err := mbr.ParseType(p.Type()); err != nil {
			return fmt.Errorf("%v: %w", err, partition.ErrInvalidArgument)
		}
	}
	return nil
}

// sorted the used slots ordered by start, no references taken
func (l *Label) sorted() []*partition.Partition {
	t := partition.NewTable()
	defer t.Unref()
	for _, p := range l.slots {
		if p != nil {
			_ = t.Add(p)
		}
	}
	t.Sort()
	out := make([]*partition.Partition, 0, t.Nents())
	for it := t.Iter(); it.Next(); {
		out = append(out, it.Partition())
	}
	return out
}
