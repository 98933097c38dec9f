package fdisk

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/diskfs/go-fdisk/label"
	"github.com/diskfs/go-fdisk/partition"
	"github.com/diskfs/go-fdisk/util"
)

// ApplyTable merges the partitions of t into the active label.
//
// Entries with a partno replace the fields set on them in that slot of the label,
// entries without one are added in the lowest free slot. Partitions of the label that
// are not in t are kept. A missing start is placed at the first aligned free sector,
// a missing size fills the free space the partition starts in.
//
// Either every entry is applied or the label is left unchanged. t itself is not
// modified.
func (c *Context) ApplyTable(t *partition.Table) error {
	_, err := c.applyTable(t)
	return err
}

// applyTable returns the partno used for every entry of t, in table order
func (c *Context) applyTable(t *partition.Table) ([]int, error) {
	if c.label == nil {
		return nil, ErrNoLabel
	}
	if t == nil {
		return nil, fmt.Errorf("cannot apply nil table: %w", partition.ErrInvalidArgument)
	}
	entries, err := c.resolve(t)
	defer func() {
		for _, e := range entries {
			e.Unref()
		}
	}()
	if err != nil {
		return nil, err
	}
	if err := c.checkEntries(entries); err != nil {
		return nil, err
	}

	// merge into a copy, swapped in only when every entry is committed
	next := c.label.Clone()
	partnos, err := c.commit(next, entries)
	if err != nil {
		next.Release()
		return nil, err
	}
	c.label.Release()
	c.label = next
	c.log.Debugf("applied table of %d partitions, label has %d", len(entries), next.Nents())
	return partnos, nil
}

// checkEntries geometry, overlap and capacity checks on the resolved entries alone
func (c *Context) checkEntries(entries []*partition.Partition) error {
	for i, e := range entries {
		if err := c.label.CheckRange(e); err != nil {
			return fmt.Errorf("table entry %d: %w", i, err)
		}
	}

	sorted := partition.NewTable()
	defer sorted.Unref()
	for _, e := range entries {
		_ = sorted.Add(e)
	}
	sorted.Sort()
	for i := 1; i < sorted.Nents(); i++ {
		a, b := sorted.Partition(i-1), sorted.Partition(i)
		if a.Overlaps(b) {
			return partition.NewOverlapError(a, b)
		}
	}

	if maxParts := c.label.Geometry().MaxPartitions; len(entries) > maxParts {
		return partition.NewMaxPartitionsExceededError(len(entries), maxParts)
	}
	return nil
}

func (c *Context) commit(l *label.Label, entries []*partition.Partition) ([]int, error) {
	partnos := make([]int, len(entries))
	// empty every slot that is replaced first, so entries may move into each other's space
	for _, e := range entries {
		if n, ok := e.Partno(); ok {
			_ = l.DeletePartition(n)
		}
	}
	for pass := 0; pass < 2; pass++ {
		for i, e := range entries {
			n, ok := e.Partno()
			if ok != (pass == 0) {
				continue
			}
			if !ok {
				var err error
				if n, err = l.NextPartno(); err != nil {
					return nil, err
				}
			}
			if err := l.CommitPartition(n, e); err != nil {
				return nil, fmt.Errorf("partition %d: %w", n, err)
			}
			start, _ := e.Start()
			c.log.WithFields(log.Fields{
				"partno": n,
				"start":  start,
				"size":   e.Size(),
				"type":   e.Type(),
			}).Trace("committed partition")
			partnos[i] = n
		}
	}
	return partnos, nil
}

// resolve returns a resolved copy of every entry of t. Entries naming an existing
// partition are merged over it; unset start and size are placed in free space.
func (c *Context) resolve(t *partition.Table) ([]*partition.Partition, error) {
	entries := make([]*partition.Partition, 0, t.Nents())
	replaced := map[int]bool{}
	for it := t.Iter(); it.Next(); {
		p := it.Partition()
		n, ok := p.Partno()
		if !ok {
			entries = append(entries, p.Clone())
			continue
		}
		if replaced[n] {
			return entries, fmt.Errorf("partition %d appears twice in table: %w", n, partition.ErrInvalidArgument)
		}
		replaced[n] = true
		cur, err := c.label.Partition(n)
		if err != nil {
			entries = append(entries, p.Clone())
			continue
		}
		entries = append(entries, cur)
		if err := cur.Merge(p); err != nil {
			return entries, fmt.Errorf("partition %d: %w", n, err)
		}
	}

	current := c.label.Partitions()
	defer current.Unref()
	var placed []*partition.Partition
	for it := current.Iter(); it.Next(); {
		if n, _ := it.Partition().Partno(); !replaced[n] {
			placed = append(placed, it.Partition())
		}
	}
	for _, e := range entries {
		if _, ok := e.Start(); ok {
			placed = append(placed, e)
		}
	}

	geo := c.label.Geometry()
	for i, e := range entries {
		start, hasStart := e.Start()
		if hasStart && e.Size() > 0 {
			continue
		}
		gaps := label.Gaps(geo.FirstUsableLBA, geo.LastUsableLBA, placed)
		if hasStart {
			g, ok := gapAt(gaps, start)
			if !ok {
				if start < geo.FirstUsableLBA || start > geo.LastUsableLBA {
					return entries, fmt.Errorf("table entry %d: %w", i, partition.NewOutOfRangeError(start, start, geo.FirstUsableLBA, geo.LastUsableLBA))
				}
				return entries, fmt.Errorf("table entry %d: sector %d is in use: %w", i, start, partition.ErrOverlap)
			}
			if err := e.SetSize(g.End - start + 1); err != nil {
				return entries, err
			}
			continue
		}
		s, g, ok := c.place(gaps, e.Size())
		if !ok {
			return entries, fmt.Errorf("table entry %d: no free space for %d sectors: %w", i, e.Size(), partition.ErrOutOfRange)
		}
		if err := e.SetStart(s); err != nil {
			return entries, err
		}
		if e.Size() == 0 {
			if err := e.SetSize(g.End - s + 1); err != nil {
				return entries, err
			}
		}
		placed = append(placed, e)
	}
	return entries, nil
}

// place the first aligned start in gaps that fits size sectors, any size when 0
func (c *Context) place(gaps []label.Range, size uint64) (uint64, label.Range, bool) {
	first, grain := c.FirstLBA(), c.Grain()
	for _, g := range gaps {
		s := g.Start
		if s < first {
			s = first
		}
		s = util.AlignUp(s, grain)
		if s > g.End {
			continue
		}
		if size > 0 && g.End-s+1 < size {
			continue
		}
		return s, g, true
	}
	return 0, label.Range{}, false
}

func gapAt(gaps []label.Range, lba uint64) (label.Range, bool) {
	for _, g := range gaps {
		if g.Start <= lba && lba <= g.End {
			return g, true
		}
	}
	return label.Range{}, false
}
