package label

import (
	"sort"

	"github.com/diskfs/go-fdisk/partition"
)

// Range an inclusive run of sectors
type Range struct {
	Start, End uint64
}

func (r Range) Sectors() uint64 {
	return r.End - r.Start + 1
}

// FreeSpaces the unused runs in the usable window of the label
func (l *Label) FreeSpaces() []Range {
	var used []*partition.Partition
	for _, p := range l.slots {
		if p != nil {
			used = append(used, p)
		}
	}
	return Gaps(l.geo.FirstUsableLBA, l.geo.LastUsableLBA, used)
}

// Gaps the runs of [first, last] not covered by any of used. Entries without a size
// cover nothing.
func Gaps(first, last uint64, used []*partition.Partition) []Range {
	if last < first {
		return nil
	}
	sized := make([]*partition.Partition, 0, len(used))
	for _, p := range used {
		if p.Size() > 0 {
			sized = append(sized, p)
		}
	}
	sort.SliceStable(sized, func(i, j int) bool {
		a, _ := sized[i].Start()
		b, _ := sized[j].Start()
		return a < b
	})
	var gaps []Range
	next := first
	for _, p := range sized {
		start, _ := p.Start()
		if start > last {
			break
		}
		if start > next {
			gaps = append(gaps, Range{Start: next, End: start - 1})
		}
		if end := p.End(); end >= next {
			if end >= last {
				return gaps
			}
			next = end + 1
		}
	}
	return append(gaps, Range{Start: next, End: last})
}
