package partition

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// Table an ordered, detached collection of partitions. It has no link to any label or
// device; entries keep their insertion order until Sort() is called.
//
// A Table holds one reference on every entry. Entries are released when removed, on
// Reset(), or when the last reference to the Table itself is dropped with Unref().
type Table struct {
	refs    atomic.Int32
	entries []*Partition
}

// NewTable returns an empty table holding a single reference.
func NewTable() *Table {
	t := &Table{}
	t.refs.Store(1)
	return t
}

// Ref takes another reference on the table.
func (t *Table) Ref() {
	if t.refs.Add(1) <= 1 {
		panic("partition: Ref of released table")
	}
}

// Unref drops a reference on the table. When it was the last one, every entry is
// released and true is returned.
func (t *Table) Unref() bool {
	n := t.refs.Add(-1)
	if n < 0 {
		panic("partition: negative table reference count")
	}
	if n == 0 {
		t.Reset()
		return true
	}
	return false
}

// Add appends p and takes a reference on it. Call p.Unref() afterwards if the table
// should be the only owner.
func (t *Table) Add(p *Partition) error {
	if p == nil {
		return fmt.Errorf("cannot add nil partition: %w", ErrInvalidArgument)
	}
	if t.indexOf(p) >= 0 {
		return fmt.Errorf("partition already in table: %w", ErrInvalidArgument)
	}
	p.Ref()
	t.entries = append(t.entries, p)
	return nil
}

// Remove removes p, matched by identity, and drops the table's reference on it.
// Call p.Ref() beforehand to keep using p afterwards.
func (t *Table) Remove(p *Partition) error {
	i := t.indexOf(p)
	if i < 0 {
		return fmt.Errorf("partition not in table: %w", ErrNotFound)
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	p.Unref()
	return nil
}

// Reset removes all entries. The table stays usable.
func (t *Table) Reset() {
	for _, p := range t.entries {
		p.Unref()
	}
	t.entries = nil
}

// Nents number of entries
func (t *Table) Nents() int {
	return len(t.entries)
}

// IsEmpty whether the table has no entries
func (t *Table) IsEmpty() bool {
	return len(t.entries) == 0
}

// Partition returns the n-th entry in current order, nil if out of range.
// No reference is taken.
func (t *Table) Partition(n int) *Partition {
	if n < 0 || n >= len(t.entries) {
		return nil
	}
	return t.entries[n]
}

// PartitionByPartno returns the first entry with the given partno, nil if none.
func (t *Table) PartitionByPartno(partno int) *Partition {
	for _, p := range t.entries {
		if n, ok := p.Partno(); ok && n == partno {
			return p
		}
	}
	return nil
}

// IsWrongOrder reports whether the entries are not in ascending start order.
func (t *Table) IsWrongOrder() bool {
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i].start < t.entries[i-1].start {
			return true
		}
	}
	return false
}

// Sort orders the entries by start sector. Entries with the same start keep their
// relative order.
func (t *Table) Sort() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].start < t.entries[j].start
	})
}

// Iter returns an iterator over the current entries. Do not mutate the table while
// iterating.
func (t *Table) Iter() *Iter {
	return &Iter{table: t, pos: -1, end: len(t.entries)}
}

func (t *Table) indexOf(p *Partition) int {
	for i, e := range t.entries {
		if e == p {
			return i
		}
	}
	return -1
}

// Iter walks the entries of a Table in order. It is restartable with Reset().
//
//	it := t.Iter()
//	for it.Next() {
//		p := it.Partition()
//	}
type Iter struct {
	table *Table
	pos   int
	end   int
}

// Next advances to the next entry and reports whether there is one.
func (it *Iter) Next() bool {
	if it.pos+1 >= it.end || it.pos+1 >= len(it.table.entries) {
		it.pos = it.end
		return false
	}
	it.pos++
	return true
}

// Partition the current entry, nil before the first Next() or after the last.
func (it *Iter) Partition() *Partition {
	if it.pos < 0 || it.pos >= it.end {
		return nil
	}
	return it.table.Partition(it.pos)
}

// Reset rewinds the iterator, taking the current number of entries as the new bound.
func (it *Iter) Reset() {
	it.pos = -1
	it.end = len(it.table.entries)
}
