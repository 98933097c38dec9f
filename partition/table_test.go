package partition_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/diskfs/go-fdisk/partition"
)

func newPart(start, size uint64, partno int) *partition.Partition {
	p := partition.New()
	_ = p.SetStart(start)
	_ = p.SetSize(size)
	if partno >= 0 {
		_ = p.SetPartno(partno)
	}
	return p
}

func starts(t *partition.Table) []uint64 {
	var out []uint64
	it := t.Iter()
	for it.Next() {
		s, _ := it.Partition().Start()
		out = append(out, s)
	}
	return out
}

func TestTableAdd(t *testing.T) {
	table := partition.NewTable()
	if !table.IsEmpty() {
		t.Error("new table is not empty")
	}
	p := newPart(34, 10, 0)
	if err := table.Add(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Nents() != 1 {
		t.Errorf("nents %d instead of 1", table.Nents())
	}
	if p.RefCount() != 2 {
		t.Errorf("refcount %d after add instead of 2", p.RefCount())
	}
	if err := table.Add(p); !errors.Is(err, partition.ErrInvalidArgument) {
		t.Errorf("adding same instance twice returned %v", err)
	}
	if err := table.Add(nil); !errors.Is(err, partition.ErrInvalidArgument) {
		t.Errorf("adding nil returned %v", err)
	}
	// duplicate partnos are fine at this layer
	if err := table.Add(newPart(100, 10, 0)); err != nil {
		t.Errorf("unexpected error adding duplicate partno: %v", err)
	}
	if table.Nents() != 2 {
		t.Errorf("nents %d instead of 2", table.Nents())
	}
}

func TestTableRemove(t *testing.T) {
	table := partition.NewTable()
	p := newPart(34, 10, 0)
	_ = table.Add(p)
	p.Unref()

	t.Run("not present", func(t *testing.T) {
		q := newPart(50, 10, 1)
		if err := table.Remove(q); !errors.Is(err, partition.ErrNotFound) {
			t.Errorf("error %v instead of ErrNotFound", err)
		}
		if q.RefCount() != 1 {
			t.Errorf("refcount of absent partition changed to %d", q.RefCount())
		}
	})
	t.Run("present", func(t *testing.T) {
		p.Ref()
		if err := table.Remove(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !table.IsEmpty() {
			t.Error("table not empty after removing only entry")
		}
		if p.Released() {
			t.Error("partition released while caller still holds a reference")
		}
		if !p.Unref() {
			t.Error("caller reference was not the last one")
		}
	})
}

func TestTableSharedOwnership(t *testing.T) {
	t1 := partition.NewTable()
	t2 := partition.NewTable()
	p := partition.New()
	_ = t1.Add(p)
	_ = t2.Add(p)
	p.Unref()
	if p.RefCount() != 2 {
		t.Fatalf("refcount %d instead of 2", p.RefCount())
	}
	if err := t1.Remove(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Released() {
		t.Fatal("partition released while second table still holds it")
	}
	if t2.Partition(0) != p {
		t.Error("second table lost its entry")
	}
	if !t2.Unref() {
		t.Error("dropping the only table reference did not destroy it")
	}
	if !p.Released() {
		t.Errorf("partition still has %d references after all holders released it", p.RefCount())
	}
}

func TestTableReset(t *testing.T) {
	table := partition.NewTable()
	table.Reset()
	if !table.IsEmpty() {
		t.Error("reset of empty table left entries")
	}
	a := newPart(34, 10, 0)
	b := newPart(44, 10, 1)
	_ = table.Add(a)
	_ = table.Add(b)
	table.Reset()
	if !table.IsEmpty() {
		t.Error("table not empty after reset")
	}
	if a.RefCount() != 1 || b.RefCount() != 1 {
		t.Errorf("refcounts %d/%d after reset instead of 1/1", a.RefCount(), b.RefCount())
	}
	table.Reset()
	if !table.IsEmpty() {
		t.Error("second reset left entries")
	}
	// still usable
	if err := table.Add(a); err != nil {
		t.Errorf("add after reset failed: %v", err)
	}
}

func TestTableLookup(t *testing.T) {
	table := partition.NewTable()
	a := newPart(34, 10, 2)
	b := newPart(44, 10, 5)
	c := newPart(54, 10, 5)
	for _, p := range []*partition.Partition{a, b, c} {
		_ = table.Add(p)
	}
	if table.Partition(1) != b {
		t.Error("Partition(1) did not return second entry")
	}
	if table.Partition(3) != nil || table.Partition(-1) != nil {
		t.Error("out of range Partition() did not return nil")
	}
	if table.PartitionByPartno(5) != b {
		t.Error("PartitionByPartno(5) did not return first match")
	}
	if table.PartitionByPartno(7) != nil {
		t.Error("PartitionByPartno(7) did not return nil")
	}
	noPartno := newPart(70, 1, -1)
	_ = table.Add(noPartno)
	if table.PartitionByPartno(0) != nil {
		t.Error("entry without partno matched partno 0")
	}
}

func TestTableOrder(t *testing.T) {
	table := partition.NewTable()
	if table.IsWrongOrder() {
		t.Error("empty table in wrong order")
	}
	_ = table.Add(newPart(100, 10, 0))
	_ = table.Add(newPart(100, 5, 1))
	_ = table.Add(newPart(200, 10, 2))
	if table.IsWrongOrder() {
		t.Error("non-decreasing table reported wrong order")
	}
	_ = table.Add(newPart(34, 10, 3))
	if !table.IsWrongOrder() {
		t.Error("decreasing table not reported wrong order")
	}
	table.Sort()
	if table.IsWrongOrder() {
		t.Error("sorted table still in wrong order")
	}
	if diff := cmp.Diff([]uint64{34, 100, 100, 200}, starts(table)); diff != "" {
		t.Errorf("sorted starts mismatch (-want +got):\n%s", diff)
	}
	if n, _ := table.Partition(1).Partno(); n != 0 {
		t.Errorf("stable sort moved equal starts, partno %d first", n)
	}
}

func TestTableIter(t *testing.T) {
	table := partition.NewTable()
	it := table.Iter()
	if it.Next() {
		t.Error("iterator over empty table returned an entry")
	}
	_ = table.Add(newPart(34, 1, 0))
	_ = table.Add(newPart(35, 1, 1))
	it = table.Iter()
	if it.Partition() != nil {
		t.Error("Partition() before Next() not nil")
	}
	count := 0
	for it.Next() {
		count++
	}
	if count != 2 {
		t.Errorf("iterated %d entries instead of 2", count)
	}
	if it.Partition() != nil {
		t.Error("Partition() after the end not nil")
	}
	it.Reset()
	if diff := cmp.Diff([]uint64{34, 35}, starts(table)); diff != "" {
		t.Errorf("starts mismatch (-want +got):\n%s", diff)
	}
	if !it.Next() {
		t.Error("restarted iterator has no entries")
	}
}
