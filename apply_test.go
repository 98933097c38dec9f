package fdisk_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/diskfs/go-fdisk/label"
	"github.com/diskfs/go-fdisk/partition"
)

const rootUUID = "5CA3360B-5DE6-4FCF-B4CE-419CEE433B51"

func tableOf(parts ...*partition.Partition) *partition.Table {
	t := partition.NewTable()
	for _, p := range parts {
		_ = t.Add(p)
		p.Unref()
	}
	return t
}

type summary struct {
	Partno      int
	Start, Size uint64
	Type, Name  string
}

func summarize(t *testing.T, parts []*partition.Partition) []summary {
	t.Helper()
	out := make([]summary, 0, len(parts))
	for _, p := range parts {
		n, _ := p.Partno()
		start, _ := p.Start()
		out = append(out, summary{Partno: n, Start: start, Size: p.Size(), Type: p.Type(), Name: p.Name()})
	}
	return out
}

func TestApplyTableEqualsSetPartition(t *testing.T) {
	mk := func() *partition.Partition {
		p := newPart(40, 30, 0)
		p.SetName("root")
		p.SetUUID(rootUUID)
		return p
	}
	direct := newContext(t, label.GPT, tinyDisk)
	p := mk()
	require.NoError(t, direct.SetPartition(0, p))

	applied := newContext(t, label.GPT, tinyDisk)
	table := tableOf(mk())
	require.NoError(t, applied.ApplyTable(table))
	table.Unref()

	a, b := partitions(t, direct), partitions(t, applied)
	require.Len(t, b, len(a))
	for i := range a {
		require.True(t, a[i].Equal(b[i]), "apply_table %v, set_partition %v", b[i], a[i])
	}
}

func TestApplyTableMerge(t *testing.T) {
	cxt := newContext(t, label.GPT, tinyDisk)
	require.NoError(t, cxt.SetPartition(0, newPart(34, 10, -1)))
	require.NoError(t, cxt.SetPartition(1, newPart(44, 10, -1)))

	t.Run("union keeps untouched entries", func(t *testing.T) {
		named := partition.New()
		_ = named.SetPartno(1)
		named.SetName("var")
		table := tableOf(named, newPart(60, 10, -1))
		defer table.Unref()
		require.NoError(t, cxt.ApplyTable(table))

		want := []summary{
			{0, 34, 10, label.DefaultGPTType, ""},
			{1, 44, 10, label.DefaultGPTType, "var"},
			{2, 60, 10, label.DefaultGPTType, ""},
		}
		if diff := cmp.Diff(want, summarize(t, partitions(t, cxt))); diff != "" {
			t.Errorf("partitions mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("entries swap places", func(t *testing.T) {
		table := tableOf(newPart(44, 10, 0), newPart(34, 10, 1))
		defer table.Unref()
		require.NoError(t, cxt.ApplyTable(table))
		got := summarize(t, partitions(t, cxt))
		require.EqualValues(t, 44, got[0].Start)
		require.EqualValues(t, 34, got[1].Start)
	})
	t.Run("full replace", func(t *testing.T) {
		require.NoError(t, cxt.DeleteAllPartitions())
		table := tableOf(newPart(34, 60, -1))
		defer table.Unref()
		require.NoError(t, cxt.ApplyTable(table))
		want := []summary{{0, 34, 60, label.DefaultGPTType, ""}}
		if diff := cmp.Diff(want, summarize(t, partitions(t, cxt))); diff != "" {
			t.Errorf("partitions mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestApplyTableRejects(t *testing.T) {
	tests := []struct {
		name   string
		format label.Format
		table  func() *partition.Table
		err    error
	}{
		{"past last usable", label.GPT, func() *partition.Table {
			return tableOf(newPart(34, 10, -1), newPart(90, 10, -1))
		}, partition.ErrOutOfRange},
		{"before first usable", label.GPT, func() *partition.Table {
			return tableOf(newPart(0, 10, -1))
		}, partition.ErrOutOfRange},
		{"overlap in table", label.GPT, func() *partition.Table {
			return tableOf(newPart(60, 10, -1), newPart(70, 5, -1), newPart(34, 27, -1))
		}, partition.ErrOverlap},
		{"too many", label.MBR, func() *partition.Table {
			return tableOf(newPart(1, 10, -1), newPart(11, 10, -1), newPart(21, 10, -1), newPart(31, 10, -1), newPart(41, 10, -1))
		}, partition.ErrTooManyPartitions},
		{"duplicate partno", label.GPT, func() *partition.Table {
			return tableOf(newPart(34, 10, 2), newPart(50, 10, 2))
		}, partition.ErrInvalidArgument},
		{"start in use", label.GPT, func() *partition.Table {
			return tableOf(newPart(80, 0, -1))
		}, partition.ErrOverlap},
		{"start outside window", label.GPT, func() *partition.Table {
			return tableOf(newPart(100, 0, -1))
		}, partition.ErrOutOfRange},
		{"no room", label.GPT, func() *partition.Table {
			p := partition.New()
			_ = p.SetSize(40)
			return tableOf(p)
		}, partition.ErrOutOfRange},
		// late failures: the first entry is committed to the working copy before these fail
		{"bad type", label.GPT, func() *partition.Table {
			bad := newPart(60, 5, 3)
			bad.SetType("not-a-guid")
			return tableOf(newPart(50, 5, 2), bad)
		}, partition.ErrInvalidArgument},
		{"overlap with label", label.GPT, func() *partition.Table {
			return tableOf(newPart(50, 5, 2), newPart(75, 10, -1))
		}, partition.ErrOverlap},
		{"label full", label.MBR, func() *partition.Table {
			return tableOf(newPart(30, 5, -1), newPart(40, 5, -1), newPart(50, 5, -1))
		}, partition.ErrTooManyPartitions},
		{"logical partition", label.MBR, func() *partition.Table {
			return tableOf(newPart(30, 5, 2), newPart(40, 5, 5))
		}, partition.ErrNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cxt := newContext(t, tt.format, tinyDisk)
			first := cxt.FirstLBA()
			require.NoError(t, cxt.SetPartition(0, newPart(first, 10, -1)))
			// the last 20 usable sectors are taken
			require.NoError(t, cxt.SetPartition(1, newPart(cxt.LastLBA()-19, 20, -1)))
			before := summarize(t, partitions(t, cxt))
			id := cxt.Label().ID()

			table := tt.table()
			defer table.Unref()
			require.ErrorIs(t, cxt.ApplyTable(table), tt.err)

			if diff := cmp.Diff(before, summarize(t, partitions(t, cxt))); diff != "" {
				t.Errorf("label changed by failed apply (-before +after):\n%s", diff)
			}
			require.Equal(t, id, cxt.Label().ID())
		})
	}
}

func TestApplyTableReferences(t *testing.T) {
	cxt := newContext(t, label.GPT, tinyDisk)
	p := newPart(34, 10, -1)
	table := partition.NewTable()
	require.NoError(t, table.Add(p))
	require.NoError(t, cxt.ApplyTable(table))

	// the label keeps its own copy
	require.Equal(t, 2, p.RefCount())
	start, _ := p.Start()
	require.EqualValues(t, 34, start)
	_, ok := p.Partno()
	require.False(t, ok, "apply changed the caller's partition")

	require.True(t, table.Unref())
	require.Equal(t, 1, p.RefCount())
	require.True(t, p.Unref())

	got, err := cxt.GetPartition(0)
	require.NoError(t, err)
	require.EqualValues(t, 10, got.Size())
	require.Equal(t, 1, got.RefCount())
	require.True(t, got.Unref())
	// the label's copy is untouched by releasing the snapshot
	again, err := cxt.GetPartition(0)
	require.NoError(t, err)
	require.EqualValues(t, 10, again.Size())
}
