package label

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/diskfs/go-fdisk/partition"
)

func slot(partno int, start, size uint64, typ string) *partition.Partition {
	p := partition.New()
	_ = p.SetPartno(partno)
	_ = p.SetStart(start)
	_ = p.SetSize(size)
	p.SetType(typ)
	return p
}

func TestVerify(t *testing.T) {
	l, err := Create(MBR, Disk{Size: 65528})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Verify(); err != nil {
		t.Errorf("empty label failed verify: %v", err)
	}
	// bypass the commit checks, as a damaged table read from disk would
	l.slots[0] = slot(0, 1, 50, "83")
	l.slots[1] = slot(1, 20, 10, "83")
	l.slots[2] = slot(2, 100, 100, "83")
	l.slots[3] = slot(3, 60, 10, "zz")

	err = l.Verify()
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("error %v is not a multierror", err)
	}
	if len(merr.Errors) != 3 {
		t.Errorf("%d problems reported instead of 3: %v", len(merr.Errors), err)
	}
	for _, kind := range []error{partition.ErrOverlap, partition.ErrOutOfRange, partition.ErrInvalidArgument} {
		if !errors.Is(err, kind) {
			t.Errorf("%v does not report %v", err, kind)
		}
	}
}
