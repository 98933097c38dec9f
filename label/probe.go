package label

import (
	"errors"
	"fmt"

	"github.com/diskfs/go-fdisk/partition"
	"github.com/diskfs/go-fdisk/partition/gpt"
	"github.com/diskfs/go-fdisk/partition/mbr"
	"github.com/diskfs/go-fdisk/util"
)

// Probe reads the label of the device behind f. gpt is tried first; an mbr that is
// only the protective MBR of a damaged gpt is not reported as an mbr label.
// Returns an error matching partition.ErrNotFound when no known label is present.
func Probe(f util.File, d Disk) (*Label, error) {
	d = d.normalize()
	if d.sectors() < 2 {
		return nil, fmt.Errorf("device of %d bytes is too small for a label: %w", d.Size, partition.ErrNotFound)
	}
	// make sure the device is readable at all before blaming the format
	b := make([]byte, d.LogicalSectorSize)
	if _, err := f.ReadAt(b, 0); err != nil {
		return nil, fmt.Errorf("unable to read first sector: %v: %w", err, partition.ErrIO)
	}

	gptTable, gptErr := gpt.Read(f, d.LogicalSectorSize, d.PhysicalSectorSize)
	if gptErr == nil {
		return fromGPT(gptTable, d)
	}

	mbrTable, mbrErr := mbr.Read(f, d.LogicalSectorSize, d.PhysicalSectorSize)
	switch {
	case mbrErr != nil && errors.Is(mbrErr, mbr.ErrNoMBR) && errors.Is(gptErr, gpt.ErrNoGPT):
		return nil, fmt.Errorf("no partition table found: %w", partition.ErrNotFound)
	case mbrErr != nil:
		return nil, fmt.Errorf("no valid partition table found, gpt: %v, mbr: %v: %w", gptErr, mbrErr, partition.ErrNotFound)
	case mbrTable.IsProtective():
		return nil, fmt.Errorf("protective MBR without a valid gpt: %v: %w", gptErr, partition.ErrNotFound)
	}
	return fromMBR(mbrTable, d), nil
}
