package label

import (
	"bytes"
	"fmt"

	"github.com/diskfs/go-fdisk/partition"
	"github.com/diskfs/go-fdisk/util"
)

var efiSignature = []byte("EFI PART")

// Write encodes the label onto the device behind f.
func (l *Label) Write(f util.File) error {
	size := int64(l.geo.TotalSectors) * int64(l.geo.SectorSize)
	var err error
	switch l.format {
	case GPT:
		err = l.toGPT().Write(f, size)
	case MBR:
		err = l.toMBR().Write(f, size)
		if err == nil && l.wipe {
			err = l.wipeGPTHeader(f)
		}
	default:
		return fmt.Errorf("cannot write %s label: %w", l.format, partition.ErrNotSupported)
	}
	if err != nil {
		return fmt.Errorf("unable to write %s label: %v: %w", l.format, err, partition.ErrIO)
	}
	l.wipe = false
	return nil
}

// wipeGPTHeader clears a stale primary gpt signature so the new mbr is probed as
// such. LBA 1 is left alone when a partition covers it.
func (l *Label) wipeGPTHeader(f util.File) error {
	for _, p := range l.slots {
		if p == nil {
			continue
		}
		if start, _ := p.Start(); start <= 1 {
			return nil
		}
	}
	off := int64(l.geo.SectorSize)
	b := make([]byte, len(efiSignature))
	if _, err := f.ReadAt(b, off); err != nil {
		return fmt.Errorf("error reading sector 1: %v", err)
	}
	if !bytes.Equal(b, efiSignature) {
		return nil
	}
	if _, err := f.WriteAt(make([]byte, len(efiSignature)), off); err != nil {
		return fmt.Errorf("error clearing gpt signature: %v", err)
	}
	return nil
}
