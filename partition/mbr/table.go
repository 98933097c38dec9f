package mbr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/diskfs/go-fdisk/util"
)

// Table represents an MBR partition table to be applied to a disk or read from a disk
type Table struct {
	Partitions         []*Partition // up to 4 entries, slot i is primary partition i+1
	LogicalSectorSize  int          // logical size of a sector
	PhysicalSectorSize int          // physical size of the sector
	DiskSignature      uint32       // disk identifier at offset 440
}

const (
	mbrSize               = 512
	diskSignatureStart    = 440
	partitionEntriesStart = 446
	// PartitionEntriesCount number of primary entries
	PartitionEntriesCount = 4
	signatureStart        = 510
)

// ErrNoMBR returned by Read when the boot signature is missing
var ErrNoMBR = errors.New("no MBR boot signature found")

func getMbrSignature() []byte {
	return []byte{0x55, 0xaa}
}

// compare 2 partition arrays, a missing entry equals an Empty one
func comparePartitionArray(p1, p2 []*Partition) bool {
	for i := 0; i < PartitionEntriesCount; i++ {
		a, b := entry(p1, i), entry(p2, i)
		if !a.Equal(b) {
			return false
		}
	}
	return len(p1) <= PartitionEntriesCount && len(p2) <= PartitionEntriesCount
}

func entry(parts []*Partition, i int) *Partition {
	if i < len(parts) && parts[i] != nil {
		return parts[i]
	}
	return &Partition{Type: Empty}
}

// Equal check if another table is equal to this one, ignoring CHS start and end for the partitions
func (t *Table) Equal(t2 *Table) bool {
	if t2 == nil {
		return false
	}
	basicMatch := t.LogicalSectorSize == t2.LogicalSectorSize &&
		t.PhysicalSectorSize == t2.PhysicalSectorSize &&
		t.DiskSignature == t2.DiskSignature
	return basicMatch && comparePartitionArray(t.Partitions, t2.Partitions)
}

// tableFromBytes read a partition table from a byte slice
func tableFromBytes(b []byte, logicalSectorSize, physicalSectorSize int) (*Table, error) {
	// check length
	if len(b) != mbrSize {
		return nil, fmt.Errorf("data for partition was %d bytes instead of expected %d", len(b), mbrSize)
	}
	mbrSignature := b[signatureStart:]

	// validate signature
	if !bytes.Equal(mbrSignature, getMbrSignature()) {
		return nil, fmt.Errorf("invalid MBR Signature %v: %w", mbrSignature, ErrNoMBR)
	}

	parts := make([]*Partition, 0, PartitionEntriesCount)
	for i := 0; i < PartitionEntriesCount; i++ {
		start := partitionEntriesStart + i*partitionEntrySize
		end := start + partitionEntrySize
		p, err := partitionFromBytes(b[start:end])
		if err != nil {
			return nil, fmt.Errorf("error reading partition entry %d: %v", i, err)
		}
		parts = append(parts, p)
	}

	table := &Table{
		Partitions:         parts,
		LogicalSectorSize:  logicalSectorSize,
		PhysicalSectorSize: physicalSectorSize,
		DiskSignature:      binary.LittleEndian.Uint32(b[diskSignatureStart : diskSignatureStart+4]),
	}

	return table, nil
}

// Type report the type of table, always the string "mbr"
func (t *Table) Type() string {
	return "mbr"
}

// IsProtective whether the table is the protective MBR of a GPT disk
func (t *Table) IsProtective() bool {
	for _, p := range t.Partitions {
		if p != nil && p.Type == GPTProtective {
			return true
		}
	}
	return false
}

// Read read a partition table from a disk, given the logical block size and physical block size
func Read(f util.File, logicalBlockSize, physicalBlockSize int) (*Table, error) {
	// read the data off of the disk
	b := make([]byte, mbrSize)
	read, err := f.ReadAt(b, 0)
	if err != nil {
		return nil, fmt.Errorf("error reading MBR from file: %w", err)
	}
	if read != len(b) {
		return nil, fmt.Errorf("read only %d bytes of MBR from file instead of expected %d", read, len(b))
	}
	return tableFromBytes(b, logicalBlockSize, physicalBlockSize)
}

// toBytes convert Table to the bytes from the disk signature at 440 to the end of the sector
func (t *Table) toBytes() ([]byte, error) {
	if len(t.Partitions) > PartitionEntriesCount {
		return nil, fmt.Errorf("table has %d partitions, maximum is %d", len(t.Partitions), PartitionEntriesCount)
	}
	b := make([]byte, mbrSize-diskSignatureStart)
	binary.LittleEndian.PutUint32(b[0:4], t.DiskSignature)

	// write the partitions
	for i := 0; i < PartitionEntriesCount; i++ {
		p := entry(t.Partitions, i)
		p.fillCHS()
		offset := partitionEntriesStart - diskSignatureStart + i*partitionEntrySize
		copy(b[offset:offset+partitionEntrySize], p.toBytes())
	}

	// signature
	copy(b[signatureStart-diskSignatureStart:], getMbrSignature())
	return b, nil
}

// Write writes a given MBR Table to disk.
// Must be passed the util.File to write to and the size of the disk
//
//nolint:revive // size is unused, kept for a signature shared with gpt.Table
func (t *Table) Write(f util.File, size int64) error {
	b, err := t.toBytes()
	if err != nil {
		return err
	}

	written, err := f.WriteAt(b, diskSignatureStart)
	if err != nil {
		return fmt.Errorf("error writing partition table to disk: %v", err)
	}
	if written != len(b) {
		return fmt.Errorf("partition table wrote %d bytes to disk instead of the expected %d", written, len(b))
	}
	return nil
}
