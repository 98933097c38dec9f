package gpt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"strings"

	uuid "github.com/google/uuid"

	"github.com/diskfs/go-fdisk/util"
)

const (
	mbrPartitionEntriesStart = 446
	mbrPartitionEntriesCount = 4
	mbrpartitionEntrySize    = 16
	headerSize               = 92
	// DefaultPartitionArraySize number of entries in a newly created array
	DefaultPartitionArraySize = 128
	// largest partition array accepted from disk
	maxPartitionArraySize = 4096
)

// ErrNoGPT returned by Read when the disk does not carry a GPT signature
var ErrNoGPT = errors.New("no GPT signature found")

// Table represents a partition table to be applied to a disk or read from a disk
type Table struct {
	Partitions             []*Partition // slice of Partition
	LogicalSectorSize      int          // logical size of a sector
	PhysicalSectorSize     int          // physical size of the sector
	GUID                   string       // disk GUID, can be left blank to auto-generate
	ProtectiveMBR          bool         // whether or not a protective MBR is in place
	partitionArraySize     int          // how many entries are in the partition array size
	partitionEntrySize     uint32       // size of the partition entry in the table, usually 128 bytes
	partitionFirstLBA      uint64       // first LBA of the partition array
	partitionEntryChecksum uint32       // checksum of the partition array
	primaryHeader          uint64       // LBA of primary header, always 1
	secondaryHeader        uint64       // LBA of secondary header, always last sectors on disk
	firstDataSector        uint64       // LBA of first data sector
	lastDataSector         uint64       // LBA of last data sector
	initialized            bool
}

// NewTable returns an empty table laid out for a disk of size bytes.
func NewTable(size int64, logicalSectorSize, physicalSectorSize int) *Table {
	t := &Table{
		LogicalSectorSize:  logicalSectorSize,
		PhysicalSectorSize: physicalSectorSize,
		ProtectiveMBR:      true,
	}
	t.initTable(size)
	return t
}

func getEfiSignature() []byte {
	return []byte{0x45, 0x46, 0x49, 0x20, 0x50, 0x41, 0x52, 0x54}
}
func getEfiRevision() []byte {
	return []byte{0x00, 0x00, 0x01, 0x00}
}
func getEfiHeaderSize() []byte {
	return []byte{0x5c, 0x00, 0x00, 0x00}
}
func getMbrSignature() []byte {
	return []byte{0x55, 0xaa}
}

// arraySectors how many sectors the partition entry array occupies
func (t *Table) arraySectors() uint64 {
	bytes := uint64(t.partitionArraySize) * uint64(t.partitionEntrySize)
	lss := uint64(t.LogicalSectorSize)
	return (bytes + lss - 1) / lss
}

// ensure that a blank table is initialized
func (t *Table) initTable(size int64) {
	// default settings
	if t.LogicalSectorSize == 0 {
		t.LogicalSectorSize = 512
	}
	if t.PhysicalSectorSize == 0 {
		t.PhysicalSectorSize = 512
	}

	if t.primaryHeader == 0 {
		t.primaryHeader = 1
	}
	if t.GUID == "" {
		guid, _ := uuid.NewRandom()
		t.GUID = strings.ToUpper(guid.String())
	}
	if t.partitionArraySize == 0 {
		t.partitionArraySize = DefaultPartitionArraySize
	}
	if t.partitionEntrySize == 0 {
		t.partitionEntrySize = PartitionEntrySize
	}

	// how many sectors on the disk?
	diskSectors := uint64(size) / uint64(t.LogicalSectorSize)
	partSectors := t.arraySectors()

	if t.partitionFirstLBA == 0 {
		t.partitionFirstLBA = t.primaryHeader + 1
	}
	if t.firstDataSector == 0 {
		t.firstDataSector = t.partitionFirstLBA + partSectors
	}
	if t.secondaryHeader == 0 && diskSectors > 0 {
		t.secondaryHeader = diskSectors - 1
	}
	if t.lastDataSector == 0 && t.secondaryHeader > partSectors {
		t.lastDataSector = t.secondaryHeader - 1 - partSectors
	}

	t.initialized = true
}

// FirstUsableLBA first sector available for partitions
func (t *Table) FirstUsableLBA() uint64 {
	return t.firstDataSector
}

// LastUsableLBA last sector available for partitions
func (t *Table) LastUsableLBA() uint64 {
	return t.lastDataSector
}

// MaxPartitions number of entries in the partition array
func (t *Table) MaxPartitions() int {
	return t.partitionArraySize
}

// Equal check if another table is functionally equal to this one
func (t *Table) Equal(t2 *Table) bool {
	if t2 == nil {
		return false
	}
	// neither is nil, so now we need to compare
	basicMatch := t.LogicalSectorSize == t2.LogicalSectorSize &&
		t.PhysicalSectorSize == t2.PhysicalSectorSize &&
		t.partitionEntrySize == t2.partitionEntrySize &&
		t.primaryHeader == t2.primaryHeader &&
		t.secondaryHeader == t2.secondaryHeader &&
		t.firstDataSector == t2.firstDataSector &&
		t.lastDataSector == t2.lastDataSector &&
		t.partitionArraySize == t2.partitionArraySize &&
		t.ProtectiveMBR == t2.ProtectiveMBR &&
		t.GUID == t2.GUID
	partMatch := comparePartitionArray(t.Partitions, t2.Partitions)
	return basicMatch && partMatch
}

func comparePartitionArray(p1, p2 []*Partition) bool {
	if len(p1) != len(p2) {
		return false
	}
	for i, p := range p1 {
		if !p.Equal(p2[i]) {
			return false
		}
	}
	return true
}

// protectiveSectors sector count recorded in the protective MBR entry, capped at 32 bits
func (t *Table) protectiveSectors() uint32 {
	if t.secondaryHeader > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(t.secondaryHeader)
}

// readProtectiveMBR reads whether or not a protectiveMBR exists in a byte slice
func readProtectiveMBR(b []byte, sectors uint32) bool {
	size := len(b)
	if size < 512 {
		return false
	}
	// check for MBR signature
	if !bytes.Equal(b[510:512], getMbrSignature()) {
		return false
	}
	parts := b[mbrPartitionEntriesStart : mbrPartitionEntriesStart+mbrpartitionEntrySize*mbrPartitionEntriesCount]
	// should have all except the first partition by zeroes
	for i := 1; i < mbrPartitionEntriesCount; i++ {
		if !zeroMatch(parts[i*mbrpartitionEntrySize : (i+1)*mbrpartitionEntrySize]) {
			return false
		}
	}
	// non-bootable, type 0xee, we ignore head/cylinder/sector
	if parts[0] != 0x00 || parts[4] != 0xee {
		return false
	}
	if binary.LittleEndian.Uint32(parts[8:12]) != 1 {
		return false
	}
	count := binary.LittleEndian.Uint32(parts[12:16])
	return count == sectors || count == math.MaxUint32
}

// partitionArraySector get the sector that holds the primary or secondary partition array
func (t *Table) partitionArraySector(primary bool) uint64 {
	if primary {
		return t.partitionFirstLBA
	}
	return t.secondaryHeader - t.arraySectors()
}

func (t *Table) generateProtectiveMBR() []byte {
	b := make([]byte, 512)
	// we don't do anything to the first 446 bytes
	copy(b[510:], getMbrSignature())
	// create the single all disk partition
	parts := b[mbrPartitionEntriesStart : mbrPartitionEntriesStart+mbrpartitionEntrySize]
	// non-bootable
	parts[0] = 0x00
	// CHS of the first sector, 0/0/2
	parts[2] = 0x02
	parts[4] = 0xee
	// CHS end is the maximum
	parts[5], parts[6], parts[7] = 0xff, 0xff, 0xff
	binary.LittleEndian.PutUint32(parts[8:12], 1)
	binary.LittleEndian.PutUint32(parts[12:16], t.protectiveSectors())
	return b
}

// toPartitionArrayBytes write the bytes for the partition array, each partition in slot Index-1
func (t *Table) toPartitionArrayBytes() ([]byte, error) {
	used := make(map[int]bool, len(t.Partitions))
	for i, part := range t.Partitions {
		if part.Index < 1 || part.Index > t.partitionArraySize {
			return nil, fmt.Errorf("partition %d has index %d outside of 1-%d", i, part.Index, t.partitionArraySize)
		}
		if used[part.Index] {
			return nil, fmt.Errorf("duplicate partition index %d", part.Index)
		}
		used[part.Index] = true
		if err := part.initEntry(); err != nil {
			return nil, fmt.Errorf("could not initialize partition %d correctly: %v", i, err)
		}
	}

	// generate the partition bytes
	partSize := t.partitionEntrySize * uint32(t.partitionArraySize)
	bpart := make([]byte, partSize)
	for i, p := range t.Partitions {
		b2, err := p.toBytes()
		if err != nil {
			return nil, fmt.Errorf("error preparing partition entry %d for writing to disk: %v", i, err)
		}
		slotStart := (p.Index - 1) * int(t.partitionEntrySize)
		copy(bpart[slotStart:slotStart+int(t.partitionEntrySize)], b2)
	}
	return bpart, nil
}

// toGPTBytes write just the gpt header to bytes
func (t *Table) toGPTBytes(primary bool, bpart []byte) ([]byte, error) {
	b := make([]byte, t.LogicalSectorSize)

	// 8 bytes "EFI PART" signature
	copy(b[0:8], getEfiSignature())
	// 4 bytes revision 1.0
	copy(b[8:12], getEfiRevision())
	// 4 bytes header size
	copy(b[12:16], getEfiHeaderSize())
	// 4 bytes CRC32 at 16 and 4 reserved bytes stay zero until the checksum is calculated

	// which LBA are we?
	if primary {
		binary.LittleEndian.PutUint64(b[24:32], t.primaryHeader)
		binary.LittleEndian.PutUint64(b[32:40], t.secondaryHeader)
	} else {
		binary.LittleEndian.PutUint64(b[24:32], t.secondaryHeader)
		binary.LittleEndian.PutUint64(b[32:40], t.primaryHeader)
	}

	// usable LBAs for partitions
	binary.LittleEndian.PutUint64(b[40:48], t.firstDataSector)
	binary.LittleEndian.PutUint64(b[48:56], t.lastDataSector)

	// 16 bytes disk GUID
	guid, err := uuid.Parse(t.GUID)
	if err != nil {
		return nil, fmt.Errorf("invalid disk UUID: %s", t.GUID)
	}
	copy(b[56:72], bytesToUUIDBytes(guid[0:16]))

	// starting LBA of array of partition entries
	binary.LittleEndian.PutUint64(b[72:80], t.partitionArraySector(primary))
	binary.LittleEndian.PutUint32(b[80:84], uint32(t.partitionArraySize))
	binary.LittleEndian.PutUint32(b[84:88], t.partitionEntrySize)
	binary.LittleEndian.PutUint32(b[88:92], crc32.ChecksumIEEE(bpart))

	// calculate checksum of entire header and place 4 bytes of offset 16 = 0x10
	binary.LittleEndian.PutUint32(b[16:20], crc32.ChecksumIEEE(b[0:headerSize]))

	return b, nil
}

// tableFromBytes read a partition table header from a byte slice holding LBA0 and LBA1
func tableFromBytes(b []byte, logicalBlockSize, physicalBlockSize int) (*Table, error) {
	// minimum size - header + LBA0 for (protective) MBR
	if len(b) < logicalBlockSize*2 {
		return nil, fmt.Errorf("data for partition was %d bytes instead of expected minimum %d", len(b), logicalBlockSize*2)
	}

	// GPT starts at LBA1
	gpt := make([]byte, headerSize)
	copy(gpt, b[logicalBlockSize:logicalBlockSize+headerSize])

	if !bytes.Equal(gpt[0:8], getEfiSignature()) {
		return nil, fmt.Errorf("invalid EFI Signature %v: %w", gpt[0:8], ErrNoGPT)
	}
	if !bytes.Equal(gpt[8:12], getEfiRevision()) {
		return nil, fmt.Errorf("invalid EFI Revision %v", gpt[8:12])
	}
	if !bytes.Equal(gpt[12:16], getEfiHeaderSize()) {
		return nil, fmt.Errorf("invalid EFI Header size %v", gpt[12:16])
	}
	if !zeroMatch(gpt[20:24]) {
		return nil, fmt.Errorf("invalid EFI Header, expected zeroes, got %v", gpt[20:24])
	}
	efiHeaderCrc := binary.LittleEndian.Uint32(gpt[16:20])
	// once we have the header CRC, zero it out
	copy(gpt[16:20], []byte{0x00, 0x00, 0x00, 0x00})
	if checksum := crc32.ChecksumIEEE(gpt); efiHeaderCrc != checksum {
		return nil, fmt.Errorf("invalid EFI Header Checksum, expected %v, got %v", checksum, efiHeaderCrc)
	}

	diskGUID, err := uuid.FromBytes(bytesToUUIDBytes(gpt[56:72]))
	if err != nil {
		return nil, fmt.Errorf("unable to read guid from disk: %v", err)
	}
	entrySize := binary.LittleEndian.Uint32(gpt[84:88])
	if entrySize != PartitionEntrySize {
		return nil, fmt.Errorf("unsupported partition entry size %d", entrySize)
	}
	secondaryHeader := binary.LittleEndian.Uint64(gpt[32:40])

	table := Table{
		LogicalSectorSize:      logicalBlockSize,
		PhysicalSectorSize:     physicalBlockSize,
		partitionEntrySize:     entrySize,
		primaryHeader:          binary.LittleEndian.Uint64(gpt[24:32]),
		secondaryHeader:        secondaryHeader,
		firstDataSector:        binary.LittleEndian.Uint64(gpt[40:48]),
		lastDataSector:         binary.LittleEndian.Uint64(gpt[48:56]),
		partitionArraySize:     int(binary.LittleEndian.Uint32(gpt[80:84])),
		partitionFirstLBA:      binary.LittleEndian.Uint64(gpt[72:80]),
		ProtectiveMBR:          false,
		GUID:                   strings.ToUpper(diskGUID.String()),
		partitionEntryChecksum: binary.LittleEndian.Uint32(gpt[88:92]),
		initialized:            true,
	}
	if table.partitionArraySize < 1 || table.partitionArraySize > maxPartitionArraySize {
		return nil, fmt.Errorf("invalid partition array of %d entries, must be 1-%d: %w", table.partitionArraySize, maxPartitionArraySize, ErrNoGPT)
	}
	if arraySectors := table.arraySectors(); table.partitionFirstLBA <= table.primaryHeader ||
		arraySectors > table.firstDataSector || table.partitionFirstLBA > table.firstDataSector-arraySectors {
		return nil, fmt.Errorf("partition array at sector %d of %d sectors does not end before first usable sector %d: %w",
			table.partitionFirstLBA, table.arraySectors(), table.firstDataSector, ErrNoGPT)
	}
	if table.lastDataSector < table.firstDataSector {
		return nil, fmt.Errorf("last usable sector %d before first usable sector %d: %w", table.lastDataSector, table.firstDataSector, ErrNoGPT)
	}
	// potential protective MBR is at LBA0
	table.ProtectiveMBR = readProtectiveMBR(b[:logicalBlockSize], table.protectiveSectors())

	return &table, nil
}

// readPartitionArrayBytes read the used entries of a partition array
func readPartitionArrayBytes(b []byte, entrySize int) ([]*Partition, error) {
	parts := make([]*Partition, 0)
	for i, c := 0, b; len(c) >= entrySize; c, i = c[entrySize:], i+1 {
		p, err := partitionFromBytes(c[:entrySize], i+1)
		if err != nil {
			return nil, fmt.Errorf("error reading partition entry %d: %v", i, err)
		}
		if p == nil {
			continue
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// Type report the type of table, always "gpt"
func (t *Table) Type() string {
	return "gpt"
}

// Write writes a GPT to disk
// Must be passed the util.File to which to write and the size of the disk
func (t *Table) Write(f util.File, size int64) error {
	// it is possible that we are given a basic new table that we need to initialize
	if !t.initialized {
		t.initTable(size)
	}

	// write the protectiveMBR if any
	// write the primary GPT header
	// write the primary partition array
	// write the secondary partition array
	// write the secondary GPT header
	var written int
	var err error
	if t.ProtectiveMBR {
		fullMBR := t.generateProtectiveMBR()
		protectiveMBR := fullMBR[mbrPartitionEntriesStart:]
		written, err = f.WriteAt(protectiveMBR, mbrPartitionEntriesStart)
		if err != nil {
			return fmt.Errorf("error writing protective MBR to disk: %v", err)
		}
		if written != len(protectiveMBR) {
			return fmt.Errorf("wrote %d bytes of protective MBR instead of %d", written, len(protectiveMBR))
		}
	}

	partitionArray, err := t.toPartitionArrayBytes()
	if err != nil {
		return fmt.Errorf("error converting partition array to bytes: %v", err)
	}

	primaryHeader, err := t.toGPTBytes(true, partitionArray)
	if err != nil {
		return fmt.Errorf("error converting primary GPT header to byte array: %v", err)
	}
	written, err = f.WriteAt(primaryHeader, int64(t.primaryHeader)*int64(t.LogicalSectorSize))
	if err != nil {
		return fmt.Errorf("error writing primary GPT to disk: %v", err)
	}
	if written != len(primaryHeader) {
		return fmt.Errorf("wrote %d bytes of primary GPT header instead of %d", written, len(primaryHeader))
	}

	written, err = f.WriteAt(partitionArray, int64(t.partitionArraySector(true))*int64(t.LogicalSectorSize))
	if err != nil {
		return fmt.Errorf("error writing primary partition array to disk: %v", err)
	}
	if written != len(partitionArray) {
		return fmt.Errorf("wrote %d bytes of primary partition array instead of %d", written, len(partitionArray))
	}

	written, err = f.WriteAt(partitionArray, int64(t.partitionArraySector(false))*int64(t.LogicalSectorSize))
	if err != nil {
		return fmt.Errorf("error writing secondary partition array to disk: %v", err)
	}
	if written != len(partitionArray) {
		return fmt.Errorf("wrote %d bytes of secondary partition array instead of %d", written, len(partitionArray))
	}

	secondaryHeader, err := t.toGPTBytes(false, partitionArray)
	if err != nil {
		return fmt.Errorf("error converting secondary GPT header to byte array: %v", err)
	}
	written, err = f.WriteAt(secondaryHeader, int64(t.secondaryHeader)*int64(t.LogicalSectorSize))
	if err != nil {
		return fmt.Errorf("error writing secondary GPT to disk: %v", err)
	}
	if written != len(secondaryHeader) {
		return fmt.Errorf("wrote %d bytes of secondary GPT header instead of %d", written, len(secondaryHeader))
	}

	return nil
}

// Read read a partition table from a disk
// must be passed the util.File from which to read, and the logical and physical block sizes
//
// if successful, returns a gpt.Table struct
// returns errors if fails at any stage reading the disk or processing the bytes on disk as a GPT,
// wrapping ErrNoGPT when the signature is missing
func Read(f util.File, logicalBlockSize, physicalBlockSize int) (*Table, error) {
	// read the data off of the disk - first block is the compatibility MBR, second is the GPT header
	b := make([]byte, logicalBlockSize*2)
	read, err := f.ReadAt(b, 0)
	if err != nil {
		return nil, fmt.Errorf("error reading GPT from file: %w", err)
	}
	if read != len(b) {
		return nil, fmt.Errorf("read only %d bytes of GPT from file instead of expected %d", read, len(b))
	}
	gptTable, err := tableFromBytes(b, logicalBlockSize, physicalBlockSize)
	if err != nil {
		return nil, fmt.Errorf("error reading GPT table: %w", err)
	}

	b = make([]byte, gptTable.partitionArraySize*int(gptTable.partitionEntrySize))
	read, err = f.ReadAt(b, int64(gptTable.partitionFirstLBA)*int64(logicalBlockSize))
	if err != nil {
		return nil, fmt.Errorf("error reading partitions from file: %w", err)
	}
	if read != len(b) {
		return nil, fmt.Errorf("read only %d bytes of GPT partition array from file instead of expected %d", read, len(b))
	}
	if checksum := crc32.ChecksumIEEE(b); gptTable.partitionEntryChecksum != checksum {
		return nil, fmt.Errorf("invalid EFI Partition Entry Checksum, expected %v, got %v", checksum, gptTable.partitionEntryChecksum)
	}

	parts, err := readPartitionArrayBytes(b, int(gptTable.partitionEntrySize))
	if err != nil {
		return nil, fmt.Errorf("error parsing partition data: %w", err)
	}
	gptTable.Partitions = parts
	return gptTable, nil
}
