package gpt

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	uuid "github.com/google/uuid"
)

// PartitionEntrySize fixed size of a GPT partition entry
const PartitionEntrySize = 128

// maxNameLength in UTF-16 code units, 72 bytes
const maxNameLength = 36

// Partition represents the structure of a single partition entry in the array
type Partition struct {
	Index      int    // slot in the partition array, starting at 1
	Start      uint64 // start sector for the partition
	End        uint64 // end sector for the partition, inclusive
	Type       Type   // parttype for the partition
	Name       string // name for the partition
	GUID       string // partition GUID, can be left blank to auto-generate
	Attributes uint64 // Attributes flags
}

// Sectors number of sectors covered by the partition
func (p *Partition) Sectors() uint64 {
	if p.End < p.Start {
		return 0
	}
	return p.End - p.Start + 1
}

// ValidateName checks that a name fits the 36 UTF-16 code units of an entry.
func ValidateName(name string) error {
	if n := len(utf16.Encode([]rune(name))); n > maxNameLength {
		return fmt.Errorf("cannot use %s as partition name, has %d Unicode code units, maximum size is %d", name, n, maxNameLength)
	}
	return nil
}

// toBytes return the 128 bytes for this partition
func (p *Partition) toBytes() ([]byte, error) {
	b := make([]byte, PartitionEntrySize)

	// if the Type is Unused, just return all zeroes
	if p.Type == Unused {
		return b, nil
	}

	// partition type GUID is first 16 bytes
	typeGUID, err := uuid.Parse(string(p.Type))
	if err != nil {
		return nil, fmt.Errorf("unable to parse partition type GUID: %v", err)
	}
	copy(b[0:16], bytesToUUIDBytes(typeGUID[0:16]))

	// partition identifier GUID is next 16 bytes
	idGUID, err := uuid.Parse(p.GUID)
	if err != nil {
		return nil, fmt.Errorf("unable to parse partition identifier GUID: %v", err)
	}
	copy(b[16:32], bytesToUUIDBytes(idGUID[0:16]))

	// next is first LBA and last LBA, uint64 = 8 bytes each
	binary.LittleEndian.PutUint64(b[32:40], p.Start)
	binary.LittleEndian.PutUint64(b[40:48], p.End)
	binary.LittleEndian.PutUint64(b[48:56], p.Attributes)

	// now the partition name - it is UTF16LE encoded, max 36 code units for 72 bytes
	if err := ValidateName(p.Name); err != nil {
		return nil, err
	}
	for i, u := range utf16.Encode([]rune(p.Name)) {
		pos := 56 + i*2
		binary.LittleEndian.PutUint16(b[pos:pos+2], u)
	}

	return b, nil
}

// partitionFromBytes create a partition entry from bytes, nil if the entry is unused
func partitionFromBytes(b []byte, index int) (*Partition, error) {
	if len(b) != PartitionEntrySize {
		return nil, fmt.Errorf("data for partition was %d bytes instead of expected %d", len(b), PartitionEntrySize)
	}
	// is it all zeroes?
	if zeroMatch(b[0:16]) {
		return nil, nil
	}
	typeGUID, err := uuid.FromBytes(bytesToUUIDBytes(b[0:16]))
	if err != nil {
		return nil, fmt.Errorf("unable to read partition type GUID: %v", err)
	}
	uid, err := uuid.FromBytes(bytesToUUIDBytes(b[16:32]))
	if err != nil {
		return nil, fmt.Errorf("unable to read partition identifier GUID: %v", err)
	}

	// get the partition name
	nameb := b[56:]
	u := make([]uint16, 0, maxNameLength)
	for i := 0; i < len(nameb); i += 2 {
		// strip any 0s off of the end
		entry := binary.LittleEndian.Uint16(nameb[i : i+2])
		if entry == 0 {
			break
		}
		u = append(u, entry)
	}

	return &Partition{
		Index:      index,
		Start:      binary.LittleEndian.Uint64(b[32:40]),
		End:        binary.LittleEndian.Uint64(b[40:48]),
		Name:       string(utf16.Decode(u)),
		GUID:       strings.ToUpper(uid.String()),
		Attributes: binary.LittleEndian.Uint64(b[48:56]),
		Type:       Type(strings.ToUpper(typeGUID.String())),
	}, nil
}

// initEntry ensures the partition has a GUID and a sane range
func (p *Partition) initEntry() error {
	if p.Type == Unused {
		return nil
	}
	var guid uuid.UUID

	if p.GUID == "" {
		guid, _ = uuid.NewRandom()
	} else {
		var err error
		guid, err = uuid.Parse(p.GUID)
		if err != nil {
			return fmt.Errorf("invalid UUID: %s", p.GUID)
		}
	}
	p.GUID = strings.ToUpper(guid.String())

	if p.End < p.Start {
		return fmt.Errorf("invalid partition entry, end sector %d before start sector %d", p.End, p.Start)
	}
	return nil
}

// Equal compares two partition entries by value
func (p *Partition) Equal(o *Partition) bool {
	return p != nil && o != nil && *p == *o
}
