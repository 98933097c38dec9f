package mbr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// partitionEntrySize standard size of an MBR partition
const partitionEntrySize = 16

// Partition represents the structure of a single partition on the disk
// note that start and end cylinder, head, sector (CHS) are only filled in on write
// and ignored on comparison; LBA values are authoritative.
type Partition struct {
	Bootable      bool
	Type          Type   //
	Start         uint32 // Start first absolute LBA sector for partition
	Size          uint32 // Size number of sectors in partition
	StartCylinder byte
	StartHead     byte
	StartSector   byte
	EndCylinder   byte
	EndHead       byte
	EndSector     byte
}

// PartitionEqualBytes compares if the bytes for 2 partitions are equal, ignoring CHS start and end
func PartitionEqualBytes(b1, b2 []byte) bool {
	if len(b1) != len(b2) {
		return false
	}
	if len(b1) < partitionEntrySize {
		return bytes.Equal(b1, b2)
	}
	return b1[0] == b2[0] &&
		b1[4] == b2[4] &&
		bytes.Equal(b1[8:12], b2[8:12]) &&
		bytes.Equal(b1[12:16], b2[12:16])
}

// Equal compares if another partition is equal to this one, ignoring CHS start and end
func (p *Partition) Equal(p2 *Partition) bool {
	if p == nil || p2 == nil {
		return p == p2
	}
	return p.Bootable == p2.Bootable &&
		p.Type == p2.Type &&
		p.Start == p2.Start &&
		p.Size == p2.Size
}

// chs converts an LBA to cylinder/head/sector bytes using the conventional 255 heads
// and 63 sectors per track, saturating at the CHS maximum
func chs(lba uint32) (head, sector, cylinder byte) {
	const heads, sectors = 255, 63
	c := lba / (heads * sectors)
	if c > 1023 {
		return 0xfe, 0xff, 0xff
	}
	h := (lba / sectors) % heads
	s := lba%sectors + 1
	return byte(h), byte(s) | byte((c>>2)&0xc0), byte(c & 0xff)
}

// fillCHS computes the CHS fields from the LBA values
func (p *Partition) fillCHS() {
	if p.Type == Empty {
		return
	}
	p.StartHead, p.StartSector, p.StartCylinder = chs(p.Start)
	end := p.Start
	if p.Size > 0 {
		end = p.Start + p.Size - 1
	}
	p.EndHead, p.EndSector, p.EndCylinder = chs(end)
}

// toBytes return the 16 bytes for this partition
func (p *Partition) toBytes() []byte {
	b := make([]byte, partitionEntrySize)
	if p.Type == Empty {
		return b
	}
	if p.Bootable {
		b[0] = 0x80
	}
	b[1] = p.StartHead
	b[2] = p.StartSector
	b[3] = p.StartCylinder
	b[4] = byte(p.Type)
	b[5] = p.EndHead
	b[6] = p.EndSector
	b[7] = p.EndCylinder
	binary.LittleEndian.PutUint32(b[8:12], p.Start)
	binary.LittleEndian.PutUint32(b[12:16], p.Size)
	return b
}

// partitionFromBytes create a partition entry from 16 bytes
func partitionFromBytes(b []byte) (*Partition, error) {
	if len(b) != partitionEntrySize {
		return nil, fmt.Errorf("data for partition was %d bytes instead of expected %d", len(b), partitionEntrySize)
	}
	var bootable bool
	switch b[0] {
	case 0x00:
		bootable = false
	case 0x80:
		bootable = true
	default:
		return nil, errors.New("invalid partition")
	}

	return &Partition{
		Bootable:      bootable,
		StartHead:     b[1],
		StartSector:   b[2],
		StartCylinder: b[3],
		Type:          Type(b[4]),
		EndHead:       b[5],
		EndSector:     b[6],
		EndCylinder:   b[7],
		Start:         binary.LittleEndian.Uint32(b[8:12]),
		Size:          binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}
