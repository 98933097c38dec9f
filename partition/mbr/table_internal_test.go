package mbr

import (
	"fmt"
	"strings"
	"testing"
)

func GetValidTable() *Table {
	return &Table{
		LogicalSectorSize:  512,
		PhysicalSectorSize: 512,
		DiskSignature:      0x12345678,
		Partitions: []*Partition{
			{Bootable: true, Type: Linux, Start: 2048, Size: 4096},
			{Type: Empty},
			{Type: LinuxSwap, Start: 8192, Size: 1024},
			{Type: Empty},
		},
	}
}

func validSector(t *testing.T) []byte {
	b, err := GetValidTable().toBytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sector := make([]byte, mbrSize)
	copy(sector[diskSignatureStart:], b)
	return sector
}

func TestTableFromBytes(t *testing.T) {
	t.Run("Short byte slice", func(t *testing.T) {
		b := make([]byte, 512-1)
		table, err := tableFromBytes(b, 512, 512)
		if table != nil {
			t.Error("should return nil table")
		}
		expected := fmt.Sprintf("data for partition was %d bytes", len(b))
		if err == nil || !strings.HasPrefix(err.Error(), expected) {
			t.Errorf("error %v instead of expected %s", err, expected)
		}
	})
	t.Run("invalid MBR Signature", func(t *testing.T) {
		b := validSector(t)
		b[511] = 0x00
		_, err := tableFromBytes(b, 512, 512)
		expected := "invalid MBR Signature"
		if err == nil || !strings.HasPrefix(err.Error(), expected) {
			t.Errorf("error %v instead of expected %s", err, expected)
		}
	})
	t.Run("invalid boot flag", func(t *testing.T) {
		b := validSector(t)
		b[partitionEntriesStart] = 0x12
		_, err := tableFromBytes(b, 512, 512)
		expected := "error reading partition entry 0"
		if err == nil || !strings.HasPrefix(err.Error(), expected) {
			t.Errorf("error %v instead of expected %s", err, expected)
		}
	})
	t.Run("Valid table", func(t *testing.T) {
		table, err := tableFromBytes(validSector(t), 512, 512)
		if err != nil {
			t.Fatalf("returned non-nil error: %v", err)
		}
		expected := GetValidTable()
		if !table.Equal(expected) {
			t.Errorf("actual table was %v instead of expected %v", table, expected)
		}
	})
}

func TestCHS(t *testing.T) {
	tests := []struct {
		lba                    uint32
		head, sector, cylinder byte
	}{
		{0, 0, 1, 0},
		{62, 0, 63, 0},
		{63, 1, 1, 0},
		{2048, 32, 33, 0},
		{255 * 63, 0, 1, 1},
		{255 * 63 * 256, 0, 1 | 0x40, 0},
		{0xffffffff, 0xfe, 0xff, 0xff},
	}
	for _, tt := range tests {
		h, s, c := chs(tt.lba)
		if h != tt.head || s != tt.sector || c != tt.cylinder {
			t.Errorf("chs(%d) = %d/%d/%d, expected %d/%d/%d", tt.lba, h, s, c, tt.head, tt.sector, tt.cylinder)
		}
	}
}

func TestToBytesTooMany(t *testing.T) {
	table := GetValidTable()
	table.Partitions = append(table.Partitions, &Partition{Type: Linux})
	if _, err := table.toBytes(); err == nil {
		t.Error("expected error for 5 partitions")
	}
}
