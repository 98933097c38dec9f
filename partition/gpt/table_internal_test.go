package gpt

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
	"strings"
	"testing"
)

const tinyDisk = 65528

func TestInitTable(t *testing.T) {
	table := NewTable(tinyDisk, 512, 512)
	tests := []struct {
		name     string
		actual   uint64
		expected uint64
	}{
		{"primary header", table.primaryHeader, 1},
		{"array start", table.partitionFirstLBA, 2},
		{"first usable", table.FirstUsableLBA(), 34},
		{"last usable", table.LastUsableLBA(), 93},
		{"secondary header", table.secondaryHeader, 126},
		{"backup array", table.partitionArraySector(false), 94},
	}
	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: %d instead of %d", tt.name, tt.actual, tt.expected)
		}
	}
	if table.MaxPartitions() != 128 {
		t.Errorf("max partitions %d instead of 128", table.MaxPartitions())
	}
	t.Run("4k sectors", func(t *testing.T) {
		table := NewTable(10*1024*1024, 4096, 4096)
		// 16KB of entries take 4 sectors
		if table.FirstUsableLBA() != 6 {
			t.Errorf("first usable %d instead of 6", table.FirstUsableLBA())
		}
		if table.LastUsableLBA() != 2560-1-1-4 {
			t.Errorf("last usable %d instead of %d", table.LastUsableLBA(), 2560-1-1-4)
		}
	})
}

func TestToPartitionArrayBytes(t *testing.T) {
	newTable := func(parts ...*Partition) *Table {
		table := NewTable(tinyDisk, 512, 512)
		table.Partitions = parts
		return table
	}
	t.Run("empty partition array", func(t *testing.T) {
		table := newTable()
		b, err := table.toPartitionArrayBytes()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(b) != 128*128 || !zeroMatch(b) {
			t.Errorf("expected %d zero bytes, got %d bytes", 128*128, len(b))
		}
	})
	errorCases := []struct {
		name  string
		parts []*Partition
		msg   string
	}{
		{"duplicate indexes", []*Partition{
			{Index: 1, Start: 34, End: 40, Type: LinuxFilesystem},
			{Index: 1, Start: 41, End: 50, Type: LinuxFilesystem},
		}, "duplicate partition index 1"},
		{"zero index", []*Partition{{Index: 0, Start: 34, End: 40, Type: LinuxFilesystem}}, "partition 0 has index 0"},
		{"index too large", []*Partition{{Index: 129, Start: 34, End: 40, Type: LinuxFilesystem}}, "partition 0 has index 129"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTable(tt.parts...).toPartitionArrayBytes()
			if err == nil || !strings.HasPrefix(err.Error(), tt.msg) {
				t.Errorf("error %v instead of expected %s", err, tt.msg)
			}
		})
	}
	t.Run("entries placed by index", func(t *testing.T) {
		table := newTable(
			&Partition{Index: 3, Start: 50, End: 60, Type: LinuxSwap},
			&Partition{Index: 1, Start: 34, End: 40, Type: LinuxFilesystem},
		)
		b, err := table.toPartitionArrayBytes()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		parts, err := readPartitionArrayBytes(b, PartitionEntrySize)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(parts) != 2 {
			t.Fatalf("read %d partitions instead of 2", len(parts))
		}
		if parts[0].Index != 1 || parts[0].Start != 34 || parts[1].Index != 3 || parts[1].Type != LinuxSwap {
			t.Errorf("unexpected partitions %v %v", parts[0], parts[1])
		}
	})
}

func TestTableFromBytes(t *testing.T) {
	valid := func() []byte {
		table := NewTable(tinyDisk, 512, 512)
		bpart, _ := table.toPartitionArrayBytes()
		header, err := table.toGPTBytes(true, bpart)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b := make([]byte, 1024)
		copy(b[0:512], table.generateProtectiveMBR())
		copy(b[512:], header)
		return b
	}
	t.Run("Short byte slice", func(t *testing.T) {
		_, err := tableFromBytes(make([]byte, 1000), 512, 512)
		if err == nil || !strings.HasPrefix(err.Error(), "data for partition was 1000 bytes") {
			t.Errorf("unexpected error %v", err)
		}
	})
	corrupt := []struct {
		name   string
		offset int
		msg    string
	}{
		{"invalid EFI Signature", 512, "invalid EFI Signature"},
		{"invalid EFI Revision", 512 + 9, "invalid EFI Revision"},
		{"invalid EFI Header Size", 512 + 12, "invalid EFI Header size"},
		{"invalid EFI Zeroes", 512 + 21, "invalid EFI Header, expected zeroes"},
		{"invalid EFI Header Checksum", 512 + 40, "invalid EFI Header Checksum"},
	}
	for _, tt := range corrupt {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			b[tt.offset]++
			_, err := tableFromBytes(b, 512, 512)
			if err == nil || !strings.HasPrefix(err.Error(), tt.msg) {
				t.Errorf("error %v instead of expected %s", err, tt.msg)
			}
		})
	}
	// header fields rewritten with a valid checksum
	rewrite := []struct {
		name   string
		offset int
		value  uint64
		width  int
		msg    string
	}{
		{"oversized partition array", 512 + 80, 1 << 20, 4, "invalid partition array of 1048576 entries"},
		{"empty partition array", 512 + 80, 0, 4, "invalid partition array of 0 entries"},
		{"partition array past first usable", 512 + 72, 20, 8, "partition array at sector 20"},
		{"partition array at header", 512 + 72, 1, 8, "partition array at sector 1"},
		{"partition array at end of LBA space", 512 + 72, math.MaxUint64, 8, "partition array at sector"},
		{"last usable before first", 512 + 48, 10, 8, "last usable sector 10 before first usable sector 34"},
	}
	for _, tt := range rewrite {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			if tt.width == 4 {
				binary.LittleEndian.PutUint32(b[tt.offset:tt.offset+4], uint32(tt.value))
			} else {
				binary.LittleEndian.PutUint64(b[tt.offset:tt.offset+8], tt.value)
			}
			copy(b[512+16:512+20], []byte{0, 0, 0, 0})
			binary.LittleEndian.PutUint32(b[512+16:512+20], crc32.ChecksumIEEE(b[512:512+92]))
			_, err := tableFromBytes(b, 512, 512)
			if err == nil || !strings.HasPrefix(err.Error(), tt.msg) {
				t.Errorf("error %v instead of expected %s", err, tt.msg)
			}
			if !errors.Is(err, ErrNoGPT) {
				t.Errorf("error %v does not wrap ErrNoGPT", err)
			}
		})
	}
	t.Run("Valid table", func(t *testing.T) {
		table, err := tableFromBytes(valid(), 512, 512)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !table.ProtectiveMBR {
			t.Error("protective MBR not detected")
		}
		if table.FirstUsableLBA() != 34 || table.LastUsableLBA() != 93 {
			t.Errorf("usable range %d-%d instead of 34-93", table.FirstUsableLBA(), table.LastUsableLBA())
		}
	})
}
