package mbr

import (
	"fmt"
	"strconv"
	"strings"
)

// Type partition type code, see https://en.wikipedia.org/wiki/Partition_type
type Type byte

// List of MBR partition types
const (
	Empty         Type = 0x00
	Fat12         Type = 0x01
	Fat16         Type = 0x04
	ExtendedCHS   Type = 0x05
	Fat16b        Type = 0x06
	NTFS          Type = 0x07
	Fat32CHS      Type = 0x0b
	Fat32LBA      Type = 0x0c
	Fat16bLBA     Type = 0x0e
	ExtendedLBA   Type = 0x0f
	LinuxSwap     Type = 0x82
	Linux         Type = 0x83
	LinuxExtended Type = 0x85
	LinuxLVM      Type = 0x8e
	Iso9660       Type = 0x96
	GPTProtective Type = 0xee
	EFISystem     Type = 0xef
	LinuxRaid     Type = 0xfd
)

// IsExtended whether the type describes a container for logical partitions
func (t Type) IsExtended() bool {
	return t == ExtendedCHS || t == ExtendedLBA || t == LinuxExtended
}

func (t Type) String() string {
	return fmt.Sprintf("%02x", byte(t))
}

// ParseType parses a hex type code, with or without a 0x prefix, e.g. "83" or "0x83"
func ParseType(s string) (Type, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 8)
	if err != nil {
		return Empty, fmt.Errorf("invalid MBR partition type %q: %v", s, err)
	}
	return Type(v), nil
}
