package util

import (
	"fmt"
	"strings"
)

// DumpSector formats b like xxd: the hex offset, 16 bytes in hex and their
// printable ASCII. Rows made only of zeroes are collapsed into a single "*" line.
func DumpSector(b []byte) string {
	const bytesPerRow = 16
	var out strings.Builder
	skipping := false
	for first := 0; first < len(b); first += bytesPerRow {
		last := first + bytesPerRow
		if last > len(b) {
			last = len(b)
		}
		row := b[first:last]
		if isZero(row) && first > 0 {
			if !skipping {
				out.WriteString("*\n")
				skipping = true
			}
			continue
		}
		skipping = false
		fmt.Fprintf(&out, "%08x:", first)
		ascii := make([]byte, 0, bytesPerRow)
		for j := 0; j < bytesPerRow; j++ {
			// every 8 bytes add extra spacing to make it easier to read
			if j%8 == 0 {
				out.WriteByte(' ')
			}
			if j >= len(row) {
				out.WriteString("   ")
				continue
			}
			fmt.Fprintf(&out, " %02x", row[j])
			if row[j] < 32 || row[j] > 126 {
				ascii = append(ascii, '.')
			} else {
				ascii = append(ascii, row[j])
			}
		}
		fmt.Fprintf(&out, "  %s\n", ascii)
	}
	return out.String()
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
