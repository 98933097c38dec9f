package gpt

// bytesToUUIDBytes converts between the GPT mixed-endian GUID layout and RFC 4122 order.
// The first three sections (4, 2 and 2 bytes) are little-endian on disk, the last two
// are big-endian. The conversion is its own inverse.
func bytesToUUIDBytes(in []byte) []byte {
	b := make([]byte, 16)
	copy(b, in[0:16])
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
	return b
}

// check if a byte slice is all zeroes
func zeroMatch(b []byte) bool {
	for _, val := range b {
		if val != 0 {
			return false
		}
	}
	return true
}
