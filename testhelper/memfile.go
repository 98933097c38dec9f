package testhelper

import (
	"errors"
	"io"
)

// MemFile a fixed size disk image held in memory
type MemFile struct {
	Data []byte
	pos  int64
}

// NewMemFile returns a zeroed image of size bytes
func NewMemFile(size int) *MemFile {
	return &MemFile{Data: make([]byte, size)}
}

func (m *MemFile) ReadAt(b []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, errors.New("negative offset")
	}
	if offset >= int64(len(m.Data)) {
		return 0, io.EOF
	}
	n := copy(b, m.Data[offset:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes within the image, it never grows
func (m *MemFile) WriteAt(b []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, errors.New("negative offset")
	}
	if offset+int64(len(b)) > int64(len(m.Data)) {
		return 0, io.ErrShortWrite
	}
	return copy(m.Data[offset:], b), nil
}

func (m *MemFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += m.pos
	case io.SeekEnd:
		offset += int64(len(m.Data))
	default:
		return 0, errors.New("invalid whence")
	}
	if offset < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = offset
	return offset, nil
}

// Size of the image in bytes
func (m *MemFile) Size() int64 {
	return int64(len(m.Data))
}
