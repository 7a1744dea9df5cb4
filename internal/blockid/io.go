package blockid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ByteSource is the positioned-read capability every probe session is
// built on (spec.md §3: "a value with two capabilities: read_exact and
// size"). A regular file and a block device both satisfy it; the source
// is read-only from the core's perspective.
type ByteSource interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}

// ReadExact reads exactly n bytes at offset; a short read is an I/O
// error, never silently truncated (spec.md §4.3).
func ReadExact(src ByteSource, offset uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := src.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, &ErrIO{Op: fmt.Sprintf("read_exact(offset=%d, n=%d)", offset, n), Err: err}
	}
	if read != n {
		return nil, &ErrIO{Op: fmt.Sprintf("read_exact(offset=%d, n=%d)", offset, n),
			Err: fmt.Errorf("short read: got %d bytes", read)}
	}
	return buf, nil
}

// ReadSector reads the 512-byte sector at sectorIndex<<9, per spec.md
// §4.3's read_sector contract. Note this is always the fixed 512-byte
// unit regardless of the device's logical sector size; callers scale by
// the real sector size themselves where that distinction matters (GPT).
func ReadSector(src ByteSource, sectorIndex uint64) ([]byte, error) {
	return ReadExact(src, sectorIndex<<9, 512)
}

// ReadStruct reads size_of(T) bytes at offset and decodes them into T
// using the supplied byte order, per spec.md §4.3's read_struct contract:
// an unaligned on-disk structure whose field endianness is fixed at the
// type level, never a host-order pointer cast. T must be a fixed-layout
// struct of only fixed-size fields (arrays, uintN, intN) — the same
// discipline original_source enforces with zerocopy's FromBytes/Unaligned.
func ReadStruct[T any](src ByteSource, offset uint64, order binary.ByteOrder) (T, error) {
	var out T
	n := binary.Size(out)
	if n < 0 {
		return out, &ErrInvalidHeader{Detector: "io", Reason: "type has no fixed binary size"}
	}
	buf, err := ReadExact(src, offset, n)
	if err != nil {
		return out, err
	}
	if err := binary.Read(bytes.NewReader(buf), order, &out); err != nil {
		return out, &ErrInvalidHeader{Detector: "io", Reason: err.Error()}
	}
	return out, nil
}

// ReadStructFromBytes decodes T out of an already-in-memory buffer, the
// same discipline as ReadStruct but for callers that have read a larger
// span up front (e.g. a GPT entry table decoded entry-by-entry out of one
// CRC-verified read).
func ReadStructFromBytes[T any](buf []byte, order binary.ByteOrder) (T, error) {
	var out T
	if err := binary.Read(bytes.NewReader(buf), order, &out); err != nil {
		return out, &ErrInvalidHeader{Detector: "io", Reason: err.Error()}
	}
	return out, nil
}

// FileSource adapts an io.ReaderAt with a known size to ByteSource.
type FileSource struct {
	R    io.ReaderAt
	Sz   int64
}

func (f FileSource) ReadAt(p []byte, off int64) (int, error) { return f.R.ReadAt(p, off) }
func (f FileSource) Size() int64                              { return f.Sz }
