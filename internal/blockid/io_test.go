package blockid_test

import (
	"encoding/binary"
	"testing"

	"github.com/ostafen/blockid/internal/blockid"
	"github.com/stretchr/testify/require"
)

type header struct {
	Magic   uint32
	Version uint16
	_       uint16
}

func TestReadExact(t *testing.T) {
	src := blockid.FileSource{R: sliceReaderAt{data: []byte("0123456789")}, Sz: 10}

	buf, err := blockid.ReadExact(src, 2, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("2345"), buf)

	_, err = blockid.ReadExact(src, 8, 4)
	require.Error(t, err)
	var ioErr *blockid.ErrIO
	require.ErrorAs(t, err, &ioErr)
}

func TestReadStruct(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], 0xdeadbeef)
	binary.LittleEndian.PutUint16(raw[4:], 7)
	src := blockid.FileSource{R: sliceReaderAt{data: raw}, Sz: int64(len(raw))}

	h, err := blockid.ReadStruct[header](src, 0, binary.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), h.Magic)
	require.Equal(t, uint16(7), h.Version)
}

func TestReadStructFromBytes(t *testing.T) {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint32(raw[0:], 1)
	binary.BigEndian.PutUint16(raw[4:], 2)

	h, err := blockid.ReadStructFromBytes[header](raw, binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, uint32(1), h.Magic)
	require.Equal(t, uint16(2), h.Version)
}

type sliceReaderAt struct{ data []byte }

func (s sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.data)) {
		return 0, nil
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, nil
	}
	return n, nil
}
