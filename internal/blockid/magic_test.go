package blockid_test

import (
	"testing"

	"github.com/ostafen/blockid/internal/blockid"
	"github.com/stretchr/testify/require"
)

func TestMatchMagic(t *testing.T) {
	buf := make([]byte, 16)
	copy(buf[4:], []byte("ABCD"))

	candidates := []blockid.Magic{
		{Bytes: []byte("ZZZZ"), Offset: 0},
		{Bytes: []byte("ABCD"), Offset: 4},
	}
	require.True(t, blockid.MatchMagic(buf, candidates))
	require.False(t, blockid.MatchMagic(buf, candidates[:1]))
}

func TestMatchMagic_OffsetPastBufferIsNoMatch(t *testing.T) {
	buf := make([]byte, 4)
	candidates := []blockid.Magic{{Bytes: []byte("AB"), Offset: 8}}
	require.False(t, blockid.MatchMagic(buf, candidates))
}

func TestMatchMagicAt_SparseOffsets(t *testing.T) {
	data := make([]byte, 4096)
	copy(data[4090:], []byte("SWAP"))
	src := blockid.FileSource{R: sliceReaderAt{data: data}, Sz: int64(len(data))}

	candidates := []blockid.Magic{
		{Bytes: []byte("NOPE"), Offset: 0},
		{Bytes: []byte("SWAP"), Offset: 4090},
	}
	idx, err := blockid.MatchMagicAt(src, candidates)
	require.NoError(t, err)
	require.Equal(t, 1, idx)
}

func TestMatchMagicAt_NoneMatch(t *testing.T) {
	src := blockid.FileSource{R: sliceReaderAt{data: make([]byte, 16)}, Sz: 16}
	idx, err := blockid.MatchMagicAt(src, []blockid.Magic{{Bytes: []byte("AB"), Offset: 0}})
	require.NoError(t, err)
	require.Equal(t, -1, idx)
}
