package blockid_test

import (
	"testing"

	"github.com/ostafen/blockid/internal/blockid"
	"github.com/stretchr/testify/require"
)

func TestDecodeUTF16_SurrogatePairRoundTrips(t *testing.T) {
	// U+1F600 GRINNING FACE, little-endian surrogate pair D83D DE00.
	raw := []byte{0x3D, 0xD8, 0x00, 0xDE}

	strict, err := blockid.DecodeUTF16Strict(raw, true)
	require.NoError(t, err)
	require.Equal(t, "\U0001F600", strict)

	lossy := blockid.DecodeUTF16Lossy(raw, true)
	require.Equal(t, "\U0001F600", lossy)
}

func TestDecodeUTF16_TruncatedMidPair(t *testing.T) {
	// Only the high surrogate of the same pair, with nothing following.
	raw := []byte{0x3D, 0xD8}

	_, err := blockid.DecodeUTF16Strict(raw, true)
	require.Error(t, err)

	lossy := blockid.DecodeUTF16Lossy(raw, true)
	require.Equal(t, "�", lossy)
}
