package blockid_test

import (
	"bytes"
	"testing"

	"github.com/ostafen/blockid/internal/blockid"
	"github.com/stretchr/testify/require"
)

func TestCRC32IsoHdlc(t *testing.T) {
	require.Equal(t, uint32(0xcbf43926), blockid.CRC32IsoHdlc([]byte("123456789")))
	require.True(t, blockid.VerifyCRC32IsoHdlc([]byte("123456789"), 0xcbf43926))
}

func TestCRC32C(t *testing.T) {
	require.Equal(t, uint32(0xe3069283), blockid.CRC32C([]byte("123456789")))
	require.True(t, blockid.VerifyCRC32C([]byte("123456789"), 0xe3069283))
}

func TestLVM2CRC_DiffersFromCRC32C(t *testing.T) {
	buf := []byte("LVM2 001some-header-bytes")
	require.NotEqual(t, blockid.CRC32C(buf), blockid.LVM2CRC(buf))
	require.Equal(t, blockid.LVM2CRC(buf), blockid.LVM2CRC(buf))
}

func TestFletcher64_ZeroBuffer(t *testing.T) {
	buf := make([]byte, 64)
	sum := blockid.Fletcher64(buf)
	require.Equal(t, uint64(0xffffffffffffffff), sum)
}

func TestExfatBootChecksum_RoundTrip(t *testing.T) {
	sectors := make([]byte, 11*512)
	for i := range sectors {
		sectors[i] = byte(i)
	}
	sum := blockid.ExfatBootChecksum(sectors)

	checksumSector := make([]byte, 512)
	for i := 0; i+4 <= len(checksumSector); i += 4 {
		checksumSector[i] = byte(sum)
		checksumSector[i+1] = byte(sum >> 8)
		checksumSector[i+2] = byte(sum >> 16)
		checksumSector[i+3] = byte(sum >> 24)
	}
	require.True(t, blockid.VerifyExfatBootChecksum(sectors, checksumSector))

	checksumSector[0] ^= 0xff
	require.False(t, blockid.VerifyExfatBootChecksum(sectors, checksumSector))
}

func TestExfatBootChecksum_SkipsVolatileFields(t *testing.T) {
	a := make([]byte, 11*512)
	b := make([]byte, 11*512)
	b[106], b[107], b[112] = 0xaa, 0xbb, 0xcc
	require.Equal(t, blockid.ExfatBootChecksum(a), blockid.ExfatBootChecksum(b))
}

func TestZeroRegion(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	out := blockid.ZeroRegion(buf, 1, 2)
	require.Equal(t, []byte{1, 0, 0, 4, 5}, out)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, buf, "original buffer must be untouched")
	require.False(t, bytes.Equal(out, buf))
}
