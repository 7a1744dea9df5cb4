package filesystems

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ostafen/blockid/internal/blockid"
	"github.com/stretchr/testify/require"
)

// buildExtImage follows spec.md §8's ext4-rejected-as-ext2 scenario:
// HAS_JOURNAL compat, EXTENTS|64BIT incompat, METADATA_CSUM ro-compat,
// volume name "DATA", a fixed UUID. The superblock's own checksum is
// computed and written so the metadata-csum gate passes.
func buildExtImage(t *testing.T) []byte {
	t.Helper()

	sb := extSuperblock{
		Magic:           extMagic,
		LogBlockSize:    2, // 1024 << 2 = 4096-byte blocks
		BlocksCountLo:   1000,
		FeatureCompat:   0x0004, // COMPAT_HAS_JOURNAL
		FeatureIncompat: incompatExtents | incompat64Bit,
		FeatureROCompat: roCompatMetadataCsum,
	}
	copy(sb.VolumeName[:], "DATA")
	sb.UUID = [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, sb))
	sbBytes := buf.Bytes()
	require.LessOrEqual(t, len(sbBytes), 1024)

	block := make([]byte, 1024)
	copy(block, sbBytes)

	const csumFieldOffset = 1020
	csum := blockid.CRC32C(blockid.ZeroRegion(block, csumFieldOffset, 4))
	binary.LittleEndian.PutUint32(block[csumFieldOffset:], csum)

	img := make([]byte, extSBOffset+1024)
	copy(img[extSBOffset:], block)
	return img
}

func TestProbeExt_HasJournalReportsExt4NeverExt2(t *testing.T) {
	img := buildExtImage(t)
	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}

	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{Ext4Idinfo, Ext3Idinfo, Ext2Idinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeExt4, r.Filesystem.Type)
	require.Equal(t, "DATA", *r.Filesystem.Label)
	require.Equal(t, "01020304-0506-0708-090a-0b0c0d0e0f10", r.Filesystem.UUID.String())
}

func TestProbeExt4_JournalDevIncompatRejected(t *testing.T) {
	img := buildExtImage(t)
	// Overwrite FeatureIncompat in place: same offset the struct
	// serializer used, recomputed so the test doesn't depend on a
	// second binary.Write call matching byte-for-byte.
	sb := extSuperblock{
		Magic:           extMagic,
		FeatureIncompat: incompatJournalDev,
	}
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, sb))
	block := make([]byte, 1024)
	copy(block, buf.Bytes())
	const csumFieldOffset = 1020
	csum := blockid.CRC32C(blockid.ZeroRegion(block, csumFieldOffset, 4))
	binary.LittleEndian.PutUint32(block[csumFieldOffset:], csum)

	img2 := make([]byte, extSBOffset+1024)
	copy(img2[extSBOffset:], block)

	src := blockid.FileSource{R: byteSliceReaderAt(img2), Sz: int64(len(img2))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{Ext4Idinfo})
	require.Error(t, err)
}

func TestProbeExt_64BitFSLastBlockIncludesHighWord(t *testing.T) {
	sb := extSuperblock{
		Magic:           extMagic,
		LogBlockSize:    2,
		BlocksCountLo:   0x00000042,
		BlocksCountHi:   0x00000001,
		FeatureIncompat: incompatExtents | incompat64Bit,
		FeatureROCompat: roCompatMetadataCsum,
	}
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, sb))
	block := make([]byte, 1024)
	copy(block, buf.Bytes())
	const csumFieldOffset = 1020
	csum := blockid.CRC32C(blockid.ZeroRegion(block, csumFieldOffset, 4))
	binary.LittleEndian.PutUint32(block[csumFieldOffset:], csum)

	img := make([]byte, extSBOffset+1024)
	copy(img[extSBOffset:], block)

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{Ext4Idinfo})
	require.NoError(t, err)
	require.NotNil(t, r.Filesystem.FSLastBlock)
	require.Equal(t, uint64(0x100000042), *r.Filesystem.FSLastBlock)
}

func TestProbeExt_ZeroJournalUUIDLeavesJournalFieldsNil(t *testing.T) {
	img := buildExtImage(t)

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{Ext4Idinfo})
	require.NoError(t, err)
	require.Nil(t, r.Filesystem.JournalUUID, "internal log field must not be populated by this detector")
	require.Nil(t, r.Filesystem.ExtJournal, "zero journal UUID means the journal is internal, not external")
}

func TestProbeExt_MetadataCsumMismatchRejected(t *testing.T) {
	img := buildExtImage(t)
	img[extSBOffset+136] ^= 0xff // corrupt a superblock byte covered by the csum

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{Ext4Idinfo})
	require.Error(t, err)
}
