package containers

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/ostafen/blockid/internal/blockid"
	"github.com/stretchr/testify/require"
)

// buildLvm2Image builds a label sector at sectorOff (0x000 for the
// legacy sector-0 layout, 0x200 for the conventional real-world layout
// with the label in device sector 1).
func buildLvm2Image(t *testing.T, sectorOff uint64) []byte {
	t.Helper()

	rawUUID := uuid.New()
	textUUID := strings.ReplaceAll(rawUUID.String(), "-", "")
	require.Len(t, textUUID, 32)

	hdr := lvm2PVHeader{
		LabelID:    [8]byte(lvm2LabelMagic),
		SectorNum:  sectorOff / 512,
		DataOffset: 512,
		TypeMagic:  [8]byte(lvm2Magic),
	}
	copy(hdr.UUID[:], textUUID)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))

	img := make([]byte, sectorOff+512)
	copy(img[sectorOff:], buf.Bytes())

	label := img[sectorOff : sectorOff+512]
	zeroed := blockid.ZeroRegion(label, 16, 4)
	csum := blockid.LVM2CRC(zeroed[20:])
	binary.LittleEndian.PutUint32(label[16:20], csum)

	return img
}

func TestProbeLvm2_HappyPathLegacySectorZero(t *testing.T) {
	img := buildLvm2Image(t, 0x000)
	src := blockid.FileSource{R: sliceReaderAt(img), Sz: int64(len(img))}

	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{Lvm2Idinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeLvm2Member, r.Container.Type)
}

func TestProbeLvm2_HappyPathConventionalSectorOne(t *testing.T) {
	img := buildLvm2Image(t, 0x200)
	src := blockid.FileSource{R: sliceReaderAt(img), Sz: int64(len(img))}

	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{Lvm2Idinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeLvm2Member, r.Container.Type)
}

func TestProbeLvm2_BadChecksumRejected(t *testing.T) {
	img := buildLvm2Image(t, 0x200)
	img[0x200+100] ^= 0xff

	src := blockid.FileSource{R: sliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{Lvm2Idinfo})
	require.Error(t, err)
}

func TestProbeLvm1_NeverMatches(t *testing.T) {
	img := make([]byte, 512)
	copy(img, lvm1Magic)

	src := blockid.FileSource{R: sliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{Lvm1Idinfo})
	require.Error(t, err)
	var unknownErr *blockid.ErrUnknownFormat
	require.ErrorAs(t, err, &unknownErr)
}

func TestProbeLvmSnapshotCow_NeverMatches(t *testing.T) {
	img := make([]byte, 512)
	copy(img, snapcowMagic)

	src := blockid.FileSource{R: sliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{LvmSnapcowIdinfo})
	require.Error(t, err)
	var unknownErr *blockid.ErrUnknownFormat
	require.ErrorAs(t, err, &unknownErr)
}

func TestProbeLvmIntegrity_NeverMatches(t *testing.T) {
	img := make([]byte, 512)
	copy(img, integrityMagic)

	src := blockid.FileSource{R: sliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{LvmIntegrityIdinfo})
	require.Error(t, err)
	var unknownErr *blockid.ErrUnknownFormat
	require.ErrorAs(t, err, &unknownErr)
}

func buildVerityImage(t *testing.T) []byte {
	t.Helper()

	sb := veritySb{
		Magic:   [8]byte(veritySBMagic),
		Version: 1,
	}
	copy(sb.UUID[:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	copy(sb.Algorithm[:], "sha256")

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, sb))
	raw := make([]byte, 512)
	copy(raw, buf.Bytes())
	return raw
}

func TestProbeVerity_HappyPath(t *testing.T) {
	img := buildVerityImage(t)
	src := blockid.FileSource{R: sliceReaderAt(img), Sz: int64(len(img))}

	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{LvmVerityIdinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeLvmVerityHash, r.Container.Type)
}

func TestProbeVerity_UnsupportedVersionRejected(t *testing.T) {
	img := buildVerityImage(t)
	binary.LittleEndian.PutUint32(img[8:12], 2) // version field right after the 8-byte magic

	src := blockid.FileSource{R: sliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{LvmVerityIdinfo})
	require.Error(t, err)
}
