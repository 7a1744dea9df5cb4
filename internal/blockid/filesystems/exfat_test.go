package filesystems

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ostafen/blockid/internal/blockid"
	"github.com/stretchr/testify/require"
)

// buildExfatImage follows spec.md §8's exFAT happy-path scenario: a
// boot sector with boot-per-sector-shift=9, sectors-per-cluster-shift=3,
// one FAT, root dir at cluster 2, volume_length=0x2000, serial
// DE AD BE EF, and a valid 12-sector boot checksum.
func buildExfatImage(t *testing.T) []byte {
	t.Helper()

	sb := exfatBootSector{
		FSName:         exfatMagic,
		FATOffset:      24,
		FATLength:      8,
		ClusterHeapOff: 32,
		ClusterCount:   100,
		RootDirCluster: 2,
		VolumeSerial:   0xEFBEADDE,
		VolumeLength:   0x2000,
		FSRevision:     0x0100,
		BytesPerSecLog: 9,
		SecPerClusLog:  3,
		NumFATs:        1,
		Signature:      0xAA55,
	}
	sb.JumpBoot = [3]byte{0xEB, 0x76, 0x90}

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, sb))
	boot := buf.Bytes()
	require.Len(t, boot, 512)

	img := make([]byte, 12*512)
	copy(img, boot)
	// Sectors 1..10 (extended boot, OEM parameters, reserved) stay zero
	// and are included unmodified in the checksum input.
	csum := blockid.ExfatBootChecksum(img[:11*512])
	csumSector := make([]byte, 512)
	for i := 0; i+4 <= 512; i += 4 {
		binary.LittleEndian.PutUint32(csumSector[i:i+4], csum)
	}
	copy(img[11*512:12*512], csumSector)

	return img
}

func TestProbeExfat_HappyPath(t *testing.T) {
	img := buildExfatImage(t)
	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}

	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeExfat, r.Filesystem.Type)
	require.Equal(t, "EFBE-ADDE", r.Filesystem.UUID.String())
	require.Equal(t, uint64(0x200)*0x2000, *r.Filesystem.FSSize)
}

func TestProbeExfat_RegistryOrderBeatsVfat(t *testing.T) {
	// The same image also satisfies VfatIdinfo's bare 0x55AA-at-510
	// magic; exFAT must still win because it is registered first
	// (spec.md §8's registry-order-invariance property).
	img := buildExfatImage(t)
	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}

	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo, VfatIdinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeExfat, r.Filesystem.Type)
}

func TestProbeExfat_BadChecksumRejected(t *testing.T) {
	img := buildExfatImage(t)
	img[11*512] ^= 0xff // corrupt one word of the checksum sector

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.Error(t, err)
}

func TestProbeExfat_TruncatedImageChecksumReadFailureRejected(t *testing.T) {
	img := buildExfatImage(t)
	img = img[:6*512] // too short to read the full 11-sector checksum span

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.Error(t, err)
}

func TestProbeExfat_BadBootJumpRejected(t *testing.T) {
	img := buildExfatImage(t)
	img[0] = 0x00

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.Error(t, err)
}

func TestProbeExfat_MustBeZeroRegionNonzeroRejected(t *testing.T) {
	img := buildExfatImage(t)
	img[11] ^= 0xff // inside the 53-byte must-be-zero region starting at offset 11

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.Error(t, err)
}

func TestProbeExfat_NumFATsOutOfRangeRejected(t *testing.T) {
	img := buildExfatImage(t)
	img[0x6E] = 3 // NumFATs field, must be 1 or 2

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.Error(t, err)
}

func TestProbeExfat_BytesPerSectorShiftOutOfRangeRejected(t *testing.T) {
	img := buildExfatImage(t)
	img[0x6C] = 13 // BytesPerSecLog field, must be in [9,12]

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.Error(t, err)
}

func TestProbeExfat_SectorsPerClusterShiftOutOfRangeRejected(t *testing.T) {
	img := buildExfatImage(t)
	img[0x6D] = 20 // SecPerClusLog field; with BytesPerSecLog=9 the max allowed is 16

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.Error(t, err)
}

func TestProbeExfat_RootDirClusterOutOfRangeRejected(t *testing.T) {
	img := buildExfatImage(t)
	binary.LittleEndian.PutUint32(img[0x60:0x64], 1) // RootDirCluster field, must be >= 2

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	_, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.Error(t, err)
}

// buildExfatImageWithLabel extends the happy-path layout with a root
// directory at cluster 2 containing a single volume-label entry, so
// findExfatLabel's cluster-chain walk has real data to parse.
func buildExfatImageWithLabel(t *testing.T) []byte {
	t.Helper()

	sb := exfatBootSector{
		FSName:         exfatMagic,
		FATOffset:      24,
		FATLength:      8,
		ClusterHeapOff: 40,
		ClusterCount:   100,
		RootDirCluster: 2,
		VolumeSerial:   0xEFBEADDE,
		VolumeLength:   0x2000,
		FSRevision:     0x0100,
		BytesPerSecLog: 9,
		SecPerClusLog:  0,
		NumFATs:        1,
		Signature:      0xAA55,
	}
	sb.JumpBoot = [3]byte{0xEB, 0x76, 0x90}

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, sb))
	boot := buf.Bytes()
	require.Len(t, boot, 512)

	const rootDirOffset = 40 * 512
	img := make([]byte, rootDirOffset+512)
	copy(img, boot)

	entry := make([]byte, 32)
	entry[0] = 0x83 // EXFAT_ENTRY_LABEL
	entry[1] = 4    // label length in UTF-16 code units
	copy(entry[2:], []byte{'T', 0x00, 'E', 0x00, 'S', 0x00, 'T', 0x00})
	copy(img[rootDirOffset:], entry)

	csum := blockid.ExfatBootChecksum(img[:11*512])
	csumSector := make([]byte, 512)
	for i := 0; i+4 <= 512; i += 4 {
		binary.LittleEndian.PutUint32(csumSector[i:i+4], csum)
	}
	copy(img[11*512:12*512], csumSector)

	return img
}

func TestProbeExfat_LabelParsedFromRootDirectory(t *testing.T) {
	img := buildExfatImageWithLabel(t)
	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}

	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{ExfatIdinfo})
	require.NoError(t, err)
	require.NotNil(t, r.Filesystem.Label)
	require.Equal(t, "TEST", *r.Filesystem.Label)
}

type byteSliceReaderAt []byte

func (b byteSliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, nil
	}
	n := copy(p, b[off:])
	return n, nil
}
