package partitions_test

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/ostafen/blockid/internal/blockid"
	"github.com/ostafen/blockid/internal/blockid/partitions"
	"github.com/stretchr/testify/require"
)

const sectorSize = 512

// buildGptImage constructs a zero-filled device image with a valid
// protective MBR, a primary GPT header+entry table at LBA 1/2, and a
// byte-identical backup header+entry table at the image's last LBA,
// one partition entry spanning lbaFirst..lbaLast named "SYSTEM".
func buildGptImage(t *testing.T, totalSectors uint64, lbaFirst, lbaLast uint64) []byte {
	t.Helper()
	img := make([]byte, totalSectors*sectorSize)

	// Protective MBR: signature + sole entry 0 of type 0xEE.
	img[510], img[511] = 0x55, 0xAA
	img[0x1BE+4] = 0xEE

	diskGUID := guidToMixedEndianBytes(uuid.New())
	partGUID := guidToMixedEndianBytes(uuid.New())
	typeGUID := guidToMixedEndianBytes(uuid.New())

	entry := make([]byte, 128)
	copy(entry[0:16], typeGUID[:])
	copy(entry[16:32], partGUID[:])
	binary.LittleEndian.PutUint64(entry[32:40], lbaFirst)
	binary.LittleEndian.PutUint64(entry[40:48], lbaLast)
	name := utf16leOf("SYSTEM")
	copy(entry[56:56+len(name)], name)

	lastLBA := totalSectors - 1

	writeHeader := func(headerLBA, entryLBA uint64, corruptByte int) {
		hdr := make([]byte, 92)
		copy(hdr[0:8], []byte("EFI PART"))
		binary.LittleEndian.PutUint32(hdr[8:12], 0x00010000) // revision 1.0
		binary.LittleEndian.PutUint32(hdr[12:16], 92)        // header size
		// hdr[16:20] CRC32 filled below
		binary.LittleEndian.PutUint32(hdr[20:24], 0) // reserved
		binary.LittleEndian.PutUint64(hdr[24:32], headerLBA)
		binary.LittleEndian.PutUint64(hdr[32:40], lastLBA-headerLBA) // backup LBA (not used by probe)
		binary.LittleEndian.PutUint64(hdr[40:48], 34)
		binary.LittleEndian.PutUint64(hdr[48:56], lastLBA-34)
		copy(hdr[56:72], diskGUID[:])
		binary.LittleEndian.PutUint64(hdr[72:80], entryLBA)
		binary.LittleEndian.PutUint32(hdr[80:84], 1)   // num entries
		binary.LittleEndian.PutUint32(hdr[84:88], 128) // entry size
		binary.LittleEndian.PutUint32(hdr[88:92], blockid.CRC32IsoHdlc(entry))

		crc := blockid.CRC32IsoHdlc(blockid.ZeroRegion(hdr, 16, 4))
		binary.LittleEndian.PutUint32(hdr[16:20], crc)

		if corruptByte >= 0 {
			hdr[corruptByte] ^= 0xff
		}

		copy(img[headerLBA*sectorSize:], hdr)
		copy(img[entryLBA*sectorSize:], entry)
	}

	// Primary header at LBA 1, entries at LBA 2: corrupt byte 20 (the
	// reserved field, well outside header_crc32 at [16:20]) so its CRC no
	// longer matches and the primary parse fails.
	writeHeader(1, 2, 20)
	// Backup header at the last LBA, entries placed just before it;
	// left intact.
	writeHeader(lastLBA, lastLBA-2, -1)

	return img
}

func guidToMixedEndianBytes(u uuid.UUID) [16]byte {
	var b [16]byte
	b[3], b[2], b[1], b[0] = u[0], u[1], u[2], u[3]
	b[5], b[4] = u[4], u[5]
	b[7], b[6] = u[6], u[7]
	copy(b[8:], u[8:])
	return b
}

func utf16leOf(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	return out
}

func TestProbeGpt_FallsBackToIntactBackupHeader(t *testing.T) {
	const totalSectors = 4096
	const lbaFirst, lbaLast = 2048, 4000

	img := buildGptImage(t, totalSectors, lbaFirst, lbaLast)
	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}

	p := blockid.New(src, sectorSize)
	r, err := p.RunRegistry([]blockid.Idinfo{partitions.GptIdinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeGpt, r.PartTable.Type)
	require.Len(t, r.PartTable.Partitions, 1)

	part := r.PartTable.Partitions[0]
	require.Equal(t, uint64(lbaFirst*sectorSize), part.Offset)
	require.Equal(t, uint64((lbaLast-lbaFirst+1)*sectorSize), part.Size)
	require.Equal(t, "SYSTEM", *part.Name)
}

func TestProbeGpt_NoProtectiveMBRFailsWithoutForce(t *testing.T) {
	const totalSectors = 4096
	img := buildGptImage(t, totalSectors, 2048, 4000)
	img[0x1BE+4] = 0x83 // plain Linux partition type, not 0xEE

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, sectorSize)
	_, err := p.RunRegistry([]blockid.Idinfo{partitions.GptIdinfo})
	require.Error(t, err)

	p2 := blockid.New(src, sectorSize)
	p2.Flags.ForceGPTPMBR = true
	r, err := p2.RunRegistry([]blockid.Idinfo{partitions.GptIdinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeGpt, r.PartTable.Type)
}

func TestProbeGpt_ProtectiveEntryInNonZeroSlotStillValid(t *testing.T) {
	const totalSectors = 4096
	img := buildGptImage(t, totalSectors, 2048, 4000)

	// Move the 0xEE protective entry from slot 0 to slot 2; a real PMBR
	// whose active entry isn't slot 0 must still be recognized.
	img[0x1BE+4] = 0x00
	img[0x1BE+2*16+4] = 0xEE

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, sectorSize)
	r, err := p.RunRegistry([]blockid.Idinfo{partitions.GptIdinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeGpt, r.PartTable.Type)
}

type byteSliceReaderAt []byte

func (b byteSliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, nil
	}
	n := copy(p, b[off:])
	return n, nil
}
