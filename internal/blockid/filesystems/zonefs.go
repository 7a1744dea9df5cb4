package filesystems

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/ostafen/blockid/internal/blockid"
)

// zonefsSuperblock is ZoneFS's single fixed-offset superblock,
// little-endian, CRC-32/ISO-HDLC gated the same "zero the checksum
// field, CRC the rest of the struct" way as ext4's metadata-csum and
// XFS v5.
type zonefsSuperblock struct {
	Magic    uint32
	Checksum uint32
	Features uint64
	UUID     [16]byte
	Label    [64]byte
	_        [88]byte
}

const zonefsSBOffset = 0

var zonefsMagic = uint32(0x5a4f4653) // "ZOFS"

var ZonefsIdinfo = blockid.Idinfo{
	Name:        "zonefs",
	Usage:       blockid.UsageFilesystem,
	CategoryBit: blockid.FilterFilesystem,
	Magics:      []blockid.Magic{{Bytes: []byte{0x53, 0x46, 0x4f, 0x5a}, Offset: zonefsSBOffset}},
	Probe:       probeZonefs,
}

func probeZonefs(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	sb, err := blockid.ReadStruct[zonefsSuperblock](src, zonefsSBOffset, binary.LittleEndian)
	if err != nil {
		return blockid.Result{}, err
	}
	if sb.Magic != zonefsMagic {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "zonefs", Reason: "bad magic"}
	}

	raw, err := blockid.ReadExact(src, zonefsSBOffset, binary.Size(sb))
	if err != nil {
		return blockid.Result{}, err
	}
	zeroed := blockid.ZeroRegion(raw, 4, 4) // Checksum field at offset 4
	got := blockid.CRC32IsoHdlc(zeroed)
	if got != sb.Checksum {
		return blockid.Result{}, &blockid.ErrChecksumMismatch{Detector: "zonefs",
			Expected: uint64(sb.Checksum), Observed: uint64(got)}
	}

	u, err := uuid.FromBytes(sb.UUID[:])
	if err != nil {
		return blockid.Result{}, &blockid.ErrInvalidHeader{Detector: "zonefs", Reason: err.Error()}
	}
	bu := blockid.NewStandardUUID(u)
	label := blockid.DecodeUTF8Lossy(sb.Label[:])
	var labelPtr *string
	if label != "" {
		labelPtr = &label
	}

	return blockid.FilesystemResultOf(blockid.FilesystemResult{
		Type:          blockid.BlockTypeZonefs,
		UUID:          &bu,
		Label:         labelPtr,
		Usage:         blockid.UsageFilesystem,
		SBMagic:       []byte{0x53, 0x46, 0x4f, 0x5a},
		SBMagicOffset: u64ptr(zonefsSBOffset),
		Endianness:    endPtr(blockid.LittleEndian),
	}), nil
}
