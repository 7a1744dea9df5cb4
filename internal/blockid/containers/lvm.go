package containers

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/ostafen/blockid/internal/blockid"
)

var (
	lvm1Magic      = []byte("HM\x01\x00")
	lvm2Magic      = []byte("LVM2 001")
	lvm2LabelMagic = []byte("LABELONE")
	snapcowMagic   = []byte("SnAp")
	veritySBMagic  = []byte("verity\x00\x00")
	integrityMagic = []byte("integrt\x00")
)

// lvm2PVHeader is the LVM2 label sector's physical-volume header,
// grounded on original_source/containers/lvm.rs's Lvm2PvHeader (label
// sector identified by LABELONE at the start, the type-specific "LVM2
// 001" magic follows, then a UUID and a CRC over the label sector).
type lvm2PVHeader struct {
	LabelID    [8]byte
	SectorNum  uint64
	CRC32      uint32
	DataOffset uint32
	TypeMagic  [8]byte
	UUID       [32]byte
}

// veritySb is DM-verity's superblock, grounded on
// original_source/containers/lvm.rs's VeritySb. Unlike LVM1/snapcow/
// integrity, DM-verity is fully implemented here (spec.md §4.6: "all
// other operations fully implemented").
type veritySb struct {
	Magic         [8]byte
	Version       uint32
	HashType      uint32
	UUID          [16]byte
	Algorithm     [32]byte
	DataBlockBits uint8
	_             [7]byte
}

// lvm2LabelSectorOffsets are the two byte offsets a label sector can sit
// at: device offset 0, or the conventional real-world layout with the
// label in device sector 1 (offset 0x200). The "LVM2 001" type magic
// sits 0x18 bytes into whichever sector holds the label, matching
// original_source/containers/lvm.rs's LVM2_ID_INFO magics at 0x018 and
// 0x218 exactly.
var lvm2LabelSectorOffsets = []uint64{0x000, 0x200}

var Lvm2Idinfo = blockid.Idinfo{
	Name:        "lvm2",
	Usage:       blockid.UsageRaid,
	CategoryBit: blockid.FilterContainer,
	Magics: []blockid.Magic{
		{Bytes: lvm2Magic, Offset: 0x018},
		{Bytes: lvm2Magic, Offset: 0x218},
	},
	Probe: probeLvm2,
}

// Lvm1Idinfo, LvmSnapcowIdinfo, and LvmIntegrityIdinfo are registered but
// deliberately refuse to match (ErrUnknownFormat), per spec.md §9's
// resolution of the corresponding Open Question. original_source's
// probe_lvm1/probe_snapcow/probe_integrity are `Ok(())` with no result
// ever pushed; taken literally under this engine's first-match-wins
// dispatch that would behave as *silent empty success* — a detector
// claiming the format matched while reporting nothing. That contradicts
// spec.md's own "refuse to match" framing for these three, so they are
// implemented here as an explicit non-match instead.
var Lvm1Idinfo = blockid.Idinfo{
	Name:        "lvm1",
	Usage:       blockid.UsageRaid,
	CategoryBit: blockid.FilterContainer,
	Magics:      []blockid.Magic{{Bytes: lvm1Magic, Offset: 0}},
	Probe: func(blockid.ByteSource, *blockid.Probe) (blockid.Result, error) {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "lvm1", Reason: "LVM1 member recognition not implemented"}
	},
}

var LvmSnapcowIdinfo = blockid.Idinfo{
	Name:        "lvm_snapshot_cow",
	Usage:       blockid.UsageOther,
	CategoryBit: blockid.FilterContainer,
	Magics:      []blockid.Magic{{Bytes: snapcowMagic, Offset: 0}},
	Probe: func(blockid.ByteSource, *blockid.Probe) (blockid.Result, error) {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "lvm_snapshot_cow", Reason: "DM snapshot-cow recognition not implemented"}
	},
}

var LvmIntegrityIdinfo = blockid.Idinfo{
	Name:        "dm_integrity",
	Usage:       blockid.UsageOther,
	CategoryBit: blockid.FilterContainer,
	Magics:      []blockid.Magic{{Bytes: integrityMagic, Offset: 0}},
	Probe: func(blockid.ByteSource, *blockid.Probe) (blockid.Result, error) {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "dm_integrity", Reason: "DM-integrity recognition not implemented"}
	},
}

var LvmVerityIdinfo = blockid.Idinfo{
	Name:        "dm_verity_hash",
	Usage:       blockid.UsageOther,
	CategoryBit: blockid.FilterContainer,
	Magics:      []blockid.Magic{{Bytes: veritySBMagic, Offset: 0}},
	Probe:       probeVerity,
}

func probeLvm2(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	for _, sectorOff := range lvm2LabelSectorOffsets {
		hdr, err := blockid.ReadStruct[lvm2PVHeader](src, sectorOff, binary.LittleEndian)
		if err != nil || hdr.LabelID != [8]byte(lvm2LabelMagic) || hdr.TypeMagic != [8]byte(lvm2Magic) {
			continue
		}

		label, err := blockid.ReadExact(src, sectorOff, 512)
		if err != nil {
			return blockid.Result{}, err
		}
		zeroed := blockid.ZeroRegion(label, 16, 4) // CRC32 field offset within the label sector
		if blockid.LVM2CRC(zeroed[20:]) != hdr.CRC32 {
			return blockid.Result{}, &blockid.ErrChecksumMismatch{Detector: "lvm2",
				Expected: uint64(hdr.CRC32), Observed: uint64(blockid.LVM2CRC(zeroed[20:]))}
		}

		u, err := lvmTextUUID(hdr.UUID[:])
		if err != nil {
			return blockid.Result{}, &blockid.ErrInvalidHeader{Detector: "lvm2", Reason: err.Error()}
		}
		bu := blockid.NewStandardUUID(u)
		return blockid.ContainerResultOf(blockid.ContainerResult{
			Type:          blockid.BlockTypeLvm2Member,
			UUID:          &bu,
			Usage:         blockid.UsageRaid,
			SBMagic:       lvm2Magic,
			SBMagicOffset: u64ptr(sectorOff + 0x18),
			Endianness:    endPtr(blockid.LittleEndian),
		}), nil
	}
	return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "lvm2", Reason: "no LABELONE/\"LVM2 001\" label sector at offset 0x000 or 0x200"}
}

func probeVerity(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	sb, err := blockid.ReadStruct[veritySb](src, 0, binary.LittleEndian)
	if err != nil {
		return blockid.Result{}, err
	}
	if sb.Magic != [8]byte(veritySBMagic) {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "dm_verity_hash", Reason: "magic mismatch"}
	}
	if sb.Version != 1 {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "dm_verity_hash", Reason: "unsupported verity version"}
	}
	u, err := uuid.FromBytes(sb.UUID[:])
	if err != nil {
		return blockid.Result{}, &blockid.ErrInvalidHeader{Detector: "dm_verity_hash", Reason: err.Error()}
	}
	bu := blockid.NewStandardUUID(u)
	return blockid.ContainerResultOf(blockid.ContainerResult{
		Type:          blockid.BlockTypeLvmVerityHash,
		UUID:          &bu,
		Usage:         blockid.UsageOther,
		Version:       versionPtr(blockid.NewVersionNumber(uint64(sb.Version))),
		SBMagic:       veritySBMagic,
		SBMagicOffset: u64ptr(0),
		Endianness:    endPtr(blockid.LittleEndian),
	}), nil
}

// lvmTextUUID parses LVM2's 32-character un-hyphenated hex UUID text
// field into a canonical uuid.UUID by re-inserting the standard
// hyphenation, mirroring original_source's handling of Lvm2PvHeader.uuid.
func lvmTextUUID(raw []byte) (uuid.UUID, error) {
	s, err := blockid.DecodeASCIIStrict(raw)
	if err != nil {
		return uuid.UUID{}, err
	}
	if len(s) != 32 {
		return uuid.UUID{}, &blockid.ErrDecode{Detector: "lvm2", Reason: "uuid text field is not 32 hex characters"}
	}
	hyphenated := s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
	return uuid.Parse(hyphenated)
}
