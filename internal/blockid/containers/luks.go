// Package containers implements the crypto/RAID container detector
// family: LUKS1/LUKS2/LUKS2-Opal and the LVM2/LVM1/DM family.
package containers

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/ostafen/blockid/internal/blockid"
)

var (
	luks1Magic      = []byte{'L', 'U', 'K', 'S', 0xBA, 0xBE}
	luks2Magic      = []byte{'S', 'K', 'U', 'L', 0xBA, 0xBE}
	luksOpalSubsys  = "HW-OPAL"
)

// secondaryOffsets mirrors original_source/containers/luks.rs's
// SECONDARY_OFFSETS: a LUKS2 header that fails to validate at offset 0 is
// retried at each of these fallback byte offsets before giving up (a
// LUKS2 header can be relocated there by cryptsetup's header-repair
// tooling).
var secondaryOffsets = []uint64{
	0x4000, 0x8000, 0x10000, 0x20000, 0x40000,
	0x80000, 0x100000, 0x200000, 0x400000,
}

// luks1Header is the leading 208 bytes of the 592-byte LUKS1 header
// (everything before the key-slot table), big-endian on disk (grounded on original_source/containers/luks.rs's Luks1Header).
type luks1Header struct {
	Magic        [6]byte
	Version      uint16
	CipherName   [32]byte
	CipherMode   [32]byte
	HashSpec     [32]byte
	PayloadOff   uint32
	KeyBytes     uint32
	MKDigest     [20]byte
	MKDigestSalt [32]byte
	MKDigestIter uint32
	UUID         [40]byte
}

// luks2Header is the LUKS2 binary header's fixed leading fields
// (grounded on original_source/containers/luks.rs's Luks2Header); the
// variable-length JSON metadata area that follows is not parsed — spec.md
// only asks for magic/version/UUID/label, all present here.
type luks2Header struct {
	Magic        [6]byte
	Version      uint16
	HdrSize      uint64
	SeqID        uint64
	Label        [48]byte
	ChecksumAlg  [32]byte
	Salt         [64]byte
	UUID         [40]byte
	Subsystem    [48]byte
	HdrOffset    uint64
	_            [184]byte
	Checksum     [64]byte
}

var Luks1Idinfo = blockid.Idinfo{
	Name:        "luks1",
	Usage:       blockid.UsageCrypto,
	CategoryBit: blockid.FilterContainer,
	Magics:      []blockid.Magic{{Bytes: luks1Magic, Offset: 0}},
	Probe:       probeLuks1,
}

var Luks2Idinfo = blockid.Idinfo{
	Name:        "luks2",
	Usage:       blockid.UsageCrypto,
	CategoryBit: blockid.FilterContainer,
	Magics:      luks2Magics(),
	Probe:       probeLuks2,
}

// LuksOpalIdinfo shares luks2's magic; it is distinguished after the
// header parses, by the Subsystem field carrying "HW-OPAL" (self-
// encrypting-drive hardware offload), and additionally checks whether the
// device is OPAL-locked via the stubbed ioctl query in internal/disk,
// memoizing the result on the session's flags per spec.md's OPAL_CHECKED/
// OPAL_LOCKED flags.
var LuksOpalIdinfo = blockid.Idinfo{
	Name:        "luks2_opal",
	Usage:       blockid.UsageCrypto,
	CategoryBit: blockid.FilterContainer,
	Magics:      luks2Magics(),
	Probe:       probeLuksOpal,
}

// luks2Magics lists the LUKS2 magic at every offset findLuks2Header will
// try: offset 0 plus each of cryptsetup's header-repair relocation
// points. Without the secondary offsets here, the registry's magic
// pre-filter (probe.go's RunRegistry) would never call into probeLuks2/
// probeLuksOpal for a header that was relocated away from offset 0 -
// the pre-filter and findLuks2Header's own fallback scan have to agree
// on where a header can legally live.
func luks2Magics() []blockid.Magic {
	out := make([]blockid.Magic, 0, len(secondaryOffsets)+1)
	out = append(out, blockid.Magic{Bytes: luks2Magic, Offset: 0})
	for _, off := range secondaryOffsets {
		out = append(out, blockid.Magic{Bytes: luks2Magic, Offset: off})
	}
	return out
}

func probeLuks1(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	hdr, err := blockid.ReadStruct[luks1Header](src, 0, binary.BigEndian)
	if err != nil {
		return blockid.Result{}, err
	}
	if hdr.Magic != [6]byte(luks1Magic) {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "luks1", Reason: "magic mismatch"}
	}
	u, err := uuidFromLUKSField(hdr.UUID[:])
	if err != nil {
		return blockid.Result{}, &blockid.ErrInvalidHeader{Detector: "luks1", Reason: err.Error()}
	}
	bu := blockid.NewStandardUUID(u)
	return blockid.ContainerResultOf(blockid.ContainerResult{
		Type:          blockid.BlockTypeLuks1,
		UUID:          &bu,
		Usage:         blockid.UsageCrypto,
		Version:       versionPtr(blockid.NewVersionNumber(uint64(hdr.Version))),
		SBMagic:       luks1Magic,
		SBMagicOffset: u64ptr(0),
		Endianness:    endPtr(blockid.BigEndian),
	}), nil
}

func probeLuks2(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	hdr, offset, err := findLuks2Header(src)
	if err != nil {
		return blockid.Result{}, err
	}
	if isOpalSubsystem(hdr.Subsystem) {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "luks2", Reason: "defer to luks2_opal"}
	}
	return luks2Result(hdr, offset, blockid.BlockTypeLuks2), nil
}

func probeLuksOpal(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	hdr, offset, err := findLuks2Header(src)
	if err != nil {
		return blockid.Result{}, err
	}
	if !isOpalSubsystem(hdr.Subsystem) {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "luks2_opal", Reason: "not an OPAL subsystem header"}
	}

	if !p.Flags.OpalChecked {
		locked, err := blockid.QueryOpalLocked(src)
		p.Flags.OpalChecked = true
		p.Flags.OpalLocked = err == nil && locked
	}

	r := luks2Result(hdr, offset, blockid.BlockTypeLuksOpal)
	sec := "opal-hw-encryption"
	if p.Flags.OpalLocked {
		sec = "opal-hw-encryption-locked"
	}
	r.Container.SecType = &sec
	return r, nil
}

func findLuks2Header(src blockid.ByteSource) (luks2Header, uint64, error) {
	hdr, err := blockid.ReadStruct[luks2Header](src, 0, binary.BigEndian)
	if err == nil && hdr.Magic == [6]byte(luks2Magic) {
		return hdr, 0, nil
	}
	for _, off := range secondaryOffsets {
		hdr, err := blockid.ReadStruct[luks2Header](src, off, binary.BigEndian)
		if err == nil && hdr.Magic == [6]byte(luks2Magic) && hdr.HdrOffset == off {
			return hdr, off, nil
		}
	}
	return luks2Header{}, 0, &blockid.ErrUnknownFormat{Detector: "luks2", Reason: "no valid header at offset 0 or any secondary offset"}
}

func luks2Result(hdr luks2Header, offset uint64, t blockid.BlockType) blockid.Result {
	u, _ := uuidFromLUKSField(hdr.UUID[:])
	bu := blockid.NewStandardUUID(u)
	label, _ := blockid.DecodeUTF8Strict(hdr.Label[:])
	var labelPtr *string
	if label != "" {
		labelPtr = &label
	}
	return blockid.ContainerResultOf(blockid.ContainerResult{
		Type:          t,
		Label:         labelPtr,
		UUID:          &bu,
		Usage:         blockid.UsageCrypto,
		Version:       versionPtr(blockid.NewVersionNumber(uint64(hdr.Version))),
		SBMagic:       luks2Magic,
		SBMagicOffset: u64ptr(offset),
		Endianness:    endPtr(blockid.BigEndian),
	})
}

func isOpalSubsystem(raw [48]byte) bool {
	s, _ := blockid.DecodeASCIIStrict(raw[:])
	return s == luksOpalSubsys
}

// uuidFromLUKSField parses LUKS's textual UUID field (a hyphenated
// lowercase 36-character UUID string, NUL-padded to 40 bytes) into a
// canonical uuid.UUID, rather than a binary field — LUKS and LVM2 are the
// container formats in this registry that store their UUID as text.
func uuidFromLUKSField(raw []byte) (uuid.UUID, error) {
	s, err := blockid.DecodeASCIIStrict(raw)
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.Parse(s)
}

func u64ptr(v uint64) *uint64                       { return &v }
func versionPtr(v blockid.BlockidVersion) *blockid.BlockidVersion { return &v }
func endPtr(e blockid.Endianness) *blockid.Endianness             { return &e }
