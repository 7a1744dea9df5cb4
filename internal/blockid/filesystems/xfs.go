package filesystems

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/ostafen/blockid/internal/blockid"
)

// xfsSuperblock is XFS's fixed primary superblock, big-endian on disk
// (XFS's host format is always big-endian regardless of architecture),
// extended through the v5 feature/CRC fields so probeXfs can gate the
// checksum without a second struct, grounded on
// original_source/filesystems/xfs.rs's XfsSuperBlock.
type xfsSuperblock struct {
	Magic       [4]byte
	BlockSize   uint32
	DBlocks     uint64
	RBlocks     uint64
	RExtents    uint64
	UUID        [16]byte
	LogStart    uint64
	RootIno     uint64
	RBMIno      uint64
	RSumIno     uint64
	RExtSize    uint32
	AGBlocks    uint32
	AGCount     uint32
	RBMBlocks   uint32
	LogBlocks   uint32
	Version     uint16
	SectSize    uint16
	InodeSize   uint16
	InopBlock   uint16
	FName       [12]byte
	BlocklLog   uint8
	SectLog     uint8
	InodeLog    uint8
	InopBlog    uint8
	AGBlklog    uint8
	RExtsLog    uint8
	InProgress  uint8
	ImaxPct     uint8

	ICount             uint64
	IFree              uint64
	FdBlocks           uint64
	FrExtents          uint64
	UQuotaIno          uint64
	GQuotaIno          uint64
	QFlags             uint16
	Flags              uint8
	SharedVN           uint8
	InoAlignMT         uint32
	Unit               uint32
	Width              uint32
	DirBlkLog          uint8
	LogSectLog         uint8
	LogSectSize        uint16
	LogSunit           uint32
	Features2          uint32
	BadFeatures2       uint32
	FeaturesCompat     uint32
	FeaturesROCompat   uint32
	FeaturesIncompat   uint32
	FeaturesLogIncompat uint32
	CRC                uint32
}

// xfsCRCFieldOffset is byte offset_of(XfsSuperBlock, crc) in the on-disk
// layout above - computed from the field sizes, not reflect.Offsetof,
// since ReadStruct decodes via binary.Read rather than a raw memory cast.
const xfsCRCFieldOffset = 224

var xfsMagic = [4]byte{'X', 'F', 'S', 'B'}

const (
	xfsVersionMoreBitsBit = 0x8000
	xfsVersion2CRCBit     = 0x00000100
)

var XfsIdinfo = blockid.Idinfo{
	Name:        "xfs",
	Usage:       blockid.UsageFilesystem,
	CategoryBit: blockid.FilterFilesystem,
	Magics:      []blockid.Magic{{Bytes: xfsMagic[:], Offset: 0}},
	Probe:       probeXfs,
}

func probeXfs(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	sb, err := blockid.ReadStruct[xfsSuperblock](src, 0, binary.BigEndian)
	if err != nil {
		return blockid.Result{}, err
	}
	if sb.Magic != xfsMagic {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "xfs", Reason: "bad magic"}
	}

	if sb.Version&0x0F == 5 {
		if sb.Version&xfsVersionMoreBitsBit == 0 {
			return blockid.Result{}, &blockid.ErrInvalidHeader{Detector: "xfs", Reason: "v5 superblock missing VERSION_MOREBITS bit"}
		}
		if sb.Features2&xfsVersion2CRCBit == 0 {
			return blockid.Result{}, &blockid.ErrInvalidHeader{Detector: "xfs", Reason: "v5 superblock missing CRC feature bit"}
		}
		if err := verifyXfsCRC(src, sb); err != nil {
			return blockid.Result{}, err
		}
	}

	u, err := uuid.FromBytes(sb.UUID[:])
	if err != nil {
		return blockid.Result{}, &blockid.ErrInvalidHeader{Detector: "xfs", Reason: err.Error()}
	}
	bu := blockid.NewStandardUUID(u)
	label := blockid.DecodeUTF8Lossy(sb.FName[:])
	var labelPtr *string
	if label != "" {
		labelPtr = &label
	}

	fsSize := sb.DBlocks * uint64(sb.BlockSize)
	blockSize := uint64(sb.BlockSize)
	sectorSize := uint64(sb.SectSize)

	return blockid.FilesystemResultOf(blockid.FilesystemResult{
		Type:          blockid.BlockTypeXfs,
		UUID:          &bu,
		Label:         labelPtr,
		Usage:         blockid.UsageFilesystem,
		FSSize:        &fsSize,
		FSBlockSize:   &blockSize,
		SectorSize:    &sectorSize,
		Version:       versionPtr(blockid.NewVersionNumber(uint64(sb.Version & 0xF))),
		SBMagic:       xfsMagic[:],
		SBMagicOffset: u64ptr(0),
		Endianness:    endPtr(blockid.BigEndian),
	}), nil
}

// verifyXfsCRC re-derives the v5 superblock's CRC-32C over the full
// sector it lives in, with the on-disk crc field zeroed - spec.md §4.5's
// XFS row. The crc field itself is stored little-endian on disk even
// though the rest of the superblock is big-endian, a real XFS quirk
// carried over from original_source/filesystems/xfs.rs's xfs_verify.
func verifyXfsCRC(src blockid.ByteSource, sb xfsSuperblock) error {
	sector, err := blockid.ReadExact(src, 0, int(sb.SectSize))
	if err != nil {
		return err
	}
	want := binary.LittleEndian.Uint32(sector[xfsCRCFieldOffset:])
	zeroed := blockid.ZeroRegion(sector, xfsCRCFieldOffset, 4)
	got := blockid.CRC32C(zeroed)
	if got != want {
		return &blockid.ErrChecksumMismatch{Detector: "xfs", Expected: uint64(want), Observed: uint64(got)}
	}
	return nil
}
