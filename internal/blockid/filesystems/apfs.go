package filesystems

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/ostafen/blockid/internal/blockid"
)

// apfsContainerSuperblock is the fixed prefix of the APFS container
// superblock ("nx_superblock_t"), little-endian. The object-header's
// checksum is a Fletcher-64 over everything following the 8-byte
// checksum field itself, grounded on original_source/filesystems/apfs.rs.
type apfsContainerSuperblock struct {
	Checksum   uint64
	OID        uint64
	XID        uint64
	Type       uint32
	Subtype    uint32
	Magic      [4]byte
	BlockSize  uint32
	BlockCount uint64
	Features   uint64
	_          [8]byte
	UUID       [16]byte
}

var apfsMagic = [4]byte{'N', 'X', 'S', 'B'}

var ApfsIdinfo = blockid.Idinfo{
	Name:        "apfs",
	Usage:       blockid.UsageFilesystem,
	CategoryBit: blockid.FilterFilesystem,
	Magics:      []blockid.Magic{{Bytes: apfsMagic[:], Offset: 32}},
	Probe:       probeApfs,
}

func probeApfs(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	sb, err := blockid.ReadStruct[apfsContainerSuperblock](src, 0, binary.LittleEndian)
	if err != nil {
		return blockid.Result{}, err
	}
	if sb.Magic != apfsMagic {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "apfs", Reason: "bad NXSB magic"}
	}

	size := binary.Size(sb)
	raw, err := blockid.ReadExact(src, 0, size)
	if err != nil {
		return blockid.Result{}, err
	}
	got := blockid.Fletcher64(raw[8:])
	if got != sb.Checksum {
		return blockid.Result{}, &blockid.ErrChecksumMismatch{Detector: "apfs",
			Expected: sb.Checksum, Observed: got}
	}

	u, err := uuid.FromBytes(sb.UUID[:])
	if err != nil {
		return blockid.Result{}, &blockid.ErrInvalidHeader{Detector: "apfs", Reason: err.Error()}
	}
	bu := blockid.NewStandardUUID(u)
	blockSize := uint64(sb.BlockSize)
	fsSize := sb.BlockCount * blockSize

	return blockid.FilesystemResultOf(blockid.FilesystemResult{
		Type:          blockid.BlockTypeApfs,
		UUID:          &bu,
		Usage:         blockid.UsageFilesystem,
		FSSize:        &fsSize,
		FSBlockSize:   &blockSize,
		SBMagic:       apfsMagic[:],
		SBMagicOffset: u64ptr(32),
		Endianness:    endPtr(blockid.LittleEndian),
	}), nil
}
