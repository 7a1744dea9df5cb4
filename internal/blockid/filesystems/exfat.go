package filesystems

import (
	"encoding/binary"

	"github.com/ostafen/blockid/internal/blockid"
)

// exfatBootSector is the 512-byte exFAT boot sector's fixed fields,
// grounded on digler's FatBootSector (internal/disk/fat.go) extended with
// exFAT's own BPB shape per spec.md §4.4's exFAT row and
// original_source/filesystems/exfat.rs's ExFatSuperBlock.
type exfatBootSector struct {
	JumpBoot       [3]byte
	FSName         [8]byte
	MustBeZero     [53]byte
	PartitionOff   uint64
	VolumeLength   uint64
	FATOffset      uint32
	FATLength      uint32
	ClusterHeapOff uint32
	ClusterCount   uint32
	RootDirCluster uint32
	VolumeSerial   uint32
	FSRevision     uint16
	VolumeFlags    uint16
	BytesPerSecLog uint8
	SecPerClusLog  uint8
	NumFATs        uint8
	DriveSelect    uint8
	PercentInUse   uint8
	_              [7]byte
	BootCode       [390]byte
	Signature      uint16
}

var exfatMagic = [8]byte{'E', 'X', 'F', 'A', 'T', ' ', ' ', ' '}

var ExfatIdinfo = blockid.Idinfo{
	Name:        "exfat",
	Usage:       blockid.UsageFilesystem,
	CategoryBit: blockid.FilterFilesystem,
	Magics:      []blockid.Magic{{Bytes: exfatMagic[:], Offset: 3}},
	Probe:       probeExfat,
}

const (
	exfatFirstDataCluster = 2
	exfatLastDataCluster  = 0x0FFFFFF6
	exfatEntrySize        = 32
	exfatEntryEOD         = 0x00
	exfatEntryLabelType   = 0x83
	exfatMaxDirEntries    = 8388608 // EXFAT_MAX_DIR_SIZE / EXFAT_ENTRY_SIZE, original_source's walk bound
)

func (bs exfatBootSector) blockSize() uint64 {
	if bs.BytesPerSecLog < 32 {
		return uint64(1) << bs.BytesPerSecLog
	}
	return 0
}

func (bs exfatBootSector) clusterSize() uint64 {
	if bs.SecPerClusLog < 32 {
		return bs.blockSize() << bs.SecPerClusLog
	}
	return 0
}

func (bs exfatBootSector) blockToOffset(block uint64) uint64 {
	return block << bs.BytesPerSecLog
}

func (bs exfatBootSector) clusterToBlock(cluster uint32) uint64 {
	return uint64(bs.ClusterHeapOff) + uint64(cluster-exfatFirstDataCluster)<<bs.SecPerClusLog
}

func (bs exfatBootSector) clusterToOffset(cluster uint32) uint64 {
	return bs.blockToOffset(bs.clusterToBlock(cluster))
}

func (bs exfatBootSector) nextCluster(src blockid.ByteSource, cluster uint32) (uint32, error) {
	fatOffset := bs.blockToOffset(uint64(bs.FATOffset)) + uint64(cluster)*4
	raw, err := blockid.ReadExact(src, fatOffset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func inRangeInclusive[T uint8 | uint32](v, lo, hi T) bool {
	return v >= lo && v <= hi
}

// validateExfatSuperblock implements every structural rejection rule
// original_source/filesystems/exfat.rs's valid_exfat checks (boot
// checksum verification is done separately by verifyExfatBootChecksum,
// matching that function's own "compute, then validate, then verify
// checksum" ordering).
func validateExfatSuperblock(bs exfatBootSector) error {
	if bs.Signature != 0xAA55 {
		return &blockid.ErrUnknownFormat{Detector: "exfat", Reason: "missing boot signature, likely an MBR"}
	}
	if bs.clusterSize() == 0 {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "cluster size must not be zero"}
	}
	if bs.JumpBoot != [3]byte{0xEB, 0x76, 0x90} {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "bootjmp is not EB 76 90"}
	}
	if bs.FSName != exfatMagic {
		return &blockid.ErrUnknownFormat{Detector: "exfat", Reason: "missing EXFAT magic"}
	}
	if bs.MustBeZero != ([53]byte{}) {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "must-be-zero region is not all zero"}
	}
	if !inRangeInclusive(bs.NumFATs, 1, 2) {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "number of FATs must be 1 or 2"}
	}
	if !inRangeInclusive(bs.BytesPerSecLog, 9, 12) {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "bytes-per-sector shift out of range [9,12]"}
	}
	if !inRangeInclusive(bs.SecPerClusLog, 0, 25-bs.BytesPerSecLog) {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "sectors-per-cluster shift out of range"}
	}

	fatSpan := bs.FATLength * uint32(bs.NumFATs)
	if bs.ClusterHeapOff < fatSpan {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "cluster heap offset precedes the FAT region"}
	}
	if !inRangeInclusive(bs.FATOffset, 24, bs.ClusterHeapOff-fatSpan) {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "FAT offset out of range"}
	}
	if !inRangeInclusive(bs.ClusterHeapOff, bs.FATOffset+fatSpan, uint32(1)<<31) {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "cluster heap offset out of range"}
	}
	if !inRangeInclusive(bs.RootDirCluster, 2, bs.ClusterCount+1) {
		return &blockid.ErrInvalidHeader{Detector: "exfat", Reason: "first cluster of root directory out of range"}
	}
	return nil
}

// verifyExfatBootChecksum reads the first 11 boot sectors and the
// checksum sector with read_exact semantics: a short/failed read is a
// hard rejection, never a silently-skipped check.
func verifyExfatBootChecksum(src blockid.ByteSource) error {
	sectors, err := blockid.ReadExact(src, 0, 11*512)
	if err != nil {
		return err
	}
	csumSector, err := blockid.ReadExact(src, 11*512, 512)
	if err != nil {
		return err
	}
	if !blockid.VerifyExfatBootChecksum(sectors, csumSector) {
		return &blockid.ErrChecksumMismatch{Detector: "exfat"}
	}
	return nil
}

// findExfatLabel walks the root directory's cluster chain looking for
// the volume-label entry (type 0x83), grounded on
// original_source/filesystems/exfat.rs's find_label/next_cluster. A
// read failure, an end-of-directory marker, or a cluster chain that
// runs outside the valid data-cluster range all mean "no label" rather
// than a detector error — the label is optional.
func findExfatLabel(src blockid.ByteSource, bs exfatBootSector) *string {
	cluster := bs.RootDirCluster
	offset := bs.clusterToOffset(cluster)
	clusterSize := bs.clusterSize()

	for i := 0; i < exfatMaxDirEntries; i++ {
		buf, err := blockid.ReadExact(src, offset, exfatEntrySize)
		if err != nil {
			return nil
		}

		switch buf[0] {
		case exfatEntryEOD:
			return nil
		case exfatEntryLabelType:
			length := int(buf[1])
			if length > 11 {
				length = 11
			}
			label, err := blockid.DecodeUTF16Strict(buf[2:2+length*2], true)
			if err != nil {
				return nil
			}
			return &label
		}

		offset += exfatEntrySize
		if clusterSize != 0 && offset%clusterSize == 0 {
			next, err := bs.nextCluster(src, cluster)
			if err != nil {
				return nil
			}
			if next < exfatFirstDataCluster || next > exfatLastDataCluster {
				return nil
			}
			cluster = next
			offset = bs.clusterToOffset(cluster)
		}
	}
	return nil
}

func probeExfat(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	bs, err := blockid.ReadStruct[exfatBootSector](src, 0, binary.LittleEndian)
	if err != nil {
		return blockid.Result{}, err
	}
	if err := validateExfatSuperblock(bs); err != nil {
		return blockid.Result{}, err
	}
	if err := verifyExfatBootChecksum(src); err != nil {
		return blockid.Result{}, err
	}

	blockSize := bs.blockSize()
	fsSize := bs.VolumeLength * blockSize

	var serial [4]byte
	binary.LittleEndian.PutUint32(serial[:], bs.VolumeSerial)
	vid := blockid.NewVolumeID32(serial)

	return blockid.FilesystemResultOf(blockid.FilesystemResult{
		Type:          blockid.BlockTypeExfat,
		UUID:          &vid,
		Label:         findExfatLabel(src, bs),
		Usage:         blockid.UsageFilesystem,
		FSSize:        &fsSize,
		FSBlockSize:   &blockSize,
		SectorSize:    &blockSize,
		Version:       versionPtr(blockid.NewVersionNumber(uint64(bs.FSRevision))),
		SBMagic:       exfatMagic[:],
		SBMagicOffset: u64ptr(3),
		Endianness:    endPtr(blockid.LittleEndian),
	}), nil
}
