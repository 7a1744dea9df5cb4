package filesystems

import (
	"encoding/binary"

	"github.com/ostafen/blockid/internal/blockid"
)

// squashfsSuperblock covers SquashFS 4.x's (and later) superblock,
// little-endian.
type squashfsSuperblock struct {
	Magic           uint32
	InodeCount      uint32
	ModTime         uint32
	BlockSize       uint32
	FragCount       uint32
	Compression     uint16
	BlockLog        uint16
	Flags           uint16
	NoIDs           uint16
	VersionMajor    uint16
	VersionMinor    uint16
	RootInode       uint64
	BytesUsed       uint64
	IDTableStart    uint64
	XattrTableStart uint64
	InodeTableStart uint64
	DirTableStart   uint64
	FragTableStart  uint64
	ExportTableStart uint64
}

// squashfs3Superblock is the older, shorter v3 layout (no export table,
// different ordering), grounded on spec.md §4.4's "SquashFS v3" row. Its
// version fields sit at offset 28, the same place as in the v4+ header.
type squashfs3Superblock struct {
	Magic        uint32
	InodeCount   uint32
	BytesUsedLo  uint32
	UIDStart     uint32
	GUIDStart    uint32
	INodeStart   uint32
	DirStart     uint32
	VersionMajor uint16
	VersionMinor uint16
	ModTime      uint32
	BlockSize    uint32
	FragCount    uint32
	Compression  uint16
	BlockLog     uint16
	Flags        uint8
	NoUIDs       uint8
	NoGUIDs      uint8
}

var squashfsMagicLE = uint32(0x73717368) // "hsqs"
var squashfs3MagicBE = uint32(0x73717368)

var SquashfsIdinfo = blockid.Idinfo{
	Name:        "squashfs",
	Usage:       blockid.UsageFilesystem,
	CategoryBit: blockid.FilterFilesystem,
	Magics:      []blockid.Magic{{Bytes: []byte{0x68, 0x73, 0x71, 0x73}, Offset: 0}},
	Probe:       probeSquashfs,
}

var Squashfs3Idinfo = blockid.Idinfo{
	Name:        "squashfs3",
	Usage:       blockid.UsageFilesystem,
	CategoryBit: blockid.FilterFilesystem,
	Magics: []blockid.Magic{
		{Bytes: []byte{0x68, 0x73, 0x71, 0x73}, Offset: 0},
		{Bytes: []byte{0x73, 0x71, 0x73, 0x68}, Offset: 0},
	},
	Probe: probeSquashfs3,
}

// probeSquashfs handles SquashFS 4.x+ ("hsqs" magic). It must run before
// Squashfs3Idinfo in the registry (spec.md §4.4): the v4+ header's
// version-major field disambiguates it from the differently-shaped v3
// header, which a naive magic-only check could confuse.
func probeSquashfs(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	// Check magic and version before reading the full v4+ header, so a
	// v3 image shorter than that header defers instead of failing the read.
	head, err := blockid.ReadExact(src, 0, 32)
	if err != nil {
		return blockid.Result{}, err
	}
	if binary.LittleEndian.Uint32(head[0:4]) != squashfsMagicLE || binary.LittleEndian.Uint16(head[28:30]) < 4 {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "squashfs", Reason: "not a little-endian v4+ header, defer to squashfs3"}
	}
	sb, err := blockid.ReadStruct[squashfsSuperblock](src, 0, binary.LittleEndian)
	if err != nil {
		return blockid.Result{}, err
	}
	if sb.Magic != squashfsMagicLE {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "squashfs", Reason: "bad magic"}
	}
	if sb.VersionMajor < 4 {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "squashfs", Reason: "version < 4, defer to squashfs3"}
	}

	blockSize := uint64(sb.BlockSize)
	fsSize := sb.BytesUsed
	return blockid.FilesystemResultOf(blockid.FilesystemResult{
		Type:          blockid.BlockTypeSquashfs,
		Usage:         blockid.UsageFilesystem,
		FSSize:        &fsSize,
		FSBlockSize:   &blockSize,
		Version:       versionPtr(blockid.NewVersionMajorMinor(uint32(sb.VersionMajor), uint32(sb.VersionMinor))),
		SBMagic:       []byte{0x68, 0x73, 0x71, 0x73},
		SBMagicOffset: u64ptr(0),
		Endianness:    endPtr(blockid.LittleEndian),
	}), nil
}

func probeSquashfs3(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	// "sqsh" marks a big-endian image, "hsqs" a little-endian one.
	head, err := blockid.ReadExact(src, 0, 4)
	if err != nil {
		return blockid.Result{}, err
	}
	var order binary.ByteOrder = binary.LittleEndian
	endian := blockid.LittleEndian
	if string(head) == "sqsh" {
		order, endian = binary.BigEndian, blockid.BigEndian
	}
	sb, err := blockid.ReadStruct[squashfs3Superblock](src, 0, order)
	if err != nil {
		return blockid.Result{}, err
	}
	if sb.Magic != squashfs3MagicBE {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "squashfs3", Reason: "bad magic"}
	}
	if sb.VersionMajor >= 4 {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "squashfs3", Reason: "version >= 4, handled by squashfs"}
	}

	blockSize := uint64(sb.BlockSize)
	fsSize := uint64(sb.BytesUsedLo)
	return blockid.FilesystemResultOf(blockid.FilesystemResult{
		Type:          blockid.BlockTypeSquashfs3,
		Usage:         blockid.UsageFilesystem,
		FSSize:        &fsSize,
		FSBlockSize:   &blockSize,
		Version:       versionPtr(blockid.NewVersionMajorMinor(uint32(sb.VersionMajor), uint32(sb.VersionMinor))),
		SBMagic:       head,
		SBMagicOffset: u64ptr(0),
		Endianness:    endPtr(endian),
	}), nil
}
