// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package blockid implements the probe engine and detector registry that
// identify the filesystem, partition table, or container format resident
// on a raw block device or image file.
package blockid

import (
	"fmt"

	"github.com/google/uuid"
)

// BlockType names a recognized on-disk format. One constant per detector
// family in the registry, plus the stub families that are known but
// never populate a result.
type BlockType int

const (
	BlockTypeUnknown BlockType = iota
	BlockTypeLuks1
	BlockTypeLuks2
	BlockTypeLuksOpal
	BlockTypeDos
	BlockTypeGpt
	BlockTypeExfat
	BlockTypeVfat
	BlockTypeExt2
	BlockTypeExt3
	BlockTypeExt4
	BlockTypeLinuxSwapV0
	BlockTypeLinuxSwapV1
	BlockTypeSwapSuspend
	BlockTypeNtfs
	BlockTypeXfs
	BlockTypeApfs
	BlockTypeSquashfs
	BlockTypeSquashfs3
	BlockTypeZonefs
	BlockTypeLvm1Member
	BlockTypeLvm2Member
	BlockTypeLvmSnapcow
	BlockTypeLvmVerityHash
	BlockTypeLvmIntegrity
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeLuks1:
		return "LUKS1"
	case BlockTypeLuks2:
		return "LUKS2"
	case BlockTypeLuksOpal:
		return "LUKS2_OPAL"
	case BlockTypeDos:
		return "dos"
	case BlockTypeGpt:
		return "gpt"
	case BlockTypeExfat:
		return "exfat"
	case BlockTypeVfat:
		return "vfat"
	case BlockTypeExt2:
		return "ext2"
	case BlockTypeExt3:
		return "ext3"
	case BlockTypeExt4:
		return "ext4"
	case BlockTypeLinuxSwapV0, BlockTypeLinuxSwapV1:
		return "swap"
	case BlockTypeSwapSuspend:
		return "swsuspend"
	case BlockTypeNtfs:
		return "ntfs"
	case BlockTypeXfs:
		return "xfs"
	case BlockTypeApfs:
		return "apfs"
	case BlockTypeSquashfs:
		return "squashfs"
	case BlockTypeSquashfs3:
		return "squashfs3"
	case BlockTypeZonefs:
		return "zonefs"
	case BlockTypeLvm1Member:
		return "LVM1_member"
	case BlockTypeLvm2Member:
		return "LVM2_member"
	case BlockTypeLvmSnapcow:
		return "DM_snapshot_cow"
	case BlockTypeLvmVerityHash:
		return "DM_verity_hash"
	case BlockTypeLvmIntegrity:
		return "DM_integrity"
	default:
		return "unknown"
	}
}

// UsageType classifies what a detector reports, independent of BlockType.
type UsageType int

const (
	UsageUnknown UsageType = iota
	UsageFilesystem
	UsagePartitionTable
	UsageRaid
	UsageCrypto
	UsageOther
)

func (u UsageType) String() string {
	switch u {
	case UsageFilesystem:
		return "filesystem"
	case UsagePartitionTable:
		return "partitiontable"
	case UsageRaid:
		return "raid"
	case UsageCrypto:
		return "crypto"
	case UsageOther:
		return "other"
	default:
		return "unknown"
	}
}

// Endianness tags the byte order a detector determined on-disk data is
// encoded with; purely descriptive, reported back in results.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// UUIDKind distinguishes the three interchangeable UUID shapes spec.md §3
// describes: a canonical 128-bit UUID, a FAT-style 32-bit volume serial,
// and a (future) 64-bit volume serial.
type UUIDKind int

const (
	UUIDKindStandard UUIDKind = iota
	UUIDKindVolumeID32
	UUIDKindVolumeID64
)

// BlockidUUID is a closed sum over the three UUID shapes used
// interchangeably in the same result slot. Exactly one of its fields is
// meaningful, selected by Kind.
type BlockidUUID struct {
	Kind     UUIDKind
	Standard uuid.UUID
	Vol32    [4]byte
	Vol64    [8]byte
}

// NewStandardUUID wraps a canonical 128-bit UUID.
func NewStandardUUID(u uuid.UUID) BlockidUUID {
	return BlockidUUID{Kind: UUIDKindStandard, Standard: u}
}

// NewVolumeID32 wraps a FAT/exFAT-style 32-bit volume serial.
func NewVolumeID32(b [4]byte) BlockidUUID {
	return BlockidUUID{Kind: UUIDKindVolumeID32, Vol32: b}
}

// NewVolumeID64 wraps a 64-bit volume serial.
func NewVolumeID64(b [8]byte) BlockidUUID {
	return BlockidUUID{Kind: UUIDKindVolumeID64, Vol64: b}
}

// String renders the UUID per spec.md §6's bit-exact formatting rules.
func (u BlockidUUID) String() string {
	switch u.Kind {
	case UUIDKindVolumeID32:
		// AABB-CCDD from bytes [b3,b2]-[b1,b0].
		b := u.Vol32
		return fmt.Sprintf("%02X%02X-%02X%02X", b[3], b[2], b[1], b[0])
	case UUIDKindVolumeID64:
		// 16 uppercase hex digits, bytes read high-to-low.
		b := u.Vol64
		return fmt.Sprintf("%02X%02X%02X%02X%02X%02X%02X%02X",
			b[7], b[6], b[5], b[4], b[3], b[2], b[1], b[0])
	default:
		return u.Standard.String()
	}
}

// VersionKind distinguishes the two version shapes a detector may report.
type VersionKind int

const (
	VersionKindNumber VersionKind = iota
	VersionKindMajorMinor
)

// BlockidVersion is either an opaque 64-bit number or a packed
// (major, minor) pair rendered as a device-number-style value, matching
// original_source's `makedev(major, minor)` convention.
type BlockidVersion struct {
	Kind        VersionKind
	Number      uint64
	Major       uint32
	Minor       uint32
}

func NewVersionNumber(n uint64) BlockidVersion {
	return BlockidVersion{Kind: VersionKindNumber, Number: n}
}

func NewVersionMajorMinor(major, minor uint32) BlockidVersion {
	return BlockidVersion{Kind: VersionKindMajorMinor, Major: major, Minor: minor}
}

// DevT packs (major, minor) the way glibc's makedev does: minor's low 8
// bits and major's low 12 bits interleaved into a 32-bit legacy device
// number, with the remaining high bits appended above them. Used only for
// rendering; never used to address anything.
func (v BlockidVersion) DevT() uint64 {
	if v.Kind != VersionKindMajorMinor {
		return v.Number
	}
	major, minor := uint64(v.Major), uint64(v.Minor)
	return (minor & 0xff) | ((major & 0xfff) << 8) |
		((minor &^ 0xff) << 12) | ((major &^ 0xfff) << 32)
}

func (v BlockidVersion) String() string {
	if v.Kind == VersionKindNumber {
		return fmt.Sprintf("%d", v.Number)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// PartEntryType is either an 8-bit MBR partition-type byte or a 16-byte
// GUID, matching spec.md §3's PartitionEntry.entry_type.
type PartEntryType struct {
	IsGUID bool
	Byte   uint8
	GUID   uuid.UUID
}

// PartEntryAttributes is either an MBR flags byte or a GPT attribute
// qword, matching spec.md §3's PartitionEntry.entry_attributes.
type PartEntryAttributes struct {
	IsGPT bool
	MBR   uint8
	GPT   uint64
}

// PartitionResult describes one entry of a partition table.
type PartitionResult struct {
	Offset     uint64 // byte offset from start of device
	Size       uint64 // byte size
	PartNo     uint64 // 1-based
	PartUUID   *BlockidUUID
	Name       *string
	EntryType  *PartEntryType
	EntryAttrs *PartEntryAttributes
}

// ContainerResult is the result shape for crypto/raid container formats
// (LUKS, LVM, DM-verity, ...).
type ContainerResult struct {
	Type          BlockType
	SecType       *string
	Label         *string
	UUID          *BlockidUUID
	Creator       *string
	Usage         UsageType
	Version       *BlockidVersion
	SBMagic       []byte
	SBMagicOffset *uint64
	Endianness    *Endianness
}

// PartTableResult is the result shape for partition-table formats.
type PartTableResult struct {
	Offset        uint64
	Type          BlockType
	PTUUID        *BlockidUUID
	SBMagic       []byte
	SBMagicOffset *uint64
	Partitions    []PartitionResult
}

// FilesystemResult is the result shape for filesystem superblocks.
type FilesystemResult struct {
	Type          BlockType
	SecType       *string // e.g. FAT12/16/32 refining VFAT
	UUID          *BlockidUUID
	JournalUUID   *BlockidUUID // internal log
	ExtJournal    *BlockidUUID // external journal device
	Label         *string
	Creator       *string // e.g. Linux/Hurd/Masix/FreeBSD/Lites for ext
	Usage         UsageType
	FSSize        *uint64
	FSLastBlock   *uint64
	FSBlockSize   *uint64
	SectorSize    *uint64
	Version       *BlockidVersion
	SBMagic       []byte
	SBMagicOffset *uint64
	Endianness    *Endianness
}

// ResultKind discriminates the three arms of Result.
type ResultKind int

const (
	ResultKindContainer ResultKind = iota
	ResultKindPartTable
	ResultKindFilesystem
)

// Result is the closed three-way tagged union spec.md §9 prescribes:
// do not extend with open inheritance, callers pattern-match on Kind.
type Result struct {
	Kind       ResultKind
	Container  *ContainerResult
	PartTable  *PartTableResult
	Filesystem *FilesystemResult
}

func ContainerResultOf(r ContainerResult) Result {
	return Result{Kind: ResultKindContainer, Container: &r}
}

func PartTableResultOf(r PartTableResult) Result {
	return Result{Kind: ResultKindPartTable, PartTable: &r}
}

func FilesystemResultOf(r FilesystemResult) Result {
	return Result{Kind: ResultKindFilesystem, Filesystem: &r}
}
