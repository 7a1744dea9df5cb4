// Package partitions implements the partition-table detector family:
// DOS/MBR and GPT (with its protective-MBR companion).
package partitions

import (
	"encoding/binary"

	"github.com/ostafen/blockid/internal/blockid"
)

// PartitionTypeID is the classic single-byte MBR partition-type table,
// carried over from original_source/partitions/dos.rs's MbrPartitionType
// (digler's own mbr.go only had a handful of entries; this is the fuller
// table the spec's partition-entry_type field needs for anything beyond
// "is it GPT-protective or Linux").
type PartitionTypeID uint8

const (
	PartEmpty              PartitionTypeID = 0x00
	PartFAT12                              = 0x01
	PartFAT16Lt32M                         = 0x04
	PartExtendedCHS                        = 0x05
	PartFAT16Gt32M                         = 0x06
	PartNTFSExFAT                          = 0x07
	PartFAT32CHS                           = 0x0B
	PartFAT32LBA                           = 0x0C
	PartFAT16LBA                           = 0x0E
	PartExtendedLBA                        = 0x0F
	PartLinuxSwap                          = 0x82
	PartLinuxFilesystem                    = 0x83
	PartLinuxExtended                      = 0x85
	PartLinuxLVM                           = 0x8E
	PartBSD                                = 0xA5
	PartOpenBSD                            = 0xA6
	PartNetBSD                             = 0xA9
	PartGPTProtective                      = 0xEE
	PartEFISystem                          = 0xEF
)

// dosEntry is the 16-byte on-disk MBR partition-table entry, grounded on
// digler's MBRPartitionEntry (internal/disk/mbr.go) with the type byte
// narrowed to PartitionTypeID.
type dosEntry struct {
	BootIndicator uint8
	StartCHS      [3]byte
	PartType      uint8
	EndCHS        [3]byte
	StartLBA      uint32
	TotalSectors  uint32
}

// dosSector is the 512-byte MBR, grounded on digler's MBR struct.
type dosSector struct {
	BootCode      [440]byte
	DiskSignature uint32
	Reserved      uint16
	Entries       [4]dosEntry
	Signature     uint16
}

const dosSignature = 0xAA55

// DosIdinfo identifies a classic DOS/MBR partition table. Only primary
// entries are reported; extended-partition chains and the nested
// BSD/Unixware/Solaris/Minix sub-schemes original_source declares a
// dispatch table for (DOS_NESTED) are out of scope — their on-disk
// layouts were never retrieved as part of this spec's source material,
// and reporting a primary entry's type byte as a recognized sub-scheme
// without actually resolving it would fabricate structure this detector
// cannot back up.
var DosIdinfo = blockid.Idinfo{
	Name:        "dos",
	Usage:       blockid.UsagePartitionTable,
	CategoryBit: blockid.FilterPartitionTable,
	Magics: []blockid.Magic{
		{Bytes: []byte{0x55, 0xAA}, Offset: 0x1FE},
	},
	Probe: ProbeDos,
}

func ProbeDos(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	sect, err := blockid.ReadStruct[dosSector](src, 0, binary.LittleEndian)
	if err != nil {
		return blockid.Result{}, err
	}
	if sect.Signature != dosSignature {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "dos", Reason: "missing 0x55AA signature"}
	}

	// A single GPT-protective entry covering (almost) the whole disk is
	// not a DOS table in its own right; GptIdinfo handles that case. DOS
	// runs before GPT in registry order, so it refuses to report the disk
	// as plain "dos" and leaves it for GPT.
	if isSoleProtectiveEntry(sect.Entries[:]) {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "dos", Reason: "protective MBR, defer to gpt"}
	}

	var parts []blockid.PartitionResult
	for i, e := range sect.Entries {
		if e.PartType == uint8(PartEmpty) || e.TotalSectors == 0 {
			continue
		}
		attrs := blockid.PartEntryAttributes{MBR: e.BootIndicator}
		etype := blockid.PartEntryType{Byte: e.PartType}
		parts = append(parts, blockid.PartitionResult{
			Offset:     uint64(e.StartLBA) * p.SectorSize,
			Size:       uint64(e.TotalSectors) * p.SectorSize,
			PartNo:     uint64(i + 1),
			EntryType:  &etype,
			EntryAttrs: &attrs,
		})
	}

	return blockid.PartTableResultOf(blockid.PartTableResult{
		Offset:        0,
		Type:          blockid.BlockTypeDos,
		SBMagic:       []byte{0x55, 0xAA},
		SBMagicOffset: u64ptr(0x1FE),
		Partitions:    parts,
	}), nil
}

func isSoleProtectiveEntry(entries []dosEntry) bool {
	count := 0
	protective := false
	for _, e := range entries {
		if e.TotalSectors == 0 {
			continue
		}
		count++
		if e.PartType == uint8(PartGPTProtective) {
			protective = true
		}
	}
	return count == 1 && protective
}

func u64ptr(v uint64) *uint64 { return &v }
