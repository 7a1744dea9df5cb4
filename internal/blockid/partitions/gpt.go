package partitions

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/ostafen/blockid/internal/blockid"
)

// gptHeader is the 92-byte (plus reserved padding to HeaderSize) GPT
// header, grounded on original_source/partitions/gpt.rs's GptTable.
type gptHeader struct {
	Signature        [8]byte
	Revision         uint32
	HeaderSize       uint32
	HeaderCRC32      uint32
	Reserved         uint32
	CurrentLBA       uint64
	BackupLBA        uint64
	FirstUsableLBA   uint64
	LastUsableLBA    uint64
	DiskGUID         [16]byte
	PartEntryLBA     uint64
	NumPartEntries   uint32
	PartEntrySize    uint32
	PartEntriesCRC32 uint32
}

// gptEntry is one 128-byte GPT partition-entry record, grounded on
// original_source/partitions/gpt.rs's GptEntry.
type gptEntry struct {
	TypeGUID   [16]byte
	PartGUID   [16]byte
	FirstLBA   uint64
	LastLBA    uint64
	Attributes uint64
	Name       [72]byte // UTF-16LE, 36 code units
}

var gptSignature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

// GptIdinfo identifies a GPT partition table, including falling back to
// the backup header when the primary at LBA 1 fails its CRC gate,
// mirroring original_source/partitions/gpt.rs's probe_gpt_pt.
var GptIdinfo = blockid.Idinfo{
	Name:        "gpt",
	Usage:       blockid.UsagePartitionTable,
	CategoryBit: blockid.FilterPartitionTable,
	Magics: []blockid.Magic{
		{Bytes: gptSignature[:], Offset: 512},
	},
	Probe: ProbeGpt,
}

func ProbeGpt(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	if !isPMBRValid(src, p.SectorSize) && !p.Flags.ForceGPTPMBR {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "gpt", Reason: "no valid protective MBR at LBA 0"}
	}

	lastLBA := lastLBAOf(src, p.SectorSize)
	hdr, entries, err := readGptAt(src, p.SectorSize, 1, lastLBA)
	if err != nil {
		hdr, entries, err = readGptAt(src, p.SectorSize, lastLBA, lastLBA)
		if err != nil {
			return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "gpt", Reason: "neither primary nor backup header validated"}
		}
	}

	diskUUID := blockid.NewStandardUUID(guidFromBytes(hdr.DiskGUID))

	parts := make([]blockid.PartitionResult, 0, len(entries))
	for i, e := range entries {
		if isZeroGUID(e.TypeGUID) {
			continue
		}
		if e.FirstLBA < hdr.FirstUsableLBA || e.LastLBA > hdr.LastUsableLBA || e.LastLBA < e.FirstLBA {
			continue
		}
		size := (e.LastLBA - e.FirstLBA + 1) * p.SectorSize
		partUUID := blockid.NewStandardUUID(guidFromBytes(e.PartGUID))
		etype := blockid.PartEntryType{IsGUID: true, GUID: guidFromBytes(e.TypeGUID)}
		attrs := blockid.PartEntryAttributes{IsGPT: true, GPT: e.Attributes}
		name := blockid.DecodeUTF16Lossy(e.Name[:], true)
		parts = append(parts, blockid.PartitionResult{
			Offset:     e.FirstLBA * p.SectorSize,
			Size:       size,
			PartNo:     uint64(i + 1),
			PartUUID:   &partUUID,
			Name:       &name,
			EntryType:  &etype,
			EntryAttrs: &attrs,
		})
	}

	off := hdr.CurrentLBA * p.SectorSize
	return blockid.PartTableResultOf(blockid.PartTableResult{
		Offset:        off,
		Type:          blockid.BlockTypeGpt,
		PTUUID:        &diskUUID,
		SBMagic:       gptSignature[:],
		SBMagicOffset: u64ptr(off),
		Partitions:    parts,
	}), nil
}

// gptEntrySize is sizeof(GptEntry) on disk (16+16+8+8+8+72), the only
// partition-entry size this reader understands.
const gptEntrySize = 128

func readGptAt(src blockid.ByteSource, sectorSize, lba, lastLBA uint64) (gptHeader, []gptEntry, error) {
	byteOffset := lba * sectorSize
	hdr, err := blockid.ReadStruct[gptHeader](src, byteOffset, binary.LittleEndian)
	if err != nil {
		return gptHeader{}, nil, err
	}
	if hdr.Signature != gptSignature {
		return gptHeader{}, nil, &blockid.ErrInvalidHeader{Detector: "gpt", Reason: "bad signature"}
	}

	headerStructSize := uint64(binary.Size(hdr))
	if hdr.HeaderSize < headerStructSize || hdr.HeaderSize > sectorSize {
		return gptHeader{}, nil, &blockid.ErrInvalidHeader{Detector: "gpt", Reason: "header_size out of range"}
	}

	raw, err := blockid.ReadExact(src, byteOffset, int(hdr.HeaderSize))
	if err != nil {
		return gptHeader{}, nil, err
	}
	zeroed := blockid.ZeroRegion(raw, 16, 4) // HeaderCRC32 field at offset 16
	if blockid.CRC32IsoHdlc(zeroed) != hdr.HeaderCRC32 {
		return gptHeader{}, nil, &blockid.ErrChecksumMismatch{Detector: "gpt",
			Expected: uint64(hdr.HeaderCRC32), Observed: uint64(blockid.CRC32IsoHdlc(zeroed))}
	}

	if hdr.CurrentLBA != lba {
		return gptHeader{}, nil, &blockid.ErrInvalidHeader{Detector: "gpt", Reason: "my_lba mismatch with the LBA it was read from"}
	}

	if hdr.LastUsableLBA < hdr.FirstUsableLBA || hdr.FirstUsableLBA > lastLBA || hdr.LastUsableLBA > lastLBA {
		return gptHeader{}, nil, &blockid.ErrInvalidHeader{Detector: "gpt", Reason: "first/last usable LBA out of range"}
	}

	entriesSize := uint64(hdr.NumPartEntries) * uint64(hdr.PartEntrySize)
	if entriesSize == 0 || entriesSize >= uint64(1)<<32 || hdr.PartEntrySize != gptEntrySize {
		return gptHeader{}, nil, &blockid.ErrInvalidHeader{Detector: "gpt", Reason: "partition entry array size/stride invalid"}
	}

	entries := make([]gptEntry, 0, hdr.NumPartEntries)
	entOff := hdr.PartEntryLBA * sectorSize
	entBuf, err := blockid.ReadExact(src, entOff, int(entriesSize))
	if err != nil {
		return gptHeader{}, nil, err
	}
	if blockid.CRC32IsoHdlc(entBuf) != hdr.PartEntriesCRC32 {
		return gptHeader{}, nil, &blockid.ErrChecksumMismatch{Detector: "gpt",
			Expected: uint64(hdr.PartEntriesCRC32), Observed: uint64(blockid.CRC32IsoHdlc(entBuf))}
	}
	for i := uint32(0); i < hdr.NumPartEntries; i++ {
		start := i * hdr.PartEntrySize
		e, err := blockid.ReadStructFromBytes[gptEntry](entBuf[start:start+gptEntrySize], binary.LittleEndian)
		if err != nil {
			return gptHeader{}, nil, err
		}
		entries = append(entries, e)
	}
	return hdr, entries, nil
}

// isPMBRValid reports whether LBA 0 carries a valid protective MBR: the
// 0x55AA boot signature plus at least one partition-table entry (any of
// the four slots, not just slot 0) of type 0xEE, per
// original_source/partitions/gpt.rs's is_pmbr_valid.
func isPMBRValid(src blockid.ByteSource, sectorSize uint64) bool {
	sig, err := blockid.ReadExact(src, 510, 2)
	if err != nil || sig[0] != 0x55 || sig[1] != 0xAA {
		return false
	}
	for i := 0; i < 4; i++ {
		typeByte, err := blockid.ReadExact(src, uint64(0x1BE+i*16+4), 1)
		if err != nil {
			return false
		}
		if typeByte[0] == uint8(PartGPTProtective) {
			return true
		}
	}
	return false
}

func lastLBAOf(src blockid.ByteSource, sectorSize uint64) uint64 {
	n := uint64(src.Size()) / sectorSize
	if n == 0 {
		return 0
	}
	return n - 1
}

func guidFromBytes(b [16]byte) uuid.UUID {
	// GPT GUIDs are mixed-endian (first three fields little-endian); the
	// google/uuid package stores big-endian, so the first 3 fields are
	// byte-swapped on the way in.
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:])
	return u
}

func isZeroGUID(b [16]byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
