package filesystems

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/ostafen/blockid/internal/blockid"
)

// swapEndOffsets are the 1-page-boundary byte offsets (page size minus
// 10 bytes, for the common page sizes) where a swap/suspend magic string
// can appear, grounded on original_source/filesystems/linux_swap.rs's
// SWAP_V0/V1_ID_INFO and SWSUSPEND_ID_INFO magic tables.
var swapEndOffsets = []uint64{0xFF6, 0x1FF6, 0x3FF6, 0x7FF6, 0xFFF6}

const (
	swapV1Magic    = "SWAPSPACE2"
	swapV0Magic    = "SWAP-SPACE"
	toiMagicString = "\213\0132\0023UNICODETOI" // original_source's TOI_MAGIC_STRING
	suspendMagic   = "S1SUSPEND"
	swsuspendMagic = "S2SUSPEND"
	ulsuspendMagic = "ULSUSPEND"
	linhibMagic    = "LINHIB0001"
)

// swapHeaderV1 is the fixed leading portion of the page-sized swap
// header, grounded on original_source/filesystems/linux_swap.rs's
// SwapHeaderV1 (bootbits are irrelevant to identification and skipped).
type swapHeaderV1 struct {
	Version   uint32
	LastPage  uint32
	NumBadBad uint32
	UUID      [16]byte
	Volume    [16]byte
}

const swapHeaderOffset = 1024

var SwsuspendIdinfo = blockid.Idinfo{
	Name:        "swsuspend",
	Usage:       blockid.UsageOther,
	CategoryBit: blockid.FilterFilesystem,
	Magics:      swapMagicsAt(swsuspendMagic, suspendMagic, ulsuspendMagic, linhibMagic, toiMagicString),
	Probe:       probeSwsuspend,
}

var LinuxSwapV1Idinfo = blockid.Idinfo{
	Name:        "swap",
	Usage:       blockid.UsageOther,
	CategoryBit: blockid.FilterFilesystem,
	Magics:      swapMagicsAt(swapV1Magic),
	Probe:       probeSwapV1,
}

var LinuxSwapV0Idinfo = blockid.Idinfo{
	Name:        "swap",
	Usage:       blockid.UsageOther,
	CategoryBit: blockid.FilterFilesystem,
	Magics:      swapMagicsAt(swapV0Magic),
	Probe:       probeSwapV0,
}

// swapMagicsAt builds the full (bytes, offset) candidate list for a set
// of magic strings across every page-boundary offset: each swapEndOffsets
// entry is itself the start offset a magic is checked at (matching
// original_source's BlockidMagic.b_offset table verbatim — the magics
// are not length-anchored to a common end byte, despite most of them
// sharing length 10).
func swapMagicsAt(magics ...string) []blockid.Magic {
	var out []blockid.Magic
	for _, off := range swapEndOffsets {
		for _, m := range magics {
			out = append(out, blockid.Magic{Bytes: []byte(m), Offset: off})
		}
	}
	return out
}

func littleEndian() binary.ByteOrder { return binary.LittleEndian }

// probeSwsuspend must run before both swap variants (registry order,
// spec.md §9 Open Question #1): a suspend-to-disk image's page header
// can otherwise be mistaken for a live swap signature since both use the
// same page-boundary magic convention.
func probeSwsuspend(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	candidates := swapMagicsAt(swsuspendMagic, suspendMagic, ulsuspendMagic, linhibMagic, toiMagicString)
	idx, err := blockid.MatchMagicAt(src, candidates)
	if err != nil || idx < 0 {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "swsuspend", Reason: "no suspend magic at any page-end offset"}
	}
	pageSize := pageSizeOf(candidates[idx])
	return blockid.FilesystemResultOf(blockid.FilesystemResult{
		Type:        blockid.BlockTypeSwapSuspend,
		Usage:       blockid.UsageOther,
		FSBlockSize: &pageSize,
	}), nil
}

// pageSizeOf derives the swap/suspend page size from the matched magic's
// own position, per spec.md §4.4's swap row: "page size = magic offset +
// magic length". The offsets are page size minus 10, so a 10-byte magic
// ends on the page boundary and a 9-byte one (S1SUSPEND, S2SUSPEND,
// ULSUSPEND) yields one less than the page size.
func pageSizeOf(m blockid.Magic) uint64 {
	return m.Offset + uint64(len(m.Bytes))
}

func probeSwapV1(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	return probeSwapVersioned(src, blockid.BlockTypeLinuxSwapV1, swapV1Magic, "swap", true)
}

func probeSwapV0(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	return probeSwapVersioned(src, blockid.BlockTypeLinuxSwapV0, swapV0Magic, "swap", false)
}

func probeSwapVersioned(src blockid.ByteSource, t blockid.BlockType, magic, name string, hasHeader bool) (blockid.Result, error) {
	candidates := swapMagicsAt(magic)
	idx, err := blockid.MatchMagicAt(src, candidates)
	if err != nil || idx < 0 {
		return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: name, Reason: "no swap magic at any page-end offset"}
	}
	pageSize := pageSizeOf(candidates[idx])

	res := blockid.FilesystemResult{
		Type:        t,
		Usage:       blockid.UsageOther,
		FSBlockSize: &pageSize,
	}
	if hasHeader {
		hdr, err := blockid.ReadStruct[swapHeaderV1](src, swapHeaderOffset, littleEndian())
		if err == nil {
			if u, err := uuid.FromBytes(hdr.UUID[:]); err == nil {
				bu := blockid.NewStandardUUID(u)
				res.UUID = &bu
			}
			label, _ := blockid.DecodeASCIIStrict(hdr.Volume[:])
			if label != "" {
				res.Label = &label
			}
			lastPage := uint64(hdr.LastPage)
			res.FSLastBlock = &lastPage
		}
	}
	return blockid.FilesystemResultOf(res), nil
}
