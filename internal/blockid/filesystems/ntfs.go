package filesystems

import (
	"github.com/ostafen/blockid/internal/blockid"
)

// NtfsIdinfo is declared but intentionally never added to
// internal/blockid/registry's DefaultRegistry, mirroring
// original_source/filesystems/ntfs.rs: a 20-line stub with a magic table
// and no verify implementation. SPEC_FULL.md §4.4 keeps it as a named,
// reachable-by-direct-call detector (tests can still exercise it) without
// claiming a finished NTFS implementation the source material never
// provided.
var NtfsIdinfo = blockid.Idinfo{
	Name:        "ntfs",
	Usage:       blockid.UsageFilesystem,
	CategoryBit: blockid.FilterFilesystem,
	Magics:      []blockid.Magic{{Bytes: []byte("NTFS    "), Offset: 3}},
	Probe:       probeNtfs,
}

func probeNtfs(src blockid.ByteSource, p *blockid.Probe) (blockid.Result, error) {
	return blockid.Result{}, &blockid.ErrUnknownFormat{Detector: "ntfs", Reason: "NTFS structured verification not implemented"}
}
