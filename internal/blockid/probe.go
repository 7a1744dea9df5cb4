package blockid

import (
	"fmt"
)

// Filter bits select which categories/individual detectors a Probe
// session will run, per spec.md §3's filter mask. Category bits are
// coarse (skip whole families); individual bits (one per detector, in
// registry order) give fine-grained exclusion for callers that want e.g.
// "everything except LUKS".
type FilterMask uint64

const (
	FilterContainer FilterMask = 1 << iota
	FilterPartitionTable
	FilterFilesystem

	firstIndividualBit = 1 << 8
)

// IndividualBit returns the exclusion bit for the detector at registry
// index i (0-based). Only the first 56 registry entries are individually
// addressable this way; the registry here has far fewer.
func IndividualBit(i int) FilterMask {
	return FilterMask(firstIndividualBit) << uint(i)
}

// Flags records session-scoped facts a Probe discovers about the device
// as it runs, so later detectors (or repeated calls within one session)
// don't redo expensive or stateful checks (spec.md §3).
type Flags struct {
	TinyDevice    bool // device shorter than the largest detector's read span
	OpalChecked   bool
	OpalLocked    bool
	ForceGPTPMBR  bool // skip the GPT detector's protective-MBR check (--force-gpt-pmbr)
}

// Probe is one identification session against a single ByteSource. It
// holds exactly one result slot: the dispatcher stops at the first
// successful detector, and a second attempt to populate the slot within
// the same session is a logged programming-error diagnostic, never a
// panic (spec.md §3 "single result slot").
type Probe struct {
	Src        ByteSource
	SectorSize uint64
	Filter     FilterMask
	Flags      Flags
	Logger     func(format string, args ...any)

	result    *Result
	resultSet bool
}

// New builds a Probe session over src. sectorSize is the device's logical
// sector size (512 for a regular file, queried via ioctl for a real block
// device — see internal/disk.Device).
func New(src ByteSource, sectorSize uint64) *Probe {
	size := src.Size()
	return &Probe{
		Src:        src,
		SectorSize: sectorSize,
		Filter:     FilterContainer | FilterPartitionTable | FilterFilesystem,
		Flags: Flags{
			TinyDevice: size < maxDetectorSpan,
		},
		Logger: func(string, ...any) {},
	}
}

// maxDetectorSpan is a generous upper bound on the bytes the magic
// pre-filter and detectors read (the swap page-end magics reach 64 KiB),
// used only to set Flags.TinyDevice; no detector in this module reads
// that flag.
const maxDetectorSpan = 96 * 1024

// pushResult installs r as the session's result. Per spec.md's single-
// result-slot invariant, a second call is a logged diagnostic of a
// registry bug (two detectors both claimed a match), not a crash — the
// first result wins and is left untouched.
func (p *Probe) pushResult(detector string, r Result) {
	if p.resultSet {
		p.Logger("blockid: detector %q matched after a result was already set; ignoring (registry bug: overlapping detectors?)", detector)
		return
	}
	p.result = &r
	p.resultSet = true
}

// Run executes the registry against p's ByteSource in order, honoring
// p.Filter, and returns the first successful detector's result. If no
// detector's magic matched (or every match that tried failed verification
// with ErrUnknownFormat), it returns ErrNoMatch — a positive "identified
// as nothing" outcome, distinct from an I/O failure which is returned
// as-is so the caller can tell the two apart (spec.md §7).
func (p *Probe) Run() (Result, error) {
	return p.RunRegistry(DefaultRegistry)
}

// RunRegistry runs an explicit detector list instead of DefaultRegistry;
// tests use this to exercise ordering in isolation.
func (p *Probe) RunRegistry(reg []Idinfo) (Result, error) {
	for i, entry := range reg {
		if p.Filter&entry.CategoryBit == 0 {
			continue
		}
		if hasIndividualBit(p.Filter, i) && p.Filter&IndividualBit(i) != 0 {
			continue
		}
		if len(entry.Magics) > 0 {
			buf, err := p.magicWindow(entry.Magics)
			if err != nil {
				continue
			}
			if !MatchMagic(buf, entry.Magics) {
				continue
			}
		}

		p.resultSet = false
		p.result = nil

		r, err := entry.Probe(p.Src, p)
		if err != nil {
			switch err.(type) {
			case *ErrUnknownFormat:
				p.Logger("blockid: detector %q rejected: %v", entry.Name, err)
				continue
			default:
				return Result{}, fmt.Errorf("blockid: detector %q: %w", entry.Name, err)
			}
		}
		if p.resultSet {
			return *p.result, nil
		}
		// A detector returned (Result{}, nil) without calling pushResult;
		// treat its literal return value as the match (all of
		// the detectors in this module build their Result directly
		// rather than through pushResult).
		if r.Kind != 0 || r.Container != nil || r.PartTable != nil || r.Filesystem != nil {
			return r, nil
		}
	}
	return Result{}, ErrNoMatch
}

// hasIndividualBit reports whether the registry entry at i has ever been
// assigned an individual bit worth checking (i.e. i < 56, the width of
// the individual-bit field above the reserved low byte of FilterMask).
func hasIndividualBit(mask FilterMask, i int) bool {
	return i < 56
}

// magicWindow reads the smallest single contiguous span covering every
// magic in magics, or the widest separately if they're not contiguous;
// the simple and sufficient implementation here just reads each
// candidate's own span independently through MatchMagicAt when offsets
// diverge widely, falling back to a single bounded window for the common
// case of one or few nearby magics.
func (p *Probe) magicWindow(magics []Magic) ([]byte, error) {
	var maxEnd uint64
	for _, m := range magics {
		e := m.Offset + uint64(len(m.Bytes))
		if e > maxEnd {
			maxEnd = e
		}
	}
	if maxEnd == 0 || maxEnd > 64*1024 || maxEnd > uint64(p.Src.Size()) {
		// Sparse/far-apart magics (e.g. swap's five superblock-end
		// offsets), or a window longer than the device: let MatchMagicAt
		// do per-candidate reads instead.
		idx, err := MatchMagicAt(p.Src, magics)
		if err != nil || idx < 0 {
			return nil, ErrNoMatch
		}
		// Build a synthetic buffer so MatchMagic's caller-side check
		// still succeeds: only the winning candidate needs to match.
		return magicSyntheticBuf(magics[idx]), nil
	}
	buf, err := ReadExact(p.Src, 0, int(maxEnd))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func magicSyntheticBuf(m Magic) []byte {
	buf := make([]byte, m.Offset+uint64(len(m.Bytes)))
	copy(buf[m.Offset:], m.Bytes)
	return buf
}
