package blockid

// Magic is a single (bytes, offset) superblock-magic pattern, the cheap
// pre-filter every detector's probe function runs before doing any
// structured parsing (spec.md §4.1: "a detector record carries one or
// more magic patterns; none matching is an instant skip, no verify call").
type Magic struct {
	Bytes  []byte
	Offset uint64
}

// MatchMagic reports whether any of candidates appears at its offset in
// buf, where buf is assumed to start at device offset zero and to be long
// enough to cover the largest offset+len among candidates. Detectors call
// this against a single buffer they've already read (spec §4.1: "detectors
// should read at most once per magic region").
func MatchMagic(buf []byte, candidates []Magic) bool {
	for _, m := range candidates {
		if matchOne(buf, m) {
			return true
		}
	}
	return false
}

func matchOne(buf []byte, m Magic) bool {
	end := m.Offset + uint64(len(m.Bytes))
	if end > uint64(len(buf)) {
		return false
	}
	return bytesEqual(buf[m.Offset:end], m.Bytes)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MatchMagicAt reads each candidate's bytes from src at that candidate's
// own offset, in order, and returns the index of the first one that
// matched, or -1 if none did. Used for magics that live past the first
// sector (swap's page-end magics, and the dispatcher's pre-filter when a
// detector's magics span more than 64 KiB or more than the device).
func MatchMagicAt(src ByteSource, candidates []Magic) (int, error) {
	for i, m := range candidates {
		buf, err := ReadExact(src, m.Offset, len(m.Bytes))
		if err != nil {
			continue
		}
		if bytesEqual(buf, m.Bytes) {
			return i, nil
		}
	}
	return -1, nil
}
