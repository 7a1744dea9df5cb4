package blockid

// ProbeFn is a detector's entry point. It receives the device and the
// owning session (for flags and pushResult) and either calls
// p.pushResult and returns (Result{}, nil), returns a populated Result
// directly, or returns one of the sentinel errors in errors.go: a
// *ErrUnknownFormat means "my magic matched but the structured check
// failed" (try the next detector), any other error aborts the whole scan.
type ProbeFn func(src ByteSource, p *Probe) (Result, error)

// Idinfo is one registry entry: a detector family's identity, the
// category it belongs to, its magic pre-filter, and its probe function.
// Order in DefaultRegistry is a behavioral contract (spec.md §4.1): it
// resolves ties between formats whose magics can both appear on the same
// bytes (exFAT before VFAT, swsuspend before swap-v1 before swap-v0,
// ext4 before ext3 before ext2, SquashFS v4+ before v3).
type Idinfo struct {
	Name        string
	Usage       UsageType
	CategoryBit FilterMask
	Magics      []Magic
	Probe       ProbeFn
}

// DefaultRegistry is populated by the blank-imported
// internal/blockid/registry package's init(), following the same
// registration-by-side-effect pattern image.RegisterFormat and
// database/sql.Register use — it lives here, rather than being built
// directly in this package, because the individual detector
// implementations (internal/blockid/{filesystems,partitions,containers})
// import this package for its core types, and this package cannot import
// them back without a cycle.
var DefaultRegistry []Idinfo
