package quota

// Limits defines registry-wide defaults applied to execution contexts.
type Limits struct {
	// ContextCap is the cap given to newly attached contexts.
	// Zero leaves new contexts Unbounded.
	ContextCap uint64

	// MaxContexts is the maximum number of attached contexts.
	// Zero means no limit.
	MaxContexts int
}

const (
	mib = 1 << 20

	defaultContextCap  = 64 * mib
	defaultMaxContexts = 1024
	strictContextCap   = 8 * mib
	strictMaxContexts  = 64
)

// DefaultLimits returns limits suitable for running many sandboxed contexts
// side by side.
func DefaultLimits() Limits {
	return Limits{
		ContextCap:  defaultContextCap,
		MaxContexts: defaultMaxContexts,
	}
}

// StrictLimits returns conservative limits for untrusted workloads.
func StrictLimits() Limits {
	return Limits{
		ContextCap:  strictContextCap,
		MaxContexts: strictMaxContexts,
	}
}

// NoLimits returns limits that attach contexts Unbounded and never refuse one.
func NoLimits() Limits {
	return Limits{}
}
