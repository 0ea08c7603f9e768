package tracked

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/memquota/alloc"
	"github.com/joshuapare/memquota/internal/checked"
	"github.com/joshuapare/memquota/internal/logger"
	"github.com/joshuapare/memquota/ledger"
	"github.com/joshuapare/memquota/probe"
	"github.com/joshuapare/memquota/quota"
)

// Tracker is the accounted allocation layer.
type Tracker struct {
	raw       alloc.Allocator
	estimator alloc.Estimator
	probe     *probe.Prober
	ledger    *ledger.Ledger
	registry  *quota.Registry
	log       *slog.Logger
}

type config struct {
	sizer     probe.Sizer
	heap      probe.HeapStat
	estimator alloc.Estimator
	ledger    *ledger.Ledger
	registry  *quota.Registry
	log       *slog.Logger
}

// Option configures a Tracker.
type Option func(*config)

// WithSizer overrides the pool capability used by the probe.
func WithSizer(s probe.Sizer) Option {
	return func(c *config) { c.sizer = s }
}

// WithHeapStat overrides the heap statistic sampled for unknown sizes.
func WithHeapStat(h probe.HeapStat) Option {
	return func(c *config) { c.heap = h }
}

// WithEstimator overrides the committed-size estimator.
func WithEstimator(e alloc.Estimator) Option {
	return func(c *config) { c.estimator = e }
}

// WithLedger shares an existing ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(c *config) { c.ledger = l }
}

// WithRegistry injects the execution context registry.
func WithRegistry(r *quota.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithLogger sets the logger. Defaults to the package-global logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// heapStatReporter is implemented by allocators whose heap statistic is optional.
type heapStatReporter interface {
	HasHeapStat() bool
}

// New wraps raw. Probe capabilities are discovered from raw unless set
// through options.
func New(raw alloc.Allocator, opts ...Option) *Tracker {
	var cfg config
	if s, ok := raw.(probe.Sizer); ok {
		cfg.sizer = s
	}
	if h, ok := raw.(probe.HeapStat); ok {
		cfg.heap = h
		if r, ok := raw.(heapStatReporter); ok && !r.HasHeapStat() {
			cfg.heap = nil
		}
	}
	if e, ok := raw.(alloc.Estimator); ok {
		cfg.estimator = e
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ledger == nil {
		var lopts []ledger.Option
		if cfg.log != nil {
			lopts = append(lopts, ledger.WithLogger(cfg.log))
		}
		cfg.ledger = ledger.New(lopts...)
	}
	if cfg.registry == nil {
		cfg.registry = quota.NewRegistry(quota.NoLimits())
	}

	return &Tracker{
		raw:       raw,
		estimator: cfg.estimator,
		probe:     probe.New(cfg.sizer, cfg.heap),
		ledger:    cfg.ledger,
		registry:  cfg.registry,
		log:       cfg.log,
	}
}

// NewDefault builds a Tracker over a tiered pool + system allocator.
func NewDefault(opts ...Option) *Tracker {
	return New(alloc.NewTiered(alloc.NewPool(alloc.DefaultConfig), alloc.NewSystem()), opts...)
}

func (t *Tracker) logger() *slog.Logger {
	if t.log != nil {
		return t.log
	}
	return logger.L
}

// Allocate returns a block of n bytes accounted to category and, when id
// has a guard attached, charged against its quota.
func (t *Tracker) Allocate(id quota.ContextID, category string, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %w", alloc.ErrOutOfMemory, alloc.ErrNegativeSize)
	}
	g, _ := t.registry.Guard(id)
	est, _ := t.estimate(n)

	if g != nil {
		if err := g.Reserve(est); err != nil {
			t.logger().Debug("allocation rejected",
				"context", id, "category", category, "bytes", n, "error", err)
			return nil, err
		}
	}

	b, actual, err := t.allocRaw(n)
	if err != nil {
		if g != nil {
			g.Release(est)
		}
		return nil, err
	}

	if g != nil {
		if err := settle(g, est, actual); err != nil {
			t.raw.Free(b)
			g.Release(est)
			t.logger().Debug("allocation rolled back",
				"context", id, "category", category, "estimate", est, "committed", actual)
			return nil, fmt.Errorf("tracked: committed %d bytes against an estimate of %d: %w",
				actual, est, err)
		}
	}

	t.ledger.Track(category, actual)
	return b, nil
}

// Reallocate resizes b to n bytes. The guard is charged only the net change
// and growth is reserved before any memory is committed. On error b is still
// valid and every counter is unchanged.
func (t *Tracker) Reallocate(id quota.ContextID, category string, b []byte, n int) ([]byte, error) {
	if cap(b) == 0 {
		return t.Allocate(id, category, n)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: %w", alloc.ErrOutOfMemory, alloc.ErrNegativeSize)
	}

	old := t.probe.Size(b)
	held := old.Bytes
	if !old.Known {
		held = uint64(cap(b))
	}
	est, pooled := t.estimate(n)

	// Same tier, same committed size: the allocator keeps the block.
	if t.estimator != nil && est == held && pooled == old.Known {
		return t.resize(id, category, b, n, held)
	}
	return t.move(id, category, b, n, held, est)
}

// resize lets the allocator resize b in place. held is the committed size
// of b, which the new size is expected to keep.
func (t *Tracker) resize(id quota.ContextID, category string, b []byte, n int, held uint64) ([]byte, error) {
	var (
		nb  []byte
		err error
	)
	d := t.probe.Sample(func() { nb, err = t.raw.Realloc(b, n) })
	if err != nil {
		return nil, err
	}

	actual := uint64(cap(nb))
	if size := t.probe.Size(nb); size.Known {
		actual = size.Bytes
	} else if t.probe.CanSample() {
		sum, _ := checked.Add(held, d.Grow)
		actual, _ = checked.Sub(sum, d.Shrink)
	}

	grow, shrink := checked.Delta(held, actual)
	t.ledger.Track(category, grow)
	t.ledger.Untrack(category, shrink)

	if g, ok := t.registry.Guard(id); ok {
		if shrink > 0 && g.Release(shrink) {
			t.ledger.Flag("guard release below zero", "context", id, "category", category, "bytes", shrink)
		}
		if grow > 0 {
			if err := g.Reserve(grow); err != nil {
				t.ledger.Flag("allocator grew a block it estimated unchanged",
					"context", id, "category", category, "held", held, "committed", actual)
			}
		}
	}
	return nb, nil
}

// move reallocates by allocating the new block, copying and freeing b. The
// tracker performs the move itself so that a rejected growth can free the
// new block while b is still intact.
func (t *Tracker) move(id quota.ContextID, category string, b []byte, n int, held, est uint64) ([]byte, error) {
	g, _ := t.registry.Guard(id)
	reserved, _ := checked.Delta(held, est)

	if g != nil {
		if err := g.Reserve(reserved); err != nil {
			t.logger().Debug("reallocation rejected",
				"context", id, "category", category, "from", held, "to", n, "error", err)
			return nil, err
		}
	}

	nb, actual, err := t.allocRaw(n)
	if err != nil {
		if g != nil {
			g.Release(reserved)
		}
		return nil, err
	}

	if g != nil {
		if need, _ := checked.Delta(held, actual); need > reserved {
			if err := g.Reserve(need - reserved); err != nil {
				t.raw.Free(nb)
				g.Release(reserved)
				t.logger().Debug("reallocation rolled back",
					"context", id, "category", category, "estimate", est, "committed", actual)
				return nil, fmt.Errorf("tracked: reallocation committed %d bytes against an estimate of %d: %w",
					actual, est, err)
			}
			reserved = need
		}
	}

	copy(nb, b)
	freed := t.free(b)
	t.ledger.Track(category, actual)
	t.ledger.Untrack(category, freed)
	if g != nil {
		t.settleMove(g, id, category, reserved, actual, freed)
	}
	return nb, nil
}

// settleMove brings a guard that holds reserved bytes on top of the old
// block's charge to the net change actual - freed of a completed move.
func (t *Tracker) settleMove(g *quota.Guard, id quota.ContextID, category string, reserved, actual, freed uint64) {
	if actual < freed {
		if g.Release(reserved + (freed - actual)) {
			t.ledger.Flag("guard release below zero", "context", id, "category", category, "bytes", freed-actual)
		}
		return
	}
	switch net := actual - freed; {
	case reserved > net:
		g.Release(reserved - net)
	case reserved < net:
		// Only sampled sizes get here: the old block freed less than it was charged.
		if err := g.Reserve(net - reserved); err != nil {
			t.ledger.Flag("moved block freed less than its charge",
				"context", id, "category", category, "committed", actual, "freed", freed)
		}
	}
}

// Release frees b and removes its committed size from the ledger and from
// id's guard. Releasing a nil block is a no-op.
func (t *Tracker) Release(id quota.ContextID, category string, b []byte) {
	if cap(b) == 0 {
		return
	}
	freed := t.free(b)

	t.ledger.Untrack(category, freed)
	if g, ok := t.registry.Guard(id); ok {
		if g.Release(freed) {
			t.ledger.Flag("guard release below zero", "context", id, "category", category, "bytes", freed)
		}
	}
}

// free returns b to the allocator and reports the committed bytes it held.
func (t *Tracker) free(b []byte) uint64 {
	size := t.probe.Size(b)
	d := t.probe.Sample(func() { t.raw.Free(b) })
	switch {
	case size.Known:
		return size.Bytes
	case t.probe.CanSample():
		return d.Shrink
	default:
		return uint64(cap(b))
	}
}

// allocRaw performs the underlying allocation and determines its committed size.
func (t *Tracker) allocRaw(n int) ([]byte, uint64, error) {
	var (
		b   []byte
		err error
	)
	d := t.probe.Sample(func() { b, err = t.raw.Alloc(n) })
	if err != nil {
		return nil, 0, err
	}
	return b, t.committed(b, d), nil
}

// committed resolves the size of a freshly returned block: the pool's block
// size when known, the sampled heap growth otherwise, and the block's
// capacity when the allocator offers neither.
func (t *Tracker) committed(b []byte, d probe.Delta) uint64 {
	if size := t.probe.Size(b); size.Known {
		return size.Bytes
	}
	if t.probe.CanSample() {
		return d.Grow
	}
	return uint64(cap(b))
}

func (t *Tracker) estimate(n int) (uint64, bool) {
	if t.estimator != nil {
		if size, pooled := t.estimator.Estimate(n); size > 0 {
			return size, pooled
		}
	}
	if n == 0 {
		return 1, false
	}
	return uint64(n), false
}

// settle corrects a reservation of reserved bytes to the committed size.
func settle(g *quota.Guard, reserved, actual uint64) error {
	grow, shrink := checked.Delta(reserved, actual)
	if shrink > 0 {
		g.Release(shrink)
	}
	if grow > 0 {
		return g.Reserve(grow)
	}
	return nil
}
