package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/memquota/internal/logger"
	"github.com/joshuapare/memquota/quota"
	"github.com/joshuapare/memquota/tracked"
)

var (
	stressContexts int
	stressWorkers  int
	stressOps      int
	stressCap      uint64
	stressMaxSize  int
	stressSeed     uint64
	stressConfig   string
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressContexts, "contexts", 4, "Number of sandboxed contexts")
	cmd.Flags().IntVar(&stressWorkers, "workers", 4, "Workers per context")
	cmd.Flags().IntVar(&stressOps, "ops", 2000, "Operations per worker")
	cmd.Flags().Uint64Var(&stressCap, "cap", 256<<10, "Cap of every context in bytes")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 8192, "Largest request size in bytes")
	cmd.Flags().Uint64Var(&stressSeed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&stressConfig, "config", "", "Size class config")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a concurrent allocation workload against capped contexts",
		Long: `The stress command starts workers in several capped contexts that
allocate, reallocate and release random sizes concurrently through one shared
tracker. It fails if any context is ever observed above its cap, if a worker
sees an error other than a quota rejection, or if the ledger does not return
to zero once everything is released.

Requests larger than the pool's largest class go to the page-mapped
allocator, whose sizes are measured by sampling a heap statistic. Sampling
is imprecise under concurrency, so the zero-balance check is only enforced
when every request fits the pool.

Example:
  memquotactl stress
  memquotactl stress --contexts 8 --workers 8 --cap 1048576 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context())
		},
	}
	return cmd
}

// stressResult summarizes a stress run.
type stressResult struct {
	Contexts       int           `json:"contexts"`
	Workers        int           `json:"workers"`
	OpsPerWorker   int           `json:"ops_per_worker"`
	Allocations    uint64        `json:"allocations"`
	Reallocations  uint64        `json:"reallocations"`
	Releases       uint64        `json:"releases"`
	Rejections     uint64        `json:"rejections"`
	ExactAccounted bool          `json:"exact_accounted"`
	Residual       uint64        `json:"residual"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	Report         reportOutput  `json:"report"`
}

type stressCounters struct {
	allocs, reallocs, releases, rejections atomic.Uint64
}

type stressWorker struct {
	t        *tracked.Tracker
	g        *quota.Guard
	rng      *rand.Rand
	maxSize  int
	counters *stressCounters
	held     [][]byte
}

const stressCategory = "stress"

func (w *stressWorker) check() error {
	if c, bounded := w.g.Cap(); bounded {
		if used := w.g.Used(); used > c {
			return fmt.Errorf("context %s: used %d exceeds cap %d", w.g.Context(), used, c)
		}
	}
	return nil
}

func (w *stressWorker) accept(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, quota.ErrQuotaExceeded) {
		w.counters.rejections.Add(1)
		return nil
	}
	return err
}

func (w *stressWorker) step() error {
	id := w.g.Context()
	size := 1 + w.rng.IntN(w.maxSize)
	roll := w.rng.IntN(4)

	switch {
	case len(w.held) == 0 || roll < 2:
		b, err := w.t.Allocate(id, stressCategory, size)
		if err == nil {
			w.held = append(w.held, b)
			w.counters.allocs.Add(1)
		}
		return w.accept(err)
	case roll == 2:
		i := w.rng.IntN(len(w.held))
		b, err := w.t.Reallocate(id, stressCategory, w.held[i], size)
		if err == nil {
			w.held[i] = b
			w.counters.reallocs.Add(1)
		}
		return w.accept(err)
	default:
		i := w.rng.IntN(len(w.held))
		w.t.Release(id, stressCategory, w.held[i])
		w.held[i] = w.held[len(w.held)-1]
		w.held = w.held[:len(w.held)-1]
		w.counters.releases.Add(1)
		return nil
	}
}

func (w *stressWorker) run(ctx context.Context, ops int) error {
	defer w.releaseAll()
	for i := 0; i < ops; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.step(); err != nil {
			return err
		}
		if err := w.check(); err != nil {
			return err
		}
	}
	return nil
}

func (w *stressWorker) releaseAll() {
	for _, b := range w.held {
		w.t.Release(w.g.Context(), stressCategory, b)
		w.counters.releases.Add(1)
	}
	w.held = nil
}

// stressParams configures runStressWorkload.
type stressParams struct {
	contexts, workers, ops int
	capBytes               uint64
	maxSize                int
	seed                   uint64
	config                 string
}

func runStressWorkload(ctx context.Context, p stressParams) (*stressResult, error) {
	if p.contexts <= 0 || p.workers <= 0 || p.ops < 0 || p.maxSize <= 0 {
		return nil, fmt.Errorf("contexts, workers and max-size must be positive")
	}
	t, raw, err := newTracker(p.config, "")
	if err != nil {
		return nil, err
	}

	guards := make([]*quota.Guard, p.contexts)
	for i := range guards {
		id := quota.ContextID(fmt.Sprintf("ctx-%02d", i))
		if err := t.SetQuota(id, p.capBytes); err != nil {
			return nil, err
		}
		guards[i], _ = t.Registry().Guard(id)
	}

	var counters stressCounters
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for ci, guard := range guards {
		for wi := 0; wi < p.workers; wi++ {
			w := &stressWorker{
				t:        t,
				g:        guard,
				rng:      rand.New(rand.NewPCG(p.seed, uint64(ci*p.workers+wi))),
				maxSize:  p.maxSize,
				counters: &counters,
			}
			g.Go(func() error { return w.run(gctx, p.ops) })
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &stressResult{
		Contexts:       p.contexts,
		Workers:        p.workers,
		OpsPerWorker:   p.ops,
		Allocations:    counters.allocs.Load(),
		Reallocations:  counters.reallocs.Load(),
		Releases:       counters.releases.Load(),
		Rejections:     counters.rejections.Load(),
		ExactAccounted: p.maxSize <= raw.Pool().MaxBlock(),
		Residual:       t.GlobalUsage(),
		Elapsed:        time.Since(start),
		Report:         reportOutput{Report: t.Report(), RSS: sampleRSS()},
	}
	logger.Info("stress run finished", "allocations", res.Allocations,
		"rejections", res.Rejections, "residual", res.Residual, "elapsed", res.Elapsed)

	if res.ExactAccounted {
		if res.Residual != 0 {
			return res, fmt.Errorf("ledger holds %d bytes after every block was released", res.Residual)
		}
		for _, s := range res.Report.Contexts {
			if s.Used != 0 {
				return res, fmt.Errorf("context %s holds %d bytes after every block was released", s.Context, s.Used)
			}
		}
	}
	return res, nil
}

func runStress(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	printVerbose("Starting %d context(s) x %d worker(s), %d ops each\n",
		stressContexts, stressWorkers, stressOps)

	res, err := runStressWorkload(ctx, stressParams{
		contexts: stressContexts,
		workers:  stressWorkers,
		ops:      stressOps,
		capBytes: stressCap,
		maxSize:  stressMaxSize,
		seed:     stressSeed,
		config:   stressConfig,
	})
	if res == nil {
		return err
	}

	if jsonOut {
		if jerr := printJSON(res); jerr != nil {
			return jerr
		}
		return err
	}

	printInfo("%s\n", headColor("Stress run"))
	printInfo("  Workers:       %d x %d, %d ops each\n", res.Contexts, res.Workers, res.OpsPerWorker)
	printInfo("  Elapsed:       %s\n", res.Elapsed.Round(time.Millisecond))
	printInfo("  Allocations:   %s\n", printer.Sprintf("%d", res.Allocations))
	printInfo("  Reallocations: %s\n", printer.Sprintf("%d", res.Reallocations))
	printInfo("  Releases:      %s\n", printer.Sprintf("%d", res.Releases))
	printInfo("  Rejections:    %s\n", rejectColor(printer.Sprintf("%d", res.Rejections)))
	switch {
	case !res.ExactAccounted:
		printInfo("  Residual:      %s (sampled sizes, not checked)\n", formatBytes(res.Residual))
	case err == nil:
		printInfo("  Residual:      %s\n", okColor(formatBytes(res.Residual)))
	default:
		printInfo("  Residual:      %s\n", failColor(formatBytes(res.Residual)))
	}
	printReport(res.Report.Report, res.Report.RSS)
	return err
}
