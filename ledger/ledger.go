// Package ledger keeps the process-wide byte usage counters.
//
// The ledger is pure bookkeeping: Track and Untrack always succeed. A
// decrement that would drive a counter below zero is clamped and recorded
// as an accounting inconsistency, which points at a size mismatch upstream.
package ledger

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/memquota/internal/checked"
	"github.com/joshuapare/memquota/internal/logger"
)

// Ledger holds the global usage counter and its per-category partition.
type Ledger struct {
	mu         sync.Mutex
	categories map[string]uint64

	// Written under mu, read lock-free.
	global atomic.Uint64
	peak   atomic.Uint64

	inconsistencies atomic.Uint64
	log             *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for inconsistency reports.
// Defaults to the package-global logger.
func WithLogger(l *slog.Logger) Option {
	return func(led *Ledger) { led.log = l }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{categories: make(map[string]uint64)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Track adds n bytes to the global counter and to category.
// An empty category only updates the global counter.
func (l *Ledger) Track(category string, n uint64) {
	if n == 0 {
		return
	}
	l.mu.Lock()
	global, gok := checked.Add(l.global.Load(), n)
	if !gok {
		global = ^uint64(0)
	}
	l.global.Store(global)
	if global > l.peak.Load() {
		l.peak.Store(global)
	}
	cok := true
	if category != "" {
		var v uint64
		v, cok = checked.Add(l.categories[category], n)
		if !cok {
			v = ^uint64(0)
		}
		l.categories[category] = v
	}
	l.mu.Unlock()

	if !gok || !cok {
		l.Flag("counter saturated", "category", category, "bytes", n)
	}
}

// Untrack subtracts n bytes from the global counter and from category,
// clamping both at zero. Reports whether clamping occurred.
func (l *Ledger) Untrack(category string, n uint64) bool {
	if n == 0 {
		return false
	}
	l.mu.Lock()
	global, gclamped := checked.Sub(l.global.Load(), n)
	l.global.Store(global)
	cclamped := false
	if category != "" {
		var v uint64
		v, cclamped = checked.Sub(l.categories[category], n)
		l.categories[category] = v
	}
	l.mu.Unlock()

	if gclamped || cclamped {
		l.Flag("untrack below zero", "category", category, "bytes", n,
			"global_clamped", gclamped, "category_clamped", cclamped)
		return true
	}
	return false
}

// Flag records an accounting inconsistency. It never fails and is never
// surfaced to allocation callers.
func (l *Ledger) Flag(msg string, args ...any) {
	l.inconsistencies.Add(1)
	l.logger().Warn("accounting inconsistency: "+msg, args...)
}

func (l *Ledger) logger() *slog.Logger {
	if l.log != nil {
		return l.log
	}
	return logger.L
}

// Global returns the bytes currently attributed to live tracked allocations.
func (l *Ledger) Global() uint64 {
	return l.global.Load()
}

// Peak returns the highest value Global has reached.
func (l *Ledger) Peak() uint64 {
	return l.peak.Load()
}

// Category returns the bytes attributed to category.
func (l *Ledger) Category(category string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.categories[category]
}

// Inconsistencies returns how many inconsistencies have been flagged.
func (l *Ledger) Inconsistencies() uint64 {
	return l.inconsistencies.Load()
}

// CategoryUsage is one row of a Snapshot.
type CategoryUsage struct {
	Name  string `json:"name"`
	Bytes uint64 `json:"bytes"`
}

// Snapshot is a consistent view of the ledger.
type Snapshot struct {
	Global          uint64          `json:"global"`
	Peak            uint64          `json:"peak"`
	Inconsistencies uint64          `json:"inconsistencies"`
	Categories      []CategoryUsage `json:"categories"`
}

// Snapshot returns the counters, categories sorted by name.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	s := Snapshot{
		Global:     l.global.Load(),
		Peak:       l.peak.Load(),
		Categories: make([]CategoryUsage, 0, len(l.categories)),
	}
	for name, bytes := range l.categories {
		s.Categories = append(s.Categories, CategoryUsage{Name: name, Bytes: bytes})
	}
	l.mu.Unlock()

	s.Inconsistencies = l.inconsistencies.Load()
	sort.Slice(s.Categories, func(i, j int) bool {
		return s.Categories[i].Name < s.Categories[j].Name
	})
	return s
}
