// Package probe determines the committed size of an allocation without
// requiring the allocator that served it to cooperate.
//
// A pointer owned by a size-class pool has an exact, Known size. Anything
// else is Unknown; for those the caller samples a global heap statistic
// immediately before and after the allocator call and treats the observed
// change as the size. Sampling is best effort: allocations made by other
// goroutines between the two samples are included in the delta.
package probe

import (
	"fmt"

	"github.com/joshuapare/memquota/internal/checked"
)

// Sizer is implemented by allocators that can report the size of blocks they own.
type Sizer interface {
	Owns(b []byte) bool
	BlockSize(b []byte) uint64
}

// HeapStat is a global heap-usage statistic that can be sampled.
type HeapStat interface {
	CurrentHeapBytes() uint64
}

// Size is the outcome of a probe: Known(bytes) or Unknown.
type Size struct {
	Bytes uint64
	Known bool
}

// Known returns a known size of n bytes.
func Known(n uint64) Size { return Size{Bytes: n, Known: true} }

// Unknown returns the unknown size.
func Unknown() Size { return Size{} }

func (s Size) String() string {
	if !s.Known {
		return "unknown"
	}
	return fmt.Sprintf("%d", s.Bytes)
}

// Delta is the change of the heap statistic across a sampled call.
// At most one of Grow and Shrink is non-zero.
type Delta struct {
	Grow   uint64
	Shrink uint64
}

// Prober answers size queries for allocated blocks.
type Prober struct {
	sizer Sizer
	heap  HeapStat
}

// New creates a prober. Either capability may be nil.
func New(sizer Sizer, heap HeapStat) *Prober {
	return &Prober{sizer: sizer, heap: heap}
}

// Size probes b. It must be called while b is still allocated.
// It has no side effects.
func (p *Prober) Size(b []byte) Size {
	if p.sizer == nil || cap(b) == 0 || !p.sizer.Owns(b) {
		return Unknown()
	}
	return Known(p.sizer.BlockSize(b))
}

// CanSample reports whether a heap statistic is available for delta sampling.
func (p *Prober) CanSample() bool {
	return p.heap != nil
}

// Sample runs fn between two reads of the heap statistic and returns the
// observed change. Without a heap statistic fn still runs and the delta is zero.
func (p *Prober) Sample(fn func()) Delta {
	if p.heap == nil {
		fn()
		return Delta{}
	}
	before := p.heap.CurrentHeapBytes()
	fn()
	after := p.heap.CurrentHeapBytes()
	grow, shrink := checked.Delta(before, after)
	return Delta{Grow: grow, Shrink: shrink}
}
