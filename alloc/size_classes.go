package alloc

import (
	"fmt"
	"math"
)

// blockAlign is the alignment of every pool block size.
const blockAlign = 16

// SizeClassConfig defines the pool's size class strategy.
type SizeClassConfig struct {
	// Name for this configuration (shown by memquotactl classes)
	Name string

	// Small allocation settings (linear increments)
	SmallMin       int // Smallest block size
	SmallMax       int // Largest block size reached with linear increments
	SmallIncrement int // Step between small classes

	// Medium allocation settings (geometric growth)
	MediumMax    int     // Largest block size served by the pool
	GrowthFactor float64 // Growth factor between medium classes
}

// Predefined configurations.
var (
	// SmallObject mirrors a classic small-object allocator: 16-byte steps up
	// to 512 bytes and nothing above.
	ConfigSmallObject = SizeClassConfig{
		Name:           "SmallObject",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      512,
		GrowthFactor:   1,
	}

	// Balanced: 16-byte steps to 512, then x1.5 up to 16KB.
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      16384,
		GrowthFactor:   1.5,
	}

	// Coarse: fewer buckets, more internal fragmentation.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       32,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      16384,
		GrowthFactor:   2.0,
	}

	// Default configuration (used if none specified).
	DefaultConfig = ConfigBalanced
)

// Configs lists the predefined configurations by name.
var Configs = map[string]SizeClassConfig{
	ConfigSmallObject.Name: ConfigSmallObject,
	ConfigBalanced.Name:    ConfigBalanced,
	ConfigCoarse.Name:      ConfigCoarse,
}

// Validate reports whether the configuration can produce a class table.
func (c SizeClassConfig) Validate() error {
	switch {
	case c.SmallMin <= 0:
		return fmt.Errorf("alloc: size classes %q: SmallMin must be positive", c.Name)
	case c.SmallIncrement <= 0:
		return fmt.Errorf("alloc: size classes %q: SmallIncrement must be positive", c.Name)
	case c.SmallMax < c.SmallMin:
		return fmt.Errorf("alloc: size classes %q: SmallMax %d < SmallMin %d", c.Name, c.SmallMax, c.SmallMin)
	case c.MediumMax < c.SmallMax:
		return fmt.Errorf("alloc: size classes %q: MediumMax %d < SmallMax %d", c.Name, c.MediumMax, c.SmallMax)
	case c.MediumMax > c.SmallMax && c.GrowthFactor <= 1:
		return fmt.Errorf("alloc: size classes %q: GrowthFactor must exceed 1", c.Name)
	}
	return nil
}

// sizeClassTable holds the computed block size of each class.
type sizeClassTable struct {
	config SizeClassConfig
	sizes  []int // Block size of each class, ascending
}

// newSizeClassTable computes class block sizes from config.
func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	table := &sizeClassTable{
		config: config,
		sizes:  make([]int, 0, 64),
	}

	// Phase 1: small classes (linear increments)
	for size := config.SmallMin; size <= config.SmallMax; size += config.SmallIncrement {
		table.add(size)
	}

	// Phase 2: medium classes (geometric growth)
	size := table.largest()
	for size < config.MediumMax {
		next := int(math.Ceil(float64(size) * config.GrowthFactor))
		if next > config.MediumMax {
			next = config.MediumMax
		}
		table.add(next)
		size = table.largest()
	}

	return table
}

// add appends size rounded to blockAlign, skipping duplicates.
func (t *sizeClassTable) add(size int) {
	size = (size + blockAlign - 1) &^ (blockAlign - 1)
	if len(t.sizes) > 0 && size <= t.largest() {
		return
	}
	t.sizes = append(t.sizes, size)
}

func (t *sizeClassTable) largest() int {
	if len(t.sizes) == 0 {
		return 0
	}
	return t.sizes[len(t.sizes)-1]
}

// classFor returns the smallest class whose block fits n bytes.
// Returns NumClasses() when n exceeds every class.
func (t *sizeClassTable) classFor(n int) int {
	lo, hi := 0, len(t.sizes)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if t.sizes[mid] < n {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// String returns the configuration name.
func (t *sizeClassTable) String() string {
	return t.config.Name
}

// NumClasses returns the number of size classes.
func (t *sizeClassTable) NumClasses() int {
	return len(t.sizes)
}
