// Package checked contains overflow-aware helpers for the unsigned byte
// counters kept by the ledger and the quota guards.
package checked

import "math/bits"

// Add returns a+b, with ok = false when the sum does not fit in a uint64.
func Add(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, false
	}
	return sum, true
}

// Sub returns a-b clamped at zero. clamped reports whether b exceeded a.
func Sub(a, b uint64) (diff uint64, clamped bool) {
	if b > a {
		return 0, true
	}
	return a - b, false
}

// RoundUp rounds n up to the next multiple of align (a power of two).
// Returns ok = false when the rounded value would overflow.
func RoundUp(n, align uint64) (uint64, bool) {
	if align == 0 {
		return n, true
	}
	sum, ok := Add(n, align-1)
	if !ok {
		return 0, false
	}
	return sum &^ (align - 1), true
}

// Size converts a Go length into a byte count, rejecting negative values.
func Size(n int) (uint64, bool) {
	if n < 0 {
		return 0, false
	}
	return uint64(n), true
}

// Length converts a byte count back into a Go length.
// Returns ok = false when n does not fit in an int.
func Length(n uint64) (int, bool) {
	if n > uint64(^uint(0)>>1) {
		return 0, false
	}
	return int(n), true
}

// Delta splits the signed change from old to cur into its grow and shrink
// parts. At most one of the two is non-zero.
func Delta(old, cur uint64) (grow, shrink uint64) {
	if cur >= old {
		return cur - old, 0
	}
	return 0, old - cur
}
