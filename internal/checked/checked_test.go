package checked

import (
	"math"
	"testing"
)

func TestAdd(t *testing.T) {
	if sum, ok := Add(10, 5); !ok || sum != 15 {
		t.Fatalf("Add(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := Add(math.MaxUint64, 1); ok {
		t.Fatalf("expected overflow when adding to MaxUint64")
	}
	if sum, ok := Add(math.MaxUint64-1, 1); !ok || sum != math.MaxUint64 {
		t.Fatalf("Add(MaxUint64-1,1)=%d,%v want MaxUint64,true", sum, ok)
	}
}

func TestSub(t *testing.T) {
	if diff, clamped := Sub(10, 4); clamped || diff != 6 {
		t.Fatalf("Sub(10,4)=%d,%v want 6,false", diff, clamped)
	}
	if diff, clamped := Sub(4, 10); !clamped || diff != 0 {
		t.Fatalf("Sub(4,10)=%d,%v want 0,true", diff, clamped)
	}
	if diff, clamped := Sub(7, 7); clamped || diff != 0 {
		t.Fatalf("Sub(7,7)=%d,%v want 0,false", diff, clamped)
	}
}

func TestRoundUp(t *testing.T) {
	cases := []struct {
		n, align, want uint64
	}{
		{0, 4096, 0},
		{1, 4096, 4096},
		{4096, 4096, 4096},
		{4097, 4096, 8192},
		{13, 8, 16},
		{13, 0, 13},
	}
	for _, tc := range cases {
		got, ok := RoundUp(tc.n, tc.align)
		if !ok || got != tc.want {
			t.Fatalf("RoundUp(%d,%d)=%d,%v want %d,true", tc.n, tc.align, got, ok, tc.want)
		}
	}
	if _, ok := RoundUp(math.MaxUint64-2, 4096); ok {
		t.Fatalf("expected overflow rounding near MaxUint64")
	}
}

func TestSizeAndLength(t *testing.T) {
	if _, ok := Size(-1); ok {
		t.Fatalf("Size should reject negative lengths")
	}
	if n, ok := Size(42); !ok || n != 42 {
		t.Fatalf("Size(42)=%d,%v", n, ok)
	}
	if _, ok := Length(math.MaxUint64); ok {
		t.Fatalf("Length should reject values beyond MaxInt")
	}
	if n, ok := Length(42); !ok || n != 42 {
		t.Fatalf("Length(42)=%d,%v", n, ok)
	}
}

func TestDelta(t *testing.T) {
	if g, s := Delta(10, 25); g != 15 || s != 0 {
		t.Fatalf("Delta(10,25)=%d,%d want 15,0", g, s)
	}
	if g, s := Delta(25, 10); g != 0 || s != 15 {
		t.Fatalf("Delta(25,10)=%d,%d want 0,15", g, s)
	}
}
