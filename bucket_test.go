package hdrhistogram

import "testing"

func TestBitLen(t *testing.T) {
	cases := []struct {
		in   int64
		want int64
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{255, 8},
		{256, 9},
		{1 << 20, 21},
	}
	for _, c := range cases {
		if got := bitLen(c.in); got != c.want {
			t.Errorf("bitLen(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestRoundDownToPowerOfTwo(t *testing.T) {
	cases := []struct{ in, want int64 }{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 2},
		{5, 4},
		{1023, 512},
		{1024, 1024},
	}
	for _, c := range cases {
		if got := roundDownToPowerOfTwo(c.in); got != c.want {
			t.Errorf("roundDownToPowerOfTwo(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestEquivalentValueArithmeticConsistency(t *testing.T) {
	h, err := New(1, 3600000000, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, v := range []int64{1, 2, 100, 12345, 999999, 3599999999} {
		low := h.LowestEquivalentValue(v)
		high := h.HighestEquivalentValue(v)
		next := h.NextNonEquivalentValue(v)

		if low > v {
			t.Errorf("lowestEquivalentValue(%d) = %d, want <= %d", v, low, v)
		}
		if high < v {
			t.Errorf("highestEquivalentValue(%d) = %d, want >= %d", v, high, v)
		}
		if next != high+1 {
			t.Errorf("nextNonEquivalentValue(%d) = %d, want highestEquivalentValue+1 = %d", v, next, high+1)
		}
		if !h.ValuesAreEquivalent(v, low) {
			t.Errorf("value %d not equivalent to its own lowestEquivalentValue %d", v, low)
		}
		if !h.ValuesAreEquivalent(v, high) {
			t.Errorf("value %d not equivalent to its own highestEquivalentValue %d", v, high)
		}
		if h.ValuesAreEquivalent(v, next) {
			t.Errorf("value %d unexpectedly equivalent to nextNonEquivalentValue %d", v, next)
		}
	}
}

func TestCountsIndexForMonotonic(t *testing.T) {
	h, err := New(1, 1000000, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var prevIdx int32 = -1
	var prevValue int64 = -1
	for v := int64(1); v < 1000000; v += 997 {
		idx := h.cfg.countsIndexFor(v)
		if idx < prevIdx {
			t.Fatalf("countsIndexFor not monotonic: value %d (prev %d) -> idx %d < prevIdx %d", v, prevValue, idx, prevIdx)
		}
		prevIdx = idx
		prevValue = v
	}
}
