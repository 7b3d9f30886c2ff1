package hdrhistogram

import "testing"

func TestPackedCountsSparseByDefault(t *testing.T) {
	p := newPackedCounts(10000)
	for _, page := range p.pages {
		if page != nil {
			t.Fatal("newPackedCounts should not allocate any page up front")
		}
	}

	if err := p.set(9000, 42); err != nil {
		t.Fatalf("set: %v", err)
	}

	allocated := 0
	for _, page := range p.pages {
		if page != nil {
			allocated++
		}
	}
	if allocated != 1 {
		t.Fatalf("setting one slot should allocate exactly one page, got %d", allocated)
	}

	if got := p.get(9000); got != 42 {
		t.Fatalf("get(9000) = %d, want 42", got)
	}
	if got := p.get(0); got != 0 {
		t.Fatalf("get(0) = %d, want 0 (untouched slot)", got)
	}
}

func TestPackedCountsResizePreservesValues(t *testing.T) {
	p := newPackedCounts(1000)
	_ = p.set(500, 7)
	_ = p.set(999, 3)

	resized := p.resized(4000).(*packedCounts)
	if got := resized.get(500); got != 7 {
		t.Fatalf("resized.get(500) = %d, want 7", got)
	}
	if got := resized.get(999); got != 3 {
		t.Fatalf("resized.get(999) = %d, want 3", got)
	}
	if resized.length() != 4000 {
		t.Fatalf("resized.length() = %d, want 4000", resized.length())
	}
}

func TestPackedCountsClear(t *testing.T) {
	p := newPackedCounts(1000)
	_ = p.set(10, 1)
	p.clear()
	if got := p.get(10); got != 0 {
		t.Fatalf("get(10) after clear = %d, want 0", got)
	}
	for _, page := range p.pages {
		if page != nil {
			t.Fatal("clear should drop all allocated pages")
		}
	}
}
