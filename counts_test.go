package hdrhistogram

import "testing"

func TestCountsBackendsImplementSameContract(t *testing.T) {
	kinds := []backendKind{BackendU16, BackendU32, BackendU64, BackendAtomicU64, BackendPacked}

	for _, kind := range kinds {
		b := newCountsBackend(kind, 16)

		if err := b.set(3, 5); err != nil {
			t.Fatalf("kind %v: set: %v", kind, err)
		}
		if got := b.get(3); got != 5 {
			t.Fatalf("kind %v: get(3) = %d, want 5", kind, got)
		}

		if err := b.addTo(3, 2); err != nil {
			t.Fatalf("kind %v: addTo: %v", kind, err)
		}
		if got := b.get(3); got != 7 {
			t.Fatalf("kind %v: get(3) after addTo = %d, want 7", kind, got)
		}

		if err := b.increment(3); err != nil {
			t.Fatalf("kind %v: increment: %v", kind, err)
		}
		if got := b.get(3); got != 8 {
			t.Fatalf("kind %v: get(3) after increment = %d, want 8", kind, got)
		}

		clone := b.clone()
		if got := clone.get(3); got != 8 {
			t.Fatalf("kind %v: clone().get(3) = %d, want 8", kind, got)
		}
		_ = clone.set(3, 100)
		if got := b.get(3); got != 8 {
			t.Fatalf("kind %v: mutating clone affected original, got %d", kind, got)
		}

		b.clear()
		if got := b.get(3); got != 0 {
			t.Fatalf("kind %v: get(3) after clear = %d, want 0", kind, got)
		}

		resized := b.resized(32)
		if resized.length() != 32 {
			t.Fatalf("kind %v: resized length = %d, want 32", kind, resized.length())
		}
	}
}

func TestNarrowBackendsOverflow(t *testing.T) {
	u16 := newCountsBackend(BackendU16, 4)
	if err := u16.set(0, 70000); err == nil {
		t.Fatal("countsU16.set(0, 70000): expected overflow error, got nil")
	}

	u32 := newCountsBackend(BackendU32, 4)
	if err := u32.set(0, int64(1)<<40); err == nil {
		t.Fatal("countsU32.set(0, 2^40): expected overflow error, got nil")
	}
}
