package hdrhistogram

import "testing"

func TestCursorDetectsConcurrentModification(t *testing.T) {
	h, err := New(1, 3600000000, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for v := int64(1); v < 1000; v += 10 {
		if err := h.RecordValue(v); err != nil {
			t.Fatalf("RecordValue: %v", err)
		}
	}

	c := h.NewCursor()
	if !c.Next() {
		t.Fatal("expected at least one slot before mutation")
	}

	if err := h.RecordValue(500); err != nil {
		t.Fatalf("RecordValue: %v", err)
	}

	for c.Next() {
	}

	if err := c.Err(); err != ErrConcurrentModification {
		t.Errorf("Err() = %v, want ErrConcurrentModification", err)
	}
}

func TestCursorNoErrorWithoutMutation(t *testing.T) {
	h, err := New(1, 3600000000, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for v := int64(1); v < 1000; v += 10 {
		if err := h.RecordValue(v); err != nil {
			t.Fatalf("RecordValue: %v", err)
		}
	}

	c := h.NewCursor()
	for c.Next() {
	}

	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}
