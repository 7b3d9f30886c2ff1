package hdrhistogram

import (
	"math"
	"testing"
)

func TestDoubleHistogramRecordValue(t *testing.T) {
	d, err := NewDouble(1000, 3)
	if err != nil {
		t.Fatalf("NewDouble: %v", err)
	}

	if err := d.RecordValue(1.5); err != nil {
		t.Fatalf("RecordValue: %v", err)
	}
	if err := d.RecordValue(2.5); err != nil {
		t.Fatalf("RecordValue: %v", err)
	}

	if got := d.GetTotalCount(); got != 2 {
		t.Errorf("GetTotalCount() = %d, want 2", got)
	}

	mean := d.GetMean()
	if math.Abs(mean-2.0) > 0.5 {
		t.Errorf("GetMean() = %v, want close to 2.0", mean)
	}
}

func TestDoubleHistogramRejectsInvalidValues(t *testing.T) {
	d, _ := NewDouble(1000, 3)

	if err := d.RecordValue(-1); err == nil {
		t.Fatal("RecordValue(-1): expected error, got nil")
	}
	if err := d.RecordValue(math.NaN()); err == nil {
		t.Fatal("RecordValue(NaN): expected error, got nil")
	}
	if err := d.RecordValue(math.Inf(1)); err == nil {
		t.Fatal("RecordValue(+Inf): expected error, got nil")
	}
}

func TestDoubleHistogramShiftsRatioForOutOfRangeValues(t *testing.T) {
	d, err := NewDouble(1000, 3)
	if err != nil {
		t.Fatalf("NewDouble: %v", err)
	}

	initialRatio := d.Ratio()

	if err := d.RecordValue(1e9); err != nil {
		t.Fatalf("RecordValue(1e9): %v", err)
	}

	if d.Ratio() == initialRatio {
		t.Error("Ratio() unchanged after recording a far out-of-range value")
	}

	max := d.GetMaxValue()
	if math.Abs(max-1e9)/1e9 > 0.01 {
		t.Errorf("GetMaxValue() = %v, want close to 1e9", max)
	}
}

func TestDoubleHistogramRecordValueZero(t *testing.T) {
	d, _ := NewDouble(1000, 3)
	if err := d.RecordValue(0); err != nil {
		t.Fatalf("RecordValue(0): %v", err)
	}
	if got := d.GetTotalCount(); got != 1 {
		t.Errorf("GetTotalCount() = %d, want 1", got)
	}
}

func TestDoubleHistogramCopyIsIndependent(t *testing.T) {
	d, _ := NewDouble(1000, 3)
	_ = d.RecordValue(5)

	cp := d.Copy()
	_ = d.RecordValue(5)

	if cp.GetTotalCount() != 1 {
		t.Errorf("copy's GetTotalCount() = %d, want 1", cp.GetTotalCount())
	}
}
