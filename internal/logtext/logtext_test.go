package logtext

import (
	"bytes"
	"io"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteComment(" a histogram log"); err != nil {
		t.Fatalf("WriteComment: %v", err)
	}
	if err := w.WriteStartTime(1000.5); err != nil {
		t.Fatalf("WriteStartTime: %v", err)
	}

	entries := []Entry{
		{StartTimestamp: 0, IntervalLength: 1, IntervalMax: 900, CompressedHistogram: []byte{1, 2, 3}},
		{Tag: "svc-a", StartTimestamp: 1, IntervalLength: 1, IntervalMax: 950, CompressedHistogram: []byte{4, 5, 6, 7}},
	}
	for _, e := range entries {
		if err := w.WriteEntry(e); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(&buf)

	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.Tag != "" || got.IntervalMax != 900 || !bytes.Equal(got.CompressedHistogram, []byte{1, 2, 3}) {
		t.Errorf("first entry = %+v", got)
	}
	if bt, ok := r.BaseTime(); !ok || bt != 1000.5 {
		t.Errorf("BaseTime() = (%v, %v), want (1000.5, true)", bt, ok)
	}

	got2, err := r.Next()
	if err != nil {
		t.Fatalf("Next (second): %v", err)
	}
	if got2.Tag != "svc-a" || !bytes.Equal(got2.CompressedHistogram, []byte{4, 5, 6, 7}) {
		t.Errorf("second entry = %+v", got2)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next at end = %v, want io.EOF", err)
	}
}

func TestReaderSkipsCommentsAndLegend(t *testing.T) {
	input := "#comment\n" + Legend + "\n0.000,1.000,100.000,AQID\n"
	r := NewReader(bytes.NewReader([]byte(input)))

	e, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e.IntervalMax != 100 {
		t.Errorf("IntervalMax = %v, want 100", e.IntervalMax)
	}
}

func TestNextSkipsMalformedLineByDefault(t *testing.T) {
	input := "not,enough\n0.000,1.000,100.000,AQID\n"
	r := NewReader(bytes.NewReader([]byte(input)))

	e, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if e.IntervalMax != 100 {
		t.Errorf("IntervalMax = %v, want 100", e.IntervalMax)
	}
}

func TestNextReportsMalformedLineToDiagnostic(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("not,enough\n")))

	var reported error
	r.Diagnostic = func(err error) bool {
		reported = err
		return false
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next = %v, want io.EOF after skipping the only line", err)
	}
	if reported == nil {
		t.Fatal("expected Diagnostic to be invoked with the malformed line's error")
	}
}

func TestNextAbortsWhenDiagnosticRequestsIt(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("not,enough\n0.000,1.000,100.000,AQID\n")))
	r.Diagnostic = func(error) bool { return true }

	if _, err := r.Next(); err == nil {
		t.Fatal("expected Next to return the malformed line's error when Diagnostic aborts")
	}
}
