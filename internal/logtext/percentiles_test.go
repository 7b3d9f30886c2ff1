package logtext

import (
	"bytes"
	"strings"
	"testing"

	hdr "github.com/HdrHistogram/HdrHistogram-sub001"
)

func TestWritePercentileDistribution(t *testing.T) {
	h, err := hdr.New(1, 3600000000, 3)
	if err != nil {
		t.Fatalf("hdr.New: %v", err)
	}
	for v := int64(1); v <= 1000; v++ {
		if err := h.RecordValue(v); err != nil {
			t.Fatalf("RecordValue: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := WritePercentileDistribution(&buf, h, 1, 5); err != nil {
		t.Fatalf("WritePercentileDistribution: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Value") || !strings.Contains(out, "Percentile") {
		t.Errorf("missing header row: %q", out)
	}
	if !strings.Contains(out, "Mean") {
		t.Errorf("missing summary line: %q", out)
	}
}

func TestPercentileTicksMonotonicallyIncreasingToHundred(t *testing.T) {
	ticks := percentileTicks(5)
	if len(ticks) == 0 {
		t.Fatal("percentileTicks returned no ticks")
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] <= ticks[i-1] {
			t.Fatalf("ticks not strictly increasing at index %d: %v <= %v", i, ticks[i], ticks[i-1])
		}
	}
	if ticks[len(ticks)-1] != 100 {
		t.Errorf("last tick = %v, want 100", ticks[len(ticks)-1])
	}
}
