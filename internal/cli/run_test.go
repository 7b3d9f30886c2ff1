package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	hdr "github.com/HdrHistogram/HdrHistogram-sub001"
	"github.com/HdrHistogram/HdrHistogram-sub001/internal/logtext"
)

func writeSampleLog(t *testing.T, path string) {
	t.Helper()

	h, err := hdr.New(1, 3600000000, 3)
	if err != nil {
		t.Fatalf("hdr.New: %v", err)
	}
	for v := int64(1); v <= 100; v++ {
		if err := h.RecordValue(v); err != nil {
			t.Fatalf("RecordValue: %v", err)
		}
	}
	compressed, err := h.EncodeIntoCompressedByteBuffer(6)
	if err != nil {
		t.Fatalf("EncodeIntoCompressedByteBuffer: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("os.Create: %v", err)
	}
	defer f.Close()

	w := logtext.NewWriter(f)
	if err := w.WriteStartTime(0); err != nil {
		t.Fatalf("WriteStartTime: %v", err)
	}
	if err := w.WriteEntry(logtext.Entry{
		StartTimestamp:      0,
		IntervalLength:      1,
		IntervalMax:         100,
		CompressedHistogram: compressed,
	}); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestRunReportsPercentileDistribution(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "sample.hlog")
	writeSampleLog(t, logPath)

	var stdout, stderr bytes.Buffer
	code := Run(nil, &stdout, &stderr, []string{"-i", logPath}, nil)

	if code != 0 {
		t.Fatalf("Run exit code = %d, stderr = %s", code, stderr.String())
	}
	if stdout.Len() == 0 {
		t.Error("expected non-empty stdout")
	}
}

func TestRunFailsWithoutInputFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(nil, &stdout, &stderr, []string{}, nil)
	if code != 1 {
		t.Fatalf("Run exit code = %d, want 1", code)
	}
}

func TestRunWritesHgrmSideFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "sample.hlog")
	writeSampleLog(t, logPath)
	outPath := filepath.Join(dir, "out.csv")

	var stdout, stderr bytes.Buffer
	code := Run(nil, &stdout, &stderr, []string{"-i", logPath, "-o", outPath, "-csv"}, nil)
	if code != 0 {
		t.Fatalf("Run exit code = %d, stderr = %s", code, stderr.String())
	}

	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output file at %s: %v", outPath, err)
	}

	hgrmPath := outPath + ".hgrm"
	hgrmBytes, err := os.ReadFile(hgrmPath)
	if err != nil {
		t.Fatalf("expected .hgrm side file at %s: %v", hgrmPath, err)
	}
	if !bytes.Contains(hgrmBytes, []byte("Percentile")) {
		t.Errorf(".hgrm file missing percentile distribution content: %q", hgrmBytes)
	}
}

func TestRunListTags(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "sample.hlog")
	writeSampleLog(t, logPath)

	var stdout, stderr bytes.Buffer
	code := Run(nil, &stdout, &stderr, []string{"-i", logPath, "-listtags"}, nil)
	if code != 0 {
		t.Fatalf("Run exit code = %d, stderr = %s", code, stderr.String())
	}
}
