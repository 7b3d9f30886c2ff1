package hdrhistogram

import "testing"

func TestNewConfigRejectsInvalidArguments(t *testing.T) {
	cases := []struct {
		name    string
		lowest  int64
		highest int64
		digits  int
	}{
		{"digits too low", 1, 2, -1},
		{"digits too high", 1, 2, 6},
		{"lowest below one", 0, 100, 3},
		{"highest below twice lowest", 100, 150, 3},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := newConfig(c.lowest, c.highest, c.digits, false); err == nil {
				t.Fatalf("newConfig(%d, %d, %d): expected error, got nil", c.lowest, c.highest, c.digits)
			}
		})
	}
}

func TestNewConfigRoundsLowestDownToPowerOfTwo(t *testing.T) {
	cfg, err := newConfig(3, 1000, 3, false)
	if err != nil {
		t.Fatalf("newConfig: %v", err)
	}
	if cfg.lowestDiscernibleValue != 2 {
		t.Errorf("lowestDiscernibleValue = %d, want 2", cfg.lowestDiscernibleValue)
	}
}

func TestResizeConfigForPreservesPrecision(t *testing.T) {
	base, err := newConfig(1, 1000, 3, true)
	if err != nil {
		t.Fatalf("newConfig: %v", err)
	}

	grown := resizeConfigFor(base, 1_000_000_000)
	if grown.subBucketCount != base.subBucketCount {
		t.Errorf("resize changed subBucketCount: %d -> %d", base.subBucketCount, grown.subBucketCount)
	}
	if grown.bucketCount <= base.bucketCount {
		t.Errorf("resize to a larger highest trackable value should grow bucketCount, got %d -> %d", base.bucketCount, grown.bucketCount)
	}
}
