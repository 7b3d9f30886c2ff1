package hdrhistogram

import (
	"fmt"
	"math"
	"math/bits"
)

// minSignificantDigits and maxSignificantDigits bound the precision a
// histogram may be configured with (spec.md D ∈ {0..5}).
const (
	minSignificantDigits = 0
	maxSignificantDigits = 5

	// autoResizeMaxHighestTrackableValue caps how far an auto-resizing
	// histogram (or the ratio shift of a DoubleHistogram) is allowed to
	// grow, mirroring the ceiling the original keeps so a runaway value
	// can't exhaust memory silently.
	autoResizeMaxHighestTrackableValue = int64(1) << 62
)

// config holds the immutable, derived layout of a histogram for a given
// (lowestDiscernibleValue, highestTrackableValue, significantDigits) triple.
// It is recomputed whenever a histogram resizes.
type config struct {
	lowestDiscernibleValue      int64
	highestTrackableValue       int64
	significantDigits           int64
	autoResize                  bool
	unitMagnitude               int64
	subBucketHalfCountMagnitude int64
	subBucketHalfCount          int32
	subBucketCount              int32
	subBucketMask               int64
	bucketCount                 int32
	countsArrayLength           int32
}

// newConfig derives a layout from the three configuration inputs. L is
// rounded down to the nearest power of two if it isn't already one, per
// spec.md §3.
func newConfig(lowestDiscernibleValue, highestTrackableValue int64, significantDigits int, autoResize bool) (config, error) {
	if significantDigits < minSignificantDigits || significantDigits > maxSignificantDigits {
		return config{}, fmt.Errorf("%w: significantDigits must be in [%d,%d], got %d",
			ErrInvalidArgument, minSignificantDigits, maxSignificantDigits, significantDigits)
	}

	if lowestDiscernibleValue < 1 {
		return config{}, fmt.Errorf("%w: lowestDiscernibleValue must be >= 1, got %d",
			ErrInvalidArgument, lowestDiscernibleValue)
	}

	if highestTrackableValue < 2*lowestDiscernibleValue {
		return config{}, fmt.Errorf("%w: highestTrackableValue (%d) must be >= 2*lowestDiscernibleValue (%d)",
			ErrInvalidArgument, highestTrackableValue, 2*lowestDiscernibleValue)
	}

	lowestDiscernibleValue = roundDownToPowerOfTwo(lowestDiscernibleValue)

	largestValueWithSingleUnitResolution := 2 * pow10(int64(significantDigits))

	subBucketCountMagnitude := int32(math.Ceil(math.Log(float64(largestValueWithSingleUnitResolution)) / math.Log(2)))

	subBucketHalfCountMagnitude := subBucketCountMagnitude
	if subBucketHalfCountMagnitude < 1 {
		subBucketHalfCountMagnitude = 1
	}
	subBucketHalfCountMagnitude--

	unitMagnitude := int64(math.Floor(math.Log(float64(lowestDiscernibleValue)) / math.Log(2)))
	if unitMagnitude < 0 {
		unitMagnitude = 0
	}

	subBucketCount := int32(1) << uint(subBucketHalfCountMagnitude+1)
	subBucketHalfCount := subBucketCount / 2
	subBucketMask := int64(subBucketCount-1) << uint(unitMagnitude)

	bucketCount := bucketsNeededFor(highestTrackableValue, subBucketCount, unitMagnitude)
	countsArrayLength := (bucketCount + 1) * subBucketHalfCount

	return config{
		lowestDiscernibleValue:      lowestDiscernibleValue,
		highestTrackableValue:       highestTrackableValue,
		significantDigits:           int64(significantDigits),
		autoResize:                  autoResize,
		unitMagnitude:               unitMagnitude,
		subBucketHalfCountMagnitude: int64(subBucketHalfCountMagnitude),
		subBucketHalfCount:          subBucketHalfCount,
		subBucketCount:              subBucketCount,
		subBucketMask:               subBucketMask,
		bucketCount:                 bucketCount,
		countsArrayLength:           countsArrayLength,
	}, nil
}

// bucketsNeededFor returns how many buckets are required so the top bucket
// covers highestTrackableValue, given the fixed sub-bucket geometry.
func bucketsNeededFor(highestTrackableValue int64, subBucketCount int32, unitMagnitude int64) int32 {
	smallestUntrackableValue := int64(subBucketCount) << uint(unitMagnitude)
	bucketsNeeded := int32(1)
	for smallestUntrackableValue <= highestTrackableValue {
		if smallestUntrackableValue > (math.MaxInt64 / 2) {
			return bucketsNeeded + 1
		}
		smallestUntrackableValue <<= 1
		bucketsNeeded++
	}
	return bucketsNeeded
}

// resizeConfigFor derives a new config capable of tracking newHighestTrackableValue
// at the same precision and unit magnitude as base.
func resizeConfigFor(base config, newHighestTrackableValue int64) config {
	cfg := base
	cfg.highestTrackableValue = newHighestTrackableValue
	cfg.bucketCount = bucketsNeededFor(newHighestTrackableValue, cfg.subBucketCount, cfg.unitMagnitude)
	cfg.countsArrayLength = (cfg.bucketCount + 1) * cfg.subBucketHalfCount
	return cfg
}

func roundDownToPowerOfTwo(v int64) int64 {
	if v <= 1 {
		return 1
	}
	return int64(1) << uint(63-bits.LeadingZeros64(uint64(v)))
}

func pow10(exp int64) int64 {
	n := int64(1)
	for ; exp > 0; exp-- {
		n *= 10
	}
	return n
}
