package hdrhistogram

import (
	"fmt"
	"math"
)

// doubleMaxShiftSteps bounds how many times RecordValue will shift the
// integer-to-double ratio while chasing an out-of-range sample, standing in
// for the original's internal auto-resize cap on the dynamic range.
const doubleMaxShiftSteps = 64

// DoubleHistogram is the auto-ranging overlay of spec.md §4.4: a single
// source-of-truth integer Histogram plus a mutable power-of-two scale
// factor. All double-valued APIs are thin scaling wrappers over the
// integer histogram, per SPEC_FULL.md/spec.md §9 ("Double histogram as
// shifted integer histogram").
type DoubleHistogram struct {
	integer                   *Histogram
	ratio                     float64
	highestToLowestValueRatio int64
}

// NewDouble returns a histogram covering positive doubles whose highest and
// lowest recorded values may differ by up to highestToLowestValueRatio,
// at significantDigits of precision.
func NewDouble(highestToLowestValueRatio int64, significantDigits int) (*DoubleHistogram, error) {
	return newDoubleWithBackend(highestToLowestValueRatio, significantDigits, BackendU64)
}

func newDoubleWithBackend(highestToLowestValueRatio int64, significantDigits int, kind backendKind) (*DoubleHistogram, error) {
	if highestToLowestValueRatio < 2 {
		return nil, fmt.Errorf("%w: highestToLowestValueRatio must be >= 2", ErrInvalidArgument)
	}

	integer, err := NewWithBackend(1, highestToLowestValueRatio, significantDigits, kind, true)
	if err != nil {
		return nil, err
	}

	return &DoubleHistogram{
		integer:                   integer,
		ratio:                     1.0,
		highestToLowestValueRatio: highestToLowestValueRatio,
	}, nil
}

// RecordValue records x, shifting the ratio (and the underlying integer
// histogram in lockstep) as many times as needed so x's scaled integer
// representation fits the current layout.
func (d *DoubleHistogram) RecordValue(x float64) error {
	return d.RecordValueWithCount(x, 1)
}

// RecordValueWithCount records n occurrences of x.
func (d *DoubleHistogram) RecordValueWithCount(x float64, n int64) error {
	if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Errorf("%w: value must be a finite, non-negative double, got %v", ErrInvalidArgument, x)
	}

	if x == 0 {
		return d.integer.RecordValueWithCount(0, n)
	}

	for step := 0; ; step++ {
		scaled := int64(math.Round(x / d.ratio))

		switch {
		case scaled > d.integer.cfg.highestTrackableValue:
			if step >= doubleMaxShiftSteps {
				return fmt.Errorf("%w: value %v exceeds the histogram's dynamic range even after shifting", ErrOutOfRange, x)
			}
			if err := d.integer.ShiftValuesRight(1, false); err != nil {
				// Falling back to doubling the integer histogram's highest
				// trackable value via resize (the ratio stays as it is)
				// keeps values representable even when the shift would
				// lose the bottom half-bucket.
				if err2 := d.integer.resize(d.integer.cfg.highestTrackableValue * 2); err2 != nil {
					return err2
				}
				continue
			}
			d.ratio *= 2
			continue

		case scaled == 0:
			if step >= doubleMaxShiftSteps {
				return fmt.Errorf("%w: value %v is too small to represent at the current dynamic range", ErrOutOfRange, x)
			}
			if err := d.integer.ShiftValuesLeft(1); err != nil {
				return err
			}
			d.ratio /= 2
			continue
		}

		return d.integer.RecordValueWithCount(scaled, n)
	}
}

// RecordValueWithExpectedInterval applies coordinated-omission correction
// in double space: it records x, then x-expectedInterval,
// x-2*expectedInterval, ... down to (but not below) expectedInterval, each
// through RecordValue.
func (d *DoubleHistogram) RecordValueWithExpectedInterval(x, expectedInterval float64) error {
	if err := d.RecordValue(x); err != nil {
		return err
	}

	if expectedInterval <= 0 || x <= expectedInterval {
		return nil
	}

	missing := x - expectedInterval
	for missing >= expectedInterval {
		if err := d.RecordValue(missing); err != nil {
			return err
		}
		missing -= expectedInterval
	}

	return nil
}

func (d *DoubleHistogram) GetTotalCount() int64 { return d.integer.GetTotalCount() }
func (d *DoubleHistogram) GetMinValue() float64 { return float64(d.integer.GetMinValue()) * d.ratio }
func (d *DoubleHistogram) GetMaxValue() float64 { return float64(d.integer.GetMaxValue()) * d.ratio }
func (d *DoubleHistogram) GetMean() float64     { return d.integer.GetMean() * d.ratio }
func (d *DoubleHistogram) GetStdDeviation() float64 {
	return d.integer.GetStdDeviation() * d.ratio
}

// GetValueAtPercentile returns the value at or below which percentile
// percent of recorded values fall, in the original double-valued units.
func (d *DoubleHistogram) GetValueAtPercentile(percentile float64) float64 {
	return float64(d.integer.GetValueAtPercentile(percentile)) * d.ratio
}

// Ratio exposes the current integer-to-double conversion factor R, mostly
// useful for tests asserting on the shift protocol.
func (d *DoubleHistogram) Ratio() float64 { return d.ratio }

// Reset zeroes the overlay back to its initial, unshifted state.
func (d *DoubleHistogram) Reset() {
	d.integer.Reset()
	d.ratio = 1.0
}

// Copy returns a deep, independent copy of d.
func (d *DoubleHistogram) Copy() *DoubleHistogram {
	return &DoubleHistogram{
		integer:                   d.integer.Copy(),
		ratio:                     d.ratio,
		highestToLowestValueRatio: d.highestToLowestValueRatio,
	}
}

// EncodeIntoByteBuffer serializes d by encoding its underlying integer
// histogram with the current ratio stashed in the wire format's
// integerToDoubleRatio field (spec.md §4.7, codec.go), so
// DecodeDoubleFromByteBuffer can restore the overlay's scale on decode.
func (d *DoubleHistogram) EncodeIntoByteBuffer() ([]byte, error) {
	d.integer.SetIntegerToDoubleValueConversionRatio(d.ratio)
	return d.integer.EncodeIntoByteBuffer()
}

// EncodeIntoCompressedByteBuffer is the DEFLATE-wrapped form of
// EncodeIntoByteBuffer.
func (d *DoubleHistogram) EncodeIntoCompressedByteBuffer(compressionLevel int) ([]byte, error) {
	d.integer.SetIntegerToDoubleValueConversionRatio(d.ratio)
	return d.integer.EncodeIntoCompressedByteBuffer(compressionLevel)
}

// DecodeDoubleFromByteBuffer reconstructs a DoubleHistogram from data,
// restoring the ratio carried in the wire format's integerToDoubleRatio
// field rather than resetting it to 1.0.
func DecodeDoubleFromByteBuffer(data []byte, minBarForHighestTrackableValue int64) (*DoubleHistogram, error) {
	integer, err := DecodeFromByteBuffer(data, minBarForHighestTrackableValue)
	if err != nil {
		return nil, err
	}
	return doubleFromDecodedInteger(integer), nil
}

// DecodeDoubleFromCompressedByteBuffer is the DEFLATE-wrapped form of
// DecodeDoubleFromByteBuffer.
func DecodeDoubleFromCompressedByteBuffer(data []byte, minBarForHighestTrackableValue int64) (*DoubleHistogram, error) {
	integer, err := DecodeFromCompressedByteBuffer(data, minBarForHighestTrackableValue)
	if err != nil {
		return nil, err
	}
	return doubleFromDecodedInteger(integer), nil
}

func doubleFromDecodedInteger(integer *Histogram) *DoubleHistogram {
	ratio := integer.IntegerToDoubleValueConversionRatio()
	if ratio <= 0 {
		ratio = 1.0
	}
	return &DoubleHistogram{
		integer:                   integer,
		ratio:                     ratio,
		highestToLowestValueRatio: integer.cfg.highestTrackableValue,
	}
}
