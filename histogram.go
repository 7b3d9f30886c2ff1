package hdrhistogram

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Histogram is the Integer Histogram of spec.md §4.3: bucket layout plus a
// counts backend, recording, merging, and querying. It is not safe for
// concurrent recording on its own — concurrent access goes through
// Recorder, which pairs one of these with a WriterReaderPhaser.
type Histogram struct {
	cfg     config
	kind    backendKind
	backend countsBackend

	// normalizingIndexOffset implements the O(1) logical shift of
	// spec.md §3: logical index i lives at physical index (i-N) mod len.
	normalizingIndexOffset int32

	totalCount      int64
	minNonZeroValue int64
	maxValue        int64

	startTimeStamp int64
	endTimeStamp   int64
	tag            string

	// recorderInstanceID is non-zero when this histogram was produced by a
	// Recorder as an interval snapshot, and is checked when the caller
	// tries to recycle it back into GetIntervalHistogram (spec.md §4.6,
	// §9 "Recorder validation").
	recorderInstanceID int64

	// integerToDoubleConversionRatio carries the wire format's
	// integerToDoubleRatio field (spec.md §4.7): the scale factor a
	// DoubleHistogram applies to this integer histogram's values. Plain
	// integer histograms leave it at 1.0; DoubleHistogram's encode/decode
	// path is the only caller that sets it to anything else.
	integerToDoubleConversionRatio float64
}

// New returns a histogram tracking [lowestDiscernibleValue, highestTrackableValue]
// at significantDigits of precision, using the default fixed-width u64 backend.
func New(lowestDiscernibleValue, highestTrackableValue int64, significantDigits int) (*Histogram, error) {
	return NewWithBackend(lowestDiscernibleValue, highestTrackableValue, significantDigits, BackendU64, false)
}

// NewFromZero returns a histogram with lowestDiscernibleValue fixed at 1,
// matching spec.md §6's "(highest, digits)" constructor form.
func NewFromZero(highestTrackableValue int64, significantDigits int) (*Histogram, error) {
	return New(1, highestTrackableValue, significantDigits)
}

// NewAutoResizing returns a histogram with no fixed upper bound: recording
// a value beyond the current range grows the histogram in place rather
// than failing, matching spec.md §6's "(digits)" constructor form.
func NewAutoResizing(significantDigits int) (*Histogram, error) {
	return NewWithBackend(1, 2, significantDigits, BackendU64, true)
}

// NewWithBackend is the fully general constructor, letting the caller pick
// the counts backend (fixed width, atomic, or packed) per spec.md §9.
func NewWithBackend(lowestDiscernibleValue, highestTrackableValue int64, significantDigits int, kind backendKind, autoResize bool) (*Histogram, error) {
	cfg, err := newConfig(lowestDiscernibleValue, highestTrackableValue, significantDigits, autoResize)
	if err != nil {
		return nil, err
	}

	return &Histogram{
		cfg:                            cfg,
		kind:                           kind,
		backend:                        newCountsBackend(kind, cfg.countsArrayLength),
		minNonZeroValue:                math.MaxInt64,
		integerToDoubleConversionRatio: 1.0,
	}, nil
}

// SetAutoResize enables or disables auto-resize on an already constructed
// histogram. Per SPEC_FULL.md's decision on spec.md's open question,
// enabling it after an explicit bound does not retroactively validate that
// bound; it only changes what happens the next time a too-large value is
// recorded.
func (h *Histogram) SetAutoResize(enabled bool) { h.cfg.autoResize = enabled }

// Tag returns the histogram's optional tag.
func (h *Histogram) Tag() string { return h.tag }

// SetTag sets the histogram's tag. Per spec.md §4.3 the tag must not embed
// whitespace or commas, since it shares a line with those delimiters in the
// log text format.
func (h *Histogram) SetTag(tag string) error {
	for _, r := range tag {
		if r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return fmt.Errorf("%w: tag must not contain whitespace or commas: %q", ErrInvalidArgument, tag)
		}
	}
	h.tag = tag
	return nil
}

func (h *Histogram) StartTimeStamp() int64     { return h.startTimeStamp }
func (h *Histogram) SetStartTimeStamp(ts int64) { h.startTimeStamp = ts }
func (h *Histogram) EndTimeStamp() int64       { return h.endTimeStamp }
func (h *Histogram) SetEndTimeStamp(ts int64)   { h.endTimeStamp = ts }

// LowestDiscernibleValue, HighestTrackableValue and SignificantFigures
// expose the immutable configuration the histogram was (currently) built
// with; HighestTrackableValue changes after a resize.
func (h *Histogram) LowestDiscernibleValue() int64 { return h.cfg.lowestDiscernibleValue }
func (h *Histogram) HighestTrackableValue() int64  { return h.cfg.highestTrackableValue }
func (h *Histogram) SignificantFigures() int64     { return h.cfg.significantDigits }

// IntegerToDoubleValueConversionRatio returns the scale factor carried in
// the wire format's integerToDoubleRatio field (spec.md §4.7, codec.go).
// A plain integer histogram leaves this at 1.0.
func (h *Histogram) IntegerToDoubleValueConversionRatio() float64 {
	return h.integerToDoubleConversionRatio
}

// SetIntegerToDoubleValueConversionRatio sets the scale factor that
// EncodeIntoByteBuffer writes into the wire format's integerToDoubleRatio
// field. DoubleHistogram's encode path is the intended caller; plain
// integer histograms have no reason to change it from the 1.0 default.
func (h *Histogram) SetIntegerToDoubleValueConversionRatio(ratio float64) {
	h.integerToDoubleConversionRatio = ratio
}

// --- recording ---

// RecordValue records a single occurrence of v.
func (h *Histogram) RecordValue(v int64) error {
	return h.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v.
func (h *Histogram) RecordValueWithCount(v, n int64) error {
	if v < 0 {
		return fmt.Errorf("%w: negative value %d", ErrInvalidArgument, v)
	}
	if n < 0 {
		return fmt.Errorf("%w: negative count %d", ErrInvalidArgument, n)
	}

	idx, err := h.indexForRecording(v)
	if err != nil {
		return err
	}

	if err := h.backend.addTo(h.physicalIndex(idx), n); err != nil {
		return err
	}

	if h.kind == BackendAtomicU64 {
		atomic.AddInt64(&h.totalCount, n)
		for m := atomic.LoadInt64(&h.maxValue); v > m; m = atomic.LoadInt64(&h.maxValue) {
			if atomic.CompareAndSwapInt64(&h.maxValue, m, v) {
				break
			}
		}
		for m := atomic.LoadInt64(&h.minNonZeroValue); v != 0 && v < m; m = atomic.LoadInt64(&h.minNonZeroValue) {
			if atomic.CompareAndSwapInt64(&h.minNonZeroValue, m, v) {
				break
			}
		}
		return nil
	}

	h.totalCount += n
	h.updateMinMax(v)

	return nil
}

// RecordValueWithExpectedInterval records v, then synthesizes additional
// records at v-expectedInterval, v-2*expectedInterval, ... down to (but not
// below) expectedInterval, correcting for coordinated omission in a
// back-pressured sampling probe (spec.md §4.3, GLOSSARY).
func (h *Histogram) RecordValueWithExpectedInterval(v, expectedInterval int64) error {
	return h.recordValueWithExpectedIntervalAndCount(v, expectedInterval, 1)
}

func (h *Histogram) recordValueWithExpectedIntervalAndCount(v, expectedInterval, n int64) error {
	if err := h.RecordValueWithCount(v, n); err != nil {
		return err
	}

	if expectedInterval <= 0 || v <= expectedInterval {
		return nil
	}

	missingValue := v - expectedInterval
	for missingValue >= expectedInterval {
		if err := h.RecordValueWithCount(missingValue, n); err != nil {
			return err
		}
		missingValue -= expectedInterval
	}

	return nil
}

// indexForRecording resolves v to a logical counts index, growing the
// histogram first if v exceeds the current range and auto-resize is
// enabled. Returns ErrOutOfRange otherwise.
func (h *Histogram) indexForRecording(v int64) (int32, error) {
	if v > h.cfg.highestTrackableValue {
		if !h.cfg.autoResize {
			return 0, fmt.Errorf("%w: value %d exceeds highest trackable value %d", ErrOutOfRange, v, h.cfg.highestTrackableValue)
		}
		if err := h.resize(v); err != nil {
			return 0, err
		}
	}

	idx := h.cfg.countsIndexFor(v)
	if idx < 0 || idx >= h.cfg.countsArrayLength {
		return 0, fmt.Errorf("%w: value %d maps outside the counts array", ErrOutOfRange, v)
	}

	return idx, nil
}

func (h *Histogram) updateMinMax(v int64) {
	if v > h.maxValue {
		h.maxValue = v
	}
	if v != 0 && v < h.minNonZeroValue {
		h.minNonZeroValue = v
	}
}

// physicalIndex maps a logical counts index to its physical slot given the
// current normalizing index offset (spec.md §3).
func (h *Histogram) physicalIndex(logicalIdx int32) int32 {
	return normalizeIndex(logicalIdx, h.normalizingIndexOffset, h.backend.length())
}

func normalizeIndex(logicalIdx, offset, length int32) int32 {
	n := (logicalIdx - offset) % length
	if n < 0 {
		n += length
	}
	return n
}

// --- resize ---

// resize grows the backing counts array so it can represent
// newHighestTrackableValue, preserving all previously recorded counts.
func (h *Histogram) resize(newHighestTrackableValue int64) error {
	if newHighestTrackableValue > autoResizeMaxHighestTrackableValue {
		return fmt.Errorf("%w: auto-resize would exceed the maximum trackable value", ErrOutOfRange)
	}

	newCfg := resizeConfigFor(h.cfg, newHighestTrackableValue)
	if newCfg.countsArrayLength == h.cfg.countsArrayLength {
		h.cfg = newCfg
		return nil
	}

	newBackend := h.backend.resized(newCfg.countsArrayLength)

	if h.normalizingIndexOffset != 0 {
		// The physical-zero-index chunk must shift forward by the size
		// delta so logical ordering is preserved after the naive raw copy
		// `resized` just performed (spec.md §4.2 "Resize").
		delta := newCfg.countsArrayLength - h.cfg.countsArrayLength
		shiftCountsForward(newBackend, h.physicalIndex(0), h.cfg.countsArrayLength, delta)
	}

	h.cfg = newCfg
	h.backend = newBackend

	return nil
}

// shiftCountsForward moves the physical slots [offset, oldLength) up by
// delta positions and zeroes the gap left behind at [offset, offset+delta),
// preserving the logical order of a non-zero normalizing offset across a
// resize that grew the backing array by delta slots.
func shiftCountsForward(b countsBackend, offset, oldLength, delta int32) {
	for i := oldLength - 1; i >= offset; i-- {
		v := b.get(i)
		_ = b.set(i+delta, v)
		_ = b.set(i, 0)
	}
}

// --- shift (multiply/divide all recorded values by 2^k) ---

// ShiftValuesLeft multiplies every recorded value by 2^numberOfBinaryOrdersOfMagnitude.
func (h *Histogram) ShiftValuesLeft(numberOfBinaryOrdersOfMagnitude int32) error {
	return h.shiftValues(numberOfBinaryOrdersOfMagnitude, false)
}

// ShiftValuesRight divides every recorded value by 2^numberOfBinaryOrdersOfMagnitude.
// Fails with ErrInvalidArgument if doing so would alias a currently
// populated slot into the special linear bottom half-bucket, unless
// override is set.
func (h *Histogram) ShiftValuesRight(numberOfBinaryOrdersOfMagnitude int32, override bool) error {
	if numberOfBinaryOrdersOfMagnitude == 0 {
		return nil
	}

	shiftAmount := h.cfg.subBucketHalfCount * numberOfBinaryOrdersOfMagnitude
	if !override {
		for i := int32(0); i < shiftAmount+h.cfg.subBucketHalfCount; i++ {
			logicalIdx := i
			if h.backend.get(h.physicalIndex(logicalIdx)) != 0 {
				return fmt.Errorf("%w: right shift would lose recorded values in the bottom half-bucket", ErrInvalidArgument)
			}
		}
	}

	return h.shiftValues(-numberOfBinaryOrdersOfMagnitude, true)
}

func (h *Histogram) shiftValues(numberOfBinaryOrdersOfMagnitude int32, _ bool) error {
	if numberOfBinaryOrdersOfMagnitude == 0 {
		return nil
	}

	shiftAmount := h.cfg.subBucketHalfCount * numberOfBinaryOrdersOfMagnitude
	length := h.backend.length()

	newOffset := normalizeIndex(h.normalizingIndexOffset+shiftAmount, 0, length)

	// Zero the slots that the shift aliases into the bottom half-bucket so
	// they don't resurface as stale counts for unrelated values (spec.md
	// §4.2's "explicit zeroing" rule).
	if shiftAmount > 0 {
		for i := int32(0); i < shiftAmount; i++ {
			_ = h.backend.set(normalizeIndex(i, newOffset, length), 0)
		}
	} else {
		for i := shiftAmount; i < 0; i++ {
			_ = h.backend.set(normalizeIndex(length+i, newOffset, length), 0)
		}
	}

	h.normalizingIndexOffset = newOffset

	if k := numberOfBinaryOrdersOfMagnitude; k > 0 {
		h.maxValue <<= uint(k)
		if h.minNonZeroValue != math.MaxInt64 {
			h.minNonZeroValue <<= uint(k)
		}
	} else {
		h.maxValue >>= uint(-k)
		if h.minNonZeroValue != math.MaxInt64 {
			h.minNonZeroValue >>= uint(-k)
		}
	}

	return nil
}

// --- merge ---

// Add merges other's recorded values into h, returning ErrOutOfRange
// (without mutating h) if other has values h cannot represent and h is not
// auto-resizing.
func (h *Histogram) Add(other *Histogram) error {
	otherMax := other.highestEquivalentOfMax()
	if otherMax > h.cfg.highestTrackableValue {
		if !h.cfg.autoResize {
			return fmt.Errorf("%w: source histogram's max value %d exceeds this histogram's range", ErrOutOfRange, otherMax)
		}
		if err := h.resize(otherMax); err != nil {
			return err
		}
	}

	it := other.newRecordedIterator()
	for it.next() {
		if err := h.RecordValueWithCount(it.valueFromIdx, it.countAtIdx); err != nil {
			return err
		}
	}

	return nil
}

// Subtract removes other's recorded values from h.
func (h *Histogram) Subtract(other *Histogram) error {
	it := other.newRecordedIterator()
	for it.next() {
		idx, err := h.indexForRecording(it.valueFromIdx)
		if err != nil {
			return err
		}
		phys := h.physicalIndex(idx)
		remaining := h.backend.get(phys) - it.countAtIdx
		if remaining < 0 {
			return fmt.Errorf("%w: subtract would drive slot below zero", ErrInvalidArgument)
		}
		if err := h.backend.set(phys, remaining); err != nil {
			return err
		}
		h.totalCount -= it.countAtIdx
	}

	return nil
}

func (h *Histogram) highestEquivalentOfMax() int64 {
	if h.totalCount == 0 {
		return 0
	}
	return h.cfg.highestEquivalentValue(h.maxValue)
}

// --- reset / copy ---

// Reset zeroes all counts and summary statistics, keeping the layout.
func (h *Histogram) Reset() {
	h.backend.clear()
	h.totalCount = 0
	h.minNonZeroValue = math.MaxInt64
	h.maxValue = 0
	h.normalizingIndexOffset = 0
}

// Copy returns a deep, independent copy of h.
func (h *Histogram) Copy() *Histogram {
	return &Histogram{
		cfg:                            h.cfg,
		kind:                           h.kind,
		backend:                        h.backend.clone(),
		normalizingIndexOffset:         h.normalizingIndexOffset,
		totalCount:                     h.totalCount,
		minNonZeroValue:                h.minNonZeroValue,
		maxValue:                       h.maxValue,
		startTimeStamp:                 h.startTimeStamp,
		endTimeStamp:                   h.endTimeStamp,
		tag:                            h.tag,
		integerToDoubleConversionRatio: h.integerToDoubleConversionRatio,
	}
}

// CopyCorrectedForCoordinatedOmission reconstructs, in a fresh histogram,
// the distribution that would have been recorded had every value been
// sampled without coordinated omission against expectedInterval.
func (h *Histogram) CopyCorrectedForCoordinatedOmission(expectedInterval int64) (*Histogram, error) {
	dst, err := NewWithBackend(h.cfg.lowestDiscernibleValue, h.cfg.highestTrackableValue, int(h.cfg.significantDigits), h.kind, h.cfg.autoResize)
	if err != nil {
		return nil, err
	}
	dst.startTimeStamp = h.startTimeStamp
	dst.endTimeStamp = h.endTimeStamp
	dst.tag = h.tag
	dst.integerToDoubleConversionRatio = h.integerToDoubleConversionRatio

	it := h.newRecordedIterator()
	for it.next() {
		if err := dst.recordValueWithExpectedIntervalAndCount(it.valueFromIdx, expectedInterval, it.countAtIdx); err != nil {
			return nil, err
		}
	}

	return dst, nil
}

// --- queries ---

func (h *Histogram) GetTotalCount() int64 { return h.totalCount }

func (h *Histogram) GetMaxValue() int64 {
	if h.totalCount == 0 {
		return 0
	}
	return h.cfg.highestEquivalentValue(h.maxValue)
}

func (h *Histogram) GetMinValue() int64 {
	if h.totalCount == 0 {
		return 0
	}
	if h.minNonZeroValue == math.MaxInt64 {
		return 0
	}
	return h.minNonZeroValue
}

func (h *Histogram) GetMean() float64 {
	if h.totalCount == 0 {
		return 0
	}
	var total int64
	it := h.newRecordedIterator()
	for it.next() {
		total += it.countAtIdx * h.cfg.medianEquivalentValue(it.valueFromIdx)
	}
	return float64(total) / float64(h.totalCount)
}

func (h *Histogram) GetStdDeviation() float64 {
	if h.totalCount == 0 {
		return 0
	}
	mean := h.GetMean()
	var geometricDevTotal float64

	it := h.newRecordedIterator()
	for it.next() {
		dev := float64(h.cfg.medianEquivalentValue(it.valueFromIdx)) - mean
		geometricDevTotal += dev * dev * float64(it.countAtIdx)
	}

	return math.Sqrt(geometricDevTotal / float64(h.totalCount))
}

// GetValueAtPercentile returns the value at or below which percentile
// percent of recorded values fall.
func (h *Histogram) GetValueAtPercentile(percentile float64) int64 {
	if h.totalCount == 0 {
		return 0
	}
	if percentile > 100 {
		percentile = 100
	}
	if percentile < 0 {
		percentile = 0
	}

	countAtPercentile := int64(math.Ceil((percentile / 100.0) * float64(h.totalCount)))
	if countAtPercentile < 1 {
		countAtPercentile = 1
	}
	if countAtPercentile > h.totalCount {
		countAtPercentile = h.totalCount
	}

	var running int64
	it := h.newAllIterator()
	for it.next() {
		running += it.countAtIdx
		if running >= countAtPercentile {
			return h.cfg.highestEquivalentValue(it.valueFromIdx)
		}
	}

	return h.GetMaxValue()
}

// GetPercentileAtOrBelowValue returns the percentage of recorded values
// that are at or below v.
func (h *Histogram) GetPercentileAtOrBelowValue(v int64) float64 {
	if h.totalCount == 0 {
		return 100.0
	}

	var total int64
	it := h.newAllIterator()
	for it.next() {
		if it.valueFromIdx <= v {
			total += it.countAtIdx
		}
	}

	return 100.0 * float64(total) / float64(h.totalCount)
}

// GetCountBetweenValues returns the number of recorded values in [lo, hi].
func (h *Histogram) GetCountBetweenValues(lo, hi int64) int64 {
	lowestLo := h.cfg.lowestEquivalentValue(lo)
	var total int64
	it := h.newAllIterator()
	for it.next() {
		if it.valueFromIdx >= lowestLo && it.valueFromIdx <= hi {
			total += it.countAtIdx
		}
	}
	return total
}

// GetCountAtValue returns the count recorded at v's equivalent slot.
func (h *Histogram) GetCountAtValue(v int64) int64 {
	idx := h.cfg.countsIndexFor(v)
	if idx < 0 || idx >= h.backend.length() {
		return 0
	}
	return h.backend.get(h.physicalIndex(idx))
}

// --- bucket layout passthroughs (spec.md §4.1, exposed per §6) ---

func (h *Histogram) SizeOfEquivalentValueRange(v int64) int64 { return h.cfg.sizeOfEquivalentValueRange(v) }
func (h *Histogram) ValuesAreEquivalent(a, b int64) bool      { return h.cfg.valuesAreEquivalent(a, b) }
func (h *Histogram) NextNonEquivalentValue(v int64) int64     { return h.cfg.nextNonEquivalentValue(v) }
func (h *Histogram) LowestEquivalentValue(v int64) int64      { return h.cfg.lowestEquivalentValue(v) }
func (h *Histogram) HighestEquivalentValue(v int64) int64     { return h.cfg.highestEquivalentValue(v) }
func (h *Histogram) MedianEquivalentValue(v int64) int64      { return h.cfg.medianEquivalentValue(v) }
