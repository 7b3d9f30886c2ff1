package hdrhistogram

import (
	"fmt"
	"sync/atomic"
	"time"
)

// intervalFlipYield is the yield granularity GetIntervalHistogram passes to
// FlipPhase, matching spec.md §4.6's 500µs figure.
const intervalFlipYield = 500 * time.Microsecond

// Recorder is spec.md §4.6: a double-buffered pair of histograms mediated
// by a WriterReaderPhaser, returning stable interval snapshots without
// stalling writers. Concurrent recording is safe because RecordValue
// enters/exits the phaser's writer critical section around each record and
// the active histogram uses an atomic counts backend.
type Recorder struct {
	id       int64
	newHist  func() *Histogram
	active   atomic.Pointer[Histogram]
	inactive *Histogram
	phaser   *WriterReaderPhaser
}

// NewRecorder returns a concurrent recorder tracking
// [lowestDiscernibleValue, highestTrackableValue] at significantDigits of
// precision, using an atomic counts backend.
func NewRecorder(lowestDiscernibleValue, highestTrackableValue int64, significantDigits int) (*Recorder, error) {
	return newRecorderWithFactory(func() (*Histogram, error) {
		return NewWithBackend(lowestDiscernibleValue, highestTrackableValue, significantDigits, BackendAtomicU64, false)
	})
}

// NewRecorderAutoResizing returns a concurrent, auto-resizing recorder.
func NewRecorderAutoResizing(significantDigits int) (*Recorder, error) {
	return newRecorderWithFactory(func() (*Histogram, error) {
		return NewWithBackend(1, 2, significantDigits, BackendAtomicU64, true)
	})
}

// NewSingleWriterRecorder returns a recorder for callers that guarantee
// recording happens from a single goroutine at a time; it uses the plain
// (non-atomic) u64 backend, matching spec.md §4.6's "single-writer
// recorder" variant.
func NewSingleWriterRecorder(lowestDiscernibleValue, highestTrackableValue int64, significantDigits int) (*Recorder, error) {
	return newRecorderWithFactory(func() (*Histogram, error) {
		return NewWithBackend(lowestDiscernibleValue, highestTrackableValue, significantDigits, BackendU64, false)
	})
}

func newRecorderWithFactory(factory func() (*Histogram, error)) (*Recorder, error) {
	first, err := factory()
	if err != nil {
		return nil, err
	}

	id := nextRecorderInstanceID()
	first.recorderInstanceID = id

	r := &Recorder{
		id:     id,
		phaser: NewWriterReaderPhaser(),
		newHist: func() *Histogram {
			h, err := factory()
			if err != nil {
				// The factory already succeeded once with the same
				// arguments; a later failure would mean a programming
				// error in caller-supplied parameters, not a runtime
				// condition GetIntervalHistogram's callers can act on.
				panic(fmt.Errorf("hdrhistogram: recorder histogram factory failed after initial success: %w", err))
			}
			h.recorderInstanceID = id
			return h
		},
	}
	r.active.Store(first)

	return r, nil
}

// RecordValue records a single occurrence of v.
func (r *Recorder) RecordValue(v int64) error {
	return r.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v.
func (r *Recorder) RecordValueWithCount(v, n int64) error {
	token := r.phaser.WriterCriticalSectionEnter()
	defer r.phaser.WriterCriticalSectionExit(token)

	return r.active.Load().RecordValueWithCount(v, n)
}

// RecordValueWithExpectedInterval records v with coordinated-omission
// correction against expectedInterval.
func (r *Recorder) RecordValueWithExpectedInterval(v, expectedInterval int64) error {
	token := r.phaser.WriterCriticalSectionEnter()
	defer r.phaser.WriterCriticalSectionExit(token)

	return r.active.Load().recordValueWithExpectedIntervalAndCount(v, expectedInterval, 1)
}

// GetIntervalHistogram returns a stable snapshot of everything recorded
// since the previous call (or since the recorder was created), per
// spec.md §4.6. If recycle is non-nil it must be a snapshot this recorder
// previously returned; passing any other histogram returns
// ErrInvalidRecycledHistogram without taking any lock.
func (r *Recorder) GetIntervalHistogram(recycle *Histogram) (*Histogram, error) {
	if recycle != nil && recycle.recorderInstanceID != r.id {
		return nil, ErrInvalidRecycledHistogram
	}

	r.phaser.ReaderLock()
	defer r.phaser.ReaderUnlock()

	var candidate *Histogram
	switch {
	case recycle != nil:
		candidate = recycle
	case r.inactive != nil:
		candidate = r.inactive
	default:
		candidate = r.newHist()
	}
	candidate.Reset()

	now := time.Now().UnixNano()

	oldActive := r.active.Load()
	oldActive.SetEndTimeStamp(now)
	candidate.SetStartTimeStamp(now)

	r.active.Store(candidate)
	r.phaser.FlipPhase(intervalFlipYield)

	r.inactive = nil

	return oldActive, nil
}

// GetIntervalHistogramInto copies the interval snapshot's state into target
// (its counts cloned into a new backend) instead of returning the snapshot,
// then recycles the snapshot histogram back into the recorder's double
// buffer.
func (r *Recorder) GetIntervalHistogramInto(target *Histogram) error {
	snapshot, err := r.GetIntervalHistogram(nil)
	if err != nil {
		return err
	}

	target.cfg = snapshot.cfg
	target.kind = snapshot.kind
	target.backend = snapshot.backend.clone()
	target.normalizingIndexOffset = snapshot.normalizingIndexOffset
	target.totalCount = snapshot.totalCount
	target.minNonZeroValue = snapshot.minNonZeroValue
	target.maxValue = snapshot.maxValue
	target.startTimeStamp = snapshot.startTimeStamp
	target.endTimeStamp = snapshot.endTimeStamp
	target.tag = snapshot.tag
	target.integerToDoubleConversionRatio = snapshot.integerToDoubleConversionRatio

	r.recycle(snapshot)

	return nil
}

// recycle hands a previously returned snapshot back to the recorder's
// double buffer without going through the public recycle-on-next-call path,
// used by GetIntervalHistogramInto once it has copied the snapshot out.
func (r *Recorder) recycle(snapshot *Histogram) {
	r.phaser.ReaderLock()
	defer r.phaser.ReaderUnlock()

	if r.inactive == nil {
		r.inactive = snapshot
	}
}

// Reset discards all history: both the active and any held inactive
// histogram are reset in place.
func (r *Recorder) Reset() {
	r.phaser.ReaderLock()
	defer r.phaser.ReaderUnlock()

	r.active.Load().Reset()
	if r.inactive != nil {
		r.inactive.Reset()
	}
}

// DoubleRecorder is DoubleHistogram's counterpart to Recorder: the same
// phaser-mediated double-buffered pair, wrapping a *DoubleHistogram
// instead of a *Histogram (spec.md §4.6).
type DoubleRecorder struct {
	id       int64
	newHist  func() *DoubleHistogram
	active   atomic.Pointer[DoubleHistogram]
	inactive *DoubleHistogram
	phaser   *WriterReaderPhaser
}

// NewDoubleRecorder returns a concurrent recorder for double-valued
// samples covering up to highestToLowestValueRatio of dynamic range, at
// significantDigits of precision, using an atomic counts backend.
func NewDoubleRecorder(highestToLowestValueRatio int64, significantDigits int) (*DoubleRecorder, error) {
	return newDoubleRecorderWithFactory(func() (*DoubleHistogram, error) {
		return newDoubleWithBackend(highestToLowestValueRatio, significantDigits, BackendAtomicU64)
	})
}

// NewSingleWriterDoubleRecorder returns a DoubleRecorder for callers that
// guarantee recording happens from a single goroutine at a time; it uses
// the plain (non-atomic) u64 backend, matching Recorder's single-writer
// variant.
func NewSingleWriterDoubleRecorder(highestToLowestValueRatio int64, significantDigits int) (*DoubleRecorder, error) {
	return newDoubleRecorderWithFactory(func() (*DoubleHistogram, error) {
		return newDoubleWithBackend(highestToLowestValueRatio, significantDigits, BackendU64)
	})
}

func newDoubleRecorderWithFactory(factory func() (*DoubleHistogram, error)) (*DoubleRecorder, error) {
	first, err := factory()
	if err != nil {
		return nil, err
	}

	id := nextRecorderInstanceID()
	first.integer.recorderInstanceID = id

	r := &DoubleRecorder{
		id:     id,
		phaser: NewWriterReaderPhaser(),
		newHist: func() *DoubleHistogram {
			h, err := factory()
			if err != nil {
				panic(fmt.Errorf("hdrhistogram: double recorder histogram factory failed after initial success: %w", err))
			}
			h.integer.recorderInstanceID = id
			return h
		},
	}
	r.active.Store(first)

	return r, nil
}

// RecordValue records a single occurrence of x.
func (r *DoubleRecorder) RecordValue(x float64) error {
	token := r.phaser.WriterCriticalSectionEnter()
	defer r.phaser.WriterCriticalSectionExit(token)

	return r.active.Load().RecordValue(x)
}

// RecordValueWithCount records n occurrences of x.
func (r *DoubleRecorder) RecordValueWithCount(x float64, n int64) error {
	token := r.phaser.WriterCriticalSectionEnter()
	defer r.phaser.WriterCriticalSectionExit(token)

	return r.active.Load().RecordValueWithCount(x, n)
}

// RecordValueWithExpectedInterval records x with coordinated-omission
// correction against expectedInterval.
func (r *DoubleRecorder) RecordValueWithExpectedInterval(x, expectedInterval float64) error {
	token := r.phaser.WriterCriticalSectionEnter()
	defer r.phaser.WriterCriticalSectionExit(token)

	return r.active.Load().RecordValueWithExpectedInterval(x, expectedInterval)
}

// GetIntervalHistogram returns a stable snapshot of everything recorded
// since the previous call (or since the recorder was created), mirroring
// Recorder.GetIntervalHistogram. If recycle is non-nil it must be a
// snapshot this recorder previously returned.
func (r *DoubleRecorder) GetIntervalHistogram(recycle *DoubleHistogram) (*DoubleHistogram, error) {
	if recycle != nil && recycle.integer.recorderInstanceID != r.id {
		return nil, ErrInvalidRecycledHistogram
	}

	r.phaser.ReaderLock()
	defer r.phaser.ReaderUnlock()

	var candidate *DoubleHistogram
	switch {
	case recycle != nil:
		candidate = recycle
	case r.inactive != nil:
		candidate = r.inactive
	default:
		candidate = r.newHist()
	}
	candidate.Reset()

	now := time.Now().UnixNano()

	oldActive := r.active.Load()
	oldActive.integer.SetEndTimeStamp(now)
	candidate.integer.SetStartTimeStamp(now)

	r.active.Store(candidate)
	r.phaser.FlipPhase(intervalFlipYield)

	r.inactive = nil

	return oldActive, nil
}

// GetIntervalHistogramInto copies the interval snapshot's state into
// target (its counts cloned into a new backend) instead of returning the
// snapshot, then recycles the snapshot histogram back into the recorder's
// double buffer, mirroring
// Recorder.GetIntervalHistogramInto.
func (r *DoubleRecorder) GetIntervalHistogramInto(target *DoubleHistogram) error {
	snapshot, err := r.GetIntervalHistogram(nil)
	if err != nil {
		return err
	}

	target.integer.cfg = snapshot.integer.cfg
	target.integer.kind = snapshot.integer.kind
	target.integer.backend = snapshot.integer.backend.clone()
	target.integer.normalizingIndexOffset = snapshot.integer.normalizingIndexOffset
	target.integer.totalCount = snapshot.integer.totalCount
	target.integer.minNonZeroValue = snapshot.integer.minNonZeroValue
	target.integer.maxValue = snapshot.integer.maxValue
	target.integer.startTimeStamp = snapshot.integer.startTimeStamp
	target.integer.endTimeStamp = snapshot.integer.endTimeStamp
	target.integer.tag = snapshot.integer.tag
	target.ratio = snapshot.ratio
	target.highestToLowestValueRatio = snapshot.highestToLowestValueRatio

	r.recycle(snapshot)

	return nil
}

// recycle hands a previously returned snapshot back to the recorder's
// double buffer, mirroring Recorder.recycle.
func (r *DoubleRecorder) recycle(snapshot *DoubleHistogram) {
	r.phaser.ReaderLock()
	defer r.phaser.ReaderUnlock()

	if r.inactive == nil {
		r.inactive = snapshot
	}
}

// Reset discards all history: both the active and any held inactive
// histogram are reset in place.
func (r *DoubleRecorder) Reset() {
	r.phaser.ReaderLock()
	defer r.phaser.ReaderUnlock()

	r.active.Load().Reset()
	if r.inactive != nil {
		r.inactive.Reset()
	}
}
