package hdrhistogram

// allIterator walks every logical slot in the counts array in ascending
// value order, adapted from millken-hdrhistogram's iterator. recordedIterator
// wraps it to skip zero-count slots, matching the original's rIterator.
type allIterator struct {
	h            *Histogram
	bucketIdx    int32
	subBucketIdx int32
	done         bool

	countAtIdx   int64
	valueFromIdx int64

	// totalCountAtStart is a snapshot of h.totalCount taken when the
	// iterator was constructed. A non-concurrent histogram's totalCount
	// only changes via RecordValueWithCount, Subtract, or Reset; seeing it
	// drift mid-walk means the caller mutated h while iterating, per
	// spec.md §7.
	totalCountAtStart int64
	err               error
}

func (h *Histogram) newAllIterator() *allIterator {
	return &allIterator{h: h, subBucketIdx: -1, totalCountAtStart: h.totalCount}
}

func (it *allIterator) next() bool {
	if it.done {
		return false
	}

	if it.h.totalCount != it.totalCountAtStart {
		it.err = ErrConcurrentModification
		it.done = true
		return false
	}

	it.subBucketIdx++
	if it.subBucketIdx >= it.h.cfg.subBucketCount {
		it.subBucketIdx = it.h.cfg.subBucketHalfCount
		it.bucketIdx++
	}

	if it.bucketIdx >= it.h.cfg.bucketCount {
		it.done = true
		return false
	}

	idx := it.h.cfg.countsIndex(it.bucketIdx, it.subBucketIdx)
	it.countAtIdx = it.h.backend.get(it.h.physicalIndex(idx))
	it.valueFromIdx = it.h.cfg.valueFromIndex(it.bucketIdx, it.subBucketIdx)

	return true
}

// Err returns the error that caused next() to stop early, or nil if the
// walk ran to completion.
func (it *allIterator) Err() error { return it.err }

// recordedIterator skips slots with a zero count.
type recordedIterator struct {
	all *allIterator
	countAtIdx, valueFromIdx int64
}

func (h *Histogram) newRecordedIterator() *recordedIterator {
	return &recordedIterator{all: h.newAllIterator()}
}

func (it *recordedIterator) next() bool {
	for it.all.next() {
		if it.all.countAtIdx != 0 {
			it.countAtIdx = it.all.countAtIdx
			it.valueFromIdx = it.all.valueFromIdx
			return true
		}
	}
	return false
}

// Err returns the error that caused next() to stop early, or nil if the
// walk ran to completion.
func (it *recordedIterator) Err() error { return it.all.Err() }

// Cursor is the raw (bucketIdx, subBucketIdx) walk spec.md §9 says the core
// should expose in place of a higher-level iteration DSL: callers outside
// this module (linear/log/percentile iterators) compose on top of it.
type Cursor struct {
	it           *allIterator
	cumulative   int64
}

// NewCursor returns a cursor positioned before the first slot.
func (h *Histogram) NewCursor() *Cursor {
	return &Cursor{it: h.newAllIterator()}
}

// Next advances to the next non-empty slot, returning false once the
// cursor has walked every bucket.
func (c *Cursor) Next() bool {
	for c.it.next() {
		if c.it.countAtIdx != 0 {
			c.cumulative += c.it.countAtIdx
			return true
		}
	}
	return false
}

// BucketIndex returns the current slot's bucket index.
func (c *Cursor) BucketIndex() int32 { return c.it.bucketIdx }

// SubBucketIndex returns the current slot's sub-bucket index.
func (c *Cursor) SubBucketIndex() int32 { return c.it.subBucketIdx }

// Value returns the lowest value represented by the current slot.
func (c *Cursor) Value() int64 { return c.it.valueFromIdx }

// Count returns the count recorded at the current slot.
func (c *Cursor) Count() int64 { return c.it.countAtIdx }

// CumulativeCount returns the running total of counts seen up to and
// including the current slot, letting callers build percentile iterators
// without re-walking from the start.
func (c *Cursor) CumulativeCount() int64 { return c.cumulative }

// Err returns ErrConcurrentModification if the histogram's totalCount
// changed between NewCursor and the point where Next last returned false,
// or nil if the walk ran to completion undisturbed.
func (c *Cursor) Err() error { return c.it.Err() }
