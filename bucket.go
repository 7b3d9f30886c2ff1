package hdrhistogram

// Bucket layout arithmetic (spec.md §4.1). These are pure functions of the
// histogram's config and a value; they carry no mutable state and are safe
// to call concurrently. Adapted from the index-computation in
// millken-hdrhistogram's Histogram.getBucketIndex/getSubBucketIdx/
// countsIndex, generalized off of a shared config rather than duplicated
// per-instance fields.

// getBucketIndex returns the bucket a value falls into. Bucket 0 is linear;
// bucket i >= 1 doubles the step of bucket i-1.
func (c *config) getBucketIndex(v int64) int32 {
	pow2Ceiling := bitLen(v | c.subBucketMask)
	return int32(pow2Ceiling - c.unitMagnitude - (c.subBucketHalfCountMagnitude + 1))
}

// getSubBucketIdx returns the offset of v within the given bucket.
func (c *config) getSubBucketIdx(v int64, bucketIdx int32) int32 {
	return int32(v >> uint(int64(bucketIdx)+c.unitMagnitude))
}

// countsIndex maps a (bucketIdx, subBucketIdx) pair to the flat index in the
// counts array. Bucket 0 is stored whole; each bucket >= 1 stores only its
// upper half, since its lower half covers values the bucket below already
// represents.
func (c *config) countsIndex(bucketIdx, subBucketIdx int32) int32 {
	bucketBaseIdx := (bucketIdx + 1) << uint(c.subBucketHalfCountMagnitude)
	offsetInBucket := subBucketIdx - c.subBucketHalfCount
	return bucketBaseIdx + offsetInBucket
}

// countsIndexFor is the O(1) value -> storage-slot mapping. It does not
// bounds-check against the counts array length; callers must do that.
func (c *config) countsIndexFor(v int64) int32 {
	bucketIdx := c.getBucketIndex(v)
	subBucketIdx := c.getSubBucketIdx(v, bucketIdx)
	return c.countsIndex(bucketIdx, subBucketIdx)
}

// valueFromIndex reconstructs the lowest value represented by a
// (bucketIdx, subBucketIdx) pair.
func (c *config) valueFromIndex(bucketIdx, subBucketIdx int32) int64 {
	return int64(subBucketIdx) << uint(int64(bucketIdx)+c.unitMagnitude)
}

// valueFromCountsIndex is the inverse of countsIndexFor, used by iteration
// and decode to recover a representative value for a flat slot index.
func (c *config) valueFromCountsIndex(idx int32) int64 {
	bucketIdx := (idx >> c.subBucketHalfCountMagnitude) - 1
	subBucketIdx := (idx & (c.subBucketHalfCount - 1)) + c.subBucketHalfCount
	if bucketIdx < 0 {
		subBucketIdx = idx
		bucketIdx = 0
	}
	return c.valueFromIndex(bucketIdx, subBucketIdx)
}

// sizeOfEquivalentValueRange returns the width of the resolution window v
// falls into: 2^(unitMagnitude + bucketIdx), adjusted for sub-bucket
// overflow into the next bucket.
func (c *config) sizeOfEquivalentValueRange(v int64) int64 {
	bucketIdx := c.getBucketIndex(v)
	subBucketIdx := c.getSubBucketIdx(v, bucketIdx)
	adjustedBucket := bucketIdx
	if subBucketIdx >= c.subBucketCount {
		adjustedBucket++
	}
	return int64(1) << uint(c.unitMagnitude+int64(adjustedBucket))
}

// lowestEquivalentValue returns the smallest value that maps to the same
// slot as v.
func (c *config) lowestEquivalentValue(v int64) int64 {
	bucketIdx := c.getBucketIndex(v)
	subBucketIdx := c.getSubBucketIdx(v, bucketIdx)
	return c.valueFromIndex(bucketIdx, subBucketIdx)
}

// nextNonEquivalentValue returns the smallest value that does NOT map to
// the same slot as v.
func (c *config) nextNonEquivalentValue(v int64) int64 {
	return c.lowestEquivalentValue(v) + c.sizeOfEquivalentValueRange(v)
}

// highestEquivalentValue returns the largest value that maps to the same
// slot as v.
func (c *config) highestEquivalentValue(v int64) int64 {
	return c.nextNonEquivalentValue(v) - 1
}

// medianEquivalentValue returns the midpoint of v's equivalent range, used
// to weight mean/stddev computations.
func (c *config) medianEquivalentValue(v int64) int64 {
	return c.lowestEquivalentValue(v) + (c.sizeOfEquivalentValueRange(v) >> 1)
}

// valuesAreEquivalent reports whether a and b map to the same storage slot.
func (c *config) valuesAreEquivalent(a, b int64) bool {
	return c.lowestEquivalentValue(a) == c.lowestEquivalentValue(b)
}

// bitLen returns floor(log2(x)) + 1 for x > 0 (the position of the highest
// set bit, 1-indexed). Kept as a standalone helper rather than math/bits
// to preserve the int64 sign-agnostic semantics the bucket math relies on
// for subBucketMask-widened values.
func bitLen(x int64) (n int64) {
	for ; x >= 0x8000; x >>= 16 {
		n += 16
	}
	if x >= 0x80 {
		x >>= 8
		n += 8
	}
	if x >= 0x8 {
		x >>= 4
		n += 4
	}
	if x >= 0x2 {
		x >>= 2
		n += 2
	}
	if x >= 0x1 {
		n++
	}
	return
}
