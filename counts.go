package hdrhistogram

import (
	"fmt"
	"sync/atomic"
)

// countsBackend is the capability every counts storage strategy must
// provide. Per spec.md §9, the histogram itself never type-switches on the
// concrete backend; it only calls through this interface, so there is no
// virtual dispatch hierarchy to maintain beyond the one indirection Go's
// interfaces already give us.
type countsBackend interface {
	get(idx int32) int64
	set(idx int32, v int64) error
	increment(idx int32) error
	addTo(idx int32, n int64) error
	clear()
	length() int32
	clone() countsBackend
	// resized returns a new backend of the same kind with newLength slots,
	// with the contents of [0, length()) copied into the low slots of the
	// result (callers perform any normalizing-offset-aware shuffling on top
	// of this raw copy).
	resized(newLength int32) countsBackend
}

// backendKind names the concrete backend a histogram is configured with, a
// flat sum type standing in for the deep Abstract/Short/Int/Long/Atomic/
// Packed histogram hierarchy of the original (spec.md §9).
type backendKind int

const (
	// BackendU16 stores counts as uint16; cheapest memory, lowest ceiling.
	BackendU16 backendKind = iota
	// BackendU32 stores counts as uint32.
	BackendU32
	// BackendU64 stores counts as int64, the default and the only width
	// that can never overflow in practice.
	BackendU64
	// BackendAtomicU64 stores counts as atomic int64, for concurrent
	// histograms and Recorder-backed instances.
	BackendAtomicU64
	// BackendPacked stores counts sparsely; see packed.go.
	BackendPacked
)

func newCountsBackend(kind backendKind, length int32) countsBackend {
	switch kind {
	case BackendU16:
		return &countsU16{data: make([]uint16, length)}
	case BackendU32:
		return &countsU32{data: make([]uint32, length)}
	case BackendAtomicU64:
		return &countsAtomicU64{data: make([]atomic.Int64, length)}
	case BackendPacked:
		return newPackedCounts(length)
	case BackendU64:
		fallthrough
	default:
		return &countsU64{data: make([]int64, length)}
	}
}

// --- fixed-width u16 ---

type countsU16 struct{ data []uint16 }

func (c *countsU16) get(idx int32) int64 { return int64(c.data[idx]) }

func (c *countsU16) set(idx int32, v int64) error {
	if v < 0 || v > int64(^uint16(0)) {
		return fmt.Errorf("%w: count %d does not fit in 16 bits", ErrCountOverflow, v)
	}
	c.data[idx] = uint16(v)
	return nil
}

func (c *countsU16) increment(idx int32) error { return c.addTo(idx, 1) }

func (c *countsU16) addTo(idx int32, n int64) error {
	next := int64(c.data[idx]) + n
	if next > int64(^uint16(0)) {
		return fmt.Errorf("%w: count would exceed 16 bits at slot %d", ErrCountOverflow, idx)
	}
	c.data[idx] = uint16(next)
	return nil
}

func (c *countsU16) clear() {
	for i := range c.data {
		c.data[i] = 0
	}
}

func (c *countsU16) length() int32 { return int32(len(c.data)) }

func (c *countsU16) clone() countsBackend {
	cp := make([]uint16, len(c.data))
	copy(cp, c.data)
	return &countsU16{data: cp}
}

func (c *countsU16) resized(newLength int32) countsBackend {
	cp := make([]uint16, newLength)
	copy(cp, c.data)
	return &countsU16{data: cp}
}

// --- fixed-width u32 ---

type countsU32 struct{ data []uint32 }

func (c *countsU32) get(idx int32) int64 { return int64(c.data[idx]) }

func (c *countsU32) set(idx int32, v int64) error {
	if v < 0 || v > int64(^uint32(0)) {
		return fmt.Errorf("%w: count %d does not fit in 32 bits", ErrCountOverflow, v)
	}
	c.data[idx] = uint32(v)
	return nil
}

func (c *countsU32) increment(idx int32) error { return c.addTo(idx, 1) }

func (c *countsU32) addTo(idx int32, n int64) error {
	next := int64(c.data[idx]) + n
	if next > int64(^uint32(0)) {
		return fmt.Errorf("%w: count would exceed 32 bits at slot %d", ErrCountOverflow, idx)
	}
	c.data[idx] = uint32(next)
	return nil
}

func (c *countsU32) clear() {
	for i := range c.data {
		c.data[i] = 0
	}
}

func (c *countsU32) length() int32 { return int32(len(c.data)) }

func (c *countsU32) clone() countsBackend {
	cp := make([]uint32, len(c.data))
	copy(cp, c.data)
	return &countsU32{data: cp}
}

func (c *countsU32) resized(newLength int32) countsBackend {
	cp := make([]uint32, newLength)
	copy(cp, c.data)
	return &countsU32{data: cp}
}

// --- fixed-width u64 (default, non-concurrent) ---

type countsU64 struct{ data []int64 }

func (c *countsU64) get(idx int32) int64 { return c.data[idx] }

func (c *countsU64) set(idx int32, v int64) error {
	if v < 0 {
		return fmt.Errorf("%w: negative count %d", ErrInvalidArgument, v)
	}
	c.data[idx] = v
	return nil
}

func (c *countsU64) increment(idx int32) error {
	c.data[idx]++
	return nil
}

func (c *countsU64) addTo(idx int32, n int64) error {
	c.data[idx] += n
	return nil
}

func (c *countsU64) clear() {
	for i := range c.data {
		c.data[i] = 0
	}
}

func (c *countsU64) length() int32 { return int32(len(c.data)) }

func (c *countsU64) clone() countsBackend {
	cp := make([]int64, len(c.data))
	copy(cp, c.data)
	return &countsU64{data: cp}
}

func (c *countsU64) resized(newLength int32) countsBackend {
	cp := make([]int64, newLength)
	copy(cp, c.data)
	return &countsU64{data: cp}
}

// --- atomic u64 (concurrent recorders) ---

type countsAtomicU64 struct{ data []atomic.Int64 }

func (c *countsAtomicU64) get(idx int32) int64 { return c.data[idx].Load() }

func (c *countsAtomicU64) set(idx int32, v int64) error {
	c.data[idx].Store(v)
	return nil
}

func (c *countsAtomicU64) increment(idx int32) error {
	c.data[idx].Add(1)
	return nil
}

func (c *countsAtomicU64) addTo(idx int32, n int64) error {
	c.data[idx].Add(n)
	return nil
}

func (c *countsAtomicU64) clear() {
	for i := range c.data {
		c.data[i].Store(0)
	}
}

func (c *countsAtomicU64) length() int32 { return int32(len(c.data)) }

func (c *countsAtomicU64) clone() countsBackend {
	cp := make([]atomic.Int64, len(c.data))
	for i := range c.data {
		cp[i].Store(c.data[i].Load())
	}
	return &countsAtomicU64{data: cp}
}

func (c *countsAtomicU64) resized(newLength int32) countsBackend {
	cp := make([]atomic.Int64, newLength)
	for i := range c.data {
		cp[i].Store(c.data[i].Load())
	}
	return &countsAtomicU64{data: cp}
}
