package hdrhistogram

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// WriterReaderPhaser implements spec.md §4.5: wait-free writer critical
// sections coexisting with a blocking reader "flip" that drains in-flight
// writers. Grounded on the CAS-loop/atomic-counter style of
// pkg/slotcache/lock.go's registry bookkeeping, generalized to the
// even/odd epoch-pair protocol the spec describes.
//
// The opaque token enter() returns carries the writer's phase in its sign
// bit (spec.md §9 "Phaser token sign-encoding"): non-negative means the
// writer is in the even phase, negative means odd. exit() reads only the
// token's sign, never shared state, which is what keeps it wait-free.
type WriterReaderPhaser struct {
	startEpoch    atomic.Int64
	evenEndEpoch  atomic.Int64
	oddEndEpoch   atomic.Int64
	readerMu      sync.Mutex
}

// NewWriterReaderPhaser returns a phaser starting in the even phase with no
// writers in flight.
func NewWriterReaderPhaser() *WriterReaderPhaser {
	p := &WriterReaderPhaser{}
	p.oddEndEpoch.Store(math.MinInt64)
	return p
}

// WriterCriticalSectionEnter marks the start of a writer's critical
// section. The returned token must be passed to WriterCriticalSectionExit
// exactly once.
func (p *WriterReaderPhaser) WriterCriticalSectionEnter() int64 {
	return p.startEpoch.Add(1) - 1
}

// WriterCriticalSectionExit marks the end of a writer's critical section.
func (p *WriterReaderPhaser) WriterCriticalSectionExit(criticalValueAtEnter int64) {
	if criticalValueAtEnter < 0 {
		p.oddEndEpoch.Add(1)
	} else {
		p.evenEndEpoch.Add(1)
	}
}

// ReaderLock acquires the reader mutex. Only one reader may flip at a time.
func (p *WriterReaderPhaser) ReaderLock() { p.readerMu.Lock() }

// ReaderUnlock releases the reader mutex.
func (p *WriterReaderPhaser) ReaderUnlock() { p.readerMu.Unlock() }

// FlipPhase waits for all writer critical sections that started before the
// call to complete, then returns. Must be called with the reader lock held.
// yieldNsec is how long to sleep between polls while waiting; 0 means
// yield the goroutine's timeslice via runtime.Gosched instead of sleeping.
func (p *WriterReaderPhaser) FlipPhase(yieldNsec time.Duration) {
	startEpochIsEven := p.startEpoch.Load() >= 0

	var initialStartValue int64
	if startEpochIsEven {
		initialStartValue = math.MinInt64
		p.oddEndEpoch.Store(initialStartValue)
	} else {
		initialStartValue = 0
		p.evenEndEpoch.Store(initialStartValue)
	}

	startValueAtFlip := p.startEpoch.Swap(initialStartValue)

	for {
		var caughtUp bool
		if startEpochIsEven {
			caughtUp = p.evenEndEpoch.Load() == startValueAtFlip
		} else {
			caughtUp = p.oddEndEpoch.Load() == startValueAtFlip
		}

		if caughtUp {
			return
		}

		if yieldNsec <= 0 {
			runtime.Gosched()
		} else {
			time.Sleep(yieldNsec)
		}
	}
}
