package hdrhistogram

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWriterReaderPhaserBasicFlip(t *testing.T) {
	p := NewWriterReaderPhaser()

	token := p.WriterCriticalSectionEnter()
	p.WriterCriticalSectionExit(token)

	p.ReaderLock()
	p.FlipPhase(0)
	p.ReaderUnlock()
}

func TestWriterReaderPhaserFlipWaitsForInFlightWriters(t *testing.T) {
	p := NewWriterReaderPhaser()

	token := p.WriterCriticalSectionEnter()

	flipped := make(chan struct{})
	go func() {
		p.ReaderLock()
		p.FlipPhase(time.Millisecond)
		p.ReaderUnlock()
		close(flipped)
	}()

	select {
	case <-flipped:
		t.Fatal("FlipPhase returned before the in-flight writer exited")
	case <-time.After(20 * time.Millisecond):
	}

	p.WriterCriticalSectionExit(token)

	select {
	case <-flipped:
	case <-time.After(time.Second):
		t.Fatal("FlipPhase did not return after the writer exited")
	}
}

func TestWriterReaderPhaserConcurrentWriters(t *testing.T) {
	p := NewWriterReaderPhaser()

	var counter atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				token := p.WriterCriticalSectionEnter()
				counter.Add(1)
				p.WriterCriticalSectionExit(token)
			}
		}()
	}

	wg.Wait()

	if got := counter.Load(); got != 5000 {
		t.Errorf("counter = %d, want 5000", got)
	}

	p.ReaderLock()
	p.FlipPhase(0)
	p.ReaderUnlock()
}

func TestStripedPhaserRejectsNonPowerOfTwo(t *testing.T) {
	if _, err := NewStripedPhaser(3); err == nil {
		t.Fatal("NewStripedPhaser(3): expected error, got nil")
	}
}

func TestStripedPhaserRoutesAndFlips(t *testing.T) {
	sp, err := NewStripedPhaser(4)
	if err != nil {
		t.Fatalf("NewStripedPhaser: %v", err)
	}

	tok := sp.WriterCriticalSectionEnter(7)
	sp.WriterCriticalSectionExit(tok)

	sp.FlipPhase(0)
}
