package hdrhistogram

import "sync/atomic"

// recorderInstanceIDCounter is the one piece of process-wide mutable state
// in this module (spec.md §9 "Global mutable state"): a monotonically
// increasing id assigned to every Recorder, so snapshots it produces can be
// validated on recycling. It starts at 0 and is incremented before each
// use, so the first id is 1 and the zero value of an unset
// recorderInstanceID field never matches a real recorder.
var recorderInstanceIDCounter atomic.Int64

func init() {
	recorderInstanceIDCounter.Store(0)
}

// nextRecorderInstanceID returns a fresh, process-wide-unique recorder id.
func nextRecorderInstanceID() int64 {
	return recorderInstanceIDCounter.Add(1)
}
