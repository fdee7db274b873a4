package evt

import "sync/atomic"

// Diagnostics tracks event-buffer pressure across blocks without
// touching the audio thread's allocation-free guarantee: every counter
// here is a plain atomic increment, grounded on the teacher's
// pkg/event/pool.go pool-hit/miss/high-water-mark bookkeeping. Read
// from the main thread (e.g. by the telemetry sink); written from the
// audio thread.
type Diagnostics struct {
	pushes       uint64
	drops        uint64
	highWaterMark uint64
}

// Observe records the outcome of filling a Buffer for one block.
func (d *Diagnostics) Observe(b *Buffer, attempted int) {
	accepted := b.Size()
	atomic.AddUint64(&d.pushes, uint64(accepted))
	if attempted > accepted {
		atomic.AddUint64(&d.drops, uint64(attempted-accepted))
	}
	for {
		cur := atomic.LoadUint64(&d.highWaterMark)
		if uint64(accepted) <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&d.highWaterMark, cur, uint64(accepted)) {
			break
		}
	}
}

// Snapshot returns the current counters.
func (d *Diagnostics) Snapshot() (pushes, drops, highWaterMark uint64) {
	return atomic.LoadUint64(&d.pushes), atomic.LoadUint64(&d.drops), atomic.LoadUint64(&d.highWaterMark)
}
