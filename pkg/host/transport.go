package host

import (
	"math"
	"sync/atomic"
)

// TransportControl lets a plugin request a transport change (§4.10
// "host callbacks", supplemented from the teacher's
// pkg/api/host.go HostTransportControl). The audio thread cannot
// mutate the UI-owned Snapshot directly, so every request here is a
// one-shot atomic flag (or payload) the UI thread consumes on its next
// tick and turns into an actual transport/snapshot change — the same
// shape as RequestProcess/RequestCallback.
type TransportControl struct {
	start, stop, cont, pause, togglePlay atomic.Bool
	toggleLoop                           atomic.Bool
	enableLoop                           atomic.Bool
	enableLoopValue                      atomic.Bool
	toggleRecord                         atomic.Bool

	jumpPending  atomic.Bool
	jumpPosition atomic.Uint64 // math.Float64bits

	loopRegionPending atomic.Bool
	loopStart         atomic.Uint64
	loopDuration      atomic.Uint64
}

func (t *TransportControl) RequestStart()        { t.start.Store(true) }
func (t *TransportControl) RequestStop()         { t.stop.Store(true) }
func (t *TransportControl) RequestContinue()     { t.cont.Store(true) }
func (t *TransportControl) RequestPause()        { t.pause.Store(true) }
func (t *TransportControl) RequestTogglePlay()   { t.togglePlay.Store(true) }
func (t *TransportControl) RequestToggleLoop()   { t.toggleLoop.Store(true) }
func (t *TransportControl) RequestToggleRecord() { t.toggleRecord.Store(true) }

func (t *TransportControl) RequestEnableLoop(enable bool) {
	t.enableLoopValue.Store(enable)
	t.enableLoop.Store(true)
}

// RequestJump asks the UI thread to move the playhead to position beats.
func (t *TransportControl) RequestJump(positionBeats float64) {
	t.jumpPosition.Store(math.Float64bits(positionBeats))
	t.jumpPending.Store(true)
}

// RequestLoopRegion asks the UI thread to set the loop region.
func (t *TransportControl) RequestLoopRegion(startBeats, durationBeats float64) {
	t.loopStart.Store(math.Float64bits(startBeats))
	t.loopDuration.Store(math.Float64bits(durationBeats))
	t.loopRegionPending.Store(true)
}

// TransportRequests is the drained, one-shot view of every pending
// request, consumed in a single UI-thread pass.
type TransportRequests struct {
	Start, Stop, Continue, Pause, TogglePlay bool
	ToggleLoop, ToggleRecord                 bool
	EnableLoopRequested                      bool
	EnableLoopValue                          bool
	JumpRequested                            bool
	JumpPositionBeats                        float64
	LoopRegionRequested                      bool
	LoopStartBeats, LoopDurationBeats        float64
}

// Consume swaps every pending flag to its zero value and returns what
// was pending. Call once per UI tick.
func (t *TransportControl) Consume() TransportRequests {
	r := TransportRequests{
		Start:        t.start.Swap(false),
		Stop:         t.stop.Swap(false),
		Continue:     t.cont.Swap(false),
		Pause:        t.pause.Swap(false),
		TogglePlay:   t.togglePlay.Swap(false),
		ToggleLoop:   t.toggleLoop.Swap(false),
		ToggleRecord: t.toggleRecord.Swap(false),
	}
	if t.enableLoop.Swap(false) {
		r.EnableLoopRequested = true
		r.EnableLoopValue = t.enableLoopValue.Load()
	}
	if t.jumpPending.Swap(false) {
		r.JumpRequested = true
		r.JumpPositionBeats = math.Float64frombits(t.jumpPosition.Load())
	}
	if t.loopRegionPending.Swap(false) {
		r.LoopRegionRequested = true
		r.LoopStartBeats = math.Float64frombits(t.loopStart.Load())
		r.LoopDurationBeats = math.Float64frombits(t.loopDuration.Load())
	}
	return r
}
