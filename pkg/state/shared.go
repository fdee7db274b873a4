// Package state implements the atomics-only shared state visible to
// both the UI and audio thread (C9, §4.8) and the immutable per-block
// StateSnapshot the audio thread consumes (C10, §4.9). Grounded on the
// teacher's atomic start-processing ratchets and the acquire/release
// discipline documented for host-plugin coordination.
package state

import "sync/atomic"

// Shared is the process-wide record carrying only atomics (§4.8). All
// flags use acquire/release atomics; the audio thread is the sole
// mutator of the "started" bits and of ProcessRequested's consumption.
type Shared struct {
	processRequested   atomic.Bool
	suspendProcessing  atomic.Bool

	startProcessing   []atomic.Bool // one-shot ratchet per track
	startProcessingFX  []trackFXFlags
	pluginStarted      []atomic.Bool
	fxPluginStarted    []trackFXFlags
}

// trackFXFlags is a per-track row of per-fx-slot atomic flags.
type trackFXFlags struct {
	slots []atomic.Bool
}

// NewShared allocates a Shared state sized for trackCount tracks with
// up to fxPerTrack effect slots each. Allocation happens once at setup
// time, never inside process().
func NewShared(trackCount, fxPerTrack int) *Shared {
	s := &Shared{
		startProcessing:  make([]atomic.Bool, trackCount),
		startProcessingFX: make([]trackFXFlags, trackCount),
		pluginStarted:     make([]atomic.Bool, trackCount),
		fxPluginStarted:   make([]trackFXFlags, trackCount),
	}
	for t := 0; t < trackCount; t++ {
		s.startProcessingFX[t].slots = make([]atomic.Bool, fxPerTrack)
		s.fxPluginStarted[t].slots = make([]atomic.Bool, fxPerTrack)
	}
	return s
}

// RequestProcess sets the process-requested flag (e.g. from the host's
// "request process" callback). Consumed (swap-to-false) at the start of
// each block by the graph processor's Phase 2, forcing every synth node
// to run once (§4.8).
func (s *Shared) RequestProcess() {
	s.processRequested.Store(true)
}

// ConsumeProcessRequested swaps the flag to false and returns its prior
// value. Only the audio thread calls this.
func (s *Shared) ConsumeProcessRequested() bool {
	return s.processRequested.Swap(false)
}

// SetSuspendProcessing requests the audio thread emit silence, e.g.
// while a project load/save inspects plugin state (§4.8, §5).
func (s *Shared) SetSuspendProcessing(v bool) {
	s.suspendProcessing.Store(v)
}

// SuspendProcessing reports the current suspend-processing flag.
func (s *Shared) SuspendProcessing() bool {
	return s.suspendProcessing.Load()
}

// RequestStartProcessing sets the one-shot start-processing ratchet for
// a track's instrument plugin (UI thread, release-store).
func (s *Shared) RequestStartProcessing(track int) {
	s.startProcessing[track].Store(true)
}

// CheckAndClearStartProcessing consumes the ratchet (audio thread,
// acq-rel swap).
func (s *Shared) CheckAndClearStartProcessing(track int) bool {
	return s.startProcessing[track].Swap(false)
}

// RequestStartProcessingFX sets the one-shot ratchet for a track's
// effect slot.
func (s *Shared) RequestStartProcessingFX(track, fx int) {
	s.startProcessingFX[track].slots[fx].Store(true)
}

// CheckAndClearStartProcessingFX consumes the ratchet for an effect slot.
func (s *Shared) CheckAndClearStartProcessingFX(track, fx int) bool {
	return s.startProcessingFX[track].slots[fx].Swap(false)
}

// SetPluginStarted/PluginStarted mirror the idempotent "started" bit
// for a track's instrument plugin (§4.8).
func (s *Shared) SetPluginStarted(track int, v bool) {
	s.pluginStarted[track].Store(v)
}

func (s *Shared) PluginStarted(track int) bool {
	return s.pluginStarted[track].Load()
}

// SetFXPluginStarted/FXPluginStarted mirror the idempotent "started"
// bit for a track's effect slot.
func (s *Shared) SetFXPluginStarted(track, fx int, v bool) {
	s.fxPluginStarted[track].slots[fx].Store(v)
}

func (s *Shared) FXPluginStarted(track, fx int) bool {
	return s.fxPluginStarted[track].slots[fx].Load()
}
