package state

import (
	"sync/atomic"

	"github.com/basslineaudio/sessioncore/pkg/clip"
	"github.com/basslineaudio/sessioncore/pkg/plugin"
)

// SlotState is a scene/track cell's transport state (§3).
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotStopped
	SlotQueued
	SlotPlaying
	SlotRecordQueued
	SlotRecording
)

// TrackState is the UI-owned, per-track mixer state a snapshot carries
// (§3 Track, minus the plugin slots which live in Snapshot.TrackPlugins
// / TrackFXPlugins so they can be nil-checked independently).
type TrackState struct {
	Volume float64 // 0..2
	Pan    float64 // 0..1
	Mute   bool
	Solo   bool
	Name   string
}

// Snapshot is the fixed-size flat record captured atomically from the
// UI side (§3, §4.9). It is self-consistent for one block; the audio
// thread never mutates it. Plugin pointers are borrowed — the
// plugin-lifecycle container guarantees they remain valid until the
// next snapshot replaces them.
type Snapshot struct {
	Playing      bool
	BPM          float64
	PlayheadBeat float64
	TrackCount   int
	SceneCount   int

	Tracks []TrackState // TrackCount entries plus one synthetic master entry at MasterTrackIndex()

	ClipSlots  [][]SlotState   // [track][scene]
	PianoClips [][]*clip.Clip // [track][scene]; nil entry = empty slot

	TrackPlugins   []*plugin.Instance   // [track]; nil = no instrument loaded
	TrackFXPlugins [][]*plugin.Instance // [track][fxSlot]; nil entry = empty slot

	LiveKeyStates     [][128]bool    // [track][pitch]
	LiveKeyVelocities [][128]float64 // [track][pitch]
}

// MasterTrackIndex is the synthetic index used for the master bus row
// in Tracks (§3 "plus one master index").
func (s *Snapshot) MasterTrackIndex() int {
	return s.TrackCount
}

// PlayingSceneForTrack returns the first scene index whose slot state
// is SlotPlaying for the given track, or -1 if none (§4.3 step 4).
func (s *Snapshot) PlayingSceneForTrack(track int) int {
	if track < 0 || track >= len(s.ClipSlots) {
		return -1
	}
	row := s.ClipSlots[track]
	for scene, st := range row {
		if st == SlotPlaying {
			return scene
		}
	}
	return -1
}

// ClipFor returns the clip hosted at track/scene, or nil.
func (s *Snapshot) ClipFor(track, scene int) *clip.Clip {
	if track < 0 || track >= len(s.PianoClips) {
		return nil
	}
	row := s.PianoClips[track]
	if scene < 0 || scene >= len(row) {
		return nil
	}
	return row[scene]
}

// Publisher implements the single-writer, double-buffered snapshot
// handoff (§4.9): the UI thread builds a scratch snapshot off to the
// side, then publishes it; the audio thread dereferences the most
// recently published pointer once at block entry (acquire load) and
// retains it through the block without blocking.
type Publisher struct {
	current atomic.Pointer[Snapshot]
}

// NewPublisher creates a publisher seeded with an initial snapshot.
func NewPublisher(initial *Snapshot) *Publisher {
	p := &Publisher{}
	p.current.Store(initial)
	return p
}

// Publish makes snap the publicly visible snapshot (release store).
// Single-writer discipline: only the UI thread calls this.
func (p *Publisher) Publish(snap *Snapshot) {
	p.current.Store(snap)
}

// PublishCAS publishes snap only if the currently visible snapshot is
// still expectedPrev, and reports whether it did; on false nothing is
// published and the caller rebuilds and tries again. This exists for the defensive case in §7 ("Snapshot publish
// contention: UI retries; audio thread never observes partial
// publish") even though the nominal discipline is a single UI writer.
func (p *Publisher) PublishCAS(expectedPrev, snap *Snapshot) bool {
	return p.current.CompareAndSwap(expectedPrev, snap)
}

// Load returns the most recently published snapshot (acquire load).
// Called once at block entry by the audio thread.
func (p *Publisher) Load() *Snapshot {
	return p.current.Load()
}
