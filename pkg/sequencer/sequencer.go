// Package sequencer implements the per-track note source (C3, §4.3):
// it turns a playing clip plus live keyboard input into a precise,
// sample-offset event stream for one audio block, tracking note-on/
// note-off bookkeeping across clip wraparound, scene changes, and live
// input.
package sequencer

import (
	"math"

	"github.com/basslineaudio/sessioncore/pkg/clip"
	"github.com/basslineaudio/sessioncore/pkg/evt"
	"github.com/basslineaudio/sessioncore/pkg/state"
)

// pointEpsilon is the tolerance used to decide whether an automation
// lane already carries a point exactly at a given beat (§4.3 step 12).
const pointEpsilon = 1e-9

// NoteSource sequences one track. State persists across blocks:
// CurrentBeat, the last-played scene, and which pitches this source
// has an outstanding note-on for.
type NoteSource struct {
	Track int

	currentBeat   float64
	lastScene     int // -1 sentinel: no scene played yet
	activePitches [128]bool

	// InstrumentEvents carries notes plus the instrument's (fx index -1)
	// automation lanes. FXEvents[i] carries only the automation lanes
	// targeting effect slot i — FX chains have no note ports in this
	// host. Both are pre-allocated once (no per-block allocation).
	InstrumentEvents *evt.Buffer
	FXEvents         []*evt.Buffer

	Diagnostics evt.Diagnostics
}

// New creates a note source for track, with fxSlots pre-allocated
// per-effect-slot automation buffers.
func New(track, fxSlots int) *NoteSource {
	ns := &NoteSource{
		Track:            track,
		lastScene:        -1,
		InstrumentEvents: &evt.Buffer{},
		FXEvents:         make([]*evt.Buffer, fxSlots),
	}
	for i := range ns.FXEvents {
		ns.FXEvents[i] = &evt.Buffer{}
	}
	return ns
}

// ActivePitchCount returns popcount(active_pitches) — the invariant
// checked by spec.md §8 property 1.
func (ns *NoteSource) ActivePitchCount() int {
	n := 0
	for _, a := range ns.activePitches {
		if a {
			n++
		}
	}
	return n
}

func mod(v, m float64) float64 {
	if m <= 0 {
		return 0
	}
	r := v - m*math.Floor(v/m)
	return r
}

// Process fills InstrumentEvents and FXEvents for one block (§4.3).
func (ns *NoteSource) Process(snap *state.Snapshot, sampleRate float64, frameCount uint32) {
	ns.InstrumentEvents.Reset()
	for _, b := range ns.FXEvents {
		b.Reset()
	}

	var live [128]bool
	var liveVel [128]float64
	if ns.Track >= 0 && ns.Track < len(snap.LiveKeyStates) {
		live = snap.LiveKeyStates[ns.Track]
		liveVel = snap.LiveKeyVelocities[ns.Track]
	}

	// Step 3: transport stopped.
	if !snap.Playing {
		ns.currentBeat = 0
		ns.reconcileDiff(live, liveVel, nil, 0)
		return
	}

	// Step 4: find the first playing scene for this track.
	scene := snap.PlayingSceneForTrack(ns.Track)
	if scene == -1 {
		ns.currentBeat = 0
		ns.reconcileDiff(live, liveVel, nil, 0)
		return
	}

	// Step 5: scene change resets the clip position.
	if scene != ns.lastScene {
		ns.currentBeat = 0
	}
	ns.lastScene = scene

	c := snap.ClipFor(ns.Track, scene)
	clipLen := 0.0
	if c != nil {
		clipLen = c.LengthBeats
	}
	if c == nil || clipLen <= 0 {
		ns.reconcileDiff(live, liveVel, c, 0)
		return
	}

	beatsPerSample := (snap.BPM / 60.0) / sampleRate
	blockBeats := beatsPerSample * float64(frameCount)

	beatStart := mod(ns.currentBeat, clipLen)
	beatEnd := beatStart + blockBeats

	// Step 9: at-beat-start reconciliation.
	ns.reconcileDiff(live, liveVel, c, beatStart)

	// Step 10/11: process one or two segments.
	if beatEnd < clipLen {
		ns.processSegment(c, beatStart, beatEnd, 0, beatsPerSample)
	} else {
		ns.processSegment(c, beatStart, clipLen, 0, beatsPerSample)
		wrapBase := uint32(math.Floor((clipLen - beatStart) / beatsPerSample))
		ns.processSegment(c, 0, mod(beatEnd, clipLen), wrapBase, beatsPerSample)
	}

	// Step 12: automation, emitted once per block against the whole
	// clip's lanes (segment-aware for in-segment points, plus the
	// beat-start reconciliation value).
	ns.emitAutomation(c, beatStart, clipLen, beatEnd, beatsPerSample)

	// Step 13: advance current_beat.
	if beatEnd < clipLen {
		ns.currentBeat = beatEnd
	} else {
		ns.currentBeat = mod(beatEnd, clipLen)
	}

	ns.Diagnostics.Observe(ns.InstrumentEvents, ns.InstrumentEvents.Attempted())
}

// reconcileDiff emits, at sample offset 0 of InstrumentEvents, the
// note-off/note-on diff between activePitches and what "should" be
// sounding (§4.3 steps 3 and 9). If c is non-nil, should[] also
// includes notes active at beatStart; velocities prefer the clip
// note's onset velocity over the live velocity.
func (ns *NoteSource) reconcileDiff(live [128]bool, liveVel [128]float64, c *clip.Clip, beatStart float64) {
	var should [128]bool
	var onsetVel [128]float64
	for p := 0; p < 128; p++ {
		should[p] = live[p]
		onsetVel[p] = liveVel[p]
	}
	if c != nil {
		for _, n := range c.ActiveAt(beatStart) {
			should[n.Pitch] = true
			onsetVel[n.Pitch] = n.OnsetVelocity
		}
	}

	for p := 0; p < 128; p++ {
		switch {
		case ns.activePitches[p] && !should[p]:
			ns.InstrumentEvents.PushNoteOff(0, uint8(p), 0)
			ns.activePitches[p] = false
		case !ns.activePitches[p] && should[p]:
			ns.InstrumentEvents.PushNoteOn(0, uint8(p), onsetVel[p])
			ns.activePitches[p] = true
		}
	}
}

// processSegment emits onset/offset events for [segStart, segEnd) with
// sample offsets relative to baseOffset (§4.3 step 11).
func (ns *NoteSource) processSegment(c *clip.Clip, segStart, segEnd float64, baseOffset uint32, beatsPerSample float64) {
	for _, e := range c.OnsetsOffsetsIn(segStart, segEnd) {
		offset := baseOffset + sampleOffsetOf(e.AtBeat, segStart, beatsPerSample)
		if e.IsOnset {
			ns.InstrumentEvents.PushNoteOn(offset, e.Pitch, e.Velocity)
			ns.activePitches[e.Pitch] = true
		} else {
			ns.InstrumentEvents.PushNoteOff(offset, e.Pitch, e.Velocity)
			ns.activePitches[e.Pitch] = false
		}
	}
}

func sampleOffsetOf(atBeat, segStart, beatsPerSample float64) uint32 {
	if beatsPerSample <= 0 {
		return 0
	}
	off := math.Floor((atBeat - segStart) / beatsPerSample)
	if off < 0 {
		off = 0
	}
	return uint32(off)
}

// emitAutomation implements §4.3 step 12 for the instrument's lanes
// (fxIndex -1) and for each configured FX slot's lanes.
func (ns *NoteSource) emitAutomation(c *clip.Clip, beatStart, clipLen, beatEnd, beatsPerSample float64) {
	for i := range c.Lanes {
		lane := &c.Lanes[i]
		if lane.Target.TrackAttribute {
			// Track-attribute lanes are consumed by the gain node, not
			// emitted as plugin events (spec.md §9 design note).
			continue
		}
		var dst *evt.Buffer
		if lane.Target.FXIndex < 0 {
			dst = ns.InstrumentEvents
		} else if int(lane.Target.FXIndex) < len(ns.FXEvents) {
			dst = ns.FXEvents[lane.Target.FXIndex]
		} else {
			continue
		}
		ns.emitLane(dst, lane, beatStart, clipLen, beatEnd, beatsPerSample)
	}
}

func (ns *NoteSource) emitLane(dst *evt.Buffer, lane *clip.AutomationLane, beatStart, clipLen, beatEnd, beatsPerSample float64) {
	if beatEnd < clipLen {
		for _, p := range lane.PointsIn(beatStart, beatEnd) {
			offset := sampleOffsetOf(p.TimeBeats, beatStart, beatsPerSample)
			dst.PushParamValue(offset, lane.Target.FXIndex, lane.Target.ParamID, p.Value)
		}
	} else {
		for _, p := range lane.PointsIn(beatStart, clipLen) {
			offset := sampleOffsetOf(p.TimeBeats, beatStart, beatsPerSample)
			dst.PushParamValue(offset, lane.Target.FXIndex, lane.Target.ParamID, p.Value)
		}
		wrapBase := uint32(math.Floor((clipLen - beatStart) / beatsPerSample))
		for _, p := range lane.PointsIn(0, mod(beatEnd, clipLen)) {
			offset := wrapBase + sampleOffsetOf(p.TimeBeats, 0, beatsPerSample)
			dst.PushParamValue(offset, lane.Target.FXIndex, lane.Target.ParamID, p.Value)
		}
	}

	if !lane.HasPointAt(beatStart, pointEpsilon) {
		v := lane.ValueAt(beatStart, clipLen)
		dst.PushParamValue(0, lane.Target.FXIndex, lane.Target.ParamID, v)
	}
}
