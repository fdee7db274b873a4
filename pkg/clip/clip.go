// Package clip implements the looping clip model (§3, §4.2): notes and
// automation lanes hosted on a torus of length_beats, with the
// onset/offset and piecewise-linear-automation queries the note source
// (pkg/sequencer) evaluates once per block.
package clip

import "sort"

// MinNoteDuration is the smallest legal note duration, in beats.
const MinNoteDuration = 1.0 / 128.0

// MaxNotesPerClip bounds the note array (§3).
const MaxNotesPerClip = 256

// MaxLanesPerClip bounds the automation lane array (§3).
const MaxLanesPerClip = 8

// MaxPointsPerLane bounds the points in one automation lane (§3).
const MaxPointsPerLane = 64

// Note is a pitched event hosted in a clip. Notes may wrap: if
// Start+Duration > the clip's length, the note continues from the
// clip origin (§3).
type Note struct {
	Pitch            uint8
	Start            float64 // beats from clip origin
	Duration         float64 // beats
	OnsetVelocity    float64 // 0..1
	ReleaseVelocity  float64 // 0..1
}

// End returns the note's unwrapped end position (Start+Duration), which
// may exceed the clip length for a wrapping note.
func (n Note) End() float64 {
	return n.Start + n.Duration
}

// AutomationTarget selects what an AutomationLane drives: either a
// track-level attribute (volume/pan, consumed by the gain node — see
// design note in spec.md §9) or a plugin parameter (FXIndex -1 for the
// instrument, >=0 for an effect slot).
type AutomationTarget struct {
	TrackAttribute bool // true: lane drives a track attribute, not a plugin param
	FXIndex        int32
	ParamID        uint32
}

// AutomationPoint is one breakpoint of a lane.
type AutomationPoint struct {
	TimeBeats float64
	Value     float64
}

// AutomationLane is an ordered-by-time sequence of breakpoints,
// piecewise-linearly interpolated and wrapped like notes.
type AutomationLane struct {
	Target AutomationTarget
	Points []AutomationPoint // ordered by TimeBeats, len <= MaxPointsPerLane
}

// Clip is a finite-length, looping pattern: a torus of length
// LengthBeats carrying notes and automation lanes (§3, invariant
// LengthBeats > 0).
type Clip struct {
	LengthBeats float64
	Notes       []Note           // len <= MaxNotesPerClip
	Lanes       []AutomationLane // len <= MaxLanesPerClip
}

// NoteOnOff is one emitted onset or offset within a queried segment.
type NoteOnOff struct {
	Pitch    uint8
	IsOnset  bool // false = offset
	Velocity float64
	AtBeat   float64 // position within the segment's own coordinate space (0..clip length)
}

// virtualNote is a note possibly split at the clip boundary, expressed
// in the clip's own [0, length) coordinate space.
type virtualNote struct {
	Note
	start float64
	end   float64
}

// splitNotes returns every note, with wrapping notes split into their
// two virtual segments per §4.2: "[start, length) and
// [0, duration-(length-start))".
func (c *Clip) splitNotes() []virtualNote {
	out := make([]virtualNote, 0, len(c.Notes)+4)
	length := c.LengthBeats
	for _, n := range c.Notes {
		end := n.End()
		if end <= length {
			out = append(out, virtualNote{Note: n, start: n.Start, end: end})
			continue
		}
		// Wraps: first part runs to the clip boundary...
		out = append(out, virtualNote{Note: n, start: n.Start, end: length})
		// ...second part continues from the origin.
		remainder := end - length
		out = append(out, virtualNote{Note: n, start: 0, end: remainder})
	}
	return out
}

// mod wraps v into [0, m).
func mod(v, m float64) float64 {
	if m <= 0 {
		return 0
	}
	r := v - m*float64(int64(v/m))
	if r < 0 {
		r += m
	}
	return r
}

// ActiveAt returns every note sounding at beat b (mod clip length),
// honouring wraparound for notes whose interval crosses the modulus
// (§4.2).
func (c *Clip) ActiveAt(b float64) []Note {
	if c.LengthBeats <= 0 {
		return nil
	}
	beat := mod(b, c.LengthBeats)
	var out []Note
	for _, vn := range c.splitNotes() {
		if vn.start <= beat && beat < vn.end {
			out = append(out, vn.Note)
		}
	}
	return out
}

// OnsetsOffsetsIn emits, for each note, an onset if its start lies
// strictly inside [s, e) and an offset if its end lies strictly inside
// [s, e) — §4.2/§4.3 step 11. s and e are expressed in the clip's own
// [0, length) coordinate space and the caller (pkg/sequencer) is
// responsible for splitting a wrapping block segment into two such
// calls.
func (c *Clip) OnsetsOffsetsIn(s, e float64) []NoteOnOff {
	var out []NoteOnOff
	for _, vn := range c.splitNotes() {
		if s < vn.start && vn.start < e {
			out = append(out, NoteOnOff{Pitch: vn.Pitch, IsOnset: true, Velocity: vn.OnsetVelocity, AtBeat: vn.start})
		}
		if s < vn.end && vn.end < e {
			out = append(out, NoteOnOff{Pitch: vn.Pitch, IsOnset: false, Velocity: vn.ReleaseVelocity, AtBeat: vn.end})
		}
	}
	return out
}

// TrimSoundingNoteAt enforces the at-most-one-sounding-note-per-pitch
// invariant (§3): if a new note-on at newStart overlaps an existing
// sounding note of the same pitch, the existing note is trimmed to end
// at newStart. Call before inserting a new overlapping note.
func (c *Clip) TrimSoundingNoteAt(pitch uint8, newStart float64) {
	for i := range c.Notes {
		n := &c.Notes[i]
		if n.Pitch != pitch {
			continue
		}
		if n.Start <= newStart && newStart < n.End() {
			n.Duration = newStart - n.Start
			if n.Duration < MinNoteDuration {
				n.Duration = MinNoteDuration
			}
		}
	}
}

// ValueAt evaluates the lane's piecewise-linear function at beat b
// (mod clip length), interpolating with wraparound between the last
// and first point (§4.2).
func (l *AutomationLane) ValueAt(b, lengthBeats float64) float64 {
	n := len(l.Points)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return l.Points[0].Value
	}
	beat := mod(b, lengthBeats)

	// Points are ordered by time; find the bracketing pair.
	idx := sort.Search(n, func(i int) bool { return l.Points[i].TimeBeats > beat })
	if idx == 0 {
		// Before the first point: interpolate wrapping from the last point.
		prev := l.Points[n-1]
		next := l.Points[0]
		span := (lengthBeats - prev.TimeBeats) + next.TimeBeats
		if span <= 0 {
			return next.Value
		}
		frac := (beat + (lengthBeats - prev.TimeBeats)) / span
		return prev.Value + (next.Value-prev.Value)*frac
	}
	if idx == n {
		// After the last point: interpolate wrapping to the first point.
		prev := l.Points[n-1]
		next := l.Points[0]
		span := (lengthBeats - prev.TimeBeats) + next.TimeBeats
		if span <= 0 {
			return prev.Value
		}
		frac := (beat - prev.TimeBeats) / span
		return prev.Value + (next.Value-prev.Value)*frac
	}
	prev := l.Points[idx-1]
	next := l.Points[idx]
	span := next.TimeBeats - prev.TimeBeats
	if span <= 0 {
		return prev.Value
	}
	frac := (beat - prev.TimeBeats) / span
	return prev.Value + (next.Value-prev.Value)*frac
}

// PointsIn returns every lane point whose time lies within [s, e), the
// clip-local coordinate space of one segment (§4.3 step 12).
func (l *AutomationLane) PointsIn(s, e float64) []AutomationPoint {
	var out []AutomationPoint
	for _, p := range l.Points {
		if p.TimeBeats >= s && p.TimeBeats < e {
			out = append(out, p)
		}
	}
	return out
}

// HasPointAt reports whether a point lies exactly at beat (within eps).
func (l *AutomationLane) HasPointAt(beat, eps float64) bool {
	for _, p := range l.Points {
		d := p.TimeBeats - beat
		if d < 0 {
			d = -d
		}
		if d <= eps {
			return true
		}
	}
	return false
}
