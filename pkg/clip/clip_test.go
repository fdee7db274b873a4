package clip

import "testing"

func TestActiveAtSimple(t *testing.T) {
	c := &Clip{
		LengthBeats: 4,
		Notes: []Note{
			{Pitch: 60, Start: 0, Duration: 1, OnsetVelocity: 0.8},
		},
	}
	active := c.ActiveAt(0.5)
	if len(active) != 1 || active[0].Pitch != 60 {
		t.Fatalf("expected pitch 60 active at 0.5, got %v", active)
	}
	if len(c.ActiveAt(1.5)) != 0 {
		t.Fatalf("expected no notes active at 1.5")
	}
}

func TestWrappingNoteSplitAndOnOff(t *testing.T) {
	// S2 scenario: clip length 2, note pitch 64, start 1.5, duration 1.0.
	c := &Clip{
		LengthBeats: 2,
		Notes: []Note{
			{Pitch: 64, Start: 1.5, Duration: 1.0, OnsetVelocity: 0.8, ReleaseVelocity: 0.5},
		},
	}
	// Active at 0.25 (wrapped portion [0, 0.5)) and at 1.75 (first portion [1.5, 2)).
	if len(c.ActiveAt(0.25)) != 1 {
		t.Fatalf("expected wrapped portion active at 0.25")
	}
	if len(c.ActiveAt(1.75)) != 1 {
		t.Fatalf("expected first portion active at 1.75")
	}
	if len(c.ActiveAt(1.0)) != 0 {
		t.Fatalf("expected no note active at 1.0 (gap)")
	}

	onoff := c.OnsetsOffsetsIn(0, 2)
	var sawOnset, sawOffset bool
	for _, e := range onoff {
		if e.IsOnset && e.AtBeat == 1.5 {
			sawOnset = true
		}
		if !e.IsOnset && e.AtBeat == 0.5 {
			sawOffset = true
		}
	}
	if !sawOnset || !sawOffset {
		t.Fatalf("expected onset at 1.5 and offset at 0.5, got %+v", onoff)
	}
}

func TestTrimSoundingNoteAt(t *testing.T) {
	c := &Clip{
		LengthBeats: 4,
		Notes: []Note{
			{Pitch: 60, Start: 0, Duration: 2, OnsetVelocity: 0.8},
		},
	}
	c.TrimSoundingNoteAt(60, 1.0)
	if c.Notes[0].Duration != 1.0 {
		t.Fatalf("expected trimmed duration 1.0, got %v", c.Notes[0].Duration)
	}
}

func TestAutomationLaneValueAt(t *testing.T) {
	lane := &AutomationLane{
		Points: []AutomationPoint{
			{TimeBeats: 0, Value: 0},
			{TimeBeats: 2, Value: 1},
		},
	}
	v := lane.ValueAt(1, 4)
	if v != 0.5 {
		t.Fatalf("expected interpolated value 0.5, got %v", v)
	}
	// Wrap interpolation between last point (t=2,v=1) and first point (t=0,v=0) over remaining span [2,4).
	v = lane.ValueAt(3, 4)
	if v != 0.5 {
		t.Fatalf("expected wrap-interpolated value 0.5 at beat 3, got %v", v)
	}
}

func TestAutomationLaneSinglePoint(t *testing.T) {
	lane := &AutomationLane{Points: []AutomationPoint{{TimeBeats: 0, Value: 0.42}}}
	if v := lane.ValueAt(3.9, 4); v != 0.42 {
		t.Fatalf("expected constant value 0.42, got %v", v)
	}
}
