package host

import (
	"testing"

	"github.com/basslineaudio/sessioncore/pkg/state"
)

func TestTransportControlConsumeIsOneShot(t *testing.T) {
	var tc TransportControl
	tc.RequestTogglePlay()
	tc.RequestJump(12.5)
	tc.RequestLoopRegion(4, 8)
	tc.RequestEnableLoop(true)

	r := tc.Consume()
	if !r.TogglePlay {
		t.Error("expected TogglePlay pending")
	}
	if !r.JumpRequested || r.JumpPositionBeats != 12.5 {
		t.Errorf("expected jump to 12.5, got requested=%v pos=%v", r.JumpRequested, r.JumpPositionBeats)
	}
	if !r.LoopRegionRequested || r.LoopStartBeats != 4 || r.LoopDurationBeats != 8 {
		t.Errorf("unexpected loop region: %+v", r)
	}
	if !r.EnableLoopRequested || !r.EnableLoopValue {
		t.Errorf("expected enable-loop true pending")
	}

	r2 := tc.Consume()
	if r2.TogglePlay || r2.JumpRequested || r2.LoopRegionRequested || r2.EnableLoopRequested {
		t.Errorf("expected all flags consumed after first Consume, got %+v", r2)
	}
}

func TestTrackInfoOutOfRange(t *testing.T) {
	h := &Host{}
	snap := &state.Snapshot{Tracks: make([]state.TrackState, 2)}
	if _, ok := h.TrackInfo(snap, 5); ok {
		t.Error("expected ok=false for out-of-range track")
	}
}
