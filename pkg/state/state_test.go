package state

import "testing"

func TestStartProcessingRatchetIsOneShot(t *testing.T) {
	s := NewShared(2, 2)
	if s.CheckAndClearStartProcessing(0) {
		t.Fatalf("expected no pending ratchet initially")
	}
	s.RequestStartProcessing(0)
	if !s.CheckAndClearStartProcessing(0) {
		t.Fatalf("expected ratchet to be set")
	}
	if s.CheckAndClearStartProcessing(0) {
		t.Fatalf("ratchet must be one-shot")
	}
}

func TestProcessRequestedConsumedOnce(t *testing.T) {
	s := NewShared(1, 1)
	s.RequestProcess()
	if !s.ConsumeProcessRequested() {
		t.Fatalf("expected process-requested flag set")
	}
	if s.ConsumeProcessRequested() {
		t.Fatalf("expected process-requested flag consumed")
	}
}

func TestFXRatchetsAreIndependentPerSlot(t *testing.T) {
	s := NewShared(1, 3)
	s.RequestStartProcessingFX(0, 1)
	if s.CheckAndClearStartProcessingFX(0, 0) {
		t.Fatalf("slot 0 should not be affected by slot 1's ratchet")
	}
	if !s.CheckAndClearStartProcessingFX(0, 1) {
		t.Fatalf("expected slot 1 ratchet set")
	}
}

func TestPublisherLoadSeesLatestPublish(t *testing.T) {
	first := &Snapshot{BPM: 120}
	pub := NewPublisher(first)
	if pub.Load().BPM != 120 {
		t.Fatalf("expected initial snapshot visible")
	}
	second := &Snapshot{BPM: 140}
	pub.Publish(second)
	if pub.Load().BPM != 140 {
		t.Fatalf("expected updated snapshot visible after publish")
	}
}

func TestPlayingSceneForTrack(t *testing.T) {
	snap := &Snapshot{
		ClipSlots: [][]SlotState{
			{SlotStopped, SlotPlaying, SlotEmpty},
		},
	}
	if got := snap.PlayingSceneForTrack(0); got != 1 {
		t.Fatalf("expected scene 1 playing, got %d", got)
	}
	if got := snap.PlayingSceneForTrack(5); got != -1 {
		t.Fatalf("expected -1 for out-of-range track, got %d", got)
	}
}
