package session

import (
	"io"
	"testing"

	"github.com/basslineaudio/sessioncore/pkg/config"
	"github.com/basslineaudio/sessioncore/pkg/plugin"
)

type constantSynth struct{ id string }

func (s *constantSynth) ID() string { return s.id }
func (s *constantSynth) Process(ctx *plugin.ProcessContext) plugin.Status {
	for i := range ctx.AudioOut.L {
		ctx.AudioOut.L[i] = 0.5
		ctx.AudioOut.R[i] = 0.5
	}
	return plugin.StatusContinue
}
func (s *constantSynth) StartProcessing() bool      { return true }
func (s *constantSynth) StopProcessing()            {}
func (s *constantSynth) SaveState(w io.Writer) error { return nil }
func (s *constantSynth) LoadState(r io.Reader) error { return nil }

func TestBuildProducesSilenceWithNoInstrument(t *testing.T) {
	cfg := config.Default()
	cfg.MaxFrames = 128
	cfg.FXPerTrack = 1

	eng, err := Build(cfg, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	eng.ProcessBlock(64)
	eng.Drain()

	l, r := eng.MasterBuffers()
	if len(l) != cfg.MaxFrames || len(r) != cfg.MaxFrames {
		t.Fatalf("master buffers not sized to max_frames: len(l)=%d len(r)=%d want %d", len(l), len(r), cfg.MaxFrames)
	}
	for i := 0; i < 64; i++ {
		if l[i] != 0 || r[i] != 0 {
			t.Fatalf("expected silence with no instrument loaded, got l[%d]=%v r[%d]=%v", i, l[i], i, r[i])
		}
	}
}

func TestBuildRoutesLoadedInstrumentToMaster(t *testing.T) {
	cfg := config.Default()
	cfg.MaxFrames = 128
	cfg.FXPerTrack = 0

	eng, err := Build(cfg, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	inst := eng.Plugins.Add("track0", &constantSynth{id: "const"})
	snap := eng.Publisher.Load()
	snap.TrackPlugins[0] = inst
	snap.Tracks[0].Volume = 1
	eng.Shared.RequestStartProcessing(0)

	eng.ProcessBlock(64)
	eng.Drain()

	l, r := eng.MasterBuffers()
	if l[0] == 0 || r[0] == 0 {
		t.Fatalf("expected non-silent master output with an instrument loaded, got l[0]=%v r[0]=%v", l[0], r[0])
	}
}

func TestBuildRejectsOutOfRangeTrackCount(t *testing.T) {
	cfg := config.Default()
	cfg.MaxTracks = 4
	if _, err := Build(cfg, 5); err == nil {
		t.Fatal("expected an error for trackCount exceeding MaxTracks")
	}
}
