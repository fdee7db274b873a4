package graph

import (
	"io"
	"testing"

	"github.com/basslineaudio/sessioncore/pkg/clip"
	"github.com/basslineaudio/sessioncore/pkg/config"
	"github.com/basslineaudio/sessioncore/pkg/host"
	"github.com/basslineaudio/sessioncore/pkg/jobs"
	"github.com/basslineaudio/sessioncore/pkg/plugin"
	"github.com/basslineaudio/sessioncore/pkg/sequencer"
	"github.com/basslineaudio/sessioncore/pkg/sessionlog"
	"github.com/basslineaudio/sessioncore/pkg/state"
	"github.com/basslineaudio/sessioncore/pkg/telemetry"
)

// erroringSynth always returns StatusError after writing non-silent
// output, so tests can verify the host discards that output instead of
// passing it through.
type erroringSynth struct{ calls int }

func (s *erroringSynth) ID() string { return "erroring" }
func (s *erroringSynth) Process(ctx *plugin.ProcessContext) plugin.Status {
	s.calls++
	for i := range ctx.AudioOut.L {
		ctx.AudioOut.L[i] = 1
		ctx.AudioOut.R[i] = 1
	}
	return plugin.StatusError
}
func (s *erroringSynth) StartProcessing() bool      { return true }
func (s *erroringSynth) StopProcessing()            {}
func (s *erroringSynth) SaveState(io.Writer) error  { return nil }
func (s *erroringSynth) LoadState(io.Reader) error  { return nil }

// sleepySynth returns whatever status nextState currently holds, so a
// test can switch it between Sleep and Continue. It writes a constant
// 1.0 into its output so callers can observe whether it ran.
type sleepySynth struct {
	calls     int
	nextState plugin.Status
}

func (s *sleepySynth) ID() string { return "sleepy" }
func (s *sleepySynth) Process(ctx *plugin.ProcessContext) plugin.Status {
	s.calls++
	for i := range ctx.AudioOut.L {
		ctx.AudioOut.L[i] = 1
		ctx.AudioOut.R[i] = 1
	}
	return s.nextState
}
func (s *sleepySynth) StartProcessing() bool      { return true }
func (s *sleepySynth) StopProcessing()            {}
func (s *sleepySynth) SaveState(io.Writer) error  { return nil }
func (s *sleepySynth) LoadState(io.Reader) error  { return nil }

const frames = 64
const sampleRate = 48000.0

func buildSingleTrackGraph(t *testing.T) *Topology {
	t.Helper()
	topo := NewTopology()
	ns := topo.AddNode(KindNoteSource, 0, -1)
	synth := topo.AddNode(KindSynth, 0, -1)
	gain := topo.AddNode(KindGain, 0, -1)
	mixer := topo.AddNode(KindMixer, -1, -1)
	master := topo.AddNode(KindMaster, -1, -1)

	topo.Connect(ns, 0, synth, 0, PortEvents)
	topo.Connect(synth, 0, gain, 0, PortAudio)
	topo.Connect(gain, 0, mixer, 0, PortAudio)
	topo.Connect(mixer, 0, master, 0, PortAudio)

	if err := topo.Prepare(frames); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return topo
}

func baseSnapshot(vol float64, mute, solo bool, inst *plugin.Instance) *state.Snapshot {
	return &state.Snapshot{
		Playing:        true,
		BPM:            120,
		TrackCount:     1,
		Tracks:         []state.TrackState{{Volume: vol, Mute: mute, Solo: solo}, {Volume: 1}},
		TrackPlugins:   []*plugin.Instance{inst},
		TrackFXPlugins: [][]*plugin.Instance{nil},
		ClipSlots:          [][]state.SlotState{{state.SlotStopped}},
		PianoClips:         [][]*clip.Clip{{nil}},
		LiveKeyStates:      [][128]bool{{}},
		LiveKeyVelocities:  [][128]float64{{}},
	}
}

// S5 — master mute: expected master output exactly zero on both
// channels for every sample of the block.
func TestS5MasterMute(t *testing.T) {
	topo := buildSingleTrackGraph(t)
	synthImpl := &sleepySynth{nextState: plugin.StatusContinue}
	inst := plugin.NewInstance(synthImpl)

	ns := sequencer.New(0, 0)
	proc := NewProcessor(topo, jobs.NewPool(config.Config{}), state.NewShared(1, 1), []*sequencer.NoteSource{ns}, frames, nil, nil)

	snap := baseSnapshot(1.0, false, false, inst)
	snap.Tracks[snap.MasterTrackIndex()].Mute = true

	proc.Process(snap, sampleRate, frames)

	master := topo.Node(topo.Master)
	for i := 0; i < frames; i++ {
		if master.OutL[i] != 0 || master.OutR[i] != 0 {
			t.Fatalf("expected master output to be exactly zero at sample %d, got L=%f R=%f", i, master.OutL[i], master.OutR[i])
		}
	}
}

// Mute/solo law (invariant 8): if solo_active && !track.solo, the
// gain node's output is exactly zero.
func TestMuteSoloLawZeroesNonSoloTrack(t *testing.T) {
	topo := NewTopology()
	ns0 := topo.AddNode(KindNoteSource, 0, -1)
	synth0 := topo.AddNode(KindSynth, 0, -1)
	gain0 := topo.AddNode(KindGain, 0, -1)
	mixer := topo.AddNode(KindMixer, -1, -1)
	master := topo.AddNode(KindMaster, -1, -1)
	topo.Connect(ns0, 0, synth0, 0, PortEvents)
	topo.Connect(synth0, 0, gain0, 0, PortAudio)
	topo.Connect(gain0, 0, mixer, 0, PortAudio)
	topo.Connect(mixer, 0, master, 0, PortAudio)
	if err := topo.Prepare(frames); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	synthImpl := &sleepySynth{nextState: plugin.StatusContinue}
	inst := plugin.NewInstance(synthImpl)
	ns := sequencer.New(0, 0)
	proc := NewProcessor(topo, jobs.NewPool(config.Config{}), state.NewShared(1, 1), []*sequencer.NoteSource{ns}, frames, nil, nil)

	snap := baseSnapshot(1.0, false, false, inst) // track 0 not soloed
	snap.Tracks = append(snap.Tracks, state.TrackState{Volume: 1, Solo: true}) // extra soloed row at index 2, after the master row (unused in graph, just forces solo_active)

	proc.Process(snap, sampleRate, frames)

	gainNode := topo.Node(gain0)
	for i := 0; i < frames; i++ {
		if gainNode.OutL[i] != 0 || gainNode.OutR[i] != 0 {
			t.Fatalf("expected non-solo track gain output to be zero at sample %d", i)
		}
	}
}

// §7 error taxonomy: a plugin returning StatusError must degrade to
// silence for the block and report the failure once, not pass its
// (possibly garbage) output through to downstream sums.
func TestStatusErrorDegradesSynthToSilenceAndReports(t *testing.T) {
	topo := buildSingleTrackGraph(t)
	synthImpl := &erroringSynth{}
	inst := plugin.NewInstance(synthImpl)
	ns := sequencer.New(0, 0)
	shared := state.NewShared(1, 1)

	logger := sessionlog.NewLogger(nil, 16)
	h := host.NewHost(shared, jobs.NewPool(config.Config{}), logger)
	reporter := telemetry.NewReporter(16)

	proc := NewProcessor(topo, jobs.NewPool(config.Config{}), shared, []*sequencer.NoteSource{ns}, frames, h, reporter)

	snap := baseSnapshot(1.0, false, false, inst)
	proc.Process(snap, sampleRate, frames)

	synthNode := topo.Node(topo.Synths[0])
	for i := 0; i < frames; i++ {
		if synthNode.OutL[i] != 0 || synthNode.OutR[i] != 0 {
			t.Fatalf("expected synth output silenced after StatusError at sample %d", i)
		}
	}
	if synthNode.blockActive {
		t.Fatal("expected block_active=false for a node that returned StatusError")
	}
	if synthImpl.calls != 1 {
		t.Fatalf("expected the plugin to have been called once, got %d", synthImpl.calls)
	}

	logger.Drain()
	if logger.Dropped() != 0 {
		t.Fatalf("expected the rate-limited log line to be accepted, not dropped")
	}
	reporter.Drain()
	if reporter.Dropped() != 0 {
		t.Fatalf("expected the failure report to be buffered, not dropped")
	}
}

// Suspend-processing (§4.8, §5): while the flag is set, every node must
// emit silence and no plugin may be invoked.
func TestSuspendProcessingEmitsSilence(t *testing.T) {
	topo := buildSingleTrackGraph(t)
	synthImpl := &sleepySynth{nextState: plugin.StatusContinue}
	inst := plugin.NewInstance(synthImpl)
	ns := sequencer.New(0, 0)
	shared := state.NewShared(1, 1)
	proc := NewProcessor(topo, jobs.NewPool(config.Config{}), shared, []*sequencer.NoteSource{ns}, frames, nil, nil)

	snap := baseSnapshot(1.0, false, false, inst)
	shared.SetSuspendProcessing(true)
	proc.Process(snap, sampleRate, frames)

	master := topo.Node(topo.Master)
	for i := 0; i < frames; i++ {
		if master.OutL[i] != 0 || master.OutR[i] != 0 {
			t.Fatalf("expected silence while suspended at sample %d", i)
		}
	}
	if synthImpl.calls != 0 {
		t.Fatalf("expected the plugin not to run while suspended, calls=%d", synthImpl.calls)
	}
}

// S4 — sleeping plugin wake.
func TestS4SleepingPluginWake(t *testing.T) {
	topo := buildSingleTrackGraph(t)
	synthImpl := &sleepySynth{nextState: plugin.StatusSleep}
	inst := plugin.NewInstance(synthImpl)
	ns := sequencer.New(0, 0)
	shared := state.NewShared(1, 1)
	proc := NewProcessor(topo, jobs.NewPool(config.Config{}), shared, []*sequencer.NoteSource{ns}, frames, nil, nil)

	snap := baseSnapshot(1.0, false, false, inst)

	// Block K: synth returns Sleep.
	proc.Process(snap, sampleRate, frames)
	synthNode := topo.Node(topo.Synths[0])
	if !synthNode.sleeping {
		t.Fatalf("expected synth to be marked sleeping after returning Sleep")
	}
	callsAfterK := synthImpl.calls

	// Block K+1: no events, no process_requested: synth must not run.
	proc.Process(snap, sampleRate, frames)
	if synthImpl.calls != callsAfterK {
		t.Fatalf("expected sleeping synth with no events to be skipped, calls went from %d to %d", callsAfterK, synthImpl.calls)
	}
	if synthNode.blockActive {
		t.Fatalf("expected block_active=false for a skipped sleeping synth")
	}

	// Block K+2: request_process was called in between.
	synthImpl.nextState = plugin.StatusContinue
	shared.RequestProcess()
	proc.Process(snap, sampleRate, frames)
	if synthImpl.calls != callsAfterK+1 {
		t.Fatalf("expected synth to be invoked once after request_process, calls=%d", synthImpl.calls)
	}
	if synthNode.sleeping {
		t.Fatalf("expected sleeping=false after returning Continue")
	}
	if !synthNode.blockActive {
		t.Fatalf("expected block_active=true after the synth ran")
	}
}
