// Package session is the composition root: it wires config, shared
// state, the plugin-instance container, graph topology, job pool, note
// sources, and host capability object into one runnable engine.
// Grounded on the teacher's top-level example wiring (examples/gain,
// examples/synth main.go) translated from a single-plugin CLAP export
// table to a multi-track session graph.
package session

import (
	"fmt"

	"github.com/basslineaudio/sessioncore/pkg/clip"
	"github.com/basslineaudio/sessioncore/pkg/config"
	"github.com/basslineaudio/sessioncore/pkg/graph"
	"github.com/basslineaudio/sessioncore/pkg/host"
	"github.com/basslineaudio/sessioncore/pkg/jobs"
	"github.com/basslineaudio/sessioncore/pkg/plugin"
	"github.com/basslineaudio/sessioncore/pkg/sequencer"
	"github.com/basslineaudio/sessioncore/pkg/sessionlog"
	"github.com/basslineaudio/sessioncore/pkg/state"
	"github.com/basslineaudio/sessioncore/pkg/telemetry"
)

// Engine owns every long-lived piece of a running session (§3 "Ownership
// & lifecycle"): the graph, the plugin container, the job pool, shared
// atomics, and the capability object plugins are handed.
type Engine struct {
	Config    config.Config
	Topology  *graph.Topology
	Processor *graph.Processor
	Pool      *jobs.Pool
	Shared    *state.Shared
	Publisher *state.Publisher
	Plugins   *plugin.Container
	Host      *host.Host
	Log       *sessionlog.Logger
	Telemetry *telemetry.Reporter

	noteSources []*sequencer.NoteSource
}

// Build constructs a single-track-per-mixer-row graph: one
// note-source/synth/gain chain per track, one mixer, one master bus,
// sized from cfg. Tracks start with no instrument or FX loaded —
// callers populate Plugins and the published Snapshot before the first
// block.
func Build(cfg config.Config, trackCount int) (*Engine, error) {
	if trackCount <= 0 || trackCount > cfg.MaxTracks {
		return nil, fmt.Errorf("session: trackCount %d out of range [1,%d]", trackCount, cfg.MaxTracks)
	}

	topo := graph.NewTopology()
	mixer := topo.AddNode(graph.KindMixer, -1, -1)
	master := topo.AddNode(graph.KindMaster, -1, -1)
	topo.Connect(mixer, 0, master, 0, graph.PortAudio)

	pool := jobs.NewPool(cfg)
	shared := state.NewShared(trackCount, cfg.FXPerTrack)
	noteSources := make([]*sequencer.NoteSource, trackCount)

	for t := 0; t < trackCount; t++ {
		ns := topo.AddNode(graph.KindNoteSource, t, -1)
		synth := topo.AddNode(graph.KindSynth, t, -1)
		gain := topo.AddNode(graph.KindGain, t, -1)
		topo.Connect(ns, 0, synth, 0, graph.PortEvents)

		prev := synth
		for fx := 0; fx < cfg.FXPerTrack; fx++ {
			fxNode := topo.AddNode(graph.KindFX, t, fx)
			topo.Connect(prev, 0, fxNode, 0, graph.PortAudio)
			prev = fxNode
		}
		topo.Connect(prev, 0, gain, 0, graph.PortAudio)
		topo.Connect(gain, 0, mixer, 0, graph.PortAudio)

		noteSources[t] = sequencer.New(t, cfg.FXPerTrack)
	}

	if err := topo.Prepare(cfg.MaxFrames); err != nil {
		return nil, fmt.Errorf("session: preparing graph: %w", err)
	}

	logger := sessionlog.NewLogger(nil, 256)
	reporter := telemetry.NewReporter(256)
	h := host.NewHost(shared, pool, logger)

	processor := graph.NewProcessor(topo, pool, shared, noteSources, cfg.MaxFrames, h, reporter)

	empty := emptySnapshot(trackCount, cfg.MaxScenes, cfg.FXPerTrack)

	return &Engine{
		Config:      cfg,
		Topology:    topo,
		Processor:   processor,
		Pool:        pool,
		Shared:      shared,
		Publisher:   state.NewPublisher(empty),
		Plugins:     plugin.NewContainer(),
		Host:        h,
		Log:         logger,
		Telemetry:   reporter,
		noteSources: noteSources,
	}, nil
}

// emptySnapshot returns a valid, fully-allocated Snapshot with every
// track stopped and no plugins loaded — a safe starting point before
// the UI thread publishes real session state.
func emptySnapshot(trackCount, sceneCount, fxPerTrack int) *state.Snapshot {
	tracks := make([]state.TrackState, trackCount+1) // +1 master row
	for t := range tracks {
		tracks[t].Volume = 1
	}

	clipSlots := make([][]state.SlotState, trackCount)
	pianoClips := make([][]*clip.Clip, trackCount)
	liveKeys := make([][128]bool, trackCount)
	liveVels := make([][128]float64, trackCount)
	trackPlugins := make([]*plugin.Instance, trackCount)
	trackFX := make([][]*plugin.Instance, trackCount)
	for t := 0; t < trackCount; t++ {
		clipSlots[t] = make([]state.SlotState, sceneCount)
		pianoClips[t] = make([]*clip.Clip, sceneCount)
		trackFX[t] = make([]*plugin.Instance, fxPerTrack)
	}

	return &state.Snapshot{
		TrackCount: trackCount,
		SceneCount: sceneCount,
		Tracks:     tracks,

		ClipSlots:  clipSlots,
		PianoClips: pianoClips,

		TrackPlugins:   trackPlugins,
		TrackFXPlugins: trackFX,

		LiveKeyStates:     liveKeys,
		LiveKeyVelocities: liveVels,
	}
}

// ProcessBlock runs one block through the graph (§4.6) with the calling
// goroutine marked as the audio thread. Call from the audio I/O
// callback. It does not drain the main-thread-only queues: Drain does
// that. A headless single-threaded demo may call both in turn; a GUI
// host calls Drain once per UI tick.
func (e *Engine) ProcessBlock(frameCount uint32) {
	e.Host.Identity.EnterAudioThread()
	defer e.Host.Identity.ExitAudioThread()

	snap := e.Publisher.Load()
	e.Processor.Process(snap, e.Config.SampleRate, frameCount)
}

// Drain services every main-thread-only queue: pending plugin
// main-thread callbacks, buffered log messages, and buffered telemetry
// events. Call once per UI tick, never from the audio thread.
func (e *Engine) Drain() {
	snap := e.Publisher.Load()
	e.Host.PumpMainThreadCallbacks(snap)
	e.Log.Drain()
	e.Telemetry.Drain()
	for _, ns := range e.noteSources {
		pushes, drops, hwm := ns.Diagnostics.Snapshot()
		e.Telemetry.ReportPoolPressure(ns.Track, pushes, drops, hwm)
	}
}

// MasterBuffers returns the master bus's output buffers for the block
// just processed (§4.6 Phase 5).
func (e *Engine) MasterBuffers() (l, r []float32) {
	n := e.Topology.Node(e.Topology.Master)
	return n.OutL, n.OutR
}
