package graph

import (
	"fmt"

	"github.com/basslineaudio/sessioncore/pkg/evt"
	"github.com/basslineaudio/sessioncore/pkg/host"
	"github.com/basslineaudio/sessioncore/pkg/jobs"
	"github.com/basslineaudio/sessioncore/pkg/kernel"
	"github.com/basslineaudio/sessioncore/pkg/plugin"
	"github.com/basslineaudio/sessioncore/pkg/sequencer"
	"github.com/basslineaudio/sessioncore/pkg/state"
	"github.com/basslineaudio/sessioncore/pkg/telemetry"
)

// Processor runs one block through the six phases of §4.6: activity
// scratch, note sources, synths (parallel-eligible), the FX chain,
// gains, and the mixer/master. It owns no session state beyond the
// topology and per-track scratch buffers; everything else is read
// from the block's state.Snapshot.
type Processor struct {
	Topo   *Topology
	Pool   *jobs.Pool
	Shared *state.Shared

	// Host and Telemetry receive the §7 error-taxonomy side effects of a
	// plugin returning plugin.StatusError: a rate-limited log line and a
	// buffered failure report. Both are optional (nil is safe) so tests
	// can construct a bare Processor without wiring the full session.
	Host      *host.Host
	Telemetry *telemetry.Reporter

	// NoteSources is indexed by track; each is driven once per block in
	// Phase 1 and its InstrumentEvents/FXEvents feed Phase 2/3.
	NoteSources []*sequencer.NoteSource

	// scratchIn is the shared input pair FX nodes sum their active
	// sources into (§4.6 Phase 3), reused across FX nodes within a
	// block to avoid per-node allocation.
	scratchInL, scratchInR []float32

	// discardEvents is the event-output sink passed to every plugin
	// call; the host never inspects it (§4.6 Phase 2 step 5).
	discardEvents evt.Buffer

	maxFrames int

	// steadyTime is a monotonic sample-count counter advanced by
	// frameCount at the end of every block, fed to ProcessContext as a
	// stable "time" reference a plugin or the error taxonomy can key
	// off of without touching the wall clock on the audio thread.
	steadyTime int64
}

// NewProcessor creates a processor for the given topology, track
// count, and job pool. Prepare must already have been called on topo.
// host and telemetry may be nil.
func NewProcessor(topo *Topology, pool *jobs.Pool, shared *state.Shared, noteSources []*sequencer.NoteSource, maxFrames int, h *host.Host, reporter *telemetry.Reporter) *Processor {
	return &Processor{
		Topo:        topo,
		Pool:        pool,
		Shared:      shared,
		Host:        h,
		Telemetry:   reporter,
		NoteSources: noteSources,
		scratchInL:  make([]float32, maxFrames),
		scratchInR:  make([]float32, maxFrames),
		maxFrames:   maxFrames,
	}
}

// Process runs one block (§4.6). snap must have been loaded once by
// the caller at block entry (§4.9); frameCount must be <= maxFrames
// (the audio I/O callback truncates and logs per §7 otherwise).
func (p *Processor) Process(snap *state.Snapshot, sampleRate float64, frameCount uint32) {
	// Suspend-processing (§4.8, §5): while the UI thread is inspecting
	// or mutating plugin state (e.g. a project load/save), every node
	// emits silence for the block and nothing below runs.
	if p.Shared.SuspendProcessing() {
		for _, n := range p.Topo.Nodes {
			kernel.Zero(n.OutL[:frameCount], n.OutR[:frameCount])
			n.blockActive = false
			n.bufferZeroed = true
		}
		p.steadyTime += int64(frameCount)
		return
	}

	steadyTime := p.steadyTime
	defer func() { p.steadyTime += int64(frameCount) }()

	// Phase 0 — activity scratch.
	for _, n := range p.Topo.Nodes {
		n.blockActive = false
	}
	soloActive := false
	for _, tr := range snap.Tracks {
		if tr.Solo {
			soloActive = true
			break
		}
	}

	// Phase 1 — note sources (sequential, lightweight).
	for _, id := range p.Topo.NoteSources {
		n := p.Topo.Node(id)
		if n.removed {
			continue
		}
		if n.Track < 0 || n.Track >= len(p.NoteSources) {
			continue
		}
		ns := p.NoteSources[n.Track]
		if ns == nil {
			continue
		}
		ns.Process(snap, sampleRate, frameCount)
	}

	// Phase 2 — synths (parallel-eligible).
	processRequested := p.Shared.ConsumeProcessRequested()
	var activeTasks []NodeId
	for _, id := range p.Topo.Synths {
		n := p.Topo.Node(id)
		if n.removed {
			continue
		}
		if n.Track < 0 || n.Track >= len(snap.TrackPlugins) || snap.TrackPlugins[n.Track] == nil {
			p.zeroOnce(n)
			n.sleeping = false
			continue
		}
		n.bufferZeroed = false
		events := p.trackEvents(n.Track)
		if processRequested || (events != nil && events.Size() > 0) || !n.sleeping {
			activeTasks = append(activeTasks, id)
		} else {
			p.zeroOnce(n)
		}
	}
	p.dispatchSynths(snap, activeTasks, frameCount, sampleRate, steadyTime)

	// Phase 3 — FX chain (sequential, in render order restricted to FX nodes).
	for _, id := range p.Topo.RenderOrder {
		n := p.Topo.Node(id)
		if n.Kind != KindFX || n.removed {
			continue
		}
		p.processFX(snap, n, id, frameCount, sampleRate, steadyTime)
	}

	// Phase 4 — gains (sequential).
	for _, id := range p.Topo.Gains {
		n := p.Topo.Node(id)
		if n.removed {
			continue
		}
		p.processGain(snap, n, id, soloActive, frameCount)
	}

	// Phase 5 — mixer and master (sequential, render order).
	for _, id := range p.Topo.RenderOrder {
		n := p.Topo.Node(id)
		switch n.Kind {
		case KindMixer:
			p.sumActive(n, id, frameCount)
		case KindMaster:
			p.sumActive(n, id, frameCount)
			masterTrack := snap.MasterTrackIndex()
			if masterTrack < len(snap.Tracks) && snap.Tracks[masterTrack].Mute {
				kernel.Zero(n.OutL[:frameCount], n.OutR[:frameCount])
			} else {
				vol := float32(1.0)
				if masterTrack < len(snap.Tracks) {
					vol = float32(snap.Tracks[masterTrack].Volume)
				}
				kernel.Mul(n.OutL[:frameCount], n.OutR[:frameCount], vol)
			}
		}
	}
}

func (p *Processor) trackEvents(track int) *evt.Buffer {
	if track < 0 || track >= len(p.NoteSources) || p.NoteSources[track] == nil {
		return nil
	}
	return p.NoteSources[track].InstrumentEvents
}

func (p *Processor) zeroOnce(n *Node) {
	if n.bufferZeroed {
		return
	}
	kernel.Zero(n.OutL, n.OutR)
	n.bufferZeroed = true
}

func (p *Processor) dispatchSynths(snap *state.Snapshot, tasks []NodeId, frameCount uint32, sampleRate float64, steadyTime int64) {
	if len(tasks) == 0 {
		return
	}
	threshold := jobs.DefaultParallelThreshold
	if p.Pool != nil {
		threshold = p.Pool.ParallelThreshold(frameCount)
	}
	runTask := func(id NodeId) func() {
		return func() { p.runSynth(snap, id, frameCount, sampleRate, steadyTime) }
	}
	if p.Pool != nil && len(tasks) >= threshold {
		fns := make([]func(), len(tasks))
		for i, id := range tasks {
			task := runTask(id)
			fns[i] = func() {
				// A worker running a synth task holds audio-thread
				// identity for its duration (§4.6 Phase 2 step 1).
				if p.Host != nil && p.Host.Identity != nil && !p.Host.Identity.IsAudioThread() {
					p.Host.Identity.EnterAudioThread()
					defer p.Host.Identity.ExitAudioThread()
				}
				task()
			}
		}
		p.Pool.Dispatch(fns)
		return
	}
	for _, id := range tasks {
		runTask(id)()
	}
}

func (p *Processor) runSynth(snap *state.Snapshot, id NodeId, frameCount uint32, sampleRate float64, steadyTime int64) {
	n := p.Topo.Node(id)
	kernel.Zero(n.OutL[:frameCount], n.OutR[:frameCount])
	n.bufferZeroed = false

	inst := snap.TrackPlugins[n.Track]

	if p.Shared.CheckAndClearStartProcessing(n.Track) {
		if !inst.MaybeStart(true) {
			// Start failed: the started bit stays clear; re-post the
			// ratchet so the next block retries (§7 error taxonomy).
			p.Shared.RequestStartProcessing(n.Track)
		}
	}

	events := p.trackEvents(n.Track)
	ctx := &plugin.ProcessContext{
		Transport:  transportFor(snap, sampleRate, frameCount),
		FrameCount: frameCount,
		SteadyTime: steadyTime,
		AudioIn:    nil,
		AudioOut:   &plugin.StereoBuffer{L: n.OutL[:frameCount], R: n.OutR[:frameCount]},
		EventsIn:   events,
		EventsOut:  &p.discardEvents,
	}
	status := inst.Plugin.Process(ctx)
	if status == plugin.StatusError {
		// §7: a recoverable process failure degrades to silence and
		// logs once per plugin per second; the node contributes nothing
		// to downstream sums this block.
		kernel.Zero(n.OutL[:frameCount], n.OutR[:frameCount])
		n.bufferZeroed = true
		n.sleeping = false
		n.blockActive = false
		p.reportFailure(inst.Plugin.ID(), status, steadyTime)
		return
	}
	n.sleeping = status == plugin.StatusSleep
	n.blockActive = true
}

// reportFailure is the §7 error-taxonomy side effect of a plugin
// returning plugin.StatusError: a rate-limited diagnostic log plus a
// buffered telemetry report. Both Host and Telemetry are optional.
func (p *Processor) reportFailure(pluginID string, status plugin.Status, steadyTime int64) {
	if p.Host != nil {
		p.Host.LogOnce(pluginID, fmt.Sprintf("process() returned %s", status))
	}
	if p.Telemetry != nil {
		p.Telemetry.ReportFailure(pluginID, status, steadyTime)
	}
}

func (p *Processor) processFX(snap *state.Snapshot, n *Node, id NodeId, frameCount uint32, sampleRate float64, steadyTime int64) {
	isMasterFX := n.Track == snap.MasterTrackIndex()
	hasActiveAudio := isMasterFX || len(activeIncoming(p.Topo, id)) > 0

	var fxInst *plugin.Instance
	if n.Track >= 0 && n.Track < len(snap.TrackFXPlugins) {
		row := snap.TrackFXPlugins[n.Track]
		if n.FXSlot >= 0 && n.FXSlot < len(row) {
			fxInst = row[n.FXSlot]
		}
	}

	if fxInst == nil {
		// Pass-through: copy summed inputs straight to output.
		p.sumIncoming(n, id, frameCount)
		n.sleeping = false
		n.blockActive = hasActiveAudio
		return
	}

	if p.Shared.CheckAndClearStartProcessingFX(n.Track, n.FXSlot) {
		if !fxInst.MaybeStart(true) {
			p.Shared.RequestStartProcessingFX(n.Track, n.FXSlot)
		}
	}

	events := p.fxEvents(n.Track, n.FXSlot)
	hasEvents := events != nil && events.Size() > 0

	if !hasActiveAudio && n.sleeping && !hasEvents {
		p.zeroOnce(n)
		n.blockActive = false
		return
	}

	if hasActiveAudio {
		p.sumInto(p.scratchInL[:frameCount], p.scratchInR[:frameCount], id, frameCount)
	} else {
		kernel.Zero(p.scratchInL[:frameCount], p.scratchInR[:frameCount])
	}

	ctx := &plugin.ProcessContext{
		Transport:  transportFor(snap, sampleRate, frameCount),
		FrameCount: frameCount,
		SteadyTime: steadyTime,
		AudioIn:    &plugin.StereoBuffer{L: p.scratchInL[:frameCount], R: p.scratchInR[:frameCount]},
		AudioOut:   &plugin.StereoBuffer{L: n.OutL[:frameCount], R: n.OutR[:frameCount]},
		EventsIn:   events,
		EventsOut:  &p.discardEvents,
	}
	status := fxInst.Plugin.Process(ctx)
	if status == plugin.StatusError {
		kernel.Zero(n.OutL[:frameCount], n.OutR[:frameCount])
		n.bufferZeroed = true
		n.sleeping = false
		n.blockActive = false
		p.reportFailure(fxInst.Plugin.ID(), status, steadyTime)
		return
	}
	n.bufferZeroed = false
	n.sleeping = status == plugin.StatusSleep
	n.blockActive = true
}

func (p *Processor) fxEvents(track, fxSlot int) *evt.Buffer {
	if track < 0 || track >= len(p.NoteSources) || p.NoteSources[track] == nil {
		return nil
	}
	ns := p.NoteSources[track]
	if fxSlot < 0 || fxSlot >= len(ns.FXEvents) {
		return nil
	}
	return ns.FXEvents[fxSlot]
}

func (p *Processor) processGain(snap *state.Snapshot, n *Node, id NodeId, soloActive bool, frameCount uint32) {
	if n.Track < 0 || n.Track >= len(snap.Tracks) {
		p.zeroOnce(n)
		n.blockActive = false
		return
	}
	tr := snap.Tracks[n.Track]
	muteEffective := tr.Mute || (soloActive && !tr.Solo)
	gain := float32(0)
	if !muteEffective {
		gain = float32(tr.Volume)
	}

	sources := activeIncoming(p.Topo, id)
	if len(sources) == 0 || gain == 0 {
		p.zeroOnce(n)
		n.blockActive = false
		return
	}
	first := p.Topo.Node(sources[0])
	kernel.CopyScaled(n.OutL[:frameCount], n.OutR[:frameCount], first.OutL[:frameCount], first.OutR[:frameCount], gain)
	for _, srcId := range sources[1:] {
		src := p.Topo.Node(srcId)
		kernel.AddScaled(n.OutL[:frameCount], n.OutR[:frameCount], src.OutL[:frameCount], src.OutR[:frameCount], gain)
	}
	n.bufferZeroed = false
	n.blockActive = true
}

func (p *Processor) sumActive(n *Node, id NodeId, frameCount uint32) {
	sources := activeIncoming(p.Topo, id)
	if len(sources) == 0 {
		p.zeroOnce(n)
		n.blockActive = false
		return
	}
	kernel.Zero(n.OutL[:frameCount], n.OutR[:frameCount])
	for _, srcId := range sources {
		src := p.Topo.Node(srcId)
		kernel.Add(n.OutL[:frameCount], n.OutR[:frameCount], src.OutL[:frameCount], src.OutR[:frameCount])
	}
	n.bufferZeroed = false
	n.blockActive = true
}

// sumIncoming copies (pass-through FX with no plugin) the sum of the
// active incoming audio sources into n's own output buffers.
func (p *Processor) sumIncoming(n *Node, id NodeId, frameCount uint32) {
	p.sumActive(n, id, frameCount)
}

// sumInto sums every active incoming-audio source of id into dst,
// without touching id's own output buffers (used to build the scratch
// input pair for an FX node's plugin call).
func (p *Processor) sumInto(dstL, dstR []float32, id NodeId, frameCount uint32) {
	kernel.Zero(dstL, dstR)
	for _, srcId := range activeIncoming(p.Topo, id) {
		src := p.Topo.Node(srcId)
		kernel.Add(dstL, dstR, src.OutL[:frameCount], src.OutR[:frameCount])
	}
}

// activeIncoming returns the incoming-audio sources of id whose
// block_active flag is currently set (§4.6 Phase 4/5: "sum active
// inputs").
func activeIncoming(t *Topology, id NodeId) []NodeId {
	var out []NodeId
	for _, srcId := range t.IncomingAudio[id] {
		if t.Node(srcId).blockActive {
			out = append(out, srcId)
		}
	}
	return out
}

func transportFor(snap *state.Snapshot, sampleRate float64, frameCount uint32) evt.Transport {
	return evt.Transport{
		Tempo:           snap.BPM,
		BeatPosition:    snap.PlayheadBeat,
		SecondsPosition: snap.PlayheadBeat * 60.0 / maxf(snap.BPM, 1e-6),
		BarPosition:     snap.PlayheadBeat / 4.0,
		TimeSigNumer:    4,
		TimeSigDenom:    4,
		Playing:         snap.Playing,
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
