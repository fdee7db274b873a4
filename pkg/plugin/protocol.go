// Package plugin defines the abstract audio-plugin ABI the host
// consumes (§6) and the plugin-lifecycle primitives (start/stop
// processing, soft removal, state save/load) that sit above it (§4.11,
// C12). The wire-level CLAP/VST3 C ABI, binary discovery, and dynamic
// loading are out of scope (spec.md §1) — Plugin is the Go-native
// interface a host-hosted instrument or effect implements, grounded on
// the block-process contract of the teacher (justyntemme-clapgo) and
// its process-status vocabulary (pkg/process/constants.go).
package plugin

import (
	"context"
	"io"

	"github.com/basslineaudio/sessioncore/pkg/evt"
)

// Status is the value a plugin returns from its per-block Process call.
type Status int32

const (
	// StatusError indicates a processing error occurred; the plugin is
	// expected to have silenced its outputs. The host degrades to
	// silence and logs once per plugin per second (§7).
	StatusError Status = iota
	// StatusContinue: normal processing completed; call again next block.
	StatusContinue
	// StatusContinueIfNotQuiet: completed, but the plugin may sleep if
	// the host stops providing audio input (effects only).
	StatusContinueIfNotQuiet
	// StatusTail: producing a tail (e.g. reverb decay); keep calling
	// until Sleep or Continue is returned.
	StatusTail
	// StatusSleep: finished; the host may stop calling Process until new
	// events arrive or a process-request is posted (§4.6, glossary).
	StatusSleep
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusContinue:
		return "continue"
	case StatusContinueIfNotQuiet:
		return "continue_if_not_quiet"
	case StatusTail:
		return "tail"
	case StatusSleep:
		return "sleep"
	default:
		return "unknown"
	}
}

// StereoBuffer is a pair of planar float32 channel buffers, pre-
// allocated to the graph's max_frames and sliced down to the active
// frame count each block (§4.4: "Buffers are allocated once in
// prepare() and never resized inside process()").
type StereoBuffer struct {
	L []float32
	R []float32
}

// NewStereoBuffer allocates a buffer sized to maxFrames per channel.
func NewStereoBuffer(maxFrames int) *StereoBuffer {
	return &StereoBuffer{L: make([]float32, maxFrames), R: make([]float32, maxFrames)}
}

// Frames slices both channels down to n samples, reusing backing storage.
func (b *StereoBuffer) Frames(n int) *StereoBuffer {
	return &StereoBuffer{L: b.L[:n], R: b.R[:n]}
}

// Zero clears both channels.
func (b *StereoBuffer) Zero() {
	for i := range b.L {
		b.L[i] = 0
	}
	for i := range b.R {
		b.R[i] = 0
	}
}

// ProcessContext carries everything a block-process call receives
// (§6): a transport record, the frame count, a monotonic steady-time
// counter, zero or one audio input pair, exactly one audio output
// pair, one event input list, and one event output sink.
type ProcessContext struct {
	Transport  evt.Transport
	FrameCount uint32
	SteadyTime int64

	AudioIn  *StereoBuffer // nil if this node has no audio input (synths)
	AudioOut *StereoBuffer

	EventsIn  *evt.Buffer
	EventsOut *evt.Buffer // plugin-produced events; the host may discard it (§4.6 Phase 2 step 5)
}

// Plugin is the Go-native audio-plugin ABI: an instrument or effect the
// graph processor drives once per block (C7).
type Plugin interface {
	// ID returns the plugin's stable identifier, used in the state
	// envelope (§6) and in error-taxonomy log keys (§7).
	ID() string

	// Process runs one block. Must be real-time safe: no allocation, no
	// locking, no blocking I/O.
	Process(ctx *ProcessContext) Status

	// StartProcessing/StopProcessing are only ever called from the
	// audio thread, gated by the start-processing ratchet (§4.8,
	// §4.11). StartProcessing returns false on failure; the host
	// leaves the "started" bit clear so a retry is attempted next block.
	StartProcessing() bool
	StopProcessing()

	// SaveState/LoadState serialize the plugin's parameter state. See
	// SaveEnvelope/LoadEnvelope for the enveloping (§4.11, §6).
	SaveState(w io.Writer) error
	LoadState(r io.Reader) error
}

// ContextStateSaver is implemented by plugins that advertise a
// context-aware state variant (§4.11: "preferred when the plugin
// advertises it"), e.g. to support cancellation of a slow save/load
// from the main thread.
type ContextStateSaver interface {
	SaveStateContext(ctx context.Context, w io.Writer) error
	LoadStateContext(ctx context.Context, r io.Reader) error
}

// MainThreadHook is implemented by plugins that need to run code on
// the main thread in response to a request_callback (§4.10). Pumped by
// host.PumpMainThreadCallbacks.
type MainThreadHook interface {
	OnMainThread()
}
