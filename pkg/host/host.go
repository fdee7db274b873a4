package host

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/basslineaudio/sessioncore/pkg/jobs"
	"github.com/basslineaudio/sessioncore/pkg/plugin"
	"github.com/basslineaudio/sessioncore/pkg/sessionlog"
	"github.com/basslineaudio/sessioncore/pkg/state"
)

// Host is the capability object plugins are given (§4.10 C11): thread
// identity, extension queries, and the restart/process/callback
// request trio. One Host instance is shared by every plugin in a
// session.
type Host struct {
	Identity  *Identity
	Pool      *jobs.Pool
	Shared    *state.Shared
	Transport TransportControl

	GUI    GUIExtension
	Undo   UndoExtension
	Params ParamsSink
	Preset PresetLoadSink
	Log    *sessionlog.Logger

	callbackRequested atomic.Bool

	logGateMu    sync.Mutex
	lastLoggedAt map[string]time.Time
}

// NewHost wires a capability object around an already-constructed
// shared-state record and job pool. Call from the main thread; the
// constructing goroutine becomes the recorded main thread (§4.10).
func NewHost(shared *state.Shared, pool *jobs.Pool, logger *sessionlog.Logger) *Host {
	return &Host{
		Identity:     NewIdentity(),
		Pool:         pool,
		Shared:       shared,
		Log:          logger,
		lastLoggedAt: make(map[string]time.Time),
	}
}

// RequestProcess implements the host's "request process" callback
// (§4.8): it sets the shared atomic that forces every synth node to
// run once on the next block.
func (h *Host) RequestProcess() {
	h.Shared.RequestProcess()
}

// RequestCallback sets the main-thread-serviced flag, drained by
// PumpMainThreadCallbacks (§4.10).
func (h *Host) RequestCallback() {
	h.callbackRequested.Store(true)
}

// PumpMainThreadCallbacks drains a pending callback request: if one is
// set, it iterates every plugin instance in snap and invokes
// OnMainThread on those that implement MainThreadHook (§4.10). Must be
// called from the main thread, typically once per UI tick.
func (h *Host) PumpMainThreadCallbacks(snap *state.Snapshot) {
	if !h.callbackRequested.Swap(false) {
		return
	}
	for _, inst := range snap.TrackPlugins {
		invokeMainThreadHook(inst)
	}
	for _, row := range snap.TrackFXPlugins {
		for _, inst := range row {
			invokeMainThreadHook(inst)
		}
	}
}

func invokeMainThreadHook(inst *plugin.Instance) {
	if inst == nil {
		return
	}
	if hook, ok := inst.Plugin.(plugin.MainThreadHook); ok {
		hook.OnMainThread()
	}
}

// TrackInfo is the read-only track metadata a plugin can query about
// the track it's instantiated on (§4.10, supplemented from the
// teacher's TrackInfoProvider extension).
type TrackInfo struct {
	Name     string
	Channels int // always 2: every track is stereo (§4.4)
}

// TrackInfo returns the track metadata for track, sourced from the
// current snapshot. ok is false if track is out of range.
func (h *Host) TrackInfo(snap *state.Snapshot, track int) (TrackInfo, bool) {
	if track < 0 || track >= len(snap.Tracks) {
		return TrackInfo{}, false
	}
	return TrackInfo{Name: snap.Tracks[track].Name, Channels: 2}, true
}

// RequestExec exposes the thread-pool extension (§4.7 bullet 2) to a
// plugin's block callback.
func (h *Host) RequestExec(numTasks uint32, fn func(taskIndex uint32)) bool {
	return h.Pool.RequestExec(numTasks, fn)
}

// LogOnce emits a rate-limited diagnostic for the audio-thread error
// taxonomy (§7: "log once per plugin per second"): a plugin id that
// logged within the last second is silently skipped. Safe to call from
// the audio thread — sessionlog.Logger.enqueue never blocks.
func (h *Host) LogOnce(pluginID, message string) {
	if h.Log == nil {
		return
	}
	now := time.Now()
	h.logGateMu.Lock()
	last, seen := h.lastLoggedAt[pluginID]
	if seen && now.Sub(last) < time.Second {
		h.logGateMu.Unlock()
		return
	}
	h.lastLoggedAt[pluginID] = now
	h.logGateMu.Unlock()
	h.Log.Warning(pluginID, "%s", message)
}
