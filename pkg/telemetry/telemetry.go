// Package telemetry reports plugin-failure diagnostics to Sentry
// (§7's error taxonomy: "StatusError ... the host degrades to silence
// and logs once per plugin per second"). Grounded on the pack's
// Sentry usage (Conceptual-Machines-magda-api internal/metrics/sentry.go,
// main.go): sentry.Init at startup, sentry.WithScope/CaptureMessage per
// event, sentry.Flush at shutdown.
//
// The Sentry SDK is not real-time safe: CaptureMessage allocates and
// can block on its internal transport queue. So the audio thread never
// calls into sentry-go directly. It enqueues a fixed-size FailureEvent
// onto a non-blocking channel identical in spirit to
// pkg/sessionlog.Logger, and Reporter.Drain (main-thread only) is what
// actually talks to Sentry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/basslineaudio/sessioncore/pkg/plugin"
)

// FailureEvent records one plugin Process call that returned
// plugin.StatusError.
type FailureEvent struct {
	PluginID   string
	Status     plugin.Status
	SteadyTime int64
}

// Reporter buffers FailureEvents off the audio thread and forwards them
// to Sentry from the main thread.
type Reporter struct {
	ch      chan FailureEvent
	dropped uint64
}

// NewReporter creates a Reporter buffering up to capacity pending
// events.
func NewReporter(capacity int) *Reporter {
	if capacity <= 0 {
		capacity = 256
	}
	return &Reporter{ch: make(chan FailureEvent, capacity)}
}

// Init wires the process-wide Sentry client. dsn == "" disables
// reporting (Sentry's client is then a no-op, matching its documented
// behavior). Call once at startup, from the main thread.
func Init(dsn, environment, release string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		EnableTracing:    false,
		TracesSampleRate: 0,
	})
}

// ReportFailure enqueues a plugin failure. Never blocks: if the buffer
// is full, the event is dropped and Dropped() increments. Safe to call
// from the audio thread (C7 Phase 2/3 error path).
func (r *Reporter) ReportFailure(pluginID string, status plugin.Status, steadyTime int64) {
	select {
	case r.ch <- FailureEvent{PluginID: pluginID, Status: status, SteadyTime: steadyTime}:
	default:
		r.dropped++
	}
}

// Dropped returns the count of failure events dropped due to a full
// buffer.
func (r *Reporter) Dropped() uint64 { return r.dropped }

// ReportPoolPressure forwards a note source's event-buffer pressure
// counters (pkg/evt.Diagnostics) as a Sentry breadcrumb, so capacity
// tuning for C1's fixed-size event buffer doesn't require touching the
// audio thread's allocation-free guarantee to observe. Call from the
// main thread with the values from Diagnostics.Snapshot.
func (r *Reporter) ReportPoolPressure(track int, pushes, drops, highWaterMark uint64) {
	if drops == 0 {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "event_buffer",
		Message:  fmt.Sprintf("track %d dropped %d events (pushes=%d high_water_mark=%d)", track, drops, pushes, highWaterMark),
		Level:    sentry.LevelWarning,
	})
}

// Drain forwards every currently-buffered FailureEvent to Sentry. Call
// from the main thread, e.g. once per UI tick alongside
// host.PumpMainThreadCallbacks.
func (r *Reporter) Drain() {
	for {
		select {
		case ev := <-r.ch:
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("plugin_id", ev.PluginID)
				scope.SetTag("status", ev.Status.String())
				scope.SetContext("plugin_failure", map[string]interface{}{
					"plugin_id":   ev.PluginID,
					"status":      ev.Status.String(),
					"steady_time": ev.SteadyTime,
				})
				sentry.CaptureMessage(fmt.Sprintf("plugin process error: %s", ev.PluginID))
			})
		default:
			return
		}
	}
}

// Flush blocks until pending Sentry transport I/O completes or timeout
// elapses, matching sentry.Flush's contract. Call at shutdown.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
