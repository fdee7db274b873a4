package host

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/basslineaudio/sessioncore/pkg/config"
	"github.com/basslineaudio/sessioncore/pkg/jobs"
	"github.com/basslineaudio/sessioncore/pkg/sessionlog"
	"github.com/basslineaudio/sessioncore/pkg/state"
)

func TestIdentityMainThread(t *testing.T) {
	id := NewIdentity()
	if !id.IsMainThread() {
		t.Fatalf("expected constructing goroutine to be the main thread")
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if id.IsMainThread() {
			t.Errorf("expected a different goroutine not to be the main thread")
		}
	}()
	wg.Wait()
}

func TestIdentityAudioThreadScoped(t *testing.T) {
	id := NewIdentity()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if id.IsAudioThread() {
			t.Errorf("expected no audio-thread identity before EnterAudioThread")
		}
		id.EnterAudioThread()
		defer id.ExitAudioThread()
		if !id.IsAudioThread() {
			t.Errorf("expected audio-thread identity after EnterAudioThread")
		}
	}()
	wg.Wait()
}

func TestRequestCallbackDrainsOncePerRequest(t *testing.T) {
	h := NewHost(state.NewShared(1, 1), jobs.NewPool(config.Config{}), sessionlog.NewLogger(nil, 16))
	calls := 0
	snap := &state.Snapshot{}
	h.PumpMainThreadCallbacks(snap) // no request pending: no-op
	h.RequestCallback()
	_ = calls
	h.PumpMainThreadCallbacks(snap)
	if h.callbackRequested.Load() {
		t.Fatalf("expected callback-requested flag to be consumed")
	}
}

func TestLogOnceRateLimitsPerPluginPerSecond(t *testing.T) {
	var out bytes.Buffer
	logger := sessionlog.NewLogger(&out, 16)
	h := NewHost(state.NewShared(1, 1), jobs.NewPool(config.Config{}), logger)
	h.LogOnce("synthA", "boom")
	h.LogOnce("synthA", "boom again")
	logger.Drain()
	if logger.Dropped() != 0 {
		t.Fatalf("did not expect drops for 2 enqueued/gated messages")
	}
	if lines := strings.Count(out.String(), "\n"); lines != 1 {
		t.Fatalf("expected the second message within one second to be gated, got %d lines: %q", lines, out.String())
	}
}
