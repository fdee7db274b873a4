// Package host implements the capability object plugins see (C11,
// §4.10): thread identity, extension queries, and the
// request_process/request_callback/pump_main_thread_callbacks trio.
// Grounded on the teacher's extension-wrapper style
// (pkg/host/logger.go, pkg/thread/check.go) translated from a plugin
// querying a cgo host to a pure-Go host answering plugins directly.
package host

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// goroutineID extracts the calling goroutine's numeric id by parsing
// the header line of its own stack trace. Go exposes no public
// goroutine-local storage; this is the common workaround real-time Go
// code reaches for when a capability (here, "is this the audio
// thread") must be answered per-goroutine rather than threaded through
// every call signature. It is only ever used off the hot per-sample
// path — once per block, at Process entry.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:" — the id is the second field.
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}

// Identity tracks which goroutines currently count as "the audio
// thread" (§4.10: "thread-local, set by the audio callback and by any
// job-worker that executes synth/plugin code"). Multiple goroutines
// may hold audio-thread identity simultaneously during parallel synth
// dispatch (C8 Phase 2).
type Identity struct {
	mainGoroutine uint64

	mu           sync.RWMutex
	audioThreads map[uint64]struct{}
}

// NewIdentity captures the calling goroutine as the main thread. Call
// this once, from the goroutine that owns session setup and the UI
// event loop.
func NewIdentity() *Identity {
	return &Identity{
		mainGoroutine: goroutineID(),
		audioThreads:  make(map[uint64]struct{}),
	}
}

// IsMainThread reports whether the caller is the goroutine that
// constructed this Identity.
func (id *Identity) IsMainThread() bool {
	return goroutineID() == id.mainGoroutine
}

// IsAudioThread reports whether the caller has active audio-thread
// identity (§4.10).
func (id *Identity) IsAudioThread() bool {
	g := goroutineID()
	id.mu.RLock()
	_, ok := id.audioThreads[g]
	id.mu.RUnlock()
	return ok
}

// EnterAudioThread marks the calling goroutine as audio-thread for the
// duration of the returned closure's caller scope; call
// defer id.ExitAudioThread() immediately after. The audio I/O callback
// calls this once per block; a job-worker calls it for the duration of
// each synth task it executes (§4.6 Phase 2 step 1).
func (id *Identity) EnterAudioThread() {
	g := goroutineID()
	id.mu.Lock()
	id.audioThreads[g] = struct{}{}
	id.mu.Unlock()
}

// ExitAudioThread clears the calling goroutine's audio-thread identity.
func (id *Identity) ExitAudioThread() {
	g := goroutineID()
	id.mu.Lock()
	delete(id.audioThreads, g)
	id.mu.Unlock()
}
