package plugin

import "sync/atomic"

// Instance wraps a hosted Plugin with the lifecycle bits the graph
// processor consults each block (C12, §4.6, §4.8, §4.11): whether
// start_processing has been called, and whether the node has been
// soft-removed.
//
// Instances are owned by a plugin-lifecycle container outside the
// graph (§3 "Ownership & lifecycle"); the graph and its snapshot hold
// only borrowed references valid for the duration of one block.
type Instance struct {
	Plugin Plugin

	started uint32 // atomic bool: has start_processing succeeded and not yet been stopped
	removed uint32 // atomic bool: soft-removed, skip in subsequent blocks (§4.11)
}

// NewInstance wraps a Plugin for lifecycle tracking.
func NewInstance(p Plugin) *Instance {
	return &Instance{Plugin: p}
}

// Started reports whether start_processing has been called and
// start_processing has not failed/been stopped since.
func (i *Instance) Started() bool {
	return atomic.LoadUint32(&i.started) != 0
}

// MaybeStart calls the plugin's StartProcessing exactly once while the
// instance is not already marked started, as directed by a pending
// start-processing ratchet (§4.8/§4.11). Only called from the audio
// thread. Returns the plugin's success value; on failure the started
// bit stays clear so the next block retries (§7 error taxonomy).
func (i *Instance) MaybeStart(requested bool) bool {
	if !requested || i.Started() {
		return true
	}
	ok := i.Plugin.StartProcessing()
	if ok {
		atomic.StoreUint32(&i.started, 1)
	}
	return ok
}

// Stop calls StopProcessing and clears the started bit. Only called
// from the audio thread.
func (i *Instance) Stop() {
	if !i.Started() {
		return
	}
	i.Plugin.StopProcessing()
	atomic.StoreUint32(&i.started, 0)
}

// MarkRemoved soft-deletes the instance (§4.11): subsequent blocks skip
// it; physical removal happens at the next quiesced graph rebuild,
// outside process().
func (i *Instance) MarkRemoved() {
	atomic.StoreUint32(&i.removed, 1)
}

// Removed reports whether the instance has been soft-removed.
func (i *Instance) Removed() bool {
	return atomic.LoadUint32(&i.removed) != 0
}

// Container owns plugin instances for the lifetime of a session,
// independent of the graph's node storage (§3 "Ownership & lifecycle").
// It is mutated from the main thread only.
type Container struct {
	instances map[string]*Instance // keyed by a caller-chosen instance key, e.g. "track3" or "track3-fx1"
}

// NewContainer creates an empty plugin-instance container.
func NewContainer() *Container {
	return &Container{instances: make(map[string]*Instance)}
}

// Add registers a plugin instance under key, returning its Instance wrapper.
func (c *Container) Add(key string, p Plugin) *Instance {
	inst := NewInstance(p)
	c.instances[key] = inst
	return inst
}

// Get returns the instance registered under key, or nil.
func (c *Container) Get(key string) *Instance {
	return c.instances[key]
}

// Remove soft-removes and forgets the instance registered under key.
// Call only once quiescence has been observed (§4.11, §5).
func (c *Container) Remove(key string) {
	if inst, ok := c.instances[key]; ok {
		inst.MarkRemoved()
		delete(c.instances, key)
	}
}
