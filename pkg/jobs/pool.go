// Package jobs implements the work-stealing dispatch pool used for
// parallel synth rendering and the plugin-side thread-pool extension
// (C8, §4.7). Grounded on the teacher's fallback thread pool
// (pkg/thread/pool.go: PoolHelper/FallbackPool, a goroutine-per-worker
// channel pool with serial fallback below a task-count threshold) and
// on golang.org/x/sync/errgroup for the fork/join barrier semantics
// ("schedule a batch, wait for every task to finish, propagate the
// first error") that the teacher's own WaitGroup-based pool leaves
// informal.
package jobs

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/basslineaudio/sessioncore/pkg/config"
)

// MaxWorkers bounds the pool regardless of CPU count (§4.7: "16 worker
// threads maximum, with the main processing thread participating").
const MaxWorkers = 16

// DefaultParallelThreshold is the minimum active-task count before
// C7 Phase 2 bothers dispatching through the pool instead of running
// sequentially on the audio thread (§4.6).
const DefaultParallelThreshold = 3

// DefaultFanoutDepthCap bounds nested thread-pool-extension requests
// (§4.7 bullet 2: "Recursion depth is capped (default 4)").
const DefaultFanoutDepthCap = 4

// Pool is the fork/join dispatcher shared by the graph processor's
// parallel synth phase and the plugin-facing thread-pool extension.
// It holds no persistent goroutines between blocks: errgroup spins up
// exactly as many goroutines as the batch needs, capped at the pool's
// worker count (min(runtime.NumCPU()-1, MaxWorkers)), which matches the "workers
// sleep on the pool's idle condition outside dispatch windows" model
// in spec.md §5 closely enough that no idle-parking machinery is
// needed in a garbage-collected runtime.
type Pool struct {
	maxWorkers int32

	// parallelThreshold and fanoutDepthCap are the engine-configurable
	// overrides of DefaultParallelThreshold/DefaultFanoutDepthCap (§4.7),
	// sourced from config.Config.ParallelThreshold/JobFanoutCap.
	parallelThreshold int
	fanoutDepthCap    int32

	// fanoutDepth is an approximation of per-caller recursion depth:
	// the pool-wide nesting level of thread-pool-extension requests
	// currently in flight. It is incremented for the duration of a
	// RequestExec call and is the basis for both the depth cap and the
	// "halve fanout when already inside a worker" rule (§4.7).
	fanoutDepth int32
}

// NewPool creates a pool sized to min(cpu_count-1, MaxWorkers), at
// least 1. cfg.JobFanoutCap and cfg.ParallelThreshold override the
// package defaults when non-zero; zero means "use the package
// default" (config.Config's documented contract).
func NewPool(cfg config.Config) *Pool {
	n := runtime.NumCPU() - 1
	if n > MaxWorkers {
		n = MaxWorkers
	}
	if n < 1 {
		n = 1
	}
	threshold := cfg.ParallelThreshold
	if threshold <= 0 {
		threshold = DefaultParallelThreshold
	}
	depthCap := cfg.JobFanoutCap
	if depthCap <= 0 {
		depthCap = DefaultFanoutDepthCap
	}
	return &Pool{
		maxWorkers:        int32(n),
		parallelThreshold: threshold,
		fanoutDepthCap:    int32(depthCap),
	}
}

// ParallelThreshold returns the minimum active-task count to dispatch
// in parallel, reduced by 1 at small buffer sizes (§4.6).
func (p *Pool) ParallelThreshold(frameCount uint32) int {
	t := p.parallelThreshold
	if frameCount <= 128 {
		t--
	}
	if t < 1 {
		t = 1
	}
	return t
}

// Dispatch runs one task function per index in parallel, waiting for
// all to complete before returning (§4.7 bullet 1: parallel synth
// dispatch, "one job per task and a root sync job"). task must be
// real-time safe: no allocation beyond what errgroup itself performs
// to join the batch.
func (p *Pool) Dispatch(tasks []func()) {
	if len(tasks) == 0 {
		return
	}
	if len(tasks) == 1 {
		tasks[0]()
		return
	}
	var g errgroup.Group
	g.SetLimit(int(p.maxWorkers))
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			task()
			return nil
		})
	}
	_ = g.Wait() // task closures never return an error; g.Wait() only joins
}

// RequestExec implements the plugin-side thread-pool extension (§4.7
// bullet 2): runs fn(i) for i in [0, numTasks) using up to a
// configurable fanout of worker jobs that atomically grab task
// indices from a shared counter, blocking until every task completes.
// Depth is capped at the pool's fanoutDepthCap (default
// DefaultFanoutDepthCap); beyond the cap (and for numTasks<=1) the
// tasks run sequentially on the calling thread. When already inside a
// worker (depth>0), fanout is halved to reduce oversubscription.
func (p *Pool) RequestExec(numTasks uint32, fn func(taskIndex uint32)) bool {
	if numTasks == 0 {
		return true
	}
	depth := atomic.AddInt32(&p.fanoutDepth, 1)
	defer atomic.AddInt32(&p.fanoutDepth, -1)

	if depth > p.fanoutDepthCap || numTasks <= 1 {
		for i := uint32(0); i < numTasks; i++ {
			fn(i)
		}
		return true
	}

	fanout := p.maxWorkers
	if depth > 1 {
		fanout /= 2
		if fanout < 1 {
			fanout = 1
		}
	}
	if int64(fanout) > int64(numTasks) {
		fanout = int32(numTasks)
	}

	var next uint32
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(int(fanout))
	for w := int32(0); w < fanout; w++ {
		g.Go(func() error {
			for {
				i := atomic.AddUint32(&next, 1) - 1
				if i >= numTasks {
					return nil
				}
				fn(i)
			}
		})
	}
	_ = g.Wait()
	return true
}
