// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fiber is the glue that ties the rest of the module into a
// runnable scheduler: it derives scheduling parameters (sched), lays out
// scheduling groups backed by a shared run queue each (runqueue), reserves
// a user stack per fiber (fiberstack), and runs a worker-per-goroutine
// loop that pops, steals, and executes fiber functions.
//
// Go's runtime already gives every goroutine a growable, moveable stack;
// there is no safe, portable way to run user code on a stack this package
// mmaps itself (that needs assembly stack-switching the host runtime does
// not expose). Workers therefore run fiber functions as goroutines, and
// fiberstack.Allocator is wired in as the resource accounting the rest of
// the module promises — Spawn reserves a user stack for the fiber's
// lifetime and releases it on completion — rather than as the memory the
// goroutine actually executes on. See DESIGN.md.
package fiber

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/spin"
	"github.com/rs/zerolog"

	"github.com/gottingen/abel/fiberstack"
	"github.com/gottingen/abel/sched"
)

// RuntimeConfig configures a Runtime at construction. It is a one-shot
// explicit struct per the module's configuration house style (no flags
// package anywhere in the pack); zero values are filled with the same
// defaults fiberstack.Config.normalized and sched.Compute already apply.
type RuntimeConfig struct {
	Profile     sched.Profile
	NUMADomains int
	Processors  int
	Concurrency int
	StackConfig fiberstack.Config
	Logger      *zerolog.Logger
}

// Runtime is a running (or not-yet-started) fiber scheduler: a set of
// scheduling groups, each with its own pool of worker goroutines pinned
// (when NUMA affinity is enabled) to the OS threads backing them.
type Runtime struct {
	cfg     RuntimeConfig
	params  sched.Params
	groups  []*Group
	stacks  *fiberstack.Allocator
	logger  zerolog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	next    atomic.Uint64
	started atomic.Bool
}

// NewRuntime derives scheduling parameters from cfg and builds the
// runtime's scheduling groups and stack allocator. The runtime does not
// start any goroutines until Start is called.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	params := sched.Compute(cfg.Profile, cfg.NUMADomains, cfg.Processors, cfg.Concurrency)

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	r := &Runtime{
		cfg:    cfg,
		params: params,
		stacks: fiberstack.NewAllocator(cfg.StackConfig, false),
		logger: logger,
		stopCh: make(chan struct{}),
	}
	r.groups = make([]*Group, params.Groups)
	for i := range r.groups {
		r.groups[i] = newGroup(i, params.WorkersPerGroup)
	}
	return r
}

// Start launches every scheduling group's workers. Start must be called
// at most once.
func (r *Runtime) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("fiber: runtime already started")
	}
	for _, g := range r.groups {
		for w := 0; w < g.workers; w++ {
			r.wg.Add(1)
			go r.workerLoop(g, w)
		}
	}
	r.logger.Debug().
		Int("groups", len(r.groups)).
		Int("workers_per_group", r.params.WorkersPerGroup).
		Bool("numa_affinity", r.params.NUMAAffinity).
		Str("profile", r.cfg.Profile.String()).
		Msg("fiber runtime started")
	return nil
}

// Stop signals every worker to exit once it next checks for shutdown and
// blocks until all have returned. Fibers already queued but not yet run
// are abandoned.
func (r *Runtime) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Debug().Msg("fiber runtime stopped")
}

// Spawn reserves a user stack and enqueues fn to run on whichever group
// Spawn picks (round robin across groups). unstealable pins the fiber to
// that group; it will never be stolen by a worker in another group.
func (r *Runtime) Spawn(fn func(), unstealable bool) *Record {
	idx := (r.next.Add(1) - 1) % uint64(len(r.groups))
	g := r.groups[idx]

	rec := &Record{
		fn:          fn,
		unstealable: unstealable,
		stack:       r.stacks.AcquireUserStack(),
		group:       g,
		done:        make(chan struct{}),
	}

	sw := spin.Wait{}
	for !g.queue.Push(unsafe.Pointer(rec), unstealable) {
		sw.Once()
	}
	return rec
}

// steal tries every other group's queue once, starting just past g's own
// id, before giving up.
func (r *Runtime) steal(g *Group) (unsafe.Pointer, bool) {
	n := len(r.groups)
	for i := 1; i < n; i++ {
		other := r.groups[(g.id+i)%n]
		if p, ok := other.queue.Steal(); ok {
			return p, true
		}
	}
	return nil, false
}

// parkDelay is the sleep worker loops fall back to once a local pop and
// every peer steal have failed; spec.md §5 describes this as "worker
// parks until a wakeup or steals successfully" without mandating a
// mechanism, so a short timed sleep stands in for a real park/wakeup
// pair.
const parkDelay = 200 * time.Microsecond

func (r *Runtime) workerLoop(g *Group, workerIdx int) {
	defer r.wg.Done()

	if r.params.NUMAAffinity {
		runtime.LockOSThread()
		pinWorker(g.id, workerIdx, r.cfg.Processors, r.logger)
	}

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		p, ok := g.queue.Pop()
		if !ok {
			p, ok = r.steal(g)
		}
		if !ok {
			time.Sleep(parkDelay)
			continue
		}
		r.run((*Record)(p))
	}
}

func (r *Runtime) run(rec *Record) {
	defer func() {
		if rec.stack != nil {
			rec.stack.Release()
		}
		close(rec.done)
		if p := recover(); p != nil {
			r.logger.Warn().Interface("panic", p).Msg("fiber function panicked")
		}
	}()
	rec.fn()
}

// pinWorker binds the calling goroutine's OS thread to a single CPU
// derived from the group id and worker index, approximating the NUMA/CPU
// affinity spec.md's scheduling-parameters component calls for. Callers
// must have already called runtime.LockOSThread, or the affinity applies
// to whichever OS thread happens to be running this goroutine at the
// moment and nothing stops Go's scheduler from moving the goroutine
// elsewhere afterward.
func pinWorker(groupID, workerIdx, processors int, logger zerolog.Logger) {
	if processors <= 0 {
		processors = 1
	}
	cpu := (groupID*1024 + workerIdx) % processors

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		logger.Warn().Err(err).Int("group", groupID).Int("worker", workerIdx).Int("cpu", cpu).Msg("sched_setaffinity failed")
	}
}
