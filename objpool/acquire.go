// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package objpool

import (
	"time"

	"code.hybscloud.com/atomix"
)

// Pool is the process-wide descriptor for one pooled type T (spec.md §3:
// "the descriptor's address is its identity" — here that identity is
// simply *Pool[T], since Go generics instantiate one Pool[T] per T and
// callers are expected to keep a single *Pool[T] per type, exactly as
// they would keep a single C++ object_pool_traits<T> specialization).
type Pool[T any] struct {
	traits    Traits
	construct func() *T
	onAcquire func(*T)
	onRelease func(*T)
	onDestroy func(*T)

	shards  []*shard[T] // PerThread: Traits.Shards entries. NUMAShared: one per domain. Global: none.
	backing *shard[T]   // NUMAShared and Global only; nil for PerThread.

	rr   atomix.Uint64 // round-robin shard-selection hint
	live atomix.Int64  // process-wide outstanding-cell count, for tests/metrics
}

// NewPool creates a pool for T with the given traits. construct builds a
// fresh cell on a cache miss; onAcquire and onRelease are the hooks
// spec.md §4.A requires run synchronously around each transition. Either
// hook may be nil. Hooks must not acquire from the same pool.
func NewPool[T any](traits Traits, construct func() *T, onAcquire, onRelease func(*T)) *Pool[T] {
	return NewPoolWithDestroy(traits, construct, onAcquire, onRelease, nil)
}

// NewPoolWithDestroy is NewPool plus an onDestroy hook the wash runs
// exactly once on a cell it evicts for good (high-water overflow or
// max-idle erosion). Use this when T owns a resource that must be freed
// explicitly rather than left to the garbage collector — an mmap'd
// region, an open file descriptor.
func NewPoolWithDestroy(traits Traits, construct func() *T, onAcquire, onRelease, onDestroy func(*T)) *Pool[T] {
	if construct == nil {
		panic("objpool: construct must not be nil")
	}
	traits = traits.normalized()
	p := &Pool[T]{
		traits:    traits,
		construct: construct,
		onAcquire: onAcquire,
		onRelease: onRelease,
		onDestroy: onDestroy,
	}

	switch traits.Backend {
	case PerThread:
		p.shards = make([]*shard[T], traits.Shards)
		for i := range p.shards {
			p.shards[i] = &shard[T]{}
		}
	case NUMAShared:
		p.shards = make([]*shard[T], traits.NUMADomains)
		for i := range p.shards {
			p.shards[i] = &shard[T]{}
		}
		p.backing = &shard[T]{}
	case Global:
		p.backing = &shard[T]{}
	default:
		panic("objpool: unknown backend")
	}
	return p
}

func (p *Pool[T]) pickShard() *shard[T] {
	if len(p.shards) == 1 {
		return p.shards[0]
	}
	idx := p.rr.AddAcqRel(1) % uint64(len(p.shards))
	return p.shards[idx]
}

// Acquire returns a live cell. Acquire never fails under normal operation:
// if every backend is exhausted it constructs a fresh cell directly
// (Go's allocator, not a fixed arena, backs construct). If construct
// itself panics — the Go analogue of the C++ source's process abort on
// allocation failure — Acquire propagates that panic unmodified; this is
// an infrastructure primitive, and per spec.md §7 "propagating the
// failure is worse than aborting."
func (p *Pool[T]) Acquire() *Pooled[T] {
	switch p.traits.Backend {
	case PerThread:
		return p.acquirePerThread()
	case NUMAShared:
		return p.acquireNUMAShared()
	default:
		return p.acquireGlobal()
	}
}

func (p *Pool[T]) acquirePerThread() *Pooled[T] {
	s := p.pickShard()
	s.mu.Lock()
	c, ok := s.popNewest()
	if ok {
		s.wash(p.traits, p.destroy)
	}
	s.mu.Unlock()
	return p.finishAcquire(c, ok)
}

func (p *Pool[T]) acquireNUMAShared() *Pooled[T] {
	s := p.pickShard()
	s.mu.Lock()
	c, ok := s.popNewest()
	if !ok {
		p.backing.mu.Lock()
		batch := p.backing.popOldestN(p.traits.TransferBatch)
		p.backing.mu.Unlock()
		if len(batch) > 0 {
			c = batch[len(batch)-1]
			ok = true
			for _, extra := range batch[:len(batch)-1] {
				s.push(extra)
			}
		}
	}
	if ok {
		s.wash(p.traits, p.destroy)
	}
	s.mu.Unlock()
	if ok {
		return p.finishAcquire(c, true)
	}
	// Node-local pool and the shared backing are both empty: steal from
	// a peer NUMA domain rather than construct, per spec.md §4.A
	// ("steals cross NUMA nodes only when the node-local pool is
	// empty").
	for _, peer := range p.shards {
		if peer == s {
			continue
		}
		peer.mu.Lock()
		c, ok = peer.popNewest()
		peer.mu.Unlock()
		if ok {
			return p.finishAcquire(c, true)
		}
	}
	return p.finishAcquire(cell[T]{}, false)
}

func (p *Pool[T]) acquireGlobal() *Pooled[T] {
	p.backing.mu.Lock()
	c, ok := p.backing.popNewest()
	if ok {
		p.backing.wash(p.traits, p.destroy)
	}
	p.backing.mu.Unlock()
	return p.finishAcquire(c, ok)
}

func (p *Pool[T]) finishAcquire(c cell[T], hit bool) *Pooled[T] {
	v := c.value
	if !hit {
		v = p.construct()
	}
	p.live.AddAcqRel(1)
	if p.onAcquire != nil {
		p.onAcquire(v)
	}
	return &Pooled[T]{pool: p, value: v}
}

// Len reports the process-wide count of cells currently on loan (not
// sitting idle in a shard). Exposed for tests and diagnostics; spec.md
// does not require a length operation on the pool itself.
func (p *Pool[T]) Len() int64 {
	return p.live.LoadAcquire()
}

// Idle reports the total number of cells currently cached (not on
// loan) across all shards and the backing pool, if any.
func (p *Pool[T]) Idle() int {
	n := 0
	for _, s := range p.shards {
		n += s.len()
	}
	if p.backing != nil {
		n += p.backing.len()
	}
	return n
}

func (p *Pool[T]) release(v *T) {
	if p.onRelease != nil {
		p.onRelease(v)
	}
	c := cell[T]{value: v, releasedAt: time.Now()}

	var s *shard[T]
	switch p.traits.Backend {
	case PerThread:
		s = p.pickShard()
	case NUMAShared:
		s = p.pickShard()
	default:
		s = p.backing
	}

	s.mu.Lock()
	s.push(c)
	if p.traits.Backend == NUMAShared && len(s.free) > p.traits.HighWater {
		batch := s.popOldestN(p.traits.TransferBatch)
		p.backing.mu.Lock()
		for _, bc := range batch {
			p.backing.push(bc)
		}
		p.backing.mu.Unlock()
	}
	s.wash(p.traits, p.destroy)
	s.mu.Unlock()

	p.live.AddAcqRel(-1)
}

// destroy is the wash's eviction callback: the cell has already run
// onRelease when it was returned, so this only runs the pool's own
// onDestroy hook, if any, for cells whose resources outlive ordinary GC
// (see NewPoolWithDestroy).
func (p *Pool[T]) destroy(v *T) {
	if p.onDestroy != nil {
		p.onDestroy(v)
	}
}
