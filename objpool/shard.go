// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package objpool

import (
	"runtime"
	"sync"
	"time"
)

func numCPU() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

// cell holds one recycled value plus the timestamp it was released at,
// used by the wash to find the shard's oldest idle entry.
type cell[T any] struct {
	value      *T
	releasedAt time.Time
}

// shard is one lockable free list. PerThread pools hold many of these
// (see package doc for why "per-thread" is sharded rather than truly
// thread-affine); NUMAShared pools hold one per domain plus a shared
// backing shard; Global pools hold exactly one.
type shard[T any] struct {
	mu   sync.Mutex
	free []cell[T] // oldest at index 0, most-recently-released at the tail
}

// popNewest removes and returns the most-recently-released cell (LIFO,
// for cache locality), or ok=false if the shard is empty. Caller must
// hold mu.
func (s *shard[T]) popNewest() (cell[T], bool) {
	n := len(s.free)
	if n == 0 {
		return cell[T]{}, false
	}
	c := s.free[n-1]
	s.free = s.free[:n-1]
	return c, true
}

// popOldestN removes and returns up to n of the oldest cells (from
// index 0), for batch transfer to/from a backing pool. Caller must
// hold mu.
func (s *shard[T]) popOldestN(n int) []cell[T] {
	if n > len(s.free) {
		n = len(s.free)
	}
	if n == 0 {
		return nil
	}
	out := make([]cell[T], n)
	copy(out, s.free[:n])
	rest := make([]cell[T], len(s.free)-n)
	copy(rest, s.free[n:])
	s.free = rest
	return out
}

// push appends a released cell to the tail. Caller must hold mu.
func (s *shard[T]) push(c cell[T]) {
	s.free = append(s.free, c)
}

// wash erodes the shard toward traits.LowWater, bounded to destroying at
// most one idle cell per call, per spec.md §4.A's "bounded work per
// event." onDestroy receives every cell the wash evicts, including cells
// evicted purely for exceeding HighWater (unbounded, since that is a hard
// cap rather than a lazy erosion). Caller must hold mu.
func (s *shard[T]) wash(traits Traits, onDestroy func(*T)) {
	if len(s.free) > traits.HighWater {
		excess := s.free[traits.HighWater:]
		for i := range excess {
			if onDestroy != nil {
				onDestroy(excess[i].value)
			}
		}
		s.free = s.free[:traits.HighWater:traits.HighWater]
	}

	floor := traits.LowWater
	if traits.MinThreadCache > floor {
		floor = traits.MinThreadCache
	}
	if traits.MaxIdle <= 0 || len(s.free) <= floor {
		return
	}
	oldest := s.free[0]
	if time.Since(oldest.releasedAt) < traits.MaxIdle {
		return
	}
	if onDestroy != nil {
		onDestroy(oldest.value)
	}
	s.free = s.free[1:]
}

func (s *shard[T]) len() int {
	s.mu.Lock()
	n := len(s.free)
	s.mu.Unlock()
	return n
}
