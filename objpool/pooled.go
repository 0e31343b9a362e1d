// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package objpool

import "code.hybscloud.com/atomix"

// Pooled is a linear-typed handle owning exactly one cell obtained from a
// Pool[T] (spec.md §3: "moving it transfers ownership; dropping it
// returns the cell to the pool of the originating type"). Go has no
// move-only types, so "moving" a Pooled[T] is ordinary assignment — the
// caller's discipline is to stop using the old variable — and "dropping"
// is an explicit call to Release. A Pooled[T] must not be copied after
// its first use; pass pointers to it, not values, just as the teacher's
// BoundedPool and this pool's own shards carry a noCopy-style
// expectation.
type Pooled[T any] struct {
	pool     *Pool[T]
	value    *T
	released atomix.Bool
}

// Get returns the underlying value. Valid until Release is called.
func (h *Pooled[T]) Get() *T {
	return h.value
}

// Release returns the cell to the pool that issued it, running the
// pool's onRelease hook first. Calling Release twice on the same handle
// is a programmer error; per spec.md §7 ("invariant violation... surface
// by aborting the process") it panics rather than silently double-
// freeing the cell into two different owners' hands.
func (h *Pooled[T]) Release() {
	if !h.released.CompareAndSwapAcqRel(false, true) {
		panic("objpool: Pooled released twice")
	}
	h.pool.release(h.value)
	h.value = nil
}
