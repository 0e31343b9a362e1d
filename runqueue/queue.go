// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package runqueue implements the bounded MPMC run queue the fiber
// scheduler uses to hand fibers between a group's workers: per-cell
// sequence numbers in the style of Vyukov's bounded queue, adapted with an
// unstealable flag so a fiber can be pinned to the group that pushed it.
//
// The algorithm is the same one the sibling package
// [code.hybscloud.com/lfq]'s MPMCSeq uses (compare MPMCSeq.Enqueue with
// [Queue.Push]): a CAS on the producer/consumer index followed by a
// release-store of the per-cell sequence number. What changes here is the
// payload (an opaque fiber pointer plus an unstealable bit) and the
// addition of [Queue.Steal], which Pop-like queues never need.
package runqueue

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/gottingen/abel/internal/cacheline"
)

// pad occupies a full cache line to keep head and tail, which are written
// by disjoint sets of goroutines, from sharing a line with each other or
// with the cell array header.
type pad [cacheline.Size]byte

type cell struct {
	seq         atomix.Uint64
	fiber       unsafe.Pointer
	unstealable atomix.Bool
	_           [40]byte // round the cell up to a cache line
}

// Queue is a bounded multi-producer multi-consumer queue of opaque fiber
// pointers. Capacity is rounded up to a power of two at construction.
//
// The queue has no notion of the fiber record it stores; it is identified
// and compared only by address, per spec.md §3 ("opaque to the runtime").
type Queue struct {
	_        pad
	head     atomix.Uint64 // producer index
	_        pad
	tail     atomix.Uint64 // consumer index
	_        pad
	buffer   []cell
	mask     uint64
	capacity uint64
}

// New creates a run queue with the given capacity, rounded up to the next
// power of two. Panics if capacity < 1.
func New(capacity int) *Queue {
	if capacity < 1 {
		panic("runqueue: capacity must be >= 1")
	}
	n := roundToPow2(uint64(capacity))
	q := &Queue{
		buffer:   make([]cell, n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}
	return q
}

func roundToPow2(v uint64) uint64 {
	if v < 2 {
		return 2
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}

// Cap returns the queue's actual (power-of-two) capacity.
func (q *Queue) Cap() int {
	return int(q.capacity)
}

// Push enqueues fiber, tagging it unstealable if it must run only on the
// group that pushed it. Returns false if the queue was observed full at
// the moment of the attempt; the caller does not retry internally.
func (q *Queue) Push(fiber unsafe.Pointer, unstealable bool) bool {
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		slot := &q.buffer[head&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(head)

		switch {
		case diff == 0:
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				slot.fiber = fiber
				slot.unstealable.StoreRelaxed(unstealable)
				slot.seq.StoreRelease(head + 1)
				return true
			}
		case diff < 0:
			// seq == head - capacity + 1: the cell still holds an entry
			// from the previous lap that no consumer has taken yet.
			return false
		}
		sw.Once()
	}
}

// PushBatch attempts to atomically claim a contiguous run of n cells and
// fill them all with fibers, all sharing the same unstealable tag.
// Succeeds iff every cell in the range was free at the moment of the
// attempt; on failure no cell is touched and the caller must decide
// whether to retry.
func (q *Queue) PushBatch(fibers []unsafe.Pointer, unstealable bool) bool {
	n := uint64(len(fibers))
	if n == 0 {
		return true
	}
	if n > q.capacity {
		return false
	}
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		ready := true
		for i := uint64(0); i < n; i++ {
			slot := &q.buffer[(head+i)&q.mask]
			if slot.seq.LoadAcquire() != head+i {
				ready = false
				break
			}
		}
		if !ready {
			return false
		}
		if q.head.CompareAndSwapAcqRel(head, head+n) {
			for i, f := range fibers {
				slot := &q.buffer[(head+uint64(i))&q.mask]
				slot.fiber = f
				slot.unstealable.StoreRelaxed(unstealable)
				slot.seq.StoreRelease(head + uint64(i) + 1)
			}
			return true
		}
		sw.Once()
	}
}

// Pop dequeues the oldest fiber regardless of its unstealable flag.
// Returns (nil, false) if the queue is observably empty.
func (q *Queue) Pop() (unsafe.Pointer, bool) {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail+1)

		switch {
		case diff == 0:
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				fiber := slot.fiber
				slot.fiber = nil
				slot.seq.StoreRelease(tail + q.capacity)
				return fiber, true
			}
		case diff < 0:
			return nil, false
		}
		sw.Once()
	}
}

// Steal dequeues the oldest fiber only if its unstealable flag is clear.
// It inspects only the cell at the current tail: if that cell is pinned,
// or the queue is observably empty, Steal returns (nil, false) without
// looking at any other cell and without retrying. This is deliberate: a
// thief that kept scanning past a pinned cell could reorder a group's own
// fibers relative to a concurrent local pop, which spec.md does not
// allow.
//
// Steal may report false negatives: an apparently empty queue may have
// held an entry a concurrent Pop or Steal claimed first. The
// linearization point is the load of the tail cell's sequence number;
// callers must tolerate the race (spec.md §4.E, §9).
func (q *Queue) Steal() (unsafe.Pointer, bool) {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail+1)

		switch {
		case diff == 0:
			if slot.unstealable.LoadAcquire() {
				return nil, false
			}
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				fiber := slot.fiber
				slot.fiber = nil
				slot.seq.StoreRelease(tail + q.capacity)
				return fiber, true
			}
			// Lost the CAS to a concurrent Pop/Steal on the same cell;
			// reload tail and inspect whichever cell is now at the tail.
		case diff < 0:
			return nil, false
		}
		sw.Once()
	}
}
