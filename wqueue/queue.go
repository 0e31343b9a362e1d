// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wqueue implements the MPSC write queue that feeds writev: many
// fibers append iobuf payloads concurrently; a single flusher drains
// them in append order via one or more vectored writes.
//
// The original implementation recycles list nodes through the same
// typed object pool as every other allocation, using a move-only
// pooled_ptr whose ownership is explicitly "leaked" into the linked
// list and reclaimed node-by-node as the flusher drains it. That trick
// depends on manual lifetime control: a node must stay valid for a
// concurrent Append's `next` write even after the flusher has logically
// consumed it, and C++ gets away with this only because nothing else
// will free the memory out from under that write. Go's allocator has no
// such hazard — a node drops out of the list and becomes collectible
// the instant nothing references it anymore — so nodes here are plain
// garbage-collected allocations instead of pool cells; recycling them
// through objpool would reintroduce the very use-after-free race the
// GC exists to rule out. See DESIGN.md.
package wqueue

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gottingen/abel/internal/cacheline"
	"github.com/gottingen/abel/ioerr"
	"github.com/gottingen/abel/iobuf"
)

// node is one entry in the MPSC linked list: an iobuf payload, an
// opaque caller context, and the next pointer appenders splice onto.
type node struct {
	next    atomic.Pointer[node]
	payload *iobuf.IOBuf
	ctx     uintptr
}

// Queue is a cache-line-aligned head (consumer side) and tail
// (producer side) pair forming an MPSC linked list (spec.md §4.D).
// Appenders swap themselves onto the tail and splice into the previous
// tail's next; concurrent appends preserve program order per appending
// goroutine.
type Queue struct {
	_    [cacheline.Size]byte
	head atomic.Pointer[node]
	_    [cacheline.Size - unsafe.Sizeof(atomic.Pointer[node]{})]byte
	tail atomic.Pointer[node]
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Append appends a node holding payload and ctx to the tail. Returns
// true iff the queue was empty before this call (head transitioned from
// nil), meaning the caller is responsible for arming a flush.
func (q *Queue) Append(payload *iobuf.IOBuf, ctx uintptr) bool {
	n := &node{payload: payload, ctx: ctx}

	prev := q.tail.Swap(n)
	if prev == nil {
		q.head.Store(n)
		return true
	}
	prev.next.Store(n)
	return false
}

// FlushResult is the outcome of one Flush call.
type FlushResult struct {
	Written     int
	DrainedCtxs []uintptr
	Emptied     bool
	ShortWrite  bool
}

// maxIOV bounds the per-call iovec array; Linux's IOV_MAX is 1024.
const maxIOV = 1024

// Flush drains up to maxBytes bytes from the queue via writev on fd. It
// issues exactly one writev call. A writev returning EAGAIN/EWOULDBLOCK
// surfaces as ioerr.ErrWouldBlock (transient); writev returning 0 bytes
// surfaces as ioerr.ErrEOF ("remote closed"); any other error is
// permanent. See package doc and spec.md §4.D for the draining
// algorithm.
func (q *Queue) Flush(fd int, maxBytes int) (FlushResult, error) {
	head := q.head.Load()
	if head == nil {
		return FlushResult{Emptied: true}, nil
	}

	var iov [][]byte
	flushing := 0
	for current := head; current != nil && len(iov) < maxIOV && flushing < maxBytes; current = current.next.Load() {
		current.payload.Iter(func(s iobuf.Slice) bool {
			if len(iov) >= maxIOV || flushing >= maxBytes {
				return false
			}
			b := s.Bytes()
			if len(b) == 0 {
				return true
			}
			if flushing+len(b) > maxBytes {
				b = b[:maxBytes-flushing]
			}
			iov = append(iov, b)
			flushing += len(b)
			return true
		})
	}

	n, err := unix.Writev(fd, iov)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return FlushResult{}, ioerr.ErrWouldBlock
		}
		return FlushResult{}, ioerr.NewPermanent("writev", err)
	}
	if n == 0 {
		return FlushResult{}, ioerr.ErrEOF
	}

	res := FlushResult{Written: n, ShortWrite: n != flushing}
	remaining := n
	current := head
	for current != nil {
		sz := current.payload.ByteSize()
		if sz > remaining {
			current.payload.Skip(remaining)
			q.head.Store(current)
			return res, nil
		}
		res.DrainedCtxs = append(res.DrainedCtxs, current.ctx)
		remaining -= sz
		next := current.next.Load()
		if next != nil {
			current = next
			continue
		}
		// Clear head before releasing tail: once tail is nil the next
		// Append stores its own node into head, which must not be lost.
		q.head.Store(nil)
		if q.tail.CompareAndSwap(current, nil) {
			res.Emptied = true
			return res, nil
		}
		// A concurrent Append has already swapped itself onto tail but
		// hasn't finished splicing into current.next yet; spin until
		// that write becomes visible.
		for next = current.next.Load(); next == nil; next = current.next.Load() {
		}
		q.head.Store(next)
		return res, nil
	}
	return res, nil
}
