// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rendezvous implements the two rendezvous primitives fibers use
// to cooperate across a scheduling group: a Barrier all participants
// must reach before any proceeds, and a BlockingCounter a single waiter
// blocks on until N decrements have landed. Both suspend on a condition
// variable over a mutex; neither supports cancellation or timeouts — the
// runtime has no notion of either at this layer.
package rendezvous

import "sync"

// Barrier blocks n participants until all n have called Block, then
// releases them together. Exactly one Block call returns true — the
// participant that observed the barrier empty out last — and only that
// caller may safely discard the Barrier afterward.
type Barrier struct {
	mu        sync.Mutex
	cond      *sync.Cond
	remaining int
	exiting   int
	n         int
}

// NewBarrier returns a Barrier for n participants. n must be positive.
func NewBarrier(n int) *Barrier {
	if n <= 0 {
		panic("rendezvous: NewBarrier requires n > 0")
	}
	b := &Barrier{remaining: n, n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Block decrements the remaining count and suspends until it reaches
// zero, then decrements an exit counter and returns whether this call
// drove that exit counter to zero.
func (b *Barrier) Block() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.remaining--
	if b.remaining > 0 {
		for b.remaining > 0 {
			b.cond.Wait()
		}
	} else {
		b.cond.Broadcast()
	}

	b.exiting++
	return b.exiting == b.n
}

// BlockingCounter unblocks a single Wait call once n Decrement calls
// have landed. Wait must be called at most once; calling Decrement more
// than n times is undefined, matching spec.md's own carve-out.
type BlockingCounter struct {
	mu        sync.Mutex
	cond      *sync.Cond
	remaining int
}

// NewBlockingCounter returns a BlockingCounter armed for n decrements.
// n must be positive.
func NewBlockingCounter(n int) *BlockingCounter {
	if n <= 0 {
		panic("rendezvous: NewBlockingCounter requires n > 0")
	}
	c := &BlockingCounter{remaining: n}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Decrement lowers the remaining count by one, waking Wait once it
// reaches zero.
func (c *BlockingCounter) Decrement() {
	c.mu.Lock()
	c.remaining--
	if c.remaining <= 0 {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// Wait suspends until the remaining count has reached zero.
func (c *BlockingCounter) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.remaining > 0 {
		c.cond.Wait()
	}
}
