// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rate implements the feed-style rate gates the logging macros
// use to avoid flooding output on a hot path: every-N, first-N, and
// every-second. None of these are used by the fiber runtime itself.
package rate

import (
	"time"

	"code.hybscloud.com/atomix"
)

// EveryN passes every nth Feed call (the 1st, (n+1)th, (2n+1)th, ...).
type EveryN struct {
	n       int64
	counter atomix.Int64
}

// NewEveryN returns a gate that passes every nth call. n must be positive.
func NewEveryN(n int64) *EveryN {
	if n <= 0 {
		panic("rate: NewEveryN requires n > 0")
	}
	return &EveryN{n: n}
}

// Feed reports whether this call should pass.
func (g *EveryN) Feed() bool {
	return (g.counter.AddAcqRel(1)-1)%g.n == 0
}

// FirstN passes only the first n Feed calls.
type FirstN struct {
	n       int64
	counter atomix.Int64
}

// NewFirstN returns a gate that passes only the first n calls. n must be
// positive.
func NewFirstN(n int64) *FirstN {
	if n <= 0 {
		panic("rate: NewFirstN requires n > 0")
	}
	return &FirstN{n: n}
}

// Feed reports whether this call should pass.
func (g *FirstN) Feed() bool {
	return g.counter.AddAcqRel(1) <= g.n
}

// EverySecond passes at most one Feed call per wall-clock second.
type EverySecond struct {
	stamp atomix.Int64
}

// NewEverySecond returns a gate that passes at most once per second.
func NewEverySecond() *EverySecond {
	return &EverySecond{}
}

// Feed reports whether this call should pass, based on a CAS against
// the last unix-seconds timestamp that passed.
func (g *EverySecond) Feed() bool {
	now := time.Now().Unix()
	last := g.stamp.LoadAcquire()
	if now == last {
		return false
	}
	return g.stamp.CompareAndSwapAcqRel(last, now)
}
