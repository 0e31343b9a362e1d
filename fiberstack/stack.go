// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fiberstack allocates and recycles the two kinds of stack a
// fiber needs: a large user stack with a guard page that traps on
// overflow, and a small fixed-size system stack carrying canary words
// instead of a guard page. Both are cached on top of objpool so steady-
// state fibers pay mmap/munmap only on the rare cache miss.
package fiberstack

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/gottingen/abel/objpool"
)

// Canary words validated at offsets 0 and 8 of a system stack's low
// address; together they spell the ASCII tag "FlareStackCanary".
const (
	canaryLow  uint64 = 0x466c617265537461
	canaryHigh uint64 = 0x636b43616e617279
)

// Config are the compile-time-constant sizes spec.md §3 describes:
// UserStackSize is flag-configured (typically 32-256 KiB) and
// SystemStackSize is a fixed small size (16-32 KiB). Both are rounded up
// to the host page size.
type Config struct {
	UserStackSize   int
	SystemStackSize int
	PerThreadCache  int // small cache bound: user stacks dominate VMA pressure
}

func (c Config) normalized() Config {
	pageSize := unix.Getpagesize()
	if c.UserStackSize <= 0 {
		c.UserStackSize = 256 * 1024
	}
	c.UserStackSize = roundUp(c.UserStackSize, pageSize)
	if c.SystemStackSize <= 0 {
		c.SystemStackSize = 32 * 1024
	}
	c.SystemStackSize = roundUp(c.SystemStackSize, pageSize)
	if c.PerThreadCache <= 0 {
		c.PerThreadCache = 8
	}
	return c
}

func roundUp(n, align int) int {
	if n%align == 0 {
		return n
	}
	return (n/align + 1) * align
}

// UserStack is the payload region a fiber executes on. low is the
// mapping's base address (guard page) and Payload is the usable region
// immediately above it.
type UserStack struct {
	low     []byte // guard page, PROT_NONE, length == one page
	Payload []byte
}

// SystemStack is a small fixed-size region with no guard page; its
// canary words are validated on acquire and release instead.
type SystemStack struct {
	Bytes []byte
}

// Allocator issues and recycles both stack kinds, backed by objpool so
// each kind gets its own wash/high-water behavior (spec.md §4.B
// rationale: user stacks get a small bounded cache, system stacks a
// larger one).
type Allocator struct {
	cfg Config

	userPool   *objpool.Pool[UserStack]
	systemPool *objpool.Pool[SystemStack]
}

// NewAllocator builds an Allocator for the given sizes. asan enables the
// poison/unpoison hooks spec.md §4.B requires under ASan; this build has
// no real shadow-memory poisoner, so asan only controls whether the
// payload bytes are zeroed on release as a cheap stand-in for poisoning.
func NewAllocator(cfg Config, asan bool) *Allocator {
	cfg = cfg.normalized()
	a := &Allocator{cfg: cfg}

	a.userPool = objpool.NewPoolWithDestroy(
		objpool.Traits{Backend: objpool.PerThread, HighWater: cfg.PerThreadCache, LowWater: 1},
		func() *UserStack { return mapUserStack(cfg.UserStackSize) },
		func(s *UserStack) { unpoisonUser(s, asan) },
		func(s *UserStack) { poisonUser(s, asan) },
		unmapUserStack,
	)
	a.systemPool = objpool.NewPoolWithDestroy(
		objpool.Traits{Backend: objpool.PerThread, HighWater: cfg.PerThreadCache * 4, LowWater: 4},
		func() *SystemStack { return mapSystemStack(cfg.SystemStackSize) },
		func(s *SystemStack) { unpoisonSystem(s, asan); validateCanary(s) },
		func(s *SystemStack) { validateCanary(s); poisonSystem(s, asan) },
		unmapSystemStack,
	)
	return a
}

// AcquireUserStack returns a pooled user stack. The returned handle's
// Release destroys or recycles the mapping depending on the pool's wash
// state; it never unmaps eagerly on the fast path.
func (a *Allocator) AcquireUserStack() *objpool.Pooled[UserStack] {
	return a.userPool.Acquire()
}

// AcquireSystemStack returns a pooled system stack with valid canary
// words already written.
func (a *Allocator) AcquireSystemStack() *objpool.Pooled[SystemStack] {
	return a.systemPool.Acquire()
}

func mapUserStack(size int) *UserStack {
	pageSize := unix.Getpagesize()
	total := pageSize + size
	region, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(fmt.Sprintf("fiberstack: mmap user stack: %v", err))
	}
	if err := unix.Mprotect(region[:pageSize], unix.PROT_NONE); err != nil {
		panic(fmt.Sprintf("fiberstack: guard page mprotect: %v", err))
	}
	return &UserStack{low: region[:pageSize], Payload: region[pageSize:]}
}

func mapSystemStack(size int) *SystemStack {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(fmt.Sprintf("fiberstack: mmap system stack: %v", err))
	}
	s := &SystemStack{Bytes: region}
	writeCanary(s)
	return s
}

func writeCanary(s *SystemStack) {
	binary.LittleEndian.PutUint64(s.Bytes[0:8], canaryLow)
	binary.LittleEndian.PutUint64(s.Bytes[8:16], canaryHigh)
}

// validateCanary checks the canary words at offsets 0 and 8; mismatch is
// fatal per spec.md §4.B ("mismatch is fatal and reports 'stack is
// corrupted'").
func validateCanary(s *SystemStack) {
	lo := binary.LittleEndian.Uint64(s.Bytes[0:8])
	hi := binary.LittleEndian.Uint64(s.Bytes[8:16])
	if lo != canaryLow || hi != canaryHigh {
		panic("fiberstack: stack is corrupted")
	}
}

func poisonUser(s *UserStack, asan bool) {
	if asan {
		for i := range s.Payload {
			s.Payload[i] = 0
		}
	}
}

func unpoisonUser(_ *UserStack, _ bool) {}

func poisonSystem(s *SystemStack, asan bool) {
	if asan {
		for i := 16; i < len(s.Bytes); i++ {
			s.Bytes[i] = 0
		}
	}
}

func unpoisonSystem(_ *SystemStack, _ bool) {}

// unmapUserStack returns a stack's full mapping (guard page plus
// payload) to the kernel when the wash evicts it for good. low was cut
// from the mapping's start with unix.Mmap's full length as its
// capacity, so low[:cap(low)] recovers the original region.
func unmapUserStack(s *UserStack) {
	region := s.low[:cap(s.low)]
	if err := unix.Munmap(region); err != nil {
		panic(fmt.Sprintf("fiberstack: munmap user stack: %v", err))
	}
}

// unmapSystemStack returns a system stack's mapping to the kernel.
func unmapSystemStack(s *SystemStack) {
	if err := unix.Munmap(s.Bytes); err != nil {
		panic(fmt.Sprintf("fiberstack: munmap system stack: %v", err))
	}
}
