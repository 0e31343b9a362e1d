// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package objpool implements the typed object pool the fiber runtime uses
// to recycle fiber stacks and iobuf blocks: one
// process-wide descriptor per pooled type T, three interchangeable
// backends selected by a compile-time trait tag, and a lazy wash that
// erodes an idle cache toward its low-water mark.
//
// Go gives no portable way to pin a goroutine to the P it is currently
// running on from outside the runtime package (the `runtime_procPin`
// trick [sync.Pool] itself uses is wired through a //go:linkname push
// pragma the runtime grants only to the standard `sync` package — see
// erlangtui-go1.17.13/src/sync/pool.go and runtime.go for the pattern
// this package cannot reuse). The PerThread backend therefore
// approximates C++'s true thread_local with the same sharding trick
// [m3db/m3x]'s shardedObjectPool documents borrowing from sync.Pool
// ("NB: heavily inspired by https://golang.org/src/sync/pool.go"): a
// fixed array of shards, each independently lockable, selected by a
// fast round-robin hint rather than true thread affinity. This is
// reduced-contention sharding, not thread-exclusive ownership — recorded
// as an Open Question resolution in DESIGN.md.
package objpool

import (
	"time"

	"code.hybscloud.com/atomix"
)

// Backend selects one of the three pool implementations spec.md §4.A
// describes. It is part of a type's Traits and never changes at run time.
type Backend int

const (
	// PerThread caches cells in a sharded, lock-guarded free list with no
	// cross-shard synchronization on the fast path.
	PerThread Backend = iota
	// NUMAShared caches cells per NUMA domain, backed by one process-wide
	// pool shared across domains.
	NUMAShared
	// Global caches cells in a single process-wide pool guarded by one
	// lock.
	Global
)

// Traits are the per-type knobs spec.md §3 groups under "pool traits":
// the backend tag plus low-water mark, high-water mark, maximum idle
// duration, minimum thread-cache size, and transfer batch size. Traits
// are fixed at pool construction.
type Traits struct {
	Backend Backend

	// LowWater is the shard size the wash erodes idle cells toward.
	LowWater int
	// HighWater is the hard cap on a shard's free-list size; cells
	// returned above this are destroyed instead of cached.
	HighWater int
	// MaxIdle is how long a cell may sit idle in a shard before the wash
	// is eligible to destroy it.
	MaxIdle time.Duration
	// MinThreadCache is the smallest size a PerThread shard is allowed
	// to shrink to opportunistically; 0 defers entirely to LowWater.
	MinThreadCache int
	// TransferBatch is how many cells move between a NUMAShared shard
	// and its process-wide backing pool on refill or spill.
	TransferBatch int
	// NUMADomains is the number of NUMA-shared shards to create. Ignored
	// unless Backend == NUMAShared; defaults to 1.
	NUMADomains int

	// Shards overrides the PerThread shard count. Defaults to
	// 4*runtime.GOMAXPROCS(0) when zero; see package doc for why this is
	// an approximation of thread-locality rather than the real thing.
	Shards int
}

func (t Traits) normalized() Traits {
	if t.HighWater <= 0 {
		t.HighWater = 128
	}
	if t.LowWater < 0 || t.LowWater > t.HighWater {
		t.LowWater = 0
	}
	if t.TransferBatch <= 0 {
		t.TransferBatch = 16
	}
	if t.NUMADomains <= 0 {
		t.NUMADomains = 1
	}
	if t.Shards <= 0 {
		t.Shards = 4 * numCPU()
	}
	return t
}
