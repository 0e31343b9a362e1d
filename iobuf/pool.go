// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobuf

import "github.com/gottingen/abel/objpool"

// nativeCell is the pooled payload behind a native block: a fixed-
// capacity byte slice sized to its tier.
type nativeCell struct {
	bytes []byte
}

// BlockPools holds the three size-tiered native-block pools a fiber
// runtime shares process-wide. Each tier gets its own Traits per spec.md
// §3 ("4 KiB / 64 KiB / 1 MiB variants with distinct pool knobs").
type BlockPools struct {
	small  *objpool.Pool[nativeCell]
	medium *objpool.Pool[nativeCell]
	large  *objpool.Pool[nativeCell]
}

// NewBlockPools builds the three tier pools with the given backend and
// per-tier high-water marks. Small blocks are plentiful and cheap to
// keep cached; large blocks are expensive enough that a much smaller
// cache suffices.
func NewBlockPools(backend objpool.Backend, smallHighWater, mediumHighWater, largeHighWater int) *BlockPools {
	return &BlockPools{
		small:  newTierPool(TierSmall, backend, smallHighWater),
		medium: newTierPool(TierMedium, backend, mediumHighWater),
		large:  newTierPool(TierLarge, backend, largeHighWater),
	}
}

func newTierPool(tier BlockTier, backend objpool.Backend, highWater int) *objpool.Pool[nativeCell] {
	size := tier.size()
	return objpool.NewPool(
		objpool.Traits{Backend: backend, HighWater: highWater},
		func() *nativeCell { return &nativeCell{bytes: make([]byte, 0, size)} },
		func(c *nativeCell) { c.bytes = c.bytes[:0] },
		func(c *nativeCell) { c.bytes = c.bytes[:0] },
	)
}

func (p *BlockPools) poolFor(tier BlockTier) *objpool.Pool[nativeCell] {
	switch tier {
	case TierSmall:
		return p.small
	case TierMedium:
		return p.medium
	default:
		return p.large
	}
}

// acquire returns a fresh native block of the requested tier.
func (p *BlockPools) acquire(tier BlockTier) *block {
	h := p.poolFor(tier).Acquire()
	return newNativeBlock(tier, h)
}

// FillableBlock is a native block handed out for direct filling by a
// syscall (readv) before being frozen into an immutable Slice.
type FillableBlock struct {
	blk  *block
	tier BlockTier
}

// AcquireFillable returns a fresh native block of the given tier and a
// byte slice spanning its full capacity, ready to be used as a readv
// destination. Exactly one of Commit or Discard must be called on the
// returned handle.
func (p *BlockPools) AcquireFillable(tier BlockTier) (FillableBlock, []byte) {
	b := p.acquire(tier)
	return FillableBlock{blk: b, tier: tier}, b.bytes[:tier.size()]
}

// Tier returns the block's native tier.
func (fb FillableBlock) Tier() BlockTier { return fb.tier }

// Commit freezes the first n bytes of the block as a Slice, handing
// ownership of the block to the returned Slice.
func (fb FillableBlock) Commit(n int) Slice {
	fb.blk.bytes = fb.blk.bytes[:n]
	return Slice{blk: fb.blk, offset: 0, length: n}
}

// Discard returns an unfilled block to its pool without producing a
// Slice.
func (fb FillableBlock) Discard() {
	fb.blk.drop()
}
