// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package iobuf implements a reference-counted, zero-copy I/O buffer:
// native blocks drawn from a size-tiered object pool, foreign blocks
// that take ownership of an arbitrary byte container, and referenced
// blocks that invoke a caller-supplied release callback instead of
// owning anything. An iobuf is an ordered, non-empty-slice-only chain
// of slices over these blocks; a builder appends to the chain with a
// small-payload-copy, large-payload-reference split.
package iobuf

import (
	"sync/atomic"

	"github.com/gottingen/abel/objpool"
)

// BlockTier selects one of the three native block sizes. Unlike the
// twelve-tier buffer ladder a sibling library offers for general-purpose
// registered buffers, the fiber I/O path only ever needs three: a small
// tier sized for header-and-small-payload traffic, a medium tier sized
// for typical read/write calls, and a large tier for bulk transfers.
type BlockTier int

const (
	TierSmall BlockTier = iota
	TierMedium
	TierLarge
)

// Block sizes for the three native tiers.
const (
	SmallBlockSize  = 4 * 1024
	MediumBlockSize = 64 * 1024
	LargeBlockSize  = 1024 * 1024
)

func (t BlockTier) size() int {
	switch t {
	case TierSmall:
		return SmallBlockSize
	case TierMedium:
		return MediumBlockSize
	default:
		return LargeBlockSize
	}
}

// Size returns the tier's native block size in bytes.
func (t BlockTier) Size() int {
	return t.size()
}

// TierFor returns the smallest native tier whose block can hold size
// bytes, or TierLarge if size exceeds even the large tier.
func TierFor(size int) BlockTier {
	switch {
	case size <= SmallBlockSize:
		return TierSmall
	case size <= MediumBlockSize:
		return TierMedium
	default:
		return TierLarge
	}
}

// kind distinguishes the three block ownership modes spec.md §3
// describes.
type kind int

const (
	kindNative kind = iota
	kindForeign
	kindReferenced
)

// block is the reference-counted owner of a contiguous byte region. A
// slice holds a *block plus an offset/length view into it; many slices
// may share one block.
type block struct {
	kind    kind
	bytes   []byte
	refs    atomic.Int32
	tier    BlockTier       // valid only when kind == kindNative
	pooled  *objpool.Pooled[nativeCell] // valid only when kind == kindNative
	release func()          // valid only when kind == kindReferenced
}

func newNativeBlock(tier BlockTier, h *objpool.Pooled[nativeCell]) *block {
	b := &block{kind: kindNative, tier: tier, pooled: h, bytes: h.Get().bytes[:0]}
	b.refs.Store(1)
	return b
}

func newForeignBlock(bytes []byte) *block {
	b := &block{kind: kindForeign, bytes: bytes}
	b.refs.Store(1)
	return b
}

func newReferencedBlock(bytes []byte, release func()) *block {
	b := &block{kind: kindReferenced, bytes: bytes, release: release}
	b.refs.Store(1)
	return b
}

func (b *block) retain() {
	if b.refs.Add(1) <= 1 {
		panic("iobuf: retain on a block with zero references")
	}
}

// drop releases one reference; the last reference returns the block's
// storage to its pool (native), drops it for the GC to collect
// (foreign), or invokes the release callback (referenced).
func (b *block) drop() {
	if n := b.refs.Add(-1); n > 0 {
		return
	} else if n < 0 {
		panic("iobuf: block reference count underflow")
	}
	switch b.kind {
	case kindNative:
		b.pooled.Release()
	case kindReferenced:
		if b.release != nil {
			b.release()
		}
	}
}

func (b *block) cap() int {
	return cap(b.bytes)
}
