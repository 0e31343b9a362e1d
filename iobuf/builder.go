// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobuf

// appendCopyThreshold is the boundary between copying a payload into the
// builder's current block (small, for locality) and reattaching it by
// reference (large, to preserve the zero-copy promise).
const appendCopyThreshold = 128

// reserveMax is the largest contiguous region Reserve will hand out; it
// exists so a single Reserve call can never force a block bigger than
// the small tier to be allocated just to satisfy it.
const reserveMax = 1024

// Builder writes bytes into the tail of an IOBuf, owning a current
// block and an offset within it (spec.md §4.C). The zero value is not
// usable; construct with NewBuilder.
type Builder struct {
	pools   *BlockPools
	out     *IOBuf
	cur     *block
	written int // bytes written into cur so far
}

// NewBuilder returns a Builder that draws native blocks from pools.
func NewBuilder(pools *BlockPools) *Builder {
	return &Builder{pools: pools, out: New()}
}

func (bd *Builder) ensureBlock(need int) {
	if bd.cur != nil && bd.cur.cap()-bd.written >= need {
		return
	}
	bd.flushCurrent()
	bd.cur = bd.pools.acquire(TierFor(need))
	bd.written = 0
}

func (bd *Builder) flushCurrent() {
	if bd.cur == nil || bd.written == 0 {
		if bd.cur != nil {
			bd.cur.drop()
			bd.cur = nil
		}
		return
	}
	s := Slice{blk: bd.cur, offset: 0, length: bd.written}
	bd.out.Append(s)
	bd.cur = nil
	bd.written = 0
}

// Data returns a raw view into the current block's unwritten tail.
func (bd *Builder) Data() []byte {
	if bd.cur == nil {
		return nil
	}
	return bd.cur.bytes[bd.written:bd.cur.cap()]
}

// SpaceAvailable returns the remaining bytes in the current block.
func (bd *Builder) SpaceAvailable() int {
	if bd.cur == nil {
		return 0
	}
	return bd.cur.cap() - bd.written
}

// MarkWritten advances the offset by n bytes written directly into
// Data(); when the block is saturated it is flushed to the output
// IOBuf and a fresh block acquired on the next write.
func (bd *Builder) MarkWritten(n int) {
	if bd.cur == nil {
		panic("iobuf: MarkWritten with no current block")
	}
	if bd.written+n > bd.cur.cap() {
		panic("iobuf: MarkWritten overruns current block")
	}
	bd.written += n
	if bd.written == bd.cur.cap() {
		bd.flushCurrent()
	}
}

// Reserve returns a pointer to n contiguous bytes at the tail, acquiring
// a fresh block first if the current one has fewer than n bytes
// remaining. n must not exceed 1024.
func (bd *Builder) Reserve(n int) []byte {
	if n > reserveMax {
		panic("iobuf: Reserve exceeds maximum of 1024 bytes")
	}
	bd.ensureBlock(n)
	return bd.cur.bytes[bd.written : bd.written+n]
}

// Append copies small payloads (< 128 bytes) into the current block for
// locality; large payloads are reattached by reference instead of
// copied, preserving zero-copy for bulk data (the buffer then shares p,
// so p must not be modified afterward).
func (bd *Builder) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	if len(p) < appendCopyThreshold {
		dst := bd.Reserve(len(p))
		copy(dst, p)
		bd.MarkWritten(len(p))
		return
	}
	bd.flushCurrent()
	bd.out.Append(SliceFromBytes(p))
}

// AppendString is the string-view counterpart of Append.
func (bd *Builder) AppendString(s string) {
	bd.Append([]byte(s))
}

// AppendSlice attaches an existing Slice to the tail: payloads under
// appendCopyThreshold are copied into the current block for locality
// (releasing the caller's reference to s), matching the original
// abel/io/iobuf.h append(iobuf_slice) overload; larger payloads are
// reattached by reference, preserving zero-copy for bulk data.
func (bd *Builder) AppendSlice(s Slice) {
	if s.length == 0 {
		return
	}
	if s.length < appendCopyThreshold {
		dst := bd.Reserve(s.length)
		copy(dst, s.Bytes())
		bd.MarkWritten(s.length)
		s.release()
		return
	}
	bd.flushCurrent()
	bd.out.Append(s)
}

// AppendBuf attaches another IOBuf's slice chain to the tail: a buffer
// whose total size is under appendCopyThreshold is copied into the
// current block and released, matching the original abel/io/iobuf.h
// append(iobuf) overload; larger buffers are moved by reference instead,
// leaving other empty.
func (bd *Builder) AppendBuf(other *IOBuf) {
	if other.IsEmpty() {
		return
	}
	if other.ByteSize() < appendCopyThreshold {
		n := other.ByteSize()
		dst := bd.Reserve(n)
		written := 0
		other.Iter(func(s Slice) bool {
			written += copy(dst[written:], s.Bytes())
			return true
		})
		bd.MarkWritten(n)
		other.Clear()
		return
	}
	bd.flushCurrent()
	bd.out.AppendBuf(other)
}

// DestructiveGet flushes the builder's current block and yields the
// accumulated buffer. The Builder must not be used afterward.
func (bd *Builder) DestructiveGet() *IOBuf {
	bd.flushCurrent()
	out := bd.out
	bd.out = nil
	bd.pools = nil
	return out
}
