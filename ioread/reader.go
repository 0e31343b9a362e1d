// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ioread implements the scatter-gather read side of the fiber
// I/O path: a per-goroutine cache of native iobuf blocks kept topped up
// to eight entries, filled in one readv call per ReadInto and promoted
// to iobuf slices as each block saturates.
package ioread

import (
	"golang.org/x/sys/unix"

	"github.com/gottingen/abel/ioerr"
	"github.com/gottingen/abel/iobuf"
)

// cacheDepth is the number of native blocks readv fills per call,
// amortizing the syscall over several blocks worth of data.
const cacheDepth = 8

// Status classifies the outcome of one ReadInto call.
type Status int

const (
	Drained Status = iota
	MaxBytesRead
	EOF
	Error
)

func (s Status) String() string {
	switch s {
	case Drained:
		return "drained"
	case MaxBytesRead:
		return "max_bytes_read"
	case EOF:
		return "eof"
	default:
		return "error"
	}
}

type entry struct {
	fb      iobuf.FillableBlock
	buf     []byte
	written int
}

// BlockCache is the not-thread-safe, single-owner cache of native blocks
// ReadInto fills: one per fiber performing reads, matching the "per-
// thread cache" the algorithm describes.
type BlockCache struct {
	pools *iobuf.BlockPools
	tier  iobuf.BlockTier
	cache []*entry
}

// NewBlockCache returns a BlockCache drawing native blocks of the given
// tier from pools.
func NewBlockCache(pools *iobuf.BlockPools, tier iobuf.BlockTier) *BlockCache {
	return &BlockCache{pools: pools, tier: tier}
}

// refill tops the cache back up to cacheDepth fresh or partially-filled
// blocks before every ReadInto.
func (c *BlockCache) refill() {
	for len(c.cache) < cacheDepth {
		fb, buf := c.pools.AcquireFillable(c.tier)
		c.cache = append(c.cache, &entry{fb: fb, buf: buf})
	}
}

// Close discards every cached block, returning them to their pool
// unfilled. Call when the cache is no longer needed (e.g. the
// connection it served has closed).
func (c *BlockCache) Close() {
	for _, e := range c.cache {
		e.fb.Discard()
	}
	c.cache = nil
}

// ReadInto issues one readv on fd against cache's native blocks,
// appending at most maxBytes bytes to buf and reporting the number of
// bytes read and the outcome status.
//
// A partially filled block is kept in the cache (its unwritten tail
// offered again on the next ReadInto); a fully filled block is frozen
// into a Slice, appended to buf, and dropped from the cache so refill
// can replace it.
func ReadInto(fd int, buf *iobuf.IOBuf, maxBytes int, cache *BlockCache) (n int, status Status, err error) {
	cache.refill()

	offered := 0
	var iov [][]byte
	for _, e := range cache.cache {
		if offered >= maxBytes {
			break
		}
		avail := len(e.buf) - e.written
		if avail <= 0 {
			continue
		}
		take := avail
		if offered+take > maxBytes {
			take = maxBytes - offered
		}
		iov = append(iov, e.buf[e.written:e.written+take])
		offered += take
	}

	if len(iov) == 0 {
		return 0, MaxBytesRead, nil
	}

	got, rerr := unix.Readv(fd, iov)
	if rerr != nil {
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
			return 0, Drained, nil
		}
		return 0, Error, ioerr.NewPermanent("readv", rerr)
	}
	if got == 0 {
		return 0, EOF, ioerr.ErrEOF
	}

	cache.distribute(buf, got, len(iov))

	status = Drained
	if got == offered {
		status = MaxBytesRead
	}
	return got, status, nil
}

// distribute hands the n bytes readv actually filled back to the first
// nEntries cache entries in order, promoting any that saturate.
func (c *BlockCache) distribute(dst *iobuf.IOBuf, n, nEntries int) {
	remaining := n
	kept := c.cache[:0:0]
	i := 0
	for ; i < nEntries && remaining > 0; i++ {
		e := c.cache[i]
		avail := len(e.buf) - e.written
		take := avail
		if take > remaining {
			take = remaining
		}
		e.written += take
		remaining -= take
		if e.written == len(e.buf) {
			dst.Append(e.fb.Commit(e.written))
			continue
		}
		kept = append(kept, e)
	}
	kept = append(kept, c.cache[i:]...)
	c.cache = kept
}
