// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobuf

// IOBuf is an ordered, non-empty-slice-only chain of slices plus a
// cached total byte count (spec.md §3). The zero value is a valid empty
// buffer.
type IOBuf struct {
	slices []Slice
	size   int
}

// New returns an empty IOBuf.
func New() *IOBuf {
	return &IOBuf{}
}

// ByteSize returns the total bytes across all slices in O(1).
func (b *IOBuf) ByteSize() int {
	return b.size
}

// IsEmpty reports whether ByteSize() == 0.
func (b *IOBuf) IsEmpty() bool {
	return b.size == 0
}

// FirstSlice returns the leading contiguous slice's view. Panics if the
// buffer is empty.
func (b *IOBuf) FirstSlice() Slice {
	if b.IsEmpty() {
		panic("iobuf: FirstSlice on empty buffer")
	}
	return b.slices[0]
}

// Append pushes a slice to the tail. Empty slices are silently dropped
// per spec.md §4.C.
func (b *IOBuf) Append(s Slice) {
	if s.length == 0 {
		s.release()
		return
	}
	b.slices = append(b.slices, s)
	b.size += s.length
}

// AppendBuf moves the entire slice chain of other to the tail of b;
// other is left empty. No refcounts change hands since ownership simply
// transfers to b's chain.
func (b *IOBuf) AppendBuf(other *IOBuf) {
	if other.IsEmpty() {
		return
	}
	b.slices = append(b.slices, other.slices...)
	b.size += other.size
	other.slices = nil
	other.size = 0
}

// Skip discards the first n bytes from the head, releasing any
// fully-consumed head slices back to their owning block. Panics if
// n > ByteSize().
func (b *IOBuf) Skip(n int) {
	if n > b.size {
		panic("iobuf: Skip past end of buffer")
	}
	for n > 0 {
		head := &b.slices[0]
		if n < head.length {
			head.offset += n
			head.length -= n
			b.size -= n
			return
		}
		n -= head.length
		b.size -= head.length
		head.release()
		b.slices = b.slices[1:]
	}
}

// Cut removes and returns the first n bytes as a new IOBuf, splitting
// the slice that straddles the cut point if necessary. Both halves of a
// straddling slice share the underlying block.
func (b *IOBuf) Cut(n int) *IOBuf {
	if n > b.size {
		panic("iobuf: Cut past end of buffer")
	}
	out := New()
	remaining := n
	consumed := 0
	for remaining > 0 {
		head := b.slices[consumed]
		if remaining < head.length {
			leading, trailing := head.split(remaining)
			out.slices = append(out.slices, leading)
			out.size += leading.length
			b.slices[consumed] = trailing
			remaining = 0
			break
		}
		out.slices = append(out.slices, head)
		out.size += head.length
		remaining -= head.length
		consumed++
	}
	b.slices = b.slices[consumed:]
	b.size -= n
	return out
}

// Clear frees all slices; post-condition ByteSize() == 0.
func (b *IOBuf) Clear() {
	for i := range b.slices {
		b.slices[i].release()
	}
	b.slices = nil
	b.size = 0
}

// Iter produces a finite, order-preserving sequence of slice views.
// Calling Iter again restarts from the first slice.
func (b *IOBuf) Iter(yield func(Slice) bool) {
	for _, s := range b.slices {
		if !yield(s) {
			return
		}
	}
}

// Clone returns a new IOBuf sharing the same underlying blocks,
// bumping each one's refcount.
func (b *IOBuf) Clone() *IOBuf {
	out := &IOBuf{slices: make([]Slice, len(b.slices)), size: b.size}
	for i, s := range b.slices {
		out.slices[i] = s.clone()
	}
	return out
}
