// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobuf

// Slice is a (block, offset, length) view sharing ownership of one
// block with every other slice cut from it. offset+length never
// exceeds the block's capacity.
type Slice struct {
	blk    *block
	offset int
	length int
}

// Bytes returns the slice's view of the underlying block. The returned
// slice is valid only while the Slice (or a clone sharing its block) is
// alive; callers must not retain it past a Skip/Cut/Clear that drops the
// last reference.
func (s Slice) Bytes() []byte {
	if s.blk == nil {
		return nil
	}
	return s.blk.bytes[s.offset : s.offset+s.length]
}

// Len returns the slice's byte length.
func (s Slice) Len() int {
	return s.length
}

// clone returns a new Slice sharing the same block, bumping its
// refcount.
func (s Slice) clone() Slice {
	if s.blk != nil {
		s.blk.retain()
	}
	return s
}

// split divides the slice at byte offset n (0 < n < s.length), returning
// (head, tail) halves that both retain the underlying block — the
// straddling-slice clone spec.md §4.C's cut() describes.
func (s Slice) split(n int) (Slice, Slice) {
	s.blk.retain()
	head := Slice{blk: s.blk, offset: s.offset, length: n}
	tail := Slice{blk: s.blk, offset: s.offset + n, length: s.length - n}
	return head, tail
}

func (s Slice) release() {
	if s.blk != nil {
		s.blk.drop()
	}
}

// SliceFromBytes wraps an existing []byte as a foreign, owning slice:
// the returned Slice's block takes ownership of bytes and is freed (for
// the GC) when the last Slice/iobuf referencing it is released.
func SliceFromBytes(bytes []byte) Slice {
	if len(bytes) == 0 {
		return Slice{}
	}
	return Slice{blk: newForeignBlock(bytes), offset: 0, length: len(bytes)}
}

// SliceFromReference wraps bytes as a non-owning slice: release is
// invoked exactly once, when the last Slice/iobuf referencing it is
// dropped. Callers use this to zero-copy-attach a buffer they manage
// outside the pool (e.g. a mmap'd region or a kernel-owned ring entry).
func SliceFromReference(bytes []byte, release func()) Slice {
	if len(bytes) == 0 {
		if release != nil {
			release()
		}
		return Slice{}
	}
	return Slice{blk: newReferencedBlock(bytes, release), offset: 0, length: len(bytes)}
}
