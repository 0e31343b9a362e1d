// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobuf_test

import (
	"bytes"
	"testing"

	"github.com/gottingen/abel/iobuf"
)

func TestNewIsEmpty(t *testing.T) {
	b := iobuf.New()
	if !b.IsEmpty() || b.ByteSize() != 0 {
		t.Fatalf("new buffer not empty: size=%d", b.ByteSize())
	}
}

func TestAppendDropsEmptySlice(t *testing.T) {
	b := iobuf.New()
	b.Append(iobuf.Slice{})
	if !b.IsEmpty() {
		t.Fatalf("empty slice was not dropped")
	}
}

func TestAppendAndFirstSlice(t *testing.T) {
	b := iobuf.New()
	b.Append(iobuf.SliceFromBytes([]byte("hello")))
	if b.ByteSize() != 5 {
		t.Fatalf("ByteSize: got %d, want 5", b.ByteSize())
	}
	if got := b.FirstSlice().Bytes(); !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("FirstSlice: got %q", got)
	}
}

func TestSkipReleasesConsumedSlices(t *testing.T) {
	b := iobuf.New()
	b.Append(iobuf.SliceFromBytes([]byte("abc")))
	b.Append(iobuf.SliceFromBytes([]byte("defgh")))

	b.Skip(4)
	if b.ByteSize() != 4 {
		t.Fatalf("ByteSize after Skip: got %d, want 4", b.ByteSize())
	}
	// "abc" (3 bytes) fully consumed, plus 1 byte ('d') off the next
	// slice, leaves "efgh".
	if got := b.FirstSlice().Bytes(); !bytes.Equal(got, []byte("efgh")) {
		t.Fatalf("unexpected remaining bytes: %q", got)
	}
}

func TestCutSplitsStraddlingSlice(t *testing.T) {
	b := iobuf.New()
	b.Append(iobuf.SliceFromBytes([]byte("0123456789")))

	head := b.Cut(4)
	if head.ByteSize() != 4 {
		t.Fatalf("head size: got %d, want 4", head.ByteSize())
	}
	if got := head.FirstSlice().Bytes(); !bytes.Equal(got, []byte("0123")) {
		t.Fatalf("head bytes: got %q", got)
	}
	if b.ByteSize() != 6 {
		t.Fatalf("tail size: got %d, want 6", b.ByteSize())
	}
	if got := b.FirstSlice().Bytes(); !bytes.Equal(got, []byte("456789")) {
		t.Fatalf("tail bytes: got %q", got)
	}
}

func TestAppendBufMovesChainAndEmptiesSource(t *testing.T) {
	a := iobuf.New()
	a.Append(iobuf.SliceFromBytes([]byte("foo")))
	c := iobuf.New()
	c.Append(iobuf.SliceFromBytes([]byte("bar")))

	a.AppendBuf(c)
	if a.ByteSize() != 6 {
		t.Fatalf("combined size: got %d, want 6", a.ByteSize())
	}
	if !c.IsEmpty() {
		t.Fatalf("source buffer not left empty")
	}
}

func TestClearFreesAllSlices(t *testing.T) {
	b := iobuf.New()
	b.Append(iobuf.SliceFromBytes([]byte("x")))
	b.Clear()
	if !b.IsEmpty() {
		t.Fatalf("buffer not empty after Clear")
	}
}

func TestIterIsRestartable(t *testing.T) {
	b := iobuf.New()
	b.Append(iobuf.SliceFromBytes([]byte("a")))
	b.Append(iobuf.SliceFromBytes([]byte("b")))

	var first []byte
	b.Iter(func(s iobuf.Slice) bool {
		first = append(first, s.Bytes()...)
		return true
	})
	var second []byte
	b.Iter(func(s iobuf.Slice) bool {
		second = append(second, s.Bytes()...)
		return true
	})
	if !bytes.Equal(first, second) {
		t.Fatalf("Iter not restartable: %q vs %q", first, second)
	}
}

func TestIterStopsEarly(t *testing.T) {
	b := iobuf.New()
	b.Append(iobuf.SliceFromBytes([]byte("a")))
	b.Append(iobuf.SliceFromBytes([]byte("b")))
	b.Append(iobuf.SliceFromBytes([]byte("c")))

	count := 0
	b.Iter(func(iobuf.Slice) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Fatalf("Iter did not stop early: count=%d", count)
	}
}

func TestReferencedSliceInvokesReleaseOnce(t *testing.T) {
	calls := 0
	s := iobuf.SliceFromReference([]byte("ref"), func() { calls++ })
	b := iobuf.New()
	b.Append(s)
	b.Clear()
	if calls != 1 {
		t.Fatalf("release called %d times, want 1", calls)
	}
}
