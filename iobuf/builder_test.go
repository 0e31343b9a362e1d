// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobuf_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gottingen/abel/iobuf"
	"github.com/gottingen/abel/objpool"
)

func newTestPools() *iobuf.BlockPools {
	return iobuf.NewBlockPools(objpool.Global, 8, 8, 2)
}

func TestBuilderAppendSmallCopiesIntoCurrentBlock(t *testing.T) {
	bd := iobuf.NewBuilder(newTestPools())
	bd.Append([]byte("small payload"))
	out := bd.DestructiveGet()
	if out.ByteSize() != len("small payload") {
		t.Fatalf("ByteSize: got %d, want %d", out.ByteSize(), len("small payload"))
	}
	if got := out.FirstSlice().Bytes(); !bytes.Equal(got, []byte("small payload")) {
		t.Fatalf("bytes: got %q", got)
	}
}

func TestBuilderAppendLargeReattachesByReference(t *testing.T) {
	bd := iobuf.NewBuilder(newTestPools())
	large := bytes.Repeat([]byte("x"), 256)
	bd.Append(large)
	out := bd.DestructiveGet()
	if out.ByteSize() != len(large) {
		t.Fatalf("ByteSize: got %d, want %d", out.ByteSize(), len(large))
	}
}

func TestBuilderReserveRejectsOversize(t *testing.T) {
	bd := iobuf.NewBuilder(newTestPools())
	defer func() {
		if recover() == nil {
			t.Fatal("Reserve(1025) did not panic")
		}
	}()
	bd.Reserve(1025)
}

func TestBuilderMarkWrittenFlushesSaturatedBlock(t *testing.T) {
	bd := iobuf.NewBuilder(newTestPools())
	bd.Reserve(1) // acquires a small-tier block; Data() then spans all of it
	dst := bd.Data()
	for i := range dst {
		dst[i] = 'z'
	}
	bd.MarkWritten(iobuf.SmallBlockSize)
	if bd.SpaceAvailable() != 0 {
		t.Fatalf("current block should be nil after saturation flush")
	}
	out := bd.DestructiveGet()
	if out.ByteSize() != iobuf.SmallBlockSize {
		t.Fatalf("ByteSize: got %d, want %d", out.ByteSize(), iobuf.SmallBlockSize)
	}
}

func TestBuilderAppendStringAndBuf(t *testing.T) {
	bd := iobuf.NewBuilder(newTestPools())
	bd.AppendString(strings.Repeat("y", 10))

	src := iobuf.New()
	src.Append(iobuf.SliceFromBytes([]byte("tail")))
	bd.AppendBuf(src)

	out := bd.DestructiveGet()
	if out.ByteSize() != 14 {
		t.Fatalf("ByteSize: got %d, want 14", out.ByteSize())
	}
	if !src.IsEmpty() {
		t.Fatalf("source buffer was not emptied by AppendBuf")
	}
}

func TestBuilderAppendSliceSmallCopiesIntoCurrentBlock(t *testing.T) {
	bd := iobuf.NewBuilder(newTestPools())
	src := []byte("small slice")
	bd.AppendSlice(iobuf.SliceFromBytes(src))
	src[0] = 'X' // mutating the source after AppendSlice must not leak through a copy

	out := bd.DestructiveGet()
	if got := out.FirstSlice().Bytes(); !bytes.Equal(got, []byte("small slice")) {
		t.Fatalf("AppendSlice under threshold did not copy: got %q", got)
	}
}

func TestBuilderAppendBufSmallCopiesIntoCurrentBlock(t *testing.T) {
	bd := iobuf.NewBuilder(newTestPools())
	payload := []byte("tiny")
	src := iobuf.New()
	src.Append(iobuf.SliceFromBytes(payload))
	bd.AppendBuf(src)
	payload[0] = 'X' // mutating the source after AppendBuf must not leak through a copy

	out := bd.DestructiveGet()
	if got := out.FirstSlice().Bytes(); !bytes.Equal(got, []byte("tiny")) {
		t.Fatalf("AppendBuf under threshold did not copy: got %q", got)
	}
	if !src.IsEmpty() {
		t.Fatalf("source buffer was not emptied by AppendBuf")
	}
}

func TestBuilderDestructiveGetFlushesPartialBlock(t *testing.T) {
	bd := iobuf.NewBuilder(newTestPools())
	bd.Append([]byte("partial"))
	out := bd.DestructiveGet()
	if out.ByteSize() != len("partial") {
		t.Fatalf("ByteSize: got %d, want %d", out.ByteSize(), len("partial"))
	}
}
