package freelist

import (
	"testing"
	"unsafe"
)

func TestSmallListSingleChunk(t *testing.T) {
	l := NewSmallList(1)
	buf := make([]byte, ChunkHeaderSize+50)
	n := l.Insert(unsafe.Pointer(&buf[0]), int64(len(buf)))
	if n != 50 {
		t.Errorf("expected 50 cells, got %v", n)
	}
	if l.Chunks() != 1 {
		t.Errorf("expected 1 chunk, got %v", l.Chunks())
	}
}

func TestSmallListManyChunksFor300Nodes(t *testing.T) {
	// S2: 1-byte nodes, 300 allocations must span at least two chunks.
	l := NewSmallList(1)
	buf := make([]byte, 2*(ChunkHeaderSize+maxChunkCells))
	l.Insert(unsafe.Pointer(&buf[0]), int64(len(buf)))
	if l.Chunks() < 2 {
		t.Fatalf("expected at least 2 chunks, got %v", l.Chunks())
	}

	start := uintptr(unsafe.Pointer(&buf[0]))
	end := start + uintptr(len(buf))

	ptrs := make([]unsafe.Pointer, 0, 300)
	seen := map[unsafe.Pointer]bool{}
	for i := 0; i < 300; i++ {
		p, ok := l.Allocate()
		if !ok {
			t.Fatalf("allocation %v failed", i)
		}
		if seen[p] {
			t.Fatalf("duplicate pointer at allocation %v", i)
		}
		seen[p] = true
		addr := uintptr(p)
		if addr < start || addr >= end {
			t.Fatalf("pointer %p escaped slab bounds", p)
		}
		ptrs = append(ptrs, p)
	}
}

func TestSmallListRoundTrip(t *testing.T) {
	l := NewSmallList(4)
	buf := make([]byte, ChunkHeaderSize+4*20)
	l.Insert(unsafe.Pointer(&buf[0]), int64(len(buf)))
	before := l.Capacity()

	ptrs := make([]unsafe.Pointer, 0, 20)
	for i := 0; i < 20; i++ {
		p, ok := l.Allocate()
		if !ok {
			t.Fatalf("allocation %v failed", i)
		}
		ptrs = append(ptrs, p)
	}
	if !l.Empty() {
		t.Errorf("expected list to be fully allocated")
	}
	for _, p := range ptrs {
		l.Deallocate(p)
	}
	if l.Capacity() != before {
		t.Errorf("expected capacity %v after round trip, got %v", before, l.Capacity())
	}
}

func TestSmallListDeallocatePanicsOnForeignPointer(t *testing.T) {
	l := NewSmallList(4)
	buf := make([]byte, ChunkHeaderSize+4*4)
	l.Insert(unsafe.Pointer(&buf[0]), int64(len(buf)))

	other := make([]byte, 16)
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic deallocating a foreign pointer")
		}
	}()
	l.Deallocate(unsafe.Pointer(&other[0]))
}

func TestNewSmallListRejectsOutOfRangeNodeSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for node size 0")
		}
	}()
	NewSmallList(0)
}
