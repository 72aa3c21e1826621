package memstack

import (
	"testing"
	"unsafe"

	"github.com/prataprc/memalloc/blocklist"
	"github.com/prataprc/memalloc/memerr"
	"github.com/prataprc/memalloc/rawalloc"
)

func newStack(t *testing.T, blockSize int64) *Stack {
	t.Helper()
	bl := blocklist.New(rawalloc.NewHeap(), blockSize, memerr.Info{Name: "memstack-test"})
	return New(bl, memerr.Info{Name: "memstack-test"})
}

func TestAllocateAlignment(t *testing.T) {
	s := newStack(t, 4096)
	for _, align8 := range []int{8, 16, 32, 64} {
		p := s.Allocate(24, align8)
		if uintptr(p)%uintptr(align8) != 0 {
			t.Errorf("pointer %p not aligned to %v", p, align8)
		}
	}
}

func TestAllocateNonAliasing(t *testing.T) {
	s := newStack(t, 4096)
	seen := map[unsafe.Pointer]bool{}
	for i := 0; i < 20; i++ {
		p := s.Allocate(16, 8)
		if seen[p] {
			t.Fatalf("pointer reused before deallocation: %p", p)
		}
		seen[p] = true
	}
}

func TestUnwindRestoresPositionAndReusesMemory(t *testing.T) {
	s := newStack(t, 256)
	m := s.Mark()

	sizes := []int64{8, 16, 7, 33, 4, 1, 64, 128, 200, 5}
	first := s.Allocate(sizes[0], 8)
	for _, sz := range sizes[1:] {
		s.Allocate(sz, 8)
	}
	s.Unwind(m)
	got := s.Allocate(sizes[0], 8)
	if got != first {
		t.Errorf("expected unwind to reuse %p, got %p", first, got)
	}
}

func TestAllocateBiggerThanNextBlockFails(t *testing.T) {
	s := newStack(t, 256)
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for oversized allocation")
		}
	}()
	s.Allocate(1<<40, 8)
}
