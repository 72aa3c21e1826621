// Package memstack implements the bump allocator (component E) that
// pool-less, strictly-LIFO scoped allocations are built from: a
// blocklist.List supplies slabs, and a Marker captures enough state
// (how many slabs were in use, and how far into the current one) to
// unwind every allocation made after it in one shot.
package memstack

import (
	"unsafe"

	"github.com/prataprc/memalloc/align"
	"github.com/prataprc/memalloc/blocklist"
	"github.com/prataprc/memalloc/memerr"
)

// Marker captures a point in a Stack's history that Unwind can later
// return to. Markers are only valid against the Stack that produced
// them and must not be passed to Unwind more than once (spec.md §4.E).
type Marker struct {
	blocksUsed int64
	topOffset  uintptr
}

// Stack is a bump allocator over a sequence of slabs from a block list.
type Stack struct {
	blocks        *blocklist.List
	info          memerr.Info
	top           uintptr
	curBlockStart uintptr
	curBlockSize  int64
}

// New returns a Stack that draws its slabs from blocks. blocks should
// not be shared with any other allocator, since Stack drives it
// through the same Allocate/Deallocate/Top contract a pool would.
func New(blocks *blocklist.List, info memerr.Info) *Stack {
	return &Stack{blocks: blocks, info: info}
}

// Allocate returns size bytes aligned to alignment, advancing top. If
// the current slab lacks room, a new one is requested from the block
// list; if size exceeds what the block list's next slab could ever
// hold, it raises BadAllocationSize.
func (s *Stack) Allocate(size int64, alignment int) unsafe.Pointer {
	aligned := align.UpUintptr(s.top, alignment)
	if s.curBlockSize > 0 && int64(aligned-s.curBlockStart)+size <= s.curBlockSize {
		s.top = aligned + uintptr(size)
		return unsafe.Pointer(aligned)
	}

	if next := s.blocks.NextBlockSize(); size > next {
		memerr.RaiseBadAllocationSize(s.info, size, next)
	}
	b := s.blocks.Allocate()
	s.curBlockStart = uintptr(b.Memory)
	s.curBlockSize = b.Size
	aligned = align.UpUintptr(s.curBlockStart, alignment)
	s.top = aligned + uintptr(size)
	return unsafe.Pointer(aligned)
}

// Mark captures the current position for a later Unwind.
func (s *Stack) Mark() Marker {
	return Marker{blocksUsed: s.blocks.Size(), topOffset: s.top - s.curBlockStart}
}

// Unwind pops every slab allocated after m was taken back into the
// block list's free-cache and restores top to the position m recorded.
func (s *Stack) Unwind(m Marker) {
	for s.blocks.Size() > m.blocksUsed {
		s.blocks.Deallocate()
	}
	if s.blocks.Size() == 0 {
		s.curBlockStart, s.curBlockSize, s.top = 0, 0, 0
		return
	}
	b := s.blocks.Top()
	s.curBlockStart = uintptr(b.Memory)
	s.curBlockSize = b.Size
	s.top = s.curBlockStart + m.topOffset
}

// NextBlockSize forwards to the underlying block list, useful for
// callers checking whether a request could ever succeed.
func (s *Stack) NextBlockSize() int64 { return s.blocks.NextBlockSize() }
