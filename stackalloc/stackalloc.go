// Package stackalloc implements the stack allocator (component I): a
// thin wrapper over memstack.Stack exposing the node/array allocation
// surface the rest of this module's allocators share, while keeping
// its only deallocation primitive scope-based (UnwindTo a Marker).
package stackalloc

import (
	"unsafe"

	"github.com/prataprc/memalloc/align"
	"github.com/prataprc/memalloc/blocklist"
	"github.com/prataprc/memalloc/config"
	"github.com/prataprc/memalloc/memerr"
	"github.com/prataprc/memalloc/memstack"
)

// freedPattern is written over a region on DeallocateNode/DeallocateArray
// when debug fill is enabled, the same role foonathan::memory's
// debug_fill_freed plays: a value unlikely to be a valid pointer or
// small integer, making use-after-free reads conspicuous.
const freedPattern = byte(0xDD)

// Allocator wraps a memstack.Stack. AllocateNode and AllocateArray both
// just bump the stack's top; DeallocateNode and DeallocateArray never
// reclaim memory, since the stack only frees in bulk via UnwindTo.
type Allocator struct {
	stack     *memstack.Stack
	debugFill bool
	alignment int
}

// New wraps blocks in a Stack and returns the allocator over it. setts
// may set "debug_fill" (bool) to enable the freed-pattern overwrite on
// deallocation, matching spec.md §4.I's debug-mode behavior.
func New(blocks *blocklist.List, setts config.Settings, info memerr.Info) *Allocator {
	return &Allocator{
		stack:     memstack.New(blocks, info),
		debugFill: config.BoolOrDefault(setts, "debug_fill", false),
		alignment: align.Max,
	}
}

// AllocateNode bumps the stack's top by size bytes, aligned to alignment.
func (a *Allocator) AllocateNode(size int64, alignment int) unsafe.Pointer {
	return a.stack.Allocate(size, alignment)
}

// AllocateArray bumps the stack's top by count*size bytes in one call,
// returning a contiguous region (the stack's bump allocation is always
// contiguous, unlike a free list's best-effort AllocateArray).
func (a *Allocator) AllocateArray(count, size int64, alignment int) unsafe.Pointer {
	return a.stack.Allocate(count*size, alignment)
}

// DeallocateNode is a no-op in release mode. With debug fill enabled it
// overwrites the region with freedPattern; the memory itself is only
// actually reclaimed by a later UnwindTo.
func (a *Allocator) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {
	a.fill(ptr, size)
}

// DeallocateArray mirrors DeallocateNode for a count*size region.
func (a *Allocator) DeallocateArray(ptr unsafe.Pointer, count, size int64, alignment int) {
	a.fill(ptr, count*size)
}

func (a *Allocator) fill(ptr unsafe.Pointer, size int64) {
	if !a.debugFill || ptr == nil {
		return
	}
	base := uintptr(ptr)
	for i := int64(0); i < size; i++ {
		*(*byte)(unsafe.Pointer(base + uintptr(i))) = freedPattern
	}
}

// Mark captures the stack's current position for a later UnwindTo.
func (a *Allocator) Mark() memstack.Marker { return a.stack.Mark() }

// UnwindTo is the only real deallocation primitive: it returns every
// node and array allocated since m was taken.
func (a *Allocator) UnwindTo(m memstack.Marker) { a.stack.Unwind(m) }

// MaxNodeSize is the size of the next slab the underlying block list
// would hand out, an upper bound on any single allocation.
func (a *Allocator) MaxNodeSize() int64 { return a.stack.NextBlockSize() }

// MaxArraySize mirrors MaxNodeSize: the stack has no separate array path.
func (a *Allocator) MaxArraySize() int64 { return a.stack.NextBlockSize() }

// MaxAlignment is fixed at construction.
func (a *Allocator) MaxAlignment() int { return a.alignment }

// IsStateful is always true: every Allocator owns its own stack.
func (a *Allocator) IsStateful() bool { return true }
