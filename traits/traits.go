// Package traits adapts any allocator exposing only the minimal
// node-allocation contract into the full RawAllocator interface
// (component J), the way foonathan::memory::allocator_traits detects
// and forwards to optional array/state capabilities a concrete
// allocator may or may not provide.
package traits

import (
	"unsafe"

	"github.com/prataprc/memalloc/align"
)

// NodeAllocator is the minimal contract every concrete allocator in
// this module (pool, poolcollection, stackalloc) must satisfy.
type NodeAllocator interface {
	AllocateNode(size int64, alignment int) unsafe.Pointer
	DeallocateNode(ptr unsafe.Pointer, size int64, alignment int)
	MaxNodeSize() int64
}

// ArrayAllocator is an optional capability: allocators that can serve
// contiguous arrays more efficiently than repeated node allocation
// implement this, and Traits detects it via a type assertion.
type ArrayAllocator interface {
	AllocateArray(count, size int64, alignment int) unsafe.Pointer
	DeallocateArray(ptr unsafe.Pointer, count, size int64, alignment int)
	MaxArraySize() int64
}

// AlignmentAware allocators report their own alignment ceiling instead
// of the platform default.
type AlignmentAware interface {
	MaxAlignment() int
}

// StatefulReporter allocators know whether distinct instances of
// themselves are distinguishable; allocators that don't implement this
// are conservatively treated as stateful.
type StatefulReporter interface {
	IsStateful() bool
}

// Composable marks an allocator explicitly safe to nest inside another
// allocator's storage (e.g. as the upstream for a block list). Absence
// of this interface does not imply non-composability; it is an
// optional, positive signal only.
type Composable interface {
	Composable() bool
}

// Traits presents the full RawAllocator surface over any NodeAllocator,
// forwarding to optional capabilities when present and falling back to
// spec.md §4.J's defaults otherwise.
type Traits struct {
	alloc NodeAllocator
}

// For wraps alloc, ready to serve the full interface.
func For(alloc NodeAllocator) Traits {
	return Traits{alloc: alloc}
}

func (t Traits) AllocateNode(size int64, alignment int) unsafe.Pointer {
	return t.alloc.AllocateNode(size, alignment)
}

func (t Traits) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {
	t.alloc.DeallocateNode(ptr, size, alignment)
}

func (t Traits) AllocateArray(count, size int64, alignment int) unsafe.Pointer {
	if aa, ok := t.alloc.(ArrayAllocator); ok {
		return aa.AllocateArray(count, size, alignment)
	}
	return t.alloc.AllocateNode(count*size, alignment)
}

func (t Traits) DeallocateArray(ptr unsafe.Pointer, count, size int64, alignment int) {
	if aa, ok := t.alloc.(ArrayAllocator); ok {
		aa.DeallocateArray(ptr, count, size, alignment)
		return
	}
	t.alloc.DeallocateNode(ptr, count*size, alignment)
}

func (t Traits) MaxNodeSize() int64 {
	return t.alloc.MaxNodeSize()
}

func (t Traits) MaxArraySize() int64 {
	if aa, ok := t.alloc.(ArrayAllocator); ok {
		return aa.MaxArraySize()
	}
	return t.alloc.MaxNodeSize()
}

func (t Traits) MaxAlignment() int {
	if aw, ok := t.alloc.(AlignmentAware); ok {
		return aw.MaxAlignment()
	}
	return align.Max
}

// IsStateful reports whether t.alloc's instances are distinguishable.
// Defaults to true (stateful) when unreported, the conservative choice:
// treating a stateful allocator as stateless would let a caller
// construct a fresh one on demand and silently lose the original's
// state.
func (t Traits) IsStateful() bool {
	if s, ok := t.alloc.(StatefulReporter); ok {
		return s.IsStateful()
	}
	return true
}

// IsComposable reports the optional Composable signal, defaulting to
// false (unknown) when unreported.
func (t Traits) IsComposable() bool {
	if c, ok := t.alloc.(Composable); ok {
		return c.Composable()
	}
	return false
}

// Unwrap returns the underlying allocator, for callers that need the
// concrete type back (e.g. allocstorage's Direct policy).
func (t Traits) Unwrap() NodeAllocator { return t.alloc }
