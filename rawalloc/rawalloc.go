// Package rawalloc supplies the upstream "raw" allocator collaborator
// that spec.md places out of scope: something that hands large,
// non-GC-tracked blocks of memory to a block list. It is implemented
// with cgo's malloc/free, the same technique the teacher's pool
// implementations use directly (C.malloc/C.free), rather than Go
// slices, so that returned pointers survive independent of the Go
// garbage collector and can be threaded through unsafe.Pointer freely.
package rawalloc

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/cloudfoundry/gosigar"

	"github.com/prataprc/memalloc/align"
	"github.com/prataprc/memalloc/memerr"
)

// Allocator is the minimal contract every component in this module
// expects from its upstream memory source, per spec.md §6.
type Allocator interface {
	// AllocateNode requests size bytes aligned to alignment. ok is
	// false if the request could not be satisfied.
	AllocateNode(size int64, alignment int) (ptr unsafe.Pointer, ok bool)
	// DeallocateNode returns memory previously obtained from
	// AllocateNode with the same size and alignment. Never fails.
	DeallocateNode(ptr unsafe.Pointer, size int64, alignment int)
	// MaxNodeSize is an upper bound; requests above it will always
	// fail, but requests below it may still fail.
	MaxNodeSize() int64
}

// Heap is the default Allocator: a thin wrapper over C's malloc/free.
// It is stateless and safe to share; every instance behaves
// identically, matching spec.md's "stateless allocator" definition.
type Heap struct{}

// NewHeap returns the process-wide system heap collaborator.
func NewHeap() Heap { return Heap{} }

// AllocateNode implements Allocator.
func (Heap) AllocateNode(size int64, alignment int) (unsafe.Pointer, bool) {
	if size <= 0 {
		return nil, false
	}
	if alignment > align.Max {
		// glibc malloc only guarantees max_align_t alignment; anything
		// stricter needs a dedicated aligned allocation path, which
		// this collaborator does not provide.
		return nil, false
	}
	ptr := C.malloc(C.size_t(size))
	if ptr == nil {
		return nil, false
	}
	return unsafe.Pointer(ptr), true
}

// DeallocateNode implements Allocator.
func (Heap) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {
	if ptr == nil {
		return
	}
	C.free(ptr)
}

// MaxNodeSize implements Allocator. It reports total system RAM as an
// advisory ceiling; a request below this may still fail if the system
// is under memory pressure.
func (Heap) MaxNodeSize() int64 {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		return config_defaultMax
	}
	return int64(mem.Total)
}

// config_defaultMax is used when the system memory query fails, e.g.
// on a platform gosigar does not support.
const config_defaultMax = int64(1) << 34 // 16 GiB

// FreeSystemMemory reports total, used and currently-free system RAM.
// Nothing in this module calls it: every constructor takes its block
// size from the caller. Grounded on llrb/config.go's getsysmem() in the teacher.
func FreeSystemMemory() (total, used, free uint64) {
	mem := sigar.Mem{}
	if err := mem.Get(); err != nil {
		return 0, 0, 0
	}
	return mem.Total, mem.Used, mem.Free
}

// MustAllocate calls a.AllocateNode and raises memerr.OutOfMemory on
// failure instead of returning ok=false, for callers (blocklist) that
// have no better recovery than to propagate the failure.
func MustAllocate(a Allocator, size int64, alignment int, info memerr.Info) unsafe.Pointer {
	return memerr.TryAllocate(func() (unsafe.Pointer, bool) {
		return a.AllocateNode(size, alignment)
	}, size, info)
}
