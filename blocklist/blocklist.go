// Package blocklist implements the intrusive slab stack every pool,
// pool collection, and memory stack in this module is built from
// (component D): a pair of LIFO stacks of memory blocks, "used" and
// "free-cache", obtaining fresh slabs from an upstream rawalloc.Allocator
// in geometrically growing sizes and recycling freed slabs without
// returning them to the upstream allocator until ShrinkToFit or Release.
//
// A List is a single-writer resource: it does no locking of its own.
// Callers sharing one across goroutines must interpose a mutex, e.g. via
// allocstorage's Direct or Reference wrapper.
package blocklist

import (
	"unsafe"

	"github.com/prataprc/memalloc/align"
	"github.com/prataprc/memalloc/memerr"
	"github.com/prataprc/memalloc/rawalloc"
)

// growthFactor is fixed at 2, per spec.md §4.D.
const growthFactor = 2

// slabHeader occupies the first HeaderSize bytes of every slab this
// list owns. prev threads whichever stack (used or free-cache) the
// slab currently belongs to; size is the original size requested from
// upstream, needed to give it back on ShrinkToFit/Release.
type slabHeader struct {
	prev unsafe.Pointer
	size int64
}

// HeaderSize is the fixed per-slab bookkeeping overhead subtracted from
// every slab to compute its usable size. Upper layers that compute
// their own size expectations from block_size must subtract this,
// preserving the contract spec.md §9(iii) calls out by name.
var HeaderSize = int64(unsafe.Sizeof(slabHeader{}))

// Block describes the usable portion of a slab returned by Allocate or Top.
type Block struct {
	Memory unsafe.Pointer
	Size   int64
}

func header(memory unsafe.Pointer) *slabHeader {
	return (*slabHeader)(memory)
}

func usable(h *slabHeader) Block {
	return Block{Memory: unsafe.Add(unsafe.Pointer(h), HeaderSize), Size: h.size - HeaderSize}
}

// List is the block-list itself.
type List struct {
	alloc        rawalloc.Allocator
	info         memerr.Info
	used         unsafe.Pointer // top slabHeader of the "used" stack.
	free         unsafe.Pointer // top slabHeader of the "free-cache" stack.
	usedCount    int64
	freeCount    int64
	curBlockSize int64
	upstreamSize int64 // total bytes ever obtained from upstream; monotonic until ShrinkToFit.
}

// New returns a block list that requests blockSize bytes on its first
// slab acquisition, doubling on every subsequent fresh acquisition.
func New(alloc rawalloc.Allocator, blockSize int64, info memerr.Info) *List {
	if blockSize <= HeaderSize {
		blockSize = HeaderSize + int64(align.Max)
	}
	return &List{alloc: alloc, info: info, curBlockSize: blockSize}
}

// Allocate returns a new slab: either recycled from the free-cache, or
// freshly obtained from the upstream allocator (doubling the size used
// for the next fresh acquisition).
func (l *List) Allocate() Block {
	if l.free == nil {
		size := l.curBlockSize
		memory := rawalloc.MustAllocate(l.alloc, size, align.Max, l.info)
		h := header(memory)
		h.size = size
		h.prev = l.used
		l.used = memory
		l.usedCount++
		l.upstreamSize += size
		l.curBlockSize *= growthFactor
		return usable(h)
	}
	h := header(l.free)
	l.free = h.prev
	l.freeCount--
	h.prev = l.used
	l.used = unsafe.Pointer(h)
	l.usedCount++
	return usable(h)
}

// Deallocate moves the most recently allocated slab from "used" back to
// the free-cache; it does not call the upstream allocator.
func (l *List) Deallocate() {
	if l.used == nil {
		panic("blocklist: deallocate on empty used stack")
	}
	h := header(l.used)
	l.used = h.prev
	l.usedCount--
	h.prev = l.free
	l.free = unsafe.Pointer(h)
	l.freeCount++
}

// Top returns the most recently allocated slab still in "used".
func (l *List) Top() Block {
	if l.used == nil {
		panic("blocklist: top on empty used stack")
	}
	return usable(header(l.used))
}

// Empty reports whether any slab is currently in "used".
func (l *List) Empty() bool { return l.used == nil }

// Size returns the number of slabs currently in "used".
func (l *List) Size() int64 { return l.usedCount }

// NextBlockSize previews the usable size of the next slab Allocate
// would obtain fresh from upstream (it may instead recycle a
// differently-sized free-cache slab, per spec.md §4.D).
func (l *List) NextBlockSize() int64 { return l.curBlockSize - HeaderSize }

// ShrinkToFit returns every free-cache slab to the upstream allocator.
func (l *List) ShrinkToFit() {
	for l.free != nil {
		h := header(l.free)
		l.free = h.prev
		l.freeCount--
		l.alloc.DeallocateNode(unsafe.Pointer(h), h.size, align.Max)
	}
}

// Release returns every slab, used or cached, to the upstream
// allocator. The list is left empty and must not be used afterwards.
func (l *List) Release() {
	l.ShrinkToFit()
	for l.used != nil {
		h := header(l.used)
		l.used = h.prev
		l.usedCount--
		l.alloc.DeallocateNode(unsafe.Pointer(h), h.size, align.Max)
	}
}

// Contains reports whether ptr falls within any slab currently in
// "used". It scans the used stack (bounded by slab count, which stays
// small since blocks grow geometrically) and exists purely to back
// debug-only membership checks; release paths must not depend on it.
func (l *List) Contains(ptr unsafe.Pointer) bool {
	addr := uintptr(ptr)
	for cur := l.used; cur != nil; {
		h := header(cur)
		start := uintptr(cur) + uintptr(HeaderSize)
		end := start + uintptr(h.size-HeaderSize)
		if addr >= start && addr < end {
			return true
		}
		cur = h.prev
	}
	return false
}

// Stats reports bytes obtained from upstream so far (monotonic until
// ShrinkToFit), bytes currently held in "used" slabs, and the
// bookkeeping overhead (one HeaderSize per live slab).
func (l *List) Stats() (upstream, usedBytes, overhead int64) {
	overhead = (l.usedCount + l.freeCount) * HeaderSize
	for cur := l.used; cur != nil; {
		h := header(cur)
		usedBytes += h.size - HeaderSize
		cur = h.prev
	}
	return l.upstreamSize, usedBytes, overhead
}
