// Package poolcollection implements the multi-size pool (component H):
// a buckets.Array of free lists sharing one block list, so a single
// slab request from upstream feeds whichever size class needed it.
package poolcollection

import (
	"unsafe"

	"github.com/prataprc/memalloc/align"
	"github.com/prataprc/memalloc/blocklist"
	"github.com/prataprc/memalloc/buckets"
	"github.com/prataprc/memalloc/config"
	"github.com/prataprc/memalloc/memerr"
	"github.com/prataprc/memalloc/rawalloc"
)

// Collection routes allocate/deallocate requests to the bucket sized
// for the request, refilling that bucket alone from a shared block list
// when it runs dry.
type Collection struct {
	buckets     *buckets.Array
	blocks      *blocklist.List
	alignment   int
	debugChecks bool
	info        memerr.Info
}

// New returns a collection covering node sizes [1, maxNodeSize] under
// Log2Policy, requesting slabs of blockSize bytes from alloc. small
// selects freelist.SmallList backing (buckets.Small) for size classes
// under 256, matching spec.md §4.H's "pool-type tag". setts may set
// "debug_checks" (bool) to enable DeallocateNodeChecked's stricter path.
func New(maxNodeSize, blockSize int64, alloc rawalloc.Allocator, small bool, setts config.Settings, info memerr.Info) *Collection {
	variant := buckets.Large
	if small {
		variant = buckets.Small
	}
	return &Collection{
		buckets:     buckets.NewArray(buckets.Log2Policy(maxNodeSize), variant),
		blocks:      blocklist.New(alloc, blockSize, info),
		alignment:   align.Max,
		debugChecks: config.BoolOrDefault(setts, "debug_checks", false),
		info:        info,
	}
}

// AllocateNode routes to the bucket sized for size, refilling it from
// the shared block list on demand.
func (c *Collection) AllocateNode(size int64, alignment int) unsafe.Pointer {
	idx, ok := c.buckets.IndexFromSize(size)
	if !ok {
		memerr.RaiseBadAllocationSize(c.info, size, c.buckets.MaxSize())
	}
	if alignment > c.alignment {
		memerr.RaiseBadAllocationSize(c.info, int64(alignment), int64(c.alignment))
	}
	if c.buckets.Empty(idx) {
		c.reserveBucket(idx)
	}
	ptr, _, ok := c.buckets.Allocate(size)
	if !ok {
		memerr.RaiseOutOfMemory(c.info, size)
	}
	return ptr
}

func (c *Collection) reserveBucket(idx int) {
	b := c.blocks.Allocate()
	if n := c.buckets.Insert(idx, b.Memory, b.Size); n == 0 {
		memerr.RaiseBadAllocationSize(c.info, c.buckets.NodeSizeAt(idx), b.Size)
	}
}

// DeallocateNode routes ptr to the bucket sized for size. Passing a
// size other than the one used at allocation places the cell in the
// wrong bucket, an invariant violation this method does not detect,
// whatever "debug_checks" is set to (see DeallocateNodeChecked).
func (c *Collection) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {
	idx, ok := c.buckets.IndexFromSize(size)
	if !ok {
		memerr.RaiseInvalidPointer(c.info, ptr)
	}
	c.buckets.Deallocate(idx, ptr)
}

// DeallocateNodeChecked behaves like DeallocateNode but, when this
// collection was constructed with "debug_checks" set, additionally
// verifies that ptr actually lies within a slab this collection's block
// list owns before releasing it, raising InvalidPointer otherwise. It
// does not check that size matches the size used at allocation: a cell
// from an owned slab returned with a different size still lands in the
// wrong bucket undetected. Release builds should call DeallocateNode
// directly to avoid the scan.
func (c *Collection) DeallocateNodeChecked(ptr unsafe.Pointer, size int64, alignment int) {
	if c.debugChecks && !c.blocks.Contains(ptr) {
		memerr.RaiseInvalidPointer(c.info, ptr)
	}
	c.DeallocateNode(ptr, size, alignment)
}

// Reserve ensures at least capacity free cells exist in the bucket
// sized for nodeSize, inserting fresh slabs from the shared block list
// as needed.
func (c *Collection) Reserve(nodeSize, capacity int64) {
	idx, ok := c.buckets.IndexFromSize(nodeSize)
	if !ok {
		memerr.RaiseBadAllocationSize(c.info, nodeSize, c.buckets.MaxSize())
	}
	for c.buckets.Capacity(idx) < capacity {
		c.reserveBucket(idx)
	}
}

// MaxNodeSize returns the largest node size any bucket in this
// collection can serve.
func (c *Collection) MaxNodeSize() int64 { return c.buckets.MaxSize() }

// MaxAlignment is fixed at construction.
func (c *Collection) MaxAlignment() int { return c.alignment }

// IsStateful is always true: buckets and the block list are per-instance.
func (c *Collection) IsStateful() bool { return true }

// Stats reports the shared block list's bookkeeping, plus the free
// cell count summed across every bucket.
func (c *Collection) Stats() (upstream, used, overhead, free int64) {
	upstream, used, overhead = c.blocks.Stats()
	for idx := 0; idx <= c.buckets.MaxIndex(); idx++ {
		free += c.buckets.Capacity(idx)
	}
	return upstream, used, overhead, free
}
