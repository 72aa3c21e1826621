// Package pool implements the single-node-size allocator (component G):
// one free list (either freelist.List or freelist.SmallList) fed by
// one block list, obtaining a fresh slab from upstream whenever the
// free list runs dry.
package pool

import (
	"unsafe"

	"github.com/prataprc/memalloc/align"
	"github.com/prataprc/memalloc/blocklist"
	"github.com/prataprc/memalloc/freelist"
	"github.com/prataprc/memalloc/memerr"
	"github.com/prataprc/memalloc/rawalloc"
)

// list is the subset of freelist.List / freelist.SmallList a pool needs.
type list interface {
	NodeSize() int64
	Capacity() int64
	Empty() bool
	Insert(buffer unsafe.Pointer, size int64) int64
	Allocate() (unsafe.Pointer, bool)
	Deallocate(cell unsafe.Pointer)
}

// Pool serves nodes of exactly one size, backed by a block list that
// owns the slabs its free list carves cells from.
type Pool struct {
	list      list
	blocks    *blocklist.List
	nodeSize  int64
	alignment int
	large     *freelist.List // non-nil only when list is array-capable.
	info      memerr.Info
}

// New returns a pool serving nodes of nodeSize bytes, requesting slabs
// of blockSize bytes (doubling thereafter) from alloc. small selects
// freelist.SmallList (byte-offset chaining, nodeSize must be <= 255,
// no array support) over the default pointer-chained freelist.List.
func New(nodeSize, blockSize int64, alloc rawalloc.Allocator, small bool, info memerr.Info) *Pool {
	p := &Pool{blocks: blocklist.New(alloc, blockSize, info), alignment: align.Max, info: info}
	if small {
		sl := freelist.NewSmallList(nodeSize)
		p.list = sl
	} else {
		ll := freelist.NewList(nodeSize)
		p.list = ll
		p.large = ll
	}
	p.nodeSize = p.list.NodeSize()
	return p
}

// AllocateNode returns one node. size must be <= MaxNodeSize() and
// alignment <= MaxAlignment(); violating either raises BadAllocationSize.
func (p *Pool) AllocateNode(size int64, alignment int) unsafe.Pointer {
	memerr.CheckAllocationSize(size, p.nodeSize, p.info)
	if alignment > p.alignment {
		memerr.RaiseBadAllocationSize(p.info, int64(alignment), int64(p.alignment))
	}
	if p.list.Empty() {
		p.refill()
	}
	ptr, ok := p.list.Allocate()
	if !ok {
		memerr.RaiseOutOfMemory(p.info, size)
	}
	return ptr
}

func (p *Pool) refill() {
	b := p.blocks.Allocate()
	if n := p.list.Insert(b.Memory, b.Size); n == 0 {
		memerr.RaiseBadAllocationSize(p.info, p.nodeSize, b.Size)
	}
}

// DeallocateNode returns ptr to the free list. No membership check is
// performed at this layer, per spec.md §4.G.
func (p *Pool) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {
	p.list.Deallocate(ptr)
}

// AllocateArray returns count contiguous nodes. Only supported when
// the pool was constructed with the pointer-chained free list (small=false).
func (p *Pool) AllocateArray(count, size int64, alignment int) unsafe.Pointer {
	if p.large == nil {
		memerr.RaiseBadAllocationSize(p.info, count*size, p.nodeSize)
	}
	memerr.CheckAllocationSize(size, p.nodeSize, p.info)
	if ptr, ok := p.large.AllocateArray(count); ok {
		return ptr
	}
	p.refill()
	if ptr, ok := p.large.AllocateArray(count); ok {
		return ptr
	}
	memerr.RaiseOutOfMemory(p.info, count*size)
	return nil
}

// DeallocateArray returns a block obtained from AllocateArray. It works
// by re-inserting the block as fresh cell storage, since the free list
// does not distinguish cells by provenance.
func (p *Pool) DeallocateArray(ptr unsafe.Pointer, count, size int64, alignment int) {
	if p.large == nil {
		panic("pool: array deallocation unsupported by this pool's free list variant")
	}
	p.large.Insert(ptr, count*p.nodeSize)
}

// MaxNodeSize returns the fixed node size configured at construction.
func (p *Pool) MaxNodeSize() int64 { return p.nodeSize }

// MaxArraySize returns the largest array AllocateArray could ever
// serve without more slabs than the block list would ever grant; it is
// an upper bound, not a guarantee (spec.md §7).
func (p *Pool) MaxArraySize() int64 {
	if p.large == nil {
		return p.nodeSize
	}
	return p.blocks.NextBlockSize() / p.nodeSize * p.nodeSize
}

// MaxAlignment is fixed at construction.
func (p *Pool) MaxAlignment() int { return p.alignment }

// IsStateful is always true: two Pool instances never share a free list.
func (p *Pool) IsStateful() bool { return true }

// Stats reports the block list's bookkeeping plus the free cell count
// currently sitting idle in the pool's free list.
func (p *Pool) Stats() (upstream, used, overhead, free int64) {
	upstream, used, overhead = p.blocks.Stats()
	return upstream, used, overhead, p.list.Capacity()
}
