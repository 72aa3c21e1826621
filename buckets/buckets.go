// Package buckets implements the size-bucketed free-list array
// (component F): a fixed vector of free lists indexed by node-size
// class, dispatched through a Policy such as Log2Policy.
package buckets

import (
	"math/bits"
	"unsafe"

	"github.com/prataprc/memalloc/freelist"
)

// freeList is the subset of freelist.List / freelist.SmallList that a
// bucket needs; both concrete types already satisfy it structurally.
type freeList interface {
	NodeSize() int64
	Capacity() int64
	Empty() bool
	Insert(buffer unsafe.Pointer, size int64) int64
	Allocate() (unsafe.Pointer, bool)
	Deallocate(cell unsafe.Pointer)
}

// Policy maps a requested size to a bucket index and back.
type Policy struct {
	IndexFromSize func(size int64) int
	SizeFromIndex func(index int) int64
	MaxIndex      int
}

// Ilog2 returns ceil(log2(n)) for n >= 1: Ilog2(1)=0, Ilog2(2)=1,
// Ilog2(3)=2, Ilog2(4)=2, Ilog2(5)=3, per spec.md §8's Ilog2 property.
func Ilog2(n int64) int {
	if n <= 1 {
		return 0
	}
	return bits.Len64(uint64(n - 1))
}

// Log2Policy buckets sizes by ceil(log2(size)), covering [1, maxSize].
func Log2Policy(maxSize int64) Policy {
	maxIndex := Ilog2(maxSize)
	return Policy{
		IndexFromSize: Ilog2,
		SizeFromIndex: func(i int) int64 { return int64(1) << uint(i) },
		MaxIndex:      maxIndex,
	}
}

// Variant selects the concrete free list implementation each bucket
// uses.
type Variant int

const (
	// Large uses freelist.List, the pointer-chained variant.
	Large Variant = iota
	// Small uses freelist.SmallList, the byte-offset-chained variant.
	Small
)

// Array is a fixed-length vector of free lists, one per size class.
type Array struct {
	policy  Policy
	variant Variant
	lists   []freeList
}

// NewArray builds an Array with one list per index in
// [0, policy.MaxIndex], each configured for size_from_index(i) nodes.
func NewArray(policy Policy, variant Variant) *Array {
	lists := make([]freeList, policy.MaxIndex+1)
	for i := range lists {
		size := policy.SizeFromIndex(i)
		if variant == Small && size <= 255 {
			lists[i] = freelist.NewSmallList(size)
		} else {
			lists[i] = freelist.NewList(size)
		}
	}
	return &Array{policy: policy, variant: variant, lists: lists}
}

// IndexFromSize returns the bucket index serving size, or ok=false if
// size exceeds the largest configured bucket.
func (a *Array) IndexFromSize(size int64) (index int, ok bool) {
	idx := a.policy.IndexFromSize(size)
	if idx < 0 || idx > a.policy.MaxIndex {
		return 0, false
	}
	return idx, true
}

// MaxSize is the largest node size any bucket in this array can serve.
func (a *Array) MaxSize() int64 { return a.policy.SizeFromIndex(a.policy.MaxIndex) }

// MaxIndex is the highest valid bucket index, for callers iterating
// every bucket (e.g. summing free-cell counts for Stats).
func (a *Array) MaxIndex() int { return a.policy.MaxIndex }

// NodeSizeAt returns the fixed cell size bucket idx was configured for.
func (a *Array) NodeSizeAt(idx int) int64 { return a.lists[idx].NodeSize() }

// Insert carves buffer into cells for the bucket at idx.
func (a *Array) Insert(idx int, buffer unsafe.Pointer, size int64) int64 {
	return a.lists[idx].Insert(buffer, size)
}

// Allocate serves size from the bucket whose node_size >= size,
// returning ok=false if size exceeds every configured bucket.
func (a *Array) Allocate(size int64) (ptr unsafe.Pointer, idx int, ok bool) {
	idx, ok = a.IndexFromSize(size)
	if !ok {
		return nil, 0, false
	}
	ptr, ok = a.lists[idx].Allocate()
	return ptr, idx, ok
}

// Deallocate returns ptr to the bucket at idx.
func (a *Array) Deallocate(idx int, ptr unsafe.Pointer) {
	a.lists[idx].Deallocate(ptr)
}

// Empty reports whether the bucket at idx currently has no free cells.
func (a *Array) Empty(idx int) bool { return a.lists[idx].Empty() }

// Capacity reports the free-cell count in the bucket at idx.
func (a *Array) Capacity(idx int) int64 { return a.lists[idx].Capacity() }
