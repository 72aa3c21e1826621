// Package freelist supplies the two equal-size-node free list variants
// spec.md calls for: List, an intrusive pointer-chained list (component
// B), and SmallList, a byte-offset-chained list organized into chunks
// of at most 255 cells (component C). Both thread their linkage through
// the bytes of free cells themselves; a cell's link is only ever read
// or written while the cell is known to be free.
package freelist

import "unsafe"

// link reads the next-pointer stored in the first machine word of a
// free cell. Confined to this file: cells alias their own link only
// while free, per spec.md's design note on intrusive linking.
func link(cell unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(cell)
}

func setLink(cell, next unsafe.Pointer) {
	*(*unsafe.Pointer)(cell) = next
}

const wordSize = int64(unsafe.Sizeof(uintptr(0)))

// ceilNodeSize rounds size up to at least one link's worth of bytes and
// to link alignment, per spec.md §4.B.
func ceilNodeSize(size int64) int64 {
	if size < wordSize {
		size = wordSize
	}
	if rem := size % wordSize; rem != 0 {
		size += wordSize - rem
	}
	return size
}

// List is an intrusive, singly-linked free list of equal-size cells.
// It owns no memory: cells are carved from buffers supplied by Insert,
// which are in turn owned by whatever block source feeds this list.
type List struct {
	nodeSize int64
	head     unsafe.Pointer
	count    int64
}

// NewList returns a List whose cells are at least nodeSize bytes,
// ceiled up to link size and alignment.
func NewList(nodeSize int64) *List {
	return &List{nodeSize: ceilNodeSize(nodeSize)}
}

// NodeSize returns the effective (ceiled) cell size.
func (l *List) NodeSize() int64 { return l.nodeSize }

// Empty reports whether the list has no free cells.
func (l *List) Empty() bool { return l.head == nil }

// Capacity returns the number of free cells currently reachable.
func (l *List) Capacity() int64 { return l.count }

// Insert carves buffer (size bytes) into ⌊size/nodeSize⌋ cells and
// prepends them to the free list. It performs no allocation of its
// own; buffer must outlive every cell handed out from it. Returns the
// number of cells inserted.
func (l *List) Insert(buffer unsafe.Pointer, size int64) int64 {
	n := size / l.nodeSize
	base := uintptr(buffer)
	for i := int64(0); i < n; i++ {
		cell := unsafe.Pointer(base + uintptr(i*l.nodeSize))
		setLink(cell, l.head)
		l.head = cell
	}
	l.count += n
	return n
}

// Allocate pops the head cell, or returns ok=false if the list is empty.
func (l *List) Allocate() (cell unsafe.Pointer, ok bool) {
	if l.head == nil {
		return nil, false
	}
	cell = l.head
	l.head = link(cell)
	l.count--
	return cell, true
}

// Deallocate pushes cell back onto the head of the free list. No size
// or membership check is performed at this layer, per spec.md §4.B.
func (l *List) Deallocate(cell unsafe.Pointer) {
	setLink(cell, l.head)
	l.head = cell
	l.count++
}

// AllocateArray walks the free list looking for count contiguous
// cells (by address) and, if found, removes and returns them as one
// block. This is a best-effort O(n^2) operation (the free addresses are
// insertion-sorted); callers that
// need array allocation as a primary workload should prefer a
// dedicated arena instead, per spec.md §4.G.
func (l *List) AllocateArray(count int64) (unsafe.Pointer, bool) {
	if count <= 1 {
		return l.Allocate()
	}

	addrs := make([]uintptr, 0, l.count)
	for cell := l.head; cell != nil; cell = link(cell) {
		addrs = append(addrs, uintptr(cell))
	}
	if int64(len(addrs)) < count {
		return nil, false
	}
	sortUintptrs(addrs)

	run := findContiguousRun(addrs, uintptr(l.nodeSize), count)
	if run < 0 {
		return nil, false
	}
	start := addrs[run]

	// Rebuild the list, dropping the cells in [start, start+count*nodeSize).
	end := start + uintptr(count)*uintptr(l.nodeSize)
	var newHead unsafe.Pointer
	removed := int64(0)
	for cell := l.head; cell != nil; {
		next := link(cell)
		addr := uintptr(cell)
		if addr >= start && addr < end {
			removed++
		} else {
			setLink(cell, newHead)
			newHead = cell
		}
		cell = next
	}
	l.head = newHead
	l.count -= removed
	return unsafe.Pointer(start), true
}

func findContiguousRun(sorted []uintptr, stride uintptr, count int64) int {
	run := int64(1)
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] == stride {
			run++
		} else {
			run = 1
		}
		if run == count {
			return i - int(count) + 1
		}
	}
	return -1
}

func sortUintptrs(s []uintptr) {
	// insertion sort: free-list runs are short in practice (bounded by
	// a single slab's cell count), so this avoids pulling in sort for
	// what is already a fallback path.
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}
