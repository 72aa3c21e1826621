package freelist

import "unsafe"

// noIndex marks the end of a chunk's internal free chain, or an empty
// chunk's first-free slot. It is never a valid cell index because a
// chunk holds at most maxChunkCells cells (indices 0..maxChunkCells-1).
const noIndex = uint8(255)

// maxChunkCells is the largest number of cells a single chunk can hold,
// since cells are chained by one-byte offsets within the chunk.
const maxChunkCells = 255

// chunkHeader prefixes every chunk. It is the fixed per-chunk overhead
// spec.md §4.C describes; individual free cells cost one byte each
// (the chained index), not one pointer.
type chunkHeader struct {
	first    uint8 // index of the first free cell, or noIndex.
	free     uint8 // number of free cells in this chunk.
	capacity uint8 // total cells this chunk holds.
	next     *chunkHeader
}

func chunkBase(h *chunkHeader) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h), unsafe.Sizeof(chunkHeader{}))
}

func chunkCell(h *chunkHeader, idx uint8, nodeSize int64) unsafe.Pointer {
	return unsafe.Add(chunkBase(h), int64(idx)*nodeSize)
}

func readIndex(cell unsafe.Pointer) uint8 {
	return *(*uint8)(cell)
}

func writeIndex(cell unsafe.Pointer, idx uint8) {
	*(*uint8)(cell) = idx
}

// SmallList is the byte-offset-chained free list variant for node
// sizes as small as one byte. Free cells within a chunk are linked by
// a one-byte index rather than a full pointer; a chunk header (two
// machine words on a 64-bit platform: three bytes, padding, and the
// next pointer)
// amortizes over up to 255 cells.
type SmallList struct {
	nodeSize int64
	head     *chunkHeader
	cursor   *chunkHeader // biases search towards recently-used chunks.
	count    int64        // total free cells across all chunks.
	nchunks  int64
}

// ChunkHeaderSize is the fixed per-chunk overhead, exported so callers
// sizing buffers can account for it.
const ChunkHeaderSize = int64(unsafe.Sizeof(chunkHeader{}))

// NewSmallList returns a SmallList for nodes of exactly nodeSize bytes,
// 1 <= nodeSize <= 255.
func NewSmallList(nodeSize int64) *SmallList {
	if nodeSize < 1 || nodeSize > maxChunkCells {
		panic("freelist: small list node size must be in [1, 255]")
	}
	return &SmallList{nodeSize: nodeSize}
}

// NodeSize returns the configured cell size.
func (l *SmallList) NodeSize() int64 { return l.nodeSize }

// Empty reports whether every chunk is fully allocated.
func (l *SmallList) Empty() bool { return l.count == 0 }

// Capacity returns the number of free cells across all chunks.
func (l *SmallList) Capacity() int64 { return l.count }

// Chunks returns the number of chunks carved so far, mostly useful for
// tests asserting that a large insert split across multiple chunks.
func (l *SmallList) Chunks() int64 { return l.nchunks }

// Insert partitions buffer into one or more chunks of at most 255
// cells each, prefixed by a chunkHeader, and links them into the
// chunk list. Returns the number of cells made available.
func (l *SmallList) Insert(buffer unsafe.Pointer, size int64) int64 {
	perChunkCap := ChunkHeaderSize + maxChunkCells*l.nodeSize
	var inserted int64
	base := buffer
	remaining := size
	for remaining > ChunkHeaderSize+l.nodeSize {
		chunkSize := remaining
		if chunkSize > perChunkCap {
			chunkSize = perChunkCap
		}
		cap64 := (chunkSize - ChunkHeaderSize) / l.nodeSize
		if cap64 > maxChunkCells {
			cap64 = maxChunkCells
		}
		if cap64 <= 0 {
			break
		}
		cap8 := uint8(cap64)
		h := (*chunkHeader)(base)
		h.capacity = cap8
		h.free = cap8
		h.first = 0
		for i := uint8(0); i < cap8; i++ {
			cell := chunkCell(h, i, l.nodeSize)
			if i+1 < cap8 {
				writeIndex(cell, i+1)
			} else {
				writeIndex(cell, noIndex)
			}
		}
		h.next = l.head
		l.head = h
		if l.cursor == nil {
			l.cursor = h
		}
		l.nchunks++
		l.count += int64(cap8)
		inserted += int64(cap8)

		used := ChunkHeaderSize + int64(cap8)*l.nodeSize
		base = unsafe.Add(base, used)
		remaining -= used
	}
	return inserted
}

// Allocate returns one free cell, scanning from the cursor chunk
// forward (wrapping to the head) for one with a free cell, per
// spec.md §4.C.
func (l *SmallList) Allocate() (unsafe.Pointer, bool) {
	if l.count == 0 {
		return nil, false
	}
	h := l.findFreeChunk()
	if h == nil {
		return nil, false
	}
	idx := h.first
	cell := chunkCell(h, idx, l.nodeSize)
	h.first = readIndex(cell)
	h.free--
	l.count--
	l.cursor = h
	return cell, true
}

func (l *SmallList) findFreeChunk() *chunkHeader {
	start := l.cursor
	if start == nil {
		start = l.head
	}
	for h := start; h != nil; h = h.next {
		if h.free > 0 {
			return h
		}
	}
	for h := l.head; h != start; h = h.next {
		if h.free > 0 {
			return h
		}
	}
	return nil
}

// Deallocate locates the chunk owning cell by scanning the chunk list
// (bounded by chunk count, which stays small since each chunk holds up
// to 255 cells) and pushes the cell back onto that chunk's chain.
func (l *SmallList) Deallocate(cell unsafe.Pointer) {
	h := l.ownerOf(cell)
	if h == nil {
		panic("freelist: deallocate of pointer not owned by this small list")
	}
	idx := uint8((uintptr(cell) - uintptr(chunkBase(h))) / uintptr(l.nodeSize))
	writeIndex(cell, h.first)
	h.first = idx
	h.free++
	l.count++
	l.cursor = h
}

func (l *SmallList) ownerOf(cell unsafe.Pointer) *chunkHeader {
	addr := uintptr(cell)
	for h := l.head; h != nil; h = h.next {
		start := uintptr(chunkBase(h))
		end := start + uintptr(h.capacity)*uintptr(l.nodeSize)
		if addr >= start && addr < end {
			return h
		}
	}
	return nil
}
