// Package memerr defines the error taxonomy shared by every allocator
// in this module and the process-wide, atomically replaceable handlers
// that get a first look at each failure before it is raised.
//
// Handlers may log, translate the failure into an application-specific
// panic value, or abort the process. If a handler returns normally, the
// caller that invoked it raises a *Error carrying the same information
// the handler received.
package memerr

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	humanize "github.com/dustin/go-humanize"
)

// Kind identifies which invariant an *Error reports.
type Kind int

const (
	// OutOfMemory means the upstream allocator refused a request.
	OutOfMemory Kind = iota + 1
	// BadAllocationSize means a request exceeded an allocator's
	// advertised maximum node, array, or alignment size.
	BadAllocationSize
	// InvalidPointer means a pointer passed to Deallocate could not be
	// traced back to the allocator it was presented to.
	InvalidPointer
	// DoubleFree means a pointer was deallocated twice.
	DoubleFree
	// BufferOverflow means fence bytes around a node were disturbed.
	BufferOverflow
	// Leak means an allocator was released with outstanding allocations.
	Leak
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "out-of-memory"
	case BadAllocationSize:
		return "bad-allocation-size"
	case InvalidPointer:
		return "invalid-pointer"
	case DoubleFree:
		return "double-free"
	case BufferOverflow:
		return "buffer-overflow"
	case Leak:
		return "leak"
	default:
		return "unknown"
	}
}

// Info carries enough context about an allocator to log or diagnose a
// failure without exposing the allocator's concrete type. Name is a
// static string literal; Identity is an opaque value that differs
// between distinct allocator instances (nil for stateless allocators).
type Info struct {
	Name     string
	Identity unsafe.Pointer
}

// Error is raised by allocator operations after their handler has run
// and returned. Callers that want to distinguish failure kinds should
// type-assert to *Error and inspect Kind.
type Error struct {
	Kind      Kind
	Info      Info
	Requested int64 // OutOfMemory: bytes requested.
	Passed    int64 // BadAllocationSize: value passed by the caller.
	Supported int64 // BadAllocationSize: upper bound the allocator supports.
	Pointer   unsafe.Pointer
}

func (e *Error) Error() string {
	switch e.Kind {
	case OutOfMemory:
		return fmt.Sprintf("memalloc: %s(%p): out of memory requesting %s",
			e.Info.Name, e.Info.Identity, humanize.Bytes(uint64(e.Requested)))
	case BadAllocationSize:
		return fmt.Sprintf("memalloc: %s(%p): requested %s exceeds supported upper bound %s",
			e.Info.Name, e.Info.Identity,
			humanize.Bytes(uint64(e.Passed)), humanize.Bytes(uint64(e.Supported)))
	case InvalidPointer:
		return fmt.Sprintf("memalloc: %s(%p): invalid pointer on deallocation: %p",
			e.Info.Name, e.Info.Identity, e.Pointer)
	case DoubleFree:
		return fmt.Sprintf("memalloc: %s(%p): double free of %p",
			e.Info.Name, e.Info.Identity, e.Pointer)
	case BufferOverflow:
		return fmt.Sprintf("memalloc: %s(%p): buffer overflow detected near %p",
			e.Info.Name, e.Info.Identity, e.Pointer)
	case Leak:
		return fmt.Sprintf("memalloc: %s(%p): leaked %s at shutdown",
			e.Info.Name, e.Info.Identity, humanize.Bytes(uint64(e.Requested)))
	default:
		return "memalloc: unknown allocator error"
	}
}

// Handler function types, one per Kind that has a process-wide hook.
type (
	OutOfMemoryHandler        func(info Info, requested int64)
	BadAllocationSizeHandler  func(info Info, passed, supported int64)
	LeakHandler               func(info Info, bytesLeaked int64)
	InvalidPointerHandler     func(info Info, ptr unsafe.Pointer)
	BufferOverflowHandler     func(blockBegin unsafe.Pointer, nodeSize int64, offending unsafe.Pointer)
)

var (
	oomHandler      atomic.Pointer[OutOfMemoryHandler]
	badSizeHandler  atomic.Pointer[BadAllocationSizeHandler]
	leakHandler     atomic.Pointer[LeakHandler]
	invalidPtrH     atomic.Pointer[InvalidPointerHandler]
	overflowHandler atomic.Pointer[BufferOverflowHandler]
)

func init() {
	setDefault(&oomHandler, OutOfMemoryHandler(defaultOutOfMemory))
	setDefault(&badSizeHandler, BadAllocationSizeHandler(defaultBadAllocationSize))
	setDefault(&leakHandler, LeakHandler(defaultLeak))
	setDefault(&invalidPtrH, InvalidPointerHandler(defaultInvalidPointer))
	setDefault(&overflowHandler, BufferOverflowHandler(defaultBufferOverflow))
}

func setDefault[T any](slot *atomic.Pointer[T], h T) {
	slot.Store(&h)
}

func defaultOutOfMemory(info Info, requested int64) {
	fmt.Fprintf(os.Stderr, "memalloc: %s(%p): out of memory requesting %s\n",
		info.Name, info.Identity, humanize.Bytes(uint64(requested)))
}

func defaultBadAllocationSize(info Info, passed, supported int64) {
	fmt.Fprintf(os.Stderr, "memalloc: %s(%p): bad allocation size %s (max %s)\n",
		info.Name, info.Identity, humanize.Bytes(uint64(passed)), humanize.Bytes(uint64(supported)))
}

func defaultLeak(info Info, bytesLeaked int64) {
	fmt.Fprintf(os.Stderr, "memalloc: %s(%p): leaked %s\n",
		info.Name, info.Identity, humanize.Bytes(uint64(bytesLeaked)))
}

func defaultInvalidPointer(info Info, ptr unsafe.Pointer) {
	fmt.Fprintf(os.Stderr, "memalloc: %s(%p): invalid pointer on deallocation: %p\n",
		info.Name, info.Identity, ptr)
}

func defaultBufferOverflow(blockBegin unsafe.Pointer, nodeSize int64, offending unsafe.Pointer) {
	fmt.Fprintf(os.Stderr, "memalloc: buffer overflow near %p (block %p, node size %d)\n",
		offending, blockBegin, nodeSize)
}

// SetOutOfMemoryHandler atomically installs h as the new out-of-memory
// handler and returns the previous one. A nil h restores the default.
func SetOutOfMemoryHandler(h OutOfMemoryHandler) OutOfMemoryHandler {
	if h == nil {
		h = defaultOutOfMemory
	}
	return swap(&oomHandler, h)
}

// GetOutOfMemoryHandler returns the current out-of-memory handler.
func GetOutOfMemoryHandler() OutOfMemoryHandler {
	return *oomHandler.Load()
}

// SetBadAllocationSizeHandler mirrors SetOutOfMemoryHandler for BadAllocationSize.
func SetBadAllocationSizeHandler(h BadAllocationSizeHandler) BadAllocationSizeHandler {
	if h == nil {
		h = defaultBadAllocationSize
	}
	return swap(&badSizeHandler, h)
}

func GetBadAllocationSizeHandler() BadAllocationSizeHandler {
	return *badSizeHandler.Load()
}

// SetLeakHandler mirrors SetOutOfMemoryHandler for Leak.
func SetLeakHandler(h LeakHandler) LeakHandler {
	if h == nil {
		h = defaultLeak
	}
	return swap(&leakHandler, h)
}

func GetLeakHandler() LeakHandler {
	return *leakHandler.Load()
}

// SetInvalidPointerHandler mirrors SetOutOfMemoryHandler for InvalidPointer.
func SetInvalidPointerHandler(h InvalidPointerHandler) InvalidPointerHandler {
	if h == nil {
		h = defaultInvalidPointer
	}
	return swap(&invalidPtrH, h)
}

func GetInvalidPointerHandler() InvalidPointerHandler {
	return *invalidPtrH.Load()
}

// SetBufferOverflowHandler mirrors SetOutOfMemoryHandler for BufferOverflow.
func SetBufferOverflowHandler(h BufferOverflowHandler) BufferOverflowHandler {
	if h == nil {
		h = defaultBufferOverflow
	}
	return swap(&overflowHandler, h)
}

func GetBufferOverflowHandler() BufferOverflowHandler {
	return *overflowHandler.Load()
}

func swap[T any](slot *atomic.Pointer[T], h T) T {
	prev := slot.Swap(&h)
	return *prev
}

// RaiseOutOfMemory runs the installed out-of-memory handler and, if it
// returns, panics with a *Error describing the failure.
func RaiseOutOfMemory(info Info, requested int64) {
	GetOutOfMemoryHandler()(info, requested)
	panic(&Error{Kind: OutOfMemory, Info: info, Requested: requested})
}

// RaiseBadAllocationSize runs the installed handler and panics.
func RaiseBadAllocationSize(info Info, passed, supported int64) {
	GetBadAllocationSizeHandler()(info, passed, supported)
	panic(&Error{Kind: BadAllocationSize, Info: info, Passed: passed, Supported: supported})
}

// RaiseInvalidPointer runs the installed handler and panics.
func RaiseInvalidPointer(info Info, ptr unsafe.Pointer) {
	GetInvalidPointerHandler()(info, ptr)
	panic(&Error{Kind: InvalidPointer, Info: info, Pointer: ptr})
}

// RaiseDoubleFree panics with a DoubleFree error; deallocation-path
// errors default to abort because continuing would corrupt the
// allocator, so there is no separate handler slot to cooperate with.
func RaiseDoubleFree(info Info, ptr unsafe.Pointer) {
	panic(&Error{Kind: DoubleFree, Info: info, Pointer: ptr})
}

// RaiseBufferOverflow runs the installed handler and panics.
func RaiseBufferOverflow(blockBegin unsafe.Pointer, nodeSize int64, offending unsafe.Pointer) {
	GetBufferOverflowHandler()(blockBegin, nodeSize, offending)
	panic(&Error{Kind: BufferOverflow, Pointer: offending})
}

// RaiseLeak runs the installed handler; unlike the others it does not
// panic, since it is normally invoked from a destructor-equivalent
// (Release) where unwinding further would be surprising.
func RaiseLeak(info Info, bytesLeaked int64) {
	GetLeakHandler()(info, bytesLeaked)
}

// CheckAllocationSize raises BadAllocationSize if passed exceeds
// supported, mirroring detail::check_allocation_size.
func CheckAllocationSize(passed, supported int64, info Info) {
	if passed > supported {
		RaiseBadAllocationSize(info, passed, supported)
	}
}

// TryAllocate calls alloc once; on failure it gives the runtime a single
// chance to reclaim memory (a GC cycle, this module's analogue of
// cooperating with a platform out-of-memory callback) and retries
// exactly once before invoking the out-of-memory handler and raising.
func TryAllocate(alloc func() (unsafe.Pointer, bool), size int64, info Info) unsafe.Pointer {
	if ptr, ok := alloc(); ok {
		return ptr
	}
	reclaimOnce()
	if ptr, ok := alloc(); ok {
		return ptr
	}
	RaiseOutOfMemory(info, size)
	return nil // unreachable: RaiseOutOfMemory always panics.
}
