// Package allocstorage implements the storage and reference layer
// (component K): wrappers that own or reference a concrete allocator,
// present the uniform raw-allocator surface over it via traits.Traits,
// and optionally guard every allocation, deallocation and WithLocked
// call with a mutex. MaxNodeSize, MaxArraySize, MaxAlignment and
// GetAllocator take no lock.
//
// Three variants mirror foonathan::memory::allocator_storage's Direct,
// Reference, and type-erased storage policies. Where that library uses
// templates and a compile-time no_mutex/real-mutex EBO split, this
// package uses Go generics for Direct/Reference and a Locker interface
// (satisfied by NoMutex, a zero-size no-op, or any sync.Locker) for the
// mutex policy.
package allocstorage

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/prataprc/memalloc/traits"
)

// Locker is the mutex policy every storage variant composes in.
type Locker interface {
	Lock()
	Unlock()
}

// NoMutex is the zero-size Locker used when no synchronization is
// requested, or when the underlying allocator is stateless (there is no
// shared state to guard).
type NoMutex struct{}

func (NoMutex) Lock()   {}
func (NoMutex) Unlock() {}

func lockerOrDefault(mu Locker) Locker {
	if mu == nil {
		return NoMutex{}
	}
	return mu
}

// Direct embeds an allocator by value: copying or moving the wrapper
// copies or moves the allocator along with it.
type Direct[A traits.NodeAllocator] struct {
	alloc A
	mu    Locker
}

// NewDirect wraps alloc by value. mu may be nil, defaulting to NoMutex.
func NewDirect[A traits.NodeAllocator](alloc A, mu Locker) *Direct[A] {
	return &Direct[A]{alloc: alloc, mu: lockerOrDefault(mu)}
}

func (d *Direct[A]) AllocateNode(size int64, alignment int) unsafe.Pointer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return traits.For(d.alloc).AllocateNode(size, alignment)
}

func (d *Direct[A]) AllocateArray(count, size int64, alignment int) unsafe.Pointer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return traits.For(d.alloc).AllocateArray(count, size, alignment)
}

func (d *Direct[A]) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	traits.For(d.alloc).DeallocateNode(ptr, size, alignment)
}

func (d *Direct[A]) DeallocateArray(ptr unsafe.Pointer, count, size int64, alignment int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	traits.For(d.alloc).DeallocateArray(ptr, count, size, alignment)
}

func (d *Direct[A]) MaxNodeSize() int64  { return traits.For(d.alloc).MaxNodeSize() }
func (d *Direct[A]) MaxArraySize() int64 { return traits.For(d.alloc).MaxArraySize() }
func (d *Direct[A]) MaxAlignment() int   { return traits.For(d.alloc).MaxAlignment() }

// GetAllocator returns the embedded allocator by value.
func (d *Direct[A]) GetAllocator() A { return d.alloc }

// WithLocked holds the mutex for the duration of fn, letting callers
// batch several operations without re-locking between each.
func (d *Direct[A]) WithLocked(fn func(traits.Traits)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(traits.For(d.alloc))
}

// Reference holds a non-owning pointer to a stateful allocator, or, for
// a stateless one, no pointer at all — get materializes a fresh zero
// value on every access instead, since a stateless allocator's
// instances are all interchangeable.
type Reference[A traits.NodeAllocator] struct {
	ptr *A
	mu  Locker
}

// NewReference wraps referent, which must outlive every operation
// performed through the returned Reference (spec.md §4.K's lifetime
// contract; this package has no way to enforce it beyond documentation).
func NewReference[A traits.NodeAllocator](referent *A, mu Locker) *Reference[A] {
	return &Reference[A]{ptr: referent, mu: lockerOrDefault(mu)}
}

// NewStatelessReference returns a Reference that holds no pointer,
// materializing a fresh zero-value A on every operation. Only sound for
// allocator types whose zero value is a valid, stateless instance.
func NewStatelessReference[A traits.NodeAllocator](mu Locker) *Reference[A] {
	return &Reference[A]{mu: lockerOrDefault(mu)}
}

func (r *Reference[A]) get() A {
	if r.ptr == nil {
		var zero A
		return zero
	}
	return *r.ptr
}

func (r *Reference[A]) AllocateNode(size int64, alignment int) unsafe.Pointer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return traits.For(r.get()).AllocateNode(size, alignment)
}

func (r *Reference[A]) AllocateArray(count, size int64, alignment int) unsafe.Pointer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return traits.For(r.get()).AllocateArray(count, size, alignment)
}

func (r *Reference[A]) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	traits.For(r.get()).DeallocateNode(ptr, size, alignment)
}

func (r *Reference[A]) DeallocateArray(ptr unsafe.Pointer, count, size int64, alignment int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	traits.For(r.get()).DeallocateArray(ptr, count, size, alignment)
}

func (r *Reference[A]) MaxNodeSize() int64  { return traits.For(r.get()).MaxNodeSize() }
func (r *Reference[A]) MaxArraySize() int64 { return traits.For(r.get()).MaxArraySize() }
func (r *Reference[A]) MaxAlignment() int   { return traits.For(r.get()).MaxAlignment() }

// GetAllocator returns the referent's current value (a copy).
func (r *Reference[A]) GetAllocator() A { return r.get() }

// WithLocked mirrors Direct.WithLocked.
func (r *Reference[A]) WithLocked(fn func(traits.Traits)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(traits.For(r.get()))
}

// maxErasedSize is the worst-case concrete allocator size Erased will
// accept, standing in for foonathan::memory's fixed inline buffer; Go
// interfaces already box anything larger onto the heap, so this exists
// only to preserve the spec's "refuse oversized types at construction"
// contract rather than to bound an actual inline buffer.
const maxErasedSize = 64

// Erased stores any traits.NodeAllocator behind its interface value,
// checked at construction against maxErasedSize the way foonathan's
// static_assert would at compile time.
type Erased struct {
	alloc traits.NodeAllocator
	mu    Locker
}

// NewErased wraps alloc, rejecting concrete types whose size exceeds
// maxErasedSize.
func NewErased(alloc traits.NodeAllocator, mu Locker) (*Erased, error) {
	t := reflect.TypeOf(alloc)
	if t.Kind() == reflect.Ptr {
		// A pointer receiver's own size is just a machine word; what
		// matters for the inline-buffer budget is the pointee, since
		// that is the state this storage variant would need to hold if
		// it stored the allocator by value instead of by reference.
		t = t.Elem()
	}
	if sz := t.Size(); sz > maxErasedSize {
		return nil, fmt.Errorf("allocstorage: %T is %d bytes, exceeds erased storage's %d-byte budget",
			alloc, sz, maxErasedSize)
	}
	return &Erased{alloc: alloc, mu: lockerOrDefault(mu)}, nil
}

func (e *Erased) AllocateNode(size int64, alignment int) unsafe.Pointer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return traits.For(e.alloc).AllocateNode(size, alignment)
}

func (e *Erased) AllocateArray(count, size int64, alignment int) unsafe.Pointer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return traits.For(e.alloc).AllocateArray(count, size, alignment)
}

func (e *Erased) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	traits.For(e.alloc).DeallocateNode(ptr, size, alignment)
}

func (e *Erased) DeallocateArray(ptr unsafe.Pointer, count, size int64, alignment int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	traits.For(e.alloc).DeallocateArray(ptr, count, size, alignment)
}

func (e *Erased) MaxNodeSize() int64  { return traits.For(e.alloc).MaxNodeSize() }
func (e *Erased) MaxArraySize() int64 { return traits.For(e.alloc).MaxArraySize() }
func (e *Erased) MaxAlignment() int   { return traits.For(e.alloc).MaxAlignment() }

// GetAllocator returns the erased allocator behind its NodeAllocator
// interface; callers needing the concrete type must type-assert.
func (e *Erased) GetAllocator() traits.NodeAllocator { return e.alloc }

// WithLocked mirrors Direct.WithLocked.
func (e *Erased) WithLocked(fn func(traits.Traits)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(traits.For(e.alloc))
}

var _ sync.Locker = NoMutex{}
