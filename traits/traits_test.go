package traits

import (
	"testing"
	"unsafe"
)

// minimalAllocator implements only NodeAllocator, exercising the
// capability-detection defaults.
type minimalAllocator struct {
	buf []byte
}

func (m *minimalAllocator) AllocateNode(size int64, alignment int) unsafe.Pointer {
	m.buf = make([]byte, size)
	return unsafe.Pointer(&m.buf[0])
}
func (m *minimalAllocator) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {}
func (m *minimalAllocator) MaxNodeSize() int64                                          { return 1 << 20 }

// fullAllocator implements every optional capability explicitly.
type fullAllocator struct {
	minimalAllocator
	arrayCalls int
}

func (f *fullAllocator) AllocateArray(count, size int64, alignment int) unsafe.Pointer {
	f.arrayCalls++
	return f.AllocateNode(count*size, alignment)
}
func (f *fullAllocator) DeallocateArray(ptr unsafe.Pointer, count, size int64, alignment int) {}
func (f *fullAllocator) MaxArraySize() int64                                                 { return 1 << 10 }
func (f *fullAllocator) MaxAlignment() int                                                   { return 64 }
func (f *fullAllocator) IsStateful() bool                                                    { return false }

func TestMinimalAllocatorGetsDefaults(t *testing.T) {
	tr := For(&minimalAllocator{})
	if ptr := tr.AllocateArray(4, 8, 8); ptr == nil {
		t.Fatalf("expected AllocateArray to fall back to AllocateNode")
	}
	if got := tr.MaxArraySize(); got != tr.MaxNodeSize() {
		t.Errorf("expected MaxArraySize to default to MaxNodeSize, got %v vs %v", got, tr.MaxNodeSize())
	}
	if !tr.IsStateful() {
		t.Errorf("expected default IsStateful to be true (conservative)")
	}
}

func TestFullAllocatorCapabilitiesAreUsed(t *testing.T) {
	f := &fullAllocator{}
	tr := For(f)
	tr.AllocateArray(4, 8, 8)
	if f.arrayCalls != 1 {
		t.Errorf("expected AllocateArray to be dispatched to the concrete implementation")
	}
	if got := tr.MaxArraySize(); got != 1<<10 {
		t.Errorf("expected concrete MaxArraySize, got %v", got)
	}
	if got := tr.MaxAlignment(); got != 64 {
		t.Errorf("expected concrete MaxAlignment, got %v", got)
	}
	if tr.IsStateful() {
		t.Errorf("expected concrete IsStateful() = false to be honored")
	}
}
