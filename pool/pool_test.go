package pool

import (
	"testing"
	"unsafe"

	"github.com/prataprc/memalloc/memerr"
	"github.com/prataprc/memalloc/rawalloc"
)

// fakeUpstream mirrors blocklist's test double: Go byte slices standing
// in for cgo-backed memory so these tests don't depend on cgo linking.
type fakeUpstream struct {
	live  map[unsafe.Pointer][]byte
	calls int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{live: map[unsafe.Pointer][]byte{}}
}

func (f *fakeUpstream) AllocateNode(size int64, alignment int) (unsafe.Pointer, bool) {
	f.calls++
	buf := make([]byte, size)
	ptr := unsafe.Pointer(&buf[0])
	f.live[ptr] = buf
	return ptr, true
}

func (f *fakeUpstream) DeallocateNode(ptr unsafe.Pointer, size int64, alignment int) {
	delete(f.live, ptr)
}

func (f *fakeUpstream) MaxNodeSize() int64 { return 1 << 30 }

var _ rawalloc.Allocator = (*fakeUpstream)(nil)

// TestNodeSizeAllocationRoundTrip mirrors spec.md's S1 scenario: pool
// with node_size=16, an initial block sized to serve the whole batch
// from one upstream slab; allocate 100 nodes, deallocate in reverse order.
func TestNodeSizeAllocationRoundTrip(t *testing.T) {
	up := newFakeUpstream()
	p := New(16, 2048, up, false, memerr.Info{Name: "pool-s1"})

	if p.MaxNodeSize() != 16 {
		t.Fatalf("expected node size 16, got %v", p.MaxNodeSize())
	}

	ptrs := make([]unsafe.Pointer, 100)
	for i := range ptrs {
		ptrs[i] = p.AllocateNode(16, 8)
	}
	if up.calls != 1 {
		t.Errorf("expected exactly one upstream allocation, got %v", up.calls)
	}
	for i := len(ptrs) - 1; i >= 0; i-- {
		p.DeallocateNode(ptrs[i], 16, 8)
	}
	if _, _, _, free := p.Stats(); free < 100 {
		t.Errorf("expected free-list count >= 100 after full deallocation, got %v", free)
	}
}

// TestSmallVariantRejectsArrays mirrors spec.md's S2 scenario: a
// SmallList-backed pool has no array capability.
func TestSmallVariantRejectsArrays(t *testing.T) {
	up := newFakeUpstream()
	p := New(8, 512, up, true, memerr.Info{Name: "pool-s2"})

	ptr := p.AllocateNode(8, 1)
	if ptr == nil {
		t.Fatalf("expected node allocation to succeed")
	}
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected AllocateArray to panic-raise on a small-list pool")
		}
	}()
	p.AllocateArray(4, 8, 1)
}

func TestAllocateNodeRejectsOversizedRequest(t *testing.T) {
	up := newFakeUpstream()
	p := New(16, 1024, up, false, memerr.Info{Name: "pool"})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected oversized allocation to panic")
		}
		if _, ok := r.(*memerr.Error); !ok {
			t.Errorf("expected a *memerr.Error, got %T", r)
		}
	}()
	p.AllocateNode(17, 8)
}

func TestArrayAllocateDeallocateRoundTrip(t *testing.T) {
	up := newFakeUpstream()
	p := New(16, 4096, up, false, memerr.Info{Name: "pool"})

	ptr := p.AllocateArray(10, 16, 8)
	if ptr == nil {
		t.Fatalf("expected array allocation to succeed")
	}
	_, _, _, freeBefore := p.Stats()
	p.DeallocateArray(ptr, 10, 16, 8)
	_, _, _, freeAfter := p.Stats()
	if freeAfter != freeBefore+10 {
		t.Errorf("expected 10 more free cells after array deallocation, got %v -> %v", freeBefore, freeAfter)
	}
}

func TestRefillOnSecondBlock(t *testing.T) {
	up := newFakeUpstream()
	p := New(64, 256, up, false, memerr.Info{Name: "pool"})

	for i := 0; i < 20; i++ {
		p.AllocateNode(64, 8)
	}
	if up.calls < 2 {
		t.Errorf("expected pool to have refilled from upstream at least twice, got %v calls", up.calls)
	}
}
