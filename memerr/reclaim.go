package memerr

import "runtime"

// reclaimOnce gives the Go runtime a chance to release memory back to
// the upstream allocator's caches before TryAllocate gives up. This is
// this module's analogue of cooperating with a platform new_handler.
func reclaimOnce() {
	runtime.GC()
}
