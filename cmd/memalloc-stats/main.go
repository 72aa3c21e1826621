// Command memalloc-stats exercises a poolcollection allocator with a
// synthetic allocation workload and reports bucket utilization, the
// way tools/pools reported free-list bucket sizing in the teacher.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"unsafe"

	humanize "github.com/dustin/go-humanize"

	"github.com/prataprc/memalloc/config"
	"github.com/prataprc/memalloc/memerr"
	"github.com/prataprc/memalloc/memlog"
	"github.com/prataprc/memalloc/poolcollection"
	"github.com/prataprc/memalloc/rawalloc"
)

var options struct {
	maxNodeSize int
	blockSize   int
	requests    int
	seed        int64
	small       bool
}

func argParse() {
	flag.IntVar(&options.maxNodeSize, "maxnode", 4096, "largest node size the collection serves")
	flag.IntVar(&options.blockSize, "blocksize", 1<<20, "initial slab size requested from the system heap")
	flag.IntVar(&options.requests, "n", 100000, "number of synthetic allocation requests")
	flag.Int64Var(&options.seed, "seed", 1, "PRNG seed for the synthetic size distribution")
	flag.BoolVar(&options.small, "small", false, "use byte-offset-chained free lists for buckets under 256 bytes")
	flag.Parse()
}

func main() {
	argParse()
	report()
}

func report() {
	rng := rand.New(rand.NewSource(options.seed))
	heap := rawalloc.NewHeap()
	info := memerr.Info{Name: "memalloc-stats"}
	pc := poolcollection.New(int64(options.maxNodeSize), int64(options.blockSize), heap, options.small, config.Settings{}, info)

	var ptrs []allocated
	for i := 0; i < options.requests; i++ {
		size := int64(1 + rng.Intn(options.maxNodeSize))
		ptr := pc.AllocateNode(size, 8)
		ptrs = append(ptrs, allocated{ptr, size})
	}
	memlog.Infof("allocated %v nodes up to %v bytes each", len(ptrs), options.maxNodeSize)

	for _, a := range ptrs {
		pc.DeallocateNode(a.ptr, a.size, 8)
	}

	upstream, used, overhead, free := pc.Stats()
	fmt.Fprintf(os.Stdout, "upstream requested : %v\n", humanize.Bytes(uint64(upstream)))
	fmt.Fprintf(os.Stdout, "bytes in used slabs : %v\n", humanize.Bytes(uint64(used)))
	fmt.Fprintf(os.Stdout, "slab header overhead: %v\n", humanize.Bytes(uint64(overhead)))
	fmt.Fprintf(os.Stdout, "free cells idle      : %v\n", free)
}

type allocated struct {
	ptr  unsafe.Pointer
	size int64
}
