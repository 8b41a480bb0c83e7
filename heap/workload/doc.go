// Package workload parses and generates allocator workloads and runs them
// against any alloc.Allocator.
//
// A workload script is line oriented:
//
//	# three blocks, release the middle one
//	config best 1M
//	alloc a 100
//	alloc b 200
//	alloc c 100
//	free b
//	stats
//	verify
//
// Random produces the same shape of script from a seed, so a workload found
// by heapctl sim can be written out and replayed with heapctl run.
package workload
