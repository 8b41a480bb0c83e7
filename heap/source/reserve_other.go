//go:build !(linux || darwin || freebsd)

package source

import "github.com/joshuapare/heapkit/internal/format"

// reserveRegion allocates the range on the Go heap when mmap is not available.
func reserveRegion(n int) ([]byte, func() error, error) {
	return make([]byte, n), func() error { return nil }, nil
}

func pageSize() int {
	return format.PageSize
}
