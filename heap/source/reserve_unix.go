//go:build linux || darwin || freebsd

package source

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// reserveRegion maps n bytes of anonymous, private, zero-filled memory.
func reserveRegion(n int) ([]byte, func() error, error) {
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("source: reserve %d bytes: %w", n, err)
	}
	release := func() error {
		err := unix.Munmap(mem)
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return err
	}
	return mem, release, nil
}

func pageSize() int {
	return unix.Getpagesize()
}
