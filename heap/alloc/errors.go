package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize indicates a non-positive (or unrepresentable) request size.
	ErrInvalidSize = errors.New("alloc: invalid size")

	// ErrNoSpace indicates that no free block large enough was found and the
	// arena could not be grown to provide one.
	ErrNoSpace = errors.New("alloc: no free block large enough")

	// ErrLimit indicates growth was refused because it would exceed the
	// configured arena ceiling. It matches ErrNoSpace under errors.Is.
	ErrLimit = fmt.Errorf("%w: arena limit reached", ErrNoSpace)

	// ErrGrowFail indicates the growth primitive failed or returned an
	// unusable increment.
	ErrGrowFail = errors.New("alloc: grow failed")

	// ErrNotAllocated indicates a handle that does not name a live block:
	// double free, a stale handle, or a handle from another allocator.
	ErrNotAllocated = errors.New("alloc: block not allocated")

	// ErrClosed indicates the allocator was used after Close.
	ErrClosed = errors.New("alloc: allocator closed")

	// ErrInvalidConfig indicates a configuration value out of range.
	ErrInvalidConfig = errors.New("alloc: invalid config")
)
