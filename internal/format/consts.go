// Package format describes the in-band block layout shared by heapkit
// allocators. Every block, free or allocated, starts with a fixed header
// stored in the arena bytes themselves:
//
//	0x00  size  uint64  total block bytes including this header (8-byte aligned)
//	0x08  next  uint64  address of the next free block (free list only)
//
// All fields are little-endian.
package format

const (
	// HeaderSize is the size of the block header in bytes.
	HeaderSize = 16

	// SizeOffset is the offset of the size field inside a header.
	SizeOffset = 0x00

	// NextOffset is the offset of the free-list link inside a header.
	NextOffset = 0x08

	// Alignment is the block and payload alignment.
	Alignment = 8

	// AlignmentMask is Alignment-1.
	AlignmentMask = Alignment - 1

	// MinPayload is the smallest payload a free remainder must be able to
	// hold before a block is split.
	MinPayload = 8

	// MinSplitRemainder is the smallest leftover that becomes its own free block.
	MinSplitRemainder = HeaderSize + MinPayload

	// DefaultIncrement is the number of bytes requested from the growth
	// primitive per arena growth step.
	DefaultIncrement = 64 << 10

	// PageSize is the page size assumed when the platform cannot report one.
	PageSize = 4096
)
