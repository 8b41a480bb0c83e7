package format

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
//	Align8(16) = 16
func Align8(n int) int {
	return (n + AlignmentMask) & ^AlignmentMask
}

// Align8U64 is the uint64 version of Align8.
func Align8U64(n uint64) uint64 {
	return (n + AlignmentMask) &^ AlignmentMask
}

// AlignDown8U64 returns n truncated to an 8-byte boundary.
func AlignDown8U64(n uint64) uint64 {
	return n &^ AlignmentMask
}

// AlignUp returns n aligned up to a multiple of align, which must be a power of two.
//
//	AlignUp(1, 4096)    = 4096
//	AlignUp(4096, 4096) = 4096
//	AlignUp(4097, 4096) = 8192
func AlignUp(n, align int) int {
	return (n + align - 1) & ^(align - 1)
}

// IsAligned8 reports whether n sits on an 8-byte boundary.
func IsAligned8(n uint64) bool {
	return n&AlignmentMask == 0
}
