package format

import "encoding/binary"

// PutU64 writes a uint64 value to the buffer at the specified offset in little-endian format.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// ReadU64 reads a uint64 value from the buffer at the specified offset in little-endian format.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}

// PutHeader writes both header fields into h, which must be HeaderSize bytes.
func PutHeader(h []byte, size, next uint64) {
	PutU64(h, SizeOffset, size)
	PutU64(h, NextOffset, next)
}

// ReadHeader decodes both header fields from h.
func ReadHeader(h []byte) (size, next uint64) {
	return ReadU64(h, SizeOffset), ReadU64(h, NextOffset)
}
