package pkg

import "unsafe"

// BlockSize is the staging buffer capacity and the unit of chunking in both
// directions.
const BlockSize = 512

// DMAAlignment is the required alignment of a staging buffer's first byte.
const DMAAlignment = 8

// DMALengthAlignment is the granularity of a cart DMA length.
const DMALengthAlignment = 2

// AlignUp rounds n up to a multiple of align, which must be a power of two.
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// IsAligned reports whether the first byte of p sits on an align boundary.
// An empty slice is considered aligned.
func IsAligned(p []byte, align int) bool {
	if len(p) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&p[0]))%uintptr(align) == 0
}

// NewStagingBuffer returns a BlockSize buffer whose first byte is
// DMAAlignment-aligned. The backing array is over-allocated and the working
// slice starts at the first aligned offset.
func NewStagingBuffer() []byte {
	raw := make([]byte, BlockSize+DMAAlignment)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) % DMAAlignment); rem != 0 {
		off = DMAAlignment - rem
	}
	return raw[off : off+BlockSize : off+BlockSize]
}
