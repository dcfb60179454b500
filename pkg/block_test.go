package pkg

import "testing"

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int
	}{
		{0, 2, 0},
		{1, 2, 2},
		{2, 2, 2},
		{511, 2, 512},
		{9, 8, 16},
		{16, 8, 16},
	}

	for _, tt := range tests {
		if got := AlignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestNewStagingBuffer(t *testing.T) {
	for i := 0; i < 32; i++ {
		buf := NewStagingBuffer()
		if len(buf) != BlockSize {
			t.Fatalf("len = %d, want %d", len(buf), BlockSize)
		}
		if cap(buf) != BlockSize {
			t.Fatalf("cap = %d, want %d", cap(buf), BlockSize)
		}
		if !IsAligned(buf, DMAAlignment) {
			t.Fatalf("staging buffer not %d-byte aligned", DMAAlignment)
		}
	}
}

func TestIsAligned(t *testing.T) {
	buf := NewStagingBuffer()
	if !IsAligned(nil, DMAAlignment) {
		t.Error("nil slice should be aligned")
	}
	if IsAligned(buf[1:], DMAAlignment) {
		t.Error("offset slice should not be aligned")
	}
	if !IsAligned(buf[8:], DMAAlignment) {
		t.Error("slice at +8 should be aligned")
	}
}
