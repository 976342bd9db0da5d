package whirt

import (
	"testing"
	"unsafe"

	"whiro/internal/typetable"
)

func TestHashcode1DInts(t *testing.T) {
	arr := []int32{1, 2, 3}
	got := ComputeHashcode1D(unsafe.Pointer(&arr[0]), 3, typetable.FormatInt)
	// ((1*31+1)*31+2)*31+3
	if got != 30817 {
		t.Errorf("hash = %d, want 30817", got)
	}
}

// TestHashcodeZeroElements: zero-valued elements contribute 0 to the fold
// but still advance it.
func TestHashcodeZeroElements(t *testing.T) {
	arr := []int32{0, 0, 0}
	got := ComputeHashcode1D(unsafe.Pointer(&arr[0]), 3, typetable.FormatInt)
	if got != 29791 { // 31^3
		t.Errorf("hash = %d, want 29791", got)
	}
}

// TestHashcodeFloatPrecision: floats truncate to int first; only a
// non-zero truncation is scaled by FpPrecision.
func TestHashcodeFloatPrecision(t *testing.T) {
	arr := []float64{3.7}
	got := ComputeHashcode1D(unsafe.Pointer(&arr[0]), 1, typetable.FormatDouble)
	if got != 31+300 {
		t.Errorf("hash = %d, want %d", got, 31+300)
	}

	sub := []float64{0.5}
	got = ComputeHashcode1D(unsafe.Pointer(&sub[0]), 1, typetable.FormatDouble)
	if got != 31 {
		t.Errorf("sub-unit hash = %d, want 31", got)
	}

	f32 := []float32{2.25}
	got = ComputeHashcode1D(unsafe.Pointer(&f32[0]), 1, typetable.FormatFloat)
	if got != 31+200 {
		t.Errorf("float32 hash = %d, want %d", got, 31+200)
	}
}

// TestHashcodeND: the N-D digest is the sum of the per-stride 1-D digests.
func TestHashcodeND(t *testing.T) {
	arr := []int16{1, 2, 3, 4, 5, 6}
	want := ComputeHashcode1D(unsafe.Pointer(&arr[0]), 3, typetable.FormatShort) +
		ComputeHashcode1D(unsafe.Pointer(&arr[3]), 3, typetable.FormatShort)
	got := ComputeHashcode(unsafe.Pointer(&arr[0]), 6, 3, typetable.FormatShort)
	if got != want {
		t.Errorf("2-D hash = %d, want %d", got, want)
	}
}

// TestHashcodePure: same input, same digest.
func TestHashcodePure(t *testing.T) {
	arr := []uint64{7, 8, 9, 10}
	a := ComputeHashcode(unsafe.Pointer(&arr[0]), 4, 2, typetable.FormatULong)
	b := ComputeHashcode(unsafe.Pointer(&arr[0]), 4, 2, typetable.FormatULong)
	if a != b {
		t.Errorf("hash not pure: %d vs %d", a, b)
	}
}

func TestHashcodeAllFormats(t *testing.T) {
	// One element of each scalar format; the fold must read the right
	// width and sign.
	cases := []struct {
		format typetable.Format
		mem    func() unsafe.Pointer
		want   int32
	}{
		{typetable.FormatShort, func() unsafe.Pointer { v := int16(-2); return unsafe.Pointer(&v) }, 31 - 2},
		{typetable.FormatChar, func() unsafe.Pointer { v := int8(-1); return unsafe.Pointer(&v) }, 30},
		{typetable.FormatUChar, func() unsafe.Pointer { v := uint8(255); return unsafe.Pointer(&v) }, 31 + 255},
		{typetable.FormatUShort, func() unsafe.Pointer { v := uint16(9); return unsafe.Pointer(&v) }, 40},
		{typetable.FormatLong, func() unsafe.Pointer { v := int64(5); return unsafe.Pointer(&v) }, 36},
		{typetable.FormatULongLong, func() unsafe.Pointer { v := uint64(6); return unsafe.Pointer(&v) }, 37},
		{typetable.FormatUInt, func() unsafe.Pointer { v := uint32(7); return unsafe.Pointer(&v) }, 38},
	}
	for _, tc := range cases {
		if got := ComputeHashcode1D(tc.mem(), 1, tc.format); got != tc.want {
			t.Errorf("format %v: hash = %d, want %d", tc.format, got, tc.want)
		}
	}
}

// TestHashcodeNonScalar: non-scalar formats digest to zero rather than
// reading memory.
func TestHashcodeNonScalar(t *testing.T) {
	arr := []int32{1, 2, 3}
	if got := ComputeHashcode(unsafe.Pointer(&arr[0]), 3, 3, typetable.FormatStruct); got != 0 {
		t.Errorf("non-scalar hash = %d, want 0", got)
	}
}
