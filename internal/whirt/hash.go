package whirt

import (
	"unsafe"

	"whiro/internal/typetable"
)

// FpPrecision scales floating values before they enter the hash fold.
const FpPrecision = 100

// encode reads one element and widens it for the fold. Integers encode as
// themselves; floats truncate to int and, when the truncation is non-zero,
// scale by FpPrecision. Truncation happens before scaling; changing that
// order changes every float digest ever written.
func encode(p unsafe.Pointer, format typetable.Format) int64 {
	switch format {
	case typetable.FormatDouble:
		v := int32(*(*float64)(p))
		if v == 0 {
			return 0
		}
		return int64(v) * FpPrecision
	case typetable.FormatFloat:
		v := int32(*(*float32)(p))
		if v == 0 {
			return 0
		}
		return int64(v) * FpPrecision
	case typetable.FormatShort:
		return int64(*(*int16)(p))
	case typetable.FormatLong, typetable.FormatLongLong:
		return *(*int64)(p)
	case typetable.FormatInt:
		return int64(*(*int32)(p))
	case typetable.FormatChar:
		return int64(*(*int8)(p))
	case typetable.FormatUChar:
		return int64(*(*uint8)(p))
	case typetable.FormatUShort:
		return int64(*(*uint16)(p))
	case typetable.FormatULong, typetable.FormatULongLong:
		return int64(*(*uint64)(p))
	case typetable.FormatUInt:
		return int64(*(*uint32)(p))
	}
	return 0
}

// ComputeHashcode1D folds a one-dimensional scalar run into a digest:
// acc := 31*acc + encode(elem), starting from 1. The accumulator wraps at
// 32 bits so digests agree across snapshot producers.
func ComputeHashcode1D(arr unsafe.Pointer, size int64, format typetable.Format) int32 {
	if !format.IsScalar() {
		return 0
	}
	elem := int64(format.Size())
	acc := int32(1)
	for i := int64(0); i < size; i++ {
		p := unsafe.Add(arr, uintptr(i*elem))
		acc = int32(31*int64(acc) + encode(p, format))
	}
	return acc
}

// ComputeHashcode digests an N-dimensional scalar array: the sum of the
// one-dimensional digests of each outermost stride. Total elements count
// across all dimensions; step is the stride. Both entry points are total
// and pure; the digest is for equivalence checks, not cryptographic use.
func ComputeHashcode(arr unsafe.Pointer, totalElements, step int64, format typetable.Format) int32 {
	if !format.IsScalar() || step <= 0 {
		return 0
	}
	elem := int64(format.Size())
	var h int32
	for i := int64(0); i < totalElements; i += step {
		p := unsafe.Add(arr, uintptr(i*elem))
		h = int32(int64(h) + int64(ComputeHashcode1D(p, step, format)))
	}
	return h
}
