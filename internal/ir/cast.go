package ir

// CastOp enumerates conversion opcodes.
type CastOp uint8

const (
	CastBitcast CastOp = iota
	CastTrunc
	CastZExt
	CastFPTrunc
	CastFPExt
	CastFPToSI
	CastSIToFP
	CastPtrToInt
	CastIntToPtr
)

// CastOpcode selects the conversion from one type to another, mirroring the
// decision table a typed IR uses for numeric and pointer casts. ok is false
// when no valid single cast exists (aggregates, void); liveness repair drops
// definitions whose cast is invalid.
func CastOpcode(in *Interner, from, to TypeID) (CastOp, bool) {
	if from == to {
		return CastBitcast, true
	}
	ft, okF := in.Lookup(from)
	tt, okT := in.Lookup(to)
	if !okF || !okT {
		return 0, false
	}
	switch ft.Kind {
	case KindInt:
		switch tt.Kind {
		case KindInt:
			if ft.Bits > tt.Bits {
				return CastTrunc, true
			}
			return CastZExt, true
		case KindFloat, KindDouble:
			return CastSIToFP, true
		case KindPointer:
			return CastIntToPtr, true
		}
	case KindFloat, KindDouble:
		switch tt.Kind {
		case KindInt:
			return CastFPToSI, true
		case KindFloat, KindDouble:
			if in.SizeOf(from) > in.SizeOf(to) {
				return CastFPTrunc, true
			}
			return CastFPExt, true
		}
	case KindPointer:
		switch tt.Kind {
		case KindPointer:
			return CastBitcast, true
		case KindInt:
			return CastPtrToInt, true
		}
	}
	return 0, false
}
