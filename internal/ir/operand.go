package ir

// OperandKind distinguishes operand sources.
type OperandKind uint8

const (
	// OperandInvalid is the zero operand.
	OperandInvalid OperandKind = iota
	// OperandValue references an SSA value of the containing function.
	OperandValue
	// OperandConst is an immediate constant.
	OperandConst
	// OperandGlobal is the address of a module global.
	OperandGlobal
)

// Operand is a use of a value, constant or global address.
type Operand struct {
	Kind  OperandKind
	Type  TypeID
	Value ValueID
	Const Const
	Sym   string
}

// ValueOf builds an operand referencing an SSA value.
func ValueOf(v ValueID, t TypeID) Operand {
	return Operand{Kind: OperandValue, Value: v, Type: t}
}

// GlobalOf builds an operand carrying the address of a global; ptrTy is
// the pointer type of that address.
func GlobalOf(sym string, ptrTy TypeID) Operand {
	return Operand{Kind: OperandGlobal, Sym: sym, Type: ptrTy}
}

// ConstKind distinguishes constant kinds.
type ConstKind uint8

const (
	// ConstInvalid is the zero constant.
	ConstInvalid ConstKind = iota
	// ConstInt is an integer immediate.
	ConstInt
	// ConstFloat is a floating immediate.
	ConstFloat
	// ConstNull is the zero value of its type.
	ConstNull
	// ConstUndef is an undefined value; debug observations of undef are
	// dropped from traces.
	ConstUndef
	// ConstStr is a pointer to an interned NUL-terminated string.
	ConstStr
)

// Const is an immediate.
type Const struct {
	Kind  ConstKind
	Type  TypeID
	Int   int64
	Float float64
	Str   string
}

// IntConst builds an integer immediate.
func IntConst(v int64, t TypeID) Operand {
	return Operand{Kind: OperandConst, Type: t, Const: Const{Kind: ConstInt, Type: t, Int: v}}
}

// FloatConst builds a floating immediate.
func FloatConst(v float64, t TypeID) Operand {
	return Operand{Kind: OperandConst, Type: t, Const: Const{Kind: ConstFloat, Type: t, Float: v}}
}

// NullConst builds the zero value of t.
func NullConst(t TypeID) Operand {
	return Operand{Kind: OperandConst, Type: t, Const: Const{Kind: ConstNull, Type: t}}
}

// UndefConst builds an undefined value of t.
func UndefConst(t TypeID) Operand {
	return Operand{Kind: OperandConst, Type: t, Const: Const{Kind: ConstUndef, Type: t}}
}

// StrConst builds a pointer to an interned string.
func StrConst(s string, ptrTy TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ptrTy, Const: Const{Kind: ConstStr, Type: ptrTy, Str: s}}
}

// IsNullOrUndef reports whether the operand is a null or undefined
// constant. Traces drop such observations.
func (o Operand) IsNullOrUndef() bool {
	if o.Kind != OperandConst {
		return false
	}
	switch o.Const.Kind {
	case ConstNull, ConstUndef:
		return true
	case ConstInt:
		return o.Const.Int == 0
	case ConstFloat:
		return o.Const.Float == 0
	}
	return false
}
