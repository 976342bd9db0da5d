package ir

import (
	"fmt"

	"fortio.org/safecast"
)

// TypeID is a dense handle into a module's type interner.
type TypeID uint32

// NoTypeID is the invalid type handle.
const NoTypeID TypeID = 0

// TypeKind enumerates the shapes of IR types.
type TypeKind uint8

const (
	// KindInvalid is the reserved invalid type.
	KindInvalid TypeKind = iota
	// KindVoid is the unit of functions without a result.
	KindVoid
	// KindInt is an integer of Bits width. The IR carries no signedness;
	// interpretation lives in the debug metadata.
	KindInt
	// KindFloat is a 32-bit IEEE float.
	KindFloat
	// KindDouble is a 64-bit IEEE float.
	KindDouble
	// KindPointer points at Elem.
	KindPointer
	// KindArray is Count contiguous Elem values.
	KindArray
	// KindStruct is a nominal aggregate; Payload indexes the struct table.
	KindStruct
	// KindUnion is a nominal overlay; Count carries the byte size and
	// Payload indexes the struct table for the name.
	KindUnion
)

// Type is a structural descriptor interned into an Interner.
type Type struct {
	Kind    TypeKind
	Bits    uint32
	Elem    TypeID
	Count   uint32
	Payload uint32
}

// StructField is one member of a struct type.
type StructField struct {
	Name string
	Type TypeID
}

// StructInfo carries the nominal part of struct and union types.
type StructInfo struct {
	Name   string
	Fields []StructField
}

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	Float   TypeID
	Double  TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Struct and union types are nominal: two types with the same name intern to
// the same TypeID.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins
	structs  []StructInfo
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[typeKey]TypeID, 64),
	}
	in.structs = append(in.structs, StructInfo{}) // reserve 0 as invalid sentinel
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.I8 = in.Intern(Type{Kind: KindInt, Bits: 8})
	in.builtins.I16 = in.Intern(Type{Kind: KindInt, Bits: 16})
	in.builtins.I32 = in.Intern(Type{Kind: KindInt, Bits: 32})
	in.builtins.I64 = in.Intern(Type{Kind: KindInt, Bits: 64})
	in.builtins.Float = in.Intern(Type{Kind: KindFloat, Bits: 32})
	in.builtins.Double = in.Intern(Type{Kind: KindDouble, Bits: 64})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := in.keyOf(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[in.keyOf(t)] = id
	return id
}

// Pointer interns a pointer to elem.
func (in *Interner) Pointer(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindPointer, Bits: 64, Elem: elem})
}

// Array interns an array of n elems.
func (in *Interner) Array(elem TypeID, n uint32) TypeID {
	return in.Intern(Type{Kind: KindArray, Elem: elem, Count: n})
}

// Struct interns a nominal struct type. Interning the same name again
// returns the original TypeID; the first field list wins.
func (in *Interner) Struct(name string, fields []StructField) TypeID {
	key := typeKey{Kind: KindStruct, Name: name}
	if id, ok := in.index[key]; ok {
		return id
	}
	payload, err := safecast.Conv[uint32](len(in.structs))
	if err != nil {
		panic(fmt.Errorf("len(structs) overflow: %w", err))
	}
	in.structs = append(in.structs, StructInfo{Name: name, Fields: fields})
	return in.internRaw(Type{Kind: KindStruct, Payload: payload})
}

// SetStructFields installs the field list of a struct interned before its
// body was known (recursive types intern the name first).
func (in *Interner) SetStructFields(id TypeID, fields []StructField) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindStruct {
		return
	}
	in.structs[t.Payload].Fields = fields
}

// Union interns a nominal union type of size bytes.
func (in *Interner) Union(name string, size uint32) TypeID {
	key := typeKey{Kind: KindUnion, Name: name}
	if id, ok := in.index[key]; ok {
		return id
	}
	payload, err := safecast.Conv[uint32](len(in.structs))
	if err != nil {
		panic(fmt.Errorf("len(structs) overflow: %w", err))
	}
	in.structs = append(in.structs, StructInfo{Name: name})
	return in.internRaw(Type{Kind: KindUnion, Count: size, Payload: payload})
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("ir: invalid TypeID")
	}
	return tt
}

// StructInfo returns the nominal info of a struct or union type.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || (t.Kind != KindStruct && t.Kind != KindUnion) {
		return nil, false
	}
	return &in.structs[t.Payload], true
}

// Snapshot exposes the interner storage for serialisation.
func (in *Interner) Snapshot() ([]Type, []StructInfo) {
	return in.types, in.structs
}

// Restore rebuilds an interner from serialised storage.
func Restore(types []Type, structs []StructInfo) *Interner {
	in := NewInterner()
	for i := len(in.types); i < len(types); i++ {
		in.internRaw(types[i])
	}
	// internRaw appends struct payloads only through Struct/Union; restore
	// the nominal table wholesale.
	if len(structs) > len(in.structs) {
		in.structs = append(in.structs[:1], structs[1:]...)
	}
	for i, t := range in.types {
		if t.Kind == KindStruct || t.Kind == KindUnion {
			in.index[in.keyOf(t)] = TypeID(uint32(i))
		}
	}
	return in
}

func (in *Interner) keyOf(t Type) typeKey {
	key := typeKey{
		Kind:  t.Kind,
		Bits:  t.Bits,
		Elem:  t.Elem,
		Count: t.Count,
	}
	if t.Kind == KindStruct || t.Kind == KindUnion {
		key.Count = 0
		if int(t.Payload) < len(in.structs) {
			key.Name = in.structs[t.Payload].Name
		}
	}
	return key
}

type typeKey struct {
	Kind  TypeKind
	Bits  uint32
	Elem  TypeID
	Count uint32
	Name  string
}
