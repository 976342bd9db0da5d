package ir

// Byte layout of IR types. Natural alignment, 64-bit pointers; the layout
// must agree with what the downstream code generator produces, since the
// runtime reads raw memory at these offsets.

// SizeOf returns the allocation size of a type in bytes.
func (in *Interner) SizeOf(id TypeID) int64 {
	t, ok := in.Lookup(id)
	if !ok {
		return 0
	}
	switch t.Kind {
	case KindVoid:
		return 0
	case KindInt:
		return int64(t.Bits / 8)
	case KindFloat:
		return 4
	case KindDouble:
		return 8
	case KindPointer:
		return 8
	case KindArray:
		return int64(t.Count) * in.SizeOf(t.Elem)
	case KindUnion:
		return int64(t.Count)
	case KindStruct:
		size, _ := in.structLayout(t)
		return size
	}
	return 0
}

// AlignOf returns the natural alignment of a type in bytes.
func (in *Interner) AlignOf(id TypeID) int64 {
	t, ok := in.Lookup(id)
	if !ok {
		return 1
	}
	switch t.Kind {
	case KindInt:
		return int64(t.Bits / 8)
	case KindFloat:
		return 4
	case KindDouble, KindPointer:
		return 8
	case KindArray:
		return in.AlignOf(t.Elem)
	case KindStruct:
		_, align := in.structLayout(t)
		return align
	case KindUnion:
		return 8
	}
	return 1
}

// FieldOffset returns the byte offset of field i within a struct type.
func (in *Interner) FieldOffset(id TypeID, i int) int64 {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindStruct {
		return 0
	}
	info := in.structs[t.Payload]
	var off int64
	for j, f := range info.Fields {
		a := in.AlignOf(f.Type)
		off = alignUp(off, a)
		if j == i {
			return off
		}
		off += in.SizeOf(f.Type)
	}
	return off
}

func (in *Interner) structLayout(t Type) (size, align int64) {
	info := in.structs[t.Payload]
	align = 1
	for _, f := range info.Fields {
		a := in.AlignOf(f.Type)
		if a > align {
			align = a
		}
		size = alignUp(size, a) + in.SizeOf(f.Type)
	}
	size = alignUp(size, align)
	if size == 0 {
		size = 1
	}
	return size, align
}

func alignUp(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}
