package reify

import (
	"strings"

	"whiro/internal/ir"
	"whiro/internal/typetable"
)

// IRTypeName builds the printable name of an IR type, matching the naming
// the reifier derives from debug metadata so the two can be cross-matched.
// Integer widths map onto the default C names.
func IRTypeName(in *ir.Interner, id ir.TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return ""
	}
	switch t.Kind {
	case ir.KindVoid:
		return "void"
	case ir.KindInt:
		switch t.Bits {
		case 8:
			return "char"
		case 16:
			return "short"
		case 32:
			return "int"
		case 64:
			return "long"
		}
		return "int"
	case ir.KindFloat:
		return "float"
	case ir.KindDouble:
		return "double"
	case ir.KindPointer:
		return "pointer to " + IRTypeName(in, t.Elem)
	case ir.KindArray:
		return "array of " + IRTypeName(in, t.Elem)
	case ir.KindStruct:
		info, _ := in.StructInfo(id)
		if info == nil || info.Name == "" {
			return "Literal or opaque struct"
		}
		return "struct " + info.Name
	case ir.KindUnion:
		info, _ := in.StructInfo(id)
		if info == nil || info.Name == "" {
			return "Literal or opaque struct"
		}
		return "union " + info.Name
	}
	return ""
}

// IndexForIRType resolves an IR type to its Type Table position by name.
// The IR erases C-level signedness and the long/long-long split, so an
// exact-name miss falls back to matching the unsigned variant and, for
// "long", any long-bearing entry. NoIndex means the variable cannot be
// inspected and is silently skipped.
func (ix *Index) IndexForIRType(in *ir.Interner, id ir.TypeID) int32 {
	name := IRTypeName(in, id)
	if name == "" || name == "Literal or opaque struct" {
		return typetable.NoIndex
	}
	for i, n := range ix.names {
		if n == name {
			return int32(i)
		}
	}
	for i, n := range ix.names {
		if rest, ok := strings.CutPrefix(n, "unsigned "); ok && rest == name {
			return int32(i)
		}
		if name == "long" && strings.Contains(n, "long") {
			return int32(i)
		}
	}
	return typetable.NoIndex
}
