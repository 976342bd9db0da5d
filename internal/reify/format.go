package reify

import (
	"whiro/internal/debuginfo"
	"whiro/internal/typetable"
)

// ShouldProcess decides whether a debug type gets a Type Table entry.
// Member nodes, subroutine types, incomplete composites and variable-length
// arrays are skipped; the rest of the graph is reified.
func ShouldProcess(t debuginfo.Type) bool {
	if t == nil {
		return true // void
	}
	switch n := t.(type) {
	case *debuginfo.BasicType:
		return true
	case *debuginfo.DerivedType:
		if n.Tag == debuginfo.TagMember || n.Tag == debuginfo.TagPtrToMemberType {
			return false
		}
		return ShouldProcess(n.Base)
	case *debuginfo.CompositeType:
		switch n.Tag {
		case debuginfo.TagArrayType:
			return len(n.Subranges) > 0 && n.Subranges[0].HasCount
		case debuginfo.TagEnumerationType:
			return true
		default:
			return len(n.Members) > 0
		}
	case *debuginfo.SubroutineType:
		return false
	}
	return true
}

// FormatOf maps a debug type to its Type Table format code. Basic types
// dispatch on the DWARF encoding, with float split from double by name and
// the signed/unsigned widths split the same way; enumerations report as
// int. Unknown shapes become the non-inspectable format.
func FormatOf(t debuginfo.Type) typetable.Format {
	if t == nil {
		return typetable.FormatVoid
	}
	switch n := t.(type) {
	case *debuginfo.BasicType:
		switch n.Enc {
		case debuginfo.EncFloat:
			if n.TypeName == "double" {
				return typetable.FormatDouble
			}
			return typetable.FormatFloat
		case debuginfo.EncSigned:
			switch n.TypeName {
			case "short":
				return typetable.FormatShort
			case "long int":
				return typetable.FormatLong
			case "long long int":
				return typetable.FormatLongLong
			default:
				return typetable.FormatInt
			}
		case debuginfo.EncSignedChar:
			return typetable.FormatChar
		case debuginfo.EncUnsignedChar:
			return typetable.FormatUChar
		case debuginfo.EncUnsigned:
			switch n.TypeName {
			case "unsigned short":
				return typetable.FormatUShort
			case "long unsigned int":
				return typetable.FormatULong
			case "long long unsigned int":
				return typetable.FormatULongLong
			default:
				return typetable.FormatUInt
			}
		case debuginfo.EncBoolean:
			return typetable.FormatUChar
		}
		return typetable.FormatOpaque
	case *debuginfo.DerivedType:
		switch n.Tag {
		case debuginfo.TagPointerType:
			return typetable.FormatPointer
		case debuginfo.TagTypedef, debuginfo.TagConstType:
			return FormatOf(n.Base)
		}
		return typetable.FormatOpaque
	case *debuginfo.CompositeType:
		switch n.Tag {
		case debuginfo.TagEnumerationType:
			return typetable.FormatInt
		case debuginfo.TagArrayType:
			return typetable.FormatScalarArray
		case debuginfo.TagUnionType:
			return typetable.FormatUnion
		case debuginfo.TagStructureType:
			return typetable.FormatStruct
		}
	}
	return typetable.FormatOpaque
}

// Truncate bounds a name to the Type Table limit, marking the cut.
func Truncate(name string) string {
	if len(name) > typetable.MaxNameLength {
		return name[:125] + "..."
	}
	return name
}
