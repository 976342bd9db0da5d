package debuginfo

// TypeName builds the printable name of a debug type the way it appears in
// Type Table descriptors: "pointer to int", "struct Node", "array of double".
func TypeName(t Type) string {
	if t == nil {
		return "void"
	}
	switch n := t.(type) {
	case *BasicType:
		return n.TypeName
	case *DerivedType:
		switch n.Tag {
		case TagPointerType:
			return "pointer to " + TypeName(n.Base)
		case TagConstType:
			return "const " + TypeName(n.Base)
		case TagTypedef:
			return n.TypeName
		}
		return n.TypeName
	case *CompositeType:
		switch n.Tag {
		case TagArrayType:
			return "array of " + TypeName(n.Base)
		case TagStructureType:
			return "struct " + n.TypeName
		case TagUnionType:
			return "union " + n.TypeName
		case TagEnumerationType:
			return "enum " + n.TypeName
		}
		return n.TypeName
	case *SubroutineType:
		return "subroutine"
	}
	return ""
}
