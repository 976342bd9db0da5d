package reify

import (
	"fmt"

	"fortio.org/safecast"

	"whiro/internal/debuginfo"
	"whiro/internal/diag"
	"whiro/internal/ir"
	"whiro/internal/typetable"
)

// Index resolves debug-type nodes and IR types to Type Table positions.
// It is the compile-time side table the driver consults when emitting
// runtime calls; the table itself is what the runtime loads.
type Index struct {
	byNode map[debuginfo.Type]int32
	names  []string // by table index
}

// IndexOf resolves a debug node to its table index by identity.
func (ix *Index) IndexOf(t debuginfo.Type) (int32, bool) {
	i, ok := ix.byNode[t]
	return i, ok
}

// Len returns the table size.
func (ix *Index) Len() int {
	return len(ix.names)
}

// Name returns the reified name at a table index.
func (ix *Index) Name(i int32) string {
	if i < 0 || int(i) >= len(ix.names) {
		return ""
	}
	return ix.names[i]
}

// Reify walks the module's debug types and produces the Type Table plus the
// side index. Unknown formats are reported and written as non-inspectable.
func Reify(m *ir.Module, r diag.Reporter) (typetable.Table, *Index) {
	fd := NewFinder(m)
	ix := &Index{byNode: make(map[debuginfo.Type]int32)}

	// First pass assigns dense indices so descriptors can reference types
	// declared later (a list node pointing at itself needs its own index).
	var indexed []debuginfo.Type
	for _, t := range fd.Types() {
		if !ShouldProcess(t) {
			continue
		}
		n, err := safecast.Conv[int32](len(indexed))
		if err != nil {
			panic(fmt.Errorf("type table overflow: %w", err))
		}
		ix.byNode[t] = n
		ix.names = append(ix.names, Truncate(debuginfo.TypeName(t)))
		indexed = append(indexed, t)
	}

	table := make(typetable.Table, 0, len(indexed))
	for i, t := range indexed {
		table = append(table, makeDescriptor(t, ix.names[i], ix, r))
	}
	return table, ix
}

func makeDescriptor(t debuginfo.Type, name string, ix *Index, r diag.Reporter) typetable.Descriptor {
	format := FormatOf(t)
	if format == typetable.FormatOpaque {
		diag.ReportWarning(r, diag.ReifyUnknownFormat, diag.Locus{Var: name},
			"unknown debug format; type written as non-inspectable")
	}
	base := int32(format)

	switch n := t.(type) {
	case nil:
	case *debuginfo.BasicType:
	case *debuginfo.DerivedType:
		// Pointer, typedef or const: the base type index references the
		// referent's descriptor when it has one.
		if i, ok := ix.byNode[n.Base]; ok {
			base = i
		}
	case *debuginfo.CompositeType:
		switch n.Tag {
		case debuginfo.TagArrayType:
			return arrayDescriptor(n, name, ix)
		case debuginfo.TagStructureType:
			return structDescriptor(n, name, ix, r)
		case debuginfo.TagUnionType:
			size, err := safecast.Conv[int32](n.Bits / 8)
			if err != nil {
				size = 0
			}
			return typetable.Descriptor{Name: name, Fields: []typetable.Field{
				{Format: typetable.FormatUnion, Offset: size, BaseTypeIndex: base},
			}}
		case debuginfo.TagEnumerationType:
			return typetable.Descriptor{Name: name, Fields: []typetable.Field{
				{Format: typetable.FormatInt, BaseTypeIndex: int32(typetable.FormatInt)},
			}}
		}
	}

	return typetable.Descriptor{Name: name, Fields: []typetable.Field{
		{Format: format, BaseTypeIndex: base},
	}}
}

// arrayDescriptor encodes an array as a single synthetic field: the element
// format in Format, the element count across all dimensions in Offset (0 when
// a bound is not constant), and as base the element format sentinel for
// scalar elements or the element's descriptor index when it has one. The
// count-in-Offset overload is part of the on-disk contract.
func arrayDescriptor(n *debuginfo.CompositeType, name string, ix *Index) typetable.Descriptor {
	elemFormat := FormatOf(n.Base)
	var count int64 = 0
	if len(n.Subranges) > 0 && n.Subranges[0].HasCount {
		count = totalElements(n)
	}
	c, err := safecast.Conv[int32](count)
	if err != nil {
		c = 0
	}
	base := int32(elemFormat)
	if i, ok := ix.byNode[n.Base]; ok && !elemFormat.IsScalar() {
		base = i
	}
	return typetable.Descriptor{Name: name, Fields: []typetable.Field{
		{Format: elemFormat, Offset: c, BaseTypeIndex: base},
	}}
}

func totalElements(n *debuginfo.CompositeType) int64 {
	total := int64(1)
	for _, s := range n.Subranges {
		if !s.HasCount {
			return 0
		}
		total *= s.Count
	}
	return total
}

func structDescriptor(n *debuginfo.CompositeType, name string, ix *Index, r diag.Reporter) typetable.Descriptor {
	d := typetable.Descriptor{Name: name, Fields: make([]typetable.Field, 0, len(n.Members))}
	for _, member := range n.Members {
		fieldName := Truncate(member.TypeName)
		format := FormatOf(member.Base)
		base := int32(format)
		switch {
		case !ShouldProcess(member.Base):
			format = typetable.FormatOpaque
			base = int32(typetable.FormatOpaque)
		default:
			base = memberBaseIndex(member.Base, format, ix)
		}
		offBytes, err := safecast.Conv[int32](member.OffsetBits / 8)
		if err != nil {
			diag.ReportWarning(r, diag.ReifySkippedType, diag.Locus{Var: fieldName},
				"member offset out of range; member written as non-inspectable")
			format = typetable.FormatOpaque
			base = int32(typetable.FormatOpaque)
			offBytes = 0
		}
		d.Fields = append(d.Fields, typetable.Field{
			Name:          fieldName,
			Format:        format,
			Offset:        offBytes,
			BaseTypeIndex: base,
		})
	}
	if len(d.Fields) == 0 {
		d.Fields = []typetable.Field{{Format: typetable.FormatOpaque, BaseTypeIndex: int32(typetable.FormatOpaque)}}
	}
	return d
}

// memberBaseIndex resolves the BaseTypeIndex of a struct member: the
// pointee for pointers, the underlying type for typedefs, the array
// descriptor for scalar-array members, the nested descriptor for struct and
// union members, the scalar format sentinel otherwise.
func memberBaseIndex(t debuginfo.Type, format typetable.Format, ix *Index) int32 {
	base := int32(format)
	switch b := t.(type) {
	case *debuginfo.DerivedType:
		if i, ok := ix.byNode[b.Base]; ok {
			base = i
		}
	case *debuginfo.CompositeType:
		switch b.Tag {
		case debuginfo.TagArrayType:
			if _, isBasic := b.Base.(*debuginfo.BasicType); isBasic {
				if i, ok := ix.byNode[t]; ok {
					base = i
				}
			}
		case debuginfo.TagStructureType, debuginfo.TagUnionType:
			if i, ok := ix.byNode[t]; ok {
				base = i
			}
		}
	}
	return base
}
