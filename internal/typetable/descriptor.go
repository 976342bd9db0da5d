package typetable

// MaxNameLength bounds type and field names; longer names are truncated by
// the reifier before they reach a descriptor.
const MaxNameLength = 128

// nameBytes is the wire width of a name: MaxNameLength plus the NUL.
const nameBytes = MaxNameLength + 1

// Field is one field within a type descriptor. Offset is overloaded by
// format: byte offset within the containing type for struct members,
// element count for array descriptors, total byte size for unions.
// BaseTypeIndex indexes the Type Table for pointer bases, array element
// descriptors and nested structs; for scalar fields it carries the scalar
// format as a sentinel.
type Field struct {
	Name          string
	Format        Format
	Offset        int32
	BaseTypeIndex int32
}

// Descriptor is the reified description of one source type. Scalars,
// pointers, arrays, unions, enumerations and voids carry exactly one Field;
// structs carry one per source field in declaration order.
type Descriptor struct {
	Name   string
	Fields []Field
}

// QuantFields returns the wire field count; every descriptor has at least
// one field.
func (d *Descriptor) QuantFields() int32 {
	return int32(len(d.Fields))
}

// Table is an ordered sequence of descriptors; a type index is a position
// in this sequence. Immutable after construction.
type Table []Descriptor

// NoIndex marks a type the engine could not resolve to a table position;
// variables with this index are silently skipped.
const NoIndex int32 = 50000
