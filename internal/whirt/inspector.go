package whirt

import (
	"fmt"
	"io"
	"unsafe"

	"whiro/internal/typetable"
)

// The composite inspector: a type-directed renderer over reified types.
// Every line has the form "NAME SCOPE CALL : VALUE".

func isPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}

// InspectData renders an object of the given descriptor at a raw address,
// one line per field.
func (c *Context) InspectData(w io.Writer, data unsafe.Pointer, desc *typetable.Descriptor, name, funcName string, call int32) {
	for i := range desc.Fields {
		field := &desc.Fields[i]
		fullName := name
		if field.Name != "" {
			fullName = name + "-" + field.Name
		}
		p := unsafe.Add(data, uintptr(field.Offset))

		switch field.Format {
		case typetable.FormatDouble:
			fmt.Fprintf(w, "%s %s %d : %.2f\n", fullName, funcName, call, *(*float64)(p))
		case typetable.FormatFloat:
			fmt.Fprintf(w, "%s %s %d : %.2f\n", fullName, funcName, call, *(*float32)(p))
		case typetable.FormatShort:
			fmt.Fprintf(w, "%s %s %d : %d\n", fullName, funcName, call, *(*int16)(p))
		case typetable.FormatLong, typetable.FormatLongLong:
			fmt.Fprintf(w, "%s %s %d : %d\n", fullName, funcName, call, *(*int64)(p))
		case typetable.FormatInt:
			fmt.Fprintf(w, "%s %s %d : %d\n", fullName, funcName, call, *(*int32)(p))
		case typetable.FormatChar:
			// Non-printable bytes render as '@', the way binary dumps do.
			b := *(*byte)(p)
			if isPrintable(b) {
				fmt.Fprintf(w, "%s %s %d : %c\n", fullName, funcName, call, b)
			} else {
				fmt.Fprintf(w, "%s %s %d : @\n", fullName, funcName, call)
			}
		case typetable.FormatUChar:
			b := *(*byte)(p)
			if isPrintable(b) {
				fmt.Fprintf(w, "%s %s %d : %d\n", fullName, funcName, call, b)
			} else {
				fmt.Fprintf(w, "%s %s %d : @\n", fullName, funcName, call)
			}
		case typetable.FormatUShort:
			fmt.Fprintf(w, "%s %s %d : %d\n", fullName, funcName, call, *(*uint16)(p))
		case typetable.FormatULong, typetable.FormatULongLong:
			fmt.Fprintf(w, "%s %s %d : %d\n", fullName, funcName, call, *(*uint64)(p))
		case typetable.FormatUInt:
			fmt.Fprintf(w, "%s %s %d : %d\n", fullName, funcName, call, *(*uint32)(p))

		case typetable.FormatPointer:
			if c.Precise {
				next := *(*uintptr)(p)
				c.TrackPointer(w, next, field.BaseTypeIndex, fullName, funcName, call)
			} else {
				fmt.Fprintf(w, "%s %s %d : pointer to %s\n", name, funcName, call, c.typeNameAt(field.BaseTypeIndex))
			}

		case typetable.FormatVoid:
			fmt.Fprintf(w, "%s %s %d : void\n", fullName, funcName, call)

		case typetable.FormatScalarArray:
			// The array descriptor's single field carries the element
			// format and, in Offset, the element count.
			if elem := c.descriptor(field.BaseTypeIndex); elem != nil && len(elem.Fields) > 0 {
				count := int64(elem.Fields[0].Offset)
				h := ComputeHashcode(p, count, count, elem.Fields[0].Format)
				fmt.Fprintf(w, "%s %s %d : %d\n", fullName, funcName, call, h)
			}

		case typetable.FormatUnion:
			c.InspectUnion(w, data, int64(field.Offset), name, funcName, call)

		case typetable.FormatStruct:
			if nested := c.descriptor(field.BaseTypeIndex); nested != nil {
				c.InspectData(w, p, nested, name, funcName, call)
			}

		case typetable.FormatOpaque:
			fmt.Fprintf(w, "%s %s %d : non-inspectable value\n", fullName, funcName, call)

		default:
			fmt.Fprintf(w, "%s %s %d : non-inspectable value\n", fullName, funcName, call)
		}
	}
}

// InspectUnion bit-dumps a union: each byte as a decimal integer in
// ascending address order, no separator.
func (c *Context) InspectUnion(w io.Writer, data unsafe.Pointer, size int64, name, funcName string, call int32) {
	fmt.Fprintf(w, "%s %s %d : ", name, funcName, call)
	for i := int64(0); i < size; i++ {
		fmt.Fprintf(w, "%d", *(*int8)(unsafe.Add(data, uintptr(i))))
	}
	fmt.Fprintln(w)
}

// InspectStruct renders a struct-typed object by table index.
func (c *Context) InspectStruct(w io.Writer, data unsafe.Pointer, typeIndex int32, name, funcName string, call int32) {
	if desc := c.descriptor(typeIndex); desc != nil {
		c.InspectData(w, data, desc, name, funcName, call)
	}
}

// InspectScalar renders a register-resident scalar from its raw bits.
// Scalarized marks aggregates that optimisation reduced to one scalar.
func (c *Context) InspectScalar(w io.Writer, bits uint64, format typetable.Format, name, funcName string, call int32, scalarized bool) {
	tag := ""
	if scalarized {
		tag = " (scalarized)"
	}
	switch format {
	case typetable.FormatDouble:
		fmt.Fprintf(w, "%s %s %d%s : %.2f\n", name, funcName, call, tag, *(*float64)(unsafe.Pointer(&bits)))
	case typetable.FormatFloat:
		// The instrumenter widens floats to double before the call.
		fmt.Fprintf(w, "%s %s %d%s : %.2f\n", name, funcName, call, tag, *(*float64)(unsafe.Pointer(&bits)))
	case typetable.FormatShort:
		fmt.Fprintf(w, "%s %s %d%s : %d\n", name, funcName, call, tag, int16(bits))
	case typetable.FormatLong, typetable.FormatLongLong:
		fmt.Fprintf(w, "%s %s %d%s : %d\n", name, funcName, call, tag, int64(bits))
	case typetable.FormatInt:
		fmt.Fprintf(w, "%s %s %d%s : %d\n", name, funcName, call, tag, int32(bits))
	case typetable.FormatChar:
		b := byte(bits)
		if isPrintable(b) {
			fmt.Fprintf(w, "%s %s %d%s : %c\n", name, funcName, call, tag, b)
		} else {
			fmt.Fprintf(w, "%s %s %d%s : @\n", name, funcName, call, tag)
		}
	case typetable.FormatUChar:
		b := byte(bits)
		if isPrintable(b) {
			fmt.Fprintf(w, "%s %s %d%s : %d\n", name, funcName, call, tag, b)
		} else {
			fmt.Fprintf(w, "%s %s %d%s : @\n", name, funcName, call, tag)
		}
	case typetable.FormatUShort:
		fmt.Fprintf(w, "%s %s %d%s : %d\n", name, funcName, call, tag, uint16(bits))
	case typetable.FormatULong, typetable.FormatULongLong:
		fmt.Fprintf(w, "%s %s %d%s : %d\n", name, funcName, call, tag, bits)
	case typetable.FormatUInt:
		fmt.Fprintf(w, "%s %s %d%s : %d\n", name, funcName, call, tag, uint32(bits))
	default:
		fmt.Fprintf(w, "%s %s %d%s : non-inspectable value\n", name, funcName, call, tag)
	}
}
