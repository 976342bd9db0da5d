package reify_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"whiro/internal/debuginfo"
	"whiro/internal/ir"
	"whiro/internal/reify"
	"whiro/internal/typetable"
)

func intType() *debuginfo.BasicType {
	return &debuginfo.BasicType{TypeName: "int", Enc: debuginfo.EncSigned, Bits: 32}
}

// listModule builds a module whose debug graph holds: int, struct Node
// (with a self-referential pointer), pointer to Node, a 10-int array, a
// union, an enum, a typedef and a subroutine type.
func listModule() (*ir.Module, map[string]debuginfo.Type) {
	intDI := intType()
	doubleDI := &debuginfo.BasicType{TypeName: "double", Enc: debuginfo.EncFloat, Bits: 64}
	floatDI := &debuginfo.BasicType{TypeName: "float", Enc: debuginfo.EncFloat, Bits: 32}
	ulongDI := &debuginfo.BasicType{TypeName: "long unsigned int", Enc: debuginfo.EncUnsigned, Bits: 64}

	nodeDI := &debuginfo.CompositeType{Tag: debuginfo.TagStructureType, TypeName: "Node", Bits: 128}
	nodePtrDI := &debuginfo.DerivedType{Tag: debuginfo.TagPointerType, Base: nodeDI, Bits: 64}
	nodeDI.Members = []*debuginfo.DerivedType{
		{Tag: debuginfo.TagMember, TypeName: "data", Base: intDI, Bits: 32, OffsetBits: 0},
		{Tag: debuginfo.TagMember, TypeName: "next", Base: nodePtrDI, Bits: 64, OffsetBits: 64},
	}

	arrDI := &debuginfo.CompositeType{Tag: debuginfo.TagArrayType, Base: intDI, Bits: 320,
		Subranges: []debuginfo.Subrange{{Count: 10, HasCount: true}}}
	vlaDI := &debuginfo.CompositeType{Tag: debuginfo.TagArrayType, Base: intDI,
		Subranges: []debuginfo.Subrange{{HasCount: false}}}
	unionDI := &debuginfo.CompositeType{Tag: debuginfo.TagUnionType, TypeName: "U", Bits: 32,
		Members: []*debuginfo.DerivedType{
			{Tag: debuginfo.TagMember, TypeName: "i", Base: intDI, Bits: 32},
		}}
	enumDI := &debuginfo.CompositeType{Tag: debuginfo.TagEnumerationType, TypeName: "Color", Bits: 32}
	typedefDI := &debuginfo.DerivedType{Tag: debuginfo.TagTypedef, TypeName: "myint", Base: intDI, Bits: 32}
	subDI := &debuginfo.SubroutineType{}
	emptyDI := &debuginfo.CompositeType{Tag: debuginfo.TagStructureType, TypeName: "Incomplete"}

	types := ir.NewInterner()
	m := &ir.Module{
		Name:       "list",
		SourceFile: "list.c",
		Types:      types,
		ExtraTypes: []debuginfo.Type{
			intDI, doubleDI, floatDI, ulongDI, nodeDI, nodePtrDI,
			arrDI, vlaDI, unionDI, enumDI, typedefDI, subDI, emptyDI,
		},
	}
	nodes := map[string]debuginfo.Type{
		"int": intDI, "double": doubleDI, "float": floatDI, "ulong": ulongDI,
		"node": nodeDI, "nodePtr": nodePtrDI, "arr": arrDI, "vla": vlaDI,
		"union": unionDI, "enum": enumDI, "typedef": typedefDI, "sub": subDI,
		"empty": emptyDI,
	}
	return m, nodes
}

func TestReifyIndicesAndFormats(t *testing.T) {
	m, nodes := listModule()
	table, ix := reify.Reify(m, nil)

	if len(table) != ix.Len() {
		t.Fatalf("table has %d descriptors, index %d", len(table), ix.Len())
	}

	// Skip set: subroutine types, VLAs, incomplete composites.
	for _, skip := range []string{"sub", "vla", "empty"} {
		if _, ok := ix.IndexOf(nodes[skip]); ok {
			t.Errorf("%s should not be indexed", skip)
		}
	}

	// Every surviving type gets a unique dense index.
	seen := map[int32]string{}
	for name, node := range nodes {
		idx, ok := ix.IndexOf(node)
		if !ok {
			continue
		}
		if prev, dup := seen[idx]; dup {
			t.Errorf("index %d assigned to both %s and %s", idx, prev, name)
		}
		seen[idx] = name
	}

	checks := []struct {
		node   string
		name   string
		format typetable.Format
	}{
		{"int", "int", typetable.FormatInt},
		{"double", "double", typetable.FormatDouble},
		{"float", "float", typetable.FormatFloat},
		{"ulong", "long unsigned int", typetable.FormatULong},
		{"node", "struct Node", typetable.FormatInt}, // first field is data:int
		{"nodePtr", "pointer to struct Node", typetable.FormatPointer},
		{"arr", "array of int", typetable.FormatInt}, // array field carries the element format
		{"union", "union U", typetable.FormatUnion},
		{"enum", "enum Color", typetable.FormatInt},
		{"typedef", "myint", typetable.FormatInt},
	}
	for _, c := range checks {
		idx, ok := ix.IndexOf(nodes[c.node])
		if !ok {
			t.Errorf("%s not indexed", c.node)
			continue
		}
		d := table[idx]
		if d.Name != c.name {
			t.Errorf("%s: name = %q, want %q", c.node, d.Name, c.name)
		}
		if d.Fields[0].Format != c.format {
			t.Errorf("%s: field format = %v, want %v", c.node, d.Fields[0].Format, c.format)
		}
	}
}

func TestReifyStructDescriptor(t *testing.T) {
	m, nodes := listModule()
	table, ix := reify.Reify(m, nil)

	nodeIdx, _ := ix.IndexOf(nodes["node"])
	d := table[nodeIdx]
	if d.QuantFields() != 2 {
		t.Fatalf("struct Node has %d fields, want 2", d.QuantFields())
	}
	data, next := d.Fields[0], d.Fields[1]
	if data.Name != "data" || data.Format != typetable.FormatInt || data.Offset != 0 {
		t.Errorf("data field = %+v", data)
	}
	if next.Name != "next" || next.Format != typetable.FormatPointer || next.Offset != 8 {
		t.Errorf("next field = %+v", next)
	}
	// The pointer member's base index resolves to Node itself through the
	// cycle.
	if next.BaseTypeIndex != nodeIdx {
		t.Errorf("next.BaseTypeIndex = %d, want %d", next.BaseTypeIndex, nodeIdx)
	}
}

func TestReifyArrayAndUnion(t *testing.T) {
	m, nodes := listModule()
	table, ix := reify.Reify(m, nil)

	arrIdx, _ := ix.IndexOf(nodes["arr"])
	arr := table[arrIdx]
	if arr.QuantFields() != 1 {
		t.Fatalf("array descriptor has %d fields", arr.QuantFields())
	}
	if arr.Fields[0].Offset != 10 {
		t.Errorf("array count-in-offset = %d, want 10", arr.Fields[0].Offset)
	}
	if arr.Fields[0].BaseTypeIndex != int32(typetable.FormatInt) {
		t.Errorf("array base sentinel = %d", arr.Fields[0].BaseTypeIndex)
	}

	unionIdx, _ := ix.IndexOf(nodes["union"])
	u := table[unionIdx]
	if u.Fields[0].Format != typetable.FormatUnion || u.Fields[0].Offset != 4 {
		t.Errorf("union descriptor = %+v", u.Fields[0])
	}
}

func TestReifyNameTruncation(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := reify.Truncate(long)
	if len(got) != 128 {
		t.Errorf("truncated length = %d, want 128", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated name misses the marker: %q", got[120:])
	}
	if reify.Truncate("short") != "short" {
		t.Error("short names must pass through")
	}
}

// TestReifyRoundTrip: the reified table survives the wire format.
func TestReifyRoundTrip(t *testing.T) {
	m, _ := listModule()
	table, _ := reify.Reify(m, nil)

	var buf bytes.Buffer
	if err := typetable.Write(&buf, table); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := typetable.Read(&buf, len(table))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, table) {
		t.Error("reified table does not round-trip")
	}
}

func TestIndexForIRType(t *testing.T) {
	m, nodes := listModule()
	types := m.Types
	bt := types.Builtins()
	_, ix := reify.Reify(m, nil)

	if idx := ix.IndexForIRType(types, bt.I32); idx == typetable.NoIndex {
		t.Error("int not resolved from IR type")
	}
	// The IR erases signedness: a 64-bit integer resolves through the
	// long-bearing fallback.
	if idx := ix.IndexForIRType(types, bt.I64); idx == typetable.NoIndex {
		t.Error("long not resolved through fuzzy match")
	}
	nodeTy := types.Struct("Node", nil)
	wantIdx, _ := ix.IndexOf(nodes["node"])
	if idx := ix.IndexForIRType(types, nodeTy); idx != wantIdx {
		t.Errorf("struct Node IR index = %d, want %d", idx, wantIdx)
	}
	anon := types.Struct("", nil)
	if idx := ix.IndexForIRType(types, anon); idx != typetable.NoIndex {
		t.Errorf("opaque struct resolved to %d, want NoIndex", idx)
	}
}

// TestShouldProcess pins the skip rules.
func TestShouldProcess(t *testing.T) {
	member := &debuginfo.DerivedType{Tag: debuginfo.TagMember, Base: intType()}
	if reify.ShouldProcess(member) {
		t.Error("member nodes must be skipped")
	}
	if reify.ShouldProcess(&debuginfo.SubroutineType{}) {
		t.Error("subroutine types must be skipped")
	}
	if !reify.ShouldProcess(nil) {
		t.Error("void must be processed")
	}
	ptrToMember := &debuginfo.DerivedType{Tag: debuginfo.TagPtrToMemberType}
	if reify.ShouldProcess(ptrToMember) {
		t.Error("pointer-to-member must be skipped")
	}
	// A pointer resolves through its base.
	ptrToSub := &debuginfo.DerivedType{Tag: debuginfo.TagPointerType, Base: &debuginfo.SubroutineType{}}
	if reify.ShouldProcess(ptrToSub) {
		t.Error("pointer to subroutine must be skipped")
	}
}
