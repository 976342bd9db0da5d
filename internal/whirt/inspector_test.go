package whirt

import (
	"strconv"
	"strings"
	"testing"
	"unsafe"

	"whiro/internal/typetable"
)

// node mirrors the reified struct Node used across the inspector tests.
type node struct {
	data int32
	next *node
}

const (
	idxInt = iota
	idxNode
	idxNodePtr
)

func testTable() typetable.Table {
	nextOff := int32(unsafe.Offsetof(node{}.next))
	return typetable.Table{
		idxInt: {Name: "int", Fields: []typetable.Field{
			{Format: typetable.FormatInt, BaseTypeIndex: int32(typetable.FormatInt)},
		}},
		idxNode: {Name: "struct Node", Fields: []typetable.Field{
			{Name: "data", Format: typetable.FormatInt, Offset: 0, BaseTypeIndex: int32(typetable.FormatInt)},
			{Name: "next", Format: typetable.FormatPointer, Offset: nextOff, BaseTypeIndex: idxNode},
		}},
		idxNodePtr: {Name: "pointer to struct Node", Fields: []typetable.Field{
			{Format: typetable.FormatPointer, BaseTypeIndex: idxNode},
		}},
	}
}

func testContext(precise bool) *Context {
	return NewContext(testTable(), true, true, precise)
}

func TestInspectScalarFields(t *testing.T) {
	type sample struct {
		d float64
		f float32
		i int32
		s int16
		u uint64
	}
	v := sample{d: 3.14159, f: 2.5, i: -7, s: 12, u: 900}
	desc := typetable.Descriptor{Name: "struct sample", Fields: []typetable.Field{
		{Name: "d", Format: typetable.FormatDouble, Offset: int32(unsafe.Offsetof(v.d))},
		{Name: "f", Format: typetable.FormatFloat, Offset: int32(unsafe.Offsetof(v.f))},
		{Name: "i", Format: typetable.FormatInt, Offset: int32(unsafe.Offsetof(v.i))},
		{Name: "s", Format: typetable.FormatShort, Offset: int32(unsafe.Offsetof(v.s))},
		{Name: "u", Format: typetable.FormatULong, Offset: int32(unsafe.Offsetof(v.u))},
	}}

	var sb strings.Builder
	c := testContext(false)
	c.InspectData(&sb, unsafe.Pointer(&v), &desc, "v", "main", 1)

	want := "v-d main 1 : 3.14\n" +
		"v-f main 1 : 2.50\n" +
		"v-i main 1 : -7\n" +
		"v-s main 1 : 12\n" +
		"v-u main 1 : 900\n"
	if sb.String() != want {
		t.Errorf("got:\n%swant:\n%s", sb.String(), want)
	}
}

// TestInspectChars: non-printable bytes render as '@'.
func TestInspectChars(t *testing.T) {
	bytes := [2]byte{'A', 0x07}
	desc := typetable.Descriptor{Name: "chars", Fields: []typetable.Field{
		{Name: "p", Format: typetable.FormatChar, Offset: 0},
		{Name: "np", Format: typetable.FormatChar, Offset: 1},
		{Name: "up", Format: typetable.FormatUChar, Offset: 0},
		{Name: "unp", Format: typetable.FormatUChar, Offset: 1},
	}}
	var sb strings.Builder
	c := testContext(false)
	c.InspectData(&sb, unsafe.Pointer(&bytes[0]), &desc, "c", "f", 2)

	want := "c-p f 2 : A\n" +
		"c-np f 2 : @\n" +
		"c-up f 2 : 65\n" +
		"c-unp f 2 : @\n"
	if sb.String() != want {
		t.Errorf("got:\n%swant:\n%s", sb.String(), want)
	}
}

// TestInspectUnionBytes: a union renders as space-less decimal bytes in
// ascending address order.
func TestInspectUnionBytes(t *testing.T) {
	u := uint32(0x01020304)
	var sb strings.Builder
	c := testContext(false)
	c.InspectUnion(&sb, unsafe.Pointer(&u), 4, "u", "main", 1)
	if sb.String() != "u main 1 : 4321\n" {
		t.Errorf("union dump = %q", sb.String())
	}
}

func TestInspectPointerFastMode(t *testing.T) {
	n := node{data: 1}
	var sb strings.Builder
	c := testContext(false)
	c.InspectPointer(&sb, uintptr(unsafe.Pointer(&n)), idxNode, "p", "main", 3)
	if sb.String() != "p main 3 : pointer to struct Node\n" {
		t.Errorf("fast pointer = %q", sb.String())
	}
}

func TestInspectNestedStruct(t *testing.T) {
	type inner struct {
		a int32
	}
	type outer struct {
		x  int32
		in inner
	}
	v := outer{x: 4, in: inner{a: 9}}
	table := append(testTable(), typetable.Descriptor{
		Name: "struct inner", Fields: []typetable.Field{
			{Name: "a", Format: typetable.FormatInt, Offset: 0},
		},
	})
	innerIdx := int32(len(table) - 1)
	desc := typetable.Descriptor{Name: "struct outer", Fields: []typetable.Field{
		{Name: "x", Format: typetable.FormatInt, Offset: int32(unsafe.Offsetof(v.x))},
		{Name: "in", Format: typetable.FormatStruct, Offset: int32(unsafe.Offsetof(v.in)), BaseTypeIndex: innerIdx},
	}}

	c := NewContext(table, true, true, false)
	var sb strings.Builder
	c.InspectData(&sb, unsafe.Pointer(&v), &desc, "o", "main", 1)
	want := "o-x main 1 : 4\n" +
		"o-a main 1 : 9\n"
	if sb.String() != want {
		t.Errorf("got:\n%swant:\n%s", sb.String(), want)
	}
}

// TestInspectScalarArrayField: a scalar-array member hashes through the
// array descriptor, whose Offset overload carries the element count.
func TestInspectScalarArrayField(t *testing.T) {
	type holder struct {
		arr [4]int32
	}
	v := holder{arr: [4]int32{1, 2, 3, 4}}
	table := append(testTable(), typetable.Descriptor{
		Name: "array of int", Fields: []typetable.Field{
			{Format: typetable.FormatInt, Offset: 4, BaseTypeIndex: int32(typetable.FormatInt)},
		},
	})
	arrIdx := int32(len(table) - 1)
	desc := typetable.Descriptor{Name: "struct holder", Fields: []typetable.Field{
		{Name: "arr", Format: typetable.FormatScalarArray, Offset: 0, BaseTypeIndex: arrIdx},
	}}

	c := NewContext(table, true, true, false)
	var sb strings.Builder
	c.InspectData(&sb, unsafe.Pointer(&v), &desc, "h", "main", 1)

	wantHash := ComputeHashcode(unsafe.Pointer(&v.arr[0]), 4, 4, typetable.FormatInt)
	want := "h-arr main 1 : " + strconv.Itoa(int(wantHash)) + "\n"
	if sb.String() != want {
		t.Errorf("got %q, want %q", sb.String(), want)
	}
}

func TestInspectScalarBits(t *testing.T) {
	var sb strings.Builder
	c := testContext(false)
	c.InspectScalar(&sb, uint64(0xFFFFFFFFFFFFFFF9), typetable.FormatInt, "x", "f", 2, false)
	if sb.String() != "x f 2 : -7\n" {
		t.Errorf("scalar bits = %q", sb.String())
	}

	sb.Reset()
	c.InspectScalar(&sb, 41, typetable.FormatInt, "s", "f", 1, true)
	if sb.String() != "s f 1 (scalarized) : 41\n" {
		t.Errorf("scalarized = %q", sb.String())
	}
}

func TestInspectVoidAndOpaque(t *testing.T) {
	desc := typetable.Descriptor{Name: "weird", Fields: []typetable.Field{
		{Name: "v", Format: typetable.FormatVoid},
		{Name: "o", Format: typetable.FormatOpaque},
	}}
	var sb strings.Builder
	c := testContext(false)
	var x int64
	c.InspectData(&sb, unsafe.Pointer(&x), &desc, "w", "main", 1)
	want := "w-v main 1 : void\n" +
		"w-o main 1 : non-inspectable value\n"
	if sb.String() != want {
		t.Errorf("got:\n%swant:\n%s", sb.String(), want)
	}
}
