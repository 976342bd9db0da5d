package whirt

import (
	"fmt"
	"os"
	"unsafe"

	"whiro/internal/typetable"
)

// The entry points the instrumenter emits calls to. They operate on the
// process-wide context installed by WhiroOpenTypeTable at the start of
// main and torn down when the output file closes on a halt path.

var std *Context

// Std returns the installed process context, nil before WhiroOpenTypeTable.
func Std() *Context { return std }

// SetStd installs a context; tests use it to run against private state.
func SetStd(c *Context) { std = c }

// WhiroOpenTypeTable loads the Type Table and records the usage-mode flags
// in process state. A missing or unreadable table is fatal: without it no
// value can be rendered, so the program terminates with a diagnostic.
func WhiroOpenTypeTable(path string, count int, insHeap, insStack, precise bool) {
	c, err := OpenContext(path, count, insHeap, insStack, precise)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening Type Table file %s: %v\n", path, err)
		os.Exit(1)
	}
	if std != nil && std.out != nil {
		c.out = std.out
	}
	std = c
}

// WhiroOpenOutputFile opens the snapshot output file for overwrite.
func WhiroOpenOutputFile(path string) {
	if std == nil {
		std = NewContext(nil, true, true, false)
	}
	// Output writes are best-effort telemetry; an open failure leaves the
	// context writing to the void.
	_ = std.OpenOutput(path)
}

// WhiroCloseOutputFile closes the snapshot output file. Emitted on every
// halt path.
func WhiroCloseOutputFile() {
	if std != nil {
		std.CloseOutput()
	}
}

// WhiroInsertHeapEntry records an allocation.
func WhiroInsertHeapEntry(addr unsafe.Pointer, size, arrayStep int64, typeIndex int32) {
	if std == nil {
		return
	}
	std.Heap.Insert(uintptr(addr), size, arrayStep, typeIndex)
}

// WhiroUpdateHeapEntrySize records a reallocation.
func WhiroUpdateHeapEntrySize(addr unsafe.Pointer, newSize int64) {
	if std == nil {
		return
	}
	std.Heap.UpdateSize(uintptr(addr), newSize)
}

// WhiroDeleteHeapEntry records a deallocation.
func WhiroDeleteHeapEntry(addr unsafe.Pointer) {
	if std == nil {
		return
	}
	std.Heap.Delete(uintptr(addr))
}

// WhiroInspectPointer renders a pointer-typed variable at an inspection
// point.
func WhiroInspectPointer(ptr unsafe.Pointer, typeIndex int32, name, funcName string, call int32) {
	if std == nil {
		return
	}
	std.InspectPointer(std.Output(), uintptr(ptr), typeIndex, name, funcName, call)
}

// WhiroInspectUnion bit-dumps a union-typed variable.
func WhiroInspectUnion(data unsafe.Pointer, size int64, name, funcName string, call int32) {
	if std == nil {
		return
	}
	std.InspectUnion(std.Output(), data, size, name, funcName, call)
}

// WhiroInspectStruct renders a struct-typed variable.
func WhiroInspectStruct(data unsafe.Pointer, typeIndex int32, name, funcName string, call int32) {
	if std == nil {
		return
	}
	std.InspectStruct(std.Output(), data, typeIndex, name, funcName, call)
}

// WhiroInspectScalar renders a register-resident scalar.
func WhiroInspectScalar(bits uint64, format int32, name, funcName string, call int32, scalarized bool) {
	if std == nil {
		return
	}
	std.InspectScalar(std.Output(), bits, typetable.Format(format), name, funcName, call, scalarized)
}

// WhiroComputeHashcode digests a scalar array.
func WhiroComputeHashcode(arr unsafe.Pointer, totalElements, step int64, format int32) int32 {
	return ComputeHashcode(arr, totalElements, step, typetable.Format(format))
}

// WhiroInspectEntireHeap dumps every live heap entry.
func WhiroInspectEntireHeap(funcName string, call int32) {
	if std == nil {
		return
	}
	std.InspectEntireHeap(std.Output(), funcName, call)
}
