package whirt

import (
	"fmt"
	"io"
	"strconv"
	"unsafe"

	"whiro/internal/typetable"
)

// Pointer tracking: heap-table lookup first, then a bounded dereference of
// stack and static addresses, guarded by the executable's text boundary so
// stale or integer-derived pointers never fault the program.

// InspectPointer renders a pointer-typed variable. In fast mode only the
// declared pointee type prints; in precise mode the pointer is followed and
// the visited set is reset once the traversal unwinds, so sibling
// inspections within the same point are re-entrant.
func (c *Context) InspectPointer(w io.Writer, ptr uintptr, typeIndex int32, name, funcName string, call int32) {
	if c.Precise {
		c.TrackPointer(w, ptr, typeIndex, name, funcName, call)
		c.Heap.ResetVisited()
		return
	}
	fmt.Fprintf(w, "%s %s %d : pointer to %s\n", name, funcName, call, c.typeNameAt(typeIndex))
}

// TrackPointer resolves one pointer: NULL renders literally, heap hits
// delegate to the heap entry inspection, anything else is treated as a
// stack or static address and dereferenced only above the text boundary.
func (c *Context) TrackPointer(w io.Writer, ptr uintptr, typeIndex int32, name, funcName string, call int32) {
	if entry := c.Heap.Lookup(ptr); entry != nil {
		if c.MemFilter && !c.InsHeap {
			return
		}
		c.InspectHeapEntry(w, entry, name, funcName, call, true)
		return
	}
	if ptr == 0 {
		fmt.Fprintf(w, "%s %s %d : NULL\n", name, funcName, call)
		return
	}
	if c.MemFilter && !c.InsStack {
		return
	}
	// Fault avoidance: without a known text boundary no non-heap pointer
	// is followed; with one, addresses below it are skipped.
	if c.textEnd == 0 || ptr < c.textEnd {
		return
	}
	if desc := c.descriptor(typeIndex); desc != nil {
		c.InspectData(w, unsafe.Pointer(ptr), desc, name, funcName, call)
	}
}

// InspectHeapEntry renders one allocation. The Visited bit breaks cycles:
// an entry prints at most once per top-level inspection.
func (c *Context) InspectHeapEntry(w io.Writer, entry *HeapEntry, name, funcName string, call int32, followPtr bool) {
	if entry.Visited {
		return
	}
	entry.Visited = true

	if entry.Free {
		fmt.Fprintf(w, "%s %s %d : freed\n", name, funcName, call)
		return
	}
	if entry.Data.Size > 1 {
		c.inspectHeapArray(w, entry, name, funcName, call)
		return
	}
	if desc := c.descriptor(entry.Data.TypeIndex); desc != nil {
		c.InspectData(w, unsafe.Pointer(entry.Key), desc, name, funcName, call)
	}
}

func heapIndexName(i int64) string {
	return "[" + strconv.FormatInt(i, 10) + "]"
}

// inspectHeapArray renders a multi-element allocation: scalar elements
// digest to a single hash line, pointer elements recurse per slot.
func (c *Context) inspectHeapArray(w io.Writer, entry *HeapEntry, name, funcName string, call int32) {
	desc := c.descriptor(entry.Data.TypeIndex)
	if desc == nil || len(desc.Fields) == 0 {
		return
	}
	switch {
	case desc.Fields[0].Format.IsScalar():
		h := ComputeHashcode(unsafe.Pointer(entry.Key), entry.Data.Size, entry.Data.ArrayStep, desc.Fields[0].Format)
		fmt.Fprintf(w, "%s %s %d : %d\n", name, funcName, call, h)
	case desc.Fields[0].Format == typetable.FormatPointer:
		for i := int64(0); i < entry.Data.Size; i++ {
			slot := entry.Key + uintptr(i)*unsafe.Sizeof(uintptr(0))
			next := *(*uintptr)(unsafe.Pointer(slot))
			c.TrackPointer(w, next, desc.Fields[0].BaseTypeIndex, name+heapIndexName(i), funcName, call)
		}
	default:
		// Arrays of aggregates are not inspected.
		fmt.Fprintf(w, "%s %s %d : non-inspectable value\n", name, funcName, call)
	}
}

// InspectEntireHeap reports every live allocation under the synthetic name
// "Heap Data", then clears the visited set.
func (c *Context) InspectEntireHeap(w io.Writer, funcName string, call int32) {
	c.Heap.ForEach(func(e *HeapEntry) {
		if !e.Free {
			c.InspectHeapEntry(w, e, "Heap Data", funcName, call, false)
		}
	})
	c.Heap.ResetVisited()
}
