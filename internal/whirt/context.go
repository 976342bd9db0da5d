package whirt

import (
	"io"
	"os"

	"whiro/internal/typetable"
)

// Context is the process-wide state of the injected runtime: the loaded
// Type Table, the heap table, the usage-mode flags and the snapshot output.
// The runtime assumes a single-threaded mutator; nothing here locks.
type Context struct {
	Table typetable.Table
	Heap  *HeapTable

	InsHeap   bool
	InsStack  bool
	MemFilter bool
	Precise   bool

	out     *os.File
	textEnd uintptr
}

// NewContext builds a context around an already-loaded table.
func NewContext(table typetable.Table, insHeap, insStack, precise bool) *Context {
	return &Context{
		Table:     table,
		Heap:      NewHeapTable(),
		InsHeap:   insHeap,
		InsStack:  insStack,
		MemFilter: insHeap || insStack,
		Precise:   precise,
		textEnd:   textSegmentEnd(),
	}
}

// OpenContext loads the Type Table from disk and builds the context. A
// missing or truncated table is an error; the caller cannot proceed
// without it.
func OpenContext(path string, count int, insHeap, insStack, precise bool) (*Context, error) {
	table, err := typetable.Load(path, count)
	if err != nil {
		return nil, err
	}
	return NewContext(table, insHeap, insStack, precise), nil
}

// OpenOutput opens (and truncates) the snapshot output file.
func (c *Context) OpenOutput(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	c.out = f
	return nil
}

// Output returns the snapshot writer. Before OpenOutput it discards, so a
// runtime used as a library never crashes on a missing file.
func (c *Context) Output() io.Writer {
	if c.out == nil {
		return io.Discard
	}
	return c.out
}

// CloseOutput closes the snapshot file. Called on every halt path; safe to
// call more than once.
func (c *Context) CloseOutput() {
	if c.out != nil {
		c.out.Close()
		c.out = nil
	}
}

// descriptor returns the table descriptor at an index, nil when the index
// is the unresolved sentinel or out of range.
func (c *Context) descriptor(idx int32) *typetable.Descriptor {
	if idx < 0 || int(idx) >= len(c.Table) {
		return nil
	}
	return &c.Table[idx]
}

// typeNameAt names the type at an index; indices carrying a format
// sentinel instead of a table position name the format.
func (c *Context) typeNameAt(idx int32) string {
	if d := c.descriptor(idx); d != nil {
		return d.Name
	}
	return typetable.Format(idx).String()
}
