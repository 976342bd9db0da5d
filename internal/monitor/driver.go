package monitor

import (
	"fmt"
	"strings"

	"whiro/internal/debuginfo"
	"whiro/internal/diag"
	"whiro/internal/ir"
	"whiro/internal/liveness"
	"whiro/internal/reify"
	"whiro/internal/typetable"
)

// Runtime symbols the driver emits calls to.
const (
	symOpenTypeTable   = "WhiroOpenTypeTable"
	symOpenOutput      = "WhiroOpenOutputFile"
	symCloseOutput     = "WhiroCloseOutputFile"
	symInsertHeap      = "WhiroInsertHeapEntry"
	symUpdateHeap      = "WhiroUpdateHeapEntrySize"
	symDeleteHeap      = "WhiroDeleteHeapEntry"
	symInspectPointer  = "WhiroInspectPointer"
	symInspectUnion    = "WhiroInspectUnion"
	symInspectStruct   = "WhiroInspectStruct"
	symInspectScalar   = "WhiroInspectScalar"
	symComputeHashcode = "WhiroComputeHashcode"
	symInspectHeap     = "WhiroInspectEntireHeap"
)

// Allocator symbols intercepted for heap bookkeeping.
func isAllocator(name string) bool {
	switch name {
	case "malloc", "calloc", "realloc", "free":
		return true
	}
	return false
}

// Driver rewrites one module: it reifies the Type Table, installs counters,
// intercepts allocator calls and constructs the inspection points.
type Driver struct {
	M        *ir.Module
	Opts     Options
	Reporter diag.Reporter
	Stats    Stats

	index   *reify.Index
	table   typetable.Table
	statics []*ir.Global
}

// New builds a driver with normalized options.
func New(m *ir.Module, opts Options, r diag.Reporter) *Driver {
	if r == nil {
		r = diag.NopReporter{}
	}
	return &Driver{M: m, Opts: opts.Normalize(), Reporter: r}
}

// TablePath derives the Type Table file name from the source file name.
func TablePath(sourceFile string) string {
	stem := sourceFile
	if i := strings.LastIndexByte(stem, '.'); i > 0 {
		stem = stem[:i]
	}
	return stem + "_TypeTable.bin"
}

// OutputName derives the snapshot output file name.
func OutputName(sourceFile string) string {
	return sourceFile + "_Output"
}

// Run instruments the module in place and returns the Type Table to be
// written next to the rewritten module. A module without a main routine
// cannot be instrumented.
func (d *Driver) Run() (typetable.Table, error) {
	main := d.M.Func("main")
	if main == nil {
		diag.ReportError(d.Reporter, diag.InsNoMain, diag.Locus{}, "program has no main function")
		return nil, fmt.Errorf("program has no main function")
	}

	// Collect the static variables before injecting anything.
	if !d.Opts.memFilter() || d.Opts.Static {
		for _, g := range d.M.Globals {
			if g.DI == nil {
				continue
			}
			if _, isSub := g.DI.Type.(*debuginfo.SubroutineType); isSub {
				continue
			}
			d.statics = append(d.statics, g)
			d.Stats.TotalVars++
		}
	}

	d.table, d.index = reify.Reify(d.M, d.Reporter)

	d.openRuntime(main)

	for _, f := range d.M.Funcs {
		if d.Opts.OnlyMain && f.Name != "main" {
			if d.Opts.Precise || d.Opts.FullHeap {
				d.instrumentOnlyHeap(f)
			}
			continue
		}
		d.instrumentFunction(f, f == main)
	}
	return d.table, nil
}

// openRuntime injects the runtime initialisation at the start of main,
// after any leading stack slots: open the output file, then load the Type
// Table with the usage-mode bits.
func (d *Driver) openRuntime(main *ir.Func) {
	entry := main.Block(main.Entry)
	idx := 0
	for idx < len(entry.Instrs) && entry.Instrs[idx].Kind == ir.InstrAlloca {
		idx++
	}
	fr := d.rewriter(main)
	b := d.boolBit

	open := []ir.Instr{
		fr.callInstr(symOpenOutput, ir.NoTypeID,
			fr.str(OutputName(d.M.SourceFile))),
		fr.callInstr(symOpenTypeTable, ir.NoTypeID,
			fr.str(TablePath(d.M.SourceFile)),
			fr.i32Const(int64(len(d.table))),
			fr.i32Const(b(d.Opts.Heap)),
			fr.i32Const(b(d.Opts.Stack)),
			fr.i32Const(b(d.Opts.Precise))),
	}
	spliceAt(entry, idx, open)
}

func (d *Driver) boolBit(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// instrumentOnlyHeap installs allocator interception without inspection
// points; pointer tracking needs the heap table regardless of inspection
// granularity.
func (d *Driver) instrumentOnlyHeap(f *ir.Func) {
	fr := d.rewriter(f)
	fr.interceptHeapOps()
}

// instrumentFunction applies the full per-function rewrite.
func (d *Driver) instrumentFunction(f *ir.Func, isMain bool) {
	d.Stats.InstFuncs++
	fr := d.rewriter(f)

	counter := fr.installCounter(isMain)
	fr.interceptHeapOps()

	traces := liveness.Collect(f)
	rep := liveness.NewRepairer(f, d.M.Types)

	// Halting calls get an inspection point and a file close immediately
	// before them.
	for _, site := range fr.exitSites() {
		list := fr.inspectionList(traces, rep, site.block, counter)
		list = append(list, fr.callInstr(symCloseOutput, ir.NoTypeID))
		bID, idx, ok := fr.locateExit(site)
		if !ok {
			continue
		}
		spliceAt(f.Block(bID), idx, list)
	}

	retBlock, ok := f.ReturnBlock()
	if !ok {
		diag.ReportWarning(d.Reporter, diag.InsNoReturnBlock, diag.Locus{Func: f.Name},
			"could not find the return block of this function; skipping its inspection point")
		d.Stats.ExtendedVars += rep.Stats.Extended
		d.Stats.Var2Stack += rep.Stats.Shadowed
		d.Stats.DiffVars += rep.Stats.DiffTypes
		return
	}

	list := fr.inspectionList(traces, rep, retBlock, counter)
	if d.Opts.FullHeap {
		list = append(list, fr.callInstr(symInspectHeap, ir.NoTypeID,
			fr.str(f.Name), counter))
	}
	if isMain {
		list = append(list, fr.callInstr(symCloseOutput, ir.NoTypeID))
	}

	// The inspection point sits immediately before the terminator, above
	// any trailing debug intrinsics.
	b := f.Block(retBlock)
	idx := len(b.Instrs)
	for idx > 0 && b.Instrs[idx-1].IsDebug() {
		idx--
	}
	spliceAt(b, idx, list)

	d.Stats.ExtendedVars += rep.Stats.Extended
	d.Stats.Var2Stack += rep.Stats.Shadowed
	d.Stats.DiffVars += rep.Stats.DiffTypes
}

// spliceAt inserts a run of instructions at one position.
func spliceAt(b *ir.Block, idx int, list []ir.Instr) {
	if len(list) == 0 {
		return
	}
	out := make([]ir.Instr, 0, len(b.Instrs)+len(list))
	out = append(out, b.Instrs[:idx]...)
	out = append(out, list...)
	out = append(out, b.Instrs[idx:]...)
	b.Instrs = out
}
