package monitor_test

import (
	"testing"

	"whiro/internal/debuginfo"
	"whiro/internal/diag"
	"whiro/internal/ir"
	"whiro/internal/monitor"
)

// testModule builds a two-function module: main declares a stack int and
// a static counter global exists; util allocates, frees and observes an
// SSA value.
func testModule() *ir.Module {
	types := ir.NewInterner()
	bt := types.Builtins()
	ptrI8 := types.Pointer(bt.I8)
	ptrI32 := types.Pointer(bt.I32)

	intDI := &debuginfo.BasicType{TypeName: "int", Enc: debuginfo.EncSigned, Bits: 32}
	mainSub := &debuginfo.Subprogram{FnName: "main", File: "prog.c", Line: 1}
	utilSub := &debuginfo.Subprogram{FnName: "util", File: "prog.c", Line: 10}
	xVar := &debuginfo.LocalVariable{VarName: "x", Scope: mainSub, Type: intDI}
	yVar := &debuginfo.LocalVariable{VarName: "y", Scope: utilSub, Type: intDI}

	main := &ir.Func{Name: "main", Result: bt.I32, Subprogram: mainSub, Entry: 0}
	xSlot := main.NewValue(ptrI32)
	main.Blocks = []ir.Block{{
		ID: 0,
		Instrs: []ir.Instr{
			{Kind: ir.InstrAlloca, Result: xSlot, Alloca: ir.AllocaInstr{Elem: bt.I32, Name: "x"}},
			{Kind: ir.InstrDebugDeclare, Result: ir.NoValue, DebugDeclare: ir.DebugDeclareInstr{
				Var: xVar, Addr: ir.ValueOf(xSlot, ptrI32)}},
			{Kind: ir.InstrStore, Store: ir.StoreInstr{
				Val: ir.IntConst(5, bt.I32), Addr: ir.ValueOf(xSlot, ptrI32)}},
		},
		Term: ir.Terminator{Kind: ir.TermReturn, Return: ir.ReturnTerm{
			HasValue: true, Value: ir.IntConst(0, bt.I32)}},
	}}

	util := &ir.Func{Name: "util", Result: bt.I32, Subprogram: utilSub, Entry: 0}
	raw := util.NewValue(ptrI8)
	typed := util.NewValue(ptrI32)
	sum := util.NewValue(bt.I32)
	util.Blocks = []ir.Block{{
		ID: 0,
		Instrs: []ir.Instr{
			{Kind: ir.InstrCall, Result: raw, Call: ir.CallInstr{
				Callee: "malloc", Args: []ir.Operand{ir.IntConst(16, bt.I64)}, Type: ptrI8}},
			{Kind: ir.InstrCast, Result: typed, Cast: ir.CastInstr{
				Op: ir.CastBitcast, Val: ir.ValueOf(raw, ptrI8), To: ptrI32}},
			{Kind: ir.InstrCall, Result: ir.NoValue, Call: ir.CallInstr{
				Callee: "free", Args: []ir.Operand{ir.ValueOf(raw, ptrI8)}}},
			{Kind: ir.InstrBinOp, Result: sum, Bin: ir.BinOpInstr{
				Op: ir.OpAdd, L: ir.IntConst(1, bt.I32), R: ir.IntConst(2, bt.I32), Type: bt.I32}},
			{Kind: ir.InstrDebugValue, Result: ir.NoValue, DebugValue: ir.DebugValueInstr{
				Var: yVar, Val: ir.ValueOf(sum, bt.I32)}},
		},
		Term: ir.Terminator{Kind: ir.TermReturn, Return: ir.ReturnTerm{
			HasValue: true, Value: ir.ValueOf(sum, bt.I32)}},
	}}

	m := &ir.Module{
		Name:       "prog",
		SourceFile: "prog.c",
		Types:      types,
		Funcs:      []*ir.Func{main, util},
	}
	m.AddGlobal(&ir.Global{
		Name: "numCalls",
		Type: bt.I32,
		Init: ir.Const{Kind: ir.ConstInt, Type: bt.I32, Int: 0},
		DI:   &debuginfo.GlobalVariable{VarName: "numCalls", Type: intDI},
	})
	return m
}

func callsTo(f *ir.Func, callee string) []ir.CallInstr {
	var out []ir.CallInstr
	for bi := range f.Blocks {
		for _, ins := range f.Blocks[bi].Instrs {
			if ins.Kind == ir.InstrCall && ins.Call.Callee == callee {
				out = append(out, ins.Call)
			}
		}
	}
	return out
}

func TestRunRewritesModule(t *testing.T) {
	m := testModule()
	d := monitor.New(m, monitor.Options{}, nil)
	table, err := d.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(table) == 0 {
		t.Fatal("empty type table")
	}

	main := m.Func("main")
	util := m.Func("util")

	// Runtime initialisation sits at main entry, after the leading
	// alloca: output open then table open.
	if main.Blocks[0].Instrs[0].Kind != ir.InstrAlloca {
		t.Error("leading alloca displaced")
	}
	open := callsTo(main, "WhiroOpenOutputFile")
	if len(open) != 1 {
		t.Fatalf("%d open-output calls, want 1", len(open))
	}
	if open[0].Args[0].Const.Str != "prog.c_Output" {
		t.Errorf("output path = %q", open[0].Args[0].Const.Str)
	}
	tt := callsTo(main, "WhiroOpenTypeTable")
	if len(tt) != 1 {
		t.Fatalf("%d open-table calls, want 1", len(tt))
	}
	if tt[0].Args[0].Const.Str != "prog_TypeTable.bin" {
		t.Errorf("table path = %q", tt[0].Args[0].Const.Str)
	}
	if tt[0].Args[1].Const.Int != int64(len(table)) {
		t.Errorf("table size arg = %d, want %d", tt[0].Args[1].Const.Int, len(table))
	}
	// Defaults: heap+stack+precise all on.
	for i := 2; i <= 4; i++ {
		if tt[0].Args[i].Const.Int != 1 {
			t.Errorf("mode bit %d = %d, want 1", i, tt[0].Args[i].Const.Int)
		}
	}

	// Heap interception in util: insert after malloc with 16/4 elements,
	// delete after free.
	ins := callsTo(util, "WhiroInsertHeapEntry")
	if len(ins) != 1 {
		t.Fatalf("%d heap inserts, want 1", len(ins))
	}
	if ins[0].Args[1].Const.Int != 4 || ins[0].Args[2].Const.Int != 4 {
		t.Errorf("element count args = %d/%d, want 4/4",
			ins[0].Args[1].Const.Int, ins[0].Args[2].Const.Int)
	}
	if len(callsTo(util, "WhiroDeleteHeapEntry")) != 1 {
		t.Error("free not intercepted")
	}

	// util gets a static counter incremented at entry.
	if m.Global("util_counter") == nil {
		t.Fatal("no util_counter global")
	}
	if util.Blocks[0].Instrs[0].Kind != ir.InstrLoad {
		t.Error("counter increment not at function entry")
	}

	// Both functions carry inspection calls; main closes the output file.
	if len(callsTo(util, "WhiroInspectScalar")) == 0 {
		t.Error("util's scalar variable not inspected")
	}
	if len(callsTo(main, "WhiroInspectScalar")) == 0 {
		t.Error("main's stack variable not inspected")
	}
	if len(callsTo(main, "WhiroCloseOutputFile")) != 1 {
		t.Error("main does not close the output file on return")
	}
	if len(callsTo(util, "WhiroCloseOutputFile")) != 0 {
		t.Error("util closes the output file without halting")
	}

	// The static is reported in both functions' snapshots under the
	// (Static) scope.
	foundStatic := false
	for _, c := range callsTo(main, "WhiroInspectScalar") {
		for _, a := range c.Args {
			if a.Const.Kind == ir.ConstStr && a.Const.Str == "(Static) main" {
				foundStatic = true
			}
		}
	}
	if !foundStatic {
		t.Error("static variable not reported under the (Static) scope")
	}

	if err := ir.Validate(main); err != nil {
		t.Errorf("rewritten main invalid: %v", err)
	}
	if err := ir.Validate(util); err != nil {
		t.Errorf("rewritten util invalid: %v", err)
	}

	if d.Stats.InstFuncs != 2 {
		t.Errorf("InstFuncs = %d, want 2", d.Stats.InstFuncs)
	}
	if d.Stats.HeapOperations != 2 {
		t.Errorf("HeapOperations = %d, want 2", d.Stats.HeapOperations)
	}
}

// TestMainCounterIsConstant: main's calling context uses the constant 1.
func TestMainCounterIsConstant(t *testing.T) {
	m := testModule()
	d := monitor.New(m, monitor.Options{}, nil)
	if _, err := d.Run(); err != nil {
		t.Fatal(err)
	}
	if m.Global("main_counter") != nil {
		t.Error("main got a counter global")
	}
	for _, c := range callsTo(m.Func("main"), "WhiroInspectScalar") {
		counter := c.Args[4]
		if counter.Kind != ir.OperandConst || counter.Const.Int != 1 {
			t.Errorf("main call counter arg = %+v, want constant 1", counter)
		}
	}
}

// TestOnlyMainMode: other functions keep heap tracking but lose
// inspection points.
func TestOnlyMainMode(t *testing.T) {
	m := testModule()
	d := monitor.New(m, monitor.Options{OnlyMain: true, Heap: true}, nil)
	if _, err := d.Run(); err != nil {
		t.Fatal(err)
	}
	util := m.Func("util")
	if len(callsTo(util, "WhiroInsertHeapEntry")) != 1 {
		t.Error("only-main dropped heap tracking in util")
	}
	if len(callsTo(util, "WhiroInspectScalar")) != 0 {
		t.Error("only-main left an inspection point in util")
	}
	if m.Global("util_counter") != nil {
		t.Error("only-main created a counter for util")
	}
}

// TestExitCallGetsInspection: a halting call gets an inspection point and
// a file close immediately before it.
func TestExitCallGetsInspection(t *testing.T) {
	m := testModule()
	util := m.Func("util")
	bt := m.Types.Builtins()
	// Append an exit call before the terminator.
	util.Blocks[0].Append(ir.Instr{Kind: ir.InstrCall, Result: ir.NoValue,
		Call: ir.CallInstr{Callee: "exit", Args: []ir.Operand{ir.IntConst(1, bt.I32)}}})

	d := monitor.New(m, monitor.Options{}, nil)
	if _, err := d.Run(); err != nil {
		t.Fatal(err)
	}

	b := util.Blocks[0]
	exitIdx := -1
	closeIdx := -1
	for i, ins := range b.Instrs {
		if ins.Kind != ir.InstrCall {
			continue
		}
		switch ins.Call.Callee {
		case "exit":
			exitIdx = i
		case "WhiroCloseOutputFile":
			closeIdx = i
		}
	}
	if exitIdx < 0 || closeIdx < 0 {
		t.Fatal("exit or close call missing")
	}
	if closeIdx != exitIdx-1 {
		t.Errorf("close at %d, exit at %d; want close immediately before exit", closeIdx, exitIdx)
	}
}

// TestNoMainIsFatal: a module without main cannot be instrumented.
func TestNoMainIsFatal(t *testing.T) {
	m := testModule()
	m.Funcs = m.Funcs[1:] // drop main
	bag := diag.NewBag(10)
	d := monitor.New(m, monitor.Options{}, diag.BagReporter{Bag: bag})
	if _, err := d.Run(); err == nil {
		t.Fatal("Run succeeded without main")
	}
	if !bag.HasErrors() {
		t.Error("no error diagnostic reported")
	}
}

// TestStackOnlySkipsStatics: manual region selection turns the other
// regions off.
func TestStackOnlySkipsStatics(t *testing.T) {
	m := testModule()
	d := monitor.New(m, monitor.Options{Stack: true}, nil)
	if _, err := d.Run(); err != nil {
		t.Fatal(err)
	}
	for _, c := range callsTo(m.Func("main"), "WhiroInspectScalar") {
		for _, a := range c.Args {
			if a.Const.Kind == ir.ConstStr && a.Const.Str == "(Static) main" {
				t.Error("static reported despite stack-only selection")
			}
		}
	}
}

func TestTablePathNames(t *testing.T) {
	if got := monitor.TablePath("prog.c"); got != "prog_TypeTable.bin" {
		t.Errorf("TablePath = %q", got)
	}
	if got := monitor.OutputName("prog.c"); got != "prog.c_Output" {
		t.Errorf("OutputName = %q", got)
	}
}
