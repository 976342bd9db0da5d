package monitor

import (
	"whiro/internal/ir"
)

// funcRewriter carries the per-function emission state.
type funcRewriter struct {
	d *Driver
	f *ir.Func

	ptrI8 ir.TypeID
	i32   ir.TypeID
	i64   ir.TypeID

	// counted guards the TotalVars statistic: only a function's first
	// inspection point counts its locals.
	counted bool
}

func (d *Driver) rewriter(f *ir.Func) *funcRewriter {
	bt := d.M.Types.Builtins()
	return &funcRewriter{
		d:     d,
		f:     f,
		ptrI8: d.M.Types.Pointer(bt.I8),
		i32:   bt.I32,
		i64:   bt.I64,
	}
}

func (fr *funcRewriter) str(s string) ir.Operand {
	return ir.StrConst(s, fr.ptrI8)
}

func (fr *funcRewriter) i32Const(v int64) ir.Operand {
	return ir.IntConst(v, fr.i32)
}

func (fr *funcRewriter) i64Const(v int64) ir.Operand {
	return ir.IntConst(v, fr.i64)
}

// callInstr builds a call to a runtime symbol. resultTy of NoTypeID means
// a void call.
func (fr *funcRewriter) callInstr(callee string, resultTy ir.TypeID, args ...ir.Operand) ir.Instr {
	ins := ir.Instr{Kind: ir.InstrCall, Result: ir.NoValue,
		Call: ir.CallInstr{Callee: callee, Args: args, Type: resultTy}}
	if resultTy != ir.NoTypeID {
		ins.Result = fr.f.NewValue(resultTy)
	}
	return ins
}

// loadInstr builds a load through an address operand; the loaded type is
// the operand's pointee.
func (fr *funcRewriter) loadInstr(addr ir.Operand) (ir.Instr, ir.Operand) {
	elem := ir.NoTypeID
	if t, ok := fr.d.M.Types.Lookup(addr.Type); ok && t.Kind == ir.KindPointer {
		elem = t.Elem
	}
	v := fr.f.NewValue(elem)
	ins := ir.Instr{Kind: ir.InstrLoad, Result: v,
		Load: ir.LoadInstr{Addr: addr, Type: elem}}
	return ins, ir.ValueOf(v, elem)
}

// castTo builds a cast of val to ty; returns val unchanged when the types
// already agree or no valid conversion exists.
func (fr *funcRewriter) castTo(val ir.Operand, ty ir.TypeID) (ir.Instr, ir.Operand, bool) {
	if val.Type == ty {
		return ir.Instr{}, val, false
	}
	op, ok := ir.CastOpcode(fr.d.M.Types, val.Type, ty)
	if !ok {
		return ir.Instr{}, val, false
	}
	v := fr.f.NewValue(ty)
	ins := ir.Instr{Kind: ir.InstrCast, Result: v,
		Cast: ir.CastInstr{Op: op, Val: val, To: ty}}
	return ins, ir.ValueOf(v, ty), true
}

// installCounter allocates the per-function call counter in static memory
// and increments it at function entry. The counter tags the calling
// context; it counts instrumented entries, never resets, and main uses the
// constant 1 instead.
func (fr *funcRewriter) installCounter(isMain bool) ir.Operand {
	if isMain {
		return fr.i32Const(1)
	}
	name := fr.f.Name + "_counter"
	fr.d.M.AddGlobal(&ir.Global{
		Name: name,
		Type: fr.i32,
		Init: ir.Const{Kind: ir.ConstInt, Type: fr.i32, Int: 0},
	})
	addr := ir.GlobalOf(name, fr.d.M.Types.Pointer(fr.i32))

	load, loaded := fr.loadInstr(addr)
	inc := fr.f.NewValue(fr.i32)
	add := ir.Instr{Kind: ir.InstrBinOp, Result: inc,
		Bin: ir.BinOpInstr{Op: ir.OpAdd, L: loaded, R: fr.i32Const(1), Type: fr.i32}}
	store := ir.Instr{Kind: ir.InstrStore, Result: ir.NoValue,
		Store: ir.StoreInstr{Val: ir.ValueOf(inc, fr.i32), Addr: addr}}

	entry := fr.f.Block(fr.f.Entry)
	spliceAt(entry, entry.FirstNonPhi(), []ir.Instr{load, add, store})
	return ir.ValueOf(inc, fr.i32)
}

// exitSite names the n-th call to a halting function within a block.
type exitSite struct {
	block   ir.BlockID
	ordinal int
}

// exitSites records the positions of halting calls before any rewriting
// shifts instruction indices.
func (fr *funcRewriter) exitSites() []exitSite {
	var sites []exitSite
	for bi := range fr.f.Blocks {
		b := &fr.f.Blocks[bi]
		n := 0
		for ii := range b.Instrs {
			ins := &b.Instrs[ii]
			if ins.Kind == ir.InstrCall && ins.Call.Callee == "exit" {
				sites = append(sites, exitSite{block: b.ID, ordinal: n})
				n++
			}
		}
	}
	return sites
}

// locateExit re-finds a halting call after the block has been rewritten
// around it.
func (fr *funcRewriter) locateExit(site exitSite) (ir.BlockID, int, bool) {
	b := fr.f.Block(site.block)
	n := 0
	for ii := range b.Instrs {
		ins := &b.Instrs[ii]
		if ins.Kind == ir.InstrCall && ins.Call.Callee == "exit" {
			if n == site.ordinal {
				return b.ID, ii, true
			}
			n++
		}
	}
	return 0, 0, false
}
