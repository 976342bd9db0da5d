package ir

import (
	"fmt"
)

// Validate checks the structural invariants the instrumenter relies on:
// every block terminated, operands referencing defined values, phi arity
// matching predecessors. It returns the first violation found.
func Validate(f *Func) error {
	if len(f.Blocks) == 0 {
		return fmt.Errorf("func %s: no blocks", f.Name)
	}
	if int(f.Entry) >= len(f.Blocks) {
		return fmt.Errorf("func %s: entry block %d out of range", f.Name, f.Entry)
	}
	preds := f.Preds()
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		if !b.Terminated() {
			return fmt.Errorf("func %s: block %d not terminated", f.Name, b.ID)
		}
		for _, s := range b.Term.Successors() {
			if int(s) >= len(f.Blocks) {
				return fmt.Errorf("func %s: block %d branches to missing block %d", f.Name, b.ID, s)
			}
		}
		for ii := range b.Instrs {
			ins := &b.Instrs[ii]
			if ins.Result != NoValue && int(ins.Result) >= len(f.ValueTypes) {
				return fmt.Errorf("func %s: block %d instr %d defines unknown value %d", f.Name, b.ID, ii, ins.Result)
			}
			for _, op := range instrOperands(ins) {
				if op.Kind == OperandValue && int(op.Value) >= len(f.ValueTypes) {
					return fmt.Errorf("func %s: block %d instr %d uses unknown value %d", f.Name, b.ID, ii, op.Value)
				}
			}
			if ins.Kind == InstrPhi {
				if ii != 0 && b.Instrs[ii-1].Kind != InstrPhi {
					return fmt.Errorf("func %s: block %d phi at %d not grouped at block head", f.Name, b.ID, ii)
				}
				if len(ins.Phi.Incoming) != len(preds[b.ID]) {
					return fmt.Errorf("func %s: block %d phi has %d incoming for %d predecessors",
						f.Name, b.ID, len(ins.Phi.Incoming), len(preds[b.ID]))
				}
			}
		}
	}
	return nil
}

func instrOperands(ins *Instr) []Operand {
	switch ins.Kind {
	case InstrLoad:
		return []Operand{ins.Load.Addr}
	case InstrStore:
		return []Operand{ins.Store.Val, ins.Store.Addr}
	case InstrBinOp:
		return []Operand{ins.Bin.L, ins.Bin.R}
	case InstrCast:
		return []Operand{ins.Cast.Val}
	case InstrCall:
		return ins.Call.Args
	case InstrPhi:
		ops := make([]Operand, 0, len(ins.Phi.Incoming))
		for _, e := range ins.Phi.Incoming {
			ops = append(ops, e.Val)
		}
		return ops
	case InstrDebugValue:
		return []Operand{ins.DebugValue.Val}
	case InstrDebugDeclare:
		return []Operand{ins.DebugDeclare.Addr}
	}
	return nil
}
