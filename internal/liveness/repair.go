package liveness

import (
	"whiro/internal/debuginfo"
	"whiro/internal/ir"
)

// Stats counts repair outcomes across one function.
type Stats struct {
	Extended  int // live ranges extended with a merge node
	Shadowed  int // variables spilled to a shadow stack slot
	DiffTypes int // variables whose trace mixes SSA types
}

// Repairer materialises a usable value for each traced variable at an
// inspection point, repairing the IR when optimisation left no dominating
// definition.
type Repairer struct {
	F     *ir.Func
	Types *ir.Interner
	Dom   *ir.DomTree
	Stats *Stats

	shadow map[*debuginfo.LocalVariable]ir.Operand
}

// NewRepairer builds a repairer for one function.
func NewRepairer(f *ir.Func, types *ir.Interner) *Repairer {
	return &Repairer{
		F:      f,
		Types:  types,
		Dom:    ir.BuildDomTree(f),
		Stats:  &Stats{},
		shadow: make(map[*debuginfo.LocalVariable]ir.Operand),
	}
}

// ValidDef selects or materialises the authoritative definition of a traced
// variable at the inspection block. isAddr reports that the operand is a
// stack address the caller must load through. ok is false when the variable
// must be dropped.
func (rp *Repairer) ValidDef(tr *Trace, insBlock ir.BlockID) (op ir.Operand, isAddr bool, ok bool) {
	if len(tr.Obs) == 0 {
		return ir.Operand{}, false, false
	}

	// 1. A stack slot observation wins outright: the slot is live for the
	// whole frame and a load at the inspection point is always valid.
	for i := range tr.Obs {
		if tr.Obs[i].Kind == ObsAddress {
			return tr.Obs[i].Val, true, true
		}
	}

	// 2. A value observed in the inspection block itself; last wins.
	var have bool
	for i := range tr.Obs {
		if tr.Obs[i].Block == insBlock {
			op, have = tr.Obs[i].Val, true
		}
	}
	if have {
		return op, false, true
	}

	// 3. A value observed in a block dominating the inspection block; the
	// most immediate dominator wins.
	bestDepth := -1
	for i := range tr.Obs {
		b := tr.Obs[i].Block
		if rp.Dom.Dominates(b, insBlock) && rp.Dom.Depth(b) >= bestDepth {
			op, have = tr.Obs[i].Val, true
			bestDepth = rp.Dom.Depth(b)
		}
	}
	if have {
		return op, false, true
	}

	// No definition reaches the inspection point: repair the IR, first by
	// extending the live range with a merge node, then by spilling the
	// variable to a shadow slot.
	if op, ok := rp.ExtendLiveRange(tr, insBlock); ok {
		return op, false, true
	}
	if op, ok := rp.ShadowInStack(tr); ok {
		return op, true, true
	}
	return ir.Operand{}, false, false
}

// LargestType returns the widest type observed across the trace. Shadow
// slots and merge nodes are typed with it so every definition fits.
func (rp *Repairer) LargestType(tr *Trace) ir.TypeID {
	largest := tr.Obs[0].Val.Type
	for i := range tr.Obs {
		t := tr.Obs[i].Val.Type
		if rp.Types.SizeOf(t) > rp.Types.SizeOf(largest) {
			largest = t
		}
	}
	return largest
}

// ExtendLiveRange builds a merge node in the inspection block with one
// incoming value per predecessor: a predecessor with an in-block
// observation whose definition is also in-block contributes it (cast to the
// largest trace type when needed); other predecessors contribute the zero
// value. Fails when any traced definition escapes its observation block or
// when no predecessor contributes.
func (rp *Repairer) ExtendLiveRange(tr *Trace, insBlock ir.BlockID) (ir.Operand, bool) {
	for i := range tr.Obs {
		if !rp.defInObservationBlock(&tr.Obs[i]) {
			return ir.Operand{}, false
		}
	}

	largest := rp.LargestType(tr)
	phi := ir.PhiInstr{Type: largest}
	preds := rp.F.Preds()[insBlock]
	diffTypes := false

	for i := range tr.Obs {
		obs := &tr.Obs[i]
		if !blockIn(preds, obs.Block) {
			continue
		}
		val := obs.Val
		if val.Type != largest {
			cast, ok := rp.castDefinition(obs, largest)
			if !ok {
				continue
			}
			val = cast
			diffTypes = true
		}
		if j := phi.IncomingIndex(obs.Block); j >= 0 {
			// A later observation from the same block supersedes the
			// earlier one.
			phi.Incoming[j].Val = val
		} else {
			phi.Incoming = append(phi.Incoming, ir.PhiEdge{Block: obs.Block, Val: val})
		}
	}

	if len(phi.Incoming) == 0 {
		return ir.Operand{}, false
	}
	for _, p := range preds {
		if phi.IncomingIndex(p) < 0 {
			phi.Incoming = append(phi.Incoming, ir.PhiEdge{Block: p, Val: ir.NullConst(largest)})
		}
	}

	result := rp.F.NewValue(largest)
	b := rp.F.Block(insBlock)
	b.InsertAt(0, ir.Instr{Kind: ir.InstrPhi, Result: result, Phi: phi})
	rp.Stats.Extended++
	if diffTypes {
		rp.Stats.DiffTypes++
	}
	return ir.ValueOf(result, largest), true
}

// ShadowInStack spills a variable to a zero-initialised entry-block slot
// typed as the largest trace type, storing each observed definition into it
// at the appropriate point. The returned operand is the slot address.
func (rp *Repairer) ShadowInStack(tr *Trace) (ir.Operand, bool) {
	if addr, ok := rp.shadow[tr.Var]; ok {
		return addr, true
	}

	largest := rp.LargestType(tr)
	ptrTy := rp.Types.Pointer(largest)
	slot := rp.F.NewValue(ptrTy)
	entry := rp.F.Block(rp.F.Entry)
	entry.InsertAt(0, ir.Instr{Kind: ir.InstrAlloca, Result: slot,
		Alloca: ir.AllocaInstr{Elem: largest, Name: tr.Var.VarName}})
	addr := ir.ValueOf(slot, ptrTy)
	entry.InsertAt(1, ir.Instr{Kind: ir.InstrStore, Result: ir.NoValue,
		Store: ir.StoreInstr{Val: ir.NullConst(largest), Addr: addr}})

	diffTypes := false
	stored := 0
	for i := range tr.Obs {
		obs := &tr.Obs[i]
		val := obs.Val
		if val.Type != largest {
			cast, ok := rp.castDefinition(obs, largest)
			if !ok {
				// An invalid cast drops this definition from the trace.
				continue
			}
			val = cast
			diffTypes = true
		}
		bID, idx, ok := rp.storePosition(tr, obs, val)
		if !ok {
			continue
		}
		rp.F.Block(bID).InsertAt(idx, ir.Instr{Kind: ir.InstrStore, Result: ir.NoValue,
			Store: ir.StoreInstr{Val: val, Addr: addr}})
		stored++
	}
	if stored == 0 {
		return ir.Operand{}, false
	}

	rp.shadow[tr.Var] = addr
	rp.Stats.Shadowed++
	if diffTypes {
		rp.Stats.DiffTypes++
	}
	return addr, true
}

// storePosition decides where the shadow store of one observation goes:
// right after the defining instruction (of the stored value, casts
// included) when it sits in a different block than the observation, right
// after the observation otherwise, and at the first non-merge position
// when the definition is a merge node.
func (rp *Repairer) storePosition(tr *Trace, obs *Observation, val ir.Operand) (ir.BlockID, int, bool) {
	if val.Kind == ir.OperandValue {
		defBlock, defIdx, found := rp.F.FindDef(val.Value)
		if found && defBlock != obs.Block {
			b := rp.F.Block(defBlock)
			if b.Instrs[defIdx].Kind == ir.InstrPhi {
				return defBlock, b.FirstNonPhi(), true
			}
			return defBlock, defIdx + 1, true
		}
	}
	bID, idx, ok := rp.observationPosition(tr.Var, obs.Seq)
	if !ok {
		return 0, 0, false
	}
	return bID, idx + 1, true
}

// observationPosition relocates the seq-th debug intrinsic of a variable.
// Instruction indices shift as the repairer inserts code, so observations
// are found by identity and ordinal rather than by stored position.
func (rp *Repairer) observationPosition(v *debuginfo.LocalVariable, seq int) (ir.BlockID, int, bool) {
	n := 0
	for bi := range rp.F.Blocks {
		b := &rp.F.Blocks[bi]
		for ii := range b.Instrs {
			ins := &b.Instrs[ii]
			var iv *debuginfo.LocalVariable
			switch ins.Kind {
			case ir.InstrDebugValue:
				iv = ins.DebugValue.Var
			case ir.InstrDebugDeclare:
				iv = ins.DebugDeclare.Var
			default:
				continue
			}
			if iv != v {
				continue
			}
			if n == seq {
				return b.ID, ii, true
			}
			n++
		}
	}
	return 0, 0, false
}

// castDefinition widens one observed definition to the target type. SSA
// values get a cast instruction after their definition; constants convert
// in place. ok is false when no valid cast exists.
func (rp *Repairer) castDefinition(obs *Observation, to ir.TypeID) (ir.Operand, bool) {
	op, valid := ir.CastOpcode(rp.Types, obs.Val.Type, to)
	if !valid {
		return ir.Operand{}, false
	}
	if obs.Val.Kind == ir.OperandConst {
		return convertConst(obs.Val, to), true
	}
	if obs.Val.Kind != ir.OperandValue {
		return ir.Operand{}, false
	}
	defBlock, defIdx, found := rp.F.FindDef(obs.Val.Value)
	if !found {
		return ir.Operand{}, false
	}
	b := rp.F.Block(defBlock)
	idx := defIdx + 1
	if b.Instrs[defIdx].Kind == ir.InstrPhi {
		idx = b.FirstNonPhi()
	}
	result := rp.F.NewValue(to)
	b.InsertAt(idx, ir.Instr{Kind: ir.InstrCast, Result: result,
		Cast: ir.CastInstr{Op: op, Val: obs.Val, To: to}})
	return ir.ValueOf(result, to), true
}

func convertConst(c ir.Operand, to ir.TypeID) ir.Operand {
	out := c
	out.Type = to
	out.Const.Type = to
	return out
}

func (rp *Repairer) defInObservationBlock(obs *Observation) bool {
	if obs.Val.Kind != ir.OperandValue {
		return true
	}
	defBlock, _, found := rp.F.FindDef(obs.Val.Value)
	if !found {
		// Parameters are defined at function entry.
		return obs.Block == rp.F.Entry
	}
	return defBlock == obs.Block
}

func blockIn(blocks []ir.BlockID, b ir.BlockID) bool {
	for _, x := range blocks {
		if x == b {
			return true
		}
	}
	return false
}
