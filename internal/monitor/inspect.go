package monitor

import (
	"whiro/internal/debuginfo"
	"whiro/internal/diag"
	"whiro/internal/ir"
	"whiro/internal/liveness"
	"whiro/internal/reify"
	"whiro/internal/typetable"
)

// Inspection-point construction. For every traced variable the repairer
// materialises an authoritative definition, then the variable's debug type
// decides which runtime inspection call to emit. The emitted loads, casts
// and calls form one contiguous run spliced in before the terminator or
// halting call.

func (fr *funcRewriter) inspectionList(traces *liveness.Set, rep *liveness.Repairer, block ir.BlockID, counter ir.Operand) []ir.Instr {
	var list []ir.Instr
	opts := fr.d.Opts

	// Local variables first, in trace order.
	if !(opts.memFilter() && !opts.Heap && !opts.Stack) {
		for _, tr := range traces.Traces() {
			v := tr.Var
			if v.Artificial {
				continue
			}
			if _, isSub := v.Type.(*debuginfo.SubroutineType); isSub {
				continue
			}
			varType := debuginfo.Strip(v.Type)
			if opts.memFilter() && !opts.Stack && !isPointerNode(varType) {
				continue
			}
			def, isAddr, ok := rep.ValidDef(tr, block)
			if !ok {
				continue
			}
			if !fr.counted {
				fr.d.Stats.TotalVars++
			}
			fr.emitVariable(&list, traces, rep, block, v.VarName, fr.f.Name, varType, def, isAddr, counter)
		}
	}
	fr.counted = true

	// Then the statics, under the current function's calling context.
	if opts.memFilter() && !opts.Static {
		return list
	}
	for _, g := range fr.d.statics {
		varType := debuginfo.Strip(g.DI.Type)
		def := ir.GlobalOf(g.Name, fr.d.M.Types.Pointer(g.Type))
		fr.emitVariable(&list, traces, rep, block, g.DI.VarName, "(Static) "+fr.f.Name, varType, def, true, counter)
	}
	return list
}

func isPointerNode(t debuginfo.Type) bool {
	dt, ok := t.(*debuginfo.DerivedType)
	return ok && dt.Tag == debuginfo.TagPointerType
}

// emitVariable dispatches one variable by its debug type.
func (fr *funcRewriter) emitVariable(list *[]ir.Instr, traces *liveness.Set, rep *liveness.Repairer, block ir.BlockID, name, scope string, varType debuginfo.Type, def ir.Operand, isAddr bool, counter ir.Operand) {
	switch t := varType.(type) {
	case *debuginfo.BasicType:
		fr.emitScalar(list, name, scope, reify.FormatOf(t), def, isAddr, counter, false)

	case *debuginfo.DerivedType:
		if t.Tag != debuginfo.TagPointerType {
			return
		}
		// Pointers to functions are never inspected.
		if _, isSub := debuginfo.Strip(t.Base).(*debuginfo.SubroutineType); isSub {
			return
		}
		fr.emitPointer(list, name, scope, t, def, isAddr, counter)

	case *debuginfo.CompositeType:
		switch t.Tag {
		case debuginfo.TagUnionType:
			fr.emitUnion(list, name, scope, t, def, isAddr, counter)
		case debuginfo.TagStructureType:
			fr.emitStruct(list, name, scope, t, def, isAddr, counter)
		case debuginfo.TagArrayType:
			if _, isBasic := debuginfo.Strip(t.Base).(*debuginfo.BasicType); isBasic {
				fr.emitArray(list, traces, rep, block, name, scope, t, def, isAddr, counter)
			} else {
				diag.ReportInfo(fr.d.Reporter, diag.InsNonScalarArray,
					diag.Locus{Func: fr.f.Name, Var: name}, "arrays of aggregates are not inspected")
			}
		case debuginfo.TagEnumerationType:
			// Enumerations report as plain integers.
			fr.emitScalar(list, name, scope, typetable.FormatInt, def, isAddr, counter, false)
		}
	}
}

// loadThrough materialises the variable's value from its authoritative
// definition: one load when the definition is a stack slot or global, then
// further loads while the value is still a pointer to a pointer.
func (fr *funcRewriter) loadThrough(list *[]ir.Instr, def ir.Operand, isAddr bool) ir.Operand {
	val := def
	if isAddr {
		load, loaded := fr.loadInstr(val)
		*list = append(*list, load)
		val = loaded
	}
	for {
		t, ok := fr.d.M.Types.Lookup(val.Type)
		if !ok || t.Kind != ir.KindPointer {
			return val
		}
		elem, ok := fr.d.M.Types.Lookup(t.Elem)
		if !ok || elem.Kind != ir.KindPointer {
			return val
		}
		load, loaded := fr.loadInstr(val)
		*list = append(*list, load)
		val = loaded
	}
}

// emitScalar renders a scalar through the runtime's scalar entry point.
// Floats widen to double before the call.
func (fr *funcRewriter) emitScalar(list *[]ir.Instr, name, scope string, format typetable.Format, def ir.Operand, isAddr bool, counter ir.Operand, scalarized bool) {
	val := fr.loadThrough(list, def, isAddr)
	if t, ok := fr.d.M.Types.Lookup(val.Type); ok && t.Kind == ir.KindPointer {
		load, loaded := fr.loadInstr(val)
		*list = append(*list, load)
		val = loaded
	}
	if format == typetable.FormatFloat {
		if cast, widened, ok := fr.castTo(val, fr.d.M.Types.Builtins().Double); ok {
			*list = append(*list, cast)
			val = widened
		}
	}
	*list = append(*list, fr.callInstr(symInspectScalar, ir.NoTypeID,
		val, fr.i32Const(int64(format)), fr.str(name), fr.str(scope), counter,
		fr.i32Const(fr.d.boolBit(scalarized))))
}

// emitScalarValue renders an already-materialised value (array hashes).
func (fr *funcRewriter) emitScalarValue(list *[]ir.Instr, name, scope string, format typetable.Format, val, counter ir.Operand) {
	*list = append(*list, fr.callInstr(symInspectScalar, ir.NoTypeID,
		val, fr.i32Const(int64(format)), fr.str(name), fr.str(scope), counter,
		fr.i32Const(0)))
}

// typeIndexFor resolves a debug node to its Type Table position, falling
// back to IR-type name matching the way allocation sites are resolved.
func (fr *funcRewriter) typeIndexFor(node debuginfo.Type, irType ir.TypeID) int32 {
	if node != nil {
		if idx, ok := fr.d.index.IndexOf(debuginfo.Strip(node)); ok {
			return idx
		}
	}
	if irType != ir.NoTypeID {
		return fr.d.index.IndexForIRType(fr.d.M.Types, irType)
	}
	return typetable.NoIndex
}

func (fr *funcRewriter) emitPointer(list *[]ir.Instr, name, scope string, t *debuginfo.DerivedType, def ir.Operand, isAddr bool, counter ir.Operand) {
	var staging []ir.Instr
	val := def
	if isAddr {
		load, loaded := fr.loadInstr(val)
		staging = append(staging, load)
		val = loaded
	}
	pointee := ir.NoTypeID
	if vt, ok := fr.d.M.Types.Lookup(val.Type); ok && vt.Kind == ir.KindPointer {
		pointee = vt.Elem
	}
	typeIndex := fr.typeIndexFor(t.Base, pointee)
	if typeIndex == typetable.NoIndex {
		// An unresolved type index silently skips the variable.
		return
	}
	*list = append(*list, staging...)
	*list = append(*list, fr.callInstr(symInspectPointer, ir.NoTypeID,
		val, fr.i32Const(int64(typeIndex)), fr.str(name), fr.str(scope), counter))
}

func (fr *funcRewriter) emitUnion(list *[]ir.Instr, name, scope string, t *debuginfo.CompositeType, def ir.Operand, isAddr bool, counter ir.Operand) {
	if !isAddr {
		// A union reduced to one SSA scalar renders through the scalar
		// path like any other scalarised aggregate.
		fr.emitScalar(list, name, scope, typetable.FormatInt, def, isAddr, counter, true)
		return
	}
	*list = append(*list, fr.callInstr(symInspectUnion, ir.NoTypeID,
		def, fr.i64Const(t.Bits/8), fr.str(name), fr.str(scope), counter))
}

func (fr *funcRewriter) emitStruct(list *[]ir.Instr, name, scope string, t *debuginfo.CompositeType, def ir.Operand, isAddr bool, counter ir.Operand) {
	val := def
	if !isAddr {
		// The definition is an SSA value: either a pointer to the struct
		// or, after scalar replacement, a single scalar.
		vt, ok := fr.d.M.Types.Lookup(val.Type)
		if !ok || vt.Kind != ir.KindPointer {
			fr.emitScalar(list, name, scope, fr.irFormatOf(val.Type), def, isAddr, counter, true)
			return
		}
	}
	pointee := ir.NoTypeID
	if vt, ok := fr.d.M.Types.Lookup(val.Type); ok && vt.Kind == ir.KindPointer {
		pointee = vt.Elem
	}
	typeIndex := fr.typeIndexFor(t, pointee)
	if typeIndex == typetable.NoIndex {
		return
	}
	*list = append(*list, fr.callInstr(symInspectStruct, ir.NoTypeID,
		val, fr.i32Const(int64(typeIndex)), fr.str(name), fr.str(scope), counter))
}

// emitArray hashes a stack array of scalars. Total element count and the
// innermost-dimension step come from the debug type; dynamic bounds are
// re-materialised from their defining variables through the repairer.
func (fr *funcRewriter) emitArray(list *[]ir.Instr, traces *liveness.Set, rep *liveness.Repairer, block ir.BlockID, name, scope string, t *debuginfo.CompositeType, def ir.Operand, isAddr bool, counter ir.Operand) {
	if !isAddr {
		fr.emitScalar(list, name, scope, fr.irFormatOf(def.Type), def, isAddr, counter, true)
		return
	}
	elemFormat := reify.FormatOf(t.Base)
	if !elemFormat.IsScalar() {
		return
	}

	var staging []ir.Instr
	total, ok := fr.arrayExtent(&staging, traces, rep, block, t, true)
	if !ok {
		return
	}
	step, ok := fr.arrayExtent(&staging, traces, rep, block, t, false)
	if !ok {
		return
	}

	*list = append(*list, staging...)
	hash := fr.callInstr(symComputeHashcode, fr.i32,
		def, total, step, fr.i32Const(int64(elemFormat)))
	*list = append(*list, hash)
	fr.emitScalarValue(list, name, scope, typetable.FormatInt,
		ir.ValueOf(hash.Result, fr.i32), counter)
}

// arrayExtent materialises either the total element count (all dimensions)
// or the step (the innermost dimension).
func (fr *funcRewriter) arrayExtent(staging *[]ir.Instr, traces *liveness.Set, rep *liveness.Repairer, block ir.BlockID, t *debuginfo.CompositeType, total bool) (ir.Operand, bool) {
	subs := t.Subranges
	if len(subs) == 0 {
		return ir.Operand{}, false
	}
	if !total {
		return fr.dimension(staging, traces, rep, block, subs[len(subs)-1])
	}
	// With a known storage size the count folds at compile time.
	if t.Bits > 0 {
		elemBits := debuginfo.SizeBits(debuginfo.Strip(t.Base))
		if elemBits > 0 {
			return fr.i64Const(t.Bits / elemBits), true
		}
	}
	acc, ok := fr.dimension(staging, traces, rep, block, subs[0])
	if !ok {
		return ir.Operand{}, false
	}
	for _, s := range subs[1:] {
		dim, ok := fr.dimension(staging, traces, rep, block, s)
		if !ok {
			return ir.Operand{}, false
		}
		v := fr.f.NewValue(fr.i64)
		*staging = append(*staging, ir.Instr{Kind: ir.InstrBinOp, Result: v,
			Bin: ir.BinOpInstr{Op: ir.OpMul, L: acc, R: dim, Type: fr.i64}})
		acc = ir.ValueOf(v, fr.i64)
	}
	return acc, true
}

// dimension resolves one subrange bound: a constant directly, a
// variable-length bound through its defining variable's trace.
func (fr *funcRewriter) dimension(staging *[]ir.Instr, traces *liveness.Set, rep *liveness.Repairer, block ir.BlockID, s debuginfo.Subrange) (ir.Operand, bool) {
	if s.HasCount {
		return fr.i64Const(s.Count), true
	}
	if s.CountVar == nil {
		return ir.Operand{}, false
	}
	tr := traces.ByVar(s.CountVar)
	if tr == nil {
		return ir.Operand{}, false
	}
	def, isAddr, ok := rep.ValidDef(tr, block)
	if !ok {
		return ir.Operand{}, false
	}
	val := fr.loadThrough(staging, def, isAddr)
	if cast, widened, ok := fr.castTo(val, fr.i64); ok {
		*staging = append(*staging, cast)
		val = widened
	}
	return val, true
}

// irFormatOf maps an IR type onto the closest scalar format for the
// scalarised rendering path.
func (fr *funcRewriter) irFormatOf(id ir.TypeID) typetable.Format {
	t, ok := fr.d.M.Types.Lookup(id)
	if !ok {
		return typetable.FormatInt
	}
	switch t.Kind {
	case ir.KindDouble:
		return typetable.FormatDouble
	case ir.KindFloat:
		return typetable.FormatFloat
	case ir.KindInt:
		switch t.Bits {
		case 8:
			return typetable.FormatChar
		case 16:
			return typetable.FormatShort
		case 64:
			return typetable.FormatLong
		}
		return typetable.FormatInt
	case ir.KindPointer:
		return typetable.FormatULong
	}
	return typetable.FormatInt
}
