package monitor

import (
	"whiro/internal/ir"
	"whiro/internal/typetable"
)

// Allocator interception: every call to malloc, calloc, realloc or free is
// followed by the matching heap-table update so the runtime can resolve
// inspected pointers.

// interceptHeapOps scans the function and injects heap-table calls
// immediately after each allocator call.
func (fr *funcRewriter) interceptHeapOps() {
	for bi := range fr.f.Blocks {
		b := &fr.f.Blocks[bi]
		for i := 0; i < len(b.Instrs); i++ {
			if b.Instrs[i].Kind != ir.InstrCall {
				continue
			}
			callee := b.Instrs[i].Call.Callee
			if !isAllocator(callee) {
				continue
			}
			inserted := fr.handleHeapOp(b, i)
			i += inserted
		}
	}
}

// handleHeapOp injects the heap-table update for the allocator call at
// index i and returns how many instructions were inserted.
func (fr *funcRewriter) handleHeapOp(b *ir.Block, i int) int {
	call := &b.Instrs[i].Call
	result := b.Instrs[i].Result

	if call.Callee == "free" {
		if len(call.Args) < 1 {
			return 0
		}
		del := fr.callInstr(symDeleteHeap, ir.NoTypeID, call.Args[0])
		spliceAt(b, i+1, []ir.Instr{del})
		fr.d.Stats.HeapOperations++
		return 1
	}

	if result == ir.NoValue || len(call.Args) < 1 {
		return 0
	}
	resultOp := ir.ValueOf(result, fr.f.ValueType(result))

	// The allocation call returns a raw byte pointer; the element type
	// comes from the cast that usually follows it.
	allocType := fr.allocatedType(b, i, result)
	elemSize := fr.d.M.Types.SizeOf(allocType)
	if elemSize <= 0 {
		elemSize = 1
	}

	// Element count is bytes / sizeof(element): folded now when the byte
	// count is constant, an unsigned divide at run time otherwise.
	bytes := call.Args[0]
	if call.Callee == "realloc" {
		if len(call.Args) < 2 {
			return 0
		}
		bytes = call.Args[1]
	}
	var pre []ir.Instr
	var quant ir.Operand
	if bytes.Kind == ir.OperandConst && bytes.Const.Kind == ir.ConstInt {
		quant = fr.i64Const(bytes.Const.Int / elemSize)
	} else {
		v := fr.f.NewValue(fr.i64)
		pre = append(pre, ir.Instr{Kind: ir.InstrBinOp, Result: v,
			Bin: ir.BinOpInstr{Op: ir.OpUDiv, L: bytes, R: fr.i64Const(elemSize), Type: fr.i64}})
		quant = ir.ValueOf(v, fr.i64)
	}

	var update ir.Instr
	if call.Callee == "realloc" {
		update = fr.callInstr(symUpdateHeap, ir.NoTypeID, resultOp, quant)
	} else {
		typeIndex := fr.d.index.IndexForIRType(fr.d.M.Types, allocType)
		if typeIndex == typetable.NoIndex {
			// Without a type index the allocation cannot be inspected.
			return 0
		}
		update = fr.callInstr(symInsertHeap, ir.NoTypeID, resultOp, quant, quant, fr.i32Const(int64(typeIndex)))
	}

	list := append(pre, update)
	spliceAt(b, i+1, list)
	fr.d.Stats.HeapOperations++
	return len(list)
}

// allocatedType recovers the element type of an allocation: the pointee of
// a cast of the result when that cast is the next non-debug instruction
// after the call, the call's own pointee otherwise.
func (fr *funcRewriter) allocatedType(b *ir.Block, i int, result ir.ValueID) ir.TypeID {
	for j := i + 1; j < len(b.Instrs); j++ {
		ins := &b.Instrs[j]
		if ins.IsDebug() {
			continue
		}
		if ins.Kind == ir.InstrCast &&
			ins.Cast.Val.Kind == ir.OperandValue && ins.Cast.Val.Value == result {
			if t, ok := fr.d.M.Types.Lookup(ins.Cast.To); ok && t.Kind == ir.KindPointer {
				return t.Elem
			}
		}
		break
	}
	if t, ok := fr.d.M.Types.Lookup(fr.f.ValueType(result)); ok && t.Kind == ir.KindPointer {
		return t.Elem
	}
	return fr.d.M.Types.Builtins().I8
}
