package ir

import (
	"fmt"

	"fortio.org/safecast"

	"whiro/internal/debuginfo"
)

// Param is a formal parameter; Value is the SSA value it enters with.
type Param struct {
	Name  string
	Type  TypeID
	Value ValueID
}

type Func struct {
	Name   string
	Params []Param
	Result TypeID

	Blocks []Block
	Entry  BlockID

	// ValueTypes maps every defined ValueID to its type; its length is the
	// next value number.
	ValueTypes []TypeID

	Subprogram *debuginfo.Subprogram
}

// NewValue allocates a fresh SSA value of type t.
func (f *Func) NewValue(t TypeID) ValueID {
	n, err := safecast.Conv[uint32](len(f.ValueTypes))
	if err != nil {
		panic(fmt.Errorf("len(values) overflow: %w", err))
	}
	f.ValueTypes = append(f.ValueTypes, t)
	return ValueID(n)
}

// ValueType returns the type of a value, NoTypeID when out of range.
func (f *Func) ValueType(v ValueID) TypeID {
	if v == NoValue || int(v) >= len(f.ValueTypes) {
		return NoTypeID
	}
	return f.ValueTypes[v]
}

// Block returns the block with the given ID, nil when out of range.
func (f *Func) Block(id BlockID) *Block {
	if int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// Preds builds the predecessor map of the CFG.
func (f *Func) Preds() map[BlockID][]BlockID {
	preds := make(map[BlockID][]BlockID, len(f.Blocks))
	for i := range f.Blocks {
		for _, s := range f.Blocks[i].Term.Successors() {
			preds[s] = append(preds[s], f.Blocks[i].ID)
		}
	}
	return preds
}

// FindDef locates the instruction defining v. ok is false for values with
// no defining instruction (parameters).
func (f *Func) FindDef(v ValueID) (BlockID, int, bool) {
	for bi := range f.Blocks {
		for ii := range f.Blocks[bi].Instrs {
			if f.Blocks[bi].Instrs[ii].Result == v {
				return f.Blocks[bi].ID, ii, true
			}
		}
	}
	return 0, 0, false
}

// ReturnBlock finds the function's unique return block. The upstream
// toolchain merges returns; when no return block exists (infinite loops,
// unreachable exits) ok is false.
func (f *Func) ReturnBlock() (BlockID, bool) {
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == TermReturn {
			return f.Blocks[i].ID, true
		}
	}
	return 0, false
}
