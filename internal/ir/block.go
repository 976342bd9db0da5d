package ir

// BlockID indexes a block within its function.
type BlockID uint32

type Block struct {
	ID     BlockID
	Instrs []Instr
	Term   Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// Append adds an instruction at the end of the block.
func (b *Block) Append(ins Instr) {
	b.Instrs = append(b.Instrs, ins)
}

// InsertAt inserts an instruction before index i. i == len(Instrs) appends.
func (b *Block) InsertAt(i int, ins Instr) {
	b.Instrs = append(b.Instrs, Instr{})
	copy(b.Instrs[i+1:], b.Instrs[i:])
	b.Instrs[i] = ins
}

// FirstNonPhi returns the index of the first instruction that is not a phi.
func (b *Block) FirstNonPhi() int {
	for i := range b.Instrs {
		if b.Instrs[i].Kind != InstrPhi {
			return i
		}
	}
	return len(b.Instrs)
}
