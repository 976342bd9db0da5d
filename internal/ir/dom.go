package ir

// DomTree holds immediate dominators for a function's CFG, computed with the
// iterative dataflow algorithm over a reverse postorder. Liveness repair uses
// Dominates to select authoritative definitions and Depth to pick the most
// immediate one.
type DomTree struct {
	idom  []int32 // by BlockID; -1 for entry and unreachable blocks
	depth []int32
	entry BlockID
}

// BuildDomTree computes the dominator tree of f.
func BuildDomTree(f *Func) *DomTree {
	n := len(f.Blocks)
	dt := &DomTree{
		idom:  make([]int32, n),
		depth: make([]int32, n),
		entry: f.Entry,
	}
	for i := range dt.idom {
		dt.idom[i] = -1
		dt.depth[i] = -1
	}
	if n == 0 {
		return dt
	}

	// Reverse postorder over successors.
	rpo := make([]BlockID, 0, n)
	seen := make([]bool, n)
	var walk func(b BlockID)
	walk = func(b BlockID) {
		if int(b) >= n || seen[b] {
			return
		}
		seen[b] = true
		for _, s := range f.Blocks[b].Term.Successors() {
			walk(s)
		}
		rpo = append(rpo, b)
	}
	walk(f.Entry)
	for i, j := 0, len(rpo)-1; i < j; i, j = i+1, j-1 {
		rpo[i], rpo[j] = rpo[j], rpo[i]
	}

	order := make([]int32, n) // BlockID -> rpo position
	for i := range order {
		order[i] = -1
	}
	for i, b := range rpo {
		order[b] = int32(i)
	}

	preds := f.Preds()
	dt.idom[f.Entry] = int32(f.Entry)
	for changed := true; changed; {
		changed = false
		for _, b := range rpo {
			if b == f.Entry {
				continue
			}
			newIdom := int32(-1)
			for _, p := range preds[b] {
				if order[p] < 0 || dt.idom[p] < 0 {
					continue
				}
				if newIdom < 0 {
					newIdom = int32(p)
				} else {
					newIdom = dt.intersect(newIdom, int32(p), order)
				}
			}
			if newIdom >= 0 && dt.idom[b] != newIdom {
				dt.idom[b] = newIdom
				changed = true
			}
		}
	}

	dt.idom[f.Entry] = -1
	for _, b := range rpo {
		dt.depth[b] = dt.computeDepth(b)
	}
	return dt
}

func (dt *DomTree) intersect(a, b int32, order []int32) int32 {
	for a != b {
		for order[a] > order[b] {
			a = dt.idom[a]
		}
		for order[b] > order[a] {
			b = dt.idom[b]
		}
	}
	return a
}

func (dt *DomTree) computeDepth(b BlockID) int32 {
	var d int32
	for cur := int32(b); dt.idom[cur] >= 0; cur = dt.idom[cur] {
		d++
		if d > int32(len(dt.idom)) {
			break
		}
	}
	return d
}

// ImmediateDominator returns the idom of b; ok is false for the entry block
// and unreachable blocks.
func (dt *DomTree) ImmediateDominator(b BlockID) (BlockID, bool) {
	if int(b) >= len(dt.idom) || dt.idom[b] < 0 {
		return 0, false
	}
	return BlockID(dt.idom[b]), true
}

// Dominates reports whether a dominates b. Every block dominates itself.
func (dt *DomTree) Dominates(a, b BlockID) bool {
	if int(a) >= len(dt.idom) || int(b) >= len(dt.idom) {
		return false
	}
	if a == b {
		return true
	}
	cur := int32(b)
	for dt.idom[cur] >= 0 {
		cur = dt.idom[cur]
		if cur == int32(a) {
			return true
		}
	}
	return a == dt.entry && dt.depth[b] >= 0
}

// Depth returns the dominator-tree depth of b, -1 for unreachable blocks.
func (dt *DomTree) Depth(b BlockID) int {
	if int(b) >= len(dt.depth) {
		return -1
	}
	return int(dt.depth[b])
}
