package reify

import (
	"whiro/internal/debuginfo"
	"whiro/internal/ir"
)

// Finder enumerates the distinct debug type nodes of a module in
// deterministic first-visit order: global variable types, then each
// function's observed local types in instruction order, then the module's
// retained types. The reifier assigns table indices in this order.
type Finder struct {
	types []debuginfo.Type
	seen  map[debuginfo.Type]bool
}

// NewFinder walks the module and collects its debug types.
func NewFinder(m *ir.Module) *Finder {
	fd := &Finder{seen: make(map[debuginfo.Type]bool)}
	for _, g := range m.Globals {
		if g.DI != nil {
			fd.visit(g.DI.Type)
		}
	}
	for _, f := range m.Funcs {
		for bi := range f.Blocks {
			for ii := range f.Blocks[bi].Instrs {
				ins := &f.Blocks[bi].Instrs[ii]
				switch ins.Kind {
				case ir.InstrDebugValue:
					if ins.DebugValue.Var != nil {
						fd.visit(ins.DebugValue.Var.Type)
					}
				case ir.InstrDebugDeclare:
					if ins.DebugDeclare.Var != nil {
						fd.visit(ins.DebugDeclare.Var.Type)
					}
				}
			}
		}
	}
	for _, t := range m.ExtraTypes {
		fd.visit(t)
	}
	return fd
}

func (fd *Finder) visit(t debuginfo.Type) {
	if t == nil || fd.seen[t] {
		return
	}
	fd.seen[t] = true
	fd.types = append(fd.types, t)
	switch n := t.(type) {
	case *debuginfo.DerivedType:
		fd.visit(n.Base)
	case *debuginfo.CompositeType:
		fd.visit(n.Base)
		for _, m := range n.Members {
			fd.visit(m)
		}
	}
}

// Types returns the collected nodes in visit order.
func (fd *Finder) Types() []debuginfo.Type {
	return fd.types
}
