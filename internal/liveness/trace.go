package liveness

import (
	"whiro/internal/debuginfo"
	"whiro/internal/ir"
)

// ObsKind distinguishes the two debug observation forms.
type ObsKind uint8

const (
	// ObsValue: an SSA value holds the variable at this point.
	ObsValue ObsKind = iota
	// ObsAddress: the variable lives in a named stack slot.
	ObsAddress
)

// Observation is one debug-intrinsic record of a variable. Block is the
// block the intrinsic sits in; Seq is the observation's ordinal among the
// variable's intrinsics, used to relocate it after the function has been
// rewritten around it.
type Observation struct {
	Kind  ObsKind
	Val   ir.Operand
	Block ir.BlockID
	Seq   int
}

// Trace is the ordered observation sequence of one source variable within
// a function, filtered of null and undef records.
type Trace struct {
	Var *debuginfo.LocalVariable
	Obs []Observation
}

// HasAddress reports whether any observation is an address-of record.
func (t *Trace) HasAddress() bool {
	for i := range t.Obs {
		if t.Obs[i].Kind == ObsAddress {
			return true
		}
	}
	return false
}

// Set holds the traces of a function in first-observation order.
type Set struct {
	traces []*Trace
	byVar  map[*debuginfo.LocalVariable]*Trace
}

// Traces returns the traces in first-observation order.
func (s *Set) Traces() []*Trace {
	return s.traces
}

// ByVar returns the trace of one variable, nil when every observation of
// the variable was filtered out.
func (s *Set) ByVar(v *debuginfo.LocalVariable) *Trace {
	return s.byVar[v]
}

// Collect scans a function's debug intrinsics and builds the per-variable
// traces. Only variables of the function's own scope are tracked; null and
// undef observations are dropped at collection, and a variable whose every
// observation is dropped never gets a trace.
func Collect(f *ir.Func) *Set {
	s := &Set{byVar: make(map[*debuginfo.LocalVariable]*Trace)}
	seq := make(map[*debuginfo.LocalVariable]int)
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		for ii := range b.Instrs {
			ins := &b.Instrs[ii]
			var v *debuginfo.LocalVariable
			var obs Observation
			switch ins.Kind {
			case ir.InstrDebugValue:
				v = ins.DebugValue.Var
				obs = Observation{Kind: ObsValue, Val: ins.DebugValue.Val, Block: b.ID}
			case ir.InstrDebugDeclare:
				v = ins.DebugDeclare.Var
				obs = Observation{Kind: ObsAddress, Val: ins.DebugDeclare.Addr, Block: b.ID}
			default:
				continue
			}
			if v == nil || v.Scope == nil || v.Scope.FnName != f.Name {
				continue
			}
			obs.Seq = seq[v]
			seq[v]++
			if dropObservation(&obs) {
				continue
			}
			tr, ok := s.byVar[v]
			if !ok {
				tr = &Trace{Var: v}
				s.byVar[v] = tr
				s.traces = append(s.traces, tr)
			}
			tr.Obs = append(tr.Obs, obs)
		}
	}
	return s
}

func dropObservation(obs *Observation) bool {
	switch obs.Kind {
	case ObsValue:
		if obs.Val.Kind == ir.OperandInvalid {
			return true
		}
		return obs.Val.IsNullOrUndef()
	case ObsAddress:
		return obs.Val.Kind == ir.OperandInvalid
	}
	return true
}
