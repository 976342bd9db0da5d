package monitor

import "fmt"

// Stats counts what the instrumentation did to a module.
type Stats struct {
	TotalVars      int // variables inspected
	ExtendedVars   int // live ranges extended with merge nodes
	Var2Stack      int // variables shadowed in the stack
	HeapOperations int // allocator calls intercepted
	InstFuncs      int // functions instrumented
	DiffVars       int // variables with differing SSA types
}

// Summary renders the counters one per line.
func (s *Stats) Summary() string {
	return fmt.Sprintf(
		"%d variables inspected\n%d extended live ranges\n%d variables shadowed in the stack\n%d heap operations\n%d functions instrumented\n%d variables with different SSA types\n",
		s.TotalVars, s.ExtendedVars, s.Var2Stack, s.HeapOperations, s.InstFuncs, s.DiffVars)
}
