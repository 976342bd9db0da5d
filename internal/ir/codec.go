package ir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"whiro/internal/debuginfo"
)

// Current schema version - increment when the container format changes.
const moduleSchemaVersion uint16 = 1

// The on-disk container for an IR module. Debug metadata forms a cyclic
// pointer graph in memory (a struct may point to itself through a member),
// so nodes are flattened into an indexed table before encoding.

type modulePayload struct {
	Schema     uint16
	Name       string
	SourceFile string

	Types   []Type
	Structs []StructInfo

	Globals []globalRec
	Funcs   []funcRec

	Debug debugPayload
}

type debugPayload struct {
	Nodes       []debugNodeRec
	Subprograms []subprogramRec
	Locals      []localVarRec
	GlobalVars  []globalVarRec
}

const (
	nodeBasic uint8 = iota
	nodeDerived
	nodeComposite
	nodeSubroutine
)

type debugNodeRec struct {
	Kind      uint8
	Tag       uint16
	Enc       uint16
	Name      string
	Bits      int64
	Offset    int64
	Base      int32
	Members   []int32
	Subranges []subrangeRec
}

type subrangeRec struct {
	Count    int64
	HasCount bool
	CountVar int32
}

type subprogramRec struct {
	Name string
	File string
	Line int
}

type localVarRec struct {
	Name       string
	Scope      int32
	Type       int32
	Line       int
	Artificial bool
}

type globalVarRec struct {
	Name string
	Type int32
	File string
	Line int
}

type globalRec struct {
	Name string
	Type TypeID
	Init Const
	DI   int32
}

type funcRec struct {
	Name       string
	Params     []Param
	Result     TypeID
	Entry      BlockID
	ValueTypes []TypeID
	Blocks     []blockRec
	Subprogram int32
}

type blockRec struct {
	ID     BlockID
	Instrs []instrRec
	Term   Terminator
}

type instrRec struct {
	Kind   InstrKind
	Result ValueID

	Alloca AllocaInstr
	Load   LoadInstr
	Store  StoreInstr
	Bin    BinOpInstr
	Cast   CastInstr
	Call   CallInstr
	Phi    PhiInstr

	DbgVar     int32
	DbgOperand Operand
}

type flattener struct {
	p        *debugPayload
	nodeIdx  map[debuginfo.Type]int32
	subIdx   map[*debuginfo.Subprogram]int32
	localIdx map[*debuginfo.LocalVariable]int32
	gvarIdx  map[*debuginfo.GlobalVariable]int32
}

func newFlattener(p *debugPayload) *flattener {
	return &flattener{
		p:        p,
		nodeIdx:  make(map[debuginfo.Type]int32),
		subIdx:   make(map[*debuginfo.Subprogram]int32),
		localIdx: make(map[*debuginfo.LocalVariable]int32),
		gvarIdx:  make(map[*debuginfo.GlobalVariable]int32),
	}
}

func (fl *flattener) typeIndex(t debuginfo.Type) int32 {
	if t == nil {
		return -1
	}
	if idx, ok := fl.nodeIdx[t]; ok {
		return idx
	}
	// Register before descending so cyclic graphs terminate.
	idx := int32(len(fl.p.Nodes))
	fl.nodeIdx[t] = idx
	fl.p.Nodes = append(fl.p.Nodes, debugNodeRec{})

	var rec debugNodeRec
	switch n := t.(type) {
	case *debuginfo.BasicType:
		rec = debugNodeRec{Kind: nodeBasic, Enc: uint16(n.Enc), Name: n.TypeName, Bits: n.Bits}
	case *debuginfo.DerivedType:
		rec = debugNodeRec{
			Kind:   nodeDerived,
			Tag:    uint16(n.Tag),
			Name:   n.TypeName,
			Bits:   n.Bits,
			Offset: n.OffsetBits,
			Base:   fl.typeIndex(n.Base),
		}
	case *debuginfo.CompositeType:
		rec = debugNodeRec{
			Kind: nodeComposite,
			Tag:  uint16(n.Tag),
			Name: n.TypeName,
			Bits: n.Bits,
			Base: fl.typeIndex(n.Base),
		}
		for _, m := range n.Members {
			rec.Members = append(rec.Members, fl.typeIndex(m))
		}
		for _, s := range n.Subranges {
			rec.Subranges = append(rec.Subranges, subrangeRec{
				Count:    s.Count,
				HasCount: s.HasCount,
				CountVar: fl.localIndex(s.CountVar),
			})
		}
	case *debuginfo.SubroutineType:
		rec = debugNodeRec{Kind: nodeSubroutine}
	}
	fl.p.Nodes[idx] = rec
	return idx
}

func (fl *flattener) subprogramIndex(s *debuginfo.Subprogram) int32 {
	if s == nil {
		return -1
	}
	if idx, ok := fl.subIdx[s]; ok {
		return idx
	}
	idx := int32(len(fl.p.Subprograms))
	fl.subIdx[s] = idx
	fl.p.Subprograms = append(fl.p.Subprograms, subprogramRec{Name: s.FnName, File: s.File, Line: s.Line})
	return idx
}

func (fl *flattener) localIndex(v *debuginfo.LocalVariable) int32 {
	if v == nil {
		return -1
	}
	if idx, ok := fl.localIdx[v]; ok {
		return idx
	}
	idx := int32(len(fl.p.Locals))
	fl.localIdx[v] = idx
	fl.p.Locals = append(fl.p.Locals, localVarRec{})
	fl.p.Locals[idx] = localVarRec{
		Name:       v.VarName,
		Scope:      fl.subprogramIndex(v.Scope),
		Type:       fl.typeIndex(v.Type),
		Line:       v.Line,
		Artificial: v.Artificial,
	}
	return idx
}

func (fl *flattener) globalVarIndex(v *debuginfo.GlobalVariable) int32 {
	if v == nil {
		return -1
	}
	if idx, ok := fl.gvarIdx[v]; ok {
		return idx
	}
	idx := int32(len(fl.p.GlobalVars))
	fl.gvarIdx[v] = idx
	fl.p.GlobalVars = append(fl.p.GlobalVars, globalVarRec{})
	fl.p.GlobalVars[idx] = globalVarRec{
		Name: v.VarName,
		Type: fl.typeIndex(v.Type),
		File: v.File,
		Line: v.Line,
	}
	return idx
}

type unflattener struct {
	p      *debugPayload
	nodes  []debuginfo.Type
	subs   []*debuginfo.Subprogram
	locals []*debuginfo.LocalVariable
	gvars  []*debuginfo.GlobalVariable
}

func newUnflattener(p *debugPayload) *unflattener {
	uf := &unflattener{
		p:      p,
		nodes:  make([]debuginfo.Type, len(p.Nodes)),
		subs:   make([]*debuginfo.Subprogram, len(p.Subprograms)),
		locals: make([]*debuginfo.LocalVariable, len(p.Locals)),
		gvars:  make([]*debuginfo.GlobalVariable, len(p.GlobalVars)),
	}
	// Allocate every node first so cyclic references resolve, then fill.
	for i, rec := range p.Nodes {
		switch rec.Kind {
		case nodeBasic:
			uf.nodes[i] = &debuginfo.BasicType{}
		case nodeDerived:
			uf.nodes[i] = &debuginfo.DerivedType{}
		case nodeComposite:
			uf.nodes[i] = &debuginfo.CompositeType{}
		case nodeSubroutine:
			uf.nodes[i] = &debuginfo.SubroutineType{}
		}
	}
	for i, rec := range p.Subprograms {
		uf.subs[i] = &debuginfo.Subprogram{FnName: rec.Name, File: rec.File, Line: rec.Line}
	}
	for i := range p.Locals {
		uf.locals[i] = &debuginfo.LocalVariable{}
	}
	for i := range p.GlobalVars {
		uf.gvars[i] = &debuginfo.GlobalVariable{}
	}
	for i, rec := range p.Nodes {
		switch n := uf.nodes[i].(type) {
		case *debuginfo.BasicType:
			n.TypeName = rec.Name
			n.Enc = debuginfo.Encoding(rec.Enc)
			n.Bits = rec.Bits
		case *debuginfo.DerivedType:
			n.Tag = debuginfo.Tag(rec.Tag)
			n.TypeName = rec.Name
			n.Bits = rec.Bits
			n.OffsetBits = rec.Offset
			n.Base = uf.typeAt(rec.Base)
		case *debuginfo.CompositeType:
			n.Tag = debuginfo.Tag(rec.Tag)
			n.TypeName = rec.Name
			n.Bits = rec.Bits
			n.Base = uf.typeAt(rec.Base)
			for _, m := range rec.Members {
				if mt, ok := uf.typeAt(m).(*debuginfo.DerivedType); ok {
					n.Members = append(n.Members, mt)
				}
			}
			for _, s := range rec.Subranges {
				n.Subranges = append(n.Subranges, debuginfo.Subrange{
					Count:    s.Count,
					HasCount: s.HasCount,
					CountVar: uf.localAt(s.CountVar),
				})
			}
		}
	}
	for i, rec := range p.Locals {
		uf.locals[i].VarName = rec.Name
		uf.locals[i].Scope = uf.subAt(rec.Scope)
		uf.locals[i].Type = uf.typeAt(rec.Type)
		uf.locals[i].Line = rec.Line
		uf.locals[i].Artificial = rec.Artificial
	}
	for i, rec := range p.GlobalVars {
		uf.gvars[i].VarName = rec.Name
		uf.gvars[i].Type = uf.typeAt(rec.Type)
		uf.gvars[i].File = rec.File
		uf.gvars[i].Line = rec.Line
	}
	return uf
}

func (uf *unflattener) typeAt(i int32) debuginfo.Type {
	if i < 0 || int(i) >= len(uf.nodes) {
		return nil
	}
	return uf.nodes[i]
}

func (uf *unflattener) subAt(i int32) *debuginfo.Subprogram {
	if i < 0 || int(i) >= len(uf.subs) {
		return nil
	}
	return uf.subs[i]
}

func (uf *unflattener) localAt(i int32) *debuginfo.LocalVariable {
	if i < 0 || int(i) >= len(uf.locals) {
		return nil
	}
	return uf.locals[i]
}

func (uf *unflattener) gvarAt(i int32) *debuginfo.GlobalVariable {
	if i < 0 || int(i) >= len(uf.gvars) {
		return nil
	}
	return uf.gvars[i]
}

func encodeInstr(fl *flattener, ins *Instr) instrRec {
	rec := instrRec{
		Kind:   ins.Kind,
		Result: ins.Result,
		Alloca: ins.Alloca,
		Load:   ins.Load,
		Store:  ins.Store,
		Bin:    ins.Bin,
		Cast:   ins.Cast,
		Call:   ins.Call,
		Phi:    ins.Phi,
		DbgVar: -1,
	}
	switch ins.Kind {
	case InstrDebugValue:
		rec.DbgVar = fl.localIndex(ins.DebugValue.Var)
		rec.DbgOperand = ins.DebugValue.Val
	case InstrDebugDeclare:
		rec.DbgVar = fl.localIndex(ins.DebugDeclare.Var)
		rec.DbgOperand = ins.DebugDeclare.Addr
	}
	return rec
}

func decodeInstr(uf *unflattener, rec *instrRec) Instr {
	ins := Instr{
		Kind:   rec.Kind,
		Result: rec.Result,
		Alloca: rec.Alloca,
		Load:   rec.Load,
		Store:  rec.Store,
		Bin:    rec.Bin,
		Cast:   rec.Cast,
		Call:   rec.Call,
		Phi:    rec.Phi,
	}
	switch rec.Kind {
	case InstrDebugValue:
		ins.DebugValue = DebugValueInstr{Var: uf.localAt(rec.DbgVar), Val: rec.DbgOperand}
	case InstrDebugDeclare:
		ins.DebugDeclare = DebugDeclareInstr{Var: uf.localAt(rec.DbgVar), Addr: rec.DbgOperand}
	}
	return ins
}

// Encode serialises the module to its msgpack container.
func Encode(m *Module) ([]byte, error) {
	types, structs := m.Types.Snapshot()
	payload := modulePayload{
		Schema:     moduleSchemaVersion,
		Name:       m.Name,
		SourceFile: m.SourceFile,
		Types:      types,
		Structs:    structs,
	}
	fl := newFlattener(&payload.Debug)
	for _, t := range m.ExtraTypes {
		fl.typeIndex(t)
	}
	for _, g := range m.Globals {
		payload.Globals = append(payload.Globals, globalRec{
			Name: g.Name,
			Type: g.Type,
			Init: g.Init,
			DI:   fl.globalVarIndex(g.DI),
		})
	}
	for _, f := range m.Funcs {
		fr := funcRec{
			Name:       f.Name,
			Params:     f.Params,
			Result:     f.Result,
			Entry:      f.Entry,
			ValueTypes: f.ValueTypes,
			Subprogram: fl.subprogramIndex(f.Subprogram),
		}
		for bi := range f.Blocks {
			b := &f.Blocks[bi]
			br := blockRec{ID: b.ID, Term: b.Term}
			for ii := range b.Instrs {
				br.Instrs = append(br.Instrs, encodeInstr(fl, &b.Instrs[ii]))
			}
			fr.Blocks = append(fr.Blocks, br)
		}
		payload.Funcs = append(payload.Funcs, fr)
	}
	return msgpack.Marshal(&payload)
}

// Decode reads a module back from its msgpack container.
func Decode(data []byte) (*Module, error) {
	var payload modulePayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.Schema != moduleSchemaVersion {
		return nil, fmt.Errorf("module container schema %d, want %d", payload.Schema, moduleSchemaVersion)
	}
	uf := newUnflattener(&payload.Debug)
	m := &Module{
		Name:       payload.Name,
		SourceFile: payload.SourceFile,
		Types:      Restore(payload.Types, payload.Structs),
	}
	seen := make(map[debuginfo.Type]bool)
	for _, g := range payload.Globals {
		m.Globals = append(m.Globals, &Global{
			Name: g.Name,
			Type: g.Type,
			Init: g.Init,
			DI:   uf.gvarAt(g.DI),
		})
	}
	for i := range payload.Funcs {
		fr := &payload.Funcs[i]
		f := &Func{
			Name:       fr.Name,
			Params:     fr.Params,
			Result:     fr.Result,
			Entry:      fr.Entry,
			ValueTypes: fr.ValueTypes,
			Subprogram: uf.subAt(fr.Subprogram),
		}
		for _, br := range fr.Blocks {
			b := Block{ID: br.ID, Term: br.Term}
			for ii := range br.Instrs {
				b.Instrs = append(b.Instrs, decodeInstr(uf, &br.Instrs[ii]))
			}
			f.Blocks = append(f.Blocks, b)
		}
		m.Funcs = append(m.Funcs, f)
	}
	// Retained types are the decoded nodes that are not the declared type of
	// a variable record; nodes reachable only through such a type are listed
	// as well.
	reach := func(t debuginfo.Type) { seen[t] = true }
	for _, v := range uf.locals {
		if v.Type != nil {
			reach(v.Type)
		}
	}
	for _, v := range uf.gvars {
		if v.Type != nil {
			reach(v.Type)
		}
	}
	for _, n := range uf.nodes {
		if n != nil && !seen[n] {
			m.ExtraTypes = append(m.ExtraTypes, n)
		}
	}
	return m, nil
}

// WriteFile atomically writes the module container to path.
func WriteFile(path string, m *Module) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFile loads a module container from path.
func ReadFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
