package debuginfo

// Subprogram describes a function in the debug metadata.
type Subprogram struct {
	FnName string
	File   string
	Line   int
}

// Variable is the common view over local and global variable records.
type Variable interface {
	Name() string
	DebugType() Type
}

// LocalVariable is a source-level variable in a function scope.
type LocalVariable struct {
	VarName    string
	Scope      *Subprogram
	Type       Type
	Line       int
	Artificial bool
}

func (v *LocalVariable) Name() string    { return v.VarName }
func (v *LocalVariable) DebugType() Type { return v.Type }

// GlobalVariable is a source-level variable in static memory.
type GlobalVariable struct {
	VarName string
	Type    Type
	File    string
	Line    int
}

func (v *GlobalVariable) Name() string    { return v.VarName }
func (v *GlobalVariable) DebugType() Type { return v.Type }
