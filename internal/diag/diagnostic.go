package diag

// Locus points a diagnostic at a place in the instrumented module. Line is
// zero when the debug metadata carries no location.
type Locus struct {
	Func string
	Var  string
	Line int
}

type Note struct {
	Locus Locus
	Msg   string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Locus
	Notes    []Note
}

// WithNote returns a copy of the diagnostic with the note appended.
func (d Diagnostic) WithNote(l Locus, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Locus: l, Msg: msg})
	return d
}
