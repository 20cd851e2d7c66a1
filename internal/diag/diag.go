// Package diag renders the compiler's three error classes: user
// diagnostics (syntax/type errors), internal invariant failures
// (compiler bugs surfaced as panics), and I/O failures. Severity drives
// the color used when writing to stderr, following the category-coded
// terminal output convention Nmet's reference toolchain uses.
package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Class is the three-way error-severity split.
type Class int

const (
	User Class = iota
	Internal
	IO
)

// Diagnostic is a single source-located message.
type Diagnostic struct {
	Class   Class
	File    string
	Line    int
	Col     int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.File, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Col, d.Message)
}

// Reporter collects diagnostics and writes them out, colorized by class.
// The first Class==Internal or Class==IO diagnostic is expected to abort
// the pipeline immediately (the caller does that; Reporter only renders).
type Reporter struct {
	out       io.Writer
	userC     *color.Color
	internalC *color.Color
	ioC       *color.Color
	warnC     *color.Color
	Count     int
}

// NewReporter builds a Reporter writing to out.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{
		out:       out,
		userC:     color.New(color.FgWhite),
		internalC: color.New(color.FgRed, color.Bold),
		ioC:       color.New(color.FgRed),
		warnC:     color.New(color.FgYellow),
	}
}

// Report prints one diagnostic.
func (r *Reporter) Report(d Diagnostic) {
	r.Count++
	switch d.Class {
	case Internal:
		r.internalC.Fprintf(r.out, "internal error: %s\n", d.String())
	case IO:
		r.ioC.Fprintf(r.out, "i/o error: %s\n", d.String())
	default:
		r.userC.Fprintf(r.out, "error: %s\n", d.String())
	}
}

// Warn prints the compiler's only warning category:
// "expression with no effect".
func (r *Reporter) Warn(d Diagnostic) {
	r.warnC.Fprintf(r.out, "warning: %s\n", d.String())
}

// Error implements the error interface so a Diagnostic can be returned
// and wrapped through the normal Go error-handling path before it
// reaches a Reporter.
func (d Diagnostic) Error() string { return d.String() }
