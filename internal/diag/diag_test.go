package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosticStringWithLocation(t *testing.T) {
	d := Diagnostic{File: "a.nmt", Line: 3, Col: 5, Message: "boom"}
	assert.Equal(t, "a.nmt:3:5: boom", d.String())
}

func TestDiagnosticStringWithoutLocation(t *testing.T) {
	d := Diagnostic{File: "a.nmt", Message: "boom"}
	assert.Equal(t, "a.nmt: boom", d.String())
}

func TestDiagnosticSatisfiesError(t *testing.T) {
	var err error = Diagnostic{File: "a.nmt", Message: "boom"}
	assert.EqualError(t, err, "a.nmt: boom")
}

func TestReporterCountsEveryReport(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.Report(Diagnostic{Class: User, File: "a.nmt", Message: "one"})
	r.Report(Diagnostic{Class: Internal, File: "a.nmt", Message: "two"})
	assert.Equal(t, 2, r.Count)
	assert.Contains(t, buf.String(), "error: a.nmt: one")
	assert.Contains(t, buf.String(), "internal error: a.nmt: two")
}

func TestReporterIOClassIsLabeled(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.Report(Diagnostic{Class: IO, File: "a.nmt", Message: "disk full"})
	assert.Contains(t, buf.String(), "i/o error: a.nmt: disk full")
}

func TestReporterWarnDoesNotIncrementCount(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.Warn(Diagnostic{File: "a.nmt", Message: "unused expression"})
	assert.Equal(t, 0, r.Count)
	assert.Contains(t, buf.String(), "warning: a.nmt: unused expression")
}
