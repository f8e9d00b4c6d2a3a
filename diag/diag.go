// Althread
// Copyright (C) 2024+ The Althread Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package diag contains the single structured error/diagnostic type shared by
// every stage of the Althread pipeline (lexer, parser, linker, semantic
// analyzer, lowerer, VM, simulator and model checker).
package diag

import "fmt"

// Kind is a constant error type that implements the error interface. Each
// pipeline stage contributes its own named constants below. This mirrors the
// "error is a value" idiom used throughout this codebase: a Kind is never
// used for control-flow escapes, only to classify a Diagnostic.
type Kind string

// Error fulfills the error interface for Kind.
func (k Kind) Error() string { return string(k) }

// These constants enumerate every diagnostic kind produced by the pipeline.
const (
	Lex        Kind = "lex"
	Parse      Kind = "parse"
	Import     Kind = "import"
	Name       Kind = "name"
	Type       Kind = "type"
	Privacy    Kind = "privacy"
	PortMismatch Kind = "port-mismatch"
	VM         Kind = "vm"
	Assertion  Kind = "assertion"
	Deadlock   Kind = "deadlock"
	BudgetExceeded Kind = "budget-exceeded"
)

// Pos is a source position. It is attached to every AST node and propagated
// to diagnostics and VM errors. Line/Col are zero-indexed internally and
// rendered one-indexed in Error strings, matching the teacher's LexParseErr
// convention.
type Pos struct {
	File  string
	Start int // byte offset, inclusive
	End   int // byte offset, exclusive
	Line  int // zero-indexed
	Col   int // zero-indexed
}

// String renders the position as "file:line:col".
func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line+1, p.Col+1)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line+1, p.Col+1)
}

// Diagnostic is the structured error value returned by every stage. It is the
// Go-native shape of the spec's `AlthreadError`.
type Diagnostic struct {
	Kind    Kind
	Message string
	Pos     Pos
	// Secondary holds optional secondary source positions, for example the
	// declaration site referenced by a privacy violation.
	Secondary []Pos
}

// Error fulfills the error interface so a Diagnostic can be returned, wrapped
// or compared like any other Go error.
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s @%s", d.Kind, d.Message, d.Pos)
}

// New builds a Diagnostic from a kind, position and a printf-style message.
func New(kind Kind, pos Pos, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
	}
}

// List is a collection of Diagnostics. Stages that can report more than one
// non-blocking error (the semantic analyzer collecting every type error in a
// single pass is the canonical example) build up a List instead of
// short-circuiting on the first one.
type List []*Diagnostic

// Error renders every diagnostic in the list, one per line.
func (l List) Error() string {
	s := ""
	for i, d := range l {
		if i > 0 {
			s += "\n"
		}
		s += d.Error()
	}
	return s
}

// Add appends a diagnostic to the list and returns the (possibly newly
// allocated) list, mirroring the errwrap.Append "safe accumulate" idiom.
func (l List) Add(d *Diagnostic) List {
	if d == nil {
		return l
	}
	return append(l, d)
}
