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

// Package types implements the Althread value-type system: the three
// primitives (int, bool, string), the two container kinds (tuple, list) and
// the process-handle kind (proc(P)). There are no generics and no
// user-defined records, per the spec's Non-goals.
package types

import (
	"fmt"
	"strings"
)

// Kind represents the base shape of a Type. Container kinds recurse through
// Elem/Elems.
type Kind int

// The complete, closed set of kinds in the language.
const (
	KindInt Kind = iota
	KindBool
	KindString
	KindTuple
	KindList
	KindProc
)

// String renders a Kind for debugging purposes.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindTuple:
		return "tuple"
	case KindList:
		return "list"
	case KindProc:
		return "proc"
	default:
		return "unknown"
	}
}

// Type is the datastructure representing any Althread type. It is recursive
// for the container kinds (tuple, list) the same way mgmt's types.Type is
// recursive for list/map/struct.
type Type struct {
	Kind Kind

	// Elem is the element type when Kind == KindList.
	Elem *Type
	// Elems is the ordered list of field types when Kind == KindTuple.
	Elems []*Type
	// Proc is the referenced program name when Kind == KindProc.
	Proc string
}

// Convenience singletons for the primitive kinds, mirroring
// types.TypeBool/TypeStr/TypeInt in the teacher.
var (
	Int    = &Type{Kind: KindInt}
	Bool   = &Type{Kind: KindBool}
	String = &Type{Kind: KindString}
)

// NewList builds a list(T) type.
func NewList(elem *Type) *Type {
	return &Type{Kind: KindList, Elem: elem}
}

// NewTuple builds a tuple(T...) type.
func NewTuple(elems ...*Type) *Type {
	return &Type{Kind: KindTuple, Elems: elems}
}

// NewProc builds a proc(P) type referencing the program named prog.
func NewProc(prog string) *Type {
	return &Type{Kind: KindProc, Proc: prog}
}

// String renders the type using Althread surface syntax.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindList:
		return fmt.Sprintf("list(%s)", t.Elem.String())
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		return fmt.Sprintf("tuple(%s)", strings.Join(parts, ", "))
	case KindProc:
		return fmt.Sprintf("proc(%s)", t.Proc)
	default:
		return t.Kind.String()
	}
}

// Cmp compares two types for equality, recursing through containers. It
// returns nil if they match and a descriptive error otherwise, following the
// teacher's types.Type.Cmp(X) convention of returning an error instead of a
// bare bool so that callers can report *why* a mismatch happened.
func (t *Type) Cmp(x *Type) error {
	if t == nil || x == nil {
		if t == x {
			return nil
		}
		return fmt.Errorf("type mismatch: %s vs %s", t, x)
	}
	if t.Kind != x.Kind {
		return fmt.Errorf("type mismatch: %s vs %s", t, x)
	}
	switch t.Kind {
	case KindList:
		if err := t.Elem.Cmp(x.Elem); err != nil {
			return fmt.Errorf("list element type mismatch: %w", err)
		}
		return nil
	case KindTuple:
		if len(t.Elems) != len(x.Elems) {
			return fmt.Errorf("tuple arity mismatch: %d vs %d", len(t.Elems), len(x.Elems))
		}
		for i := range t.Elems {
			if err := t.Elems[i].Cmp(x.Elems[i]); err != nil {
				return fmt.Errorf("tuple field %d type mismatch: %w", i, err)
			}
		}
		return nil
	case KindProc:
		if t.Proc != x.Proc {
			return fmt.Errorf("proc type mismatch: proc(%s) vs proc(%s)", t.Proc, x.Proc)
		}
		return nil
	default:
		return nil // primitives already matched on Kind
	}
}

// Equal is a convenience bool wrapper around Cmp.
func (t *Type) Equal(x *Type) bool {
	return t.Cmp(x) == nil
}

// Copy performs a deep copy of the type; container types never alias their
// element type pointers with another Type value.
func (t *Type) Copy() *Type {
	if t == nil {
		return nil
	}
	cp := &Type{Kind: t.Kind, Proc: t.Proc}
	if t.Elem != nil {
		cp.Elem = t.Elem.Copy()
	}
	if t.Elems != nil {
		cp.Elems = make([]*Type, len(t.Elems))
		for i, e := range t.Elems {
			cp.Elems[i] = e.Copy()
		}
	}
	return cp
}
