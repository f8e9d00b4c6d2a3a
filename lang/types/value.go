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

package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Literal represents a runtime value in the tagged-sum form described by the
// spec: every literal knows its own Type, can render itself for `print` and
// snapshotting, can be compared to another Literal of the same type, and can
// contribute its canonical bytes to a running state hash. This mirrors the
// shape of mgmt's types.Value interface, trimmed to the primitives this
// language actually has (no maps, no structs, no funcs-as-values).
type Literal interface {
	fmt.Stringer
	Type() *Type
	Cmp(Literal) error
	Less(Literal) bool // used only to produce a deterministic sort order
	Copy() Literal
	// CanonicalBytes appends a self-describing, order-preserving encoding
	// of this value onto buf, for use as part of a canonical state hash.
	CanonicalBytes(buf []byte) []byte
	json.Marshaler
}

// IntLit is a signed 64-bit integer literal.
type IntLit struct{ V int64 }

// BoolLit is a boolean literal.
type BoolLit struct{ V bool }

// StrLit is a string literal.
type StrLit struct{ V string }

// TupleLit is a fixed-arity heterogeneous literal.
type TupleLit struct{ Vals []Literal }

// ListLit is a homogeneous, variable-length literal.
type ListLit struct {
	Vals []Literal
	Elem *Type // element type, needed when Vals is empty
}

// ProcLit is a process-handle literal produced by `run P(args)`.
type ProcLit struct {
	Pid     uint32
	Program string
}

var (
	_ Literal = IntLit{}
	_ Literal = BoolLit{}
	_ Literal = StrLit{}
	_ Literal = TupleLit{}
	_ Literal = ListLit{}
	_ Literal = ProcLit{}
)

// --- IntLit ---

func (v IntLit) Type() *Type     { return Int }
func (v IntLit) String() string  { return strconv.FormatInt(v.V, 10) }
func (v IntLit) Copy() Literal   { return IntLit{V: v.V} }
func (v IntLit) Less(x Literal) bool {
	o, ok := x.(IntLit)
	if !ok {
		return false
	}
	return v.V < o.V
}
func (v IntLit) Cmp(x Literal) error {
	o, ok := x.(IntLit)
	if !ok {
		return fmt.Errorf("not an int: %v", x)
	}
	if v.V != o.V {
		return fmt.Errorf("int mismatch: %d != %d", v.V, o.V)
	}
	return nil
}
func (v IntLit) CanonicalBytes(buf []byte) []byte {
	buf = append(buf, 'i')
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v.V))
	return append(buf, tmp[:]...)
}
func (v IntLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int64{"int": v.V})
}

// --- BoolLit ---

func (v BoolLit) Type() *Type    { return Bool }
func (v BoolLit) String() string { return strconv.FormatBool(v.V) }
func (v BoolLit) Copy() Literal  { return BoolLit{V: v.V} }
func (v BoolLit) Less(x Literal) bool {
	o, ok := x.(BoolLit)
	if !ok {
		return false
	}
	return !v.V && o.V
}
func (v BoolLit) Cmp(x Literal) error {
	o, ok := x.(BoolLit)
	if !ok {
		return fmt.Errorf("not a bool: %v", x)
	}
	if v.V != o.V {
		return fmt.Errorf("bool mismatch: %t != %t", v.V, o.V)
	}
	return nil
}
func (v BoolLit) CanonicalBytes(buf []byte) []byte {
	buf = append(buf, 'b')
	if v.V {
		return append(buf, 1)
	}
	return append(buf, 0)
}
func (v BoolLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]bool{"bool": v.V})
}

// --- StrLit ---

func (v StrLit) Type() *Type    { return String }
func (v StrLit) String() string { return v.V }
func (v StrLit) Copy() Literal  { return StrLit{V: v.V} }
func (v StrLit) Less(x Literal) bool {
	o, ok := x.(StrLit)
	if !ok {
		return false
	}
	return v.V < o.V
}
func (v StrLit) Cmp(x Literal) error {
	o, ok := x.(StrLit)
	if !ok {
		return fmt.Errorf("not a string: %v", x)
	}
	if v.V != o.V {
		return fmt.Errorf("string mismatch: %q != %q", v.V, o.V)
	}
	return nil
}
func (v StrLit) CanonicalBytes(buf []byte) []byte {
	buf = append(buf, 's')
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(len(v.V)))
	buf = append(buf, tmp[:]...)
	return append(buf, v.V...)
}
func (v StrLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"string": v.V})
}

// --- TupleLit ---

func (v TupleLit) Type() *Type {
	elems := make([]*Type, len(v.Vals))
	for i, e := range v.Vals {
		elems[i] = e.Type()
	}
	return NewTuple(elems...)
}
func (v TupleLit) String() string {
	parts := make([]string, len(v.Vals))
	for i, e := range v.Vals {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (v TupleLit) Copy() Literal {
	vals := make([]Literal, len(v.Vals))
	for i, e := range v.Vals {
		vals[i] = e.Copy()
	}
	return TupleLit{Vals: vals}
}
func (v TupleLit) Less(x Literal) bool {
	o, ok := x.(TupleLit)
	if !ok || len(v.Vals) != len(o.Vals) {
		return false
	}
	for i := range v.Vals {
		if v.Vals[i].Less(o.Vals[i]) {
			return true
		}
		if o.Vals[i].Less(v.Vals[i]) {
			return false
		}
	}
	return false
}
func (v TupleLit) Cmp(x Literal) error {
	o, ok := x.(TupleLit)
	if !ok {
		return fmt.Errorf("not a tuple: %v", x)
	}
	if len(v.Vals) != len(o.Vals) {
		return fmt.Errorf("tuple arity mismatch: %d != %d", len(v.Vals), len(o.Vals))
	}
	for i := range v.Vals {
		if err := v.Vals[i].Cmp(o.Vals[i]); err != nil {
			return fmt.Errorf("tuple field %d: %w", i, err)
		}
	}
	return nil
}
func (v TupleLit) CanonicalBytes(buf []byte) []byte {
	buf = append(buf, 't')
	for _, e := range v.Vals {
		buf = e.CanonicalBytes(buf)
	}
	buf = append(buf, 0xff) // terminator, unambiguous since no literal emits 0xff alone
	return buf
}
func (v TupleLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][]Literal{"tuple": v.Vals})
}

// --- ListLit ---

func (v ListLit) Type() *Type {
	if len(v.Vals) == 0 {
		return NewList(v.Elem)
	}
	return NewList(v.Vals[0].Type())
}
func (v ListLit) String() string {
	parts := make([]string, len(v.Vals))
	for i, e := range v.Vals {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (v ListLit) Copy() Literal {
	vals := make([]Literal, len(v.Vals))
	for i, e := range v.Vals {
		vals[i] = e.Copy()
	}
	return ListLit{Vals: vals, Elem: v.Elem}
}
func (v ListLit) Less(x Literal) bool {
	o, ok := x.(ListLit)
	if !ok {
		return false
	}
	for i := 0; i < len(v.Vals) && i < len(o.Vals); i++ {
		if v.Vals[i].Less(o.Vals[i]) {
			return true
		}
		if o.Vals[i].Less(v.Vals[i]) {
			return false
		}
	}
	return len(v.Vals) < len(o.Vals)
}
func (v ListLit) Cmp(x Literal) error {
	o, ok := x.(ListLit)
	if !ok {
		return fmt.Errorf("not a list: %v", x)
	}
	if len(v.Vals) != len(o.Vals) {
		return fmt.Errorf("list length mismatch: %d != %d", len(v.Vals), len(o.Vals))
	}
	for i := range v.Vals {
		if err := v.Vals[i].Cmp(o.Vals[i]); err != nil {
			return fmt.Errorf("list element %d: %w", i, err)
		}
	}
	return nil
}
func (v ListLit) CanonicalBytes(buf []byte) []byte {
	buf = append(buf, 'l')
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(len(v.Vals)))
	buf = append(buf, tmp[:]...)
	for _, e := range v.Vals {
		buf = e.CanonicalBytes(buf)
	}
	return buf
}
func (v ListLit) MarshalJSON() ([]byte, error) {
	vals := v.Vals
	if vals == nil {
		vals = []Literal{}
	}
	return json.Marshal(map[string][]Literal{"list": vals})
}

// --- ProcLit ---

func (v ProcLit) Type() *Type    { return NewProc(v.Program) }
func (v ProcLit) String() string { return fmt.Sprintf("proc(%s)#%d", v.Program, v.Pid) }
func (v ProcLit) Copy() Literal  { return ProcLit{Pid: v.Pid, Program: v.Program} }
func (v ProcLit) Less(x Literal) bool {
	o, ok := x.(ProcLit)
	if !ok {
		return false
	}
	return v.Pid < o.Pid
}
func (v ProcLit) Cmp(x Literal) error {
	o, ok := x.(ProcLit)
	if !ok {
		return fmt.Errorf("not a proc: %v", x)
	}
	if v.Pid != o.Pid || v.Program != o.Program {
		return fmt.Errorf("proc mismatch: %s != %s", v, o)
	}
	return nil
}
func (v ProcLit) CanonicalBytes(buf []byte) []byte {
	buf = append(buf, 'p')
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v.Pid)
	return append(buf, tmp[:]...)
}
func (v ProcLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{"proc": map[string]interface{}{
		"pid": v.Pid, "program": v.Program,
	}})
}

// Zero returns the zero value for a given type, used to initialize shared
// variable declarations that carry no explicit InitExpr and list accumulator
// slots before their first append.
func Zero(t *Type) (Literal, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot build a zero value for a nil type")
	}
	switch t.Kind {
	case KindInt:
		return IntLit{}, nil
	case KindBool:
		return BoolLit{}, nil
	case KindString:
		return StrLit{}, nil
	case KindList:
		return ListLit{Elem: t.Elem}, nil
	case KindTuple:
		vals := make([]Literal, len(t.Elems))
		for i, e := range t.Elems {
			v, err := Zero(e)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return TupleLit{Vals: vals}, nil
	default:
		return nil, fmt.Errorf("no zero value for type %s", t)
	}
}
