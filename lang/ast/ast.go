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

// Package ast defines the Althread abstract syntax tree. Every node carries
// its own source position so that later stages (semantic analysis, lowering,
// the VM) can produce diagnostics that point precisely at the offending
// source text, per the spec's position-propagation invariant.
package ast

import (
	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/types"
)

// Node is implemented by every AST node.
type Node interface {
	Position() diag.Pos
}

// Expr is any node that evaluates to a value.
type Expr interface {
	Node
	exprNode()
}

// Stmt is any node that can appear in a statement position.
type Stmt interface {
	Node
	stmtNode()
}

// base embeds a Pos and gives every node its Position() method for free.
type base struct{ Pos diag.Pos }

// Position returns the node's source span.
func (b base) Position() diag.Pos { return b.Pos }

// NewBase constructs the embeddable position field shared by every node.
// Exported so that lang/parser can populate it without needing to name the
// unexported base type itself.
func NewBase(pos diag.Pos) base { return base{pos} }

// --- Expressions ---

// IntLit is an integer literal expression.
type IntLit struct {
	base
	Value int64
}

// BoolLit is a boolean literal expression.
type BoolLit struct {
	base
	Value bool
}

// StrLit is a string literal expression.
type StrLit struct {
	base
	Value string
}

// Ident references a name: a local, a shared variable, a function, or a
// program, disambiguated by the semantic analyzer's name resolution.
type Ident struct {
	base
	Name string
}

// TupleExpr builds a tuple(...) value from its element expressions.
type TupleExpr struct {
	base
	Elems []Expr
}

// ListExpr builds a list value from its element expressions.
type ListExpr struct {
	base
	Elems []Expr
}

// IndexExpr indexes a list: `x[i]`.
type IndexExpr struct {
	base
	X     Expr
	Index Expr
}

// FieldExpr accesses a tuple field by position: `x.0`.
type FieldExpr struct {
	base
	X     Expr
	Field int
}

// UnaryOp enumerates the unary operators.
type UnaryOp int

// The complete set of unary operators.
const (
	UnaryNeg UnaryOp = iota // -x
	UnaryNot                // !x
)

// UnaryExpr applies a unary operator to X.
type UnaryExpr struct {
	base
	Op UnaryOp
	X  Expr
}

// BinaryOp enumerates the binary operators.
type BinaryOp int

// The complete set of binary operators, grouped by the kind of operand they
// accept.
const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// BinaryExpr applies a binary operator to X and Y.
type BinaryExpr struct {
	base
	Op   BinaryOp
	X, Y Expr
}

// CallExpr calls a user-defined or built-in function.
type CallExpr struct {
	base
	Name string
	Args []Expr
}

// RunExpr spawns a new process running Prog with Args and evaluates to the
// resulting proc(Prog) handle.
type RunExpr struct {
	base
	Prog string
	Args []Expr
}

func (*IntLit) exprNode()    {}
func (*BoolLit) exprNode()   {}
func (*StrLit) exprNode()    {}
func (*Ident) exprNode()     {}
func (*TupleExpr) exprNode() {}
func (*ListExpr) exprNode()  {}
func (*IndexExpr) exprNode() {}
func (*FieldExpr) exprNode() {}
func (*UnaryExpr) exprNode() {}
func (*BinaryExpr) exprNode() {}
func (*CallExpr) exprNode()  {}
func (*RunExpr) exprNode()   {}

// Param is one function/program parameter declaration.
type Param struct {
	Name string
	Type *types.Type
}
