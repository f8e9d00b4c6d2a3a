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

package ast

import (
	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/types"
)

// Block is a sequence of statements forming one lexical scope.
type Block struct {
	base
	Stmts []Stmt
}

// VarDecl is a local `let name[: type] = init;` declaration.
type VarDecl struct {
	base
	Name string
	Type *types.Type // nil if the type must be inferred from Init
	Init Expr
}

// AssignStmt assigns Value to Target, where Target is an Ident or IndexExpr.
type AssignStmt struct {
	base
	Target Expr
	Value  Expr
}

// ExprStmt evaluates X and discards the result (used for RunExpr/CallExpr
// statements).
type ExprStmt struct {
	base
	X Expr
}

// PrintStmt prints the rendered form of each argument.
type PrintStmt struct {
	base
	Args []Expr
}

// IfStmt is a conditional. Else is nil, a *Block, or a nested *IfStmt.
type IfStmt struct {
	base
	Cond Expr
	Then *Block
	Else Stmt
}

// LoopStmt is an unconditional `loop { ... }`, exited only via break.
type LoopStmt struct {
	base
	Body *Block
}

// ForStmt is a bounded `for name in lo..hi { ... }` loop.
type ForStmt struct {
	base
	Var    string
	Lo, Hi Expr
	Body   *Block
}

// BreakStmt exits the innermost enclosing loop.
type BreakStmt struct{ base }

// ContinueStmt jumps to the next iteration of the innermost enclosing loop.
type ContinueStmt struct{ base }

// ReturnStmt returns from the enclosing function, with an optional value.
type ReturnStmt struct {
	base
	Value Expr // nil for a bare `return;`
}

// SendStmt sends one message on the named output port.
type SendStmt struct {
	base
	Port string
	Args []Expr
}

// AwaitStmt is `await receive port(binds...) => body`. It blocks (yielding
// control back to the scheduler) until a message is available on Port.
type AwaitStmt struct {
	base
	Port  string
	Binds []string
	Body  *Block
}

// WaitStmt blocks until Cond evaluates to true.
type WaitStmt struct {
	base
	Cond Expr
}

// AtomicBlock brackets Body so the scheduler treats it as one indivisible
// macro-step.
type AtomicBlock struct {
	base
	Body *Block
}

func (*Block) stmtNode()       {}
func (*VarDecl) stmtNode()     {}
func (*AssignStmt) stmtNode()  {}
func (*ExprStmt) stmtNode()    {}
func (*PrintStmt) stmtNode()   {}
func (*IfStmt) stmtNode()      {}
func (*LoopStmt) stmtNode()    {}
func (*ForStmt) stmtNode()     {}
func (*BreakStmt) stmtNode()   {}
func (*ContinueStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()  {}
func (*SendStmt) stmtNode()    {}
func (*AwaitStmt) stmtNode()   {}
func (*WaitStmt) stmtNode()    {}
func (*AtomicBlock) stmtNode() {}

// AssertKind distinguishes `always` from `eventually` assertion blocks.
type AssertKind int

// The two assertion kinds.
const (
	Always AssertKind = iota
	Eventually
)

// AssertionBlock declares a safety (Always) or liveness (Eventually)
// property that must hold over every reachable state.
type AssertionBlock struct {
	base
	Kind AssertKind
	Expr Expr
}

// SharedDecl is one `[private] let Name: Type = init;` binding inside a
// shared block. Private forbids the variable being written or read from
// outside the file that declares it, the shared-variable analogue of
// FunctionDecl.Private.
type SharedDecl struct {
	Pos     diag.Pos
	Name    string
	Type    *types.Type
	Init    Expr
	Private bool
}

// SharedBlock declares every shared (global) variable in the program.
type SharedBlock struct {
	base
	Decls []*SharedDecl
}

// ProgramDecl declares a process template: `program Name(params) { body }`.
type ProgramDecl struct {
	base
	Name   string
	Params []Param
	Body   *Block
}

// FunctionDecl declares a callable function.
type FunctionDecl struct {
	base
	Name    string
	Params  []Param
	Ret     *types.Type // nil if the function returns nothing
	Body    *Block
	Private bool
}

// MainDecl is the `main { ... }` entry point, of which there is exactly one
// per linked translation unit.
type MainDecl struct {
	base
	Body *Block
}

// ChannelDecl declares a typed FIFO edge between two processes' named ports.
// Only legal inside main.
type ChannelDecl struct {
	base
	SenderProg, SenderPort     string
	Types                      []*types.Type
	ReceiverProg, ReceiverPort string
}

// ImportDecl resolves a source file against the virtual file system,
// optionally also grouping its declarations under Alias.
type ImportDecl struct {
	base
	Path  string
	Alias string // "" if no `as` clause was given
}

// File is the AST produced by parsing one source file. The module linker
// merges a forest of Files (reached via Imports) into one translation unit.
// ChannelDecl does not appear here: it is a statement, which the parser
// accepts in any block and the semantic analyzer rejects outside `main`.
type File struct {
	base
	Path       string
	Imports    []*ImportDecl
	Shared     *SharedBlock // nil if the file declares no shared block
	Programs   []*ProgramDecl
	Functions  []*FunctionDecl
	Main       *MainDecl // nil unless this file declares `main`
	Assertions []*AssertionBlock
}

func (*SharedBlock) stmtNode()    {}
func (*ProgramDecl) stmtNode()    {}
func (*FunctionDecl) stmtNode()   {}
func (*MainDecl) stmtNode()       {}
func (*AssertionBlock) stmtNode() {}
func (*ChannelDecl) stmtNode()    {}
func (*ImportDecl) stmtNode()     {}
func (*File) stmtNode()           {}
