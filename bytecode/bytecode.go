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

// Package bytecode defines the stack-machine instruction set that
// lang/lower emits and vm executes. It is the Go-native shape of the
// spec's intermediate representation: every expression evaluates to one
// value left on the stack, every statement leaves the stack balanced.
package bytecode

import (
	"fmt"

	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/types"
)

// Op identifies one instruction kind.
type Op int

// The complete instruction set.
const (
	PushLit Op = iota
	LoadLocal
	StoreLocal
	LoadShared
	StoreShared
	BinOp
	UnOp
	Call
	Return
	Jump
	JumpIfFalse
	Print
	Run
	DeclareChannel
	Send
	TryReceive
	WaitCond
	AtomicBegin
	AtomicEnd
	BreakLoop
	ContinueLoop
	Index
	Field
	MakeTuple
	MakeList
	Pop
	Halt
)

var opNames = map[Op]string{
	PushLit: "PushLit", LoadLocal: "LoadLocal", StoreLocal: "StoreLocal",
	LoadShared: "LoadShared", StoreShared: "StoreShared", BinOp: "BinOp",
	UnOp: "UnOp", Call: "Call", Return: "Return", Jump: "Jump",
	JumpIfFalse: "JumpIfFalse", Print: "Print", Run: "Run",
	DeclareChannel: "DeclareChannel", Send: "Send", TryReceive: "TryReceive",
	WaitCond: "WaitCond", AtomicBegin: "AtomicBegin", AtomicEnd: "AtomicEnd",
	BreakLoop: "BreakLoop", ContinueLoop: "ContinueLoop", Index: "Index",
	Field: "Field", MakeTuple: "MakeTuple", MakeList: "MakeList", Pop: "Pop",
	Halt: "Halt",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// BinOpKind/UnOpKind are bytecode's own operator enums; bytecode never
// imports lang/ast. lang/lower translates each ast operator into one of
// these with a switch (binOpKind there), choosing OpConcat for a '+' on
// strings.
type BinOpKind int

// The arithmetic/comparison/boolean operators a BinOp instruction applies.
const (
	OpAdd BinOpKind = iota
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
	OpConcat // string concatenation, disambiguated from OpAdd by operand type
)

// UnOpKind is the operator a UnOp instruction applies.
type UnOpKind int

// The two unary operators.
const (
	OpNeg UnOpKind = iota
	OpNot
)

// Instr is one bytecode instruction. Not every field is meaningful for
// every Op; see the comment on each Op's producer in lang/lower.
type Instr struct {
	Op Op

	Lit     types.Literal // PushLit
	Slot    int           // LoadLocal/StoreLocal: local slot index
	Name    string        // LoadShared/StoreShared: shared variable name
	BinKind BinOpKind     // BinOp
	UnKind  UnOpKind      // UnOp
	Target  int           // Jump/JumpIfFalse: absolute pc; Call: function id
	NArgs   int           // Call/MakeTuple/MakeList/Send/TryReceive: arity
	Port    string        // Send/TryReceive/DeclareChannel: port name
	Program string        // Run: program name
	Binds   []int         // TryReceive: local slots the received tuple's elements are stored into, in order

	Pos diag.Pos // source position, for VMError reporting
}

// Stream is a sequence of instructions forming one function, program, or
// main body.
type Stream []Instr

// FunctionID indexes CompiledProgram.Functions.
type FunctionID int

// CompiledFunction is one lowered user function.
type CompiledFunction struct {
	Name       string
	NumParams  int
	NumLocals  int
	Code       Stream
}

// CompiledProcess is one lowered `program` template.
type CompiledProcess struct {
	Name      string
	NumParams int
	NumLocals int
	Code      Stream
}

// SharedInit is one shared variable's declared type and its initializer
// bytecode (evaluated once, at global-state construction time).
type SharedInit struct {
	Name string
	Type *types.Type
	Init Stream // leaves exactly one value on the stack; nil means zero value
}

// ChannelSpec is one compiled `channel A.p (T...) > B.q;` declaration.
type ChannelSpec struct {
	SenderProg, SenderPort     string
	ReceiverProg, ReceiverPort string
	Types                      []*types.Type
}

// AssertKind distinguishes always/eventually assertions in compiled form.
type AssertKind int

// The two assertion kinds.
const (
	Always AssertKind = iota
	Eventually
)

// CompiledAssertion is one lowered assertion block: Code evaluates to
// exactly one bool value given the current global state.
type CompiledAssertion struct {
	Kind AssertKind
	Code Stream
	Pos  diag.Pos
}

// Program is the fully lowered output of the compile pipeline (lexer
// through lowerer), ready for the VM/scheduler to execute.
type Program struct {
	Functions  []*CompiledFunction
	Processes  map[string]*CompiledProcess
	SharedInit []*SharedInit
	Channels   []*ChannelSpec
	Main       Stream
	MainLocals int
	Assertions []*CompiledAssertion
}
