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

// Package lower implements stack-machine lowering from the checked AST to
// bytecode.Program. Each expression leaves exactly one value on the stack;
// each statement leaves the stack balanced. Control flow uses
// forward-patched jump targets, the same technique the teacher's own
// graph-building passes use for deferred edge resolution, adapted here to
// deferred instruction addresses instead of graph edges.
package lower

import (
	"sort"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/ast"
	"github.com/althread-lang/althread/lang/linker"
	"github.com/althread-lang/althread/lang/semantic"
	"github.com/althread-lang/althread/lang/types"
)

// loopFrame tracks the break/continue patch lists for one enclosing loop.
type loopFrame struct {
	breakPatches    []int
	continuePatches []int
}

// ctx threads the mutable state of lowering one function, program, or main
// body: its local-slot scope chain, the instruction stream being built, and
// the active loop stack for break/continue.
type ctx struct {
	res      *semantic.Result
	unit     *linker.Unit
	funcIDs  map[string]int
	progName string // "" for functions and main, else the owning program's name

	scopes   []map[string]int
	nextSlot int
	code     bytecode.Stream
	loops    []*loopFrame

	errs diag.List
}

func newCtx(res *semantic.Result, u *linker.Unit, funcIDs map[string]int, progName string) *ctx {
	return &ctx{res: res, unit: u, funcIDs: funcIDs, progName: progName, scopes: []map[string]int{{}}}
}

func (c *ctx) pushScope() { c.scopes = append(c.scopes, map[string]int{}) }
func (c *ctx) popScope()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *ctx) declare(name string) int {
	slot := c.nextSlot
	c.nextSlot++
	c.scopes[len(c.scopes)-1][name] = slot
	return slot
}

func (c *ctx) resolveLocal(name string) (int, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if s, ok := c.scopes[i][name]; ok {
			return s, true
		}
	}
	return 0, false
}

func (c *ctx) emit(i bytecode.Instr) int {
	c.code = append(c.code, i)
	return len(c.code) - 1
}

func (c *ctx) here() int { return len(c.code) }

func (c *ctx) patch(idx, target int) { c.code[idx].Target = target }

func (c *ctx) errf(pos diag.Pos, format string, args ...interface{}) {
	c.errs = c.errs.Add(diag.New(diag.VM, pos, format, args...))
}

// Lower walks u (already validated by semantic.Analyze, whose Result res
// this consults for channel port types) and produces the compiled program.
func Lower(u *linker.Unit, res *semantic.Result) (*bytecode.Program, diag.List) {
	prog := &bytecode.Program{Processes: map[string]*bytecode.CompiledProcess{}}
	var allErrs diag.List

	funcNames := sortedKeys(u.Functions)
	funcIDs := make(map[string]int, len(funcNames))
	for i, name := range funcNames {
		funcIDs[name] = i
	}

	for _, name := range funcNames {
		fn := u.Functions[name]
		c := newCtx(res, u, funcIDs, "")
		for _, p := range fn.Params {
			c.declare(p.Name)
		}
		c.lowerBlock(fn.Body)
		c.emit(bytecode.Instr{Op: bytecode.Return, NArgs: 0, Pos: fn.Position()})
		allErrs = append(allErrs, c.errs...)
		prog.Functions = append(prog.Functions, &bytecode.CompiledFunction{
			Name: name, NumParams: len(fn.Params), NumLocals: c.nextSlot, Code: c.code,
		})
	}

	for _, name := range sortedKeys(u.Programs) {
		p := u.Programs[name]
		c := newCtx(res, u, funcIDs, name)
		for _, param := range p.Params {
			c.declare(param.Name)
		}
		c.lowerBlock(p.Body)
		c.emit(bytecode.Instr{Op: bytecode.Halt, Pos: p.Position()})
		allErrs = append(allErrs, c.errs...)
		prog.Processes[name] = &bytecode.CompiledProcess{
			Name: name, NumParams: len(p.Params), NumLocals: c.nextSlot, Code: c.code,
		}
	}

	for _, name := range sortedKeys(u.Shared) {
		d := u.Shared[name]
		si := &bytecode.SharedInit{Name: name, Type: d.Type}
		if d.Init != nil {
			c := newCtx(res, u, funcIDs, "")
			c.lowerExpr(d.Init)
			si.Init = c.code
			allErrs = append(allErrs, c.errs...)
		}
		prog.SharedInit = append(prog.SharedInit, si)
	}

	for _, ch := range res.Channels {
		prog.Channels = append(prog.Channels, &bytecode.ChannelSpec{
			SenderProg: ch.SenderProg, SenderPort: ch.SenderPort,
			ReceiverProg: ch.ReceiverProg, ReceiverPort: ch.ReceiverPort,
			Types: ch.Types,
		})
	}

	if u.Main != nil {
		c := newCtx(res, u, funcIDs, "")
		c.lowerBlock(u.Main.Body)
		c.emit(bytecode.Instr{Op: bytecode.Halt, Pos: u.Main.Position()})
		allErrs = append(allErrs, c.errs...)
		prog.Main = c.code
		prog.MainLocals = c.nextSlot
	}

	for _, ab := range u.Assertions {
		c := newCtx(res, u, funcIDs, "")
		c.lowerExpr(ab.Expr)
		allErrs = append(allErrs, c.errs...)
		kind := bytecode.Always
		if ab.Kind == ast.Eventually {
			kind = bytecode.Eventually
		}
		prog.Assertions = append(prog.Assertions, &bytecode.CompiledAssertion{
			Kind: kind, Code: c.code, Pos: ab.Position(),
		})
	}

	return prog, allErrs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *ctx) lowerBlock(b *ast.Block) {
	c.pushScope()
	for _, s := range b.Stmts {
		c.lowerStmt(s)
	}
	c.popScope()
}

func (c *ctx) lowerStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.VarDecl:
		c.lowerExpr(n.Init)
		slot := c.declare(n.Name)
		c.emit(bytecode.Instr{Op: bytecode.StoreLocal, Slot: slot, Pos: n.Position()})
	case *ast.AssignStmt:
		c.lowerAssign(n)
	case *ast.ExprStmt:
		c.lowerExprStmt(n)
	case *ast.PrintStmt:
		for _, a := range n.Args {
			c.lowerExpr(a)
		}
		c.emit(bytecode.Instr{Op: bytecode.Print, NArgs: len(n.Args), Pos: n.Position()})
	case *ast.IfStmt:
		c.lowerIf(n)
	case *ast.LoopStmt:
		c.lowerLoop(n)
	case *ast.ForStmt:
		c.lowerFor(n)
	case *ast.BreakStmt:
		idx := c.emit(bytecode.Instr{Op: bytecode.BreakLoop, Target: -1, Pos: n.Position()})
		top := c.loops[len(c.loops)-1]
		top.breakPatches = append(top.breakPatches, idx)
	case *ast.ContinueStmt:
		idx := c.emit(bytecode.Instr{Op: bytecode.ContinueLoop, Target: -1, Pos: n.Position()})
		top := c.loops[len(c.loops)-1]
		top.continuePatches = append(top.continuePatches, idx)
	case *ast.ReturnStmt:
		if n.Value != nil {
			c.lowerExpr(n.Value)
			c.emit(bytecode.Instr{Op: bytecode.Return, NArgs: 1, Pos: n.Position()})
		} else {
			c.emit(bytecode.Instr{Op: bytecode.Return, NArgs: 0, Pos: n.Position()})
		}
	case *ast.SendStmt:
		for _, a := range n.Args {
			c.lowerExpr(a)
		}
		c.emit(bytecode.Instr{Op: bytecode.Send, Port: n.Port, NArgs: len(n.Args), Pos: n.Position()})
	case *ast.AwaitStmt:
		c.lowerAwait(n)
	case *ast.WaitStmt:
		c.lowerWait(n)
	case *ast.AtomicBlock:
		c.emit(bytecode.Instr{Op: bytecode.AtomicBegin, Pos: n.Position()})
		c.lowerBlock(n.Body)
		c.emit(bytecode.Instr{Op: bytecode.AtomicEnd, Pos: n.Position()})
	case *ast.ChannelDecl:
		// Channel declarations are compiled globally from semantic.Result.Channels;
		// nothing to emit at the statement's own position in the stream.
	default:
		c.errf(s.Position(), "lowering: unsupported statement kind")
	}
}

// lowerExprStmt discards the expression's value, except when the
// expression is a call to a function with no declared return type: such a
// call leaves nothing on the stack, so there is nothing to pop.
func (c *ctx) lowerExprStmt(n *ast.ExprStmt) {
	if call, ok := n.X.(*ast.CallExpr); ok {
		if fn, ok := c.unit.Functions[call.Name]; ok && fn.Ret == nil {
			for _, a := range call.Args {
				c.lowerExpr(a)
			}
			id, ok := c.funcIDs[call.Name]
			if !ok {
				c.errf(call.Position(), "lowering: unknown function %q", call.Name)
				return
			}
			c.emit(bytecode.Instr{Op: bytecode.Call, Target: id, NArgs: len(call.Args), Pos: call.Position()})
			return
		}
	}
	c.lowerExpr(n.X)
	c.emit(bytecode.Instr{Op: bytecode.Pop, Pos: n.Position()})
}

func (c *ctx) lowerAssign(n *ast.AssignStmt) {
	ident, ok := n.Target.(*ast.Ident)
	if !ok {
		c.errf(n.Position(), "lowering: assignment target must be a name")
		return
	}
	c.lowerExpr(n.Value)
	if slot, ok := c.resolveLocal(ident.Name); ok {
		c.emit(bytecode.Instr{Op: bytecode.StoreLocal, Slot: slot, Pos: n.Position()})
		return
	}
	if _, ok := c.unit.Shared[ident.Name]; ok {
		c.emit(bytecode.Instr{Op: bytecode.StoreShared, Name: ident.Name, Pos: n.Position()})
		return
	}
	c.errf(n.Position(), "lowering: unresolved assignment target %q", ident.Name)
}

func (c *ctx) lowerIf(n *ast.IfStmt) {
	c.lowerExpr(n.Cond)
	jf := c.emit(bytecode.Instr{Op: bytecode.JumpIfFalse, Target: -1, Pos: n.Position()})
	c.lowerBlock(n.Then)
	if n.Else == nil {
		c.patch(jf, c.here())
		return
	}
	endJump := c.emit(bytecode.Instr{Op: bytecode.Jump, Target: -1, Pos: n.Position()})
	c.patch(jf, c.here())
	switch e := n.Else.(type) {
	case *ast.Block:
		c.lowerBlock(e)
	case *ast.IfStmt:
		c.lowerIf(e)
	}
	c.patch(endJump, c.here())
}

func (c *ctx) lowerLoop(n *ast.LoopStmt) {
	frame := &loopFrame{}
	c.loops = append(c.loops, frame)
	start := c.here()
	c.lowerBlock(n.Body)
	for _, idx := range frame.continuePatches {
		c.patch(idx, c.here())
	}
	c.emit(bytecode.Instr{Op: bytecode.Jump, Target: start, Pos: n.Position()})
	end := c.here()
	for _, idx := range frame.breakPatches {
		c.patch(idx, end)
	}
	c.loops = c.loops[:len(c.loops)-1]
}

// lowerFor desugars `for v in lo..hi { body }` into a compiler-synthesized
// counter/limit pair of hidden local slots plus a conditional loop, since
// the bytecode has no native bounded-range instruction.
func (c *ctx) lowerFor(n *ast.ForStmt) {
	c.lowerExpr(n.Lo)
	varSlot := c.declare("$for$" + n.Var)
	c.emit(bytecode.Instr{Op: bytecode.StoreLocal, Slot: varSlot, Pos: n.Position()})
	c.lowerExpr(n.Hi)
	limitSlot := c.declare("$for$limit")
	c.emit(bytecode.Instr{Op: bytecode.StoreLocal, Slot: limitSlot, Pos: n.Position()})

	c.pushScope()
	c.scopes[len(c.scopes)-1][n.Var] = varSlot

	start := c.here()
	c.emit(bytecode.Instr{Op: bytecode.LoadLocal, Slot: varSlot, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.LoadLocal, Slot: limitSlot, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.BinOp, BinKind: bytecode.OpLt, Pos: n.Position()})
	jf := c.emit(bytecode.Instr{Op: bytecode.JumpIfFalse, Target: -1, Pos: n.Position()})

	frame := &loopFrame{}
	c.loops = append(c.loops, frame)
	c.lowerBlock(n.Body)
	for _, idx := range frame.continuePatches {
		c.patch(idx, c.here())
	}
	c.emit(bytecode.Instr{Op: bytecode.LoadLocal, Slot: varSlot, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.PushLit, Lit: types.IntLit{V: 1}, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.BinOp, BinKind: bytecode.OpAdd, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.StoreLocal, Slot: varSlot, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.Jump, Target: start, Pos: n.Position()})

	end := c.here()
	c.patch(jf, end)
	for _, idx := range frame.breakPatches {
		c.patch(idx, end)
	}
	c.loops = c.loops[:len(c.loops)-1]
	c.popScope()
}

// lowerAwait implements the spec's `await receive p(x,y) => body;` recipe:
// L0: TryReceive(p,n); JumpIfFalse L_yield; body; Jump L_end;
// L_yield: PushLit(false); WaitCond; Jump L0; L_end:
// The PushLit(false) before WaitCond is a refinement over the spec's literal
// "WaitCond(false)" notation: WaitCond itself always reads its operand off
// the stack (per the VM core semantics), so the literal is pushed explicitly
// rather than passed as an instruction immediate.
func (c *ctx) lowerAwait(n *ast.AwaitStmt) {
	c.pushScope()
	binds := make([]int, len(n.Binds))
	for i, name := range n.Binds {
		binds[i] = c.declare(name)
	}

	l0 := c.here()
	c.emit(bytecode.Instr{Op: bytecode.TryReceive, Port: n.Port, NArgs: len(n.Binds), Binds: binds, Pos: n.Position()})
	jf := c.emit(bytecode.Instr{Op: bytecode.JumpIfFalse, Target: -1, Pos: n.Position()})
	for _, s := range n.Body.Stmts {
		c.lowerStmt(s)
	}
	endJump := c.emit(bytecode.Instr{Op: bytecode.Jump, Target: -1, Pos: n.Position()})
	yieldPC := c.here()
	c.patch(jf, yieldPC)
	c.emit(bytecode.Instr{Op: bytecode.PushLit, Lit: types.BoolLit{V: false}, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.WaitCond, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.Jump, Target: l0, Pos: n.Position()})
	c.patch(endJump, c.here())
	c.popScope()
}

func (c *ctx) lowerWait(n *ast.WaitStmt) {
	start := c.here()
	c.lowerExpr(n.Cond)
	jf := c.emit(bytecode.Instr{Op: bytecode.JumpIfFalse, Target: -1, Pos: n.Position()})
	endJump := c.emit(bytecode.Instr{Op: bytecode.Jump, Target: -1, Pos: n.Position()})
	blockPC := c.here()
	c.patch(jf, blockPC)
	c.emit(bytecode.Instr{Op: bytecode.PushLit, Lit: types.BoolLit{V: false}, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.WaitCond, Pos: n.Position()})
	c.emit(bytecode.Instr{Op: bytecode.Jump, Target: start, Pos: n.Position()})
	endPC := c.here()
	c.patch(endJump, endPC)
}

func (c *ctx) lowerExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.IntLit:
		c.emit(bytecode.Instr{Op: bytecode.PushLit, Lit: types.IntLit{V: n.Value}, Pos: n.Position()})
	case *ast.BoolLit:
		c.emit(bytecode.Instr{Op: bytecode.PushLit, Lit: types.BoolLit{V: n.Value}, Pos: n.Position()})
	case *ast.StrLit:
		c.emit(bytecode.Instr{Op: bytecode.PushLit, Lit: types.StrLit{V: n.Value}, Pos: n.Position()})
	case *ast.Ident:
		if slot, ok := c.resolveLocal(n.Name); ok {
			c.emit(bytecode.Instr{Op: bytecode.LoadLocal, Slot: slot, Pos: n.Position()})
			return
		}
		c.emit(bytecode.Instr{Op: bytecode.LoadShared, Name: n.Name, Pos: n.Position()})
	case *ast.TupleExpr:
		for _, el := range n.Elems {
			c.lowerExpr(el)
		}
		c.emit(bytecode.Instr{Op: bytecode.MakeTuple, NArgs: len(n.Elems), Pos: n.Position()})
	case *ast.ListExpr:
		for _, el := range n.Elems {
			c.lowerExpr(el)
		}
		c.emit(bytecode.Instr{Op: bytecode.MakeList, NArgs: len(n.Elems), Pos: n.Position()})
	case *ast.IndexExpr:
		c.lowerExpr(n.X)
		c.lowerExpr(n.Index)
		c.emit(bytecode.Instr{Op: bytecode.Index, Pos: n.Position()})
	case *ast.FieldExpr:
		c.lowerExpr(n.X)
		c.emit(bytecode.Instr{Op: bytecode.Field, Slot: n.Field, Pos: n.Position()})
	case *ast.UnaryExpr:
		c.lowerExpr(n.X)
		kind := bytecode.OpNeg
		if n.Op == ast.UnaryNot {
			kind = bytecode.OpNot
		}
		c.emit(bytecode.Instr{Op: bytecode.UnOp, UnKind: kind, Pos: n.Position()})
	case *ast.BinaryExpr:
		c.lowerExpr(n.X)
		c.lowerExpr(n.Y)
		c.emit(bytecode.Instr{Op: bytecode.BinOp, BinKind: c.binOpKind(n), Pos: n.Position()})
	case *ast.CallExpr:
		for _, a := range n.Args {
			c.lowerExpr(a)
		}
		id, ok := c.funcIDs[n.Name]
		if !ok {
			c.errf(n.Position(), "lowering: unknown function %q", n.Name)
			return
		}
		c.emit(bytecode.Instr{Op: bytecode.Call, Target: id, NArgs: len(n.Args), Pos: n.Position()})
	case *ast.RunExpr:
		for _, a := range n.Args {
			c.lowerExpr(a)
		}
		c.emit(bytecode.Instr{Op: bytecode.Run, Program: n.Prog, NArgs: len(n.Args), Pos: n.Position()})
	default:
		c.errf(e.Position(), "lowering: unsupported expression kind")
	}
}

// binOpKind maps the '+' operator to string concatenation when both
// operands' checked type is string, and to integer addition otherwise;
// every other operator maps one-to-one.
func (c *ctx) binOpKind(n *ast.BinaryExpr) bytecode.BinOpKind {
	if n.Op == ast.OpAdd {
		if xt, ok := c.res.ExprTypes[n.X]; ok && xt != nil && xt.Equal(types.String) {
			return bytecode.OpConcat
		}
		return bytecode.OpAdd
	}
	switch n.Op {
	case ast.OpSub:
		return bytecode.OpSub
	case ast.OpMul:
		return bytecode.OpMul
	case ast.OpDiv:
		return bytecode.OpDiv
	case ast.OpMod:
		return bytecode.OpMod
	case ast.OpEq:
		return bytecode.OpEq
	case ast.OpNeq:
		return bytecode.OpNeq
	case ast.OpLt:
		return bytecode.OpLt
	case ast.OpLe:
		return bytecode.OpLe
	case ast.OpGt:
		return bytecode.OpGt
	case ast.OpGe:
		return bytecode.OpGe
	case ast.OpAnd:
		return bytecode.OpAnd
	case ast.OpOr:
		return bytecode.OpOr
	default:
		return bytecode.OpAdd
	}
}
