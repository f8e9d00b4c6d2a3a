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

// Package semantic implements the two-pass semantic analyzer: pass 1
// collects top-level names (already done by lang/linker, which this
// package consumes), pass 2 resolves every identifier, type-checks every
// expression, enforces the `private` marker, validates channel port
// declarations against inferred send/receive usage, checks return types,
// and validates break/continue nesting.
package semantic

import (
	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/ast"
	"github.com/althread-lang/althread/lang/linker"
	"github.com/althread-lang/althread/lang/types"
)

// IdentKind classifies how an Ident node was resolved, the Go-native shape
// of the spec's (LocalSlot | SharedName | FunctionRef | ProgramRef |
// ImportedAlias) sum.
type IdentKind int

// The closed set of ways an identifier can resolve.
const (
	IdentLocal IdentKind = iota
	IdentShared
	IdentFunction
	IdentProgram
)

// IdentInfo records how one *ast.Ident resolved and its type.
type IdentInfo struct {
	Kind IdentKind
	Type *types.Type
}

// ChannelPort indexes one endpoint of a channel declaration: the program
// and port name, together with the message's positional types.
type ChannelPort struct {
	Decl  *ast.ChannelDecl
	Types []*types.Type
}

// Result is the analyzer's output: enough resolved information for
// lang/lower to emit bytecode without re-deriving types or port bindings.
type Result struct {
	Funcs  map[string]*ast.FunctionDecl
	Progs  map[string]*ast.ProgramDecl
	Shared map[string]*ast.SharedDecl

	// ExprTypes maps every checked expression node to its inferred type.
	ExprTypes map[ast.Expr]*types.Type
	// Idents maps every checked identifier reference to its resolution.
	Idents map[*ast.Ident]IdentInfo

	// SendPorts/RecvPorts index channel endpoints by "Prog.port".
	SendPorts map[string]*ChannelPort
	RecvPorts map[string]*ChannelPort

	Channels []*ast.ChannelDecl
}

// analyzer threads the mutable state of one Analyze call.
type analyzer struct {
	unit *linker.Unit
	res  *Result
	errs diag.List

	// funcFile, progFile and sharedFile map a top-level declaration's name to the file path that
	// declares it, used to enforce `private` across file boundaries.
	funcFile   map[string]string
	progFile   map[string]string
	sharedFile map[string]string
}

// scope is a chain of lexical blocks mapping a local name to its type.
// Mirrors the teacher's Scope.Copy()-per-nesting-level idiom in
// lang/interfaces/ast.go, specialized to types instead of Expr bindings.
type scope struct {
	vars   map[string]*types.Type
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: map[string]*types.Type{}, parent: parent}
}

func (s *scope) lookup(name string) (*types.Type, bool) {
	for c := s; c != nil; c = c.parent {
		if t, ok := c.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

func (s *scope) declare(name string, t *types.Type) { s.vars[name] = t }

// progCtx carries the state specific to one program or function body being
// checked: its declaring file (for privacy), its channel-port index scoped
// to its own program name (empty for functions), the declared return type,
// and the current loop nesting depth for break/continue validation.
type progCtx struct {
	file      string
	progName  string // "" when checking a function, not a program
	retType   *types.Type
	hasRet    bool
	loopDepth int
}

// Analyze validates u and returns the bindings/types the lowerer needs.
func Analyze(u *linker.Unit) (*Result, diag.List) {
	a := &analyzer{
		unit: u,
		res: &Result{
			Funcs:     u.Functions,
			Progs:     u.Programs,
			Shared:    u.Shared,
			ExprTypes: map[ast.Expr]*types.Type{},
			Idents:    map[*ast.Ident]IdentInfo{},
			SendPorts: map[string]*ChannelPort{},
			RecvPorts: map[string]*ChannelPort{},
		},
		funcFile:   map[string]string{},
		progFile:   map[string]string{},
		sharedFile: map[string]string{},
	}

	for file, f := range u.Files {
		for _, fn := range f.Functions {
			a.funcFile[fn.Name] = file
		}
		for _, p := range f.Programs {
			a.progFile[p.Name] = file
		}
		if f.Shared != nil {
			for _, d := range f.Shared.Decls {
				a.sharedFile[d.Name] = file
			}
		}
	}

	// Shared variable initializers are checked in the global scope, with
	// no locals visible.
	globalScope := newScope(nil)
	for _, d := range u.Shared {
		if d.Init != nil {
			gotT := a.checkExpr(globalScope, &progCtx{file: a.sharedFile[d.Name]}, d.Init)
			if d.Type != nil && gotT != nil {
				if err := d.Type.Cmp(gotT); err != nil {
					a.errf(diag.Type, d.Init.Position(), "shared variable %q initializer: %s", d.Name, err)
				}
			}
		}
	}

	a.indexChannels(u.Main)

	for name, fn := range u.Functions {
		a.checkFunction(name, fn)
	}
	for name, prog := range u.Programs {
		a.checkProgram(name, prog)
	}
	if u.Main != nil {
		ctx := &progCtx{file: u.EntryPath}
		a.checkBlock(newScope(nil), ctx, u.Main.Body)
	}
	for _, ab := range u.Assertions {
		a.checkExpr(globalScope, &progCtx{file: u.EntryPath}, ab.Expr)
	}

	return a.res, a.errs
}

func (a *analyzer) errf(kind diag.Kind, pos diag.Pos, format string, args ...interface{}) {
	a.errs = a.errs.Add(diag.New(kind, pos, format, args...))
}

// indexChannels walks main's body (recursively, since the grammar allows a
// ChannelDecl statement anywhere a statement is legal, though by convention
// programs declare them at the top of main) and records each declaration's
// resolved port types under both its sender and receiver keys.
func (a *analyzer) indexChannels(main *ast.MainDecl) {
	if main == nil {
		return
	}
	var walk func(b *ast.Block)
	walk = func(b *ast.Block) {
		for _, s := range b.Stmts {
			switch n := s.(type) {
			case *ast.ChannelDecl:
				a.res.Channels = append(a.res.Channels, n)
				sendKey := n.SenderProg + "." + n.SenderPort
				recvKey := n.ReceiverProg + "." + n.ReceiverPort
				cp := &ChannelPort{Decl: n, Types: n.Types}
				if _, dup := a.res.SendPorts[sendKey]; dup {
					a.errf(diag.PortMismatch, n.Position(), "port %s already has an outgoing channel declared", sendKey)
				}
				a.res.SendPorts[sendKey] = cp
				if _, dup := a.res.RecvPorts[recvKey]; dup {
					a.errf(diag.PortMismatch, n.Position(), "port %s already has an incoming channel declared", recvKey)
				}
				a.res.RecvPorts[recvKey] = cp
				if _, ok := a.unit.Programs[n.SenderProg]; !ok {
					a.errf(diag.Name, n.Position(), "channel declaration references unknown program %q", n.SenderProg)
				}
				if _, ok := a.unit.Programs[n.ReceiverProg]; !ok {
					a.errf(diag.Name, n.Position(), "channel declaration references unknown program %q", n.ReceiverProg)
				}
			case *ast.IfStmt:
				walk(n.Then)
				if eb, ok := n.Else.(*ast.Block); ok {
					walk(eb)
				}
			case *ast.LoopStmt:
				walk(n.Body)
			case *ast.ForStmt:
				walk(n.Body)
			case *ast.AtomicBlock:
				walk(n.Body)
			}
		}
	}
	walk(main.Body)
}

func (a *analyzer) checkFunction(name string, fn *ast.FunctionDecl) {
	sc := newScope(nil)
	for _, p := range fn.Params {
		sc.declare(p.Name, p.Type)
	}
	ctx := &progCtx{file: a.funcFile[name], retType: fn.Ret, hasRet: fn.Ret != nil}
	a.checkBlock(sc, ctx, fn.Body)
}

func (a *analyzer) checkProgram(name string, prog *ast.ProgramDecl) {
	sc := newScope(nil)
	for _, p := range prog.Params {
		sc.declare(p.Name, p.Type)
	}
	ctx := &progCtx{file: a.progFile[name], progName: name}
	a.checkBlock(sc, ctx, prog.Body)
}

func (a *analyzer) checkBlock(sc *scope, ctx *progCtx, b *ast.Block) {
	inner := newScope(sc)
	for _, s := range b.Stmts {
		a.checkStmt(inner, ctx, s)
	}
}

func (a *analyzer) checkStmt(sc *scope, ctx *progCtx, s ast.Stmt) {
	switch n := s.(type) {
	case *ast.VarDecl:
		t := a.checkExpr(sc, ctx, n.Init)
		if n.Type != nil {
			if t != nil {
				if err := n.Type.Cmp(t); err != nil {
					a.errf(diag.Type, n.Init.Position(), "let %s: %s", n.Name, err)
				}
			}
			sc.declare(n.Name, n.Type)
		} else {
			sc.declare(n.Name, t)
		}
	case *ast.AssignStmt:
		targetType := a.checkExpr(sc, ctx, n.Target)
		valType := a.checkExpr(sc, ctx, n.Value)
		if targetType != nil && valType != nil {
			if err := targetType.Cmp(valType); err != nil {
				a.errf(diag.Type, n.Value.Position(), "assignment: %s", err)
			}
		}
	case *ast.ExprStmt:
		a.checkExpr(sc, ctx, n.X)
	case *ast.PrintStmt:
		for _, e := range n.Args {
			a.checkExpr(sc, ctx, e)
		}
	case *ast.IfStmt:
		ct := a.checkExpr(sc, ctx, n.Cond)
		if ct != nil && !ct.Equal(types.Bool) {
			a.errf(diag.Type, n.Cond.Position(), "if condition must be bool, got %s", ct)
		}
		a.checkBlock(sc, ctx, n.Then)
		switch e := n.Else.(type) {
		case *ast.Block:
			a.checkBlock(sc, ctx, e)
		case *ast.IfStmt:
			a.checkStmt(sc, ctx, e)
		}
	case *ast.LoopStmt:
		ctx.loopDepth++
		a.checkBlock(sc, ctx, n.Body)
		ctx.loopDepth--
	case *ast.ForStmt:
		lo := a.checkExpr(sc, ctx, n.Lo)
		hi := a.checkExpr(sc, ctx, n.Hi)
		if lo != nil && !lo.Equal(types.Int) {
			a.errf(diag.Type, n.Lo.Position(), "for-loop bound must be int, got %s", lo)
		}
		if hi != nil && !hi.Equal(types.Int) {
			a.errf(diag.Type, n.Hi.Position(), "for-loop bound must be int, got %s", hi)
		}
		inner := newScope(sc)
		inner.declare(n.Var, types.Int)
		ctx.loopDepth++
		a.checkBlock(inner, ctx, n.Body)
		ctx.loopDepth--
	case *ast.BreakStmt:
		if ctx.loopDepth == 0 {
			a.errf(diag.Parse, n.Position(), "break outside of a loop")
		}
	case *ast.ContinueStmt:
		if ctx.loopDepth == 0 {
			a.errf(diag.Parse, n.Position(), "continue outside of a loop")
		}
	case *ast.ReturnStmt:
		if n.Value == nil {
			if ctx.hasRet {
				a.errf(diag.Type, n.Position(), "missing return value, function declares return type %s", ctx.retType)
			}
			return
		}
		t := a.checkExpr(sc, ctx, n.Value)
		if !ctx.hasRet {
			a.errf(diag.Type, n.Position(), "return value given, function declares no return type")
			return
		}
		if t != nil {
			if err := ctx.retType.Cmp(t); err != nil {
				a.errf(diag.Type, n.Value.Position(), "return: %s", err)
			}
		}
	case *ast.SendStmt:
		a.checkSend(sc, ctx, n)
	case *ast.AwaitStmt:
		a.checkAwait(sc, ctx, n)
	case *ast.WaitStmt:
		ct := a.checkExpr(sc, ctx, n.Cond)
		if ct != nil && !ct.Equal(types.Bool) {
			a.errf(diag.Type, n.Cond.Position(), "wait until condition must be bool, got %s", ct)
		}
	case *ast.AtomicBlock:
		a.checkBlock(sc, ctx, n.Body)
	case *ast.ChannelDecl:
		// Declarations inside main were already indexed by indexChannels;
		// anything not indexed there sits outside main's body.
		for _, c := range a.res.Channels {
			if c == n {
				return
			}
		}
		a.errf(diag.Parse, n.Position(), "channel declarations are only legal inside main")
	default:
		a.errf(diag.Parse, s.Position(), "unsupported statement kind in semantic analysis")
	}
}

func (a *analyzer) checkSend(sc *scope, ctx *progCtx, n *ast.SendStmt) {
	argTypes := make([]*types.Type, len(n.Args))
	for i, e := range n.Args {
		argTypes[i] = a.checkExpr(sc, ctx, e)
	}
	key := ctx.progName + "." + n.Port
	port, ok := a.res.SendPorts[key]
	if !ok {
		a.errf(diag.PortMismatch, n.Position(), "program %s has no declared outgoing channel on port %q", ctx.progName, n.Port)
		return
	}
	if len(argTypes) != len(port.Types) {
		a.errf(diag.PortMismatch, n.Position(), "send %s: expected %d argument(s), got %d", n.Port, len(port.Types), len(argTypes))
		return
	}
	for i, at := range argTypes {
		if at == nil {
			continue
		}
		if err := port.Types[i].Cmp(at); err != nil {
			a.errf(diag.Type, n.Args[i].Position(), "send %s argument %d: %s", n.Port, i, err)
		}
	}
}

func (a *analyzer) checkAwait(sc *scope, ctx *progCtx, n *ast.AwaitStmt) {
	key := ctx.progName + "." + n.Port
	port, ok := a.res.RecvPorts[key]
	if !ok {
		a.errf(diag.PortMismatch, n.Position(), "program %s has no declared incoming channel on port %q", ctx.progName, n.Port)
		a.checkBlock(sc, ctx, n.Body)
		return
	}
	if len(n.Binds) != len(port.Types) {
		a.errf(diag.PortMismatch, n.Position(), "await receive %s: expected %d bind(s), got %d", n.Port, len(port.Types), len(n.Binds))
	}
	inner := newScope(sc)
	for i, name := range n.Binds {
		if i < len(port.Types) {
			inner.declare(name, port.Types[i])
		}
	}
	for _, s := range n.Body.Stmts {
		a.checkStmt(inner, ctx, s)
	}
}

// checkExpr type-checks e and records its inferred type. It returns nil
// when the type could not be determined (an error was already reported),
// letting callers skip further type comparisons without cascading errors.
func (a *analyzer) checkExpr(sc *scope, ctx *progCtx, e ast.Expr) *types.Type {
	t := a.inferExpr(sc, ctx, e)
	if t != nil {
		a.res.ExprTypes[e] = t
	}
	return t
}

func (a *analyzer) inferExpr(sc *scope, ctx *progCtx, e ast.Expr) *types.Type {
	switch n := e.(type) {
	case *ast.IntLit:
		return types.Int
	case *ast.BoolLit:
		return types.Bool
	case *ast.StrLit:
		return types.String
	case *ast.Ident:
		return a.resolveIdent(sc, ctx, n)
	case *ast.TupleExpr:
		elems := make([]*types.Type, len(n.Elems))
		ok := true
		for i, el := range n.Elems {
			t := a.checkExpr(sc, ctx, el)
			elems[i] = t
			if t == nil {
				ok = false
			}
		}
		if !ok {
			return nil
		}
		return types.NewTuple(elems...)
	case *ast.ListExpr:
		if len(n.Elems) == 0 {
			return nil // element type cannot be inferred from an empty literal
		}
		first := a.checkExpr(sc, ctx, n.Elems[0])
		for _, el := range n.Elems[1:] {
			t := a.checkExpr(sc, ctx, el)
			if t != nil && first != nil {
				if err := first.Cmp(t); err != nil {
					a.errf(diag.Type, el.Position(), "list element: %s", err)
				}
			}
		}
		if first == nil {
			return nil
		}
		return types.NewList(first)
	case *ast.IndexExpr:
		xt := a.checkExpr(sc, ctx, n.X)
		it := a.checkExpr(sc, ctx, n.Index)
		if it != nil && !it.Equal(types.Int) {
			a.errf(diag.Type, n.Index.Position(), "list index must be int, got %s", it)
		}
		if xt == nil {
			return nil
		}
		if xt.Kind != types.KindList {
			a.errf(diag.Type, n.X.Position(), "cannot index non-list type %s", xt)
			return nil
		}
		return xt.Elem
	case *ast.FieldExpr:
		xt := a.checkExpr(sc, ctx, n.X)
		if xt == nil {
			return nil
		}
		if xt.Kind != types.KindTuple {
			a.errf(diag.Type, n.X.Position(), "cannot field-access non-tuple type %s", xt)
			return nil
		}
		if n.Field < 0 || n.Field >= len(xt.Elems) {
			a.errf(diag.Type, n.Position(), "tuple field %d out of range for %s", n.Field, xt)
			return nil
		}
		return xt.Elems[n.Field]
	case *ast.UnaryExpr:
		xt := a.checkExpr(sc, ctx, n.X)
		if xt == nil {
			return nil
		}
		switch n.Op {
		case ast.UnaryNeg:
			if !xt.Equal(types.Int) {
				a.errf(diag.Type, n.Position(), "unary '-' requires int, got %s", xt)
				return nil
			}
			return types.Int
		case ast.UnaryNot:
			if !xt.Equal(types.Bool) {
				a.errf(diag.Type, n.Position(), "unary '!' requires bool, got %s", xt)
				return nil
			}
			return types.Bool
		}
		return nil
	case *ast.BinaryExpr:
		return a.inferBinary(sc, ctx, n)
	case *ast.CallExpr:
		return a.checkCall(sc, ctx, n)
	case *ast.RunExpr:
		return a.checkRun(sc, ctx, n)
	default:
		a.errf(diag.Type, e.Position(), "unsupported expression kind in semantic analysis")
		return nil
	}
}

func (a *analyzer) resolveIdent(sc *scope, ctx *progCtx, n *ast.Ident) *types.Type {
	if t, ok := sc.lookup(n.Name); ok {
		a.res.Idents[n] = IdentInfo{Kind: IdentLocal, Type: t}
		return t
	}
	if d, ok := a.unit.Shared[n.Name]; ok {
		if d.Private && a.sharedFile[n.Name] != ctx.file {
			a.errf(diag.Privacy, n.Position(), "shared variable %q is private to %s", n.Name, a.sharedFile[n.Name])
		}
		a.res.Idents[n] = IdentInfo{Kind: IdentShared, Type: d.Type}
		return d.Type
	}
	a.errf(diag.Name, n.Position(), "undefined name %q", n.Name)
	return nil
}

func (a *analyzer) inferBinary(sc *scope, ctx *progCtx, n *ast.BinaryExpr) *types.Type {
	xt := a.checkExpr(sc, ctx, n.X)
	yt := a.checkExpr(sc, ctx, n.Y)
	if xt == nil || yt == nil {
		return nil
	}
	switch n.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if xt.Equal(types.String) && yt.Equal(types.String) && n.Op == ast.OpAdd {
			return types.String // string concatenation
		}
		if !xt.Equal(types.Int) || !yt.Equal(types.Int) {
			a.errf(diag.Type, n.Position(), "arithmetic operator requires int operands, got %s and %s", xt, yt)
			return nil
		}
		return types.Int
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		if !xt.Equal(types.Int) || !yt.Equal(types.Int) {
			a.errf(diag.Type, n.Position(), "comparison operator requires int operands, got %s and %s", xt, yt)
			return nil
		}
		return types.Bool
	case ast.OpEq, ast.OpNeq:
		if err := xt.Cmp(yt); err != nil {
			a.errf(diag.Type, n.Position(), "equality operands must share a type: %s", err)
			return nil
		}
		return types.Bool
	case ast.OpAnd, ast.OpOr:
		if !xt.Equal(types.Bool) || !yt.Equal(types.Bool) {
			a.errf(diag.Type, n.Position(), "boolean operator requires bool operands, got %s and %s", xt, yt)
			return nil
		}
		return types.Bool
	default:
		return nil
	}
}

func (a *analyzer) checkCall(sc *scope, ctx *progCtx, n *ast.CallExpr) *types.Type {
	argTypes := make([]*types.Type, len(n.Args))
	argsOK := true
	for i, e := range n.Args {
		argTypes[i] = a.checkExpr(sc, ctx, e)
		if argTypes[i] == nil {
			argsOK = false
		}
	}
	fn, ok := a.unit.Functions[n.Name]
	if !ok {
		a.errf(diag.Name, n.Position(), "call to undefined function %q", n.Name)
		return nil
	}
	if fn.Private && a.funcFile[n.Name] != ctx.file {
		a.errf(diag.Privacy, n.Position(), "function %q is private to %s", n.Name, a.funcFile[n.Name])
	}
	if len(argTypes) != len(fn.Params) {
		a.errf(diag.Type, n.Position(), "call to %q: expected %d argument(s), got %d", n.Name, len(fn.Params), len(argTypes))
		return fn.Ret
	}
	if argsOK {
		for i, at := range argTypes {
			if err := fn.Params[i].Type.Cmp(at); err != nil {
				a.errf(diag.Type, n.Args[i].Position(), "call to %q argument %d: %s", n.Name, i, err)
			}
		}
	}
	return fn.Ret
}

func (a *analyzer) checkRun(sc *scope, ctx *progCtx, n *ast.RunExpr) *types.Type {
	for _, e := range n.Args {
		a.checkExpr(sc, ctx, e)
	}
	prog, ok := a.unit.Programs[n.Prog]
	if !ok {
		a.errf(diag.Name, n.Position(), "run: undefined program %q", n.Prog)
		return nil
	}
	if len(n.Args) != len(prog.Params) {
		a.errf(diag.Type, n.Position(), "run %s: expected %d argument(s), got %d", n.Prog, len(prog.Params), len(n.Args))
	}
	return types.NewProc(n.Prog)
}
