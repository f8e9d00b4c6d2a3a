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

// Package parser hand-writes a recursive-descent parser over the token
// stream produced by lang/lexer, building a lang/ast.File. Recovery is not
// attempted: the parser stops and reports at the first syntax error, as
// permitted by the spec.
package parser

import (
	"strconv"

	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/ast"
	"github.com/althread-lang/althread/lang/lexer"
	"github.com/althread-lang/althread/lang/token"
	"github.com/althread-lang/althread/lang/types"
)

// parser holds the mutable state threaded through every production.
type parser struct {
	file string
	toks []token.Token
	pos  int

	err *diag.Diagnostic // first parse error encountered, if any
}

// Parse tokenizes and parses one file's source text, returning its AST. A
// non-nil diag.List means parsing failed; the returned *ast.File should be
// discarded in that case.
func Parse(file, src string) (*ast.File, diag.List) {
	toks, lexErrs := lexer.All(file, src)
	if len(lexErrs) > 0 {
		return nil, lexErrs
	}
	p := &parser{file: file, toks: toks}
	f := p.parseFile()
	if p.err != nil {
		return nil, diag.List{p.err}
	}
	return f, nil
}

func (p *parser) cur() token.Token  { return p.toks[p.pos] }
func (p *parser) peek(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) tokPos(t token.Token) diag.Pos {
	return diag.Pos{File: p.file, Start: t.ByteStart, End: t.ByteEnd, Line: t.Line, Col: t.Col}
}

// fail records the first parse error. Subsequent calls are ignored so the
// earliest, most relevant failure wins.
func (p *parser) fail(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	p.err = diag.New(diag.Parse, p.tokPos(p.cur()), format, args...)
}

func (p *parser) advance() token.Token {
	t := p.cur()
	if t.Kind != token.EOF {
		p.pos++
	}
	return t
}

// expect consumes the current token if it has kind k, else records a parse
// error and returns the zero Token.
func (p *parser) expect(k token.Kind) token.Token {
	if p.cur().Kind != k {
		p.fail("expected %s, found %s", k, p.cur())
		return token.Token{}
	}
	return p.advance()
}

func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *parser) accept(k token.Kind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}

// failed reports whether a parse error has already been recorded; callers
// use this to bail out of loops instead of spinning forever on bad input.
func (p *parser) failed() bool { return p.err != nil }

// --- top level ---

func (p *parser) parseFile() *ast.File {
	start := p.tokPos(p.cur())
	f := &ast.File{Path: p.file}
	f.Pos = start

	for !p.at(token.EOF) && !p.failed() {
		switch p.cur().Kind {
		case token.KW_IMPORT:
			f.Imports = append(f.Imports, p.parseImport())
		case token.KW_SHARED:
			if f.Shared != nil {
				p.fail("a file may declare at most one shared block")
				return f
			}
			f.Shared = p.parseSharedBlock()
		case token.KW_PROGRAM:
			f.Programs = append(f.Programs, p.parseProgram())
		case token.KW_PRIVATE, token.KW_FUNCTION:
			f.Functions = append(f.Functions, p.parseFunction())
		case token.KW_MAIN:
			if f.Main != nil {
				p.fail("a translation unit may declare at most one main block")
				return f
			}
			f.Main = p.parseMain()
		case token.KW_ALWAYS, token.KW_EVENTUALLY:
			f.Assertions = append(f.Assertions, p.parseAssertion())
		default:
			p.fail("unexpected token %s at top level", p.cur())
			return f
		}
	}
	return f
}

func (p *parser) parseImport() *ast.ImportDecl {
	start := p.advance() // 'import'
	path := p.expect(token.STRING)
	alias := ""
	if p.accept(token.KW_AS) {
		alias = p.expect(token.IDENT_UPPER).Text
	}
	p.expect(token.SEMI)
	return &ast.ImportDecl{ast.NewBase(p.tokPos(start)), path.Text, alias}
}

func (p *parser) parseSharedBlock() *ast.SharedBlock {
	start := p.advance() // 'shared'
	p.expect(token.LBRACE)
	var decls []*ast.SharedDecl
	for !p.at(token.RBRACE) && !p.failed() {
		decls = append(decls, p.parseSharedDecl())
	}
	p.expect(token.RBRACE)
	return &ast.SharedBlock{ast.NewBase(p.tokPos(start)), decls}
}

func (p *parser) parseSharedDecl() *ast.SharedDecl {
	start := p.cur()
	private := p.accept(token.KW_PRIVATE)
	p.expect(token.KW_LET)
	name := p.expect(token.IDENT_UPPER)
	p.expect(token.COLON)
	typ := p.parseType()
	var init ast.Expr
	if p.accept(token.ASSIGN) {
		init = p.parseExpr()
	}
	p.expect(token.SEMI)
	return &ast.SharedDecl{Pos: p.tokPos(start), Name: name.Text, Type: typ, Init: init, Private: private}
}

func (p *parser) parseParams() []ast.Param {
	p.expect(token.LPAREN)
	var params []ast.Param
	for !p.at(token.RPAREN) && !p.failed() {
		if len(params) > 0 {
			p.expect(token.COMMA)
		}
		name := p.expect(token.IDENT_LOWER)
		p.expect(token.COLON)
		typ := p.parseType()
		params = append(params, ast.Param{Name: name.Text, Type: typ})
	}
	p.expect(token.RPAREN)
	return params
}

func (p *parser) parseProgram() *ast.ProgramDecl {
	start := p.advance() // 'program'
	name := p.expect(token.IDENT_UPPER)
	params := p.parseParams()
	body := p.parseBlock()
	return &ast.ProgramDecl{ast.NewBase(p.tokPos(start)), name.Text, params, body}
}

func (p *parser) parseFunction() *ast.FunctionDecl {
	start := p.cur()
	private := p.accept(token.KW_PRIVATE)
	p.expect(token.KW_FUNCTION)
	name := p.expect(token.IDENT_LOWER)
	params := p.parseParams()
	var ret *types.Type
	if p.accept(token.COLON) {
		ret = p.parseType()
	}
	body := p.parseBlock()
	return &ast.FunctionDecl{ast.NewBase(p.tokPos(start)), name.Text, params, ret, body, private}
}

func (p *parser) parseMain() *ast.MainDecl {
	start := p.advance() // 'main'
	body := p.parseBlock()
	return &ast.MainDecl{ast.NewBase(p.tokPos(start)), body}
}

func (p *parser) parseAssertion() *ast.AssertionBlock {
	start := p.cur()
	kind := ast.Always
	if p.cur().Kind == token.KW_EVENTUALLY {
		kind = ast.Eventually
	}
	p.advance()
	p.expect(token.LBRACE)
	expr := p.parseExpr()
	p.expect(token.SEMI)
	p.expect(token.RBRACE)
	return &ast.AssertionBlock{ast.NewBase(p.tokPos(start)), kind, expr}
}

// --- types ---

func (p *parser) parseType() *types.Type {
	switch p.cur().Kind {
	case token.KW_INT_TYPE:
		p.advance()
		return types.Int
	case token.KW_BOOL_TYPE:
		p.advance()
		return types.Bool
	case token.KW_STRING_TYPE:
		p.advance()
		return types.String
	case token.KW_LIST_TYPE:
		p.advance()
		p.expect(token.LPAREN)
		elem := p.parseType()
		p.expect(token.RPAREN)
		return types.NewList(elem)
	case token.KW_TUPLE_TYPE:
		p.advance()
		p.expect(token.LPAREN)
		var elems []*types.Type
		for !p.at(token.RPAREN) && !p.failed() {
			if len(elems) > 0 {
				p.expect(token.COMMA)
			}
			elems = append(elems, p.parseType())
		}
		p.expect(token.RPAREN)
		return types.NewTuple(elems...)
	case token.KW_PROC_TYPE:
		p.advance()
		p.expect(token.LPAREN)
		name := p.expect(token.IDENT_UPPER)
		p.expect(token.RPAREN)
		return types.NewProc(name.Text)
	default:
		p.fail("expected a type, found %s", p.cur())
		return nil
	}
}

// --- statements ---

func (p *parser) parseBlock() *ast.Block {
	start := p.expect(token.LBRACE)
	b := &ast.Block{base: ast.NewBase(p.tokPos(start))}
	for !p.at(token.RBRACE) && !p.at(token.EOF) && !p.failed() {
		b.Stmts = append(b.Stmts, p.parseStmt())
	}
	p.expect(token.RBRACE)
	return b
}

func (p *parser) parseStmt() ast.Stmt {
	switch p.cur().Kind {
	case token.KW_LET:
		return p.parseVarDecl()
	case token.KW_IF:
		return p.parseIf()
	case token.KW_LOOP:
		return p.parseLoop()
	case token.KW_FOR:
		return p.parseFor()
	case token.KW_BREAK:
		t := p.advance()
		p.expect(token.SEMI)
		return &ast.BreakStmt{ast.NewBase(p.tokPos(t))}
	case token.KW_CONTINUE:
		t := p.advance()
		p.expect(token.SEMI)
		return &ast.ContinueStmt{ast.NewBase(p.tokPos(t))}
	case token.KW_RETURN:
		return p.parseReturn()
	case token.KW_SEND:
		return p.parseSend()
	case token.KW_AWAIT:
		return p.parseAwait()
	case token.KW_WAIT:
		return p.parseWait()
	case token.KW_ATOMIC:
		return p.parseAtomic()
	case token.KW_PRINT:
		return p.parsePrint()
	case token.KW_CHANNEL:
		return p.parseChannel()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *parser) parseVarDecl() ast.Stmt {
	start := p.advance() // 'let'
	name := p.expect(token.IDENT_LOWER)
	var typ *types.Type
	if p.accept(token.COLON) {
		typ = p.parseType()
	}
	p.expect(token.ASSIGN)
	init := p.parseExpr()
	p.expect(token.SEMI)
	return &ast.VarDecl{ast.NewBase(p.tokPos(start)), name.Text, typ, init}
}

func (p *parser) parseIf() ast.Stmt {
	start := p.advance() // 'if'
	cond := p.parseExpr()
	then := p.parseBlock()
	var els ast.Stmt
	if p.accept(token.KW_ELSE) {
		if p.at(token.KW_IF) {
			els = p.parseIf()
		} else {
			els = p.parseBlock()
		}
	}
	return &ast.IfStmt{ast.NewBase(p.tokPos(start)), cond, then, els}
}

func (p *parser) parseLoop() ast.Stmt {
	start := p.advance() // 'loop'
	body := p.parseBlock()
	return &ast.LoopStmt{ast.NewBase(p.tokPos(start)), body}
}

func (p *parser) parseFor() ast.Stmt {
	start := p.advance() // 'for'
	name := p.expect(token.IDENT_LOWER)
	p.expect(token.KW_IN)
	lo := p.parseExpr()
	p.expect(token.DOTDOT)
	hi := p.parseExpr()
	body := p.parseBlock()
	return &ast.ForStmt{ast.NewBase(p.tokPos(start)), name.Text, lo, hi, body}
}

func (p *parser) parseReturn() ast.Stmt {
	start := p.advance() // 'return'
	var val ast.Expr
	if !p.at(token.SEMI) {
		val = p.parseExpr()
	}
	p.expect(token.SEMI)
	return &ast.ReturnStmt{ast.NewBase(p.tokPos(start)), val}
}

func (p *parser) parseSend() ast.Stmt {
	start := p.advance() // 'send'
	port := p.expect(token.IDENT_LOWER)
	p.expect(token.LPAREN)
	var args []ast.Expr
	for !p.at(token.RPAREN) && !p.failed() {
		if len(args) > 0 {
			p.expect(token.COMMA)
		}
		args = append(args, p.parseExpr())
	}
	p.expect(token.RPAREN)
	p.expect(token.SEMI)
	return &ast.SendStmt{ast.NewBase(p.tokPos(start)), port.Text, args}
}

func (p *parser) parseAwait() ast.Stmt {
	start := p.advance() // 'await'
	p.expect(token.KW_RECEIVE)
	port := p.expect(token.IDENT_LOWER)
	p.expect(token.LPAREN)
	var binds []string
	for !p.at(token.RPAREN) && !p.failed() {
		if len(binds) > 0 {
			p.expect(token.COMMA)
		}
		binds = append(binds, p.expect(token.IDENT_LOWER).Text)
	}
	p.expect(token.RPAREN)
	p.expect(token.FATARROW)
	body := p.parseBlock()
	return &ast.AwaitStmt{ast.NewBase(p.tokPos(start)), port.Text, binds, body}
}

func (p *parser) parseWait() ast.Stmt {
	start := p.advance() // 'wait'
	p.expect(token.KW_UNTIL)
	cond := p.parseExpr()
	p.expect(token.SEMI)
	return &ast.WaitStmt{ast.NewBase(p.tokPos(start)), cond}
}

func (p *parser) parseAtomic() ast.Stmt {
	start := p.advance() // 'atomic'
	body := p.parseBlock()
	return &ast.AtomicBlock{ast.NewBase(p.tokPos(start)), body}
}

func (p *parser) parsePrint() ast.Stmt {
	start := p.advance() // 'print'
	p.expect(token.LPAREN)
	var args []ast.Expr
	for !p.at(token.RPAREN) && !p.failed() {
		if len(args) > 0 {
			p.expect(token.COMMA)
		}
		args = append(args, p.parseExpr())
	}
	p.expect(token.RPAREN)
	p.expect(token.SEMI)
	return &ast.PrintStmt{ast.NewBase(p.tokPos(start)), args}
}

func (p *parser) parseChannel() ast.Stmt {
	start := p.advance() // 'channel'
	senderProg := p.expect(token.IDENT_UPPER)
	p.expect(token.DOT)
	senderPort := p.expect(token.IDENT_LOWER)
	p.expect(token.LPAREN)
	var typs []*types.Type
	for !p.at(token.RPAREN) && !p.failed() {
		if len(typs) > 0 {
			p.expect(token.COMMA)
		}
		typs = append(typs, p.parseType())
	}
	p.expect(token.RPAREN)
	p.expect(token.ARROW) // '>'
	recvProg := p.expect(token.IDENT_UPPER)
	p.expect(token.DOT)
	recvPort := p.expect(token.IDENT_LOWER)
	p.expect(token.SEMI)
	return &ast.ChannelDecl{ast.NewBase(p.tokPos(start)), senderProg.Text, senderPort.Text, typs, recvProg.Text, recvPort.Text}
}

// parseSimpleStmt handles assignment and bare expression statements, which
// share an expression prefix and so cannot be dispatched on the first
// token alone.
func (p *parser) parseSimpleStmt() ast.Stmt {
	start := p.cur()
	x := p.parseExpr()
	if p.accept(token.ASSIGN) {
		val := p.parseExpr()
		p.expect(token.SEMI)
		return &ast.AssignStmt{ast.NewBase(p.tokPos(start)), x, val}
	}
	p.expect(token.SEMI)
	return &ast.ExprStmt{ast.NewBase(p.tokPos(start)), x}
}

// --- expressions, standard precedence climbing ---

func (p *parser) parseExpr() ast.Expr { return p.parseOr() }

func (p *parser) parseOr() ast.Expr {
	x := p.parseAnd()
	for p.at(token.OR) {
		t := p.advance()
		y := p.parseAnd()
		x = &ast.BinaryExpr{ast.NewBase(p.tokPos(t)), ast.OpOr, x, y}
	}
	return x
}

func (p *parser) parseAnd() ast.Expr {
	x := p.parseEquality()
	for p.at(token.AND) {
		t := p.advance()
		y := p.parseEquality()
		x = &ast.BinaryExpr{ast.NewBase(p.tokPos(t)), ast.OpAnd, x, y}
	}
	return x
}

func (p *parser) parseEquality() ast.Expr {
	x := p.parseRelational()
	for p.at(token.EQ) || p.at(token.NEQ) {
		t := p.advance()
		op := ast.OpEq
		if t.Kind == token.NEQ {
			op = ast.OpNeq
		}
		y := p.parseRelational()
		x = &ast.BinaryExpr{ast.NewBase(p.tokPos(t)), op, x, y}
	}
	return x
}

// parseRelational also accepts ARROW as the GT operator: the lexer always
// emits ARROW for a lone '>', since the same glyph introduces a channel
// declaration's receiver side. Context disambiguates the two: a channel
// declaration is a statement parsed by parseChannel, never an expression.
func (p *parser) parseRelational() ast.Expr {
	x := p.parseAdditive()
	for p.at(token.LT) || p.at(token.LE) || p.at(token.ARROW) || p.at(token.GE) {
		t := p.advance()
		var op ast.BinaryOp
		switch t.Kind {
		case token.LT:
			op = ast.OpLt
		case token.LE:
			op = ast.OpLe
		case token.ARROW:
			op = ast.OpGt
		case token.GE:
			op = ast.OpGe
		}
		y := p.parseAdditive()
		x = &ast.BinaryExpr{ast.NewBase(p.tokPos(t)), op, x, y}
	}
	return x
}

func (p *parser) parseAdditive() ast.Expr {
	x := p.parseMultiplicative()
	for p.at(token.PLUS) || p.at(token.MINUS) {
		t := p.advance()
		op := ast.OpAdd
		if t.Kind == token.MINUS {
			op = ast.OpSub
		}
		y := p.parseMultiplicative()
		x = &ast.BinaryExpr{ast.NewBase(p.tokPos(t)), op, x, y}
	}
	return x
}

func (p *parser) parseMultiplicative() ast.Expr {
	x := p.parseUnary()
	for p.at(token.STAR) || p.at(token.SLASH) || p.at(token.PERCENT) {
		t := p.advance()
		var op ast.BinaryOp
		switch t.Kind {
		case token.STAR:
			op = ast.OpMul
		case token.SLASH:
			op = ast.OpDiv
		case token.PERCENT:
			op = ast.OpMod
		}
		y := p.parseUnary()
		x = &ast.BinaryExpr{ast.NewBase(p.tokPos(t)), op, x, y}
	}
	return x
}

func (p *parser) parseUnary() ast.Expr {
	if p.at(token.MINUS) || p.at(token.NOT) {
		t := p.advance()
		op := ast.UnaryNeg
		if t.Kind == token.NOT {
			op = ast.UnaryNot
		}
		x := p.parseUnary()
		return &ast.UnaryExpr{ast.NewBase(p.tokPos(t)), op, x}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	for {
		switch p.cur().Kind {
		case token.LBRACKET:
			t := p.advance()
			idx := p.parseExpr()
			p.expect(token.RBRACKET)
			x = &ast.IndexExpr{ast.NewBase(p.tokPos(t)), x, idx}
		case token.DOT:
			t := p.advance()
			numTok := p.expect(token.INT)
			n, _ := strconv.Atoi(numTok.Text)
			x = &ast.FieldExpr{ast.NewBase(p.tokPos(t)), x, n}
		default:
			return x
		}
	}
}

func (p *parser) parsePrimary() ast.Expr {
	t := p.cur()
	switch t.Kind {
	case token.INT:
		p.advance()
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			p.fail("invalid integer literal %q", t.Text)
		}
		return &ast.IntLit{ast.NewBase(p.tokPos(t)), n}
	case token.KW_TRUE:
		p.advance()
		return &ast.BoolLit{ast.NewBase(p.tokPos(t)), true}
	case token.KW_FALSE:
		p.advance()
		return &ast.BoolLit{ast.NewBase(p.tokPos(t)), false}
	case token.STRING:
		p.advance()
		return &ast.StrLit{ast.NewBase(p.tokPos(t)), t.Text}
	case token.KW_RUN:
		return p.parseRun()
	case token.IDENT_LOWER:
		return p.parseIdentOrCall()
	case token.IDENT_UPPER:
		p.advance()
		return &ast.Ident{ast.NewBase(p.tokPos(t)), t.Text}
	case token.LPAREN:
		p.advance()
		first := p.parseExpr()
		if p.accept(token.COMMA) {
			elems := []ast.Expr{first}
			for !p.at(token.RPAREN) && !p.failed() {
				elems = append(elems, p.parseExpr())
				if !p.accept(token.COMMA) {
					break
				}
			}
			p.expect(token.RPAREN)
			return &ast.TupleExpr{ast.NewBase(p.tokPos(t)), elems}
		}
		p.expect(token.RPAREN)
		return first
	case token.LBRACKET:
		p.advance()
		var elems []ast.Expr
		for !p.at(token.RBRACKET) && !p.failed() {
			if len(elems) > 0 {
				p.expect(token.COMMA)
			}
			elems = append(elems, p.parseExpr())
		}
		p.expect(token.RBRACKET)
		return &ast.ListExpr{ast.NewBase(p.tokPos(t)), elems}
	default:
		p.fail("unexpected token %s in expression", t)
		p.advance()
		return &ast.IntLit{ast.NewBase(p.tokPos(t)), 0}
	}
}

func (p *parser) parseRun() ast.Expr {
	start := p.advance() // 'run'
	prog := p.expect(token.IDENT_UPPER)
	p.expect(token.LPAREN)
	var args []ast.Expr
	for !p.at(token.RPAREN) && !p.failed() {
		if len(args) > 0 {
			p.expect(token.COMMA)
		}
		args = append(args, p.parseExpr())
	}
	p.expect(token.RPAREN)
	return &ast.RunExpr{ast.NewBase(p.tokPos(start)), prog.Text, args}
}

func (p *parser) parseIdentOrCall() ast.Expr {
	t := p.advance()
	if p.at(token.LPAREN) {
		p.advance()
		var args []ast.Expr
		for !p.at(token.RPAREN) && !p.failed() {
			if len(args) > 0 {
				p.expect(token.COMMA)
			}
			args = append(args, p.parseExpr())
		}
		p.expect(token.RPAREN)
		return &ast.CallExpr{ast.NewBase(p.tokPos(t)), t.Text, args}
	}
	return &ast.Ident{ast.NewBase(p.tokPos(t)), t.Text}
}
