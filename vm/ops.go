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

package vm

import (
	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/lang/types"
)

func (p *Process) execBinOp(instr bytecode.Instr) *Error {
	y := p.pop()
	x := p.pop()

	if instr.BinKind == bytecode.OpEq || instr.BinKind == bytecode.OpNeq {
		eq := x.Cmp(y) == nil
		if instr.BinKind == bytecode.OpNeq {
			eq = !eq
		}
		p.push(types.BoolLit{V: eq})
		return nil
	}

	if instr.BinKind == bytecode.OpAnd || instr.BinKind == bytecode.OpOr {
		xb, xok := x.(types.BoolLit)
		yb, yok := y.(types.BoolLit)
		if !xok || !yok {
			return p.errf(instr, ErrTypeMismatch, "boolean operator requires bool operands, got %s and %s", x, y)
		}
		var v bool
		if instr.BinKind == bytecode.OpAnd {
			v = xb.V && yb.V
		} else {
			v = xb.V || yb.V
		}
		p.push(types.BoolLit{V: v})
		return nil
	}

	if instr.BinKind == bytecode.OpConcat {
		xs, xok := x.(types.StrLit)
		ys, yok := y.(types.StrLit)
		if !xok || !yok {
			return p.errf(instr, ErrTypeMismatch, "string concatenation requires string operands, got %s and %s", x, y)
		}
		p.push(types.StrLit{V: xs.V + ys.V})
		return nil
	}

	xi, xok := x.(types.IntLit)
	yi, yok := y.(types.IntLit)
	if !xok || !yok {
		return p.errf(instr, ErrTypeMismatch, "arithmetic/comparison operator requires int operands, got %s and %s", x, y)
	}
	switch instr.BinKind {
	case bytecode.OpAdd:
		p.push(types.IntLit{V: xi.V + yi.V})
	case bytecode.OpSub:
		p.push(types.IntLit{V: xi.V - yi.V})
	case bytecode.OpMul:
		p.push(types.IntLit{V: xi.V * yi.V})
	case bytecode.OpDiv:
		if yi.V == 0 {
			return p.errf(instr, ErrDivByZero, "division by zero")
		}
		p.push(types.IntLit{V: xi.V / yi.V})
	case bytecode.OpMod:
		if yi.V == 0 {
			return p.errf(instr, ErrDivByZero, "modulo by zero")
		}
		p.push(types.IntLit{V: xi.V % yi.V})
	case bytecode.OpLt:
		p.push(types.BoolLit{V: xi.V < yi.V})
	case bytecode.OpLe:
		p.push(types.BoolLit{V: xi.V <= yi.V})
	case bytecode.OpGt:
		p.push(types.BoolLit{V: xi.V > yi.V})
	case bytecode.OpGe:
		p.push(types.BoolLit{V: xi.V >= yi.V})
	default:
		return p.errf(instr, ErrTypeMismatch, "unsupported binary operator %d", instr.BinKind)
	}
	return nil
}

func (p *Process) execUnOp(instr bytecode.Instr) *Error {
	x := p.pop()
	switch instr.UnKind {
	case bytecode.OpNeg:
		xi, ok := x.(types.IntLit)
		if !ok {
			return p.errf(instr, ErrTypeMismatch, "unary '-' requires int, got %s", x)
		}
		p.push(types.IntLit{V: -xi.V})
	case bytecode.OpNot:
		xb, ok := x.(types.BoolLit)
		if !ok {
			return p.errf(instr, ErrTypeMismatch, "unary '!' requires bool, got %s", x)
		}
		p.push(types.BoolLit{V: !xb.V})
	default:
		return p.errf(instr, ErrTypeMismatch, "unsupported unary operator %d", instr.UnKind)
	}
	return nil
}
