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

package lower

import (
	"testing"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/lang/linker"
	"github.com/althread-lang/althread/lang/semantic"
)

func compile(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	u, errs := linker.Link("/main.al", linker.VFS{"/main.al": src})
	if len(errs) != 0 {
		t.Fatalf("unexpected link error: %s", errs.Error())
	}
	res, serrs := semantic.Analyze(u)
	if len(serrs) != 0 {
		t.Fatalf("unexpected semantic error: %s", serrs.Error())
	}
	prog, lerrs := Lower(u, res)
	if len(lerrs) != 0 {
		t.Fatalf("unexpected lowering error: %s", lerrs.Error())
	}
	return prog
}

func TestLowerArithmeticAndLocals(t *testing.T) {
	prog := compile(t, `
function square(x: int): int {
	let y: int = x * x;
	return y;
}

main {
	print(square(3));
}
`)
	if len(prog.Functions) != 1 {
		t.Fatalf("expected one compiled function, got %d", len(prog.Functions))
	}
	fn := prog.Functions[0]
	if fn.NumParams != 1 || fn.NumLocals < 2 {
		t.Fatalf("unexpected function shape: %+v", fn)
	}
	var sawMul, sawReturn bool
	for _, ins := range fn.Code {
		if ins.Op == bytecode.BinOp && ins.BinKind == bytecode.OpMul {
			sawMul = true
		}
		if ins.Op == bytecode.Return {
			sawReturn = true
		}
	}
	if !sawMul || !sawReturn {
		t.Fatalf("expected a multiply and a return in %v", fn.Code)
	}
}

func TestLowerIfElseBalancesJumps(t *testing.T) {
	prog := compile(t, `
main {
	let x: int = 1;
	if x > 0 {
		print(1);
	} else {
		print(0);
	}
}
`)
	for i, ins := range prog.Main {
		if ins.Op == bytecode.Jump || ins.Op == bytecode.JumpIfFalse {
			if ins.Target < 0 || ins.Target > len(prog.Main) {
				t.Fatalf("instruction %d has an unpatched or out-of-range jump target: %+v", i, ins)
			}
		}
	}
}

func TestLowerLoopBreakContinue(t *testing.T) {
	prog := compile(t, `
main {
	let i: int = 0;
	loop {
		i = i + 1;
		if i > 10 {
			break;
		}
		if i == 5 {
			continue;
		}
		print(i);
	}
}
`)
	var breaks, continues int
	for _, ins := range prog.Main {
		switch ins.Op {
		case bytecode.BreakLoop:
			breaks++
			if ins.Target < 0 {
				t.Fatalf("break target never patched: %+v", ins)
			}
		case bytecode.ContinueLoop:
			continues++
			if ins.Target < 0 {
				t.Fatalf("continue target never patched: %+v", ins)
			}
		}
	}
	if breaks != 1 || continues != 1 {
		t.Fatalf("expected one break and one continue, got %d/%d", breaks, continues)
	}
}

func TestLowerForRange(t *testing.T) {
	prog := compile(t, `
main {
	for i in 0..3 {
		print(i);
	}
}
`)
	var sawLt, sawAdd int
	for _, ins := range prog.Main {
		if ins.Op == bytecode.BinOp && ins.BinKind == bytecode.OpLt {
			sawLt++
		}
		if ins.Op == bytecode.BinOp && ins.BinKind == bytecode.OpAdd {
			sawAdd++
		}
	}
	if sawLt != 1 || sawAdd != 1 {
		t.Fatalf("expected one bound check and one increment, got %d/%d", sawLt, sawAdd)
	}
}

func TestLowerChannelSendAndAwait(t *testing.T) {
	prog := compile(t, `
program Producer(n: int) {
	send out(n);
}

program Consumer() {
	await receive in(x) => {
		print(x);
	}
}

main {
	channel Producer.out (int) > Consumer.in;
	run Producer(1);
	run Consumer();
}
`)
	if len(prog.Channels) != 1 {
		t.Fatalf("expected one channel spec, got %d", len(prog.Channels))
	}
	prodCode := prog.Processes["Producer"].Code
	var sawSend bool
	for _, ins := range prodCode {
		if ins.Op == bytecode.Send && ins.Port == "out" {
			sawSend = true
		}
	}
	if !sawSend {
		t.Fatalf("expected a Send(out) instruction in Producer, got %v", prodCode)
	}

	consCode := prog.Processes["Consumer"].Code
	var tr *bytecode.Instr
	var sawWait bool
	for i := range consCode {
		ins := &consCode[i]
		if ins.Op == bytecode.TryReceive {
			tr = ins
		}
		if ins.Op == bytecode.WaitCond {
			sawWait = true
		}
	}
	if tr == nil {
		t.Fatalf("expected a TryReceive instruction in Consumer, got %v", consCode)
	}
	if len(tr.Binds) != 1 {
		t.Fatalf("expected TryReceive to bind one local slot, got %v", tr.Binds)
	}
	if !sawWait {
		t.Fatalf("expected a WaitCond instruction on the yield path in Consumer, got %v", consCode)
	}
}

func TestLowerAssertions(t *testing.T) {
	prog := compile(t, `
shared {
	let Count: int = 0;
}

main {
	print(Count);
}

always {
	Count >= 0;
}
`)
	if len(prog.Assertions) != 1 {
		t.Fatalf("expected one compiled assertion, got %d", len(prog.Assertions))
	}
	if prog.Assertions[0].Kind != bytecode.Always {
		t.Fatalf("expected an Always assertion")
	}
}
