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

package scheduler

import (
	"testing"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/lang/linker"
	"github.com/althread-lang/althread/lang/lower"
	"github.com/althread-lang/althread/lang/semantic"
	"github.com/althread-lang/althread/lang/types"
	"github.com/althread-lang/althread/vm"
)

// applyN drives pid through exactly n macro-steps via g.Apply, failing the
// test on any runtime error, and returns the last step's effect. Tests use it
// to trace a process through a known instruction sequence one macro-step at
// a time, the same granularity check.Checker and sim.Simulator interleave on.
func applyN(t *testing.T, g *GlobalState, pid uint32, n int) vm.Effect {
	t.Helper()
	var eff vm.Effect
	for i := 0; i < n; i++ {
		var err *vm.Error
		eff, err = g.Apply(pid)
		if err != nil {
			t.Fatalf("unexpected error on step %d of %d for pid %d: %v", i+1, n, pid, err)
		}
	}
	return eff
}

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
	prog, lerrs := lower.Lower(u, res)
	if len(lerrs) != 0 {
		t.Fatalf("unexpected lowering error: %s", lerrs.Error())
	}
	return prog
}

func TestBootstrapSpawnsDeclaredProcesses(t *testing.T) {
	prog := compile(t, `
program Worker() {
	print(1);
}

main {
	run Worker();
	run Worker();
}
`)
	g, err := New(prog)
	if err != nil {
		t.Fatalf("unexpected error building state: %v", err)
	}
	if err := g.Bootstrap(); err != nil {
		t.Fatalf("unexpected bootstrap error: %v", err)
	}
	if len(g.Order) != 3 {
		t.Fatalf("expected main plus two workers registered, got %d: %v", len(g.Order), g.Order)
	}
	if g.Processes[mainPid].Status != vm.Done {
		t.Fatalf("expected main to have finished, got %v", g.Processes[mainPid].Status)
	}
}

func TestSharedInitializerAndLoadStore(t *testing.T) {
	prog := compile(t, `
shared {
	let Count: int = 41;
}

main {
	Count = Count + 1;
}
`)
	g, err := New(prog)
	if err != nil {
		t.Fatalf("unexpected error building state: %v", err)
	}
	if v := g.LoadShared("Count"); v.(types.IntLit).V != 41 {
		t.Fatalf("expected initializer to set Count to 41, got %v", v)
	}
	if err := g.Bootstrap(); err != nil {
		t.Fatalf("unexpected bootstrap error: %v", err)
	}
	if v := g.LoadShared("Count"); v.(types.IntLit).V != 42 {
		t.Fatalf("expected Count to be 42 after main runs, got %v", v)
	}
}

func TestSendReceiveAcrossProcesses(t *testing.T) {
	prog := compile(t, `
shared {
	let Received: int = 0;
}

program Producer(n: int) {
	send out(n);
}

program Consumer() {
	await receive in(x) => {
		Received = x;
	}
}

main {
	channel Producer.out (int) > Consumer.in;
	run Producer(7);
	run Consumer();
}
`)
	g, err := New(prog)
	if err != nil {
		t.Fatalf("unexpected error building state: %v", err)
	}
	if err := g.Bootstrap(); err != nil {
		t.Fatalf("unexpected bootstrap error: %v", err)
	}

	var producer, consumer uint32
	for _, pid := range g.Order {
		switch g.Processes[pid].Program {
		case "Producer":
			producer = pid
		case "Consumer":
			consumer = pid
		}
	}
	if producer == 0 || consumer == 0 {
		t.Fatalf("expected both Producer and Consumer to be spawned, got order %v", g.Order)
	}

	// Producer's body is `send out(n);`, which lowers to a LoadLocal
	// (pushing n) followed by Send: two macro-steps outside any atomic
	// block, per the one-instruction-per-Step granularity.
	if eff := applyN(t, g, producer, 1); eff != vm.EffectNone {
		t.Fatalf("expected loading the send argument to be a plain step, got effect=%v", eff)
	}
	if eff := applyN(t, g, producer, 1); eff != vm.EffectSent {
		t.Fatalf("expected the producer to send, got effect=%v", eff)
	}
	if eff := applyN(t, g, producer, 1); eff != vm.EffectDone {
		t.Fatalf("expected the producer to finish after sending, got effect=%v", eff)
	}

	// Consumer's TryReceive succeeds immediately (the message is already
	// queued), but the bound assignment `Received = x;` only happens over
	// the following macro-steps: JumpIfFalse (guard), LoadLocal, StoreShared.
	if eff := applyN(t, g, consumer, 1); eff != vm.EffectReceived {
		t.Fatalf("expected the consumer to receive, got effect=%v", eff)
	}
	if eff := applyN(t, g, consumer, 3); eff != vm.EffectNone {
		t.Fatalf("expected the bound assignment to finish as plain steps, got effect=%v", eff)
	}
	if v := g.LoadShared("Received"); v.(types.IntLit).V != 7 {
		t.Fatalf("expected Received to be set to 7, got %v", v)
	}
	if eff := applyN(t, g, consumer, 1); eff != vm.EffectNone {
		t.Fatalf("expected the jump past the wait branch to be a plain step, got effect=%v", eff)
	}
	if eff := applyN(t, g, consumer, 1); eff != vm.EffectDone {
		t.Fatalf("expected the consumer to finish, got effect=%v", eff)
	}
	if !g.AllDone() {
		t.Fatalf("expected both processes to have finished")
	}
}

func TestAtomicBlockIsIndivisible(t *testing.T) {
	prog := compile(t, `
shared {
	let Count: int = 0;
}

program Bumper() {
	atomic {
		Count = Count + 1;
		Count = Count + 1;
	}
}

main {
	run Bumper();
}
`)
	g, err := New(prog)
	if err != nil {
		t.Fatalf("unexpected error building state: %v", err)
	}
	if err := g.Bootstrap(); err != nil {
		t.Fatalf("unexpected bootstrap error: %v", err)
	}
	var bumper uint32
	for _, pid := range g.Order {
		if g.Processes[pid].Program == "Bumper" {
			bumper = pid
		}
	}
	if _, err := g.Apply(bumper); err != nil {
		t.Fatalf("unexpected error applying bumper: %v", err)
	}
	if v := g.LoadShared("Count"); v.(types.IntLit).V != 2 {
		t.Fatalf("expected the atomic block to apply both increments in one turn, got %v", v)
	}
}

func TestEvalAssertion(t *testing.T) {
	prog := compile(t, `
shared {
	let Count: int = 5;
}

main {
	print(Count);
}

always {
	Count >= 0;
}
`)
	g, err := New(prog)
	if err != nil {
		t.Fatalf("unexpected error building state: %v", err)
	}
	ok, everr := g.EvalAssertion(prog.Assertions[0].Code)
	if everr != nil {
		t.Fatalf("unexpected error evaluating assertion: %v", everr)
	}
	if !ok {
		t.Fatalf("expected the assertion to hold")
	}

	g.shared["Count"] = types.IntLit{V: -1}
	ok, everr = g.EvalAssertion(prog.Assertions[0].Code)
	if everr != nil {
		t.Fatalf("unexpected error evaluating assertion: %v", everr)
	}
	if ok {
		t.Fatalf("expected the assertion to fail once Count goes negative")
	}
}
