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
	"testing"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/lang/types"
)

// fakeEnv is a minimal, in-memory Env for exercising Process in isolation
// from the scheduler package.
type fakeEnv struct {
	shared  map[string]types.Literal
	queue   []types.Literal
	printed [][]types.Literal
	nextPid uint32
}

func newFakeEnv() *fakeEnv { return &fakeEnv{shared: map[string]types.Literal{}} }

func (e *fakeEnv) LoadShared(name string) types.Literal  { return e.shared[name] }
func (e *fakeEnv) StoreShared(name string, v types.Literal) { e.shared[name] = v }
func (e *fakeEnv) Send(senderProg, port string, vals []types.Literal) bool {
	e.queue = append(e.queue, vals...)
	return true
}
func (e *fakeEnv) TryReceive(receiverProg, port string) ([]types.Literal, bool) {
	if len(e.queue) == 0 {
		return nil, false
	}
	v := e.queue[0]
	e.queue = e.queue[1:]
	return []types.Literal{v}, true
}
func (e *fakeEnv) Spawn(program string, args []types.Literal) uint32 {
	e.nextPid++
	return e.nextPid
}
func (e *fakeEnv) Print(vals []types.Literal) { e.printed = append(e.printed, vals) }

// stepN calls p.Step exactly n times, failing the test on any error, and
// returns the effect of the last call. It documents how many individual
// macro-steps a sequence is expected to take outside of an atomic block.
func stepN(t *testing.T, p *Process, prog *bytecode.Program, env Env, n int) Effect {
	t.Helper()
	var eff Effect
	for i := 0; i < n; i++ {
		var err *Error
		eff, err = p.Step(prog, env)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
	}
	return eff
}

func TestStepStopsAfterEveryInstructionOutsideAtomic(t *testing.T) {
	// 2 + 3 then print: four instructions, four macro-steps, not one.
	code := bytecode.Stream{
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 2}},
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 3}},
		{Op: bytecode.BinOp, BinKind: bytecode.OpAdd},
		{Op: bytecode.Print, NArgs: 1},
		{Op: bytecode.Halt},
	}
	prog := &bytecode.Program{}
	env := newFakeEnv()
	p := NewProcess(1, "", code, 0, nil)

	for i, want := range []Effect{EffectNone, EffectNone, EffectNone, EffectPrinted} {
		eff, err := p.Step(prog, env)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if eff != want {
			t.Fatalf("step %d: expected %v, got %v", i, want, eff)
		}
	}
	if len(env.printed) != 1 || env.printed[0][0].(types.IntLit).V != 5 {
		t.Fatalf("expected printed 5, got %v", env.printed)
	}

	eff, err := p.Step(prog, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eff != EffectDone || p.Status != Done {
		t.Fatalf("expected the process to finish, got effect=%v status=%v", eff, p.Status)
	}
}

// TestStepExposesReadWriteInterleavingPoint is the direct regression test
// for the lost-update race: between loading a shared variable and storing
// its incremented value back, a second process must get a chance to run.
// If Step folded the load and the store into one macro-step, there would be
// no observable point between them at all.
func TestStepExposesReadWriteInterleavingPoint(t *testing.T) {
	// X = X + 1;
	code := bytecode.Stream{
		{Op: bytecode.LoadShared, Name: "X"},
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 1}},
		{Op: bytecode.BinOp, BinKind: bytecode.OpAdd},
		{Op: bytecode.StoreShared, Name: "X"},
		{Op: bytecode.Halt},
	}
	env := newFakeEnv()
	env.shared["X"] = types.IntLit{V: 0}
	prog := &bytecode.Program{}
	p := NewProcess(1, "", code, 0, nil)

	eff, err := p.Step(prog, env) // LoadShared
	if err != nil || eff != EffectNone {
		t.Fatalf("expected the read alone to produce no effect, got effect=%v err=%v", eff, err)
	}
	if v := env.shared["X"]; v.(types.IntLit).V != 0 {
		t.Fatalf("expected X to still be 0 between the read and the write, got %v", v)
	}

	// A second process interleaves here and changes X underneath p; this is
	// exactly the window a folded macro-step would have hidden.
	env.shared["X"] = types.IntLit{V: 100}

	stepN(t, p, prog, env, 2) // PushLit(1), BinOp(Add)
	eff, err = p.Step(prog, env) // StoreShared
	if err != nil || eff != EffectNone {
		t.Fatalf("expected the store alone to produce no effect, got effect=%v err=%v", eff, err)
	}
	if v := env.shared["X"]; v.(types.IntLit).V != 1 {
		t.Fatalf("expected p's stale read (0) plus 1 to clobber the interleaved write, got %v", v)
	}
}

func TestProcessDivisionByZero(t *testing.T) {
	code := bytecode.Stream{
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 1}},
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 0}},
		{Op: bytecode.BinOp, BinKind: bytecode.OpDiv},
		{Op: bytecode.Halt},
	}
	prog := &bytecode.Program{}
	env := newFakeEnv()
	p := NewProcess(1, "", code, 0, nil)

	stepN(t, p, prog, env, 2) // PushLit(1), PushLit(0)
	_, err := p.Step(prog, env) // BinOp(Div)
	if err == nil || err.Kind != ErrDivByZero {
		t.Fatalf("expected ErrDivByZero, got %v", err)
	}
}

func TestProcessCallAndReturn(t *testing.T) {
	// function double(x) { return x + x; }  called as double(4)
	fn := &bytecode.CompiledFunction{
		Name: "double", NumParams: 1, NumLocals: 1,
		Code: bytecode.Stream{
			{Op: bytecode.LoadLocal, Slot: 0},
			{Op: bytecode.LoadLocal, Slot: 0},
			{Op: bytecode.BinOp, BinKind: bytecode.OpAdd},
			{Op: bytecode.Return, NArgs: 1},
		},
	}
	main := bytecode.Stream{
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 4}},
		{Op: bytecode.Call, Target: 0, NArgs: 1},
		{Op: bytecode.Print, NArgs: 1},
		{Op: bytecode.Halt},
	}
	prog := &bytecode.Program{Functions: []*bytecode.CompiledFunction{fn}}
	env := newFakeEnv()
	p := NewProcess(1, "", main, 0, nil)

	// PushLit(4), Call, LoadLocal, LoadLocal, BinOp(Add), Return, then Print.
	eff := stepN(t, p, prog, env, 7)
	if eff != EffectPrinted {
		t.Fatalf("expected EffectPrinted, got %v", eff)
	}
	if env.printed[0][0].(types.IntLit).V != 8 {
		t.Fatalf("expected double(4) == 8, got %v", env.printed[0])
	}
}

func TestProcessSendAndReceive(t *testing.T) {
	env := newFakeEnv()
	prog := &bytecode.Program{}

	sender := NewProcess(1, "Producer", bytecode.Stream{
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 42}},
		{Op: bytecode.Send, Port: "out", NArgs: 1},
		{Op: bytecode.Halt},
	}, 0, nil)
	stepN(t, sender, prog, env, 1) // PushLit(42)
	eff, err := sender.Step(prog, env) // Send
	if err != nil || eff != EffectSent {
		t.Fatalf("expected a successful send, got effect=%v err=%v", eff, err)
	}

	receiver := NewProcess(2, "Consumer", bytecode.Stream{
		{Op: bytecode.TryReceive, Port: "in", NArgs: 1, Binds: []int{0}},
		{Op: bytecode.JumpIfFalse, Target: 5},
		{Op: bytecode.LoadLocal, Slot: 0},
		{Op: bytecode.Print, NArgs: 1},
		{Op: bytecode.Jump, Target: 6},
		{Op: bytecode.PushLit, Lit: types.BoolLit{V: false}},
		{Op: bytecode.Halt},
	}, 1, nil)
	eff, err = receiver.Step(prog, env) // TryReceive
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eff != EffectReceived {
		t.Fatalf("expected EffectReceived, got %v", eff)
	}

	// JumpIfFalse, LoadLocal, then Print.
	eff = stepN(t, receiver, prog, env, 3)
	if eff != EffectPrinted {
		t.Fatalf("expected EffectPrinted after the receive, got effect=%v", eff)
	}
	if env.printed[0][0].(types.IntLit).V != 42 {
		t.Fatalf("expected received value 42, got %v", env.printed[0])
	}
}

func TestProcessBlocksOnWaitCond(t *testing.T) {
	// wait until Flag; print(1);
	code := bytecode.Stream{
		{Op: bytecode.LoadShared, Name: "Flag"},              // 0
		{Op: bytecode.JumpIfFalse, Target: 3},                // 1
		{Op: bytecode.Jump, Target: 6},                       // 2
		{Op: bytecode.PushLit, Lit: types.BoolLit{V: false}}, // 3
		{Op: bytecode.WaitCond},                              // 4
		{Op: bytecode.Jump, Target: 0},                       // 5
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 1}},      // 6
		{Op: bytecode.Print, NArgs: 1},                       // 7
		{Op: bytecode.Halt},                                  // 8
	}
	env := newFakeEnv()
	env.shared["Flag"] = types.BoolLit{V: false}
	prog := &bytecode.Program{}
	p := NewProcess(1, "", code, 0, nil)

	// LoadShared, JumpIfFalse, PushLit(false), then WaitCond blocks.
	eff := stepN(t, p, prog, env, 3)
	if eff != EffectNone {
		t.Fatalf("expected no effect before WaitCond, got %v", eff)
	}
	eff, err := p.Step(prog, env) // WaitCond
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eff != EffectBlocked || p.Status != Blocked {
		t.Fatalf("expected the process to block, got effect=%v status=%v", eff, p.Status)
	}

	env.shared["Flag"] = types.BoolLit{V: true}

	// Resuming a Blocked process must re-evaluate the guard rather than
	// trust the stale status: Jump(back to 0), LoadShared, JumpIfFalse,
	// Jump(to 6), PushLit(1), then Print.
	eff, err = p.Step(prog, env) // Jump
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eff != EffectNone || p.Status != Runnable {
		t.Fatalf("expected resuming the process to clear Blocked immediately, got effect=%v status=%v", eff, p.Status)
	}

	eff = stepN(t, p, prog, env, 5)
	if eff != EffectPrinted {
		t.Fatalf("expected the process to resume and print, got effect=%v", eff)
	}
	if p.Status != Runnable {
		t.Fatalf("expected Status to read Runnable once the process ran past its guard, got %v", p.Status)
	}
}

func TestAtomicBlockFoldsIntoOneMacroStep(t *testing.T) {
	// atomic { X = X + 1; X = X + 1; }
	code := bytecode.Stream{
		{Op: bytecode.AtomicBegin},
		{Op: bytecode.LoadShared, Name: "X"},
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 1}},
		{Op: bytecode.BinOp, BinKind: bytecode.OpAdd},
		{Op: bytecode.StoreShared, Name: "X"},
		{Op: bytecode.LoadShared, Name: "X"},
		{Op: bytecode.PushLit, Lit: types.IntLit{V: 1}},
		{Op: bytecode.BinOp, BinKind: bytecode.OpAdd},
		{Op: bytecode.StoreShared, Name: "X"},
		{Op: bytecode.AtomicEnd},
		{Op: bytecode.Halt},
	}
	env := newFakeEnv()
	env.shared["X"] = types.IntLit{V: 0}
	prog := &bytecode.Program{}
	p := NewProcess(1, "", code, 0, nil)

	eff, err := p.Step(prog, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eff != EffectNone {
		t.Fatalf("expected the whole atomic block to fold into one step with no observable effect, got %v", eff)
	}
	if v := env.shared["X"]; v.(types.IntLit).V != 2 {
		t.Fatalf("expected both increments to apply within the single atomic macro-step, got %v", v)
	}
	if p.InAtomic() {
		t.Fatalf("expected the process to have left the atomic block")
	}
}
