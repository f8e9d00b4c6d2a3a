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
	"fmt"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/lang/types"
	"github.com/althread-lang/althread/vm"
)

// mainPid is the synthetic process id main's own body executes under. No
// `run` statement can ever produce this pid since Spawn starts counting at
// 1, so assertions and traces can always tell main's own steps apart from a
// spawned process's.
const mainPid uint32 = 0

// Bootstrap runs main's body until main finishes or first blocks, registering it as process 0 in
// the process table (so its `run` statements can Spawn through the usual
// vm.Env.Spawn path) and returns any runtime error raised while doing so.
// main is expected to only declare channels and spawn processes; any error
// here points at a genuine bug in main's own statements.
func (g *GlobalState) Bootstrap() *vm.Error {
	main := vm.NewProcess(mainPid, "", g.Program.Main, g.Program.MainLocals, nil)
	g.Processes[mainPid] = main
	g.Order = append(g.Order, mainPid)
	for main.Status == vm.Runnable {
		if _, err := g.Apply(mainPid); err != nil {
			return err
		}
	}
	return nil
}

// Apply advances pid by exactly one macro-step and reports the effect it
// produced. vm.Process.Step already folds an entire atomic{} bracket into a
// single call when pid is inside one, and returns after a single instruction
// otherwise, so Apply itself is just that one call: the macro-step
// granularity lives in vm, not here.
func (g *GlobalState) Apply(pid uint32) (vm.Effect, *vm.Error) {
	p, ok := g.Processes[pid]
	if !ok || p.Status == vm.Done {
		return vm.EffectNone, nil
	}
	g.current = pid
	g.lastEvent = nil
	defer func() { g.current = 0 }()

	return p.Step(g.Program, g)
}

// evalPid is a reserved id used only to run closed-form bytecode.Streams
// (shared-variable initializers, assertion bodies) to completion, never
// scheduled and never visible in Enabled()/Order.
const evalPid uint32 = 1<<32 - 1

// runToCompletion drives p one macro-step at a time until it reaches Done.
// p is a closed-form evalPid process never added to g.Order, so nothing else
// is ever scheduled between these steps; looping here is just absorbing the
// one-instruction-per-Step granularity the rest of the scheduler relies on
// for interleaving, which a sealed-off helper process has no use for.
func runToCompletion(g *GlobalState, p *vm.Process) *vm.Error {
	for p.Status != vm.Done {
		if _, err := p.Step(g.Program, g); err != nil {
			return err
		}
	}
	return nil
}

// evalConst runs code, the local-free expression stream a shared-variable
// initializer lowers to, and returns the single value it leaves behind.
func evalConst(g *GlobalState, code bytecode.Stream) (types.Literal, error) {
	p := vm.NewProcess(evalPid, "", append(append(bytecode.Stream{}, code...), bytecode.Instr{Op: bytecode.Halt}), 0, nil)
	if err := runToCompletion(g, p); err != nil {
		return nil, err
	}
	v, ok := p.Result()
	if !ok {
		return nil, fmt.Errorf("initializer produced no value")
	}
	return v, nil
}

// EvalAssertion runs a compiled assertion body (always ending with exactly
// one bool left on the stack) against g's current shared state.
func (g *GlobalState) EvalAssertion(code bytecode.Stream) (bool, error) {
	p := vm.NewProcess(evalPid, "", append(append(bytecode.Stream{}, code...), bytecode.Instr{Op: bytecode.Halt}), 0, nil)
	if err := runToCompletion(g, p); err != nil {
		return false, err
	}
	v, ok := p.Result()
	if !ok {
		return false, fmt.Errorf("assertion produced no value")
	}
	b, ok := v.(types.BoolLit)
	if !ok {
		return false, fmt.Errorf("assertion did not evaluate to bool, got %s", v)
	}
	return b.V, nil
}
