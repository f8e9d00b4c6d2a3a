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

// Package vm is the single-process bytecode evaluator: one Process owns its
// own pc, operand stack, call frames and clock, and knows nothing about any
// other process. scheduler.GlobalState drives many Processes concurrently by
// calling Step on whichever one it picks next; vm itself has no notion of
// scheduling policy.
package vm

import (
	"fmt"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/types"
)

// Status is a process's run state.
type Status int

// The three states a Process can be in.
const (
	Runnable Status = iota
	Blocked
	Done
)

func (s Status) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Blocked:
		return "blocked"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Effect describes the single observable thing that happened during one
// call to Step, the granularity at which the scheduler interleaves
// processes.
type Effect int

// The complete set of step effects.
const (
	EffectNone Effect = iota
	EffectSent
	EffectReceived
	EffectSpawned
	EffectPrinted
	EffectBlocked
	EffectDone
)

// ErrKind classifies a runtime VM error, the Go-native shape of the spec's
// VMError(kind, pid, source_pos).
type ErrKind string

// The closed set of runtime error kinds.
const (
	ErrStackOverflow    ErrKind = "stack-overflow"
	ErrDivByZero        ErrKind = "division-by-zero"
	ErrIndexOutOfRange  ErrKind = "index-out-of-range"
	ErrTypeMismatch     ErrKind = "type-mismatch"
	ErrUndeclaredPort   ErrKind = "undeclared-port"
	ErrUnknownFunction  ErrKind = "unknown-function"
	ErrUnknownProgram   ErrKind = "unknown-program"
)

// Error is a runtime fault raised while stepping a process.
type Error struct {
	Kind ErrKind
	Pid  uint32
	Pos  diag.Pos
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("vm: %s (pid %d) @%s: %s", e.Kind, e.Pid, e.Pos, e.Msg)
}

// maxCallDepth bounds recursive Call nesting; exceeding it raises
// ErrStackOverflow rather than letting a runaway Althread program exhaust
// host memory.
const maxCallDepth = 1 << 12

// frame is one call's activation record: its own code, program counter and
// local slots. The operand stack is shared across every frame of a process,
// the same design mgmt's function-graph evaluator uses a flat per-vertex
// value cache rather than per-call isolation.
type frame struct {
	code   bytecode.Stream
	pc     int
	locals []types.Literal
}

// Process is one running instance of a `program` template (or, for pid 0,
// the synthetic process executing main's body).
type Process struct {
	Pid     uint32
	Program string
	Status  Status
	Clock   uint64 // instructions successfully executed; diagnostic only, excluded from canonical state hashing

	stack       []types.Literal
	frames      []*frame
	atomicDepth int
}

// NewProcess constructs a process ready to execute code starting at pc 0
// with numLocals slots, the first len(args) of which are pre-populated from
// args (a program's or main's declared parameters).
func NewProcess(pid uint32, program string, code bytecode.Stream, numLocals int, args []types.Literal) *Process {
	locals := make([]types.Literal, numLocals)
	copy(locals, args)
	return &Process{
		Pid:     pid,
		Program: program,
		Status:  Runnable,
		frames:  []*frame{{code: code, locals: locals}},
	}
}

// Clone deep-copies p so the checker can explore one successor from this
// state while keeping the original around for other successors. Frame code
// slices are shared (bytecode.Stream is never mutated after lowering); the
// operand stack, each frame's locals and pc are copied.
func (p *Process) Clone() *Process {
	frames := make([]*frame, len(p.frames))
	for i, f := range p.frames {
		locals := make([]types.Literal, len(f.locals))
		copy(locals, f.locals)
		frames[i] = &frame{code: f.code, pc: f.pc, locals: locals}
	}
	stack := make([]types.Literal, len(p.stack))
	copy(stack, p.stack)
	return &Process{
		Pid: p.Pid, Program: p.Program, Status: p.Status, Clock: p.Clock,
		stack: stack, frames: frames, atomicDepth: p.atomicDepth,
	}
}

// Env is the set of operations a Process needs from the surrounding global
// state to execute Send/TryReceive/StoreShared/LoadShared/Run. scheduler
// implements it; vm never imports scheduler, avoiding a dependency cycle.
type Env interface {
	LoadShared(name string) types.Literal
	StoreShared(name string, v types.Literal)
	Send(senderProg, port string, vals []types.Literal) bool
	TryReceive(receiverProg, port string) ([]types.Literal, bool)
	Spawn(program string, args []types.Literal) uint32
	Print(vals []types.Literal)
}

func (p *Process) push(v types.Literal) { p.stack = append(p.stack, v) }

func (p *Process) pop() types.Literal {
	v := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return v
}

func (p *Process) top() *frame { return p.frames[len(p.frames)-1] }

// Snapshot is a read-only view of a process's runtime state, used for trace
// output and canonical state hashing. It copies rather than aliases the
// process's live slices so callers can retain it across further Steps.
type Snapshot struct {
	Pid     uint32
	Program string
	Status  Status
	Clock   uint64
	PC      int
	Locals  []types.Literal
	Stack   []types.Literal
}

// Snapshot captures p's current state. PC reflects the innermost active call
// frame; Locals likewise. Stack is the full shared operand stack across all
// frames, since that is what canonicalization and trace rendering need.
func (p *Process) Snapshot() Snapshot {
	f := p.top()
	locals := make([]types.Literal, len(f.locals))
	copy(locals, f.locals)
	stack := make([]types.Literal, len(p.stack))
	copy(stack, p.stack)
	return Snapshot{
		Pid: p.Pid, Program: p.Program, Status: p.Status, Clock: p.Clock,
		PC: f.pc, Locals: locals, Stack: stack,
	}
}

// InAtomic reports whether the process is currently inside an atomic{}
// bracket; Step uses this to keep executing further instructions within the
// same call instead of returning to the scheduler mid-macro-step.
func (p *Process) InAtomic() bool { return p.atomicDepth > 0 }

// Result peeks the value left on top of the operand stack, if any. It is
// used by scheduler to read back the result of running a closed-form
// bytecode.Stream to completion (a shared-variable initializer or an
// assertion body), both of which are compiled to leave exactly one value
// behind and never consumed by anything else once the process is Done.
func (p *Process) Result() (types.Literal, bool) {
	if len(p.stack) == 0 {
		return nil, false
	}
	return p.stack[len(p.stack)-1], true
}

// Step executes a single macro-step: one non-atomic instruction, or, if the
// process is inside an atomic{} bracket, every instruction from there
// through the matching AtomicEnd. Outside an atomic block, each call to Step
// advances exactly one instruction, which is the interleaving granularity
// the scheduler relies on to observe the state between e.g. a shared
// variable's read and its write.
func (p *Process) Step(prog *bytecode.Program, env Env) (Effect, *Error) {
	if p.Status == Blocked {
		// Being handed a turn at all means some enabled() check thought the
		// guard might now hold; re-evaluate it rather than trusting the
		// stale Blocked left over from the last attempt.
		p.Status = Runnable
	}
	for {
		f := p.top()
		if f.pc >= len(f.code) {
			// Fell off the end of a frame without an explicit Return/Halt;
			// treat it as an implicit return.
			if err := p.popFrame(); err != nil {
				return EffectNone, err
			}
			p.Clock++
			if len(p.frames) == 0 {
				p.Status = Done
				return EffectDone, nil
			}
			if p.InAtomic() {
				continue
			}
			return EffectNone, nil
		}
		instr := f.code[f.pc]
		eff, err := p.exec(instr, prog, env)
		if err != nil {
			return EffectNone, err
		}
		p.Clock++
		if p.InAtomic() {
			continue
		}
		return eff, nil
	}
}

// exec runs one instruction, advancing pc (or branching it) as appropriate,
// and reports the effect it produced (EffectNone for anything with no
// observable side effect). Step alone decides whether that effect ends the
// macro-step or gets folded into a still-open atomic block.
func (p *Process) exec(instr bytecode.Instr, prog *bytecode.Program, env Env) (Effect, *Error) {
	f := p.top()
	switch instr.Op {
	case bytecode.PushLit:
		p.push(instr.Lit)
		f.pc++
	case bytecode.LoadLocal:
		p.push(f.locals[instr.Slot])
		f.pc++
	case bytecode.StoreLocal:
		f.locals[instr.Slot] = p.pop()
		f.pc++
	case bytecode.LoadShared:
		p.push(env.LoadShared(instr.Name))
		f.pc++
	case bytecode.StoreShared:
		env.StoreShared(instr.Name, p.pop())
		f.pc++
	case bytecode.BinOp:
		if err := p.execBinOp(instr); err != nil {
			return EffectNone, err
		}
		f.pc++
	case bytecode.UnOp:
		if err := p.execUnOp(instr); err != nil {
			return EffectNone, err
		}
		f.pc++
	case bytecode.MakeTuple:
		vals := p.popN(instr.NArgs)
		p.push(types.TupleLit{Vals: vals})
		f.pc++
	case bytecode.MakeList:
		vals := p.popN(instr.NArgs)
		var elem *types.Type
		if len(vals) > 0 {
			elem = vals[0].Type()
		}
		p.push(types.ListLit{Vals: vals, Elem: elem})
		f.pc++
	case bytecode.Index:
		idx := p.pop()
		x := p.pop()
		lst, ok := x.(types.ListLit)
		if !ok {
			return EffectNone, p.errf(instr, ErrTypeMismatch, "index of non-list value %s", x)
		}
		i, ok := idx.(types.IntLit)
		if !ok {
			return EffectNone, p.errf(instr, ErrTypeMismatch, "list index must be int, got %s", idx)
		}
		if i.V < 0 || int(i.V) >= len(lst.Vals) {
			return EffectNone, p.errf(instr, ErrIndexOutOfRange, "index %d out of range for list of length %d", i.V, len(lst.Vals))
		}
		p.push(lst.Vals[i.V])
		f.pc++
	case bytecode.Field:
		x := p.pop()
		tup, ok := x.(types.TupleLit)
		if !ok {
			return EffectNone, p.errf(instr, ErrTypeMismatch, "field access of non-tuple value %s", x)
		}
		if instr.Slot < 0 || instr.Slot >= len(tup.Vals) {
			return EffectNone, p.errf(instr, ErrIndexOutOfRange, "tuple field %d out of range", instr.Slot)
		}
		p.push(tup.Vals[instr.Slot])
		f.pc++
	case bytecode.Pop:
		p.pop()
		f.pc++
	case bytecode.Jump, bytecode.BreakLoop, bytecode.ContinueLoop:
		f.pc = instr.Target
	case bytecode.JumpIfFalse:
		cond := p.pop()
		b, ok := cond.(types.BoolLit)
		if !ok {
			return EffectNone, p.errf(instr, ErrTypeMismatch, "branch condition is not a bool: %s", cond)
		}
		if !b.V {
			f.pc = instr.Target
		} else {
			f.pc++
		}
	case bytecode.Print:
		vals := p.popN(instr.NArgs)
		env.Print(vals)
		f.pc++
		return EffectPrinted, nil
	case bytecode.Call:
		if len(p.frames) >= maxCallDepth {
			return EffectNone, p.errf(instr, ErrStackOverflow, "call depth exceeded %d", maxCallDepth)
		}
		if instr.Target < 0 || instr.Target >= len(prog.Functions) {
			return EffectNone, p.errf(instr, ErrUnknownFunction, "function id %d out of range", instr.Target)
		}
		fn := prog.Functions[instr.Target]
		args := p.popN(instr.NArgs)
		locals := make([]types.Literal, fn.NumLocals)
		copy(locals, args)
		f.pc++ // resume here once the callee returns
		p.frames = append(p.frames, &frame{code: fn.Code, locals: locals})
	case bytecode.Return:
		if err := p.popFrame(); err != nil {
			return EffectNone, err
		}
		if len(p.frames) == 0 {
			p.Status = Done
			return EffectDone, nil
		}
	case bytecode.Run:
		args := p.popN(instr.NArgs)
		if _, ok := prog.Processes[instr.Program]; !ok {
			return EffectNone, p.errf(instr, ErrUnknownProgram, "unknown program %q", instr.Program)
		}
		pid := env.Spawn(instr.Program, args)
		p.push(types.ProcLit{Pid: pid, Program: instr.Program})
		f.pc++
		return EffectSpawned, nil
	case bytecode.Send:
		vals := p.popN(instr.NArgs)
		if !env.Send(p.Program, instr.Port, vals) {
			return EffectNone, p.errf(instr, ErrUndeclaredPort, "send on undeclared port %q", instr.Port)
		}
		f.pc++
		return EffectSent, nil
	case bytecode.TryReceive:
		vals, ok := env.TryReceive(p.Program, instr.Port)
		if ok {
			for i, slot := range instr.Binds {
				if i < len(vals) {
					f.locals[slot] = vals[i]
				}
			}
		}
		p.push(types.BoolLit{V: ok})
		f.pc++
		if ok {
			return EffectReceived, nil
		}
	case bytecode.WaitCond:
		cond := p.pop()
		b, _ := cond.(types.BoolLit)
		if !b.V {
			p.Status = Blocked
			f.pc++
			return EffectBlocked, nil
		}
		p.Status = Runnable
		f.pc++
	case bytecode.AtomicBegin:
		p.atomicDepth++
		f.pc++
	case bytecode.AtomicEnd:
		if p.atomicDepth > 0 {
			p.atomicDepth--
		}
		f.pc++
	case bytecode.Halt:
		p.frames = p.frames[:0]
		p.Status = Done
		return EffectDone, nil
	case bytecode.DeclareChannel:
		f.pc++
	default:
		return EffectNone, p.errf(instr, ErrTypeMismatch, "unimplemented opcode %s", instr.Op)
	}
	return EffectNone, nil
}

func (p *Process) popFrame() *Error {
	p.frames = p.frames[:len(p.frames)-1]
	return nil
}

func (p *Process) popN(n int) []types.Literal {
	vals := make([]types.Literal, n)
	for i := n - 1; i >= 0; i-- {
		vals[i] = p.pop()
	}
	return vals
}

func (p *Process) errf(instr bytecode.Instr, kind ErrKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pid: p.Pid, Pos: instr.Pos, Msg: fmt.Sprintf(format, args...)}
}
