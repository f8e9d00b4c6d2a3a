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

// Package sim is the nondeterministic simulator ("run"): it drives a single
// random (or otherwise policy-selected) path through a compiled program's
// state space, buffering stdout, the message-flow log and a per-step state
// trace as it goes.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/types"
	"github.com/althread-lang/althread/scheduler"
	"github.com/althread-lang/althread/vm"
)

// Policy picks the order in which the simulator tries the pids returned by
// GlobalState.Enabled at each decision point; the first one that produces a
// real effect (not a still-unsatisfied guard) is the step actually taken.
// Exposing it as the full try-order, rather than a single pick, is what lets
// the default uniform-random policy double as the deadlock probe: if nothing
// in the returned order is actually runnable, the state is a genuine
// deadlock, not a policy miss.
type Policy func(candidates []uint32, rng *rand.Rand) []uint32

// UniformPolicy tries every candidate in a uniformly shuffled order, the
// default described in SPEC_FULL.md's simulator section.
func UniformPolicy(candidates []uint32, rng *rand.Rand) []uint32 {
	order := append([]uint32(nil), candidates...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// Event is one send or receive the simulator observed, the Go-native shape
// of the spec's message_flow_graph entries.
type Event struct {
	Type          string // "s" (sent) or "r" (received)
	Sender        uint32
	Receiver      *uint32
	Message       string
	Number        int
	ActorProgName string
	VMState       scheduler.Snapshot
}

// Result is the full output of one simulation run.
type Result struct {
	Stdout      []string
	Debug       string
	MessageFlow []Event
	VMStates    []scheduler.Snapshot
}

// Simulator drives one path through a compiled program. Seed makes
// UniformPolicy (and any other rand-driven Policy) reproducible; MaxSteps
// bounds run length (0 means unbounded, which is only safe to pass for
// programs known to terminate).
type Simulator struct {
	Seed     int64
	Policy   Policy
	MaxSteps int
}

func (s *Simulator) policy() Policy {
	if s.Policy != nil {
		return s.Policy
	}
	return UniformPolicy
}

// Run executes prog to either normal termination, a step-budget cutoff, an
// assertion violation or a deadlock, returning the buffered Result alongside
// a structured diag.Diagnostic on any of the latter three outcomes. A
// runtime VM error is reported the same way, at the faulting instruction's
// position.
func (s *Simulator) Run(prog *bytecode.Program) (*Result, *diag.Diagnostic) {
	res := &Result{}

	cur, err := scheduler.New(prog)
	if err != nil {
		return res, diag.New(diag.VM, diag.Pos{}, "building initial state: %s", err)
	}
	cur.OnPrint = func(_ uint32, vals []types.Literal) {
		res.Stdout = append(res.Stdout, formatPrint(vals))
	}
	if verr := cur.Bootstrap(); verr != nil {
		return res, vmDiag(verr)
	}

	if d := s.checkAlways(prog, cur); d != nil {
		res.VMStates = append(res.VMStates, cur.Snapshot())
		return res, d
	}

	rng := rand.New(rand.NewSource(s.Seed))
	steps := 0
	for {
		if cur.AllDone() {
			break
		}
		if s.MaxSteps > 0 && steps >= s.MaxSteps {
			res.Debug += fmt.Sprintf("step budget of %d exceeded\n", s.MaxSteps)
			return res, diag.New(diag.BudgetExceeded, diag.Pos{}, "simulation exceeded step budget of %d", s.MaxSteps)
		}

		candidates := cur.Enabled()
		if len(candidates) == 0 {
			return res, diag.New(diag.Deadlock, diag.Pos{}, "no enabled process and some process has not finished")
		}

		order := s.policy()(candidates, rng)
		var (
			applied bool
			name    string
			pid     uint32
			verr    *vm.Error
			eff     vm.Effect
		)
		for _, cand := range order {
			clone := cur.Clone()
			name = processName(clone, cand)
			e, ve := clone.Apply(cand)
			if ve != nil {
				return res, vmDiag(ve)
			}
			if e == vm.EffectBlocked {
				continue
			}
			cur, pid, eff, applied = clone, cand, e, true
			break
		}
		if !applied {
			return res, diag.New(diag.Deadlock, diag.Pos{}, "every enabled process is blocked on an unsatisfied guard")
		}
		steps++

		if eff == vm.EffectSent || eff == vm.EffectReceived {
			res.MessageFlow = append(res.MessageFlow, buildEvent(cur, pid, name))
		}
		res.VMStates = append(res.VMStates, cur.Snapshot())

		if d := s.checkAlways(prog, cur); d != nil {
			return res, d
		}
	}
	return res, nil
}

func (s *Simulator) checkAlways(prog *bytecode.Program, g *scheduler.GlobalState) *diag.Diagnostic {
	for _, a := range prog.Assertions {
		if a.Kind != bytecode.Always {
			continue
		}
		ok, err := g.EvalAssertion(a.Code)
		if err != nil {
			return diag.New(diag.Assertion, a.Pos, "evaluating always assertion: %s", err)
		}
		if !ok {
			return diag.New(diag.Assertion, a.Pos, "always assertion violated")
		}
	}
	return nil
}

func buildEvent(g *scheduler.GlobalState, pid uint32, name string) Event {
	me := g.LastEvent()
	if me == nil {
		return Event{ActorProgName: name, VMState: g.Snapshot()}
	}
	evt := Event{
		Sender:        pid,
		Message:       formatPrint(me.Values),
		Number:        me.Number,
		ActorProgName: name,
		VMState:       g.Snapshot(),
	}
	if me.Kind == "send" {
		evt.Type = "s"
	} else {
		evt.Type = "r"
		recv := pid
		evt.Receiver = &recv
	}
	return evt
}

func processName(g *scheduler.GlobalState, pid uint32) string {
	p, ok := g.Processes[pid]
	if !ok {
		return ""
	}
	if p.Program == "" {
		return "main"
	}
	return p.Program
}

func formatPrint(vals []types.Literal) string {
	s := ""
	for i, v := range vals {
		if i > 0 {
			s += " "
		}
		s += v.String()
	}
	return s
}

func vmDiag(verr *vm.Error) *diag.Diagnostic {
	return diag.New(diag.VM, verr.Pos, "%s", verr.Msg)
}
