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

// Package scheduler owns the global state a compiled Althread program
// mutates as it runs: shared variables, channel queues and the live process
// table. It implements vm.Env so that any vm.Process can read/write shared
// state and exchange messages without knowing who else is running. sim and
// check both drive a GlobalState; they differ only in how they pick which
// enabled process steps next.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/lang/types"
	"github.com/althread-lang/althread/vm"
)

// channelKey identifies one endpoint (program, port) of a declared edge:
// bySend keys a channel by its sender endpoint, byRecv by its receiver.
type channelKey struct {
	prog, port string
}

// channel is one FIFO message queue plus the declaration it was built from,
// kept so Send can validate the sender side too. numbers carries one
// per-channel monotonic sequence number per queued tuple, parallel to queue
// at tuple (not value) granularity, per the resolved Open Question on
// message numbering in SPEC_FULL.md.
type channel struct {
	spec       *bytecode.ChannelSpec
	queue      []types.Literal // flattened tuples: len(queue) is always a multiple of len(spec.Types)
	numbers    []int
	nextNumber int
}

// MessageEvent describes the single send or receive that the most recently
// applied transition performed, if any. The simulator reads this right after
// Apply to build its message-flow log; the checker ignores it.
type MessageEvent struct {
	Kind                       string // "send" or "receive"
	Pid                        uint32
	SenderProg, SenderPort     string
	ReceiverProg, ReceiverPort string
	Values                     []types.Literal
	Number                     int
}

// GlobalState is the mutable world every process shares: the shared
// variables, the channel queues and the table of live processes. It
// implements vm.Env directly.
type GlobalState struct {
	Program *bytecode.Program

	shared map[string]types.Literal

	bySend map[channelKey]*channel
	byRecv map[channelKey]*channel

	Processes map[uint32]*vm.Process
	nextPid   uint32

	// current is the pid of the process presently being stepped, set by
	// Apply for the duration of one Step call so Print can attribute
	// output to its process without vm.Env needing a pid parameter.
	current uint32

	// Order lists process ids in the order they were created, giving the
	// simulator and checker a stable iteration order independent of Go's
	// randomized map iteration.
	Order []uint32

	// OnPrint, if set, receives every value printed by any process. sim
	// assigns this to append to its captured output buffer; check leaves it
	// nil, since a model-checking run has no observer to show output to.
	OnPrint func(pid uint32, vals []types.Literal)

	// lastEvent records the send/receive the current Apply call's Step
	// performed, if any; Apply clears it before stepping and sim reads it
	// back afterwards via LastEvent.
	lastEvent *MessageEvent
}

// LastEvent returns the message event (if any) produced by the most recent
// Apply call.
func (g *GlobalState) LastEvent() *MessageEvent { return g.lastEvent }

// New constructs a GlobalState with every shared variable initialized from
// prog.SharedInit and every declared channel registered with an empty
// queue, but no processes yet: callers spawn main + its `run` statements by
// executing prog.Main through the returned state.
func New(prog *bytecode.Program) (*GlobalState, error) {
	g := &GlobalState{
		Program:   prog,
		shared:    map[string]types.Literal{},
		bySend:    map[channelKey]*channel{},
		byRecv:    map[channelKey]*channel{},
		Processes: map[uint32]*vm.Process{},
	}

	for _, si := range prog.SharedInit {
		if si.Init == nil {
			zero, err := types.Zero(si.Type)
			if err != nil {
				return nil, fmt.Errorf("shared variable %q: %w", si.Name, err)
			}
			g.shared[si.Name] = zero
			continue
		}
		v, err := evalConst(g, si.Init)
		if err != nil {
			return nil, fmt.Errorf("shared variable %q initializer: %w", si.Name, err)
		}
		g.shared[si.Name] = v
	}

	for _, spec := range prog.Channels {
		ch := &channel{spec: spec}
		g.bySend[channelKey{spec.SenderProg, spec.SenderPort}] = ch
		g.byRecv[channelKey{spec.ReceiverProg, spec.ReceiverPort}] = ch
	}

	return g, nil
}

// Spawn creates a new process running program with args and registers it in
// the process table, returning the freshly assigned pid. It implements the
// Run opcode's effect and is also how the simulator/checker bootstrap the
// processes declared by `run` statements in main's own body.
func (g *GlobalState) Spawn(program string, args []types.Literal) uint32 {
	cp, ok := g.Program.Processes[program]
	if !ok {
		return 0
	}
	g.nextPid++
	pid := g.nextPid
	p := vm.NewProcess(pid, program, cp.Code, cp.NumLocals, args)
	g.Processes[pid] = p
	g.Order = append(g.Order, pid)
	return pid
}

// LoadShared implements vm.Env.
func (g *GlobalState) LoadShared(name string) types.Literal { return g.shared[name] }

// StoreShared implements vm.Env.
func (g *GlobalState) StoreShared(name string, v types.Literal) { g.shared[name] = v }

// Send implements vm.Env: it appends vals to the queue declared for
// senderProg.port, reporting false (an undeclared-port runtime error) if no
// such channel exists.
func (g *GlobalState) Send(senderProg, port string, vals []types.Literal) bool {
	ch, ok := g.bySend[channelKey{senderProg, port}]
	if !ok {
		return false
	}
	number := ch.nextNumber
	ch.nextNumber++
	ch.queue = append(ch.queue, vals...)
	ch.numbers = append(ch.numbers, number)
	g.lastEvent = &MessageEvent{
		Kind: "send", Pid: g.current,
		SenderProg: ch.spec.SenderProg, SenderPort: ch.spec.SenderPort,
		ReceiverProg: ch.spec.ReceiverProg, ReceiverPort: ch.spec.ReceiverPort,
		Values: vals, Number: number,
	}
	return true
}

// TryReceive implements vm.Env: it dequeues the oldest pending tuple
// destined for receiverProg.port, if any.
func (g *GlobalState) TryReceive(receiverProg, port string) ([]types.Literal, bool) {
	ch, ok := g.byRecv[channelKey{receiverProg, port}]
	if !ok || len(ch.queue) == 0 {
		return nil, false
	}
	arity := len(ch.spec.Types)
	if arity == 0 {
		arity = 1
	}
	vals := ch.queue[:arity]
	ch.queue = ch.queue[arity:]
	number := ch.numbers[0]
	ch.numbers = ch.numbers[1:]
	g.lastEvent = &MessageEvent{
		Kind: "receive", Pid: g.current,
		SenderProg: ch.spec.SenderProg, SenderPort: ch.spec.SenderPort,
		ReceiverProg: ch.spec.ReceiverProg, ReceiverPort: ch.spec.ReceiverPort,
		Values: vals, Number: number,
	}
	return vals, true
}

// Print implements vm.Env. If OnPrint is set it is invoked with the pid of
// whichever process is currently being stepped (see Apply); otherwise the
// output is dropped, matching a headless `compile`-only use of the state.
func (g *GlobalState) Print(vals []types.Literal) {
	if g.OnPrint != nil {
		g.OnPrint(g.current, vals)
	}
}

// Clone deep-copies the entire world: shared variables, every channel's
// queue, and every process (via vm.Process.Clone). The model checker calls
// this before applying each alternative transition out of enabled(S), so
// exploring one successor never disturbs the state the others are computed
// from.
func (g *GlobalState) Clone() *GlobalState {
	cp := &GlobalState{
		Program:   g.Program,
		shared:    make(map[string]types.Literal, len(g.shared)),
		bySend:    make(map[channelKey]*channel, len(g.bySend)),
		byRecv:    make(map[channelKey]*channel, len(g.byRecv)),
		Processes: make(map[uint32]*vm.Process, len(g.Processes)),
		nextPid:   g.nextPid,
		Order:     append([]uint32(nil), g.Order...),
		OnPrint:   g.OnPrint,
	}
	for k, v := range g.shared {
		cp.shared[k] = v
	}

	// Every channel is referenced from both bySend and byRecv under its own
	// two keys; clone each underlying channel once and keep both maps
	// pointing at the shared clone, the same structure New() builds.
	cloned := map[*channel]*channel{}
	cloneOf := func(ch *channel) *channel {
		if nc, ok := cloned[ch]; ok {
			return nc
		}
		nc := &channel{
			spec:       ch.spec,
			queue:      append([]types.Literal(nil), ch.queue...),
			numbers:    append([]int(nil), ch.numbers...),
			nextNumber: ch.nextNumber,
		}
		cloned[ch] = nc
		return nc
	}
	for k, ch := range g.bySend {
		cp.bySend[k] = cloneOf(ch)
	}
	for k, ch := range g.byRecv {
		cp.byRecv[k] = cloneOf(ch)
	}

	for pid, p := range g.Processes {
		cp.Processes[pid] = p.Clone()
	}
	return cp
}

// ChannelSnapshot is a read-only view of one declared channel's current
// queue contents, keyed the way state canonicalization and trace rendering
// need: by its sender endpoint.
type ChannelSnapshot struct {
	SenderProg, SenderPort     string
	ReceiverProg, ReceiverPort string
	Queue                      []types.Literal
}

// ChannelSnapshots returns every declared channel's current queue, sorted by
// (sender program, sender port) for determinism.
func (g *GlobalState) ChannelSnapshots() []ChannelSnapshot {
	keys := make([]channelKey, 0, len(g.bySend))
	for k := range g.bySend {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].prog != keys[j].prog {
			return keys[i].prog < keys[j].prog
		}
		return keys[i].port < keys[j].port
	})
	out := make([]ChannelSnapshot, 0, len(keys))
	for _, k := range keys {
		ch := g.bySend[k]
		out = append(out, ChannelSnapshot{
			SenderProg: ch.spec.SenderProg, SenderPort: ch.spec.SenderPort,
			ReceiverProg: ch.spec.ReceiverProg, ReceiverPort: ch.spec.ReceiverPort,
			Queue: append([]types.Literal(nil), ch.queue...),
		})
	}
	return out
}

// SharedSnapshot returns a copy of the shared variable bindings keyed by
// name. Map order is unspecified; SharedNames gives the sorted names.
func (g *GlobalState) SharedSnapshot() map[string]types.Literal {
	cp := make(map[string]types.Literal, len(g.shared))
	for k, v := range g.shared {
		cp[k] = v
	}
	return cp
}

// SharedNames returns every shared variable name in sorted order.
func (g *GlobalState) SharedNames() []string {
	names := make([]string, 0, len(g.shared))
	for k := range g.shared {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Enabled returns the pids of every process that is not Done, Blocked ones
// included (the VM itself decides: stepping a Blocked process either
// produces a real effect or re-reports EffectBlocked, and the checker and
// simulator discard the stepped clone in that case).
func (g *GlobalState) Enabled() []uint32 {
	var ids []uint32
	for _, pid := range g.Order {
		p := g.Processes[pid]
		if p.Status != vm.Done {
			ids = append(ids, pid)
		}
	}
	return ids
}

// VarBinding is one name/value pair in a Snapshot's Globals list.
type VarBinding struct {
	Name  string
	Value types.Literal
}

// ProcessView is one process's visible state within a Snapshot: the spec's
// `locals:[{pid,name,clock,instruction_pointer,memory:[Literal]}]` entry.
type ProcessView struct {
	Pid               uint32
	Name              string
	Clock             uint64
	InstructionPointer int
	Memory            []types.Literal
}

// Snapshot is the full observational state of a GlobalState at one point in
// time: every shared variable, every channel's queue, and every process's
// (pid, program, clock, pc, locals). The simulator attaches one of these to
// every message-flow event and to its per-step trace; the checker dedups
// with the cheaper canonicalHash and keeps one Snapshot per newly visited
// state for display.
type Snapshot struct {
	Channels []ChannelSnapshot
	Globals  []VarBinding
	Locals   []ProcessView
}

// Snapshot captures g's current state for display purposes (run traces,
// message-flow events). Unlike canonicalHash it is not meant to be a
// deduplication key, only a readable point-in-time view.
func (g *GlobalState) Snapshot() Snapshot {
	names := g.SharedNames()
	globals := make([]VarBinding, len(names))
	for i, name := range names {
		globals[i] = VarBinding{Name: name, Value: g.shared[name]}
	}

	locals := make([]ProcessView, len(g.Order))
	for i, pid := range g.Order {
		s := g.Processes[pid].Snapshot()
		name := s.Program
		if name == "" {
			name = "main"
		}
		locals[i] = ProcessView{
			Pid: s.Pid, Name: name, Clock: s.Clock,
			InstructionPointer: s.PC, Memory: s.Locals,
		}
	}

	return Snapshot{
		Channels: g.ChannelSnapshots(),
		Globals:  globals,
		Locals:   locals,
	}
}

// AllDone reports whether every spawned process has finished.
func (g *GlobalState) AllDone() bool {
	for _, pid := range g.Order {
		if g.Processes[pid].Status != vm.Done {
			return false
		}
	}
	return len(g.Order) > 0
}
