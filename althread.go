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

// Package althread is the three-operation public surface of the toolchain:
// Compile, Run and Check. Everything else in this repository (lexer through
// model checker) is an implementation detail reached only through these
// three entry points.
package althread

import (
	"github.com/google/uuid"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/check"
	"github.com/althread-lang/althread/diag"
	"github.com/althread-lang/althread/lang/linker"
	"github.com/althread-lang/althread/lang/lower"
	"github.com/althread-lang/althread/lang/semantic"
	"github.com/althread-lang/althread/sim"
)

// AlthreadError is the structured failure value every operation below can
// return, the Go-native shape of the spec's AlthreadError.
type AlthreadError = diag.Diagnostic

// VFS is a virtual file system mapping logical path to source text, handed
// straight through to the linker.
type VFS = linker.VFS

// Compile parses, links, semantically checks and lowers source into a
// CompiledProgram (a *bytecode.Program), or returns every diagnostic found
// along the way. Unlike Run and Check, Compile does not stop at the first
// error within a single stage: the semantic analyzer in particular collects
// every type/name error it finds before returning.
func Compile(path string, vfs VFS) (*bytecode.Program, diag.List) {
	u, errs := linker.Link(path, vfs)
	if len(errs) != 0 {
		return nil, errs
	}
	res, errs := semantic.Analyze(u)
	if len(errs) != 0 {
		return nil, errs
	}
	prog, errs := lower.Lower(u, res)
	if len(errs) != 0 {
		return nil, errs
	}
	return prog, nil
}

// RunOptions configures one simulation.
type RunOptions struct {
	Seed     int64
	MaxSteps int
	Policy   sim.Policy
}

// RunResult is the Go-native shape of the spec's RunResult, stamped with a
// correlation id (per the teacher's lib/deploy.go precedent for uuid.New())
// so an external collector can tie together the stdout, message-flow and
// state-trace streams of one invocation.
type RunResult struct {
	RunID uuid.UUID
	*sim.Result
}

// Run compiles source and then drives exactly one simulated path through it,
// per SPEC_FULL.md's simulator semantics.
func Run(path string, vfs VFS, opts RunOptions) (*RunResult, *AlthreadError) {
	prog, errs := Compile(path, vfs)
	if len(errs) != 0 {
		return nil, errs[0]
	}
	simulator := &sim.Simulator{Seed: opts.Seed, MaxSteps: opts.MaxSteps, Policy: opts.Policy}
	result, d := simulator.Run(prog)
	return &RunResult{RunID: uuid.New(), Result: result}, d
}

// CheckOptions configures one model-checking run.
type CheckOptions struct {
	MaxStates int
	Logf      func(format string, v ...interface{})
}

// SnapshotBrief is the Go-native shape of the spec's SnapshotBrief: a
// read-only display view of one explored state.
type SnapshotBrief = check.Snapshot

// PathStep is one transition in a reported counter-example.
type PathStep struct {
	From, To SnapshotBrief
	Pid      uint32
	Name     string
	Lines    []int
}

// Path is a counter-example from the initial state to a violation.
type Path []PathStep

// SuccessorEdge is one outgoing transition from a graph node.
type SuccessorEdge struct {
	Lines []int
	Pid   uint32
	Name  string
	To    SnapshotBrief
}

// NodeMeta is the Go-native shape of the spec's NodeMeta: a node's BFS level
// from the initial state, the index of its predecessor node (nil for the
// root), and its outgoing transitions.
type NodeMeta struct {
	Level       int
	Predecessor *int
	Successors  []SuccessorEdge
}

// NodeEntry pairs one explored state with its graph metadata.
type NodeEntry struct {
	Snapshot SnapshotBrief
	Meta     NodeMeta
}

// Graph is the Go-native shape of the spec's CheckResult.graph.
type Graph struct {
	Nodes []NodeEntry
}

// CheckResult is the Go-native shape of the spec's CheckResult.
type CheckResult struct {
	RunID             uuid.UUID
	Violations        []Path
	Graph             Graph
	BudgetExceeded    bool
	EventuallyResults []check.EventuallyStatus
}

// Check compiles source and then exhaustively explores its reachable state
// space, per SPEC_FULL.md's model-checker semantics.
func Check(path string, vfs VFS, opts CheckOptions) (*CheckResult, *AlthreadError) {
	prog, errs := Compile(path, vfs)
	if len(errs) != 0 {
		return nil, errs[0]
	}
	c := &check.Checker{MaxStates: opts.MaxStates, Logf: opts.Logf}
	res, err := c.Check(prog)
	if err != nil {
		return nil, diag.New(diag.VM, diag.Pos{}, "%s", err)
	}
	return &CheckResult{
		RunID:             uuid.New(),
		Violations:        convertPaths(res),
		Graph:             buildGraph(res),
		BudgetExceeded:    res.BudgetExceeded,
		EventuallyResults: res.EventuallyResults,
	}, nil
}

func convertPaths(res *check.Result) []Path {
	paths := make([]Path, len(res.Violations))
	for i, p := range res.Violations {
		path := make(Path, len(p))
		for j, step := range p {
			path[j] = PathStep{
				From: res.States[step.From],
				To:   res.States[step.To],
				Pid:  step.Pid,
				Name: step.Name,
			}
		}
		paths[i] = path
	}
	return paths
}

// buildGraph renders res's explored hash graph into the spec's node-list
// shape: a breadth-first level/predecessor assignment from the initial
// state, with every node's outgoing transitions resolved to brief snapshots.
// Source line numbers are not threaded through the checker's successor
// computation (it only tracks pid/program-name per transition), so every
// SuccessorEdge.Lines/PathStep.Lines is left empty; see DESIGN.md.
func buildGraph(res *check.Result) Graph {
	if res.Root == "" {
		return Graph{}
	}

	level := map[string]int{res.Root: 0}
	pred := map[string]string{}
	order := []string{}
	seen := map[string]bool{}
	queue := []string{res.Root}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] {
			continue
		}
		seen[h] = true
		order = append(order, h)
		for _, succ := range res.Graph.OutgoingEdges(h) {
			if _, ok := level[succ]; !ok {
				level[succ] = level[h] + 1
				pred[succ] = h
			}
			queue = append(queue, succ)
		}
	}

	index := make(map[string]int, len(order))
	for i, h := range order {
		index[h] = i
	}

	nodes := make([]NodeEntry, len(order))
	for i, h := range order {
		var predIdx *int
		if ph, ok := pred[h]; ok {
			pi := index[ph]
			predIdx = &pi
		}
		var succs []SuccessorEdge
		for _, succ := range res.Graph.OutgoingEdges(h) {
			edge := res.Graph.Adjacency[h][succ]
			succs = append(succs, SuccessorEdge{Pid: edge.Pid, Name: edge.Label, To: res.States[succ]})
		}
		nodes[i] = NodeEntry{
			Snapshot: res.States[h],
			Meta:     NodeMeta{Level: level[h], Predecessor: predIdx, Successors: succs},
		}
	}
	return Graph{Nodes: nodes}
}

