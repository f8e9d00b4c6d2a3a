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

// Package check is the exhaustive model checker ("check"): a deterministic
// DFS over the reachable global states of a compiled program, deduped by
// canonical state hash, evaluating always/eventually assertions as it goes.
package check

import (
	"fmt"
	"sync"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/pgraph"
	"github.com/althread-lang/althread/scheduler"
	"github.com/althread-lang/althread/util/semaphore"
	"github.com/althread-lang/althread/vm"
)

// Snapshot is a display-only alias: check hands back one of these per
// visited state hash, the same shape the simulator attaches to its trace.
type Snapshot = scheduler.Snapshot

// defaultFanout bounds how many successor states are canonicalized (cloned,
// applied, hashed) concurrently at each DFS step. The driving loop itself
// remains single-threaded: results are gathered back into enabled(S)'s
// original order before the DFS stack is touched, so this never changes
// exploration order.
const defaultFanout = 8

// Step is one transition in a counter-example path.
type Step struct {
	From string
	To   string
	Pid  uint32
	Name string // program name (or "main") that stepped
}

// Path is a counter-example: the sequence of transitions from the initial
// state to the state where a violation was observed.
type Path []Step

// Checker drives the DFS. MaxStates bounds the visited set; zero means
// unbounded. Logf, if set, receives progress diagnostics; no other stage in
// this pipeline takes a logger.
type Checker struct {
	MaxStates int
	Logf      func(format string, v ...interface{})
}

// EventuallyStatus is the verification outcome for one eventually assertion.
type EventuallyStatus int

// The three outcomes check.Check can report for an eventually assertion.
const (
	EventuallyHolds EventuallyStatus = iota
	EventuallyViolated
	EventuallyUnverified // exploration was cut short by a budget
)

// Result is the full output of one check run.
type Result struct {
	Graph             *pgraph.Graph
	Root              string // hash of the initial state, graph's BFS/level root
	States            map[string]Snapshot
	Violations        []Path
	BudgetExceeded    bool
	EventuallyResults []EventuallyStatus // indexed like prog.Assertions, entries for Always are EventuallyHolds (unused)
}

type edgeInfo struct {
	fromHash string
	pid      uint32
	name     string
}

// Check explores every state reachable from prog's initial state.
func (c *Checker) Check(prog *bytecode.Program) (*Result, error) {
	logf := c.Logf
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	g0, err := scheduler.New(prog)
	if err != nil {
		return nil, fmt.Errorf("check: building initial state: %w", err)
	}
	if err := g0.Bootstrap(); err != nil {
		return nil, fmt.Errorf("check: running main: %w", err)
	}

	graph := pgraph.NewGraph()
	res := &Result{
		Graph:             graph,
		States:            map[string]Snapshot{},
		EventuallyResults: make([]EventuallyStatus, len(prog.Assertions)),
	}

	h0 := canonicalHash(g0)
	res.Root = h0
	graph.AddVertex(h0)
	res.States[h0] = g0.Snapshot()
	visited := map[string]bool{h0: true}
	// retained keeps one GlobalState per visited hash so evalEventually can
	// later evaluate each eventually assertion's expression against every
	// state in a terminal SCC without re-exploring the graph.
	retained := map[string]*scheduler.GlobalState{h0: g0}
	parent := map[string]edgeInfo{}
	sema := semaphore.NewSemaphore(defaultFanout)
	defer sema.Close()

	type stackFrame struct {
		state      *scheduler.GlobalState
		hash       string
		candidates []uint32
		idx        int
	}

	if path, bad := c.checkAlways(prog, g0, h0); bad {
		res.Violations = append(res.Violations, path)
	}

	stack := []*stackFrame{{state: g0, hash: h0, candidates: g0.Enabled()}}

	budgetExceeded := false
	for len(stack) > 0 && !budgetExceeded {
		top := stack[len(stack)-1]
		if top.idx >= len(top.candidates) {
			stack = stack[:len(stack)-1]
			continue
		}

		// Compute successors for every remaining candidate concurrently,
		// bounded by sema, then apply their effects back in original order.
		type successor struct {
			pid   uint32
			name  string
			eff   vm.Effect
			verr  *vm.Error
			state *scheduler.GlobalState
			hash  string
		}
		pending := top.candidates[top.idx:]
		results := make([]successor, len(pending))
		var wg sync.WaitGroup
		for i, pid := range pending {
			i, pid := i, pid
			wg.Add(1)
			if err := sema.P(1); err != nil {
				wg.Done()
				continue
			}
			go func() {
				defer wg.Done()
				defer sema.V(1)
				clone := top.state.Clone()
				name := processName(clone, pid)
				eff, verr := clone.Apply(pid)
				results[i] = successor{pid: pid, name: name, eff: eff, verr: verr, state: clone}
				if verr == nil {
					results[i].hash = canonicalHash(clone)
				}
			}()
		}
		wg.Wait()
		top.idx = len(top.candidates)

		for _, s := range results {
			step := Step{From: top.hash, Pid: s.pid, Name: s.name}
			if s.verr != nil {
				step.To = top.hash
				path := reconstructPath(parent, step)
				res.Violations = append(res.Violations, path)
				continue
			}
			if s.eff == vm.EffectBlocked {
				continue // the guard was not actually satisfied; not a real transition
			}
			step.To = s.hash
			graph.AddEdge(top.hash, s.hash, &pgraph.Edge{Pid: s.pid, Label: s.name})

			if bad, violated := c.checkAlways(prog, s.state, s.hash); violated {
				res.Violations = append(res.Violations, reconstructPath(parent, step, bad...))
			}

			if visited[s.hash] {
				continue
			}
			visited[s.hash] = true
			retained[s.hash] = s.state
			res.States[s.hash] = s.state.Snapshot()
			parent[s.hash] = edgeInfo{fromHash: top.hash, pid: s.pid, name: s.name}

			if c.MaxStates > 0 && len(visited) > c.MaxStates {
				budgetExceeded = true
				res.BudgetExceeded = true
				logf("check: state budget of %d exceeded", c.MaxStates)
				break
			}
			stack = append(stack, &stackFrame{state: s.state, hash: s.hash, candidates: s.state.Enabled()})
		}
	}

	c.evalEventually(prog, graph, retained, res)
	return res, nil
}

// checkAlways evaluates every Always assertion against state, reporting a
// one-step path ending at hash (an always violation's "to" state is the
// state itself) and whether any assertion failed.
func (c *Checker) checkAlways(prog *bytecode.Program, g *scheduler.GlobalState, hash string) (Path, bool) {
	for _, a := range prog.Assertions {
		if a.Kind != bytecode.Always {
			continue
		}
		ok, err := g.EvalAssertion(a.Code)
		if err != nil || !ok {
			return Path{{From: hash, To: hash}}, true
		}
	}
	return nil, false
}

// evalEventually checks every Eventually assertion by scanning the terminal
// (sink) strongly connected components of the visited graph: a violation is
// a non-trivial terminal SCC (a real cycle, not a single state with no
// self-loop) containing no state that satisfies P. If the budget cut
// exploration short, the result is reported as "not yet verified" rather
// than guessed, per the resolved Open Question in SPEC_FULL.md.
func (c *Checker) evalEventually(prog *bytecode.Program, graph *pgraph.Graph, retained map[string]*scheduler.GlobalState, res *Result) {
	var eventuallyIdx []int
	for i, a := range prog.Assertions {
		if a.Kind == bytecode.Eventually {
			eventuallyIdx = append(eventuallyIdx, i)
		}
	}
	if len(eventuallyIdx) == 0 {
		return
	}

	terminal := terminalSCCs(graph, graph.SCCs())
	var cycles [][]string
	for _, scc := range terminal {
		if len(scc) > 1 || graph.Adjacency[scc[0]][scc[0]] != nil {
			cycles = append(cycles, scc)
		}
	}

	for _, idx := range eventuallyIdx {
		if res.BudgetExceeded {
			res.EventuallyResults[idx] = EventuallyUnverified
			continue
		}
		violated := false
		for _, scc := range cycles {
			if !anyStateSatisfies(retained, scc, prog.Assertions[idx].Code) {
				violated = true
				break
			}
		}
		if violated {
			res.EventuallyResults[idx] = EventuallyViolated
		} else {
			res.EventuallyResults[idx] = EventuallyHolds
		}
	}
}

func anyStateSatisfies(retained map[string]*scheduler.GlobalState, hashes []string, code bytecode.Stream) bool {
	for _, h := range hashes {
		g, ok := retained[h]
		if !ok {
			continue
		}
		if holds, err := g.EvalAssertion(code); err == nil && holds {
			return true
		}
	}
	return false
}

// terminalSCCs returns the components of sccs that have no outgoing edge to
// a different component (i.e. are sinks in the SCC condensation).
func terminalSCCs(graph *pgraph.Graph, sccs [][]string) [][]string {
	owner := map[string]int{}
	for i, comp := range sccs {
		for _, v := range comp {
			owner[v] = i
		}
	}
	var out [][]string
	for i, comp := range sccs {
		terminal := true
		for _, v := range comp {
			for _, w := range graph.OutgoingEdges(v) {
				if owner[w] != i {
					terminal = false
				}
			}
		}
		if terminal {
			out = append(out, comp)
		}
	}
	return out
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

// reconstructPath walks parent back to the root, prepending tree edges, then
// appends last plus any extra tail steps (used for an always-violation
// observed immediately after applying last).
func reconstructPath(parent map[string]edgeInfo, last Step, tail ...Step) Path {
	var rev Path
	cur := last.From
	for {
		e, ok := parent[cur]
		if !ok {
			break
		}
		rev = append(Path{{From: e.fromHash, To: cur, Pid: e.pid, Name: e.name}}, rev...)
		cur = e.fromHash
	}
	rev = append(rev, last)
	rev = append(rev, tail...)
	return rev
}
