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

package check

import (
	"sort"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/althread-lang/althread/bytecode"
	"github.com/althread-lang/althread/lang/linker"
	"github.com/althread-lang/althread/lang/lower"
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
	prog, lerrs := lower.Lower(u, res)
	if len(lerrs) != 0 {
		t.Fatalf("unexpected lowering error: %s", lerrs.Error())
	}
	return prog
}

func TestCheckHelloWorldHasTwoStates(t *testing.T) {
	prog := compile(t, `main { print("hi"); }`)
	res, err := (&Checker{}).Check(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %v", res.Violations)
	}
	if res.Graph.NumVertices() != 2 {
		t.Fatalf("expected 2 states (initial, terminal), got %d", res.Graph.NumVertices())
	}
}

func TestCheckSharedCounterNoViolation(t *testing.T) {
	prog := compile(t, `
shared {
	let C: int = 0;
}

program Inc() {
	C = C + 1;
}

main {
	run Inc();
	run Inc();
	wait until C == 2;
}

always {
	C <= 2;
}
`)
	res, err := (&Checker{}).Check(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %v", res.Violations)
	}
}

func TestCheckRaceWithoutMutexFindsViolation(t *testing.T) {
	prog := compile(t, `
shared {
	let X: int = 0;
}

program P() {
	let t: int = X;
	X = t + 1;
}

main {
	run P();
	run P();
	wait until true;
}

always {
	X == 2;
}
`)
	res, err := (&Checker{}).Check(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Violations) == 0 {
		t.Fatalf("expected the lost-update race to be found as a counter-example")
	}
}

func TestCheckDeadlockTerminalNode(t *testing.T) {
	prog := compile(t, `
shared {
	let F: bool = false;
}

program Waiter() {
	wait until F;
}

main {
	run Waiter();
	run Waiter();
}
`)
	res, err := (&Checker{}).Check(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var foundTerminal bool
	for _, v := range res.Graph.Vertices() {
		if len(res.Graph.OutgoingEdges(v)) == 0 {
			foundTerminal = true
		}
	}
	if !foundTerminal {
		t.Fatalf("expected a terminal deadlocked node in the graph")
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	prog := compile(t, `
shared {
	let C: int = 0;
}

program Inc() {
	C = C + 1;
}

main {
	run Inc();
	run Inc();
	wait until C == 2;
}
`)
	r1, err := (&Checker{}).Check(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := (&Checker{}).Check(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1.Graph.NumVertices() != r2.Graph.NumVertices() || r1.Graph.NumEdges() != r2.Graph.NumEdges() {
		t.Fatalf("expected two independent check runs to produce the same graph shape, got %d/%d vs %d/%d",
			r1.Graph.NumVertices(), r1.Graph.NumEdges(), r2.Graph.NumVertices(), r2.Graph.NumEdges())
	}

	hashes1, hashes2 := make([]string, 0, len(r1.States)), make([]string, 0, len(r2.States))
	for h := range r1.States {
		hashes1 = append(hashes1, h)
	}
	for h := range r2.States {
		hashes2 = append(hashes2, h)
	}
	sort.Strings(hashes1)
	sort.Strings(hashes2)
	if diff := pretty.Compare(hashes1, hashes2); diff != "" {
		t.Fatalf("expected the two runs to visit the same set of state hashes, diff:\n%s", diff)
	}
}

func TestCheckBudgetExceeded(t *testing.T) {
	prog := compile(t, `
shared {
	let C: int = 0;
}

program Inc() {
	loop {
		C = C + 1;
	}
}

main {
	run Inc();
}
`)
	res, err := (&Checker{MaxStates: 3}).Check(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.BudgetExceeded {
		t.Fatalf("expected an unbounded counter loop to exceed a small state budget")
	}
}
