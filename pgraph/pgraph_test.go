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

package pgraph

import "testing"

func TestAddEdgeRegistersVertices(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b", &Edge{Pid: 1, Label: "send"})
	if g.NumVertices() != 2 || g.NumEdges() != 1 {
		t.Fatalf("expected 2 vertices and 1 edge, got %d/%d", g.NumVertices(), g.NumEdges())
	}
	if !g.HasVertex("a") || !g.HasVertex("b") {
		t.Fatalf("expected both endpoints registered")
	}
}

func TestDFSDiscoversReachableStates(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b", &Edge{})
	g.AddEdge("b", "c", &Edge{})
	g.AddEdge("a", "c", &Edge{})
	g.AddVertex("d") // unreachable from a

	d := g.DFS("a")
	seen := map[string]bool{}
	for _, v := range d {
		seen[v] = true
	}
	if !seen["a"] || !seen["b"] || !seen["c"] || seen["d"] {
		t.Fatalf("unexpected DFS result: %v", d)
	}
}

func TestSCCsFindsCycle(t *testing.T) {
	g := NewGraph()
	// a <-> b <-> c is one strongly connected component; d is separate.
	g.AddEdge("a", "b", &Edge{})
	g.AddEdge("b", "c", &Edge{})
	g.AddEdge("c", "a", &Edge{})
	g.AddEdge("c", "d", &Edge{})

	sccs := g.SCCs()
	var cycle, trivialD bool
	for _, comp := range sccs {
		set := map[string]bool{}
		for _, v := range comp {
			set[v] = true
		}
		if len(comp) == 3 && set["a"] && set["b"] && set["c"] {
			cycle = true
		}
		if len(comp) == 1 && set["d"] {
			trivialD = true
		}
	}
	if !cycle {
		t.Fatalf("expected a 3-vertex SCC for a/b/c, got %v", sccs)
	}
	if !trivialD {
		t.Fatalf("expected a trivial singleton SCC for d, got %v", sccs)
	}
}
