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

// tarjanState threads the bookkeeping Tarjan's algorithm needs across one
// call to SCCs: discovery index, lowlink, on-stack membership.
type tarjanState struct {
	g        *Graph
	index    map[string]int
	lowlink  map[string]int
	onStack  map[string]bool
	stack    []string
	next     int
	sccs     [][]string
}

// SCCs computes the strongly connected components of the graph using
// Tarjan's algorithm, iteratively (an explicit work stack standing in for
// call-stack recursion, the same discipline DFS uses) so deep state spaces
// don't blow the goroutine stack. Components are returned in no particular
// order; within a component, vertices are in the order Tarjan's algorithm
// pops them.
func (g *Graph) SCCs() [][]string {
	st := &tarjanState{
		g:       g,
		index:   map[string]int{},
		lowlink: map[string]int{},
		onStack: map[string]bool{},
	}
	for _, v := range g.Vertices() {
		if _, ok := st.index[v]; !ok {
			st.strongconnect(v)
		}
	}
	return st.sccs
}

// tarjanFrame is one level of the simulated recursion stack for strongconnect.
type tarjanFrame struct {
	v        string
	children []string
	ci       int
}

func (st *tarjanState) strongconnect(start string) {
	var work []*tarjanFrame
	push := func(v string) {
		st.index[v] = st.next
		st.lowlink[v] = st.next
		st.next++
		st.stack = append(st.stack, v)
		st.onStack[v] = true
		work = append(work, &tarjanFrame{v: v, children: st.g.OutgoingEdges(v)})
	}
	push(start)

	for len(work) > 0 {
		top := work[len(work)-1]
		if top.ci < len(top.children) {
			w := top.children[top.ci]
			top.ci++
			if _, ok := st.index[w]; !ok {
				push(w)
				continue
			} else if st.onStack[w] {
				if st.index[w] < st.lowlink[top.v] {
					st.lowlink[top.v] = st.index[w]
				}
			}
			continue
		}

		// all children processed; pop this frame
		work = work[:len(work)-1]
		if len(work) > 0 {
			parent := work[len(work)-1]
			if st.lowlink[top.v] < st.lowlink[parent.v] {
				st.lowlink[parent.v] = st.lowlink[top.v]
			}
		}

		if st.lowlink[top.v] == st.index[top.v] {
			var comp []string
			for {
				n := len(st.stack) - 1
				w := st.stack[n]
				st.stack = st.stack[:n]
				st.onStack[w] = false
				comp = append(comp, w)
				if w == top.v {
					break
				}
			}
			st.sccs = append(st.sccs, comp)
		}
	}
}
