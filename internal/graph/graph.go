// Package graph holds a point-in-time snapshot of the mention graph and
// answers cycle queries against it.
//
// A Graph is built fresh for every validation from edges read inside the
// caller's transaction and is discarded afterwards.
package graph

import (
	"github.com/ta21cos/thread-type-note-app/internal/models"
)

// Graph is a directed adjacency list keyed by note id.
type Graph struct {
	adj map[string][]string
}

// New builds a graph snapshot from persisted mention edges. Parallel edges
// (one note mentioning another several times) collapse to one.
func New(edges []models.Edge) *Graph {
	g := &Graph{adj: make(map[string][]string)}
	for _, e := range edges {
		g.addEdge(e.From, e.To)
	}
	return g
}

func (g *Graph) addEdge(from, to string) {
	for _, t := range g.adj[from] {
		if t == to {
			return
		}
	}
	g.adj[from] = append(g.adj[from], to)
}

// DropOutgoing removes every edge leaving from.
func (g *Graph) DropOutgoing(from string) {
	delete(g.adj, from)
}

// Targets returns the notes from points at.
func (g *Graph) Targets(from string) []string {
	return g.adj[from]
}

// WouldCreateCycle adds from -> t for every proposed target and reports
// whether a cycle is reachable from from. The proposed edges stay in the
// snapshot.
func (g *Graph) WouldCreateCycle(from string, proposed []string) bool {
	for _, t := range proposed {
		g.addEdge(from, t)
	}
	return g.cycleFrom(from, make(map[string]bool))
}

// HasCycle reports whether any directed cycle exists in the snapshot.
func (g *Graph) HasCycle() bool {
	done := make(map[string]bool)
	for node := range g.adj {
		if done[node] {
			continue
		}
		if g.cycleFrom(node, done) {
			return true
		}
	}
	return false
}

type frame struct {
	node string
	next int
}

// cycleFrom runs an iterative DFS from start. done collects fully explored
// nodes and may be shared across calls on the same snapshot.
func (g *Graph) cycleFrom(start string, done map[string]bool) bool {
	onStack := map[string]bool{start: true}
	stack := []frame{{node: start}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		neighbors := g.adj[top.node]
		if top.next >= len(neighbors) {
			onStack[top.node] = false
			done[top.node] = true
			stack = stack[:len(stack)-1]
			continue
		}

		next := neighbors[top.next]
		top.next++

		if onStack[next] {
			return true
		}
		if done[next] {
			continue
		}
		onStack[next] = true
		stack = append(stack, frame{node: next})
	}
	return false
}
