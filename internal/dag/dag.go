// SPDX-License-Identifier: MPL-2.0

// Package dag models the dependency graph between registered documents.
//
// An edge runs from a referenced document to the document that references it,
// so a topological order lists every dependency before its dependents. The
// graph is derived from registry entries: fragments are dropped, repeated
// references collapse into one edge, and references to unregistered UIDs are
// kept aside as dangling instead of becoming nodes.
package dag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/uidreg/uidreg/internal/registry"
	"github.com/uidreg/uidreg/pkg/uid"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle lists the nodes left unordered, in insertion order. It covers
		// every cycle plus anything reachable only through one.
		Cycle []uid.UID
	}

	// Dangling is a reference whose base UID is not a node of the graph.
	Dangling struct {
		From uid.UID `json:"from"`
		To   uid.UID `json:"to"`
	}

	// Graph is a directed dependency graph over UIDs.
	Graph struct {
		// adjacency maps each node to the nodes that depend on it.
		adjacency map[uid.UID][]uid.UID
		// reverse maps each node to the nodes it depends on.
		reverse map[uid.UID][]uid.UID
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes    []uid.UID
		nodeSet  map[uid.UID]bool
		dangling []Dangling
	}
)

func (e *CycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, u := range e.Cycle {
		names[i] = string(u)
	}
	return fmt.Sprintf("dependency cycle detected among: %s", strings.Join(names, ", "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[uid.UID][]uid.UID),
		reverse:   make(map[uid.UID][]uid.UID),
		nodeSet:   make(map[uid.UID]bool),
	}
}

// FromRegistry builds the graph of reg. Nodes are added in UID order.
func FromRegistry(reg *registry.Registry) *Graph {
	g := New()
	for u := range reg.Entries() {
		g.AddNode(u)
	}
	for u, e := range reg.Entries() {
		for _, raw := range e.Dependencies {
			base := uid.ParseReference(raw).Base
			if !g.nodeSet[base] {
				g.dangling = append(g.dangling, Dangling{From: u, To: base})
				continue
			}
			g.AddEdge(base, u)
		}
	}
	return g
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(u uid.UID) {
	if g.nodeSet[u] {
		return
	}
	g.nodeSet[u] = true
	g.nodes = append(g.nodes, u)
}

// AddEdge records that dependent references dependency. Both nodes are
// added if missing; a repeated edge is ignored.
func (g *Graph) AddEdge(dependency, dependent uid.UID) {
	g.AddNode(dependency)
	g.AddNode(dependent)
	if slices.Contains(g.adjacency[dependency], dependent) {
		return
	}
	g.adjacency[dependency] = append(g.adjacency[dependency], dependent)
	g.reverse[dependent] = append(g.reverse[dependent], dependency)
}

// Has reports whether u is a node.
func (g *Graph) Has(u uid.UID) bool { return g.nodeSet[u] }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Dangling returns references to UIDs outside the graph, in discovery order.
func (g *Graph) Dangling() []Dangling { return slices.Clone(g.dangling) }

// DependenciesOf returns the direct dependencies of u.
func (g *Graph) DependenciesOf(u uid.UID) []uid.UID {
	return slices.Clone(g.reverse[u])
}

// Dependents returns every node that depends on u directly or transitively,
// in breadth-first order. u itself is included only when it sits on a cycle.
func (g *Graph) Dependents(u uid.UID) []uid.UID {
	seen := make(map[uid.UID]bool)
	var out []uid.UID
	queue := slices.Clone(g.adjacency[u])
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, g.adjacency[next]...)
	}
	return out
}

// TopologicalSort returns the nodes with every dependency before its
// dependents, using Kahn's algorithm. Returns CycleError if the graph
// contains a cycle. Nodes at the same level keep their insertion order.
func (g *Graph) TopologicalSort() ([]uid.UID, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[uid.UID]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = len(g.reverse[node])
	}

	queue := make([]uid.UID, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []uid.UID
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range g.adjacency[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var stuck []uid.UID
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				stuck = append(stuck, node)
			}
		}
		return nil, &CycleError{Cycle: stuck}
	}

	return result, nil
}
