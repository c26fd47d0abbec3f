// Package dag provides directed acyclic graph operations for pipeline step
// dependencies: cycle detection and deterministic topological ordering.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed acyclic graph keyed by step identifier.
type Graph struct {
	nodes   map[string]bool
	edges   map[string][]string // dependency -> dependents
	parents map[string][]string // dependent -> dependencies
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]bool),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode registers a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if !g.nodes[id] {
		g.nodes[id] = true
		g.edges[id] = nil
		g.parents[id] = nil
	}
}

// AddEdge records that child depends on parent. Both nodes must already
// exist and self-loops are rejected.
func (g *Graph) AddEdge(parent, child string) error {
	if !g.nodes[parent] {
		return fmt.Errorf("unknown dependency %q", parent)
	}
	if !g.nodes[child] {
		return fmt.Errorf("unknown step %q", child)
	}
	if parent == child {
		return fmt.Errorf("step %q depends on itself", parent)
	}

	if !contains(g.edges[parent], child) {
		g.edges[parent] = append(g.edges[parent], child)
	}
	if !contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	return nil
}

// Parents returns the dependencies of a node.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// HasCycle reports whether the graph contains a cycle, along with one node
// on that cycle for the error message.
func (g *Graph) HasCycle() (bool, string) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int)

	var cycleAt string
	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = visiting
		for _, child := range g.edges[id] {
			switch state[child] {
			case visiting:
				cycleAt = child
				return true
			case unvisited:
				if visit(child) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for _, id := range g.sortedIDs() {
		if state[id] == unvisited && visit(id) {
			return true, cycleAt
		}
	}
	return false, ""
}

// TopologicalSort returns node ids with every dependency before its
// dependents. Order is deterministic for identical graphs. Fails when the
// graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if cyclic, at := g.HasCycle(); cyclic {
		return nil, fmt.Errorf("dependency cycle through %q", at)
	}

	visited := make(map[string]bool)
	var order []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parent := range g.parents[id] {
			visit(parent)
		}
		order = append(order, id)
	}

	for _, id := range g.sortedIDs() {
		visit(id)
	}
	return order, nil
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
