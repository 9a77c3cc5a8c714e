// Package refgraph clusters repository files by their cross references and
// ranks the clusters, so tiers can be seeded before any turn has shown
// which files stay stable.
package refgraph

import "sort"

// Graph is a directed reference graph between repository files. An edge
// from a to b means a refers to a symbol defined in b.
type Graph struct {
	nodes   map[string]struct{}
	out     map[string]map[string]struct{}
	reverse map[string]map[string]struct{}
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]struct{}),
		out:     make(map[string]map[string]struct{}),
		reverse: make(map[string]map[string]struct{}),
	}
}

// AddFile adds path as a node with no references.
func (g *Graph) AddFile(path string) {
	if _, ok := g.nodes[path]; ok {
		return
	}
	g.nodes[path] = struct{}{}
	g.out[path] = make(map[string]struct{})
	g.reverse[path] = make(map[string]struct{})
}

// AddReference records that from refers to to. Self references are ignored
// apart from registering the file.
func (g *Graph) AddReference(from, to string) {
	g.AddFile(from)
	g.AddFile(to)
	if from == to {
		return
	}
	g.out[from][to] = struct{}{}
	g.reverse[to][from] = struct{}{}
}

// Files returns every node sorted.
func (g *Graph) Files() []string {
	files := make([]string, 0, len(g.nodes))
	for f := range g.nodes {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// References returns the files path refers to, sorted.
func (g *Graph) References(path string) []string {
	refs := make([]string, 0, len(g.out[path]))
	for to := range g.out[path] {
		refs = append(refs, to)
	}
	sort.Strings(refs)
	return refs
}

// Len returns the number of files in the graph.
func (g *Graph) Len() int { return len(g.nodes) }
