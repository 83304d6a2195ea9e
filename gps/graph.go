// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"container/heap"
	"sort"

	"github.com/pkg/errors"
)

// ResolvedPackage is one node of a Graph: a package at the version the
// solver picked for it, along with links to the nodes it requires. It is
// owned by its Graph and never changes after construction.
type ResolvedPackage struct {
	name     PackageName
	version  Version
	profile  Profile
	direct   bool
	deps     []*ResolvedPackage
	rootPath string
	cppInfo  CppInfo
	settings Settings
}

// Name returns the package name.
func (p *ResolvedPackage) Name() PackageName { return p.name }

// Version returns the version the solver selected.
func (p *ResolvedPackage) Version() Version { return p.version }

// Profile returns the profile the package was resolved for.
func (p *ResolvedPackage) Profile() Profile { return p.profile }

// Direct reports whether the consumer requires the package directly.
func (p *ResolvedPackage) Direct() bool { return p.direct }

// RootPath returns where the package's files live.
func (p *ResolvedPackage) RootPath() string { return p.rootPath }

// CppInfo returns the build information the package exports to consumers.
func (p *ResolvedPackage) CppInfo() CppInfo { return p.cppInfo }

// Settings returns the profile settings the package declared support for.
func (p *ResolvedPackage) Settings() Settings { return p.settings }

// Deps returns the packages p requires, sorted by name.
func (p *ResolvedPackage) Deps() []*ResolvedPackage {
	out := make([]*ResolvedPackage, len(p.deps))
	copy(out, p.deps)
	return out
}

func (p *ResolvedPackage) String() string {
	return atom{name: p.name, v: p.version}.String()
}

// Graph is a resolved dependency DAG with exactly one node per package name.
// It is read-only once built, and safe for concurrent use.
type Graph struct {
	profile Profile
	nodes   map[PackageName]*ResolvedPackage
	order   []*ResolvedPackage
	trie    *packageTrie
	hash    []byte
}

// NewGraph builds a Graph from the metadata of every selected package.
// Requirements of each package must name other packages in metas. direct
// names the packages the consumer requires itself.
//
// Nodes are built bottom-up: a node is only created once every node it
// requires exists, so the result cannot contain a cycle. If metas describes
// one, a *CyclicDependencyError is returned.
func NewGraph(profile Profile, metas []PackageMetadata, direct map[PackageName]bool) (*Graph, error) {
	byName := make(map[PackageName]PackageMetadata, len(metas))
	for _, m := range metas {
		if _, has := byName[m.Name]; has {
			return nil, errors.Errorf("package %s appears more than once", m.Name)
		}
		byName[m.Name] = m
	}

	// Outgoing edge counts and reverse edges, deduplicated.
	pending := make(map[PackageName]int, len(metas))
	dependents := make(map[PackageName][]PackageName)
	requires := make(map[PackageName][]PackageName, len(metas))
	for _, m := range metas {
		seen := make(map[PackageName]bool)
		for _, r := range m.Requires {
			if _, has := byName[r.Name]; !has {
				return nil, errors.Errorf("%s requires %s, which is not in the graph", m.Name, r.Name)
			}
			if seen[r.Name] {
				continue
			}
			seen[r.Name] = true
			requires[m.Name] = append(requires[m.Name], r.Name)
			dependents[r.Name] = append(dependents[r.Name], m.Name)
		}
		pending[m.Name] = len(requires[m.Name])
		sort.Slice(requires[m.Name], func(i, j int) bool {
			return requires[m.Name][i] < requires[m.Name][j]
		})
	}

	ready := &nameHeap{}
	for name, n := range pending {
		if n == 0 {
			heap.Push(ready, name)
		}
	}

	g := &Graph{
		profile: profile,
		nodes:   make(map[PackageName]*ResolvedPackage, len(metas)),
		order:   make([]*ResolvedPackage, 0, len(metas)),
		trie:    newPackageTrie(),
	}

	for ready.Len() > 0 {
		name := heap.Pop(ready).(PackageName)
		m := byName[name]

		p := &ResolvedPackage{
			name:     name,
			version:  m.Version,
			profile:  profile,
			direct:   direct[name],
			rootPath: m.RootPath,
			cppInfo:  m.CppInfo,
			settings: m.Settings,
		}
		for _, dn := range requires[name] {
			// All requirements are already finalized.
			p.deps = append(p.deps, g.nodes[dn])
		}

		g.nodes[name] = p
		g.order = append(g.order, p)
		g.trie.Insert(name, p)

		for _, dep := range dependents[name] {
			pending[dep]--
			if pending[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(g.order) != len(metas) {
		return nil, &CyclicDependencyError{Path: findCycle(requires, g.nodes)}
	}

	return g, nil
}

// findCycle locates one cycle among the packages that could not be placed.
func findCycle(requires map[PackageName][]PackageName, placed map[PackageName]*ResolvedPackage) []PackageName {
	var left []PackageName
	for name := range requires {
		if _, ok := placed[name]; !ok {
			left = append(left, name)
		}
	}
	sort.Slice(left, func(i, j int) bool { return left[i] < left[j] })

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[PackageName]int)
	var stack []PackageName
	var cycle []PackageName

	var visit func(n PackageName) bool
	visit = func(n PackageName) bool {
		state[n] = onStack
		stack = append(stack, n)
		for _, next := range requires[n] {
			if _, ok := placed[next]; ok {
				continue
			}
			switch state[next] {
			case onStack:
				for k := len(stack) - 1; k >= 0; k-- {
					if stack[k] == next {
						cycle = append([]PackageName(nil), stack[k:]...)
						return true
					}
				}
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return false
	}

	for _, n := range left {
		if state[n] == unvisited && visit(n) {
			break
		}
	}
	return rotateCycle(cycle)
}

// Profile returns the profile the graph was resolved for.
func (g *Graph) Profile() Profile {
	return g.profile
}

// Len returns the number of packages in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// Lookup returns the node for name, if the graph has one.
func (g *Graph) Lookup(name PackageName) (*ResolvedPackage, bool) {
	p, has := g.nodes[name]
	return p, has
}

// TopologicalOrder returns every node with each package after all of the
// packages it requires. Among packages whose requirements are all placed,
// the lexically smallest name comes first, which makes the order unique.
func (g *Graph) TopologicalOrder() []*ResolvedPackage {
	out := make([]*ResolvedPackage, len(g.order))
	copy(out, g.order)
	return out
}

// Direct returns the directly required packages, sorted by name.
func (g *Graph) Direct() []*ResolvedPackage {
	var out []*ResolvedPackage
	for _, p := range g.order {
		if p.direct {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// WalkPrefix visits, in name order, every package whose name begins with
// prefix. Returning true from fn stops the walk.
func (g *Graph) WalkPrefix(prefix string, fn func(*ResolvedPackage) bool) {
	g.trie.WalkPrefix(prefix, fn)
}

// Versions returns the selected version of every package.
func (g *Graph) Versions() map[PackageName]Version {
	out := make(map[PackageName]Version, len(g.nodes))
	for name, p := range g.nodes {
		out[name] = p.version
	}
	return out
}

// InputHash returns the digest of the solve inputs that produced the graph,
// as computed by HashInputs. It is nil for graphs built directly with
// NewGraph.
func (g *Graph) InputHash() []byte {
	if g.hash == nil {
		return nil
	}
	out := make([]byte, len(g.hash))
	copy(out, g.hash)
	return out
}

// nameHeap is a min-heap of package names.
type nameHeap []PackageName

func (h nameHeap) Len() int            { return len(h) }
func (h nameHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h nameHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nameHeap) Push(x interface{}) { *h = append(*h, x.(PackageName)) }
func (h *nameHeap) Pop() interface{} {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
