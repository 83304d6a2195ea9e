// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"reflect"
	"testing"
)

func mkmeta(info string, deps ...string) PackageMetadata {
	a := mkAtom(info)
	m := PackageMetadata{Name: a.name, Version: a.v}
	for _, d := range deps {
		m.Requires = append(m.Requires, mkReq(d))
	}
	return m
}

func orderNames(g *Graph) []PackageName {
	var names []PackageName
	for _, p := range g.TopologicalOrder() {
		names = append(names, p.Name())
	}
	return names
}

func TestGraphTopologicalOrder(t *testing.T) {
	metas := []PackageMetadata{
		mkmeta("app-util 1.0.0", "zlib *", "fmt *"),
		mkmeta("zlib 1.3.0"),
		mkmeta("fmt 10.0.0"),
		mkmeta("boost 1.83.0", "zlib *"),
		mkmeta("antlr4 4.13.1", "antlr4-cppruntime *"),
		mkmeta("antlr4-cppruntime 4.13.1"),
	}
	direct := map[PackageName]bool{"app-util": true, "boost": true, "antlr4": true}

	g, err := NewGraph(fixtureProfile, metas, direct)
	if err != nil {
		t.Fatal(err)
	}

	want := []PackageName{"antlr4-cppruntime", "antlr4", "fmt", "zlib", "app-util", "boost"}
	if got := orderNames(g); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected topological order:\n\t(GOT): %v\n\t(WNT): %v", got, want)
	}

	// Input order must not matter.
	rev := make([]PackageMetadata, len(metas))
	for k, m := range metas {
		rev[len(metas)-1-k] = m
	}
	g2, err := NewGraph(fixtureProfile, rev, direct)
	if err != nil {
		t.Fatal(err)
	}
	if got := orderNames(g2); !reflect.DeepEqual(got, want) {
		t.Errorf("order changed with input order:\n\t(GOT): %v\n\t(WNT): %v", got, want)
	}

	// Every node comes after its deps.
	pos := make(map[PackageName]int)
	for k, p := range g.TopologicalOrder() {
		pos[p.Name()] = k
	}
	for _, p := range g.TopologicalOrder() {
		for _, d := range p.Deps() {
			if pos[d.Name()] >= pos[p.Name()] {
				t.Errorf("%s placed before its dependency %s", p.Name(), d.Name())
			}
		}
	}
}

func TestGraphLookupAndDirect(t *testing.T) {
	g, err := NewGraph(fixtureProfile, []PackageMetadata{
		mkmeta("b 1.0.0", "a *", "a >=1.0"),
		mkmeta("a 2.0.0"),
	}, map[PackageName]bool{"b": true})
	if err != nil {
		t.Fatal(err)
	}

	if g.Len() != 2 {
		t.Fatalf("expected 2 nodes, got %v", g.Len())
	}

	b, has := g.Lookup("b")
	if !has {
		t.Fatal("expected to find b")
	}
	if !b.Direct() {
		t.Error("expected b to be direct")
	}
	if deps := b.Deps(); len(deps) != 1 || deps[0].Name() != "a" {
		t.Errorf("expected duplicate requirements to collapse into one edge, got %v", deps)
	}

	a, _ := g.Lookup("a")
	if a.Direct() {
		t.Error("expected a to be transitive")
	}
	if b.Deps()[0] != a {
		t.Error("expected b's edge to point at the graph's node for a")
	}
	if _, has := g.Lookup("c"); has {
		t.Error("did not expect to find c")
	}

	if d := g.Direct(); len(d) != 1 || d[0].Name() != "b" {
		t.Errorf("unexpected direct set %v", d)
	}

	vs := g.Versions()
	if !vs["a"].Equal(NewVersion("2.0.0")) || !vs["b"].Equal(NewVersion("1.0.0")) {
		t.Errorf("unexpected versions %v", vs)
	}
	if g.InputHash() != nil {
		t.Error("graphs built directly should have no input hash")
	}
}

func TestGraphRejectsBadInput(t *testing.T) {
	_, err := NewGraph(fixtureProfile, []PackageMetadata{
		mkmeta("a 1.0.0", "b *"),
		mkmeta("b 1.0.0", "c *"),
		mkmeta("c 1.0.0", "a *"),
		mkmeta("d 1.0.0"),
	}, nil)
	cerr, ok := err.(*CyclicDependencyError)
	if !ok {
		t.Fatalf("expected *CyclicDependencyError, got %T: %v", err, err)
	}
	if want := []PackageName{"a", "b", "c"}; !reflect.DeepEqual(cerr.Path, want) {
		t.Errorf("expected cycle %v, got %v", want, cerr.Path)
	}

	if _, err := NewGraph(fixtureProfile, []PackageMetadata{
		mkmeta("a 1.0.0"),
		mkmeta("a 2.0.0"),
	}, nil); err == nil {
		t.Error("expected duplicate package names to be rejected")
	}

	if _, err := NewGraph(fixtureProfile, []PackageMetadata{
		mkmeta("a 1.0.0", "missing *"),
	}, nil); err == nil {
		t.Error("expected dangling requirement to be rejected")
	}
}

func TestGraphWalkPrefix(t *testing.T) {
	g, err := NewGraph(fixtureProfile, []PackageMetadata{
		mkmeta("antlr4 4.13.1", "antlr4-cppruntime *"),
		mkmeta("antlr4-cppruntime 4.13.1"),
		mkmeta("zlib 1.3.0"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var got []PackageName
	g.WalkPrefix("antlr", func(p *ResolvedPackage) bool {
		got = append(got, p.Name())
		return false
	})
	want := []PackageName{"antlr4", "antlr4-cppruntime"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected walk:\n\t(GOT): %v\n\t(WNT): %v", got, want)
	}
}
