// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"hash/fnv"
)

// graphviz accumulates packages and renders them as a dot digraph. Node IDs
// are FNV-32a hashes of package names.
type graphviz struct {
	nodes []gvnode
	ids   map[string]uint32
}

type gvnode struct {
	pkg      string
	version  string
	children []string
}

func (g graphviz) New() *graphviz {
	return &graphviz{ids: make(map[string]uint32)}
}

func (g *graphviz) createNode(pkg, version string, children []string) {
	n := gvnode{pkg: pkg, version: version, children: children}
	g.ids[pkg] = n.hash()
	g.nodes = append(g.nodes, n)
}

// output renders nodes in insertion order, then one edge per distinct
// parent and child pair. Edges to packages that were never added are left
// out.
func (g *graphviz) output() bytes.Buffer {
	var b bytes.Buffer
	b.WriteString("digraph {\n\tnode [shape=box];\n")
	for _, n := range g.nodes {
		fmt.Fprintf(&b, "\t%d [label=%q];\n", g.ids[n.pkg], n.label())
	}

	seen := make(map[[2]uint32]bool)
	for _, n := range g.nodes {
		from := g.ids[n.pkg]
		for _, c := range n.children {
			to, ok := g.ids[c]
			if !ok || seen[[2]uint32{from, to}] {
				continue
			}
			seen[[2]uint32{from, to}] = true
			fmt.Fprintf(&b, "\t%d -> %d;\n", from, to)
		}
	}
	b.WriteString("}\n")
	return b
}

func (n gvnode) hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(n.pkg))
	return h.Sum32()
}

// label is the package name, and its version on a second line.
func (n gvnode) label() string {
	if n.version == "" {
		return n.pkg
	}
	return n.pkg + "\n" + n.version
}
