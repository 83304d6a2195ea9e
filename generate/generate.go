// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package generate turns a resolved package graph into build-system
// integration files.
//
// Generators form a closed set, listed in the registry below. Every
// generator renders from the graph alone, walking it in dependency order, so
// identical graphs always produce byte-identical files.
package generate

import (
	"sort"

	"github.com/cdep/cdep/gps"
)

// A Generator renders the integration files of one build system.
type Generator interface {
	// Name is the name manifests refer to the generator by.
	Name() string
	// Render produces the generator's files for g. It must not retain g or
	// depend on anything other than g.
	Render(g *gps.Graph) ([]File, error)
}

// File is one rendered file. Path is relative to the output directory.
type File struct {
	Path    string
	Content []byte
}

// Output is everything one generator rendered. It is never modified after
// the Engine returns it.
type Output struct {
	Generator string
	Files     []File
}

var registry = map[string]Generator{}

func register(g Generator) {
	registry[g.Name()] = g
}

func init() {
	register(cmakeDeps{})
	register(cmakeToolchain{})
	register(makeDeps{})
	register(jsonDeps{})
}

// Lookup returns the registered generator called name.
func Lookup(name string) (Generator, bool) {
	g, has := registry[name]
	return g, has
}

// Names returns the names of all registered generators, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
