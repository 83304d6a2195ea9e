// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package generate

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/cdep/cdep/gps"
)

const header = "Generated by cdep. Do not edit."

// Directories a package exports when its recipe doesn't say.
var (
	defaultIncludeDirs = []string{"include"}
	defaultLibDirs     = []string{"lib"}
	defaultBinDirs     = []string{"bin"}
)

// pkgInfo is the flattened, generator-neutral view of one graph node.
// Directories are absolute and use forward slashes.
type pkgInfo struct {
	name, version string
	id            string
	direct        bool
	root          string
	requires      []string

	includeDirs, libDirs, binDirs []string
	libs, systemLibs              []string
	defines, cflags, cxxflags     []string
}

// collect flattens g in dependency order.
func collect(g *gps.Graph) []pkgInfo {
	order := g.TopologicalOrder()
	out := make([]pkgInfo, 0, len(order))
	for _, p := range order {
		ci := p.CppInfo()
		pi := pkgInfo{
			name:        string(p.Name()),
			version:     p.Version().String(),
			direct:      p.Direct(),
			root:        filepath.ToSlash(p.RootPath()),
			includeDirs: resolveDirs(p.RootPath(), ci.IncludeDirs, defaultIncludeDirs),
			libDirs:     resolveDirs(p.RootPath(), ci.LibDirs, defaultLibDirs),
			binDirs:     resolveDirs(p.RootPath(), ci.BinDirs, defaultBinDirs),
			libs:        ci.Libs,
			systemLibs:  ci.SystemLibs,
			defines:     ci.Defines,
			cflags:      ci.CFlags,
			cxxflags:    ci.CXXFlags,
		}
		for _, d := range p.Deps() {
			pi.requires = append(pi.requires, string(d.Name()))
		}
		out = append(out, pi)
	}
	assignIDs(out)
	return out
}

// assignIDs gives every package a distinct identifier. Names that map to the
// same identifier are numbered in name order, the first keeping the plain form.
func assignIDs(pkgs []pkgInfo) {
	byName := make([]*pkgInfo, len(pkgs))
	for i := range pkgs {
		byName[i] = &pkgs[i]
	}
	sort.Slice(byName, func(i, j int) bool { return byName[i].name < byName[j].name })

	taken := make(map[string]bool, len(pkgs))
	for _, p := range byName {
		base := identifier(p.name)
		id := base
		for n := 2; taken[id]; n++ {
			id = base + "_" + strconv.Itoa(n)
		}
		taken[id] = true
		p.id = id
	}
}

func resolveDirs(root string, dirs, def []string) []string {
	if len(dirs) == 0 {
		dirs = def
	}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(root, d)
		}
		out = append(out, filepath.ToSlash(d))
	}
	return out
}

// identifier upper-cases name and replaces everything but letters and
// digits with underscores: "antlr4-cppruntime" becomes "ANTLR4_CPPRUNTIME".
func identifier(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, name)
}
