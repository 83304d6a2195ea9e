// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package generate

import (
	"encoding/json"

	"github.com/cdep/cdep/gps"
	"github.com/pkg/errors"
)

// JSONDepsFile is the file name of the JSONDeps generator.
const JSONDepsFile = "cdep-deps.json"

// jsonDeps writes the whole graph, in dependency order, for tools that
// would rather not parse a build system's language.
type jsonDeps struct{}

func (jsonDeps) Name() string { return "JSONDeps" }

type jsonGraph struct {
	Profile  jsonProfile   `json:"profile"`
	Packages []jsonPackage `json:"packages"`
}

type jsonProfile struct {
	OS              string `json:"os"`
	Compiler        string `json:"compiler"`
	CompilerVersion string `json:"compiler_version"`
	BuildType       string `json:"build_type"`
	Arch            string `json:"arch"`
}

type jsonPackage struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Direct      bool     `json:"direct"`
	Root        string   `json:"root"`
	Requires    []string `json:"requires"`
	IncludeDirs []string `json:"include_dirs"`
	LibDirs     []string `json:"lib_dirs"`
	BinDirs     []string `json:"bin_dirs"`
	Libs        []string `json:"libs"`
	SystemLibs  []string `json:"system_libs"`
	Defines     []string `json:"defines"`
	CFlags      []string `json:"cflags"`
	CXXFlags    []string `json:"cxxflags"`
}

func (jsonDeps) Render(g *gps.Graph) ([]File, error) {
	prof := g.Profile()
	out := jsonGraph{
		Profile: jsonProfile{
			OS:              prof.OS,
			Compiler:        prof.Compiler,
			CompilerVersion: prof.CompilerVersion,
			BuildType:       prof.BuildType,
			Arch:            prof.Arch,
		},
		Packages: []jsonPackage{},
	}

	for _, p := range collect(g) {
		out.Packages = append(out.Packages, jsonPackage{
			Name:        p.name,
			Version:     p.version,
			Direct:      p.direct,
			Root:        p.root,
			Requires:    nonNil(p.requires),
			IncludeDirs: nonNil(p.includeDirs),
			LibDirs:     nonNil(p.libDirs),
			BinDirs:     nonNil(p.binDirs),
			Libs:        nonNil(p.libs),
			SystemLibs:  nonNil(p.systemLibs),
			Defines:     nonNil(p.defines),
			CFlags:      nonNil(p.cflags),
			CXXFlags:    nonNil(p.cxxflags),
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode graph")
	}
	return []File{{Path: JSONDepsFile, Content: append(b, '\n')}}, nil
}

// nonNil keeps empty lists as [] rather than null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
