// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index provides implementations of gps.PackageIndex: an in-memory
// index, a directory of package recipes, a persistent bolt cache in front of
// another index, and a wrapper that retries transient failures.
package index

import (
	"bytes"

	"github.com/cdep/cdep/gps"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// rawPackage is the on-disk form of one version of a package, shared by the
// TOML and YAML recipe formats and the bolt cache.
type rawPackage struct {
	Name     string      `toml:"name" yaml:"name"`
	Version  string      `toml:"version" yaml:"version"`
	Root     string      `toml:"root,omitempty" yaml:"root,omitempty"`
	Requires []string    `toml:"requires,omitempty" yaml:"requires,omitempty"`
	Settings rawSettings `toml:"settings,omitempty" yaml:"settings,omitempty"`
	CppInfo  rawCppInfo  `toml:"cpp_info,omitempty" yaml:"cpp_info,omitempty"`
}

type rawSettings struct {
	OS        []string `toml:"os,omitempty" yaml:"os,omitempty"`
	Compiler  []string `toml:"compiler,omitempty" yaml:"compiler,omitempty"`
	BuildType []string `toml:"build_type,omitempty" yaml:"build_type,omitempty"`
	Arch      []string `toml:"arch,omitempty" yaml:"arch,omitempty"`
}

type rawCppInfo struct {
	IncludeDirs []string `toml:"includedirs,omitempty" yaml:"includedirs,omitempty"`
	LibDirs     []string `toml:"libdirs,omitempty" yaml:"libdirs,omitempty"`
	BinDirs     []string `toml:"bindirs,omitempty" yaml:"bindirs,omitempty"`
	Libs        []string `toml:"libs,omitempty" yaml:"libs,omitempty"`
	SystemLibs  []string `toml:"system_libs,omitempty" yaml:"system_libs,omitempty"`
	Defines     []string `toml:"defines,omitempty" yaml:"defines,omitempty"`
	CFlags      []string `toml:"cflags,omitempty" yaml:"cflags,omitempty"`
	CXXFlags    []string `toml:"cxxflags,omitempty" yaml:"cxxflags,omitempty"`
}

// toMetadata converts the raw form into gps.PackageMetadata, parsing each
// requirement reference.
func (raw rawPackage) toMetadata() (gps.PackageMetadata, error) {
	m := gps.PackageMetadata{
		Name:     gps.PackageName(raw.Name),
		Version:  gps.NewVersion(raw.Version),
		RootPath: raw.Root,
		Settings: gps.Settings{
			OS:        raw.Settings.OS,
			Compiler:  raw.Settings.Compiler,
			BuildType: raw.Settings.BuildType,
			Arch:      raw.Settings.Arch,
		},
		CppInfo: gps.CppInfo{
			IncludeDirs: raw.CppInfo.IncludeDirs,
			LibDirs:     raw.CppInfo.LibDirs,
			BinDirs:     raw.CppInfo.BinDirs,
			Libs:        raw.CppInfo.Libs,
			SystemLibs:  raw.CppInfo.SystemLibs,
			Defines:     raw.CppInfo.Defines,
			CFlags:      raw.CppInfo.CFlags,
			CXXFlags:    raw.CppInfo.CXXFlags,
		},
	}

	for _, ref := range raw.Requires {
		r, err := gps.ParseRequirement(ref)
		if err != nil {
			return gps.PackageMetadata{}, errors.Wrapf(err, "%s %s", raw.Name, raw.Version)
		}
		m.Requires = append(m.Requires, r)
	}

	return m, nil
}

func toRaw(m gps.PackageMetadata) rawPackage {
	raw := rawPackage{
		Name:    string(m.Name),
		Version: m.Version.String(),
		Root:    m.RootPath,
		Settings: rawSettings{
			OS:        m.Settings.OS,
			Compiler:  m.Settings.Compiler,
			BuildType: m.Settings.BuildType,
			Arch:      m.Settings.Arch,
		},
		CppInfo: rawCppInfo{
			IncludeDirs: m.CppInfo.IncludeDirs,
			LibDirs:     m.CppInfo.LibDirs,
			BinDirs:     m.CppInfo.BinDirs,
			Libs:        m.CppInfo.Libs,
			SystemLibs:  m.CppInfo.SystemLibs,
			Defines:     m.CppInfo.Defines,
			CFlags:      m.CppInfo.CFlags,
			CXXFlags:    m.CppInfo.CXXFlags,
		},
	}
	for _, r := range m.Requires {
		raw.Requires = append(raw.Requires, r.String())
	}
	return raw
}

// readTOMLPackage parses a package recipe in TOML form.
func readTOMLPackage(b []byte) (rawPackage, error) {
	raw := rawPackage{}
	tree, err := toml.LoadReader(bytes.NewReader(b))
	if err != nil {
		return raw, errors.Wrap(err, "unable to parse the package as TOML")
	}
	if err := tree.Unmarshal(&raw); err != nil {
		return raw, errors.Wrap(err, "unable to map the package TOML")
	}
	return raw, nil
}

// marshalTOMLPackage serializes metadata into the TOML recipe form.
func marshalTOMLPackage(m gps.PackageMetadata) ([]byte, error) {
	result, err := toml.Marshal(toRaw(m))
	return result, errors.Wrap(err, "unable to marshal package to TOML")
}
