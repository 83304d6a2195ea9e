// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// PackageName is the name of a package as published in a package index, e.g.
// "antlr4-cppruntime".
type PackageName string

var validName = regexp.MustCompile(`^[a-z0-9_][a-z0-9_+.-]*$`)

// Requirement is a single edge of the requirement graph: a package name and
// the versions of it that the requirer is willing to accept.
type Requirement struct {
	Name       PackageName
	Constraint Constraint
	// Direct is true when the requirement was declared by the consumer's
	// manifest rather than by a dependency.
	Direct bool
}

func (r Requirement) String() string {
	if IsAny(r.Constraint) {
		return string(r.Name)
	}
	return fmt.Sprintf("%s/%s", r.Name, r.Constraint)
}

// ParseRequirement parses a "name/version" reference, as written in the
// requires list of a manifest. The version part may be an exact version, a
// bracketed range ("zlib/[>=1.2 <2]"), or omitted to accept any version. A
// trailing "@user/channel" qualifier is accepted and ignored.
func ParseRequirement(ref string) (Requirement, error) {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, "@"); i != -1 {
		ref = ref[:i]
	}

	name, body := ref, ""
	if i := strings.Index(ref, "/"); i != -1 {
		name, body = ref[:i], ref[i+1:]
	}

	if name == "" {
		return Requirement{}, errors.Errorf("requirement %q has an empty package name", ref)
	}
	if !validName.MatchString(name) {
		return Requirement{}, errors.Errorf("requirement %q has an invalid package name %q", ref, name)
	}

	c, err := NewConstraint(body)
	if err != nil {
		return Requirement{}, errors.Wrapf(err, "requirement %q", ref)
	}
	return Requirement{Name: PackageName(name), Constraint: c}, nil
}

// Profile identifies the target build environment. It is immutable for the
// duration of one resolution.
type Profile struct {
	OS              string
	Compiler        string
	CompilerVersion string
	BuildType       string
	Arch            string
}

func (p Profile) String() string {
	return fmt.Sprintf("os=%s compiler=%s compiler.version=%s build_type=%s arch=%s",
		p.OS, p.Compiler, p.CompilerVersion, p.BuildType, p.Arch)
}

// Validate checks that every setting the resolver consults is present.
func (p Profile) Validate() error {
	var missing []string
	if p.OS == "" {
		missing = append(missing, "os")
	}
	if p.Compiler == "" {
		missing = append(missing, "compiler")
	}
	if p.BuildType == "" {
		missing = append(missing, "build_type")
	}
	if p.Arch == "" {
		missing = append(missing, "arch")
	}
	if len(missing) > 0 {
		return errors.Errorf("profile is missing settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Settings lists the values of each profile setting a package supports. An
// empty list means the package places no restriction on that setting.
type Settings struct {
	OS        []string
	Compiler  []string
	BuildType []string
	Arch      []string
}

// Supports reports whether the settings admit the profile. When they do not,
// the name of the first offending setting is returned.
func (s Settings) Supports(p Profile) (bool, string) {
	checks := []struct {
		key     string
		allowed []string
		have    string
	}{
		{"os", s.OS, p.OS},
		{"compiler", s.Compiler, p.Compiler},
		{"build_type", s.BuildType, p.BuildType},
		{"arch", s.Arch, p.Arch},
	}
	for _, c := range checks {
		if len(c.allowed) == 0 {
			continue
		}
		var ok bool
		for _, a := range c.allowed {
			if strings.EqualFold(a, c.have) {
				ok = true
				break
			}
		}
		if !ok {
			return false, c.key
		}
	}
	return true, ""
}

// CppInfo describes how a consumer builds against a package. Directories are
// relative to the package's root path unless absolute.
type CppInfo struct {
	IncludeDirs []string
	LibDirs     []string
	BinDirs     []string
	Libs        []string
	SystemLibs  []string
	Defines     []string
	CFlags      []string
	CXXFlags    []string
}

// PackageMetadata is what the package index knows about one version of one
// package.
type PackageMetadata struct {
	Name     PackageName
	Version  Version
	Requires []Requirement
	Settings Settings
	// RootPath is where the package's files live on disk, as reported by the
	// index.
	RootPath string
	CppInfo  CppInfo
}

// atom is a package at a specific version.
type atom struct {
	name PackageName
	v    Version
}

func (a atom) String() string {
	if a.v.IsZero() {
		return string(a.name)
	}
	return fmt.Sprintf("%s@%s", a.name, a.v)
}

func (a atom) isNil() bool {
	return a.name == "" && a.v.IsZero()
}

// dependency is a requirement along with the atom that declared it.
type dependency struct {
	depender atom
	dep      Requirement
}

type sortedRequirements []Requirement

func (s sortedRequirements) Len() int           { return len(s) }
func (s sortedRequirements) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s sortedRequirements) Less(i, j int) bool { return s[i].Name < s[j].Name }

func sortRequirements(rl []Requirement) []Requirement {
	out := make([]Requirement, len(rl))
	copy(out, rl)
	sort.Stable(sortedRequirements(out))
	return out
}
