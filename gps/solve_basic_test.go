// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"context"
	"fmt"
	"path"
	"reflect"
	"strings"
	"sync"
	"testing"
)

var fixtureProfile = Profile{
	OS:              "Linux",
	Compiler:        "gcc",
	CompilerVersion: "13",
	BuildType:       "Release",
	Arch:            "x86_64",
}

// nvSplit splits an "info" string on " " into the pair of name and
// version/constraint, and returns each individually.
//
// This is for narrow use - panics if there are less than two resulting items in
// the slice.
func nvSplit(info string) (PackageName, string) {
	s := strings.SplitN(info, " ", 2)
	if len(s) < 2 {
		panic(fmt.Sprintf("Malformed name/version info string '%s'", info))
	}

	return PackageName(s[0]), s[1]
}

// mkAtom splits the input string on a space, and uses the first two elements as
// the package name and version, respectively.
func mkAtom(info string) atom {
	name, ver := nvSplit(info)
	return atom{name: name, v: NewVersion(ver)}
}

// mkReq splits the input string on a space, and uses the first two elements
// as the package name and constraint body, respectively.
func mkReq(info string) Requirement {
	name, body := nvSplit(info)
	c, err := NewConstraint(body)
	if err != nil {
		// don't want bad test data at this level, so just panic
		panic(fmt.Sprintf("Error when converting '%s' into constraint: %s", body, err))
	}
	return Requirement{Name: name, Constraint: c}
}

// depspec is a package at one version, along with its requirements and the
// settings it supports.
type depspec struct {
	n        PackageName
	v        Version
	deps     []Requirement
	settings Settings
	nometa   bool
}

// mkDepspec creates a depspec by processing a series of strings, each of which
// contains a name and version information.
//
// The first string is broken out into the name and version of the package being
// described; subsequent strings are interpreted as requirements of that package
// at that version.
func mkDepspec(pi string, deps ...string) depspec {
	a := mkAtom(pi)
	ds := depspec{
		n: a.name,
		v: a.v,
	}

	for _, dep := range deps {
		ds.deps = append(ds.deps, mkReq(dep))
	}

	return ds
}

// only restricts the depspec to the given values of one setting.
func (ds depspec) only(setting string, values ...string) depspec {
	switch setting {
	case "os":
		ds.settings.OS = values
	case "compiler":
		ds.settings.Compiler = values
	case "build_type":
		ds.settings.BuildType = values
	case "arch":
		ds.settings.Arch = values
	default:
		panic("unknown setting " + setting)
	}
	return ds
}

// withoutMetadata keeps the version listed but makes its metadata unreadable.
func (ds depspec) withoutMetadata() depspec {
	ds.nometa = true
	return ds
}

func mklock(pairs ...string) map[PackageName]Version {
	l := make(map[PackageName]Version)
	for _, s := range pairs {
		a := mkAtom(s)
		l[a.name] = a.v
	}
	return l
}

// mksolution makes a result map from a list of "name version" strings.
func mksolution(pairs ...string) map[PackageName]string {
	m := make(map[PackageName]string)
	for _, pair := range pairs {
		a := mkAtom(pair)
		m[a.name] = a.v.String()
	}
	return m
}

// mkconflict builds an expected VersionConflictError. Each pair is
// "requirer constraint".
func mkconflict(pkg string, pairs ...string) *VersionConflictError {
	e := &VersionConflictError{Package: PackageName(pkg)}
	for _, pair := range pairs {
		name, body := nvSplit(pair)
		c, err := NewConstraint(body)
		if err != nil {
			panic(err)
		}
		e.Constraints = append(e.Constraints, ConflictingConstraint{Requirer: name, Constraint: c})
	}
	return e
}

type basicFixture struct {
	// depspecs. always treat first as root
	ds []depspec
	// results; map of name/version pairs
	r map[PackageName]string
	// max attempts the solver should need to find solution. 0 means no limit
	maxAttempts int
	// lock file simulator, if one's to be used at all
	l map[PackageName]Version
	// overrides, as "name constraint" strings
	ovr []string
	// solve failure expected, if any
	fail error
	// request up/downgrade to all packages
	changeall bool
	// individual packages to change
	changelist []PackageName
}

// depspecIndex is a PackageIndex backed by a list of depspecs.
type depspecIndex struct {
	specs []depspec
	mu    sync.Mutex
	calls map[string]int
}

func newdepspecIndex(ds []depspec) *depspecIndex {
	return &depspecIndex{
		specs: ds,
		calls: make(map[string]int),
	}
}

func (idx *depspecIndex) count(call string) {
	idx.mu.Lock()
	idx.calls[call]++
	idx.mu.Unlock()
}

func (idx *depspecIndex) callCount(call string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.calls[call]
}

func (idx *depspecIndex) ListVersions(ctx context.Context, name PackageName) ([]Version, error) {
	idx.count("list " + string(name))
	var vl []Version
	for _, ds := range idx.specs {
		if ds.n == name {
			vl = append(vl, ds.v)
		}
	}
	if len(vl) == 0 {
		return nil, ErrNotFound
	}
	return vl, nil
}

func (idx *depspecIndex) Fetch(ctx context.Context, name PackageName, v Version) (PackageMetadata, error) {
	idx.count("fetch " + string(name) + "@" + v.String())
	for _, ds := range idx.specs {
		if ds.n == name && ds.v.Equal(v) {
			if ds.nometa {
				return PackageMetadata{}, ErrNotFound
			}
			root := path.Join("/pkgs", string(name), v.String())
			return PackageMetadata{
				Name:     name,
				Version:  v,
				Requires: ds.deps,
				Settings: ds.settings,
				RootPath: root,
				CppInfo: CppInfo{
					IncludeDirs: []string{"include"},
					LibDirs:     []string{"lib"},
					Libs:        []string{string(name)},
				},
			}, nil
		}
	}
	return PackageMetadata{}, ErrNotFound
}

func (f basicFixture) params() SolveParameters {
	root := f.ds[0]
	params := SolveParameters{
		RootName:     root.n,
		Requirements: root.deps,
		Profile:      fixtureProfile,
		Lock:         f.l,
		ChangeAll:    f.changeall,
		ToChange:     f.changelist,
		Index:        newdepspecIndex(f.ds[1:]),
	}

	if len(f.ovr) > 0 {
		params.Overrides = make(map[PackageName]Constraint)
		for _, o := range f.ovr {
			r := mkReq(o)
			params.Overrides[r.Name] = r.Constraint
		}
	}
	return params
}

// checkFailure compares a solve failure against the expected one, by type and
// by the fields that identify it.
func checkFailure(t *testing.T, want, got error) {
	t.Helper()

	if reflect.TypeOf(want) != reflect.TypeOf(got) {
		t.Fatalf("Failure mismatch:\n\t(GOT): %T %s\n\t(WNT): %T %s", got, got, want, want)
	}

	switch w := want.(type) {
	case *VersionConflictError:
		g := got.(*VersionConflictError)
		if w.Package != g.Package {
			t.Errorf("expected conflict on %s, got %s", w.Package, g.Package)
		}
		if len(w.Constraints) != len(g.Constraints) {
			t.Fatalf("expected %d conflicting constraints, got %d:\n%s", len(w.Constraints), len(g.Constraints), g)
		}
		for k, wc := range w.Constraints {
			gc := g.Constraints[k]
			if wc.Requirer != gc.Requirer || wc.Constraint.String() != gc.Constraint.String() {
				t.Errorf("conflicting constraint %d: expected %q from %s, got %q from %s",
					k, wc.Constraint, wc.Requirer, gc.Constraint, gc.Requirer)
			}
		}
	case *CyclicDependencyError:
		g := got.(*CyclicDependencyError)
		if !reflect.DeepEqual(w.Path, g.Path) {
			t.Errorf("expected cycle %v, got %v", w.Path, g.Path)
		}
	case *PackageNotFoundError:
		g := got.(*PackageNotFoundError)
		if w.Package != g.Package || !reflect.DeepEqual(w.Requirers, g.Requirers) {
			t.Errorf("expected %s, got %s", w, g)
		}
	case *ProfileMismatchError:
		g := got.(*ProfileMismatchError)
		if w.Package != g.Package || w.Setting != g.Setting {
			t.Errorf("expected %s, got %s", w, g)
		}
		if len(w.Versions) != len(g.Versions) {
			t.Fatalf("expected %d rejected versions, got %d", len(w.Versions), len(g.Versions))
		}
		for k := range w.Versions {
			if !w.Versions[k].Equal(g.Versions[k]) {
				t.Errorf("rejected version %d: expected %s, got %s", k, w.Versions[k], g.Versions[k])
			}
		}
	}
}

var basicFixtures = map[string]basicFixture{
	// basic fixtures
	"no dependencies": {
		ds: []depspec{
			mkDepspec("root 0.0.0"),
		},
		r: mksolution(),
	},
	"simple dependency tree": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "a 1.0.0", "b 1.0.0"),
			mkDepspec("a 1.0.0", "aa 1.0.0", "ab 1.0.0"),
			mkDepspec("aa 1.0.0"),
			mkDepspec("ab 1.0.0"),
			mkDepspec("b 1.0.0", "ba 1.0.0", "bb 1.0.0"),
			mkDepspec("ba 1.0.0"),
			mkDepspec("bb 1.0.0"),
		},
		r: mksolution(
			"a 1.0.0",
			"aa 1.0.0",
			"ab 1.0.0",
			"b 1.0.0",
			"ba 1.0.0",
			"bb 1.0.0",
		),
	},
	"shared dependency with overlapping constraints": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "a 1.0.0", "b 1.0.0"),
			mkDepspec("a 1.0.0", "shared >=2.0.0, <4.0.0"),
			mkDepspec("b 1.0.0", "shared >=3.0.0, <5.0.0"),
			mkDepspec("shared 2.0.0"),
			mkDepspec("shared 3.0.0"),
			mkDepspec("shared 3.6.9"),
			mkDepspec("shared 4.0.0"),
			mkDepspec("shared 5.0.0"),
		},
		r: mksolution(
			"a 1.0.0",
			"b 1.0.0",
			"shared 3.6.9",
		),
	},
	"shared dependency where dependent version in turn affects other dependencies": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo <=1.0.2", "bar 1.0.0"),
			mkDepspec("foo 1.0.0"),
			mkDepspec("foo 1.0.1", "bang 1.0.0"),
			mkDepspec("foo 1.0.2", "whoop 1.0.0"),
			mkDepspec("foo 1.0.3", "zoop 1.0.0"),
			mkDepspec("bar 1.0.0", "foo <=1.0.1"),
			mkDepspec("bang 1.0.0"),
			mkDepspec("whoop 1.0.0"),
			mkDepspec("zoop 1.0.0"),
		},
		r: mksolution(
			"foo 1.0.1",
			"bar 1.0.0",
			"bang 1.0.0",
		),
	},
	"removed dependency": {
		ds: []depspec{
			mkDepspec("root 1.0.0", "foo 1.0.0", "bar *"),
			mkDepspec("foo 1.0.0"),
			mkDepspec("foo 2.0.0"),
			mkDepspec("bar 1.0.0"),
			mkDepspec("bar 2.0.0", "baz 1.0.0"),
			mkDepspec("baz 1.0.0", "foo 2.0.0"),
		},
		r: mksolution(
			"foo 1.0.0",
			"bar 1.0.0",
		),
		maxAttempts: 2,
	},
	"highest version wins": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo *"),
			mkDepspec("foo 1.0.0"),
			mkDepspec("foo 1.2.0"),
			mkDepspec("foo 1.10.0"),
		},
		r: mksolution(
			"foo 1.10.0",
		),
	},
	"bracketed range": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "zlib [>=1.2 <1.3]"),
			mkDepspec("zlib 1.2.11"),
			mkDepspec("zlib 1.2.13"),
			mkDepspec("zlib 1.3.1"),
		},
		r: mksolution(
			"zlib 1.2.13",
		),
	},
	// fixtures with locks
	"with compatible locked dependency": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo *"),
			mkDepspec("foo 1.0.0", "bar 1.0.0"),
			mkDepspec("foo 1.0.1", "bar 1.0.1"),
			mkDepspec("foo 1.0.2", "bar 1.0.2"),
			mkDepspec("bar 1.0.0"),
			mkDepspec("bar 1.0.1"),
			mkDepspec("bar 1.0.2"),
		},
		l: mklock(
			"foo 1.0.1",
		),
		r: mksolution(
			"foo 1.0.1",
			"bar 1.0.1",
		),
	},
	"upgrade through lock": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo *"),
			mkDepspec("foo 1.0.0", "bar 1.0.0"),
			mkDepspec("foo 1.0.1", "bar 1.0.1"),
			mkDepspec("foo 1.0.2", "bar 1.0.2"),
			mkDepspec("bar 1.0.0"),
			mkDepspec("bar 1.0.1"),
			mkDepspec("bar 1.0.2"),
		},
		l: mklock(
			"foo 1.0.1",
		),
		r: mksolution(
			"foo 1.0.2",
			"bar 1.0.2",
		),
		changeall: true,
	},
	"update one with only one": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo *", "bar *"),
			mkDepspec("foo 1.0.0"),
			mkDepspec("foo 1.0.1"),
			mkDepspec("bar 1.0.0"),
			mkDepspec("bar 1.0.1"),
		},
		l: mklock(
			"foo 1.0.0",
			"bar 1.0.0",
		),
		r: mksolution(
			"foo 1.0.1",
			"bar 1.0.0",
		),
		changelist: []PackageName{"foo"},
	},
	"with incompatible locked dependency": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo >1.0.1"),
			mkDepspec("foo 1.0.0", "bar 1.0.0"),
			mkDepspec("foo 1.0.1", "bar 1.0.1"),
			mkDepspec("foo 1.0.2", "bar 1.0.2"),
			mkDepspec("bar 1.0.0"),
			mkDepspec("bar 1.0.1"),
			mkDepspec("bar 1.0.2"),
		},
		l: mklock(
			"foo 1.0.1",
		),
		r: mksolution(
			"foo 1.0.2",
			"bar 1.0.2",
		),
	},
	"lock names a version the index no longer has": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo *"),
			mkDepspec("foo 1.0.0"),
			mkDepspec("foo 1.1.0"),
		},
		l: mklock(
			"foo 1.0.5",
		),
		r: mksolution(
			"foo 1.1.0",
		),
	},
	// overrides
	"override replaces every requirer's constraint": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "a *", "b *"),
			mkDepspec("a 1.0.0", "c 1.0.0"),
			mkDepspec("b 1.0.0", "c 2.0.0"),
			mkDepspec("c 1.0.0"),
			mkDepspec("c 2.0.0"),
		},
		ovr: []string{"c 2.0.0"},
		r: mksolution(
			"a 1.0.0",
			"b 1.0.0",
			"c 2.0.0",
		),
	},
	"override does not add a requirement": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "a *"),
			mkDepspec("a 1.0.0"),
			mkDepspec("c 1.0.0"),
		},
		ovr: []string{"c 1.0.0"},
		r: mksolution(
			"a 1.0.0",
		),
	},
	// profile fixtures
	"falls back to a version supporting the profile": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo *"),
			mkDepspec("foo 2.0.0").only("os", "Windows"),
			mkDepspec("foo 1.0.0").only("os", "Linux", "Macos"),
		},
		r: mksolution(
			"foo 1.0.0",
		),
	},
	"settings are matched case-insensitively": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo *"),
			mkDepspec("foo 1.0.0").only("arch", "X86_64"),
		},
		r: mksolution(
			"foo 1.0.0",
		),
	},
	"no version supports the profile": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo *"),
			mkDepspec("foo 2.0.0").only("compiler", "msvc"),
			mkDepspec("foo 1.0.0").only("compiler", "msvc", "clang"),
		},
		fail: &ProfileMismatchError{
			Package:  "foo",
			Setting:  "compiler",
			Versions: []Version{NewVersion("2.0.0"), NewVersion("1.0.0")},
		},
	},
	"profile rejects the only admitted version": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "winonly ==1.0.0"),
			mkDepspec("winonly 2.0.0"),
			mkDepspec("winonly 1.0.0").only("os", "Windows"),
		},
		fail: &ProfileMismatchError{
			Package:  "winonly",
			Setting:  "os",
			Versions: []Version{NewVersion("1.0.0")},
		},
	},
	// failure fixtures
	"direct requirements on two exact versions": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "x ==1.0.0", "x ==2.0.0"),
			mkDepspec("x 1.0.0"),
			mkDepspec("x 2.0.0"),
		},
		fail: mkconflict("x",
			"root ==1.0.0",
			"root ==2.0.0",
		),
	},
	"no version that matches requirement": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo >=1.0.0, <2.0.0"),
			mkDepspec("foo 2.0.0"),
			mkDepspec("foo 2.1.3"),
		},
		fail: mkconflict("foo",
			"root >=1.0.0, <2.0.0",
		),
	},
	"disjoint constraints": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo 1.0.0", "bar 1.0.0"),
			mkDepspec("foo 1.0.0", "shared <=2.0.0"),
			mkDepspec("bar 1.0.0", "shared >3.0.0"),
			mkDepspec("shared 2.0.0"),
			mkDepspec("shared 4.0.0"),
		},
		fail: mkconflict("shared",
			"bar >3.0.0",
			"foo <=2.0.0",
		),
	},
	"two-package cycle": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "a *"),
			mkDepspec("a 1.0.0", "b *"),
			mkDepspec("b 1.0.0", "a *"),
		},
		fail: &CyclicDependencyError{Path: []PackageName{"a", "b"}},
	},
	"three-package cycle entered midway": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "c *"),
			mkDepspec("c 1.0.0", "a *"),
			mkDepspec("a 1.0.0", "b *"),
			mkDepspec("b 1.0.0", "c *"),
		},
		fail: &CyclicDependencyError{Path: []PackageName{"a", "b", "c"}},
	},
	"package requires itself": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "a *"),
			mkDepspec("a 1.0.0", "a *"),
		},
		fail: &CyclicDependencyError{Path: []PackageName{"a"}},
	},
	"missing direct requirement": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo 1.0.0"),
		},
		fail: &PackageNotFoundError{Package: "foo", Requirers: []PackageName{"root"}},
	},
	"pinned version without metadata": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo ==1.0.0"),
			mkDepspec("foo 2.0.0"),
			mkDepspec("foo 1.0.0").withoutMetadata(),
		},
		fail: &PackageNotFoundError{Package: "foo", Requirers: []PackageName{"root"}},
	},
	"missing transitive requirement": {
		ds: []depspec{
			mkDepspec("root 0.0.0", "foo *"),
			mkDepspec("foo 1.0.0", "gone *"),
		},
		fail: &PackageNotFoundError{Package: "gone", Requirers: []PackageName{"foo"}},
	},
}
