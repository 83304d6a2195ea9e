// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestHashInputs(t *testing.T) {
	fix := basicFixtures["shared dependency with overlapping constraints"]
	reqs := fix.ds[0].deps

	dig := HashInputs(reqs, nil, fixtureProfile)

	var buf bytes.Buffer
	elems := []string{
		hhConstraints,
		"a",
		"1.0.0",
		"b",
		"1.0.0",
		hhOverrides,
		hhProfile,
		"Linux",
		"gcc",
		"13",
		"Release",
		"x86_64",
		hhAnalyzer,
		"gps-cdep",
		"1",
	}
	for _, v := range elems {
		buf.WriteString(v)
		buf.WriteByte(0)
	}
	correct := sha256.Sum256(buf.Bytes())

	if !bytes.Equal(dig, correct[:]) {
		t.Errorf("Hashes are not equal:\n\t(GOT): %x\n\t(WNT): %x", dig, correct)
	}
}

func TestHashInputsOrderIndependent(t *testing.T) {
	a, b := mkReq("a 1.0.0"), mkReq("b >=2.0")

	h1 := HashInputs([]Requirement{a, b}, nil, fixtureProfile)
	h2 := HashInputs([]Requirement{b, a}, nil, fixtureProfile)
	if !bytes.Equal(h1, h2) {
		t.Error("requirement order should not change the hash")
	}
}

func TestHashInputsSensitivity(t *testing.T) {
	reqs := []Requirement{mkReq("a 1.0.0")}
	base := HashInputs(reqs, nil, fixtureProfile)

	debug := fixtureProfile
	debug.BuildType = "Debug"

	variants := map[string][]byte{
		"constraint": HashInputs([]Requirement{mkReq("a 1.0.1")}, nil, fixtureProfile),
		"override":   HashInputs(reqs, map[PackageName]Constraint{"a": mkc("2.0.0")}, fixtureProfile),
		"profile":    HashInputs(reqs, nil, debug),
	}
	for name, h := range variants {
		if bytes.Equal(base, h) {
			t.Errorf("changing the %s should change the hash", name)
		}
	}
}
