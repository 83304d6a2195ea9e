// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cdep

import (
	"encoding/hex"
	"reflect"
	"strings"
	"testing"

	"github.com/cdep/cdep/gps"
)

const lg = `memo = "2252a285ab27944a4d7adcba8dbd03980f59ba652f12db39fa93b927c345593e"

[[package]]
  name = "antlr4-cppruntime"
  version = "4.13.1"

[[package]]
  name = "antlr4"
  version = "4.13.1"
  direct = true
`

func TestReadLock(t *testing.T) {
	l, err := readLock(strings.NewReader(lg))
	if err != nil {
		t.Fatalf("Should have read Lock correctly, but got err %q", err)
	}

	b, _ := hex.DecodeString("2252a285ab27944a4d7adcba8dbd03980f59ba652f12db39fa93b927c345593e")
	want := &Lock{
		Memo: b,
		P: []LockedPackage{
			{Name: "antlr4", Version: gps.NewVersion("4.13.1"), Direct: true},
			{Name: "antlr4-cppruntime", Version: gps.NewVersion("4.13.1")},
		},
	}
	if !locksAreEquivalent(l, want) {
		t.Errorf("Valid lock did not parse as expected:\n\t(GOT): %+v\n\t(WNT): %+v", l, want)
	}

	vers := l.Versions()
	if len(vers) != 2 || vers["antlr4"].String() != "4.13.1" {
		t.Errorf("unexpected versions %v", vers)
	}
}

func TestReadLockErrors(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"bad memo", "memo = \"xyz\"\n", "invalid hash digest"},
		{"no version", "memo = \"\"\n[[package]]\nname = \"zlib\"\n", "specifies no version"},
		{"no name", "memo = \"\"\n[[package]]\nversion = \"1.0\"\n", "no name"},
		{"duplicate", "memo = \"\"\n[[package]]\nname = \"zlib\"\nversion = \"1.0\"\n[[package]]\nname = \"zlib\"\nversion = \"1.1\"\n", "multiple entries"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := readLock(strings.NewReader(c.in))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("expected error containing %q, got %q", c.want, err)
			}
		})
	}
}

func TestWriteLock(t *testing.T) {
	l, err := readLock(strings.NewReader(lg))
	if err != nil {
		t.Fatal(err)
	}

	b, err := l.MarshalTOML()
	if err != nil {
		t.Fatalf("Error while marshaling valid lock to TOML: %q", err)
	}

	got, err := readLock(strings.NewReader(string(b)))
	if err != nil {
		t.Fatalf("Could not read back written lock: %q\n%s", err, b)
	}
	if !locksAreEquivalent(l, got) {
		t.Errorf("Lock did not survive a round trip:\n%s", b)
	}
	if strings.Index(string(b), `"antlr4"`) > strings.Index(string(b), `"antlr4-cppruntime"`) {
		t.Errorf("Expected packages sorted by name:\n%s", b)
	}
}

func TestLockFromGraph(t *testing.T) {
	g := antlrGraph(t)
	l := LockFromGraph(g)

	names := make([]gps.PackageName, len(l.P))
	for i, lp := range l.P {
		names[i] = lp.Name
	}
	if want := []gps.PackageName{"antlr4", "antlr4-cppruntime"}; !reflect.DeepEqual(names, want) {
		t.Errorf("got %v, want %v", names, want)
	}
	if !l.P[0].Direct || l.P[1].Direct {
		t.Errorf("unexpected direct flags %+v", l.P)
	}
}

func TestDiffLocks(t *testing.T) {
	l1, err := readLock(strings.NewReader(lg))
	if err != nil {
		t.Fatal(err)
	}
	if diffLocks(l1, l1) != nil {
		t.Error("expected no diff between a lock and itself")
	}

	l2 := &Lock{
		Memo: l1.Memo,
		P: []LockedPackage{
			{Name: "antlr4", Version: gps.NewVersion("4.13.2"), Direct: true},
			{Name: "antlr4-cppruntime", Version: gps.NewVersion("4.13.1")},
		},
	}
	diff := diffLocks(l1, l2)
	if diff == nil || len(diff.Modify) != 1 || diff.Modify[0].Version.String() != "4.13.1 -> 4.13.2" {
		t.Fatalf("unexpected diff %+v", diff)
	}

	diff = diffLocks(nil, l2)
	if diff == nil || len(diff.Add) != 2 {
		t.Fatalf("expected every package to be added, got %+v", diff)
	}
}
