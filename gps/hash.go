// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"bytes"
	"crypto/sha256"
	"sort"
)

// string headers used to demarcate sections in hash input creation
const (
	hhConstraints = "-CONSTRAINTS-"
	hhOverrides   = "-OVERRIDES-"
	hhProfile     = "-PROFILE-"
	hhAnalyzer    = "-ANALYZER-"
)

// HashInputs computes a digest of all inputs to a solve run: the direct
// requirements, the overrides and the profile.
//
// The digest is stored in the lock file. If it matches the digest computed for
// the current manifest and profile, the lock is in sync and solving again
// would produce the same graph for an unchanged index.
func HashInputs(reqs []Requirement, ovr map[PackageName]Constraint, p Profile) []byte {
	buf := new(bytes.Buffer)
	writeString := func(s string) {
		buf.WriteString(s)
		buf.WriteByte(0)
	}

	writeString(hhConstraints)
	for _, r := range sortRequirements(reqs) {
		writeString(string(r.Name))
		writeString(r.Constraint.String())
	}

	writeString(hhOverrides)
	names := make([]string, 0, len(ovr))
	for name := range ovr {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		writeString(name)
		writeString(ovr[PackageName(name)].String())
	}

	writeString(hhProfile)
	writeString(p.OS)
	writeString(p.Compiler)
	writeString(p.CompilerVersion)
	writeString(p.BuildType)
	writeString(p.Arch)

	writeString(hhAnalyzer)
	writeString("gps-cdep")
	writeString("1")

	s := sha256.Sum256(buf.Bytes())
	return s[:]
}
