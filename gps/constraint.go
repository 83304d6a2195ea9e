// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

var (
	none     = noneConstraint{}
	wildcard = anyConstraint{}
)

// A Constraint provides structured limitations on the versions that are
// admissible for a given package.
//
// As with Version, the set of implementations is closed; the solver relies on
// knowing every concrete type when intersecting.
type Constraint interface {
	fmt.Stringer
	// Matches indicates if the provided Version is allowed by the Constraint.
	Matches(Version) bool
	// Intersect computes the intersection of the Constraint with the provided
	// Constraint. A result of none means the two are provably disjoint; range
	// intersections that cannot be decided structurally are kept as a
	// conjunction and decided against concrete versions.
	Intersect(Constraint) Constraint
	_private()
}

func (exactConstraint) _private() {}
func (rangeConstraint) _private() {}
func (conjunction) _private()     {}
func (anyConstraint) _private()   {}
func (noneConstraint) _private()  {}

// NewConstraint parses a version constraint body. Accepted forms are:
//
//	""  or "*"            any version
//	"4.13.1", "==4.13.1"  exactly that version
//	"[>=1.0 <2.0]"        a range, in recipe bracket syntax
//	">=1.0 <2.0", "^1.2"  a bare range
func NewConstraint(body string) (Constraint, error) {
	body = strings.TrimSpace(body)
	if body == "" || body == "*" {
		return wildcard, nil
	}

	if strings.HasPrefix(body, "[") {
		if !strings.HasSuffix(body, "]") {
			return nil, errors.Errorf("unterminated version range %q", body)
		}
		inner := strings.TrimSpace(body[1 : len(body)-1])
		if inner == "" || inner == "*" {
			return wildcard, nil
		}
		return newRange(body, inner)
	}

	if v := strings.TrimLeft(body, "="); v != body {
		if v == "" || strings.ContainsAny(v, "<>~^!*|, ") {
			return nil, errors.Errorf("malformed exact version constraint %q", body)
		}
		return exactConstraint{v: NewVersion(v), raw: body}, nil
	}

	if strings.ContainsAny(body, "<>~^!*|, ") {
		return newRange(body, body)
	}

	return exactConstraint{v: NewVersion(body), raw: body}, nil
}

func newRange(raw, expr string) (Constraint, error) {
	// "==" is common in recipes but not understood by the semver parser.
	expr = strings.Replace(expr, "==", "=", -1)
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid version range %q", raw)
	}
	return rangeConstraint{c: c, raw: raw}, nil
}

// Any returns a constraint that will match anything.
func Any() Constraint {
	return wildcard
}

// IsAny indicates if the provided constraint is the wildcard "Any" constraint.
func IsAny(c Constraint) bool {
	_, ok := c.(anyConstraint)
	return ok
}

// IsNone indicates if the provided constraint can never be satisfied.
func IsNone(c Constraint) bool {
	_, ok := c.(noneConstraint)
	return ok
}

// exactConstraint pins a single version.
type exactConstraint struct {
	v   Version
	raw string
}

func (c exactConstraint) String() string {
	return c.raw
}

func (c exactConstraint) Matches(v Version) bool {
	return c.v.Equal(v)
}

func (c exactConstraint) Intersect(c2 Constraint) Constraint {
	switch tc := c2.(type) {
	case anyConstraint:
		return c
	case noneConstraint:
		return none
	case exactConstraint:
		if c.v.Equal(tc.v) {
			return c
		}
	default:
		if c2.Matches(c.v) {
			return c
		}
	}
	return none
}

// rangeConstraint is a semver range.
type rangeConstraint struct {
	c   *semver.Constraints
	raw string
}

func (c rangeConstraint) String() string {
	return c.raw
}

func (c rangeConstraint) Matches(v Version) bool {
	if v.sv == nil {
		return false
	}
	return c.c.Check(v.sv)
}

func (c rangeConstraint) Intersect(c2 Constraint) Constraint {
	switch tc := c2.(type) {
	case anyConstraint:
		return c
	case noneConstraint:
		return none
	case exactConstraint:
		return tc.Intersect(c)
	case rangeConstraint:
		if tc.raw == c.raw {
			return c
		}
		return newConjunction(c, tc)
	case conjunction:
		return newConjunction(append([]rangeConstraint{c}, tc...)...)
	}
	return none
}

// conjunction is the intersection of several ranges whose emptiness can only
// be decided against a concrete list of versions.
type conjunction []rangeConstraint

func newConjunction(rl ...rangeConstraint) conjunction {
	seen := make(map[string]bool, len(rl))
	var cj conjunction
	for _, r := range rl {
		if seen[r.raw] {
			continue
		}
		seen[r.raw] = true
		cj = append(cj, r)
	}
	sort.Slice(cj, func(i, j int) bool { return cj[i].raw < cj[j].raw })
	return cj
}

func (c conjunction) String() string {
	parts := make([]string, len(c))
	for k, r := range c {
		parts[k] = r.raw
	}
	return strings.Join(parts, " && ")
}

func (c conjunction) Matches(v Version) bool {
	for _, r := range c {
		if !r.Matches(v) {
			return false
		}
	}
	return true
}

func (c conjunction) Intersect(c2 Constraint) Constraint {
	switch tc := c2.(type) {
	case anyConstraint:
		return c
	case noneConstraint:
		return none
	case exactConstraint:
		return tc.Intersect(c)
	case rangeConstraint:
		return newConjunction(append([]rangeConstraint{tc}, c...)...)
	case conjunction:
		return newConjunction(append(append([]rangeConstraint{}, c...), tc...)...)
	}
	return none
}

// anyConstraint is an unbounded constraint - it matches all other types of
// constraints. It mirrors the behavior of the semver package's any type.
type anyConstraint struct{}

func (anyConstraint) String() string {
	return "*"
}

func (anyConstraint) Matches(Version) bool {
	return true
}

func (anyConstraint) Intersect(c Constraint) Constraint {
	return c
}

// noneConstraint is the empty set - it matches no versions.
type noneConstraint struct{}

func (noneConstraint) String() string {
	return ""
}

func (noneConstraint) Matches(Version) bool {
	return false
}

func (noneConstraint) Intersect(Constraint) Constraint {
	return none
}

// admitsAnyOf reports whether c allows at least one of the given versions.
func admitsAnyOf(c Constraint, vl []Version) bool {
	for _, v := range vl {
		if c.Matches(v) {
			return true
		}
	}
	return false
}
