// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
)

// satisfiable is the main checking method. It determines if introducing a new
// atom would result in a state where all requirements are still satisfied.
func (s *solver) satisfiable(ctx context.Context, a atom) error {
	if a.isNil() {
		panic("canary - checking version of empty atom")
	}

	s.mtr.push("satisfy")
	defer s.mtr.pop()

	if err := s.checkAtomAllowable(a); err != nil {
		s.traceInfo(err)
		return err
	}

	m, err := s.sm.GetMetadata(ctx, a.name, a.v)
	if err != nil {
		if isContextErr(err) || !IsNotFound(err) {
			return err
		}
		err = &metadataMissingFailure{goal: a, err: err}
		s.traceInfo(err)
		return err
	}

	if ok, setting := m.Settings.Supports(s.params.Profile); !ok {
		if s.l.Level >= logrus.InfoLevel {
			s.l.WithFields(logrus.Fields{
				"name":    a.name,
				"version": a.v,
				"setting": setting,
			}).Info("Package atom does not support the profile")
		}
		err := &profileMismatchFailure{goal: a, setting: setting, profile: s.params.Profile}
		s.traceInfo(err)
		return err
	}

	deps, err := s.getDependenciesOf(ctx, a)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		if err := s.checkCycle(a, dep); err != nil {
			return err
		}
		if err := s.checkDepsConstraintsAllowable(ctx, a, dep); err != nil {
			s.traceInfo(err)
			return err
		}
		if err := s.checkDepsDisallowsSelected(a, dep); err != nil {
			s.traceInfo(err)
			return err
		}
	}

	return nil
}

// checkAtomAllowable ensures that an atom itself is acceptable with respect to
// the constraints established by the current solution.
func (s *solver) checkAtomAllowable(a atom) error {
	constraint := s.sel.getConstraint(a.name)
	if constraint.Matches(a.v) {
		return nil
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"name":       a.name,
			"version":    a.v,
			"constraint": constraint,
		}).Debug("Current constraints do not allow version")
	}

	deps := s.sel.getDependenciesOn(a.name)
	var failparent []dependency
	for _, dep := range deps {
		if !dep.dep.Constraint.Matches(a.v) {
			s.fail(dep.depender.name)
			failparent = append(failparent, dep)
		}
	}

	return &versionNotAllowedFailure{
		goal:       a,
		failparent: failparent,
		c:          constraint,
	}
}

// checkDepsConstraintsAllowable checks that the constraints of an atom on a
// given dep have at least some overlap with the constraints already placed on
// that dep by the current selection.
func (s *solver) checkDepsConstraintsAllowable(ctx context.Context, a atom, dep Requirement) error {
	siblings := s.sel.getDependenciesOn(dep.Name)
	// No siblings means there's nothing to conflict with
	if len(siblings) == 0 {
		return nil
	}

	// Known versions decide overlaps the constraint algebra can't. They're
	// usually already memoized by prefetch; a failed listing is surfaced when
	// the dep itself is visited.
	vl, _ := s.sm.ListVersions(ctx, dep.Name)

	constraint := s.sel.getConstraint(dep.Name)
	if !s.overlaps(constraint, dep.Constraint, vl) {
		if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"name":          a.name,
				"version":       a.v,
				"depname":       dep.Name,
				"curconstraint": constraint,
				"newconstraint": dep.Constraint,
			}).Debug("Package atom cannot be added; its constraints are disjoint with existing constraints")
		}

		// No admissible versions - visit all siblings and identify the disagreement(s)
		var failsib []dependency
		var nofailsib []dependency
		for _, sibling := range siblings {
			if !s.overlaps(sibling.dep.Constraint, dep.Constraint, vl) {
				s.fail(sibling.depender.name)
				failsib = append(failsib, sibling)
			} else {
				nofailsib = append(nofailsib, sibling)
			}
		}

		return &disjointConstraintFailure{
			goal:      dependency{depender: a, dep: dep},
			failsib:   failsib,
			nofailsib: nofailsib,
			c:         constraint,
		}
	}

	return nil
}

// overlaps reports whether two constraints admit a common version. When the
// package's versions are known, a common one must actually exist.
func (s *solver) overlaps(c1, c2 Constraint, vl []Version) bool {
	ic := c1.Intersect(c2)
	if IsNone(ic) {
		return false
	}
	if len(vl) == 0 {
		return true
	}
	return admitsAnyOf(ic, vl)
}

// checkDepsDisallowsSelected ensures that an atom's constraints on a particular
// dep are not incompatible with the version of that dep that's already been
// selected.
func (s *solver) checkDepsDisallowsSelected(a atom, dep Requirement) error {
	selected, exists := s.sel.selected(dep.Name)
	if !exists || dep.Constraint.Matches(selected.v) {
		return nil
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"name":          a.name,
			"version":       a.v,
			"depname":       dep.Name,
			"curversion":    selected.v,
			"newconstraint": dep.Constraint,
		}).Debug("Package atom cannot be added; a constraint it introduces does not allow a currently selected version")
	}
	s.fail(dep.Name)

	return &constraintNotAllowedFailure{
		goal:   dependency{depender: a, dep: dep},
		v:      selected.v,
		others: append([]dependency(nil), s.sel.getDependenciesOn(dep.Name)...),
	}
}

// checkCycle fails if adding an edge from a to dep closes a loop through the
// currently selected packages.
func (s *solver) checkCycle(a atom, dep Requirement) error {
	if dep.Name == a.name {
		return &CyclicDependencyError{Path: []PackageName{a.name}}
	}
	if _, selected := s.sel.selected(dep.Name); !selected {
		// Every other package on a loop through a would already be selected.
		return nil
	}

	path := s.findPath(dep.Name, a.name)
	if path == nil {
		return nil
	}

	// path runs dep.Name -> ... -> a.name; the new edge closes it.
	cycle := make([]PackageName, 0, len(path))
	cycle = append(cycle, a.name)
	cycle = append(cycle, path[:len(path)-1]...)

	if s.l.Level >= logrus.WarnLevel {
		s.l.WithFields(logrus.Fields{
			"name":    a.name,
			"version": a.v,
			"depname": dep.Name,
		}).Warn("Package atom would introduce a dependency cycle")
	}

	return &CyclicDependencyError{Path: rotateCycle(cycle)}
}

// findPath searches the requirement edges of the selected atoms for a path
// from one package to another. Edges are explored in name order, so the
// result is deterministic.
func (s *solver) findPath(from, to PackageName) []PackageName {
	edges := make(map[PackageName][]PackageName)
	for target, deps := range s.sel.deps {
		for _, d := range deps {
			edges[d.depender.name] = append(edges[d.depender.name], target)
		}
	}
	for name := range edges {
		sort.Slice(edges[name], func(i, j int) bool { return edges[name][i] < edges[name][j] })
	}

	visited := make(map[PackageName]bool)
	var walk func(n PackageName) []PackageName
	walk = func(n PackageName) []PackageName {
		if n == to {
			return []PackageName{n}
		}
		if visited[n] {
			return nil
		}
		visited[n] = true
		for _, next := range edges[n] {
			if p := walk(next); p != nil {
				return append([]PackageName{n}, p...)
			}
		}
		return nil
	}

	return walk(from)
}

// rotateCycle rotates a cycle so it starts at its lexically smallest name.
func rotateCycle(cycle []PackageName) []PackageName {
	if len(cycle) == 0 {
		return cycle
	}
	min := 0
	for k, n := range cycle {
		if n < cycle[min] {
			min = k
		}
	}
	out := make([]PackageName, 0, len(cycle))
	out = append(out, cycle[min:]...)
	return append(out, cycle[:min]...)
}
