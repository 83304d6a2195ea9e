// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// The exported error types below are the only errors Solve returns for
// resolution failures. Each one is terminal for the solve run.

// ConflictingConstraint is one requirer's constraint on a package that took
// part in a version conflict.
type ConflictingConstraint struct {
	Requirer        PackageName
	RequirerVersion Version
	Constraint      Constraint
}

func (c ConflictingConstraint) String() string {
	if c.RequirerVersion.IsZero() {
		return fmt.Sprintf("%q from %s", c.Constraint.String(), c.Requirer)
	}
	return fmt.Sprintf("%q from %s@%s", c.Constraint.String(), c.Requirer, c.RequirerVersion)
}

// VersionConflictError indicates that the constraints placed on a package have
// no version in common.
type VersionConflictError struct {
	Package     PackageName
	Constraints []ConflictingConstraint
	// detail is the solver's own account of the last failure, if any.
	detail error
}

func (e *VersionConflictError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "version conflict on %s: no version satisfies all of", e.Package)
	for _, c := range e.Constraints {
		fmt.Fprintf(&buf, "\n\t%s", c)
	}
	return buf.String()
}

// Detail returns the underlying solver failure, which usually carries more
// context about the backtracking that preceded the conflict.
func (e *VersionConflictError) Detail() error {
	return e.detail
}

// CyclicDependencyError indicates that a package transitively requires
// itself. Path lists the packages on the cycle, starting from the
// lexically smallest name; the last element requires the first.
type CyclicDependencyError struct {
	Path []PackageName
}

func (e *CyclicDependencyError) Error() string {
	parts := make([]string, 0, len(e.Path)+1)
	for _, n := range e.Path {
		parts = append(parts, string(n))
	}
	if len(e.Path) > 0 {
		parts = append(parts, string(e.Path[0]))
	}
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(parts, " -> "))
}

// PackageNotFoundError indicates that the index has no record of a required
// package, or of any version of it.
type PackageNotFoundError struct {
	Package   PackageName
	Requirers []PackageName
}

func (e *PackageNotFoundError) Error() string {
	if len(e.Requirers) == 0 {
		return fmt.Sprintf("package %s could not be found in the index", e.Package)
	}
	reqs := make([]string, len(e.Requirers))
	for k, r := range e.Requirers {
		reqs[k] = string(r)
	}
	return fmt.Sprintf("package %s could not be found in the index (required by %s)", e.Package, strings.Join(reqs, ", "))
}

// ProfileMismatchError indicates that no admissible version of a package
// declares support for the requested profile.
type ProfileMismatchError struct {
	Package  PackageName
	Profile  Profile
	Setting  string
	Versions []Version
}

func (e *ProfileMismatchError) Error() string {
	vs := make([]string, len(e.Versions))
	for k, v := range e.Versions {
		vs[k] = v.String()
	}
	return fmt.Sprintf("package %s does not support %s (setting %q rejected by versions %s)",
		e.Package, e.Profile, e.Setting, strings.Join(vs, ", "))
}

// TimeoutError indicates that resolution did not finish before its deadline.
// No partial result is available.
type TimeoutError struct {
	Elapsed time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("resolution timed out after %s: %v", e.Elapsed.Round(time.Millisecond), e.Err)
}

// traceError is implemented by internal failures that know how to render
// themselves compactly in the solver trace.
type traceError interface {
	traceString() string
}

type failedVersion struct {
	v Version
	f error
}

// noVersionError records why every version of a package was rejected.
type noVersionError struct {
	name  PackageName
	fails []failedVersion
	// deps on name at the time the queue was exhausted
	deps []dependency
}

func (e *noVersionError) Error() string {
	if len(e.fails) == 0 {
		return fmt.Sprintf("No versions found for package %q.", e.name)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "No versions of %s met constraints:", e.name)
	for _, f := range e.fails {
		fmt.Fprintf(&buf, "\n\t%s: %s", f.v, f.f.Error())
	}

	return buf.String()
}

func (e *noVersionError) traceString() string {
	if len(e.fails) == 0 {
		return "No versions found"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "No versions of %s met constraints:", e.name)
	for _, f := range e.fails {
		if te, ok := f.f.(traceError); ok {
			fmt.Fprintf(&buf, "\n  %s: %s", f.v, te.traceString())
		} else {
			fmt.Fprintf(&buf, "\n  %s: %s", f.v, f.f.Error())
		}
	}

	return buf.String()
}

// missingPackageFailure indicates the index knows nothing about a package.
type missingPackageFailure struct {
	name PackageName
	deps []dependency
	err  error
}

func (e *missingPackageFailure) Error() string {
	return fmt.Sprintf("package %s could not be located: %v", e.name, e.err)
}

func (e *missingPackageFailure) traceString() string {
	return fmt.Sprintf("%s not found in index", e.name)
}

// Indicates that an atom could not be introduced because one of its
// dependencies carries a constraint with no overlap with the constraints
// already placed on that dependency by selected packages.
type disjointConstraintFailure struct {
	goal      dependency
	failsib   []dependency
	nofailsib []dependency
	c         Constraint
}

func (e *disjointConstraintFailure) Error() string {
	if len(e.failsib) == 1 {
		str := "Could not introduce %s, as it has a dependency on %s with constraint %s, which has no overlap with existing constraint %s from %s"
		return fmt.Sprintf(str, e.goal.depender, e.goal.dep.Name, e.goal.dep.Constraint, e.failsib[0].dep.Constraint, e.failsib[0].depender)
	}

	var buf bytes.Buffer

	var sibs []dependency
	if len(e.failsib) > 1 {
		sibs = e.failsib

		str := "Could not introduce %s, as it has a dependency on %s with constraint %s, which has no overlap with the following existing constraints:\n"
		fmt.Fprintf(&buf, str, e.goal.depender, e.goal.dep.Name, e.goal.dep.Constraint)
	} else {
		sibs = e.nofailsib

		str := "Could not introduce %s, as it has a dependency on %s with constraint %s, which does not overlap with the intersection of existing constraints from other currently selected packages:\n"
		fmt.Fprintf(&buf, str, e.goal.depender, e.goal.dep.Name, e.goal.dep.Constraint)
	}

	for _, c := range sibs {
		fmt.Fprintf(&buf, "\t%s from %s\n", c.dep.Constraint, c.depender)
	}

	return buf.String()
}

func (e *disjointConstraintFailure) traceString() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "constraint %s on %s disjoint with other dependers:\n", e.goal.dep.Constraint, e.goal.dep.Name)
	for _, f := range e.failsib {
		fmt.Fprintf(&buf, "%s from %s (no overlap)\n", f.dep.Constraint, f.depender)
	}
	for _, f := range e.nofailsib {
		fmt.Fprintf(&buf, "%s from %s (some overlap)\n", f.dep.Constraint, f.depender)
	}

	return buf.String()
}

// Indicates that an atom could not be introduced because one of its dep
// constraints does not admit the currently-selected version of the target
// package.
type constraintNotAllowedFailure struct {
	goal dependency
	v    Version
	// others are the selected dependers on the target
	others []dependency
}

func (e *constraintNotAllowedFailure) Error() string {
	str := "Could not introduce %s, as it has a dependency on %s with constraint %s, which does not allow the currently selected version of %s"
	return fmt.Sprintf(str, e.goal.depender, e.goal.dep.Name, e.goal.dep.Constraint, e.v)
}

func (e *constraintNotAllowedFailure) traceString() string {
	str := "%s depends on %s with %s, but that's already selected at %s"
	return fmt.Sprintf(str, e.goal.depender, e.goal.dep.Name, e.goal.dep.Constraint, e.v)
}

// versionNotAllowedFailure describes a failure where an atom is rejected
// because its version is not allowed by current constraints.
type versionNotAllowedFailure struct {
	goal       atom
	failparent []dependency
	c          Constraint
}

func (e *versionNotAllowedFailure) Error() string {
	if len(e.failparent) == 1 {
		str := "Could not introduce %s, as it is not allowed by constraint %s from package %s."
		return fmt.Sprintf(str, e.goal, e.failparent[0].dep.Constraint, e.failparent[0].depender)
	}

	var buf bytes.Buffer

	str := "Could not introduce %s, as it is not allowed by constraints from the following packages:\n"
	fmt.Fprintf(&buf, str, e.goal)

	for _, f := range e.failparent {
		fmt.Fprintf(&buf, "\t%s from %s\n", f.dep.Constraint, f.depender)
	}

	return buf.String()
}

func (e *versionNotAllowedFailure) traceString() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s not allowed by constraint %s:\n", e.goal, e.c)
	for _, f := range e.failparent {
		fmt.Fprintf(&buf, "  %s from %s\n", f.dep.Constraint, f.depender)
	}

	return buf.String()
}

// profileMismatchFailure indicates an atom does not support the profile.
type profileMismatchFailure struct {
	goal    atom
	setting string
	profile Profile
}

func (e *profileMismatchFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s, as it does not support %s=%s", e.goal, e.setting, e.profileValue())
}

func (e *profileMismatchFailure) traceString() string {
	return fmt.Sprintf("%s rejects %s=%s", e.goal, e.setting, e.profileValue())
}

func (e *profileMismatchFailure) profileValue() string {
	switch e.setting {
	case "os":
		return e.profile.OS
	case "compiler":
		return e.profile.Compiler
	case "build_type":
		return e.profile.BuildType
	case "arch":
		return e.profile.Arch
	}
	return ""
}

// metadataMissingFailure indicates a listed version had no fetchable metadata.
type metadataMissingFailure struct {
	goal atom
	err  error
}

func (e *metadataMissingFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s, as its metadata could not be fetched: %v", e.goal, e.err)
}

func (e *metadataMissingFailure) traceString() string {
	return fmt.Sprintf("%s has no metadata", e.goal)
}

// classify converts an internal solver failure into the exported taxonomy.
// Errors that already belong to it pass through unchanged.
func classify(err error, p Profile) error {
	switch t := err.(type) {
	case *missingPackageFailure:
		return &PackageNotFoundError{Package: t.name, Requirers: dependerNames(t.deps)}
	case *noVersionError:
		return classifyNoVersion(t, p)
	case *disjointConstraintFailure:
		return disjointToConflict(t)
	case *constraintNotAllowedFailure:
		return notAllowedToConflict(t)
	case *versionNotAllowedFailure:
		return &VersionConflictError{
			Package:     t.goal.name,
			Constraints: depsToConflicting(t.failparent),
			detail:      t,
		}
	}
	return err
}

func classifyNoVersion(e *noVersionError, p Profile) error {
	if len(e.fails) == 0 {
		return &PackageNotFoundError{Package: e.name, Requirers: dependerNames(e.deps)}
	}

	// Versions the constraints already exclude say nothing about why the
	// admitted ones failed.
	var considered, profileFails, missing int
	var setting string
	var versions []Version
	for _, f := range e.fails {
		if _, excluded := f.f.(*versionNotAllowedFailure); excluded {
			continue
		}
		considered++
		switch t := f.f.(type) {
		case *profileMismatchFailure:
			profileFails++
			versions = append(versions, f.v)
			if setting == "" {
				setting = t.setting
			}
		case *metadataMissingFailure:
			missing++
		}
	}

	switch {
	case considered == 0:
	case missing == considered:
		return &PackageNotFoundError{Package: e.name, Requirers: dependerNames(e.deps)}
	case profileFails > 0 && profileFails+missing == considered:
		return &ProfileMismatchError{Package: e.name, Profile: p, Setting: setting, Versions: versions}
	}

	// The highest version's failure is the most relevant one; it's the
	// version the user most likely expected to get.
	for _, f := range e.fails {
		switch t := f.f.(type) {
		case *disjointConstraintFailure:
			return disjointToConflict(t)
		case *constraintNotAllowedFailure:
			return notAllowedToConflict(t)
		}
	}

	return &VersionConflictError{
		Package:     e.name,
		Constraints: depsToConflicting(e.deps),
		detail:      e,
	}
}

func disjointToConflict(e *disjointConstraintFailure) error {
	sibs := e.failsib
	if len(sibs) == 0 {
		sibs = e.nofailsib
	}
	cc := depsToConflicting(sibs)
	cc = append(cc, depsToConflicting([]dependency{e.goal})...)
	return &VersionConflictError{Package: e.goal.dep.Name, Constraints: cc, detail: e}
}

func notAllowedToConflict(e *constraintNotAllowedFailure) error {
	cc := depsToConflicting(e.others)
	cc = append(cc, depsToConflicting([]dependency{e.goal})...)
	return &VersionConflictError{Package: e.goal.dep.Name, Constraints: cc, detail: e}
}

func depsToConflicting(deps []dependency) []ConflictingConstraint {
	cc := make([]ConflictingConstraint, 0, len(deps))
	for _, d := range deps {
		cc = append(cc, ConflictingConstraint{
			Requirer:        d.depender.name,
			RequirerVersion: d.depender.v,
			Constraint:      d.dep.Constraint,
		})
	}
	return cc
}

func dependerNames(deps []dependency) []PackageName {
	seen := make(map[PackageName]bool)
	var names []PackageName
	for _, d := range deps {
		if !seen[d.depender.name] {
			seen[d.depender.name] = true
			names = append(names, d.depender.name)
		}
	}
	return names
}
