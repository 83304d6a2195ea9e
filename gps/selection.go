// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

type selection struct {
	// atoms in selection order; the root is always first.
	projects []atom
	deps     map[PackageName][]dependency
}

func (s *selection) getDependenciesOn(name PackageName) []dependency {
	return s.deps[name]
}

// pushDep appends a dependency to the list of dependencies on its target,
// returning the new list.
func (s *selection) pushDep(dep dependency) []dependency {
	deps := append(s.deps[dep.dep.Name], dep)
	s.deps[dep.dep.Name] = deps
	return deps
}

// popDep removes the most recently pushed dependency on name.
func (s *selection) popDep(name PackageName) dependency {
	deps := s.deps[name]
	dep := deps[len(deps)-1]
	if len(deps) == 1 {
		delete(s.deps, name)
	} else {
		s.deps[name] = deps[:len(deps)-1]
	}
	return dep
}

// getConstraint returns the intersection of the constraints every selected
// depender places on name.
func (s *selection) getConstraint(name PackageName) Constraint {
	deps, exists := s.deps[name]
	if !exists || len(deps) == 0 {
		return wildcard
	}

	var c Constraint = wildcard
	for _, dep := range deps {
		c = c.Intersect(dep.dep.Constraint)
	}
	return c
}

// selected checks if the named package is currently selected, and returns
// its atom if so.
func (s *selection) selected(name PackageName) (atom, bool) {
	for _, a := range s.projects {
		if a.name == name {
			return a, true
		}
	}
	return atom{}, false
}

// unselected is a priority queue of package names awaiting selection.
type unselected struct {
	sl  []PackageName
	cmp func(i, j int) bool
}

func (u unselected) Len() int {
	return len(u.sl)
}

func (u unselected) Less(i, j int) bool {
	return u.cmp(i, j)
}

func (u unselected) Swap(i, j int) {
	u.sl[i], u.sl[j] = u.sl[j], u.sl[i]
}

func (u *unselected) Push(x interface{}) {
	u.sl = append(u.sl, x.(PackageName))
}

func (u *unselected) Pop() (v interface{}) {
	v, u.sl = u.sl[len(u.sl)-1], u.sl[:len(u.sl)-1]
	return v
}

// remove takes a name out of the priority queue, if present. Callers must
// re-establish the heap invariant afterwards.
//
// There are, generally, two ways this gets called: by the solver when it
// selects the name at the head of the queue, or when backtracking pops the
// last depender on a name off the selection.
func (u *unselected) remove(name PackageName) {
	for k, pn := range u.sl {
		if pn == name {
			if k == len(u.sl)-1 {
				// if we're on the last element, just pop, no splice
				u.sl = u.sl[:len(u.sl)-1]
			} else {
				u.sl = append(u.sl[:k], u.sl[k+1:]...)
			}
			break
		}
	}
}
