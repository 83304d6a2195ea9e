// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"container/heap"
	"context"
	"io/ioutil"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultRootName is the name the consumer is known by in errors and traces
// when SolveParameters does not supply one.
const DefaultRootName PackageName = "(root)"

// SolveParameters hold all arguments to a solver run.
//
// Only Requirements and Profile are absolutely required. Index is required
// when calling Solve, but not Prepare.
type SolveParameters struct {
	// RootName is the name of the consuming project. It never appears in the
	// resulting graph.
	RootName PackageName

	// Requirements are the consumer's direct requirements, in declaration
	// order. Each is treated as direct regardless of its Direct field.
	Requirements []Requirement

	// Overrides replace the constraint every requirer places on a package
	// with a pinned one. They do not, by themselves, introduce requirements.
	Overrides map[PackageName]Constraint

	// Profile is the target build environment.
	Profile Profile

	// Lock holds the versions chosen by a previous run. They are tried first
	// when still admitted by the current constraints.
	Lock map[PackageName]Version

	// ChangeAll ignores Lock entirely.
	ChangeAll bool

	// ToChange lists packages for which Lock entries are ignored.
	ToChange []PackageName

	// Index is consulted for versions and metadata by Solve.
	Index PackageIndex

	// Workers bounds the number of concurrent index calls made while
	// prefetching metadata. Zero means DefaultWorkers.
	Workers int

	// Timeout, if positive, bounds the whole solve run.
	Timeout time.Duration

	// Trace controls whether the solver will generate informative trace output
	// as it moves through the solving process.
	Trace bool

	// TraceLogger is the logger to use for generating trace output. If Trace is
	// true but no logger is provided, solving will result in an error.
	TraceLogger *log.Logger

	// Logger receives structured diagnostics. A nil Logger discards them.
	Logger *logrus.Logger

	// Metrics, if non-nil, receives phase timings and counters for the run.
	Metrics *Metrics
}

// DefaultWorkers is the prefetch concurrency used when none is given.
const DefaultWorkers = 8

// A Solver is the main workhorse of gps: given a set of requirements and a
// profile, it produces a Graph with one version of every package reachable
// from the requirements, or an error describing why that could not be done.
type Solver interface {
	// Solve initiates a solving run. It will either abort due to a failure or
	// a timeout, or succeed, returning a Graph.
	Solve(context.Context) (*Graph, error)

	// Name returns a string identifying the particular solver backend.
	Name() string

	// Version returns an int indicating the version of the solver of the given
	// Name().
	Version() int
}

// solver is a backtracking-style SAT solver.
type solver struct {
	params SolveParameters
	rd     rootdata
	sm     *SourceMgr
	l      *logrus.Logger
	tl     *log.Logger
	mtr    *Metrics

	// lock-exempt packages
	chng map[PackageName]bool

	sel   *selection
	unsel *unselected
	vqs   []*versionQueue

	// requirements of each currently selected atom, after overrides
	adeps map[PackageName][]Requirement

	attempts int
	start    time.Time
}

// rootdata holds the static inputs derived from SolveParameters.
type rootdata struct {
	name PackageName
	reqs []Requirement
	ovr  map[PackageName]Constraint
}

// Prepare readies a Solver for use.
//
// This function reads and validates the provided SolveParameters. If a problem
// with the inputs is detected, an error is returned. Otherwise, a Solver is
// returned, ready to hash and check inputs or perform a solving run.
func Prepare(params SolveParameters, sm *SourceMgr) (Solver, error) {
	if sm == nil {
		return nil, errors.New("must provide non-nil SourceMgr")
	}
	if params.Trace && params.TraceLogger == nil {
		return nil, errors.New("trace requested, but no logger provided")
	}
	if err := params.Profile.Validate(); err != nil {
		return nil, err
	}

	rd := rootdata{
		name: params.RootName,
		ovr:  make(map[PackageName]Constraint, len(params.Overrides)),
	}
	if rd.name == "" {
		rd.name = DefaultRootName
	}

	for name, c := range params.Overrides {
		if name == "" {
			return nil, errors.New("override with empty package name")
		}
		if c == nil {
			c = wildcard
		}
		rd.ovr[name] = c
	}

	for k, r := range params.Requirements {
		if r.Name == "" {
			return nil, errors.Errorf("requirement %d has an empty package name", k)
		}
		if r.Name == rd.name {
			return nil, errors.Errorf("%s cannot require itself", rd.name)
		}
		if r.Constraint == nil {
			r.Constraint = wildcard
		}
		r.Direct = true
		rd.reqs = append(rd.reqs, r)
	}

	l := params.Logger
	if l == nil {
		l = logrus.New()
		l.Out = ioutil.Discard
	}

	s := &solver{
		params: params,
		rd:     rd,
		sm:     sm,
		l:      l,
		tl:     params.TraceLogger,
		mtr:    params.Metrics,
		chng:   make(map[PackageName]bool, len(params.ToChange)),
	}
	for _, name := range params.ToChange {
		s.chng[name] = true
	}

	return s, nil
}

// Solve resolves params against params.Index. It is a convenience wrapper
// around Prepare with a fresh SourceMgr.
func Solve(ctx context.Context, params SolveParameters) (*Graph, error) {
	if params.Index == nil {
		return nil, errors.New("must provide a non-nil PackageIndex")
	}
	sm := NewSourceManager(params.Index)
	defer sm.Release()

	s, err := Prepare(params, sm)
	if err != nil {
		return nil, err
	}
	return s.Solve(ctx)
}

func (s *solver) Name() string {
	return "gps-cdep"
}

func (s *solver) Version() int {
	return 1
}

// Solve attempts to find a dependency solution for the given requirements, as
// represented by the SolveParameters with which this Solver was created.
//
// This is the entry point to the main gps workhorse.
func (s *solver) Solve(ctx context.Context) (*Graph, error) {
	s.start = time.Now()
	if s.params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.params.Timeout)
		defer cancel()
	}

	s.mtr.begin()
	defer s.mtr.end()

	g, err := s.solve(ctx)
	s.traceFinish(g, err)
	s.mtr.observe(err)

	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *solver) solve(ctx context.Context) (*Graph, error) {
	// Prepare the heap and selection
	s.sel = &selection{
		deps: make(map[PackageName][]dependency),
	}
	s.unsel = &unselected{
		sl:  make([]PackageName, 0),
		cmp: s.unselectedComparator,
	}
	heap.Init(s.unsel)
	s.adeps = make(map[PackageName][]Requirement)
	s.vqs = nil

	if err := s.checkRootConstraints(); err != nil {
		return nil, err
	}

	s.mtr.push("prefetch")
	s.prefetch(ctx)
	s.mtr.pop()

	if err := ctx.Err(); err != nil {
		return nil, s.timeoutErr(err)
	}

	s.selectRoot()

	for {
		if err := ctx.Err(); err != nil {
			return nil, s.timeoutErr(err)
		}

		name, has := s.nextUnselected()
		if !has {
			// no more packages to select - we're done.
			break
		}

		if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"attempts": s.attempts,
				"name":     name,
				"selcount": len(s.sel.projects),
			}).Debug("Beginning step in solve loop")
		}

		queue, err := s.createVersionQueue(ctx, name)
		if err != nil {
			if isFatal(err) {
				return nil, s.fatalErr(err)
			}

			// Err means a failure somewhere down the line; try backtracking.
			s.traceStartBacktrack(name, err)
			s.mtr.push("backtrack")
			ok, berr := s.backtrack(ctx)
			s.mtr.pop()
			if berr != nil {
				return nil, s.fatalErr(berr)
			}
			if ok {
				// backtracking succeeded, move to the next unselected name
				continue
			}
			return nil, classify(err, s.params.Profile)
		}

		if queue.current().IsZero() {
			panic("canary - queue is empty, but flow indicates success")
		}

		if s.l.Level >= logrus.InfoLevel {
			s.l.WithFields(logrus.Fields{
				"name":    queue.name,
				"version": queue.current(),
			}).Info("Accepted package atom")
		}

		if err := s.selectAtom(ctx, atom{name: queue.name, v: queue.current()}); err != nil {
			return nil, s.fatalErr(err)
		}
		s.vqs = append(s.vqs, queue)
	}

	// Getting this far means we successfully found a solution.
	return s.buildGraph(ctx)
}

// checkRootConstraints fails fast when the consumer itself places provably
// disjoint constraints on a package.
func (s *solver) checkRootConstraints() error {
	byName := make(map[PackageName][]Requirement)
	var order []PackageName
	for _, r := range s.rd.reqs {
		if _, has := byName[r.Name]; !has {
			order = append(order, r.Name)
		}
		byName[r.Name] = append(byName[r.Name], r)
	}

	for _, name := range order {
		rl := byName[name]
		if len(rl) < 2 {
			continue
		}
		if _, has := s.rd.ovr[name]; has {
			continue
		}

		var c Constraint = wildcard
		for _, r := range rl {
			c = c.Intersect(r.Constraint)
		}
		if IsNone(c) {
			cc := make([]ConflictingConstraint, 0, len(rl))
			for _, r := range rl {
				cc = append(cc, ConflictingConstraint{
					Requirer:   s.rd.name,
					Constraint: r.Constraint,
				})
			}
			return &VersionConflictError{Package: name, Constraints: cc}
		}
	}
	return nil
}

func (s *solver) createVersionQueue(ctx context.Context, name PackageName) (*versionQueue, error) {
	vl, err := s.sm.ListVersions(ctx, name)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		if !IsNotFound(err) {
			return nil, errors.Wrapf(err, "listing versions of %s", name)
		}
		vl = nil
	}

	if len(vl) == 0 {
		if s.l.Level >= logrus.WarnLevel {
			s.l.WithFields(logrus.Fields{
				"name": name,
			}).Warn("Package does not exist in the index")
		}
		deps := s.sel.getDependenciesOn(name)
		s.fail(deps[0].depender.name)
		return nil, &missingPackageFailure{
			name: name,
			deps: append([]dependency(nil), deps...),
			err:  ErrNotFound,
		}
	}

	lockv := s.getLockVersionIfValid(name, vl)
	q := newVersionQueue(name, lockv, vl)

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"name":    name,
			"queue":   q,
			"hasLock": !lockv.IsZero(),
		}).Debug("Created versionQueue")
	}

	s.traceCheckQueue(q, false, 1)
	return q, s.findValidVersion(ctx, q)
}

// findValidVersion walks through a versionQueue until it finds a version that
// satisfies the constraints held in the current state of the solver.
func (s *solver) findValidVersion(ctx context.Context, q *versionQueue) error {
	if q.current().IsZero() {
		// this case should not be reachable, but reflects improper solver state
		// if it is, so panic immediately
		panic("version queue is empty, should not happen")
	}

	faillen := len(q.fails)

	for {
		cur := q.current()
		s.traceInfo("try %s@%s", q.name, cur)
		err := s.satisfiable(ctx, atom{name: q.name, v: cur})
		if err == nil {
			// we have a good version, can return safely
			return nil
		}
		if isFatal(err) {
			return err
		}

		q.advance(err)
		if q.isExhausted() {
			// Queue is empty, bail with error
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithField("name", q.name).Info("Version queue was completely exhausted, marking package as failed")
			}
			break
		}
	}

	deps := s.sel.getDependenciesOn(q.name)
	s.fail(deps[0].depender.name)

	// Return a compound error of all the new errors encountered during this
	// attempt to find a new, valid version
	return &noVersionError{
		name:  q.name,
		fails: q.fails[faillen:],
		deps:  append([]dependency(nil), deps...),
	}
}

// getLockVersionIfValid returns the locked version of a package if the lock
// names one, the package is not marked for change, the version still exists
// in the index and the current constraints admit it.
func (s *solver) getLockVersionIfValid(name PackageName, vl []Version) Version {
	if s.params.ChangeAll || s.chng[name] {
		return Version{}
	}

	lv, has := s.params.Lock[name]
	if !has || lv.IsZero() {
		return Version{}
	}

	var exists bool
	for _, v := range vl {
		if v.Equal(lv) {
			exists = true
			break
		}
	}

	constraint := s.sel.getConstraint(name)
	if !exists || !constraint.Matches(lv) {
		if s.l.Level >= logrus.InfoLevel {
			s.l.WithFields(logrus.Fields{
				"name":    name,
				"version": lv,
			}).Info("Package found in lock, but version not available under current constraints")
		}
		return Version{}
	}

	return lv
}

// getDependenciesOf returns the requirements of the given atom, mediated
// through any overrides dictated by the root.
func (s *solver) getDependenciesOf(ctx context.Context, a atom) ([]Requirement, error) {
	var reqs []Requirement
	if a.name == s.rd.name {
		reqs = s.rd.reqs
	} else {
		m, err := s.sm.GetMetadata(ctx, a.name, a.v)
		if err != nil {
			return nil, err
		}
		reqs = m.Requires
	}

	out := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		if oc, has := s.rd.ovr[r.Name]; has {
			r.Constraint = oc
		}
		if r.Constraint == nil {
			r.Constraint = wildcard
		}
		out = append(out, r)
	}
	return out, nil
}

// backtrack works backwards from the current failed solution to find the next
// solution to try.
func (s *solver) backtrack(ctx context.Context) (bool, error) {
	if len(s.vqs) == 0 {
		// nothing to backtrack to
		return false, nil
	}

	for {
		for {
			if len(s.vqs) == 0 {
				// no more versions, nowhere further to backtrack
				return false, nil
			}
			if s.vqs[len(s.vqs)-1].failed {
				break
			}

			s.traceBacktrack(s.vqs[len(s.vqs)-1].name)
			s.vqs, s.vqs[len(s.vqs)-1] = s.vqs[:len(s.vqs)-1], nil
			s.unselectLast()
		}

		// Grab the last versionQueue off the list of queues
		q := s.vqs[len(s.vqs)-1]

		if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"name":    q.name,
				"failver": q.current(),
			}).Debug("Trying failed queue with next version")
		}

		// Pop selection off the stack; its queue stays.
		s.unselectLast()

		// Advance the queue past the current version, which we know is bad
		q.advance(nil)
		if !q.isExhausted() {
			// Search for another acceptable version of this failed dep in its queue
			s.traceCheckQueue(q, true, 0)
			err := s.findValidVersion(ctx, q)
			if err == nil {
				if s.l.Level >= logrus.InfoLevel {
					s.l.WithFields(logrus.Fields{
						"name":    q.name,
						"version": q.current(),
					}).Info("Backtracking found valid version, attempting next solution")
				}

				// Found one! Put it back on the selected queue and stop
				// backtracking
				if err := s.selectAtom(ctx, atom{name: q.name, v: q.current()}); err != nil {
					return false, err
				}
				break
			}
			if isFatal(err) {
				return false, err
			}
		}

		// No solution found; continue backtracking after popping the queue
		// we just inspected off the list
		s.traceBacktrack(q.name)
		s.vqs, s.vqs[len(s.vqs)-1] = s.vqs[:len(s.vqs)-1], nil
	}

	// Backtracking was successful if loop ended before running out of versions
	if len(s.vqs) == 0 {
		return false, nil
	}
	s.attempts++
	s.mtr.backtracked()
	return true, nil
}

func (s *solver) nextUnselected() (PackageName, bool) {
	if len(s.unsel.sl) > 0 {
		return s.unsel.sl[0], true
	}

	return "", false
}

// unselectedComparator orders the unselected queue: packages without a lock
// entry are cheaper to decide, so they go before locked ones; ties are broken
// by name to keep solving deterministic.
func (s *solver) unselectedComparator(i, j int) bool {
	iname, jname := s.unsel.sl[i], s.unsel.sl[j]

	if iname == jname {
		return false
	}

	_, ilock := s.params.Lock[iname]
	_, jlock := s.params.Lock[jname]

	switch {
	case ilock && !jlock:
		return false
	case !ilock && jlock:
		return true
	}

	return iname < jname
}

// fail marks the queue for name as failed, so backtracking will revisit it.
func (s *solver) fail(name PackageName) {
	// skip if the root
	if s.rd.name == name {
		return
	}

	for _, vq := range s.vqs {
		if vq.name == name {
			vq.failed = true
			// just look for the first (oldest) one; the backtracker will
			// necessarily traverse through and pop off any earlier ones
			return
		}
	}
}

func (s *solver) selectRoot() {
	a := atom{name: s.rd.name}
	s.sel.projects = append(s.sel.projects, a)

	deps, _ := s.getDependenciesOf(context.Background(), a)
	s.pushDeps(a, deps)
	s.traceSelectRoot(deps)
}

func (s *solver) selectAtom(ctx context.Context, a atom) error {
	s.unsel.remove(a.name)
	heap.Init(s.unsel)

	deps, err := s.getDependenciesOf(ctx, a)
	if err != nil {
		return errors.Wrapf(err, "re-reading requirements of %s", a)
	}

	s.sel.projects = append(s.sel.projects, a)
	s.pushDeps(a, deps)
	s.traceSelect(a)
	s.mtr.selected()
	return nil
}

func (s *solver) pushDeps(a atom, deps []Requirement) {
	s.adeps[a.name] = deps
	for _, dep := range deps {
		siblingsAndSelf := s.sel.pushDep(dependency{depender: a, dep: dep})

		// add package to unselected queue if this is the first dep on it -
		// otherwise it's already in there, or been selected
		if len(siblingsAndSelf) == 1 {
			heap.Push(s.unsel, dep.Name)
		}
	}
}

func (s *solver) unselectLast() {
	var a atom
	a, s.sel.projects = s.sel.projects[len(s.sel.projects)-1], s.sel.projects[:len(s.sel.projects)-1]
	heap.Push(s.unsel, a.name)

	deps := s.adeps[a.name]
	delete(s.adeps, a.name)

	// Pop in reverse push order so each target's dependency stack unwinds
	// correctly.
	for k := len(deps) - 1; k >= 0; k-- {
		dep := deps[k]
		s.sel.popDep(dep.Name)

		// if no siblings, remove from unselected queue
		if len(s.sel.getDependenciesOn(dep.Name)) == 0 {
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithFields(logrus.Fields{
					"name":  dep.Name,
					"pname": a.name,
					"pver":  a.v,
				}).Debug("Removing package from unselected queue; last parent atom was unselected")
			}
			s.unsel.remove(dep.Name)
		}
	}
	heap.Init(s.unsel)
}

// buildGraph turns the final selection into a Graph.
func (s *solver) buildGraph(ctx context.Context) (*Graph, error) {
	s.mtr.push("build-graph")
	defer s.mtr.pop()

	direct := make(map[PackageName]bool, len(s.rd.reqs))
	for _, r := range s.rd.reqs {
		direct[r.Name] = true
	}

	metas := make([]PackageMetadata, 0, len(s.sel.projects)-1)
	for _, a := range s.sel.projects[1:] {
		m, err := s.sm.GetMetadata(ctx, a.name, a.v)
		if err != nil {
			return nil, s.fatalErr(err)
		}
		m.Requires = s.adeps[a.name]
		metas = append(metas, m)
	}

	g, err := NewGraph(s.params.Profile, metas, direct)
	if err != nil {
		return nil, err
	}
	g.hash = HashInputs(s.rd.reqs, s.rd.ovr, s.params.Profile)
	return g, nil
}

// isFatal reports whether err ends the solve run immediately rather than
// triggering backtracking.
func isFatal(err error) bool {
	switch err.(type) {
	case *CyclicDependencyError:
		return true
	case *missingPackageFailure, *noVersionError, *disjointConstraintFailure,
		*constraintNotAllowedFailure, *versionNotAllowedFailure,
		*profileMismatchFailure, *metadataMissingFailure:
		return false
	}
	return true
}

func (s *solver) fatalErr(err error) error {
	if isContextErr(err) || errors.Cause(err) == ErrSourceManagerIsReleased {
		return s.timeoutErr(err)
	}
	return err
}

func (s *solver) timeoutErr(err error) error {
	return &TimeoutError{
		Elapsed: time.Since(s.start),
		Err:     errors.Cause(err),
	}
}
