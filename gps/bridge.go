// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// prefetch warms the SourceMgr's memo with the version lists of every package
// reachable from the root requirements, and the metadata of the version most
// likely to be selected for each. Independent packages are fetched in
// parallel, one breadth-first level at a time.
//
// Errors are not reported here; the solve loop will hit them again, serially,
// and handle them in order.
func (s *solver) prefetch(ctx context.Context) {
	workers := s.params.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	seen := make(map[PackageName]bool)
	var level []Requirement
	for _, r := range s.rd.reqs {
		if oc, has := s.rd.ovr[r.Name]; has {
			r.Constraint = oc
		}
		if !seen[r.Name] {
			seen[r.Name] = true
			level = append(level, r)
		}
	}

	var fetched int
	for len(level) > 0 && ctx.Err() == nil {
		var (
			mu   sync.Mutex
			next []Requirement
		)

		eg, egctx := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for _, r := range level {
			r := r
			eg.Go(func() error {
				reqs := s.prefetchOne(egctx, r)
				mu.Lock()
				next = append(next, reqs...)
				mu.Unlock()
				return nil
			})
		}
		eg.Wait()
		fetched += len(level)

		// Goroutines finish in any order; sort so the next level doesn't
		// depend on scheduling.
		sort.SliceStable(next, func(i, j int) bool { return next[i].Name < next[j].Name })
		level = level[:0]
		for _, r := range next {
			if seen[r.Name] {
				continue
			}
			seen[r.Name] = true
			if oc, has := s.rd.ovr[r.Name]; has {
				r.Constraint = oc
			}
			level = append(level, r)
		}
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithField("packages", fetched).Debug("Prefetched package metadata")
	}
}

// prefetchOne lists the versions of one package and fetches the metadata of
// the highest version its requirer admits, returning that version's
// requirements.
func (s *solver) prefetchOne(ctx context.Context, r Requirement) []Requirement {
	vl, err := s.sm.ListVersions(ctx, r.Name)
	if err != nil {
		return nil
	}

	for _, v := range vl {
		if !r.Constraint.Matches(v) {
			continue
		}
		m, err := s.sm.GetMetadata(ctx, r.Name, v)
		if err != nil {
			return nil
		}
		return m.Requires
	}
	return nil
}
