// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
)

// ErrSourceManagerIsReleased is the error returned by any SourceMgr method
// called after the SourceMgr has been released.
var ErrSourceManagerIsReleased = errors.New("this SourceManager has been released, its methods can no longer be called")

// SourceMgr mediates all access to a PackageIndex on behalf of the solver. It
// memoizes version lists and metadata, so each (name, version) is fetched from
// the index at most once, and it is safe for concurrent use.
//
// Calls made through a SourceMgr run under both the caller's context and the
// SourceMgr's own lifetime context; Release cancels the latter, aborting any
// in-flight index calls.
type SourceMgr struct {
	idx      PackageIndex
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	versions map[PackageName]*versionsEntry
	metas    map[metaKey]*metaEntry
}

type metaKey struct {
	name PackageName
	v    string
}

type versionsEntry struct {
	once sync.Once
	vl   []Version
	err  error
}

type metaEntry struct {
	once sync.Once
	m    PackageMetadata
	err  error
}

// NewSourceManager produces an instance of SourceMgr backed by the given
// index.
func NewSourceManager(idx PackageIndex) *SourceMgr {
	ctx, cancel := context.WithCancel(context.Background())
	return &SourceMgr{
		idx:      idx,
		ctx:      ctx,
		cancel:   cancel,
		versions: make(map[PackageName]*versionsEntry),
		metas:    make(map[metaKey]*metaEntry),
	}
}

// Release cancels the SourceMgr's lifetime context. Subsequent calls fail with
// ErrSourceManagerIsReleased.
func (sm *SourceMgr) Release() {
	sm.cancel()
}

// ListVersions returns the versions of a package, highest first.
func (sm *SourceMgr) ListVersions(ctx context.Context, name PackageName) ([]Version, error) {
	if sm.ctx.Err() != nil {
		return nil, ErrSourceManagerIsReleased
	}

	sm.mu.Lock()
	e, has := sm.versions[name]
	if !has {
		e = &versionsEntry{}
		sm.versions[name] = e
	}
	sm.mu.Unlock()

	e.once.Do(func() {
		cctx, cancel := constext.Cons(ctx, sm.ctx)
		defer cancel()

		var vl []Version
		vl, e.err = sm.idx.ListVersions(cctx, name)
		if e.err != nil {
			return
		}
		e.vl = make([]Version, len(vl))
		copy(e.vl, vl)
		SortForUpgrade(e.vl)
	})

	if e.err != nil && isContextErr(e.err) {
		// Cancellation is a property of the call, not of the package; don't
		// poison the cache with it.
		sm.mu.Lock()
		delete(sm.versions, name)
		sm.mu.Unlock()
	}

	out := make([]Version, len(e.vl))
	copy(out, e.vl)
	return out, e.err
}

// GetMetadata returns the metadata for a single version of a package.
func (sm *SourceMgr) GetMetadata(ctx context.Context, name PackageName, v Version) (PackageMetadata, error) {
	if sm.ctx.Err() != nil {
		return PackageMetadata{}, ErrSourceManagerIsReleased
	}

	a := metaKey{name: name, v: v.String()}
	sm.mu.Lock()
	e, has := sm.metas[a]
	if !has {
		e = &metaEntry{}
		sm.metas[a] = e
	}
	sm.mu.Unlock()

	e.once.Do(func() {
		cctx, cancel := constext.Cons(ctx, sm.ctx)
		defer cancel()

		e.m, e.err = sm.idx.Fetch(cctx, name, v)
		if e.err == nil && e.m.Name == "" {
			e.m.Name = name
		}
		if e.err == nil && e.m.Version.IsZero() {
			e.m.Version = v
		}
	})

	if e.err != nil && isContextErr(e.err) {
		sm.mu.Lock()
		delete(sm.metas, a)
		sm.mu.Unlock()
	}

	return e.m, e.err
}

func isContextErr(err error) bool {
	switch errors.Cause(err) {
	case context.Canceled, context.DeadlineExceeded:
		return true
	}
	return false
}
