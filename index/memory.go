// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"context"
	"sync"

	"github.com/cdep/cdep/gps"
	"github.com/pkg/errors"
)

// Memory is a PackageIndex held entirely in memory. It is safe for concurrent
// use.
type Memory struct {
	mu   sync.RWMutex
	pkgs map[gps.PackageName]map[string]gps.PackageMetadata
}

// NewMemory returns an index holding the given packages.
func NewMemory(metas ...gps.PackageMetadata) *Memory {
	m := &Memory{
		pkgs: make(map[gps.PackageName]map[string]gps.PackageMetadata),
	}
	for _, pm := range metas {
		m.Add(pm)
	}
	return m
}

// Add puts one version of a package in the index, replacing any previous
// entry for the same version.
func (m *Memory) Add(pm gps.PackageMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vs, has := m.pkgs[pm.Name]
	if !has {
		vs = make(map[string]gps.PackageMetadata)
		m.pkgs[pm.Name] = vs
	}
	vs[pm.Version.String()] = pm
}

// ListVersions implements gps.PackageIndex.
func (m *Memory) ListVersions(ctx context.Context, name gps.PackageName) ([]gps.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	vs, has := m.pkgs[name]
	if !has {
		return nil, errors.Wrapf(gps.ErrNotFound, "package %s", name)
	}

	vl := make([]gps.Version, 0, len(vs))
	for _, pm := range vs {
		vl = append(vl, pm.Version)
	}
	gps.SortForUpgrade(vl)
	return vl, nil
}

// Fetch implements gps.PackageIndex.
func (m *Memory) Fetch(ctx context.Context, name gps.PackageName, v gps.Version) (gps.PackageMetadata, error) {
	if err := ctx.Err(); err != nil {
		return gps.PackageMetadata{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	vs, has := m.pkgs[name]
	if !has {
		return gps.PackageMetadata{}, errors.Wrapf(gps.ErrNotFound, "package %s", name)
	}
	for _, pm := range vs {
		if pm.Version.Equal(v) {
			return pm, nil
		}
	}
	return gps.PackageMetadata{}, errors.Wrapf(gps.ErrNotFound, "package %s at %s", name, v)
}
