// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned, possibly wrapped, by a PackageIndex when it has no
// record of the requested package or version.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err, or its cause, is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// A PackageIndex is the solver's view of the world of published packages. It
// is an external collaborator: it may be backed by a local recipe directory, a
// cache, or a remote service. Implementations must be safe for concurrent use,
// as metadata for independent subtrees is fetched in parallel.
type PackageIndex interface {
	// ListVersions returns every published version of the named package, in
	// no particular order.
	ListVersions(ctx context.Context, name PackageName) ([]Version, error)

	// Fetch returns the metadata of one version of a package.
	Fetch(ctx context.Context, name PackageName, v Version) (PackageMetadata, error)
}
