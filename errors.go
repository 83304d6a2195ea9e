// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cdep

import (
	"context"

	"github.com/cdep/cdep/generate"
	"github.com/cdep/cdep/gps"
	"github.com/pkg/errors"
)

// Exit codes of the cdep command, one per kind of failure.
const (
	ExitOK               = 0
	ExitError            = 1 // usage errors and anything unclassified
	ExitVersionConflict  = 2
	ExitCyclicDependency = 3
	ExitPackageNotFound  = 4
	ExitProfileMismatch  = 5
	ExitUnknownGenerator = 6
	ExitTimeout          = 7
	ExitIOError          = 8
)

// ExitCode returns the exit code err calls for. Wrapped errors are
// classified by their cause.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch errors.Cause(err).(type) {
	case *gps.VersionConflictError:
		return ExitVersionConflict
	case *gps.CyclicDependencyError:
		return ExitCyclicDependency
	case *gps.PackageNotFoundError:
		return ExitPackageNotFound
	case *gps.ProfileMismatchError:
		return ExitProfileMismatch
	case *generate.UnknownGeneratorError:
		return ExitUnknownGenerator
	case *gps.TimeoutError:
		return ExitTimeout
	case *generate.IOError:
		return ExitIOError
	}

	if errors.Cause(err) == context.DeadlineExceeded {
		return ExitTimeout
	}
	return ExitError
}
