// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package feedback formats what a resolution decided, for the user.
package feedback

import (
	"fmt"
	"log"

	"github.com/cdep/cdep/gps"
)

// DepTypeDirect represents a direct dependency
const DepTypeDirect = "direct dep"

// DepTypeTransitive represents a transitive dependency,
// or a dependency of a dependency
const DepTypeTransitive = "transitive dep"

// ConstraintFeedback holds package constraint feedback data
type ConstraintFeedback struct {
	Constraint, LockedVersion, DependencyType, Package string
}

// NewConstraintFeedback builds a feedback entry for a requirement the
// manifest names.
func NewConstraintFeedback(r gps.Requirement, depType string) *ConstraintFeedback {
	return &ConstraintFeedback{
		Constraint:     r.Constraint.String(),
		DependencyType: depType,
		Package:        string(r.Name),
	}
}

// NewLockedPackageFeedback builds a feedback entry for a package the
// resolver selected.
func NewLockedPackageFeedback(p *gps.ResolvedPackage) *ConstraintFeedback {
	depType := DepTypeTransitive
	if p.Direct() {
		depType = DepTypeDirect
	}
	return &ConstraintFeedback{
		LockedVersion:  p.Version().String(),
		DependencyType: depType,
		Package:        string(p.Name()),
	}
}

// LogFeedback logs the feedback
func (cf ConstraintFeedback) LogFeedback(logger *log.Logger) {
	if cf.Constraint != "" {
		logger.Printf("  %v", GetUsingFeedback(cf.Constraint, cf.DependencyType, cf.Package))
	}
	if cf.LockedVersion != "" {
		logger.Printf("  %v", GetLockingFeedback(cf.LockedVersion, cf.DependencyType, cf.Package))
	}
}

// GetUsingFeedback returns dependency using feedback string.
// Example:
// Using >=1.2 as constraint for direct dep zlib
func GetUsingFeedback(constraint, depType, name string) string {
	return fmt.Sprintf("Using %s as constraint for %s %s", constraint, depType, name)
}

// GetLockingFeedback returns dependency locking feedback string.
// Example:
// Locking in 1.3.1 for transitive dep zlib
func GetLockingFeedback(version, depType, name string) string {
	return fmt.Sprintf("Locking in %s for %s %s", version, depType, name)
}
