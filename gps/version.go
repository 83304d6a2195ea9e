// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Version is a concrete, published version of a package.
//
// Most recipe versions are semantic ("4.13.1"), and those are ordered by
// semver precedence. Versions that do not parse as semver ("cci.20230314",
// "system") are kept as plain strings; they sort below every semver version
// and lexically among themselves.
type Version struct {
	raw string
	sv  *semver.Version
}

// NewVersion creates a Version from its string form.
func NewVersion(body string) Version {
	sv, err := semver.NewVersion(body)
	if err != nil {
		return Version{raw: body}
	}
	return Version{raw: body, sv: sv}
}

func (v Version) String() string {
	return v.raw
}

// IsSemver reports whether the version was parsed as a semantic version.
func (v Version) IsSemver() bool {
	return v.sv != nil
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return v.raw == ""
}

// Equal reports whether two versions identify the same release. "1.0" and
// "1.0.0" are equal.
func (v Version) Equal(v2 Version) bool {
	return v.Compare(v2) == 0
}

// Compare returns -1, 0 or 1 if v is lower than, equal to, or higher than v2.
func (v Version) Compare(v2 Version) int {
	switch {
	case v.sv != nil && v2.sv != nil:
		return v.sv.Compare(v2.sv)
	case v.sv != nil:
		return 1
	case v2.sv != nil:
		return -1
	}

	switch {
	case v.raw < v2.raw:
		return -1
	case v.raw > v2.raw:
		return 1
	}
	return 0
}

// SortForUpgrade sorts versions so that the most preferable version, the
// highest one, comes first.
func SortForUpgrade(vl []Version) {
	sort.SliceStable(vl, func(i, j int) bool {
		return vl[i].Compare(vl[j]) > 0
	})
}
