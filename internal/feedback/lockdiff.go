// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feedback

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cdep/cdep/gps"
	"github.com/pkg/errors"
)

// StringDiff represents a modified string value.
// * Added: Previous = nil, Current != nil
// * Deleted: Previous != nil, Current = nil
// * Modified: Previous != nil, Current != nil
// * No Change: Previous = Current, or a nil pointer
type StringDiff struct {
	Previous string
	Current  string
}

func (diff *StringDiff) String() string {
	if diff == nil {
		return ""
	}

	if diff.Previous == "" && diff.Current != "" {
		return fmt.Sprintf("+ %s", diff.Current)
	}

	if diff.Previous != "" && diff.Current == "" {
		return fmt.Sprintf("- %s", diff.Previous)
	}

	if diff.Previous != diff.Current {
		return fmt.Sprintf("%s -> %s", diff.Previous, diff.Current)
	}

	return diff.Current
}

// MarshalJSON renders the diff the same way String does.
func (diff StringDiff) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(diff.String())

	return buf.Bytes(), err
}

// PackageDiff contains the before and after version of a locked package.
type PackageDiff struct {
	Name    gps.PackageName `json:"name"`
	Version *StringDiff     `json:"version,omitempty"`
}

// LockDiff is the set of differences between an existing lock file and an
// updated one. Fields are only populated when there is a difference.
type LockDiff struct {
	HashDiff *StringDiff
	Add      []PackageDiff
	Remove   []gps.PackageName
	Modify   []PackageDiff
}

// DiffLocks compares two locks, each given as its input hash and the
// version of every package it locks. It returns nil if there are no
// differences.
func DiffLocks(h1 []byte, v1 map[gps.PackageName]string, h2 []byte, v2 map[gps.PackageName]string) *LockDiff {
	diff := LockDiff{}

	if !bytes.Equal(h1, h2) {
		diff.HashDiff = &StringDiff{Previous: hex.EncodeToString(h1), Current: hex.EncodeToString(h2)}
	}

	for _, name := range sortedNames(v1) {
		cur, has := v2[name]
		if !has {
			diff.Remove = append(diff.Remove, name)
			continue
		}
		if prev := v1[name]; prev != cur {
			diff.Modify = append(diff.Modify, PackageDiff{
				Name:    name,
				Version: &StringDiff{Previous: prev, Current: cur},
			})
		}
	}
	for _, name := range sortedNames(v2) {
		if _, has := v1[name]; !has {
			diff.Add = append(diff.Add, PackageDiff{
				Name:    name,
				Version: &StringDiff{Current: v2[name]},
			})
		}
	}

	if diff.HashDiff == nil && len(diff.Add) == 0 && len(diff.Remove) == 0 && len(diff.Modify) == 0 {
		return nil
	}
	return &diff
}

// Format renders the diff for display, one JSON block per kind of change.
func (diff *LockDiff) Format() (string, error) {
	if diff == nil {
		return "", nil
	}

	var buf bytes.Buffer
	section := func(title string, v interface{}) error {
		buf.WriteString(title + ": ")
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "    ")
		enc.SetEscapeHTML(false)
		return errors.Wrapf(enc.Encode(v), "unable to format LockDiff.%s", title)
	}

	if len(diff.Add) > 0 {
		if err := section("Add", diff.Add); err != nil {
			return "", err
		}
	}
	if len(diff.Remove) > 0 {
		if err := section("Remove", diff.Remove); err != nil {
			return "", err
		}
	}
	if len(diff.Modify) > 0 {
		if err := section("Modify", diff.Modify); err != nil {
			return "", err
		}
	}

	return buf.String(), nil
}

func sortedNames(m map[gps.PackageName]string) []gps.PackageName {
	names := make([]gps.PackageName, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
