// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cdep

import (
	"bytes"
	"encoding/hex"
	"io"
	"sort"

	"github.com/cdep/cdep/gps"
	"github.com/cdep/cdep/internal/feedback"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// LockName is the lock file name used by cdep.
const LockName = "cdep.lock"

// Lock holds lock file data: the versions a resolution selected and a
// digest of the inputs that produced them.
type Lock struct {
	Memo []byte
	P    []LockedPackage
}

// LockedPackage is one package pinned by a lock.
type LockedPackage struct {
	Name    gps.PackageName
	Version gps.Version
	Direct  bool
}

type rawLock struct {
	Memo     string             `toml:"memo"`
	Packages []rawLockedPackage `toml:"package"`
}

type rawLockedPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Direct  bool   `toml:"direct,omitempty"`
}

func readLock(r io.Reader) (*Lock, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse the lock as TOML")
	}

	raw := rawLock{}
	if err := tree.Unmarshal(&raw); err != nil {
		return nil, errors.Wrap(err, "unable to map the lock TOML")
	}

	b, err := hex.DecodeString(raw.Memo)
	if err != nil {
		return nil, errors.Errorf("invalid hash digest in lock's memo field")
	}

	l := &Lock{
		Memo: b,
		P:    make([]LockedPackage, 0, len(raw.Packages)),
	}
	seen := make(map[string]bool, len(raw.Packages))
	for _, lp := range raw.Packages {
		if lp.Name == "" {
			return nil, errors.New("lock file has an entry with no name")
		}
		if lp.Version == "" {
			return nil, errors.Errorf("lock file has entry for %s, but specifies no version", lp.Name)
		}
		if seen[lp.Name] {
			return nil, errors.Errorf("lock file has multiple entries for %s", lp.Name)
		}
		seen[lp.Name] = true
		l.P = append(l.P, LockedPackage{
			Name:    gps.PackageName(lp.Name),
			Version: gps.NewVersion(lp.Version),
			Direct:  lp.Direct,
		})
	}
	sort.Sort(sortedLockedPackages(l.P))

	return l, nil
}

// LockFromGraph builds the lock recording g.
func LockFromGraph(g *gps.Graph) *Lock {
	l := &Lock{Memo: g.InputHash()}
	for _, p := range g.TopologicalOrder() {
		l.P = append(l.P, LockedPackage{
			Name:    p.Name(),
			Version: p.Version(),
			Direct:  p.Direct(),
		})
	}
	sort.Sort(sortedLockedPackages(l.P))
	return l
}

// InputHash returns the digest of the inputs the lock was produced from.
func (l *Lock) InputHash() []byte {
	return l.Memo
}

// Versions returns the locked version of every package, in the form
// gps.SolveParameters.Lock takes.
func (l *Lock) Versions() map[gps.PackageName]gps.Version {
	if l == nil {
		return nil
	}
	out := make(map[gps.PackageName]gps.Version, len(l.P))
	for _, lp := range l.P {
		out[lp.Name] = lp.Version
	}
	return out
}

func (l *Lock) versionStrings() map[gps.PackageName]string {
	if l == nil {
		return nil
	}
	out := make(map[gps.PackageName]string, len(l.P))
	for _, lp := range l.P {
		out[lp.Name] = lp.Version.String()
	}
	return out
}

// toRaw converts the lock into a representation suitable to write to the
// lock file.
func (l *Lock) toRaw() rawLock {
	raw := rawLock{
		Memo:     hex.EncodeToString(l.Memo),
		Packages: make([]rawLockedPackage, len(l.P)),
	}

	sort.Sort(sortedLockedPackages(l.P))

	for k, lp := range l.P {
		raw.Packages[k] = rawLockedPackage{
			Name:    string(lp.Name),
			Version: lp.Version.String(),
			Direct:  lp.Direct,
		}
	}
	return raw
}

// MarshalTOML serializes this lock into TOML.
func (l *Lock) MarshalTOML() ([]byte, error) {
	result, err := toml.Marshal(l.toRaw())
	return result, errors.Wrap(err, "unable to marshal the lock to TOML")
}

type sortedLockedPackages []LockedPackage

func (s sortedLockedPackages) Len() int           { return len(s) }
func (s sortedLockedPackages) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s sortedLockedPackages) Less(i, j int) bool { return s[i].Name < s[j].Name }

// locksAreEquivalent compares two locks to see if they differ. If EITHER lock
// is nil, or their memos do not match, or any packages differ, then false is
// returned.
func locksAreEquivalent(l, r *Lock) bool {
	if l == nil || r == nil {
		return false
	}

	if !bytes.Equal(l.Memo, r.Memo) {
		return false
	}

	if len(l.P) != len(r.P) {
		return false
	}

	sort.Sort(sortedLockedPackages(l.P))
	sort.Sort(sortedLockedPackages(r.P))

	for k, lp := range l.P {
		rp := r.P[k]
		if lp.Name != rp.Name || !lp.Version.Equal(rp.Version) || lp.Direct != rp.Direct {
			return false
		}
	}

	return true
}

// diffLocks compares two locks and identifies the differences between them.
// Returns nil if there are no differences.
func diffLocks(l1, l2 *Lock) *feedback.LockDiff {
	var h1, h2 []byte
	if l1 != nil {
		h1 = l1.Memo
	}
	if l2 != nil {
		h2 = l2.Memo
	}
	return feedback.DiffLocks(h1, l1.versionStrings(), h2, l2.versionStrings())
}
