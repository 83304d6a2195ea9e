// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import "strings"

// versionQueue is the list of versions of one package still to be tried,
// with the reasons earlier ones were rejected.
//
// A locked version is tried before anything else. The rest follow in the
// order the index listed them, which is highest first.
type versionQueue struct {
	name  PackageName
	pi    []Version
	fails []failedVersion

	// failed marks the current version as the cause of a backtrack, so the
	// solver advances past it instead of retrying it.
	failed bool
}

func newVersionQueue(name PackageName, lockv Version, all []Version) *versionQueue {
	vq := &versionQueue{name: name, pi: make([]Version, 0, len(all)+1)}
	locked := !lockv.IsZero()
	if locked {
		vq.pi = append(vq.pi, lockv)
	}
	for _, v := range all {
		if locked && v.Equal(lockv) {
			continue
		}
		vq.pi = append(vq.pi, v)
	}
	return vq
}

// current is the version under consideration, or the zero Version once the
// queue is exhausted.
func (vq *versionQueue) current() Version {
	if vq.isExhausted() {
		return Version{}
	}
	return vq.pi[0]
}

// advance rejects the current version for reason fail and moves on.
func (vq *versionQueue) advance(fail error) {
	if vq.isExhausted() {
		return
	}
	vq.fails = append(vq.fails, failedVersion{v: vq.pi[0], f: fail})
	vq.pi = vq.pi[1:]
	vq.failed = false
}

func (vq *versionQueue) isExhausted() bool {
	return len(vq.pi) == 0
}

func (vq *versionQueue) String() string {
	vs := make([]string, len(vq.pi))
	for i, v := range vq.pi {
		vs[i] = v.String()
	}
	return "[" + strings.Join(vs, ", ") + "]"
}
