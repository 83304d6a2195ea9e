// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"github.com/armon/go-radix"
)

// packageTrie indexes the packages of a Graph by name. It is filled while
// the graph is built and only read afterwards, so it has no lock.
type packageTrie struct {
	t *radix.Tree
}

func newPackageTrie() *packageTrie {
	return &packageTrie{t: radix.New()}
}

func (t *packageTrie) Get(name PackageName) (*ResolvedPackage, bool) {
	v, ok := t.t.Get(string(name))
	if !ok {
		return nil, false
	}
	return v.(*ResolvedPackage), true
}

// Insert stores p under name, returning the package it replaced, if any.
func (t *packageTrie) Insert(name PackageName, p *ResolvedPackage) (*ResolvedPackage, bool) {
	old, replaced := t.t.Insert(string(name), p)
	if !replaced {
		return nil, false
	}
	return old.(*ResolvedPackage), true
}

func (t *packageTrie) Len() int {
	return t.t.Len()
}

// WalkPrefix visits, in name order, every package whose name starts with
// prefix. Returning true from fn stops the walk.
func (t *packageTrie) WalkPrefix(prefix string, fn func(*ResolvedPackage) bool) {
	t.t.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		return fn(v.(*ResolvedPackage))
	})
}
