// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package test

import (
	"github.com/d4l3k/messagediff"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff reports whether a and b are equal, along with a readable account of
// how they differ. Strings are diffed textually, anything else field by
// field.
func Diff(a, b interface{}) (diff string, ok bool) {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		dmp := diffmatchpatch.New()
		d := dmp.DiffMain(as, bs, false)
		return dmp.DiffPrettyText(d), as == bs
	}
	return messagediff.PrettyDiff(a, b)
}
