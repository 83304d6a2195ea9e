// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package fs

import (
	"os"
	"syscall"
)

// isCrossDevice reports whether a rename failed because src and dst are on
// different devices.
func isCrossDevice(err error) bool {
	le, ok := err.(*os.LinkError)
	return ok && le.Err == syscall.EXDEV
}
