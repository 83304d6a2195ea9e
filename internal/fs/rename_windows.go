// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package fs

import (
	"os"
	"syscall"
)

// errNotSameDevice is ERROR_NOT_SAME_DEVICE.
const errNotSameDevice syscall.Errno = 0x11

// isCrossDevice reports whether a rename failed because src and dst are on
// different volumes.
func isCrossDevice(err error) bool {
	le, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	return le.Err == syscall.EXDEV || le.Err == errNotSameDevice
}
