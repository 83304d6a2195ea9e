// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs holds the filesystem primitives cdep's writers are built on.
package fs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/termie/go-shutil"
)

// RenameWithFallback moves src to dst. When the two are on different
// devices it copies instead, then removes src. A directory is never moved
// over an existing directory.
func RenameWithFallback(src, dst string) error {
	sfi, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}
	if sfi.IsDir() {
		if dfi, err := os.Stat(dst); err == nil && dfi.IsDir() {
			return errors.Errorf("cannot rename directory %s to existing dst %s", src, dst)
		}
	}

	err = os.Rename(src, dst)
	switch {
	case err == nil:
		return nil
	case !isCrossDevice(err):
		return errors.Wrapf(err, "cannot rename %s to %s", src, dst)
	}

	if sfi.IsDir() {
		err = CopyDir(src, dst)
	} else {
		_, err = shutil.Copy(src, dst, false)
	}
	if err != nil {
		return errors.Wrapf(err, "rename fallback failed: cannot copy %s to %s", src, dst)
	}
	return errors.Wrapf(os.RemoveAll(src), "cannot delete %s", src)
}

// CopyDir copies the tree at src to dst, keeping symlinks as links and file
// permissions as they are. dst must not exist yet.
func CopyDir(src, dst string) error {
	src, dst = filepath.Clean(src), filepath.Clean(dst)

	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.Errorf("%s is not a directory", src)
	}

	switch _, err := os.Lstat(dst); {
	case err == nil:
		return errors.Errorf("destination %s already exists", dst)
	case !os.IsNotExist(err):
		return err
	}

	opts := &shutil.CopyTreeOptions{Symlinks: true, CopyFunction: shutil.Copy}
	return errors.Wrapf(shutil.CopyTree(src, dst, opts), "cannot copy %s to %s", src, dst)
}

// IsDir reports whether name is a directory. Anything else that exists is
// an error.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	switch {
	case err != nil:
		return false, err
	case !fi.IsDir():
		return false, errors.Errorf("%q is not a directory", name)
	}
	return true, nil
}
