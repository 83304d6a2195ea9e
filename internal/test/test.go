// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package test holds helpers shared by the cdep test suites.
package test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

// Helper manages a scratch directory for one test. Every method fails the
// test on error.
type Helper struct {
	t       testing.TB
	tempdir string
}

// NewHelper returns a Helper for t. The scratch directory is made on first
// use; Cleanup removes it.
func NewHelper(t testing.TB) *Helper {
	return &Helper{t: t}
}

// Must fails the test if err is not nil.
func (h *Helper) Must(err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("%+v", err)
	}
}

func (h *Helper) root() string {
	if h.tempdir == "" {
		dir, err := ioutil.TempDir("", "cdeptest")
		h.Must(err)
		// Paths handed to code under test should match what it computes.
		dir, err = filepath.EvalSymlinks(dir)
		h.Must(err)
		h.tempdir = dir
	}
	return h.tempdir
}

// TempFile writes contents to path beneath the scratch directory, creating
// parent directories.
func (h *Helper) TempFile(path, contents string) {
	h.t.Helper()
	full := filepath.Join(h.root(), path)
	h.Must(os.MkdirAll(filepath.Dir(full), 0755))
	h.Must(ioutil.WriteFile(full, []byte(contents), 0644))
}

// TempDir creates path, and its parents, beneath the scratch directory.
func (h *Helper) TempDir(path string) {
	h.t.Helper()
	full := filepath.Join(h.root(), path)
	h.Must(errors.Wrapf(os.MkdirAll(full, 0755), "unable to create temp directory %s", full))
}

// Path returns the absolute path of name beneath the scratch directory.
// The directory must already have been used.
func (h *Helper) Path(name string) string {
	h.t.Helper()
	if h.tempdir == "" {
		h.t.Fatalf("internal testsuite error: path(%q) with no tempdir", name)
	}
	return filepath.Join(h.tempdir, name)
}

// ReadFile returns the contents of path.
func (h *Helper) ReadFile(path string) string {
	h.t.Helper()
	b, err := ioutil.ReadFile(path)
	h.Must(errors.Wrapf(err, "unable to read file %s", path))
	return string(b)
}

// Exist reports whether path exists. Errors other than non-existence fail
// the test.
func (h *Helper) Exist(path string) bool {
	h.t.Helper()
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	h.Must(errors.Wrapf(err, "error checking if path exists: %s", path))
	return true
}

// MustExist fails the test if path does not exist.
func (h *Helper) MustExist(path string) {
	h.t.Helper()
	if !h.Exist(path) {
		h.t.Fatalf("%s does not exist but should", path)
	}
}

// MustNotExist fails the test if path exists.
func (h *Helper) MustNotExist(path string) {
	h.t.Helper()
	if h.Exist(path) {
		h.t.Fatalf("%s exists but should not", path)
	}
}

// Cleanup removes the scratch directory.
func (h *Helper) Cleanup() {
	if h.tempdir != "" {
		if err := os.RemoveAll(h.tempdir); err != nil {
			h.t.Errorf("%+v", err)
		}
	}
}
