// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestHashTree(t *testing.T) {
	dir, err := ioutil.TempDir("", "cdephash")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	files := map[string]string{
		"include/a.h":   "int a;\n",
		"lib/liba.a":    "archive",
		".git/HEAD":     "ref: refs/heads/main\n",
		"share/doc.txt": "docs",
	}
	one, two := filepath.Join(dir, "one"), filepath.Join(dir, "two")
	mkTree(t, one, files)
	mkTree(t, two, files)

	h1, err := HashTree(one)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashTree(two)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("identical trees at different paths hashed differently: %s != %s", h1, h2)
	}

	// VCS metadata doesn't count.
	mkTree(t, two, map[string]string{".git/HEAD": "ref: refs/heads/other\n"})
	if h2, _ = HashTree(two); h1 != h2 {
		t.Error("expected VCS metadata to be ignored")
	}

	mkTree(t, two, map[string]string{"include/a.h": "int b;\n"})
	if h2, _ = HashTree(two); h1 == h2 {
		t.Error("expected a content change to change the hash")
	}

	if err := os.Mkdir(filepath.Join(one, "empty"), 0755); err != nil {
		t.Fatal(err)
	}
	if h3, _ := HashTree(one); h3 == h1 {
		t.Error("expected an empty directory to change the hash")
	}

	if _, err := HashTree(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error for a missing tree")
	}
}
