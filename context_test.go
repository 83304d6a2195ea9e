// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cdep

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cdep/cdep/gps"
	"github.com/cdep/cdep/internal/test"
)

func TestCtxSetPaths(t *testing.T) {
	c := &Ctx{}
	if err := c.SetPaths("", nil); err == nil {
		t.Error("expected an empty working directory to be rejected")
	}

	env := []string{"CDEP_HOME=/old", "CDEP_HOME=/home/me/.cdep", "CDEP_INDEX=recipes"}
	if err := c.SetPaths("/src/app", env); err != nil {
		t.Fatal(err)
	}
	if c.CacheDir != "/home/me/.cdep" {
		t.Errorf("expected the last CDEP_HOME to win, got %s", c.CacheDir)
	}
	if c.IndexDir != filepath.Join("/src/app", "recipes") {
		t.Errorf("expected a relative index to resolve against the working dir, got %s", c.IndexDir)
	}

	if err := c.SetPaths("/src/app", []string{"CDEP_HOME=/opt/cdep"}); err != nil {
		t.Fatal(err)
	}
	if c.IndexDir != filepath.Join("/opt/cdep", "index") {
		t.Errorf("expected the index to default beneath CDEP_HOME, got %s", c.IndexDir)
	}
}

func TestLoadProject(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()

	h.TempFile("app/"+ManifestName, antlrManifest)
	h.TempFile("app/"+LockName, lg)
	h.TempDir("app/src/parser")

	c := &Ctx{WorkingDir: h.Path("app/src/parser")}
	p, err := c.LoadProject()
	if err != nil {
		t.Fatal(err)
	}
	if p.AbsRoot != h.Path("app") {
		t.Errorf("expected project root %s, got %s", h.Path("app"), p.AbsRoot)
	}
	if len(p.Manifest.Requires) != 2 {
		t.Errorf("unexpected manifest %+v", p.Manifest)
	}
	if p.Lock == nil || len(p.Lock.P) != 2 {
		t.Errorf("expected the lock to be read, got %+v", p.Lock)
	}
}

func TestLoadProjectConanfile(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()

	h.TempFile("app/"+ConanfileName, "[requires]\nantlr4/4.13.1\n[generators]\nCMakeDeps\n")

	c := &Ctx{WorkingDir: h.Path("app")}
	p, err := c.LoadProject()
	if err != nil {
		t.Fatal(err)
	}
	if p.ManifestPath != filepath.Join(h.Path("app"), ConanfileName) || p.Lock != nil {
		t.Errorf("unexpected project %+v", p)
	}
}

func TestLoadProjectNotFound(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()
	h.TempDir("empty")

	c := &Ctx{WorkingDir: h.Path("empty")}
	if _, err := c.LoadProject(); err != errProjectNotFound {
		t.Errorf("expected errProjectNotFound, got %v", err)
	}
}

func TestCtxIndex(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()
	h.TempFile("index/zlib/1.3.1/package.toml", "name = \"zlib\"\nversion = \"1.3.1\"\n")
	h.TempDir("home")

	c := &Ctx{CacheDir: h.Path("home"), IndexDir: h.Path("index")}
	idx, closer, err := c.Index(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	vl, err := idx.ListVersions(context.Background(), "zlib")
	if err != nil {
		t.Fatal(err)
	}
	if len(vl) != 1 || vl[0].String() != "1.3.1" {
		t.Errorf("unexpected versions %v", vl)
	}
	if _, err := idx.ListVersions(context.Background(), "bzip2"); !gps.IsNotFound(err) {
		t.Errorf("expected NotFound for an unknown package, got %v", err)
	}
	h.MustExist(c.CacheFile())

	c.IndexDir = h.Path("home") + "/missing"
	if _, _, err := c.Index(nil); err == nil {
		t.Error("expected a missing index to be reported")
	}
}

func TestCtxCacheFile(t *testing.T) {
	a := &Ctx{CacheDir: "/home/me/.cdep", IndexDir: "/srv/index-a"}
	b := &Ctx{CacheDir: "/home/me/.cdep", IndexDir: "/srv/index-b"}
	same := &Ctx{CacheDir: "/home/me/.cdep", IndexDir: "/srv/index-a/"}

	if a.CacheFile() == b.CacheFile() {
		t.Errorf("expected distinct cache files for distinct indexes, both got %s", a.CacheFile())
	}
	if a.CacheFile() != same.CacheFile() {
		t.Errorf("expected one cache file for one index, got %s and %s", a.CacheFile(), same.CacheFile())
	}
	if filepath.Dir(a.CacheFile()) != filepath.FromSlash("/home/me/.cdep") {
		t.Errorf("expected the cache file under CacheDir, got %s", a.CacheFile())
	}
}
