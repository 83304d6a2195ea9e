// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cdep ties resolution and generation to a project on disk: its
// manifest, lock, profile and package index, and the transactional writer
// that puts generated files in place.
package cdep

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cdep/cdep/gps"
	"github.com/cdep/cdep/index"
	"github.com/cdep/cdep/internal/fs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultCacheAge is how long index answers stay in the metadata cache.
const DefaultCacheAge = 24 * time.Hour

// Ctx defines the supporting context of cdep.
//
// A properly initialized Ctx has a WorkingDir, a CacheDir and an IndexDir.
// The WorkingDir is the directory cdep was started in; LoadProject searches
// upwards from it for a manifest.
type Ctx struct {
	WorkingDir string // Where to execute.
	CacheDir   string // Holds the metadata cache; $CDEP_HOME or ~/.cdep.
	IndexDir   string // Directory index of package recipes; $CDEP_INDEX or CacheDir/index.
	Env        []string // Environment, in os.Environ form.
	Out, Err   *log.Logger
	Verbose    bool

	// CacheAge bounds the age of cached index answers. Zero means
	// DefaultCacheAge, a negative value disables the cache.
	CacheAge time.Duration
}

// SetPaths sets the WorkingDir, CacheDir and IndexDir fields of the Ctx
// from wd and the environment variables in env, which is in os.Environ
// form.
func (c *Ctx) SetPaths(wd string, env []string) error {
	if wd == "" {
		return errors.New("cannot set Ctx.WorkingDir to an empty path")
	}
	c.WorkingDir = wd
	c.Env = env

	c.CacheDir = getEnv(env, "CDEP_HOME")
	if c.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "unable to determine the cdep home directory; set CDEP_HOME")
		}
		c.CacheDir = filepath.Join(home, ".cdep")
	}

	c.IndexDir = getEnv(env, "CDEP_INDEX")
	if c.IndexDir == "" {
		c.IndexDir = filepath.Join(c.CacheDir, "index")
	}
	if !filepath.IsAbs(c.IndexDir) {
		c.IndexDir = filepath.Join(wd, c.IndexDir)
	}
	return nil
}

// getEnv returns the last instance of an environment variable.
func getEnv(env []string, key string) string {
	for i := len(env) - 1; i >= 0; i-- {
		v := env[i]
		kv := strings.SplitN(v, "=", 2)
		if kv[0] == key {
			if len(kv) > 1 {
				return kv[1]
			}
			return ""
		}
	}
	return ""
}

// LoadProject starts from the current working directory and searches up the
// directory tree for a project root. The search stops when a cdep.toml or,
// failing that, a conanfile.txt is located. The manifest and any lock file
// next to it are read.
func (c *Ctx) LoadProject() (*Project, error) {
	root, name, err := findProjectRoot(c.WorkingDir)
	if err != nil {
		return nil, err
	}

	p := &Project{AbsRoot: root, ManifestPath: filepath.Join(root, name)}

	mf, err := os.Open(p.ManifestPath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", p.ManifestPath)
	}
	defer mf.Close()

	if name == ConanfileName {
		p.Manifest, err = readConanfile(mf)
	} else {
		p.Manifest, err = readManifest(mf)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error while parsing %s", p.ManifestPath)
	}

	lp := filepath.Join(root, LockName)
	lf, err := os.Open(lp)
	if err != nil {
		if os.IsNotExist(err) {
			// It's fine for the lock not to exist
			return p, nil
		}
		// But if a lock does exist and we can't open it, that's a problem
		return nil, errors.Wrapf(err, "could not open %s", lp)
	}
	defer lf.Close()

	p.Lock, err = readLock(lf)
	if err != nil {
		return nil, errors.Wrapf(err, "error while parsing %s", lp)
	}

	return p, nil
}

// findProjectRoot searches from the starting directory upwards looking for a
// manifest file until we get to the root of the filesystem.
func findProjectRoot(from string) (root, name string, err error) {
	for {
		for _, name := range []string{ManifestName, ConanfileName} {
			mp := filepath.Join(from, name)
			_, err := os.Stat(mp)
			if err == nil {
				return from, name, nil
			}
			if !os.IsNotExist(err) {
				// Some err other than non-existence - return that out
				return "", "", err
			}
		}

		parent := filepath.Dir(from)
		if parent == from {
			return "", "", errProjectNotFound
		}
		from = parent
	}
}

var errProjectNotFound = errors.Errorf("could not find project %s or %s, use cdep init to create one", ManifestName, ConanfileName)

// Index builds the package index cdep resolves against: the recipe
// directory at IndexDir, retried on transient failures, behind the metadata
// cache in CacheDir. The returned closer releases the cache.
func (c *Ctx) Index(l *logrus.Logger) (gps.PackageIndex, io.Closer, error) {
	if is, err := fs.IsDir(c.IndexDir); !is {
		if err != nil && !os.IsNotExist(err) {
			return nil, nil, err
		}
		return nil, nil, errors.Errorf("package index %s does not exist; set CDEP_INDEX", c.IndexDir)
	}

	var idx gps.PackageIndex = index.NewRetrying(index.NewDir(c.IndexDir), l)

	age := c.CacheAge
	if age < 0 {
		return idx, nopCloser{}, nil
	}
	if age == 0 {
		age = DefaultCacheAge
	}

	logger := c.Err
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cache, err := index.NewCache(c.CacheFile(), idx, time.Now().Add(-age).Unix(), logger)
	if err != nil {
		return nil, nil, err
	}
	return cache, cache, nil
}

// CacheFile is the metadata cache database for IndexDir. Each index gets
// its own file so answers from one are never served for another.
func (c *Ctx) CacheFile() string {
	dir := filepath.Clean(c.IndexDir)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	sum := sha256.Sum256([]byte(dir))
	return filepath.Join(c.CacheDir, "index-"+hex.EncodeToString(sum[:8])+".db")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Project holds a manifest and optional lock for a project.
type Project struct {
	// AbsRoot is the absolute path to the directory holding the manifest.
	AbsRoot string
	// ManifestPath is the manifest file that was read.
	ManifestPath string
	Manifest     *Manifest
	Lock         *Lock
}
