// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/cdep/cdep/gps"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Recipe file names, in the order they are looked for.
const (
	RecipeTOML = "package.toml"
	RecipeYML  = "package.yml"
	RecipeYAML = "package.yaml"
)

// Dir is a PackageIndex laid out on disk as
//
//	<Root>/<name>/<version>/package.toml
//
// A version directory may hold package.yml or package.yaml instead. A
// version directory without any recipe is ignored.
//
// A recipe's root is resolved against its version directory, which is also
// the default when the recipe names none.
type Dir struct {
	Root string
}

// NewDir returns an index reading recipes from root.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// ListVersions implements gps.PackageIndex.
func (d *Dir) ListVersions(ctx context.Context, name gps.PackageName) ([]gps.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdir := filepath.Join(d.Root, string(name))
	ents, err := godirwalk.ReadDirents(pdir, nil)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(gps.ErrNotFound, "package %s", name)
		}
		return nil, errors.Wrapf(err, "unable to read versions of %s", name)
	}

	var vl []gps.Version
	for _, de := range ents {
		if !de.IsDir() {
			continue
		}
		if _, err := findRecipe(filepath.Join(pdir, de.Name())); err != nil {
			continue
		}
		vl = append(vl, gps.NewVersion(de.Name()))
	}
	if len(vl) == 0 {
		return nil, errors.Wrapf(gps.ErrNotFound, "package %s has no versions", name)
	}

	gps.SortForUpgrade(vl)
	return vl, nil
}

// Fetch implements gps.PackageIndex.
func (d *Dir) Fetch(ctx context.Context, name gps.PackageName, v gps.Version) (gps.PackageMetadata, error) {
	if err := ctx.Err(); err != nil {
		return gps.PackageMetadata{}, err
	}

	vdir := filepath.Join(d.Root, string(name), v.String())
	path, err := findRecipe(vdir)
	if err != nil {
		return gps.PackageMetadata{}, errors.Wrapf(err, "package %s at %s", name, v)
	}

	raw, err := readRecipe(path)
	if err != nil {
		return gps.PackageMetadata{}, err
	}

	// The directory layout is authoritative; a recipe may leave these out,
	// but must not contradict them.
	if raw.Name == "" {
		raw.Name = string(name)
	}
	if raw.Version == "" {
		raw.Version = v.String()
	}
	if raw.Name != string(name) || !gps.NewVersion(raw.Version).Equal(v) {
		return gps.PackageMetadata{}, errors.Errorf("%s describes %s %s, but is stored as %s %s", path, raw.Name, raw.Version, name, v)
	}

	switch {
	case raw.Root == "":
		raw.Root = vdir
	case !filepath.IsAbs(raw.Root):
		raw.Root = filepath.Join(vdir, raw.Root)
	}

	m, err := raw.toMetadata()
	if err != nil {
		return gps.PackageMetadata{}, errors.Wrapf(err, "invalid recipe %s", path)
	}
	return m, nil
}

// findRecipe returns the path of the recipe file in a version directory.
func findRecipe(vdir string) (string, error) {
	for _, fn := range []string{RecipeTOML, RecipeYML, RecipeYAML} {
		path := filepath.Join(vdir, fn)
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", gps.ErrNotFound
}

func readRecipe(path string) (rawPackage, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return rawPackage{}, errors.Wrapf(err, "unable to read %s", path)
	}

	if filepath.Ext(path) == ".toml" {
		raw, err := readTOMLPackage(b)
		return raw, errors.Wrapf(err, "%s", path)
	}

	raw := rawPackage{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return raw, errors.Wrapf(err, "unable to parse %s as YAML", path)
	}
	return raw, nil
}

// WritePackage stores m as a TOML recipe under root, in the layout Dir reads.
func WritePackage(root string, m gps.PackageMetadata) error {
	vdir := filepath.Join(root, string(m.Name), m.Version.String())
	if err := os.MkdirAll(vdir, 0777); err != nil {
		return errors.Wrapf(err, "unable to create %s", vdir)
	}

	// Roots inside the version directory are stored relative to it.
	if rel, err := filepath.Rel(vdir, m.RootPath); err == nil && m.RootPath != "" && !filepath.IsAbs(rel) && rel != ".." && !hasDotDotPrefix(rel) {
		if rel == "." {
			rel = ""
		}
		m.RootPath = rel
	}

	b, err := marshalTOMLPackage(m)
	if err != nil {
		return err
	}
	return errors.Wrapf(ioutil.WriteFile(filepath.Join(vdir, RecipeTOML), b, 0666), "unable to write recipe for %s %s", m.Name, m.Version)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
