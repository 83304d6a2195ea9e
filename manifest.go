// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cdep

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cdep/cdep/gps"
	"github.com/cdep/cdep/internal/fs"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// ManifestName is the manifest file name used by cdep.
const ManifestName = "cdep.toml"

// ConanfileName is the legacy manifest cdep can read in place of a
// cdep.toml.
const ConanfileName = "conanfile.txt"

// knownSettings are the profile settings a manifest may declare it uses.
var knownSettings = map[string]bool{
	"os":               true,
	"compiler":         true,
	"compiler.version": true,
	"build_type":       true,
	"arch":             true,
}

// Manifest holds manifest file data.
type Manifest struct {
	// Settings names the profile settings the project is built for.
	Settings []string
	// Requires are the direct requirements, in declaration order.
	Requires []gps.Requirement
	// Generators names the integration files to emit.
	Generators []string
	// Overrides pin the version of a package for every requirer.
	Overrides map[gps.PackageName]gps.Constraint
}

type rawManifest struct {
	Settings   []string      `toml:"settings,omitempty"`
	Requires   []string      `toml:"requires,omitempty"`
	Generators []string      `toml:"generators,omitempty"`
	Overrides  []rawOverride `toml:"override,omitempty"`
}

type rawOverride struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

func readManifest(r io.Reader) (*Manifest, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse the manifest as TOML")
	}

	raw := rawManifest{}
	if err := tree.Unmarshal(&raw); err != nil {
		return nil, errors.Wrap(err, "unable to map the manifest TOML")
	}

	return fromRawManifest(raw)
}

func fromRawManifest(raw rawManifest) (*Manifest, error) {
	m := &Manifest{
		Settings:   raw.Settings,
		Generators: raw.Generators,
	}

	for _, s := range raw.Settings {
		if !knownSettings[s] {
			return nil, errors.Errorf("unknown setting %q", s)
		}
	}

	for _, ref := range raw.Requires {
		r, err := gps.ParseRequirement(ref)
		if err != nil {
			return nil, err
		}
		r.Direct = true
		m.Requires = append(m.Requires, r)
	}

	for _, o := range raw.Overrides {
		if o.Name == "" {
			return nil, errors.New("override is missing a name")
		}
		if _, has := m.Overrides[gps.PackageName(o.Name)]; has {
			return nil, errors.Errorf("multiple overrides specified for %s, can only specify one", o.Name)
		}
		c, err := gps.NewConstraint(o.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "override for %s", o.Name)
		}
		if m.Overrides == nil {
			m.Overrides = make(map[gps.PackageName]gps.Constraint)
		}
		m.Overrides[gps.PackageName(o.Name)] = c
	}

	return m, nil
}

// toRaw converts the manifest into a representation suitable to write to
// the manifest file.
func (m *Manifest) toRaw() rawManifest {
	raw := rawManifest{
		Settings:   m.Settings,
		Generators: m.Generators,
	}
	for _, r := range m.Requires {
		raw.Requires = append(raw.Requires, r.String())
	}

	names := make([]string, 0, len(m.Overrides))
	for n := range m.Overrides {
		names = append(names, string(n))
	}
	sort.Strings(names)
	for _, n := range names {
		raw.Overrides = append(raw.Overrides, rawOverride{
			Name:    n,
			Version: m.Overrides[gps.PackageName(n)].String(),
		})
	}
	return raw
}

// MarshalTOML serializes this manifest into TOML.
func (m *Manifest) MarshalTOML() ([]byte, error) {
	result, err := toml.Marshal(m.toRaw())
	return result, errors.Wrap(err, "unable to marshal the manifest to TOML")
}

// readConanfile reads the [requires] and [generators] sections of a
// conanfile.txt. Other sections are ignored.
func readConanfile(r io.Reader) (*Manifest, error) {
	raw := rawManifest{}
	section := ""
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "#"); i != -1 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, errors.Errorf("line %d: malformed section header %q", n, line)
			}
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}

		switch section {
		case "requires":
			raw.Requires = append(raw.Requires, line)
		case "generators":
			raw.Generators = append(raw.Generators, line)
		case "":
			return nil, errors.Errorf("line %d: %q is outside of any section", n, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "unable to read conanfile")
	}

	return fromRawManifest(raw)
}

// DependencyConstraints returns the direct requirements.
func (m *Manifest) DependencyConstraints() []gps.Requirement {
	return m.Requires
}

// HasGenerators reports whether the manifest requests any output.
func (m *Manifest) HasGenerators() bool {
	return len(m.Generators) > 0
}

// NewManifest builds a manifest from requirement references such as
// "antlr4/4.13.1" and generator names. Settings default to every setting
// resolution consults.
func NewManifest(refs, generators []string) (*Manifest, error) {
	return fromRawManifest(rawManifest{
		Settings:   []string{"os", "compiler", "build_type", "arch"},
		Requires:   refs,
		Generators: generators,
	})
}

// ImportConanfile reads the conanfile.txt at path.
func ImportConanfile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	defer f.Close()

	m, err := readConanfile(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error while parsing %s", path)
	}
	if len(m.Settings) == 0 {
		m.Settings = []string{"os", "compiler", "build_type", "arch"}
	}
	return m, nil
}

// WriteManifest writes m to path, replacing the file in one rename.
func WriteManifest(path string, m *Manifest) error {
	b, err := m.MarshalTOML()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ManifestName+".")
	if err != nil {
		return errors.Wrap(err, "unable to create a temporary manifest")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "unable to write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "unable to write %s", tmp.Name())
	}
	return errors.Wrapf(fs.RenameWithFallback(tmp.Name(), path), "unable to write %s", path)
}
