// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cdep

import (
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/cdep/cdep/gps"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// settingsEnvPrefix prefixes environment variables that override a single
// profile setting: CDEP_SETTINGS_BUILD_TYPE=Debug.
const settingsEnvPrefix = "CDEP_SETTINGS_"

// HostProfile describes the machine cdep runs on, building in Release mode.
// The compiler version is left empty.
func HostProfile() gps.Profile {
	return hostProfile(runtime.GOOS, runtime.GOARCH)
}

func hostProfile(goos, goarch string) gps.Profile {
	p := gps.Profile{BuildType: "Release"}

	switch goos {
	case "darwin":
		p.OS, p.Compiler = "Macos", "apple-clang"
	case "windows":
		p.OS, p.Compiler = "Windows", "msvc"
	case "freebsd":
		p.OS, p.Compiler = "FreeBSD", "clang"
	default:
		p.OS, p.Compiler = strings.ToUpper(goos[:1])+goos[1:], "gcc"
	}

	switch goarch {
	case "amd64":
		p.Arch = "x86_64"
	case "386":
		p.Arch = "x86"
	case "arm64":
		p.Arch = "armv8"
	case "arm":
		p.Arch = "armv7"
	default:
		p.Arch = goarch
	}
	return p
}

// readProfile reads a TOML profile. Settings live in a [settings] table;
// the compiler version key is written quoted:
//
//	[settings]
//	os = "Linux"
//	compiler = "gcc"
//	"compiler.version" = "13"
//	build_type = "Release"
//	arch = "x86_64"
//
// Settings the file omits keep their value in base.
func readProfile(r io.Reader, base gps.Profile) (gps.Profile, error) {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return base, errors.Wrap(err, "unable to parse the profile as TOML")
	}

	settings, ok := tree.Get("settings").(*toml.Tree)
	if !ok {
		if tree.Has("settings") {
			return base, errors.New("profile settings must be a table")
		}
		return base, nil
	}

	var kv []string
	for _, key := range settings.Keys() {
		v := settings.GetPath([]string{key})
		s, ok := v.(string)
		if !ok {
			return base, errors.Errorf("profile setting %s must be a string, got %T", key, v)
		}
		kv = append(kv, key+"="+s)
	}
	sort.Strings(kv)
	return ApplySettings(base, kv)
}

// ApplySettings overrides profile settings with "key=value" pairs, applied
// in order.
func ApplySettings(p gps.Profile, kv []string) (gps.Profile, error) {
	for _, s := range kv {
		i := strings.Index(s, "=")
		if i < 1 {
			return p, errors.Errorf("setting %q is not of the form key=value", s)
		}
		key, value := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		switch key {
		case "os":
			p.OS = value
		case "compiler":
			p.Compiler = value
		case "compiler.version":
			p.CompilerVersion = value
		case "build_type":
			p.BuildType = value
		case "arch":
			p.Arch = value
		default:
			return p, errors.Errorf("unknown setting %q", key)
		}
	}
	return p, nil
}

// settingsFromEnv collects CDEP_SETTINGS_* variables as "key=value" pairs,
// sorted by key. CDEP_SETTINGS_COMPILER_VERSION sets compiler.version.
func settingsFromEnv(env []string) []string {
	var kv []string
	seen := make(map[string]bool)
	for i := len(env) - 1; i >= 0; i-- {
		if !strings.HasPrefix(env[i], settingsEnvPrefix) {
			continue
		}
		pair := strings.SplitN(strings.TrimPrefix(env[i], settingsEnvPrefix), "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.ToLower(pair[0])
		if key == "compiler_version" {
			key = "compiler.version"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		kv = append(kv, key+"="+pair[1])
	}
	sort.Strings(kv)
	return kv
}

// LoadProfile builds the profile for a run. It starts from the host
// profile, then applies in turn the profile file at path (if not empty),
// CDEP_SETTINGS_* variables in env, and the "key=value" settings given on
// the command line. The result must name every setting resolution consults.
func LoadProfile(path string, env, settings []string) (gps.Profile, error) {
	p := HostProfile()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return p, errors.Wrapf(err, "could not open profile %s", path)
		}
		defer f.Close()

		p, err = readProfile(f, p)
		if err != nil {
			return p, errors.Wrapf(err, "error while parsing %s", path)
		}
	}

	p, err := ApplySettings(p, settingsFromEnv(env))
	if err != nil {
		return p, errors.Wrap(err, "invalid CDEP_SETTINGS_ variable")
	}
	if p, err = ApplySettings(p, settings); err != nil {
		return p, err
	}
	return p, p.Validate()
}
