// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/cdep/cdep"
	"github.com/pkg/errors"
)

const initShortHelp = `Initialize a new project with a manifest`
const initLongHelp = `
Write a cdep.toml in the current directory.

If a conanfile.txt is present, its requirements and generators are carried
over. Otherwise the manifest requires the packages given as arguments, as
name/version references, and generates CMake files.
`

type initCommand struct {
	generators string
}

func (cmd *initCommand) Name() string      { return "init" }
func (cmd *initCommand) Args() string      { return "[name/version...]" }
func (cmd *initCommand) ShortHelp() string { return initShortHelp }
func (cmd *initCommand) LongHelp() string  { return initLongHelp }
func (cmd *initCommand) Hidden() bool      { return false }

func (cmd *initCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.generators, "generators", "CMakeDeps,CMakeToolchain", "comma-separated generators to request")
}

func (cmd *initCommand) Run(ctx *cdep.Ctx, args []string) error {
	mf := filepath.Join(ctx.WorkingDir, cdep.ManifestName)
	if _, err := os.Stat(mf); err == nil {
		return errors.Errorf("manifest already exists: %s", mf)
	} else if !os.IsNotExist(err) {
		return err
	}

	var m *cdep.Manifest
	var err error
	cf := filepath.Join(ctx.WorkingDir, cdep.ConanfileName)
	if _, serr := os.Stat(cf); serr == nil {
		if len(args) > 0 {
			return errors.Errorf("%s exists, requirements cannot also be given as arguments", cdep.ConanfileName)
		}
		m, err = cdep.ImportConanfile(cf)
		if err == nil && ctx.Verbose {
			ctx.Err.Printf("Importing %d requirements from %s\n", len(m.Requires), cdep.ConanfileName)
		}
	} else {
		var gens []string
		for _, g := range strings.Split(cmd.generators, ",") {
			if g = strings.TrimSpace(g); g != "" {
				gens = append(gens, g)
			}
		}
		m, err = cdep.NewManifest(args, gens)
	}
	if err != nil {
		return err
	}

	if err := cdep.WriteManifest(mf, m); err != nil {
		return err
	}
	ctx.Out.Printf("Wrote %s\n", mf)
	return nil
}
