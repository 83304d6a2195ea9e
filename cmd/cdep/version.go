// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"runtime"

	"github.com/cdep/cdep"
	"github.com/cdep/cdep/generate"
)

// Version is the cdep release.
const Version = "0.1.0"

const versionShortHelp = `Display version`
const versionLongHelp = `
Print the cdep release and the Go toolchain and platform it was built for.
With -v, also list the generators a manifest may name.
`

type versionCommand struct{}

func (cmd *versionCommand) Name() string           { return "version" }
func (cmd *versionCommand) Args() string           { return "" }
func (cmd *versionCommand) ShortHelp() string      { return versionShortHelp }
func (cmd *versionCommand) LongHelp() string       { return versionLongHelp }
func (cmd *versionCommand) Hidden() bool           { return false }
func (cmd *versionCommand) Register(*flag.FlagSet) {}

func (cmd *versionCommand) Run(ctx *cdep.Ctx, args []string) error {
	ctx.Out.Printf("cdep %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if !ctx.Verbose {
		return nil
	}
	ctx.Out.Println("generators:")
	for _, name := range generate.Names() {
		ctx.Out.Printf("  %s\n", name)
	}
	return nil
}
