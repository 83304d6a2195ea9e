// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cdep/cdep"
	"github.com/cdep/cdep/gps"
	"github.com/pkg/errors"
)

const graphShortHelp = `Print the resolved dependency graph`
const graphLongHelp = `
Resolve the project's requirements, as install does, and print the result
without writing anything: one line per package in dependency order, or a
Graphviz digraph with -dot.

With -prefix, only packages whose names start with the prefix are listed.
`

type graphCommand struct {
	profileFlags

	dot     bool
	prefix  string
	timeout time.Duration
}

func (cmd *graphCommand) Name() string      { return "graph" }
func (cmd *graphCommand) Args() string      { return "" }
func (cmd *graphCommand) ShortHelp() string { return graphShortHelp }
func (cmd *graphCommand) LongHelp() string  { return graphLongHelp }
func (cmd *graphCommand) Hidden() bool      { return false }

func (cmd *graphCommand) Register(fs *flag.FlagSet) {
	cmd.profileFlags.register(fs)
	fs.BoolVar(&cmd.dot, "dot", false, "output the graph in Graphviz dot format")
	fs.StringVar(&cmd.prefix, "prefix", "", "only list packages whose names start with this")
	fs.DurationVar(&cmd.timeout, "timeout", 2*time.Minute, "give up if resolution takes longer than this")
}

func (cmd *graphCommand) Run(ctx *cdep.Ctx, args []string) error {
	if len(args) > 0 {
		return errors.Errorf("graph takes no arguments, got %q", args)
	}
	if cmd.dot && cmd.prefix != "" {
		return errors.New("cannot pass both -dot and -prefix")
	}

	p, err := ctx.LoadProject()
	if err != nil {
		return err
	}
	prof, err := cmd.load(ctx)
	if err != nil {
		return err
	}

	logger := newLogger(ctx)
	idx, closer, err := ctx.Index(logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	params := gps.SolveParameters{
		Requirements: p.Manifest.Requires,
		Overrides:    p.Manifest.Overrides,
		Profile:      prof,
		Index:        idx,
		Logger:       logger,
		Timeout:      cmd.timeout,
	}
	if p.Lock != nil {
		params.Lock = p.Lock.Versions()
	}

	g, err := gps.Solve(context.Background(), params)
	if err != nil {
		return errors.Wrap(err, "resolution failed")
	}

	w := ctx.Out.Writer()
	if cmd.dot {
		return writeDot(w, g)
	}
	return writeTable(w, g, cmd.prefix)
}

func writeDot(w io.Writer, g *gps.Graph) error {
	gv := graphviz{}.New()
	for _, rp := range g.TopologicalOrder() {
		var children []string
		for _, d := range rp.Deps() {
			children = append(children, string(d.Name()))
		}
		gv.createNode(string(rp.Name()), rp.Version().String(), children)
	}
	b := gv.output()
	_, err := w.Write(b.Bytes())
	return err
}

func writeTable(w io.Writer, g *gps.Graph, prefix string) error {
	var pkgs []*gps.ResolvedPackage
	if prefix == "" {
		pkgs = g.TopologicalOrder()
	} else {
		g.WalkPrefix(prefix, func(rp *gps.ResolvedPackage) bool {
			pkgs = append(pkgs, rp)
			return false
		})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tVERSION\tDIRECT\tREQUIRES\t")
	for _, rp := range pkgs {
		var deps []string
		for _, d := range rp.Deps() {
			deps = append(deps, string(d.Name()))
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t\n", rp.Name(), rp.Version(), rp.Direct(), strings.Join(deps, ", "))
	}
	return tw.Flush()
}
