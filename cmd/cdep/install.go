// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"path/filepath"
	"time"

	"github.com/cdep/cdep"
	"github.com/cdep/cdep/generate"
	"github.com/cdep/cdep/gps"
	"github.com/cdep/cdep/internal/feedback"
	cdeplog "github.com/cdep/cdep/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const installShortHelp = `Resolve dependencies and write build files`
const installLongHelp = `
Resolve the requirements of the project's manifest against the package
index, for the build profile, and write the files of every generator the
manifest names, plus the lock file.

The profile starts from the host machine and is refined by the -profile
file, CDEP_SETTINGS_<KEY> environment variables, and -s flags, in that order.

Nothing is written unless every step succeeds: generated files, the lock and
any deployed packages are staged, then moved into place together.
`

type installCommand struct {
	profileFlags

	update      bool
	dryRun      bool
	outDir      string
	timeout     time.Duration
	trace       bool
	deploy      bool
	workers     int
	noCache     bool
	metricsFile string
}

func (cmd *installCommand) Name() string      { return "install" }
func (cmd *installCommand) Args() string      { return "" }
func (cmd *installCommand) ShortHelp() string { return installShortHelp }
func (cmd *installCommand) LongHelp() string  { return installLongHelp }
func (cmd *installCommand) Hidden() bool      { return false }

func (cmd *installCommand) Register(fs *flag.FlagSet) {
	cmd.profileFlags.register(fs)
	fs.BoolVar(&cmd.update, "update", false, "ignore the lock and pick the newest admissible versions")
	fs.BoolVar(&cmd.dryRun, "n", false, "dry run, don't actually write anything")
	fs.StringVar(&cmd.outDir, "of", "", "directory to write generated files to (default: the project root)")
	fs.DurationVar(&cmd.timeout, "timeout", 2*time.Minute, "give up if the run takes longer than this")
	fs.BoolVar(&cmd.trace, "trace", false, "print the resolver's trace")
	fs.BoolVar(&cmd.deploy, "deploy", false, "copy every resolved package into the output directory")
	fs.IntVar(&cmd.workers, "workers", gps.DefaultWorkers, "concurrent index requests")
	fs.BoolVar(&cmd.noCache, "no-cache", false, "bypass the metadata cache")
	fs.StringVar(&cmd.metricsFile, "metrics-file", "", "write resolution metrics to this file, in Prometheus text format")
}

func (cmd *installCommand) Run(ctx *cdep.Ctx, args []string) error {
	if len(args) > 0 {
		return errors.Errorf("install takes no arguments, got %q", args)
	}

	p, err := ctx.LoadProject()
	if err != nil {
		return err
	}
	if !p.Manifest.HasGenerators() && !cmd.deploy {
		ctx.Err.Printf("Warning: %s names no generators, only the lock will be written\n", filepath.Base(p.ManifestPath))
	}
	// Unknown generators fail before any work is done.
	if err := generate.Validate(p.Manifest.Generators); err != nil {
		return err
	}

	prof, err := cmd.load(ctx)
	if err != nil {
		return err
	}

	runCtx := context.Background()
	if cmd.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, cmd.timeout)
		defer cancel()
	}

	if cmd.noCache {
		ctx.CacheAge = -1
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
		Workers:      cmd.workers,
		Logger:       logger,
		ChangeAll:    cmd.update,
	}
	if p.Lock != nil {
		params.Lock = p.Lock.Versions()
	}
	if cmd.trace {
		params.Trace = true
		params.TraceLogger = ctx.Err
	}

	var reg *prometheus.Registry
	if cmd.metricsFile != "" {
		reg = prometheus.NewRegistry()
		params.Metrics = gps.NewMetrics()
		if err := params.Metrics.Register(reg); err != nil {
			return errors.Wrap(err, "unable to register metrics")
		}
	}

	if ctx.Verbose {
		for _, r := range p.Manifest.Requires {
			feedback.NewConstraintFeedback(r, feedback.DepTypeDirect).LogFeedback(ctx.Err)
		}
	}

	g, err := gps.Solve(runCtx, params)
	if reg != nil {
		// Failed runs are measured too.
		if werr := prometheus.WriteToTextfile(cmd.metricsFile, reg); werr != nil {
			ctx.Err.Printf("Warning: unable to write metrics: %v\n", werr)
		}
	}
	if err != nil {
		return errors.Wrap(err, "resolution failed")
	}

	if ctx.Verbose {
		for _, rp := range g.TopologicalOrder() {
			feedback.NewLockedPackageFeedback(rp).LogFeedback(ctx.Err)
		}
	}

	engine := &generate.Engine{Workers: cmd.workers, Logger: logger}
	outputs, err := engine.Generate(runCtx, g, p.Manifest.Generators)
	if err != nil {
		return err
	}

	var deploy *gps.Graph
	if cmd.deploy {
		deploy = g
	}

	var sw cdep.SafeWriter
	sw.Prepare(outputs, p.Lock, cdep.LockFromGraph(g), deploy)

	if cmd.dryRun {
		return sw.PrintPreparedActions(ctx.Out, ctx.Verbose)
	}

	outDir := cmd.outDir
	if outDir == "" {
		outDir = p.AbsRoot
	} else if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(ctx.WorkingDir, outDir)
	}

	if err := sw.Write(runCtx, p.AbsRoot, outDir); err != nil {
		return err
	}

	files := 0
	for _, o := range outputs {
		files += len(o.Files)
	}
	cdeplog.New(ctx.Out.Writer()).LogCdepfln("resolved %d packages, wrote %d files to %s", g.Len(), files, outDir)
	return nil
}

// newLogger returns the structured logger for resolution diagnostics,
// writing to ctx.Err.
func newLogger(ctx *cdep.Ctx) *logrus.Logger {
	l := logrus.New()
	l.Out = ctx.Err.Writer()
	l.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	if ctx.Verbose {
		l.Level = logrus.DebugLevel
	} else {
		l.Level = logrus.WarnLevel
	}
	return l
}

// profileFlags are the flags of every command that resolves.
type profileFlags struct {
	profile  string
	settings settingFlags
}

func (pf *profileFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&pf.profile, "profile", "", "TOML profile to build for (default: the host)")
	fs.Var(&pf.settings, "s", "override a profile setting, as key=value; may be repeated")
}

func (pf *profileFlags) load(ctx *cdep.Ctx) (gps.Profile, error) {
	path := pf.profile
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(ctx.WorkingDir, path)
	}
	return cdep.LoadProfile(path, ctx.Env, pf.settings)
}
