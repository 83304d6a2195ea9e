// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command cdep resolves the C/C++ dependencies of a project and generates
// the files its build system needs to use them.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cdep/cdep"
	cdeplog "github.com/cdep/cdep/log"
	"github.com/pkg/errors"
)

type command interface {
	Name() string           // "install"
	Args() string           // "[name/version...]"
	ShortHelp() string      // one line for the command list
	LongHelp() string       // shown by "cdep help <command>"
	Register(*flag.FlagSet) // command-specific flags
	Hidden() bool           // leave out of the command list
	Run(*cdep.Ctx, []string) error
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to get working directory", err)
		os.Exit(cdep.ExitError)
	}
	c := &Config{
		WorkingDir: wd,
		Args:       os.Args,
		Env:        os.Environ(),
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
	os.Exit(c.Run())
}

// A Config specifies a full configuration for a cdep execution.
type Config struct {
	WorkingDir     string    // Where to execute
	Args           []string  // Command-line arguments, starting with the program name.
	Env            []string  // Environment variables
	Stdout, Stderr io.Writer // Log output
}

var examples = [][2]string{
	{"cdep init", "set up a new project"},
	{"cdep install", "resolve dependencies and write build files"},
	{"cdep install -update", "ignore the lock and pick the newest admissible versions"},
	{"cdep install -s build_type=Debug -of build", "generate for a debug build into ./build"},
	{"cdep graph -dot | dot -Tpng -o deps.png", "draw the resolved dependency graph"},
}

// Run executes a configuration and returns an exit code.
func (c *Config) Run() int {
	commands := []command{
		&initCommand{},
		&installCommand{},
		&graphCommand{},
		&versionCommand{},
	}

	errLogger := log.New(c.Stderr, "", 0)

	cmdName, printCommandHelp, exit := parseArgs(c.Args)
	if exit {
		c.usage(commands)
		return cdep.ExitError
	}

	var cmd command
	for _, cand := range commands {
		if cand.Name() == cmdName {
			cmd = cand
			break
		}
	}
	if cmd == nil {
		errLogger.Printf("cdep: %s: no such command\n", cmdName)
		c.usage(commands)
		return cdep.ExitError
	}

	fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	verbose := fs.Bool("v", false, "enable verbose logging")
	cmd.Register(fs)
	fs.Usage = commandUsage(errLogger, fs, cmd)

	if printCommandHelp {
		fs.Usage()
		return cdep.ExitError
	}
	// The flag package reports its own errors, -h included.
	if err := fs.Parse(c.Args[2:]); err != nil {
		return cdep.ExitError
	}

	ctx := &cdep.Ctx{
		Out:     log.New(c.Stdout, "", 0),
		Err:     errLogger,
		Verbose: *verbose,
	}
	if err := ctx.SetPaths(c.WorkingDir, c.Env); err != nil {
		errLogger.Printf("%v\n", err)
		return cdep.ExitError
	}

	if err := cmd.Run(ctx, fs.Args()); err != nil {
		cdeplog.New(c.Stderr).LogCdepfln("%v", err)
		return cdep.ExitCode(err)
	}
	return cdep.ExitOK
}

// usage writes the command list and examples to Stderr.
func (c *Config) usage(commands []command) {
	w := tabwriter.NewWriter(c.Stderr, 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "cdep resolves C/C++ package dependencies and generates build files\n\n")
	fmt.Fprint(w, "Usage: cdep <command>\n\nCommands:\n\n")
	for _, cmd := range commands {
		if !cmd.Hidden() {
			fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
		}
	}
	fmt.Fprint(w, "\nExamples:\n")
	for _, ex := range examples {
		fmt.Fprintf(w, "\t%s\t%s\n", ex[0], ex[1])
	}
	fmt.Fprint(w, "\nUse \"cdep help [command]\" for more information about a command.\n")
	w.Flush()
}

// commandUsage returns the usage func of cmd's flag set. Flags with an
// empty default show "<none>".
func commandUsage(logger *log.Logger, fs *flag.FlagSet, cmd command) func() {
	var flags strings.Builder
	tw := tabwriter.NewWriter(&flags, 0, 4, 2, ' ', 0)
	fs.VisitAll(func(f *flag.Flag) {
		def := f.DefValue
		if def == "" {
			def = "<none>"
		}
		fmt.Fprintf(tw, "\t-%s\t%s (default: %s)\n", f.Name, f.Usage, def)
	})
	tw.Flush()

	return func() {
		logger.Printf("Usage: cdep %s %s\n\n", cmd.Name(), cmd.Args())
		logger.Printf("%s\n\n", strings.TrimSpace(cmd.LongHelp()))
		if flags.Len() > 0 {
			logger.Printf("Flags:\n\n%s\n", flags.String())
		}
	}
}

// parseArgs picks the command name out of args, and whether help was asked
// for: "cdep help install" prints the usage of install. exit is set when no
// command was named.
func parseArgs(args []string) (cmdName string, printCmdUsage bool, exit bool) {
	if len(args) < 2 {
		return "", false, true
	}

	first := strings.ToLower(args[1])
	isHelp := first == "-h" || strings.Contains(first, "help")
	switch {
	case !isHelp:
		return args[1], false, false
	case len(args) == 2:
		return args[1], false, true
	default:
		return args[2], true, false
	}
}

// settingFlags collects repeated -s key=value flags.
type settingFlags []string

func (s *settingFlags) String() string {
	return strings.Join(*s, " ")
}

func (s *settingFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return errors.Errorf("setting %q is not of the form key=value", v)
	}
	*s = append(*s, v)
	return nil
}
