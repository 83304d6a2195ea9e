// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package generate

import (
	"context"
	"io/ioutil"
	"sort"

	"github.com/cdep/cdep/gps"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Engine renders the outputs of a set of generators over one graph.
type Engine struct {
	// Workers bounds how many generators render at once. Zero means one per
	// generator.
	Workers int
	Logger  *logrus.Logger
}

// Generate renders every named generator over g. Outputs are returned
// sorted by generator name; names may repeat.
//
// All names are checked before anything is rendered. An unknown name fails
// the whole call with an *UnknownGeneratorError.
func (e *Engine) Generate(ctx context.Context, g *gps.Graph, names []string) ([]Output, error) {
	if g == nil {
		return nil, errors.New("cannot generate from a nil graph")
	}

	gens, err := selectGenerators(names)
	if err != nil {
		return nil, err
	}

	l := e.Logger
	if l == nil {
		l = logrus.New()
		l.Out = ioutil.Discard
	}

	outs := make([]Output, len(gens))
	eg, ctx := errgroup.WithContext(ctx)
	if e.Workers > 0 {
		eg.SetLimit(e.Workers)
	}
	for i, gen := range gens {
		i, gen := i, gen
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files, err := gen.Render(g)
			if err != nil {
				return errors.Wrapf(err, "generator %s failed", gen.Name())
			}
			sort.Slice(files, func(a, b int) bool { return files[a].Path < files[b].Path })
			outs[i] = Output{Generator: gen.Name(), Files: files}

			if l.Level >= logrus.DebugLevel {
				l.WithFields(logrus.Fields{
					"generator": gen.Name(),
					"files":     len(files),
				}).Debug("Rendered generator output")
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	owner := make(map[string]string)
	for _, o := range outs {
		for _, f := range o.Files {
			if prev, has := owner[f.Path]; has {
				return nil, errors.Errorf("generators %s and %s both write %s", prev, o.Generator, f.Path)
			}
			owner[f.Path] = o.Generator
		}
	}

	return outs, nil
}

// selectGenerators resolves names against the registry, dropping
// duplicates and sorting by name.
func selectGenerators(names []string) ([]Generator, error) {
	seen := make(map[string]bool, len(names))
	var gens []Generator
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true

		gen, has := Lookup(n)
		if !has {
			return nil, &UnknownGeneratorError{Name: n, Known: Names()}
		}
		gens = append(gens, gen)
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i].Name() < gens[j].Name() })
	return gens, nil
}

// Validate checks that every name is a registered generator, without
// rendering anything.
func Validate(names []string) error {
	_, err := selectGenerators(names)
	return err
}
