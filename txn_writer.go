// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cdep

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cdep/cdep/generate"
	"github.com/cdep/cdep/gps"
	"github.com/cdep/cdep/internal/feedback"
	"github.com/cdep/cdep/internal/fs"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// DeployDirName is the directory beneath the output directory that package
// trees are copied into when deploying.
const DeployDirName = "deploy"

// writeLockName is the file locked in the output directory while a batch is
// moved into place.
const writeLockName = ".cdep-write.lock"

// SafeWriter transactionalizes writes of generated files, the lock and a
// deploy tree, in any combination, into a pseudo-atomic action with
// transactional rollback.
//
// It is not impervious to errors (writing to disk is hard), but it should
// guard against non-arcane failure conditions.
type SafeWriter struct {
	Payload *SafeWriterPayload
}

// SafeWriterPayload represents the actions SafeWriter will execute when
// SafeWriter.Write is called.
type SafeWriterPayload struct {
	Outputs  []generate.Output
	Lock     *Lock
	LockDiff *feedback.LockDiff
	// Deploy, if set, has every package tree in the graph copied beneath
	// the output directory.
	Deploy *gps.Graph
}

// HasOutputs reports whether any generated files are to be written.
func (payload *SafeWriterPayload) HasOutputs() bool {
	for _, o := range payload.Outputs {
		if len(o.Files) > 0 {
			return true
		}
	}
	return false
}

// HasLock reports whether the lock is to be written.
func (payload *SafeWriterPayload) HasLock() bool {
	return payload.Lock != nil
}

// HasDeploy reports whether package trees are to be copied.
func (payload *SafeWriterPayload) HasDeploy() bool {
	return payload.Deploy != nil
}

// Prepare to write a set of generated files, a lock and a deploy tree.
//
// - Every file of every output is written beneath the output directory.
// - If newLock is provided and lock is not, newLock is written.
// - If lock and newLock are both provided and are equivalent, the lock is
//   not written.
// - If lock and newLock are both provided and differ, newLock is written
//   and the difference is recorded in LockDiff.
// - If deploy is not nil, the tree of every package in it is copied.
func (sw *SafeWriter) Prepare(outputs []generate.Output, lock, newLock *Lock, deploy *gps.Graph) {
	sw.Payload = &SafeWriterPayload{
		Outputs: outputs,
		Deploy:  deploy,
	}

	if newLock == nil {
		return
	}
	if lock == nil {
		sw.Payload.Lock = newLock
		sw.Payload.LockDiff = diffLocks(nil, newLock)
		return
	}
	if !locksAreEquivalent(lock, newLock) {
		sw.Payload.Lock = newLock
		sw.Payload.LockDiff = diffLocks(lock, newLock)
	}
}

func (payload SafeWriterPayload) validate(root, outDir string) error {
	if root == "" {
		return errors.New("root path must be non-empty")
	}
	if is, err := fs.IsDir(root); !is {
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return errors.Errorf("root path %q does not exist", root)
	}
	if outDir == "" {
		return errors.New("output path must be non-empty")
	}

	seen := make(map[string]bool)
	for _, o := range payload.Outputs {
		for _, f := range o.Files {
			clean := filepath.Clean(filepath.FromSlash(f.Path))
			if filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
				return errors.Errorf("generator %s produced a path outside of the output directory: %q", o.Generator, f.Path)
			}
			if seen[clean] {
				return errors.Errorf("more than one generator writes %s", f.Path)
			}
			seen[clean] = true
		}
	}
	if payload.HasDeploy() && seen[DeployDirName] {
		return errors.Errorf("a generated file collides with the %s directory", DeployDirName)
	}

	return nil
}

// Write saves some combination of generated files, the lock and a deploy
// tree. root is the absolute path of the project root, where the lock is
// written; outDir is where generated files and the deploy tree go. It is
// created if missing.
//
// It first writes to a temp dir, then moves the results in place if and only
// if all the write operations succeeded. The moves happen while holding an
// exclusive lock on outDir, so concurrent runs cannot interleave. If any move
// fails, everything already moved is put back as it was. Failures to touch
// the disk are reported as *generate.IOError.
func (sw *SafeWriter) Write(ctx context.Context, root, outDir string) error {
	if sw.Payload == nil {
		return errors.New("cannot call SafeWriter.Write before SafeWriter.Prepare")
	}

	err := sw.Payload.validate(root, outDir)
	if err != nil {
		return err
	}

	if !sw.Payload.HasOutputs() && !sw.Payload.HasLock() && !sw.Payload.HasDeploy() {
		// nothing to do
		return nil
	}

	if err := os.MkdirAll(outDir, 0777); err != nil {
		return &generate.IOError{Op: "create", Path: outDir, Err: err}
	}

	fl := flock.New(filepath.Join(outDir, writeLockName))
	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &generate.IOError{Op: "lock", Path: outDir, Err: err}
	}
	if !locked {
		return &generate.IOError{Op: "lock", Path: outDir, Err: errors.New("lock is held elsewhere")}
	}
	defer fl.Unlock()

	// The staging dir shares a filesystem with outDir, so most moves are
	// plain renames.
	td, err := os.MkdirTemp(outDir, ".cdep-")
	if err != nil {
		return &generate.IOError{Op: "create temp dir in", Path: outDir, Err: err}
	}
	defer os.RemoveAll(td)

	stage := filepath.Join(td, "new")
	backup := filepath.Join(td, "orig")

	// Every move pairs a staged path with its destination.
	type pathpair struct {
		from, to string
	}
	var moves []pathpair

	for _, o := range sw.Payload.Outputs {
		for _, f := range o.Files {
			rel := filepath.Clean(filepath.FromSlash(f.Path))
			tmp := filepath.Join(stage, "out", rel)
			if err := writeStaged(tmp, f.Content); err != nil {
				return err
			}
			moves = append(moves, pathpair{from: tmp, to: filepath.Join(outDir, rel)})
		}
	}

	if sw.Payload.HasLock() {
		b, err := sw.Payload.Lock.MarshalTOML()
		if err != nil {
			return err
		}
		tmp := filepath.Join(stage, LockName)
		if err := writeStaged(tmp, b); err != nil {
			return err
		}
		moves = append(moves, pathpair{from: tmp, to: filepath.Join(root, LockName)})
	}

	if sw.Payload.HasDeploy() {
		tmp := filepath.Join(stage, DeployDirName)
		if err := deployTree(ctx, sw.Payload.Deploy, tmp); err != nil {
			return err
		}
		moves = append(moves, pathpair{from: tmp, to: filepath.Join(outDir, DeployDirName)})
	}

	// Move the existing files and dirs to the temp dir while we put the new
	// ones in, to provide insurance against errors for as long as possible.
	var restore []pathpair
	var added, created []string
	var failerr error

	for i, mv := range moves {
		_, err := os.Lstat(mv.to)
		switch {
		case os.IsNotExist(err):
			added = append(added, mv.to)
		case err != nil:
			failerr = &generate.IOError{Op: "stat", Path: mv.to, Err: err}
			goto fail
		default:
			// Move out the old one.
			tmploc := filepath.Join(backup, strconv.Itoa(i))
			if failerr = os.MkdirAll(backup, 0777); failerr != nil {
				failerr = &generate.IOError{Op: "create", Path: backup, Err: failerr}
				goto fail
			}
			if failerr = fs.RenameWithFallback(mv.to, tmploc); failerr != nil {
				failerr = &generate.IOError{Op: "move aside", Path: mv.to, Err: failerr}
				goto fail
			}
			restore = append(restore, pathpair{from: tmploc, to: mv.to})
		}

		// Move in the new one.
		if top := topMissingDir(filepath.Dir(mv.to)); top != "" {
			created = append(created, top)
		}
		if failerr = os.MkdirAll(filepath.Dir(mv.to), 0777); failerr == nil {
			failerr = fs.RenameWithFallback(mv.from, mv.to)
		}
		if failerr != nil {
			failerr = &generate.IOError{Op: "write", Path: mv.to, Err: failerr}
			goto fail
		}
	}

	return nil

fail:
	// If we failed at any point, move all the things back into place, then
	// bail. Nothing we can do on err here, as we're already in recovery mode.
	for _, p := range added {
		os.RemoveAll(p)
	}
	for i := len(created) - 1; i >= 0; i-- {
		os.RemoveAll(created[i])
	}
	for _, pair := range restore {
		os.RemoveAll(pair.to)
		fs.RenameWithFallback(pair.from, pair.to)
	}
	return failerr
}

// topMissingDir returns the outermost ancestor of dir, dir included, that
// does not exist yet, or "" if dir exists.
func topMissingDir(dir string) string {
	var top string
	for {
		if _, err := os.Lstat(dir); !os.IsNotExist(err) {
			return top
		}
		top = dir
		parent := filepath.Dir(dir)
		if parent == dir {
			return top
		}
		dir = parent
	}
}

// writeStaged writes content to path, creating parent directories.
func writeStaged(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return &generate.IOError{Op: "create", Path: filepath.Dir(path), Err: err}
	}
	if err := os.WriteFile(path, content, 0666); err != nil {
		return &generate.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// deployTree copies the root of every package in g to dir/<name>, and checks
// each copy hashes the same as its source.
func deployTree(ctx context.Context, g *gps.Graph, dir string) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return &generate.IOError{Op: "create", Path: dir, Err: err}
	}

	for _, p := range g.TopologicalOrder() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.RootPath() == "" {
			return errors.Errorf("cannot deploy %s: the index gave no root path", p)
		}

		dst := filepath.Join(dir, string(p.Name()))
		if err := fs.CopyDir(p.RootPath(), dst); err != nil {
			return &generate.IOError{Op: "deploy", Path: p.RootPath(), Err: err}
		}

		want, err := fs.HashTree(p.RootPath())
		if err != nil {
			return &generate.IOError{Op: "hash", Path: p.RootPath(), Err: err}
		}
		got, err := fs.HashTree(dst)
		if err != nil {
			return &generate.IOError{Op: "hash", Path: dst, Err: err}
		}
		if got != want {
			return &generate.IOError{Op: "deploy", Path: p.RootPath(), Err: errors.Errorf("copy hashes to %s, source to %s", got, want)}
		}
	}
	return nil
}

// PrintPreparedActions logs what Write would do.
func (sw *SafeWriter) PrintPreparedActions(l *log.Logger, verbose bool) error {
	if sw.Payload.HasOutputs() {
		l.Println("Would have written the following files:")
		for _, o := range sw.Payload.Outputs {
			for _, f := range o.Files {
				l.Printf("  %s (%s, %s)\n", f.Path, o.Generator, humanize.Bytes(uint64(len(f.Content))))
				if verbose {
					l.Println(string(f.Content))
				}
			}
		}
	}

	if sw.Payload.HasLock() {
		if sw.Payload.LockDiff == nil {
			l.Printf("Would have written %s.\n", LockName)
		} else {
			l.Printf("Would have written the following changes to %s:\n", LockName)
			diff, err := sw.Payload.LockDiff.Format()
			if err != nil {
				return errors.Wrap(err, "dry run cannot serialize the lock diff")
			}
			l.Println(diff)
		}
	}

	if sw.Payload.HasDeploy() {
		l.Printf("Would have deployed the following packages to %s:\n", DeployDirName)
		for _, p := range sw.Payload.Deploy.TopologicalOrder() {
			l.Printf("  %s %s <- %s\n", p.Name(), p.Version(), p.RootPath())
		}
	}

	return nil
}
