// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"context"
	"time"

	"github.com/cdep/cdep/gps"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Retrying wraps an index whose calls may fail transiently, retrying failed
// calls with exponential backoff. NotFound answers and context errors are
// returned immediately.
type Retrying struct {
	Index gps.PackageIndex

	// Attempts bounds the number of calls made per request. Zero means 3.
	Attempts int
	// Delay is the wait before the first retry; it doubles after each
	// failure, up to MaxDelay. Zero means 100ms and 2s respectively.
	Delay, MaxDelay time.Duration

	// Logger, if set, receives a warning per failed attempt.
	Logger *logrus.Logger
}

// NewRetrying wraps idx with the default retry policy.
func NewRetrying(idx gps.PackageIndex, l *logrus.Logger) *Retrying {
	return &Retrying{Index: idx, Logger: l}
}

// ListVersions implements gps.PackageIndex.
func (r *Retrying) ListVersions(ctx context.Context, name gps.PackageName) ([]gps.Version, error) {
	var vl []gps.Version
	err := r.do(ctx, "list versions", name, func() (err error) {
		vl, err = r.Index.ListVersions(ctx, name)
		return err
	})
	return vl, err
}

// Fetch implements gps.PackageIndex.
func (r *Retrying) Fetch(ctx context.Context, name gps.PackageName, v gps.Version) (gps.PackageMetadata, error) {
	var m gps.PackageMetadata
	err := r.do(ctx, "fetch", name, func() (err error) {
		m, err = r.Index.Fetch(ctx, name, v)
		return err
	})
	return m, err
}

func (r *Retrying) do(ctx context.Context, op string, name gps.PackageName, fn func() error) error {
	attempts, delay, max := r.Attempts, r.Delay, r.MaxDelay
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	if max <= 0 {
		max = 2 * time.Second
	}

	var err error
	for i := 1; ; i++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		if i == attempts {
			break
		}

		if r.Logger != nil {
			r.Logger.WithFields(logrus.Fields{
				"name":    name,
				"attempt": i,
				"wait":    delay,
			}).WithError(err).Warn("Index call failed, retrying")
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		delay *= 2
		if delay > max {
			delay = max
		}
	}

	return errors.Wrapf(err, "unable to %s %s after %d attempts", op, name, attempts)
}

func retryable(err error) bool {
	if gps.IsNotFound(err) {
		return false
	}
	switch errors.Cause(err) {
	case context.Canceled, context.DeadlineExceeded:
		return false
	}
	return true
}
