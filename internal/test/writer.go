// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package test

import (
	"log"
	"strings"
	"testing"
	"unicode"

	"github.com/sirupsen/logrus"
)

// Writer sends each non-blank line written to it to the test log, so output
// only shows for failing or verbose tests.
type Writer struct {
	testing.TB
}

func (t Writer) Write(b []byte) (int, error) {
	for _, line := range strings.Split(string(b), "\n") {
		if line = strings.TrimRightFunc(line, unicode.IsSpace); line != "" {
			t.Log(line)
		}
	}
	return len(b), nil
}

// Logger returns a *log.Logger writing to the test log.
func Logger(tb testing.TB) *log.Logger {
	return log.New(Writer{TB: tb}, "", 0)
}

// Logrus returns a debug-level *logrus.Logger writing to the test log.
func Logrus(tb testing.TB) *logrus.Logger {
	l := logrus.New()
	l.Out = Writer{TB: tb}
	l.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	l.Level = logrus.DebugLevel
	return l
}
