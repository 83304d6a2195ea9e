// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log holds the line logger the cdep command writes its
// user-facing results and failures through.
package log

import (
	"fmt"
	"io"
)

// cmdPrefix leads every line written by LogCdepfln.
const cmdPrefix = "cdep: "

// Logger writes whole lines to an io.Writer. Write errors are dropped.
type Logger struct {
	io.Writer
}

// New returns a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// Logln writes args separated by spaces, then a newline.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l.Writer, args...)
}

// Logf writes a formatted string as is.
func (l *Logger) Logf(format string, args ...interface{}) {
	fmt.Fprintf(l.Writer, format, args...)
}

// LogCdepfln writes a formatted line attributed to the cdep command.
func (l *Logger) LogCdepfln(format string, args ...interface{}) {
	l.Logln(cmdPrefix + fmt.Sprintf(format, args...))
}
