// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package generate

import (
	"fmt"
	"strings"
)

// UnknownGeneratorError is returned when a requested generator is not in
// the registry.
type UnknownGeneratorError struct {
	Name  string
	Known []string
}

func (e *UnknownGeneratorError) Error() string {
	return fmt.Sprintf("unknown generator %q (known generators: %s)", e.Name, strings.Join(e.Known, ", "))
}

// IOError is returned when rendered output could not be written. Nothing
// from the batch it belongs to is left behind.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("unable to %s %s: %s", e.Op, e.Path, e.Err)
}

