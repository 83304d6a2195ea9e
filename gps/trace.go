// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"fmt"
	"strings"
)

// Trace line leaders.
const (
	successChar = "✓"
	failChar    = "✗"
	backChar    = "←"
)

// tracef writes a trace message indented by depth bars. The first line of
// the message gets lead in front of it; continuation lines get a bar.
func (s *solver) tracef(depth int, lead, format string, args ...interface{}) {
	if !s.params.Trace {
		return
	}
	if depth < 0 {
		depth = 0
	}
	indent := strings.Repeat("| ", depth)

	lines := strings.Split(strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"), "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
			b.WriteString(indent + "| ")
		} else {
			b.WriteString(indent + lead)
		}
		b.WriteString(line)
	}
	s.tl.Println(b.String())
}

// traceCheckQueue reports that the solver is about to try the versions
// left in q.
func (s *solver) traceCheckQueue(q *versionQueue, cont bool, offset int) {
	verb, left := "attempt", fmt.Sprint(len(q.pi))
	if cont {
		verb, left = "continue", left+" more"
	}
	s.tracef(len(s.vqs)+offset, "", "? %s %s; %s versions to try", verb, q.name, left)
}

// traceStartBacktrack reports the package whose exhaustion starts a
// backtrack.
func (s *solver) traceStartBacktrack(name PackageName, err error) {
	s.tracef(len(s.sel.projects), "", "%s no more versions of %s to try; begin backtrack", backChar, name)
}

// traceBacktrack reports a package popped off the selection.
func (s *solver) traceBacktrack(name PackageName) {
	s.tracef(len(s.sel.projects), "", "%s backtrack: no more versions of %s to try", backChar, name)
}

func (s *solver) traceFinish(g *Graph, err error) {
	if err != nil {
		s.tracef(0, failChar+" ", "solving failed")
		return
	}
	s.tracef(0, successChar+" ", "found solution with %d packages", g.Len())
}

func (s *solver) traceSelectRoot(reqs []Requirement) {
	s.tracef(0, "", "Root is %q, profile %s", s.rd.name, s.params.Profile)
	s.tracef(0, " ", "%d direct requirements", len(reqs))
	s.tracef(0, successChar+" ", "select %s", s.rd.name)
}

func (s *solver) traceSelect(a atom) {
	s.tracef(len(s.sel.projects)-1, successChar+" ", "select %s", a)
}

// traceInfo reports a step of the current attempt. The first argument is
// either a format string for the remaining ones, or the error that rejected
// the attempt.
func (s *solver) traceInfo(args ...interface{}) {
	if !s.params.Trace {
		return
	}

	depth := len(s.sel.projects)
	switch data := args[0].(type) {
	case string:
		s.tracef(depth, "| ", data, args[1:]...)
	case traceError:
		s.tracef(depth+1, failChar+" ", "%s", data.traceString())
	case error:
		s.tracef(depth+1, failChar+" ", "%s", data.Error())
	default:
		panic(fmt.Sprintf("canary - unknown type passed as first param to traceInfo %T", data))
	}
}
