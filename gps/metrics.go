// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gps

import (
	"bytes"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records where a solve run spends its time, both as an in-process
// phase breakdown and as prometheus collectors. A nil *Metrics is valid and
// records nothing.
//
// Phase tracking is not safe for concurrent use; a Metrics belongs to one
// solve run at a time.
type Metrics struct {
	stack []string
	times map[string]time.Duration
	last  time.Time

	phaseSeconds *prometheus.HistogramVec
	solvesTotal  *prometheus.CounterVec
	backtracks   prometheus.Counter
	selections   prometheus.Counter
}

// NewMetrics creates an unregistered Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		times: make(map[string]time.Duration),
		phaseSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cdep_solve_phase_duration_seconds",
				Help:    "Time spent in each phase of dependency resolution.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		solvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdep_solve_total",
				Help: "Number of solve runs by result.",
			},
			[]string{"result"},
		),
		backtracks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cdep_solve_backtracks_total",
				Help: "Number of successful backtracks performed by the solver.",
			},
		),
		selections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cdep_solve_selections_total",
				Help: "Number of package atoms selected by the solver.",
			},
		),
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.phaseSeconds, m.solvesTotal, m.backtracks, m.selections} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) begin() {
	if m == nil {
		return
	}
	m.stack = []string{"other"}
	m.times = map[string]time.Duration{
		"other": 0,
	}
	m.last = time.Now()
}

func (m *Metrics) push(name string) {
	if m == nil || len(m.stack) == 0 {
		return
	}
	cn := m.stack[len(m.stack)-1]
	m.times[cn] = m.times[cn] + time.Since(m.last)

	m.stack = append(m.stack, name)
	m.last = time.Now()
}

func (m *Metrics) pop() {
	if m == nil || len(m.stack) < 2 {
		return
	}
	on := m.stack[len(m.stack)-1]
	m.times[on] = m.times[on] + time.Since(m.last)

	m.stack = m.stack[:len(m.stack)-1]
	m.last = time.Now()
}

// end closes out the run, flushing phase times into the histogram.
func (m *Metrics) end() {
	if m == nil || len(m.stack) == 0 {
		return
	}
	for len(m.stack) > 1 {
		m.pop()
	}
	m.times["other"] += time.Since(m.last)
	m.stack = nil

	for phase, d := range m.times {
		m.phaseSeconds.WithLabelValues(phase).Observe(d.Seconds())
	}
}

func (m *Metrics) observe(err error) {
	if m == nil {
		return
	}
	result := "success"
	switch err.(type) {
	case nil:
	case *VersionConflictError:
		result = "version_conflict"
	case *CyclicDependencyError:
		result = "cyclic_dependency"
	case *PackageNotFoundError:
		result = "package_not_found"
	case *ProfileMismatchError:
		result = "profile_mismatch"
	case *TimeoutError:
		result = "timeout"
	default:
		result = "error"
	}
	m.solvesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) backtracked() {
	if m != nil {
		m.backtracks.Inc()
	}
}

func (m *Metrics) selected() {
	if m != nil {
		m.selections.Inc()
	}
}

// Times returns the accumulated time per phase of the last run.
func (m *Metrics) Times() map[string]time.Duration {
	out := make(map[string]time.Duration, len(m.times))
	for k, v := range m.times {
		out[k] = v
	}
	return out
}

// String renders the phase breakdown of the last run, longest first.
func (m *Metrics) String() string {
	type segment struct {
		name string
		d    time.Duration
	}
	var segs []segment
	var tot time.Duration
	for name, d := range m.times {
		segs = append(segs, segment{name, d})
		tot += d
	}
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].d == segs[j].d {
			return segs[i].name < segs[j].name
		}
		return segs[i].d > segs[j].d
	})

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 1, ' ', tabwriter.AlignRight)
	for _, seg := range segs {
		fmt.Fprintf(w, "\t%s:\t%v\t\n", seg.name, seg.d)
	}
	fmt.Fprintf(w, "\n\tTOTAL:\t%v\t\n", tot)
	w.Flush()
	return buf.String()
}
