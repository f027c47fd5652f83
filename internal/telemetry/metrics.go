// Package telemetry keeps process-wide counters for the integration test
// engine and renders them for scraping.
package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

type Metrics struct {
	TestsRun            atomic.Uint64
	TestsPassed         atomic.Uint64
	TestsFailed         atomic.Uint64
	TestsWarned         atomic.Uint64
	TestsAborted        atomic.Uint64
	ProviderCalls       atomic.Uint64
	ProviderErrors      atomic.Uint64
	ProviderRateLimited atomic.Uint64
	EventsPublished     atomic.Uint64
	EventsDropped       atomic.Uint64
	SweepRuns           atomic.Uint64
}

// RecordResult counts one finished test by its status.
func (m *Metrics) RecordResult(status string) {
	if m == nil {
		return
	}
	m.TestsRun.Add(1)
	switch status {
	case "pass":
		m.TestsPassed.Add(1)
	case "fail":
		m.TestsFailed.Add(1)
	case "warn":
		m.TestsWarned.Add(1)
	}
}

func (m *Metrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"integration_tests_total":         m.TestsRun.Load(),
		"integration_tests_passed_total":  m.TestsPassed.Load(),
		"integration_tests_failed_total":  m.TestsFailed.Load(),
		"integration_tests_warned_total":  m.TestsWarned.Load(),
		"integration_tests_aborted_total": m.TestsAborted.Load(),
		"provider_calls_total":            m.ProviderCalls.Load(),
		"provider_errors_total":           m.ProviderErrors.Load(),
		"provider_rate_limited_total":     m.ProviderRateLimited.Load(),
		"events_published_total":          m.EventsPublished.Load(),
		"events_dropped_total":            m.EventsDropped.Load(),
		"health_sweeps_total":             m.SweepRuns.Load(),
	}
}

// PrometheusText renders a snapshot in the Prometheus text exposition format.
func PrometheusText(snapshot map[string]uint64) string {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		metric := "mission_control_" + key
		fmt.Fprintf(&b, "# TYPE %s counter\n", metric)
		fmt.Fprintf(&b, "%s %d\n", metric, snapshot[key])
	}
	return b.String()
}
