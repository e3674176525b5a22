// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TheGreenCedar/CodeStory/services/index/resolve"
)

var (
	// indexBuildsTotal counts index builds by outcome.
	// Labels: status (ok, failed)
	indexBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codestory",
		Subsystem: "index",
		Name:      "builds_total",
		Help:      "Total index builds by outcome",
	}, []string{"status"})

	// indexBuildSeconds measures end-to-end build duration.
	indexBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "codestory",
		Subsystem: "index",
		Name:      "build_seconds",
		Help:      "End-to-end index build duration",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// indexCallSitesTotal counts resolved call sites by strategy and
	// confidence.
	// Labels: strategy (direct, declared_type, self_member, name_arity,
	// unresolved), confidence (exact, ambiguous, unknown)
	indexCallSitesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codestory",
		Subsystem: "index",
		Name:      "call_sites_total",
		Help:      "Resolved call sites by strategy and confidence",
	}, []string{"strategy", "confidence"})

	// indexDiagnosticsTotal counts diagnostics by severity.
	// Labels: severity (warning, error)
	indexDiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codestory",
		Subsystem: "index",
		Name:      "diagnostics_total",
		Help:      "Diagnostics emitted during builds by severity",
	}, []string{"severity"})
)

// recordBuild records the outcome metrics of one index build.
func recordBuild(stats IndexStats, err error) {
	if err != nil {
		indexBuildsTotal.WithLabelValues("failed").Inc()
		return
	}
	indexBuildsTotal.WithLabelValues("ok").Inc()
	indexBuildSeconds.Observe(float64(stats.DurationMillis) / 1000)
	indexDiagnosticsTotal.WithLabelValues("warning").Add(float64(stats.Warnings))
	indexDiagnosticsTotal.WithLabelValues("error").Add(float64(stats.Errors))
}

// recordSite records one resolved call site.
func recordSite(site *resolve.CallSite) {
	indexCallSitesTotal.WithLabelValues(site.Strategy.String(), site.Confidence.String()).Inc()
}
