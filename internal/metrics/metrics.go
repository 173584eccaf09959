// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics records pipeline stage outcomes on a private registry
// that a run can dump in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Results of a stage.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds the collectors of one run. A nil *Metrics records nothing.
type Metrics struct {
	reg       *prometheus.Registry
	stages    *prometheus.CounterVec
	durations *prometheus.HistogramVec
	cacheHits *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		stages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pkgsmith_stage_total",
				Help: "Pipeline stages run, by outcome",
			},
			[]string{"recipe", "stage", "result"},
		),
		durations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pkgsmith_stage_duration_seconds",
				Help:    "Time taken by pipeline stages",
				Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 1800},
			},
			[]string{"recipe", "stage"},
		),
		cacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pkgsmith_cache_hits_total",
				Help: "Builds served from the build cache",
			},
			[]string{"recipe"},
		),
	}
}

// ObserveStage counts a finished stage and its duration since start.
func (m *Metrics) ObserveStage(recipe, stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.stages.WithLabelValues(recipe, stage, result).Inc()
	m.durations.WithLabelValues(recipe, stage).Observe(time.Since(start).Seconds())
}

// CacheHit counts a build answered from the cache.
func (m *Metrics) CacheHit(recipe string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(recipe).Inc()
}

// WriteTextfile writes every collected metric to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}
