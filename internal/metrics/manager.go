// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics wires queue depth, cache hit rate, and pipeline latency
// into a Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// DepthGauge is anything whose current backlog the Manager should sample on
// scrape, namely the Operation Queue.
type DepthGauge interface {
	Depth() int
}

// Manager owns the process's Prometheus registry and the gateway's own
// metrics.
type Manager struct {
	registry *prometheus.Registry

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	pipelineDur *prometheus.HistogramVec
	queueDepth  prometheus.GaugeFunc
}

// NewManager builds the registry, registers the standard Go/process
// collectors plus the gateway's own metrics, and hooks queueDepth as a live
// gauge sampling q.Depth() on every scrape.
func NewManager(q DepthGauge) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sqlgate_query_cache_hits_total",
			Help: "Number of query cache lookups that returned a live entry.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sqlgate_query_cache_misses_total",
			Help: "Number of query cache lookups that found no live entry.",
		}),
		pipelineDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sqlgate_pipeline_duration_seconds",
			Help:    "Time spent in the pipeline orchestrator per request, by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}

	m.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "sqlgate_operation_queue_depth",
		Help: "Number of tickets currently buffered in the operation queue.",
	}, func() float64 {
		if q == nil {
			return 0
		}
		return float64(q.Depth())
	})

	registry.MustRegister(m.cacheHits, m.cacheMisses, m.pipelineDur, m.queueDepth)

	log.Info().Msg("metrics manager initialized")
	return m
}

// Registry returns the registry the HTTP handler should serve.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCacheHit records a query cache lookup outcome.
func (m *Manager) ObserveCacheHit(hit bool) {
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// ObservePipeline records a pipeline run's duration by outcome ("ok" or
// "error").
func (m *Manager) ObservePipeline(d time.Duration, outcome string) {
	m.pipelineDur.WithLabelValues(outcome).Observe(d.Seconds())
}
