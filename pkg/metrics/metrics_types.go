// Package metrics holds the Prometheus registry for the storage
// engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the engine
type Registry struct {
	// Engine Metrics
	EngineOperationsTotal   *prometheus.CounterVec
	EngineOperationDuration *prometheus.HistogramVec

	// Flush / Compaction Metrics
	FlushesTotal     prometheus.Counter
	CompactionsTotal *prometheus.CounterVec

	// Storage Metrics
	SSTablesTotal     *prometheus.GaugeVec
	MemTableSizeBytes prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}
	r.initEngineMetrics()
	return r
}

// Registry exposes the underlying Prometheus registry for scraping.
func (r *Registry) Registry() *prometheus.Registry {
	return r.registry
}
