package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEngineMetrics() {
	r.EngineOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_engine_operations_total",
			Help: "Total number of engine operations",
		},
		[]string{"operation", "status"},
	)

	r.EngineOperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsmkv_engine_operation_duration_seconds",
			Help:    "Engine operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	r.FlushesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lsmkv_flushes_total",
			Help: "Total number of memtable flushes to level 0",
		},
	)

	r.CompactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsmkv_compactions_total",
			Help: "Total number of compactions by kind",
		},
		[]string{"kind"},
	)

	r.SSTablesTotal = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lsmkv_sstables_total",
			Help: "Number of SSTable files per level",
		},
		[]string{"level"},
	)

	r.MemTableSizeBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lsmkv_memtable_size_bytes",
			Help: "Projected serialized size of the memtable in bytes",
		},
	)
}
