package metrics

import (
	"strconv"
	"time"
)

// RecordEngineOperation records one public engine operation with its duration
func (r *Registry) RecordEngineOperation(operation, status string, duration time.Duration) {
	r.EngineOperationsTotal.WithLabelValues(operation, status).Inc()
	r.EngineOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFlush records a memtable flush
func (r *Registry) RecordFlush() {
	r.FlushesTotal.Inc()
}

// RecordCompaction records a compaction of the given kind ("l0" or "leveled")
func (r *Registry) RecordCompaction(kind string) {
	r.CompactionsTotal.WithLabelValues(kind).Inc()
}

// SetSSTableCount updates the file-count gauge of one level
func (r *Registry) SetSSTableCount(level, count int) {
	r.SSTablesTotal.WithLabelValues(strconv.Itoa(level)).Set(float64(count))
}

// SetMemTableSize updates the projected memtable size gauge
func (r *Registry) SetMemTableSize(bytes uint64) {
	r.MemTableSizeBytes.Set(float64(bytes))
}
