package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRegistry_EngineOperations verifies operation counters accumulate
func TestRegistry_EngineOperations(t *testing.T) {
	r := NewRegistry()

	r.RecordEngineOperation("put", "ok", time.Millisecond)
	r.RecordEngineOperation("put", "ok", time.Millisecond)
	r.RecordEngineOperation("get", "error", time.Millisecond)

	if got := testutil.ToFloat64(r.EngineOperationsTotal.WithLabelValues("put", "ok")); got != 2 {
		t.Errorf("put/ok counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.EngineOperationsTotal.WithLabelValues("get", "error")); got != 1 {
		t.Errorf("get/error counter = %v, want 1", got)
	}
}

// TestRegistry_FlushAndCompaction verifies flush and compaction counters
func TestRegistry_FlushAndCompaction(t *testing.T) {
	r := NewRegistry()

	r.RecordFlush()
	r.RecordFlush()
	r.RecordCompaction("l0")
	r.RecordCompaction("leveled")
	r.RecordCompaction("leveled")

	if got := testutil.ToFloat64(r.FlushesTotal); got != 2 {
		t.Errorf("flush counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.CompactionsTotal.WithLabelValues("l0")); got != 1 {
		t.Errorf("l0 compaction counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.CompactionsTotal.WithLabelValues("leveled")); got != 2 {
		t.Errorf("leveled compaction counter = %v, want 2", got)
	}
}

// TestRegistry_Gauges verifies gauge updates overwrite
func TestRegistry_Gauges(t *testing.T) {
	r := NewRegistry()

	r.SetSSTableCount(0, 3)
	r.SetSSTableCount(0, 0)
	r.SetSSTableCount(1, 2)
	r.SetMemTableSize(10272)

	if got := testutil.ToFloat64(r.SSTablesTotal.WithLabelValues("0")); got != 0 {
		t.Errorf("level-0 gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.SSTablesTotal.WithLabelValues("1")); got != 2 {
		t.Errorf("level-1 gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.MemTableSizeBytes); got != 10272 {
		t.Errorf("memtable gauge = %v, want 10272", got)
	}
}

// TestDefaultRegistry verifies the singleton is stable
func TestDefaultRegistry(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("DefaultRegistry returned different instances")
	}
}
