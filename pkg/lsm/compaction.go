package lsm

import (
	"fmt"
	"sort"
	"time"

	"github.com/owenbell/lsmkv/pkg/logging"
)

// compactIfNeeded runs the overflow cascade: an L0 merge when level 0
// has reached its trigger population, then leveled moves down the tree
// until the first level that is within budget.
func (s *KVStore) compactIfNeeded() error {
	if len(s.levels[0]) == levelZeroCompactTrigger {
		if err := s.compactLevelZero(); err != nil {
			return err
		}
	}

	for level := 1; level < len(s.levels); level++ {
		overflow := len(s.levels[level]) - levelCapacity(level)
		if overflow <= 0 {
			break
		}
		if err := s.compactLevel(level, overflow); err != nil {
			return err
		}
	}
	return nil
}

// compactLevelZero merges all three L0 files, plus every level-1 file
// their combined key range touches, into fresh level-1 files. L0 files
// overlap freely, so the merge resolves versions by timestamp before
// emitting one ascending, duplicate-free key stream.
func (s *KVStore) compactLevelZero() error {
	start := time.Now()

	l0 := s.levels[0]
	if len(l0) != levelZeroCompactTrigger {
		return storeErr("CompactL0", s.dir,
			fmt.Errorf("%w: level 0 holds %d files", ErrCompactionInvariant, len(l0)))
	}

	minKey, maxKey := l0[0].MinKey(), l0[0].MaxKey()
	for _, t := range l0[1:] {
		if t.MinKey() < minKey {
			minKey = t.MinKey()
		}
		if t.MaxKey() > maxKey {
			maxKey = t.MaxKey()
		}
	}

	s.ensureLevel(1)
	lo, hi := overlapRange(s.levels[1], minKey, maxKey)
	overlaps := s.levels[1][lo:hi]

	// Ingest in ascending timestamp order so newer writes overwrite
	// older ones per key. The overlapped level-1 files predate every
	// current L0 file, so they go first.
	inputs := make([]*SSTable, 0, len(overlaps)+len(l0))
	inputs = append(inputs, overlaps...)
	inputs = append(inputs, l0...)
	sort.SliceStable(inputs, func(i, j int) bool {
		return inputs[i].TimeStamp() < inputs[j].TimeStamp()
	})

	data := make(map[uint64][]byte)
	var outTs uint64
	for _, t := range inputs {
		if err := t.ValuesFromDisk(data); err != nil {
			return err
		}
		if t.TimeStamp() > outTs {
			outTs = t.TimeStamp()
		}
	}

	outputs, err := s.writeMerged(data, 1, outTs)
	if err != nil {
		return err
	}

	for _, t := range inputs {
		if err := t.unlink(); err != nil {
			return err
		}
	}
	s.levels[1] = spliceTables(s.levels[1], lo, hi, outputs)
	s.levels[0] = s.levels[0][:0]

	s.logger.Debug("level 0 compacted",
		logging.Int("inputs", len(inputs)),
		logging.Int("outputs", len(outputs)),
		logging.Uint64("timestamp", outTs),
		logging.Latency(time.Since(start)))
	if s.metrics != nil {
		s.metrics.RecordCompaction("l0")
	}
	s.syncLevelMetrics()
	return nil
}

// compactLevel moves overflow files from level into level+1. The
// compact set is chosen by smallest (timestamp, minKey) and each file
// is pushed down independently, in that order.
func (s *KVStore) compactLevel(level, overflow int) error {
	start := time.Now()

	set := make([]*SSTable, len(s.levels[level]))
	copy(set, s.levels[level])
	sort.Slice(set, func(i, j int) bool {
		if set[i].TimeStamp() != set[j].TimeStamp() {
			return set[i].TimeStamp() < set[j].TimeStamp()
		}
		return set[i].MinKey() < set[j].MinKey()
	})
	set = set[:overflow]

	for _, upper := range set {
		if err := s.pushDown(upper, level); err != nil {
			return err
		}
	}

	// The compact set leaves the level only after every member has been
	// merged down.
	remaining := s.levels[level][:0]
	for _, t := range s.levels[level] {
		if !containsTable(set, t) {
			remaining = append(remaining, t)
		}
	}
	s.levels[level] = remaining
	for _, t := range set {
		if err := t.unlink(); err != nil {
			return err
		}
	}

	s.logger.Debug("level compacted",
		logging.Int("level", level),
		logging.Int("moved", len(set)),
		logging.Latency(time.Since(start)))
	if s.metrics != nil {
		s.metrics.RecordCompaction("leveled")
	}
	s.syncLevelMetrics()
	return nil
}

// pushDown merges one file of level into level+1. Without overlap the
// file's contents move down verbatim under their own timestamp; with
// overlap, upper and lower files merge into size-capped outputs
// stamped with the newest input timestamp.
func (s *KVStore) pushDown(upper *SSTable, level int) error {
	s.ensureLevel(level + 1)
	lower := s.levels[level+1]
	lo, hi := overlapRange(lower, upper.MinKey(), upper.MaxKey())

	if lo == hi {
		data := make(map[uint64][]byte)
		if err := upper.ValuesFromDisk(data); err != nil {
			return err
		}
		out, err := writeSSTFile(s.dir, level+1, upper.TimeStamp(), upper.Keys(), data)
		if err != nil {
			return err
		}
		s.levels[level+1] = spliceTables(lower, lo, hi, []*SSTable{out})
		return nil
	}

	overlaps := lower[lo:hi]

	// Ascending timestamp order, with the upper file ahead of any
	// equally stamped lower file: a duplicate key goes to the upper
	// table only when its timestamp is strictly greater.
	inputs := make([]*SSTable, 0, len(overlaps)+1)
	inputs = append(inputs, upper)
	inputs = append(inputs, overlaps...)
	sort.SliceStable(inputs, func(i, j int) bool {
		return inputs[i].TimeStamp() < inputs[j].TimeStamp()
	})

	data := make(map[uint64][]byte)
	var outTs uint64
	for _, t := range inputs {
		if err := t.ValuesFromDisk(data); err != nil {
			return err
		}
		if t.TimeStamp() > outTs {
			outTs = t.TimeStamp()
		}
	}

	// The overlapped files go before the outputs are written: an output
	// can inherit exactly one lower file's timestamp and key range, and
	// with it that file's canonical name. Everything needed is already
	// in memory at this point.
	for _, t := range overlaps {
		if err := t.unlink(); err != nil {
			return err
		}
	}

	outputs, err := s.writeMerged(data, level+1, outTs)
	if err != nil {
		return err
	}
	s.levels[level+1] = spliceTables(s.levels[level+1], lo, hi, outputs)
	return nil
}

// writeMerged emits resolved key-value data as ascending-key SSTables
// at the target level, splitting whenever the next entry would push the
// projected file size past the cap. Tombstones are dropped iff the
// target is currently the deepest populated level, decided here at
// emission time.
func (s *KVStore) writeMerged(data map[uint64][]byte, level int, timeStamp uint64) ([]*SSTable, error) {
	drop := s.dropTombstones(level)

	keys := make([]uint64, 0, len(data))
	for k, v := range data {
		if drop && isTombstone(v) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var outputs []*SSTable

	// A failed write must not leave partial outputs behind: the inputs
	// are still live, so orphans would resurrect stale versions on the
	// next startup scan.
	cleanup := func() {
		for _, out := range outputs {
			_ = out.unlink()
		}
	}

	batch := make([]uint64, 0, len(keys))
	size := uint64(memTableBaseSize)

	for _, k := range keys {
		entry := uint64(DataIndexSize + len(data[k]))
		if len(batch) > 0 && size+entry > MaxSSTableSize {
			out, err := writeSSTFile(s.dir, level, timeStamp, batch, data)
			if err != nil {
				cleanup()
				return nil, err
			}
			outputs = append(outputs, out)
			batch = batch[:0]
			size = memTableBaseSize
		}
		batch = append(batch, k)
		size += entry
	}
	if len(batch) > 0 {
		out, err := writeSSTFile(s.dir, level, timeStamp, batch, data)
		if err != nil {
			cleanup()
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// dropTombstones reports whether a compaction emitting into level may
// discard tombstones: true iff no deeper level currently holds files
// that an older version could still hide in.
func (s *KVStore) dropTombstones(level int) bool {
	for l := level + 1; l < len(s.levels); l++ {
		if len(s.levels[l]) > 0 {
			return false
		}
	}
	return true
}

// ensureLevel grows the level table so index level exists.
func (s *KVStore) ensureLevel(level int) {
	for len(s.levels) <= level {
		s.levels = append(s.levels, nil)
	}
}

// overlapRange returns the bounds [lo, hi) of the run of files in a
// sorted, disjoint level whose key ranges intersect [minKey, maxKey].
// When nothing overlaps, lo == hi is the insertion point that keeps the
// level sorted.
func overlapRange(tables []*SSTable, minKey, maxKey uint64) (lo, hi int) {
	lo = sort.Search(len(tables), func(i int) bool {
		return tables[i].MaxKey() >= minKey
	})
	hi = sort.Search(len(tables), func(i int) bool {
		return tables[i].MinKey() > maxKey
	})
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// spliceTables replaces tables[lo:hi] with repl.
func spliceTables(tables []*SSTable, lo, hi int, repl []*SSTable) []*SSTable {
	out := make([]*SSTable, 0, len(tables)-(hi-lo)+len(repl))
	out = append(out, tables[:lo]...)
	out = append(out, repl...)
	out = append(out, tables[hi:]...)
	return out
}

// containsTable reports whether set holds the exact handle t.
func containsTable(set []*SSTable, t *SSTable) bool {
	for _, x := range set {
		if x == t {
			return true
		}
	}
	return false
}
