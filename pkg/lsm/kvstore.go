// Package lsm implements an embedded, single-process key-value store
// laid out on disk as a Log-Structured Merge tree. Keys are unsigned
// 64-bit integers; values are opaque byte strings. Writes land in an
// in-memory buffer that flushes to immutable sorted files on overflow;
// reads resolve versions across memory and all disk levels by
// timestamp; leveled compaction keeps level populations bounded.
//
// A KVStore is NOT safe for concurrent use: all operations are
// synchronous and must be issued from a single goroutine.
package lsm

import (
	"time"

	"github.com/owenbell/lsmkv/pkg/fsutil"
	"github.com/owenbell/lsmkv/pkg/logging"
	"github.com/owenbell/lsmkv/pkg/metrics"
)

// levelZeroCompactTrigger is the L0 population that starts a merge into
// level 1. Deeper levels overflow past levelCapacity instead.
const levelZeroCompactTrigger = 3

// levelCapacity returns the file budget of a level: 2^(level+1).
func levelCapacity(level int) int {
	return 1 << (level + 1)
}

// Options configures a KVStore.
type Options struct {
	// DataDir roots the on-disk layout: DataDir/level-<L>/table-*.sst.
	DataDir string
	// CacheCapacity bounds the read cache entry count; 0 disables it.
	CacheCapacity int
	// Logger receives structured engine events.
	Logger logging.Logger
	// Metrics, when non-nil, receives engine counters and gauges.
	Metrics *metrics.Registry
}

// DefaultOptions returns the default engine configuration rooted at
// dataDir.
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:       dataDir,
		CacheCapacity: 0,
		Logger:        logging.DefaultLogger(),
	}
}

// KVStore is the storage engine. It owns the memtable, one ordered
// list of SSTable handles per level, and the running timestamp counter.
type KVStore struct {
	dir      string
	memTable *MemTable

	// memSize is the projected serialized size of the memtable as an L0
	// file: header + bloom baseline plus 12+len(value) per put. It is an
	// upper bound that deliberately ignores in-place replacement.
	memSize uint64

	// levels[L] lists the handles of level L. L0 is in flush order
	// (newest last); levels >= 1 are sorted by minKey with pairwise
	// disjoint key ranges.
	levels [][]*SSTable

	// timeStamp tags the next flush; strictly larger means newer.
	timeStamp uint64

	cache   *readCache
	logger  logging.Logger
	metrics *metrics.Registry
	closed  bool
}

// New opens or creates a store per opts. Existing SSTables under the
// data directory are loaded, the timestamp counter is rebuilt to
// strictly exceed everything on disk, and the overflow cascade runs
// once before the store accepts operations.
func New(opts Options) (*KVStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	s := &KVStore{
		dir:       opts.DataDir,
		memTable:  NewMemTable(),
		memSize:   memTableBaseSize,
		levels:    make([][]*SSTable, 1),
		timeStamp: 1,
		logger:    logger,
		metrics:   opts.Metrics,
	}
	if opts.CacheCapacity > 0 {
		s.cache = newReadCache(opts.CacheCapacity)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens or creates a store rooted at dir with default options.
func Open(dir string) (*KVStore, error) {
	return New(DefaultOptions(dir))
}

// Put inserts or updates the key-value pair. A value equal to the
// tombstone sentinel "~DELETED~" is indistinguishable from a delete.
func (s *KVStore) Put(key uint64, value []byte) error {
	if s.closed {
		return ErrClosed
	}
	start := time.Now()

	// Flush first when the projected file would outgrow the cap; the
	// size exactly at the cap still fits.
	if s.memSize+DataIndexSize+uint64(len(value)) > MaxSSTableSize && !s.memTable.Empty() {
		if err := s.flush(); err != nil {
			s.record("put", "error", start)
			return err
		}
	}

	s.memTable.Put(key, value)
	s.memSize += DataIndexSize + uint64(len(value))
	if s.cache != nil {
		s.cache.Delete(key)
	}

	s.record("put", "ok", start)
	if s.metrics != nil {
		s.metrics.SetMemTableSize(s.memSize)
	}
	return nil
}

// Get returns the value of the given key. Empty bytes mean absent or
// deleted.
func (s *KVStore) Get(key uint64) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	start := time.Now()

	if s.cache != nil {
		if value, ok := s.cache.Get(key); ok {
			s.record("get", "ok", start)
			return value, nil
		}
	}

	// The memtable holds the newest version of everything still in
	// memory: a tombstone means deleted, a non-empty value wins
	// outright, and only an absent (or empty) result falls through to
	// disk.
	if value := s.memTable.Get(key); len(value) > 0 {
		if isTombstone(value) {
			s.record("get", "ok", start)
			return nil, nil
		}
		if s.cache != nil {
			s.cache.Put(key, value)
		}
		s.record("get", "ok", start)
		return value, nil
	}

	value, err := s.getFromDisk(key)
	if err != nil {
		s.record("get", "error", start)
		return nil, err
	}
	if s.cache != nil && len(value) > 0 {
		s.cache.Put(key, value)
	}
	s.record("get", "ok", start)
	return value, nil
}

// Del deletes the key by writing a tombstone. It returns true iff a
// live value existed immediately before the call. The tombstone is
// written unconditionally, so deleting an absent key still shadows any
// older on-disk version.
func (s *KVStore) Del(key uint64) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}

	value, err := s.Get(key)
	if err != nil {
		return false, err
	}
	existed := len(value) > 0

	if err := s.Put(key, []byte(DeleteSign)); err != nil {
		return false, err
	}
	return existed, nil
}

// Reset drops all state: every SSTable file and level directory is
// removed, the memtable and level lists are emptied, and the timestamp
// counter restarts at 1.
func (s *KVStore) Reset() error {
	if s.closed {
		return ErrClosed
	}

	for level := range s.levels {
		for _, t := range s.levels[level] {
			if err := t.unlink(); err != nil {
				return err
			}
		}
		if err := fsutil.RemoveDir(levelDir(s.dir, level)); err != nil {
			return storeErr("Reset", levelDir(s.dir, level), err)
		}
	}

	s.levels = make([][]*SSTable, 1)
	s.memTable.Reset()
	s.memSize = memTableBaseSize
	s.timeStamp = 1
	if s.cache != nil {
		s.cache.Clear()
	}

	s.logger.Info("store reset", logging.Path(s.dir))
	s.syncLevelMetrics()
	return nil
}

// Close flushes a non-empty memtable and marks the store unusable.
// Closing an already closed store is a no-op.
func (s *KVStore) Close() error {
	if s.closed {
		return nil
	}
	if !s.memTable.Empty() {
		if err := s.flush(); err != nil {
			return err
		}
	}
	s.closed = true
	s.logger.Info("store closed", logging.Path(s.dir))
	return nil
}

// flush writes the memtable to a new L0 file, advances the timestamp,
// resets the buffer, and runs the overflow cascade.
func (s *KVStore) flush() error {
	start := time.Now()

	sst, err := s.memTable.WriteToDisk(s.dir, s.timeStamp)
	if err != nil {
		return err
	}
	s.levels[0] = append(s.levels[0], sst)
	s.timeStamp++
	s.memTable.Reset()
	s.memSize = memTableBaseSize

	s.logger.Debug("memtable flushed",
		logging.Path(sst.Path()),
		logging.Uint64("timestamp", sst.TimeStamp()),
		logging.Uint64("keys", sst.KeyNumber()),
		logging.Latency(time.Since(start)))
	if s.metrics != nil {
		s.metrics.RecordFlush()
		s.metrics.SetMemTableSize(s.memSize)
	}
	s.syncLevelMetrics()

	return s.compactIfNeeded()
}

// record reports one public operation to the metrics registry.
func (s *KVStore) record(op, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordEngineOperation(op, status, time.Since(start))
	}
}

// syncLevelMetrics publishes per-level file counts.
func (s *KVStore) syncLevelMetrics() {
	if s.metrics == nil {
		return
	}
	for level := range s.levels {
		s.metrics.SetSSTableCount(level, len(s.levels[level]))
	}
}
