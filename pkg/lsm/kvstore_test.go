package lsm

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/owenbell/lsmkv/pkg/fsutil"
	"github.com/owenbell/lsmkv/pkg/logging"
)

// newTestStore creates a store over a fresh temp directory.
func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	return newTestStoreAt(t, t.TempDir())
}

// newTestStoreAt creates a store over the given directory, for tests
// that reopen it.
func newTestStoreAt(t *testing.T, dir string) *KVStore {
	t.Helper()
	opts := DefaultOptions(dir)
	opts.Logger = logging.NewNopLogger()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

// mustPut fails the test on a put error.
func mustPut(t *testing.T, s *KVStore, key uint64, value string) {
	t.Helper()
	if err := s.Put(key, []byte(value)); err != nil {
		t.Fatalf("Put(%d) failed: %v", key, err)
	}
}

// mustGet fails the test on a get error and returns the value as string.
func mustGet(t *testing.T, s *KVStore, key uint64) string {
	t.Helper()
	value, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get(%d) failed: %v", key, err)
	}
	return string(value)
}

// mustDel fails the test on a del error.
func mustDel(t *testing.T, s *KVStore, key uint64) bool {
	t.Helper()
	existed, err := s.Del(key)
	if err != nil {
		t.Fatalf("Del(%d) failed: %v", key, err)
	}
	return existed
}

// TestKVStore_SingleKey runs the single-key lifecycle
func TestKVStore_SingleKey(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if got := mustGet(t, s, 1); got != "" {
		t.Errorf("Get before put = %q, want empty", got)
	}

	mustPut(t, s, 1, "SE")
	if got := mustGet(t, s, 1); got != "SE" {
		t.Errorf("Get after put = %q, want %q", got, "SE")
	}

	if !mustDel(t, s, 1) {
		t.Error("Del of live key returned false")
	}
	if got := mustGet(t, s, 1); got != "" {
		t.Errorf("Get after del = %q, want empty", got)
	}
	if mustDel(t, s, 1) {
		t.Error("Second del returned true")
	}
}

// TestKVStore_UpdateSemantics tests overwrite, delete and re-insert
func TestKVStore_UpdateSemantics(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	mustPut(t, s, 7, "a")
	mustPut(t, s, 7, "bb")
	if got := mustGet(t, s, 7); got != "bb" {
		t.Errorf("Get after update = %q, want %q", got, "bb")
	}

	if !mustDel(t, s, 7) {
		t.Error("Del of live key returned false")
	}
	if got := mustGet(t, s, 7); got != "" {
		t.Errorf("Get after del = %q, want empty", got)
	}

	mustPut(t, s, 7, "ccc")
	if got := mustGet(t, s, 7); got != "ccc" {
		t.Errorf("Get after re-insert = %q, want %q", got, "ccc")
	}
}

// TestKVStore_FlushThreshold fills the memtable until it overflows and
// verifies the single resulting level-0 file
func TestKVStore_FlushThreshold(t *testing.T) {
	dir := t.TempDir()
	s := newTestStoreAt(t, dir)
	defer s.Close()

	// Values of length key+1 so the projected size is easy to grow.
	key := uint64(0)
	for len(s.levels[0]) == 0 {
		mustPut(t, s, key, string(bytes.Repeat([]byte{'s'}, int(key)+1)))
		key++
	}

	if len(s.levels[0]) != 1 {
		t.Fatalf("Level 0 holds %d files after first overflow, want 1", len(s.levels[0]))
	}

	sst := s.levels[0][0]
	if sst.TimeStamp() != 1 {
		t.Errorf("First flush timestamp = %d, want 1", sst.TimeStamp())
	}
	if sst.MinKey() != 0 {
		t.Errorf("Flushed minKey = %d, want 0", sst.MinKey())
	}

	// The put that triggered the flush stayed in the fresh memtable, so
	// the file holds every key before it.
	if sst.KeyNumber() != key-1 {
		t.Errorf("Flushed key count = %d, want %d", sst.KeyNumber(), key-1)
	}

	wantName := fmt.Sprintf("table-1-0-%d.sst", key-2)
	wantPath := filepath.Join(dir, "level-0", wantName)
	if !fsutil.FileExists(wantPath) {
		t.Errorf("Expected flushed file %s on disk", wantPath)
	}

	names, err := fsutil.ListFiles(filepath.Join(dir, "level-0"), ".sst")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("Level-0 directory holds %d files, want 1: %v", len(names), names)
	}

	// Everything reads back across the memory/disk split.
	for k := uint64(0); k < key; k++ {
		want := string(bytes.Repeat([]byte{'s'}, int(k)+1))
		if got := mustGet(t, s, k); got != want {
			t.Fatalf("Get(%d) length = %d, want %d", k, len(got), len(want))
		}
	}
}

// TestKVStore_FlushBoundary tests that a memtable exactly at the cap
// does not flush, while one byte more does
func TestKVStore_FlushBoundary(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	// One value sized so the projected file lands exactly on the cap.
	exact := MaxSSTableSize - memTableBaseSize - DataIndexSize
	mustPut(t, s, 1, string(make([]byte, exact)))

	if s.memSize != MaxSSTableSize {
		t.Fatalf("Projected size = %d, want exactly %d", s.memSize, MaxSSTableSize)
	}
	if len(s.levels[0]) != 0 {
		t.Fatal("Memtable exactly at the cap must not flush")
	}

	// The next put exceeds the cap and must flush first.
	mustPut(t, s, 2, "x")
	if len(s.levels[0]) != 1 {
		t.Fatal("Exceeding the cap by one entry must flush")
	}
	if s.levels[0][0].KeyNumber() != 1 {
		t.Errorf("Flushed file holds %d keys, want 1", s.levels[0][0].KeyNumber())
	}
	if got := mustGet(t, s, 1); len(got) != exact {
		t.Errorf("Get(1) length = %d, want %d", len(got), exact)
	}
	if got := mustGet(t, s, 2); got != "x" {
		t.Errorf("Get(2) = %q, want %q", got, "x")
	}
}

// TestKVStore_EmptyValueFallsThrough tests that an empty value reads as absent
func TestKVStore_EmptyValueFallsThrough(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	mustPut(t, s, 1, "")
	if got := mustGet(t, s, 1); got != "" {
		t.Errorf("Get of empty value = %q, want empty", got)
	}
	if mustDel(t, s, 1) {
		t.Error("Del of empty value reported a live key")
	}
}

// TestKVStore_Persistence drops the engine and reopens the directory
func TestKVStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	s := newTestStoreAt(t, dir)
	mustPut(t, s, 1, "SE")
	if !mustDel(t, s, 1) {
		t.Fatal("Del of live key returned false")
	}
	mustPut(t, s, 2, "persisted")
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Closed stores reject everything.
	if _, err := s.Get(1); err != ErrClosed {
		t.Errorf("Get on closed store = %v, want ErrClosed", err)
	}
	if err := s.Put(1, []byte("x")); err != ErrClosed {
		t.Errorf("Put on closed store = %v, want ErrClosed", err)
	}

	reopened := newTestStoreAt(t, dir)
	defer reopened.Close()

	if got := mustGet(t, reopened, 1); got != "" {
		t.Errorf("Get(1) after reopen = %q, want empty (tombstoned)", got)
	}
	if got := mustGet(t, reopened, 2); got != "persisted" {
		t.Errorf("Get(2) after reopen = %q, want %q", got, "persisted")
	}

	// The counter strictly exceeds everything on disk.
	var maxTs uint64
	for _, tables := range reopened.levels {
		for _, sst := range tables {
			if sst.TimeStamp() > maxTs {
				maxTs = sst.TimeStamp()
			}
		}
	}
	if reopened.timeStamp <= maxTs {
		t.Errorf("Restart timestamp %d does not exceed on-disk max %d", reopened.timeStamp, maxTs)
	}
}

// TestKVStore_Reset tests that reset drops memory and disk state
func TestKVStore_Reset(t *testing.T) {
	dir := t.TempDir()
	s := newTestStoreAt(t, dir)
	defer s.Close()

	for i := uint64(0); i < 50; i++ {
		mustPut(t, s, i, fmt.Sprintf("value-%d", i))
	}
	if err := s.flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	mustPut(t, s, 99, "in-memory")

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	for _, key := range []uint64{0, 25, 49, 99} {
		if got := mustGet(t, s, key); got != "" {
			t.Errorf("Get(%d) after reset = %q, want empty", key, got)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Data directory still holds %d entries after reset", len(entries))
	}

	if s.timeStamp != 1 {
		t.Errorf("Timestamp after reset = %d, want 1", s.timeStamp)
	}

	// The store keeps working after a reset.
	mustPut(t, s, 1, "fresh")
	if got := mustGet(t, s, 1); got != "fresh" {
		t.Errorf("Get after reset+put = %q, want %q", got, "fresh")
	}
}

// TestKVStore_ReadCache tests the optional LRU read cache
func TestKVStore_ReadCache(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.Logger = logging.NewNopLogger()
	opts.CacheCapacity = 16
	s, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	mustPut(t, s, 1, "first")
	if got := mustGet(t, s, 1); got != "first" {
		t.Fatalf("Get = %q, want %q", got, "first")
	}

	// An update must invalidate the cached value.
	mustPut(t, s, 1, "second")
	if got := mustGet(t, s, 1); got != "second" {
		t.Errorf("Get after update = %q, want %q (stale cache?)", got, "second")
	}

	// A delete must invalidate too.
	if !mustDel(t, s, 1) {
		t.Error("Del of live key returned false")
	}
	if got := mustGet(t, s, 1); got != "" {
		t.Errorf("Get after del = %q, want empty (stale cache?)", got)
	}

	hits, misses, _ := s.cache.Stats()
	if hits+misses == 0 {
		t.Error("Cache saw no traffic")
	}
}

// TestKVStore_ShuffledRoundTrip inserts shuffled keys across several
// flushes and reads everything back in a different order
func TestKVStore_ShuffledRoundTrip(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	const n = 512
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = uint64(i)
	}

	rng := rand.New(rand.NewSource(1))
	rng.Shuffle(n, func(a, b int) { keys[a], keys[b] = keys[b], keys[a] })

	// Large enough values to force a few flushes mid-run.
	for _, key := range keys {
		mustPut(t, s, key, string(bytes.Repeat([]byte{'v'}, 8192))+fmt.Sprint(key))
	}

	rng.Shuffle(n, func(a, b int) { keys[a], keys[b] = keys[b], keys[a] })
	for _, key := range keys {
		want := string(bytes.Repeat([]byte{'v'}, 8192)) + fmt.Sprint(key)
		if got := mustGet(t, s, key); got != want {
			t.Fatalf("Get(%d) mismatch after shuffled round trip", key)
		}
	}
}

// BenchmarkKVStorePut measures the write path
func BenchmarkKVStorePut(b *testing.B) {
	opts := DefaultOptions(b.TempDir())
	opts.Logger = logging.NewNopLogger()
	s, err := New(opts)
	if err != nil {
		b.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	value := bytes.Repeat([]byte{'v'}, 512)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Put(uint64(i), value); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
	}
}

// BenchmarkKVStoreGet measures the read path across memory and disk
func BenchmarkKVStoreGet(b *testing.B) {
	opts := DefaultOptions(b.TempDir())
	opts.Logger = logging.NewNopLogger()
	s, err := New(opts)
	if err != nil {
		b.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	const n = 10000
	value := bytes.Repeat([]byte{'v'}, 512)
	for i := 0; i < n; i++ {
		if err := s.Put(uint64(i), value); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Get(uint64(i % n)); err != nil {
			b.Fatalf("Get failed: %v", err)
		}
	}
}
