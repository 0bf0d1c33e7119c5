package lsm

import (
	"sort"
)

// MemTable is the in-memory write buffer: an ordered, duplicate-free
// mapping from key to value. Values are stored verbatim, including the
// tombstone sentinel; interpretation is the engine's job.
//
// The structure is a map with a lazily sorted key slice. Keys sort only
// when iteration needs them, so the write path stays O(1) per put.
type MemTable struct {
	data   map[uint64][]byte
	keys   []uint64
	sorted bool
}

// NewMemTable creates an empty MemTable.
func NewMemTable() *MemTable {
	return &MemTable{
		data:   make(map[uint64][]byte),
		keys:   make([]uint64, 0),
		sorted: true,
	}
}

// Put inserts or replaces a key-value pair.
func (mt *MemTable) Put(key uint64, value []byte) {
	if _, exists := mt.data[key]; !exists {
		mt.keys = append(mt.keys, key)
		mt.sorted = false
	}
	mt.data[key] = value
}

// Get returns the stored value, or nil when the key is absent. A
// tombstone is returned verbatim.
func (mt *MemTable) Get(key uint64) []byte {
	return mt.data[key]
}

// Del physically removes a key. It returns true iff a live (non
// tombstone) value was removed; a tombstoned or absent key is left
// untouched.
func (mt *MemTable) Del(key uint64) bool {
	value, exists := mt.data[key]
	if !exists || isTombstone(value) {
		return false
	}
	delete(mt.data, key)
	for i, k := range mt.keys {
		if k == key {
			mt.keys = append(mt.keys[:i], mt.keys[i+1:]...)
			break
		}
	}
	return true
}

// Empty returns true iff no keys are present.
func (mt *MemTable) Empty() bool {
	return len(mt.data) == 0
}

// Len returns the number of distinct keys.
func (mt *MemTable) Len() int {
	return len(mt.data)
}

// Reset removes all entries.
func (mt *MemTable) Reset() {
	mt.data = make(map[uint64][]byte)
	mt.keys = mt.keys[:0]
	mt.sorted = true
}

// SortedKeys returns every key in ascending order. The returned slice
// is the memtable's own; callers must not hold it across mutations.
func (mt *MemTable) SortedKeys() []uint64 {
	if !mt.sorted {
		sort.Slice(mt.keys, func(i, j int) bool { return mt.keys[i] < mt.keys[j] })
		mt.sorted = true
	}
	return mt.keys
}

// WriteToDisk materializes the current contents as one level-0 SSTable
// under root, stamped with the given timestamp. The memtable is left
// unchanged; the caller resets it after a successful flush.
func (mt *MemTable) WriteToDisk(root string, timeStamp uint64) (*SSTable, error) {
	return writeSSTFile(root, 0, timeStamp, mt.SortedKeys(), mt.data)
}
