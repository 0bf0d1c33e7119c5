package lsm

import (
	"os"
	"sort"

	"golang.org/x/exp/mmap"
)

// Get returns the value bytes for key, or nil when the file does not
// hold it. The bloom filter screens definite misses before any disk
// access; a hit does one ranged read of exactly the value's bytes.
// Tombstones are returned verbatim.
func (t *SSTable) Get(key uint64) ([]byte, error) {
	if !t.bloom.HasKey(key) {
		return nil, nil
	}

	i := sort.Search(len(t.indexes), func(i int) bool {
		return t.indexes[i].Key >= key
	})
	if i >= len(t.indexes) || t.indexes[i].Key != key {
		return nil, nil
	}

	file, err := os.Open(t.path)
	if err != nil {
		return nil, storeErr("ReadSSTable", t.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, storeErr("ReadSSTable", t.path, err)
	}

	start, end := t.valueBounds(i, info.Size())
	value := make([]byte, end-start)
	if _, err := file.ReadAt(value, start); err != nil {
		return nil, storeErr("ReadSSTable", t.path, err)
	}
	return value, nil
}

// ValuesFromDisk reads every value in one memory-mapped pass, in
// ascending key order, into out. Later calls on newer tables overwrite
// earlier entries for the same key, which is exactly the ingestion
// order compaction relies on.
func (t *SSTable) ValuesFromDisk(out map[uint64][]byte) error {
	reader, err := mmap.Open(t.path)
	if err != nil {
		return storeErr("ReadSSTable", t.path, err)
	}
	defer reader.Close()

	size := int64(reader.Len())
	for i, idx := range t.indexes {
		start, end := t.valueBounds(i, size)
		value := make([]byte, end-start)
		if _, err := reader.ReadAt(value, start); err != nil {
			return storeErr("ReadSSTable", t.path, err)
		}
		out[idx.Key] = value
	}
	return nil
}

// valueBounds returns the byte range of entry i's value: from its
// offset to the next entry's offset, or to end of file for the last
// entry.
func (t *SSTable) valueBounds(i int, fileSize int64) (start, end int64) {
	start = int64(t.indexes[i].Offset)
	if i < len(t.indexes)-1 {
		end = int64(t.indexes[i+1].Offset)
	} else {
		end = fileSize
	}
	return start, end
}
