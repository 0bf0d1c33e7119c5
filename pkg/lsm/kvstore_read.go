package lsm

import (
	"sort"
)

// getFromDisk walks the disk levels for key and resolves versions by
// timestamp. L0 files may overlap, so every one is consulted
// newest-first; deeper levels are disjoint and sorted, so binary search
// picks at most one candidate file per level. A tombstone that wins
// resolution reads as absent.
func (s *KVStore) getFromDisk(key uint64) ([]byte, error) {
	var best []byte
	var bestTs uint64

	l0 := s.levels[0]
	for i := len(l0) - 1; i >= 0; i-- {
		value, err := l0[i].Get(key)
		if err != nil {
			return nil, err
		}
		if len(value) > 0 && l0[i].TimeStamp() > bestTs {
			best, bestTs = value, l0[i].TimeStamp()
		}
	}

	// Anything found in L0 is newer than every deeper version of the
	// key: L0 holds the latest flushes, and compaction outputs only
	// inherit timestamps of files consumed before those flushes.
	if len(best) == 0 {
		for level := 1; level < len(s.levels); level++ {
			t := s.levelCandidate(level, key)
			if t == nil {
				continue
			}
			value, err := t.Get(key)
			if err != nil {
				return nil, err
			}
			if len(value) > 0 && t.TimeStamp() > bestTs {
				best, bestTs = value, t.TimeStamp()
			}
		}
	}

	if isTombstone(best) {
		return nil, nil
	}
	return best, nil
}

// levelCandidate locates the single file of a level >= 1 whose key
// range can contain key, or nil when the key falls outside every file.
func (s *KVStore) levelCandidate(level int, key uint64) *SSTable {
	tables := s.levels[level]
	if len(tables) == 0 {
		return nil
	}
	if key < tables[0].MinKey() || key > tables[len(tables)-1].MaxKey() {
		return nil
	}

	// Last file whose minKey <= key; its maxKey decides membership.
	i := sort.Search(len(tables), func(i int) bool {
		return tables[i].MinKey() > key
	}) - 1
	if i < 0 || key > tables[i].MaxKey() {
		return nil
	}
	return tables[i]
}
