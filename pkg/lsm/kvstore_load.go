package lsm

import (
	"path/filepath"
	"sort"

	"github.com/owenbell/lsmkv/pkg/fsutil"
	"github.com/owenbell/lsmkv/pkg/logging"
)

// load scans the data directory, registers a handle for every SSTable
// on disk, rebuilds the timestamp counter, restores the sort order of
// levels >= 1, and runs the overflow cascade once.
func (s *KVStore) load() error {
	if err := fsutil.EnsureDir(s.dir); err != nil {
		return storeErr("Open", s.dir, err)
	}

	// Level directories are contiguous: the scan stops at the first
	// missing one.
	levels := make([][]*SSTable, 0)
	for level := 0; ; level++ {
		dir := levelDir(s.dir, level)
		if !fsutil.DirExists(dir) {
			break
		}

		names, err := fsutil.ListFiles(dir, ".sst")
		if err != nil {
			return storeErr("Open", dir, err)
		}

		tables := make([]*SSTable, 0, len(names))
		for _, name := range names {
			t, err := openSSTable(filepath.Join(dir, name), level)
			if err != nil {
				return err
			}
			tables = append(tables, t)
		}
		levels = append(levels, tables)
	}
	if len(levels) == 0 {
		levels = make([][]*SSTable, 1)
	}
	s.levels = levels

	// The next timestamp must strictly exceed everything on disk.
	var maxTs uint64
	total := 0
	for _, tables := range s.levels {
		for _, t := range tables {
			if t.TimeStamp() > maxTs {
				maxTs = t.TimeStamp()
			}
			total++
		}
	}
	s.timeStamp = maxTs + 1

	// L0 stays in flush order; restore minKey order for deeper levels.
	// Flush order equals timestamp order, so sorting L0 by timestamp
	// reproduces it even though directory listings come back by name.
	sort.Slice(s.levels[0], func(i, j int) bool {
		return s.levels[0][i].TimeStamp() < s.levels[0][j].TimeStamp()
	})
	for level := 1; level < len(s.levels); level++ {
		tables := s.levels[level]
		sort.Slice(tables, func(i, j int) bool {
			return tables[i].MinKey() < tables[j].MinKey()
		})
	}

	s.logger.Info("store opened",
		logging.Path(s.dir),
		logging.Int("sstables", total),
		logging.Int("levels", len(s.levels)),
		logging.Uint64("timestamp", s.timeStamp))
	s.syncLevelMetrics()

	return s.compactIfNeeded()
}
