package lsm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/owenbell/lsmkv/pkg/fsutil"
)

// levelDir returns the directory holding one level's files.
func levelDir(root string, level int) string {
	return filepath.Join(root, fmt.Sprintf("level-%d", level))
}

// sstFileName is the canonical name of a completed SSTable file.
func sstFileName(timeStamp, minKey, maxKey uint64) string {
	return fmt.Sprintf("table-%d-%d-%d.sst", timeStamp, minKey, maxKey)
}

// writeSSTFile serializes the given keys (ascending) and their values
// as one SSTable under root/level-<level>. The file is written under the
// temporary name table-<ts>.sst and renamed to the canonical
// table-<ts>-<min>-<max>.sst only after a complete successful write. The
// temporary name also ends in .sst, so the startup scan does not tell a
// file left by an interrupted write apart from a finished one.
func writeSSTFile(root string, level int, timeStamp uint64, keys []uint64, data map[uint64][]byte) (*SSTable, error) {
	if len(keys) == 0 {
		return nil, storeErr("WriteSSTable", levelDir(root, level), ErrCompactionInvariant)
	}

	dir := levelDir(root, level)
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, storeErr("WriteSSTable", dir, err)
	}

	// Build bloom filter and index. The data region starts right after
	// the index; offsets accumulate value lengths from there.
	bloom := NewBloomFilter()
	indexes := make([]DataIndex, 0, len(keys))
	offset := uint32(memTableBaseSize + DataIndexSize*len(keys))

	for _, key := range keys {
		bloom.Insert(key)
		indexes = append(indexes, DataIndex{Key: key, Offset: offset})
		offset += uint32(len(data[key]))
	}

	header := SSTHeader{
		TimeStamp: timeStamp,
		KeyNumber: uint64(len(keys)),
		MinKey:    keys[0],
		MaxKey:    keys[len(keys)-1],
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf("table-%d.sst", timeStamp))
	file, err := os.Create(tmpPath)
	if err != nil {
		return nil, storeErr("WriteSSTable", tmpPath, err)
	}

	writer := bufio.NewWriter(file)

	fail := func(cause error) (*SSTable, error) {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return nil, storeErr("WriteSSTable", tmpPath, cause)
	}

	if err := binary.Write(writer, binary.LittleEndian, &header); err != nil {
		return fail(err)
	}
	if _, err := writer.Write(bloom.Bytes()); err != nil {
		return fail(err)
	}
	for i := range indexes {
		if err := binary.Write(writer, binary.LittleEndian, &indexes[i]); err != nil {
			return fail(err)
		}
	}
	for _, key := range keys {
		if _, err := writer.Write(data[key]); err != nil {
			return fail(err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fail(err)
	}
	if err := file.Sync(); err != nil {
		return fail(err)
	}
	if err := file.Close(); err != nil {
		return nil, storeErr("WriteSSTable", tmpPath, err)
	}

	path := filepath.Join(dir, sstFileName(timeStamp, header.MinKey, header.MaxKey))
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, storeErr("WriteSSTable", path, err)
	}

	return &SSTable{
		level:   level,
		path:    path,
		header:  header,
		bloom:   bloom,
		indexes: indexes,
	}, nil
}
