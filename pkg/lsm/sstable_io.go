package lsm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// openSSTable loads the handle for one on-disk SSTable: header, bloom
// filter and the full index. Value bytes stay on disk. The file is
// validated against the format invariants; any disagreement is a
// corruption error.
func openSSTable(path string, level int) (*SSTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, storeErr("OpenSSTable", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, storeErr("OpenSSTable", path, err)
	}
	if info.Size() > MaxSSTableSize {
		return nil, storeErr("OpenSSTable", path,
			fmt.Errorf("%w: file size %d exceeds cap", ErrCorruptSSTable, info.Size()))
	}

	reader := bufio.NewReader(file)

	var header SSTHeader
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, storeErr("OpenSSTable", path, fmt.Errorf("%w: short header: %v", ErrCorruptSSTable, err))
	}
	if header.KeyNumber == 0 {
		return nil, storeErr("OpenSSTable", path, ErrZeroKeyNumber)
	}

	dataStart := int64(memTableBaseSize) + int64(DataIndexSize)*int64(header.KeyNumber)
	if dataStart > info.Size() {
		return nil, storeErr("OpenSSTable", path,
			fmt.Errorf("%w: key number %d inconsistent with file size %d", ErrCorruptSSTable, header.KeyNumber, info.Size()))
	}

	bloomBytes := make([]byte, BloomFilterSize)
	if _, err := io.ReadFull(reader, bloomBytes); err != nil {
		return nil, storeErr("OpenSSTable", path, fmt.Errorf("%w: short bloom filter: %v", ErrCorruptSSTable, err))
	}

	indexes := make([]DataIndex, header.KeyNumber)
	for i := range indexes {
		if err := binary.Read(reader, binary.LittleEndian, &indexes[i]); err != nil {
			return nil, storeErr("OpenSSTable", path, fmt.Errorf("%w: short index: %v", ErrCorruptSSTable, err))
		}
	}

	if indexes[0].Key != header.MinKey || indexes[len(indexes)-1].Key != header.MaxKey {
		return nil, storeErr("OpenSSTable", path,
			fmt.Errorf("%w: header min/max disagree with index", ErrCorruptSSTable))
	}

	return &SSTable{
		level:   level,
		path:    path,
		header:  header,
		bloom:   newBloomFilterFromBytes(bloomBytes),
		indexes: indexes,
	}, nil
}

// unlink removes the table's file from disk. The caller drops the
// handle from its level list afterwards.
func (t *SSTable) unlink() error {
	if err := os.Remove(t.path); err != nil {
		return storeErr("RemoveSSTable", t.path, err)
	}
	return nil
}
