package lsm

// On-disk SSTable layout (all integers little-endian):
//
//	[Header: timeStamp(8) | keyNumber(8) | minKey(8) | maxKey(8)]
//	[Bloom filter: 10240 bytes, one byte per slot]
//	[Index: keyNumber x { key(8) | offset(4) }]
//	[Data: concatenated raw value bytes in key order]
//
// Value lengths are implicit: entry i spans [index[i].Offset,
// index[i+1].Offset), the last entry runs to end of file.

const (
	// HeaderSize is the serialized size of SSTHeader in bytes.
	HeaderSize = 32
	// BloomFilterSize is the serialized bloom filter size in bytes.
	BloomFilterSize = 10240
	// DataIndexSize is the serialized size of one index entry in bytes.
	DataIndexSize = 12
	// MaxSSTableSize caps the total size of a single SSTable file.
	MaxSSTableSize = 2097152

	// DeleteSign is the tombstone sentinel. It is stored like any other
	// value and only interpreted by the read path and by compaction.
	DeleteSign = "~DELETED~"

	// memTableBaseSize is the fixed overhead every flushed file carries
	// before the first entry: header plus bloom filter.
	memTableBaseSize = HeaderSize + BloomFilterSize
)

// SSTHeader is the fixed 32-byte metadata record at the start of every
// SSTable file.
type SSTHeader struct {
	TimeStamp uint64
	KeyNumber uint64
	MinKey    uint64
	MaxKey    uint64
}

// DataIndex is one index entry: a key and the file offset of its value
// bytes.
type DataIndex struct {
	Key    uint64
	Offset uint32
}

// SSTable is the in-memory handle for one immutable on-disk file. The
// header, bloom filter and full index stay resident; value bytes are
// read on demand. Handles are owned by the engine's level lists and are
// never shared across them.
type SSTable struct {
	level   int
	path    string
	header  SSTHeader
	bloom   *BloomFilter
	indexes []DataIndex
}

// Level returns the LSM level holding the file.
func (t *SSTable) Level() int { return t.level }

// TimeStamp returns the maximum timestamp of any write in the file.
func (t *SSTable) TimeStamp() uint64 { return t.header.TimeStamp }

// MinKey returns the smallest key in the file.
func (t *SSTable) MinKey() uint64 { return t.header.MinKey }

// MaxKey returns the largest key in the file.
func (t *SSTable) MaxKey() uint64 { return t.header.MaxKey }

// KeyNumber returns the exact count of keys in the file.
func (t *SSTable) KeyNumber() uint64 { return t.header.KeyNumber }

// Path returns the file's location on disk.
func (t *SSTable) Path() string { return t.path }

// Keys returns every key in the file in ascending order.
func (t *SSTable) Keys() []uint64 {
	keys := make([]uint64, len(t.indexes))
	for i, idx := range t.indexes {
		keys[i] = idx.Key
	}
	return keys
}

// isTombstone reports whether a stored value is the deletion sentinel.
func isTombstone(v []byte) bool {
	return string(v) == DeleteSign
}
