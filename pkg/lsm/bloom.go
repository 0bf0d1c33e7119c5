package lsm

import (
	"encoding/binary"

	"github.com/twmb/murmur3"
)

// BloomSeed seeds the bloom filter hash. It is part of the on-disk
// format and must never change.
const BloomSeed = 1

// BloomFilter is a fixed-capacity probabilistic membership filter
// written into every SSTable.
// - False positives possible (may say key exists when it doesn't)
// - False negatives impossible (if it says key doesn't exist, it definitely doesn't)
//
// Each key contributes four slots derived from a 128-bit MurmurHash3 of
// its 8-byte little-endian encoding. The serialized form is exactly
// BloomFilterSize bytes, one byte per slot, non-zero meaning set.
type BloomFilter struct {
	slots []byte
}

// NewBloomFilter creates an empty bloom filter.
func NewBloomFilter() *BloomFilter {
	return &BloomFilter{slots: make([]byte, BloomFilterSize)}
}

// newBloomFilterFromBytes wraps a serialized filter read from disk.
// The caller must hand over exactly BloomFilterSize bytes.
func newBloomFilterFromBytes(data []byte) *BloomFilter {
	return &BloomFilter{slots: data}
}

// Insert adds a key to the filter.
func (bf *BloomFilter) Insert(key uint64) {
	for _, w := range hashSlots(key) {
		bf.slots[w%BloomFilterSize] = 1
	}
}

// HasKey checks if a key might be in the set.
// Returns true if key might exist (with false positive rate)
// Returns false if key definitely doesn't exist
func (bf *BloomFilter) HasKey(key uint64) bool {
	for _, w := range hashSlots(key) {
		if bf.slots[w%BloomFilterSize] == 0 {
			return false
		}
	}
	return true
}

// Bytes returns the serialized filter: exactly BloomFilterSize bytes.
func (bf *BloomFilter) Bytes() []byte {
	return bf.slots
}

// hashSlots computes the four 32-bit words of the seeded 128-bit
// MurmurHash3 of the key's little-endian encoding.
func hashSlots(key uint64) [4]uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	h1, h2 := murmur3.SeedSum128(BloomSeed, BloomSeed, buf[:])
	return [4]uint32{
		uint32(h1),
		uint32(h1 >> 32),
		uint32(h2),
		uint32(h2 >> 32),
	}
}
