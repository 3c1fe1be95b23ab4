// Package bloom provides a probabilistic membership filter used to
// short-circuit point lookups against a store snapshot. It guarantees no
// false negatives: if a key was added, Contains always returns true.
package bloom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"
)

// Filter is a bloom filter over byte keys with murmur3 double hashing.
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a Filter with the given number of bits and hash functions.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	// Round up to whole 64-bit words
	numWords := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates creates a Filter sized for the expected number of keys
// and target false positive rate.
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	numBits, numHashes := OptimalParameters(expectedItems, targetFPR)
	return New(numBits, numHashes)
}

// OptimalParameters calculates bit and hash counts for the given item count
// and false positive rate:
//
//	m = -n * ln(p) / (ln(2)^2)
//	k = (m/n) * ln(2)
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	k := (m / n) * math.Ln2

	numBits = int(math.Ceil(m))
	numHashes = int(math.Ceil(k))
	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}
	return numBits, numHashes
}

// Add inserts a key into the filter.
func (f *Filter) Add(key []byte) {
	h1, h2 := hash128(key)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// Contains reports whether the key might be present. A false result is
// definitive.
func (f *Filter) Contains(key []byte) bool {
	h1, h2 := hash128(key)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of keys added.
func (f *Filter) Count() uint64 {
	return f.count
}

// FalsePositiveRate estimates the current false positive rate from the
// fill level: (1 - e^(-k*n/m))^k.
func (f *Filter) FalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

// Marshal serializes a filter into a snappy-compressed byte blob suitable
// for storage in a snapshot's meta table. Layout before compression:
//
//	8 bytes numBits, 8 bytes numHashes, 8 bytes count, then the bit words,
//	all little-endian.
func Marshal(f *Filter) ([]byte, error) {
	if f == nil {
		return nil, errors.New("bloom: cannot marshal nil filter")
	}

	raw := make([]byte, 24+len(f.bits)*8)
	binary.LittleEndian.PutUint64(raw[0:8], f.numBits)
	binary.LittleEndian.PutUint64(raw[8:16], f.numHashes)
	binary.LittleEndian.PutUint64(raw[16:24], f.count)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(raw[24+i*8:], word)
	}

	return snappy.Encode(nil, raw), nil
}

// Unmarshal reconstructs a filter from a blob produced by Marshal.
func Unmarshal(blob []byte) (*Filter, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("bloom: failed to decompress filter: %w", err)
	}
	if len(raw) < 24 {
		return nil, errors.New("bloom: serialized filter too short")
	}

	numBits := binary.LittleEndian.Uint64(raw[0:8])
	numHashes := binary.LittleEndian.Uint64(raw[8:16])
	count := binary.LittleEndian.Uint64(raw[16:24])
	if numBits == 0 || numHashes == 0 {
		return nil, errors.New("bloom: invalid filter header")
	}

	numWords := (numBits + 63) / 64
	if uint64(len(raw)) < 24+numWords*8 {
		return nil, fmt.Errorf("bloom: expected %d bytes, got %d", 24+numWords*8, len(raw))
	}

	bits := make([]uint64, numWords)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(raw[24+i*8:])
	}

	return &Filter{
		bits:      bits,
		numBits:   numBits,
		numHashes: numHashes,
		count:     count,
	}, nil
}

// hash128 computes the murmur3 128-bit hash as two 64-bit values for
// double hashing.
func hash128(key []byte) (uint64, uint64) {
	h := murmur3.New128()
	h.Write(key)
	return h.Sum128()
}
