// Package bloomfilter provides a probabilistic set of int32 document ids
// with no false negatives, used by pkg/bm25agg to approximate very large
// postings lists instead of enumerating them.
package bloomfilter

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/kelindar/binary"
)

// Filter is a Bloom filter over int32 document ids.
//
// Contains never reports a false negative: if Add(x) was called, Contains(x)
// is always true. It may report false positives at a rate bounded by the
// false-positive rate requested at construction.
type Filter struct {
	bits   *bitset.BitSet
	hashes uint
	m      uint
}

// wireFilter is the on-the-wire shape used for binary marshaling; bitset.BitSet
// does not itself implement binary.Marshaler, so we flatten it to its word slice.
type wireFilter struct {
	Words  []uint64
	Length uint
	Hashes uint
	M      uint
}

// New constructs a Filter sized for expectedN elements at the given false
// positive rate (0, 1). Panics are never used; an fpRate outside (0, 1) is
// replaced by 0.01, and an expectedN of 0 is treated as 1, rather than
// producing a zero-sized filter.
func New(expectedN uint, fpRate float64) *Filter {
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	if expectedN == 0 {
		expectedN = 1
	}
	m := optimalM(expectedN, fpRate)
	k := optimalK(expectedN, m)
	return &Filter{
		bits:   bitset.New(m),
		hashes: k,
		m:      m,
	}
}

func optimalM(n uint, p float64) uint {
	m := math.Ceil(-1 * float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	if m < 1 {
		m = 1
	}
	return uint(m)
}

func optimalK(n, m uint) uint {
	k := math.Round((float64(m) / float64(n)) * math.Ln2)
	if k < 1 {
		k = 1
	}
	return uint(k)
}

// Add inserts docID into the filter.
func (f *Filter) Add(docID int32) {
	h1, h2 := splitHash(uint64(uint32(docID)))
	for i := uint(0); i < f.hashes; i++ {
		f.bits.Set(f.index(h1, h2, i))
	}
}

// Contains reports whether docID may be a member. Never false-negative.
func (f *Filter) Contains(docID int32) bool {
	h1, h2 := splitHash(uint64(uint32(docID)))
	for i := uint(0); i < f.hashes; i++ {
		if !f.bits.Test(f.index(h1, h2, i)) {
			return false
		}
	}
	return true
}

func (f *Filter) index(h1, h2 uint64, i uint) uint {
	combined := h1 + uint64(i)*h2
	return uint(combined % uint64(f.m))
}

// splitHash derives two independent-enough 64-bit hashes from a single int32
// key using the double-hashing technique (Kirsch-Mitzenmacher), avoiding a
// dependency on a general-purpose hash function for a fixed-width key.
func splitHash(x uint64) (uint64, uint64) {
	h1 := fnv1a(x)
	h2 := fnv1a(x ^ 0x9e3779b97f4a7c15)
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

func fnv1a(x uint64) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for i := 0; i < 8; i++ {
		h ^= x & 0xff
		h *= prime
		x >>= 8
	}
	return h
}

// MarshalBinary implements encoding.BinaryMarshaler using kelindar/binary.
func (f *Filter) MarshalBinary() ([]byte, error) {
	words := f.bits.Bytes()
	wf := wireFilter{
		Words:  append([]uint64(nil), words...),
		Length: f.bits.Len(),
		Hashes: f.hashes,
		M:      f.m,
	}
	return binary.Marshal(wf)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *Filter) UnmarshalBinary(data []byte) error {
	var wf wireFilter
	if err := binary.Unmarshal(data, &wf); err != nil {
		return err
	}
	bs := bitset.From(wf.Words)
	f.bits = bs
	f.hashes = wf.Hashes
	f.m = wf.M
	return nil
}
