// Package bm25agg implements an approximate BM25 ranking aggregator over
// streamed per-term postings. It accumulates per-document contributions into
// an exact score map and, once that map holds more than 100 documents, takes
// any further row that carries a Bloom filter of its document membership as
// a single representative contribution instead of enumerating its postings.
package bm25agg

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every fatal condition in the aggregator wraps one of
// these so callers can branch with errors.Is instead of string matching.
var (
	// ErrNilRow is returned when a caller passes a nil *TermPostingRow to Add.
	ErrNilRow = errors.New("bm25agg: aggregate called with non-record type")

	// ErrInvalidConfig is returned when limit, corpus size, or avg doc length
	// fail validation at aggregator construction.
	ErrInvalidConfig = errors.New("bm25agg: invalid aggregator configuration")

	// ErrNaNScore is returned when the scoring kernel produces a NaN result.
	ErrNaNScore = errors.New("bm25agg: encountered NaN in BM25 score calculation")

	// ErrUnsupportedElementType is returned when a posting row's arrays carry
	// an element width the aggregator cannot safely cast into int32.
	ErrUnsupportedElementType = errors.New("bm25agg: unsupported posting array element type")

	// ErrPostingsMismatch is returned under Config.StrictPostings when
	// term_freq disagrees with the cardinality of doc_ids.
	ErrPostingsMismatch = errors.New("bm25agg: term_freq does not match cardinality of doc_ids")

	// ErrCombineMismatch is returned by Combine when input aggregators
	// disagree on configuration that must be identical to merge safely.
	ErrCombineMismatch = errors.New("bm25agg: cannot combine aggregators with differing configuration")
)

// TermPostingRow is one row of the per-term postings input described by the
// aggregator's external interface: either an exact posting (doc_ids/fqs/
// doc_lens, all parallel arrays) or a Bloom-encoded posting (doc_ids_bloom),
// never both read in the same row.
type TermPostingRow struct {
	Term     string
	TermFreq int32

	DocIDs  []int32
	Fqs     []int32
	DocLens []int32

	// DocIDsBloom, when non-nil, lets the dispatcher take the approximate
	// path instead of reading DocIDs/Fqs/DocLens. Constructing a row with
	// both this and the three arrays populated is legal; which path is
	// taken depends only on promotion state at the time the row is applied.
	DocIDsBloom BloomSet

	// castFromWiderType is set by NewRowInt64 so Add can emit a
	// rate-limited "type cast, potentially hurting performance" warning.
	castFromWiderType bool
}

// BloomSet is the narrow interface bm25agg needs from a Bloom filter,
// satisfied by *bloomfilter.Filter. Declared locally so this package does
// not have to import bloomfilter just to accept one.
type BloomSet interface {
	Contains(docID int32) bool
}

// NewRowInt32 builds an exact-path TermPostingRow directly from int32 arrays,
// the natively supported element width.
func NewRowInt32(term string, termFreq int32, docIDs, fqs, docLens []int32) *TermPostingRow {
	return &TermPostingRow{Term: term, TermFreq: termFreq, DocIDs: docIDs, Fqs: fqs, DocLens: docLens}
}

// NewRowInt64 builds an exact-path TermPostingRow from int64 arrays, the
// "type cast, potentially hurting performance" path described by the
// dispatcher contract. Returns ErrUnsupportedElementType if any value does
// not fit in int32; the caller decides whether that is fatal for its driver.
func NewRowInt64(term string, termFreq int32, docIDs, fqs, docLens []int64) (*TermPostingRow, error) {
	ids, err := castInt32Slice(docIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: doc_ids: %v", ErrUnsupportedElementType, err)
	}
	fs, err := castInt32Slice(fqs)
	if err != nil {
		return nil, fmt.Errorf("%w: fqs: %v", ErrUnsupportedElementType, err)
	}
	ls, err := castInt32Slice(docLens)
	if err != nil {
		return nil, fmt.Errorf("%w: doc_lens: %v", ErrUnsupportedElementType, err)
	}
	return &TermPostingRow{Term: term, TermFreq: termFreq, DocIDs: ids, Fqs: fs, DocLens: ls, castFromWiderType: true}, nil
}

// WithBloom attaches a Bloom-encoded posting to an otherwise exact row,
// making it eligible for the promotion path once the exact map grows large.
func (r *TermPostingRow) WithBloom(bloom BloomSet) *TermPostingRow {
	r.DocIDsBloom = bloom
	return r
}

func castInt32Slice(in []int64) ([]int32, error) {
	out := make([]int32, len(in))
	for i, v := range in {
		if v < minInt32 || v > maxInt32 {
			return nil, fmt.Errorf("value %d at index %d out of int32 range", v, i)
		}
		out[i] = int32(v)
	}
	return out, nil
}

const (
	minInt32 = -1 << 31
	maxInt32 = 1<<31 - 1
)

// BM25Result is one entry of the finalized, sorted top-K output.
type BM25Result struct {
	DocID int64
	BM25  float32
}

// Config holds the tunables shared by all rows of one aggregation. Defaults
// match the documented BM25 constants; DefaultConfig is the base that the limited and
// parameterized entry points start from and then override.
type Config struct {
	K1 float32
	B  float32

	// CorpusSize and AvgDocLen are validated by the constructors: CorpusSize
	// must be > 0 and AvgDocLen non-negative and not NaN (zero and +Inf are
	// accepted).
	CorpusSize uint64
	AvgDocLen  float32

	// Limit, when non-nil, switches the finalizer into bounded top-K mode.
	Limit *int

	// OverCollection is the multiplier applied to Limit when sizing the
	// finalization heap. Defaults to 10; exposed as a tunable since a fixed
	// heuristic constant is awkward to hardcode across corpora.
	OverCollection int

	// StrictPostings, when true, asserts term_freq == len(doc_ids) on every
	// exact-path row and fails with ErrPostingsMismatch otherwise. Off by
	// default, matching the original's commented-out, inert assertion.
	StrictPostings bool
}

// DefaultConfig returns the standard BM25 constants: k1=1.2, b=0.75, over-collection
// factor 10, strict postings checking disabled.
func DefaultConfig() Config {
	return Config{
		K1:             1.2,
		B:              0.75,
		OverCollection: defaultOverCollection,
		StrictPostings: false,
	}
}

const (
	promotionThreshold   = 100
	defaultOverCollection = 10
	exactMapInitCapacity = 1000
)
