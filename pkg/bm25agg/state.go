package bm25agg

import (
	"fmt"
	"log"
	"sync"
)

// bloomEntry is one element of the Bloom accumulator: a representative BM25
// contribution paired with the filter it was computed for.
type bloomEntry struct {
	contribution float32
	bloom        BloomSet
}

// Aggregator is the streaming BM25 aggregation state machine. It is created
// by one of the three public entry-point constructors (NewBaseAggregator,
// NewLimitedAggregator, NewParameterizedAggregator), fed rows with Add, and
// drained exactly once by Finalize.
//
// Driver note: for the >100 promotion threshold to matter, feed rows
// ordered by ascending len(doc_ids) — cheap, discriminating terms first, so
// that by the time a very common term arrives the exact map has already
// accumulated enough entries for the Bloom path to activate. The aggregator
// itself does not reorder rows; that is a property of the caller's scan.
type Aggregator struct {
	cfg Config

	scores map[int32]float32
	blooms []bloomEntry

	castWarned bool
	mu         sync.Mutex
}

// NewBaseAggregator is the "base" entry point: corpus_size and avg_doc_len
// must already be known, since the base variant never reads them from the
// row stream. Fails validation exactly as the limited/parameterized variants
// do, rather than deferring to an unwrap panic on the first row.
func NewBaseAggregator(corpusSize uint64, avgDocLen float32) (*Aggregator, error) {
	cfg := DefaultConfig()
	cfg.CorpusSize = corpusSize
	cfg.AvgDocLen = avgDocLen
	return newAggregator(cfg)
}

// NewLimitedAggregator is the "limited" entry point.
func NewLimitedAggregator(limit int, corpusSize uint64, avgDocLen float32) (*Aggregator, error) {
	cfg := DefaultConfig()
	cfg.Limit = &limit
	cfg.CorpusSize = corpusSize
	cfg.AvgDocLen = avgDocLen
	return newAggregator(cfg)
}

// NewParameterizedAggregator is the "parameterized" entry point, additionally
// overriding k1 and b.
func NewParameterizedAggregator(limit int, corpusSize uint64, avgDocLen, k1, b float32) (*Aggregator, error) {
	cfg := DefaultConfig()
	cfg.Limit = &limit
	cfg.CorpusSize = corpusSize
	cfg.AvgDocLen = avgDocLen
	cfg.K1 = k1
	cfg.B = b
	return newAggregator(cfg)
}

func newAggregator(cfg Config) (*Aggregator, error) {
	if cfg.Limit != nil && *cfg.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidConfig, *cfg.Limit)
	}
	if cfg.CorpusSize == 0 {
		return nil, fmt.Errorf("%w: corpus_size must be > 0", ErrInvalidConfig)
	}
	if cfg.AvgDocLen < 0 || isNaN32(cfg.AvgDocLen) {
		return nil, fmt.Errorf("%w: avg_doc_len must be non-negative and not NaN, got %v", ErrInvalidConfig, cfg.AvgDocLen)
	}
	if cfg.OverCollection <= 0 {
		cfg.OverCollection = defaultOverCollection
	}
	return &Aggregator{
		cfg:    cfg,
		scores: make(map[int32]float32, exactMapInitCapacity),
	}, nil
}

func isNaN32(f float32) bool {
	return f != f
}

// Add is the per-row dispatcher: it decides between the exact-postings path
// and the Bloom-approximation path and updates the aggregator's state
// accordingly. Add is not safe for concurrent use by multiple goroutines on
// the same Aggregator without external synchronization beyond the internal
// mutex, which only protects against accidental concurrent calls from a
// driver that fans rows out across workers sharing one state; it does not
// make cross-row semantics parallel (see Combine for that).
func (a *Aggregator) Add(row *TermPostingRow) error {
	if row == nil {
		return ErrNilRow
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	promote := len(a.scores) > promotionThreshold && row.DocIDsBloom != nil

	if a.cfg.StrictPostings && !promote {
		if int(row.TermFreq) != len(row.DocIDs) {
			return fmt.Errorf("%w: term_freq=%d len(doc_ids)=%d", ErrPostingsMismatch, row.TermFreq, len(row.DocIDs))
		}
	}

	if promote {
		return a.addBloomPath(row)
	}
	return a.addExactPath(row)
}

// addBloomPath computes one representative BM25 contribution using fq=1.0
// and doc_len=avg_doc_len ("a typical document containing this term once")
// and defers it to finalization instead of enumerating doc_ids.
func (a *Aggregator) addBloomPath(row *TermPostingRow) error {
	contribution, err := score(a.cfg.AvgDocLen, 1.0, row.TermFreq, a.cfg.CorpusSize, a.cfg.AvgDocLen, a.cfg.K1, a.cfg.B)
	if err != nil {
		return err
	}
	a.blooms = append(a.blooms, bloomEntry{contribution: contribution, bloom: row.DocIDsBloom})
	return nil
}

// addExactPath computes and additively merges a BM25 contribution for every
// (doc_id, fq, doc_len) triple in the row.
func (a *Aggregator) addExactPath(row *TermPostingRow) error {
	if len(row.DocIDs) != len(row.Fqs) || len(row.DocIDs) != len(row.DocLens) {
		return fmt.Errorf("%w: doc_ids=%d fqs=%d doc_lens=%d", ErrUnsupportedElementType, len(row.DocIDs), len(row.Fqs), len(row.DocLens))
	}
	if row.castFromWiderType {
		a.warnCast(row.Term)
	}

	for i, docID := range row.DocIDs {
		fq := float32(row.Fqs[i])
		docLen := float32(row.DocLens[i])

		contribution, err := score(docLen, fq, row.TermFreq, a.cfg.CorpusSize, a.cfg.AvgDocLen, a.cfg.K1, a.cfg.B)
		if err != nil {
			return err
		}
		a.scores[docID] += contribution
	}
	return nil
}

// warnCast emits a rate-limited, non-fatal type-cast warning. Only
// the first occurrence per aggregator instance is logged.
func (a *Aggregator) warnCast(term string) {
	if a.castWarned {
		return
	}
	a.castWarned = true
	log.Printf("bm25agg: bm25 row type causes a type cast, potentially hurting performance (term=%q)", term)
}
