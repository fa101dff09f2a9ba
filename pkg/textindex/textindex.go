// Package textindex is the ambient ingestion driver that turns raw document
// text into the per-term posting rows pkg/bm25agg consumes. It is not part
// of the aggregator's contract — any other producer of
// bm25agg.TermPostingRow works just as well.
package textindex

import (
	"sort"
	"strings"
	"unicode"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"github.com/orsinium-labs/stopwords"

	"github.com/kittclouds/bm25agg/pkg/bm25agg"
)

// postingEntry is one (doc_id, fq) pair accumulated for a single term,
// mirroring a FieldOccurrence/GramMetadata accumulation style seen in
// its q-gram indexer.
type postingEntry struct {
	docID int32
	fq    int32
}

// Tokenizer accumulates document text into per-term postings and corpus
// statistics, matching the QGramIndex-style accumulator shape (running
// totals kept alongside a per-term postings map rather than recomputed on
// read).
type Tokenizer struct {
	stop stopwords.Set

	postings map[string][]postingEntry
	lengths  map[int32]int32

	totalDocs   int
	totalLength int64
}

// NewTokenizer builds a Tokenizer that filters English stopwords before
// building postings.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		stop:     stopwords.EnglishSet(),
		postings: make(map[string][]postingEntry),
		lengths:  make(map[int32]int32),
	}
}

// Index tokenizes text, lowercasing and splitting on non-letter runes, drops
// stopwords, and records per-term document frequencies for docID.
func (t *Tokenizer) Index(docID int32, text string) {
	terms := tokenize(text)

	counts := make(map[string]int32, len(terms))
	for _, term := range terms {
		if t.stop.Has(term) {
			continue
		}
		counts[term]++
	}

	for term, fq := range counts {
		t.postings[term] = append(t.postings[term], postingEntry{docID: docID, fq: fq})
	}

	t.lengths[docID] = int32(len(terms))
	t.totalDocs++
	t.totalLength += int64(len(terms))
}

// AvgDocLen returns the corpus average document length (in tokens,
// including stopwords, matching the aggregator's doc_len definition over whole
// documents rather than post-filtering length).
func (t *Tokenizer) AvgDocLen() float32 {
	if t.totalDocs == 0 {
		return 0
	}
	return float32(t.totalLength) / float32(t.totalDocs)
}

// CorpusSize returns the number of documents indexed.
func (t *Tokenizer) CorpusSize() uint64 {
	return uint64(t.totalDocs)
}

// Row builds the bm25agg.TermPostingRow for a single term, with doc_ids
// sorted ascending. Returns nil if the term was never indexed.
//
// Driver note: feed rows to the aggregator ordered by ascending len(doc_ids)
// across the terms in a query (shortest/rarest posting lists first) so the
// exact map has accumulated enough entries by the time a common term's row
// arrives for the promotion threshold to matter; see the doc comment on
// pkg/bm25agg's Aggregator type.
func (t *Tokenizer) Row(term string) *bm25agg.TermPostingRow {
	entries, ok := t.postings[term]
	if !ok {
		return nil
	}

	sorted := append([]postingEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].docID < sorted[j].docID })

	docIDs := make([]int32, len(sorted))
	fqs := make([]int32, len(sorted))
	docLens := make([]int32, len(sorted))
	for i, e := range sorted {
		docIDs[i] = e.docID
		fqs[i] = e.fq
		docLens[i] = t.lengths[e.docID]
	}

	return bm25agg.NewRowInt32(term, int32(len(sorted)), docIDs, fqs, docLens)
}

// Rows builds one TermPostingRow per requested term, in the order given,
// skipping terms that were never indexed.
func (t *Tokenizer) Rows(terms ...string) []*bm25agg.TermPostingRow {
	rows := make([]*bm25agg.TermPostingRow, 0, len(terms))
	for _, term := range terms {
		if r := t.Row(term); r != nil {
			rows = append(rows, r)
		}
	}
	return rows
}

// PostingListLen reports how many documents a term appears in, for drivers
// that want to sort terms by ascending posting-list length before feeding
// rows to the aggregator.
func (t *Tokenizer) PostingListLen(term string) int {
	return len(t.postings[term])
}

// Terms returns every distinct term that was indexed, in no particular
// order.
func (t *Tokenizer) Terms() []string {
	terms := make([]string, 0, len(t.postings))
	for term := range t.postings {
		terms = append(terms, term)
	}
	return terms
}

// DocLength returns the indexed token length of docID, or 0 if it was never
// indexed.
func (t *Tokenizer) DocLength(docID int32) int32 {
	return t.lengths[docID]
}

// Postings returns every (doc_id, fq) entry recorded for term, unsorted.
func (t *Tokenizer) Postings(term string) []struct {
	DocID int32
	Fq    int32
} {
	entries := t.postings[term]
	out := make([]struct {
		DocID int32
		Fq    int32
	}, len(entries))
	for i, e := range entries {
		out[i] = struct {
			DocID int32
			Fq    int32
		}{DocID: e.docID, Fq: e.fq}
	}
	return out
}

// Locate builds an Aho-Corasick automaton over the given terms and reports
// every byte offset at which any of them occurs in text, used by cmd/bm25cli
// to highlight query terms inside stored document text.
func Locate(terms []string, text string) map[string][]int {
	if len(terms) == 0 {
		return nil
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	ac := builder.Build(terms)

	hits := ac.FindAll(strings.ToLower(text))

	out := make(map[string][]int, len(terms))
	for _, h := range hits {
		term := terms[h.Pattern()]
		out[term] = append(out[term], h.Start())
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
