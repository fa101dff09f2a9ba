// Package store provides SQLite-backed persistence for a BM25 corpus: the
// documents that make up the corpus and the per-(term, document) postings
// derived from them, durable enough to be replayed into
// pkg/bm25agg.TermPostingRow values without re-tokenizing.
package store

// Document is one row of the corpus: raw text plus its precomputed token
// length (doc_len in the aggregator's terms).
type Document struct {
	ID        int32  `json:"id"`
	Text      string `json:"text"`
	Length    int32  `json:"length"`
	CreatedAt int64  `json:"createdAt"`
}

// Posting is one (term, document) pair with a non-zero frequency, the
// durable form of a single entry in a TermPostingRow's parallel arrays.
type Posting struct {
	Term  string `json:"term"`
	DocID int32  `json:"docId"`
	Fq    int32  `json:"fq"`
}
