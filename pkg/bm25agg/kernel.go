package bm25agg

import (
	"fmt"

	"github.com/chewxy/math32"
)

// score computes the BM25 contribution of a single document for a single
// term. It is a pure function, branch-free apart from the NaN guard, and
// intended to be cheap enough to inline at every call site in the hot loop.
//
//	idf  = ln((corpusSize - termFreq + 0.5) / (termFreq + 0.5))
//	bm25 = idf * (fq*(k1+1)) / (fq + k1*(1 - b + b*(docLen/avgDocLen)))
//
// Negative idf (a term present in more than half the corpus) is permitted
// and returned as-is. Any NaN result is reported as ErrNaNScore carrying
// docLen, fq, and idf for diagnosis.
func score(docLen, fq float32, termFreq int32, corpusSize uint64, avgDocLen, k1, b float32) (float32, error) {
	idf := idfOf(termFreq, corpusSize)

	denom := fq + k1*(1-b+b*(docLen/avgDocLen))
	bm25 := idf * (fq * (k1 + 1)) / denom

	if math32.IsNaN(bm25) {
		return 0, fmt.Errorf("%w: doc_len=%v fq=%v idf=%v", ErrNaNScore, docLen, fq, idf)
	}
	return bm25, nil
}

// idfOf computes the inverse document frequency component in isolation, used
// both by the exact path (per document) and the Bloom path (once, for the
// representative contribution).
func idfOf(termFreq int32, corpusSize uint64) float32 {
	n := float32(corpusSize)
	tf := float32(termFreq)
	return math32.Log((n - tf + 0.5) / (tf + 0.5))
}
