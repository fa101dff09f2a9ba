package bm25agg

import "fmt"

// Combine merges two or more independently-run aggregators into one,
// additively merging their exact score maps and concatenating their Bloom
// accumulators. It is the merge sketched, but never activated, by the
// source this package is modeled on: no public entry point calls it, and a
// driver wiring partitioned/parallel aggregation must call it explicitly
// and document that choice.
//
// Every input must agree on K1, B, and Limit; disagreement is reported as
// ErrCombineMismatch rather than silently picking one side, since the
// aggregator has no way to know which partition's configuration is
// authoritative. Bloom entries are concatenated verbatim: deduplicating them
// would require a notion of filter equality this package does not define.
func Combine(states ...*Aggregator) (*Aggregator, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: no aggregators to combine", ErrInvalidConfig)
	}

	first := states[0]
	first.mu.Lock()
	merged := &Aggregator{
		cfg:    first.cfg,
		scores: make(map[int32]float32, len(first.scores)),
		blooms: append([]bloomEntry(nil), first.blooms...),
	}
	for docID, s := range first.scores {
		merged.scores[docID] = s
	}
	first.mu.Unlock()

	for _, next := range states[1:] {
		next.mu.Lock()
		if !configsCombinable(merged.cfg, next.cfg) {
			next.mu.Unlock()
			return nil, fmt.Errorf("%w", ErrCombineMismatch)
		}
		for docID, s := range next.scores {
			merged.scores[docID] += s
		}
		merged.blooms = append(merged.blooms, next.blooms...)
		next.mu.Unlock()
	}

	return merged, nil
}

func configsCombinable(a, b Config) bool {
	if a.K1 != b.K1 || a.B != b.B {
		return false
	}
	if (a.Limit == nil) != (b.Limit == nil) {
		return false
	}
	if a.Limit != nil && *a.Limit != *b.Limit {
		return false
	}
	return true
}
