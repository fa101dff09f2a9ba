package bm25agg

import (
	"container/heap"
	"sort"
)

// candidate is a (doc_id, score) pair threaded through the finalizer's heap
// and sort passes.
type candidate struct {
	docID int32
	score float32
}

// candidateHeap is a min-heap ordered by ascending score, so the root is
// always the weakest admitted candidate and can be evicted cheaply when a
// stronger one arrives.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Finalize drains the aggregator, producing the sorted top-K result. It
// takes ownership of the aggregator's internal state; the Aggregator must
// not be reused afterward.
//
// In limited mode (Config.Limit set) it runs a bounded min-heap pass sized
// Config.OverCollection * limit, folds Bloom contributions into the
// surviving candidates, and stable-sorts by score descending before
// truncating to limit. In unlimited mode it sorts every scored document
// descending and does NOT fold in Bloom contributions — this asymmetry is
// deliberate, matching the source this aggregator is modeled on.
func (a *Aggregator) Finalize() ([]BM25Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg.Limit == nil {
		return a.finalizeUnlimited()
	}
	return a.finalizeLimited(*a.cfg.Limit)
}

func (a *Aggregator) finalizeUnlimited() ([]BM25Result, error) {
	list := make([]candidate, 0, len(a.scores))
	for docID, s := range a.scores {
		if isNaN32(s) {
			return nil, ErrNaNScore
		}
		list = append(list, candidate{docID: docID, score: s})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })
	return toResults(list), nil
}

func (a *Aggregator) finalizeLimited(limit int) ([]BM25Result, error) {
	if limit == 0 || len(a.scores) == 0 {
		return []BM25Result{}, nil
	}

	capacity := a.cfg.OverCollection * limit
	h := make(candidateHeap, 0, capacity)
	heap.Init(&h)

	for docID, s := range a.scores {
		if isNaN32(s) {
			return nil, ErrNaNScore
		}
		c := candidate{docID: docID, score: s}
		if h.Len() < capacity {
			heap.Push(&h, c)
		} else if c.score > h[0].score {
			heap.Pop(&h)
			heap.Push(&h, c)
		}
	}

	list := make([]candidate, h.Len())
	for i := len(list) - 1; i >= 0; i-- {
		list[i] = heap.Pop(&h).(candidate)
	}

	for i := range list {
		list[i].score += a.bloomContribution(list[i].docID)
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })

	if len(list) > limit {
		list = list[:limit]
	}
	return toResults(list), nil
}

// bloomContribution sums the representative contribution of every Bloom
// entry whose filter reports membership for docID.
func (a *Aggregator) bloomContribution(docID int32) float32 {
	var total float32
	for _, entry := range a.blooms {
		if entry.bloom.Contains(docID) {
			total += entry.contribution
		}
	}
	return total
}

func toResults(list []candidate) []BM25Result {
	out := make([]BM25Result, len(list))
	for i, c := range list {
		out[i] = BM25Result{DocID: int64(c.docID), BM25: c.score}
	}
	return out
}
