package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittclouds/bm25agg/internal/store"
	"github.com/kittclouds/bm25agg/pkg/bm25agg"
	"github.com/kittclouds/bm25agg/pkg/textindex"
)

// newQueryCmd builds the "query" subcommand: score every document in the
// store against the given query terms and print the top-K by BM25.
func newQueryCmd() *cobra.Command {
	var limit int
	var k1, b float32
	var highlight bool

	cmd := &cobra.Command{
		Use:   "query [terms...]",
		Short: "Rank stored documents against the given query terms by approximate BM25",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), dbPath, args, limit, k1, b, highlight)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	cmd.Flags().Float32Var(&k1, "k1", 1.2, "BM25 k1 (term-frequency saturation)")
	cmd.Flags().Float32Var(&b, "b", 0.75, "BM25 b (length normalization)")
	cmd.Flags().BoolVar(&highlight, "highlight", false, "print query term hit offsets in the top result's text")
	return cmd
}

func runQuery(ctx context.Context, dbPath string, terms []string, limit int, k1, b float32, highlight bool) error {
	s, err := store.NewSQLiteStoreWithDSN(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	corpusSize, avgDocLen, err := s.CorpusStats(ctx)
	if err != nil {
		return err
	}
	if corpusSize == 0 {
		fmt.Println("empty corpus, nothing to query")
		return nil
	}

	rows, err := s.LoadTermPostings(ctx, terms)
	if err != nil {
		return err
	}

	agg, err := bm25agg.NewParameterizedAggregator(limit, corpusSize, avgDocLen, k1, b)
	if err != nil {
		return err
	}
	for i := range rows {
		if err := agg.Add(&rows[i]); err != nil {
			return err
		}
	}

	results, err := agg.Finalize()
	if err != nil {
		return err
	}

	for rank, r := range results {
		fmt.Printf("%2d. doc=%d bm25=%.4f\n", rank+1, r.DocID, r.BM25)
	}

	if highlight && len(results) > 0 {
		top, err := s.GetDocument(ctx, int32(results[0].DocID))
		if err == nil && top != nil {
			hits := textindex.Locate(terms, top.Text)
			fmt.Printf("term hits in doc %d: %v\n", top.ID, hits)
		}
	}

	return nil
}
