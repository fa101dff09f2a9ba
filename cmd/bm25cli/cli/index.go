package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kittclouds/bm25agg/internal/store"
	"github.com/kittclouds/bm25agg/pkg/textindex"
)

// newIndexCmd builds the "index" subcommand: read "<doc_id>\t<text>" lines
// from a file (or stdin) and populate the corpus store.
func newIndexCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a corpus file of \"<doc_id>\\t<text>\" lines into the SQLite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), dbPath, input)
		},
	}

	cmd.Flags().StringVar(&input, "input", "-", "path to the corpus file, or - for stdin")
	return cmd
}

func runIndex(ctx context.Context, dbPath, input string) error {
	f := os.Stdin
	if input != "-" {
		var err error
		f, err = os.Open(input)
		if err != nil {
			return fmt.Errorf("open corpus file: %w", err)
		}
		defer f.Close()
	}

	tok := textindex.NewTokenizer()
	docTexts := map[int32]string{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return fmt.Errorf("malformed corpus line (want \"<id>\\t<text>\"): %q", line)
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("parse doc id %q: %w", parts[0], err)
		}

		tok.Index(int32(id), parts[1])
		docTexts[int32(id)] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read corpus file: %w", err)
	}

	s, err := store.NewSQLiteStoreWithDSN(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	now := time.Now().Unix()
	for docID, text := range docTexts {
		doc := &store.Document{ID: docID, Text: text, Length: tok.DocLength(docID), CreatedAt: now}
		if err := s.PutDocument(ctx, doc); err != nil {
			return err
		}
	}

	for _, term := range tok.Terms() {
		entries := tok.Postings(term)
		postings := make([]store.Posting, len(entries))
		for i, e := range entries {
			postings[i] = store.Posting{Term: term, DocID: e.DocID, Fq: e.Fq}
		}
		if err := s.PutPostings(ctx, postings); err != nil {
			return err
		}
	}

	fmt.Printf("indexed %d documents, %d distinct terms, into %s\n", len(docTexts), len(tok.Terms()), dbPath)
	return nil
}
