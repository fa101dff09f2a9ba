// Command bm25cli demonstrates the corpus -> postings -> aggregator -> top-K
// pipeline end to end: index raw text into a SQLite-backed corpus store,
// then query it for the top-scoring documents under approximate BM25.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kittclouds/bm25agg/cmd/bm25cli/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
