// Package cli wires the bm25cli subcommands together, in the same
// cobra-root-plus-PersistentFlags style used by the repository's other
// command-line entry points.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"

	dbPath string
)

// Execute builds and runs the bm25cli root command.
func Execute(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:     "bm25cli",
		Short:   "Index documents and query them by approximate BM25 relevance",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "bm25.db", "path to the SQLite corpus database")

	rootCmd.AddCommand(
		newIndexCmd(),
		newQueryCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
