// Package main provides the spokable CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chirag127/spokablepdf/cli"
	"github.com/chirag127/spokablepdf/config"
)

var (
	// Global flags
	provider string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "spokable",
		Short: "Turn extracted document text into speech-ready narration",
		Long: `Splits extracted document text into overlapping batches, rewrites each
batch as natural narration through a completion backend, and reassembles
the results in document order.

Batches are processed with bounded concurrency, paced dispatch, retries
with exponential backoff, credential failover, and a model tier cascade.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "gemini", "Completion backend (gemini, openai, anthropic)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose progress output")

	rootCmd.AddCommand(narrateCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func narrateCmd() *cobra.Command {
	var output string
	var turbo bool
	var concurrency int
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "narrate [input]",
		Short: "Narrate one extracted document",
		Long: `Narrate one extracted document. The input is a text file produced by
an upstream extraction step.

Turbo mode enables concurrent batch processing; without it batches run
one at a time. A single interrupt stops claiming new batches and lets
in-flight calls finish; a second interrupt aborts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:    provider,
				Output:      output,
				Turbo:       turbo,
				Concurrency: concurrency,
				Verbose:     verbose,
				NoHistory:   noHistory,
			}
			return cli.Narrate(context.Background(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Narration output file (default stdout)")
	cmd.Flags().BoolVar(&turbo, "turbo", false, "Process batches concurrently")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Worker count in turbo mode")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Skip recording the job in history")

	return cmd
}

func historyCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history [job-id]",
		Short: "List recorded jobs, or show one job's narration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				settings, err := config.New(provider)
				if err != nil {
					return err
				}
				dbPath = settings.HistoryPath
			}
			if len(args) == 1 {
				return cli.ShowJob(context.Background(), dbPath, args[0])
			}
			return cli.ListHistory(context.Background(), dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "History database path (default from HISTORY_DB)")

	return cmd
}
