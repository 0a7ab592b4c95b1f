package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Topic-based image discovery with verifiable provenance",
	Long: `discovery finds image assets on the web starting from a free-text topic
keyword: it queries search providers, extracts images from the candidate
pages, scores relevance, deduplicates across topics and records the
provenance of every decision in a replayable query log.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
