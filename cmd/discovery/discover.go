package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/discovery-service/internal/usecase"
	"github.com/user/discovery-service/pkg/config"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <topic> [topic...]",
	Short: "Discover images for one or more topics and print a preview",
	Long: `Discover queries the configured search providers for each topic,
extracts image candidates from the result pages (honoring robots.txt),
scores their relevance and prints the deduplicated preview.

The per-topic query log is written under the discovery-logs directory so
the run can be audited and replayed.

Examples:
  # Preview up to 25 images for one topic
  discovery discover fuji --limit 25

  # Two topics, JSON preview saved for a later download
  discovery discover fuji mtfuji --json > preview.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		logsDir, _ := cmd.Flags().GetString("logs-dir")
		noRobots, _ := cmd.Flags().GetBool("no-robots")
		asJSON, _ := cmd.Flags().GetBool("json")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if logsDir == "" {
			logsDir = cfg.LogsDir
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		orch := newOrchestrator(cfg, logsDir)
		preview, err := orch.Discover(ctx, args, usecase.DiscoverOptions{
			Limit:         limit,
			RespectRobots: !noRobots,
		})
		if err != nil && preview == nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(preview)
		}

		fmt.Printf("Found %d images (%d after dedup) for %v\n\n",
			preview.TotalFound, preview.TotalAfterDedup, preview.Topics)
		for _, e := range preview.Entries {
			fmt.Printf("  [%-6s %.2f] %s\n", e.RelevanceTier, e.RelevanceScore, e.ImageURL)
			fmt.Printf("           from %s via %v\n", e.SourcePageURL, e.Topics)
		}
		if len(preview.FailedTopics) > 0 {
			fmt.Printf("\nTopics with no provider results: %v\n", preview.FailedTopics)
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().Int("limit", 50, "maximum images per topic")
	discoverCmd.Flags().String("logs-dir", "", "discovery-logs directory (default from config)")
	discoverCmd.Flags().Bool("no-robots", false, "operator override: skip robots.txt checks")
	discoverCmd.Flags().Bool("json", false, "print the preview as JSON")
	discoverCmd.Flags().Duration("timeout", 5*time.Minute, "overall run deadline")
	rootCmd.AddCommand(discoverCmd)
}
