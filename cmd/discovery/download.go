package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/internal/usecase"
	"github.com/user/discovery-service/pkg/config"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download selected images from a saved preview",
	Long: `Download consumes a preview produced by "discover --json", applies the
domain and resolution filters, downloads the surviving images and writes a
provenance_index.json sidecar next to the saved files.

Examples:
  # Download everything from a preview
  discovery download --from preview.json --out ./images

  # Only large images from trusted hosts
  discovery download --from preview.json --out ./images \
    --min-width 800 --allow-domain wikimedia.org

  # Only two specific images
  discovery download --from preview.json --out ./images \
    --select https://example.com/a.jpg --select https://example.com/b.jpg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		outDir, _ := cmd.Flags().GetString("out")
		minWidth, _ := cmd.Flags().GetInt("min-width")
		minHeight, _ := cmd.Flags().GetInt("min-height")
		allowDomains, _ := cmd.Flags().GetStringSlice("allow-domain")
		denyDomains, _ := cmd.Flags().GetStringSlice("deny-domain")
		selection, _ := cmd.Flags().GetStringSlice("select")
		noRobots, _ := cmd.Flags().GetBool("no-robots")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		data, err := os.ReadFile(from)
		if err != nil {
			return fmt.Errorf("failed to read preview: %w", err)
		}
		var preview entity.PreviewResult
		if err := json.Unmarshal(data, &preview); err != nil {
			return fmt.Errorf("failed to parse preview: %w", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		orch := newOrchestrator(cfg, cfg.LogsDir)
		result, err := orch.SelectAndDownload(ctx, &preview, selection, entity.DownloadFilter{
			MinWidth:     minWidth,
			MinHeight:    minHeight,
			AllowDomains: allowDomains,
			DenyDomains:  denyDomains,
		}, usecase.DownloadOptions{
			RespectRobots: !noRobots,
			OutDir:        outDir,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Saved %d images to %s\n", len(result.Saved), outDir)
		for _, f := range result.Failed {
			fmt.Printf("  skipped %s (%s)\n", f.ImageURL, f.Reason)
		}
		if result.ProvenanceIndexPath != "" {
			fmt.Printf("Provenance index: %s\n", result.ProvenanceIndexPath)
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().String("from", "preview.json", "preview file produced by discover --json")
	downloadCmd.Flags().String("out", "downloaded_images", "output directory")
	downloadCmd.Flags().Int("min-width", 0, "minimum image width in pixels")
	downloadCmd.Flags().Int("min-height", 0, "minimum image height in pixels")
	downloadCmd.Flags().StringSlice("allow-domain", nil, "only download from these domains")
	downloadCmd.Flags().StringSlice("deny-domain", nil, "never download from these domains")
	downloadCmd.Flags().StringSlice("select", nil, "download only these image URLs (default: all)")
	downloadCmd.Flags().Bool("no-robots", false, "operator override: skip robots.txt checks")
	downloadCmd.Flags().Duration("timeout", 10*time.Minute, "overall batch deadline")
	rootCmd.AddCommand(downloadCmd)
}
