package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/pkg/metrics"
	"github.com/user/discovery-service/pkg/urlutil"
)

// DownloadOptions tunes one select-and-download batch.
type DownloadOptions struct {
	RespectRobots bool
	OutDir        string
}

// SelectAndDownload consumes a preview: applies the filter pipeline, gates
// each image through robots, downloads the survivors in parallel and writes
// the provenance-index sidecar. Per-image failures are recorded in the
// result and never abort the batch.
func (o *Orchestrator) SelectAndDownload(ctx context.Context, preview *entity.PreviewResult, selection []string, filter entity.DownloadFilter, opts DownloadOptions) (*entity.DownloadResult, error) {
	if preview == nil || len(preview.Entries) == 0 {
		return &entity.DownloadResult{}, nil
	}
	if opts.OutDir == "" {
		return nil, fmt.Errorf("output directory must not be empty")
	}

	selected := selectEntries(preview.Entries, selection)
	result := &entity.DownloadResult{}

	kept, rejected := o.filter.Apply(ctx, selected, filter)
	for _, rej := range rejected {
		metrics.DownloadsTotal.WithLabelValues("filtered").Inc()
		result.Failed = append(result.Failed, entity.FailedImage{ImageURL: rej.ImageURL, Reason: rej.Reason})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.downloadWorkers)

	for _, e := range kept {
		g.Go(func() error {
			saved, failReason := o.downloadOne(gctx, e, opts)
			mu.Lock()
			defer mu.Unlock()
			if failReason != "" {
				result.Failed = append(result.Failed, entity.FailedImage{ImageURL: e.ImageURL, Reason: failReason})
			} else {
				result.Saved = append(result.Saved, *saved)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(result.Saved) > 0 {
		// Mirror provenance next to the saved files even when the caller
		// cancelled after downloads completed.
		wctx := context.WithoutCancel(ctx)
		indexPath, err := o.store.WriteProvenanceIndex(wctx, opts.OutDir, result.Saved)
		if err != nil {
			slog.Error("provenance index write failed", "dir", opts.OutDir, "error", err)
		} else {
			result.ProvenanceIndexPath = indexPath
		}
	}

	slog.Info("download batch finished",
		"saved", len(result.Saved),
		"failed", len(result.Failed),
		"out_dir", opts.OutDir,
	)
	return result, nil
}

// downloadOne gates, fetches and stores a single image. Returns the saved
// record, or a non-empty failure reason.
func (o *Orchestrator) downloadOne(ctx context.Context, e entity.ProvenanceEntry, opts DownloadOptions) (*entity.SavedImage, string) {
	if err := ctx.Err(); err != nil {
		return nil, "cancelled"
	}
	if opts.RespectRobots {
		if err := o.robots.AllowedForResource(ctx, e.ImageURL); err != nil {
			reason := "robots_denied"
			if errors.Is(err, repository.ErrRobotsUnreachable) {
				reason = "robots_unreachable"
			}
			metrics.RobotsChecksTotal.WithLabelValues(reason).Inc()
			metrics.DownloadsTotal.WithLabelValues("robots_denied").Inc()
			return nil, reason
		}
		metrics.RobotsChecksTotal.WithLabelValues("allowed").Inc()
	}

	body, contentType, err := o.fetcher.FetchImage(ctx, e.ImageURL)
	if err != nil {
		slog.Warn("image download failed", "image_url", e.ImageURL, "error", err)
		metrics.DownloadsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Sprintf("download_error: %v", err)
	}

	path, err := o.store.SaveImage(ctx, opts.OutDir, e.ImageURL, contentType, body)
	if err != nil {
		slog.Warn("image save failed", "image_url", e.ImageURL, "error", err)
		metrics.DownloadsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Sprintf("storage_error: %v", err)
	}

	metrics.DownloadsTotal.WithLabelValues("saved").Inc()
	return &entity.SavedImage{ImageURL: e.ImageURL, LocalPath: path, Provenance: e}, ""
}

// selectEntries resolves the caller's selection against the preview using
// the canonical URL normalization. An empty selection means everything.
func selectEntries(entries []entity.ProvenanceEntry, selection []string) []entity.ProvenanceEntry {
	if len(selection) == 0 {
		return entries
	}
	want := make(map[string]struct{}, len(selection))
	for _, s := range selection {
		want[urlutil.NormalizeImageURL(s)] = struct{}{}
	}
	var out []entity.ProvenanceEntry
	for _, e := range entries {
		if _, ok := want[urlutil.NormalizeImageURL(e.ImageURL)]; ok {
			out = append(out, e)
		}
	}
	return out
}
