package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/pkg/urlutil"
)

// Rejection explains why an entry was excluded by the filter pipeline.
type Rejection struct {
	ImageURL string
	Reason   string // deny_domain, not_in_allow_list, below_min_resolution, dimension_unknown
}

// FilterPipeline applies domain and resolution constraints before a
// download is authorized. Domain rules: deny matches exclude regardless of
// allow; a non-empty allow list excludes unlisted hosts. Resolution rules
// need a dimension probe; entries whose dimensions cannot be determined are
// excluded while a resolution filter is active (fail-closed) and retained
// otherwise.
type FilterPipeline struct {
	prober repository.ImageProber
}

func NewFilterPipeline(prober repository.ImageProber) *FilterPipeline {
	return &FilterPipeline{prober: prober}
}

// Apply partitions entries into kept and rejected under the filter.
func (f *FilterPipeline) Apply(ctx context.Context, entries []entity.ProvenanceEntry, filter entity.DownloadFilter) ([]entity.ProvenanceEntry, []Rejection) {
	kept := make([]entity.ProvenanceEntry, 0, len(entries))
	var rejected []Rejection

	for _, e := range entries {
		if reason := f.checkDomain(e, filter); reason != "" {
			rejected = append(rejected, Rejection{ImageURL: e.ImageURL, Reason: reason})
			continue
		}
		if filter.HasResolution() {
			if reason := f.checkResolution(ctx, e, filter); reason != "" {
				rejected = append(rejected, Rejection{ImageURL: e.ImageURL, Reason: reason})
				continue
			}
		}
		kept = append(kept, e)
	}
	return kept, rejected
}

func (f *FilterPipeline) checkDomain(e entity.ProvenanceEntry, filter entity.DownloadFilter) string {
	host := urlutil.HostOf(e.ImageURL)
	if hostMatchesAny(host, filter.DenyDomains) {
		return "deny_domain"
	}
	if len(filter.AllowDomains) > 0 && !hostMatchesAny(host, filter.AllowDomains) {
		return "not_in_allow_list"
	}
	return ""
}

func (f *FilterPipeline) checkResolution(ctx context.Context, e entity.ProvenanceEntry, filter entity.DownloadFilter) string {
	w, h := e.WidthHint, e.HeightHint
	if w == 0 || h == 0 {
		if f.prober == nil {
			return "dimension_unknown"
		}
		var err error
		w, h, err = f.prober.Probe(ctx, e.ImageURL)
		if err != nil {
			slog.Debug("dimension probe failed, excluding image", "image_url", e.ImageURL, "error", err)
			return "dimension_unknown"
		}
	}
	if filter.MinWidth > 0 && w < filter.MinWidth {
		return "below_min_resolution"
	}
	if filter.MinHeight > 0 && h < filter.MinHeight {
		return "below_min_resolution"
	}
	return ""
}

// hostMatchesAny reports whether host equals d or is a subdomain of d, for
// any configured domain d.
func hostMatchesAny(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
