package htmlpage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/pkg/urlutil"
)

// contextTextMax bounds the surrounding-text signal fed to the scorer.
const contextTextMax = 200

// Extractor fetches a page over HTTP and extracts its image candidates.
type Extractor struct {
	fetcher *Fetcher
}

func NewExtractor(fetcher *Fetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// ExtractImages implements repository.PageExtractor.
func (e *Extractor) ExtractImages(ctx context.Context, pageURL string) ([]entity.ImageCandidate, error) {
	body, _, err := e.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	return ParseImages(string(body), pageURL)
}

// ParseImages extracts image candidates from raw HTML. Shared by the HTTP
// and headless-browser extractors so both fetch modes produce identical
// candidates. Honors src, data-src and data-original attributes, resolves
// relative and protocol-relative URLs against the page URL, keeps only
// image-extension URLs, and de-duplicates preserving first occurrence.
func ParseImages(html, pageURL string) ([]entity.ImageCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page url: %v", repository.ErrExtractionFailed, err)
	}

	var candidates []entity.ImageCandidate
	seen := make(map[string]struct{})

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src := firstAttr(s, "src", "data-src", "data-original")
		if src == "" {
			return
		}
		absolute, err := urlutil.ToAbsoluteURL(base, src)
		if err != nil || !urlutil.IsImageURL(absolute) {
			return
		}
		key := urlutil.NormalizeImageURL(absolute)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}

		candidates = append(candidates, entity.ImageCandidate{
			ImageURL:    absolute,
			AltText:     strings.TrimSpace(s.AttrOr("alt", "")),
			ContextText: contextText(s),
			WidthHint:   intAttr(s, "width"),
			HeightHint:  intAttr(s, "height"),
		})
	})

	return candidates, nil
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func intAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// contextText walks up to three ancestor levels looking for meaningful
// surrounding text, capped at contextTextMax characters.
func contextText(s *goquery.Selection) string {
	parent := s.Parent()
	for depth := 0; depth < 3 && parent.Length() > 0; depth++ {
		text := strings.Join(strings.Fields(parent.Text()), " ")
		if len(text) > 10 {
			if runes := []rune(text); len(runes) > contextTextMax {
				text = string(runes[:contextTextMax])
			}
			return text
		}
		parent = parent.Parent()
	}
	return ""
}
