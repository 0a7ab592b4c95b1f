package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var imageExtPattern = regexp.MustCompile(`(?i)\.(?:png|jpe?g|gif|webp|svg)$`)

// topicSlugStrip removes everything that is not alphanumeric, dash,
// underscore, whitespace or CJK from a topic before slugging.
var topicSlugStrip = regexp.MustCompile(`[^a-z0-9\-_\s\x{3040}-\x{30FF}\x{4E00}-\x{9FFF}]`)

var whitespace = regexp.MustCompile(`\s+`)

// HashURL creates a SHA256 hash of a URL string, used for cache keys and
// collision-free local filenames.
func HashURL(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(h[:])
}

// ToAbsoluteURL resolves a possibly relative reference against a base URL.
// Protocol-relative references ("//host/img.png") resolve to https.
func ToAbsoluteURL(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "//") {
		ref = "https:" + ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(refURL).String(), nil
}

// IsImageURL reports whether the URL path looks like an image file.
func IsImageURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return imageExtPattern.MatchString(u.Path)
}

// NormalizeImageURL produces the canonical dedup key for an image URL:
// scheme, host and path lowercased, fragment dropped, and the query string
// stripped unless the path lacks an image extension (in which case the
// query is assumed to discriminate the resource and is kept).
// This function is the single URL-equality primitive in the codebase.
func NormalizeImageURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.ToLower(u.Path)
	u.Fragment = ""
	if imageExtPattern.MatchString(u.Path) {
		u.RawQuery = ""
	}
	return u.String()
}

// FilenameFromURL extracts the last path element of an image URL, without
// any query string. Returns "" when the path has no filename.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// HostOf returns the lowercased hostname of a URL, or "" when unparsable.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// IsValidHTTP reports whether the URL is an absolute http(s) URL.
func IsValidHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SlugifyTopic derives a filesystem-safe slug from a topic keyword,
// preserving CJK characters, capped at 60 characters.
func SlugifyTopic(topic string) string {
	s := strings.ToLower(strings.TrimSpace(topic))
	s = topicSlugStrip.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "topic"
	}
	if runes := []rune(s); len(runes) > 60 {
		s = string(runes[:60])
	}
	return s
}

// ExtensionFor picks a file extension for a downloaded image, preferring
// the Content-Type, then the URL path, then a generic fallback.
func ExtensionFor(contentType, rawURL string) string {
	switch strings.TrimSpace(strings.Split(contentType, ";")[0]) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}
	return ".img"
}
