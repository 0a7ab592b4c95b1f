package usecase

import (
	"regexp"
	"strings"
)

// Signal weights for relevance scoring.
const (
	weightAlt      = 0.4
	weightFilename = 0.3
	weightContext  = 0.2
	weightDomain   = 0.1
)

// trustedDomains are known high-quality image hosts. Matching a trusted
// domain (exact or subdomain) contributes the domain-trust signal.
var trustedDomains = []string{
	"wikimedia.org",
	"wikipedia.org",
	"pixabay.com",
	"unsplash.com",
	"pexels.com",
	"flickr.com",
	"imgur.com",
}

// tokenPattern keeps alphanumeric runs and CJK character runs together.
var tokenPattern = regexp.MustCompile(`[\w\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FFF}]+`)

// Scorer converts per-image signals into a relevance score in [0,1].
// Stateless; safe for concurrent use.
type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// Score computes the weighted relevance of an image for a topic from its
// alt text, filename, surrounding text (bounded upstream to 200 chars) and
// the trust of the image host. Each sub-signal is normalized to [0,1]
// before weighting; the result is clamped to [0,1].
func (s *Scorer) Score(topic, altText, filename, contextText, domain string) float64 {
	tokens := tokenize(topic)
	if len(tokens) == 0 {
		return 0.0
	}

	total := weightAlt*matchRatio(tokens, altText) +
		weightFilename*matchRatio(tokens, filename) +
		weightContext*matchRatio(tokens, contextText) +
		weightDomain*domainTrust(domain)

	if total < 0 {
		return 0
	}
	if total > 1 {
		return 1
	}
	return total
}

// tokenize lowercases and splits text into tokens, dropping single-char
// tokens to avoid noise matches.
func tokenize(text string) []string {
	var tokens []string
	for _, t := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(t)) > 1 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// matchRatio returns the fraction of topic tokens that appear in text.
func matchRatio(topicTokens []string, text string) float64 {
	if len(topicTokens) == 0 || text == "" {
		return 0.0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, t := range topicTokens {
		if strings.Contains(lower, t) {
			matches++
		}
	}
	return float64(matches) / float64(len(topicTokens))
}

func domainTrust(domain string) float64 {
	if domain == "" {
		return 0.0
	}
	lower := strings.ToLower(domain)
	for _, trusted := range trustedDomains {
		if lower == trusted || strings.HasSuffix(lower, "."+trusted) {
			return 1.0
		}
	}
	return 0.0
}
