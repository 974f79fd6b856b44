package pipeline

import (
	"net/url"
	"strings"
)

// authoritativeDomains lists hosts whose pages earn the "high"
// credibility tier, matched by suffix.
var authoritativeDomains = []string{
	"gov.uk",
	"europa.eu",
	"consilium.europa.eu",
	"ec.europa.eu",
	"wto.org",
	"oecd.org",
	"imf.org",
}

// Credibility tiers.
const (
	CredibilityHigh   = "high"
	CredibilityMedium = "medium"
	CredibilityLow    = "low"
)

// CredibilityTier derives the coarse trust label for a source URL.
func CredibilityTier(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return CredibilityMedium
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range authoritativeDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return CredibilityHigh
		}
	}
	return CredibilityMedium
}

// SourceName is the short display name for a URL's host.
func SourceName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
