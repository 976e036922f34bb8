package util

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// GetDomain returns the registrable domain of rawURL ("www.amazon.co.uk" ->
// "amazon.co.uk"). It returns "" when the URL has no host.
func GetDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
