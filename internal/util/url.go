package util

import (
	"net/url"
	"strings"
	"unicode"
)

// trackingParams are stripped by SanitizeURL, both from the URL itself and
// from an embedded openid.return_to URL.
var trackingParams = []string{
	"tag", "ascsubtag", "affid", "affExtParam1", "affExtParam2",
	"utm_source", "utm_medium", "utm_campaign", "th",
	"cmpid", "_refId", "_appId", "dealsmagnet.com", "aod", "psc", "admitad_uid",
	"tagtag_uid", "referrer", "af_siteid", "tsid", "Aff_Desidime",
	"affinity_int", "af_tranid", "af_prt", "pid", "c",
}

const nestedReturnParam = "openid.return_to"

// TrackingParams returns a copy of the blocklist used by SanitizeURL.
func TrackingParams() []string {
	return append([]string(nil), trackingParams...)
}

// SanitizeURL removes known affiliate and tracking query parameters. Other
// parameters are kept byte-for-byte and in their original order, including
// ones net/url would reject. Unparseable or relative input is returned
// unchanged.
func SanitizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return rawURL
	}
	if parsed.RawQuery == "" {
		return parsed.String()
	}
	parsed.RawQuery = stripQuery(parsed.RawQuery)
	return parsed.String()
}

func stripQuery(rawQuery string) string {
	kept := make([]string, 0, strings.Count(rawQuery, "&")+1)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		if isTrackingParam(key) {
			continue
		}
		if key == nestedReturnParam {
			pair = rawKey + "=" + sanitizeNested(rawValue)
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// sanitizeNested cleans an escaped openid.return_to value. Values that do not
// decode to an absolute URL are left as they were.
func sanitizeNested(rawValue string) string {
	nested, err := url.QueryUnescape(rawValue)
	if err != nil {
		return rawValue
	}
	nestedURL, err := url.Parse(nested)
	if err != nil || nestedURL.Host == "" {
		return rawValue
	}
	nestedURL.RawQuery = stripQuery(nestedURL.RawQuery)
	return url.QueryEscape(nestedURL.String())
}

func isTrackingParam(key string) bool {
	for _, p := range trackingParams {
		if key == p {
			return true
		}
	}
	return false
}

// NormalizeText lowercases s, drops everything that is not a letter, digit or
// space and collapses runs of whitespace.
func NormalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeURL strips the query string and fragment. Input that is not an
// absolute URL is only trimmed.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host) + parsed.EscapedPath()
}

// IsHTTPURL reports whether s is an absolute http(s) URL.
func IsHTTPURL(s string) bool {
	parsed, err := url.Parse(s)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
