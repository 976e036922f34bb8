package util

import (
	"fmt"
	"net/url"
	"strings"
)

// MeeshoStore is the store name whose links get the referral rewrite.
const MeeshoStore = "Meesho"

// InjectMeeshoReferral sets the affiliate portal attribution parameters on a
// Meesho product URL. Malformed input is returned unchanged.
func InjectMeeshoReferral(rawURL, inviteCode, source, campaignID string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	if source == "" {
		source = "android_app"
	}
	if campaignID == "" {
		campaignID = "default"
	}

	q := parsed.Query()
	q.Set("af_force_deeplink", "true")
	q.Set("host_internal", "single_product")
	q.Set("pid", "meesho_affiliate_portal")
	q.Set("is_retargeting", "true")
	q.Set("af_click_lookback", "7d")
	q.Set("af_reengagement_window", "14d")
	q.Set("product_name", "product")
	q.Set("utm_source", source)
	q.Set("c", fmt.Sprintf("%s:%s:%s", inviteCode, source, campaignID))
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

// IsStore compares store names case-insensitively.
func IsStore(store, name string) bool {
	return strings.EqualFold(strings.TrimSpace(store), name)
}
