package util

import (
	"net/url"
	"testing"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "No query",
			input: "https://www.amazon.in/dp/B0744RJW22",
			want:  "https://www.amazon.in/dp/B0744RJW22",
		},
		{
			name:  "Amazon affiliate params",
			input: "https://www.amazon.in/dp/B0744RJW22?tag=someone-21&ascsubtag=x&th=1&keep=yes",
			want:  "https://www.amazon.in/dp/B0744RJW22?keep=yes",
		},
		{
			name:  "UTM params only",
			input: "https://www.flipkart.com/item?utm_source=a&utm_medium=b&utm_campaign=c",
			want:  "https://www.flipkart.com/item",
		},
		{
			name:  "Order and unknown params kept",
			input: "https://shop.example.com/p?z=1&tag=x&a=2",
			want:  "https://shop.example.com/p?z=1&a=2",
		},
		{
			name:  "Bad escape kept verbatim",
			input: "https://x.com/p?q=%zz&tag=1",
			want:  "https://x.com/p?q=%zz",
		},
		{
			name:  "Semicolon pair kept verbatim",
			input: "https://x.com/p?a=1;b=2&tag=1",
			want:  "https://x.com/p?a=1;b=2",
		},
		{
			name:  "Escaped blocked key",
			input: "https://x.com/p?utm%5Fsource=a&id=7",
			want:  "https://x.com/p?id=7",
		},
		{
			name:  "Not a URL",
			input: "not a url",
			want:  "not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeURL(tt.input); got != tt.want {
				t.Errorf("SanitizeURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitizeURL_NestedReturnTo(t *testing.T) {
	nested := "https://www.amazon.in/dp/B01?tag=aff-21&psc=1&color=red"
	input := "https://www.amazon.in/ap/signin?openid.return_to=" + url.QueryEscape(nested) + "&tag=aff-21"

	got := SanitizeURL(input)
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("sanitized URL does not parse: %v", err)
	}
	if parsed.Query().Has("tag") {
		t.Errorf("top-level tag not removed: %s", got)
	}
	inner, err := url.Parse(parsed.Query().Get("openid.return_to"))
	if err != nil {
		t.Fatalf("nested URL does not parse: %v", err)
	}
	if inner.Query().Has("tag") || inner.Query().Has("psc") {
		t.Errorf("nested tracking params not removed: %s", inner)
	}
	if inner.Query().Get("color") != "red" {
		t.Errorf("nested non-tracking param lost: %s", inner)
	}
}

func TestSanitizeURL_RemovesEveryBlockedParam(t *testing.T) {
	q := url.Values{}
	for _, p := range TrackingParams() {
		q.Set(p, "x")
	}
	q.Set("id", "42")
	got := SanitizeURL("https://shop.example.com/p?" + q.Encode())

	parsed, _ := url.Parse(got)
	for _, p := range TrackingParams() {
		if parsed.Query().Has(p) {
			t.Errorf("param %q survived sanitization", p)
		}
	}
	if parsed.Query().Get("id") != "42" {
		t.Errorf("non-tracking param removed: %s", got)
	}
}

func TestSanitizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"https://www.amazon.in/dp/B01?tag=x&z=1&a=2",
		"https://www.amazon.in/ap/signin?openid.return_to=" + url.QueryEscape("https://www.amazon.in/dp/B01?tag=a&k=v") + "&pid=p",
		"https://example.com/a#frag",
		"https://example.com/a?b",
		"garbage",
	}
	for _, in := range inputs {
		once := SanitizeURL(in)
		if twice := SanitizeURL(once); twice != once {
			t.Errorf("SanitizeURL not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Boat Airdopes 141!!  ", "boat airdopes 141"},
		{"Samsung   Galaxy\tM14 (5G)", "samsung galaxy m14 5g"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.input); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://WWW.Amazon.in/dp/B01?tag=x#reviews", "https://www.amazon.in/dp/B01"},
		{"  https://example.com/a  ", "https://example.com/a"},
		{"   ", ""},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.input); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInjectMeeshoReferral(t *testing.T) {
	got := InjectMeeshoReferral("https://www.meesho.com/s/p/abc?foo=bar", "384288512", "", "")
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("result does not parse: %v", err)
	}
	q := parsed.Query()
	if q.Get("c") != "384288512:android_app:default" {
		t.Errorf("c = %q", q.Get("c"))
	}
	if q.Get("pid") != "meesho_affiliate_portal" {
		t.Errorf("pid = %q", q.Get("pid"))
	}
	if q.Get("foo") != "bar" {
		t.Errorf("existing param lost: %s", got)
	}
}

func TestInjectMeeshoReferral_Malformed(t *testing.T) {
	for _, in := range []string{"", "::not-a-url", "just text"} {
		if got := InjectMeeshoReferral(in, "1", "", ""); got != in {
			t.Errorf("InjectMeeshoReferral(%q) = %q, want input unchanged", in, got)
		}
	}
}

func TestGetDomain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Standard domain", "https://amazon.in/dp/12345", "amazon.in"},
		{"Subdomain", "https://dl.flipkart.com/dl/item", "flipkart.com"},
		{"Two-part TLD", "https://example.co.uk/product", "example.co.uk"},
		{"Subdomain with two-part TLD", "https://sub.example.co.uk/product", "example.co.uk"},
		{"No www", "https://www.bestbuy.ca", "bestbuy.ca"},
		{"Empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetDomain(tt.input); got != tt.want {
				t.Errorf("GetDomain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscountPercentAndCleanPrice(t *testing.T) {
	if got := DiscountPercent("45% off"); got != 45 {
		t.Errorf("DiscountPercent = %d, want 45", got)
	}
	if got := DiscountPercent("Rs 200 off"); got != 0 {
		t.Errorf("DiscountPercent without percent = %d, want 0", got)
	}
	if got := CleanPrice(" ₹ 1,299 "); got != "1,299" {
		t.Errorf("CleanPrice = %q, want 1,299", got)
	}
}
