package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/offnbuy-bot/internal/browser"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

// SessionProvider hands out the shared browser session.
type SessionProvider interface {
	Acquire(ctx context.Context) (browser.Session, error)
}

// fetchPage renders pageURL and returns the document once it holds at least
// one card. A page without cards is a block or a half-rendered page and is
// retried like a navigation error.
func fetchPage(ctx context.Context, sessions SessionProvider, pageURL, card string, attempts int, backoff util.Backoff) (*goquery.Document, error) {
	session, err := sessions.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire browser for %s: %w", pageURL, err)
	}

	return util.Retry(ctx, attempts, backoff, func(ctx context.Context, attempt int) (*goquery.Document, error) {
		html, err := render(ctx, session, pageURL)
		if err != nil {
			slog.Warn("Scraping attempt failed", "attempt", attempt+1, "url", pageURL, "error", err)
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, util.Permanent(fmt.Errorf("failed to parse %s: %w", pageURL, err))
		}
		if doc.Find(card).Length() == 0 {
			return nil, fmt.Errorf("no '%s' elements found on %s. Potential block or page structure change", card, pageURL)
		}
		return doc, nil
	})
}

func render(ctx context.Context, session browser.Session, pageURL string) (string, error) {
	tab, err := session.NewContext(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			slog.Warn("Failed to close browser context", "error", cerr)
		}
	}()

	if err := tab.Navigate(ctx, pageURL); err != nil {
		return "", err
	}
	return tab.HTML(ctx)
}

// absolutize resolves site-relative links against base.
func absolutize(base, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		return base + href
	default:
		return base + "/" + href
	}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
