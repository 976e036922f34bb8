// Package resolver follows a link's redirect chain in a real browser tab.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pauljones0/offnbuy-bot/internal/browser"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

var errNotNavigable = errors.New("landing URL is not http(s)")

// Resolve navigates to rawURL in a fresh browser context per attempt and
// returns the URL the tab ends up on. It returns "" once maxAttempts attempts
// have failed; that is an expected outcome and callers should skip the
// listing. Every context opened is closed before Resolve returns or retries.
func Resolve(ctx context.Context, session browser.Session, rawURL string, maxAttempts int, backoff util.Backoff) string {
	final, err := util.Retry(ctx, maxAttempts, backoff, func(ctx context.Context, attempt int) (string, error) {
		return resolveOnce(ctx, session, rawURL)
	})
	if err != nil {
		slog.Warn("Link resolution failed", "url", rawURL, "attempts", maxAttempts, "error", err)
		return ""
	}
	return final
}

func resolveOnce(ctx context.Context, session browser.Session, rawURL string) (string, error) {
	tab, err := session.NewContext(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			slog.Warn("Failed to close browser context", "error", cerr)
		}
	}()

	if err := tab.Navigate(ctx, rawURL); err != nil {
		return "", err
	}
	final, err := tab.URL(ctx)
	if err != nil {
		return "", err
	}
	if !util.IsHTTPURL(final) {
		return "", fmt.Errorf("%w: %q", errNotNavigable, final)
	}
	return final, nil
}
