package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher starts Chromium through the Playwright driver.
type PlaywrightLauncher struct {
	opts Options
}

func NewPlaywrightLauncher(opts Options) *PlaywrightLauncher {
	return &PlaywrightLauncher{opts: opts.withDefaults()}
}

func (l *PlaywrightLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args:     []string{"--no-sandbox", "--disable-setuid-sandbox", "--disable-dev-shm-usage"},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	s := &playwrightSession{
		opts:         l.opts,
		pw:           pw,
		browser:      b,
		disconnected: make(chan struct{}),
	}
	b.OnDisconnected(func(playwright.Browser) {
		s.markDisconnected()
	})
	return s, nil
}

type playwrightSession struct {
	opts         Options
	pw           *playwright.Playwright
	browser      playwright.Browser
	disconnected chan struct{}
	discOnce     sync.Once
	closeOnce    sync.Once
}

func (s *playwrightSession) markDisconnected() {
	s.discOnce.Do(func() { close(s.disconnected) })
}

func (s *playwrightSession) NewContext(ctx context.Context) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bctx, err := s.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(s.opts.UserAgent),
		ExtraHttpHeaders: s.opts.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &playwrightTab{opts: s.opts, bctx: bctx, page: page}, nil
}

func (s *playwrightSession) Disconnected() <-chan struct{} {
	return s.disconnected
}

func (s *playwrightSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := s.browser.Close(); cerr != nil {
			err = fmt.Errorf("failed to close chromium: %w", cerr)
		}
		if serr := s.pw.Stop(); serr != nil && err == nil {
			err = fmt.Errorf("failed to stop playwright driver: %w", serr)
		}
		s.markDisconnected()
	})
	return err
}

type playwrightTab struct {
	opts Options
	bctx playwright.BrowserContext
	page playwright.Page
}

func (t *playwrightTab) Navigate(ctx context.Context, url string) error {
	timeout := t.opts.NavigationTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	_, err := t.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return sleepCtx(ctx, t.opts.SettleDelay)
}

func (t *playwrightTab) URL(ctx context.Context) (string, error) {
	return t.page.URL(), nil
}

func (t *playwrightTab) HTML(ctx context.Context) (string, error) {
	html, err := t.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

func (t *playwrightTab) Close() error {
	// Closing the context closes its page too.
	if err := t.bctx.Close(); err != nil {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}
