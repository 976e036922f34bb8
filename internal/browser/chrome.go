package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeLauncher starts a local Chrome through chromedp.
type ChromeLauncher struct {
	opts Options
}

func NewChromeLauncher(opts Options) *ChromeLauncher {
	return &ChromeLauncher{opts: opts.withDefaults()}
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(l.opts.UserAgent),
	)

	// The browser outlives the launching request, so it hangs off Background.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := start(ctx, browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &chromeSession{
		opts:          l.opts,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

type chromeSession struct {
	opts          Options
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closeOnce     sync.Once
}

func (s *chromeSession) NewContext(ctx context.Context) (Context, error) {
	if err := s.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser is gone: %w", err)
	}
	// Each chromedp context created from the browser context is a new tab.
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)

	headers := make(network.Headers, len(s.opts.Headers))
	for k, v := range s.opts.Headers {
		headers[k] = v
	}
	if err := start(ctx, tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	if err := runWith(ctx, tabCtx, s.opts.NavigationTimeout,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
	); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to set tab headers: %w", err)
	}
	return &chromeTab{opts: s.opts, ctx: tabCtx, cancel: tabCancel}, nil
}

func (s *chromeSession) Disconnected() <-chan struct{} {
	return s.browserCtx.Done()
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		// Cancelling the browser context closes Chrome gracefully.
		s.browserCancel()
		s.allocCancel()
	})
	return nil
}

type chromeTab struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
}

func (t *chromeTab) Navigate(ctx context.Context, url string) error {
	if err := runWith(ctx, t.ctx, t.opts.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return sleepCtx(ctx, t.opts.SettleDelay)
}

func (t *chromeTab) URL(ctx context.Context) (string, error) {
	var loc string
	if err := runWith(ctx, t.ctx, t.opts.NavigationTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

func (t *chromeTab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := runWith(ctx, t.ctx, t.opts.NavigationTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

func (t *chromeTab) Close() error {
	t.cancel()
	return nil
}

// start performs the first Run on a chromedp context, which allocates the
// browser or tab. The allocation is bound to the context given to that first
// Run, so it gets the long-lived chromedp context while the caller's ctx only
// bounds how long we wait.
func start(caller, chromeCtx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(chromeCtx) }()
	select {
	case err := <-errCh:
		return err
	case <-caller.Done():
		return caller.Err()
	}
}

// runWith runs actions on a chromedp context, bounded by timeout and by the
// caller's ctx. chromedp only accepts contexts derived from its own, so the
// caller's cancellation is bridged with AfterFunc.
func runWith(caller, tab context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(tab, timeout)
	defer cancel()
	stop := context.AfterFunc(caller, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}
