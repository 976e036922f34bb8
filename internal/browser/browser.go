// Package browser owns the headless browser used to resolve links and render
// source pages. One session is shared by the whole process; callers open a
// fresh Context per task and must close it.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Acquire after Shutdown.
var ErrClosed = errors.New("browser manager is shut down")

// Context is one isolated browsing context (a tab with its own state).
type Context interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// URL returns the current location, i.e. the end of the redirect chain.
	URL(ctx context.Context) (string, error)
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Session is a running browser process.
type Session interface {
	NewContext(ctx context.Context) (Context, error)
	// Disconnected is closed when the browser process goes away.
	Disconnected() <-chan struct{}
	Close() error
}

// Launcher starts a browser process.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Options configure both launchers.
type Options struct {
	UserAgent         string
	Headers           map[string]string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	Headless          bool
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultOptions mirrors a desktop Chrome: 30s navigations, 1s settle delay.
func DefaultOptions() Options {
	return Options{
		UserAgent: defaultUserAgent,
		Headers: map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
		},
		NavigationTimeout: 30 * time.Second,
		SettleDelay:       time.Second,
		Headless:          true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.Headers == nil {
		o.Headers = d.Headers
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	return o
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
