package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/pauljones0/offnbuy-bot/internal/affiliate"
	"github.com/pauljones0/offnbuy-bot/internal/ai"
	"github.com/pauljones0/offnbuy-bot/internal/browser"
	"github.com/pauljones0/offnbuy-bot/internal/cache"
	"github.com/pauljones0/offnbuy-bot/internal/config"
	"github.com/pauljones0/offnbuy-bot/internal/imagestore"
	"github.com/pauljones0/offnbuy-bot/internal/metrics"
	"github.com/pauljones0/offnbuy-bot/internal/notifier"
	"github.com/pauljones0/offnbuy-bot/internal/processor"
	"github.com/pauljones0/offnbuy-bot/internal/scraper"
	"github.com/pauljones0/offnbuy-bot/internal/storage"
	"github.com/pauljones0/offnbuy-bot/internal/validator"
)

func main() {
	slog.Info("Starting OffNBuy deals bot server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Critical error initializing Firestore client", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	objects, err := storage.NewObjectStore(ctx, cfg.StorageBucket)
	if err != nil {
		slog.Error("Critical error initializing Cloud Storage client", "error", err)
		os.Exit(1)
	}
	defer objects.Close()

	browsers := browser.NewManager(newLauncher(cfg))
	m := metrics.New()

	titles, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Warn("Gemini unavailable, captions will use raw titles", "error", err)
	}

	channels, pruner, err := newChannels(ctx, cfg, store)
	if err != nil {
		slog.Error("Critical error initializing notification channels", "error", err)
		os.Exit(1)
	}
	selectors := scraper.LoadConfig(cfg.SelectorsPath)
	deps := processor.Deps{
		Sources: []processor.Source{
			scraper.NewDealsMagnet(browsers, selectors),
			scraper.NewDesiDime(browsers, selectors),
		},
		Sessions: browsers,
		Converter: affiliate.New(affiliate.Config{
			Endpoint:    cfg.ConverterURL,
			APIKey:      cfg.EarnKaroAPIKey,
			Timeout:     cfg.ConvertTimeout,
			MaxAttempts: cfg.ConvertAttempts,
			Delay:       cfg.ConvertDelay,
		}),
		Images:    imagestore.New(objects, nil),
		Store:     store,
		Cache:     cache.NewFileStore(cfg.CachePath, store),
		Channels:  channels,
		Validator: validator.New(cfg.BlockedStores, cfg.BlockedTitleTerms),
		Metrics:   m,
	}
	if titles != nil {
		deps.Titles = titles
	}
	p := processor.New(deps, cfg)

	var scheduler *cron.Cron
	if cfg.RunInterval > 0 {
		scheduler = cron.New()
		spec := fmt.Sprintf("@every %s", cfg.RunInterval)
		if _, err := scheduler.AddFunc(spec, func() { runScheduled(p) }); err != nil {
			slog.Error("Invalid run schedule", "spec", spec, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		slog.Info("Internal schedule enabled", "interval", cfg.RunInterval)
	}

	srv := &Server{
		processor: p,
		pruner:    pruner,
		counter:   store,
		metrics:   promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
	}
	httpServer := &http.Server{
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RunTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		slog.Error("Failed to listen", "port", cfg.Port, "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT. A run in flight is bounded by
	// RunTimeout, so that is how long requests get to drain.
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	grace := cfg.RunTimeout + 10*time.Second

	cronStopped := make(chan context.Context, 1)
	if scheduler != nil {
		go func() {
			<-sigCtx.Done()
			cronStopped <- scheduler.Stop()
		}()
	}

	slog.Info("Listening on port", "port", cfg.Port)
	serveErr := serve(sigCtx, httpServer, ln, grace)
	if serveErr != nil {
		slog.Error("HTTP server error", "error", serveErr)
	}
	slog.Info("Shutting down gracefully...")

	if scheduler != nil && sigCtx.Err() != nil {
		jobs := <-cronStopped
		select {
		case <-jobs.Done():
		case <-time.After(grace):
			slog.Warn("Scheduled run still in flight at shutdown")
		}
	}
	if err := browsers.Shutdown(); err != nil {
		slog.Warn("Browser shutdown error", "error", err)
	}
	slog.Info("Server stopped.")
	if serveErr != nil {
		os.Exit(1)
	}
}

func newLauncher(cfg *config.Config) browser.Launcher {
	opts := browser.DefaultOptions()
	opts.NavigationTimeout = cfg.NavigationTimeout
	opts.SettleDelay = cfg.SettleDelay

	if cfg.BrowserEngine == config.BrowserEnginePlaywright {
		return browser.NewPlaywrightLauncher(opts)
	}
	return browser.NewChromeLauncher(opts)
}

// newChannels builds the configured channels, each wrapped in retries. The
// Facebook page is additionally throttled by its ledger and is the only
// channel that supports pruning.
func newChannels(ctx context.Context, cfg *config.Config, ledgers notifier.LedgerStore) ([]notifier.Channel, Pruner, error) {
	var channels []notifier.Channel
	var pruner Pruner

	if cfg.TelegramBotToken != "" {
		tg := notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChannelID)
		channels = append(channels, notifier.WithRetry(tg, cfg.NotifyAttempts, cfg.NotifyDelay))
	}
	if cfg.FacebookPageID != "" {
		fb := notifier.NewFacebook(cfg.FacebookPageID, cfg.FacebookPageAccessToken)
		retrying := notifier.WithRetry(fb, cfg.NotifyAttempts, cfg.NotifyDelay)
		channels = append(channels, notifier.WithThrottle(retrying, ledgers, notifier.FacebookLedger, cfg.FacebookMinPostGap))
		pruner = fb
	}
	if cfg.DiscordWebhookURL != "" {
		dc := notifier.NewDiscord(cfg.DiscordWebhookURL)
		channels = append(channels, notifier.WithRetry(dc, cfg.NotifyAttempts, cfg.NotifyDelay))
	}
	if cfg.PushTopic != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{
			ProjectID:   cfg.ProjectID,
			DatabaseURL: cfg.FirebaseDatabaseURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("firebase.NewApp: %w", err)
		}
		push, err := notifier.NewPush(ctx, app, cfg.PushTopic, cfg.FirebaseDatabaseURL != "")
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, notifier.WithRetry(push, cfg.NotifyAttempts, cfg.NotifyDelay))
	}
	return channels, pruner, nil
}

func runScheduled(p processor.Processor) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in scheduled run", "panic", r)
		}
	}()
	for _, source := range []string{scraper.DealsMagnetName, scraper.DesiDimeName} {
		summary, err := p.ProcessBatch(context.Background(), source, 1)
		switch {
		case errors.Is(err, processor.ErrRunInProgress):
			// already logged by the processor
		case err != nil:
			slog.Error("Scheduled run failed", "source", source, "error", err)
		default:
			slog.Info("Scheduled run finished", "source", source, "stored", summary.Stored, "updated", summary.Updated, "skipped", summary.Skipped)
		}
	}
}
