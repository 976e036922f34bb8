package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/offnbuy-bot/internal/browser"
	"github.com/pauljones0/offnbuy-bot/internal/config"
	"github.com/pauljones0/offnbuy-bot/internal/dedup"
	"github.com/pauljones0/offnbuy-bot/internal/metrics"
	"github.com/pauljones0/offnbuy-bot/internal/models"
	"github.com/pauljones0/offnbuy-bot/internal/notifier"
	"github.com/pauljones0/offnbuy-bot/internal/resolver"
	"github.com/pauljones0/offnbuy-bot/internal/runguard"
	"github.com/pauljones0/offnbuy-bot/internal/util"
	"github.com/pauljones0/offnbuy-bot/internal/validator"
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrUnknownSource = errors.New("unknown source")
)

// Drop stages, used in logs and metrics.
const (
	stageIdentify         = "identify"
	stageResolve          = "resolve"
	stageAffiliateLanding = "affiliate_resolve"
	stageImage            = "image"
)

type Processor interface {
	ProcessBatch(ctx context.Context, source string, page int) (models.RunSummary, error)
}

// Deps are the collaborators of a DealProcessor. Converter, Titles,
// Validator and Metrics may be nil.
type Deps struct {
	Sources   []Source
	Sessions  SessionProvider
	Converter Converter
	Images    ImageTransferer
	Store     ListingStore
	Cache     SnapshotStore
	Channels  []notifier.Channel
	Titles    TitleCleaner
	Validator ListingValidator
	Metrics   *metrics.Metrics
}

type DealProcessor struct {
	sources   map[string]Source
	sessions  SessionProvider
	converter Converter
	images    ImageTransferer
	store     ListingStore
	cache     SnapshotStore
	channels  []notifier.Channel
	titles    TitleCleaner
	validator ListingValidator
	metrics   *metrics.Metrics

	config *config.Config
	guard  runguard.Guard
}

func New(deps Deps, cfg *config.Config) *DealProcessor {
	p := &DealProcessor{
		sources:   make(map[string]Source, len(deps.Sources)),
		sessions:  deps.Sessions,
		converter: deps.Converter,
		images:    deps.Images,
		store:     deps.Store,
		cache:     deps.Cache,
		channels:  deps.Channels,
		titles:    deps.Titles,
		validator: deps.Validator,
		metrics:   deps.Metrics,
		config:    cfg,
	}
	for _, s := range deps.Sources {
		p.sources[strings.ToLower(s.Name())] = s
	}
	if p.validator == nil {
		p.validator = validator.New(cfg.BlockedStores, cfg.BlockedTitleTerms)
	}
	return p
}

// ProcessBatch harvests one page from the named source and pushes it through
// the pipeline. Only one batch runs at a time; a concurrent call returns a
// skipped summary together with ErrRunInProgress.
//
// The run is detached from ctx cancellation and bounded by RunTimeout
// instead, so a dropped HTTP request does not abort a half-finished batch.
func (p *DealProcessor) ProcessBatch(ctx context.Context, sourceName string, page int) (models.RunSummary, error) {
	src, ok := p.sources[strings.ToLower(sourceName)]
	if !ok {
		return models.RunSummary{}, fmt.Errorf("%w: %q", ErrUnknownSource, sourceName)
	}
	if page < 1 {
		page = 1
	}

	runCtx := context.WithoutCancel(ctx)
	if p.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, p.config.RunTimeout)
		defer cancel()
	}

	summary := models.RunSummary{Source: src.Name(), Status: models.RunStatusSkipped}
	start := time.Now()
	ran, err := p.guard.Run(runCtx, func(ctx context.Context) error {
		var runErr error
		summary, runErr = p.run(ctx, src, page)
		return runErr
	})
	if !ran {
		slog.Warn("Run already in progress, skipping", "source", src.Name(), "page", page)
		p.metrics.ObserveRun(src.Name(), models.RunStatusSkipped, 0)
		return summary, ErrRunInProgress
	}
	if err != nil {
		p.metrics.ObserveRun(src.Name(), "failed", time.Since(start))
		return summary, err
	}

	p.metrics.ObserveRun(src.Name(), models.RunStatusCompleted, time.Since(start))
	p.metrics.AddListings(src.Name(), "stored", summary.Stored)
	p.metrics.AddListings(src.Name(), "updated", summary.Updated)
	p.metrics.AddListings(src.Name(), "skipped", summary.Skipped)
	p.metrics.AddListings(src.Name(), "dropped", summary.Dropped)
	slog.Info("Finished processing",
		"source", src.Name(), "page", page,
		"scraped", summary.Scraped, "stored", summary.Stored, "updated", summary.Updated,
		"skipped", summary.Skipped, "dropped", summary.Dropped,
		"duration", time.Since(start))
	return summary, nil
}

// processed is a listing that made it through every stage.
type processed struct {
	listing models.Listing
	image   []byte
	stale   bool
}

func (p *DealProcessor) run(ctx context.Context, src Source, page int) (models.RunSummary, error) {
	summary := models.RunSummary{Source: src.Name(), Status: models.RunStatusCompleted}

	listings, err := src.Fetch(ctx, page)
	if err != nil {
		slog.Warn("Source fetch failed, treating as empty", "source", src.Name(), "page", page, "error", err)
		listings = nil
	}
	summary.Scraped = len(listings)
	if len(listings) == 0 {
		slog.Info("No listings harvested", "source", src.Name(), "page", page)
		return summary, nil
	}
	slog.Info("Successfully harvested listings", "source", src.Name(), "page", page, "count", len(listings))

	snapshot, err := p.cache.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load listing cache: %w", err)
	}

	identified := p.identify(src.Name(), listings, &summary)
	classified := dedup.Classify(identified, snapshot, p.config.StaleWindow)
	summary.Skipped += len(classified.Current)

	work := make([]processed, 0, len(classified.New)+len(classified.Stale))
	for _, l := range classified.New {
		work = append(work, processed{listing: l})
	}
	for _, l := range classified.Stale {
		work = append(work, processed{listing: l, stale: true})
	}
	slog.Info("Classified listings", "source", src.Name(),
		"new", len(classified.New), "stale", len(classified.Stale), "current", len(classified.Current))
	if len(work) == 0 {
		return summary, nil
	}

	session, err := p.sessions.Acquire(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to acquire browser session: %w", err)
	}
	p.metrics.IncBrowserAcquire()

	ok := make([]bool, len(work))
	var g errgroup.Group
	g.SetLimit(max(p.config.PoolSize, 1))
	for i := range work {
		g.Go(func() error {
			l, image, stage := p.processListing(ctx, session, work[i].listing)
			if stage != "" {
				slog.Info("Dropped listing", "id", work[i].listing.ID, "title", work[i].listing.Title, "stage", stage)
				p.metrics.IncDrop(stage)
				return nil
			}
			work[i].listing = l
			work[i].image = image
			ok[i] = true
			return nil
		})
	}
	g.Wait()

	var committed []processed
	for i, w := range work {
		if !ok[i] {
			summary.Dropped++
			continue
		}
		committed = append(committed, w)
	}
	if len(committed) == 0 {
		return summary, nil
	}

	if err := p.commit(ctx, snapshot, committed); err != nil {
		return summary, err
	}
	for _, c := range committed {
		if c.stale {
			summary.Updated++
		} else {
			summary.Stored++
		}
	}

	p.notify(ctx, committed)
	return summary, nil
}

// identify fills defaults, applies validation and blocklists, computes ids
// and removes in-batch duplicates (the first occurrence wins).
func (p *DealProcessor) identify(source string, listings []models.Listing, summary *models.RunSummary) []models.Listing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Source == "" {
			l.Source = source
		}
		if l.PostedAt.IsZero() {
			l.PostedAt = time.Now().UTC()
		}

		if err := p.validator.CheckListing(l); err != nil {
			if errors.Is(err, validator.ErrBlocked) {
				slog.Info("Skipping blocked listing", "title", l.Title, "store", l.Store, "reason", err)
				summary.Skipped++
				continue
			}
			slog.Info("Dropping invalid listing", "title", l.Title, "error", err)
			p.metrics.IncDrop(stageIdentify)
			summary.Dropped++
			continue
		}

		l.ID = dedup.ComputeID(l.Title, l.Store, l.RedirectURL, p.config.FingerprintIncludeURL)
		if l.ID == "" {
			slog.Info("Dropping unidentifiable listing", "title", l.Title, "store", l.Store)
			p.metrics.IncDrop(stageIdentify)
			summary.Dropped++
			continue
		}
		if _, dup := seen[l.ID]; dup {
			summary.Skipped++
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out
}

// processListing runs resolve, convert, image transfer and enrichment in
// order. A non-empty stage means the listing was dropped there.
func (p *DealProcessor) processListing(ctx context.Context, session browser.Session, l models.Listing) (models.Listing, []byte, string) {
	backoff := util.FixedBackoff(p.config.ResolveBackoff)

	resolved := resolver.Resolve(ctx, session, l.RedirectURL, p.config.ResolveAttempts, backoff)
	if resolved == "" {
		return l, nil, stageResolve
	}
	resolved = p.referral(l, resolved)
	l.RedirectURL = resolved

	if converted, err := p.convert(ctx, resolved); err == nil {
		landing := resolver.Resolve(ctx, session, converted, p.config.ResolveAttempts, backoff)
		if landing == "" {
			return l, nil, stageAffiliateLanding
		}
		l.RedirectURL = converted
		l.FinalURL = landing
	} else {
		slog.Info("Affiliate conversion unavailable, using sanitized link", "id", l.ID, "error", err)
		clean := p.referral(l, util.SanitizeURL(resolved))
		l.RedirectURL = clean
		l.FinalURL = clean
	}

	res, err := p.images.Transfer(ctx, l.RawImageURL, l.ID)
	if err != nil {
		slog.Warn("Image transfer failed", "id", l.ID, "image", l.RawImageURL, "error", err)
		return l, nil, stageImage
	}
	l.ImageURL = res.HostedURL

	if p.titles != nil {
		title, err := p.titles.CleanTitle(ctx, l)
		if err != nil {
			slog.Warn("Title enrichment failed, using raw title", "id", l.ID, "error", err)
		} else {
			l.CleanTitle = title
		}
	}
	return l, res.Bytes, ""
}

// referral applies the Meesho invite attribution. Sanitizing strips some of
// its parameters, so it runs again after SanitizeURL.
func (p *DealProcessor) referral(l models.Listing, link string) string {
	if p.config.MeeshoInviteCode == "" || !util.IsStore(l.Store, util.MeeshoStore) {
		return link
	}
	return util.InjectMeeshoReferral(link, p.config.MeeshoInviteCode, "", "")
}

var errNoConverter = errors.New("no affiliate converter configured")

func (p *DealProcessor) convert(ctx context.Context, rawURL string) (string, error) {
	if p.converter == nil {
		return "", errNoConverter
	}
	return p.converter.Convert(ctx, rawURL)
}

// commit writes the batch and then the cache. The cache is only touched
// once the store accepted the batch.
func (p *DealProcessor) commit(ctx context.Context, snapshot dedup.Snapshot, batch []processed) error {
	listings := make([]models.Listing, len(batch))
	for i, b := range batch {
		listings[i] = b.listing
	}
	if err := p.store.CommitListings(ctx, listings); err != nil {
		return fmt.Errorf("failed to commit listings: %w", err)
	}

	next := snapshot.Clone()
	for _, l := range listings {
		next[l.ID] = l
	}
	if err := p.cache.Save(ctx, next); err != nil {
		return fmt.Errorf("listings committed but cache save failed: %w", err)
	}
	slog.Info("Committed listings", "count", len(listings))
	return nil
}

func (p *DealProcessor) notify(ctx context.Context, batch []processed) {
	if len(p.channels) == 0 {
		return
	}
	for _, b := range batch {
		for _, r := range notifier.FanOut(ctx, p.channels, b.listing, b.image) {
			switch {
			case r.Err == nil:
				p.metrics.IncNotification(r.Channel, "sent")
			case errors.Is(r.Err, notifier.ErrThrottled):
				slog.Info("Channel throttled, not posting", "channel", r.Channel, "id", b.listing.ID)
				p.metrics.IncNotification(r.Channel, "throttled")
			default:
				slog.Warn("Notification failed", "channel", r.Channel, "id", b.listing.ID, "error", r.Err)
				p.metrics.IncNotification(r.Channel, "failed")
			}
		}
	}
}
