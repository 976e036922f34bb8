package processor

import (
	"context"

	"github.com/pauljones0/offnbuy-bot/internal/browser"
	"github.com/pauljones0/offnbuy-bot/internal/dedup"
	"github.com/pauljones0/offnbuy-bot/internal/imagestore"
	"github.com/pauljones0/offnbuy-bot/internal/models"
)

// Source harvests one page of listings. A nil or empty result is valid.
type Source interface {
	Name() string
	Fetch(ctx context.Context, page int) ([]models.Listing, error)
}

// SessionProvider hands out the shared browser session.
type SessionProvider interface {
	Acquire(ctx context.Context) (browser.Session, error)
}

// Converter turns a landing URL into an affiliate link.
type Converter interface {
	Convert(ctx context.Context, rawURL string) (string, error)
}

// ImageTransferer re-hosts a listing image.
type ImageTransferer interface {
	Transfer(ctx context.Context, imageURL, listingID string) (*imagestore.Result, error)
}

// ListingStore commits a batch of listings atomically.
type ListingStore interface {
	CommitListings(ctx context.Context, listings []models.Listing) error
}

// SnapshotStore abstracts the durable dedup cache.
type SnapshotStore interface {
	Load(ctx context.Context) (dedup.Snapshot, error)
	Save(ctx context.Context, snapshot dedup.Snapshot) error
}

// TitleCleaner produces a short caption title. Optional.
type TitleCleaner interface {
	CleanTitle(ctx context.Context, l models.Listing) (string, error)
}

// ListingValidator rejects listings that are malformed or blocked.
type ListingValidator interface {
	CheckListing(l models.Listing) error
}
