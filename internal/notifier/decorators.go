package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/offnbuy-bot/internal/models"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

// Retrying retries a channel's transient failures with a fixed delay.
type Retrying struct {
	next     Channel
	attempts int
	delay    time.Duration
}

func WithRetry(next Channel, attempts int, delay time.Duration) *Retrying {
	return &Retrying{next: next, attempts: attempts, delay: delay}
}

func (r *Retrying) Name() string { return r.next.Name() }

func (r *Retrying) Notify(ctx context.Context, l models.Listing, image []byte) error {
	_, err := util.Retry(ctx, r.attempts, util.FixedBackoff(r.delay), func(ctx context.Context, attempt int) (struct{}, error) {
		if attempt > 0 {
			slog.Info("Retrying notification", "channel", r.next.Name(), "id", l.ID, "attempt", attempt+1)
		}
		return struct{}{}, r.next.Notify(ctx, l, image)
	})
	return err
}

// LedgerStore persists the rate-limit ledger of a channel.
type LedgerStore interface {
	GetLedger(ctx context.Context, name string) (models.Ledger, error)
	RecordPost(ctx context.Context, name string, at time.Time) error
}

// Throttled enforces a minimum gap between posts using a persisted ledger.
// The ledger is read, then written after a successful post; two processes
// sharing a ledger can both pass the check.
type Throttled struct {
	next   Channel
	store  LedgerStore
	ledger string
	minGap time.Duration
	now    func() time.Time
}

func WithThrottle(next Channel, store LedgerStore, ledger string, minGap time.Duration) *Throttled {
	return &Throttled{next: next, store: store, ledger: ledger, minGap: minGap, now: time.Now}
}

func (t *Throttled) Name() string { return t.next.Name() }

// Notify returns ErrThrottled without touching the ledger when the last post
// is more recent than the minimum gap.
func (t *Throttled) Notify(ctx context.Context, l models.Listing, image []byte) error {
	ledger, err := t.store.GetLedger(ctx, t.ledger)
	if err != nil {
		return util.Permanent(fmt.Errorf("read ledger: %w", err))
	}
	now := t.now()
	if !ledger.LastPostAt.IsZero() {
		if since := now.Sub(ledger.LastPostAt); since < t.minGap {
			slog.Info("Skipping throttled channel", "channel", t.Name(), "id", l.ID, "since_last_post", since.Round(time.Second), "min_gap", t.minGap)
			return ErrThrottled
		}
	}

	if err := t.next.Notify(ctx, l, image); err != nil {
		return err
	}
	if err := t.store.RecordPost(ctx, t.ledger, t.now()); err != nil {
		// The post is live; a stale ledger only allows the next post early.
		slog.Error("Failed to update ledger after post", "channel", t.Name(), "ledger", t.ledger, "error", err)
	}
	return nil
}
