package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/offnbuy-bot/internal/dedup"
	"github.com/pauljones0/offnbuy-bot/internal/models"
)

const (
	dealsCollection = "deals"
	metaCollection  = "meta"

	// Firestore caps a single commit at 500 writes.
	maxBatchWrites = 500
)

var ErrBatchTooLarge = errors.New("batch exceeds firestore write limit")

type Client struct {
	client *firestore.Client
}

func New(ctx context.Context, projectID string, opts ...option.ClientOption) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// CommitListings upserts all listings in one transaction: either every
// document is written or none is.
func (c *Client) CommitListings(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	if err := validateBatch(listings); err != nil {
		return err
	}

	deals := c.client.Collection(dealsCollection)
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, l := range listings {
			if err := tx.Set(deals.Doc(l.ID), l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit %d listings: %w", len(listings), err)
	}
	slog.Info("Committed listings", "count", len(listings))
	return nil
}

func validateBatch(listings []models.Listing) error {
	if len(listings) > maxBatchWrites {
		return fmt.Errorf("%w: %d listings", ErrBatchTooLarge, len(listings))
	}
	for i, l := range listings {
		if l.ID == "" {
			return fmt.Errorf("listing %d has no id", i)
		}
	}
	return nil
}

// LoadSnapshot reads every committed listing. Used to seed the local cache.
func (c *Client) LoadSnapshot(ctx context.Context) (dedup.Snapshot, error) {
	iter := c.client.Collection(dealsCollection).Documents(ctx)
	defer iter.Stop()

	snapshot := make(dedup.Snapshot)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate deals: %w", err)
		}
		var l models.Listing
		if err := doc.DataTo(&l); err != nil {
			slog.Warn("Skipping undecodable deal document", "id", doc.Ref.ID, "error", err)
			continue
		}
		if l.ID == "" {
			l.ID = doc.Ref.ID
		}
		snapshot[l.ID] = l
	}
	return snapshot, nil
}

// CountListings returns the number of documents in the deals collection.
func (c *Client) CountListings(ctx context.Context) (int64, error) {
	result, err := c.client.Collection(dealsCollection).NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count deals: %w", err)
	}
	v, ok := result["all"]
	if !ok {
		return 0, fmt.Errorf("count aggregation result was invalid: 'all' key missing")
	}
	return countValue(v)
}

func countValue(v interface{}) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case *firestorepb.Value:
		return val.GetIntegerValue(), nil
	default:
		return 0, fmt.Errorf("count aggregation result has unexpected type %T", v)
	}
}

// GetLedger reads the rate-limit ledger of a channel. A missing document is
// a zero ledger, meaning the channel has never posted.
func (c *Client) GetLedger(ctx context.Context, name string) (models.Ledger, error) {
	doc, err := c.client.Collection(metaCollection).Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.Ledger{}, nil
		}
		return models.Ledger{}, fmt.Errorf("failed to get ledger %s: %w", name, err)
	}
	return ledgerFromData(name, doc.Data()), nil
}

// ledgerFromData accepts lastPostAt as a timestamp or as the ISO-8601 string
// older writers stored. An unreadable value counts as never posted; the next
// RecordPost overwrites it with a timestamp.
func ledgerFromData(name string, data map[string]interface{}) models.Ledger {
	var ledger models.Ledger
	switch v := data["lastPostAt"].(type) {
	case time.Time:
		ledger.LastPostAt = v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			slog.Warn("Ignoring unreadable ledger timestamp", "ledger", name, "value", v, "error", err)
		}
		ledger.LastPostAt = t
	case nil:
	default:
		slog.Warn("Ignoring unexpected ledger timestamp type", "ledger", name, "type", fmt.Sprintf("%T", v))
	}
	switch v := data["count"].(type) {
	case int64:
		ledger.Count = v
	case float64:
		ledger.Count = int64(v)
	}
	return ledger
}

// RecordPost stamps the ledger with the post time and bumps its counter.
func (c *Client) RecordPost(ctx context.Context, name string, at time.Time) error {
	_, err := c.client.Collection(metaCollection).Doc(name).Set(ctx, map[string]interface{}{
		"lastPostAt": at,
		"count":      firestore.Increment(1),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update ledger %s: %w", name, err)
	}
	return nil
}
