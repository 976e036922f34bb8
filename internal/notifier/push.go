package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"

	"github.com/pauljones0/offnbuy-bot/internal/models"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

// PushEntry is written to Notifications/{deal_id} after a push is sent, so the
// app can list what was announced.
type PushEntry struct {
	DealID    string `json:"deal_id"`
	Timestamp string `json:"timestamp"`
}

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type pushLog interface {
	Record(ctx context.Context, entry PushEntry) error
}

// Push sends an FCM notification to a topic for every listing.
type Push struct {
	messages messageSender
	log      pushLog
	topic    string
	now      func() time.Time
}

// NewPush builds the channel from a Firebase app. The Realtime Database log is
// only kept when the app was configured with a database URL.
func NewPush(ctx context.Context, app *firebase.App, topic string, withLog bool) (*Push, error) {
	messages, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging client: %w", err)
	}
	p := &Push{messages: messages, topic: topic, now: time.Now}
	if withLog {
		database, err := app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase database client: %w", err)
		}
		p.log = &databaseLog{client: database}
	}
	return p, nil
}

func (p *Push) Name() string { return "push" }

func (p *Push) message(l models.Listing) *messaging.Message {
	return &messaging.Message{
		Topic: p.topic,
		Notification: &messaging.Notification{
			Title:    l.CaptionTitle(),
			Body:     fmt.Sprintf("%s at %s", l.Price, l.Store),
			ImageURL: l.ImageURL,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		},
		Data: map[string]string{
			"deal_id": l.ID,
			"url":     l.RedirectURL,
			"store":   l.Store,
		},
	}
}

// Notify sends the push. The image is referenced by its hosted URL, so the
// bytes are unused. A failed log write is only logged: the push is out and
// retrying it would notify twice.
func (p *Push) Notify(ctx context.Context, l models.Listing, _ []byte) error {
	id, err := p.messages.Send(ctx, p.message(l))
	if err != nil {
		if errorutils.IsInvalidArgument(err) {
			return util.Permanent(fmt.Errorf("fcm send: %w", err))
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	slog.Info("Push notification sent", "id", l.ID, "message_id", id)

	if p.log == nil {
		return nil
	}
	entry := PushEntry{DealID: l.ID, Timestamp: p.now().UTC().Format(time.RFC3339)}
	if err := p.log.Record(ctx, entry); err != nil {
		slog.Warn("Failed to record push notification", "id", l.ID, "error", err)
	}
	return nil
}

type databaseLog struct {
	client *db.Client
}

func (d *databaseLog) Record(ctx context.Context, entry PushEntry) error {
	return d.client.NewRef("Notifications/"+entry.DealID).Set(ctx, entry)
}
