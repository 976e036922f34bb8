package notifier

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/offnbuy-bot/internal/models"
)

// Result is the outcome of one channel delivery.
type Result struct {
	Channel string
	Err     error
}

// FanOut delivers a listing to every channel concurrently and waits for all
// of them. A failing channel does not cancel or block the others.
func FanOut(ctx context.Context, channels []Channel, l models.Listing, image []byte) []Result {
	results := make([]Result, len(channels))
	var g errgroup.Group
	for i, ch := range channels {
		g.Go(func() error {
			results[i] = Result{Channel: ch.Name(), Err: ch.Notify(ctx, l, image)}
			return nil
		})
	}
	g.Wait()
	return results
}
