package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/offnbuy-bot/internal/models"
)

const (
	graphAPIBase = "https://graph.facebook.com/v18.0"

	// FacebookLedger is the ledger document guarding the page's post rate.
	FacebookLedger = "fb_post_status"
)

// Facebook posts photos to a page and can prune old page posts.
type Facebook struct {
	baseURL     string
	pageID      string
	token       string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func NewFacebook(pageID, token string) *Facebook {
	return &Facebook{
		baseURL:     graphAPIBase,
		pageID:      pageID,
		token:       token,
		client:      &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (f *Facebook) Name() string { return "facebook" }

type graphPhotoResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type graphPostsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func facebookCaption(l models.Listing) string {
	return fmt.Sprintf("%s\n%s\n%s", l.RedirectURL, l.Price, l.CaptionTitle())
}

func (f *Facebook) Notify(ctx context.Context, l models.Listing, image []byte) error {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/%s/photos", f.baseURL, f.pageID)
	body, err := postMultipart(ctx, f.client, endpoint, map[string]string{
		"access_token": f.token,
		"caption":      facebookCaption(l),
	}, formFile{field: "source", filename: l.ID + ".jpg", data: image})
	if err != nil {
		return fmt.Errorf("facebook photo post: %w", err)
	}

	var resp graphPhotoResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		id := resp.PostID
		if id == "" {
			id = resp.ID
		}
		slog.Info("Facebook post published", "id", l.ID, "post_id", id)
	}
	return nil
}

// ListPostIDs returns up to limit page post ids, newest first.
func (f *Facebook) ListPostIDs(ctx context.Context, limit int) ([]string, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/%s/posts?%s", f.baseURL, f.pageID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	f.authorize(req)
	body, err := do(f.client, req)
	if err != nil {
		return nil, fmt.Errorf("facebook list posts: %w", err)
	}

	var resp graphPostsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("facebook list posts: decode response: %w", err)
	}
	ids := make([]string, 0, len(resp.Data))
	for _, p := range resp.Data {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (f *Facebook) DeletePost(ctx context.Context, postID string) error {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/%s", f.baseURL, url.PathEscape(postID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	f.authorize(req)
	if _, err := do(f.client, req); err != nil {
		return fmt.Errorf("facebook delete post %s: %w", postID, err)
	}
	return nil
}

// authorize keeps the page token out of URLs, which end up in logs.
func (f *Facebook) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+f.token)
}

// Prune deletes every page post beyond the newest keep. A failed delete is
// logged and does not stop the rest.
func (f *Facebook) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	ids, err := f.ListPostIDs(ctx, 100)
	if err != nil {
		return 0, err
	}
	if len(ids) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, id := range ids[keep:] {
		if err := f.DeletePost(ctx, id); err != nil {
			slog.Warn("Failed to delete Facebook post", "post_id", id, "error", err)
			continue
		}
		deleted++
	}
	slog.Info("Pruned Facebook posts", "deleted", deleted, "kept", keep)
	return deleted, nil
}
