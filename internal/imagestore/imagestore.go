// Package imagestore re-hosts listing images in durable object storage.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	pathPrefix   = "deals/images/"
	defaultExt   = ".jpg"
	maxImageSize = 10 << 20
)

// ObjectStore writes bytes and returns a publicly resolvable URL for them.
type ObjectStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Result is a re-hosted image. Bytes are the original image, kept so
// notification channels can upload it without fetching it again.
type Result struct {
	HostedURL   string
	ContentType string
	Bytes       []byte
}

type Transferer struct {
	store  ObjectStore
	client *http.Client
}

func New(store ObjectStore, client *http.Client) *Transferer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Transferer{store: store, client: client}
}

// Transfer fetches imageURL and stores it under a path derived from
// listingID plus a random suffix. Any failure returns an error and the
// caller is expected to drop the listing.
func (t *Transferer) Transfer(ctx context.Context, imageURL, listingID string) (*Result, error) {
	data, contentType, err := t.fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	name := ObjectName(listingID, imageURL)
	hosted, err := t.store.Put(ctx, name, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store image %s: %w", name, err)
	}
	slog.Info("Image re-hosted", "id", listingID, "object", name, "bytes", len(data))
	return &Result{HostedURL: hosted, ContentType: contentType, Bytes: data}, nil
}

func (t *Transferer) fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image URL %q: %w", imageURL, err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image fetch status: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image is empty")
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// ObjectName builds deals/images/{id}_{uuid}{ext}. The random part keeps
// concurrent reprocessing of the same id from writing the same object.
func ObjectName(listingID, imageURL string) string {
	ext := defaultExt
	if u, err := url.Parse(imageURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); e != "" && len(e) <= 5 {
			ext = e
		}
	}
	return pathPrefix + listingID + "_" + uuid.NewString() + ext
}
