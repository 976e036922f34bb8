package storage

import (
	"context"
	"fmt"
	"net/url"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// ObjectStore writes images to a Firebase Storage bucket.
type ObjectStore struct {
	client *gcs.Client
	bucket string
}

func NewObjectStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*ObjectStore, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &ObjectStore{client: client, bucket: bucket}, nil
}

func (s *ObjectStore) Close() error {
	return s.client.Close()
}

// Put uploads data and returns its Firebase download URL. The download
// token metadata is what makes that URL resolvable.
func (s *ObjectStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": uuid.NewString(),
	}
	if _, err := w.Write(data); err != nil {
		cancel()
		w.Close()
		return "", fmt.Errorf("failed to write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", name, err)
	}
	return PublicURL(s.bucket, name), nil
}

func PublicURL(bucket, name string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media", bucket, url.PathEscape(name))
}
