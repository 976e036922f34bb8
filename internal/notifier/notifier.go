// Package notifier announces committed listings on Telegram, a Facebook page,
// a Discord webhook and an FCM topic.
package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/pauljones0/offnbuy-bot/internal/models"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

// ErrThrottled is returned by a throttled channel that skipped a listing
// because its minimum posting gap has not elapsed.
var ErrThrottled = errors.New("channel throttled")

// Channel posts one listing with its image.
type Channel interface {
	Name() string
	Notify(ctx context.Context, listing models.Listing, image []byte) error
}

// Caption is the text used by channels that show a photo with a caption.
func Caption(l models.Listing) string {
	return fmt.Sprintf("%s\nPrice: %s\nStore: %s\n%s", l.CaptionTitle(), l.Price, l.Store, l.RedirectURL)
}

type formFile struct {
	field    string
	filename string
	data     []byte
}

// postMultipart sends fields plus one file and returns the response body.
// 4xx responses other than 429 are marked permanent so retry wrappers give up.
func postMultipart(ctx context.Context, client *http.Client, endpoint string, fields map[string]string, file formFile) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, util.Permanent(err)
		}
	}
	fw, err := mw.CreateFormFile(file.field, file.filename)
	if err != nil {
		return nil, util.Permanent(err)
	}
	if _, err := fw.Write(file.data); err != nil {
		return nil, util.Permanent(err)
	}
	if err := mw.Close(); err != nil {
		return nil, util.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, util.Permanent(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(client, req)
}

// do sends req and classifies the response. Transport errors drop the request
// URL, which carries bot tokens and webhook secrets.
func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, redactURL(req, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	statusErr := fmt.Errorf("status: %s, body: %s", resp.Status, string(body))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, statusErr
	}
	return nil, util.Permanent(statusErr)
}

func redactURL(req *http.Request, err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, uerr.Err)
	}
	return err
}
