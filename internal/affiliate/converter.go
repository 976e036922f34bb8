// Package affiliate rewrites resolved product links into monetized affiliate
// links through the EarnKaro conversion API.
package affiliate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pauljones0/offnbuy-bot/internal/util"
)

const DefaultEndpoint = "https://ekaro-api.affiliaters.in/api/converter/public"

var (
	// ErrInvalidResponse means the API answered but not with a usable link.
	ErrInvalidResponse = errors.New("invalid conversion response")
	// ErrNoAPIKey means conversion is not configured.
	ErrNoAPIKey = errors.New("conversion API key is not set")
)

type Config struct {
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	Delay       time.Duration
}

type Client struct {
	endpoint    string
	apiKey      string
	client      *http.Client
	maxAttempts int
	delay       time.Duration
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		delay:       cfg.Delay,
	}
}

type convertRequest struct {
	Deal          string `json:"deal"`
	ConvertOption string `json:"convert_option"`
}

type convertResponse struct {
	Success json.RawMessage `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// Convert returns the affiliate link for rawURL. 5xx, 429 and transport
// errors are retried with a fixed delay; any other failure is returned
// immediately. Callers fall back to util.SanitizeURL on error.
func (c *Client) Convert(ctx context.Context, rawURL string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	body, err := json.Marshal(convertRequest{Deal: rawURL, ConvertOption: "convert_only"})
	if err != nil {
		return "", err
	}

	converted, err := util.Retry(ctx, c.maxAttempts, util.FixedBackoff(c.delay), func(ctx context.Context, attempt int) (string, error) {
		out, err := c.post(ctx, body)
		if err != nil && !util.IsPermanent(err) {
			slog.Warn("Conversion attempt failed", "attempt", attempt+1, "max", c.maxAttempts, "error", err)
		}
		return out, err
	})
	if err != nil {
		return "", fmt.Errorf("affiliate conversion failed: %w", err)
	}
	return converted, nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", util.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("converter status: %s", resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", util.Permanent(fmt.Errorf("converter status: %s, body: %s", resp.Status, string(respBody)))
	}

	return parseResponse(respBody)
}

func parseResponse(body []byte) (string, error) {
	var r convertResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return "", util.Permanent(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
	}
	if !truthy(r.Success) {
		return "", util.Permanent(fmt.Errorf("%w: success=%s", ErrInvalidResponse, string(r.Success)))
	}
	var link string
	if err := json.Unmarshal(r.Data, &link); err != nil || !util.IsHTTPURL(link) {
		return "", util.Permanent(fmt.Errorf("%w: data is not a URL", ErrInvalidResponse))
	}
	return link, nil
}

// truthy accepts the API's numeric 1 as well as a JSON true.
func truthy(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "1", "true":
		return true
	}
	return false
}
