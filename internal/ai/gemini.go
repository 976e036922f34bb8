package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pauljones0/offnbuy-bot/internal/models"
)

// generator is the part of genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	models  generator
	modelID string
}

type titleResult struct {
	CleanTitle string `json:"clean_title"`
}

// NewClient returns nil when no API key is configured; a nil *Client is a
// valid no-op enricher.
func NewClient(ctx context.Context, apiKey, modelID string) (*Client, error) {
	if apiKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{models: client.Models, modelID: modelID}, nil
}

var titleConfig = &genai.GenerateContentConfig{
	Temperature:      genai.Ptr[float32](0.1),
	ResponseMIMEType: "application/json",
	ResponseSchema: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"clean_title": {
				Type:        genai.TypeString,
				Description: "A concise 4-12 word product title. Remove coupon codes, emojis, store names and marketing fluff.",
			},
		},
		Required: []string{"clean_title"},
	},
}

// CleanTitle asks Gemini for a short caption title for the listing.
func (c *Client) CleanTitle(ctx context.Context, l models.Listing) (string, error) {
	if c == nil || c.models == nil {
		return "", nil
	}

	prompt := fmt.Sprintf(`
Rewrite this shopping deal title for a social media caption:
Title: "%s"
Store: "%s"
Price: "%s"

Keep the brand and the product. Do not include the price or store.
Output JSON adhering to the schema.
`, l.Title, l.Store, l.Price)

	resp, err := c.models.GenerateContent(ctx, c.modelID, genai.Text(prompt), titleConfig)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response candidates from gemini")
	}

	// Clean up potential markdown formatting just in case
	jsonStr := strings.TrimSpace(resp.Text())
	jsonStr = strings.TrimPrefix(jsonStr, "```json")
	jsonStr = strings.TrimPrefix(jsonStr, "```")
	jsonStr = strings.TrimSuffix(jsonStr, "```")

	var result titleResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return "", fmt.Errorf("failed to parse gemini response: %w", err)
	}
	title := strings.TrimSpace(result.CleanTitle)
	if title == "" {
		return "", fmt.Errorf("gemini returned an empty title")
	}
	return title, nil
}
