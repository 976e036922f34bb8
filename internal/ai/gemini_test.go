package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/pauljones0/offnbuy-bot/internal/models"
)

type mockGenerator struct {
	text   string
	err    error
	prompt string
	model  string
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.model = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		m.prompt = contents[0].Parts[0].Text
	}
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: m.text}}}},
		},
	}, nil
}

var listing = models.Listing{Title: "🔥 boAt Airdopes 141 TWS @ 999 Loot!!", Store: "Amazon", Price: "999"}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		err     error
		want    string
		wantErr bool
	}{
		{"Plain JSON", `{"clean_title":"boAt Airdopes 141 TWS Earbuds"}`, nil, "boAt Airdopes 141 TWS Earbuds", false},
		{"Markdown fenced", "```json\n{\"clean_title\":\"boAt Airdopes 141\"}\n```", nil, "boAt Airdopes 141", false},
		{"Empty title", `{"clean_title":"  "}`, nil, "", true},
		{"Not JSON", `Sure! Here is a title`, nil, "", true},
		{"API error", "", errors.New("quota exceeded"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{text: tt.text, err: tt.err}
			c := &Client{models: gen, modelID: "gemini-test"}

			got, err := c.CleanTitle(context.Background(), listing)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CleanTitle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CleanTitle() = %q, want %q", got, tt.want)
			}
			if gen.model != "gemini-test" {
				t.Errorf("model = %q", gen.model)
			}
			if !strings.Contains(gen.prompt, listing.Title) {
				t.Error("prompt should contain the raw title")
			}
		})
	}
}

func TestCleanTitle_NilClient(t *testing.T) {
	var c *Client
	got, err := c.CleanTitle(context.Background(), listing)
	if got != "" || err != nil {
		t.Errorf("nil client should be a no-op, got %q, %v", got, err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	c, err := NewClient(context.Background(), "", "gemini-2.0-flash")
	if c != nil || err != nil {
		t.Errorf("expected nil client without key, got %v, %v", c, err)
	}
}
