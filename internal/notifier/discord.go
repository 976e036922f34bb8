package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/offnbuy-bot/internal/models"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

const (
	colorColdDeal    = 3092790  // #2F3136
	colorWarmDeal    = 16753920 // #FFA500
	colorHotDeal     = 16711680 // #FF0000
	colorVeryHotDeal = 16776960 // #FFFF00

	discountThresholdWarm    = 25
	discountThresholdHot     = 50
	discountThresholdVeryHot = 70
)

type Discord struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Webhooks are limited to 5 requests per 2 seconds.
		rateLimiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 1),
	}
}

func (d *Discord) Name() string { return "discord" }

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedImage struct {
	URL string `json:"url,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Image       discordEmbedImage   `json:"image,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      discordEmbedFooter  `json:"footer,omitempty"`
}

type discordMessageResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func attachmentName(l models.Listing) string {
	return l.ID + ".jpg"
}

func formatListingToEmbed(l models.Listing) discordEmbed {
	var fields []discordEmbedField
	if l.Price != "" {
		price := l.Price
		if l.OriginalPrice != "" {
			price = fmt.Sprintf("%s ~~%s~~", l.Price, l.OriginalPrice)
		}
		fields = append(fields, discordEmbedField{Name: "Price", Value: price, Inline: true})
	}
	if l.Discount != "" {
		fields = append(fields, discordEmbedField{Name: "Discount", Value: l.Discount, Inline: true})
	}
	fields = append(fields, discordEmbedField{Name: "Store", Value: l.Store, Inline: true})

	var isoTimestamp string
	if !l.PostedAt.IsZero() {
		isoTimestamp = l.PostedAt.Format(time.RFC3339)
	}

	// Footer shows where the link actually lands, e.g. "amazon.in".
	var footer discordEmbedFooter
	if domain := util.GetDomain(l.FinalURL); domain != "" {
		footer.Text = domain
	}

	return discordEmbed{
		Title:       l.CaptionTitle(),
		URL:         l.RedirectURL,
		Description: fmt.Sprintf("[Buy now](%s)", l.RedirectURL),
		Timestamp:   isoTimestamp,
		Color:       getDiscountColor(util.DiscountPercent(l.Discount)),
		Image:       discordEmbedImage{URL: "attachment://" + attachmentName(l)},
		Fields:      fields,
		Footer:      footer,
	}
}

// Notify posts the embed with the image attached and waits for Discord to
// confirm the message.
func (d *Discord) Notify(ctx context.Context, l models.Listing, image []byte) error {
	if err := d.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.sendAndGetMessageID(ctx, formatListingToEmbed(l), attachmentName(l), image)
	return err
}

func (d *Discord) sendAndGetMessageID(ctx context.Context, embed discordEmbed, filename string, image []byte) (string, error) {
	payload := discordWebhookPayload{Embeds: []discordEmbed{embed}}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(d.webhookURL)
	if err != nil {
		return "", util.Permanent(err)
	}
	q := parsedURL.Query()
	q.Set("wait", "true")
	parsedURL.RawQuery = q.Encode()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("payload_json", string(payloadBytes)); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("files[0]", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(image); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, parsedURL.String(), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := do(d.client, req)
	if err != nil {
		return "", fmt.Errorf("discord webhook: %w", err)
	}
	var msgResponse discordMessageResponse
	if err := json.Unmarshal(body, &msgResponse); err != nil {
		return "", err
	}
	return msgResponse.ID, nil
}

func getDiscountColor(percent int) int {
	if percent >= discountThresholdVeryHot {
		return colorVeryHotDeal
	} else if percent >= discountThresholdHot {
		return colorHotDeal
	} else if percent >= discountThresholdWarm {
		return colorWarmDeal
	}
	return colorColdDeal
}
