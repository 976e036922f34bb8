package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/offnbuy-bot/internal/models"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

const telegramAPIBase = "https://api.telegram.org"

type Telegram struct {
	baseURL     string
	token       string
	chatID      string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		baseURL: telegramAPIBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 30 * time.Second},
		// Telegram allows about 20 messages per minute into one channel.
		rateLimiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

func (t *Telegram) Name() string { return "telegram" }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Notify(ctx context.Context, l models.Listing, image []byte) error {
	if err := t.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendPhoto", t.baseURL, t.token)
	body, err := postMultipart(ctx, t.client, endpoint, map[string]string{
		"chat_id": t.chatID,
		"caption": Caption(l),
	}, formFile{field: "photo", filename: l.ID + ".jpg", data: image})
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}

	var resp telegramResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("telegram sendPhoto: decode response: %w", err)
	}
	if !resp.OK {
		return util.Permanent(fmt.Errorf("telegram sendPhoto: %s", resp.Description))
	}
	return nil
}
