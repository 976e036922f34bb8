package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectID     string
	StorageBucket string
	Port          string

	StaleWindow           time.Duration
	PoolSize              int
	FingerprintIncludeURL bool
	BlockedStores         []string
	BlockedTitleTerms     []string
	RunTimeout            time.Duration
	RunInterval           time.Duration
	CachePath             string
	SelectorsPath         string

	BrowserEngine     string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	ResolveAttempts   int
	ResolveBackoff    time.Duration

	ConverterURL    string
	EarnKaroAPIKey  string
	ConvertAttempts int
	ConvertDelay    time.Duration
	ConvertTimeout  time.Duration

	MeeshoInviteCode string

	NotifyAttempts          int
	NotifyDelay             time.Duration
	TelegramBotToken        string
	TelegramChannelID       string
	FacebookPageID          string
	FacebookPageAccessToken string
	FacebookMinPostGap      time.Duration
	DiscordWebhookURL       string
	PushTopic               string
	FirebaseDatabaseURL     string

	GeminiAPIKey string
	GeminiModel  string
}

const (
	BrowserEngineChromedp   = "chromedp"
	BrowserEnginePlaywright = "playwright"

	maxPoolSize = 5
)

// Load reads configuration from the environment. Variables from a .env file
// (or from DOTENV_CONTENTS when set) fill in anything not already set.
func Load() (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required but not set")
	}
	bucket := os.Getenv("FIREBASE_STORAGE_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("FIREBASE_STORAGE_BUCKET environment variable is required but not set")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	p := &parser{}
	cfg := &Config{
		ProjectID:     projectID,
		StorageBucket: bucket,
		Port:          port,

		StaleWindow:           p.duration("STALE_WINDOW", 24*time.Hour),
		PoolSize:              p.integer("POOL_SIZE", 1),
		FingerprintIncludeURL: p.boolean("FINGERPRINT_INCLUDE_URL", false),
		BlockedStores:         list("BLOCKED_STORES", "DesiDime"),
		BlockedTitleTerms:     list("BLOCKED_TITLE_TERMS", "18+"),
		RunTimeout:            p.duration("RUN_TIMEOUT", 10*time.Minute),
		RunInterval:           p.duration("RUN_INTERVAL", 0),
		CachePath:             stringOr("CACHE_PATH", "deals_cache.json"),
		SelectorsPath:         os.Getenv("SELECTORS_CONFIG_PATH"),

		BrowserEngine:     strings.ToLower(stringOr("BROWSER_ENGINE", BrowserEngineChromedp)),
		NavigationTimeout: p.duration("NAVIGATION_TIMEOUT", 30*time.Second),
		SettleDelay:       p.duration("SETTLE_DELAY", time.Second),
		ResolveAttempts:   p.integer("RESOLVE_ATTEMPTS", 1),
		ResolveBackoff:    p.duration("RESOLVE_BACKOFF", 30*time.Second),

		ConverterURL:    os.Getenv("CONVERTER_URL"),
		EarnKaroAPIKey:  os.Getenv("EARN_KARO_API_KEY"),
		ConvertAttempts: p.integer("CONVERT_ATTEMPTS", 3),
		ConvertDelay:    p.duration("CONVERT_DELAY", 2*time.Second),
		ConvertTimeout:  p.duration("CONVERT_TIMEOUT", 15*time.Second),

		MeeshoInviteCode: os.Getenv("MEESHO_INVITE_CODE"),

		NotifyAttempts:          p.integer("NOTIFY_ATTEMPTS", 3),
		NotifyDelay:             p.duration("NOTIFY_DELAY", 2*time.Second),
		TelegramBotToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChannelID:       os.Getenv("TELEGRAM_CHANNEL_ID"),
		FacebookPageID:          os.Getenv("FACEBOOK_PAGE_ID"),
		FacebookPageAccessToken: os.Getenv("FACEBOOK_PAGE_ACCESS_TOKEN"),
		FacebookMinPostGap:      p.duration("FACEBOOK_MIN_POST_GAP", 15*time.Minute),
		DiscordWebhookURL:       os.Getenv("DISCORD_WEBHOOK_URL"),
		PushTopic:               os.Getenv("FCM_TOPIC"),
		FirebaseDatabaseURL:     os.Getenv("FIREBASE_DATABASE_URL"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  stringOr("GEMINI_MODEL", "gemini-2.0-flash"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.EarnKaroAPIKey == "" {
		slog.Warn("EARN_KARO_API_KEY not set, links will be sanitized instead of converted")
	}
	if cfg.TelegramBotToken == "" && cfg.FacebookPageID == "" && cfg.DiscordWebhookURL == "" && cfg.PushTopic == "" {
		slog.Warn("No notification channel configured, committed listings will not be announced")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PoolSize < 1 || c.PoolSize > maxPoolSize {
		return fmt.Errorf("invalid POOL_SIZE %d: must be between 1 and %d", c.PoolSize, maxPoolSize)
	}
	if c.ResolveAttempts < 1 || c.ConvertAttempts < 1 || c.NotifyAttempts < 1 {
		return fmt.Errorf("attempt counts must be at least 1")
	}
	if c.StaleWindow <= 0 {
		return fmt.Errorf("invalid STALE_WINDOW %s: must be positive", c.StaleWindow)
	}
	if c.RunInterval < 0 {
		return fmt.Errorf("invalid RUN_INTERVAL %s: must not be negative", c.RunInterval)
	}
	switch c.BrowserEngine {
	case BrowserEngineChromedp, BrowserEnginePlaywright:
	default:
		return fmt.Errorf("invalid BROWSER_ENGINE %q: want %s or %s", c.BrowserEngine, BrowserEngineChromedp, BrowserEnginePlaywright)
	}
	if (c.TelegramBotToken == "") != (c.TelegramChannelID == "") {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHANNEL_ID must be set together")
	}
	if (c.FacebookPageID == "") != (c.FacebookPageAccessToken == "") {
		return fmt.Errorf("FACEBOOK_PAGE_ID and FACEBOOK_PAGE_ACCESS_TOKEN must be set together")
	}
	return nil
}

// loadDotenv never overrides variables that are already set.
func loadDotenv() error {
	if contents := os.Getenv("DOTENV_CONTENTS"); contents != "" {
		vars, err := godotenv.Unmarshal(contents)
		if err != nil {
			return fmt.Errorf("invalid DOTENV_CONTENTS: %w", err)
		}
		for k, v := range vars {
			if _, ok := os.LookupEnv(k); !ok {
				os.Setenv(k, v)
			}
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// parser keeps the first parse error so Load can read every variable in one
// pass.
type parser struct {
	err error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return i
}

func (p *parser) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return b
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func stringOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// list splits a comma separated variable. An explicitly empty value is not
// distinguishable from unset, so "-" disables the default.
func list(key, def string) []string {
	v := stringOr(key, def)
	if v == "-" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
