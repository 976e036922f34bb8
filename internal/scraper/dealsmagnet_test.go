package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pauljones0/offnbuy-bot/internal/browser"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<div class="row">
  <div class="col-lg-3 col-md-4 col-sm-6 col-6 pl-1 pr-1 pb-2">
    <div class="card-img"><img data-src="https://cdn.dealsmagnet.com/img/boat-s-141.jpg"></div>
    <p class="card-text"><a class="MainCardAnchore" href="/boat-airdopes-141">  boAt Airdopes 141
      TWS Earbuds </a></p>
    <span class="card-DealPrice"> ₹ 999 </span>
    <span class="card-OriginalPrice">₹4,490</span>
    <span class="card-DiscountPrice"><span class="big">78%</span><span class="small">off</span></span>
    <button class="buy-button" data-code="id=Mjk4NTQ1"></button>
    <div class="card-footer"><img alt="Amazon"></div>
  </div>
  <div class="col-lg-3 col-md-4 col-sm-6 col-6 pl-1 pr-1 pb-2">
    <div class="card-img"><img src="https://cdn.dealsmagnet.com/img/kettle-s-1.jpg"></div>
    <p class="card-text"><a class="MainCardAnchore" href="/prestige-kettle">Prestige Electric Kettle</a></p>
    <span class="card-DealPrice">₹ 649</span>
    <div class="card-footer"><img alt="Flipkart"></div>
  </div>
  <div class="col-lg-3 col-md-4 col-sm-6 col-6 pl-1 pr-1 pb-2">
    <p class="card-text"><a class="MainCardAnchore" href="/no-store">Card without a store</a></p>
  </div>
</div>
</body></html>`

type mockTab struct {
	s *mockSession
}

func (t *mockTab) Navigate(_ context.Context, url string) error {
	t.s.navigated = append(t.s.navigated, url)
	if len(t.s.failures) > 0 {
		err := t.s.failures[0]
		t.s.failures = t.s.failures[1:]
		return err
	}
	return nil
}
func (t *mockTab) URL(_ context.Context) (string, error)  { return "", nil }
func (t *mockTab) HTML(_ context.Context) (string, error) { return t.s.html, nil }
func (t *mockTab) Close() error {
	t.s.closed++
	return nil
}

type mockSession struct {
	html      string
	failures  []error
	navigated []string
	opened    int
	closed    int
}

func (s *mockSession) NewContext(_ context.Context) (browser.Context, error) {
	s.opened++
	return &mockTab{s: s}, nil
}
func (s *mockSession) Disconnected() <-chan struct{} { return nil }
func (s *mockSession) Close() error                  { return nil }

type mockSessions struct {
	session *mockSession
	err     error
}

func (m *mockSessions) Acquire(_ context.Context) (browser.Session, error) {
	return m.session, m.err
}

func newTestScraper(s *mockSession) *DealsMagnet {
	d := NewDealsMagnet(&mockSessions{session: s}, DefaultSelectors())
	d.backoff = util.FixedBackoff(0)
	d.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func TestDealsMagnet_Fetch(t *testing.T) {
	session := &mockSession{html: listingPage}
	listings, err := newTestScraper(session).Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(session.navigated) != 1 || session.navigated[0] != "https://www.dealsmagnet.com/new?page=2" {
		t.Errorf("navigated to %v", session.navigated)
	}
	if session.opened != session.closed {
		t.Errorf("contexts opened %d, closed %d", session.opened, session.closed)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings (incomplete card skipped), got %d", len(listings))
	}

	first := listings[0]
	checks := []struct{ field, got, want string }{
		{"Title", first.Title, "boAt Airdopes 141 TWS Earbuds"},
		{"Store", first.Store, "Amazon"},
		{"Price", first.Price, "999"},
		{"OriginalPrice", first.OriginalPrice, "4,490"},
		{"Discount", first.Discount, "78% off"},
		{"RawImageURL", first.RawImageURL, "https://cdn.dealsmagnet.com/img/boat-o-141.jpg"},
		{"RedirectURL", first.RedirectURL, "https://www.dealsmagnet.com/buy?id=Mjk4NTQ1"},
		{"Source", first.Source, "dealsmagnet"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if !first.PostedAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("PostedAt = %v, want harvest time", first.PostedAt)
	}

	second := listings[1]
	if second.RedirectURL != "https://www.dealsmagnet.com/prestige-kettle" {
		t.Errorf("card without buy button should link to the deal page, got %q", second.RedirectURL)
	}
	if second.RawImageURL != "https://cdn.dealsmagnet.com/img/kettle-o-1.jpg" {
		t.Errorf("RawImageURL = %q", second.RawImageURL)
	}
	if second.Discount != "" {
		t.Errorf("Discount = %q, want empty", second.Discount)
	}
}

func TestDealsMagnet_ImageProxy(t *testing.T) {
	session := &mockSession{html: listingPage}
	d := newTestScraper(session)
	d.selectors.ImageProxy = "https://img-proxy.example.com/?url="

	listings, err := d.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := "https://img-proxy.example.com/?url=https://cdn.dealsmagnet.com/img/boat-o-141.jpg"
	if listings[0].RawImageURL != want {
		t.Errorf("RawImageURL = %q, want %q", listings[0].RawImageURL, want)
	}
}

func TestDealsMagnet_RetriesTransientFailures(t *testing.T) {
	session := &mockSession{
		html:     listingPage,
		failures: []error{errors.New("net::ERR_TIMED_OUT")},
	}
	listings, err := newTestScraper(session).Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(listings) != 2 {
		t.Errorf("expected 2 listings, got %d", len(listings))
	}
	if session.opened != 2 || session.closed != 2 {
		t.Errorf("expected a fresh context per attempt, opened %d closed %d", session.opened, session.closed)
	}
}

func TestDealsMagnet_BlockedPage(t *testing.T) {
	session := &mockSession{html: `<html><body>Access denied</body></html>`}
	_, err := newTestScraper(session).Fetch(context.Background(), 1)
	if err == nil {
		t.Fatal("expected an error for a page without deal cards")
	}
	if len(session.navigated) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(session.navigated))
	}
}

func TestDealsMagnet_AcquireFailure(t *testing.T) {
	d := NewDealsMagnet(&mockSessions{err: errors.New("launch failed")}, DefaultSelectors())
	if _, err := d.Fetch(context.Background(), 1); err == nil {
		t.Error("expected acquire error")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("Embedded", func(t *testing.T) {
		cfg := LoadConfig("")
		if cfg != DefaultSelectors() {
			t.Errorf("embedded selectors differ from defaults: %+v", cfg)
		}
	})

	t.Run("Override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selectors.json")
		override := `{"dealsmagnet":{"list_url":"https://mirror.example.com/new?p=%d","card":".deal"}}`
		if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := LoadConfig(path)
		if cfg.DealsMagnet.Card != ".deal" {
			t.Errorf("Card = %q, want override", cfg.DealsMagnet.Card)
		}
		if cfg.DesiDime != DefaultSelectors().DesiDime {
			t.Errorf("missing desidime section should use defaults, got %+v", cfg.DesiDime)
		}
	})

	t.Run("Broken override falls back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "selectors.json")
		if err := os.WriteFile(path, []byte(`{"dealsmagnet":{}}`), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := LoadConfig(path)
		if cfg.DealsMagnet.Card == "" {
			t.Error("expected fallback selectors")
		}
	})
}

func TestLoadSelectorsFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Not JSON", `not json`},
		{"Partial desidime", `{"dealsmagnet":{"list_url":"u%d","card":".c"},"desidime":{"card":".d"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSelectorsFromBytes([]byte(tt.data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
