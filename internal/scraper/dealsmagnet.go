// Package scraper contains the source adapters that harvest raw listings.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/offnbuy-bot/internal/models"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

const DealsMagnetName = "dealsmagnet"

// DealsMagnet renders the "new deals" listing page in the browser and parses
// the deal cards.
type DealsMagnet struct {
	sessions  SessionProvider
	selectors DealsMagnetSelectors

	attempts int
	backoff  util.Backoff
	now      func() time.Time
}

func NewDealsMagnet(sessions SessionProvider, cfg SelectorConfig) *DealsMagnet {
	return &DealsMagnet{
		sessions:  sessions,
		selectors: cfg.DealsMagnet,
		attempts:  3,
		backoff:   util.ExponentialBackoff(time.Second),
		now:       time.Now,
	}
}

func (d *DealsMagnet) Name() string { return DealsMagnetName }

// Fetch returns the listings on one page. PostedAt is the harvest time: the
// site only shows relative ages.
func (d *DealsMagnet) Fetch(ctx context.Context, page int) ([]models.Listing, error) {
	pageURL := fmt.Sprintf(d.selectors.ListURL, page)
	slog.Info("Scraping DealsMagnet page", "url", pageURL)

	doc, err := fetchPage(ctx, d.sessions, pageURL, d.selectors.Card, d.attempts, d.backoff)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape DealsMagnet page %d: %w", page, err)
	}
	return d.parse(doc), nil
}

// parse extracts every card that has a title, a store and an outbound link.
func (d *DealsMagnet) parse(doc *goquery.Document) []models.Listing {
	sel := d.selectors.Elements
	postedAt := d.now().UTC()

	var listings []models.Listing
	doc.Find(d.selectors.Card).Each(func(_ int, card *goquery.Selection) {
		titleLink := card.Find(sel.TitleLink).First()
		l := models.Listing{
			Title:         cleanText(titleLink.Text()),
			Store:         cleanText(card.Find(sel.StoreLogo).First().AttrOr("alt", "")),
			Price:         util.CleanPrice(card.Find(sel.Price).First().Text()),
			OriginalPrice: util.CleanPrice(card.Find(sel.OriginalPrice).First().Text()),
			Discount:      joinNonEmpty(cleanText(card.Find(sel.DiscountBig).First().Text()), cleanText(card.Find(sel.DiscountSmall).First().Text())),
			RawImageURL:   d.imageURL(card.Find(sel.Image).First()),
			RedirectURL:   d.redirectURL(card, titleLink),
			PostedAt:      postedAt,
			Source:        DealsMagnetName,
		}

		if l.Title == "" || l.Store == "" || l.RedirectURL == "" {
			slog.Info("Skipping incomplete DealsMagnet card", "title", l.Title, "store", l.Store)
			return
		}
		listings = append(listings, l)
	})
	return listings
}

// redirectURL prefers the buy button's code; cards without one link to the
// deal page.
func (d *DealsMagnet) redirectURL(card, titleLink *goquery.Selection) string {
	sel := d.selectors.Elements
	if btn := card.Find(sel.BuyButton).First(); btn.Length() > 0 {
		code := strings.TrimSpace(btn.AttrOr(sel.BuyCodeAttr, ""))
		if code == "" {
			return ""
		}
		return d.selectors.BaseURL + sel.BuyPath + code
	}
	return absolutize(d.selectors.BaseURL, titleLink.AttrOr("href", ""))
}

// imageURL swaps the small thumbnail for the original ("-s-" to "-o-").
func (d *DealsMagnet) imageURL(img *goquery.Selection) string {
	src := strings.TrimSpace(img.AttrOr(d.selectors.Elements.ImageAttr, ""))
	if src == "" {
		src = strings.TrimSpace(img.AttrOr("src", ""))
	}
	if src == "" {
		return ""
	}
	src = strings.Replace(src, "-s-", "-o-", 1)
	if d.selectors.ImageProxy != "" {
		return d.selectors.ImageProxy + src
	}
	return src
}
