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

const DesiDimeName = "desidime"

// DesiDime parses the grid view of the DesiDime "new" page.
type DesiDime struct {
	sessions  SessionProvider
	selectors DesiDimeSelectors

	attempts int
	backoff  util.Backoff
	now      func() time.Time
}

func NewDesiDime(sessions SessionProvider, cfg SelectorConfig) *DesiDime {
	return &DesiDime{
		sessions:  sessions,
		selectors: cfg.DesiDime,
		attempts:  3,
		backoff:   util.ExponentialBackoff(time.Second),
		now:       time.Now,
	}
}

func (d *DesiDime) Name() string { return DesiDimeName }

func (d *DesiDime) Fetch(ctx context.Context, page int) ([]models.Listing, error) {
	pageURL := fmt.Sprintf(d.selectors.ListURL, page)
	slog.Info("Scraping DesiDime page", "url", pageURL)

	doc, err := fetchPage(ctx, d.sessions, pageURL, d.selectors.Card, d.attempts, d.backoff)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape DesiDime page %d: %w", page, err)
	}
	return d.parse(doc), nil
}

func (d *DesiDime) parse(doc *goquery.Document) []models.Listing {
	sel := d.selectors.Elements
	postedAt := d.now().UTC()

	var listings []models.Listing
	doc.Find(d.selectors.Card).Each(func(_ int, card *goquery.Selection) {
		l := models.Listing{
			Title:       cleanText(card.Find(sel.Title).First().Text()),
			Store:       cleanText(card.Find(sel.Store).First().Text()),
			Price:       util.CleanPrice(card.Find(sel.Price).First().Text()),
			Discount:    d.discount(card),
			RawImageURL: d.imageURL(card.Find(sel.Image).First()),
			RedirectURL: absolutize(d.selectors.BaseURL, card.Find(sel.GetDeal).First().AttrOr(sel.GetDealAttr, "")),
			PostedAt:    postedAt,
			Source:      DesiDimeName,
		}
		if l.Title == "" || l.Store == "" || l.RedirectURL == "" {
			slog.Info("Skipping incomplete DesiDime card", "title", l.Title, "store", l.Store)
			return
		}
		listings = append(listings, l)
	})
	return listings
}

// discount prefers the "33% off" badge and falls back to the free-text line.
func (d *DesiDime) discount(card *goquery.Selection) string {
	sel := d.selectors.Elements
	percent := cleanText(card.Find(sel.PercentOff).First().Text())
	off := cleanText(card.Find(sel.DealOff).First().Text())
	if percent != "" && off != "" {
		return percent + " " + off
	}
	return cleanText(card.Find(sel.Discount).First().Text())
}

// imageURL swaps the medium rendition for the original.
func (d *DesiDime) imageURL(img *goquery.Selection) string {
	src := strings.TrimSpace(img.AttrOr(d.selectors.Elements.ImageAttr, ""))
	if src == "" {
		src = strings.TrimSpace(img.AttrOr("src", ""))
	}
	return strings.Replace(src, "/medium/", "/original/", 1)
}
