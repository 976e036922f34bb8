package scraper

import (
	"encoding/json"
	"fmt"
	"os"
)

type SelectorConfig struct {
	DealsMagnet DealsMagnetSelectors `json:"dealsmagnet"`
	DesiDime    DesiDimeSelectors    `json:"desidime"`
}

type DealsMagnetSelectors struct {
	BaseURL  string              `json:"base_url"`
	ListURL  string              `json:"list_url"` // printf pattern taking the page number
	Card     string              `json:"card"`
	Elements DealsMagnetElements `json:"elements"`

	// ImageProxy, when set, is prefixed to the full-size image URL.
	ImageProxy string `json:"image_proxy"`
}

type DealsMagnetElements struct {
	TitleLink     string `json:"title_link"`
	BuyButton     string `json:"buy_button"`
	BuyCodeAttr   string `json:"buy_code_attr"`
	BuyPath       string `json:"buy_path"`
	Price         string `json:"price"`
	OriginalPrice string `json:"original_price"`
	DiscountBig   string `json:"discount_big"`
	DiscountSmall string `json:"discount_small"`
	Image         string `json:"image"`
	ImageAttr     string `json:"image_attr"`
	StoreLogo     string `json:"store_logo"`
}

type DesiDimeSelectors struct {
	BaseURL  string           `json:"base_url"`
	ListURL  string           `json:"list_url"`
	Card     string           `json:"card"`
	Elements DesiDimeElements `json:"elements"`
}

type DesiDimeElements struct {
	Title       string `json:"title"`
	Price       string `json:"price"`
	PercentOff  string `json:"percent_off"`
	DealOff     string `json:"deal_off"`
	Discount    string `json:"discount"`
	Store       string `json:"store"`
	Image       string `json:"image"`
	ImageAttr   string `json:"image_attr"`
	GetDeal     string `json:"get_deal"`
	GetDealAttr string `json:"get_deal_attr"`
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if config.DealsMagnet.Card == "" || config.DealsMagnet.ListURL == "" {
		return SelectorConfig{}, fmt.Errorf("selector config is missing the dealsmagnet card or list_url")
	}
	// The desidime section is optional; a partial one is a mistake.
	switch dd := config.DesiDime; {
	case dd == (DesiDimeSelectors{}):
		config.DesiDime = DefaultSelectors().DesiDime
	case dd.Card == "" || dd.ListURL == "":
		return SelectorConfig{}, fmt.Errorf("selector config is missing the desidime card or list_url")
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
// The embedded selectors.json should be preferred.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		DealsMagnet: DealsMagnetSelectors{
			BaseURL: "https://www.dealsmagnet.com",
			ListURL: "https://www.dealsmagnet.com/new?page=%d",
			Card:    "div.col-lg-3.col-md-4.col-sm-6.col-6.pl-1.pr-1.pb-2",
			Elements: DealsMagnetElements{
				TitleLink:     "p.card-text a.MainCardAnchore",
				BuyButton:     "button.buy-button",
				BuyCodeAttr:   "data-code",
				BuyPath:       "/buy?",
				Price:         ".card-DealPrice",
				OriginalPrice: ".card-OriginalPrice",
				DiscountBig:   ".card-DiscountPrice .big",
				DiscountSmall: ".card-DiscountPrice .small",
				Image:         ".card-img img",
				ImageAttr:     "data-src",
				StoreLogo:     ".card-footer img",
			},
		},
		DesiDime: DesiDimeSelectors{
			BaseURL: "https://www.desidime.com",
			ListURL: "https://www.desidime.com/new?page=%d&deals_view=deal_grid_view",
			Card:    "div#deals-grid ul.cf > li.tablet-grid-25.padfix.grid-20",
			Elements: DesiDimeElements{
				Title:       "div.deal-dsp a",
				Price:       "div.deal-price",
				PercentOff:  "div.deal-percent span.percentoff",
				DealOff:     "div.deal-percent span.dealoff",
				Discount:    "div.deal-discount",
				Store:       "div.deal-store.ftl",
				Image:       "div.deal-box-image img",
				ImageAttr:   "data-src",
				GetDeal:     "div.getdeal a",
				GetDealAttr: "data-href",
			},
		},
	}
}
