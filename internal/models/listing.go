package models

import (
	"time"
)

// Listing is one harvested deal flowing through the pipeline.
// RedirectURL is rewritten in place as the link is resolved and converted.
type Listing struct {
	ID            string    `firestore:"deal_id" json:"deal_id"`
	Title         string    `firestore:"title" json:"title" validate:"required"`
	Store         string    `firestore:"store" json:"store" validate:"required"`
	Price         string    `firestore:"price" json:"price"`
	OriginalPrice string    `firestore:"originalPrice,omitempty" json:"originalPrice,omitempty"`
	Discount      string    `firestore:"discount,omitempty" json:"discount,omitempty"`
	RawImageURL   string    `firestore:"rawImage" json:"rawImage" validate:"required,http_url"`
	ImageURL      string    `firestore:"image,omitempty" json:"image,omitempty"`
	RedirectURL   string    `firestore:"redirectUrl" json:"redirectUrl" validate:"required,http_url"`
	FinalURL      string    `firestore:"url,omitempty" json:"url,omitempty"`
	PostedAt      time.Time `firestore:"posted_on" json:"posted_on" validate:"required"`
	Source        string    `firestore:"source" json:"source"`

	// Optional caption title produced by the AI enricher.
	CleanTitle string `firestore:"cleanTitle,omitempty" json:"cleanTitle,omitempty"`
}

// CaptionTitle prefers the enriched title when one is available.
func (l Listing) CaptionTitle() string {
	if l.CleanTitle != "" {
		return l.CleanTitle
	}
	return l.Title
}
