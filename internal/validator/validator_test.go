package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/pauljones0/offnbuy-bot/internal/models"
)

func validListing() models.Listing {
	return models.Listing{
		Title:       "boAt Airdopes 141",
		Store:       "Amazon",
		Price:       "999",
		RawImageURL: "https://cdn.dealsmagnet.com/img/1.jpg",
		RedirectURL: "https://dealsmagnet.com/go/1",
		PostedAt:    time.Now(),
	}
}

func TestValidator_CheckListing(t *testing.T) {
	v := New([]string{"DesiDime"}, []string{"18+"})

	tests := []struct {
		name        string
		mutate      func(l *models.Listing)
		wantErr     bool
		wantBlocked bool
	}{
		{"Valid listing", func(l *models.Listing) {}, false, false},
		{"Missing title", func(l *models.Listing) { l.Title = "" }, true, false},
		{"Missing store", func(l *models.Listing) { l.Store = "" }, true, false},
		{"Relative redirect URL", func(l *models.Listing) { l.RedirectURL = "/go/1" }, true, false},
		{"Non-http image URL", func(l *models.Listing) { l.RawImageURL = "data:image/png;base64,AAA" }, true, false},
		{"Zero posted time", func(l *models.Listing) { l.PostedAt = time.Time{} }, true, false},
		{"Blocked store", func(l *models.Listing) { l.Store = "desidime" }, true, true},
		{"Blocked title term", func(l *models.Listing) { l.Title = "Novel (18+ edition)" }, true, true},
		{"Blocked store with bad image", func(l *models.Listing) {
			l.Store = "DesiDime"
			l.RawImageURL = "data:image/png;base64,AAA"
		}, true, true},
		{"Blocked title with missing store", func(l *models.Listing) {
			l.Title = "18+ comic"
			l.Store = ""
		}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validListing()
			tt.mutate(&l)
			err := v.CheckListing(l)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckListing() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrBlocked) != tt.wantBlocked {
				t.Errorf("CheckListing() blocked = %v, want %v (err %v)", errors.Is(err, ErrBlocked), tt.wantBlocked, err)
			}
		})
	}
}

func TestValidator_NoBlocklists(t *testing.T) {
	v := New(nil, nil)
	l := validListing()
	l.Store = "DesiDime"
	if err := v.CheckListing(l); err != nil {
		t.Errorf("Expected no error without blocklists, got %v", err)
	}
}
