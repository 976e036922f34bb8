// Package dedup fingerprints listings and classifies them against the
// snapshot of previously committed listings.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/pauljones0/offnbuy-bot/internal/models"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

// DefaultStaleWindow is how long a committed listing stays current.
const DefaultStaleWindow = 24 * time.Hour

// Snapshot maps a listing id to the last committed version of that listing.
type Snapshot map[string]models.Listing

// Clone returns a shallow copy that can be modified independently.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ComputeID returns the hex sha256 of the normalized title and store (and
// URL when includeURL is set). It returns "" when a required field
// normalizes to empty, meaning the listing cannot be identified.
func ComputeID(title, store, rawURL string, includeURL bool) string {
	parts := []string{util.NormalizeText(title), util.NormalizeText(store)}
	if includeURL {
		parts = append(parts, util.NormalizeURL(rawURL))
	}
	for _, p := range parts {
		if p == "" {
			return ""
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}

// Classification is the result of Classify. Every identified listing lands
// in exactly one of the three slices.
type Classification struct {
	New     []models.Listing
	Stale   []models.Listing
	Current []models.Listing
}

// Classify partitions listings by looking each id up in the snapshot.
// Listings without an id are ignored; the caller drops them before this.
func Classify(listings []models.Listing, snapshot Snapshot, window time.Duration) Classification {
	if window <= 0 {
		window = DefaultStaleWindow
	}
	var c Classification
	for _, l := range listings {
		if l.ID == "" {
			continue
		}
		cached, ok := snapshot[l.ID]
		switch {
		case !ok:
			c.New = append(c.New, l)
		case absDuration(l.PostedAt.Sub(cached.PostedAt)) > window:
			c.Stale = append(c.Stale, l)
		default:
			c.Current = append(c.Current, l)
		}
	}
	return c
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
