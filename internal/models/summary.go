package models

import "time"

const (
	RunStatusCompleted = "completed"
	RunStatusSkipped   = "skipped"
)

// RunSummary is returned by one pipeline invocation.
// Scraped = Stored + Updated + Skipped + Dropped.
type RunSummary struct {
	Source  string `json:"source"`
	Status  string `json:"status"`
	Scraped int    `json:"scraped"`
	Stored  int    `json:"stored"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Dropped int    `json:"dropped"`
}

// Ledger is the persisted posting state of a rate-limited channel.
type Ledger struct {
	LastPostAt time.Time `firestore:"lastPostAt"`
	Count      int64     `firestore:"count"`
}
