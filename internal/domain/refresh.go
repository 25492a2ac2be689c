package domain

import "time"

// RefreshStats holds statistics about one feed refresh pass.
type RefreshStats struct {
	Sources       int
	FailedSources int
	Fetched       int
	Inserted      int
	Skipped       int
	Notified      int
	Duration      time.Duration
}

// FeedState is the last known refresh outcome for one feed URL.
type FeedState struct {
	ID              int64     `db:"id"`
	SourceURL       string    `db:"source_url"`
	LastRefreshedAt time.Time `db:"last_refreshed_at"`
	LastError       string    `db:"last_error"`
	TotalInserted   int64     `db:"total_inserted"`
}
