package domain

import "time"

// Feed is a parsed syndication document before normalization.
type Feed struct {
	Title     string
	SourceURL string
	Items     []FeedItem
}

type FeedItem struct {
	Title           string
	Link            string
	Published       string
	PublishedParsed *time.Time
	ImageURL        string
	Categories      []string
}

// Notification is a push message addressed to one device.
type Notification struct {
	DeviceToken string `json:"deviceToken"`
	DeviceType  string `json:"deviceType"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	ArticleID   string `json:"articleID,omitempty"`
}
