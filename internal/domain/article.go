package domain

import (
	"time"

	"volume/internal/trending"
)

// UnknownPublicationSlug is assigned to articles whose feed title matches no
// known publication.
const UnknownPublicationSlug = "unknown"

type Article struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	ArticleURL      string    `db:"article_url" json:"articleURL"`
	ImageURL        string    `db:"image_url" json:"imageURL"`
	PublicationSlug string    `db:"publication_slug" json:"publicationSlug"`
	Date            time.Time `db:"date" json:"date"`
	Shoutouts       int64     `db:"shoutouts" json:"shoutouts"`
	NSFW            bool      `db:"nsfw" json:"nsfw"`
	Tags            []string  `db:"-" json:"tags,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

func (a Article) Score(now time.Time) float64 {
	return trending.ArticleScore(a.Shoutouts, a.Date, now)
}

func (a Article) Filtered() bool {
	return a.NSFW
}

// BatchResult is the outcome of an unordered batch insert.
type BatchResult struct {
	Inserted []Article
	Skipped  []Article
}
