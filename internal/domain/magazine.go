package domain

import (
	"time"

	"volume/internal/trending"
)

type Magazine struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	PublicationSlug string    `db:"publication_slug" json:"publicationSlug"`
	PDFURL          string    `db:"pdf_url" json:"pdfURL"`
	Semester        string    `db:"semester" json:"semester"`
	Date            time.Time `db:"date" json:"date"`
	Shoutouts       int64     `db:"shoutouts" json:"shoutouts"`
	NSFW            bool      `db:"nsfw" json:"nsfw"`
	Featured        bool      `db:"is_featured" json:"isFeatured"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

func (m Magazine) Score(now time.Time) float64 {
	return trending.ArticleScore(m.Shoutouts, m.Date, now)
}

func (m Magazine) Filtered() bool {
	return m.NSFW
}

type MagazineInput struct {
	Title           string
	PublicationSlug string
	PDFURL          string
	Semester        string
	Date            time.Time
}

func (in MagazineInput) Validate() error {
	if in.Title == "" || in.PublicationSlug == "" || in.PDFURL == "" {
		return ErrInvalidInput
	}
	return nil
}
