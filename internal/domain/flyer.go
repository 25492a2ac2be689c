package domain

import (
	"time"

	"volume/internal/trending"
)

// Flyer is an event announcement posted by an organization. Its endorsement
// counter is the number of times the flyer link was opened.
type Flyer struct {
	ID               string    `db:"id" json:"id"`
	Title            string    `db:"title" json:"title"`
	OrganizationSlug string    `db:"organization_slug" json:"organizationSlug"`
	CategorySlug     string    `db:"category_slug" json:"categorySlug"`
	Location         string    `db:"location" json:"location"`
	FlyerURL         string    `db:"flyer_url" json:"flyerURL"`
	ImageURL         string    `db:"image_url" json:"imageURL"`
	StartDate        time.Time `db:"start_date" json:"startDate"`
	EndDate          time.Time `db:"end_date" json:"endDate"`
	TimesClicked     int64     `db:"times_clicked" json:"timesClicked"`
	Trendiness       float64   `db:"trendiness" json:"trendiness"`
	NSFW             bool      `db:"nsfw" json:"nsfw"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// Score ranks upcoming flyers by clicks over the time left until the event.
func (f Flyer) Score(now time.Time) float64 {
	return trending.FlyerScore(f.TimesClicked, f.StartDate, now)
}

func (f Flyer) Filtered() bool {
	return f.NSFW
}

// Upcoming reports whether the event has not ended yet.
func (f Flyer) Upcoming(now time.Time) bool {
	return !f.EndDate.Before(now)
}

type FlyerInput struct {
	Title            string
	OrganizationSlug string
	CategorySlug     string
	Location         string
	FlyerURL         string
	StartDate        time.Time
	EndDate          time.Time
}

func (in FlyerInput) Validate() error {
	if in.Title == "" || in.OrganizationSlug == "" {
		return ErrInvalidInput
	}
	if in.EndDate.Before(in.StartDate) {
		return ErrInvalidInput
	}
	return nil
}
