package domain

import (
	"strings"
)

type Publication struct {
	ID              string `db:"id" json:"id"`
	Slug            string `db:"slug" json:"slug"`
	Name            string `db:"name" json:"name"`
	Bio             string `db:"bio" json:"bio"`
	WebsiteURL      string `db:"website_url" json:"websiteURL"`
	ProfileImageURL string `db:"profile_image_url" json:"profileImageURL"`
	RSSURL          string `db:"rss_url" json:"rssURL"`
	RSSName         string `db:"rss_name" json:"rssName"`
	Shoutouts       int64  `db:"shoutouts" json:"shoutouts"`
}

// PublicationStats are aggregates summed over a publication's articles at
// read time.
type PublicationStats struct {
	NumArticles      int64 `db:"num_articles" json:"numArticles"`
	ArticleShoutouts int64 `db:"article_shoutouts" json:"articleShoutouts"`
}

type Organization struct {
	ID              string `db:"id" json:"id"`
	Slug            string `db:"slug" json:"slug"`
	Name            string `db:"name" json:"name"`
	Bio             string `db:"bio" json:"bio"`
	CategorySlug    string `db:"category_slug" json:"categorySlug"`
	WebsiteURL      string `db:"website_url" json:"websiteURL"`
	ProfileImageURL string `db:"profile_image_url" json:"profileImageURL"`
}

type OrganizationStats struct {
	NumFlyers   int64 `db:"num_flyers" json:"numFlyers"`
	TotalClicks int64 `db:"total_clicks" json:"totalClicks"`
}

// PublicationDirectory maps a feed's declared title, or failing that the URL
// it was fetched from, to a publication slug.
type PublicationDirectory struct {
	byTitle map[string]string
	byURL   map[string]string
}

func NewPublicationDirectory(pubs []Publication) *PublicationDirectory {
	d := &PublicationDirectory{
		byTitle: make(map[string]string, len(pubs)),
		byURL:   make(map[string]string, len(pubs)),
	}
	for _, p := range pubs {
		if p.RSSName != "" {
			d.byTitle[normalizeTitle(p.RSSName)] = p.Slug
		}
		if p.RSSURL != "" {
			d.byURL[p.RSSURL] = p.Slug
		}
	}
	return d
}

// Resolve never fails: unmatched feeds belong to UnknownPublicationSlug.
func (d *PublicationDirectory) Resolve(feedTitle, sourceURL string) string {
	if slug, ok := d.byTitle[normalizeTitle(feedTitle)]; ok {
		return slug
	}
	if slug, ok := d.byURL[sourceURL]; ok {
		return slug
	}
	return UnknownPublicationSlug
}

func (d *PublicationDirectory) Known(slug string) bool {
	for _, s := range d.byTitle {
		if s == slug {
			return true
		}
	}
	for _, s := range d.byURL {
		if s == slug {
			return true
		}
	}
	return false
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
