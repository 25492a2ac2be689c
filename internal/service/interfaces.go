package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"
	"time"

	"volume/internal/domain"
)

type ArticleStore interface {
	GetByID(ctx context.Context, id string) (*domain.Article, error)
	InsertMany(ctx context.Context, articles []domain.Article) ([]domain.Article, error)
	ListSince(ctx context.Context, since time.Time) ([]domain.Article, error)
	ListByPublications(ctx context.Context, slugs []string, offset, limit int) ([]domain.Article, error)
	SetShoutouts(ctx context.Context, id string, shoutouts int64) error
	IncrementShoutouts(ctx context.Context, id string) (*domain.Article, error)
}

type MagazineStore interface {
	GetByID(ctx context.Context, id string) (*domain.Magazine, error)
	Insert(ctx context.Context, magazine *domain.Magazine) error
	ListSince(ctx context.Context, since time.Time) ([]domain.Magazine, error)
	ListFeatured(ctx context.Context, limit int) ([]domain.Magazine, error)
	SetFeatured(ctx context.Context, id string, featured bool) error
	SetShoutouts(ctx context.Context, id string, shoutouts int64) error
	IncrementShoutouts(ctx context.Context, id string) (*domain.Magazine, error)
}

type FlyerStore interface {
	GetByID(ctx context.Context, id string) (*domain.Flyer, error)
	Insert(ctx context.Context, flyer *domain.Flyer) error
	Delete(ctx context.Context, id string) (*domain.Flyer, error)
	ListUpcoming(ctx context.Context, now time.Time) ([]domain.Flyer, error)
	SetClicks(ctx context.Context, id string, clicks int64) error
	IncrementClicks(ctx context.Context, id string) (*domain.Flyer, error)
	SetTrendiness(ctx context.Context, id string, trendiness float64) error
}

type PublicationStore interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Publication, error)
	Stats(ctx context.Context, slug string) (*domain.PublicationStats, error)
	Upsert(ctx context.Context, pub *domain.Publication) error
	SetShoutouts(ctx context.Context, slug string, shoutouts int64) error
	IncrementShoutouts(ctx context.Context, slug string) error
}

type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUUID(ctx context.Context, uuid string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	ListFollowers(ctx context.Context, publicationSlug string) ([]domain.User, error)
}

type TagStore interface {
	UpsertLabels(ctx context.Context, labels []string) (map[string]int64, error)
	LinkToArticle(ctx context.Context, articleID string, tagIDs []int64) error
}

type FeedStateStore interface {
	Get(ctx context.Context, sourceURL string) (*domain.FeedState, error)
	Update(ctx context.Context, state *domain.FeedState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type FeedSource interface {
	Fetch(ctx context.Context, url string) (*domain.Feed, error)
}

type ContentFilter interface {
	IsProfane(text string) bool
}

type ImageStore interface {
	Upload(ctx context.Context, name string, body io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

type PushNotifier interface {
	Send(ctx context.Context, n domain.Notification) error
}

type EventPublisher interface {
	PublishArticle(ctx context.Context, article *domain.Article) error
}

type TrendingCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
