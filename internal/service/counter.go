package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"volume/internal/config"
	"volume/internal/domain"
	"volume/internal/metrics"
	"volume/internal/trending"
)

// CounterService increments endorsement counters and the aggregates of the
// publications that own them.
//
// In atomic mode every write is a single store-side increment. In naive mode
// the counter is read, incremented in memory and written back, so concurrent
// increments of the same row can lose updates.
//
// The child and parent writes are independent unless Transactional is set:
// a failure between them leaves the child incremented and the parent stale.
type CounterService struct {
	articles     ArticleStore
	magazines    MagazineStore
	flyers       FlyerStore
	publications PublicationStore
	txManager    TransactionManager
	logger       *slog.Logger
	config       config.CountersConfig
	now          func() time.Time
}

func NewCounterService(
	articles ArticleStore,
	magazines MagazineStore,
	flyers FlyerStore,
	publications PublicationStore,
	txManager TransactionManager,
	logger *slog.Logger,
	cfg config.CountersConfig,
) *CounterService {
	return &CounterService{
		articles:     articles,
		magazines:    magazines,
		flyers:       flyers,
		publications: publications,
		txManager:    txManager,
		logger:       logger.With("component", "counters"),
		config:       cfg,
		now:          time.Now,
	}
}

// IncrementShoutouts adds one shoutout to an article and its publication.
// A missing article yields (nil, nil) and no writes.
func (s *CounterService) IncrementShoutouts(ctx context.Context, articleID string) (*domain.Article, error) {
	var article *domain.Article
	err := s.inScope(ctx, func(ctx context.Context) error {
		var err error
		if s.config.UseAtomic() {
			article, err = s.articles.IncrementShoutouts(ctx, articleID)
		} else {
			article, err = s.naiveArticleIncrement(ctx, articleID)
		}
		if err != nil {
			return err
		}
		return s.incrementPublication(ctx, article.PublicationSlug)
	})
	return finishIncrement(s, "article", article, err)
}

// IncrementMagazineShoutouts adds one shoutout to a magazine and its
// publication.
func (s *CounterService) IncrementMagazineShoutouts(ctx context.Context, magazineID string) (*domain.Magazine, error) {
	var magazine *domain.Magazine
	err := s.inScope(ctx, func(ctx context.Context) error {
		var err error
		if s.config.UseAtomic() {
			magazine, err = s.magazines.IncrementShoutouts(ctx, magazineID)
		} else {
			magazine, err = s.naiveMagazineIncrement(ctx, magazineID)
		}
		if err != nil {
			return err
		}
		return s.incrementPublication(ctx, magazine.PublicationSlug)
	})
	return finishIncrement(s, "magazine", magazine, err)
}

// IncrementClicks adds one click to a flyer and persists its recomputed
// trendiness alongside the counter.
func (s *CounterService) IncrementClicks(ctx context.Context, flyerID string) (*domain.Flyer, error) {
	var flyer *domain.Flyer
	err := s.inScope(ctx, func(ctx context.Context) error {
		var err error
		if s.config.UseAtomic() {
			flyer, err = s.flyers.IncrementClicks(ctx, flyerID)
		} else {
			flyer, err = s.naiveFlyerIncrement(ctx, flyerID)
		}
		if err != nil {
			return err
		}
		flyer.Trendiness = trending.PersistedFlyerScore(flyer.TimesClicked, flyer.StartDate, s.now())
		if err := s.flyers.SetTrendiness(ctx, flyer.ID, flyer.Trendiness); err != nil {
			return fmt.Errorf("set trendiness: %w", err)
		}
		return nil
	})
	return finishIncrement(s, "flyer", flyer, err)
}

func (s *CounterService) inScope(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.config.Transactional && s.txManager != nil {
		return s.txManager.WithTransaction(ctx, fn)
	}
	return fn(ctx)
}

func finishIncrement[T any](s *CounterService, entity string, item *T, err error) (*T, error) {
	if errors.Is(err, domain.ErrNotFound) {
		metrics.RecordIncrement(entity, "not_found")
		s.logger.Debug("increment on missing item", "entity", entity)
		return nil, nil
	}
	if err != nil {
		metrics.RecordIncrement(entity, "error")
		return nil, fmt.Errorf("increment %s: %w", entity, err)
	}
	metrics.RecordIncrement(entity, "ok")
	return item, nil
}

func (s *CounterService) incrementPublication(ctx context.Context, slug string) error {
	if s.config.UseAtomic() {
		err := s.publications.IncrementShoutouts(ctx, slug)
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("parent publication missing", "publication", slug)
			return nil
		}
		return err
	}

	pub, err := s.publications.GetBySlug(ctx, slug)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("parent publication missing", "publication", slug)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get publication: %w", err)
	}
	return s.publications.SetShoutouts(ctx, slug, pub.Shoutouts+1)
}

func (s *CounterService) naiveArticleIncrement(ctx context.Context, id string) (*domain.Article, error) {
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	article.Shoutouts++
	if err := s.articles.SetShoutouts(ctx, id, article.Shoutouts); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *CounterService) naiveMagazineIncrement(ctx context.Context, id string) (*domain.Magazine, error) {
	magazine, err := s.magazines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	magazine.Shoutouts++
	if err := s.magazines.SetShoutouts(ctx, id, magazine.Shoutouts); err != nil {
		return nil, err
	}
	return magazine, nil
}

func (s *CounterService) naiveFlyerIncrement(ctx context.Context, id string) (*domain.Flyer, error) {
	flyer, err := s.flyers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	flyer.TimesClicked++
	if err := s.flyers.SetClicks(ctx, id, flyer.TimesClicked); err != nil {
		return nil, err
	}
	return flyer, nil
}
