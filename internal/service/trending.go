package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"volume/internal/config"
	"volume/internal/domain"
	"volume/internal/metrics"
	"volume/internal/trending"
)

const maxLimitFactor = 4

// TrendingService ranks recent content by trendiness. Ranked listings are
// cached for a short TTL; a cache outage only costs a recomputation.
type TrendingService struct {
	articles  ArticleStore
	magazines MagazineStore
	flyers    FlyerStore
	cache     TrendingCache
	logger    *slog.Logger
	config    config.TrendingConfig
	now       func() time.Time
}

func NewTrendingService(
	articles ArticleStore,
	magazines MagazineStore,
	flyers FlyerStore,
	cache TrendingCache,
	logger *slog.Logger,
	cfg config.TrendingConfig,
) *TrendingService {
	return &TrendingService{
		articles:  articles,
		magazines: magazines,
		flyers:    flyers,
		cache:     cache,
		logger:    logger.With("component", "trending"),
		config:    cfg,
		now:       time.Now,
	}
}

func (s *TrendingService) TrendingArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	limit = s.clampLimit(limit)
	key := fmt.Sprintf("trending:articles:%d", limit)

	var cached []domain.Article
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	now := s.now()
	since := s.windowStart(now)
	candidates, err := s.articles.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	ranked := trending.Select(candidates, now, limit,
		trending.Since(since, func(a domain.Article) time.Time { return a.Date }))
	s.store(ctx, key, ranked)
	return ranked, nil
}

func (s *TrendingService) TrendingMagazines(ctx context.Context, limit int) ([]domain.Magazine, error) {
	limit = s.clampLimit(limit)
	key := fmt.Sprintf("trending:magazines:%d", limit)

	var cached []domain.Magazine
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	now := s.now()
	since := s.windowStart(now)
	candidates, err := s.magazines.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list magazines: %w", err)
	}

	ranked := trending.Select(candidates, now, limit,
		trending.Since(since, func(m domain.Magazine) time.Time { return m.Date }))
	s.store(ctx, key, ranked)
	return ranked, nil
}

// TrendingFlyers ranks flyers whose event has not ended, soonest and most
// clicked first. The score is recomputed here rather than read from the
// persisted snapshot, which goes stale as the event approaches.
func (s *TrendingService) TrendingFlyers(ctx context.Context, limit int) ([]domain.Flyer, error) {
	limit = s.clampLimit(limit)
	key := fmt.Sprintf("trending:flyers:%d", limit)

	var cached []domain.Flyer
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	now := s.now()
	candidates, err := s.flyers.ListUpcoming(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list flyers: %w", err)
	}

	ranked := trending.Select(candidates, now, limit, func(f domain.Flyer) bool { return f.Upcoming(now) })
	s.store(ctx, key, ranked)
	return ranked, nil
}

// clampLimit maps a missing limit to the default and caps large ones at
// maxLimitFactor times the default.
func (s *TrendingService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.config.Limit
	}
	if ceiling := s.config.Limit * maxLimitFactor; limit > ceiling {
		return ceiling
	}
	return limit
}

func (s *TrendingService) windowStart(now time.Time) time.Time {
	return now.AddDate(0, 0, -s.config.WindowDays)
}

func (s *TrendingService) lookup(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		metrics.RecordCache("error")
		s.logger.Warn("trending cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		metrics.RecordCache("miss")
		return false
	}
	metrics.RecordCache("hit")
	return true
}

func (s *TrendingService) store(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.config.CacheTTL); err != nil {
		metrics.RecordExternalFailure("cache")
		s.logger.Warn("trending cache write failed", "key", key, "error", err)
	}
}
