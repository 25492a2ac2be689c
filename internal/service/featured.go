package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"volume/internal/config"
	"volume/internal/domain"
	"volume/internal/metrics"
	"volume/internal/trending"
)

// RotationStats summarises one featured rotation.
type RotationStats struct {
	Candidates int
	Featured   int
	Unfeatured int
	Errors     int
}

// FeaturedService periodically replaces the featured magazine set with a
// random sample of recent magazines. Rotations never overlap.
type FeaturedService struct {
	mu        sync.Mutex
	magazines MagazineStore
	logger    *slog.Logger
	config    config.FeaturedConfig
	rand      *rand.Rand
	now       func() time.Time
}

func NewFeaturedService(magazines MagazineStore, logger *slog.Logger, cfg config.FeaturedConfig) *FeaturedService {
	return &FeaturedService{
		magazines: magazines,
		logger:    logger.With("component", "featured"),
		config:    cfg,
		rand:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:       time.Now,
	}
}

// Rotate flips featured flags one magazine at a time. A failed flip is
// counted and logged; the remaining flips still happen.
func (s *FeaturedService) Rotate(ctx context.Context) (*RotationStats, error) {
	// Guards rand and the read-then-flip sequence against a concurrent run.
	s.mu.Lock()
	defer s.mu.Unlock()

	since := s.now().AddDate(0, 0, -s.config.WindowDays)

	recent, err := s.magazines.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list magazines: %w", err)
	}
	current, err := s.magazines.ListFeatured(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list featured: %w", err)
	}

	eligible := make([]domain.Magazine, 0, len(recent))
	for _, m := range recent {
		if !m.NSFW {
			eligible = append(eligible, m)
		}
	}

	sample := trending.Sample(eligible, s.config.SampleSize, s.rand)
	chosen := make(map[string]bool, len(sample))
	for _, m := range sample {
		chosen[m.ID] = true
	}

	stats := &RotationStats{Candidates: len(eligible)}

	for _, m := range current {
		if chosen[m.ID] {
			continue
		}
		if s.flip(ctx, m.ID, false) {
			stats.Unfeatured++
		} else {
			stats.Errors++
		}
	}
	for _, m := range sample {
		if m.Featured {
			stats.Featured++
			continue
		}
		if s.flip(ctx, m.ID, true) {
			stats.Featured++
		} else {
			stats.Errors++
		}
	}

	s.logger.Info("featured rotation completed",
		"candidates", stats.Candidates,
		"featured", stats.Featured,
		"unfeatured", stats.Unfeatured,
		"errors", stats.Errors,
	)
	return stats, nil
}

func (s *FeaturedService) flip(ctx context.Context, id string, featured bool) bool {
	if err := s.magazines.SetFeatured(ctx, id, featured); err != nil {
		metrics.RecordFeaturedFlip("error")
		s.logger.Warn("failed to set featured flag", "magazine_id", id, "featured", featured, "error", err)
		return false
	}
	metrics.RecordFeaturedFlip("ok")
	return true
}

// FeaturedMagazines returns the current featured set, dropping filtered
// items.
func (s *FeaturedService) FeaturedMagazines(ctx context.Context, limit int) ([]domain.Magazine, error) {
	mags, err := s.magazines.ListFeatured(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list featured: %w", err)
	}
	out := make([]domain.Magazine, 0, len(mags))
	for _, m := range mags {
		if !m.NSFW {
			out = append(out, m)
		}
	}
	return out, nil
}
