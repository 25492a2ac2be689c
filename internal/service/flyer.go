package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"volume/internal/domain"
	"volume/internal/metrics"
)

// FlyerService creates and deletes flyers together with their uploaded
// images. Image failures never undo the flyer write.
type FlyerService struct {
	flyers FlyerStore
	images ImageStore
	filter ContentFilter
	logger *slog.Logger
	now    func() time.Time
}

func NewFlyerService(flyers FlyerStore, images ImageStore, filter ContentFilter, logger *slog.Logger) *FlyerService {
	return &FlyerService{
		flyers: flyers,
		images: images,
		filter: filter,
		logger: logger.With("component", "flyers"),
		now:    time.Now,
	}
}

// Create stores a new flyer. image may be nil. If the upload fails the flyer
// is created without an image.
func (s *FlyerService) Create(ctx context.Context, in domain.FlyerInput, image io.Reader) (*domain.Flyer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	flyer := &domain.Flyer{
		ID:               uuid.NewString(),
		Title:            in.Title,
		OrganizationSlug: in.OrganizationSlug,
		CategorySlug:     in.CategorySlug,
		Location:         in.Location,
		FlyerURL:         in.FlyerURL,
		StartDate:        in.StartDate.UTC(),
		EndDate:          in.EndDate.UTC(),
		NSFW:             s.filter.IsProfane(in.Title) || s.filter.IsProfane(in.Location),
		CreatedAt:        s.now().UTC(),
	}

	if image != nil && s.images != nil {
		url, err := s.images.Upload(ctx, flyer.ID, image)
		if err != nil {
			metrics.RecordExternalFailure("image_upload")
			s.logger.Warn("flyer image upload failed", "flyer_id", flyer.ID, "error", err)
		} else {
			flyer.ImageURL = url
		}
	}

	if err := s.flyers.Insert(ctx, flyer); err != nil {
		return nil, fmt.Errorf("insert flyer: %w", err)
	}
	return flyer, nil
}

// Delete removes a flyer and then its image. A missing flyer yields
// (nil, nil); a failed image removal leaves an orphaned blob.
func (s *FlyerService) Delete(ctx context.Context, id string) (*domain.Flyer, error) {
	flyer, err := s.flyers.Delete(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete flyer: %w", err)
	}

	if flyer.ImageURL != "" && s.images != nil {
		if err := s.images.Remove(ctx, flyer.ImageURL); err != nil {
			metrics.RecordExternalFailure("image_remove")
			s.logger.Warn("flyer image removal failed", "flyer_id", id, "url", flyer.ImageURL, "error", err)
		}
	}
	return flyer, nil
}
