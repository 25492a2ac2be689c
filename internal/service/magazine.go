package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"volume/internal/domain"
)

// MagazineService creates magazine issues for known publications.
type MagazineService struct {
	magazines MagazineStore
	filter    ContentFilter
	directory *domain.PublicationDirectory
	logger    *slog.Logger
	now       func() time.Time
}

func NewMagazineService(magazines MagazineStore, filter ContentFilter, directory *domain.PublicationDirectory, logger *slog.Logger) *MagazineService {
	return &MagazineService{
		magazines: magazines,
		filter:    filter,
		directory: directory,
		logger:    logger.With("component", "magazines"),
		now:       time.Now,
	}
}

// Create stores a new, unfeatured magazine. A zero Date means the issue is
// dated now.
func (s *MagazineService) Create(ctx context.Context, in domain.MagazineInput) (*domain.Magazine, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !s.directory.Known(in.PublicationSlug) {
		return nil, fmt.Errorf("publication %q: %w", in.PublicationSlug, domain.ErrInvalidInput)
	}

	now := s.now().UTC()
	date := in.Date.UTC()
	if in.Date.IsZero() {
		date = now
	}

	magazine := &domain.Magazine{
		ID:              uuid.NewString(),
		Title:           in.Title,
		PublicationSlug: in.PublicationSlug,
		PDFURL:          in.PDFURL,
		Semester:        in.Semester,
		Date:            date,
		NSFW:            s.filter.IsProfane(in.Title),
		CreatedAt:       now,
	}

	if err := s.magazines.Insert(ctx, magazine); err != nil {
		return nil, fmt.Errorf("insert magazine: %w", err)
	}

	s.logger.Info("magazine created",
		"magazine_id", magazine.ID,
		"publication", magazine.PublicationSlug,
		"nsfw", magazine.NSFW,
	)
	return magazine, nil
}
