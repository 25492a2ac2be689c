package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"volume/internal/domain"
)

// UserService applies follow, bookmark and read-history changes. Set
// semantics live in domain.User; the store saves whole lists.
type UserService struct {
	users     UserStore
	articles  ArticleStore
	directory *domain.PublicationDirectory
	logger    *slog.Logger
	now       func() time.Time
}

func NewUserService(users UserStore, articles ArticleStore, directory *domain.PublicationDirectory, logger *slog.Logger) *UserService {
	return &UserService{
		users:     users,
		articles:  articles,
		directory: directory,
		logger:    logger.With("component", "users"),
		now:       time.Now,
	}
}

func (s *UserService) CreateUser(ctx context.Context, deviceToken, deviceType string, followed []string) (*domain.User, error) {
	if !domain.ValidDeviceType(deviceType) {
		return nil, fmt.Errorf("device type %q: %w", deviceType, domain.ErrInvalidInput)
	}

	user := &domain.User{
		UUID:        uuid.NewString(),
		DeviceToken: deviceToken,
		DeviceType:  deviceType,
		CreatedAt:   s.now().UTC(),
	}
	for _, slug := range followed {
		if !s.directory.Known(slug) {
			return nil, fmt.Errorf("publication %q: %w", slug, domain.ErrInvalidInput)
		}
		user.FollowPublication(slug)
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, uuid string) (*domain.User, error) {
	user, err := s.users.GetByUUID(ctx, uuid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *UserService) FollowPublication(ctx context.Context, uuid, slug string) (*domain.User, error) {
	if !s.directory.Known(slug) {
		return nil, fmt.Errorf("publication %q: %w", slug, domain.ErrInvalidInput)
	}
	return s.update(ctx, uuid, func(u *domain.User) bool { return u.FollowPublication(slug) })
}

func (s *UserService) UnfollowPublication(ctx context.Context, uuid, slug string) (*domain.User, error) {
	return s.update(ctx, uuid, func(u *domain.User) bool { return u.UnfollowPublication(slug) })
}

func (s *UserService) FollowOrganization(ctx context.Context, uuid, slug string) (*domain.User, error) {
	return s.update(ctx, uuid, func(u *domain.User) bool { return u.FollowOrganization(slug) })
}

func (s *UserService) UnfollowOrganization(ctx context.Context, uuid, slug string) (*domain.User, error) {
	return s.update(ctx, uuid, func(u *domain.User) bool { return u.UnfollowOrganization(slug) })
}

func (s *UserService) BookmarkArticle(ctx context.Context, uuid, articleID string) (*domain.User, error) {
	return s.update(ctx, uuid, func(u *domain.User) bool { return u.Bookmark(articleID) })
}

func (s *UserService) UnbookmarkArticle(ctx context.Context, uuid, articleID string) (*domain.User, error) {
	return s.update(ctx, uuid, func(u *domain.User) bool { return u.Unbookmark(articleID) })
}

func (s *UserService) ReadArticle(ctx context.Context, uuid, articleID string) (*domain.User, error) {
	return s.update(ctx, uuid, func(u *domain.User) bool { return u.MarkRead(articleID) })
}

// Feed lists the newest visible articles of the user's followed
// publications.
func (s *UserService) Feed(ctx context.Context, uuid string, offset, limit int) ([]domain.Article, error) {
	user, err := s.GetUser(ctx, uuid)
	if err != nil || user == nil {
		return []domain.Article{}, err
	}
	if len(user.FollowedPublications) == 0 {
		return []domain.Article{}, nil
	}

	articles, err := s.articles.ListByPublications(ctx, user.FollowedPublications, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// update loads the user, applies change and saves only when the lists
// actually changed. A missing user yields (nil, nil).
func (s *UserService) update(ctx context.Context, uuid string, change func(*domain.User) bool) (*domain.User, error) {
	user, err := s.users.GetByUUID(ctx, uuid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !change(user) {
		return user, nil
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}
