// Package api exposes the HTTP surface over gin.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"volume/internal/domain"
	"volume/internal/service"
)

type Trending interface {
	TrendingArticles(ctx context.Context, limit int) ([]domain.Article, error)
	TrendingMagazines(ctx context.Context, limit int) ([]domain.Magazine, error)
	TrendingFlyers(ctx context.Context, limit int) ([]domain.Flyer, error)
}

type Featured interface {
	FeaturedMagazines(ctx context.Context, limit int) ([]domain.Magazine, error)
	Rotate(ctx context.Context) (*service.RotationStats, error)
}

type Counters interface {
	IncrementShoutouts(ctx context.Context, articleID string) (*domain.Article, error)
	IncrementMagazineShoutouts(ctx context.Context, magazineID string) (*domain.Magazine, error)
	IncrementClicks(ctx context.Context, flyerID string) (*domain.Flyer, error)
}

type Users interface {
	CreateUser(ctx context.Context, deviceToken, deviceType string, followed []string) (*domain.User, error)
	FollowPublication(ctx context.Context, uuid, slug string) (*domain.User, error)
	UnfollowPublication(ctx context.Context, uuid, slug string) (*domain.User, error)
	FollowOrganization(ctx context.Context, uuid, slug string) (*domain.User, error)
	UnfollowOrganization(ctx context.Context, uuid, slug string) (*domain.User, error)
	BookmarkArticle(ctx context.Context, uuid, articleID string) (*domain.User, error)
	UnbookmarkArticle(ctx context.Context, uuid, articleID string) (*domain.User, error)
	ReadArticle(ctx context.Context, uuid, articleID string) (*domain.User, error)
	Feed(ctx context.Context, uuid string, offset, limit int) ([]domain.Article, error)
}

type Flyers interface {
	Create(ctx context.Context, in domain.FlyerInput, image io.Reader) (*domain.Flyer, error)
	Delete(ctx context.Context, id string) (*domain.Flyer, error)
}

type Magazines interface {
	Create(ctx context.Context, in domain.MagazineInput) (*domain.Magazine, error)
}

type Refresher interface {
	RefreshAll(ctx context.Context) (*domain.RefreshStats, error)
}

type ArticleReader interface {
	GetByID(ctx context.Context, id string) (*domain.Article, error)
	ListByPublications(ctx context.Context, slugs []string, offset, limit int) ([]domain.Article, error)
}

type TagReader interface {
	GetByArticleID(ctx context.Context, articleID string) ([]string, error)
}

type PublicationReader interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Publication, error)
	Stats(ctx context.Context, slug string) (*domain.PublicationStats, error)
}

type FlyerReader interface {
	ListByOrganization(ctx context.Context, slug string) ([]domain.Flyer, error)
	OrganizationStats(ctx context.Context, slug string) (*domain.OrganizationStats, error)
}

type OrganizationReader interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Organization, error)
}

// Deps lists what the handlers call into.
type Deps struct {
	Trending      Trending
	Featured      Featured
	Counters      Counters
	Users         Users
	Flyers        Flyers
	Magazines     Magazines
	Refresher     Refresher
	Articles      ArticleReader
	Tags          TagReader
	Publications  PublicationReader
	FlyerListings FlyerReader
	Organizations OrganizationReader
}

type Handler struct {
	Deps
	logger *slog.Logger
}

func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{Deps: deps, logger: logger.With("component", "api")}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

func page(c *gin.Context) (offset, limit int) {
	offset = queryInt(c, "offset", 0)
	limit = queryInt(c, "limit", defaultPageSize)
	if limit == 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return offset, limit
}

// fail maps service errors to status codes. Unexpected errors are logged
// and reported without detail.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// found reports whether a lookup succeeded. A missing entity is answered
// with a null body; other errors go through fail.
func (h *Handler) found(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusOK, nil)
	default:
		h.fail(c, err)
	}
	return false
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
