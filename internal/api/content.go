package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"volume/internal/domain"
)

func (h *Handler) TrendingArticles(c *gin.Context) {
	articles, err := h.Trending.TrendingArticles(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, articles)
}

// GetArticle answers null for an unknown article.
func (h *Handler) GetArticle(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	article, err := h.Articles.GetByID(ctx, id)
	if !h.found(c, err) {
		return
	}

	if h.Tags != nil {
		tags, err := h.Tags.GetByArticleID(ctx, id)
		if err != nil {
			h.logger.Warn("failed to load tags", "article_id", id, "error", err)
		} else {
			article.Tags = tags
		}
	}
	c.JSON(http.StatusOK, article)
}

// IncrementArticleShoutouts answers null for an unknown article.
func (h *Handler) IncrementArticleShoutouts(c *gin.Context) {
	article, err := h.Counters.IncrementShoutouts(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

type publicationResponse struct {
	domain.Publication
	Stats domain.PublicationStats `json:"stats"`
}

func (h *Handler) GetPublication(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	pub, err := h.Publications.GetBySlug(ctx, slug)
	if !h.found(c, err) {
		return
	}
	stats, err := h.Publications.Stats(ctx, slug)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, publicationResponse{Publication: *pub, Stats: *stats})
}

func (h *Handler) PublicationArticles(c *gin.Context) {
	offset, limit := page(c)
	articles, err := h.Articles.ListByPublications(c.Request.Context(), []string{c.Param("slug")}, offset, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, articles)
}

func (h *Handler) TrendingMagazines(c *gin.Context) {
	mags, err := h.Trending.TrendingMagazines(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mags)
}

func (h *Handler) FeaturedMagazines(c *gin.Context) {
	mags, err := h.Featured.FeaturedMagazines(c.Request.Context(), queryInt(c, "limit", defaultPageSize))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mags)
}

func (h *Handler) IncrementMagazineShoutouts(c *gin.Context) {
	mag, err := h.Counters.IncrementMagazineShoutouts(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mag)
}

type createMagazineRequest struct {
	Title           string    `json:"title" binding:"required"`
	PublicationSlug string    `json:"publicationSlug" binding:"required"`
	PDFURL          string    `json:"pdfURL" binding:"required"`
	Semester        string    `json:"semester"`
	Date            time.Time `json:"date"`
}

func (h *Handler) CreateMagazine(c *gin.Context) {
	var req createMagazineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mag, err := h.Magazines.Create(c.Request.Context(), domain.MagazineInput{
		Title:           req.Title,
		PublicationSlug: req.PublicationSlug,
		PDFURL:          req.PDFURL,
		Semester:        req.Semester,
		Date:            req.Date,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, mag)
}

func (h *Handler) TrendingFlyers(c *gin.Context) {
	flyers, err := h.Trending.TrendingFlyers(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flyers)
}

type createFlyerRequest struct {
	Title            string    `json:"title" form:"title" binding:"required"`
	OrganizationSlug string    `json:"organizationSlug" form:"organizationSlug" binding:"required"`
	CategorySlug     string    `json:"categorySlug" form:"categorySlug"`
	Location         string    `json:"location" form:"location"`
	FlyerURL         string    `json:"flyerURL" form:"flyerURL"`
	StartDate        time.Time `json:"startDate" form:"startDate" binding:"required"`
	EndDate          time.Time `json:"endDate" form:"endDate" binding:"required"`
}

// CreateFlyer accepts JSON or a multipart form; the form may carry an
// "image" file.
func (h *Handler) CreateFlyer(c *gin.Context) {
	var req createFlyerRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := domain.FlyerInput{
		Title:            req.Title,
		OrganizationSlug: req.OrganizationSlug,
		CategorySlug:     req.CategorySlug,
		Location:         req.Location,
		FlyerURL:         req.FlyerURL,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
	}

	var flyer *domain.Flyer
	var err error
	file, ferr := c.FormFile("image")
	switch {
	case ferr == nil:
		f, openErr := file.Open()
		if openErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
			return
		}
		defer f.Close()
		flyer, err = h.Flyers.Create(c.Request.Context(), in, f)
	case errors.Is(ferr, http.ErrMissingFile), errors.Is(ferr, http.ErrNotMultipart):
		flyer, err = h.Flyers.Create(c.Request.Context(), in, nil)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": ferr.Error()})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, flyer)
}

func (h *Handler) DeleteFlyer(c *gin.Context) {
	flyer, err := h.Flyers.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flyer)
}

func (h *Handler) IncrementFlyerClicks(c *gin.Context) {
	flyer, err := h.Counters.IncrementClicks(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flyer)
}

type organizationResponse struct {
	domain.Organization
	Stats domain.OrganizationStats `json:"stats"`
}

func (h *Handler) GetOrganization(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	org, err := h.Organizations.GetBySlug(ctx, slug)
	if !h.found(c, err) {
		return
	}
	stats, err := h.FlyerListings.OrganizationStats(ctx, slug)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, organizationResponse{Organization: *org, Stats: *stats})
}

func (h *Handler) OrganizationFlyers(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	flyers, err := h.FlyerListings.ListByOrganization(ctx, slug)
	if err != nil {
		h.fail(c, err)
		return
	}
	stats, err := h.FlyerListings.OrganizationStats(ctx, slug)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flyers": flyers, "stats": stats})
}
