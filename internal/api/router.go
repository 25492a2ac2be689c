package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route. adminToken may be empty.
func NewRouter(h *Handler, adminToken string, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	articles := r.Group("/articles")
	articles.GET("/trending", h.TrendingArticles)
	articles.GET("/:id", h.GetArticle)
	articles.POST("/:id/shoutouts", h.IncrementArticleShoutouts)

	publications := r.Group("/publications")
	publications.GET("/:slug", h.GetPublication)
	publications.GET("/:slug/articles", h.PublicationArticles)

	organizations := r.Group("/organizations")
	organizations.GET("/:slug", h.GetOrganization)
	organizations.GET("/:slug/flyers", h.OrganizationFlyers)

	magazines := r.Group("/magazines")
	magazines.GET("/trending", h.TrendingMagazines)
	magazines.GET("/featured", h.FeaturedMagazines)
	magazines.POST("", h.CreateMagazine)
	magazines.POST("/:id/shoutouts", h.IncrementMagazineShoutouts)

	flyers := r.Group("/flyers")
	flyers.GET("/trending", h.TrendingFlyers)
	flyers.POST("", h.CreateFlyer)
	flyers.DELETE("/:id", h.DeleteFlyer)
	flyers.POST("/:id/clicks", h.IncrementFlyerClicks)

	users := r.Group("/users")
	users.POST("", h.CreateUser)
	users.POST("/:id/bookmarks/:articleID", h.mutateUser("articleID", func(u Users) userMutation { return u.BookmarkArticle }))
	users.DELETE("/:id/bookmarks/:articleID", h.mutateUser("articleID", func(u Users) userMutation { return u.UnbookmarkArticle }))
	users.POST("/:id/follows/:slug", h.mutateUser("slug", func(u Users) userMutation { return u.FollowPublication }))
	users.DELETE("/:id/follows/:slug", h.mutateUser("slug", func(u Users) userMutation { return u.UnfollowPublication }))
	users.POST("/:id/organizations/:slug", h.mutateUser("slug", func(u Users) userMutation { return u.FollowOrganization }))
	users.DELETE("/:id/organizations/:slug", h.mutateUser("slug", func(u Users) userMutation { return u.UnfollowOrganization }))
	users.POST("/:id/reads/:articleID", h.mutateUser("articleID", func(u Users) userMutation { return u.ReadArticle }))
	users.GET("/:id/feed", h.UserFeed)

	admin := r.Group("/admin", adminAuth(adminToken))
	admin.POST("/refresh", h.Refresh)
	admin.POST("/featured/rotate", h.RotateFeatured)

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
