package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func adminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (h *Handler) Refresh(c *gin.Context) {
	stats, err := h.Refresher.RefreshAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sources":       stats.Sources,
		"failedSources": stats.FailedSources,
		"fetched":       stats.Fetched,
		"inserted":      stats.Inserted,
		"skipped":       stats.Skipped,
		"notified":      stats.Notified,
		"durationMs":    stats.Duration.Milliseconds(),
	})
}

func (h *Handler) RotateFeatured(c *gin.Context) {
	stats, err := h.Featured.Rotate(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"candidates": stats.Candidates,
		"featured":   stats.Featured,
		"unfeatured": stats.Unfeatured,
		"errors":     stats.Errors,
	})
}
