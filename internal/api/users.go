package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"volume/internal/domain"
)

type createUserRequest struct {
	DeviceToken          string   `json:"deviceToken"`
	DeviceType           string   `json:"deviceType" binding:"required"`
	FollowedPublications []string `json:"followedPublications"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Users.CreateUser(c.Request.Context(), req.DeviceToken, req.DeviceType, req.FollowedPublications)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type userMutation func(ctx context.Context, uuid, target string) (*domain.User, error)

// mutateUser wraps a set operation on one of the user's lists; target is
// read from the named path parameter. An unknown user is answered with null.
func (h *Handler) mutateUser(param string, op func(Users) userMutation) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := op(h.Users)(c.Request.Context(), c.Param("id"), c.Param(param))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func (h *Handler) UserFeed(c *gin.Context) {
	offset, limit := page(c)
	articles, err := h.Users.Feed(c.Request.Context(), c.Param("id"), offset, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, articles)
}
