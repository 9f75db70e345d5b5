package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitlink/internal/service"
)

// ProfileHandler mantiene dependencias para endpoints de perfil y follows.
type ProfileHandler struct {
	logger   *zap.Logger
	profiles *service.ProfileService
	follows  *service.FollowService
}

// NewProfileHandler crea una instancia de ProfileHandler con dependencias necesarias.
func NewProfileHandler(logger *zap.Logger, profiles *service.ProfileService, follows *service.FollowService) *ProfileHandler {
	return &ProfileHandler{
		logger:   logger,
		profiles: profiles,
		follows:  follows,
	}
}

// GetMe maneja GET /me.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	h.respondUser(c, claims.UserID)
}

// GetUser maneja GET /users/:id.
func (h *ProfileHandler) GetUser(c *gin.Context) {
	h.respondUser(c, c.Param("id"))
}

func (h *ProfileHandler) respondUser(c *gin.Context, userID string) {
	user, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("get user failed", zap.Error(err), zap.String("user_id", userID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userBody(user)})
}

// UpdateBio maneja PATCH /me/bio.
func (h *ProfileHandler) UpdateBio(c *gin.Context) {
	claims, _ := GetAuthClaims(c)

	var req struct {
		Bio string `json:"bio" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid bio request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.profiles.UpdateBio(c.Request.Context(), claims.UserID, req.Bio); err != nil {
		h.logger.Error("update bio failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update bio"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// UpdateImage maneja PUT /me/image.
func (h *ProfileHandler) UpdateImage(c *gin.Context) {
	claims, _ := GetAuthClaims(c)

	var req struct {
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid image request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.profiles.UpdateImage(c.Request.Context(), claims.UserID, req.Image); err != nil {
		h.logger.Error("update image failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update image"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Follow maneja POST /users/:id/follow.
func (h *ProfileHandler) Follow(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	targetID := c.Param("id")

	if err := h.follows.Follow(c.Request.Context(), claims.UserID, targetID); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, service.ErrSelfFollow):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot follow yourself"})
		default:
			h.logger.Error("follow failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not follow"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "following"})
}

// Unfollow maneja DELETE /users/:id/follow.
func (h *ProfileHandler) Unfollow(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	targetID := c.Param("id")

	if err := h.follows.Unfollow(c.Request.Context(), claims.UserID, targetID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("unfollow failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not unfollow"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unfollowed"})
}

// Followers maneja GET /users/:id/followers.
func (h *ProfileHandler) Followers(c *gin.Context) {
	h.respondFollowList(c, service.FollowListFollowers)
}

// Following maneja GET /users/:id/following.
func (h *ProfileHandler) Following(c *gin.Context) {
	h.respondFollowList(c, service.FollowListFollowing)
}

func (h *ProfileHandler) respondFollowList(c *gin.Context, kind service.FollowListKind) {
	userID := c.Param("id")

	profiles, err := h.follows.FollowList(c.Request.Context(), userID, kind)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("follow list failed", zap.Error(err), zap.String("kind", string(kind)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": profiles})
}
