package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitlink/internal/service"
)

// FeedHandler mantiene dependencias para los endpoints del dashboard: feed
// social, experiencia y frase motivacional.
type FeedHandler struct {
	logger *zap.Logger
	feed   *service.FeedService
	xp     *service.XPService
	quotes *service.QuoteService
}

// NewFeedHandler crea una instancia de FeedHandler con dependencias necesarias.
func NewFeedHandler(logger *zap.Logger, feed *service.FeedService, xp *service.XPService, quotes *service.QuoteService) *FeedHandler {
	return &FeedHandler{
		logger: logger,
		feed:   feed,
		xp:     xp,
		quotes: quotes,
	}
}

// GetFeed maneja GET /feed.
func (h *FeedHandler) GetFeed(c *gin.Context) {
	claims, _ := GetAuthClaims(c)

	events, err := h.feed.List(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list feed failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list feed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetXP maneja GET /xp.
func (h *FeedHandler) GetXP(c *gin.Context) {
	claims, _ := GetAuthClaims(c)

	profile, err := h.xp.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("get xp failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get xp"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"xp": profile})
}

// SetBadges maneja PUT /xp/badges.
func (h *FeedHandler) SetBadges(c *gin.Context) {
	claims, _ := GetAuthClaims(c)

	var req struct {
		Badges []string `json:"badges"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid badges request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.xp.SetBadges(c.Request.Context(), claims.UserID, req.Badges); err != nil {
		switch {
		case errors.Is(err, service.ErrBadgeLimit), errors.Is(err, service.ErrBadgeNotOwned):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("set badges failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not set badges"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// RandomQuote maneja GET /quotes/random.
func (h *FeedHandler) RandomQuote(c *gin.Context) {
	quote, err := h.quotes.Random(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoQuotes) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no quotes available"})
			return
		}
		h.logger.Error("random quote failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get quote"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote})
}
