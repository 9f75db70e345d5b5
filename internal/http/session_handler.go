package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/service"
)

// SessionHandler mantiene dependencias para los endpoints de sesiones.
type SessionHandler struct {
	logger     *zap.Logger
	sessions   *service.SessionService
	membership *service.MembershipService
	roster     *service.RosterService
	profiles   *service.ProfileService
}

// NewSessionHandler crea una instancia de SessionHandler con dependencias necesarias.
func NewSessionHandler(
	logger *zap.Logger,
	sessions *service.SessionService,
	membership *service.MembershipService,
	roster *service.RosterService,
	profiles *service.ProfileService,
) *SessionHandler {
	return &SessionHandler{
		logger:     logger,
		sessions:   sessions,
		membership: membership,
		roster:     roster,
		profiles:   profiles,
	}
}

// currentUser resuelve el usuario autenticado; si el documento de perfil no
// existe todavía, cae a los datos del token.
func (h *SessionHandler) currentUser(c *gin.Context) (domain.User, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return domain.User{}, false
	}
	user, err := h.profiles.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		if !errors.Is(err, service.ErrUserNotFound) {
			h.logger.Error("load user failed", zap.Error(err), zap.String("user_id", claims.UserID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
			return domain.User{}, false
		}
		user = domain.User{ID: claims.UserID, Name: claims.Name, Email: claims.Email}
	}
	return user, true
}

// CreateSession maneja POST /sessions.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Name     string `json:"name" binding:"required"`
		Movement string `json:"movement" binding:"required"`
		IsPublic bool   `json:"isPublic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create session request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), user, service.CreateSessionInput{
		Name:     req.Name,
		Movement: req.Movement,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		if errors.Is(err, service.ErrAlreadyInSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "already in another session"})
			return
		}
		h.logger.Error("create session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": sessionBody(session)})
}

// ListSessions maneja GET /sessions.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	claims, _ := GetAuthClaims(c)

	summaries, err := h.sessions.ListPublic(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list sessions"})
		return
	}

	items := make([]gin.H, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, gin.H{
			"session":          sessionBody(s.Session),
			"participantCount": s.ParticipantCount,
			"isCurrent":        s.IsCurrent,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": items})
}

// GetSession maneja GET /sessions/:id.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("id")

	session, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Error("get session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get session"})
		return
	}

	entries, err := h.roster.Snapshot(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("roster snapshot failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get roster"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sessionBody(session), "roster": entries})
}

// CurrentSession maneja GET /sessions/current.
func (h *SessionHandler) CurrentSession(c *gin.Context) {
	claims, _ := GetAuthClaims(c)

	sessionID, found, err := h.membership.FindActiveSessionFor(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("find current session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve current session"})
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"sessionId": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID})
}

// JoinSession maneja POST /sessions/:id/join.
func (h *SessionHandler) JoinSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	sessionID := c.Param("id")

	if err := h.membership.Join(c.Request.Context(), sessionID, user); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, service.ErrSessionEnded):
			c.JSON(http.StatusConflict, gin.H{"error": "session already ended"})
		case errors.Is(err, service.ErrAlreadyInSession):
			c.JSON(http.StatusConflict, gin.H{"error": "already in another session"})
		default:
			h.logger.Error("join session failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join session"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "joined", "sessionId": sessionID})
}

// ExitSession maneja POST /sessions/:id/exit.
func (h *SessionHandler) ExitSession(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	sessionID := c.Param("id")

	if err := h.membership.Exit(c.Request.Context(), sessionID, claims.UserID); err != nil {
		h.logger.Error("exit session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not exit session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "exited"})
}

// EndSession maneja POST /sessions/:id/end.
func (h *SessionHandler) EndSession(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	sessionID := c.Param("id")

	report, err := h.sessions.End(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, service.ErrSessionEnded):
			c.JSON(http.StatusConflict, gin.H{"error": "session already ended"})
		case errors.Is(err, service.ErrNotCreator):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can end the session"})
		default:
			h.logger.Error("end session failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not end session"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":    report.SessionID,
		"participants": report.Participants,
		"notified":     len(report.Notified.Succeeded),
		"failures": gin.H{
			"notify": len(report.Notified.Failed),
			"clear":  len(report.Cleared.Failed),
			"xp":     len(report.XP.Failed),
		},
	})
}

// GetRoster maneja GET /sessions/:id/roster.
func (h *SessionHandler) GetRoster(c *gin.Context) {
	sessionID := c.Param("id")

	entries, err := h.roster.Snapshot(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("roster snapshot failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get roster"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"roster": entries})
}

// CheckMembership maneja GET /sessions/:id/membership.
func (h *SessionHandler) CheckMembership(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	sessionID := c.Param("id")

	member, err := h.membership.CheckMembership(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.logger.Error("check membership failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not check membership"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"member": member})
}
