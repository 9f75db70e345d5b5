package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fitlink/internal/auth"
	"fitlink/internal/domain"
	"fitlink/internal/service"
)

const wsWriteTimeout = 10 * time.Second

// WSHandler expone las vistas en vivo por WebSocket. Cada mensaje es un
// snapshot completo del estado, nunca un delta.
type WSHandler struct {
	logger   *zap.Logger
	jwt      *auth.JWTService
	sessions *service.SessionService
	roster   *service.RosterService
	feed     *service.FeedService
	upgrader websocket.Upgrader
}

func NewWSHandler(
	logger *zap.Logger,
	jwt *auth.JWTService,
	sessions *service.SessionService,
	roster *service.RosterService,
	feed *service.FeedService,
) *WSHandler {
	return &WSHandler{
		logger:   logger,
		jwt:      jwt,
		sessions: sessions,
		roster:   roster,
		feed:     feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// El token del query param ya autentica la conexión.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// wsConn serializa las escrituras: los callbacks de suscripción llegan desde
// goroutines distintas y gorilla no admite escritores concurrentes.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteJSON(v)
}

func (w *wsConn) close() {
	_ = w.conn.Close()
}

// authenticate valida el access token del query param. Los WebSocket del
// navegador no pueden mandar el header Authorization.
func (h *WSHandler) authenticate(c *gin.Context) (auth.Claims, bool) {
	claims, err := h.jwt.ParseAccessToken(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return auth.Claims{}, false
	}
	return claims, true
}

// SessionStream maneja GET /ws/sessions/:id: empuja la sesión y el roster en
// cada cambio hasta que el cliente cierra.
func (h *WSHandler) SessionStream(c *gin.Context) {
	if _, ok := h.authenticate(c); !ok {
		return
	}
	sessionID := c.Param("id")

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	ws := &wsConn{conn: raw}
	defer ws.close()

	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	unsubSession, err := h.sessions.Watch(sessionID, func(session domain.Session, exists bool) {
		if !exists {
			_ = ws.send(gin.H{"type": "deleted", "sessionId": sessionID})
			finish()
			return
		}
		if err := ws.send(gin.H{"type": "session", "session": sessionBody(session)}); err != nil {
			finish()
		}
	})
	if err != nil {
		h.logger.Error("session watch failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	defer unsubSession()

	unsubRoster, err := h.roster.Subscribe(sessionID, func(entries []service.RosterEntry) {
		if err := ws.send(gin.H{"type": "roster", "roster": entries}); err != nil {
			finish()
		}
	})
	if err != nil {
		h.logger.Error("roster subscribe failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	defer unsubRoster()

	go func() {
		for {
			if _, _, err := raw.ReadMessage(); err != nil {
				finish()
				return
			}
		}
	}()

	<-done
}

// FeedStream maneja GET /ws/feed: empuja el feed completo del usuario en
// cada cambio.
func (h *WSHandler) FeedStream(c *gin.Context) {
	claims, ok := h.authenticate(c)
	if !ok {
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	ws := &wsConn{conn: raw}
	defer ws.close()

	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	unsub, err := h.feed.Watch(claims.UserID, func(events []domain.FeedEvent) {
		if err := ws.send(gin.H{"type": "feed", "events": events}); err != nil {
			finish()
		}
	})
	if err != nil {
		h.logger.Error("feed watch failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}
	defer unsub()

	go func() {
		for {
			if _, _, err := raw.ReadMessage(); err != nil {
				finish()
				return
			}
		}
	}()

	<-done
}
