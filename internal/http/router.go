package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitlink/internal/auth"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *auth.JWTService,
	authH *AuthHandler,
	sessionH *SessionHandler,
	profileH *ProfileHandler,
	feedH *FeedHandler,
	wsH *WSHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth")
	authGroup.POST("/signup", authH.SignUp)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/refresh", authH.RefreshToken)
	authGroup.POST("/logout", authH.Logout)

	api := r.Group("/", JWTAuthMiddleware(jwtSvc))

	sessions := api.Group("/sessions")
	sessions.GET("", sessionH.ListSessions)
	sessions.POST("", sessionH.CreateSession)
	sessions.GET("/current", sessionH.CurrentSession)
	sessions.GET("/:id", sessionH.GetSession)
	sessions.POST("/:id/join", sessionH.JoinSession)
	sessions.POST("/:id/exit", sessionH.ExitSession)
	sessions.POST("/:id/end", sessionH.EndSession)
	sessions.GET("/:id/roster", sessionH.GetRoster)
	sessions.GET("/:id/membership", sessionH.CheckMembership)

	api.GET("/me", profileH.GetMe)
	api.PATCH("/me/bio", profileH.UpdateBio)
	api.PUT("/me/image", profileH.UpdateImage)

	users := api.Group("/users")
	users.GET("/:id", profileH.GetUser)
	users.POST("/:id/follow", profileH.Follow)
	users.DELETE("/:id/follow", profileH.Unfollow)
	users.GET("/:id/followers", profileH.Followers)
	users.GET("/:id/following", profileH.Following)

	api.GET("/feed", feedH.GetFeed)
	api.GET("/xp", feedH.GetXP)
	api.PUT("/xp/badges", feedH.SetBadges)
	api.GET("/quotes/random", feedH.RandomQuote)

	// Las vistas en vivo autentican por query param, no por header.
	ws := r.Group("/ws")
	ws.GET("/sessions/:id", wsH.SessionStream)
	ws.GET("/feed", wsH.FeedStream)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
