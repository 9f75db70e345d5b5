package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"fitlink/internal/auth"
	"fitlink/internal/config"
	apihttp "fitlink/internal/http"
	"fitlink/internal/service"
	"fitlink/internal/store"
	"fitlink/internal/store/memstore"
	"fitlink/internal/store/pgstore"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var docs store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()

		pg := pgstore.New(pool, logger)
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		defer pg.Close()
		docs = pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		docs = memstore.New()
	}

	var (
		loginLimiter auth.LoginRateLimiter
		tokenStore   auth.RefreshTokenStore
		redisClient  *redis.Client
	)
	loginWindow := time.Duration(cfg.LoginRateWindowSeconds) * time.Second
	loginLimiter = auth.NewLoginRateLimiter(loginWindow, cfg.LoginRateMax)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
			redisClient = nil
		} else {
			loginLimiter = auth.NewRedisLoginRateLimiter(redisClient, loginWindow, cfg.LoginRateMax)
			tokenStore = auth.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}

	jwtSvc := auth.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	policy := service.RewardPolicy{
		Solo:      cfg.XPSoloReward,
		Group:     cfg.XPGroupReward,
		LevelStep: cfg.XPLevelStep,
	}

	profileCache := service.NewProfileCache(logger, docs, redisClient)
	feedSvc := service.NewFeedService(logger, docs)
	xpSvc := service.NewXPService(logger, docs, policy)
	membershipSvc := service.NewMembershipService(logger, docs)
	sessionSvc := service.NewSessionService(logger, docs, membershipSvc, feedSvc, xpSvc, profileCache)
	rosterSvc := service.NewRosterService(logger, docs, profileCache)
	followSvc := service.NewFollowService(logger, docs, feedSvc)
	profileSvc := service.NewProfileService(logger, docs)
	quoteSvc := service.NewQuoteService(logger, docs)
	authSvc := auth.NewService(logger, docs, jwtSvc, loginLimiter, xpSvc)

	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	sessionHandler := apihttp.NewSessionHandler(logger, sessionSvc, membershipSvc, rosterSvc, profileSvc)
	profileHandler := apihttp.NewProfileHandler(logger, profileSvc, followSvc)
	feedHandler := apihttp.NewFeedHandler(logger, feedSvc, xpSvc, quoteSvc)
	wsHandler := apihttp.NewWSHandler(logger, jwtSvc, sessionSvc, rosterSvc, feedSvc)
	router := apihttp.NewRouter(logger, jwtSvc, authHandler, sessionHandler, profileHandler, feedHandler, wsHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
