package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

// ProfileCache memoiza perfiles de usuario por id durante la vida del
// proceso; nunca invalida ni refresca. Un perfil que falla al resolverse se
// cachea vacío en vez de romper el render que lo pidió. Opcionalmente usa
// Redis como capa compartida delante del store.
type ProfileCache struct {
	logger *zap.Logger
	store  store.Store
	local  *gocache.Cache
	redis  *redis.Client
}

const profileRedisPrefix = "profile:"

func NewProfileCache(logger *zap.Logger, st store.Store, redisClient *redis.Client) *ProfileCache {
	return &ProfileCache{
		logger: logger,
		store:  st,
		local:  gocache.New(gocache.NoExpiration, 0),
		redis:  redisClient,
	}
}

// Get devuelve el perfil memoizado o lo resuelve y cachea. Nunca falla:
// cualquier error degrada a perfil vacío.
func (c *ProfileCache) Get(ctx context.Context, userID string) domain.Profile {
	if userID == "" {
		return domain.Profile{}
	}
	if cached, ok := c.local.Get(userID); ok {
		return cached.(domain.Profile)
	}

	profile := c.fetch(ctx, userID)
	c.local.Set(userID, profile, gocache.NoExpiration)
	return profile
}

// GetMany resuelve solo los ids que faltan en cache, en paralelo, y devuelve
// los perfiles en el orden de entrada. Cada falla individual se sustituye por
// un perfil vacío.
func (c *ProfileCache) GetMany(ctx context.Context, userIDs []string) []domain.Profile {
	var missing []string
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := c.local.Get(id); !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		var wg sync.WaitGroup
		for _, id := range missing {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				profile := c.fetch(ctx, id)
				c.local.Set(id, profile, gocache.NoExpiration)
			}(id)
		}
		wg.Wait()
	}

	out := make([]domain.Profile, len(userIDs))
	for i, id := range userIDs {
		if cached, ok := c.local.Get(id); ok {
			out[i] = cached.(domain.Profile)
		}
	}
	return out
}

func (c *ProfileCache) fetch(ctx context.Context, userID string) domain.Profile {
	if profile, ok := c.fromRedis(userID); ok {
		return profile
	}

	snap, err := c.store.Get(ctx, userPath(userID))
	if err != nil {
		c.logger.Warn("profile fetch failed", zap.String("user_id", userID), zap.Error(err))
		return domain.Profile{}
	}

	var user domain.User
	if err := snap.Decode(&user); err != nil {
		c.logger.Warn("profile decode failed", zap.String("user_id", userID), zap.Error(err))
		return domain.Profile{}
	}
	user.ID = userID

	profile := domain.ProfileOf(user)
	c.toRedis(userID, profile)
	return profile
}

func (c *ProfileCache) fromRedis(userID string) (domain.Profile, bool) {
	if c.redis == nil {
		return domain.Profile{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	raw, err := c.redis.Get(ctx, profileRedisPrefix+userID).Bytes()
	if err != nil {
		return domain.Profile{}, false
	}
	var profile domain.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return domain.Profile{}, false
	}
	return profile, true
}

func (c *ProfileCache) toRedis(userID string, profile domain.Profile) {
	if c.redis == nil || profile.ID == "" {
		return
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := c.redis.Set(ctx, profileRedisPrefix+userID, raw, 0).Err(); err != nil {
		c.logger.Warn("profile redis set failed", zap.String("user_id", userID), zap.Error(err))
	}
}
