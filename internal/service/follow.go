package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfFollow   = errors.New("cannot follow yourself")
)

// FollowService mantiene los arreglos followers/following de ambos lados y
// publica el evento de follow en el feed del usuario seguido.
type FollowService struct {
	logger *zap.Logger
	store  store.Store
	feed   *FeedService
}

func NewFollowService(logger *zap.Logger, st store.Store, feed *FeedService) *FollowService {
	return &FollowService{logger: logger, store: st, feed: feed}
}

// Follow agrega la relación en ambos documentos y escribe el evento con el
// snapshot de identidad del seguidor al momento de la acción. La mutación de
// los arreglos es una transformación atómica del store, así follows
// concurrentes sobre el mismo usuario no se pisan. La entrega del evento es
// best-effort.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID string) error {
	if followerID == targetID {
		return ErrSelfFollow
	}

	follower, err := s.getUser(ctx, followerID)
	if err != nil {
		return err
	}
	if _, err := s.getUser(ctx, targetID); err != nil {
		return err
	}

	if err := s.store.Apply(ctx, []store.Op{
		store.MergeOp(userPath(followerID), map[string]any{
			"following": store.ArrayUnion(targetID),
		}),
		store.MergeOp(userPath(targetID), map[string]any{
			"followers": store.ArrayUnion(followerID),
		}),
	}); err != nil {
		return err
	}

	event := domain.NewFollowEvent(domain.ProfileOf(follower))
	if result := s.feed.Notify(ctx, []string{targetID}, event); !result.Ok() {
		s.logger.Warn("follow event delivery failed",
			zap.String("follower_id", followerID),
			zap.String("target_id", targetID),
		)
	}
	return nil
}

// Unfollow quita la relación de ambos lados con una transformación atómica.
// Idempotente y sin evento.
func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID string) error {
	if followerID == targetID {
		return ErrSelfFollow
	}

	if _, err := s.getUser(ctx, followerID); err != nil {
		return err
	}
	if _, err := s.getUser(ctx, targetID); err != nil {
		return err
	}

	return s.store.Apply(ctx, []store.Op{
		store.MergeOp(userPath(followerID), map[string]any{
			"following": store.ArrayRemove(targetID),
		}),
		store.MergeOp(userPath(targetID), map[string]any{
			"followers": store.ArrayRemove(followerID),
		}),
	})
}

// FollowListKind distingue las dos listas del modal de perfil.
type FollowListKind string

const (
	FollowListFollowers FollowListKind = "followers"
	FollowListFollowing FollowListKind = "following"
)

// FollowList resuelve los perfiles de la lista pedida, en el orden guardado.
func (s *FollowService) FollowList(ctx context.Context, userID string, kind FollowListKind) ([]domain.Profile, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := user.Followers
	if kind == FollowListFollowing {
		ids = user.Following
	}

	profiles := make([]domain.Profile, 0, len(ids))
	for _, id := range ids {
		snap, err := s.store.Get(ctx, userPath(id))
		if err != nil {
			// Cuentas borradas se omiten, como en el modal original.
			continue
		}
		var u domain.User
		if err := snap.Decode(&u); err != nil {
			continue
		}
		u.ID = id
		profiles = append(profiles, domain.ProfileOf(u))
	}
	return profiles, nil
}

func (s *FollowService) getUser(ctx context.Context, userID string) (domain.User, error) {
	snap, err := s.store.Get(ctx, userPath(userID))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	if err := snap.Decode(&user); err != nil {
		return domain.User{}, err
	}
	user.ID = userID
	return user, nil
}

