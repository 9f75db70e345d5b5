package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

// ProfileService lee y edita el documento de perfil en users/{userId}.
type ProfileService struct {
	logger *zap.Logger
	store  store.Store
}

func NewProfileService(logger *zap.Logger, st store.Store) *ProfileService {
	return &ProfileService{logger: logger, store: st}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (domain.User, error) {
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

func (s *ProfileService) UpdateBio(ctx context.Context, userID, bio string) error {
	return s.store.Merge(ctx, userPath(userID), map[string]any{"bio": bio})
}

// UpdateImage guarda la imagen de perfil como blob base64, con merge para no
// pisar el resto del documento.
func (s *ProfileService) UpdateImage(ctx context.Context, userID, imageBase64 string) error {
	return s.store.Merge(ctx, userPath(userID), map[string]any{"profileImage": imageBase64})
}

// Watch entrega el perfil en cada cambio; exists=false si el documento falta.
func (s *ProfileService) Watch(userID string, onChange func(domain.User, bool)) (func(), error) {
	return s.store.WatchDoc(userPath(userID), func(snap store.Snapshot, exists bool) {
		if !exists {
			onChange(domain.User{ID: userID}, false)
			return
		}
		var user domain.User
		if err := snap.Decode(&user); err != nil {
			s.logger.Warn("profile snapshot decode failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		user.ID = userID
		onChange(user, true)
	})
}
