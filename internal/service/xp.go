package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

var (
	ErrNegativeAward = errors.New("negative xp award")
	ErrBadgeLimit    = errors.New("too many badges selected")
	ErrBadgeNotOwned = errors.New("badge not in collection")
)

// RewardPolicy es el esquema de recompensas configurable: XP por sesión solo
// vs. grupal y el tamaño del escalón de nivel.
type RewardPolicy struct {
	Solo      int
	Group     int
	LevelStep int
}

func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{Solo: 10, Group: 20, LevelStep: 100}
}

// RewardFor devuelve la recompensa según la cantidad de participantes.
func (p RewardPolicy) RewardFor(participants int) int {
	if participants <= 1 {
		return p.Solo
	}
	return p.Group
}

// XPService mantiene los contadores de experiencia y nivel en
// usersXPsystem/{userId}, y la selección de badges del perfil.
type XPService struct {
	logger *zap.Logger
	store  store.Store
	policy RewardPolicy
}

func NewXPService(logger *zap.Logger, st store.Store, policy RewardPolicy) *XPService {
	if policy.LevelStep <= 0 {
		policy = DefaultRewardPolicy()
	}
	return &XPService{logger: logger, store: st, policy: policy}
}

func (s *XPService) Policy() RewardPolicy {
	return s.policy
}

// Award suma XP y normaliza: cada escalón cruzado incrementa el nivel y el
// XP envuelve por módulo. Si el perfil no existe lo crea con los defaults.
func (s *XPService) Award(ctx context.Context, userID string, amount int) (domain.XPProfile, error) {
	if amount < 0 {
		return domain.XPProfile{}, ErrNegativeAward
	}

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return domain.XPProfile{}, err
	}

	profile.XP += amount
	for profile.XP >= s.policy.LevelStep {
		profile.XP -= s.policy.LevelStep
		profile.Level++
	}

	data, err := store.Encode(profile)
	if err != nil {
		return domain.XPProfile{}, err
	}
	if err := s.store.Merge(ctx, xpPath(userID), data); err != nil {
		return domain.XPProfile{}, err
	}

	s.logger.Info("xp awarded",
		zap.String("user_id", userID),
		zap.Int("amount", amount),
		zap.Int("xp", profile.XP),
		zap.Int("level", profile.Level),
	)
	return profile, nil
}

// Get lee el perfil de XP; si no existe devuelve los defaults {0, 1} sin
// crearlo.
func (s *XPService) Get(ctx context.Context, userID string) (domain.XPProfile, error) {
	snap, err := s.store.Get(ctx, xpPath(userID))
	if errors.Is(err, store.ErrNotFound) {
		return domain.XPProfile{
			UserID:          userID,
			XP:              0,
			Level:           1,
			BadgeCollection: domain.DefaultBadgeCollection(),
		}, nil
	}
	if err != nil {
		return domain.XPProfile{}, err
	}

	var profile domain.XPProfile
	if err := snap.Decode(&profile); err != nil {
		return domain.XPProfile{}, err
	}
	profile.UserID = userID
	if profile.Level < 1 {
		profile.Level = 1
	}
	return profile, nil
}

// EnsureProfile crea el documento de XP una sola vez, en el signup.
func (s *XPService) EnsureProfile(ctx context.Context, userID string) error {
	_, err := s.store.Get(ctx, xpPath(userID))
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	data, err := store.Encode(domain.XPProfile{
		XP:              0,
		Level:           1,
		Badges:          []string{},
		BadgeCollection: domain.DefaultBadgeCollection(),
	})
	if err != nil {
		return err
	}
	return s.store.Set(ctx, xpPath(userID), data)
}

// SetBadges fija los badges visibles del perfil: máximo tres y todos deben
// pertenecer a la colección del usuario.
func (s *XPService) SetBadges(ctx context.Context, userID string, badges []string) error {
	if len(badges) > domain.MaxDisplayedBadges {
		return ErrBadgeLimit
	}
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	for _, badge := range badges {
		if !profile.HasBadge(badge) {
			return ErrBadgeNotOwned
		}
	}
	return s.store.Merge(ctx, xpPath(userID), map[string]any{"badges": badges})
}

// Watch entrega el perfil de XP en cada cambio (barra de progreso en vivo).
func (s *XPService) Watch(userID string, onChange func(domain.XPProfile)) (func(), error) {
	return s.store.WatchDoc(xpPath(userID), func(snap store.Snapshot, exists bool) {
		profile := domain.XPProfile{UserID: userID, Level: 1}
		if exists {
			if err := snap.Decode(&profile); err != nil {
				s.logger.Warn("xp snapshot decode failed", zap.String("user_id", userID), zap.Error(err))
				return
			}
			profile.UserID = userID
		}
		onChange(profile)
	})
}
