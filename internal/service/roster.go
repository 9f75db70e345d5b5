package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

// RosterEntry es una fila de la lista de participantes, ya enriquecida con
// el perfil del usuario.
type RosterEntry struct {
	UserID   string           `json:"uid"`
	Name     string           `json:"name"`
	Email    string           `json:"email,omitempty"`
	Avatar   string           `json:"avatar,omitempty"`
	JoinedAt domain.Timestamp `json:"joinedAt"`
	IsHost   bool             `json:"isHost"`
}

// RosterService arma la vista en vivo de participantes de una sesión,
// ordenada por hora de ingreso.
type RosterService struct {
	logger   *zap.Logger
	store    store.Store
	profiles *ProfileCache
}

func NewRosterService(logger *zap.Logger, st store.Store, profiles *ProfileCache) *RosterService {
	return &RosterService{logger: logger, store: st, profiles: profiles}
}

// Snapshot devuelve el roster actual de la sesión.
func (s *RosterService) Snapshot(ctx context.Context, sessionID string) ([]RosterEntry, error) {
	snaps, err := s.store.List(ctx, participantsPath(sessionID), store.OrderByAsc("joinedAt"))
	if err != nil {
		return nil, err
	}
	return s.build(ctx, sessionID, snaps)
}

// Subscribe registra la vista en vivo. onChange recibe el roster completo en
// cada cambio. El caller es dueño del handle devuelto y debe llamarlo al
// desmontar la vista para liberar la suscripción.
func (s *RosterService) Subscribe(sessionID string, onChange func([]RosterEntry)) (func(), error) {
	return s.store.WatchCollection(participantsPath(sessionID), func(snaps []store.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entries, err := s.build(ctx, sessionID, snaps)
		if err != nil {
			s.logger.Warn("roster refresh failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		onChange(entries)
	}, store.OrderByAsc("joinedAt"))
}

// build enriquece los documentos de participante con los perfiles y marca al
// host comparando contra el creatorId de la sesión, resuelto en cada refresh.
func (s *RosterService) build(ctx context.Context, sessionID string, snaps []store.Snapshot) ([]RosterEntry, error) {
	participants := make([]domain.Participant, 0, len(snaps))
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		var p domain.Participant
		if err := snap.Decode(&p); err != nil {
			s.logger.Warn("participant decode failed", zap.String("path", snap.Path), zap.Error(err))
			continue
		}
		p.SessionID = sessionID
		if p.UserID == "" {
			p.UserID = snap.ID()
		}
		participants = append(participants, p)
		ids = append(ids, p.UserID)
	}

	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})

	creatorID := ""
	sessSnap, err := s.store.Get(ctx, sessionPath(sessionID))
	if err == nil {
		var sess domain.Session
		if decodeErr := sessSnap.Decode(&sess); decodeErr == nil {
			creatorID = sess.CreatorID
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	profiles := s.profiles.GetMany(ctx, ids)
	byID := make(map[string]domain.Profile, len(profiles))
	for _, p := range profiles {
		if p.ID != "" {
			byID[p.ID] = p
		}
	}

	entries := make([]RosterEntry, 0, len(participants))
	for _, p := range participants {
		profile := byID[p.UserID]
		name := profile.Name
		if name == "" {
			name = p.Name
		}
		if name == "" {
			name = "Unknown"
		}
		email := profile.Email
		if email == "" {
			email = p.Email
		}
		entries = append(entries, RosterEntry{
			UserID:   p.UserID,
			Name:     name,
			Email:    email,
			Avatar:   profile.ProfileImage,
			JoinedAt: p.JoinedAt,
			IsHost:   p.UserID == creatorID,
		})
	}
	return entries, nil
}
