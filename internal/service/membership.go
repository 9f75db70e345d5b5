package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionEnded     = errors.New("session ended")
	ErrAlreadyInSession = errors.New("already in another session")
)

// MembershipService hace cumplir la invariante de una sola sesión activa por
// usuario: join, exit y las consultas de membresía.
//
// El chequeo "no está en otra sesión" seguido del write es una carrera
// read-then-write si corre concurrente; joinMu serializa los joins dentro del
// proceso y el batch atómico mantiene consistentes participante, usuario e
// índice entre sí.
type MembershipService struct {
	logger *zap.Logger
	store  store.Store
	joinMu sync.Mutex
}

func NewMembershipService(logger *zap.Logger, st store.Store) *MembershipService {
	return &MembershipService{logger: logger, store: st}
}

// Join agrega al usuario a la sesión. Es un upsert idempotente: repetir el
// join de la misma sesión es éxito. Falla con ErrSessionNotFound,
// ErrSessionEnded o ErrAlreadyInSession según corresponda.
func (s *MembershipService) Join(ctx context.Context, sessionID string, user domain.User) error {
	s.joinMu.Lock()
	defer s.joinMu.Unlock()

	snap, err := s.store.Get(ctx, sessionPath(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	var sess domain.Session
	if err := snap.Decode(&sess); err != nil {
		return err
	}
	if !sess.IsActive {
		return ErrSessionEnded
	}

	current, found, err := s.FindActiveSessionFor(ctx, user.ID)
	if err != nil {
		return err
	}
	if found && current != sessionID {
		return ErrAlreadyInSession
	}

	participant := map[string]any{
		"uid":      user.ID,
		"name":     displayNameOf(user),
		"email":    user.Email,
		"joinedAt": store.ServerTimestamp,
	}
	index := map[string]any{
		"sessionId": sessionID,
		"updatedAt": store.ServerTimestamp,
	}

	return s.store.Apply(ctx, []store.Op{
		store.MergeOp(participantPath(sessionID, user.ID), participant),
		store.MergeOp(userPath(user.ID), map[string]any{"currentSessionId": sessionID}),
		store.SetOp(sessionIndexPath(user.ID), index),
	})
}

// Exit borra la membresía. Es idempotente: salir dos veces es un no-op
// exitoso, no un error.
func (s *MembershipService) Exit(ctx context.Context, sessionID, userID string) error {
	return s.store.Apply(ctx, []store.Op{
		store.DeleteOp(participantPath(sessionID, userID)),
		store.MergeOp(userPath(userID), map[string]any{"currentSessionId": nil}),
		store.DeleteOp(sessionIndexPath(userID)),
	})
}

// CheckMembership es la lectura puntual del documento de participante.
func (s *MembershipService) CheckMembership(ctx context.Context, sessionID, userID string) (bool, error) {
	_, err := s.store.Get(ctx, participantPath(sessionID, userID))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindActiveSessionFor devuelve la sesión activa del usuario, si hay una.
// Consulta primero el documento de índice y lo verifica; si falta o quedó
// stale cae al scan O(sesiones activas) sobre las subcolecciones de
// participantes. Si el usuario aparece en más de una sesión activa (invariante
// rota) gana la primera del orden de scan.
func (s *MembershipService) FindActiveSessionFor(ctx context.Context, userID string) (string, bool, error) {
	if sessionID, ok := s.lookupIndex(ctx, userID); ok {
		return sessionID, true, nil
	}

	snaps, err := s.store.List(ctx, sessionsCollection, store.Where("isActive", true))
	if err != nil {
		return "", false, err
	}
	for _, snap := range snaps {
		sessionID := snap.ID()
		member, err := s.CheckMembership(ctx, sessionID, userID)
		if err != nil {
			return "", false, err
		}
		if member {
			return sessionID, true, nil
		}
	}
	return "", false, nil
}

// lookupIndex lee sessionIndex/{uid} y confirma que siga apuntando a una
// membresía real en una sesión activa.
func (s *MembershipService) lookupIndex(ctx context.Context, userID string) (string, bool) {
	snap, err := s.store.Get(ctx, sessionIndexPath(userID))
	if err != nil {
		return "", false
	}
	sessionID, _ := snap.Data["sessionId"].(string)
	if sessionID == "" {
		return "", false
	}

	member, err := s.CheckMembership(ctx, sessionID, userID)
	if err != nil || !member {
		return "", false
	}
	sessSnap, err := s.store.Get(ctx, sessionPath(sessionID))
	if err != nil {
		return "", false
	}
	var sess domain.Session
	if err := sessSnap.Decode(&sess); err != nil || !sess.IsActive {
		return "", false
	}
	return sessionID, true
}

func displayNameOf(user domain.User) string {
	if user.Name != "" {
		return user.Name
	}
	if user.Email != "" {
		return user.Email
	}
	return "Anonymous"
}
