package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

// ErrNotCreator: solo quien creó la sesión puede terminarla. La autorización
// se verifica acá, en el borde de la mutación, no solo en la UI.
var ErrNotCreator = errors.New("only the session creator can end it")

// SessionService maneja el ciclo de vida Active → Ended de las sesiones y
// dispara los efectos del cierre: fan-out al feed, limpieza de membresías y
// reparto de XP.
type SessionService struct {
	logger     *zap.Logger
	store      store.Store
	membership *MembershipService
	feed       *FeedService
	xp         *XPService
	profiles   *ProfileCache
}

func NewSessionService(
	logger *zap.Logger,
	st store.Store,
	membership *MembershipService,
	feed *FeedService,
	xp *XPService,
	profiles *ProfileCache,
) *SessionService {
	return &SessionService{
		logger:     logger,
		store:      st,
		membership: membership,
		feed:       feed,
		xp:         xp,
		profiles:   profiles,
	}
}

// CreateSessionInput son los datos del formulario de creación.
type CreateSessionInput struct {
	Name     string
	Movement string
	IsPublic bool
}

// EndReport expone el resultado del cierre, incluidas las fallas parciales de
// cada etapa best-effort.
type EndReport struct {
	SessionID    string
	Participants []string
	Notified     FanoutResult
	Cleared      FanoutResult
	XP           FanoutResult
}

// SessionSummary es una fila del listado público de sesiones.
type SessionSummary struct {
	Session          domain.Session `json:"session"`
	ParticipantCount int            `json:"participantCount"`
	IsCurrent        bool           `json:"isCurrent"`
}

// Create crea la sesión y auto-une al creador como primer participante. Un
// usuario con sesión activa no puede crear otra.
func (s *SessionService) Create(ctx context.Context, creator domain.User, in CreateSessionInput) (domain.Session, error) {
	if _, found, err := s.membership.FindActiveSessionFor(ctx, creator.ID); err != nil {
		return domain.Session{}, err
	} else if found {
		return domain.Session{}, ErrAlreadyInSession
	}

	sessionID := uuid.NewString()
	data := map[string]any{
		"uid":         creator.ID,
		"name":        in.Name,
		"movement":    in.Movement,
		"creatorName": displayNameOf(creator),
		"isPublic":    in.IsPublic,
		"isActive":    true,
		"createdAt":   store.ServerTimestamp,
	}
	if err := s.store.Set(ctx, sessionPath(sessionID), data); err != nil {
		return domain.Session{}, err
	}

	if err := s.membership.Join(ctx, sessionID, creator); err != nil {
		s.logger.Error("creator auto-join failed",
			zap.String("session_id", sessionID),
			zap.String("user_id", creator.ID),
			zap.Error(err),
		)
		return domain.Session{}, err
	}

	s.logger.Info("session created",
		zap.String("session_id", sessionID),
		zap.String("creator_id", creator.ID),
		zap.String("movement", in.Movement),
	)
	return s.Get(ctx, sessionID)
}

// Get lee la sesión; ErrSessionNotFound si no existe.
func (s *SessionService) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	snap, err := s.store.Get(ctx, sessionPath(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	var sess domain.Session
	if err := snap.Decode(&sess); err != nil {
		return domain.Session{}, err
	}
	sess.ID = sessionID
	return sess, nil
}

// End ejecuta la transición Active → Ended. Solo el creador puede terminarla
// y repetir el cierre es un no-op guardado que devuelve ErrSessionEnded sin
// mutar nada. La transición primaria (marcar la sesión) se reporta al caller
// si falla; todo lo posterior es best-effort por destinatario.
func (s *SessionService) End(ctx context.Context, sessionID, callerID string) (EndReport, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return EndReport{}, err
	}
	if !sess.IsActive {
		return EndReport{}, ErrSessionEnded
	}
	if sess.CreatorID != callerID {
		return EndReport{}, ErrNotCreator
	}

	// Snapshot del conjunto de participantes al momento del cierre.
	participantSnaps, err := s.store.List(ctx, participantsPath(sessionID), store.OrderByAsc("joinedAt"))
	if err != nil {
		return EndReport{}, err
	}
	participantIDs := make([]string, 0, len(participantSnaps))
	for _, snap := range participantSnaps {
		participantIDs = append(participantIDs, snap.ID())
	}

	if err := s.store.Merge(ctx, sessionPath(sessionID), map[string]any{
		"isActive": false,
		"endedAt":  store.ServerTimestamp,
	}); err != nil {
		return EndReport{}, err
	}

	report := EndReport{SessionID: sessionID, Participants: participantIDs}

	notifyIDs := s.notifySet(ctx, sess.CreatorID, participantIDs)
	creator := s.profiles.Get(ctx, sess.CreatorID)
	event := domain.NewSessionEndedEvent(sess, creator, participantIDs)
	report.Notified = s.feed.Notify(ctx, notifyIDs, event)

	report.Cleared = s.clearMemberships(ctx, sessionID, participantIDs)

	reward := s.xp.Policy().RewardFor(len(participantIDs))
	for _, uid := range participantIDs {
		if _, err := s.xp.Award(ctx, uid, reward); err != nil {
			report.XP.Failed = append(report.XP.Failed, FanoutFailure{ID: uid, Err: err})
			continue
		}
		report.XP.Succeeded = append(report.XP.Succeeded, uid)
	}

	s.logger.Info("session ended",
		zap.String("session_id", sessionID),
		zap.Int("participants", len(participantIDs)),
		zap.Int("notified", len(report.Notified.Succeeded)),
		zap.Int("notify_failures", len(report.Notified.Failed)),
	)
	return report, nil
}

// notifySet arma el conjunto a notificar: participantes más sus seguidores,
// y en sesión solo también los seguidores del creador. Deduplicado en orden
// de aparición.
func (s *SessionService) notifySet(ctx context.Context, creatorID string, participantIDs []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, pid := range participantIDs {
		add(pid)
	}
	for _, pid := range participantIDs {
		for _, follower := range s.followersOf(ctx, pid) {
			add(follower)
		}
	}
	if len(participantIDs) == 1 {
		for _, follower := range s.followersOf(ctx, creatorID) {
			add(follower)
		}
	}
	return out
}

func (s *SessionService) followersOf(ctx context.Context, userID string) []string {
	snap, err := s.store.Get(ctx, userPath(userID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("followers read failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	var user domain.User
	if err := snap.Decode(&user); err != nil {
		s.logger.Warn("followers decode failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return user.Followers
}

// clearMemberships borra las filas de participante (la variante canónica),
// el índice de sesión y el currentSessionId de cada participante. Cada
// participante es un batch independiente para que una falla no arrastre al
// resto.
func (s *SessionService) clearMemberships(ctx context.Context, sessionID string, participantIDs []string) FanoutResult {
	var result FanoutResult
	for _, uid := range participantIDs {
		err := s.store.Apply(ctx, []store.Op{
			store.DeleteOp(participantPath(sessionID, uid)),
			store.DeleteOp(sessionIndexPath(uid)),
			store.MergeOp(userPath(uid), map[string]any{"currentSessionId": nil}),
		})
		if err != nil {
			s.logger.Warn("membership clear failed",
				zap.String("session_id", sessionID),
				zap.String("user_id", uid),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, FanoutFailure{ID: uid, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, uid)
	}
	return result
}

// ListPublic devuelve las sesiones públicas ordenadas por creación
// descendente, con conteo de participantes. La sesión actual del viewer, si
// tiene una, va primera.
func (s *SessionService) ListPublic(ctx context.Context, viewerID string) ([]SessionSummary, error) {
	snaps, err := s.store.List(ctx, sessionsCollection,
		store.Where("isPublic", true),
		store.OrderByDesc("createdAt"),
	)
	if err != nil {
		return nil, err
	}

	currentID := ""
	if viewerID != "" {
		if id, found, err := s.membership.FindActiveSessionFor(ctx, viewerID); err == nil && found {
			currentID = id
		}
	}

	summaries := make([]SessionSummary, 0, len(snaps))
	var pinned *SessionSummary
	for _, snap := range snaps {
		var sess domain.Session
		if err := snap.Decode(&sess); err != nil {
			s.logger.Warn("session decode failed", zap.String("path", snap.Path), zap.Error(err))
			continue
		}
		sess.ID = snap.ID()

		participants, err := s.store.List(ctx, participantsPath(sess.ID))
		if err != nil {
			s.logger.Warn("participant count failed", zap.String("session_id", sess.ID), zap.Error(err))
		}

		summary := SessionSummary{
			Session:          sess,
			ParticipantCount: len(participants),
			IsCurrent:        sess.ID == currentID,
		}
		if summary.IsCurrent {
			pinned = &summary
			continue
		}
		summaries = append(summaries, summary)
	}

	if pinned != nil {
		summaries = append([]SessionSummary{*pinned}, summaries...)
	}
	return summaries, nil
}

// Watch entrega el documento de sesión en cada cambio; exists=false cuando
// la sesión fue borrada.
func (s *SessionService) Watch(sessionID string, onChange func(domain.Session, bool)) (func(), error) {
	return s.store.WatchDoc(sessionPath(sessionID), func(snap store.Snapshot, exists bool) {
		if !exists {
			onChange(domain.Session{ID: sessionID}, false)
			return
		}
		var sess domain.Session
		if err := snap.Decode(&sess); err != nil {
			s.logger.Warn("session snapshot decode failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		sess.ID = sessionID
		onChange(sess, true)
	})
}
