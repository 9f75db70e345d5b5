package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

// FanoutFailure es el error de una escritura individual dentro de un fan-out.
type FanoutFailure struct {
	ID  string
	Err error
}

// FanoutResult expone el resultado parcial de una operación masiva para que
// callers y tests puedan afirmar sobre fallas por destinatario en vez de
// esconderlas en logs.
type FanoutResult struct {
	Succeeded []string
	Failed    []FanoutFailure
}

// Ok reporta si todas las escrituras del fan-out llegaron.
func (r FanoutResult) Ok() bool {
	return len(r.Failed) == 0
}

// FeedService escribe y lee los eventos del feed social. La entrega es
// at-least-once y best-effort: la falla de un destinatario nunca bloquea a
// los demás.
type FeedService struct {
	logger *zap.Logger
	store  store.Store
}

func NewFeedService(logger *zap.Logger, st store.Store) *FeedService {
	return &FeedService{logger: logger, store: st}
}

// Notify agrega un evento al feed de cada destinatario. Las escrituras corren
// en paralelo y los resultados se recolectan por destinatario.
func (s *FeedService) Notify(ctx context.Context, recipients []string, event domain.FeedEvent) FanoutResult {
	errs := make([]error, len(recipients))

	var wg sync.WaitGroup
	for i, recipient := range recipients {
		wg.Add(1)
		go func(i int, recipient string) {
			defer wg.Done()
			errs[i] = s.append(ctx, recipient, event)
		}(i, recipient)
	}
	wg.Wait()

	var result FanoutResult
	for i, recipient := range recipients {
		if errs[i] != nil {
			s.logger.Warn("feed event write failed",
				zap.String("recipient", recipient),
				zap.String("type", string(event.Type)),
				zap.Error(errs[i]),
			)
			result.Failed = append(result.Failed, FanoutFailure{ID: recipient, Err: errs[i]})
			continue
		}
		result.Succeeded = append(result.Succeeded, recipient)
	}
	return result
}

func (s *FeedService) append(ctx context.Context, recipient string, event domain.FeedEvent) error {
	data, err := store.Encode(event)
	if err != nil {
		return err
	}
	// El timestamp lo asigna el backend para que el orden del feed sea
	// comparable entre escritores.
	data["timestamp"] = store.ServerTimestamp
	return s.store.Set(ctx, feedEventPath(recipient, uuid.NewString()), data)
}

// List devuelve el feed del usuario ordenado por timestamp descendente. Los
// eventos con tipo desconocido se omiten con un log, igual que el render
// original descartaba cards que no sabía dibujar.
func (s *FeedService) List(ctx context.Context, userID string) ([]domain.FeedEvent, error) {
	snaps, err := s.store.List(ctx, feedEventsPath(userID), store.OrderByDesc("timestamp"))
	if err != nil {
		return nil, err
	}
	return s.decodeAll(userID, snaps), nil
}

// Watch entrega el feed completo en cada cambio.
func (s *FeedService) Watch(userID string, onChange func([]domain.FeedEvent)) (func(), error) {
	return s.store.WatchCollection(feedEventsPath(userID), func(snaps []store.Snapshot) {
		onChange(s.decodeAll(userID, snaps))
	}, store.OrderByDesc("timestamp"))
}

func (s *FeedService) decodeAll(userID string, snaps []store.Snapshot) []domain.FeedEvent {
	events := make([]domain.FeedEvent, 0, len(snaps))
	for _, snap := range snaps {
		var event domain.FeedEvent
		if err := snap.Decode(&event); err != nil {
			s.logger.Warn("feed event skipped", zap.String("path", snap.Path), zap.Error(err))
			continue
		}
		event.ID = snap.ID()
		event.Recipient = userID
		events = append(events, event)
	}
	return events
}
