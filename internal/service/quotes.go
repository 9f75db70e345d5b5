package service

import (
	"context"
	"errors"
	"math/rand"

	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

var ErrNoQuotes = errors.New("no quotes available")

// QuoteService sirve la frase motivacional del dashboard desde la colección
// quotes.
type QuoteService struct {
	logger *zap.Logger
	store  store.Store
}

func NewQuoteService(logger *zap.Logger, st store.Store) *QuoteService {
	return &QuoteService{logger: logger, store: st}
}

// Random devuelve una frase al azar; ErrNoQuotes si la colección está vacía.
func (s *QuoteService) Random(ctx context.Context) (domain.Quote, error) {
	snaps, err := s.store.List(ctx, quotesCollection)
	if err != nil {
		return domain.Quote{}, err
	}
	if len(snaps) == 0 {
		return domain.Quote{}, ErrNoQuotes
	}

	snap := snaps[rand.Intn(len(snaps))]
	var quote domain.Quote
	if err := snap.Decode(&quote); err != nil {
		return domain.Quote{}, err
	}
	quote.ID = snap.ID()
	return quote, nil
}
