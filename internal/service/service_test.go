package service

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"fitlink/internal/domain"
	"fitlink/internal/store"
	"fitlink/internal/store/memstore"
)

// testEnv arma el grafo completo de servicios sobre un memstore limpio.
type testEnv struct {
	store      store.Store
	cache      *ProfileCache
	feed       *FeedService
	xp         *XPService
	membership *MembershipService
	sessions   *SessionService
	roster     *RosterService
	follows    *FollowService
	profiles   *ProfileService
	quotes     *QuoteService
}

func newTestEnv(t *testing.T, st store.Store) *testEnv {
	t.Helper()
	if st == nil {
		st = memstore.New()
	}
	logger := zap.NewNop()

	cache := NewProfileCache(logger, st, nil)
	feed := NewFeedService(logger, st)
	xp := NewXPService(logger, st, DefaultRewardPolicy())
	membership := NewMembershipService(logger, st)
	return &testEnv{
		store:      st,
		cache:      cache,
		feed:       feed,
		xp:         xp,
		membership: membership,
		sessions:   NewSessionService(logger, st, membership, feed, xp, cache),
		roster:     NewRosterService(logger, st, cache),
		follows:    NewFollowService(logger, st, feed),
		profiles:   NewProfileService(logger, st),
		quotes:     NewQuoteService(logger, st),
	}
}

// seedUser escribe el documento de perfil directamente, como lo dejaría el
// signup.
func (e *testEnv) seedUser(t *testing.T, user domain.User) domain.User {
	t.Helper()
	data, err := store.Encode(user)
	if err != nil {
		t.Fatalf("encode user: %v", err)
	}
	if err := e.store.Set(context.Background(), userPath(user.ID), data); err != nil {
		t.Fatalf("seed user %s: %v", user.ID, err)
	}
	return user
}

// failingStore envuelve un Store y hace fallar las escrituras cuyos paths
// empiezan con alguno de los prefijos dados.
type failingStore struct {
	store.Store
	failPrefixes []string
	err          error
}

func (f *failingStore) shouldFail(path string) bool {
	for _, prefix := range f.failPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (f *failingStore) Set(ctx context.Context, path string, data map[string]any) error {
	if f.shouldFail(path) {
		return f.err
	}
	return f.Store.Set(ctx, path, data)
}

func (f *failingStore) Merge(ctx context.Context, path string, data map[string]any) error {
	if f.shouldFail(path) {
		return f.err
	}
	return f.Store.Merge(ctx, path, data)
}

func (f *failingStore) Apply(ctx context.Context, ops []store.Op) error {
	for _, op := range ops {
		if f.shouldFail(op.Path) {
			return f.err
		}
	}
	return f.Store.Apply(ctx, ops)
}
