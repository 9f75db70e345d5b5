package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"fitlink/internal/domain"
)

func TestFollow_UpdatesBothSidesAndNotifies(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.seedUser(t, domain.User{ID: "u1", Name: "Ana", Email: "ana@example.com"})
	env.seedUser(t, domain.User{ID: "u2", Name: "Maya"})

	if err := env.follows.Follow(ctx, "u1", "u2"); err != nil {
		t.Fatalf("follow failed: %v", err)
	}

	follower, err := env.profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get follower: %v", err)
	}
	if len(follower.Following) != 1 || follower.Following[0] != "u2" {
		t.Fatalf("expected following [u2], got %+v", follower.Following)
	}
	target, err := env.profiles.Get(ctx, "u2")
	if err != nil {
		t.Fatalf("get target: %v", err)
	}
	if len(target.Followers) != 1 || target.Followers[0] != "u1" {
		t.Fatalf("expected followers [u1], got %+v", target.Followers)
	}

	events, err := env.feed.List(ctx, "u2")
	if err != nil {
		t.Fatalf("list feed: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventFollow {
		t.Fatalf("expected one follow event, got %+v", events)
	}
	if events[0].Follow.FollowerID != "u1" || events[0].Follow.FollowerName != "Ana" {
		t.Fatalf("unexpected follower snapshot: %+v", events[0].Follow)
	}

	// Repetir el follow es unión de conjuntos: nada se duplica.
	if err := env.follows.Follow(ctx, "u1", "u2"); err != nil {
		t.Fatalf("repeat follow failed: %v", err)
	}
	target, _ = env.profiles.Get(ctx, "u2")
	if len(target.Followers) != 1 {
		t.Fatalf("expected no duplicate followers, got %+v", target.Followers)
	}
}

func TestFollow_ConcurrentFollowersAllLand(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.seedUser(t, domain.User{ID: "target", Name: "Ana"})

	const followers = 8
	ids := make([]string, followers)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%d", i)
		env.seedUser(t, domain.User{ID: ids[i], Name: "Fan"})
	}

	// Todos siguen al mismo usuario a la vez: la transformación de arreglo
	// del store evita que un follow pise al otro.
	var wg sync.WaitGroup
	errs := make([]error, followers)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = env.follows.Follow(ctx, id, "target")
		}(i, id)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("follow %s failed: %v", ids[i], err)
		}
	}

	target, err := env.profiles.Get(ctx, "target")
	if err != nil {
		t.Fatalf("get target: %v", err)
	}
	if len(target.Followers) != followers {
		t.Fatalf("expected %d followers, got %d: %+v", followers, len(target.Followers), target.Followers)
	}
	got := make(map[string]bool, len(target.Followers))
	for _, id := range target.Followers {
		got[id] = true
	}
	for _, id := range ids {
		if !got[id] {
			t.Fatalf("missing follower %s in %+v", id, target.Followers)
		}
	}
}

func TestFollow_Guards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.seedUser(t, domain.User{ID: "u1", Name: "Ana"})

	if err := env.follows.Follow(ctx, "u1", "u1"); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got %v", err)
	}
	if err := env.follows.Follow(ctx, "u1", "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := env.follows.Follow(ctx, "ghost", "u1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFollow_UnfollowRemovesBothSides(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.seedUser(t, domain.User{ID: "u1", Name: "Ana"})
	env.seedUser(t, domain.User{ID: "u2", Name: "Maya"})
	env.seedUser(t, domain.User{ID: "u3", Name: "Leo"})

	if err := env.follows.Follow(ctx, "u1", "u2"); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if err := env.follows.Follow(ctx, "u3", "u2"); err != nil {
		t.Fatalf("follow failed: %v", err)
	}

	if err := env.follows.Unfollow(ctx, "u1", "u2"); err != nil {
		t.Fatalf("unfollow failed: %v", err)
	}

	follower, _ := env.profiles.Get(ctx, "u1")
	if len(follower.Following) != 0 {
		t.Fatalf("expected empty following, got %+v", follower.Following)
	}
	target, _ := env.profiles.Get(ctx, "u2")
	if len(target.Followers) != 1 || target.Followers[0] != "u3" {
		t.Fatalf("expected only u3 left, got %+v", target.Followers)
	}

	// Salir de una relación inexistente es un no-op exitoso.
	if err := env.follows.Unfollow(ctx, "u1", "u2"); err != nil {
		t.Fatalf("repeat unfollow failed: %v", err)
	}
}

func TestFollow_FollowListSkipsDeletedAccounts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.seedUser(t, domain.User{ID: "u1", Name: "Ana"})
	env.seedUser(t, domain.User{ID: "u2", Name: "Maya"})
	env.seedUser(t, domain.User{ID: "u3", Name: "Leo"})

	if err := env.follows.Follow(ctx, "u2", "u1"); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if err := env.follows.Follow(ctx, "u3", "u1"); err != nil {
		t.Fatalf("follow failed: %v", err)
	}

	// u2 borra su cuenta: el arreglo de u1 queda con una referencia colgante.
	if err := env.store.Delete(ctx, userPath("u2")); err != nil {
		t.Fatalf("delete u2: %v", err)
	}

	followers, err := env.follows.FollowList(ctx, "u1", FollowListFollowers)
	if err != nil {
		t.Fatalf("follow list failed: %v", err)
	}
	if len(followers) != 1 || followers[0].ID != "u3" {
		t.Fatalf("expected only u3, got %+v", followers)
	}

	following, err := env.follows.FollowList(ctx, "u3", FollowListFollowing)
	if err != nil {
		t.Fatalf("follow list failed: %v", err)
	}
	if len(following) != 1 || following[0].ID != "u1" || following[0].DisplayName() != "Ana" {
		t.Fatalf("expected [u1/Ana], got %+v", following)
	}

	if _, err := env.follows.FollowList(ctx, "ghost", FollowListFollowers); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
