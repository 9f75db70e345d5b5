package service

import (
	"context"
	"errors"
	"testing"

	"fitlink/internal/domain"
	"fitlink/internal/store"
)

func TestXP_AwardNormalizesLevels(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	profile, err := env.xp.Award(ctx, "u1", 60)
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}
	if profile.XP != 60 || profile.Level != 1 {
		t.Fatalf("expected {60,1}, got {%d,%d}", profile.XP, profile.Level)
	}

	profile, err = env.xp.Award(ctx, "u1", 60)
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}
	if profile.XP != 20 || profile.Level != 2 {
		t.Fatalf("expected {20,2} after wrap, got {%d,%d}", profile.XP, profile.Level)
	}

	// Un premio grande cruza varios escalones de una vez.
	profile, err = env.xp.Award(ctx, "u1", 250)
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}
	if profile.XP != 70 || profile.Level != 4 {
		t.Fatalf("expected {70,4}, got {%d,%d}", profile.XP, profile.Level)
	}

	if _, err := env.xp.Award(ctx, "u1", -1); !errors.Is(err, ErrNegativeAward) {
		t.Fatalf("expected ErrNegativeAward, got %v", err)
	}
}

func TestXP_GetDefaultsWithoutCreating(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	profile, err := env.xp.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if profile.XP != 0 || profile.Level != 1 {
		t.Fatalf("expected defaults {0,1}, got {%d,%d}", profile.XP, profile.Level)
	}
	if len(profile.BadgeCollection) != len(domain.DefaultBadgeCollection()) {
		t.Fatalf("expected default badge collection, got %+v", profile.BadgeCollection)
	}

	// La lectura no materializa el documento.
	if _, err := env.store.Get(ctx, xpPath("u1")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no xp doc, got %v", err)
	}
}

func TestXP_EnsureProfileIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	if err := env.xp.EnsureProfile(ctx, "u1"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if _, err := env.xp.Award(ctx, "u1", 30); err != nil {
		t.Fatalf("award failed: %v", err)
	}
	// La segunda llamada no resetea el progreso.
	if err := env.xp.EnsureProfile(ctx, "u1"); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	profile, err := env.xp.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if profile.XP != 30 {
		t.Fatalf("expected xp preserved, got %d", profile.XP)
	}
}

func TestXP_SetBadges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	if err := env.xp.EnsureProfile(ctx, "u1"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	four := []string{"favorite", "anchor", "star", "extra"}
	if err := env.xp.SetBadges(ctx, "u1", four); !errors.Is(err, ErrBadgeLimit) {
		t.Fatalf("expected ErrBadgeLimit, got %v", err)
	}
	if err := env.xp.SetBadges(ctx, "u1", []string{"dragon"}); !errors.Is(err, ErrBadgeNotOwned) {
		t.Fatalf("expected ErrBadgeNotOwned, got %v", err)
	}

	if err := env.xp.SetBadges(ctx, "u1", []string{"star", "anchor"}); err != nil {
		t.Fatalf("set badges failed: %v", err)
	}
	profile, err := env.xp.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(profile.Badges) != 2 || profile.Badges[0] != "star" {
		t.Fatalf("expected badges persisted in order, got %+v", profile.Badges)
	}
}

func TestRewardPolicy_RewardFor(t *testing.T) {
	policy := DefaultRewardPolicy()
	if got := policy.RewardFor(1); got != 10 {
		t.Fatalf("expected solo reward 10, got %d", got)
	}
	if got := policy.RewardFor(0); got != 10 {
		t.Fatalf("expected solo reward for empty session, got %d", got)
	}
	if got := policy.RewardFor(2); got != 20 {
		t.Fatalf("expected group reward 20, got %d", got)
	}
}
