package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitlink/internal/domain"
)

func sampleFollowEvent(name string) domain.FeedEvent {
	return domain.NewFollowEvent(domain.Profile{ID: "f1", Name: name})
}

func TestFeed_NotifyFansOutToAllRecipients(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	result := env.feed.Notify(ctx, []string{"u1", "u2", "u3"}, sampleFollowEvent("Ana"))
	if !result.Ok() || len(result.Succeeded) != 3 {
		t.Fatalf("expected 3 successful writes, got %+v", result)
	}

	for _, uid := range []string{"u1", "u2", "u3"} {
		events, err := env.feed.List(ctx, uid)
		if err != nil {
			t.Fatalf("list %s: %v", uid, err)
		}
		if len(events) != 1 {
			t.Fatalf("expected one event for %s, got %d", uid, len(events))
		}
		if events[0].Type != domain.EventFollow || events[0].Follow.FollowerName != "Ana" {
			t.Fatalf("unexpected event for %s: %+v", uid, events[0])
		}
		if events[0].Recipient != uid || events[0].ID == "" {
			t.Fatalf("expected recipient and id populated, got %+v", events[0])
		}
		if events[0].Timestamp.IsZero() {
			t.Fatalf("expected server-assigned timestamp")
		}
	}
}

func TestFeed_NotifyReportsPerRecipientFailures(t *testing.T) {
	ctx := context.Background()
	inner := newTestEnv(t, nil)
	failing := &failingStore{
		Store:        inner.store,
		failPrefixes: []string{feedEventsPath("u2")},
		err:          errors.New("backend down"),
	}
	env := newTestEnv(t, failing)

	result := env.feed.Notify(ctx, []string{"u1", "u2", "u3"}, sampleFollowEvent("Ana"))
	if result.Ok() {
		t.Fatalf("expected partial failure")
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != "u2" {
		t.Fatalf("expected u2 to fail, got %+v", result.Failed)
	}
	if len(result.Succeeded) != 2 {
		t.Fatalf("expected u1 and u3 to succeed, got %+v", result.Succeeded)
	}

	// Los destinatarios sanos recibieron su copia.
	for _, uid := range []string{"u1", "u3"} {
		events, err := env.feed.List(ctx, uid)
		if err != nil || len(events) != 1 {
			t.Fatalf("expected delivery for %s, got %+v,%v", uid, events, err)
		}
	}
	if events, _ := env.feed.List(ctx, "u2"); len(events) != 0 {
		t.Fatalf("expected empty feed for u2, got %+v", events)
	}
}

func TestFeed_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	if r := env.feed.Notify(ctx, []string{"u1"}, sampleFollowEvent("First")); !r.Ok() {
		t.Fatalf("notify failed: %+v", r)
	}
	time.Sleep(2 * time.Millisecond)
	if r := env.feed.Notify(ctx, []string{"u1"}, sampleFollowEvent("Second")); !r.Ok() {
		t.Fatalf("notify failed: %+v", r)
	}

	events, err := env.feed.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Follow.FollowerName != "Second" || events[1].Follow.FollowerName != "First" {
		t.Fatalf("expected newest first, got %q then %q",
			events[0].Follow.FollowerName, events[1].Follow.FollowerName)
	}
}

func TestFeed_ListSkipsUndecodableEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	if r := env.feed.Notify(ctx, []string{"u1"}, sampleFollowEvent("Ana")); !r.Ok() {
		t.Fatalf("notify failed: %+v", r)
	}
	// Un documento con tipo desconocido quedó en el feed, por ejemplo de una
	// versión futura del cliente.
	if err := env.store.Set(ctx, feedEventPath("u1", "legacy"), map[string]any{
		"type": "somethingNew",
	}); err != nil {
		t.Fatalf("seed unknown event: %v", err)
	}

	events, err := env.feed.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventFollow {
		t.Fatalf("expected unknown event skipped, got %+v", events)
	}
}

func TestFeed_WatchDeliversFullFeed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	updates := make(chan []domain.FeedEvent, 8)
	unsub, err := env.feed.Watch("u1", func(events []domain.FeedEvent) {
		updates <- events
	})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer unsub()

	if initial := <-updates; len(initial) != 0 {
		t.Fatalf("expected empty initial feed, got %+v", initial)
	}

	if r := env.feed.Notify(ctx, []string{"u1"}, sampleFollowEvent("Ana")); !r.Ok() {
		t.Fatalf("notify failed: %+v", r)
	}

	select {
	case events := <-updates:
		if len(events) != 1 || events[0].Follow.FollowerName != "Ana" {
			t.Fatalf("unexpected watch delivery: %+v", events)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for feed update")
	}
}
