package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestQuotes_RandomFromSeededCollection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	seeded := map[string]string{}
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("q%d", i)
		seeded[id] = fmt.Sprintf("Quote number %d", i)
		if err := env.store.Set(ctx, quotesCollection+"/"+id, map[string]any{
			"quote":  seeded[id],
			"author": "Coach",
		}); err != nil {
			t.Fatalf("seed quote: %v", err)
		}
	}

	quote, err := env.quotes.Random(ctx)
	if err != nil {
		t.Fatalf("random failed: %v", err)
	}
	if quote.ID == "" || quote.Author != "Coach" {
		t.Fatalf("expected decoded quote with id, got %+v", quote)
	}
	if want, ok := seeded[quote.ID]; !ok || quote.Text != want {
		t.Fatalf("quote %q does not match seeded text: %+v", quote.ID, quote)
	}
}

func TestQuotes_RandomEmptyCollection(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.quotes.Random(context.Background()); !errors.Is(err, ErrNoQuotes) {
		t.Fatalf("expected ErrNoQuotes, got %v", err)
	}
}
