package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"testing"

	"github.com/kokoro-ai/kokoro/memory"
	"github.com/kokoro-ai/kokoro/provider"
	"github.com/kokoro-ai/kokoro/provider/providertest"
)

func TestRelevantMemoriesMergesSources(t *testing.T) {
	t.Parallel()
	store := memory.NewMemStore()
	ctx := context.Background()

	hit, _ := store.Store(ctx, "enjoys long walks by the river", memory.CategoryPreference, 5, nil)
	important, _ := store.Store(ctx, "allergic to shellfish", memory.CategoryFact, 10, nil)

	sel := NewSelector(store, nil, "", slog.Default(), mathrand.New(mathrand.NewSource(1)))
	got := sel.RelevantMemories(ctx, "river walks", 5)

	ids := make(map[string]bool)
	for _, rec := range got {
		ids[rec.ID] = true
	}
	if !ids[hit.ID] {
		t.Error("direct search result missing")
	}
	if !ids[important.ID] {
		t.Error("top-importance record missing despite no text match")
	}
}

func TestRelevantMemoriesKeywordExpansion(t *testing.T) {
	t.Parallel()
	store := memory.NewMemStore()
	ctx := context.Background()

	expanded, _ := store.Store(ctx, "practices aikido twice a week", memory.CategoryFact, 5, nil)

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(provider.CompletionResponse{
			Content: "aikido\nmartial arts\n",
		}),
	}

	sel := NewSelector(store, mock, "test-model", slog.Default(), mathrand.New(mathrand.NewSource(1)))
	got := sel.RelevantMemories(ctx, "does the user do any sports", 5)

	found := false
	for _, rec := range got {
		if rec.ID == expanded.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expansion keyword did not surface the record: %+v", got)
	}
	if mock.CompleteCalls() != 1 {
		t.Errorf("expansion calls: got %d, want 1", mock.CompleteCalls())
	}
}

// Expansion is best-effort: a failing provider yields no extra terms
// and never propagates.
func TestRelevantMemoriesExpansionFailureIsSilent(t *testing.T) {
	t.Parallel()
	store := memory.NewMemStore()
	ctx := context.Background()

	direct, _ := store.Store(ctx, "afraid of thunderstorms", memory.CategoryFact, 5, nil)

	mock := &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, errors.New("provider down")
		},
	}

	sel := NewSelector(store, mock, "test-model", slog.Default(), mathrand.New(mathrand.NewSource(1)))
	got := sel.RelevantMemories(ctx, "thunderstorms", 5)

	if len(got) == 0 || got[0].ID != direct.ID {
		t.Errorf("direct result lost when expansion fails: %+v", got)
	}
}

// When candidates overflow the limit, truncation happens after tier
// grouping: high-importance records never lose their slot to low ones.
func TestRelevantMemoriesTierGrouping(t *testing.T) {
	t.Parallel()
	store := memory.NewMemStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		store.Store(ctx, fmt.Sprintf("critical travel plan %d", i), memory.CategoryFact, 9, nil)
	}
	for i := 0; i < 4; i++ {
		store.Store(ctx, fmt.Sprintf("minor travel note %d", i), memory.CategoryContext, 2, nil)
	}

	sel := NewSelector(store, nil, "", slog.Default(), mathrand.New(mathrand.NewSource(42)))
	got := sel.RelevantMemories(ctx, "travel", 4)

	if len(got) != 4 {
		t.Fatalf("got %d records, want limit 4", len(got))
	}
	for _, rec := range got {
		if rec.Importance < tierHighMin {
			t.Errorf("low-importance record %q displaced a high-tier one", rec.Content)
		}
	}
}

func TestRelevantMemoriesZeroLimit(t *testing.T) {
	t.Parallel()

	sel := NewSelector(memory.NewMemStore(), nil, "", slog.Default(), mathrand.New(mathrand.NewSource(1)))
	if got := sel.RelevantMemories(context.Background(), "anything", 0); got != nil {
		t.Errorf("got %+v, want nil for zero limit", got)
	}
}
