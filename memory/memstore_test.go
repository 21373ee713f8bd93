package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestMemStoreRoundtrip(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	rec, err := s.Store(ctx, "the user is learning go", CategoryFact, 6, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := s.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Content != rec.Content {
		t.Fatalf("roundtrip: got %+v, want %+v", got, rec)
	}
}

func TestMemStoreValidation(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.Store(ctx, "", CategoryFact, 5, nil); !errors.Is(err, ErrInvalidContent) {
		t.Errorf("empty content: got %v, want ErrInvalidContent", err)
	}
	if _, err := s.Store(ctx, "x", Category("vibe"), 5, nil); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("bad category: got %v, want ErrInvalidCategory", err)
	}
}

// Store, find via search, invalidate, then confirm the record is gone
// from search but still reachable by id.
func TestMemStoreInvalidateLifecycle(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	rec, err := s.Store(ctx, "allergic to peanuts", CategoryFact, 9, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	found, err := s.Search(ctx, "peanuts", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != rec.ID {
		t.Fatalf("search before invalidate: got %+v", found)
	}

	if err := s.Invalidate(ctx, rec.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	found, err = s.Search(ctx, "peanuts", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("search after invalidate: got %+v, want none", found)
	}

	got, err := s.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Valid {
		t.Errorf("direct lookup: got %+v, want invalid record", got)
	}
}

// Records stored after the lazy index is built must still be found:
// index maintenance switches from build-on-demand to incremental.
func TestMemStoreIndexStaysCurrent(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.Store(ctx, "first note about sailing", CategoryFact, 5, nil); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := s.Search(ctx, "sailing", 10); err != nil {
		t.Fatalf("search builds index: %v", err)
	}

	late, err := s.Store(ctx, "took up climbing last spring", CategoryEvent, 5, nil)
	if err != nil {
		t.Fatalf("store after index: %v", err)
	}

	found, err := s.Search(ctx, "climbing", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != late.ID {
		t.Errorf("late record not indexed: got %+v", found)
	}
}

func TestMemStoreSearchExactMatchWins(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.Store(ctx, "drinks tea when tired", CategoryPreference, 5, nil); err != nil {
		t.Fatalf("store: %v", err)
	}
	exact, err := s.Store(ctx, "favorite drink is coffee", CategoryPreference, 5, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	found, err := s.Search(ctx, "favorite drink is coffee", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) == 0 || found[0].ID != exact.ID {
		t.Errorf("got %+v, want exact match ranked first", found)
	}
}

func TestMemStoreSearchLimitAndEmptyQuery(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Store(ctx, fmt.Sprintf("note number %d about gardens", i), CategoryContext, 5, nil); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	found, err := s.Search(ctx, "gardens", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 3 {
		t.Errorf("limit: got %d results, want 3", len(found))
	}

	found, err = s.Search(ctx, "  ", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("empty query: got %d results, want 0", len(found))
	}
}

func TestMemStoreUpdate(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	rec, err := s.Store(ctx, "lives in lyon", CategoryFact, 5, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	content := "lives in marseille"
	imp := 20
	got, err := s.Update(ctx, rec.ID, Patch{Content: &content, Importance: &imp})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Content != content {
		t.Errorf("content: got %q, want %q", got.Content, content)
	}
	if got.Importance != MaxImportance {
		t.Errorf("importance: got %d, want clamped %d", got.Importance, MaxImportance)
	}

	if found, _ := s.Search(ctx, "marseille", 10); len(found) != 1 {
		t.Errorf("new content not searchable: %+v", found)
	}
	if found, _ := s.Search(ctx, "lyon", 10); len(found) != 0 {
		t.Errorf("old content still searchable: %+v", found)
	}

	if got, err := s.Update(ctx, "missing", Patch{Content: &content}); err != nil || got != nil {
		t.Errorf("unknown id: got (%+v, %v), want (nil, nil)", got, err)
	}
}

func TestMemStoreCountsAndClear(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	a, _ := s.Store(ctx, "fact a", CategoryFact, 5, nil)
	s.Store(ctx, "fact b", CategoryFact, 5, nil)
	s.Store(ctx, "event c", CategoryEvent, 5, nil)
	_ = s.Invalidate(ctx, a.ID)

	if n, _ := s.Count(ctx); n != 2 {
		t.Errorf("count: got %d, want 2", n)
	}
	byCat, _ := s.CountByCategory(ctx)
	if byCat[CategoryFact] != 1 || byCat[CategoryEvent] != 1 {
		t.Errorf("count by category: got %v", byCat)
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("count after clear: got %d, want 0", n)
	}
}

func TestMemStoreConcurrentAccess(t *testing.T) {
	t.Parallel()
	s := NewMemStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Store(ctx, fmt.Sprintf("concurrent note %d", i), CategoryContext, 5, nil); err != nil {
				t.Errorf("store: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := s.Search(ctx, "concurrent", 5); err != nil {
				t.Errorf("search: %v", err)
			}
		}()
	}
	wg.Wait()

	if n, _ := s.Count(ctx); n != 10 {
		t.Errorf("count after concurrent stores: got %d, want 10", n)
	}
}
