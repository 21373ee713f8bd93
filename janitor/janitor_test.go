package janitor

import (
	"context"
	"log/slog"
	"testing"

	"github.com/kokoro-ai/kokoro/memory"
)

func TestNewRejectsUnknownStrategy(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Strategy: "ruthless"}, memory.NewMemStore(), slog.Default())
	if err == nil {
		t.Error("unknown strategy should be rejected")
	}
}

func TestRunNowInvalidatesFlagged(t *testing.T) {
	t.Parallel()
	store := memory.NewMemStore()
	ctx := context.Background()

	store.Store(ctx, "same old note", memory.CategoryContext, 2, nil)
	store.Store(ctx, "same old note!", memory.CategoryContext, 5, nil)

	j, err := New(Config{Strategy: "duplicates"}, store, slog.Default())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := j.RunNow(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("valid records after pass: got %d, want 1", n)
	}
}

func TestRunNowDryRun(t *testing.T) {
	t.Parallel()
	store := memory.NewMemStore()
	ctx := context.Background()

	store.Store(ctx, "same old note", memory.CategoryContext, 2, nil)
	store.Store(ctx, "same old note!", memory.CategoryContext, 5, nil)

	j, err := New(Config{Strategy: "duplicates", DryRun: true}, store, slog.Default())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := j.RunNow(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if n, _ := store.Count(ctx); n != 2 {
		t.Errorf("dry run mutated the store: %d valid records", n)
	}
}

func TestStartDisabled(t *testing.T) {
	t.Parallel()

	j, err := New(Config{Enabled: false}, memory.NewMemStore(), slog.Default())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := j.Start(); err != nil {
		t.Errorf("disabled start: %v", err)
	}
	j.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	j, err := New(Config{Enabled: true, Schedule: "not a schedule"}, memory.NewMemStore(), slog.Default())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := j.Start(); err == nil {
		t.Error("bad schedule should fail Start")
	}
}
