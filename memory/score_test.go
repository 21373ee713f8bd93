package memory

import (
	"testing"
	"time"
)

func TestScoreRecordRankDecay(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rec := Record{Content: "some note", Importance: 5}

	first := ScoreRecord(rec, 0, "unrelated", now)
	third := ScoreRecord(rec, 2, "unrelated", now)
	if first <= third {
		t.Errorf("rank 0 score %v not above rank 2 score %v", first, third)
	}

	// Deep ranks bottom out instead of going negative.
	deep := ScoreRecord(rec, 100, "unrelated", now)
	floor := 1 + float64(rec.Importance)*importanceWeight
	if deep != floor {
		t.Errorf("deep rank score %v, want floor %v", deep, floor)
	}
}

func TestScoreRecordExactMatchBonus(t *testing.T) {
	t.Parallel()

	now := time.Now()
	match := Record{Content: "Favorite drink is COFFEE", Importance: 5}
	miss := Record{Content: "prefers tea", Importance: 5}

	got := ScoreRecord(match, 0, "favorite drink", now)
	want := ScoreRecord(miss, 0, "favorite drink", now) + exactMatchBonus
	if got != want {
		t.Errorf("case-insensitive substring bonus: got %v, want %v", got, want)
	}
}

func TestScoreRecordImportanceAndRecency(t *testing.T) {
	t.Parallel()

	now := time.Now()

	low := Record{Content: "x", Importance: 1}
	high := Record{Content: "x", Importance: 10}
	if ScoreRecord(high, 0, "", now) <= ScoreRecord(low, 0, "", now) {
		t.Error("higher importance should score higher")
	}

	fresh := Record{Content: "x", Importance: 5, LastAccessedAt: now.Add(-time.Hour)}
	stale := Record{Content: "x", Importance: 5, LastAccessedAt: now.Add(-30 * 24 * time.Hour)}
	diff := ScoreRecord(fresh, 0, "", now) - ScoreRecord(stale, 0, "", now)
	if diff != recencyBonus {
		t.Errorf("recency delta %v, want %v", diff, recencyBonus)
	}
}
