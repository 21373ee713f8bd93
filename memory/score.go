package memory

import (
	"strings"
	"time"
)

// Relevance scoring weights, shared by both store backends. The base
// score decays with the text engine's rank so that engine ordering
// still dominates among records of equal importance.
const (
	baseScoreMax     = 10.0
	rankDecay        = 0.5
	exactMatchBonus  = 5.0
	importanceWeight = 0.5
	recencyBonus     = 1.5
	recencyWindow    = 7 * 24 * time.Hour
)

// ScoreRecord computes the relevance of rec for query, given the
// record's rank (0-based) in the text engine's candidate ordering.
func ScoreRecord(rec Record, rank int, query string, now time.Time) float64 {
	score := baseScoreMax - float64(rank)*rankDecay
	if score < 1 {
		score = 1
	}

	if query != "" && strings.Contains(strings.ToLower(rec.Content), strings.ToLower(query)) {
		score += exactMatchBonus
	}

	score += float64(rec.Importance) * importanceWeight

	if !rec.LastAccessedAt.IsZero() && now.Sub(rec.LastAccessedAt) <= recencyWindow {
		score += recencyBonus
	}

	return score
}
