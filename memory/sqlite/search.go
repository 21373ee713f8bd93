package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kokoro-ai/kokoro/memory"
	"github.com/kokoro-ai/kokoro/metrics"
)

var tracer = otel.Tracer("kokoro/memory/sqlite")

// candidateOverfetch bounds how many FTS candidates are pulled before
// Go-side scoring reorders them; relevance scoring can promote a row
// past the raw match ranking.
const candidateOverfetch = 4

// Search returns valid records ranked by relevance to query.
//
// Candidates come from two sources: an FTS5 match over the segmented
// token stream, and a substring scan that catches partial words the
// tokenizer splits differently. Final ordering is computed in Go from
// the combined candidate set.
func (s *Store) Search(ctx context.Context, query string, limit int) (_ []memory.ScoredRecord, err error) {
	ctx, span := tracer.Start(ctx, "memory.search")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
		metrics.ObserveStoreOp("search", err)
	}()

	query = strings.TrimSpace(query)
	span.SetAttributes(attribute.Int("query.length", len(query)))
	if query == "" || limit <= 0 {
		return nil, nil
	}

	fetch := limit * candidateOverfetch
	if fetch < 50 {
		fetch = 50
	}

	seen := make(map[string]struct{})
	var candidates []memory.Record

	if tokens := memory.Tokenize(query); len(tokens) > 0 {
		matched, ferr := s.searchFTS(ctx, tokens, fetch)
		if ferr != nil {
			return nil, ferr
		}
		for _, rec := range matched {
			if _, ok := seen[rec.ID]; !ok {
				seen[rec.ID] = struct{}{}
				candidates = append(candidates, rec)
			}
		}
	}

	substr, err := s.searchSubstring(ctx, query, fetch)
	if err != nil {
		return nil, err
	}
	for _, rec := range substr {
		if _, ok := seen[rec.ID]; !ok {
			seen[rec.ID] = struct{}{}
			candidates = append(candidates, rec)
		}
	}

	now := time.Now()
	scored := make([]memory.ScoredRecord, len(candidates))
	for rank, rec := range candidates {
		scored[rank] = memory.ScoredRecord{
			Record: rec,
			Score:  memory.ScoreRecord(rec, rank, query, now),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	span.SetAttributes(attribute.Int("results", len(scored)))
	return scored, nil
}

// searchFTS matches the segmented token stream; results come back in
// FTS rank order, which seeds the Go-side base score.
func (s *Store) searchFTS(ctx context.Context, tokens []string, limit int) ([]memory.Record, error) {
	match := buildMatchExpr(tokens)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("m")+`
		FROM memories_fts f
		JOIN memories m ON m.rowid = f.rowid
		WHERE memories_fts MATCH ? AND m.valid = 1
		ORDER BY f.rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: fts search: %w", memory.ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// searchSubstring scans content for a literal, case-folded substring.
func (s *Store) searchSubstring(ctx context.Context, query string, limit int) ([]memory.Record, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM memories
		WHERE valid = 1 AND lower(content) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC
		LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: substring search: %w", memory.ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// buildMatchExpr quotes each token so FTS treats it as a literal string
// rather than query syntax, OR-joined for any-token matching.
func buildMatchExpr(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// prefixColumns qualifies the record column list with a table alias.
func prefixColumns(alias string) string {
	cols := strings.Split(recordColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
