package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kokoro-ai/kokoro/memory"
	"github.com/kokoro-ai/kokoro/metrics"
)

const recordColumns = "id, content, category, importance, keywords, metadata, created_at, last_accessed_at, access_count, valid"

// Store validates, persists, and indexes a new record.
func (s *Store) Store(ctx context.Context, content string, category memory.Category, importance int, metadata map[string]string) (rec memory.Record, err error) {
	defer func() { metrics.ObserveStoreOp("store", err) }()

	if strings.TrimSpace(content) == "" {
		return memory.Record{}, memory.ErrInvalidContent
	}
	if !category.Valid() {
		return memory.Record{}, fmt.Errorf("%w: %q", memory.ErrInvalidCategory, category)
	}

	now := time.Now().UTC()
	rec = memory.Record{
		ID:             s.newID(),
		Content:        content,
		Category:       category,
		Importance:     memory.ClampImportance(importance),
		Keywords:       memory.ExtractKeywords(content, memory.MaxKeywords),
		CreatedAt:      now,
		LastAccessedAt: now,
		Valid:          true,
		Metadata:       metadata,
	}

	keywordsJSON, err := json.Marshal(rec.Keywords)
	if err != nil {
		return memory.Record{}, fmt.Errorf("sqlite: marshal keywords: %w", err)
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return memory.Record{}, fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, content, category, importance, keywords, tokens, metadata, created_at, last_accessed_at, access_count, valid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1)`,
		rec.ID, rec.Content, string(rec.Category), rec.Importance,
		string(keywordsJSON), tokenStream(rec.Content), string(metaJSON),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return memory.Record{}, fmt.Errorf("%w: insert record: %w", memory.ErrStoreUnavailable, err)
	}

	return rec, nil
}

// GetByID returns a record regardless of validity, or nil if absent.
func (s *Store) GetByID(ctx context.Context, id string) (*memory.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM memories WHERE id = ?", id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get record: %w", memory.ErrStoreUnavailable, err)
	}
	return &rec, nil
}

// GetByCategory returns valid records of one category, newest first.
func (s *Store) GetByCategory(ctx context.Context, category memory.Category, limit int) ([]memory.Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM memories
		WHERE valid = 1 AND category = ?
		ORDER BY created_at DESC
		LIMIT ?`, string(category), limit)
}

// GetMostImportant returns valid records by descending importance.
func (s *Store) GetMostImportant(ctx context.Context, limit int) ([]memory.Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM memories
		WHERE valid = 1
		ORDER BY importance DESC, created_at DESC
		LIMIT ?`, limit)
}

// GetRecent returns valid records by descending creation time.
func (s *Store) GetRecent(ctx context.Context, limit int) ([]memory.Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM memories
		WHERE valid = 1
		ORDER BY created_at DESC
		LIMIT ?`, limit)
}

// RecordAccess bumps the access counter and refreshes the last-access
// timestamp. Unknown ids are a no-op.
func (s *Store) RecordAccess(ctx context.Context, id string) (err error) {
	defer func() { metrics.ObserveStoreOp("record_access", err) }()

	_, err = s.db.ExecContext(ctx, `
		UPDATE memories
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("%w: record access: %w", memory.ErrStoreUnavailable, err)
	}
	return nil
}

// Invalidate soft-deletes a record; the FTS triggers drop it from the
// active search index. Idempotent, no-op for unknown ids.
func (s *Store) Invalidate(ctx context.Context, id string) (err error) {
	defer func() { metrics.ObserveStoreOp("invalidate", err) }()

	_, err = s.db.ExecContext(ctx, "UPDATE memories SET valid = 0 WHERE id = ? AND valid = 1", id)
	if err != nil {
		return fmt.Errorf("%w: invalidate record: %w", memory.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete physically removes a record and its index entries.
// Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	defer func() { metrics.ObserveStoreOp("delete", err) }()

	_, err = s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: delete record: %w", memory.ErrStoreUnavailable, err)
	}
	return nil
}

// Update applies the provided patch fields in one transaction,
// recomputing keywords and the token stream when content changes.
// Returns nil (no error) if the id is unknown.
func (s *Store) Update(ctx context.Context, id string, patch memory.Patch) (out *memory.Record, err error) {
	defer func() { metrics.ObserveStoreOp("update", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin update: %w", memory.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM memories WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load record: %w", memory.ErrStoreUnavailable, err)
	}

	if patch.Content != nil && *patch.Content != rec.Content {
		rec.Content = *patch.Content
		rec.Keywords = memory.ExtractKeywords(rec.Content, memory.MaxKeywords)
	}
	if patch.Importance != nil {
		rec.Importance = memory.ClampImportance(*patch.Importance)
	}
	if patch.Category != nil && patch.Category.Valid() {
		rec.Category = *patch.Category
	}
	if patch.Valid != nil {
		rec.Valid = *patch.Valid
	}

	keywordsJSON, err := json.Marshal(rec.Keywords)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal keywords: %w", err)
	}

	valid := 0
	if rec.Valid {
		valid = 1
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE memories
		SET content = ?, category = ?, importance = ?, keywords = ?, tokens = ?, valid = ?
		WHERE id = ?`,
		rec.Content, string(rec.Category), rec.Importance,
		string(keywordsJSON), tokenStream(rec.Content), valid, id,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: update record: %w", memory.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit update: %w", memory.ErrStoreUnavailable, err)
	}

	return &rec, nil
}

// Count returns the number of valid records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE valid = 1").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count records: %w", memory.ErrStoreUnavailable, err)
	}
	return n, nil
}

// CountByCategory returns per-category counts of valid records.
func (s *Store) CountByCategory(ctx context.Context) (map[memory.Category]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM memories WHERE valid = 1 GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("%w: count by category: %w", memory.ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[memory.Category]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("%w: scan category count: %w", memory.ErrStoreUnavailable, err)
		}
		counts[memory.Category(category)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: category count rows: %w", memory.ErrStoreUnavailable, err)
	}
	return counts, nil
}

// ClearAll removes every record; the delete triggers reset the FTS index.
func (s *Store) ClearAll(ctx context.Context) (err error) {
	defer func() { metrics.ObserveStoreOp("clear_all", err) }()

	_, err = s.db.ExecContext(ctx, "DELETE FROM memories")
	if err != nil {
		return fmt.Errorf("%w: clear records: %w", memory.ErrStoreUnavailable, err)
	}
	return nil
}

// --- helpers ---

// tokenStream renders content as the space-joined token list stored in
// the tokens column and indexed by FTS.
func tokenStream(content string) string {
	return strings.Join(memory.Tokenize(content), " ")
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]memory.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %w", memory.ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (memory.Record, error) {
	var (
		rec           memory.Record
		category      string
		keywordsJSON  string
		metaJSON      string
		createdAtStr  string
		accessedAtStr string
		valid         int
	)

	err := row.Scan(&rec.ID, &rec.Content, &category, &rec.Importance,
		&keywordsJSON, &metaJSON, &createdAtStr, &accessedAtStr,
		&rec.AccessCount, &valid)
	if err != nil {
		return memory.Record{}, err
	}

	rec.Category = memory.Category(category)
	rec.Valid = valid == 1

	if keywordsJSON != "" && keywordsJSON != "[]" && keywordsJSON != "null" {
		if err := json.Unmarshal([]byte(keywordsJSON), &rec.Keywords); err != nil {
			return memory.Record{}, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}
	if metaJSON != "" && metaJSON != "{}" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
			return memory.Record{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return memory.Record{}, fmt.Errorf("parse created_at %q: %w", createdAtStr, err)
	}
	if rec.LastAccessedAt, err = time.Parse(time.RFC3339Nano, accessedAtStr); err != nil {
		return memory.Record{}, fmt.Errorf("parse last_accessed_at %q: %w", accessedAtStr, err)
	}

	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]memory.Record, error) {
	var records []memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan record: %w", memory.ErrStoreUnavailable, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: record rows: %w", memory.ErrStoreUnavailable, err)
	}
	return records, nil
}
