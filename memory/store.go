package memory

import "context"

// Store manages durable CRUD and relevance search over memory records.
// Implementations must be safe for concurrent use across records;
// concurrent mutations of the same record are last-write-wins.
type Store interface {
	// Store validates, persists, and indexes a new record.
	// Importance is clamped into [MinImportance, MaxImportance].
	Store(ctx context.Context, content string, category Category, importance int, metadata map[string]string) (Record, error)

	// Search returns valid records ranked by relevance, truncated to limit.
	// An empty query yields an empty result, not "match all".
	Search(ctx context.Context, query string, limit int) ([]ScoredRecord, error)

	// GetByID returns a record regardless of validity, or nil if absent.
	GetByID(ctx context.Context, id string) (*Record, error)

	// GetByCategory returns valid records of one category, newest first.
	GetByCategory(ctx context.Context, category Category, limit int) ([]Record, error)

	// GetMostImportant returns valid records by descending importance.
	GetMostImportant(ctx context.Context, limit int) ([]Record, error)

	// GetRecent returns valid records by descending creation time.
	GetRecent(ctx context.Context, limit int) ([]Record, error)

	// RecordAccess bumps the access counter and refreshes the last-access
	// timestamp. Unknown ids are a no-op, not an error.
	RecordAccess(ctx context.Context, id string) error

	// Invalidate soft-deletes a record: it leaves every index-backed
	// query but stays retrievable via GetByID. Idempotent; unknown ids
	// are a no-op.
	Invalidate(ctx context.Context, id string) error

	// Delete physically removes a record and its index entries.
	// Unknown ids are a no-op.
	Delete(ctx context.Context, id string) error

	// Update applies the provided patch fields, recomputing keywords when
	// content changes. Returns nil (no error) if the id is unknown.
	Update(ctx context.Context, id string, patch Patch) (*Record, error)

	// Count returns the number of valid records.
	Count(ctx context.Context) (int, error)

	// CountByCategory returns per-category counts of valid records.
	CountByCategory(ctx context.Context) (map[Category]int, error)

	// ClearAll removes every record and resets all indexes.
	ClearAll(ctx context.Context) error
}
