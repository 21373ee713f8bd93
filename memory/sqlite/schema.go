package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaVersion is the current schema generation. Version 1 stored the
// validity flag as the strings "true"/"false"; version 2 uses integers
// so the column can back a usable secondary index.
const schemaVersion = 2

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
//
// The FTS index is built over a pre-segmented token stream (the tokens
// column), not the raw content: the default unicode61 tokenizer treats
// a contiguous CJK run as a single token, which makes word-level CJK
// matching impossible.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS memories (
		id               TEXT PRIMARY KEY,
		content          TEXT NOT NULL,
		category         TEXT NOT NULL,
		importance       INTEGER NOT NULL,
		keywords         TEXT NOT NULL DEFAULT '[]',
		tokens           TEXT NOT NULL DEFAULT '',
		metadata         TEXT NOT NULL DEFAULT '{}',
		created_at       TEXT NOT NULL,
		last_accessed_at TEXT NOT NULL,
		access_count     INTEGER NOT NULL DEFAULT 0,
		valid            INTEGER NOT NULL DEFAULT 1
	)`,

	`CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance DESC, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_accessed ON memories(last_accessed_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_valid ON memories(valid)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		tokens,
		content=memories,
		content_rowid=rowid
	)`,

	// Only valid records live in the FTS index. Invalidation drops the
	// entry; revalidation reinserts it.
	`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories WHEN new.valid = 1 BEGIN
		INSERT INTO memories_fts(rowid, tokens) VALUES (new.rowid, new.tokens);
	END`,

	`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories WHEN old.valid = 1 BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, tokens) VALUES ('delete', old.rowid, old.tokens);
	END`,

	`CREATE TRIGGER IF NOT EXISTS memories_au_del AFTER UPDATE ON memories WHEN old.valid = 1 BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, tokens) VALUES ('delete', old.rowid, old.tokens);
	END`,

	`CREATE TRIGGER IF NOT EXISTS memories_au_ins AFTER UPDATE ON memories WHEN new.valid = 1 BEGIN
		INSERT INTO memories_fts(rowid, tokens) VALUES (new.rowid, new.tokens);
	END`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if current == 1 {
		if err := migrateValidityEncoding(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}

// migrateValidityEncoding rewrites the v1 boolean-typed valid column
// ("true"/"false" strings) to the integer encoding, scanning every
// existing record in one transaction.
func migrateValidityEncoding(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin validity migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, "SELECT id, valid FROM memories")
	if err != nil {
		return fmt.Errorf("sqlite: scan validity column: %w", err)
	}

	type pair struct {
		id    string
		valid int
	}
	var updates []pair
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			_ = rows.Close()
			return fmt.Errorf("sqlite: scan validity row: %w", err)
		}
		v := 0
		if raw == "true" || raw == "1" {
			v = 1
		}
		updates = append(updates, pair{id: id, valid: v})
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("sqlite: close validity scan: %w", err)
	}

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, "UPDATE memories SET valid = ? WHERE id = ?", u.valid, u.id); err != nil {
			return fmt.Errorf("sqlite: rewrite validity for %s: %w", u.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit validity migration: %w", err)
	}
	return nil
}
