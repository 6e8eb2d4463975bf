// Package sqlite is the embedded journal backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/metasearch/internal/storage"
	_ "modernc.org/sqlite"
)

var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_records (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	query TEXT NOT NULL,
	url TEXT NOT NULL,
	provider TEXT NOT NULL,
	outcome TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	results INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	challenge TEXT NOT NULL,
	error TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS fetch_records_created_at ON fetch_records (created_at);
`

// New opens (and if needed creates) the journal at dsn.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc serializes writers; one connection keeps in-memory databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, r *storage.FetchRecord) error {
	query := `
	INSERT INTO fetch_records (
		id, kind, query, url, provider, outcome, status_code, results, duration_ms, challenge, error, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		r.ID,
		string(r.Kind),
		r.Query,
		r.URL,
		r.Provider,
		r.Outcome,
		r.StatusCode,
		r.Results,
		r.Duration.Milliseconds(),
		r.Challenge,
		r.Error,
		r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert fetch record: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	query := `SELECT id, kind, query, url, provider, outcome, status_code, results, duration_ms, challenge, error, created_at FROM fetch_records WHERE 1=1`
	args := []any{}

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	if filter.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, filter.Outcome)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fetch records: %w", err)
	}
	defer rows.Close()

	records := []*storage.FetchRecord{}
	for rows.Next() {
		var r storage.FetchRecord
		var kind string
		var durationMs int64

		err := rows.Scan(
			&r.ID, &kind, &r.Query, &r.URL, &r.Provider, &r.Outcome, &r.StatusCode,
			&r.Results, &durationMs, &r.Challenge, &r.Error, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fetch record: %w", err)
		}

		r.Kind = storage.Kind(kind)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetch records: %w", err)
	}
	return records, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
