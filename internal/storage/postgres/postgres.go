// Package postgres is the shared-server journal backend.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/metasearch/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
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
	duration_ms BIGINT NOT NULL,
	challenge TEXT NOT NULL,
	error TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS fetch_records_created_at ON fetch_records (created_at);
`

// New connects to dsn and creates the journal table if needed.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, r *storage.FetchRecord) error {
	query := `
	INSERT INTO fetch_records (
		id, kind, query, url, provider, outcome, status_code, results, duration_ms, challenge, error, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := b.pool.Exec(ctx, query,
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
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fetch record: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.FetchRecord, error) {
	query := `SELECT id, kind, query, url, provider, outcome, status_code, results, duration_ms, challenge, error, created_at FROM fetch_records WHERE 1=1`
	args := []any{}

	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(clause, len(args))
	}

	if filter.Query != "" {
		add(` AND query = $%d`, filter.Query)
	}
	if filter.Kind != "" {
		add(` AND kind = $%d`, string(filter.Kind))
	}
	if filter.Provider != "" {
		add(` AND provider = $%d`, filter.Provider)
	}
	if filter.Outcome != "" {
		add(` AND outcome = $%d`, filter.Outcome)
	}
	if filter.Since != nil {
		add(` AND created_at >= $%d`, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		add(` LIMIT $%d`, filter.Limit)
	}
	if filter.Offset > 0 {
		add(` OFFSET $%d`, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
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

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
