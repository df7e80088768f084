package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PgxIface is the subset of pgxpool.Pool the stores use. It exists so tests
// can substitute a pgxmock pool.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// NewPool connects a pgxpool.Pool for the given DSN.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// URLStore writes url rows into one table with a unique url column.
type URLStore struct {
	pool  PgxIface
	table string
}

// NewURLStore binds a URLStore to the given table.
func NewURLStore(pool PgxIface, table string) (*URLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &URLStore{pool: pool, table: table}, nil
}

// Table returns the bound table name, used in sink log lines.
func (s *URLStore) Table() string { return s.table }

// EnsureSchema creates the table and its unique url constraint if missing.
func (s *URLStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (url TEXT PRIMARY KEY)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure %s schema: %w", s.table, err)
	}
	return nil
}

// BulkInsert writes the batch unordered; rows already present are skipped
// via ON CONFLICT DO NOTHING, so duplicates never surface as errors.
func (s *URLStore) BulkInsert(ctx context.Context, urls []string) (int64, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (url) SELECT unnest($1::text[]) ON CONFLICT (url) DO NOTHING`,
		s.table)
	tag, err := s.pool.Exec(ctx, query, urls)
	if err != nil {
		return 0, fmt.Errorf("bulk insert into %s: %w", s.table, err)
	}
	return tag.RowsAffected(), nil
}

// ListURLs returns every stored url. Used by the resolution pipeline when
// it reads its work set from the database instead of a file.
func (s *URLStore) ListURLs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT url FROM %s ORDER BY url`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list urls from %s: %w", s.table, err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate urls: %w", err)
	}
	return urls, nil
}

// PrefixStore manages the discovery partition table.
type PrefixStore struct {
	pool  PgxIface
	table string
}

// NewPrefixStore binds a PrefixStore to the given table.
func NewPrefixStore(pool PgxIface, table string) (*PrefixStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PrefixStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the partition table if missing.
func (s *PrefixStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (prefix CHAR(3) PRIMARY KEY, status TEXT NOT NULL DEFAULT 'TODO')`,
		s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure %s schema: %w", s.table, err)
	}
	return nil
}

// Claim atomically flips one TODO row to PROCESSING and returns its prefix.
// The subselect takes a row lock with SKIP LOCKED, so concurrent claimants
// never receive the same unit.
func (s *PrefixStore) Claim(ctx context.Context) (string, error) {
	query := fmt.Sprintf(`
UPDATE %[1]s SET status = 'PROCESSING'
WHERE prefix = (
	SELECT prefix FROM %[1]s
	WHERE status = 'TODO'
	ORDER BY prefix
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING prefix`, s.table)

	var prefix string
	if err := s.pool.QueryRow(ctx, query).Scan(&prefix); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoWork
		}
		return "", fmt.Errorf("claim prefix: %w", err)
	}
	return prefix, nil
}

// Complete marks the unit DONE.
func (s *PrefixStore) Complete(ctx context.Context, prefix string) error {
	query := fmt.Sprintf(`UPDATE %s SET status = 'DONE' WHERE prefix = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, prefix); err != nil {
		return fmt.Errorf("complete prefix %s: %w", prefix, err)
	}
	return nil
}

// Seed inserts partition units in batches, skipping ones already present so
// re-running the seeder is harmless.
func (s *PrefixStore) Seed(ctx context.Context, prefixes []string, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (prefix, status) SELECT unnest($1::text[]), 'TODO' ON CONFLICT (prefix) DO NOTHING`,
		s.table)

	var inserted int64
	for start := 0; start < len(prefixes); start += batchSize {
		end := start + batchSize
		if end > len(prefixes) {
			end = len(prefixes)
		}
		tag, err := s.pool.Exec(ctx, query, prefixes[start:end])
		if err != nil {
			return inserted, fmt.Errorf("seed prefixes: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
