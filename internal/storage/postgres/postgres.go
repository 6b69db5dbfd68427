// Package postgres stores sentiment_data rows in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"
)

const pgErrUniqueViolation = "23505"

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Table struct {
	pool   pool
	tracer trace.Tracer
	close  func()
}

var _ storage.Table = (*Table)(nil)

// Open connects, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string, tracer trace.Tracer) (*Table, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	t := &Table{pool: p, tracer: tracer, close: p.Close}
	if err := t.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return t, nil
}

// New wraps an existing pool without touching the schema.
func New(p pool, tracer trace.Tracer) *Table {
	return &Table{pool: p, tracer: tracer}
}

// EnsureSchema creates the table, its indexes and the schema-version marker.
func (t *Table) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sentiment_data (
			id           TEXT PRIMARY KEY,
			domain       TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL,
			coins        TEXT NOT NULL DEFAULT '',
			published_at TIMESTAMPTZ NOT NULL,
			url          TEXT NOT NULL DEFAULT '',
			sentiment    DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment_data_coins ON sentiment_data (coins)`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment_data_sentiment ON sentiment_data (sentiment)`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment_data_published_at ON sentiment_data (published_at DESC)`,
		`CREATE TABLE IF NOT EXISTS sentiment_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := t.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	_, err := t.pool.Exec(ctx,
		`INSERT INTO sentiment_meta (key, value) VALUES ('schema_version', $1) ON CONFLICT (key) DO NOTHING`,
		fmt.Sprintf("%d", storage.SchemaVersion),
	)
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (t *Table) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	ctx, span := t.tracer.Start(ctx, "postgres.existing-ids")
	defer span.End()

	rows, err := t.pool.Query(ctx, `SELECT id FROM sentiment_data`)
	if err != nil {
		return nil, fmt.Errorf("select ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

const insertSQL = `
INSERT INTO sentiment_data (id, domain, title, coins, published_at, url, sentiment)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// InsertBatch sends all rows in one transaction. Any failure rolls back the
// batch; a unique violation is reported as storage.ErrPersistenceConflict.
func (t *Table) InsertBatch(ctx context.Context, records []domain.PersistedRecord) error {
	ctx, span := t.tracer.Start(ctx, "postgres.insert-batch")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertSQL, r.ID, r.Domain, r.Title, r.Coins, r.PublishedAt.UTC(), r.URL, r.Sentiment)
	}
	br := tx.SendBatch(ctx, batch)
	for _, r := range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.NewConflictError(r.ID, err)
			}
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isDuplicateKeyError(err) {
			return storage.NewConflictError("", err)
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *Table) Records(ctx context.Context, f storage.Filter) ([]domain.PersistedRecord, error) {
	ctx, span := t.tracer.Start(ctx, "postgres.records")
	defer span.End()

	query, args := buildRecordsQuery(f)
	rows, err := t.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PersistedRecord, 0, 128)
	for rows.Next() {
		var (
			r           domain.PersistedRecord
			domainCol   pgtype.Text
			publishedAt time.Time
		)
		if err := rows.Scan(&r.ID, &domainCol, &r.Title, &r.Coins, &publishedAt, &r.URL, &r.Sentiment); err != nil {
			return nil, err
		}
		if domainCol.Valid {
			r.Domain = domainCol.String
		}
		r.PublishedAt = publishedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func buildRecordsQuery(f storage.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !f.Since.IsZero() {
		add("published_at >= $%d", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		add("published_at <= $%d", f.Until.UTC())
	}
	if f.Domain != nil {
		add("COALESCE(domain, '') = $%d", *f.Domain)
	}
	if coin := f.CoinSymbol(); coin != "" {
		add("$%d = ANY(string_to_array(coins, ','))", coin)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, domain, title, coins, published_at, url, sentiment FROM sentiment_data`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY published_at DESC, id ASC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	return sb.String(), args
}

func (t *Table) Close() error {
	if t.close != nil {
		t.close()
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
