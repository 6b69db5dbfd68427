// Package sqlite stores sentiment_data rows in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/domain"
	"github.com/mico/crypto-sentiment-analysis/internal/storage"

	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Table struct {
	db     *sql.DB
	tracer trace.Tracer
}

var _ storage.Table = (*Table)(nil)

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string, tracer trace.Tracer) (*Table, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	t := &Table{db: db, tracer: tracer}
	if err := t.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return t, nil
}

func (t *Table) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sentiment_data (
			id           TEXT PRIMARY KEY,
			domain       TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL,
			coins        TEXT NOT NULL DEFAULT '',
			published_at TEXT NOT NULL,
			url          TEXT NOT NULL DEFAULT '',
			sentiment    REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_coins ON sentiment_data(coins)`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment ON sentiment_data(sentiment)`,
		`CREATE INDEX IF NOT EXISTS idx_published_at ON sentiment_data(published_at)`,
		`CREATE TABLE IF NOT EXISTS sentiment_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		fmt.Sprintf(`INSERT OR IGNORE INTO sentiment_meta (key, value) VALUES ('schema_version', '%d')`, storage.SchemaVersion),
	}
	for _, stmt := range stmts {
		if _, err := t.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion reads the recorded schema version.
func (t *Table) SchemaVersion(ctx context.Context) (string, error) {
	var v string
	err := t.db.QueryRowContext(ctx, `SELECT value FROM sentiment_meta WHERE key = 'schema_version'`).Scan(&v)
	return v, err
}

func (t *Table) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	ctx, span := t.tracer.Start(ctx, "sqlite.existing-ids")
	defer span.End()

	rows, err := t.db.QueryContext(ctx, `SELECT id FROM sentiment_data`)
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

func (t *Table) InsertBatch(ctx context.Context, records []domain.PersistedRecord) error {
	ctx, span := t.tracer.Start(ctx, "sqlite.insert-batch")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sentiment_data (id, domain, title, coins, published_at, url, sentiment)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, r.ID, r.Domain, r.Title, r.Coins,
			r.PublishedAt.UTC().Format(timeLayout), r.URL, r.Sentiment)
		if err != nil {
			if isConstraintError(err) {
				return storage.NewConflictError(r.ID, err)
			}
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *Table) Records(ctx context.Context, f storage.Filter) ([]domain.PersistedRecord, error) {
	ctx, span := t.tracer.Start(ctx, "sqlite.records")
	defer span.End()

	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		where = append(where, "published_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if !f.Until.IsZero() {
		where = append(where, "published_at <= ?")
		args = append(args, f.Until.UTC().Format(timeLayout))
	}
	if f.Domain != nil {
		where = append(where, "COALESCE(domain, '') = ?")
		args = append(args, *f.Domain)
	}
	if coin := f.CoinSymbol(); coin != "" {
		where = append(where, "(',' || coins || ',') LIKE ?")
		args = append(args, "%,"+coin+",%")
	}

	query := `SELECT id, domain, title, coins, published_at, url, sentiment FROM sentiment_data`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY published_at DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	var out []domain.PersistedRecord
	for rows.Next() {
		var (
			r         domain.PersistedRecord
			domainCol sql.NullString
			published string
		)
		if err := rows.Scan(&r.ID, &domainCol, &r.Title, &r.Coins, &published, &r.URL, &r.Sentiment); err != nil {
			return nil, err
		}
		r.Domain = domainCol.String
		r.PublishedAt, err = parseTime(published)
		if err != nil {
			return nil, fmt.Errorf("parse published_at for %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// parseTime accepts the layout written by InsertBatch and the plain
// "YYYY-MM-DD HH:MM:SS" form found in older databases.
func parseTime(v string) (time.Time, error) {
	layouts := []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", v)
}

func (t *Table) Close() error {
	return t.db.Close()
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
