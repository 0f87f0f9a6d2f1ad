// Package sqlstore persists option records and item meta in SQL tables.
// SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq) share one schema.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/state"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect accepts the dialect names used in configuration.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", name)
	}
}

// Store implements state.Store and state.ItemStore over *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ state.Store[settings.Values]     = (*Store)(nil)
	_ state.ItemStore[settings.Values] = (*Store)(nil)
	_ state.ItemLister                 = (*Store)(nil)
)

// Open connects to dsn, configures the pool and applies pending
// migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	switch dialect {
	case DialectSQLite:
		// one writer
		db.SetMaxOpenConns(1)
	case DialectPostgres:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	default:
		db.Close()
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	store := New(db, dialect)
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// New wraps an open database. The schema is assumed to be current.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Migrate applies the embedded migrations.
func (s *Store) Migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	var dbDriver database.Driver
	switch s.dialect {
	case DialectPostgres:
		dbDriver, err = postgres.WithInstance(s.db, &postgres.Config{})
	case DialectSQLite:
		dbDriver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	default:
		err = fmt.Errorf("sqlstore: unsupported dialect %q", s.dialect)
	}
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, string(s.dialect), dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, ref state.Ref) (settings.Values, state.Meta, bool, error) {
	id, err := ref.Identifier()
	if err != nil {
		return nil, state.Meta{}, false, err
	}
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT value, snapshot_id, etag, extra, updated_at FROM settings_options WHERE option_id = ?`), id)
	return scanRecord(row)
}

func (s *Store) Save(ctx context.Context, ref state.Ref, snapshot settings.Values, meta state.Meta) (state.Meta, error) {
	id, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}
	args, err := recordArgs(snapshot, meta)
	if err != nil {
		return state.Meta{}, err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO settings_options (option_id, value, snapshot_id, etag, extra, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (option_id) DO UPDATE SET
			value = excluded.value,
			snapshot_id = excluded.snapshot_id,
			etag = excluded.etag,
			extra = excluded.extra,
			updated_at = excluded.updated_at`), append([]any{id}, args...)...)
	if err != nil {
		return state.Meta{}, fmt.Errorf("upsert option %s: %w", id, err)
	}
	return meta, nil
}

func (s *Store) Delete(ctx context.Context, ref state.Ref) (bool, error) {
	id, err := ref.Identifier()
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM settings_options WHERE option_id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete option %s: %w", id, err)
	}
	return affected(res)
}

func (s *Store) LoadItem(ctx context.Context, ref state.ItemRef) (settings.Values, state.Meta, bool, error) {
	if _, err := ref.Identifier(); err != nil {
		return nil, state.Meta{}, false, err
	}
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT value, snapshot_id, etag, extra, updated_at FROM settings_item_meta WHERE item_id = ? AND meta_key = ?`),
		ref.ItemID, ref.Key)
	return scanRecord(row)
}

func (s *Store) SaveItem(ctx context.Context, ref state.ItemRef, snapshot settings.Values, meta state.Meta) (state.Meta, error) {
	if _, err := ref.Identifier(); err != nil {
		return state.Meta{}, err
	}
	args, err := recordArgs(snapshot, meta)
	if err != nil {
		return state.Meta{}, err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO settings_item_meta (item_id, meta_key, value, snapshot_id, etag, extra, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id, meta_key) DO UPDATE SET
			value = excluded.value,
			snapshot_id = excluded.snapshot_id,
			etag = excluded.etag,
			extra = excluded.extra,
			updated_at = excluded.updated_at`), append([]any{ref.ItemID, ref.Key}, args...)...)
	if err != nil {
		return state.Meta{}, fmt.Errorf("upsert item %s meta %s: %w", ref.ItemID, ref.Key, err)
	}
	return meta, nil
}

func (s *Store) DeleteItem(ctx context.Context, ref state.ItemRef) (bool, error) {
	if _, err := ref.Identifier(); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM settings_item_meta WHERE item_id = ? AND meta_key = ?`), ref.ItemID, ref.Key)
	if err != nil {
		return false, fmt.Errorf("delete item %s meta %s: %w", ref.ItemID, ref.Key, err)
	}
	return affected(res)
}

// Items lists the item IDs holding a record under key.
func (s *Store) Items(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT item_id FROM settings_item_meta WHERE meta_key = ? ORDER BY item_id`), key)
	if err != nil {
		return nil, fmt.Errorf("list items for %s: %w", key, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func recordArgs(snapshot settings.Values, meta state.Meta) ([]any, error) {
	if snapshot == nil {
		snapshot = settings.Values{}
	}
	value, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	extra := []byte("{}")
	if len(meta.Extra) > 0 {
		if extra, err = json.Marshal(meta.Extra); err != nil {
			return nil, fmt.Errorf("encode meta: %w", err)
		}
	}
	updated := ""
	if !meta.UpdatedAt.IsZero() {
		updated = meta.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return []any{string(value), meta.SnapshotID, meta.ETag, string(extra), updated}, nil
}

func scanRecord(row *sql.Row) (settings.Values, state.Meta, bool, error) {
	var value, snapshotID, etag, extra, updated string
	if err := row.Scan(&value, &snapshotID, &etag, &extra, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, state.Meta{}, false, nil
		}
		return nil, state.Meta{}, false, fmt.Errorf("scan record: %w", err)
	}
	var snapshot settings.Values
	if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	if snapshot == nil {
		snapshot = settings.Values{}
	}
	meta := state.Meta{SnapshotID: snapshotID, ETag: etag}
	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &meta.Extra); err != nil {
			return nil, state.Meta{}, false, fmt.Errorf("decode meta: %w", err)
		}
	}
	if updated != "" {
		ts, err := time.Parse(time.RFC3339Nano, updated)
		if err != nil {
			return nil, state.Meta{}, false, fmt.Errorf("parse updated_at: %w", err)
		}
		meta.UpdatedAt = ts
	}
	return snapshot, meta, true, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
