package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"OpportunityMonitor/internal/domain"
	"OpportunityMonitor/internal/ports"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	seenTable = "seen"

	// timestampLayout is fixed width so first_seen_utc sorts lexicographically.
	timestampLayout = "2006-01-02T15:04:05.000000-07:00"
)

const seenSchema = `
CREATE TABLE IF NOT EXISTS seen (
	id             TEXT PRIMARY KEY,
	first_seen_utc TEXT NOT NULL
)`

// Ledger persists fingerprints of entries that were already eligible for notification.
type Ledger struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.SeenLedger = (*Ledger)(nil)

// Option tweaks a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source used by MarkSeen.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// OpenLedger opens the backing store and creates the schema if absent.
// It is safe to call on every run. The caller owns the returned handle and must Close it.
func OpenLedger(ctx context.Context, driver, dsn string, opts ...Option) (*Ledger, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var placeholder sq.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholder = sq.Question
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres:
		placeholder = sq.Dollar
	default:
		return nil, eris.Errorf("ledger: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open")
	}

	l := &Ledger{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if driver == DriverSQLite {
		// Each connection to ":memory:" is a separate empty database.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA synchronous=FULL",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, eris.Wrapf(err, "ledger: exec %s", pragma)
			}
		}
	}

	if _, err := db.ExecContext(ctx, seenSchema); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "ledger: migrate")
	}

	return l, nil
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return eris.Wrap(l.db.Close(), "ledger: close")
}

// Contains reports whether id was recorded by any previous MarkSeen.
func (l *Ledger) Contains(ctx context.Context, id string) (bool, error) {
	query, args, err := l.builder.Select("1").From(seenTable).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return false, eris.Wrap(err, "ledger: build contains query")
	}

	var one int
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "ledger: contains %s", id)
	}
	return true, nil
}

// MarkSeen records id with the current UTC time unless it already exists.
// An existing first_seen_utc is never overwritten.
func (l *Ledger) MarkSeen(ctx context.Context, id string) error {
	stamp := l.now().UTC().Format(timestampLayout)

	query, args, err := l.builder.
		Insert(seenTable).
		Columns("id", "first_seen_utc").
		Values(id, stamp).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return eris.Wrap(err, "ledger: build insert")
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "ledger: mark seen %s", id)
	}
	return nil
}

// Record returns the stored row for id.
func (l *Ledger) Record(ctx context.Context, id string) (domain.SeenRecord, bool, error) {
	query, args, err := l.builder.
		Select("id", "first_seen_utc").
		From(seenTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.SeenRecord{}, false, eris.Wrap(err, "ledger: build record query")
	}

	rec, err := scanRecord(l.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SeenRecord{}, false, nil
	}
	if err != nil {
		return domain.SeenRecord{}, false, eris.Wrapf(err, "ledger: record %s", id)
	}
	return rec, true, nil
}

// Count returns the number of stored fingerprints.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	query, args, err := l.builder.Select("COUNT(*)").From(seenTable).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "ledger: build count query")
	}

	var n int
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "ledger: count")
	}
	return n, nil
}

// Latest returns up to limit records, newest first.
func (l *Ledger) Latest(ctx context.Context, limit uint64) ([]domain.SeenRecord, error) {
	if limit == 0 {
		limit = 10
	}

	query, args, err := l.builder.
		Select("id", "first_seen_utc").
		From(seenTable).
		OrderBy("first_seen_utc DESC", "id").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "ledger: build latest query")
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: latest")
	}
	defer rows.Close()

	var records []domain.SeenRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: scan latest")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "ledger: latest iterate")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.SeenRecord, error) {
	var (
		id    string
		stamp string
	)
	if err := row.Scan(&id, &stamp); err != nil {
		return domain.SeenRecord{}, err
	}

	firstSeen, err := time.Parse(timestampLayout, stamp)
	if err != nil {
		return domain.SeenRecord{}, eris.Wrapf(err, "parse first_seen_utc %q", stamp)
	}
	return domain.SeenRecord{ID: id, FirstSeenUTC: firstSeen.UTC()}, nil
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "ledger: create directory %s", dir)
	}
	return nil
}
