package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Drivers registered for SQLiteDriverName.
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/sundayezeilo/tinylink/internal/errx"
)

// SQLiteDriverName picks the database/sql driver for dsn. Remote libsql
// URLs go through the libsql client, anything else is a local SQLite file.
func SQLiteDriverName(dsn string) string {
	for _, prefix := range []string{"libsql://", "wss://", "ws://", "https://", "http://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "libsql"
		}
	}
	return "sqlite"
}

// SQLiteBusyTimeout is how long a local SQLite connection waits on a locked database.
const SQLiteBusyTimeout = 5 * time.Second

// OpenSQLite opens dsn with the matching driver. Local files get a busy
// timeout unless dsn already sets one.
func OpenSQLite(dsn string) (*sql.DB, error) {
	driver := SQLiteDriverName(dsn)
	if driver == "sqlite" && !strings.Contains(dsn, "busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dsn, sep, SQLiteBusyTimeout.Milliseconds())
	}
	return sql.Open(driver, dsn)
}

type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// SQLiteStoreConfig holds optional settings for the SQLite store.
type SQLiteStoreConfig struct {
	Now func() time.Time
}

// NewSQLiteStore returns a Store over a SQLite or libsql database.
// Timestamps are stored as Unix nanoseconds in UTC.
func NewSQLiteStore(db *sql.DB, config *SQLiteStoreConfig) Store {
	if config == nil {
		config = &SQLiteStoreConfig{}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &sqliteStore{db: db, now: now}
}

const (
	sqliteInsertLink = `INSERT INTO links (code, url, created_at) VALUES (?, ?, ?)`

	sqliteGetLinkByCode = `SELECT code, url, clicks, created_at, last_clicked
FROM links WHERE code = ?`

	sqliteListLinks = `SELECT code, url, clicks, created_at, last_clicked
FROM links ORDER BY created_at DESC, rowid DESC`

	sqliteListCounters = `SELECT code, clicks, last_clicked
FROM links ORDER BY created_at DESC, rowid DESC`

	sqliteIncrementClicks = `UPDATE links
SET clicks = clicks + 1,
    last_clicked = MAX(?, created_at, COALESCE(last_clicked, 0))
WHERE code = ?`

	sqliteDeleteLink = `DELETE FROM links WHERE code = ?`
)

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnixNano(n.Int64)
	return &t
}

func mapSQLiteError(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errx.E(op, errx.NotFound, err)
	case isSQLiteUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (Link, error) {
	var (
		link        Link
		createdAt   int64
		lastClicked sql.NullInt64
	)
	if err := row.Scan(&link.Code, &link.URL, &link.Clicks, &createdAt, &lastClicked); err != nil {
		return Link{}, err
	}
	link.CreatedAt = fromUnixNano(createdAt)
	link.LastClicked = nullTimePtr(lastClicked)
	return link, nil
}

func (s *sqliteStore) Insert(ctx context.Context, code, url string) (Link, error) {
	const op = "links.sqliteStore.Insert"

	createdAt := s.now().UTC().UnixNano()
	if _, err := s.db.ExecContext(ctx, sqliteInsertLink, code, url, createdAt); err != nil {
		return Link{}, mapSQLiteError(op, err)
	}
	return Link{
		Code:      code,
		URL:       url,
		CreatedAt: fromUnixNano(createdAt),
	}, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]Link, error) {
	const op = "links.sqliteStore.List"

	rows, err := s.db.QueryContext(ctx, sqliteListLinks)
	if err != nil {
		return nil, mapSQLiteError(op, err)
	}
	defer rows.Close()

	out := []Link{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, mapSQLiteError(op, err)
		}
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(op, err)
	}
	return out, nil
}

func (s *sqliteStore) Counters(ctx context.Context) ([]Counter, error) {
	const op = "links.sqliteStore.Counters"

	rows, err := s.db.QueryContext(ctx, sqliteListCounters)
	if err != nil {
		return nil, mapSQLiteError(op, err)
	}
	defer rows.Close()

	out := []Counter{}
	for rows.Next() {
		var (
			c           Counter
			lastClicked sql.NullInt64
		)
		if err := rows.Scan(&c.Code, &c.Clicks, &lastClicked); err != nil {
			return nil, mapSQLiteError(op, err)
		}
		c.LastClicked = nullTimePtr(lastClicked)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(op, err)
	}
	return out, nil
}

func (s *sqliteStore) FindByCode(ctx context.Context, code string) (Link, error) {
	const op = "links.sqliteStore.FindByCode"

	link, err := scanLink(s.db.QueryRowContext(ctx, sqliteGetLinkByCode, code))
	if err != nil {
		return Link{}, mapSQLiteError(op, err)
	}
	return link, nil
}

func (s *sqliteStore) IncrementClicks(ctx context.Context, code string) error {
	const op = "links.sqliteStore.IncrementClicks"

	res, err := s.db.ExecContext(ctx, sqliteIncrementClicks, s.now().UTC().UnixNano(), code)
	if err != nil {
		return mapSQLiteError(op, err)
	}
	return requireAffected(op, res)
}

func (s *sqliteStore) Delete(ctx context.Context, code string) error {
	const op = "links.sqliteStore.Delete"

	res, err := s.db.ExecContext(ctx, sqliteDeleteLink, code)
	if err != nil {
		return mapSQLiteError(op, err)
	}
	return requireAffected(op, res)
}

func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, sql.ErrNoRows)
	}
	return nil
}
