// Package migrations embeds the schema migrations for every supported
// database and applies them with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Dialect names the SQL flavour of a migration set.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) goose() (goose.Dialect, error) {
	switch d {
	case Postgres:
		return goose.DialectPostgres, nil
	case SQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", d)
	}
}

// Source returns the embedded migration files for the dialect.
func Source(d Dialect) (fs.FS, error) {
	if _, err := d.goose(); err != nil {
		return nil, err
	}
	return fs.Sub(files, string(d))
}

// NewProvider returns a goose provider over db for the dialect.
func NewProvider(db *sql.DB, d Dialect) (*goose.Provider, error) {
	gd, err := d.goose()
	if err != nil {
		return nil, err
	}
	fsys, err := Source(d)
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(gd, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return p, nil
}

// Up applies all pending migrations and returns how many ran.
func Up(ctx context.Context, db *sql.DB, d Dialect) (int, error) {
	p, err := NewProvider(db, d)
	if err != nil {
		return 0, err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return len(results), nil
}
