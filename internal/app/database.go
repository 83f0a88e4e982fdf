package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sethvargo/go-retry"

	"github.com/sundayezeilo/tinylink/internal/config"
	db "github.com/sundayezeilo/tinylink/internal/db/sqlc"
	"github.com/sundayezeilo/tinylink/internal/db/migrations"
	"github.com/sundayezeilo/tinylink/internal/links"
)

const (
	connectBackoffBase = 500 * time.Millisecond
	connectBackoffCap  = 10 * time.Second
)

// Database owns the connection for the configured driver.
type Database struct {
	Driver string
	Store  links.Store
	// SQL is a database/sql handle used for migrations. For Postgres it
	// shares the pgx pool.
	SQL  *sql.DB
	pool *pgxpool.Pool
	url  string
}

// Dialect returns the migration dialect for the driver.
func (d *Database) Dialect() migrations.Dialect {
	if d.Driver == config.DriverSQLite {
		return migrations.SQLite
	}
	return migrations.Postgres
}

// Migrate applies pending migrations.
func (d *Database) Migrate(ctx context.Context, logger *slog.Logger) error {
	applied, err := migrations.Up(ctx, d.SQL, d.Dialect())
	if err != nil {
		return err
	}
	logger.Info("database migrations applied", "count", applied, "dialect", string(d.Dialect()))
	return nil
}

// Close releases the connection.
func (d *Database) Close() {
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// ConnectDatabase opens the configured database and waits until it answers.
func ConnectDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*Database, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return connectPostgres(ctx, cfg, logger)
	case config.DriverSQLite:
		return connectSQLite(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func connectPostgres(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns

	logger.Info("connecting to database",
		"driver", cfg.Driver,
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pingWithRetry(ctx, cfg.ConnectRetries, logger, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return &Database{
		Driver: cfg.Driver,
		Store:  links.NewPostgresStore(db.New(pool)),
		SQL:    stdlib.OpenDBFromPool(pool),
		pool:   pool,
	}, nil
}

func connectSQLite(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*Database, error) {
	driver := links.SQLiteDriverName(cfg.URL)
	logger.Info("connecting to database", "driver", driver)

	sqlDB, err := links.OpenSQLite(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pingWithRetry(ctx, cfg.ConnectRetries, logger, sqlDB.PingContext); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return &Database{
		Driver: cfg.Driver,
		Store:  links.NewSQLiteStore(sqlDB, nil),
		SQL:    sqlDB,
		url:    cfg.URL,
	}, nil
}

// pingWithRetry retries ping with capped exponential backoff.
func pingWithRetry(ctx context.Context, retries uint64, logger *slog.Logger, ping func(context.Context) error) error {
	backoff := retry.WithMaxRetries(retries, retry.WithCappedDuration(connectBackoffCap, retry.NewExponential(connectBackoffBase)))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := ping(ctx); err != nil {
			logger.Warn("database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// LimitSQLite serializes access to a local SQLite file. Call it after
// migrations, which need more than one connection.
func (d *Database) LimitSQLite() {
	if d.Driver == config.DriverSQLite && links.SQLiteDriverName(d.url) == "sqlite" {
		d.SQL.SetMaxOpenConns(1)
	}
}
