package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sundayezeilo/tinylink/internal/config"
	"github.com/sundayezeilo/tinylink/internal/links"
	"github.com/sundayezeilo/tinylink/internal/server"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DB      *Database
	Server  *server.Server
	Handler *links.Handler
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := NewLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	return NewWithConfig(ctx, cfg, logger)
}

// NewWithConfig wires the application from an already loaded config.
func NewWithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	database, err := ConnectDatabase(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, logger); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	database.LimitSQLite()

	svc := links.NewService(database.Store, nil)
	handler := links.NewHandler(links.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	srv := server.New(cfg, logger, handler)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"driver", cfg.Database.Driver,
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      database,
		Server:  srv,
		Handler: handler,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown releases the database connection.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.DB != nil {
		a.DB.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// LoadEnv loads a .env file outside production. A missing file is not an error.
func LoadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "" || env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// NewLogger creates a JSON logger on stdout at the given level.
func NewLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
