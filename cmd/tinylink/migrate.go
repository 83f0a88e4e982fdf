package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/sundayezeilo/tinylink/internal/app"
	"github.com/sundayezeilo/tinylink/internal/config"
	"github.com/sundayezeilo/tinylink/internal/db/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or inspect schema migrations directly against the database.
Reads DB_DRIVER and DATABASE_URL from the environment or a .env file.`,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProvider(cmd, func(ctx context.Context, p *goose.Provider) error {
				results, err := p.Up(ctx)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
				}
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "OK  %s (%s)\n", filepath.Base(r.Source.Path), r.Duration.Round(time.Millisecond))
				}
				return nil
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProvider(cmd, func(ctx context.Context, p *goose.Provider) error {
				r, err := p.Down(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s\n", filepath.Base(r.Source.Path))
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProvider(cmd, func(ctx context.Context, p *goose.Provider) error {
				statuses, err := p.Status(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "MIGRATION\tSTATE\tAPPLIED AT")
				for _, s := range statuses {
					applied := "-"
					if s.State == goose.StateApplied {
						applied = s.AppliedAt.Local().Format(time.DateTime)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", filepath.Base(s.Source.Path), s.State, applied)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func withProvider(cmd *cobra.Command, fn func(context.Context, *goose.Provider) error) error {
	ctx := cmd.Context()

	if err := app.LoadEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	database, err := app.ConnectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	p, err := migrations.NewProvider(database.SQL, database.Dialect())
	if err != nil {
		return err
	}
	return fn(ctx, p)
}
