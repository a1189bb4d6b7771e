package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgsync/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the organization schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withProvider(cmd.Context(), func(ctx context.Context, p *goose.Provider) error {
					results, err := p.Up(ctx)
					if err != nil {
						return withCode(exitDBWrite, fmt.Errorf("migrate up: %w", err))
					}
					return writeMigrationResults(cmd.OutOrStdout(), results)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withProvider(cmd.Context(), func(ctx context.Context, p *goose.Provider) error {
					result, err := p.Down(ctx)
					if err != nil {
						return withCode(exitDBWrite, fmt.Errorf("migrate down: %w", err))
					}
					return writeMigrationResults(cmd.OutOrStdout(), []*goose.MigrationResult{result})
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withProvider(cmd.Context(), func(ctx context.Context, p *goose.Provider) error {
					statuses, err := p.Status(ctx)
					if err != nil {
						return withCode(exitDB, fmt.Errorf("migrate status: %w", err))
					}
					w := cmd.OutOrStdout()
					for _, s := range statuses {
						applied := "-"
						if !s.AppliedAt.IsZero() {
							applied = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
						fmt.Fprintf(w, "%-8s %-20s %s\n", s.State, applied, s.Source.Path)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func withProvider(ctx context.Context, fn func(context.Context, *goose.Provider) error) error {
	conf := useConfig()
	ctx = withLogger(ctx, conf)
	pool, err := connectDB(ctx, conf)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer func(db *sql.DB) { _ = db.Close() }(db)

	p, err := migrations.NewProvider(db)
	if err != nil {
		return withCode(exitDB, fmt.Errorf("load migrations: %w", err))
	}
	return fn(ctx, p)
}

func writeMigrationResults(w io.Writer, results []*goose.MigrationResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No migrations to run.")
		return err
	}
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%-4s %s (%s)\n", r.Direction, r.Source.Path, r.Duration.Round(time.Millisecond)); err != nil {
			return err
		}
	}
	return nil
}
