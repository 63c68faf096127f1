package main

import (
	"fmt"
	"io"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/iota-uz/statreg/migrations"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the database schema",
	}
	cmd.AddCommand(
		newMigrateSubCmd(root, "up", "Apply all pending migrations", migrateUp),
		newMigrateSubCmd(root, "down", "Roll back the latest migration", migrateDown),
		newMigrateSubCmd(root, "status", "List migrations and whether they are applied", migrateStatus),
	)
	return cmd
}

type migrateFunc func(cmd *cobra.Command, p *goose.Provider) error

func newMigrateSubCmd(root *rootOptions, use, short string, run migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			defer cfg.Unload()

			pool, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			p, closeDB, err := migrations.NewProvider(pool)
			if err != nil {
				return withCode(exitDB, err)
			}
			defer closeDB()
			if err := run(cmd, p); err != nil {
				return withCode(exitDB, err)
			}
			return nil
		},
	}
}

func migrateUp(cmd *cobra.Command, p *goose.Provider) error {
	results, err := p.Up(cmd.Context())
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
	}
	printResults(cmd.OutOrStdout(), results...)
	return nil
}

func migrateDown(cmd *cobra.Command, p *goose.Provider) error {
	result, err := p.Down(cmd.Context())
	if err != nil {
		return err
	}
	printResults(cmd.OutOrStdout(), result)
	return nil
}

func migrateStatus(cmd *cobra.Command, p *goose.Provider) error {
	statuses, err := p.Status(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range statuses {
		applied := "pending"
		if s.State == goose.StateApplied {
			applied = s.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%05d  %-32s %s\n", s.Source.Version, s.Source.Path, applied)
	}
	return nil
}

func printResults(out io.Writer, results ...*goose.MigrationResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		fmt.Fprintf(out, "%s %s (%s)\n", r.Direction, r.Source.Path, r.Duration)
	}
}
