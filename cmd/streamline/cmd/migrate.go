package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sanketb-14/Streamline-sub000/internal/database"
	"github.com/sanketb-14/Streamline-sub000/internal/database/migrations"
	"github.com/sanketb-14/Streamline-sub000/internal/observability"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database schema migration commands",
	Long: `Inspect and change the catalog schema. The server applies pending
migrations on start; these commands are for operators who need to check or
roll back a schema by hand.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withMigrator(func(cmd *cobra.Command, m *migrations.Migrator) error {
		if err := m.Up(cmd.Context()); err != nil {
			return err
		}
		return printMigrationStatus(cmd, m)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recently applied migration",
	RunE: withMigrator(func(cmd *cobra.Command, m *migrations.Migrator) error {
		if err := m.Down(cmd.Context()); err != nil {
			return err
		}
		return printMigrationStatus(cmd, m)
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether each is applied",
	RunE:  withMigrator(printMigrationStatus),
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	migrateCmd.PersistentFlags().String("database", "streamline.db", "Database DSN (file path for sqlite)")
}

// withMigrator opens the configured database for the duration of fn.
func withMigrator(fn func(*cobra.Command, *migrations.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logger := observability.WithComponent(slog.Default(), "database")
		db, err := database.New(appConfig.Database, logger, nil)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("closing database", slog.String("error", err.Error()))
			}
		}()
		return fn(cmd, db.SchemaMigrator())
	}
}

func printMigrationStatus(cmd *cobra.Command, m *migrations.Migrator) error {
	statuses, err := m.Status(cmd.Context())
	if err != nil {
		return err
	}
	writeMigrationStatus(cmd.OutOrStdout(), statuses)
	return nil
}

func writeMigrationStatus(w io.Writer, statuses []migrations.MigrationStatus) {
	for _, s := range statuses {
		state := "pending"
		if s.Applied && s.AppliedAt != nil {
			state = "applied " + s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s  %-28s  %s\n", s.Version, state, s.Description)
	}
}
