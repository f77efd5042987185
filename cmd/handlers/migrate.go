package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"studio/internal/config"
	"studio/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations.

Migrations are embedded SQL files applied in version order and recorded in
schema_migrations. A Postgres advisory lock serializes concurrent runs, so
'studio serve' replicas can migrate on startup safely.

Examples:
  studio migrate up
  studio migrate status --json
  studio migrate rollback --force`,
	}

	cmd.AddCommand(newMigrateUpCmd(), newMigrateStatusCmd(), newMigrateRollbackCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(db *persistence.PostgresDB) error {
				if err := persistenceMigrate(cmd.Context(), db); err != nil {
					return err
				}
				fmt.Println("✅ All migrations applied successfully")
				return nil
			})
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(db *persistence.PostgresDB) error {
				status, err := persistence.NewMigrationManager(db).Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(status)
				}
				printMigrationStatus(status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func newMigrateRollbackCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Forget the last applied migration",
		Long: `Remove the last applied migration from schema_migrations.

⚠️  The schema changes themselves are NOT reverted.
Use --force to skip the confirmation prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm("This only removes the migration record. Proceed? (yes/no): ") {
				fmt.Println("Rollback cancelled")
				return nil
			}
			return withDatabase(func(db *persistence.PostgresDB) error {
				if err := persistence.NewMigrationManager(db).Rollback(cmd.Context()); err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Println("⚠️  Migration record removed, revert its schema changes by hand")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}

// persistenceMigrate applies every pending migration
func persistenceMigrate(ctx context.Context, db *persistence.PostgresDB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := persistence.NewMigrationManager(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func printMigrationStatus(status []persistence.MigrationStatus) {
	if len(status) == 0 {
		fmt.Println("No migrations found")
		return
	}

	pending := 0
	for _, m := range status {
		mark := "✅"
		if !m.Applied {
			mark = "⏳"
			pending++
		}
		fmt.Printf("%s %03d %s\n", mark, m.Version, m.Description)
	}

	fmt.Printf("\n%d of %d applied\n", len(status)-pending, len(status))
	if pending > 0 {
		fmt.Println("Run 'studio migrate up' to apply pending migrations")
	}
}

// withDatabase opens the configured database for the duration of fn
func withDatabase(fn func(db *persistence.PostgresDB) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, err := getDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// confirm asks a yes/no question on stdin
func confirm(prompt string) bool {
	fmt.Print(prompt)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes", "j", "ja":
		return true
	}
	return false
}
