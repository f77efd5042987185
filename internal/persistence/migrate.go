package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"studio/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationLockKey is the advisory lock id held while migrating, so replicas
// starting together apply each migration once.
const migrationLockKey int64 = 0x5354554449 // "STUDI"

// Migration is one embedded schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
	Applied     bool   `json:"applied"`
}

// MigrationManager applies the embedded migrations
type MigrationManager struct {
	db         *PostgresDB
	migrations fs.FS
	log        *zap.SugaredLogger
}

// NewMigrationManager creates a migration manager for db
func NewMigrationManager(db *PostgresDB) *MigrationManager {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return &MigrationManager{db: db, migrations: sub, log: logger.Get()}
}

// Migrate applies every pending migration in version order
func (m *MigrationManager) Migrate(ctx context.Context) error {
	available, err := parseMigrations(m.migrations, m.log)
	if err != nil {
		return err
	}

	return m.withLock(ctx, func(conn *sql.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		count := 0
		for _, mig := range available {
			if applied[mig.Version] {
				continue
			}
			if err := m.apply(ctx, conn, mig); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
			}
			count++
		}

		if count == 0 {
			m.log.Infow("Schema is up to date", "migrations", len(available))
		} else {
			m.log.Infow("Applied migrations", "count", count)
		}
		return nil
	})
}

// Status lists every embedded migration and whether it has been applied
func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	available, err := parseMigrations(m.migrations, m.log)
	if err != nil {
		return nil, err
	}

	var status []MigrationStatus
	err = m.withLock(ctx, func(conn *sql.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		for _, mig := range available {
			status = append(status, MigrationStatus{
				Version:     mig.Version,
				Description: mig.Description,
				Applied:     applied[mig.Version],
			})
		}
		return nil
	})
	return status, err
}

// Rollback forgets the last applied migration. The schema itself is left as is.
func (m *MigrationManager) Rollback(ctx context.Context) error {
	return m.withLock(ctx, func(conn *sql.Conn) error {
		var version int
		err := conn.QueryRowContext(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
		if err == sql.ErrNoRows {
			return fmt.Errorf("no migrations to rollback")
		}
		if err != nil {
			return err
		}

		if _, err := conn.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		m.log.Warnw("Migration record removed; revert the schema changes by hand", "version", version)
		return nil
	})
}

// withLock runs fn on one connection holding the migration advisory lock,
// with schema_migrations guaranteed to exist
func (m *MigrationManager) withLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := m.db.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey); err != nil {
			m.log.Warnw("Failed to release migration lock", "error", err)
		}
	}()

	_, err = conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return fn(conn)
}

// apply runs one migration and records it in the same transaction
func (m *MigrationManager) apply(ctx context.Context, conn *sql.Conn, mig Migration) error {
	m.log.Infow("Applying migration", "version", mig.Version, "description", mig.Description)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
		mig.Version, mig.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// parseMigrations reads NNN_description.sql files from fsys, sorted by version.
// Files that do not follow the naming scheme are skipped.
func parseMigrations(fsys fs.FS, log *zap.SugaredLogger) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, name := range names {
		prefix, rest, ok := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil {
			log.Warnw("Skipping migration file with invalid name", "file", name)
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		migrations = append(migrations, Migration{
			Version:     version,
			Description: strings.ReplaceAll(strings.TrimSuffix(rest, path.Ext(rest)), "_", " "),
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
