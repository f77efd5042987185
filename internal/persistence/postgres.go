package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver

	"studio/internal/config"
)

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db           *sql.DB
	posts        PostRepository
	sources      SourceRepository
	tokens       TokenRepository
	exports      ExportRepository
	ideas        IdeaRepository
	instructions InstructionRepository
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.Database) (*PostgresDB, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("database connection string is required. Set DATABASE_URL")
	}

	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen, maxIdle, lifetime := cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newPostgresDB(db), nil
}

func newPostgresDB(db *sql.DB) *PostgresDB {
	return &PostgresDB{
		db:           db,
		posts:        &postgresPostRepo{conn{db: db}},
		sources:      &postgresSourceRepo{conn{db: db}},
		tokens:       &postgresTokenRepo{conn{db: db}},
		exports:      &postgresExportRepo{conn{db: db}},
		ideas:        &postgresIdeaRepo{conn{db: db}},
		instructions: &postgresInstructionRepo{conn{db: db}},
	}
}

func (p *PostgresDB) Posts() PostRepository               { return p.posts }
func (p *PostgresDB) Sources() SourceRepository           { return p.sources }
func (p *PostgresDB) Tokens() TokenRepository             { return p.tokens }
func (p *PostgresDB) Exports() ExportRepository           { return p.exports }
func (p *PostgresDB) Ideas() IdeaRepository               { return p.ideas }
func (p *PostgresDB) Instructions() InstructionRepository { return p.instructions }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &postgresTx{
		tx:      tx,
		posts:   &postgresPostRepo{conn{db: p.db, tx: tx}},
		exports: &postgresExportRepo{conn{db: p.db, tx: tx}},
	}, nil
}

// postgresTx implements Transaction interface
type postgresTx struct {
	tx      *sql.Tx
	posts   PostRepository
	exports ExportRepository
}

func (t *postgresTx) Commit() error             { return t.tx.Commit() }
func (t *postgresTx) Rollback() error           { return t.tx.Rollback() }
func (t *postgresTx) Posts() PostRepository     { return t.posts }
func (t *postgresTx) Exports() ExportRepository { return t.exports }

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// conn is embedded by every repository so it runs inside a transaction when one is set.
type conn struct {
	db *sql.DB
	tx *sql.Tx
}

func (c conn) query() queryer {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// affectedOne maps a zero-row result to ErrNotFound
func affectedOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
