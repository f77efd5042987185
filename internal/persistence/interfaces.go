// Package persistence provides database abstraction interfaces for storing
// posts, sources, tokens and the studio's supporting records
package persistence

import (
	"context"
	"errors"
	"time"

	"studio/internal/core"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// PostFilter narrows a post listing. Empty values and "all" match everything.
type PostFilter struct {
	StoryType string
	Status    string
	Platform  string
	Limit     int
}

// PostUpdate holds the editable parts of a post. Nil members are left unchanged.
type PostUpdate struct {
	Fields map[string]string
	Status *core.PostStatus
}

// PostRepository handles post persistence operations
type PostRepository interface {
	// CreateMany inserts generated posts
	CreateMany(ctx context.Context, posts []core.Post) error

	// Get retrieves a post by ID
	Get(ctx context.Context, id string) (*core.Post, error)

	// List retrieves posts newest first
	List(ctx context.Context, filter PostFilter) ([]core.Post, error)

	// Update edits fields or moves a post between unpublished states
	Update(ctx context.Context, id string, update PostUpdate) (*core.Post, error)

	// Delete removes a post by ID
	Delete(ctx context.Context, id string) error

	// Schedule moves a draft to scheduled. It reports false when the post
	// was not a draft.
	Schedule(ctx context.Context, id string, at time.Time) (bool, error)

	// ListDue returns scheduled LinkedIn posts whose time has come
	ListDue(ctx context.Context, now time.Time) ([]core.Post, error)

	// Claim marks a draft or scheduled post as being published. It reports
	// false when the post is published or holds a claim newer than staleBefore.
	Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)

	// MarkPublished records a successful publish and clears the claim
	MarkPublished(ctx context.Context, id string, at time.Time) error

	// ReleaseClaim clears the claim after a failed publish
	ReleaseClaim(ctx context.Context, id string) error

	// MarkExported moves unpublished posts to exported
	MarkExported(ctx context.Context, ids []string) error
}

// SourceRepository handles source library persistence
type SourceRepository interface {
	Create(ctx context.Context, source *core.Source) error
	Get(ctx context.Context, id string) (*core.Source, error)
	List(ctx context.Context, limit int) ([]core.Source, error)
	Delete(ctx context.Context, id string) error
}

// TokenRepository stores the single LinkedIn credential
type TokenRepository interface {
	// Get returns the stored token, or nil when none exists
	Get(ctx context.Context) (*core.LinkedInToken, error)

	// Upsert replaces the stored token
	Upsert(ctx context.Context, token *core.LinkedInToken) error
}

// ExportRepository handles the append-only export log
type ExportRepository interface {
	Create(ctx context.Context, entry *core.ExportLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]core.ExportLogEntry, error)
}

// IdeaRepository handles the idea bank
type IdeaRepository interface {
	Create(ctx context.Context, idea *core.Idea) error
	List(ctx context.Context) ([]core.Idea, error)
	Delete(ctx context.Context, id string) error
}

// InstructionRepository handles stored writing instructions
type InstructionRepository interface {
	Create(ctx context.Context, instruction *core.Instruction) error
	List(ctx context.Context) ([]core.Instruction, error)
	GetMany(ctx context.Context, ids []string) ([]core.Instruction, error)
	Update(ctx context.Context, id string, title, content *string) (*core.Instruction, error)
	Delete(ctx context.Context, id string) error
}

// Database represents the main database interface that aggregates all repositories
type Database interface {
	Posts() PostRepository
	Sources() SourceRepository
	Tokens() TokenRepository
	Exports() ExportRepository
	Ideas() IdeaRepository
	Instructions() InstructionRepository

	// Close closes the database connection
	Close() error

	// Ping verifies the database connection
	Ping(ctx context.Context) error

	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error

	Posts() PostRepository
	Exports() ExportRepository
}
