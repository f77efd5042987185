// Package export writes selected posts as CSV and records each export in
// the append-only export log.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"

	"studio/internal/contenttypes"
	"studio/internal/core"
	"studio/internal/logger"
	"studio/internal/persistence"
)

// ErrNoPosts is returned when an export names no posts
var ErrNoPosts = errors.New("no posts selected for export")

// Request selects the posts to export
type Request struct {
	PostIDs      []string
	StoryType    string
	MarkExported bool // Move draft and reviewed posts to exported
}

// Result is a finished export
type Result struct {
	Filename string
	Data     []byte
	Entry    core.ExportLogEntry
}

// Service builds exports
type Service struct {
	db       persistence.Database
	registry *contenttypes.Registry
	now      func() time.Time
}

// NewService creates an export service
func NewService(db persistence.Database, registry *contenttypes.Registry) *Service {
	if registry == nil {
		registry = contenttypes.Default()
	}
	return &Service{db: db, registry: registry, now: time.Now}
}

// Export renders the selected posts and logs the export. Logging and the
// optional status change happen in one transaction.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if len(req.PostIDs) == 0 {
		return nil, ErrNoPosts
	}

	posts := make([]core.Post, 0, len(req.PostIDs))
	for _, id := range req.PostIDs {
		post, err := s.db.Posts().Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load post %s: %w", id, err)
		}
		posts = append(posts, *post)
	}

	storyType := req.StoryType
	if storyType == "" {
		storyType = posts[0].StoryType
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, Columns(s.registry, storyType, posts), posts); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entry := core.ExportLogEntry{
		ID:        uuid.New().String(),
		PostIDs:   req.PostIDs,
		StoryType: storyType,
		CreatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Exports().Create(ctx, &entry); err != nil {
		return nil, err
	}
	if req.MarkExported {
		if err := tx.Posts().MarkExported(ctx, req.PostIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit export: %w", err)
	}

	logger.Info("Exported posts", "story_type", storyType, "count", len(posts), "mark_exported", req.MarkExported)
	return &Result{
		Filename: Filename(storyType, now),
		Data:     buf.Bytes(),
		Entry:    entry,
	}, nil
}

// Columns returns the CSV header for storyType. Fixed types use their
// declared fields; custom and unknown types use every field key present,
// sorted.
func Columns(registry *contenttypes.Registry, storyType string, posts []core.Post) []string {
	platform := registry.PlatformOf(storyType)
	if len(posts) > 0 && posts[0].Platform != "" {
		platform = posts[0].Platform
	}
	if t, ok := registry.Lookup(platform, storyType); ok && !t.Custom {
		return t.Fields
	}

	seen := map[string]bool{}
	var cols []string
	for _, p := range posts {
		for k := range p.Fields {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// WriteCSV writes a header row followed by one row per post. Missing fields
// are written as empty cells.
func WriteCSV(w io.Writer, columns []string, posts []core.Post) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	row := make([]string, len(columns))
	for _, p := range posts {
		for i, col := range columns {
			row[i] = p.Fields[col]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename names an export file after its story type and date
func Filename(storyType string, at time.Time) string {
	if storyType == "" {
		storyType = "export"
	}
	return fmt.Sprintf("%s-%s.csv", storyType, at.Format("2006-01-02"))
}
