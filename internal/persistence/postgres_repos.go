package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"studio/internal/core"
)

// ErrConflict is returned when a post's status does not allow the change
var ErrConflict = errors.New("post status does not allow this change")

const postColumns = `id, story_type, platform, status, fields, scheduled_at, published_at, created_at, updated_at`

// postgresPostRepo implements PostRepository for PostgreSQL
type postgresPostRepo struct {
	conn
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*core.Post, error) {
	var (
		p           core.Post
		fieldsJSON  []byte
		scheduledAt sql.NullTime
		publishedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.StoryType, &p.Platform, &p.Status, &fieldsJSON,
		&scheduledAt, &publishedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &p.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields of post %s: %w", p.ID, err)
		}
	}
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	p.ScheduledAt = nullTime(scheduledAt)
	p.PublishedAt = nullTime(publishedAt)
	return &p, nil
}

func (r *postgresPostRepo) CreateMany(ctx context.Context, posts []core.Post) error {
	if len(posts) == 0 {
		return nil
	}

	var (
		values []string
		args   []interface{}
	)
	for i, p := range posts {
		fieldsJSON, err := json.Marshal(p.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
		base := i * 7
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args, p.ID, p.StoryType, p.Platform, p.Status, fieldsJSON, p.CreatedAt, p.UpdatedAt)
	}

	query := `INSERT INTO posts (id, story_type, platform, status, fields, created_at, updated_at) VALUES ` +
		strings.Join(values, ", ")

	if _, err := r.query().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert posts: %w", err)
	}
	return nil
}

func (r *postgresPostRepo) Get(ctx context.Context, id string) (*core.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.query().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

func (r *postgresPostRepo) List(ctx context.Context, filter PostFilter) ([]core.Post, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(column, value string) {
		if value == "" || value == "all" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("story_type", filter.StoryType)
	add("status", filter.Status)
	add("platform", filter.Platform)

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.queryPosts(ctx, query, args...)
}

func (r *postgresPostRepo) queryPosts(ctx context.Context, query string, args ...interface{}) ([]core.Post, error) {
	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []core.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

func (r *postgresPostRepo) Update(ctx context.Context, id string, update PostUpdate) (*core.Post, error) {
	var (
		sets  []string
		args  = []interface{}{id}
		guard = `status <> 'published'`
	)
	if update.Fields != nil {
		fieldsJSON, err := json.Marshal(update.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal fields: %w", err)
		}
		args = append(args, fieldsJSON)
		sets = append(sets, fmt.Sprintf("fields = $%d", len(args)))
	}
	if update.Status != nil {
		args = append(args, string(*update.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
		guard = `status IN ('draft', 'reviewed', 'exported')`
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE posts SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 AND ` + guard + ` RETURNING ` + postColumns

	post, err := scanPost(r.query().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return post, nil
}

func (r *postgresPostRepo) Delete(ctx context.Context, id string) error {
	res, err := r.query().ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return affectedOne(res, "post")
}

func (r *postgresPostRepo) Schedule(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE posts SET status = 'scheduled', scheduled_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
	`
	res, err := r.query().ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to schedule post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *postgresPostRepo) ListDue(ctx context.Context, now time.Time) ([]core.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = 'scheduled' AND platform = 'linkedin' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC`
	return r.queryPosts(ctx, query, now)
}

func (r *postgresPostRepo) Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE posts SET claimed_at = $2
		WHERE id = $1
		  AND status IN ('draft', 'scheduled')
		  AND (claimed_at IS NULL OR claimed_at < $3)
	`
	res, err := r.query().ExecContext(ctx, query, id, now, staleBefore)
	if err != nil {
		return false, fmt.Errorf("failed to claim post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *postgresPostRepo) MarkPublished(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE posts SET status = 'published', published_at = $2, claimed_at = NULL, updated_at = $2
		WHERE id = $1
	`
	res, err := r.query().ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark post published: %w", err)
	}
	return affectedOne(res, "post")
}

func (r *postgresPostRepo) ReleaseClaim(ctx context.Context, id string) error {
	if _, err := r.query().ExecContext(ctx, `UPDATE posts SET claimed_at = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

func (r *postgresPostRepo) MarkExported(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE posts SET status = 'exported', updated_at = NOW()
		WHERE id = ANY($1) AND status IN ('draft', 'reviewed')
	`
	if _, err := r.query().ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark posts exported: %w", err)
	}
	return nil
}

// postgresSourceRepo implements SourceRepository for PostgreSQL
type postgresSourceRepo struct {
	conn
}

func (r *postgresSourceRepo) Create(ctx context.Context, source *core.Source) error {
	query := `INSERT INTO sources (id, title, type, content, url, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.query().ExecContext(ctx, query,
		source.ID, source.Title, source.Type, source.Content, source.URL, source.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

func (r *postgresSourceRepo) Get(ctx context.Context, id string) (*core.Source, error) {
	query := `SELECT id, title, type, content, url, created_at FROM sources WHERE id = $1`
	var s core.Source
	err := r.query().QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Title, &s.Type, &s.Content, &s.URL, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &s, nil
}

func (r *postgresSourceRepo) List(ctx context.Context, limit int) ([]core.Source, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, title, type, content, url, created_at FROM sources ORDER BY created_at DESC LIMIT $1`
	rows, err := r.query().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	sources := []core.Source{}
	for rows.Next() {
		var s core.Source
		if err := rows.Scan(&s.ID, &s.Title, &s.Type, &s.Content, &s.URL, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *postgresSourceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.query().ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return affectedOne(res, "source")
}

// postgresTokenRepo implements TokenRepository for PostgreSQL
type postgresTokenRepo struct {
	conn
}

func (r *postgresTokenRepo) Get(ctx context.Context) (*core.LinkedInToken, error) {
	query := `SELECT access_token, expires_at, linkedin_sub, updated_at FROM linkedin_tokens WHERE singleton`
	var t core.LinkedInToken
	err := r.query().QueryRowContext(ctx, query).Scan(&t.AccessToken, &t.ExpiresAt, &t.Subject, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linkedin token: %w", err)
	}
	return &t, nil
}

func (r *postgresTokenRepo) Upsert(ctx context.Context, token *core.LinkedInToken) error {
	query := `
		INSERT INTO linkedin_tokens (singleton, access_token, expires_at, linkedin_sub, updated_at)
		VALUES (TRUE, $1, $2, $3, $4)
		ON CONFLICT (singleton) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			expires_at = EXCLUDED.expires_at,
			linkedin_sub = EXCLUDED.linkedin_sub,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.query().ExecContext(ctx, query, token.AccessToken, token.ExpiresAt, token.Subject, token.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert linkedin token: %w", err)
	}
	return nil
}

// postgresExportRepo implements ExportRepository for PostgreSQL
type postgresExportRepo struct {
	conn
}

func (r *postgresExportRepo) Create(ctx context.Context, entry *core.ExportLogEntry) error {
	query := `INSERT INTO exports (id, post_ids, story_type, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.query().ExecContext(ctx, query, entry.ID, pq.Array(entry.PostIDs), entry.StoryType, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log export: %w", err)
	}
	return nil
}

func (r *postgresExportRepo) ListRecent(ctx context.Context, limit int) ([]core.ExportLogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT id, post_ids, story_type, created_at FROM exports ORDER BY created_at DESC LIMIT $1`
	rows, err := r.query().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	entries := []core.ExportLogEntry{}
	for rows.Next() {
		var e core.ExportLogEntry
		if err := rows.Scan(&e.ID, pq.Array(&e.PostIDs), &e.StoryType, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// postgresIdeaRepo implements IdeaRepository for PostgreSQL
type postgresIdeaRepo struct {
	conn
}

func (r *postgresIdeaRepo) Create(ctx context.Context, idea *core.Idea) error {
	if idea.Tags == nil {
		idea.Tags = []string{}
	}
	query := `INSERT INTO ideas (id, title, description, tags, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.query().ExecContext(ctx, query, idea.ID, idea.Title, idea.Description, pq.Array(idea.Tags), idea.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert idea: %w", err)
	}
	return nil
}

func (r *postgresIdeaRepo) List(ctx context.Context) ([]core.Idea, error) {
	query := `SELECT id, title, description, tags, created_at FROM ideas ORDER BY created_at DESC`
	rows, err := r.query().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ideas: %w", err)
	}
	defer rows.Close()

	ideas := []core.Idea{}
	for rows.Next() {
		var i core.Idea
		if err := rows.Scan(&i.ID, &i.Title, &i.Description, pq.Array(&i.Tags), &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan idea: %w", err)
		}
		ideas = append(ideas, i)
	}
	return ideas, rows.Err()
}

func (r *postgresIdeaRepo) Delete(ctx context.Context, id string) error {
	res, err := r.query().ExecContext(ctx, `DELETE FROM ideas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete idea: %w", err)
	}
	return affectedOne(res, "idea")
}

// postgresInstructionRepo implements InstructionRepository for PostgreSQL
type postgresInstructionRepo struct {
	conn
}

const instructionColumns = `id, title, content, created_at, updated_at`

func scanInstruction(row rowScanner) (*core.Instruction, error) {
	var in core.Instruction
	if err := row.Scan(&in.ID, &in.Title, &in.Content, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *postgresInstructionRepo) Create(ctx context.Context, in *core.Instruction) error {
	query := `INSERT INTO instructions (id, title, content, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.query().ExecContext(ctx, query, in.ID, in.Title, in.Content, in.CreatedAt, in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert instruction: %w", err)
	}
	return nil
}

func (r *postgresInstructionRepo) List(ctx context.Context) ([]core.Instruction, error) {
	return r.list(ctx, `SELECT `+instructionColumns+` FROM instructions ORDER BY created_at DESC`)
}

func (r *postgresInstructionRepo) GetMany(ctx context.Context, ids []string) ([]core.Instruction, error) {
	if len(ids) == 0 {
		return []core.Instruction{}, nil
	}
	return r.list(ctx, `SELECT `+instructionColumns+` FROM instructions WHERE id = ANY($1) ORDER BY created_at ASC`, pq.Array(ids))
}

func (r *postgresInstructionRepo) list(ctx context.Context, query string, args ...interface{}) ([]core.Instruction, error) {
	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instructions: %w", err)
	}
	defer rows.Close()

	out := []core.Instruction{}
	for rows.Next() {
		in, err := scanInstruction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instruction: %w", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (r *postgresInstructionRepo) Update(ctx context.Context, id string, title, content *string) (*core.Instruction, error) {
	query := `
		UPDATE instructions SET
			title = COALESCE($2, title),
			content = COALESCE($3, content),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + instructionColumns

	in, err := scanInstruction(r.query().QueryRowContext(ctx, query, id, title, content))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update instruction: %w", err)
	}
	return in, nil
}

func (r *postgresInstructionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.query().ExecContext(ctx, `DELETE FROM instructions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete instruction: %w", err)
	}
	return affectedOne(res, "instruction")
}
