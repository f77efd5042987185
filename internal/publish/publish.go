// Package publish drives posts through scheduling and LinkedIn publication,
// both on demand and from the periodic sweep of due scheduled posts.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studio/internal/contenttypes"
	"studio/internal/core"
	"studio/internal/linkedin"
	"studio/internal/lock"
	"studio/internal/logger"
	"studio/internal/metrics"
	"studio/internal/persistence"
)

const (
	sweepLeaseName = "publish-scheduled"

	// NothingDueMessage is reported when a sweep finds no due posts
	NothingDueMessage = "Inga schemalagda inlägg att publicera"

	// SweepBusyMessage is reported when another sweep holds the lease
	SweepBusyMessage = "Publicering pågår redan"

	defaultClaimTTL = 5 * time.Minute
	defaultLeaseTTL = 2 * time.Minute
)

var (
	// ErrAlreadyPublished is returned for posts that were published before
	ErrAlreadyPublished = errors.New("post is already published")

	// ErrInProgress is returned when another publisher holds the post's claim
	ErrInProgress = errors.New("post is being published")
)

// ValidationError is a request the state machine refuses outright
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StateError is returned when a post's status does not allow the transition
type StateError struct {
	PostID string
	Status core.PostStatus
	Want   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("post %s is %s, must be %s", e.PostID, e.Status, e.Want)
}

// Posts is the part of persistence.PostRepository the state machine uses
type Posts interface {
	Get(ctx context.Context, id string) (*core.Post, error)
	Schedule(ctx context.Context, id string, at time.Time) (bool, error)
	ListDue(ctx context.Context, now time.Time) ([]core.Post, error)
	Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	ReleaseClaim(ctx context.Context, id string) error
}

// Tokens returns a credential that can publish, or tokens.ErrNoToken /
// tokens.ErrTokenExpired
type Tokens interface {
	Usable(ctx context.Context) (*core.LinkedInToken, error)
}

// Poster creates LinkedIn posts
type Poster interface {
	CreatePost(ctx context.Context, accessToken, author, text string) (string, error)
}

// PostError is one failed post in a sweep
type PostError struct {
	PostID string `json:"postId"`
	Error  string `json:"error"`
}

// SweepResult summarizes one sweep
type SweepResult struct {
	Published int         `json:"published"`
	Errors    []PostError `json:"errors,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Options tunes claim and lease lifetimes
type Options struct {
	ClaimTTL time.Duration // A claim older than this is considered abandoned
	LeaseTTL time.Duration // Upper bound on a sweep's lease
}

// Service is the publish state machine
type Service struct {
	posts    Posts
	tokens   Tokens
	poster   Poster
	registry *contenttypes.Registry
	locker   lock.Locker
	metrics  *metrics.Metrics
	claimTTL time.Duration
	leaseTTL time.Duration
	now      func() time.Time
}

// NewService creates the publish service. A nil locker uses an in-process lease.
func NewService(posts Posts, tokens Tokens, poster Poster, registry *contenttypes.Registry, locker lock.Locker, m *metrics.Metrics, opts Options) *Service {
	if registry == nil {
		registry = contenttypes.Default()
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = defaultClaimTTL
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = defaultLeaseTTL
	}
	return &Service{
		posts:    posts,
		tokens:   tokens,
		poster:   poster,
		registry: registry,
		locker:   locker,
		metrics:  m,
		claimTTL: opts.ClaimTTL,
		leaseTTL: opts.LeaseTTL,
		now:      time.Now,
	}
}

// Body renders a post as publishable text: field values in display order,
// separated by blank lines
func (s *Service) Body(post *core.Post) string {
	var parts []string
	for _, k := range s.registry.FieldOrder(post) {
		if v := strings.TrimSpace(post.Fields[k]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Schedule moves a draft to scheduled for publication at when
func (s *Service) Schedule(ctx context.Context, id string, when time.Time) (*core.Post, error) {
	if when.IsZero() {
		return nil, &ValidationError{Message: "Schemaläggningstid saknas"}
	}
	if !when.After(s.now()) {
		return nil, &ValidationError{Message: "Schemaläggningstiden måste vara i framtiden"}
	}

	ok, err := s.posts.Schedule(ctx, id, when.UTC())
	if err != nil {
		return nil, err
	}

	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &StateError{PostID: id, Status: post.Status, Want: string(core.StatusDraft)}
	}

	logger.Info("Scheduled post", "post_id", id, "scheduled_at", when)
	return post, nil
}

// PublishNow publishes a stored draft or scheduled post immediately
func (s *Service) PublishNow(ctx context.Context, id string) (*core.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch post.Status {
	case core.StatusPublished:
		return nil, ErrAlreadyPublished
	case core.StatusDraft, core.StatusScheduled:
	default:
		return nil, &StateError{PostID: id, Status: post.Status, Want: "draft or scheduled"}
	}

	token, err := s.tokens.Usable(ctx)
	if err != nil {
		return nil, err
	}

	text := s.Body(post)
	if text == "" {
		return nil, &ValidationError{Message: "Text saknas"}
	}

	if err := s.publishClaimed(ctx, id, token, text, "manual"); err != nil {
		return nil, err
	}
	return s.posts.Get(ctx, id)
}

// PublishText publishes text and, when postID is set, records that post as
// published. The post is claimed before LinkedIn is called.
func (s *Service) PublishText(ctx context.Context, postID, text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Message: "Text saknas"}
	}

	token, err := s.tokens.Usable(ctx)
	if err != nil {
		return err
	}

	if postID == "" {
		if _, err := s.poster.CreatePost(ctx, token.AccessToken, token.AuthorURN(), text); err != nil {
			s.metrics.IncPublish("manual", "error")
			return err
		}
		s.metrics.IncPublish("manual", "success")
		return nil
	}

	return s.publishClaimed(ctx, postID, token, text, "manual")
}

func (s *Service) publishClaimed(ctx context.Context, id string, token *core.LinkedInToken, text, trigger string) error {
	now := s.now()
	ok, err := s.posts.Claim(ctx, id, now, now.Add(-s.claimTTL))
	if err != nil {
		return err
	}
	if !ok {
		return s.claimRefused(ctx, id)
	}

	// Once LinkedIn has been called the outcome must be recorded even if the
	// caller has gone away, or a later sweep would post the text again.
	recordCtx := context.WithoutCancel(ctx)

	if _, err := s.poster.CreatePost(ctx, token.AccessToken, token.AuthorURN(), text); err != nil {
		s.metrics.IncPublish(trigger, "error")
		if relErr := s.posts.ReleaseClaim(recordCtx, id); relErr != nil {
			logger.Error("Failed to release publish claim", relErr, "post_id", id)
		}
		return err
	}

	if err := s.posts.MarkPublished(recordCtx, id, s.now().UTC()); err != nil {
		// LinkedIn already has the post. The claim stays until it goes stale.
		s.metrics.IncPublish(trigger, "record_error")
		return fmt.Errorf("published post %s but failed to record it: %w", id, err)
	}

	s.metrics.IncPublish(trigger, "success")
	logger.Info("Post published", "post_id", id, "trigger", trigger)
	return nil
}

// claimRefused explains why a claim could not be taken
func (s *Service) claimRefused(ctx context.Context, id string) error {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return err
	}
	switch post.Status {
	case core.StatusPublished:
		return ErrAlreadyPublished
	case core.StatusDraft, core.StatusScheduled:
		return ErrInProgress
	default:
		return &StateError{PostID: id, Status: post.Status, Want: "draft or scheduled"}
	}
}

// Sweep publishes every scheduled LinkedIn post whose time has come. One
// post failing never stops the rest. A token problem is returned as an error
// once posts are known to be due.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	lease, err := s.locker.TryAcquire(ctx, sweepLeaseName, s.leaseTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.metrics.IncSweep("skipped")
		logger.Info("Sweep skipped, lease held elsewhere")
		return &SweepResult{Message: SweepBusyMessage}, nil
	}
	if err != nil {
		s.metrics.IncSweep("error")
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release sweep lease", "error", err)
		}
	}()

	due, err := s.posts.ListDue(ctx, s.now().UTC())
	if err != nil {
		s.metrics.IncSweep("error")
		return nil, err
	}
	if len(due) == 0 {
		s.metrics.IncSweep("empty")
		return &SweepResult{Message: NothingDueMessage}, nil
	}

	token, err := s.tokens.Usable(ctx)
	if err != nil {
		s.metrics.IncSweep("no_token")
		return nil, err
	}

	result := &SweepResult{}
	for i := range due {
		post := &due[i]
		err := s.publishClaimed(ctx, post.ID, token, s.Body(post), "sweep")
		switch {
		case err == nil:
			result.Published++
		case errors.Is(err, ErrInProgress), errors.Is(err, ErrAlreadyPublished):
			logger.Debug("Skipping post claimed elsewhere", "post_id", post.ID)
		case errors.Is(err, persistence.ErrNotFound):
			logger.Debug("Skipping post deleted during sweep", "post_id", post.ID)
		default:
			logger.Warn("Scheduled publish failed", "post_id", post.ID, "error", err)
			result.Errors = append(result.Errors, PostError{PostID: post.ID, Error: errorText(err)})
		}
	}

	outcome := "ok"
	if len(result.Errors) > 0 {
		outcome = "partial"
	}
	s.metrics.IncSweep(outcome)
	logger.Info("Sweep finished", "due", len(due), "published", result.Published, "failed", len(result.Errors))
	return result, nil
}

// errorText reports LinkedIn's response body when there is one
func errorText(err error) string {
	var apiErr *linkedin.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return err.Error()
}
