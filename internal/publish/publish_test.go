package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studio/internal/core"
	"studio/internal/linkedin"
	"studio/internal/lock"
	"studio/internal/persistence"
	"studio/internal/tokens"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type memPosts struct {
	mu     sync.Mutex
	posts  map[string]*core.Post
	claims map[string]time.Time
	order  []string
}

func newMemPosts(posts ...core.Post) *memPosts {
	m := &memPosts{posts: map[string]*core.Post{}, claims: map[string]time.Time{}}
	for i := range posts {
		p := posts[i]
		m.posts[p.ID] = &p
		m.order = append(m.order, p.ID)
	}
	return m
}

func (m *memPosts) Get(_ context.Context, id string) (*core.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) Schedule(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.Status != core.StatusDraft {
		return false, nil
	}
	p.Status = core.StatusScheduled
	p.ScheduledAt = &at
	return true, nil
}

func (m *memPosts) ListDue(_ context.Context, at time.Time) ([]core.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []core.Post
	for _, id := range m.order {
		p := m.posts[id]
		if p.Status == core.StatusScheduled && p.Platform == core.PlatformLinkedIn && !p.ScheduledAt.After(at) {
			due = append(due, *p)
		}
	}
	return due, nil
}

func (m *memPosts) Claim(_ context.Context, id string, at, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || (p.Status != core.StatusDraft && p.Status != core.StatusScheduled) {
		return false, nil
	}
	if c, held := m.claims[id]; held && !c.Before(staleBefore) {
		return false, nil
	}
	m.claims[id] = at
	return true, nil
}

func (m *memPosts) MarkPublished(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return persistence.ErrNotFound
	}
	p.Status = core.StatusPublished
	p.PublishedAt = &at
	delete(m.claims, id)
	return nil
}

func (m *memPosts) ReleaseClaim(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, id)
	return nil
}

type fixedTokens struct {
	token *core.LinkedInToken
	err   error
}

func (f fixedTokens) Usable(context.Context) (*core.LinkedInToken, error) { return f.token, f.err }

type fakePoster struct {
	mu    sync.Mutex
	texts []string
	fail  map[string]error
}

func (f *fakePoster) CreatePost(_ context.Context, _, _, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[text]; err != nil {
		return "", err
	}
	f.texts = append(f.texts, text)
	return "urn:li:share:1", nil
}

func (f *fakePoster) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

var validToken = &core.LinkedInToken{AccessToken: "tok", Subject: "abc", ExpiresAt: now.Add(time.Hour)}

func newTestService(posts Posts, tok Tokens, poster Poster) *Service {
	s := NewService(posts, tok, poster, nil, lock.NewLocalLocker(), nil, Options{})
	s.now = func() time.Time { return now }
	return s
}

func scheduledPost(id, text string, at time.Time) core.Post {
	return core.Post{
		ID:          id,
		StoryType:   "linkedin-custom",
		Platform:    core.PlatformLinkedIn,
		Status:      core.StatusScheduled,
		Fields:      map[string]string{"Text": text},
		ScheduledAt: &at,
	}
}

func TestScheduleValidation(t *testing.T) {
	posts := newMemPosts(
		core.Post{ID: "draft", Status: core.StatusDraft, Platform: core.PlatformLinkedIn},
		core.Post{ID: "pub", Status: core.StatusPublished, Platform: core.PlatformLinkedIn},
	)
	s := newTestService(posts, fixedTokens{token: validToken}, &fakePoster{})

	tests := []struct {
		name  string
		id    string
		when  time.Time
		check func(error) bool
	}{
		{"zero time", "draft", time.Time{}, func(err error) bool { var v *ValidationError; return errors.As(err, &v) }},
		{"past", "draft", now.Add(-time.Minute), func(err error) bool { var v *ValidationError; return errors.As(err, &v) }},
		{"now is not future", "draft", now, func(err error) bool { var v *ValidationError; return errors.As(err, &v) }},
		{"published", "pub", now.Add(time.Hour), func(err error) bool { var v *StateError; return errors.As(err, &v) }},
		{"missing", "nope", now.Add(time.Hour), func(err error) bool { return errors.Is(err, persistence.ErrNotFound) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Schedule(context.Background(), tt.id, tt.when)
			if !tt.check(err) {
				t.Fatalf("Schedule() error = %v", err)
			}
		})
	}

	post, err := s.Schedule(context.Background(), "draft", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if post.Status != core.StatusScheduled || !post.ScheduledAt.Equal(now.Add(time.Hour)) {
		t.Errorf("post = %+v", post)
	}
}

func TestPublishNowTokenCheckedBeforeNetwork(t *testing.T) {
	for _, tokErr := range []error{tokens.ErrNoToken, tokens.ErrTokenExpired} {
		posts := newMemPosts(core.Post{ID: "p", Status: core.StatusDraft, Platform: core.PlatformLinkedIn, Fields: map[string]string{"Text": "hej"}})
		poster := &fakePoster{}
		s := newTestService(posts, fixedTokens{err: tokErr}, poster)

		_, err := s.PublishNow(context.Background(), "p")
		if !errors.Is(err, tokErr) {
			t.Fatalf("PublishNow() error = %v, want %v", err, tokErr)
		}
		if poster.calls() != 0 {
			t.Fatal("LinkedIn must not be called without a usable token")
		}
		p, _ := posts.Get(context.Background(), "p")
		if p.Status != core.StatusDraft {
			t.Errorf("status = %s, want draft", p.Status)
		}
	}
}

func TestPublishNowBodyOrder(t *testing.T) {
	posts := newMemPosts(core.Post{
		ID:        "p",
		StoryType: "visste-du-att",
		Platform:  core.PlatformInstagram,
		Status:    core.StatusDraft,
		Fields:    map[string]string{"CTA": "d", "Hook": "a", "Fakta": "b", "Förklaring": "c"},
	})
	poster := &fakePoster{}
	s := newTestService(posts, fixedTokens{token: validToken}, poster)

	post, err := s.PublishNow(context.Background(), "p")
	if err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}
	if post.Status != core.StatusPublished || post.PublishedAt == nil {
		t.Errorf("post = %+v", post)
	}
	if len(poster.texts) != 1 || poster.texts[0] != "a\n\nb\n\nc\n\nd" {
		t.Errorf("texts = %q", poster.texts)
	}

	if _, err := s.PublishNow(context.Background(), "p"); !errors.Is(err, ErrAlreadyPublished) {
		t.Fatalf("second PublishNow() error = %v, want ErrAlreadyPublished", err)
	}
}

func TestPublishFailureKeepsStatusAndReleasesClaim(t *testing.T) {
	posts := newMemPosts(scheduledPost("p", "text", now.Add(-time.Minute)))
	poster := &fakePoster{fail: map[string]error{"text": &linkedin.APIError{StatusCode: 500, Body: "boom"}}}
	s := newTestService(posts, fixedTokens{token: validToken}, poster)

	_, err := s.PublishNow(context.Background(), "p")
	var apiErr *linkedin.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *linkedin.APIError", err)
	}
	p, _ := posts.Get(context.Background(), "p")
	if p.Status != core.StatusScheduled {
		t.Errorf("status = %s, want scheduled", p.Status)
	}
	if _, held := posts.claims["p"]; held {
		t.Error("claim should be released after a failed publish")
	}
}

func TestPublishTextValidation(t *testing.T) {
	s := newTestService(newMemPosts(), fixedTokens{token: validToken}, &fakePoster{})
	var v *ValidationError
	if err := s.PublishText(context.Background(), "", "  "); !errors.As(err, &v) || v.Message != "Text saknas" {
		t.Fatalf("PublishText() error = %v", err)
	}
}

func TestPublishTextWithoutPost(t *testing.T) {
	poster := &fakePoster{}
	s := newTestService(newMemPosts(), fixedTokens{token: validToken}, poster)
	if err := s.PublishText(context.Background(), "", "fri text"); err != nil {
		t.Fatalf("PublishText() error = %v", err)
	}
	if poster.calls() != 1 {
		t.Errorf("calls = %d", poster.calls())
	}
}

func TestPublishTextInProgress(t *testing.T) {
	posts := newMemPosts(core.Post{ID: "p", Status: core.StatusDraft, Platform: core.PlatformLinkedIn})
	posts.claims["p"] = now.Add(-time.Minute)
	poster := &fakePoster{}
	s := newTestService(posts, fixedTokens{token: validToken}, poster)

	if err := s.PublishText(context.Background(), "p", "text"); !errors.Is(err, ErrInProgress) {
		t.Fatalf("PublishText() error = %v, want ErrInProgress", err)
	}
	if poster.calls() != 0 {
		t.Error("claimed post must not be published twice")
	}

	// A claim older than the claim TTL is taken over.
	posts.claims["p"] = now.Add(-time.Hour)
	if err := s.PublishText(context.Background(), "p", "text"); err != nil {
		t.Fatalf("PublishText() after stale claim error = %v", err)
	}
}

func TestSweepPartialFailure(t *testing.T) {
	posts := newMemPosts(
		scheduledPost("a", "first", now.Add(-3*time.Minute)),
		scheduledPost("b", "second", now.Add(-2*time.Minute)),
		scheduledPost("c", "third", now.Add(-time.Minute)),
		scheduledPost("later", "future", now.Add(time.Hour)),
	)
	poster := &fakePoster{fail: map[string]error{"second": &linkedin.APIError{StatusCode: 422, Body: `{"message":"duplicate"}`}}}
	s := newTestService(posts, fixedTokens{token: validToken}, poster)

	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Published != 2 {
		t.Errorf("Published = %d, want 2", res.Published)
	}
	if len(res.Errors) != 1 || res.Errors[0].PostID != "b" || res.Errors[0].Error != `{"message":"duplicate"}` {
		t.Errorf("Errors = %+v", res.Errors)
	}

	for id, want := range map[string]core.PostStatus{"a": core.StatusPublished, "b": core.StatusScheduled, "c": core.StatusPublished, "later": core.StatusScheduled} {
		p, _ := posts.Get(context.Background(), id)
		if p.Status != want {
			t.Errorf("%s status = %s, want %s", id, p.Status, want)
		}
	}
}

func TestSweepNothingDue(t *testing.T) {
	poster := &fakePoster{}
	// No token is needed when nothing is due.
	s := newTestService(newMemPosts(), fixedTokens{err: tokens.ErrNoToken}, poster)

	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Message != NothingDueMessage || res.Published != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestSweepNoToken(t *testing.T) {
	posts := newMemPosts(scheduledPost("a", "x", now.Add(-time.Minute)))
	poster := &fakePoster{}
	s := newTestService(posts, fixedTokens{err: tokens.ErrTokenExpired}, poster)

	if _, err := s.Sweep(context.Background()); !errors.Is(err, tokens.ErrTokenExpired) {
		t.Fatalf("Sweep() error = %v", err)
	}
	if poster.calls() != 0 {
		t.Error("no post should be sent without a token")
	}
}

func TestSweepSkipsWhenLeaseHeld(t *testing.T) {
	locker := lock.NewLocalLocker()
	held, err := locker.TryAcquire(context.Background(), sweepLeaseName, time.Minute)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer held.Release(context.Background())

	posts := newMemPosts(scheduledPost("a", "x", now.Add(-time.Minute)))
	poster := &fakePoster{}
	s := NewService(posts, fixedTokens{token: validToken}, poster, nil, locker, nil, Options{})
	s.now = func() time.Time { return now }

	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Message != SweepBusyMessage || poster.calls() != 0 {
		t.Errorf("result = %+v, calls = %d", res, poster.calls())
	}
}

func TestConcurrentSweepAndManualPublishOnce(t *testing.T) {
	posts := newMemPosts(scheduledPost("a", "only once", now.Add(-time.Minute)))
	poster := &fakePoster{}
	s := newTestService(posts, fixedTokens{token: validToken}, poster)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Sweep(context.Background())
		}()
		go func() {
			defer wg.Done()
			_, _ = s.PublishNow(context.Background(), "a")
		}()
	}
	wg.Wait()

	if poster.calls() != 1 {
		t.Fatalf("post published %d times, want 1", poster.calls())
	}
}

// ctxPosts fails writes when the context is done, like a database driver
type ctxPosts struct {
	*memPosts
}

func (c ctxPosts) MarkPublished(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memPosts.MarkPublished(ctx, id, at)
}

// cancellingPoster cancels the caller's context right after LinkedIn accepts the post
type cancellingPoster struct {
	fakePoster
	cancel context.CancelFunc
}

func (p *cancellingPoster) CreatePost(ctx context.Context, token, author, text string) (string, error) {
	urn, err := p.fakePoster.CreatePost(ctx, token, author, text)
	p.cancel()
	return urn, err
}

func TestSweepRecordsPublishAfterCallerCancels(t *testing.T) {
	posts := ctxPosts{newMemPosts(scheduledPost("a", "once", now.Add(-time.Minute)))}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poster := &cancellingPoster{cancel: cancel}
	s := newTestService(posts, fixedTokens{token: validToken}, poster)

	res, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Published != 1 || len(res.Errors) != 0 {
		t.Errorf("result = %+v", res)
	}
	p, _ := posts.Get(context.Background(), "a")
	if p.Status != core.StatusPublished {
		t.Errorf("status = %s, want published", p.Status)
	}

	// A later sweep past the claim TTL must not post again.
	s.now = func() time.Time { return now.Add(10 * time.Minute) }
	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if got := poster.calls(); got != 1 {
		t.Errorf("CreatePost called %d times, want 1", got)
	}
}
