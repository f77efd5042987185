// Package generate turns sources into draft posts by prompting the model and
// parsing its structured answer.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studio/internal/contenttypes"
	"studio/internal/core"
	"studio/internal/llm"
	"studio/internal/logger"
	"studio/internal/metrics"
	"studio/internal/prompts"
)

// Completer sends a prompt to the model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*llm.Completion, error)
}

// SourceResolver expands bare URLs among the sources into page text.
type SourceResolver interface {
	Resolve(ctx context.Context, sources []string) []string
}

// Request describes one generation.
type Request struct {
	StoryType          string
	Platform           core.Platform // Defaults to instagram
	Sources            []string
	Tone               string
	Count              int
	Instructions       []string
	CustomInstructions string
	CustomFields       []string
}

// Orchestrator runs the generation pipeline. It has no persistence side effects.
type Orchestrator struct {
	registry  *contenttypes.Registry
	resolver  SourceResolver
	completer Completer
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates an orchestrator. A nil completer makes every generation fail
// with a ConfigError naming the missing API key.
func New(registry *contenttypes.Registry, resolver SourceResolver, completer Completer, m *metrics.Metrics) *Orchestrator {
	if registry == nil {
		registry = contenttypes.Default()
	}
	return &Orchestrator{
		registry:  registry,
		resolver:  resolver,
		completer: completer,
		metrics:   m,
		now:       time.Now,
	}
}

// Generate produces draft posts for req.
func (o *Orchestrator) Generate(ctx context.Context, req Request) ([]core.Post, error) {
	platform := req.Platform
	if platform == "" {
		platform = core.PlatformInstagram
	}

	ct, ok := o.registry.Lookup(platform, req.StoryType)
	if !ok {
		return nil, &InvalidTypeError{Platform: string(platform), StoryType: req.StoryType}
	}
	if o.completer == nil {
		return nil, &ConfigError{Missing: "ANTHROPIC_API_KEY"}
	}

	sources := req.Sources
	if o.resolver != nil {
		sources = o.resolver.Resolve(ctx, sources)
	}

	promptReq := prompts.Request{
		Type:               ct,
		Tone:               req.Tone,
		Sources:            sources,
		Count:              req.Count,
		Instructions:       req.Instructions,
		CustomInstructions: req.CustomInstructions,
		CustomFields:       req.CustomFields,
	}
	prompt := prompts.Build(promptReq)

	logger.Info("Generating posts",
		"platform", platform,
		"story_type", ct.Key,
		"sources", len(sources),
		"prompt_chars", len(prompt),
	)

	completion, err := o.completer.Complete(ctx, prompt)
	if err != nil {
		o.metrics.IncGeneration(string(platform), "upstream_error")
		return nil, translateCompletionError(err)
	}

	if strings.TrimSpace(completion.Text) == "" {
		o.metrics.IncGeneration(string(platform), "empty")
		return nil, &EmptyResponseError{Debug: snippet(completion.Raw)}
	}

	posts, err := parsePosts(completion.Text, ct, prompts.Fields(promptReq), o.now().UTC())
	if err != nil {
		o.metrics.IncGeneration(string(platform), "parse_error")
		return nil, err
	}

	o.metrics.IncGeneration(string(platform), "ok")
	logger.Info("Generated posts", "platform", platform, "story_type", ct.Key, "count", len(posts))
	return posts, nil
}

func translateCompletionError(err error) error {
	var timeoutErr *llm.TimeoutError
	if errors.As(err, &timeoutErr) {
		return &TimeoutError{After: timeoutErr.After.String()}
	}
	if errors.Is(err, llm.ErrTimeout) {
		return &TimeoutError{}
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.StatusCode, Body: apiErr.Body}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{}
	}
	return fmt.Errorf("generation failed: %w", err)
}

type generatedItem struct {
	Fields map[string]json.RawMessage `json:"fields"`
}

// parsePosts extracts the JSON array from text and maps each element to a
// draft post. Keys outside allowed are dropped and elements left without any
// field are skipped. A response yielding no post at all is unparsable.
func parsePosts(text string, ct core.ContentType, allowed []string, now time.Time) ([]core.Post, error) {
	scan := findJSONArray(text)
	if scan.array == "" {
		if scan.malformed != "" {
			return nil, &MalformedJSONError{Snippet: snippet(scan.malformed)}
		}
		return nil, &UnparsableResponseError{Snippet: snippet(text)}
	}

	var items []generatedItem
	if err := json.Unmarshal([]byte(scan.array), &items); err != nil {
		return nil, &MalformedJSONError{Snippet: snippet(scan.array), Err: err}
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = true
	}

	posts := make([]core.Post, 0, len(items))
	for _, item := range items {
		fields := make(map[string]string, len(item.Fields))
		for k, raw := range item.Fields {
			if !allowedSet[k] {
				continue
			}
			if v, ok := stringify(raw); ok {
				fields[k] = v
			}
		}
		if len(fields) == 0 {
			continue
		}
		posts = append(posts, core.Post{
			ID:        uuid.NewString(),
			StoryType: ct.Key,
			Platform:  ct.Platform,
			Status:    core.StatusDraft,
			Fields:    fields,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(posts) == 0 {
		return nil, &UnparsableResponseError{Snippet: snippet(scan.array)}
	}
	return posts, nil
}

// stringify renders a JSON value as field text. Strings are unquoted, null
// is dropped and anything else keeps its JSON form.
func stringify(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}
