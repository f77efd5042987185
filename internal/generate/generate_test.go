package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"studio/internal/core"
	"studio/internal/llm"
)

type fakeCompleter struct {
	completion *llm.Completion
	err        error
	prompt     string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (*llm.Completion, error) {
	f.prompt = prompt
	return f.completion, f.err
}

type fakeResolver struct {
	replace map[string]string
}

func (f fakeResolver) Resolve(ctx context.Context, sources []string) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		if r, ok := f.replace[s]; ok {
			out[i] = r
		} else {
			out[i] = s
		}
	}
	return out
}

func TestGenerate_ParsesSurroundingProse(t *testing.T) {
	completer := &fakeCompleter{completion: &llm.Completion{
		Text: `Here you go: [{"fields":{"Hook":"a","Fakta":"b","Förklaring":"c","CTA":"d"}}]`,
	}}
	o := New(nil, nil, completer, nil)

	posts, err := o.Generate(context.Background(), Request{
		StoryType: "visste-du-att",
		Sources:   []string{"källa"},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}

	p := posts[0]
	if p.ID == "" {
		t.Error("post must have an id")
	}
	if p.StoryType != "visste-du-att" || p.Platform != core.PlatformInstagram || p.Status != core.StatusDraft {
		t.Errorf("unexpected post metadata: %+v", p)
	}
	want := map[string]string{"Hook": "a", "Fakta": "b", "Förklaring": "c", "CTA": "d"}
	for k, v := range want {
		if p.Fields[k] != v {
			t.Errorf("Fields[%s] = %q, want %q", k, p.Fields[k], v)
		}
	}
}

func TestGenerate_UnknownType(t *testing.T) {
	completer := &fakeCompleter{}
	o := New(nil, nil, completer, nil)

	_, err := o.Generate(context.Background(), Request{StoryType: "tankeledare", Platform: core.PlatformInstagram})
	var invalid *InvalidTypeError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTypeError, got %v", err)
	}
	if completer.prompt != "" {
		t.Error("model must not be called for an unknown type")
	}
}

func TestGenerate_MissingCompleter(t *testing.T) {
	o := New(nil, nil, nil, nil)
	_, err := o.Generate(context.Background(), Request{StoryType: "snabbtips"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestGenerate_ResolvesSourcesIntoPrompt(t *testing.T) {
	completer := &fakeCompleter{completion: &llm.Completion{Text: `[{"fields":{"Hook":"x"}}]`}}
	resolver := fakeResolver{replace: map[string]string{"https://cefund.se": "Sidans text"}}
	o := New(nil, resolver, completer, nil)

	_, err := o.Generate(context.Background(), Request{
		StoryType: "tankeledare",
		Platform:  core.PlatformLinkedIn,
		Sources:   []string{"https://cefund.se", "anteckning"},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(completer.prompt, "--- Källa 1 ---\nSidans text") {
		t.Error("resolved text should replace the URL in the prompt")
	}
	if !strings.Contains(completer.prompt, "--- Källa 2 ---\nanteckning") {
		t.Error("plain sources should pass through")
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
		check     func(t *testing.T, err error)
	}{
		{
			name:      "empty text",
			completer: &fakeCompleter{completion: &llm.Completion{Text: "  ", Raw: `{"content":[]}`}},
			check: func(t *testing.T, err error) {
				var e *EmptyResponseError
				if !errors.As(err, &e) {
					t.Fatalf("expected EmptyResponseError, got %v", err)
				}
				if e.Debug != `{"content":[]}` {
					t.Errorf("Debug = %q", e.Debug)
				}
			},
		},
		{
			name:      "no array",
			completer: &fakeCompleter{completion: &llm.Completion{Text: "Jag kan inte hjälpa till med det."}},
			check: func(t *testing.T, err error) {
				var e *UnparsableResponseError
				if !errors.As(err, &e) {
					t.Fatalf("expected UnparsableResponseError, got %v", err)
				}
				if e.Snippet != "Jag kan inte hjälpa till med det." {
					t.Errorf("Snippet = %q", e.Snippet)
				}
			},
		},
		{
			name:      "malformed array",
			completer: &fakeCompleter{completion: &llm.Completion{Text: `[{"fields": {"Hook": "a",}}]`}},
			check: func(t *testing.T, err error) {
				var e *MalformedJSONError
				if !errors.As(err, &e) {
					t.Fatalf("expected MalformedJSONError, got %v", err)
				}
			},
		},
		{
			name:      "long unparsable snippet is capped",
			completer: &fakeCompleter{completion: &llm.Completion{Text: strings.Repeat("ö", 800)}},
			check: func(t *testing.T, err error) {
				var e *UnparsableResponseError
				if !errors.As(err, &e) {
					t.Fatalf("expected UnparsableResponseError, got %v", err)
				}
				if n := len([]rune(e.Snippet)); n != 500 {
					t.Errorf("snippet runes = %d, want 500", n)
				}
			},
		},
		{
			name:      "upstream status",
			completer: &fakeCompleter{err: &llm.APIError{StatusCode: 529, Body: `{"error":"overloaded"}`}},
			check: func(t *testing.T, err error) {
				var e *UpstreamError
				if !errors.As(err, &e) {
					t.Fatalf("expected UpstreamError, got %v", err)
				}
				if e.StatusCode != 529 || e.Body != `{"error":"overloaded"}` {
					t.Errorf("unexpected upstream error %+v", e)
				}
			},
		},
		{
			name:      "timeout",
			completer: &fakeCompleter{err: &llm.TimeoutError{After: 2 * time.Minute}},
			check: func(t *testing.T, err error) {
				var e *TimeoutError
				if !errors.As(err, &e) {
					t.Fatalf("expected TimeoutError, got %v", err)
				}
				if e.After != "2m0s" {
					t.Errorf("After = %q, want 2m0s", e.After)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(nil, nil, tt.completer, nil)
			_, err := o.Generate(context.Background(), Request{StoryType: "visste-du-att"})
			tt.check(t, err)
		})
	}
}

func TestParsePosts_FiltersAndStringifies(t *testing.T) {
	ct := core.ContentType{Platform: core.PlatformInstagram, Key: "snabbtips", Fields: []string{"Tipsnummer", "Tips", "Förklaring", "CTA"}}
	text := `[
		{"fields": {"Tipsnummer": 1, "Tips": "Spara", "Okänt": "x", "CTA": null}},
		{"fields": {"Okänt": "bara okända nycklar"}},
		{"fields": {"Tips": ["a", "b"], "Förklaring": true}}
	]`

	posts, err := parsePosts(text, ct, ct.Fields, testNow)
	if err != nil {
		t.Fatalf("parsePosts failed: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}

	first := posts[0].Fields
	if first["Tipsnummer"] != "1" || first["Tips"] != "Spara" {
		t.Errorf("unexpected first post fields %v", first)
	}
	if _, ok := first["Okänt"]; ok {
		t.Error("unknown keys must be dropped")
	}
	if _, ok := first["CTA"]; ok {
		t.Error("null values must be dropped")
	}

	second := posts[1].Fields
	if second["Tips"] != `["a", "b"]` || second["Förklaring"] != "true" {
		t.Errorf("unexpected second post fields %v", second)
	}
}

func TestParsePosts_CustomFields(t *testing.T) {
	ct := core.ContentType{Platform: core.PlatformNewsletter, Key: "custom-newsletter", Custom: true}
	posts, err := parsePosts(`[{"fields":{"Text":"hej","Rubrik":"nej"}}]`, ct, []string{"Text"}, testNow)
	if err != nil {
		t.Fatalf("parsePosts failed: %v", err)
	}
	if len(posts) != 1 || len(posts[0].Fields) != 1 || posts[0].Fields["Text"] != "hej" {
		t.Errorf("unexpected posts %+v", posts)
	}
	if posts[0].Platform != core.PlatformNewsletter {
		t.Errorf("platform = %s", posts[0].Platform)
	}
}

func TestParsePosts_NoUsablePosts(t *testing.T) {
	ct := core.ContentType{Platform: core.PlatformInstagram, Key: "snabbtips", Fields: []string{"Tips"}}
	_, err := parsePosts(`[{"fields":{"Okänt":"x"}}]`, ct, ct.Fields, testNow)
	var e *UnparsableResponseError
	if !errors.As(err, &e) {
		t.Fatalf("expected UnparsableResponseError, got %v", err)
	}
}
