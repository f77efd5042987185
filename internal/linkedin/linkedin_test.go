package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"studio/internal/config"
)

func testConfig(serverURL string) config.LinkedIn {
	return config.LinkedIn{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "https://studio.example/api/linkedin/callback",
		AuthURL:      serverURL + "/oauth/v2/authorization",
		TokenURL:     serverURL + "/oauth/v2/accessToken",
		APIBaseURL:   serverURL,
		Timeout:      5 * time.Second,
	}
}

func TestAuthCodeURL(t *testing.T) {
	c := NewClient(testConfig("https://www.linkedin.com"), nil)

	raw, err := c.AuthCodeURL("state-123")
	if err != nil {
		t.Fatalf("AuthCodeURL() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid URL %q: %v", raw, err)
	}
	q := u.Query()
	checks := map[string]string{
		"response_type": "code",
		"client_id":     "client",
		"redirect_uri":  "https://studio.example/api/linkedin/callback",
		"state":         "state-123",
		"scope":         Scopes,
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestAuthCodeURLNotConfigured(t *testing.T) {
	c := NewClient(config.LinkedIn{}, nil)
	if _, err := c.AuthCodeURL("s"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
}

func TestExchangeNotConfigured(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		modify func(*config.LinkedIn)
	}{
		{"no client id", func(c *config.LinkedIn) { c.ClientID = "" }},
		{"no client secret", func(c *config.LinkedIn) { c.ClientSecret = "" }},
		{"no redirect uri", func(c *config.LinkedIn) { c.RedirectURI = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(srv.URL)
			tt.modify(&cfg)
			c := NewClient(cfg, srv.Client())
			if _, err := c.Exchange(context.Background(), "code"); !errors.Is(err, ErrNotConfigured) {
				t.Errorf("error = %v, want ErrNotConfigured", err)
			}
		})
	}
	if calls != 0 {
		t.Errorf("token endpoint called %d times", calls)
	}
}

func TestExchange(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		minExpiry time.Duration
		maxExpiry time.Duration
	}{
		{
			name:      "expires_in honoured",
			response:  `{"access_token":"tok","expires_in":3600}`,
			minExpiry: 59 * time.Minute,
			maxExpiry: 61 * time.Minute,
		},
		{
			name:      "missing expires_in defaults to sixty days",
			response:  `{"access_token":"tok"}`,
			minExpiry: DefaultTokenLifetime - time.Minute,
			maxExpiry: DefaultTokenLifetime + time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/oauth/v2/accessToken" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatalf("ParseForm: %v", err)
				}
				if r.PostForm.Get("client_secret") != "secret" || r.PostForm.Get("code") != "abc" {
					t.Errorf("credentials not sent in body: %v", r.PostForm)
				}
				if r.PostForm.Get("grant_type") != "authorization_code" {
					t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			c := NewClient(testConfig(server.URL), server.Client())
			tok, err := c.Exchange(context.Background(), "abc")
			if err != nil {
				t.Fatalf("Exchange() error = %v", err)
			}
			if tok.AccessToken != "tok" {
				t.Errorf("AccessToken = %q", tok.AccessToken)
			}
			left := time.Until(tok.ExpiresAt)
			if left < tt.minExpiry || left > tt.maxExpiry {
				t.Errorf("expiry in %v, want between %v and %v", left, tt.minExpiry, tt.maxExpiry)
			}
		})
	}
}

func TestExchangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), server.Client())
	_, err := c.Exchange(context.Background(), "bad")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || !strings.Contains(apiErr.Body, "invalid_grant") {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/userinfo" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"sub":"member-1","name":"Anna"}`))
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), server.Client())
	sub, err := c.UserInfo(context.Background(), "tok")
	if err != nil {
		t.Fatalf("UserInfo() error = %v", err)
	}
	if sub != "member-1" {
		t.Errorf("sub = %q", sub)
	}
}

func TestCreatePost(t *testing.T) {
	var got shareRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/posts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("LinkedIn-Version") != "202401" {
			t.Errorf("LinkedIn-Version = %q", r.Header.Get("LinkedIn-Version"))
		}
		if r.Header.Get("X-Restli-Protocol-Version") != "2.0.0" {
			t.Errorf("X-Restli-Protocol-Version = %q", r.Header.Get("X-Restli-Protocol-Version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("X-Restli-Id", "urn:li:share:1")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), server.Client())
	id, err := c.CreatePost(context.Background(), "tok", "urn:li:person:abc", "Hej\n\nvärlden")
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if id != "urn:li:share:1" {
		t.Errorf("id = %q", id)
	}
	if got.Author != "urn:li:person:abc" || got.Commentary != "Hej\n\nvärlden" {
		t.Errorf("body = %+v", got)
	}
	if got.Visibility != "PUBLIC" || got.LifecycleState != "PUBLISHED" || got.Distribution.FeedDistribution != "MAIN_FEED" {
		t.Errorf("body = %+v", got)
	}
}

func TestCreatePostUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Not enough permissions"}`))
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), server.Client())
	_, err := c.CreatePost(context.Background(), "tok", "urn:li:person:abc", "text")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("error = %v, want 403 APIError", err)
	}
}
