// Package linkedin talks to the LinkedIn OAuth and REST endpoints used for
// connecting an account and publishing text posts.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"studio/internal/config"
	"studio/internal/logger"
)

const (
	// Scopes requested during authorization
	Scopes = "openid profile w_member_social email"

	// DefaultTokenLifetime applies when the token response omits expires_in
	DefaultTokenLifetime = 60 * 24 * time.Hour

	defaultAPIVersion = "202401"
	defaultTimeout    = 30 * time.Second
	maxErrorBody      = 64 << 10
)

// ErrNotConfigured is returned when the OAuth client credentials or redirect URI are missing
var ErrNotConfigured = errors.New("linkedin client is not configured")

// APIError carries a non-2xx LinkedIn response
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkedin returned status %d: %s", e.StatusCode, e.Body)
}

// Token is the result of an authorization code exchange
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Client handles the LinkedIn OAuth flow and post creation
type Client struct {
	oauth      *oauth2.Config
	apiBase    string
	apiVersion string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a LinkedIn client from configuration. A nil httpClient
// uses http.DefaultClient.
func NewClient(cfg config.LinkedIn, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       strings.Fields(Scopes),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBase:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		apiVersion: version,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the authorization URL the browser is redirected to
func (c *Client) AuthCodeURL(state string) (string, error) {
	if c.oauth.ClientID == "" || c.oauth.RedirectURL == "" {
		return "", ErrNotConfigured
	}
	return c.oauth.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for an access token
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	if c.oauth.ClientID == "" || c.oauth.ClientSecret == "" || c.oauth.RedirectURL == "" {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, &APIError{StatusCode: re.Response.StatusCode, Body: string(re.Body)}
		}
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(DefaultTokenLifetime)
	}
	return &Token{AccessToken: tok.AccessToken, ExpiresAt: expiresAt}, nil
}

// UserInfo returns the OpenID subject of the token's member
func (c *Client) UserInfo(ctx context.Context, accessToken string) (string, error) {
	req, cancel, err := c.newRequest(ctx, http.MethodGet, "/v2/userinfo", accessToken, nil)
	if err != nil {
		return "", err
	}
	defer cancel()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readAPIError(resp)
	}

	var info struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return info.Sub, nil
}

type shareRequest struct {
	Author         string       `json:"author"`
	Commentary     string       `json:"commentary"`
	Visibility     string       `json:"visibility"`
	Distribution   distribution `json:"distribution"`
	LifecycleState string       `json:"lifecycleState"`
}

type distribution struct {
	FeedDistribution               string   `json:"feedDistribution"`
	TargetEntities                 []string `json:"targetEntities"`
	ThirdPartyDistributionChannels []string `json:"thirdPartyDistributionChannels"`
}

// CreatePost publishes text as a public feed post by author and returns the
// id LinkedIn assigned, when it sends one
func (c *Client) CreatePost(ctx context.Context, accessToken, author, text string) (string, error) {
	body, err := json.Marshal(shareRequest{
		Author:     author,
		Commentary: text,
		Visibility: "PUBLIC",
		Distribution: distribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		LifecycleState: "PUBLISHED",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal post: %w", err)
	}

	req, cancel, err := c.newRequest(ctx, http.MethodPost, "/v2/posts", accessToken, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer cancel()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	req.Header.Set("LinkedIn-Version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readAPIError(resp)
	}

	id := resp.Header.Get("X-Restli-Id")
	logger.Info("Published LinkedIn post", "author", author, "post_id", id, "chars", len([]rune(text)))
	return id, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, accessToken string, body io.Reader) (*http.Request, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return req, cancel, nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
}
