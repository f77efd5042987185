package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"time"

	"studio/internal/logger"
	"studio/internal/metrics"
	"studio/internal/store"
)

// DefaultUserAgent identifies the studio to the sites it scrapes.
const DefaultUserAgent = "Mozilla/5.0 (compatible; CefundBot/1.0)"

// urlRegex is a simple regex to find URLs.
var urlRegex = regexp.MustCompile(`https?://[^\s)]+`)

// ErrEmptyContent is returned when a page was fetched but no text survived extraction.
var ErrEmptyContent = errors.New("no text could be extracted from page")

// HTTPError is returned when the remote server answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetching %s: status code %d", e.URL, e.StatusCode)
}

// Page is the result of fetching and extracting one URL.
type Page struct {
	URL       string
	Title     string
	Text      string
	FetchedAt time.Time
	Cached    bool
}

// PageCache is the subset of the page store the fetcher uses.
type PageCache interface {
	GetCachedPage(url string, maxAge time.Duration) (*store.CachedPage, error)
	CachePage(url, title, text string) error
}

// Fetcher downloads web pages and reduces them to plain text.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	timeout      time.Duration
	maxBodyBytes int64
	cache        PageCache
	cacheTTL     time.Duration
	metrics      *metrics.Metrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithTimeout bounds each fetch, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBodyBytes = n }
}

// WithCache serves pages younger than ttl from cache and stores fresh fetches.
func WithCache(c PageCache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// NewFetcher creates a fetcher with the studio's defaults.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       &http.Client{},
		userAgent:    DefaultUserAgent,
		timeout:      15 * time.Second,
		maxBodyBytes: 5 << 20,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL and extracts its text. Non-2xx responses return
// *HTTPError; pages without usable text return ErrEmptyContent.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if f.cache != nil {
		cached, err := f.cache.GetCachedPage(rawURL, f.cacheTTL)
		if err != nil {
			logger.Warn("Page cache lookup failed", "url", rawURL, "error", err)
		} else if cached != nil && cached.Text != "" {
			f.metrics.IncPageFetch("cached")
			return &Page{
				URL:       rawURL,
				Title:     cached.Title,
				Text:      cached.Text,
				FetchedAt: cached.DateFetched,
				Cached:    true,
			}, nil
		}
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.metrics.IncPageFetch("network_error")
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.IncPageFetch("network_error")
		return nil, fmt.Errorf("failed to fetch URL %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.metrics.IncPageFetch("http_error")
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	var body io.Reader = resp.Body
	if f.maxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBodyBytes)
	}
	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		f.metrics.IncPageFetch("network_error")
		return nil, fmt.Errorf("failed to read response body from %s: %w", rawURL, err)
	}

	var title, text string
	if IsPDF(resp.Header.Get("Content-Type"), rawURL) {
		text, err = ExtractPDFText(bodyBytes)
		if err != nil {
			logger.Warn("PDF extraction failed", "url", rawURL, "error", err)
		}
		title = pdfTitle(text)
	} else {
		html := string(bodyBytes)
		text = ExtractText(html)
		title = ExtractTitle(html)
	}
	if text == "" {
		f.metrics.IncPageFetch("empty")
		return nil, ErrEmptyContent
	}

	page := &Page{
		URL:       rawURL,
		Title:     title,
		Text:      text,
		FetchedAt: time.Now().UTC(),
	}
	f.metrics.IncPageFetch("ok")

	if f.cache != nil {
		if err := f.cache.CachePage(rawURL, page.Title, page.Text); err != nil {
			logger.Warn("Failed to cache page", "url", rawURL, "error", err)
		}
	}

	return page, nil
}

// ReadLinksFromFile reads URLs from a text file, one or more per line,
// possibly inside markdown list items. Duplicates are dropped.
func ReadLinksFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open link file %s: %w", filePath, err)
	}
	defer func() { _ = file.Close() }()

	var links []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++

		for _, textURL := range urlRegex.FindAllString(scanner.Text(), -1) {
			parsedURL, err := url.ParseRequestURI(textURL)
			if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
				logger.Warn("Skipping invalid URL", "line", lineNumber, "url", textURL)
				continue
			}
			if seen[textURL] {
				continue
			}
			seen[textURL] = true
			links = append(links, textURL)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading link file %s: %w", filePath, err)
	}

	return links, nil
}
