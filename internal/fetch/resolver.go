package fetch

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"studio/internal/logger"
)

// maxBareURLLength bounds what is treated as a URL to fetch. Longer inputs
// are assumed to be pasted text that happens to start with a link.
const maxBareURLLength = 300

var bareURLPattern = regexp.MustCompile(`^https?://\S+$`)

// IsBareURL reports whether s, after trimming, is a single http(s) URL.
func IsBareURL(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) < maxBareURLLength && bareURLPattern.MatchString(s)
}

// PageFetcher fetches one page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Resolver turns user supplied sources into text, fetching bare URLs.
type Resolver struct {
	fetcher        PageFetcher
	maxConcurrency int
}

// NewResolver creates a resolver running at most maxConcurrency fetches at once.
func NewResolver(fetcher PageFetcher, maxConcurrency int) *Resolver {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Resolver{fetcher: fetcher, maxConcurrency: maxConcurrency}
}

// Resolve returns one string per input, in input order. Bare URLs are
// replaced by their extracted text; any fetch failure keeps the original
// string. Non-URL inputs are returned untouched.
func (r *Resolver) Resolve(ctx context.Context, sources []string) []string {
	out := make([]string, len(sources))
	copy(out, sources)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrency)

	for i, src := range sources {
		if !IsBareURL(src) {
			continue
		}
		g.Go(func() error {
			u := strings.TrimSpace(src)
			page, err := r.fetcher.Fetch(gctx, u)
			if err != nil {
				logger.Warn("Source fetch failed, using original text", "url", u, "error", err)
				return nil
			}
			out[i] = page.Text
			return nil
		})
	}

	// Workers never return errors; a failed fetch only keeps its fallback.
	_ = g.Wait()
	return out
}
