package generate

import (
	"fmt"
	"unicode/utf8"
)

// maxSnippet bounds diagnostic excerpts returned to callers, in characters.
const maxSnippet = 500

// InvalidTypeError is returned for a story type the registry does not know.
type InvalidTypeError struct {
	Platform  string
	StoryType string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("unknown story type %q for platform %s", e.StoryType, e.Platform)
}

// ConfigError is returned when the model credentials are missing.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Missing)
}

// UpstreamError carries a non-2xx answer from the model API verbatim.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model API returned status %d", e.StatusCode)
}

// EmptyResponseError means the model answered without any text.
type EmptyResponseError struct {
	Debug string
}

func (e *EmptyResponseError) Error() string {
	return "model returned an empty response"
}

// UnparsableResponseError means no balanced JSON array was found.
type UnparsableResponseError struct {
	Snippet string
}

func (e *UnparsableResponseError) Error() string {
	return "no JSON array found in model response"
}

// MalformedJSONError means an array was found but could not be decoded.
type MalformedJSONError struct {
	Snippet string
	Err     error
}

func (e *MalformedJSONError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model response is not valid JSON: %v", e.Err)
	}
	return "model response is not valid JSON"
}

func (e *MalformedJSONError) Unwrap() error { return e.Err }

// TimeoutError means the model call exceeded its deadline. After is empty
// when the caller's own deadline ran out first.
type TimeoutError struct {
	After string
}

func (e *TimeoutError) Error() string {
	if e.After != "" {
		return "model call timed out after " + e.After
	}
	return "model call timed out"
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= maxSnippet {
		return s
	}
	n := 0
	for i := range s {
		if n == maxSnippet {
			return s[:i]
		}
		n++
	}
	return s
}
