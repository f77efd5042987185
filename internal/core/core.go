package core

import "time"

// Platform identifies the channel a content type is written for.
type Platform string

const (
	PlatformInstagram  Platform = "instagram"
	PlatformLinkedIn   Platform = "linkedin"
	PlatformNewsletter Platform = "newsletter"
)

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformLinkedIn, PlatformNewsletter:
		return true
	}
	return false
}

// PostStatus is the lifecycle state of a generated post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusScheduled PostStatus = "scheduled"
	StatusPublished PostStatus = "published"
	StatusExported  PostStatus = "exported"
	StatusReviewed  PostStatus = "reviewed"
)

// Valid reports whether s is one of the known post statuses.
func (s PostStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusPublished, StatusExported, StatusReviewed:
		return true
	}
	return false
}

// SourceType classifies a unit of raw material.
type SourceType string

const (
	SourceTranscriptEvent   SourceType = "transcript_event"
	SourceTranscriptMeeting SourceType = "transcript_meeting"
	SourcePresentation      SourceType = "presentation"
	SourceDocument          SourceType = "document"
	SourceWebpage           SourceType = "webpage"
	SourceNote              SourceType = "note"
)

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTranscriptEvent, SourceTranscriptMeeting, SourcePresentation,
		SourceDocument, SourceWebpage, SourceNote:
		return true
	}
	return false
}

// ContentType describes one post template: which platform it targets and
// which fields the model must fill, in order.
type ContentType struct {
	Platform    Platform `json:"platform"`    // Platform the template is written for
	Key         string   `json:"id"`          // Stable type key, e.g. "myt-vs-sanning"
	Name        string   `json:"name"`        // Human readable name used in prompts
	Description string   `json:"description"` // Short description shown in the UI
	Icon        string   `json:"icon"`        // Emoji shown in the UI
	Fields      []string `json:"columns"`     // Ordered output fields; empty for custom types
	Custom      bool     `json:"custom"`      // Free-form instructions replace the fixed field list
}

// Tone is a writing tone offered for every platform.
type Tone struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultTone is used when a request does not name a tone.
const DefaultTone = "professionell"

// Source is raw material used to ground generated content.
type Source struct {
	ID        string     `json:"id"`         // Unique identifier
	Title     string     `json:"title"`      // Title shown in the source library
	Type      SourceType `json:"type"`       // Kind of material
	Content   string     `json:"content"`    // Plain text content
	URL       string     `json:"url"`        // Origin URL, empty for pasted material
	CreatedAt time.Time  `json:"created_at"` // Timestamp when the source was added
}

// Post is one generated piece of content.
type Post struct {
	ID          string            `json:"id"`                     // Unique identifier
	StoryType   string            `json:"story_type"`             // Content type key
	Platform    Platform          `json:"platform"`               // Target platform
	Status      PostStatus        `json:"status"`                 // Lifecycle state
	Fields      map[string]string `json:"fields"`                 // Field name to text
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"` // Set while scheduled
	PublishedAt *time.Time        `json:"published_at,omitempty"` // Set once published
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// LinkedInToken is the single stored LinkedIn credential.
type LinkedInToken struct {
	AccessToken string    `json:"-"`            // OAuth access token, never serialized
	ExpiresAt   time.Time `json:"expires_at"`   // Absolute expiry
	Subject     string    `json:"linkedin_sub"` // OpenID subject used to build the author URN
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsExpired reports whether the token expired before now.
func (t *LinkedInToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// AuthorURN returns the LinkedIn person URN for the token's subject.
func (t *LinkedInToken) AuthorURN() string {
	return "urn:li:person:" + t.Subject
}

// ExportLogEntry records one CSV export action. Entries are append-only.
type ExportLogEntry struct {
	ID        string    `json:"id"`
	PostIDs   []string  `json:"post_ids"`
	StoryType string    `json:"story_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Idea is an entry in the idea bank.
type Idea struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}

// Instruction is a stored writing instruction that can be appended to prompts.
type Instruction struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
