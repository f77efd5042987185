package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"studio/internal/core"
	"studio/internal/fetch"
	"studio/internal/generate"
)

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	StoryType          string   `json:"storyType"`
	Platform           string   `json:"platform,omitempty"`
	Sources            []string `json:"sources"`
	Tone               string   `json:"tone,omitempty"`
	Count              int      `json:"count,omitempty"`
	Instructions       []string `json:"instructions,omitempty"`   // Free text appended to the prompt
	InstructionIDs     []string `json:"instructionIds,omitempty"` // Stored instructions to append
	CustomInstructions string   `json:"customInstructions,omitempty"`
	CustomFields       []string `json:"customFields,omitempty"`
}

// GenerateResponse carries unsaved draft posts
type GenerateResponse struct {
	Posts []core.Post `json:"posts"`
}

// ScrapeRequest is the body of POST /api/scrape
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeResponse is the extracted page
type ScrapeResponse struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

// handleGenerate handles POST /api/generate and its /api/claude alias
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}

	instructions := req.Instructions
	if len(req.InstructionIDs) > 0 && s.deps.DB != nil {
		stored, err := s.deps.DB.Instructions().GetMany(r.Context(), req.InstructionIDs)
		if err != nil {
			s.respondStoreError(w, "Instruktion", err)
			return
		}
		for _, in := range stored {
			instructions = append(instructions, in.Content)
		}
	}

	posts, err := s.deps.Generator.Generate(r.Context(), generate.Request{
		StoryType:          req.StoryType,
		Platform:           core.Platform(req.Platform),
		Sources:            req.Sources,
		Tone:               req.Tone,
		Count:              req.Count,
		Instructions:       instructions,
		CustomInstructions: req.CustomInstructions,
		CustomFields:       req.CustomFields,
	})
	if err != nil {
		s.respondGenerateError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, GenerateResponse{Posts: posts})
}

func (s *Server) respondGenerateError(w http.ResponseWriter, err error) {
	var (
		invalid    *generate.InvalidTypeError
		cfgErr     *generate.ConfigError
		upstream   *generate.UpstreamError
		empty      *generate.EmptyResponseError
		unparsable *generate.UnparsableResponseError
		malformed  *generate.MalformedJSONError
		timeout    *generate.TimeoutError
	)

	switch {
	case errors.As(err, &invalid):
		s.respondError(w, http.StatusBadRequest, "Okänd inläggstyp")
	case errors.As(err, &cfgErr):
		s.respondError(w, http.StatusInternalServerError, cfgErr.Missing+" saknas")
	case errors.As(err, &upstream):
		status := upstream.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		s.respondError(w, status, upstream.Body)
	case errors.As(err, &empty):
		s.respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Tomt svar från AI", Debug: empty.Debug})
	case errors.As(err, &unparsable):
		s.respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Kunde inte tolka AI-svaret", Debug: unparsable.Snippet})
	case errors.As(err, &malformed):
		s.respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "JSON-parsning misslyckades", Debug: malformed.Snippet})
	case errors.As(err, &timeout):
		s.respondError(w, http.StatusGatewayTimeout, "AI-anropet tog för lång tid")
	default:
		s.log.Errorw("Generation failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Serverfel: "+err.Error())
	}
}

// handleScrape handles POST /api/scrape
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		s.respondError(w, http.StatusBadRequest, "URL saknas")
		return
	}

	page, err := s.deps.Fetcher.Fetch(r.Context(), url)
	if err != nil {
		s.respondScrapeError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, ScrapeResponse{Content: page.Text, Title: page.Title})
}

func (s *Server) respondScrapeError(w http.ResponseWriter, err error) {
	var httpErr *fetch.HTTPError
	switch {
	case errors.As(err, &httpErr):
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Kunde inte hämta sidan (%d)", httpErr.StatusCode))
	case errors.Is(err, fetch.ErrEmptyContent):
		s.respondError(w, http.StatusBadRequest, "Kunde inte extrahera text från sidan")
	default:
		s.log.Warnw("Scrape failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Fel vid hämtning: "+err.Error())
	}
}
