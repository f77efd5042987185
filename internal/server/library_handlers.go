package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studio/internal/core"
)

// CreateSourceRequest adds material to the source library. A URL without
// content is scraped into a webpage source.
type CreateSourceRequest struct {
	Title   string          `json:"title"`
	Type    core.SourceType `json:"type"`
	Content string          `json:"content"`
	URL     string          `json:"url"`
}

// CreateIdeaRequest adds an entry to the idea bank
type CreateIdeaRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// CreateInstructionRequest stores a writing instruction
type CreateInstructionRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateInstructionRequest edits an instruction. Nil members are left unchanged.
type UpdateInstructionRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// handleListSources handles GET /api/sources
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	sources, err := s.deps.DB.Sources().List(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		s.respondStoreError(w, "Källor", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

// handleCreateSource handles POST /api/sources
func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	var req CreateSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}

	source := core.Source{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(req.Title),
		Type:      req.Type,
		Content:   strings.TrimSpace(req.Content),
		URL:       strings.TrimSpace(req.URL),
		CreatedAt: time.Now().UTC(),
	}

	if source.Content == "" && source.URL != "" {
		page, err := s.deps.Fetcher.Fetch(r.Context(), source.URL)
		if err != nil {
			s.respondScrapeError(w, err)
			return
		}
		source.Content = page.Text
		source.Type = core.SourceWebpage
		if source.Title == "" {
			source.Title = page.Title
		}
	}

	if source.Content == "" {
		s.respondError(w, http.StatusBadRequest, "Innehåll saknas")
		return
	}
	if source.Type == "" {
		source.Type = core.SourceNote
	}
	if !source.Type.Valid() {
		s.respondError(w, http.StatusBadRequest, "Okänd källtyp")
		return
	}
	if source.Title == "" {
		source.Title = source.URL
	}

	if err := s.deps.DB.Sources().Create(r.Context(), &source); err != nil {
		s.respondStoreError(w, "Källa", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, source)
}

// handleDeleteSource handles DELETE /api/sources/{id}
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	if err := s.deps.DB.Sources().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, "Källan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListIdeas handles GET /api/ideas
func (s *Server) handleListIdeas(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	ideas, err := s.deps.DB.Ideas().List(r.Context())
	if err != nil {
		s.respondStoreError(w, "Idéer", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ideas": ideas})
}

// handleCreateIdea handles POST /api/ideas
func (s *Server) handleCreateIdea(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	var req CreateIdeaRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.respondError(w, http.StatusBadRequest, "Titel saknas")
		return
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	idea := core.Idea{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Tags:        tags,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.deps.DB.Ideas().Create(r.Context(), &idea); err != nil {
		s.respondStoreError(w, "Idé", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, idea)
}

// handleDeleteIdea handles DELETE /api/ideas/{id}
func (s *Server) handleDeleteIdea(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	if err := s.deps.DB.Ideas().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, "Idén", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListInstructions handles GET /api/instructions
func (s *Server) handleListInstructions(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	instructions, err := s.deps.DB.Instructions().List(r.Context())
	if err != nil {
		s.respondStoreError(w, "Instruktioner", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"instructions": instructions})
}

// handleCreateInstruction handles POST /api/instructions
func (s *Server) handleCreateInstruction(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	var req CreateInstructionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "Innehåll saknas")
		return
	}

	now := time.Now().UTC()
	instruction := core.Instruction{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(req.Title),
		Content:   strings.TrimSpace(req.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.DB.Instructions().Create(r.Context(), &instruction); err != nil {
		s.respondStoreError(w, "Instruktion", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, instruction)
}

// handleUpdateInstruction handles PATCH /api/instructions/{id}
func (s *Server) handleUpdateInstruction(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	var req UpdateInstructionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}
	if req.Content != nil && strings.TrimSpace(*req.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "Innehåll saknas")
		return
	}

	instruction, err := s.deps.DB.Instructions().Update(r.Context(), chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		s.respondStoreError(w, "Instruktionen", err)
		return
	}
	s.respondJSON(w, http.StatusOK, instruction)
}

// handleDeleteInstruction handles DELETE /api/instructions/{id}
func (s *Server) handleDeleteInstruction(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	if err := s.deps.DB.Instructions().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, "Instruktionen", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
