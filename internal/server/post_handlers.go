package server

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studio/internal/core"
	"studio/internal/persistence"
	"studio/internal/publish"
)

// SavePostsRequest stores generated posts
type SavePostsRequest struct {
	Posts     []core.Post `json:"posts"`
	StoryType string      `json:"storyType"`
	Platform  string      `json:"platform"`
}

// UpdatePostRequest edits a post. Nil members are left unchanged.
type UpdatePostRequest struct {
	Fields map[string]string `json:"fields,omitempty"`
	Status *core.PostStatus  `json:"status,omitempty"`
}

// SchedulePostRequest schedules a draft
type SchedulePostRequest struct {
	ScheduledAt time.Time `json:"scheduledAt"`
}

// PostsResponse wraps a post listing
type PostsResponse struct {
	Posts []core.Post `json:"posts"`
}

// handleListPosts handles GET /api/posts
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	q := r.URL.Query()
	posts, err := s.deps.DB.Posts().List(r.Context(), persistence.PostFilter{
		StoryType: q.Get("storyType"),
		Status:    q.Get("status"),
		Platform:  q.Get("platform"),
		Limit:     queryInt(r, "limit", 0),
	})
	if err != nil {
		s.respondStoreError(w, "Inlägg", err)
		return
	}
	s.respondJSON(w, http.StatusOK, PostsResponse{Posts: posts})
}

// handleSavePosts handles POST /api/posts
func (s *Server) handleSavePosts(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	var req SavePostsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}
	if len(req.Posts) == 0 {
		s.respondError(w, http.StatusBadRequest, "Inga inlägg att spara")
		return
	}

	now := time.Now().UTC()
	posts := make([]core.Post, len(req.Posts))
	for i, p := range req.Posts {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.StoryType == "" {
			p.StoryType = req.StoryType
		}
		if p.Platform == "" {
			p.Platform = core.Platform(req.Platform)
		}
		if p.Platform == "" {
			p.Platform = s.deps.Registry.PlatformOf(p.StoryType)
		}
		if !p.Platform.Valid() {
			s.respondError(w, http.StatusBadRequest, "Okänd plattform")
			return
		}
		ct, ok := s.deps.Registry.Lookup(p.Platform, p.StoryType)
		if !ok {
			s.respondError(w, http.StatusBadRequest, "Okänd inläggstyp")
			return
		}
		if key := unknownField(ct, p.Fields); key != "" {
			s.respondError(w, http.StatusBadRequest, "Okänt fält: "+key)
			return
		}
		// Saved posts always start as drafts.
		p.Status = core.StatusDraft
		p.ScheduledAt = nil
		p.PublishedAt = nil
		if p.Fields == nil {
			p.Fields = map[string]string{}
		}
		p.CreatedAt = now
		p.UpdatedAt = now
		posts[i] = p
	}

	if err := s.deps.DB.Posts().CreateMany(r.Context(), posts); err != nil {
		s.respondStoreError(w, "Inlägg", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, PostsResponse{Posts: posts})
}

// handleGetPost handles GET /api/posts/{id}
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	post, err := s.deps.DB.Posts().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, "Inlägget", err)
		return
	}
	s.respondJSON(w, http.StatusOK, post)
}

// handleUpdatePost handles PATCH /api/posts/{id}
func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	var req UpdatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}
	if req.Status != nil {
		switch *req.Status {
		case core.StatusDraft, core.StatusReviewed, core.StatusExported:
		default:
			// Scheduling and publishing have their own endpoints.
			s.respondError(w, http.StatusBadRequest, "Ogiltig status")
			return
		}
	}

	id := chi.URLParam(r, "id")
	if req.Fields != nil {
		current, err := s.deps.DB.Posts().Get(r.Context(), id)
		if err != nil {
			s.respondStoreError(w, "Inlägget", err)
			return
		}
		platform := current.Platform
		if platform == "" {
			platform = s.deps.Registry.PlatformOf(current.StoryType)
		}
		ct, ok := s.deps.Registry.Lookup(platform, current.StoryType)
		if !ok {
			s.respondError(w, http.StatusBadRequest, "Okänd inläggstyp")
			return
		}
		if key := unknownField(ct, req.Fields); key != "" {
			s.respondError(w, http.StatusBadRequest, "Okänt fält: "+key)
			return
		}
	}

	post, err := s.deps.DB.Posts().Update(r.Context(), id, persistence.PostUpdate{
		Fields: req.Fields,
		Status: req.Status,
	})
	if err != nil {
		s.respondStoreError(w, "Inlägget", err)
		return
	}
	s.respondJSON(w, http.StatusOK, post)
}

// handleDeletePost handles DELETE /api/posts/{id}
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	if err := s.deps.DB.Posts().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, "Inlägget", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSchedulePost handles POST /api/posts/{id}/schedule
func (s *Server) handleSchedulePost(w http.ResponseWriter, r *http.Request) {
	var req SchedulePostRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}

	post, err := s.deps.Publisher.Schedule(r.Context(), chi.URLParam(r, "id"), req.ScheduledAt)
	if err != nil {
		var state *publish.StateError
		if errors.As(err, &state) {
			s.respondError(w, http.StatusConflict, "Endast utkast kan schemaläggas")
			return
		}
		s.respondPublishError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, post)
}

// handlePublishPost handles POST /api/posts/{id}/publish
func (s *Server) handlePublishPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.deps.Publisher.PublishNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondPublishError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, post)
}

// unknownField returns the first key (in sorted order) that ct does not
// declare. Custom types accept any key.
func unknownField(ct core.ContentType, fields map[string]string) string {
	if ct.Custom {
		return ""
	}
	allowed := make(map[string]bool, len(ct.Fields))
	for _, f := range ct.Fields {
		allowed[f] = true
	}
	var unknown []string
	for k := range fields {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return ""
	}
	sort.Strings(unknown)
	return unknown[0]
}
