package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"studio/internal/contenttypes"
	"studio/internal/core"
	"studio/internal/persistence"
)

const maxBodyBytes = 10 << 20

// ErrorResponse is the flat error body every endpoint uses
type ErrorResponse struct {
	Error   string `json:"error"`
	Debug   string `json:"debug,omitempty"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ContentTypesResponse lists the registry
type ContentTypesResponse struct {
	Platforms map[core.Platform][]core.ContentType `json:"platforms"`
	Tones     []core.Tone                          `json:"tones"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if s.deps.DB == nil {
		checks["database"] = "not configured"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	if err := s.deps.DB.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}

	checks["database"] = "ok"
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

// handleContentTypes handles GET /api/content-types
func (s *Server) handleContentTypes(w http.ResponseWriter, r *http.Request) {
	platforms := map[core.Platform][]core.ContentType{}
	for _, p := range []core.Platform{core.PlatformInstagram, core.PlatformLinkedIn, core.PlatformNewsletter} {
		platforms[p] = s.deps.Registry.List(p)
	}
	s.respondJSON(w, http.StatusOK, ContentTypesResponse{
		Platforms: platforms,
		Tones:     contenttypes.Tones(),
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusMethodNotAllowed, "Metoden stöds ej")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusNotFound, "Hittades inte")
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorw("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a flat {"error": message} body
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// requireDB answers 503 when the server runs without a database
func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.deps.DB == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Databasen är inte konfigurerad")
		return false
	}
	return true
}

// respondStoreError maps repository errors to responses
func (s *Server) respondStoreError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		s.respondError(w, http.StatusNotFound, what+" hittades inte")
	case errors.Is(err, persistence.ErrConflict):
		s.respondError(w, http.StatusConflict, "Publicerade inlägg kan inte ändras")
	default:
		s.log.Errorw("Store operation failed", "what", what, "error", err)
		s.respondError(w, http.StatusInternalServerError, "Serverfel: "+err.Error())
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
