package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"studio/internal/export"
)

// CreateExportRequest selects posts for a CSV export
type CreateExportRequest struct {
	PostIDs      []string `json:"postIds"`
	StoryType    string   `json:"storyType"`
	MarkExported bool     `json:"markExported"`
}

// handleCreateExport handles POST /api/exports and streams the CSV file
func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	var req CreateExportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}

	res, err := s.deps.Exporter.Export(r.Context(), export.Request{
		PostIDs:      req.PostIDs,
		StoryType:    req.StoryType,
		MarkExported: req.MarkExported,
	})
	if err != nil {
		if errors.Is(err, export.ErrNoPosts) {
			s.respondError(w, http.StatusBadRequest, "Inga inlägg valda")
			return
		}
		s.respondStoreError(w, "Inlägget", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Export-ID", res.Entry.ID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		s.log.Warnw("Failed to write export", "error", err)
	}
}

// handleListExports handles GET /api/exports
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	entries, err := s.deps.DB.Exports().ListRecent(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		s.respondStoreError(w, "Exporter", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"exports": entries})
}
