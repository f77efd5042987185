package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"studio/internal/linkedin"
	"studio/internal/persistence"
	"studio/internal/publish"
	"studio/internal/tokens"
)

// LinkedInPublishRequest is the body of POST /api/linkedin/publish
type LinkedInPublishRequest struct {
	PostID string `json:"postId,omitempty"`
	Text   string `json:"text"`
}

// LinkedInStatusResponse reports the connection state
type LinkedInStatusResponse struct {
	Connected   bool   `json:"connected"`
	Expired     *bool  `json:"expired,omitempty"`
	LinkedInSub string `json:"linkedinSub,omitempty"`
}

// handleLinkedInAuth redirects the browser to LinkedIn's consent page
func (s *Server) handleLinkedInAuth(w http.ResponseWriter, r *http.Request) {
	target, err := s.deps.Authorizer.AuthCodeURL(uuid.New().String())
	if err != nil {
		s.log.Warnw("LinkedIn authorization unavailable", "error", err)
		s.respondError(w, http.StatusInternalServerError, "LinkedIn-konfiguration saknas")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleLinkedInCallback completes the OAuth flow. Every outcome is a redirect.
func (s *Server) handleLinkedInCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if oauthErr := q.Get("error"); oauthErr != "" {
		s.log.Warnw("LinkedIn authorization denied", "error", oauthErr, "description", q.Get("error_description"))
		s.redirectLinkedInError(w, r, oauthErr)
		return
	}

	code := q.Get("code")
	if code == "" {
		s.redirectLinkedInError(w, r, "no_code")
		return
	}

	if _, err := s.deps.Tokens.ExchangeCode(r.Context(), code); err != nil {
		var apiErr *linkedin.APIError
		switch {
		case errors.Is(err, linkedin.ErrNotConfigured):
			s.redirectLinkedInError(w, r, "config_missing")
		case errors.As(err, &apiErr):
			s.log.Warnw("LinkedIn token exchange failed", "status", apiErr.StatusCode, "body", apiErr.Body)
			s.redirectLinkedInError(w, r, "token_failed")
		default:
			s.log.Errorw("LinkedIn callback failed", "error", err)
			s.redirectLinkedInError(w, r, "server_error")
		}
		return
	}

	http.Redirect(w, r, "/generera?linkedin_connected=true", http.StatusFound)
}

func (s *Server) redirectLinkedInError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/?linkedin_error="+url.QueryEscape(reason), http.StatusFound)
}

// handleLinkedInPublish publishes text, optionally on behalf of a stored post
func (s *Server) handleLinkedInPublish(w http.ResponseWriter, r *http.Request) {
	var req LinkedInPublishRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Ogiltig JSON")
		return
	}

	if err := s.deps.Publisher.PublishText(r.Context(), req.PostID, req.Text); err != nil {
		s.respondPublishError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleLinkedInStatus reports whether a usable token is stored
func (s *Server) handleLinkedInStatus(w http.ResponseWriter, r *http.Request) {
	token, err := s.deps.Tokens.Active(r.Context())
	if err != nil {
		s.log.Errorw("Failed to load LinkedIn token", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Serverfel: "+err.Error())
		return
	}
	if token == nil {
		s.respondJSON(w, http.StatusOK, LinkedInStatusResponse{Connected: false})
		return
	}

	expired := s.deps.Tokens.IsExpired(token)
	s.respondJSON(w, http.StatusOK, LinkedInStatusResponse{
		Connected:   !expired,
		Expired:     &expired,
		LinkedInSub: token.Subject,
	})
}

// handlePublishScheduled runs one sweep for the external cron trigger
func (s *Server) handlePublishScheduled(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Publisher.Sweep(r.Context())
	if err != nil {
		if errors.Is(err, tokens.ErrNoToken) || errors.Is(err, tokens.ErrTokenExpired) {
			s.respondJSON(w, http.StatusOK, map[string]interface{}{
				"error":     "Ingen giltig LinkedIn-token",
				"published": 0,
			})
			return
		}
		s.log.Errorw("Scheduled publish failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Serverfel: "+err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// respondPublishError maps publish state machine errors to responses
func (s *Server) respondPublishError(w http.ResponseWriter, err error) {
	var (
		validation *publish.ValidationError
		state      *publish.StateError
		apiErr     *linkedin.APIError
	)

	switch {
	case errors.As(err, &validation):
		s.respondError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, tokens.ErrNoToken):
		s.respondError(w, http.StatusUnauthorized, "Ingen LinkedIn-koppling hittades")
	case errors.Is(err, tokens.ErrTokenExpired):
		s.respondError(w, http.StatusUnauthorized, "LinkedIn-token har gått ut. Koppla om ditt konto.")
	case errors.Is(err, publish.ErrAlreadyPublished):
		s.respondError(w, http.StatusConflict, "Inlägget är redan publicerat")
	case errors.Is(err, publish.ErrInProgress):
		s.respondError(w, http.StatusConflict, "Inlägget publiceras redan")
	case errors.As(err, &state):
		s.respondError(w, http.StatusConflict, "Inlägget kan inte publiceras i status "+string(state.Status))
	case errors.Is(err, persistence.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Inlägget hittades inte")
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		s.respondJSON(w, status, ErrorResponse{Error: "Kunde inte publicera till LinkedIn", Details: apiErr.Body})
	default:
		s.log.Errorw("Publish failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Serverfel: "+err.Error())
	}
}
