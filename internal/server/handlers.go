package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/instant-apply/internal/ledger"
	"github.com/jonathan/instant-apply/internal/profile"
	"github.com/jonathan/instant-apply/internal/search"
	"github.com/jonathan/instant-apply/internal/types"
)

// SearchRequest represents the request body for /search.
type SearchRequest struct {
	Title    string `json:"title" validate:"required"`
	Location string `json:"location,omitempty"`
}

// SearchResponse represents the response for /search.
type SearchResponse struct {
	Listings []types.Listing `json:"listings"`
	Count    int             `json:"count"`
}

// StartApplicationRequest represents the request body for /applications.
type StartApplicationRequest struct {
	UserID  string        `json:"user_id" validate:"required,uuid4"`
	Listing types.Listing `json:"listing"`
}

// AttemptResponse represents an attempt in API responses.
type AttemptResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Listing   types.Listing       `json:"listing"`
	Status    types.AttemptStatus `json:"status"`
	Cause     types.FailureCause  `json:"cause,omitempty"`
	Questions []types.Question    `json:"questions,omitempty"`
	Answers   []types.Answer      `json:"answers,omitempty"`
	History   []types.StatusEvent `json:"history,omitempty"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

// UpdateStatusRequest represents the request body for PATCH status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=interview rejected accepted"`
}

func attemptResponse(a *types.ApplicationAttempt, history []types.StatusEvent) AttemptResponse {
	return AttemptResponse{
		ID:        a.ID.String(),
		UserID:    a.UserID.String(),
		Listing:   a.Listing,
		Status:    a.Status,
		Cause:     a.Cause,
		Questions: a.Questions,
		Answers:   a.Answers,
		History:   history,
		CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: a.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// handleSearch runs a listing search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	listings, err := s.searcher.Search(r.Context(), req.Title, req.Location)
	if err != nil {
		if errors.Is(err, search.ErrInvalidQuery) {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		s.errorResponse(w, http.StatusBadGateway, "Search failed: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, SearchResponse{Listings: listings, Count: len(listings)})
}

// handleStartApplication creates an attempt and schedules it.
func (s *Server) handleStartApplication(w http.ResponseWriter, r *http.Request) {
	var req StartApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "user_id must be a UUID")
		return
	}
	if req.Listing.URL == "" || req.Listing.Source == "" || req.Listing.ExternalID == "" {
		s.errorResponse(w, http.StatusBadRequest, "listing source, external_id and url are required")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	attempt, err := s.starter.Start(r.Context(), userID, req.Listing)
	if err != nil {
		s.attemptErrorResponse(w, err)
		return
	}
	s.dispatcher.Submit(attempt)

	s.jsonResponse(w, http.StatusAccepted, attemptResponse(attempt, nil))
}

// handleGetApplication returns one attempt with its status history.
func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	attempt, err := s.store.GetAttempt(r.Context(), attemptID)
	if err != nil {
		s.attemptErrorResponse(w, err)
		return
	}
	history, err := s.store.ListEvents(r.Context(), attemptID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, attemptResponse(attempt, history))
}

// handleListApplications returns a user's attempts, newest first.
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	attempts, err := s.store.ListByUser(r.Context(), userID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	out := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptResponse(a, nil))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"applications": out, "count": len(out)})
}

// handleRetryApplication creates a fresh attempt for a terminal one.
func (s *Server) handleRetryApplication(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	attempt, err := s.starter.Retry(r.Context(), attemptID)
	if err != nil {
		s.attemptErrorResponse(w, err)
		return
	}
	s.dispatcher.Submit(attempt)

	s.jsonResponse(w, http.StatusAccepted, attemptResponse(attempt, nil))
}

// handleUpdateStatus records an out-of-band status observed by the user
// (interview, rejected, accepted).
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	attemptID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "status must be one of: interview, rejected, accepted")
		return
	}

	err := s.store.UpdateStatus(r.Context(), attemptID, types.AttemptStatus(req.Status), "")
	if err != nil {
		s.attemptErrorResponse(w, err)
		return
	}

	attempt, err := s.store.GetAttempt(r.Context(), attemptID)
	if err != nil {
		s.attemptErrorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, attemptResponse(attempt, nil))
}

// handleHealth returns service health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathUUID parses a UUID path parameter, writing a 400 on failure.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := r.PathValue(name)
	if raw == "" {
		s.errorResponse(w, http.StatusBadRequest, name+" is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// attemptErrorResponse maps domain errors to HTTP statuses.
func (s *Server) attemptErrorResponse(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrDuplicateActiveAttempt):
		s.errorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrAttemptNotFound):
		s.errorResponse(w, http.StatusNotFound, "Application not found")
	case errors.Is(err, profile.ErrProfileNotFound):
		s.errorResponse(w, http.StatusNotFound, "Profile not found")
	case errors.Is(err, ledger.ErrInvalidTransition):
		s.errorResponse(w, http.StatusConflict, err.Error())
	default:
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
	}
}
