// Package api provides the sessions REST API, including the out-of-band
// finalize entry point used when no live connection exists.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/focusup/focusd/pkg/auth"
	"github.com/focusup/focusd/pkg/session"
)

// Handler provides the sessions REST API endpoints.
type Handler struct {
	mux        *http.ServeMux
	service    *session.Service
	logger     *slog.Logger
	authMiddle func(http.Handler) http.Handler
}

// NewHandler creates a new sessions API handler. All routes run behind
// authMiddle.
func NewHandler(service *session.Service, authMiddle func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handler{
		mux:        http.NewServeMux(),
		service:    service,
		logger:     logger,
		authMiddle: authMiddle,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authMiddle != nil {
		h.authMiddle(h.mux).ServeHTTP(w, r)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all sessions API routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /api/sessions", h.createSession)
	h.mux.HandleFunc("GET /api/sessions", h.listSessions)
	h.mux.HandleFunc("GET /api/sessions/{id}", h.getSession)
	h.mux.HandleFunc("PATCH /api/sessions/{id}", h.updateSession)
	h.mux.HandleFunc("POST /api/sessions/{id}/end", h.endSession)
	h.mux.HandleFunc("DELETE /api/sessions/{id}", h.deleteSession)
}

type createSessionRequest struct {
	ContentID     string `json:"contentId"`
	Subject       string `json:"subject"`
	TargetMinutes int    `json:"targetMinutes"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.service.Create(r.Context(), auth.UserID(r.Context()), session.CreateParams{
		ContentID:     req.ContentID,
		Subject:       req.Subject,
		TargetMinutes: req.TargetMinutes,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"session": sess})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	filter := session.ListFilter{
		Status: session.Status(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	sessions, err := h.service.List(r.Context(), auth.UserID(r.Context()), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Get(r.Context(), r.PathValue("id"), auth.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

type updateSessionRequest struct {
	Subject *string `json:"subject"`
	Notes   *string `json:"notes"`
	Status  *string `json:"status"`
}

func (h *Handler) updateSession(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := session.UpdateParams{
		Subject: req.Subject,
		Notes:   req.Notes,
	}
	if req.Status != nil {
		status := session.Status(*req.Status)
		params.Status = &status
	}

	sess, err := h.service.Update(r.Context(), r.PathValue("id"), auth.UserID(r.Context()), params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

type endSessionRequest struct {
	Status         string `json:"status"`
	ElapsedSeconds *int   `json:"elapsedSeconds"`
	ActiveSeconds  *int   `json:"activeSeconds"`
	IdleSeconds    *int   `json:"idleSeconds"`
	TabSwitches    *int   `json:"tabSwitches"`
}

// endSession is the out-of-band finalize entry point. The optional body
// fields override the stored accumulators before scoring; the computed
// score is returned synchronously.
func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sess, err := h.service.Finalize(
		r.Context(),
		r.PathValue("id"),
		auth.UserID(r.Context()),
		session.Status(req.Status),
		session.Overrides{
			ElapsedSeconds: req.ElapsedSeconds,
			ActiveSeconds:  req.ActiveSeconds,
			IdleSeconds:    req.IdleSeconds,
			TabSwitches:    req.TabSwitches,
		},
	)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":    sess,
		"focusScore": sess.FocusScore,
	})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id"), auth.UserID(r.Context())); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not authorized to access this session")
	case errors.Is(err, session.ErrAlreadyFinalized):
		writeError(w, http.StatusConflict, "session already finalized")
	case errors.Is(err, session.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid status")
	case errors.Is(err, session.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, "invalid target minutes")
	default:
		h.logger.Error("session API error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
