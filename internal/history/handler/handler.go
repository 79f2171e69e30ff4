// Package handler exposes the audit trail over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"licensure/internal/history/models"
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
	"licensure/pkg/platform/httputil"
	"licensure/pkg/requestcontext"
)

// Service defines the audit-trail operations the handler needs.
type Service interface {
	List(ctx context.Context, appID id.ApplicationID, actor id.Actor) ([]models.Entry, error)
	Comment(ctx context.Context, appID id.ApplicationID, actor id.Actor, notes string) (*models.Entry, error)
}

// Handler handles history endpoints.
type Handler struct {
	history Service
	logger  *slog.Logger
}

func New(history Service, logger *slog.Logger) *Handler {
	return &Handler{history: history, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/applications/{applicationID}/history", h.handleList)
	r.Post("/applications/{applicationID}/comments", h.handleComment)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.history.List(ctx, appID, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

type commentRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	entry, err := h.history.Comment(ctx, appID, actor, req.Notes)
	if err != nil {
		h.logger.WarnContext(ctx, "comment refused",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}
