// Package handler exposes the application lifecycle over HTTP. Handlers
// delegate every rule to the service; transport concerns only.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"licensure/internal/application/models"
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
	"licensure/pkg/platform/httputil"
	"licensure/pkg/requestcontext"
)

// Service defines the lifecycle operations the handler needs.
type Service interface {
	Create(ctx context.Context, applicantID id.UserID) (*models.Application, error)
	Get(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	ListByApplicant(ctx context.Context, applicantID id.UserID) ([]*models.Application, error)
	AttachItem(ctx context.Context, appID id.ApplicationID, kind models.ItemKind, fileRef string, actor id.Actor) (*models.VerifiableItem, error)
	Transition(ctx context.Context, appID id.ApplicationID, target models.Status, actor id.Actor, reason string) (*models.Application, error)
}

// Handler handles application lifecycle endpoints.
type Handler struct {
	applications Service
	logger       *slog.Logger
}

func New(applications Service, logger *slog.Logger) *Handler {
	return &Handler{applications: applications, logger: logger}
}

// Register mounts the lifecycle routes. The router is expected to already
// carry the auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/applications", h.handleCreate)
	r.Get("/applications", h.handleList)
	r.Get("/applications/{applicationID}", h.handleGet)
	r.Post("/applications/{applicationID}/transition", h.handleTransition)
	r.Post("/applications/{applicationID}/items", h.handleAttachItem)
}

type createRequest struct {
	// ApplicantID lets an admin open an application on someone's behalf.
	// Applicants always open their own.
	ApplicantID string `json:"applicant_id,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	var req createRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	applicantID := actor.ID
	if req.ApplicantID != "" {
		if actor.Role != id.RoleAdmin {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only admins may open applications for other users"))
			return
		}
		parsed, err := id.ParseUserID(req.ApplicantID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		applicantID = parsed
	}

	app, err := h.applications.Create(ctx, applicantID)
	if err != nil {
		h.logError(ctx, "failed to create application", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	applicantID := actor.ID
	if raw := r.URL.Query().Get("applicant_id"); raw != "" {
		if actor.Role == id.RoleApplicant {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "applicants may only list their own applications"))
			return
		}
		parsed, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		applicantID = parsed
	}

	apps, err := h.applications.ListByApplicant(ctx, applicantID)
	if err != nil {
		h.logError(ctx, "failed to list applications", err)
		httputil.WriteError(w, err)
		return
	}
	if apps == nil {
		apps = []*models.Application{}
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.applications.Get(ctx, appID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if actor.Role == id.RoleApplicant && actor.ID != app.ApplicantID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "applicants may only read their own applications"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

type transitionRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	target, err := models.ParseStatus(req.Target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.applications.Transition(ctx, appID, target, actor, req.Reason)
	if err != nil {
		h.logError(ctx, "transition refused", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

type attachItemRequest struct {
	Kind    string `json:"kind"`
	FileRef string `json:"file_ref,omitempty"`
}

func (h *Handler) handleAttachItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req attachItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	kind, err := models.ParseItemKind(req.Kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	item, err := h.applications.AttachItem(ctx, appID, kind, req.FileRef, actor)
	if err != nil {
		h.logError(ctx, "failed to attach item", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
}
