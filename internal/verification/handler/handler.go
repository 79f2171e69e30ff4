// Package handler exposes the verification ledger over HTTP.
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

// Service defines the ledger operations the handler needs.
type Service interface {
	VerifyItem(ctx context.Context, kind models.ItemKind, itemID id.ItemID, actor id.Actor, notes string) (*models.VerifiableItem, error)
}

// Handler handles verification endpoints.
type Handler struct {
	verification Service
	logger       *slog.Logger
}

func New(verification Service, logger *slog.Logger) *Handler {
	return &Handler{verification: verification, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/items/{kind}/{itemID}/verify", h.handleVerifyItem)
}

type verifyRequest struct {
	Notes string `json:"notes,omitempty"`
}

func (h *Handler) handleVerifyItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	kind, err := models.ParseItemKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req verifyRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	item, err := h.verification.VerifyItem(ctx, kind, itemID, actor, req.Notes)
	if err != nil {
		h.logger.WarnContext(ctx, "verification refused",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}
