// Package service exposes the audit trail: an append-only, queryable history
// per application, merging state-machine transitions and item verifications
// into one causally ordered sequence.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	appmodels "licensure/internal/application/models"
	"licensure/internal/history/models"
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
	"licensure/pkg/platform/sentinel"
	"licensure/pkg/requestcontext"
)

// Store is the append-only persistence contract for history entries.
type Store interface {
	Append(ctx context.Context, entry *models.Entry) error
	ListByApplication(ctx context.Context, appID id.ApplicationID) ([]models.Entry, error)
}

// ApplicationReader resolves applications so appends against unknown
// applications can be refused.
type ApplicationReader interface {
	FindByID(ctx context.Context, appID id.ApplicationID) (*appmodels.Application, error)
}

// Service records and reads audit history. Transition and verification
// appends happen inside the owning service's transaction and bypass this
// type; Service covers the standalone operations (comments, reads).
type Service struct {
	entries Store
	apps    ApplicationReader
}

func New(entries Store, apps ApplicationReader) *Service {
	return &Service{entries: entries, apps: apps}
}

// Comment records a free-standing reviewer comment against an application.
// Fails with NotFound when the application is unknown.
func (s *Service) Comment(ctx context.Context, appID id.ApplicationID, actor id.Actor, notes string) (*models.Entry, error) {
	if !actor.CanVerify() {
		return nil, dErrors.New(dErrors.CodeForbidden, "role "+string(actor.Role)+" may not comment on applications")
	}
	if notes == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "comment cannot be empty")
	}
	if _, err := s.loadApplication(ctx, appID); err != nil {
		return nil, err
	}

	entry := &models.Entry{
		ID:            uuid.New(),
		ApplicationID: appID,
		ActorID:       actor.ID,
		Action:        models.ActionComment,
		EntityType:    models.EntityApplication,
		EntityID:      appID.String(),
		Notes:         notes,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.entries.Append(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append history entry")
	}
	return entry, nil
}

// List returns the application's full history ordered by (created_at, seq)
// ascending. Callers re-reading get the same prefix plus any new entries;
// entries themselves never change. Applicants may only read their own
// application's history.
func (s *Service) List(ctx context.Context, appID id.ApplicationID, actor id.Actor) ([]models.Entry, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if actor.Role == id.RoleApplicant && actor.ID != app.ApplicantID {
		return nil, dErrors.New(dErrors.CodeForbidden, "applicants may only read their own history")
	}
	entries, err := s.entries.ListByApplication(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list history")
	}
	return entries, nil
}

func (s *Service) loadApplication(ctx context.Context, appID id.ApplicationID) (*appmodels.Application, error) {
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	return app, nil
}
