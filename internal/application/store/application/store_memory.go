// Package application persists Application aggregates.
package application

import (
	"context"
	"sync"

	"licensure/internal/application/models"
	id "licensure/pkg/domain"
	"licensure/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded map store used in unit tests and dev mode.
// Execute holds the lock across validate and mutate, giving the same
// atomic validate-then-mutate guarantee the postgres store gets from
// SELECT ... FOR UPDATE.
type InMemory struct {
	mu   sync.RWMutex
	apps map[id.ApplicationID]*models.Application
}

func NewInMemory() *InMemory {
	return &InMemory{apps: make(map[id.ApplicationID]*models.Application)}
}

func (s *InMemory) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[app.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.apps[app.ID] = app.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return app.Clone(), nil
}

func (s *InMemory) ListByApplicant(_ context.Context, applicantID id.UserID) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Application
	for _, app := range s.apps {
		if app.ApplicantID == applicantID {
			out = append(out, app.Clone())
		}
	}
	return out, nil
}

// Execute atomically validates and mutates one application. The mutation is
// applied to a copy and only committed when validate passes, so a failed
// validation leaves the stored aggregate untouched.
func (s *InMemory) Execute(
	_ context.Context,
	appID id.ApplicationID,
	validate func(app *models.Application) error,
	mutate func(app *models.Application),
) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.apps[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := stored.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.apps[appID] = working
	return working.Clone(), nil
}
