// Package item persists VerifiableItem records.
package item

import (
	"context"
	"sync"

	"licensure/internal/application/models"
	id "licensure/pkg/domain"
	"licensure/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded map store used in unit tests and dev mode.
type InMemory struct {
	mu    sync.RWMutex
	items map[id.ItemID]*models.VerifiableItem
}

func NewInMemory() *InMemory {
	return &InMemory{items: make(map[id.ItemID]*models.VerifiableItem)}
}

func (s *InMemory) Create(_ context.Context, item *models.VerifiableItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, itemID id.ItemID) (*models.VerifiableItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return item.Clone(), nil
}

func (s *InMemory) ListByApplication(_ context.Context, appID id.ApplicationID) ([]*models.VerifiableItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.VerifiableItem
	for _, item := range s.items {
		if item.ApplicationID == appID {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

// Execute atomically validates and mutates one item, mirroring the
// application store's Execute contract.
func (s *InMemory) Execute(
	_ context.Context,
	itemID id.ItemID,
	validate func(item *models.VerifiableItem) error,
	mutate func(item *models.VerifiableItem),
) (*models.VerifiableItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.items[itemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := stored.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.items[itemID] = working
	return working.Clone(), nil
}
