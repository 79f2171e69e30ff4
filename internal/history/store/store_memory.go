// Package store persists the append-only verification history.
package store

import (
	"context"
	"sort"
	"sync"

	"licensure/internal/history/models"
	id "licensure/pkg/domain"
)

// InMemory keeps history entries per application. Append-only: entries are
// never edited or removed. Used in unit tests and dev mode.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.ApplicationID][]models.Entry
	seq     int64
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.ApplicationID][]models.Entry)}
}

// Append assigns the next sequence number and stores a copy of the entry.
func (s *InMemory) Append(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	entry.Seq = s.seq
	s.entries[entry.ApplicationID] = append(s.entries[entry.ApplicationID], *entry)
	return nil
}

// ListByApplication returns entries ordered by (CreatedAt, Seq) ascending.
func (s *InMemory) ListByApplication(_ context.Context, appID id.ApplicationID) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.Entry{}, s.entries[appID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CountByApplication returns the number of entries recorded for an application.
func (s *InMemory) CountByApplication(_ context.Context, appID id.ApplicationID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[appID]), nil
}
