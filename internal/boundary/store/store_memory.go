package store

import (
	"context"
	"sync"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
)

// InMemoryStore implements Store for tests and single-process deployments.
type InMemoryStore struct {
	mu         sync.RWMutex
	boundaries map[id.SubjectID]*models.Boundary
}

// NewInMemoryStore creates an empty in-memory boundary store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{boundaries: make(map[id.SubjectID]*models.Boundary)}
}

func (s *InMemoryStore) Replace(_ context.Context, boundary *models.Boundary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *boundary
	s.boundaries[boundary.SubjectID] = &copied
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, subjectID id.SubjectID) (*models.Boundary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	boundary, exists := s.boundaries[subjectID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *boundary
	return &copied, nil
}

func (s *InMemoryStore) Delete(_ context.Context, subjectID id.SubjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boundaries, subjectID)
	return nil
}
