package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"caresignal/internal/alert"
	id "caresignal/pkg/domain"
)

// InMemoryStore keeps alerts in process memory. Used in tests and
// single-node deployments without Postgres.
type InMemoryStore struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]*alert.Alert
	// open indexes the single OPEN alert per (subject, kind).
	open map[openKey]uuid.UUID
}

type openKey struct {
	subject id.SubjectID
	kind    alert.Kind
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		alerts: make(map[uuid.UUID]*alert.Alert),
		open:   make(map[openKey]uuid.UUID),
	}
}

func (s *InMemoryStore) Open(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := openKey{subject: a.SubjectID, kind: a.Kind}
	if _, exists := s.open[key]; exists {
		return ErrAlreadyOpen
	}
	s.alerts[a.ID] = copyAlert(a)
	s.open[key] = a.ID
	return nil
}

func (s *InMemoryStore) Resolve(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.alerts[a.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status == alert.StatusResolved {
		return nil
	}
	s.alerts[a.ID] = copyAlert(a)
	delete(s.open, openKey{subject: a.SubjectID, kind: a.Kind})
	return nil
}

func (s *InMemoryStore) GetOpen(_ context.Context, subjectID id.SubjectID, kind alert.Kind) (*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alertID, ok := s.open[openKey{subject: subjectID, kind: kind}]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAlert(s.alerts[alertID]), nil
}

func (s *InMemoryStore) ListOpen(_ context.Context, subjectID id.SubjectID) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*alert.Alert
	for key, alertID := range s.open {
		if key.subject == subjectID {
			out = append(out, copyAlert(s.alerts[alertID]))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	return out, nil
}

func (s *InMemoryStore) List(_ context.Context, subjectID id.SubjectID, limit int) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*alert.Alert
	for _, a := range s.alerts {
		if a.SubjectID == subjectID {
			out = append(out, copyAlert(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyAlert(a *alert.Alert) *alert.Alert {
	cp := *a
	if a.ResolvedAt != nil {
		resolvedAt := *a.ResolvedAt
		cp.ResolvedAt = &resolvedAt
	}
	return &cp
}
