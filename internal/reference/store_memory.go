package reference

import (
	"context"
	"sync"

	id "caresignal/pkg/domain"
)

type refKey struct {
	subject  id.SubjectID
	medicine id.MedicineID
}

// InMemoryStore keeps reference sets in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	refs map[refKey][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{refs: make(map[refKey][]string)}
}

func (s *InMemoryStore) Replace(_ context.Context, subjectID id.SubjectID, medicineID id.MedicineID, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]string, len(urls))
	copy(cp, urls)
	s.refs[refKey{subject: subjectID, medicine: medicineID}] = cp
	return nil
}

func (s *InMemoryStore) References(_ context.Context, subjectID id.SubjectID, medicineID id.MedicineID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := s.refs[refKey{subject: subjectID, medicine: medicineID}]
	cp := make([]string, len(urls))
	copy(cp, urls)
	return cp, nil
}

func (s *InMemoryStore) Delete(_ context.Context, subjectID id.SubjectID, medicineID id.MedicineID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, refKey{subject: subjectID, medicine: medicineID})
	return nil
}
