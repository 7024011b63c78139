package store

import (
	"context"
	"sort"
	"sync"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
)

type slotKey struct {
	subject  id.SubjectID
	medicine id.MedicineID
}

// InMemoryStore keeps slots in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	slots map[slotKey]*models.ScheduleSlot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{slots: make(map[slotKey]*models.ScheduleSlot)}
}

func (s *InMemoryStore) Upsert(_ context.Context, slot *models.ScheduleSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *slot
	s.slots[slotKey{subject: slot.SubjectID, medicine: slot.MedicineID}] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, subjectID id.SubjectID, medicineID id.MedicineID) (*models.ScheduleSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[slotKey{subject: subjectID, medicine: medicineID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *slot
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context, subjectID id.SubjectID) ([]*models.ScheduleSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ScheduleSlot
	for key, slot := range s.slots {
		if key.subject == subjectID {
			cp := *slot
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeOfDay != out[j].TimeOfDay {
			return out[i].TimeOfDay < out[j].TimeOfDay
		}
		return out[i].MedicineID < out[j].MedicineID
	})
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, subjectID id.SubjectID, medicineID id.MedicineID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, slotKey{subject: subjectID, medicine: medicineID})
	return nil
}
