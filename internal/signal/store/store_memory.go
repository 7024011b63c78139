package store

import (
	"context"
	"sync"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
)

type counterKey struct {
	subject  id.SubjectID
	medicine id.MedicineID
}

type attemptBucket struct {
	subject  id.SubjectID
	medicine id.MedicineID
	day      models.DayKey
}

// InMemoryStore implements Store for tests and single-process deployments.
// All accessors return copies so callers can never mutate shared state
// outside the compare-and-swap protocol.
type InMemoryStore struct {
	mu            sync.RWMutex
	pings         map[id.SubjectID][]*models.LocationPing
	pingEvents    map[id.EventID]struct{}
	attempts      map[attemptBucket][]*models.VerificationAttempt
	attemptEvents map[id.EventID]struct{}
	containment   map[id.SubjectID]*models.ContainmentState
	counters      map[counterKey]*models.AdherenceCounter
}

// NewInMemoryStore creates an empty in-memory signal store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		pings:         make(map[id.SubjectID][]*models.LocationPing),
		pingEvents:    make(map[id.EventID]struct{}),
		attempts:      make(map[attemptBucket][]*models.VerificationAttempt),
		attemptEvents: make(map[id.EventID]struct{}),
		containment:   make(map[id.SubjectID]*models.ContainmentState),
		counters:      make(map[counterKey]*models.AdherenceCounter),
	}
}

func (s *InMemoryStore) AppendPing(_ context.Context, ping *models.LocationPing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.pingEvents[ping.EventID]; seen {
		return nil
	}
	s.pingEvents[ping.EventID] = struct{}{}
	copied := *ping
	s.pings[ping.SubjectID] = append(s.pings[ping.SubjectID], &copied)
	return nil
}

func (s *InMemoryStore) ListPings(_ context.Context, subjectID id.SubjectID, limit int) ([]*models.LocationPing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.pings[subjectID]
	if limit <= 0 || limit > len(log) {
		limit = len(log)
	}
	out := make([]*models.LocationPing, 0, limit)
	for i := len(log) - 1; i >= len(log)-limit; i-- {
		copied := *log[i]
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemoryStore) AppendAttempt(_ context.Context, attempt *models.VerificationAttempt, quota int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.attemptEvents[attempt.EventID]; seen {
		return nil
	}
	bucket := attemptBucket{attempt.SubjectID, attempt.MedicineID, attempt.AttemptDate}
	if quota > 0 && len(s.attempts[bucket]) >= quota {
		return ErrQuotaExceeded
	}
	s.attemptEvents[attempt.EventID] = struct{}{}
	copied := *attempt
	s.attempts[bucket] = append(s.attempts[bucket], &copied)
	return nil
}

func (s *InMemoryStore) CountAttempts(_ context.Context, subjectID id.SubjectID, medicineID id.MedicineID, day models.DayKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts[attemptBucket{subjectID, medicineID, day}]), nil
}

func (s *InMemoryStore) ListAttempts(_ context.Context, subjectID id.SubjectID, medicineID id.MedicineID, day models.DayKey) ([]*models.VerificationAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.attempts[attemptBucket{subjectID, medicineID, day}]
	out := make([]*models.VerificationAttempt, 0, len(bucket))
	for _, attempt := range bucket {
		copied := *attempt
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemoryStore) GetContainment(_ context.Context, subjectID id.SubjectID) (*models.ContainmentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.containment[subjectID]
	if !exists {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *InMemoryStore) SaveContainment(_ context.Context, state *models.ContainmentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.containment[state.SubjectID]
	if exists && current.Version != state.Version {
		return ErrVersionConflict
	}
	if !exists && state.Version != 0 {
		return ErrVersionConflict
	}
	copied := *state
	copied.Version++
	s.containment[state.SubjectID] = &copied
	return nil
}

func (s *InMemoryStore) GetCounter(_ context.Context, subjectID id.SubjectID, medicineID id.MedicineID) (*models.AdherenceCounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counter, exists := s.counters[counterKey{subjectID, medicineID}]
	if !exists {
		return nil, nil
	}
	copied := *counter
	return &copied, nil
}

func (s *InMemoryStore) SaveCounter(_ context.Context, counter *models.AdherenceCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey{counter.SubjectID, counter.MedicineID}
	current, exists := s.counters[key]
	if exists && current.Version != counter.Version {
		return ErrVersionConflict
	}
	if !exists && counter.Version != 0 {
		return ErrVersionConflict
	}
	copied := *counter
	copied.Version++
	s.counters[key] = &copied
	return nil
}

func (s *InMemoryStore) ListCounters(_ context.Context, subjectID id.SubjectID) ([]*models.AdherenceCounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AdherenceCounter
	for key, counter := range s.counters {
		if key.subject == subjectID {
			copied := *counter
			out = append(out, &copied)
		}
	}
	return out, nil
}
