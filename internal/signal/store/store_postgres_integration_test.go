//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caresignal/internal/signal/models"
	"caresignal/internal/signal/store"
	id "caresignal/pkg/domain"
	"caresignal/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"location_pings", "verification_attempts", "attempt_quota",
		"containment_states", "adherence_counters")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAppendPingIsIdempotent() {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())
	ping := &models.LocationPing{
		EventID:    id.EventID(uuid.New()),
		SubjectID:  subject,
		Lat:        52.37,
		Lng:        4.89,
		ObservedAt: time.Now().UTC(),
	}

	s.Require().NoError(s.store.AppendPing(ctx, ping))
	s.Require().NoError(s.store.AppendPing(ctx, ping))

	pings, err := s.store.ListPings(ctx, subject, 10)
	s.Require().NoError(err)
	s.Len(pings, 1)
	s.Equal(ping.EventID, pings[0].EventID)
}

func (s *PostgresStoreSuite) TestContainmentVersionConflict() {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())

	state := models.NewContainmentState(subject)
	state.State = models.ContainmentInside
	state.LastEventID = id.EventID(uuid.New())
	state.LastEvaluatedAt = time.Now().UTC()
	s.Require().NoError(s.store.SaveContainment(ctx, state))

	stored, err := s.store.GetContainment(ctx, subject)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal(int64(1), stored.Version)

	// Two writers read version 1; the second save must lose.
	first := *stored
	first.State = models.ContainmentOutside
	s.Require().NoError(s.store.SaveContainment(ctx, &first))

	second := *stored
	second.State = models.ContainmentInside
	err = s.store.SaveContainment(ctx, &second)
	s.Require().ErrorIs(err, store.ErrVersionConflict)

	final, err := s.store.GetContainment(ctx, subject)
	s.Require().NoError(err)
	s.Equal(models.ContainmentOutside, final.State)
	s.Equal(int64(2), final.Version)
}

func (s *PostgresStoreSuite) TestCounterRoundTripWithNullFields() {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())
	medicine := id.MedicineID("med-a")

	counter := models.NewAdherenceCounter(subject, medicine)
	counter.ConsecutiveFailures = 3
	counter.LastEventID = id.EventID(uuid.New())
	counter.LastAttemptAt = time.Now().UTC()
	s.Require().NoError(s.store.SaveCounter(ctx, counter))

	stored, err := s.store.GetCounter(ctx, subject, medicine)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Equal(3, stored.ConsecutiveFailures)
	s.Nil(stored.LastSuccessAt)
	s.Nil(stored.NotifiedAt)

	notified := time.Now().UTC()
	stored.NotifiedAt = &notified
	s.Require().NoError(s.store.SaveCounter(ctx, stored))

	stored, err = s.store.GetCounter(ctx, subject, medicine)
	s.Require().NoError(err)
	s.Require().NotNil(stored.NotifiedAt)

	counters, err := s.store.ListCounters(ctx, subject)
	s.Require().NoError(err)
	s.Len(counters, 1)
}

func (s *PostgresStoreSuite) TestCountAttemptsScopedToDay() {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())
	medicine := id.MedicineID("med-a")
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		attempt := &models.VerificationAttempt{
			EventID:     id.EventID(uuid.New()),
			SubjectID:   subject,
			MedicineID:  medicine,
			AttemptDate: models.NewDayKey(now),
			Approved:    false,
			Reason:      "no_match",
			CreatedAt:   now,
		}
		s.Require().NoError(s.store.AppendAttempt(ctx, attempt, 0))
	}
	yesterday := &models.VerificationAttempt{
		EventID:     id.EventID(uuid.New()),
		SubjectID:   subject,
		MedicineID:  medicine,
		AttemptDate: models.NewDayKey(now.AddDate(0, 0, -1)),
		Approved:    true,
		CreatedAt:   now.AddDate(0, 0, -1),
	}
	s.Require().NoError(s.store.AppendAttempt(ctx, yesterday, 0))

	count, err := s.store.CountAttempts(ctx, subject, medicine, models.NewDayKey(now))
	s.Require().NoError(err)
	s.Equal(3, count)

	// Replays never inflate the day count.
	attempts, err := s.store.ListAttempts(ctx, subject, medicine, models.NewDayKey(now))
	s.Require().NoError(err)
	s.Len(attempts, 3)
}

// Concurrent appends contending for the last quota slots must admit
// exactly quota rows; the counter upsert's row lock decides the race.
func (s *PostgresStoreSuite) TestConcurrentAppendsRespectQuota() {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())
	medicine := id.MedicineID("med-a")
	now := time.Now().UTC()
	day := models.NewDayKey(now)
	const quota = 10
	const writers = 25

	var wg sync.WaitGroup
	var admitted, rejected atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt := &models.VerificationAttempt{
				EventID:     id.EventID(uuid.New()),
				SubjectID:   subject,
				MedicineID:  medicine,
				AttemptDate: day,
				Approved:    false,
				Reason:      "no_match",
				CreatedAt:   now,
			}
			err := s.store.AppendAttempt(ctx, attempt, quota)
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, store.ErrQuotaExceeded):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(quota), admitted.Load())
	s.Equal(int32(writers-quota), rejected.Load())

	count, err := s.store.CountAttempts(ctx, subject, medicine, day)
	s.Require().NoError(err)
	s.Equal(quota, count)
}
