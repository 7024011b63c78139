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

	"caresignal/internal/alert"
	"caresignal/internal/alert/store"
	id "caresignal/pkg/domain"
	"caresignal/pkg/testutil/containers"
)

type PostgresAlertSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresAlertSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAlertSuite))
}

func (s *PostgresAlertSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresAlertSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "alerts")
	s.Require().NoError(err)
}

// The partial unique index must admit exactly one OPEN alert per
// (subject, kind) no matter how many writers race the insert.
func (s *PostgresAlertSuite) TestConcurrentOpensAdmitOne() {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())
	const writers = 20

	var wg sync.WaitGroup
	var opened, rejected atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := alert.NewAlert(subject, alert.KindBoundary, "subject left the safe boundary", time.Now())
			err := s.store.Open(ctx, a)
			switch {
			case err == nil:
				opened.Add(1)
			case errors.Is(err, store.ErrAlreadyOpen):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), opened.Load())
	s.Equal(int32(writers-1), rejected.Load())

	open, err := s.store.ListOpen(ctx, subject)
	s.Require().NoError(err)
	s.Len(open, 1)
}

func (s *PostgresAlertSuite) TestResolveFreesTheSlot() {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())

	first := alert.NewAlert(subject, alert.KindAdherence, "verification failing repeatedly for medicine med-a", time.Now())
	s.Require().NoError(s.store.Open(ctx, first))

	first.Resolve(time.Now())
	s.Require().NoError(s.store.Resolve(ctx, first))

	// Resolving twice stays a no-op.
	s.Require().NoError(s.store.Resolve(ctx, first))

	second := alert.NewAlert(subject, alert.KindAdherence, "verification failing repeatedly for medicine med-a", time.Now())
	s.Require().NoError(s.store.Open(ctx, second))

	history, err := s.store.List(ctx, subject, 10)
	s.Require().NoError(err)
	s.Len(history, 2)
}

func (s *PostgresAlertSuite) TestGetOpenByKind() {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())

	a := alert.NewAlert(subject, alert.KindBoundary, "subject left the safe boundary", time.Now())
	s.Require().NoError(s.store.Open(ctx, a))

	got, err := s.store.GetOpen(ctx, subject, alert.KindBoundary)
	s.Require().NoError(err)
	s.Equal(a.ID, got.ID)

	_, err = s.store.GetOpen(ctx, subject, alert.KindAdherence)
	s.Require().ErrorIs(err, store.ErrNotFound)
}
