package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
)

func TestPostgresStore_SaveContainment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)
	ctx := context.Background()

	subject := id.SubjectID(uuid.New())
	state := models.NewContainmentState(subject)
	state.State = models.ContainmentInside
	state.LastEventID = id.NewEventID()
	state.LastEvaluatedAt = time.Now()

	t.Run("fresh row inserts with version 1", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO containment_states").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.SaveContainment(ctx, state))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost insert race surfaces a version conflict", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO containment_states").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.SaveContainment(ctx, state)
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("guarded update with current version succeeds", func(t *testing.T) {
		versioned := *state
		versioned.Version = 3
		mock.ExpectExec("UPDATE containment_states").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.SaveContainment(ctx, &versioned))
	})

	t.Run("stale version update affects zero rows and conflicts", func(t *testing.T) {
		versioned := *state
		versioned.Version = 2
		mock.ExpectExec("UPDATE containment_states").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.SaveContainment(ctx, &versioned)
		assert.ErrorIs(t, err, ErrVersionConflict)
	})
}

func TestPostgresStore_GetContainment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)
	ctx := context.Background()

	subject := id.SubjectID(uuid.New())

	t.Run("missing row reads as nil", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM containment_states").
			WillReturnRows(sqlmock.NewRows([]string{"subject_id", "state", "last_event_id", "last_evaluated_at", "version"}))

		state, err := store.GetContainment(ctx, subject)
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("existing row round-trips", func(t *testing.T) {
		evaluatedAt := time.Now().UTC()
		eventID := id.NewEventID()
		mock.ExpectQuery("SELECT (.+) FROM containment_states").
			WillReturnRows(sqlmock.NewRows([]string{"subject_id", "state", "last_event_id", "last_evaluated_at", "version"}).
				AddRow(subject.String(), "OUTSIDE", eventID.String(), evaluatedAt, int64(4)))

		state, err := store.GetContainment(ctx, subject)
		require.NoError(t, err)
		assert.Equal(t, models.ContainmentOutside, state.State)
		assert.Equal(t, int64(4), state.Version)
		assert.Equal(t, eventID, state.LastEventID)
	})
}

func TestPostgresStore_CountAttempts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)
	ctx := context.Background()

	subject := id.SubjectID(uuid.New())

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(subject.String(), "med-a", "2025-03-09").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.CountAttempts(ctx, subject, "med-a", models.DayKey("2025-03-09"))
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendAttempt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)
	ctx := context.Background()

	attempt := &models.VerificationAttempt{
		EventID:     id.NewEventID(),
		SubjectID:   id.SubjectID(uuid.New()),
		MedicineID:  "med-a",
		AttemptDate: models.DayKey("2025-03-09"),
		CreatedAt:   time.Now(),
	}

	t.Run("fresh attempt inserts and reserves a slot", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO verification_attempts").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO attempt_quota").
			WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(4))
		mock.ExpectCommit()

		require.NoError(t, store.AppendAttempt(ctx, attempt, 10))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full bucket rejects and rolls the insert back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO verification_attempts").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO attempt_quota").
			WillReturnRows(sqlmock.NewRows([]string{"attempts"}))
		mock.ExpectRollback()

		err := store.AppendAttempt(ctx, attempt, 10)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replayed event commits without touching the counter", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO verification_attempts").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		require.NoError(t, store.AppendAttempt(ctx, attempt, 10))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_AppendPing_DuplicateIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)
	ctx := context.Background()

	ping, err := models.NewLocationPing(id.NewEventID(), id.SubjectID(uuid.New()), 1, 2, time.Now())
	require.NoError(t, err)

	// ON CONFLICT DO NOTHING: zero rows affected is still success.
	mock.ExpectExec("INSERT INTO location_pings").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.AppendPing(ctx, ping))
}
