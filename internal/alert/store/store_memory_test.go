package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caresignal/internal/alert"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

func TestInMemoryStore_OpenRejectsSecondOpenSameKind(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	subjectID := id.SubjectID(uuid.New())
	now := time.Now()

	first := alert.NewAlert(subjectID, alert.KindBoundary, "subject left boundary", now)
	require.NoError(t, store.Open(ctx, first))

	second := alert.NewAlert(subjectID, alert.KindBoundary, "subject left boundary", now.Add(time.Minute))
	err := store.Open(ctx, second)
	require.ErrorIs(t, err, ErrAlreadyOpen)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	// A different kind for the same subject is independent.
	adherence := alert.NewAlert(subjectID, alert.KindAdherence, "missed doses", now)
	require.NoError(t, store.Open(ctx, adherence))

	open, err := store.ListOpen(ctx, subjectID)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestInMemoryStore_ResolveReopensSlot(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	subjectID := id.SubjectID(uuid.New())
	now := time.Now()

	first := alert.NewAlert(subjectID, alert.KindBoundary, "subject left boundary", now)
	require.NoError(t, store.Open(ctx, first))

	first.Resolve(now.Add(10 * time.Minute))
	require.NoError(t, store.Resolve(ctx, first))

	_, err := store.GetOpen(ctx, subjectID, alert.KindBoundary)
	require.ErrorIs(t, err, ErrNotFound)

	// Resolving a second time is a no-op.
	require.NoError(t, store.Resolve(ctx, first))

	// The slot is free for a new episode.
	second := alert.NewAlert(subjectID, alert.KindBoundary, "subject left boundary", now.Add(time.Hour))
	require.NoError(t, store.Open(ctx, second))

	history, err := store.List(ctx, subjectID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, alert.StatusResolved, history[1].Status)
}

func TestInMemoryStore_GetOpenReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	subjectID := id.SubjectID(uuid.New())

	a := alert.NewAlert(subjectID, alert.KindAdherence, "missed doses", time.Now())
	require.NoError(t, store.Open(ctx, a))

	got, err := store.GetOpen(ctx, subjectID, alert.KindAdherence)
	require.NoError(t, err)
	got.Message = "mutated"

	again, err := store.GetOpen(ctx, subjectID, alert.KindAdherence)
	require.NoError(t, err)
	assert.Equal(t, "missed doses", again.Message)
}

func TestInMemoryStore_ListHonorsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	subjectID := id.SubjectID(uuid.New())
	base := time.Now()

	for i := 0; i < 3; i++ {
		a := alert.NewAlert(subjectID, alert.KindBoundary, "subject left boundary", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.Open(ctx, a))
		a.Resolve(base.Add(time.Duration(i)*time.Hour + 30*time.Minute))
		require.NoError(t, store.Resolve(ctx, a))
	}

	history, err := store.List(ctx, subjectID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].OpenedAt.After(history[1].OpenedAt))
}
