package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "caresignal/pkg/domain"
)

func TestHub_PublishPreservesOrderPerSubject(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()
	subject := id.SubjectID(uuid.New())

	sub, err := hub.Subscribe(ctx, subject)
	require.NoError(t, err)
	defer sub.Close()

	types := []EventType{EventContainmentChanged, EventAlertOpened, EventAlertResolved}
	for _, eventType := range types {
		event, err := NewEvent(eventType, subject, time.Now(), nil)
		require.NoError(t, err)
		require.NoError(t, hub.Publish(ctx, event))
	}

	for _, want := range types {
		select {
		case got := <-sub.Events():
			assert.Equal(t, want, got.Type)
			assert.False(t, got.Snapshot)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestHub_SubscribersAreScopedToSubject(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()

	watched := id.SubjectID(uuid.New())
	other := id.SubjectID(uuid.New())

	sub, err := hub.Subscribe(ctx, watched)
	require.NoError(t, err)
	defer sub.Close()

	event, err := NewEvent(EventAlertOpened, other, time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, event))

	select {
	case got := <-sub.Events():
		t.Fatalf("unexpected event for other subject: %v", got.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SnapshotDeliveredBeforeLiveEvents(t *testing.T) {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())

	snapshotEvent, err := NewEvent(EventContainmentChanged, subject, time.Now(), map[string]string{"containment": "OUTSIDE"})
	require.NoError(t, err)

	hub := NewHub(WithSnapshot(func(context.Context, id.SubjectID) ([]Event, error) {
		return []Event{snapshotEvent}, nil
	}))
	defer hub.Close()

	sub, err := hub.Subscribe(ctx, subject)
	require.NoError(t, err)
	defer sub.Close()

	live, err := NewEvent(EventAlertOpened, subject, time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, live))

	first := <-sub.Events()
	assert.Equal(t, EventContainmentChanged, first.Type)
	assert.True(t, first.Snapshot)

	second := <-sub.Events()
	assert.Equal(t, EventAlertOpened, second.Type)
	assert.False(t, second.Snapshot)
}

func TestHub_EventDuringSnapshotIsNotLost(t *testing.T) {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())

	snapshotEvent, err := NewEvent(EventContainmentChanged, subject, time.Now(), map[string]string{"containment": "INSIDE"})
	require.NoError(t, err)
	live, err := NewEvent(EventAlertOpened, subject, time.Now(), nil)
	require.NoError(t, err)

	// The snapshot function publishes while it runs, landing an event
	// in the window between registration and snapshot delivery.
	var hub *Hub
	hub = NewHub(WithSnapshot(func(ctx context.Context, _ id.SubjectID) ([]Event, error) {
		require.NoError(t, hub.Publish(ctx, live))
		return []Event{snapshotEvent}, nil
	}))
	defer hub.Close()

	sub, err := hub.Subscribe(ctx, subject)
	require.NoError(t, err)
	defer sub.Close()

	first := <-sub.Events()
	assert.Equal(t, snapshotEvent.ID, first.ID)
	assert.True(t, first.Snapshot)

	select {
	case second := <-sub.Events():
		assert.Equal(t, live.ID, second.ID)
		assert.False(t, second.Snapshot)
	case <-time.After(time.Second):
		t.Fatal("event published during snapshot was lost")
	}
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()
	subject := id.SubjectID(uuid.New())

	sub, err := hub.Subscribe(ctx, subject)
	require.NoError(t, err)

	// Never drain; overflow the buffer.
	for i := 0; i < subscriberBuffer+1; i++ {
		event, err := NewEvent(EventAttemptRecorded, subject, time.Now(), nil)
		require.NoError(t, err)
		require.NoError(t, hub.Publish(ctx, event))
	}

	drained := 0
	for range sub.Events() {
		drained++
	}
	assert.Equal(t, subscriberBuffer, drained)
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	subject := id.SubjectID(uuid.New())

	sub, err := hub.Subscribe(ctx, subject)
	require.NoError(t, err)

	hub.Close()

	_, open := <-sub.Events()
	assert.False(t, open)
}
