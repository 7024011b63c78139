package fanout

import (
	"context"
	"log/slog"
	"sync"

	id "caresignal/pkg/domain"
)

// Bus publishes evaluation events and hands out per-subject
// subscriptions.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, subjectID id.SubjectID) (*Subscription, error)
}

// SnapshotFunc produces the events describing a subject's current
// state. A new subscriber receives these before any live event so it
// never starts from a blind spot.
type SnapshotFunc func(ctx context.Context, subjectID id.SubjectID) ([]Event, error)

// Subscription is a per-subject event feed. Close it when done.
type Subscription struct {
	ch     chan Event
	cancel func()
	once   sync.Once

	// pending holds events published between registration and snapshot
	// delivery. While the subscription is gated the channel does not
	// exist yet. These fields are guarded by the hub mutex.
	pending []Event
	gated   bool
	dropped bool
}

func (s *Subscription) Events() <-chan Event { return s.ch }

func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

const subscriberBuffer = 64

// Hub is the in-process bus. Publish appends to each subscriber's
// buffered channel in publish order; a subscriber that falls more than
// subscriberBuffer events behind is dropped rather than stalling
// publishers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[id.SubjectID]map[*Subscription]struct{}
	snapshot    SnapshotFunc
	logger      *slog.Logger
	closed      bool
}

type HubOption func(*Hub)

func WithSnapshot(fn SnapshotFunc) HubOption {
	return func(h *Hub) {
		h.snapshot = fn
	}
}

func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscribers: make(map[id.SubjectID]map[*Subscription]struct{}),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Publish(ctx context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	for sub := range h.subscribers[event.SubjectID] {
		if sub.gated {
			if len(sub.pending) >= subscriberBuffer {
				h.logger.WarnContext(ctx, "dropping slow fanout subscriber",
					"subject_id", event.SubjectID.String(),
				)
				h.removeLocked(event.SubjectID, sub)
				sub.dropped = true
				continue
			}
			sub.pending = append(sub.pending, event)
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.logger.WarnContext(ctx, "dropping slow fanout subscriber",
				"subject_id", event.SubjectID.String(),
			)
			h.removeLocked(event.SubjectID, sub)
			close(sub.ch)
		}
	}
	return nil
}

// Subscribe registers the feed before it reads the snapshot, so an
// event published while the snapshot is being assembled is buffered and
// delivered right after it. An event can appear in both the snapshot
// and the buffer; consumers dedupe on event ID.
func (h *Hub) Subscribe(ctx context.Context, subjectID id.SubjectID) (*Subscription, error) {
	sub := &Subscription{gated: true}
	sub.cancel = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, live := h.subscribers[subjectID][sub]; live {
			h.removeLocked(subjectID, sub)
			if sub.ch != nil {
				close(sub.ch)
			}
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.ch = make(chan Event)
		close(sub.ch)
		return sub, nil
	}
	if h.subscribers[subjectID] == nil {
		h.subscribers[subjectID] = make(map[*Subscription]struct{})
	}
	h.subscribers[subjectID][sub] = struct{}{}
	h.mu.Unlock()

	var snapshot []Event
	if h.snapshot != nil {
		events, err := h.snapshot(ctx, subjectID)
		if err != nil {
			h.mu.Lock()
			if _, live := h.subscribers[subjectID][sub]; live {
				h.removeLocked(subjectID, sub)
			}
			h.mu.Unlock()
			return nil, err
		}
		snapshot = events
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.dropped {
		sub.ch = make(chan Event)
		close(sub.ch)
		return sub, nil
	}
	sub.ch = make(chan Event, subscriberBuffer+len(snapshot)+len(sub.pending))
	for _, event := range snapshot {
		event.Snapshot = true
		sub.ch <- event
	}
	for _, event := range sub.pending {
		sub.ch <- event
	}
	sub.pending = nil
	sub.gated = false
	return sub, nil
}

// Close drops every subscriber and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for subjectID, subs := range h.subscribers {
		for sub := range subs {
			sub.dropped = true
			if sub.ch != nil {
				close(sub.ch)
			}
		}
		delete(h.subscribers, subjectID)
	}
}

func (h *Hub) removeLocked(subjectID id.SubjectID, sub *Subscription) {
	delete(h.subscribers[subjectID], sub)
	if len(h.subscribers[subjectID]) == 0 {
		delete(h.subscribers, subjectID)
	}
}

var _ Bus = (*Hub)(nil)
