package fanout

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	platformredis "caresignal/internal/platform/redis"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

const channelPrefix = "caresignal:events:"

// RedisBus bridges events through Redis pub/sub so watchers connected
// to any node see the same feed. Events round-trip through Redis even
// for local subscribers, which keeps per-subject ordering identical
// across nodes.
type RedisBus struct {
	client *platformredis.Client
	local  *Hub
	logger *slog.Logger
}

func NewRedisBus(client *platformredis.Client, local *Hub, logger *slog.Logger) (*RedisBus, error) {
	if client == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "redis client is required")
	}
	if local == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "local hub is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{client: client, local: local, logger: logger}, nil
}

func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode fanout event")
	}
	if err := b.client.Publish(ctx, channelPrefix+event.SubjectID.String(), payload).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to publish fanout event")
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, subjectID id.SubjectID) (*Subscription, error) {
	return b.local.Subscribe(ctx, subjectID)
}

// Run pumps Redis messages into the local hub until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(ctx, msg)
		}
	}
}

func (b *RedisBus) deliver(ctx context.Context, msg *redis.Message) {
	var event Event
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		b.logger.WarnContext(ctx, "discarding malformed fanout message",
			"channel", msg.Channel,
			"error", err,
		)
		return
	}
	if err := b.local.Publish(ctx, event); err != nil {
		b.logger.WarnContext(ctx, "failed to deliver fanout message locally", "error", err)
	}
}

var _ Bus = (*RedisBus)(nil)
