// Package alertlog publishes alert transitions to Kafka as an
// append-only journal for downstream notification and audit consumers.
package alertlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"caresignal/internal/alert"
	"caresignal/internal/platform/config"
	dErrors "caresignal/pkg/domain-errors"
)

// entry is the journal record shape on the wire. Records are keyed by
// subject id so a partition preserves per-subject transition order.
type entry struct {
	AlertID    string     `json:"alertId"`
	SubjectID  string     `json:"subjectId"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	OpenedAt   time.Time  `json:"openedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// Journal writes alert transitions to a Kafka topic.
type Journal struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects a journal publisher. Returns nil when no brokers are
// configured, in which case transitions are simply not journaled.
func New(cfg config.Kafka, logger *slog.Logger) (*Journal, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to connect kafka journal")
	}
	return &Journal{client: client, topic: cfg.Topic, logger: logger}, nil
}

// Record appends one alert transition to the journal.
func (j *Journal) Record(ctx context.Context, a *alert.Alert) error {
	payload, err := json.Marshal(entry{
		AlertID:    a.ID.String(),
		SubjectID:  a.SubjectID.String(),
		Kind:       string(a.Kind),
		Status:     string(a.Status),
		Message:    a.Message,
		OpenedAt:   a.OpenedAt,
		ResolvedAt: a.ResolvedAt,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode journal entry")
	}

	record := &kgo.Record{
		Key:   []byte(a.SubjectID.String()),
		Value: payload,
	}
	if err := j.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to produce journal entry")
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (j *Journal) Close() {
	j.client.Close()
}
