// Package service manages the caregiver-authored verification schedule.
package service

import (
	"context"
	"errors"
	"log/slog"

	schedulestore "caresignal/internal/schedule/store"
	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

type Service struct {
	store  schedulestore.Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store schedulestore.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("schedule store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Upsert validates and installs a slot for (subject, medicine).
func (s *Service) Upsert(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID, timeOfDay string, enabled bool) (*models.ScheduleSlot, error) {
	slot, err := models.NewScheduleSlot(subjectID, medicineID, timeOfDay, enabled)
	if err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, slot); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save schedule slot")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "schedule slot saved",
			"subject_id", subjectID.String(),
			"medicine_id", medicineID.String(),
			"enabled", enabled,
		)
	}
	return slot, nil
}

// List returns the subject's slots ordered by time of day.
func (s *Service) List(ctx context.Context, subjectID id.SubjectID) ([]*models.ScheduleSlot, error) {
	slots, err := s.store.List(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load schedule slots")
	}
	return slots, nil
}

// Delete removes a slot. Missing slots are a no-op.
func (s *Service) Delete(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) error {
	if err := s.store.Delete(ctx, subjectID, medicineID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete schedule slot")
	}
	return nil
}
