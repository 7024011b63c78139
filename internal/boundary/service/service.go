// Package service exposes caregiver-facing boundary management.
package service

import (
	"context"
	"errors"
	"log/slog"

	boundarystore "caresignal/internal/boundary/store"
	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
	"caresignal/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store = boundarystore.Store

type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("boundary store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Replace validates and installs a new boundary for the subject,
// whole-record, replacing any previous definition.
func (s *Service) Replace(ctx context.Context, subjectID id.SubjectID, centerLat, centerLng, radiusMeters float64) (*models.Boundary, error) {
	boundary, err := models.NewBoundary(subjectID, centerLat, centerLng, radiusMeters, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Replace(ctx, boundary); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save boundary")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "boundary replaced",
			"subject_id", subjectID.String(),
			"radius_meters", radiusMeters,
		)
	}
	return boundary, nil
}

// Get returns the active boundary for a subject.
func (s *Service) Get(ctx context.Context, subjectID id.SubjectID) (*models.Boundary, error) {
	boundary, err := s.store.Get(ctx, subjectID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load boundary")
	}
	return boundary, nil
}

// Delete removes the subject's boundary. Subsequent pings evaluate to
// UNRESOLVED and never open alerts.
func (s *Service) Delete(ctx context.Context, subjectID id.SubjectID) error {
	if err := s.store.Delete(ctx, subjectID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete boundary")
	}
	return nil
}
