package store

import (
	"context"
	"database/sql"
	"fmt"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
)

// PostgresStore persists boundaries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed boundary store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Replace(ctx context.Context, boundary *models.Boundary) error {
	query := `
		INSERT INTO boundaries (subject_id, center_lat, center_lng, radius_meters, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject_id) DO UPDATE SET
			center_lat = EXCLUDED.center_lat,
			center_lng = EXCLUDED.center_lng,
			radius_meters = EXCLUDED.radius_meters,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		boundary.SubjectID.String(), boundary.CenterLat, boundary.CenterLng,
		boundary.RadiusMeters, boundary.UpdatedAt)
	if err != nil {
		return fmt.Errorf("replace boundary: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, subjectID id.SubjectID) (*models.Boundary, error) {
	query := `
		SELECT subject_id, center_lat, center_lng, radius_meters, updated_at
		FROM boundaries
		WHERE subject_id = $1
	`
	var boundary models.Boundary
	var subject string
	err := s.db.QueryRowContext(ctx, query, subjectID.String()).
		Scan(&subject, &boundary.CenterLat, &boundary.CenterLng, &boundary.RadiusMeters, &boundary.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get boundary: %w", err)
	}
	if boundary.SubjectID, err = id.ParseSubjectID(subject); err != nil {
		return nil, fmt.Errorf("parse boundary subject id: %w", err)
	}
	return &boundary, nil
}

func (s *PostgresStore) Delete(ctx context.Context, subjectID id.SubjectID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM boundaries WHERE subject_id = $1`, subjectID.String())
	if err != nil {
		return fmt.Errorf("delete boundary: %w", err)
	}
	return nil
}
