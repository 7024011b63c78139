package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"caresignal/internal/alert"
	id "caresignal/pkg/domain"
)

// PostgresStore persists alerts in the alerts table. The uniqueness of
// OPEN alerts per (subject, kind) is enforced by a partial unique
// index, so concurrent openers race safely at the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Open(ctx context.Context, a *alert.Alert) error {
	const query = `
		INSERT INTO alerts (id, subject_id, kind, status, message, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject_id, kind) WHERE status = 'OPEN' DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		a.ID, a.SubjectID.String(), string(a.Kind), string(a.Status), a.Message, a.OpenedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert alert rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyOpen
	}
	return nil
}

func (s *PostgresStore) Resolve(ctx context.Context, a *alert.Alert) error {
	const query = `
		UPDATE alerts
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'OPEN'`

	if _, err := s.db.ExecContext(ctx, query, a.ID, string(a.Status), a.ResolvedAt); err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOpen(ctx context.Context, subjectID id.SubjectID, kind alert.Kind) (*alert.Alert, error) {
	const query = `
		SELECT id, subject_id, kind, status, message, opened_at, resolved_at
		FROM alerts
		WHERE subject_id = $1 AND kind = $2 AND status = 'OPEN'`

	a, err := scanAlert(s.db.QueryRowContext(ctx, query, subjectID.String(), string(kind)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get open alert: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListOpen(ctx context.Context, subjectID id.SubjectID) ([]*alert.Alert, error) {
	const query = `
		SELECT id, subject_id, kind, status, message, opened_at, resolved_at
		FROM alerts
		WHERE subject_id = $1 AND status = 'OPEN'
		ORDER BY opened_at DESC`

	return s.queryAlerts(ctx, query, subjectID.String())
}

func (s *PostgresStore) List(ctx context.Context, subjectID id.SubjectID, limit int) ([]*alert.Alert, error) {
	const query = `
		SELECT id, subject_id, kind, status, message, opened_at, resolved_at
		FROM alerts
		WHERE subject_id = $1
		ORDER BY opened_at DESC
		LIMIT $2`

	return s.queryAlerts(ctx, query, subjectID.String(), limit)
}

func (s *PostgresStore) queryAlerts(ctx context.Context, query string, args ...any) ([]*alert.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	var (
		a          alert.Alert
		subjectRaw string
		kindRaw    string
		statusRaw  string
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&a.ID, &subjectRaw, &kindRaw, &statusRaw, &a.Message, &a.OpenedAt, &resolvedAt); err != nil {
		return nil, err
	}
	subjectID, err := id.ParseSubjectID(subjectRaw)
	if err != nil {
		return nil, err
	}
	a.SubjectID = subjectID
	a.Kind = alert.Kind(kindRaw)
	a.Status = alert.Status(statusRaw)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return &a, nil
}
