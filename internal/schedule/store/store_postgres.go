package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
)

// PostgresStore persists slots in the schedule_slots table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, slot *models.ScheduleSlot) error {
	const query = `
		INSERT INTO schedule_slots (subject_id, medicine_id, time_of_day, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject_id, medicine_id) DO UPDATE
		SET time_of_day = EXCLUDED.time_of_day, enabled = EXCLUDED.enabled`

	if _, err := s.db.ExecContext(ctx, query,
		slot.SubjectID.String(), slot.MedicineID.String(), slot.TimeOfDay, slot.Enabled); err != nil {
		return fmt.Errorf("upsert schedule slot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) (*models.ScheduleSlot, error) {
	const query = `
		SELECT subject_id, medicine_id, time_of_day, enabled
		FROM schedule_slots
		WHERE subject_id = $1 AND medicine_id = $2`

	slot, err := scanSlot(s.db.QueryRowContext(ctx, query, subjectID.String(), medicineID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get schedule slot: %w", err)
	}
	return slot, nil
}

func (s *PostgresStore) List(ctx context.Context, subjectID id.SubjectID) ([]*models.ScheduleSlot, error) {
	const query = `
		SELECT subject_id, medicine_id, time_of_day, enabled
		FROM schedule_slots
		WHERE subject_id = $1
		ORDER BY time_of_day, medicine_id`

	rows, err := s.db.QueryContext(ctx, query, subjectID.String())
	if err != nil {
		return nil, fmt.Errorf("list schedule slots: %w", err)
	}
	defer rows.Close()

	var out []*models.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule slot: %w", err)
		}
		out = append(out, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule slots: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) error {
	const query = `DELETE FROM schedule_slots WHERE subject_id = $1 AND medicine_id = $2`
	if _, err := s.db.ExecContext(ctx, query, subjectID.String(), medicineID.String()); err != nil {
		return fmt.Errorf("delete schedule slot: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*models.ScheduleSlot, error) {
	var (
		slot        models.ScheduleSlot
		subjectRaw  string
		medicineRaw string
	)
	if err := row.Scan(&subjectRaw, &medicineRaw, &slot.TimeOfDay, &slot.Enabled); err != nil {
		return nil, err
	}
	subjectID, err := id.ParseSubjectID(subjectRaw)
	if err != nil {
		return nil, err
	}
	medicineID, err := id.ParseMedicineID(medicineRaw)
	if err != nil {
		return nil, err
	}
	slot.SubjectID = subjectID
	slot.MedicineID = medicineID
	return &slot, nil
}
