package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
)

// PostgresStore persists signal logs and derived state in PostgreSQL.
// Raw logs rely on ON CONFLICT DO NOTHING for event-id idempotence; derived
// rows use a guarded UPDATE on the version column for compare-and-swap.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed signal store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AppendPing(ctx context.Context, ping *models.LocationPing) error {
	query := `
		INSERT INTO location_pings (event_id, subject_id, lat, lng, observed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		ping.EventID.String(), ping.SubjectID.String(), ping.Lat, ping.Lng, ping.ObservedAt)
	if err != nil {
		return fmt.Errorf("append ping: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPings(ctx context.Context, subjectID id.SubjectID, limit int) ([]*models.LocationPing, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, subject_id, lat, lng, observed_at
		FROM location_pings
		WHERE subject_id = $1
		ORDER BY observed_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, subjectID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list pings: %w", err)
	}
	defer rows.Close()

	var out []*models.LocationPing
	for rows.Next() {
		var ping models.LocationPing
		var eventID, subject string
		if err := rows.Scan(&eventID, &subject, &ping.Lat, &ping.Lng, &ping.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		if ping.EventID, err = id.ParseEventID(eventID); err != nil {
			return nil, fmt.Errorf("parse ping event id: %w", err)
		}
		if ping.SubjectID, err = id.ParseSubjectID(subject); err != nil {
			return nil, fmt.Errorf("parse ping subject id: %w", err)
		}
		out = append(out, &ping)
	}
	return out, rows.Err()
}

// AppendAttempt inserts the attempt row and increments the quota counter in
// one transaction. The counter upsert takes the bucket's row lock, so
// concurrent appends serialize on it and the losing writer's WHERE clause
// fails, rolling its attempt row back. The counter is authoritative for
// admission; CountAttempts still reads the attempt rows themselves.
func (s *PostgresStore) AppendAttempt(ctx context.Context, attempt *models.VerificationAttempt, quota int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append attempt begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := `
		INSERT INTO verification_attempts (
			event_id, subject_id, medicine_id, attempt_date,
			similarity_score, text_similarity_score, final_similarity_score,
			match, approved, reason, reference_image_url, test_image_url, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, insert,
		attempt.EventID.String(), attempt.SubjectID.String(), attempt.MedicineID.String(),
		string(attempt.AttemptDate), attempt.SimilarityScore, attempt.TextScore,
		attempt.FinalScore, attempt.Match, attempt.Approved, attempt.Reason,
		attempt.ReferenceURL, attempt.CandidateURL, attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append attempt rows affected: %w", err)
	}
	if affected == 0 {
		// Replay of a stored event: the slot is already consumed.
		return tx.Commit()
	}

	if quota > 0 {
		reserve := `
			INSERT INTO attempt_quota (subject_id, medicine_id, attempt_date, attempts)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (subject_id, medicine_id, attempt_date)
			DO UPDATE SET attempts = attempt_quota.attempts + 1
			WHERE attempt_quota.attempts < $4
			RETURNING attempts
		`
		var attempts int
		err := tx.QueryRowContext(ctx, reserve,
			attempt.SubjectID.String(), attempt.MedicineID.String(),
			string(attempt.AttemptDate), quota).Scan(&attempts)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrQuotaExceeded
			}
			return fmt.Errorf("reserve attempt quota: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) CountAttempts(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID, day models.DayKey) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM verification_attempts
		WHERE subject_id = $1 AND medicine_id = $2 AND attempt_date = $3
	`
	var count int
	err := s.db.QueryRowContext(ctx, query, subjectID.String(), medicineID.String(), string(day)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListAttempts(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID, day models.DayKey) ([]*models.VerificationAttempt, error) {
	query := `
		SELECT event_id, subject_id, medicine_id, attempt_date,
		       similarity_score, text_similarity_score, final_similarity_score,
		       match, approved, reason, reference_image_url, test_image_url, created_at
		FROM verification_attempts
		WHERE subject_id = $1 AND medicine_id = $2 AND attempt_date = $3
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, subjectID.String(), medicineID.String(), string(day))
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []*models.VerificationAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}

func scanAttempt(rows *sql.Rows) (*models.VerificationAttempt, error) {
	var attempt models.VerificationAttempt
	var eventID, subject, medicine, day string
	if err := rows.Scan(&eventID, &subject, &medicine, &day,
		&attempt.SimilarityScore, &attempt.TextScore, &attempt.FinalScore,
		&attempt.Match, &attempt.Approved, &attempt.Reason,
		&attempt.ReferenceURL, &attempt.CandidateURL, &attempt.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	var err error
	if attempt.EventID, err = id.ParseEventID(eventID); err != nil {
		return nil, fmt.Errorf("parse attempt event id: %w", err)
	}
	if attempt.SubjectID, err = id.ParseSubjectID(subject); err != nil {
		return nil, fmt.Errorf("parse attempt subject id: %w", err)
	}
	attempt.MedicineID = id.MedicineID(medicine)
	attempt.AttemptDate = models.DayKey(day)
	return &attempt, nil
}

func (s *PostgresStore) GetContainment(ctx context.Context, subjectID id.SubjectID) (*models.ContainmentState, error) {
	query := `
		SELECT subject_id, state, last_event_id, last_evaluated_at, version
		FROM containment_states
		WHERE subject_id = $1
	`
	var state models.ContainmentState
	var subject, stateStr, lastEventID string
	err := s.db.QueryRowContext(ctx, query, subjectID.String()).
		Scan(&subject, &stateStr, &lastEventID, &state.LastEvaluatedAt, &state.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get containment state: %w", err)
	}
	if state.SubjectID, err = id.ParseSubjectID(subject); err != nil {
		return nil, fmt.Errorf("parse containment subject id: %w", err)
	}
	state.State = models.Containment(stateStr)
	if parsed, err := uuid.Parse(lastEventID); err == nil {
		state.LastEventID = id.EventID(parsed)
	}
	return &state, nil
}

func (s *PostgresStore) SaveContainment(ctx context.Context, state *models.ContainmentState) error {
	if state.Version == 0 {
		query := `
			INSERT INTO containment_states (subject_id, state, last_event_id, last_evaluated_at, version)
			VALUES ($1, $2, $3, $4, 1)
			ON CONFLICT (subject_id) DO NOTHING
		`
		res, err := s.db.ExecContext(ctx, query,
			state.SubjectID.String(), string(state.State), state.LastEventID.String(), state.LastEvaluatedAt)
		if err != nil {
			return fmt.Errorf("insert containment state: %w", err)
		}
		return requireOneRow(res, "containment state")
	}

	query := `
		UPDATE containment_states
		SET state = $2, last_event_id = $3, last_evaluated_at = $4, version = version + 1
		WHERE subject_id = $1 AND version = $5
	`
	res, err := s.db.ExecContext(ctx, query,
		state.SubjectID.String(), string(state.State), state.LastEventID.String(),
		state.LastEvaluatedAt, state.Version)
	if err != nil {
		return fmt.Errorf("update containment state: %w", err)
	}
	return requireOneRow(res, "containment state")
}

func (s *PostgresStore) GetCounter(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) (*models.AdherenceCounter, error) {
	query := `
		SELECT subject_id, medicine_id, consecutive_failures, last_event_id,
		       last_attempt_at, last_success_at, notified_at, version
		FROM adherence_counters
		WHERE subject_id = $1 AND medicine_id = $2
	`
	row := s.db.QueryRowContext(ctx, query, subjectID.String(), medicineID.String())
	counter, err := scanCounter(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return counter, nil
}

func (s *PostgresStore) SaveCounter(ctx context.Context, counter *models.AdherenceCounter) error {
	if counter.Version == 0 {
		query := `
			INSERT INTO adherence_counters (
				subject_id, medicine_id, consecutive_failures, last_event_id,
				last_attempt_at, last_success_at, notified_at, version
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
			ON CONFLICT (subject_id, medicine_id) DO NOTHING
		`
		res, err := s.db.ExecContext(ctx, query,
			counter.SubjectID.String(), counter.MedicineID.String(), counter.ConsecutiveFailures,
			counter.LastEventID.String(), counter.LastAttemptAt, counter.LastSuccessAt, counter.NotifiedAt)
		if err != nil {
			return fmt.Errorf("insert adherence counter: %w", err)
		}
		return requireOneRow(res, "adherence counter")
	}

	query := `
		UPDATE adherence_counters
		SET consecutive_failures = $3, last_event_id = $4, last_attempt_at = $5,
		    last_success_at = $6, notified_at = $7, version = version + 1
		WHERE subject_id = $1 AND medicine_id = $2 AND version = $8
	`
	res, err := s.db.ExecContext(ctx, query,
		counter.SubjectID.String(), counter.MedicineID.String(), counter.ConsecutiveFailures,
		counter.LastEventID.String(), counter.LastAttemptAt, counter.LastSuccessAt,
		counter.NotifiedAt, counter.Version)
	if err != nil {
		return fmt.Errorf("update adherence counter: %w", err)
	}
	return requireOneRow(res, "adherence counter")
}

func (s *PostgresStore) ListCounters(ctx context.Context, subjectID id.SubjectID) ([]*models.AdherenceCounter, error) {
	query := `
		SELECT subject_id, medicine_id, consecutive_failures, last_event_id,
		       last_attempt_at, last_success_at, notified_at, version
		FROM adherence_counters
		WHERE subject_id = $1
		ORDER BY medicine_id
	`
	rows, err := s.db.QueryContext(ctx, query, subjectID.String())
	if err != nil {
		return nil, fmt.Errorf("list adherence counters: %w", err)
	}
	defer rows.Close()

	var out []*models.AdherenceCounter
	for rows.Next() {
		counter, err := scanCounter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, counter)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCounter(row rowScanner) (*models.AdherenceCounter, error) {
	var counter models.AdherenceCounter
	var subject, medicine, lastEventID string
	err := row.Scan(&subject, &medicine, &counter.ConsecutiveFailures, &lastEventID,
		&counter.LastAttemptAt, &counter.LastSuccessAt, &counter.NotifiedAt, &counter.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan adherence counter: %w", err)
	}
	if counter.SubjectID, err = id.ParseSubjectID(subject); err != nil {
		return nil, fmt.Errorf("parse counter subject id: %w", err)
	}
	counter.MedicineID = id.MedicineID(medicine)
	if parsed, err := uuid.Parse(lastEventID); err == nil {
		counter.LastEventID = id.EventID(parsed)
	}
	return &counter, nil
}

// requireOneRow converts a zero-row INSERT/UPDATE into a version conflict:
// either the guarded version check failed or another writer created the row
// first.
func requireOneRow(res sql.Result, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", what, err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}
