package postgres

import (
	"database/sql"
	"fmt"
)

// Schema is applied on startup. Statements are idempotent so restarting
// against an already-provisioned database is safe. The partial unique index
// on alerts is what enforces the one-open-alert-per-kind rule under
// concurrent writers.
const schema = `
CREATE TABLE IF NOT EXISTS location_pings (
	event_id    UUID PRIMARY KEY,
	subject_id  UUID NOT NULL,
	lat         DOUBLE PRECISION NOT NULL,
	lng         DOUBLE PRECISION NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_location_pings_subject
	ON location_pings (subject_id, observed_at DESC);

CREATE TABLE IF NOT EXISTS verification_attempts (
	event_id               UUID PRIMARY KEY,
	subject_id             UUID NOT NULL,
	medicine_id            TEXT NOT NULL,
	attempt_date           TEXT NOT NULL,
	similarity_score       DOUBLE PRECISION NOT NULL,
	text_similarity_score  DOUBLE PRECISION,
	final_similarity_score DOUBLE PRECISION NOT NULL,
	match                  BOOLEAN NOT NULL,
	approved               BOOLEAN NOT NULL,
	reason                 TEXT NOT NULL,
	reference_image_url    TEXT NOT NULL DEFAULT '',
	test_image_url         TEXT NOT NULL DEFAULT '',
	created_at             TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verification_attempts_day
	ON verification_attempts (subject_id, medicine_id, attempt_date);

CREATE TABLE IF NOT EXISTS attempt_quota (
	subject_id   UUID NOT NULL,
	medicine_id  TEXT NOT NULL,
	attempt_date TEXT NOT NULL,
	attempts     INTEGER NOT NULL,
	PRIMARY KEY (subject_id, medicine_id, attempt_date)
);

CREATE TABLE IF NOT EXISTS containment_states (
	subject_id        UUID PRIMARY KEY,
	state             TEXT NOT NULL,
	last_event_id     UUID NOT NULL,
	last_evaluated_at TIMESTAMPTZ,
	version           BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS adherence_counters (
	subject_id           UUID NOT NULL,
	medicine_id          TEXT NOT NULL,
	consecutive_failures INTEGER NOT NULL,
	last_event_id        UUID NOT NULL,
	last_attempt_at      TIMESTAMPTZ,
	last_success_at      TIMESTAMPTZ,
	notified_at          TIMESTAMPTZ,
	version              BIGINT NOT NULL,
	PRIMARY KEY (subject_id, medicine_id)
);

CREATE TABLE IF NOT EXISTS boundaries (
	subject_id    UUID PRIMARY KEY,
	center_lat    DOUBLE PRECISION NOT NULL,
	center_lng    DOUBLE PRECISION NOT NULL,
	radius_meters DOUBLE PRECISION NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS schedule_slots (
	subject_id  UUID NOT NULL,
	medicine_id TEXT NOT NULL,
	time_of_day TEXT NOT NULL,
	enabled     BOOLEAN NOT NULL,
	PRIMARY KEY (subject_id, medicine_id)
);

CREATE TABLE IF NOT EXISTS alerts (
	id          UUID PRIMARY KEY,
	subject_id  UUID NOT NULL,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL,
	opened_at   TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_one_open
	ON alerts (subject_id, kind) WHERE status = 'OPEN';

CREATE INDEX IF NOT EXISTS idx_alerts_subject
	ON alerts (subject_id, opened_at DESC);
`

// Migrate provisions the schema on the given database.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
