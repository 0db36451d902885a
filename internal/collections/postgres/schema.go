package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the collections tables. Agencies and the admin share the users
// table and are told apart by role.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id                 BIGSERIAL PRIMARY KEY,
	username           TEXT NOT NULL UNIQUE,
	role               TEXT NOT NULL CHECK (role IN ('admin', 'agency')),
	email              TEXT,
	phone              TEXT,
	high_risk_eligible BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cases (
	id                 BIGSERIAL PRIMARY KEY,
	customer_name      TEXT NOT NULL,
	amount_due         NUMERIC NOT NULL CHECK (amount_due > 0),
	days_overdue       INTEGER NOT NULL CHECK (days_overdue >= 0),
	status             TEXT NOT NULL DEFAULT 'New',
	risk_label         TEXT,
	assigned_agency_id BIGINT REFERENCES users(id),
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cases_status_risk ON cases (status, risk_label);
CREATE INDEX IF NOT EXISTS idx_cases_agency ON cases (assigned_agency_id);

CREATE TABLE IF NOT EXISTS audit_logs (
	id          BIGSERIAL PRIMARY KEY,
	case_id     BIGINT REFERENCES cases(id),
	user_id     BIGINT NOT NULL REFERENCES users(id),
	action_type TEXT NOT NULL,
	description TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs (timestamp DESC);

INSERT INTO users (username, role) VALUES ('admin', 'admin') ON CONFLICT (username) DO NOTHING;
`

// EnsureSchema applies Schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply collections schema: %w", err)
	}
	return nil
}
