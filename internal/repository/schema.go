package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('CLIENT', 'PROVIDER')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT users_email_key UNIQUE (email)
)`

const createClientProfilesTable = `
CREATE TABLE IF NOT EXISTS client_profiles (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
	first_name TEXT,
	last_name  TEXT
)`

const createProviderProfilesTable = `
CREATE TABLE IF NOT EXISTS provider_profiles (
	id             UUID PRIMARY KEY,
	user_id        UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
	first_name     TEXT,
	last_name      TEXT,
	clinic_name    TEXT,
	license_number TEXT
)`

const createCaseHistoriesTable = `
CREATE TABLE IF NOT EXISTS case_histories (
	id          UUID PRIMARY KEY,
	client_id   UUID NOT NULL REFERENCES users(id),
	provider_id UUID NOT NULL REFERENCES users(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createIntakeFormsTable = `
CREATE TABLE IF NOT EXISTS intake_forms (
	id                    UUID PRIMARY KEY,
	case_history_id       UUID NOT NULL UNIQUE REFERENCES case_histories(id) ON DELETE CASCADE,
	presenting_problem    TEXT,
	medical_history       TEXT,
	mental_health_history TEXT,
	medications           TEXT,
	consent_acknowledged  BOOLEAN NOT NULL CHECK (consent_acknowledged),
	free_text_notes       TEXT,
	provider_notes        TEXT,
	submitted_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createSessionLogsTable = `
CREATE TABLE IF NOT EXISTS session_logs (
	id                     UUID PRIMARY KEY,
	case_history_id        UUID NOT NULL REFERENCES case_histories(id) ON DELETE CASCADE,
	provider_id            UUID NOT NULL REFERENCES users(id),
	client_id              UUID NOT NULL REFERENCES users(id),
	session_date           TIMESTAMPTZ NOT NULL,
	presenting_topics      TEXT,
	therapist_observations TEXT,
	client_affect          TEXT,
	interventions_used     TEXT,
	progress_notes         TEXT,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_users_role_created ON users(role, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_case_histories_client ON case_histories(client_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_case_histories_provider ON case_histories(provider_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_session_logs_case_date ON session_logs(case_history_id, session_date DESC)`,
}

// SchemaStatements returns the DDL in dependency order.
func SchemaStatements() []string {
	stmts := []string{
		createUsersTable,
		createClientProfilesTable,
		createProviderProfilesTable,
		createCaseHistoriesTable,
		createIntakeFormsTable,
		createSessionLogsTable,
	}
	return append(stmts, schemaIndexes...)
}

// EnsureSchema 幂等建表（启动时与 apply-migration 共用）
func EnsureSchema(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	for i, stmt := range SchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	logger.Info("Database schema ensured", zap.Int("statements", len(SchemaStatements())))
	return nil
}
