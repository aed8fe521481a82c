package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlCalls = `
CREATE TABLE IF NOT EXISTS calls (
    id               TEXT         PRIMARY KEY,
    lead_id          TEXT         NOT NULL,
    carrier_sid      TEXT         NOT NULL DEFAULT '',
    phone_number     TEXT         NOT NULL DEFAULT '',
    status           TEXT         NOT NULL DEFAULT 'queued',
    state_id         INTEGER      NOT NULL DEFAULT 0,
    state_turns      INTEGER      NOT NULL DEFAULT 0,
    state_questions  INTEGER      NOT NULL DEFAULT 0,
    tech_issues      INTEGER      NOT NULL DEFAULT 0,
    objections       INTEGER      NOT NULL DEFAULT 0,
    return_state_id  INTEGER      NOT NULL DEFAULT 0,
    started_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    ended_at         TIMESTAMPTZ,
    duration_seconds BIGINT       NOT NULL DEFAULT 0,
    full_transcript  TEXT         NOT NULL DEFAULT '',
    recording_url    TEXT,
    summary          TEXT,
    sentiment        TEXT,
    interest_level   TEXT
);

CREATE INDEX IF NOT EXISTS idx_calls_lead_id ON calls (lead_id);
CREATE INDEX IF NOT EXISTS idx_calls_carrier_sid ON calls (carrier_sid);
CREATE INDEX IF NOT EXISTS idx_calls_status ON calls (status);
`

const ddlLeads = `
CREATE TABLE IF NOT EXISTS leads (
    id        TEXT  PRIMARY KEY,
    name      TEXT  NOT NULL DEFAULT '',
    company   TEXT  NOT NULL DEFAULT '',
    title     TEXT  NOT NULL DEFAULT '',
    industry  TEXT  NOT NULL DEFAULT '',
    phone     TEXT  NOT NULL DEFAULT '',
    email     TEXT  NOT NULL DEFAULT '',
    source    TEXT  NOT NULL DEFAULT '',
    context   TEXT  NOT NULL DEFAULT ''
);
`

// ddlCallStateColumns upgrades databases created before the per-turn
// routing snapshot was persisted.
const ddlCallStateColumns = `
ALTER TABLE calls ADD COLUMN IF NOT EXISTS state_turns     INTEGER NOT NULL DEFAULT 0;
ALTER TABLE calls ADD COLUMN IF NOT EXISTS state_questions INTEGER NOT NULL DEFAULT 0;
ALTER TABLE calls ADD COLUMN IF NOT EXISTS tech_issues     INTEGER NOT NULL DEFAULT 0;
ALTER TABLE calls ADD COLUMN IF NOT EXISTS objections      INTEGER NOT NULL DEFAULT 0;
ALTER TABLE calls ADD COLUMN IF NOT EXISTS return_state_id INTEGER NOT NULL DEFAULT 0;
`

const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS transcripts (
    call_id    TEXT         PRIMARY KEY REFERENCES calls (id) ON DELETE CASCADE,
    full_text  TEXT         NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates all required tables and indexes. Every statement is
// IF NOT EXISTS so repeated startup runs are harmless.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlLeads, ddlCalls, ddlCallStateColumns, ddlTranscripts} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
