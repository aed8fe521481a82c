// Package postgres implements store.Store on a PostgreSQL connection pool.
//
// All three row families (calls, leads, transcripts) share one
// [pgxpool.Pool]. [New] runs the idempotent schema migration on startup so
// a fresh database is usable without external tooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/algonox/aados/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed persistence layer. All methods are safe
// for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store, establishes the connection pool for dsn, pings the
// database, and runs [Migrate].
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ─── Calls ───────────────────────────────────────────────────────────────────

const callColumns = `id, lead_id, carrier_sid, phone_number, status, state_id,
	state_turns, state_questions, tech_issues, objections, return_state_id,
	started_at, ended_at, duration_seconds, full_transcript, recording_url,
	summary, sentiment, interest_level`

// CreateCall implements store.CallStore.
func (s *Store) CreateCall(ctx context.Context, c *store.Call) error {
	const q = `
		INSERT INTO calls
		    (id, lead_id, carrier_sid, phone_number, status, state_id, started_at, full_transcript)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		c.ID, c.LeadID, c.CarrierSID, c.PhoneNumber,
		string(c.Status), c.StateID, c.StartedAt, c.FullTranscript,
	)
	if err != nil {
		return fmt.Errorf("postgres store: create call: %w", err)
	}
	return nil
}

// GetCall implements store.CallStore.
func (s *Store) GetCall(ctx context.Context, id string) (*store.Call, error) {
	return s.getCallWhere(ctx, "id = $1", id)
}

// GetCallBySID implements store.CallStore.
func (s *Store) GetCallBySID(ctx context.Context, sid string) (*store.Call, error) {
	return s.getCallWhere(ctx, "carrier_sid = $1", sid)
}

func (s *Store) getCallWhere(ctx context.Context, cond string, arg any) (*store.Call, error) {
	q := "SELECT " + callColumns + " FROM calls WHERE " + cond

	rows, err := s.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get call: %w", err)
	}
	call, err := pgx.CollectOneRow(rows, scanCall)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get call: %w", err)
	}
	return &call, nil
}

func scanCall(row pgx.CollectableRow) (store.Call, error) {
	var (
		c          store.Call
		status     string
		endedAt    *time.Time
		durationS  int64
		recording  *string
		summary    *string
		sentiment  *string
		interest   *string
	)
	err := row.Scan(
		&c.ID, &c.LeadID, &c.CarrierSID, &c.PhoneNumber, &status, &c.StateID,
		&c.StateTurns, &c.StateQuestions, &c.TechIssues, &c.Objections,
		&c.ReturnStateID,
		&c.StartedAt, &endedAt, &durationS, &c.FullTranscript, &recording,
		&summary, &sentiment, &interest,
	)
	if err != nil {
		return c, err
	}
	c.Status = store.CallStatus(status)
	if endedAt != nil {
		c.EndedAt = *endedAt
	}
	c.Duration = time.Duration(durationS) * time.Second
	c.RecordingURL = deref(recording)
	c.Summary = deref(summary)
	c.Sentiment = deref(sentiment)
	c.InterestLevel = deref(interest)
	return c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// UpdateCallStatus implements store.CallStore. Terminal statuses stamp
// ended_at and duration exactly once, so redelivered status callbacks leave
// the row unchanged.
func (s *Store) UpdateCallStatus(ctx context.Context, id string, status store.CallStatus, at time.Time) error {
	if status.Terminal() {
		const q = `
			UPDATE calls
			SET    status = $2,
			       ended_at = COALESCE(ended_at, $3),
			       duration_seconds = CASE
			           WHEN duration_seconds > 0 THEN duration_seconds
			           ELSE GREATEST(0, EXTRACT(EPOCH FROM ($3::timestamptz - started_at))::bigint)
			       END
			WHERE  id = $1`
		tag, err := s.pool.Exec(ctx, q, id, string(status), at)
		if err != nil {
			return fmt.Errorf("postgres store: update call status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx, `UPDATE calls SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("postgres store: update call status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetCallState implements store.CallStore.
func (s *Store) SetCallState(ctx context.Context, id string, st store.CallState) error {
	const q = `
		UPDATE calls
		SET    state_id = $2,
		       state_turns = $3,
		       state_questions = $4,
		       tech_issues = $5,
		       objections = $6,
		       return_state_id = $7
		WHERE  id = $1`
	tag, err := s.pool.Exec(ctx, q, id,
		st.StateID, st.StateTurns, st.StateQuestions,
		st.TechIssues, st.Objections, st.ReturnStateID,
	)
	if err != nil {
		return fmt.Errorf("postgres store: set call state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendTranscript implements store.CallStore. The append happens in SQL so
// concurrent writers cannot lose each other's deltas.
func (s *Store) AppendTranscript(ctx context.Context, id string, delta string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET full_transcript = full_transcript || $2 WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("postgres store: append transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetRecordingURL implements store.CallStore.
func (s *Store) SetRecordingURL(ctx context.Context, id string, url string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE calls SET recording_url = $2 WHERE id = $1`, id, url)
	if err != nil {
		return fmt.Errorf("postgres store: set recording url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ─── Leads ───────────────────────────────────────────────────────────────────

// GetLead implements store.LeadStore.
func (s *Store) GetLead(ctx context.Context, id string) (*store.Lead, error) {
	const q = `
		SELECT id, name, company, title, industry, phone, email, source, context
		FROM   leads
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get lead: %w", err)
	}
	lead, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (store.Lead, error) {
		var l store.Lead
		err := row.Scan(&l.ID, &l.Name, &l.Company, &l.Title, &l.Industry,
			&l.Phone, &l.Email, &l.Source, &l.Context)
		return l, err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get lead: %w", err)
	}
	return &lead, nil
}

// ─── Transcripts ─────────────────────────────────────────────────────────────

// UpsertTranscript implements store.TranscriptStore.
func (s *Store) UpsertTranscript(ctx context.Context, callID string, full string) error {
	const q = `
		INSERT INTO transcripts (call_id, full_text, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (call_id)
		DO UPDATE SET full_text = EXCLUDED.full_text, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, callID, full); err != nil {
		return fmt.Errorf("postgres store: upsert transcript: %w", err)
	}
	return nil
}
