// Package store defines the persistence interfaces and row types for calls,
// leads, and transcript denormalizations.
//
// The postgres subpackage implements Store on a pgx connection pool; the
// mock subpackage provides an in-memory implementation for tests and local
// development without a database.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a call or lead id does not exist.
var ErrNotFound = errors.New("store: not found")

// CallStore persists call rows.
type CallStore interface {
	// CreateCall inserts a new call row.
	CreateCall(ctx context.Context, c *Call) error

	// GetCall returns the call with the given id, or ErrNotFound.
	GetCall(ctx context.Context, id string) (*Call, error)

	// GetCallBySID returns the call with the given carrier session id.
	GetCallBySID(ctx context.Context, sid string) (*Call, error)

	// UpdateCallStatus sets the lifecycle status. Terminal statuses also
	// stamp EndedAt and Duration; repeated delivery of the same terminal
	// status is idempotent.
	UpdateCallStatus(ctx context.Context, id string, status CallStatus, at time.Time) error

	// SetCallState persists the sales-machine snapshot between turns.
	SetCallState(ctx context.Context, id string, st CallState) error

	// AppendTranscript appends delta to the call's transcript blob.
	AppendTranscript(ctx context.Context, id string, delta string) error

	// SetRecordingURL stores the recording location once the carrier
	// reports it ready.
	SetRecordingURL(ctx context.Context, id string, url string) error
}

// LeadStore reads lead rows.
type LeadStore interface {
	// GetLead returns the lead with the given id, or ErrNotFound.
	GetLead(ctx context.Context, id string) (*Lead, error)
}

// TranscriptStore maintains the denormalized transcripts row per call,
// updated lazily (on call completion). The call row's blob remains the
// source of truth.
type TranscriptStore interface {
	UpsertTranscript(ctx context.Context, callID string, full string) error
}

// Store is the full persistence surface used by the application.
type Store interface {
	CallStore
	LeadStore
	TranscriptStore

	// Ping verifies database connectivity; used by the readiness probe.
	Ping(ctx context.Context) error

	// Close releases the underlying pool.
	Close()
}
