// Package mock provides an in-memory store.Store for tests and for running
// the server without a database.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/algonox/aados/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a map-backed store.Store. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	calls map[string]*store.Call
	leads map[string]*store.Lead

	// Transcripts records UpsertTranscript writes by call id.
	Transcripts map[string]string

	// PingErr, when set, is returned from Ping.
	PingErr error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		calls:       make(map[string]*store.Call),
		leads:       make(map[string]*store.Lead),
		Transcripts: make(map[string]string),
	}
}

// AddLead seeds a lead row.
func (s *Store) AddLead(l *store.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.leads[l.ID] = &cp
}

// CreateCall implements store.CallStore.
func (s *Store) CreateCall(_ context.Context, c *store.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.calls[c.ID] = &cp
	return nil
}

// GetCall implements store.CallStore.
func (s *Store) GetCall(_ context.Context, id string) (*store.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// GetCallBySID implements store.CallStore.
func (s *Store) GetCallBySID(_ context.Context, sid string) (*store.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.CarrierSID == sid {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// UpdateCallStatus implements store.CallStore with the same idempotence as
// the SQL implementation: terminal timestamps are written once.
func (s *Store) UpdateCallStatus(_ context.Context, id string, status store.CallStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	if status.Terminal() && c.EndedAt.IsZero() {
		c.EndedAt = at
		if d := at.Sub(c.StartedAt); d > 0 {
			c.Duration = d.Truncate(time.Second)
		}
	}
	return nil
}

// SetCallState implements store.CallStore.
func (s *Store) SetCallState(_ context.Context, id string, st store.CallState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return store.ErrNotFound
	}
	c.CallState = st
	return nil
}

// AppendTranscript implements store.CallStore.
func (s *Store) AppendTranscript(_ context.Context, id string, delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return store.ErrNotFound
	}
	c.FullTranscript += delta
	return nil
}

// SetRecordingURL implements store.CallStore.
func (s *Store) SetRecordingURL(_ context.Context, id string, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return store.ErrNotFound
	}
	c.RecordingURL = url
	return nil
}

// GetLead implements store.LeadStore.
func (s *Store) GetLead(_ context.Context, id string) (*store.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// UpsertTranscript implements store.TranscriptStore.
func (s *Store) UpsertTranscript(_ context.Context, callID string, full string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Transcripts[callID] = full
	return nil
}

// Transcript returns the denormalized transcripts row for callID.
func (s *Store) Transcript(callID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Transcripts[callID]
	return t, ok
}

// Ping implements store.Store.
func (s *Store) Ping(context.Context) error { return s.PingErr }

// Close implements store.Store.
func (s *Store) Close() {}
