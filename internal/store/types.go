package store

import "time"

// CallStatus is the lifecycle status of a call, mirroring the carrier's
// status-callback vocabulary (with hyphens normalized to underscores).
type CallStatus string

const (
	StatusQueued     CallStatus = "queued"
	StatusInitiated  CallStatus = "initiated"
	StatusRinging    CallStatus = "ringing"
	StatusInProgress CallStatus = "in_progress"
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
	StatusCanceled   CallStatus = "canceled"
	StatusNoAnswer   CallStatus = "no_answer"
	StatusBusy       CallStatus = "busy"
)

// Terminal reports whether the status ends the call lifecycle.
func (s CallStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled, StatusNoAnswer, StatusBusy:
		return true
	}
	return false
}

// Unanswered reports whether the call never connected to the prospect.
func (s CallStatus) Unanswered() bool {
	switch s {
	case StatusNoAnswer, StatusBusy, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// NormalizeStatus converts a carrier status string ("no-answer",
// "in-progress") into a CallStatus value.
func NormalizeStatus(s string) CallStatus {
	switch s {
	case "no-answer":
		return StatusNoAnswer
	case "in-progress":
		return StatusInProgress
	default:
		return CallStatus(s)
	}
}

// CallState is the sales-machine snapshot persisted between webhook turns.
// Each turn's handler restores the conversation from it and writes the
// updated snapshot back, so counters like TechIssues survive the stateless
// webhook lifecycle.
type CallState struct {
	// StateID is the current sales state (0–12).
	StateID int

	// StateTurns and StateQuestions count turns spent and questions asked
	// in the current state; both reset on a state change.
	StateTurns     int
	StateQuestions int

	TechIssues int
	Objections int

	// ReturnStateID is the presentation state to resume after an objection
	// detour, 0 when none is pending.
	ReturnStateID int
}

// Call is one telephony session. FullTranscript is the append-only text
// blob and the source of truth for the call transcript; the transcripts
// row is a lazy denormalization written when the call completes.
type Call struct {
	ID          string
	LeadID      string
	CarrierSID  string
	PhoneNumber string
	Status      CallStatus

	CallState

	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration

	FullTranscript string
	RecordingURL   string

	// Written by the post-call analyzer, read-only here.
	Summary       string
	Sentiment     string
	InterestLevel string
}

// Lead is the prospect being called. Read-mostly from the engine's
// perspective; Context carries arbitrary extra prompt-building material.
type Lead struct {
	ID       string
	Name     string
	Company  string
	Title    string
	Industry string
	Phone    string
	Email    string
	Source   string
	Context  string
}
