package engine

import "errors"

// Failure taxonomy for the turn pipeline. Handlers branch on these with
// errors.Is; the prospect never hears any of them, they only select which
// fallback path runs and how the failure is logged.
var (
	// ErrTimeout marks a per-stage deadline that expired.
	ErrTimeout = errors.New("stage deadline exceeded")

	// ErrTransientUpstream marks a retryable provider failure (5xx, DNS,
	// connection reset).
	ErrTransientUpstream = errors.New("transient upstream failure")

	// ErrBadInput marks an empty or malformed webhook payload.
	ErrBadInput = errors.New("bad webhook input")

	// ErrAuth marks a rejected webhook signature.
	ErrAuth = errors.New("signature rejected")

	// ErrStateViolation marks an unknown call id or a turn against a call
	// already in a terminal state.
	ErrStateViolation = errors.New("call state violation")
)
