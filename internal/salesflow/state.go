// Package salesflow implements the 13-state SPIN conversation machine that
// drives an outbound sales call: state definitions, single-pass intent
// detection over the prospect's utterance, BANT qualification scoring, and
// the total routing function that picks the state the agent speaks in next.
//
// The machine is a closed enumeration. Routing is a pure function of
// (current state, detected intents, conversation state) so it can be tested
// exhaustively; there is no reflection and no per-state object dispatch.
package salesflow

import "time"

// SalesState identifies one of the thirteen conversation states S0–S12.
type SalesState int

const (
	// StateGreeting (S0) — opener has played; confirm audio and attention.
	StateGreeting SalesState = iota

	// StatePermission (S1) — ask for explicit time permission.
	StatePermission

	// StateDiscoveryOpen (S2) — first safe discovery question.
	StateDiscoveryOpen

	// StateDiscoveryProbe (S3) — deeper probe; handles guarded answers.
	StateDiscoveryProbe

	// StatePainConfirm (S4) — confirmation label over the stated pain.
	StatePainConfirm

	// StateValueBridge (S5) — transition from discovery to value.
	StateValueBridge

	// StateValueProp (S6) — core value proposition.
	StateValueProp

	// StateDeepEngage (S7) — proof points and deep engagement.
	StateDeepEngage

	// StateObjection (S8) — address a stated objection.
	StateObjection

	// StateAuthority (S9) — multi-party / decision-authority handling.
	StateAuthority

	// StateFollowUp (S10) — follow-up consent when the prospect hesitates.
	StateFollowUp

	// StateScheduling (S11) — lock a concrete next step.
	StateScheduling

	// StateExit (S12) — graceful exit. Terminal: no out-edges.
	StateExit
)

// NumStates is the size of the state enumeration.
const NumStates = 13

// Phase groups states into the four SPIN call phases.
type Phase string

const (
	PhaseOpening      Phase = "opening"
	PhaseDiscovery    Phase = "discovery"
	PhasePresentation Phase = "presentation"
	PhaseObjection    Phase = "objection"
	PhaseClosing      Phase = "closing"
)

// Valid reports whether s is within the S0–S12 range.
func (s SalesState) Valid() bool {
	return s >= StateGreeting && s <= StateExit
}

// Terminal reports whether s is the absorbing exit state.
func (s SalesState) Terminal() bool {
	return s == StateExit
}

// Phase returns the call phase s belongs to.
func (s SalesState) Phase() Phase {
	switch s {
	case StateGreeting, StatePermission:
		return PhaseOpening
	case StateDiscoveryOpen, StateDiscoveryProbe, StatePainConfirm:
		return PhaseDiscovery
	case StateValueBridge, StateValueProp, StateDeepEngage:
		return PhasePresentation
	case StateObjection:
		return PhaseObjection
	default:
		return PhaseClosing
	}
}

// String returns the short state label used in logs and cache keys.
func (s SalesState) String() string {
	if !s.Valid() {
		return "S?"
	}
	return [NumStates]string{
		"S0", "S1", "S2", "S3", "S4", "S5", "S6",
		"S7", "S8", "S9", "S10", "S11", "S12",
	}[s]
}

// LLMTimeout returns the per-state deadline for LLM generation. Simple
// states answer fast; complex presentation and objection states get more
// headroom because their prompts are longer and their replies matter more.
func (s SalesState) LLMTimeout() time.Duration {
	switch s {
	case StateGreeting, StatePermission, StatePainConfirm, StateExit:
		return 4 * time.Second
	case StateValueProp, StateDeepEngage, StateObjection:
		return 6 * time.Second
	default:
		return 5 * time.Second
	}
}

// GatherTimeout returns how long the carrier should wait for prospect
// speech after the agent's reply, matched to state complexity.
func (s SalesState) GatherTimeout() time.Duration {
	switch s.LLMTimeout() {
	case 4 * time.Second:
		return 4 * time.Second
	case 6 * time.Second:
		return 6 * time.Second
	default:
		return 5 * time.Second
	}
}

// StateFromID converts a persisted numeric state id back to a SalesState.
// Out-of-range ids clamp to StateGreeting so a corrupt row cannot wedge a
// call in an undefined state.
func StateFromID(id int) SalesState {
	s := SalesState(id)
	if !s.Valid() {
		return StateGreeting
	}
	return s
}
