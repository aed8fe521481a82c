package salesflow

// Interrupt identifies a high-priority reroute that carries its own canned
// reply instead of normal per-state generation.
type Interrupt string

const (
	InterruptNone          Interrupt = ""
	InterruptHostile       Interrupt = "hostile"
	InterruptTechRepair    Interrupt = "tech_repair"
	InterruptTechExit      Interrupt = "tech_exit"
	InterruptNotInterested Interrupt = "not_interested"
	InterruptNoTime        Interrupt = "no_time"
	InterruptWhoIsThis     Interrupt = "who_is_this"
)

// Decision is the routing outcome for one turn.
type Decision struct {
	// Next is the state the agent speaks in now.
	Next SalesState

	// Interrupt, when non-empty, selects a canned interrupt reply and
	// bypasses the normal response pipeline for this turn.
	Interrupt Interrupt
}

// Route applies the routing rules for one prospect utterance and advances
// the conversation. The function is total: every (state, intent-set) pair
// produces a defined next state, and StateExit has no out-edges.
//
// Precedence: terminal latch, hostile, tech issue, not-interested, no-time,
// who-is-this, then the per-state transition table.
func (c *Conversation) Route(in Intents) Decision {
	if c.EndCall || c.State == StateExit {
		c.Enter(StateExit)
		return Decision{Next: StateExit}
	}

	if in.Hostile {
		c.Enter(StateExit)
		return Decision{Next: StateExit, Interrupt: InterruptHostile}
	}

	if in.TechIssue {
		if c.TechIssues >= TechIssueCap {
			// Both repair attempts are spent; the counter stays at the cap.
			c.Enter(StateExit)
			return Decision{Next: StateExit, Interrupt: InterruptTechExit}
		}
		c.TechIssues++
		c.Enter(c.State)
		return Decision{Next: c.State, Interrupt: InterruptTechRepair}
	}

	if in.NotInterested {
		c.Enter(StateExit)
		return Decision{Next: StateExit, Interrupt: InterruptNotInterested}
	}

	if in.NoTime {
		if c.State == StateGreeting {
			// Offer the shorter path rather than giving up on the opener.
			c.Enter(StatePermission)
			return Decision{Next: StatePermission}
		}
		c.Enter(StateExit)
		return Decision{Next: StateExit, Interrupt: InterruptNoTime}
	}

	if in.WhoIsThis {
		// One-turn identification reply; the state does not advance.
		c.Enter(c.State)
		return Decision{Next: c.State, Interrupt: InterruptWhoIsThis}
	}

	next := c.nextState(in)
	c.Enter(next)
	return Decision{Next: next}
}

// nextState is the per-state transition table, evaluated after the
// precedence interrupts above.
func (c *Conversation) nextState(in Intents) SalesState {
	switch c.State {
	case StateGreeting:
		if in.Empty {
			return StateGreeting
		}
		return StatePermission

	case StatePermission:
		if in.PermissionYes {
			return StateDiscoveryOpen
		}
		if in.PermissionNo {
			return StateExit
		}
		return StatePermission

	case StateDiscoveryOpen:
		if c.StateQuestions >= 2 {
			return StateDiscoveryProbe
		}
		return StateDiscoveryOpen

	case StateDiscoveryProbe:
		if in.Guarded {
			return StateDiscoveryProbe
		}
		if c.StateTurns >= 1 {
			return StatePainConfirm
		}
		return StateDiscoveryProbe

	case StatePainConfirm:
		if in.ConfirmYes {
			return StateValueBridge
		}
		return StateDiscoveryProbe

	case StateValueBridge:
		return StateValueProp

	case StateValueProp:
		if in.Objection != ObjectionNone {
			c.ReturnState = StateValueProp
			return StateObjection
		}
		if in.Schedule {
			return StateScheduling
		}
		if in.Resonance {
			return StateDeepEngage
		}
		return StateValueProp

	case StateDeepEngage:
		if in.Objection != ObjectionNone {
			c.ReturnState = StateDeepEngage
			return StateObjection
		}
		if in.Authority {
			return StateAuthority
		}
		if in.Schedule {
			return StateScheduling
		}
		if in.Hesitation {
			return StateFollowUp
		}
		return StateDeepEngage

	case StateObjection:
		if in.Objection != ObjectionNone {
			return StateObjection
		}
		if in.Schedule {
			return StateScheduling
		}
		if c.StateTurns >= 1 {
			// Objection resolved: resume the presentation where it broke off.
			if c.ReturnState == StateValueProp || c.ReturnState == StateDeepEngage {
				return c.ReturnState
			}
			return StateValueProp
		}
		return StateObjection

	case StateAuthority:
		if in.Hesitation {
			return StateFollowUp
		}
		return StateScheduling

	case StateFollowUp:
		if in.Schedule || in.PermissionYes || in.ConfirmYes {
			return StateScheduling
		}
		if in.PermissionNo {
			return StateExit
		}
		// Undecided answers keep the follow-up conversation open.
		return StateFollowUp

	case StateScheduling:
		if in.Schedule {
			return StateExit
		}
		if in.PermissionNo || in.Hesitation {
			return StateFollowUp
		}
		return StateScheduling

	default:
		return StateExit
	}
}
