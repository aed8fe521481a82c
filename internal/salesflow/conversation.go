package salesflow

import (
	"strings"
	"time"
)

// Channel classifies how the call reached the prospect; it selects the tone
// profile used in prompts and quick replies.
type Channel string

const (
	ChannelColdCall     Channel = "cold_call"
	ChannelWarmReferral Channel = "warm_referral"
	ChannelInbound      Channel = "inbound"
)

// ToneProfile returns the wording register for the channel.
func (c Channel) ToneProfile() string {
	switch c {
	case ChannelInbound:
		return "helpful_direct"
	case ChannelWarmReferral:
		return "warm_confident"
	default:
		return "neutral_curious"
	}
}

// InferChannel derives the channel from a lead's source field.
func InferChannel(leadSource string) Channel {
	src := strings.ToLower(leadSource)
	switch {
	case strings.Contains(src, "inbound"):
		return ChannelInbound
	case strings.Contains(src, "referral"), strings.Contains(src, "warm"):
		return ChannelWarmReferral
	default:
		return ChannelColdCall
	}
}

// TechIssueCap is the number of repair attempts allowed before the call is
// ended over a bad connection.
const TechIssueCap = 2

// Conversation is the in-memory per-call state the engine mutates during a
// turn. It references the Call and Lead by identifier only. Between turns
// the routing snapshot ([Conversation.Snapshot]) is persisted on the call
// row and restored by [Resume]; BANT scores, pain points, and the intent
// history are folded in turn by turn via [Conversation.Observe] and feed
// prompts only.
type Conversation struct {
	CallID string
	LeadID string

	State        SalesState
	StateEntered time.Time

	// StateTurns counts turns spent in the current state; StateQuestions
	// counts discovery questions asked in S2 (max 2 before moving on).
	StateTurns     int
	StateQuestions int

	BANT       BANT
	PainPoints int

	// IntentHistory keeps the flags record of every turn, oldest first.
	IntentHistory []Intents

	Objections    int
	LastObjection ObjectionType
	TechIssues    int
	EndCall       bool

	// ReturnState remembers which presentation state to resume after an
	// objection in S8 is resolved.
	ReturnState SalesState

	Channel Channel
}

// Snapshot is the routing state carried across webhook turns on the call
// row. Without it every webhook would route with zeroed counters: the
// tech-issue cap could never end a call and the turn-gated transitions
// could never fire.
type Snapshot struct {
	StateID        int
	StateTurns     int
	StateQuestions int
	TechIssues     int
	Objections     int
	ReturnStateID  int
}

// NewConversation creates the per-call state for a fresh call in stateID
// with the channel inferred from the lead source.
func NewConversation(callID, leadID string, stateID int, leadSource string) *Conversation {
	return Resume(callID, leadID, Snapshot{StateID: stateID}, leadSource)
}

// Resume rebuilds the per-call state from a persisted snapshot. The webhook
// handler calls this at the start of every turn.
func Resume(callID, leadID string, snap Snapshot, leadSource string) *Conversation {
	return &Conversation{
		CallID:         callID,
		LeadID:         leadID,
		State:          StateFromID(snap.StateID),
		StateEntered:   time.Now(),
		StateTurns:     snap.StateTurns,
		StateQuestions: snap.StateQuestions,
		TechIssues:     snap.TechIssues,
		Objections:     snap.Objections,
		ReturnState:    StateFromID(snap.ReturnStateID),
		Channel:        InferChannel(leadSource),
	}
}

// Snapshot captures the routing state to persist after the turn.
func (c *Conversation) Snapshot() Snapshot {
	return Snapshot{
		StateID:        int(c.State),
		StateTurns:     c.StateTurns,
		StateQuestions: c.StateQuestions,
		TechIssues:     c.TechIssues,
		Objections:     c.Objections,
		ReturnStateID:  int(c.ReturnState),
	}
}

// Enter moves the conversation to next, resetting the per-state counters.
// Entering StateExit latches EndCall. Enter is a no-op when next equals the
// current state except that StateTurns advances.
func (c *Conversation) Enter(next SalesState) {
	if c.State == StateExit {
		// S12 is absorbing.
		c.EndCall = true
		return
	}
	if next == c.State {
		c.StateTurns++
		return
	}
	c.State = next
	c.StateEntered = time.Now()
	c.StateTurns = 0
	c.StateQuestions = 0
	if next == StateExit {
		c.EndCall = true
	}
}

// Observe folds one detected utterance into the running counters and BANT
// scores. It must be called exactly once per turn, before routing.
func (c *Conversation) Observe(utterance string, in Intents) {
	c.IntentHistory = append(c.IntentHistory, in)
	if MentionsPain(utterance) {
		c.PainPoints++
	}
	if in.Objection != ObjectionNone {
		c.Objections++
		c.LastObjection = in.Objection
	}
	c.BANT.Update(utterance, c.PainPoints)
}

// NoteAgentReply records the agent's own reply for the turn. A reply that
// asks a question advances StateQuestions, which gates the discovery budget
// in StateDiscoveryOpen. Interrupt replies (tech repair and the like) must
// not be noted; their questions are not part of the script.
func (c *Conversation) NoteAgentReply(text string) {
	if strings.Contains(text, "?") {
		c.StateQuestions++
	}
}
