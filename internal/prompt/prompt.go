// Package prompt assembles the state-keyed LLM prompt for one turn.
//
// Each sales state has exactly one template. A template receives the lead
// fields, the channel tone, a bounded tail of the call transcript, and the
// prospect's last utterance. The output is a single string capped at a
// configurable character budget; the transcript tail cap is hard so a long
// call can never blow up prompt latency.
package prompt

import (
	"fmt"
	"strings"

	"github.com/algonox/aados/internal/salesflow"
	"github.com/algonox/aados/internal/store"
)

const (
	// DefaultTailChars is the transcript tail carried into every prompt.
	// Cut down from longer histories: the tail dominates prompt size and
	// therefore time-to-first-token.
	DefaultTailChars = 800

	// MaxReplyTokens caps LLM output. Voice replies over ~150 tokens
	// exceed the 12-second speech budget anyway.
	MaxReplyTokens = 150

	// defaultPromptBudget is the overall character cap for one prompt.
	defaultPromptBudget = 4000
)

// Builder renders per-state prompts. Safe for concurrent use; all fields
// are read-only after construction.
type Builder struct {
	tailChars    int
	promptBudget int
}

// Option is a functional option for Builder.
type Option func(*Builder)

// WithTailChars overrides the transcript tail cap.
func WithTailChars(n int) Option {
	return func(b *Builder) { b.tailChars = n }
}

// WithPromptBudget overrides the total prompt character cap.
func WithPromptBudget(n int) Option {
	return func(b *Builder) { b.promptBudget = n }
}

// NewBuilder returns a Builder with the default caps.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{tailChars: DefaultTailChars, promptBudget: defaultPromptBudget}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build renders the prompt for the given turn. transcript is the full
// call transcript blob; only its tail is embedded. The prompt never embeds
// prospect data beyond the lead row fields.
func (b *Builder) Build(state salesflow.SalesState, lead *store.Lead, conv *salesflow.Conversation, transcript, userInput string) string {
	tail := transcript
	if len(tail) > b.tailChars {
		tail = tail[len(tail)-b.tailChars:]
	}

	name := strings.TrimSpace(lead.Name)
	if name == "" {
		name = "there"
	}

	r := strings.NewReplacer(
		"{lead_name}", name,
		"{lead_company}", orUnknown(lead.Company),
		"{lead_title}", orUnknown(lead.Title),
		"{lead_industry}", orUnknown(lead.Industry),
		"{channel}", string(conv.Channel),
		"{tone_profile}", conv.Channel.ToneProfile(),
		"{transcript_tail}", tail,
		"{user_input}", userInput,
		"{state_turns}", fmt.Sprint(conv.StateTurns),
		"{state_questions}", fmt.Sprint(conv.StateQuestions),
		"{objection_type}", string(conv.LastObjection),
		"{bant_tier}", string(conv.BANT.Tier()),
	)

	p := r.Replace(header + stateTemplates[state] + footer)
	if len(p) > b.promptBudget {
		p = p[:b.promptBudget]
	}
	return p
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "their company"
	}
	return s
}

// header and footer bracket every state template.
const header = `You are AADOS, a voice sales agent from Algonox, on a live phone call with {lead_name} ({lead_title}) at {lead_company} ({lead_industry}).
Channel: {channel}. Tone: {tone_profile}.
Transcript so far:
{transcript_tail}
Prospect's last message: "{user_input}"

`

const footer = `

Rules: speak naturally for a phone call. 1-2 short sentences, at most one question. No bullet points, no lists, no features dump, no pricing unless asked. Never pretend to be the prospect. Never mention being an AI system beyond your name.`

// stateTemplates holds the per-state objective block. One template per
// state; the header/footer carry the shared context and guardrails.
var stateTemplates = map[salesflow.SalesState]string{
	salesflow.StateGreeting: `Objective: the opener already played. Confirm they can hear you and are willing to listen. If they sounded confused, clarify in one sentence that you are AADOS from Algonox working with {lead_industry} companies. Get a micro-acknowledgment; do not pitch anything.`,

	salesflow.StatePermission: `Objective: ask for explicit time permission. Request 3-5 minutes, offer an escape hatch ("if it's not relevant, just tell me"), and state one micro-agenda item about their {lead_industry} operations. Make it safe to say no. This is turn {state_turns} of the permission ask.`,

	salesflow.StateDiscoveryOpen: `Objective: ask discovery question number {state_questions} of a maximum of 2. Use only a safe question form: multiple choice, a range ("dozens or hundreds?"), a comparison, or an external attribution ("most {lead_industry} teams see X — does that match?"). Never ask "what's your biggest challenge" or any why-question.`,

	salesflow.StateDiscoveryProbe: `Objective: one deeper-but-safe probe grounded in what they actually said: frequency, scope, timeline, or a confirmation label ("so if I'm hearing right, it sounds like X — is that accurate?"). No why-questions, no multi-part setups. If their answers stay guarded, lower the stakes instead of pushing.`,

	salesflow.StatePainConfirm: `Objective: confirm the pain in one labeled sentence and check you got it right. One confirmation question, nothing new introduced.`,

	salesflow.StateValueBridge: `Objective: bridge from their confirmed pain to why you called. One sentence linking the pain to what Algonox does for {lead_industry} companies, then hand the turn back. No feature list.`,

	salesflow.StateValueProp: `Objective: deliver the core value proposition against their stated pain in plain language with one concrete outcome. BANT so far: {bant_tier}. End with a light check-in question, not a close.`,

	salesflow.StateDeepEngage: `Objective: they are engaged. Offer one proof point (a result with a similar {lead_industry} company) and probe what a useful next step would look like for them.`,

	salesflow.StateObjection: `Objective: address their {objection_type} objection. Acknowledge it as fair first, answer it honestly in one sentence without disparaging any competitor, then check whether that settles it. Turn {state_turns} on this objection.`,

	salesflow.StateAuthority: `Objective: they mentioned other decision makers. Ask who else should be involved and propose including them in the next step rather than pushing for a solo decision.`,

	salesflow.StateFollowUp: `Objective: they are hesitant. Offer a low-pressure follow-up: a short email summary or a call back at a better time. Ask which they'd prefer; accept a no gracefully.`,

	salesflow.StateScheduling: `Objective: lock a concrete next step. Propose a specific short meeting, ask for a day that works and the best email for the invite. One question only.`,

	salesflow.StateExit: `Objective: end the call gracefully in one warm sentence. Thank them for their time. No question, no pitch.`,
}
