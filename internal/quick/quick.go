// Package quick provides deterministic template replies for states where an
// LLM round-trip buys nothing: the greeting follow-up (S0), short permission
// exchanges (S1), and the exit (S12). It also carries the canned replies for
// high-priority interrupts (hostile, tech issue, identification).
//
// Templates are keyed by (state, channel tone): the same input cue gets
// different wording on a cold call, a warm referral, and an inbound
// callback. Replies are 5–15 words, contain at most one question, and
// slot-fill the lead's first name with a neutral fallback. Lookup is pure
// table work and runs in well under a millisecond.
package quick

import (
	"strings"

	"github.com/algonox/aados/internal/salesflow"
)

// maxQuickInputLen is the S1 cutoff: longer pushback needs the LLM.
const maxQuickInputLen = 50

// Eligible reports whether (state, userInput) can be answered from the
// template table.
func Eligible(state salesflow.SalesState, userInput string) bool {
	switch state {
	case salesflow.StateGreeting, salesflow.StateExit:
		return true
	case salesflow.StatePermission:
		return len(userInput) < maxQuickInputLen
	}
	return false
}

// FirstName extracts the lead's first name, falling back to a neutral
// address when the lead row has none.
func FirstName(leadName string) string {
	name := strings.TrimSpace(leadName)
	if name == "" {
		return "there"
	}
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

// byTone selects the wording variant for the channel's tone profile.
func byTone(ch salesflow.Channel, direct, warm, neutral string) string {
	switch ch.ToneProfile() {
	case "helpful_direct":
		return direct
	case "warm_confident":
		return warm
	default:
		return neutral
	}
}

// Opener is the scripted first utterance played when the carrier connects.
func Opener(leadName string, ch salesflow.Channel) string {
	name := FirstName(leadName)
	return byTone(ch,
		"Hi "+name+", this is AADOS from Algonox — following up on your inquiry. Is now still a good moment?",
		"Hi "+name+" — AADOS from Algonox. We were introduced through a mutual contact. Did I catch you at a bad time?",
		"Hi "+name+" — this is AADOS calling from Algonox. Did I catch you at a bad time?",
	)
}

// Reply returns the template reply for (state, channel tone, userInput),
// keyed on simple input cues. ok is false when the state has no quick path;
// callers then fall through to the cache and LLM tiers.
func Reply(state salesflow.SalesState, ch salesflow.Channel, userInput, leadName string) (reply string, ok bool) {
	if !Eligible(state, userInput) {
		return "", false
	}
	in := salesflow.Normalize(userInput)

	switch state {
	case salesflow.StateGreeting:
		switch {
		case containsAny(in, "who", "what", "calling"):
			return byTone(ch,
				"AADOS from Algonox — you asked us about operations efficiency. Is now a good moment?",
				"This is AADOS from Algonox — we were put in touch through a mutual contact. Bad time?",
				"This is AADOS from Algonox — we work with companies on operations efficiency. Did I catch you at a bad time?",
			), true
		case containsAny(in, "yes", "yeah", "okay", "ok", "sure"):
			return "Great. Before we continue — can you hear me clearly?", true
		default:
			return "Got it, " + FirstName(leadName) + ". Can you hear me okay?", true
		}

	case salesflow.StatePermission:
		switch {
		case containsAny(in, "no time", "busy", "can't", "cant", "not now"):
			return byTone(ch,
				"Understood — would a two-line email overview work better, or shall I let you go?",
				"No problem at all. Happy to catch you another time — or would a quick email overview help?",
				"No problem at all. Would a quick email overview be helpful, or shall I let you go?",
			), true
		case containsAny(in, "yes", "yeah", "okay", "ok", "sure", "go"):
			return byTone(ch,
				"Great. One question about your current setup, and I'll keep this short. Sound good?",
				"Wonderful. I'll ask one question about your setup, and based on that I'll share something useful or let you go. Sound good?",
				"Perfect. I'll ask one question about your current setup, and based on that I'll either share something useful or get out of your way. Sound good?",
			), true
		case containsAny(in, "minute", "few", "quick", "short"):
			return "Perfect. Quick question: is this something you handle in your role, or do you work with someone else on this?", true
		default:
			return byTone(ch,
				"Thanks, "+FirstName(leadName)+". Do you have a couple of minutes now?",
				"Appreciate it, "+FirstName(leadName)+". Do you have a few minutes?",
				"Thanks for your time, "+FirstName(leadName)+". Do you have a few minutes?",
			), true
		}

	case salesflow.StateExit:
		switch {
		case containsAny(in, "thanks", "thank you", "bye", "goodbye"):
			return "Take care, and have a great day.", true
		case containsAny(in, "not interested", "remove me"):
			return "Totally understand. I'll remove you from our list. Have a great day.", true
		case containsAny(in, "email", "send info"):
			return "I'll send you something via email. Thanks for the time.", true
		default:
			return byTone(ch,
				"Thanks for the time — everything's in your inbox if you need it. Have a good one.",
				"Really glad we spoke. Thanks for the time, and have a great day.",
				"Thanks for your time, and have a great day.",
			), true
		}
	}

	return "", false
}

// InterruptReply returns the canned reply for a routing interrupt.
func InterruptReply(kind salesflow.Interrupt, leadCompany string) (string, bool) {
	switch kind {
	case salesflow.InterruptHostile:
		return "Understood — sorry to bother you. I'll remove you from our list. Have a good day.", true
	case salesflow.InterruptTechRepair:
		return "Sorry — you're breaking up a bit. Can you hear me clearly?", true
	case salesflow.InterruptTechExit:
		return "No worries — seems like the connection isn't great. I'll let you go. Have a good day.", true
	case salesflow.InterruptNotInterested:
		return "Totally fair — thanks for the quick response. I'll let you go.", true
	case salesflow.InterruptNoTime:
		return "No problem at all — thanks for your time. I'll let you go.", true
	case salesflow.InterruptWhoIsThis:
		company := strings.TrimSpace(leadCompany)
		if company == "" {
			return "This is AADOS from Algonox — we help operations teams cut manual work. Is now a bad time?", true
		}
		return "This is AADOS from Algonox — we work with companies like " + company + " on operations. Is now a bad time?", true
	}
	return "", false
}

// Reprompt is the gentle nudge used when the carrier delivers empty speech
// in a non-terminal state.
func Reprompt(leadName string) string {
	return "Sorry, " + FirstName(leadName) + " — I didn't catch that. Could you say that again?"
}

// FallbackApology is the safe template used when the LLM tier fails
// entirely. The prospect must never hear an error.
const FallbackApology = "Sorry, you caught me mid-thought. Could you say that once more?"

// WarmupPhrases is the fixed set of common utterances pre-synthesized at
// startup so the opening and closing of every call hits the TTS cache.
var WarmupPhrases = []string{
	"Hi there — this is AADOS calling from Algonox. Did I catch you at a bad time?",
	"Before we continue — can you hear me clearly?",
	"Got it. What's the best way to think about that on your side?",
	"No problem at all — thanks for your time. I'll let you go.",
	"Totally fair — thanks for the quick response. I'll let you go.",
	"I hear you — that's a fair concern.",
	"Thanks for your time, and have a great day.",
}

func containsAny(text string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
