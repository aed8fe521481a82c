package salesflow

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// ObjectionType classifies a detected objection.
type ObjectionType string

const (
	ObjectionNone        ObjectionType = ""
	ObjectionPrice       ObjectionType = "price"
	ObjectionTiming      ObjectionType = "timing"
	ObjectionAuthority   ObjectionType = "authority"
	ObjectionCompetition ObjectionType = "competition"
)

// Intents is the flags record produced by one detection pass over an
// utterance. Multiple intents may fire simultaneously; the router gives
// hostile / not-interested / no-time / tech-issue precedence.
type Intents struct {
	NoTime        bool
	JustTell      bool
	Hostile       bool
	NotInterested bool
	TechIssue     bool
	WhoIsThis     bool
	PermissionYes bool
	PermissionNo  bool
	Guarded       bool
	ConfirmYes    bool
	Resonance     bool
	Hesitation    bool
	Schedule      bool

	// Objection is the objection class, or ObjectionNone.
	Objection ObjectionType

	// Authority fires on multi-party wording ("procurement", "sign off").
	Authority bool

	// Empty is set when the carrier delivered no speech at all.
	Empty bool
}

// HardStop reports whether any intent that forces an exit path fired.
func (in Intents) HardStop() bool {
	return in.Hostile || in.NotInterested || in.NoTime
}

// ─── Detector ────────────────────────────────────────────────────────────────

// Detector performs single-pass intent classification. Pattern tables are
// built once in NewDetector; Detect itself allocates only the lowercased
// copy of the utterance and its token split, keeping a 500-character
// utterance comfortably under half a millisecond.
//
// Carrier STT routinely garbles keywords ("shedule", "calender",
// "compeditor"), so single-word patterns also match fuzzily: a token whose
// Jaro-Winkler similarity to the pattern exceeds fuzzyThreshold counts as a
// hit. Phrase patterns (with spaces) stay exact — fuzzing across word
// boundaries produces far too many false positives.
type Detector struct {
	fuzzyThreshold float64
}

// fuzzyMinLen is the minimum pattern length eligible for fuzzy matching.
// Short words like "yes" or "no" must match exactly.
const fuzzyMinLen = 6

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithFuzzyThreshold overrides the Jaro-Winkler similarity required for a
// fuzzy single-word match. Default: 0.90.
func WithFuzzyThreshold(t float64) DetectorOption {
	return func(d *Detector) { d.fuzzyThreshold = t }
}

// NewDetector returns a Detector ready for concurrent use.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{fuzzyThreshold: 0.90}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Pattern tables. Phrases match by substring containment against the
// normalized utterance; single words shorter than fuzzyMinLen match whole
// tokens only, longer single words get substring plus a fuzzy token pass.
var (
	noTimePatterns = []string{
		"no time", "can't talk", "cant talk", "busy", "in a meeting",
		"call back later", "not now",
	}
	justTellPatterns = []string{
		"just tell me", "what do you want", "get to the point", "say it",
		"tell me what you want",
	}
	hostilePatterns = []string{
		"stop calling", "don't call", "dont call", "remove me",
		"leave me alone", "scam",
	}
	notInterestedPatterns = []string{
		"not interested", "no interest", "no thanks", "don't need",
		"dont need", "we're good", "we are good",
	}
	techIssuePatterns = []string{
		"can't hear", "cant hear", "hard to hear", "breaking up",
		"bad connection", "connection issue", "cutting out", "static",
		"echo", "speak up",
	}
	whoIsThisPatterns = []string{
		"who is this", "who are you", "what is this about",
		"what's this about", "what is this",
	}
	permissionYesPatterns = []string{
		"sure", "okay", "ok", "go ahead", "yeah", "yes", "yep", "fine",
		"a minute", "quickly",
	}
	permissionNoPatterns = []string{
		"no", "not now", "can't", "cant", "don't", "dont", "busy",
	}
	guardedPatterns = []string{
		"not sure", "hard to say", "depends", "maybe", "can't share",
		"cant share", "prefer not",
	}
	confirmYesExact = []string{
		"yes", "yeah", "yep", "correct", "right", "exactly",
	}
	confirmYesPatterns = []string{"that's accurate", "sounds right"}
	resonancePatterns  = []string{
		"makes sense", "that's true", "exactly", "right", "we see that",
		"agreed",
	}
	hesitationPatterns = []string{
		"maybe", "not sure", "need to think", "send info", "email me",
		"circle back", "later",
	}
	schedulePatterns = []string{
		"send invite", "calendar", "book", "schedule", "demo", "meeting",
		"invite", "send times", "tomorrow", "next week", "monday",
		"tuesday", "wednesday", "thursday", "friday",
	}
	authorityPatterns = []string{
		"who else", "procurement", "security", "approval", "sign off",
		"signoff", "legal",
	}

	objectionPricePatterns = []string{
		"expensive", "cost", "costs", "budget", "afford", "price", "pricing",
	}
	objectionTimingPatterns = []string{
		"not now", "later", "next quarter", "need time", "think about",
		"follow up later",
	}
	objectionAuthorityPatterns = []string{
		"talk to", "check with", "boss", "manager", "leadership",
		"team needs",
	}
	objectionCompetitionPatterns = []string{
		"using", "already have", "competitor", "another tool",
		"other solution", "we use",
	}
)

// Normalize lowercases s, trims it, and collapses internal whitespace runs
// to single spaces. Normalize is idempotent.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// tokenCutset is the edge punctuation stripped from tokens before matching.
// Apostrophes stay so "don't" survives intact.
const tokenCutset = `.,!?;:"()`

// Detect classifies utterance in a single pass and returns the intent flags.
func (d *Detector) Detect(utterance string) Intents {
	text := Normalize(utterance)
	tokens := strings.Fields(text)
	for i, t := range tokens {
		tokens[i] = strings.Trim(t, tokenCutset)
	}

	var in Intents
	if text == "" {
		in.Empty = true
		in.Guarded = true
		return in
	}

	in.NoTime = d.anyMatch(text, tokens, noTimePatterns)
	in.JustTell = d.anyMatch(text, tokens, justTellPatterns)
	in.Hostile = d.anyMatch(text, tokens, hostilePatterns)
	in.NotInterested = d.anyMatch(text, tokens, notInterestedPatterns)
	in.TechIssue = d.anyMatch(text, tokens, techIssuePatterns)
	in.WhoIsThis = d.anyMatch(text, tokens, whoIsThisPatterns)
	in.PermissionYes = d.anyMatch(text, tokens, permissionYesPatterns)
	in.PermissionNo = d.anyMatch(text, tokens, permissionNoPatterns) && !in.PermissionYes
	in.ConfirmYes = exactIn(strings.Trim(text, tokenCutset), confirmYesExact) || d.anyMatch(text, tokens, confirmYesPatterns)
	in.Resonance = d.anyMatch(text, tokens, resonancePatterns)
	in.Hesitation = d.anyMatch(text, tokens, hesitationPatterns)
	in.Schedule = d.anyMatch(text, tokens, schedulePatterns)
	in.Authority = d.anyMatch(text, tokens, authorityPatterns)

	// Guarded: near-empty answers count as guarded even without a pattern hit.
	in.Guarded = len(tokens) <= 2 || d.anyMatch(text, tokens, guardedPatterns)

	switch {
	case d.anyMatch(text, tokens, objectionPricePatterns):
		in.Objection = ObjectionPrice
	case d.anyMatch(text, tokens, objectionTimingPatterns):
		in.Objection = ObjectionTiming
	case d.anyMatch(text, tokens, objectionAuthorityPatterns):
		in.Objection = ObjectionAuthority
	case d.anyMatch(text, tokens, objectionCompetitionPatterns):
		in.Objection = ObjectionCompetition
	}

	return in
}

// anyMatch reports whether any pattern matches text. Phrase patterns use
// substring containment. Short single words must match a whole token —
// "no" inside "now" or "busy" inside "business" is not a hit. Longer
// single words use containment plus a fuzzy pass over the tokens.
func (d *Detector) anyMatch(text string, tokens []string, patterns []string) bool {
	for _, p := range patterns {
		single := !strings.ContainsRune(p, ' ')
		if single && len(p) < fuzzyMinLen {
			for _, t := range tokens {
				if t == p {
					return true
				}
			}
			continue
		}
		if strings.Contains(text, p) {
			return true
		}
		if single {
			for _, t := range tokens {
				if len(t) >= fuzzyMinLen && matchr.JaroWinkler(t, p, false) >= d.fuzzyThreshold {
					return true
				}
			}
		}
	}
	return false
}

// exactIn reports whether text equals one of the candidates exactly.
func exactIn(text string, candidates []string) bool {
	for _, c := range candidates {
		if text == c {
			return true
		}
	}
	return false
}
