package salesflow

import "strings"

// Tier buckets the overall BANT score into lead temperature bands.
type Tier string

const (
	TierHot      Tier = "hot_lead"      // >= 75
	TierWarm     Tier = "warm_lead"     // 50–75
	TierLukewarm Tier = "lukewarm"      // 30–50
	TierCold     Tier = "cold_lead"     // < 30
)

// BANT holds the four qualification sub-scores, each in [0,100].
// Sub-scores are monotone non-decreasing within one call: once a signal is
// heard it is never unlearned, so every update goes through max().
type BANT struct {
	Budget    int
	Authority int
	Need      int
	Timeline  int
}

// Overall is the mean of the four sub-scores.
func (b BANT) Overall() int {
	return (b.Budget + b.Authority + b.Need + b.Timeline) / 4
}

// Tier returns the temperature band for the overall score.
func (b BANT) Tier() Tier {
	switch ov := b.Overall(); {
	case ov >= 75:
		return TierHot
	case ov >= 50:
		return TierWarm
	case ov >= 30:
		return TierLukewarm
	default:
		return TierCold
	}
}

var (
	budgetContext  = []string{"budget", "allocated", "spend", "cost", "$", "usd"}
	budgetStrong   = []string{"100k", "150k", "200k"}
	authorityOwner = []string{"i decide", "my decision", "i approve", "i can sign", "i own"}
	authorityTitle = []string{"vp", "director", "head of", "founder", "ceo"}
	authorityDefer = []string{"talk to my", "check with", "need approval"}
	timelineUrgent = []string{"urgent", "asap", "this month", "this quarter", "immediately"}
	timelineSoon   = []string{"soon", "next quarter", "planning", "next month"}
	painWords      = []string{"challenge", "problem", "difficult", "frustrating", "slow", "manual", "pain", "issue"}
)

// Update folds one utterance into the sub-scores. painPoints is the running
// count of distinct pain points heard so far this call (including this
// utterance); it drives the Need score.
func (b *BANT) Update(utterance string, painPoints int) {
	text := Normalize(utterance)

	if containsAny(text, budgetContext) {
		if containsAny(text, budgetStrong) {
			b.Budget = max(b.Budget, 80)
		} else {
			b.Budget = max(b.Budget, 55)
		}
	}

	switch {
	case containsAny(text, authorityOwner):
		b.Authority = max(b.Authority, 85)
	case containsAny(text, authorityTitle):
		b.Authority = max(b.Authority, 70)
	case containsAny(text, authorityDefer):
		b.Authority = max(b.Authority, 35)
	}

	switch {
	case painPoints >= 3:
		b.Need = max(b.Need, 88)
	case painPoints >= 2:
		b.Need = max(b.Need, 70)
	case painPoints >= 1:
		b.Need = max(b.Need, 50)
	}

	switch {
	case containsAny(text, timelineUrgent):
		b.Timeline = max(b.Timeline, 85)
	case containsAny(text, timelineSoon):
		b.Timeline = max(b.Timeline, 65)
	}
}

// MentionsPain reports whether the utterance names a pain point.
func MentionsPain(utterance string) bool {
	return containsAny(Normalize(utterance), painWords)
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
