// Package quality scores agent replies so the latency optimizations (quick
// templates, response cache) can be watched for conversation-quality drift.
//
// Each reply gets five weighted sub-scores (length, sentiment, question
// density, engagement, coherence) combined into an overall score in
// [0,100]. A sliding window of recent scores per reply source feeds a
// baseline alert: when a source's windowed mean drops more than the margin
// below the baseline, a QUALITY_ALERT event is logged. Alerts never change
// behavior automatically.
//
// Scoring is pure string work and callers still invoke it off the critical
// path.
package quality

import (
	"log/slog"
	"strings"
	"sync"
)

// Source tags where a reply came from.
type Source string

const (
	SourceQuick  Source = "quick"
	SourceCached Source = "cached"
	SourceLLM    Source = "llm"
)

// Status buckets an overall score.
type Status string

const (
	StatusExcellent  Status = "excellent"  // >= 85
	StatusGood       Status = "good"       // >= 75
	StatusAcceptable Status = "acceptable" // >= 65
	StatusDegraded   Status = "degraded"   // >= 50
	StatusPoor       Status = "poor"       // < 50
)

// StatusFor returns the Status bucket for an overall score.
func StatusFor(score int) Status {
	switch {
	case score >= 85:
		return StatusExcellent
	case score >= 75:
		return StatusGood
	case score >= 65:
		return StatusAcceptable
	case score >= 50:
		return StatusDegraded
	default:
		return StatusPoor
	}
}

// Score is the result of analyzing one reply.
type Score struct {
	Source          Source
	Overall         int
	Status          Status
	WordCount       int
	Length          float64
	Sentiment       float64
	QuestionDensity float64
	DensityScore    float64
	Engagement      float64
	Coherence       float64
}

const (
	// DefaultBaseline is the windowed-mean floor below which alerts fire.
	DefaultBaseline = 75

	// DefaultAlertMargin is how far below baseline the mean must fall.
	DefaultAlertMargin = 5

	// windowSize is the number of recent scores kept per source.
	windowSize = 50
)

// Marker tables. Tuned for short voice replies: neutral wording is the norm
// on a phone call, so the absence of sentiment markers scores 75 rather
// than penalizing the reply.
var (
	positiveMarkers = []string{
		"makes sense", "great", "perfect", "exactly", "agreed",
		"sounds good", "interested", "like this", "love that",
		"that's helpful", "very useful", "absolutely", "thanks",
		"no problem",
	}
	negativeMarkers = []string{
		"not interested", "don't need", "waste of time", "irrelevant",
		"boring", "confusing", "unhelpful", "bad", "terrible",
	}
	engagementMarkers = []string{
		"how", "when", "what", "tell me", "show me", "explain",
		"interested", "curious", "question", "ask",
	}
	stopWords = map[string]struct{}{
		"is": {}, "are": {}, "the": {}, "a": {}, "an": {}, "to": {},
		"of": {}, "in": {}, "for": {}, "and": {}, "or": {},
	}
)

// Scorer analyzes replies and maintains the per-source sliding windows and
// aggregate metrics. Safe for concurrent use.
type Scorer struct {
	baseline    int
	alertMargin int

	mu      sync.Mutex
	windows map[Source][]int
	agg     aggregate
}

type aggregate struct {
	total        int
	bySource     map[Source]int
	sumOverall   float64
	sumWords     float64
	sumSentiment float64
	sumDensity   float64
	sumEngage    float64
}

// Option is a functional option for Scorer.
type Option func(*Scorer)

// WithBaseline overrides the alert baseline score.
func WithBaseline(b int) Option {
	return func(s *Scorer) { s.baseline = b }
}

// WithAlertMargin overrides the alert margin.
func WithAlertMargin(m int) Option {
	return func(s *Scorer) { s.alertMargin = m }
}

// NewScorer returns a Scorer with the default baseline and margin.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		baseline:    DefaultBaseline,
		alertMargin: DefaultAlertMargin,
		windows:     make(map[Source][]int),
		agg:         aggregate{bySource: make(map[Source]int)},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score analyzes reply against the prospect's utterance without recording
// the result. Use Observe for the tracked path.
func (s *Scorer) Score(reply, userInput string, source Source) Score {
	replyLower := strings.ToLower(strings.TrimSpace(reply))
	userLower := strings.ToLower(strings.TrimSpace(userInput))

	words := len(strings.Fields(reply))
	length := scoreLength(words)
	sentiment := scoreSentiment(replyLower)

	questions := strings.Count(reply, "?")
	sentences := countSentences(reply)
	density := float64(questions) / float64(sentences)
	densityScore := scoreDensity(density)

	engagement := minF(100, float64(countMarkers(replyLower, engagementMarkers))*20)
	coherence := scoreCoherence(replyLower, userLower)

	overall := int(length*0.20 + sentiment*0.25 + densityScore*0.20 +
		engagement*0.15 + coherence*0.20)

	return Score{
		Source:          source,
		Overall:         overall,
		Status:          StatusFor(overall),
		WordCount:       words,
		Length:          length,
		Sentiment:       sentiment,
		QuestionDensity: density,
		DensityScore:    densityScore,
		Engagement:      engagement,
		Coherence:       coherence,
	}
}

// Observe scores the reply, records it in the per-source window and the
// aggregates, and fires a QUALITY alert if the windowed mean has fallen
// below baseline by more than the margin.
func (s *Scorer) Observe(reply, userInput string, source Source) Score {
	sc := s.Score(reply, userInput, source)

	s.mu.Lock()
	w := append(s.windows[source], sc.Overall)
	if len(w) > windowSize {
		w = w[len(w)-windowSize:]
	}
	s.windows[source] = w

	s.agg.total++
	s.agg.bySource[source]++
	s.agg.sumOverall += float64(sc.Overall)
	s.agg.sumWords += float64(sc.WordCount)
	s.agg.sumSentiment += sc.Sentiment
	s.agg.sumDensity += sc.QuestionDensity
	s.agg.sumEngage += sc.Engagement

	mean := meanOf(w)
	s.mu.Unlock()

	slog.Debug("quality scored",
		"event", "QUALITY",
		"source", source,
		"score", sc.Overall,
		"status", sc.Status,
	)

	if len(w) >= 5 && mean < float64(s.baseline-s.alertMargin) {
		slog.Warn("reply quality below baseline",
			"event", "QUALITY_ALERT",
			"source", source,
			"window_mean", mean,
			"baseline", s.baseline,
			"margin", s.alertMargin,
		)
	}

	return sc
}

// Report is the aggregate snapshot served on the operator metrics endpoint.
type Report struct {
	TotalResponses       int            `json:"total_responses"`
	ResponseDistribution map[string]int `json:"response_distribution"`
	QualityMetrics       ReportMetrics  `json:"quality_metrics"`
	QualityStatus        Status         `json:"quality_status"`
}

// ReportMetrics holds the running averages inside a Report.
type ReportMetrics struct {
	AvgOverallScore    float64 `json:"avg_overall_score"`
	AvgLengthWords     float64 `json:"avg_length_words"`
	AvgSentimentScore  float64 `json:"avg_sentiment_score"`
	AvgQuestionDensity float64 `json:"avg_question_density"`
	AvgEngagementLevel float64 `json:"avg_engagement_level"`
}

// Report returns the aggregate quality snapshot.
func (s *Scorer) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Report{
		TotalResponses: s.agg.total,
		ResponseDistribution: map[string]int{
			string(SourceQuick):  s.agg.bySource[SourceQuick],
			string(SourceCached): s.agg.bySource[SourceCached],
			string(SourceLLM):    s.agg.bySource[SourceLLM],
		},
	}
	if s.agg.total > 0 {
		n := float64(s.agg.total)
		r.QualityMetrics = ReportMetrics{
			AvgOverallScore:    s.agg.sumOverall / n,
			AvgLengthWords:     s.agg.sumWords / n,
			AvgSentimentScore:  s.agg.sumSentiment / n,
			AvgQuestionDensity: s.agg.sumDensity / n,
			AvgEngagementLevel: s.agg.sumEngage / n,
		}
	}
	r.QualityStatus = StatusFor(int(r.QualityMetrics.AvgOverallScore))
	return r
}

// ─── Sub-score functions ─────────────────────────────────────────────────────

// scoreLength scores word count against the voice-reply sweet spot. Replies
// are capped near 55 words by the cleaner, so the bands sit far lower than
// they would for text chat.
func scoreLength(words int) float64 {
	switch {
	case words < 4:
		return 30
	case words <= 8:
		return 90
	case words <= 30:
		return 100
	case words <= 55:
		return 80
	default:
		return 50
	}
}

func scoreSentiment(replyLower string) float64 {
	pos := countMarkers(replyLower, positiveMarkers)
	neg := countMarkers(replyLower, negativeMarkers)
	if pos+neg == 0 {
		return 75 // neutral wording is the norm on a call
	}
	return minF(100, float64(pos)/float64(pos+neg)*100)
}

func scoreDensity(density float64) float64 {
	switch {
	case density == 0:
		return 70
	case density >= 0.2 && density <= 0.8:
		return 100
	case density < 0.2:
		return 80
	default:
		return 60 // interrogation
	}
}

func scoreCoherence(replyLower, userLower string) float64 {
	userWords := contentWords(userLower)
	if len(userWords) == 0 {
		return 80 // nothing to relate to
	}
	replyWords := contentWords(replyLower)
	overlap := 0
	for w := range userWords {
		if _, ok := replyWords[w]; ok {
			overlap++
		}
	}
	ratio := float64(overlap) / float64(len(userWords))
	return minF(100, 70+ratio*30)
}

func contentWords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,!?;:'\"—-")
		if w == "" {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func countSentences(text string) int {
	n := 0
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			n++
		}
	}
	return max(1, n)
}

func countMarkers(text string, markers []string) int {
	n := 0
	for _, m := range markers {
		if strings.Contains(text, m) {
			n++
		}
	}
	return n
}

func meanOf(w []int) float64 {
	if len(w) == 0 {
		return 0
	}
	sum := 0
	for _, v := range w {
		sum += v
	}
	return float64(sum) / float64(len(w))
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
