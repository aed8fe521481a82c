package quality

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		score int
		want  Status
	}{
		{92, StatusExcellent},
		{85, StatusExcellent},
		{84, StatusGood},
		{75, StatusGood},
		{70, StatusAcceptable},
		{65, StatusAcceptable},
		{60, StatusDegraded},
		{50, StatusDegraded},
		{49, StatusPoor},
		{0, StatusPoor},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.score); got != tt.want {
			t.Errorf("StatusFor(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestScoreWellFormedReply(t *testing.T) {
	s := NewScorer()
	sc := s.Score(
		"That makes sense. How do you currently handle invoice approvals when volume spikes?",
		"we struggle with invoices during month end",
		SourceLLM,
	)
	if sc.Overall < 80 {
		t.Errorf("Overall = %d, want >= 80 for a well-formed discovery reply", sc.Overall)
	}
	if sc.Sentiment != 100 {
		t.Errorf("Sentiment = %v, want 100", sc.Sentiment)
	}
	if sc.DensityScore != 100 {
		t.Errorf("DensityScore = %v, want 100 for one question in two sentences", sc.DensityScore)
	}
}

func TestScoreShortNegativeReply(t *testing.T) {
	s := NewScorer()
	sc := s.Score("bad", "tell me about pricing", SourceLLM)
	if sc.Overall >= 50 {
		t.Errorf("Overall = %d, want < 50", sc.Overall)
	}
	if sc.Status != StatusPoor {
		t.Errorf("Status = %q, want %q", sc.Status, StatusPoor)
	}
}

func TestScoreNeutralToneIsNotPenalized(t *testing.T) {
	s := NewScorer()
	sc := s.Score("Got it. Can you hear me okay?", "", SourceQuick)
	if sc.Sentiment != 75 {
		t.Errorf("Sentiment = %v, want neutral 75", sc.Sentiment)
	}
	if sc.Overall < 70 {
		t.Errorf("Overall = %d, want >= 70 for a clean short reply", sc.Overall)
	}
}

func TestScoreQuestionDensity(t *testing.T) {
	s := NewScorer()

	interrogation := s.Score("Why? When? How much? Who decides?", "hello", SourceLLM)
	if interrogation.DensityScore != 60 {
		t.Errorf("interrogation DensityScore = %v, want 60", interrogation.DensityScore)
	}

	statement := s.Score("We help teams cut manual invoice work in half.", "ok", SourceLLM)
	if statement.DensityScore != 70 {
		t.Errorf("statement DensityScore = %v, want 70", statement.DensityScore)
	}
}

func TestScoreCoherenceTracksUserWords(t *testing.T) {
	s := NewScorer()

	onTopic := s.Score(
		"Invoice approvals are exactly where we start. What does your approval flow look like today?",
		"our invoice approvals take forever",
		SourceLLM,
	)
	offTopic := s.Score(
		"We also offer a referral program with quarterly bonuses.",
		"our invoice approvals take forever",
		SourceLLM,
	)
	if onTopic.Coherence <= offTopic.Coherence {
		t.Errorf("Coherence on-topic %v <= off-topic %v", onTopic.Coherence, offTopic.Coherence)
	}
}

func TestObserveReport(t *testing.T) {
	s := NewScorer()
	s.Observe("Thanks for your time, and have a great day.", "goodbye", SourceQuick)
	s.Observe("Great. Before we continue, can you hear me clearly?", "yes", SourceQuick)
	s.Observe("That makes sense. How do you handle approvals today?", "we do approvals by hand", SourceLLM)

	r := s.Report()
	if r.TotalResponses != 3 {
		t.Fatalf("TotalResponses = %d, want 3", r.TotalResponses)
	}
	if r.ResponseDistribution["quick"] != 2 || r.ResponseDistribution["llm"] != 1 {
		t.Errorf("ResponseDistribution = %v, want quick=2 llm=1", r.ResponseDistribution)
	}
	if r.QualityMetrics.AvgOverallScore < 65 {
		t.Errorf("AvgOverallScore = %v, want >= 65", r.QualityMetrics.AvgOverallScore)
	}
	if r.QualityStatus == StatusPoor {
		t.Errorf("QualityStatus = %q, want better than poor", r.QualityStatus)
	}
}

func TestObserveWindowEviction(t *testing.T) {
	s := NewScorer()
	for i := 0; i < windowSize+10; i++ {
		s.Observe("That makes sense. What does your setup look like today?", "tell me", SourceLLM)
	}
	s.mu.Lock()
	n := len(s.windows[SourceLLM])
	s.mu.Unlock()
	if n != windowSize {
		t.Errorf("window length = %d, want %d", n, windowSize)
	}
	if r := s.Report(); r.TotalResponses != windowSize+10 {
		t.Errorf("TotalResponses = %d, want %d", r.TotalResponses, windowSize+10)
	}
}

// recordingHandler captures warn-and-above records for alert assertions.
type recordingHandler struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "event" {
			h.events = append(h.events, a.Value.String())
		}
		return true
	})
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestObserveAlertsBelowBaseline(t *testing.T) {
	h := &recordingHandler{}
	prev := slog.Default()
	slog.SetDefault(slog.New(h))
	defer slog.SetDefault(prev)

	s := NewScorer()
	for i := 0; i < 6; i++ {
		s.Observe("bad", "tell me about pricing", SourceLLM)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	found := false
	for _, e := range h.events {
		if e == "QUALITY_ALERT" {
			found = true
		}
	}
	if !found {
		t.Error("no QUALITY_ALERT event after sustained low scores")
	}
}
