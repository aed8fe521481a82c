// Package latency measures the turn pipeline. Each webhook turn gets one
// Turn tracker; stages mark themselves as they finish and Done emits a
// single LATENCY log event with every stage duration, so one grep line per
// turn tells the whole story.
package latency

import (
	"log/slog"
	"sync"
	"time"
)

// Stage names recorded by the turn pipeline.
const (
	StagePromptBuilt   = "prompt_built"
	StageLLMFirstToken = "llm_first_token"
	StageLLMDone       = "llm_done"
	StageTTSDone       = "tts_done"
	StagePersistDone   = "persist_done"
)

// Turn tracks one webhook turn from receipt to response. Safe for
// concurrent use; the LLM and TTS stages mark from different goroutines.
type Turn struct {
	callID string
	source string
	start  time.Time
	clock  func() time.Time

	mu     sync.Mutex
	stages map[string]time.Duration
	done   bool
}

// Option is a functional option for NewTurn.
type Option func(*Turn)

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(t *Turn) {
		t.clock = clock
		t.start = clock()
	}
}

// NewTurn starts a tracker for one turn of the given call.
func NewTurn(callID string, opts ...Option) *Turn {
	t := &Turn{
		callID: callID,
		clock:  time.Now,
		start:  time.Now(),
		stages: make(map[string]time.Duration),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Mark records the elapsed time from turn start to now under the stage
// name. The first mark for a stage wins; retries do not rewrite history.
func (t *Turn) Mark(stage string) {
	elapsed := t.clock().Sub(t.start)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.stages[stage]; !seen {
		t.stages[stage] = elapsed
	}
}

// SetSource records which pipeline tier produced the reply.
func (t *Turn) SetSource(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.source = source
}

// Elapsed returns the duration recorded for a stage, or zero if the stage
// never ran.
func (t *Turn) Elapsed(stage string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stages[stage]
}

// Total returns the time since turn start.
func (t *Turn) Total() time.Duration {
	return t.clock().Sub(t.start)
}

// Done emits the LATENCY event. Calling it more than once logs once.
func (t *Turn) Done() {
	total := t.clock().Sub(t.start)

	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	attrs := []any{
		"event", "LATENCY",
		"call_id", t.callID,
		"source", t.source,
		"total_ms", total.Milliseconds(),
	}
	for _, stage := range []string{
		StagePromptBuilt, StageLLMFirstToken, StageLLMDone,
		StageTTSDone, StagePersistDone,
	} {
		if d, ok := t.stages[stage]; ok {
			attrs = append(attrs, stage+"_ms", d.Milliseconds())
		}
	}
	t.mu.Unlock()

	slog.Info("turn complete", attrs...)
}
