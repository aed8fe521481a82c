// Package engine produces the agent's reply for one turn through a
// three-tier pipeline: deterministic quick templates, a TTL response cache,
// and a streaming LLM with text-to-speech overlapped on the first sentence.
//
// The tiers trade latency against generality. Quick templates answer the
// scripted states in microseconds, the cache answers repeated
// (state, lead, utterance) turns without a provider call, and the LLM tier
// streams tokens under a per-state deadline; as soon as the first sentence
// boundary appears in the stream, its synthesis starts in parallel with the
// remaining tokens, so common one-sentence replies finish speech and text at
// the same time.
//
// The engine never surfaces a provider failure to the prospect: a dead LLM
// tier degrades to a safe apology template, and a dead TTS tier returns a
// text-only result the handler renders as carrier-native speech.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/algonox/aados/internal/latency"
	"github.com/algonox/aados/internal/observe"
	"github.com/algonox/aados/internal/prompt"
	"github.com/algonox/aados/internal/quality"
	"github.com/algonox/aados/internal/quick"
	"github.com/algonox/aados/internal/resilience"
	"github.com/algonox/aados/internal/respcache"
	"github.com/algonox/aados/internal/salesflow"
	"github.com/algonox/aados/internal/store"
	"github.com/algonox/aados/internal/ttscache"
	"github.com/algonox/aados/pkg/provider/llm"
	"github.com/algonox/aados/pkg/provider/tts"
)

// Source tags which tier produced a reply. Aliased to the quality package's
// type so results feed the scorer directly.
type Source = quality.Source

const (
	SourceQuick  = quality.SourceQuick
	SourceCached = quality.SourceCached
	SourceLLM    = quality.SourceLLM

	// SourceFallback marks the apology template used when the LLM tier
	// failed entirely.
	SourceFallback Source = "fallback"
)

// DefaultTTSTimeout is the hard deadline for one synthesis call.
const DefaultTTSTimeout = 15 * time.Second

// defaultTemperature for reply generation. Warm enough to avoid robotic
// repetition across calls, cool enough to stay on script.
const defaultTemperature = 0.7

// Result is one engine reply.
type Result struct {
	// Text is the cleaned reply.
	Text string

	// Source is the tier that produced Text.
	Source Source

	// AudioFile is the synthesized audio's file name in the TTS cache
	// directory, empty when synthesis failed or no TTS is wired. The
	// handler turns it into a Play URL or falls back to carrier speech.
	AudioFile string
}

// Engine is the three-tier response pipeline. Safe for concurrent use; all
// fields are read-only after construction.
type Engine struct {
	llm     llm.Provider
	tts     tts.Provider
	prompts *prompt.Builder
	replies *respcache.Cache
	audio   *ttscache.Cache
	scorer  *quality.Scorer
	metrics *observe.Metrics

	voice      string
	speed      float64
	format     string
	serialTTS  bool
	ttsTimeout time.Duration
	ttsRetry   resilience.RetryConfig
}

// Option is a functional option for New.
type Option func(*Engine)

// WithPromptBuilder overrides the prompt builder.
func WithPromptBuilder(b *prompt.Builder) Option {
	return func(e *Engine) { e.prompts = b }
}

// WithResponseCache wires the reply cache tier. Nil disables the tier.
func WithResponseCache(c *respcache.Cache) Option {
	return func(e *Engine) { e.replies = c }
}

// WithTTSCache wires the audio cache. Nil disables synthesis entirely and
// every result is text-only.
func WithTTSCache(c *ttscache.Cache) Option {
	return func(e *Engine) { e.audio = c }
}

// WithScorer wires the quality scorer. Nil disables scoring.
func WithScorer(s *quality.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithVoice sets the synthesis voice, speed, and audio format.
func WithVoice(voice string, speed float64, format string) Option {
	return func(e *Engine) {
		e.voice = voice
		e.speed = speed
		e.format = format
	}
}

// WithSerialTTS disables the first-sentence synthesis overlap; speech is
// synthesized only after the full reply is collected. Compatibility path
// for providers that throttle concurrent synthesis.
func WithSerialTTS(serial bool) Option {
	return func(e *Engine) { e.serialTTS = serial }
}

// WithTTSTimeout overrides the per-synthesis deadline.
func WithTTSTimeout(d time.Duration) Option {
	return func(e *Engine) { e.ttsTimeout = d }
}

// New builds an Engine over the given providers. ttsP may be nil for
// text-only operation.
func New(llmP llm.Provider, ttsP tts.Provider, opts ...Option) *Engine {
	e := &Engine{
		llm:        llmP,
		tts:        ttsP,
		prompts:    prompt.NewBuilder(),
		voice:      "alloy",
		speed:      1.0,
		format:     "mp3",
		ttsTimeout: DefaultTTSTimeout,
		ttsRetry:   resilience.RetryConfig{Name: "tts"},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Respond produces the reply for one turn. turn receives the stage marks;
// the caller owns calling its Done.
//
// Respond cannot fail: every tier failure degrades internally — a dead LLM
// tier yields the apology template, a dead TTS tier yields a text-only
// Result — so the returned Result is always speakable.
func (e *Engine) Respond(ctx context.Context, turn *latency.Turn, state salesflow.SalesState, lead *store.Lead, conv *salesflow.Conversation, transcript, userInput string) Result {
	// Tier 1: quick templates.
	if reply, ok := quick.Reply(state, conv.Channel, userInput, lead.Name); ok {
		turn.Mark(latency.StagePromptBuilt)
		return e.finish(ctx, turn, reply, SourceQuick, userInput)
	}

	// Tier 2: response cache.
	if e.replies != nil {
		reply, hit := e.replies.Get(state, lead.ID, userInput)
		e.recordCacheLookup(ctx, "response", hit)
		if hit {
			turn.Mark(latency.StagePromptBuilt)
			return e.finish(ctx, turn, reply, SourceCached, userInput)
		}
	}

	// Tier 3: streaming LLM.
	raw, err := e.generate(ctx, turn, state, lead, conv, transcript, userInput)
	if err != nil {
		slog.Warn("llm tier failed, using apology fallback",
			slog.String("call_id", conv.CallID),
			slog.String("state", state.String()),
			slog.Any("error", err))
		e.recordProviderError(ctx, "llm")
		return e.finish(ctx, turn, quick.FallbackApology, SourceFallback, userInput)
	}

	res := e.finish(ctx, turn, raw, SourceLLM, userInput)
	if e.replies != nil && res.Text != "" {
		e.replies.Put(state, lead.ID, userInput, res.Text)
	}
	return res
}

// Reprompt returns the gentle nudge for an empty utterance, with audio.
func (e *Engine) Reprompt(ctx context.Context, turn *latency.Turn, lead *store.Lead) Result {
	return e.finish(ctx, turn, quick.Reprompt(lead.Name), SourceQuick, "")
}

// InterruptReply returns the canned reply for a routing interrupt, with
// audio. ok is false when kind has no canned reply.
func (e *Engine) InterruptReply(ctx context.Context, turn *latency.Turn, kind salesflow.Interrupt, lead *store.Lead, userInput string) (Result, bool) {
	reply, ok := quick.InterruptReply(kind, lead.Company)
	if !ok {
		return Result{}, false
	}
	return e.finish(ctx, turn, reply, SourceQuick, userInput), true
}

// Opener synthesizes the scripted first utterance for a lead, worded for
// the channel the lead came in on.
func (e *Engine) Opener(ctx context.Context, lead *store.Lead) Result {
	turn := latency.NewTurn("opener")
	defer turn.Done()
	ch := salesflow.InferChannel(lead.Source)
	return e.finish(ctx, turn, quick.Opener(lead.Name, ch), SourceQuick, "")
}

// generate streams a completion under the state's deadline. On deadline
// expiry any emitted prefix is used as the reply; an empty prefix is an
// error. The first sentence's synthesis is started as soon as its boundary
// appears in the stream, overlapping the remaining tokens.
func (e *Engine) generate(ctx context.Context, turn *latency.Turn, state salesflow.SalesState, lead *store.Lead, conv *salesflow.Conversation, transcript, userInput string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, state.LLMTimeout())
	defer cancel()

	sys := e.prompts.Build(state, lead, conv, transcript, userInput)
	turn.Mark(latency.StagePromptBuilt)

	user := userInput
	if strings.TrimSpace(user) == "" {
		user = "(the prospect said nothing)"
	}
	req := llm.CompletionRequest{
		SystemPrompt: sys,
		Messages:     []llm.Message{{Role: "user", Content: user}},
		Temperature:  defaultTemperature,
		MaxTokens:    prompt.MaxReplyTokens,
	}

	llmStart := time.Now()
	ch, err := e.llm.StreamCompletion(gctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: llm stream: %v", ErrTransientUpstream, err)
	}

	var (
		buf        strings.Builder
		g          errgroup.Group
		overlapped bool
		firstToken bool
		timedOut   bool
		streamErr  bool
	)

collect:
	for {
		select {
		case <-gctx.Done():
			timedOut = true
			go drainChunks(ch)
			break collect
		case chunk, ok := <-ch:
			if !ok {
				break collect
			}
			if chunk.Text != "" {
				if !firstToken {
					firstToken = true
					turn.Mark(latency.StageLLMFirstToken)
					e.recordLLMFirstToken(ctx, time.Since(llmStart))
				}
				buf.WriteString(chunk.Text)
			}
			if chunk.FinishReason == "error" {
				streamErr = true
				break collect
			}
			if !overlapped && !e.serialTTS {
				if idx := firstSentenceBoundary(buf.String()); idx >= 0 {
					overlapped = true
					e.overlapSynthesis(ctx, &g, Clean(buf.String()[:idx+1]))
				}
			}
			if chunk.FinishReason != "" {
				break collect
			}
		}
	}

	// The overlap goroutine only warms the cache; its failure is not a
	// turn failure.
	_ = g.Wait()
	turn.Mark(latency.StageLLMDone)

	text := strings.TrimSpace(buf.String())
	if text == "" {
		if timedOut {
			return "", fmt.Errorf("%w: llm deadline with no prefix", ErrTimeout)
		}
		return "", fmt.Errorf("%w: empty completion", ErrTransientUpstream)
	}
	if streamErr && len(strings.Fields(text)) < 3 {
		// A prefix this short is not speakable on its own.
		return "", fmt.Errorf("%w: llm stream aborted", ErrTransientUpstream)
	}
	if timedOut {
		slog.Debug("llm deadline hit, speaking emitted prefix",
			slog.String("call_id", conv.CallID),
			slog.String("state", state.String()),
			slog.Int("prefix_len", len(text)))
	}
	return text, nil
}

// overlapSynthesis pre-synthesizes the reply's first sentence into the
// audio cache while the rest of the stream arrives. For the common
// single-sentence reply the final synthesis in finish is then a cache hit.
func (e *Engine) overlapSynthesis(ctx context.Context, g *errgroup.Group, sentence string) {
	if e.tts == nil || e.audio == nil || sentence == "" {
		return
	}
	g.Go(func() error {
		if _, _, err := e.synthesize(ctx, sentence); err != nil {
			slog.Debug("first-sentence synthesis overlap failed",
				slog.Any("error", err))
		}
		return nil
	})
}

// finish cleans the reply, synthesizes audio, and emits scoring and
// metrics. Always returns a speakable Result.
func (e *Engine) finish(ctx context.Context, turn *latency.Turn, raw string, source Source, userInput string) Result {
	text := Clean(raw)
	if text == "" {
		text = quick.FallbackApology
		source = SourceFallback
	}
	res := Result{Text: text, Source: source}

	if e.tts != nil && e.audio != nil {
		ttsStart := time.Now()
		_, _, err := e.synthesize(ctx, text)
		if err != nil {
			slog.Warn("tts failed, carrier will speak natively",
				slog.Any("error", err))
			e.recordProviderError(ctx, "tts")
		} else {
			res.AudioFile = e.ttsRequest(text).FileName()
			e.recordTTS(ctx, time.Since(ttsStart))
		}
	}
	turn.Mark(latency.StageTTSDone)
	turn.SetSource(string(source))

	e.recordResponse(ctx, source)
	if e.scorer != nil {
		// Off the critical path.
		go func() {
			sc := e.scorer.Observe(text, userInput, source)
			if e.metrics != nil {
				e.metrics.RecordQuality(context.Background(), string(source), float64(sc.Overall))
			}
		}()
	}
	return res
}

// synthesize runs one cached synthesis with retry under the TTS deadline.
func (e *Engine) synthesize(ctx context.Context, text string) ([]byte, ttscache.Tier, error) {
	sctx, cancel := context.WithTimeout(ctx, e.ttsTimeout)
	defer cancel()

	req := e.ttsRequest(text)
	return e.audio.GetOrSynthesize(sctx, req, func(c context.Context) ([]byte, error) {
		var audio []byte
		err := resilience.Retry(c, e.ttsRetry, func(rc context.Context) error {
			var err error
			audio, err = e.tts.Synthesize(rc, tts.Request{
				Text:   text,
				Voice:  e.voice,
				Speed:  e.speed,
				Format: e.format,
			})
			return err
		})
		return audio, err
	})
}

func (e *Engine) ttsRequest(text string) ttscache.Request {
	model := ""
	if e.tts != nil {
		model = e.tts.Model()
	}
	return ttscache.Request{
		Text:   text,
		Model:  model,
		Voice:  e.voice,
		Speed:  e.speed,
		Format: e.format,
	}
}

// Prewarm synthesizes text into the audio cache ahead of any call. Used by
// the warmup controller; a no-op without a TTS provider or cache.
func (e *Engine) Prewarm(ctx context.Context, text string) error {
	if e.tts == nil || e.audio == nil {
		return nil
	}
	_, _, err := e.synthesize(ctx, text)
	return err
}

func (e *Engine) recordResponse(ctx context.Context, source Source) {
	if e.metrics != nil {
		e.metrics.RecordResponse(ctx, string(source))
	}
}

func (e *Engine) recordCacheLookup(ctx context.Context, cache string, hit bool) {
	if e.metrics != nil {
		e.metrics.RecordCacheLookup(ctx, cache, hit)
	}
}

func (e *Engine) recordProviderError(ctx context.Context, kind string) {
	if e.metrics != nil {
		e.metrics.RecordProviderError(ctx, kind, kind)
	}
}

func (e *Engine) recordLLMFirstToken(ctx context.Context, d time.Duration) {
	if e.metrics != nil {
		e.metrics.LLMFirstTokenDuration.Record(ctx, d.Seconds())
	}
}

func (e *Engine) recordTTS(ctx context.Context, d time.Duration) {
	if e.metrics != nil {
		e.metrics.TTSDuration.Record(ctx, d.Seconds())
	}
}

// firstSentenceBoundary returns the index of the first '.', '!', or '?'
// immediately followed by whitespace. Returns -1 when s has no boundary yet.
func firstSentenceBoundary(s string) int {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			switch s[i+1] {
			case ' ', '\n', '\r', '\t':
				return i
			}
		}
	}
	return -1
}

// drainChunks discards the rest of an abandoned stream so the provider's
// goroutine can exit.
func drainChunks(ch <-chan llm.Chunk) {
	for range ch {
	}
}
