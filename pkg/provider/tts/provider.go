// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., OpenAI speech,
// ElevenLabs) and presents a uniform batch interface: one sentence in, one
// complete encoded audio payload out. The carrier plays audio from URLs, so
// replies are synthesized into whole files rather than streamed as PCM; the
// response engine overlaps synthesis of the first sentence with the rest of
// the LLM stream to hide the batch latency.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Request describes one utterance to synthesize.
type Request struct {
	// Text is the sentence or reply to speak. Must be non-empty.
	Text string

	// Voice is the provider-specific voice identifier.
	Voice string

	// Speed adjusts the speaking rate (0.5–2.0, 0 = provider default).
	Speed float64

	// Format is the audio container, e.g. "mp3". Empty means the provider
	// default.
	Format string
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple calls may
// synthesize in parallel.
type Provider interface {
	// Synthesize converts req.Text into encoded audio and returns the whole
	// payload. It must respect ctx cancellation and deadlines: synthesis for
	// a live call is abandoned, not awaited, when the turn deadline passes.
	Synthesize(ctx context.Context, req Request) ([]byte, error)

	// ListVoices returns all voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]Voice, error)

	// Model returns the provider's configured synthesis model identifier.
	// It participates in cache keys, so it must be stable for the lifetime
	// of the Provider instance.
	Model() string
}
