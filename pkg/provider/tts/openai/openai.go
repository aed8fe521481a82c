// Package openai provides a TTS provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/algonox/aados/pkg/provider/tts"
)

// Compile-time interface check.
var _ tts.Provider = (*Provider)(nil)

// DefaultTimeout bounds a single synthesis request. A reply that takes
// longer than this is useless for a live call.
const DefaultTimeout = 15 * time.Second

// defaultVoices is the fixed voice catalogue of the OpenAI speech API.
var defaultVoices = []string{
	"alloy", "ash", "coral", "echo", "fable", "onyx", "nova", "sage", "shimmer",
}

// Provider implements tts.Provider using the OpenAI speech endpoint.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout overrides the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI TTS Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai tts: model must not be empty")
	}

	cfg := &config{timeout: DefaultTimeout}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("openai tts: text must not be empty")
	}

	params := oai.AudioSpeechNewParams{
		Model: oai.SpeechModel(p.model),
		Input: req.Text,
		Voice: oai.AudioSpeechNewParamsVoice(req.Voice),
	}
	if req.Format != "" {
		params.ResponseFormat = oai.AudioSpeechNewParamsResponseFormat(req.Format)
	}
	if req.Speed > 0 {
		params.Speed = param.NewOpt(req.Speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	return audio, nil
}

// ListVoices implements tts.Provider. The OpenAI speech API has a fixed
// catalogue, so no network call is needed.
func (p *Provider) ListVoices(context.Context) ([]tts.Voice, error) {
	voices := make([]tts.Voice, 0, len(defaultVoices))
	for _, id := range defaultVoices {
		voices = append(voices, tts.Voice{ID: id, Name: id, Provider: "openai"})
	}
	return voices, nil
}

// Model implements tts.Provider.
func (p *Provider) Model() string { return p.model }
