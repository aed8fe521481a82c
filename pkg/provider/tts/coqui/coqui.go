// Package coqui provides a local Coqui-backed TTS provider that connects to
// either a Coqui XTTS v2 server or a standard Coqui TTS server via its REST
// API. It implements the tts.Provider interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts with
//     URL query parameters; the voice catalogue comes from GET /details.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is
//     performed via POST /tts_to_audio/ with a JSON body; the voice catalogue
//     comes from GET /studio_speakers.
//
// Both servers operate in batch mode (one HTTP call per utterance), which
// matches the provider interface directly. Output is always WAV; the Format
// field of a request is ignored.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithLanguage("en"),
//	    coqui.WithTimeout(15*time.Second),
//	)
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/algonox/aados/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// APIMode selects which Coqui server flavour the provider talks to.
type APIMode string

const (
	// APIModeStandard targets the standard Coqui TTS server.
	APIModeStandard APIMode = "standard"

	// APIModeXTTS targets the Coqui XTTS v2 API server.
	APIModeXTTS APIMode = "xtts"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	ttsEndpoint            = "/tts_to_audio/"
	studioSpeakersEndpoint = "/studio_speakers"
	apiTTSEndpoint         = "/api/tts"
	detailsEndpoint        = "/details"
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithLanguage sets the synthesis language code (default "en").
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout overrides the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithAPIMode selects the server API flavour (default [APIModeStandard]).
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) { p.apiMode = mode }
}

// Provider implements tts.Provider backed by a local Coqui server.
type Provider struct {
	serverURL  string
	language   string
	apiMode    APIMode
	httpClient *http.Client
}

// New creates a Provider talking to the Coqui server at serverURL
// (e.g. "http://localhost:5002").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	if _, err := url.Parse(serverURL); err != nil {
		return nil, fmt.Errorf("coqui: invalid serverURL: %w", err)
	}
	p := &Provider{
		serverURL:  serverURL,
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Provider. req.Voice is the speaker identifier on
// the server (speaker_id in standard mode, studio speaker name in XTTS mode).
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("coqui: text must not be empty")
	}
	if p.apiMode == APIModeStandard {
		return p.synthesizeStandard(ctx, req)
	}
	return p.synthesizeXTTS(ctx, req)
}

func (p *Provider) synthesizeStandard(ctx context.Context, req tts.Request) ([]byte, error) {
	q := url.Values{}
	q.Set("text", req.Text)
	if req.Voice != "" {
		q.Set("speaker_id", req.Voice)
	}
	q.Set("language_id", p.language)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.serverURL+apiTTSEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build synthesis request: %w", err)
	}
	return p.doAudio(httpReq)
}

// xttsRequest is the JSON body for POST /tts_to_audio/.
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

func (p *Provider) synthesizeXTTS(ctx context.Context, req tts.Request) ([]byte, error) {
	payload, err := json.Marshal(xttsRequest{
		Text:       req.Text,
		SpeakerWav: req.Voice,
		Language:   p.language,
	})
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal synthesis body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.serverURL+ttsEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("coqui: build synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return p.doAudio(httpReq)
}

func (p *Provider) doAudio(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesize HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("coqui: synthesize: unexpected status %d: %s", resp.StatusCode, msg)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio: %w", err)
	}
	return audio, nil
}

// studioSpeakersResponse is the raw map[name]embedding returned by
// GET /studio_speakers. Only the keys are of interest here.
type studioSpeakersResponse map[string]json.RawMessage

// detailsResponse is the subset of GET /details used for voice listing.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Speakers  []string `json:"speakers"`
}

// ListVoices implements tts.Provider. In standard mode it queries
// GET /details; in XTTS mode it queries GET /studio_speakers.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	if p.apiMode == APIModeStandard {
		return p.listVoicesStandard(ctx)
	}
	return p.listVoicesXTTS(ctx)
}

func (p *Provider) listVoicesStandard(ctx context.Context) ([]tts.Voice, error) {
	var details detailsResponse
	if err := p.getJSON(ctx, detailsEndpoint, &details); err != nil {
		return nil, err
	}

	// Single-speaker models report no speaker list; expose the model itself.
	if len(details.Speakers) == 0 {
		name := details.ModelName
		if name == "" {
			name = "default"
		}
		return []tts.Voice{{ID: name, Name: name, Provider: "coqui"}}, nil
	}

	voices := make([]tts.Voice, 0, len(details.Speakers))
	for _, s := range details.Speakers {
		voices = append(voices, tts.Voice{ID: s, Name: s, Provider: "coqui"})
	}
	return voices, nil
}

func (p *Provider) listVoicesXTTS(ctx context.Context) ([]tts.Voice, error) {
	var raw studioSpeakersResponse
	if err := p.getJSON(ctx, studioSpeakersEndpoint, &raw); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	voices := make([]tts.Voice, 0, len(names))
	for _, name := range names {
		voices = append(voices, tts.Voice{ID: name, Name: name, Provider: "coqui"})
	}
	return voices, nil
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coqui: GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coqui: GET %s returned status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coqui: decode %s: %w", endpoint, err)
	}
	return nil
}

// Model implements tts.Provider. The synthesis model lives server-side, so the
// identifier only distinguishes the API flavour for cache keying.
func (p *Provider) Model() string {
	return "coqui-" + string(p.apiMode)
}
