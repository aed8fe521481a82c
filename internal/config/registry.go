package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/algonox/aados/pkg/provider/llm"
	"github.com/algonox/aados/pkg/provider/llm/anyllm"
	llmmock "github.com/algonox/aados/pkg/provider/llm/mock"
	llmopenai "github.com/algonox/aados/pkg/provider/llm/openai"
	"github.com/algonox/aados/pkg/provider/tts"
	"github.com/algonox/aados/pkg/provider/tts/coqui"
	"github.com/algonox/aados/pkg/provider/tts/elevenlabs"
	ttsmock "github.com/algonox/aados/pkg/provider/tts/mock"
	ttsopenai "github.com/algonox/aados/pkg/provider/tts/openai"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]func(ProviderEntry) (llm.Provider, error)
	tts map[string]func(ProviderEntry) (tts.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Provider, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under
// entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// DefaultRegistry returns a [Registry] with every built-in provider
// registered. The "mock" providers need no credentials and back local
// development without external services.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterLLM("openai", func(e ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if e.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(e.BaseURL))
		}
		return llmopenai.New(e.APIKey, e.Model, opts...)
	})
	r.RegisterLLM("anthropic", func(e ProviderEntry) (llm.Provider, error) {
		return anyllm.NewAnthropic(e.Model, anyllmOptions(e)...)
	})
	r.RegisterLLM("ollama", func(e ProviderEntry) (llm.Provider, error) {
		return anyllm.NewOllama(e.Model, anyllmOptions(e)...)
	})
	r.RegisterLLM("groq", func(e ProviderEntry) (llm.Provider, error) {
		return anyllm.NewGroq(e.Model, anyllmOptions(e)...)
	})
	r.RegisterLLM("mistral", func(e ProviderEntry) (llm.Provider, error) {
		return anyllm.NewMistral(e.Model, anyllmOptions(e)...)
	})
	r.RegisterLLM("deepseek", func(e ProviderEntry) (llm.Provider, error) {
		return anyllm.NewDeepSeek(e.Model, anyllmOptions(e)...)
	})
	r.RegisterLLM("mock", func(ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})

	r.RegisterTTS("openai", func(e ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if e.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(e.BaseURL))
		}
		return ttsopenai.New(e.APIKey, e.Model, opts...)
	})
	r.RegisterTTS("elevenlabs", func(e ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if e.Model != "" {
			opts = append(opts, elevenlabs.WithModel(e.Model))
		}
		return elevenlabs.New(e.APIKey, opts...)
	})
	r.RegisterTTS("coqui", func(e ProviderEntry) (tts.Provider, error) {
		return coqui.New(e.BaseURL)
	})
	r.RegisterTTS("mock", func(ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{SynthesizeAudio: []byte("mock-audio")}, nil
	})

	return r
}

func anyllmOptions(e ProviderEntry) []anyllmlib.Option {
	var opts []anyllmlib.Option
	if e.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
	}
	if e.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
	}
	return opts
}
