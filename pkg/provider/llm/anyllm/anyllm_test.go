package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/algonox/aados/pkg/provider/llm"
)

// ── New ───────────────────────────────────────────────────────────────────────

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("New accepted an empty provider name")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("New accepted an empty model")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New("clippy", "v1")
	if err == nil {
		t.Fatal("New accepted an unknown backend name")
	}
	if !strings.Contains(err.Error(), "clippy") {
		t.Errorf("error does not name the backend: %v", err)
	}
}

func TestNewBackendConstructors(t *testing.T) {
	tests := []struct {
		name string
		ctor func(string, ...anyllmlib.Option) (*Provider, error)
	}{
		{"openai", NewOpenAI},
		{"anthropic", NewAnthropic},
		{"ollama", NewOllama},
		{"deepseek", NewDeepSeek},
		{"mistral", NewMistral},
		{"groq", NewGroq},
	}
	for _, tc := range tests {
		p, err := tc.ctor("some-model", anyllmlib.WithAPIKey("test-key"))
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if p == nil {
			t.Errorf("%s: nil provider", tc.name)
		}
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

func TestBuildParamsSystemPromptFirst(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a sales agent.",
		Messages: []llm.Message{
			{Role: "user", Content: "hi", Name: "maya"},
		},
	})

	if params.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first message role = %q, want system", params.Messages[0].Role)
	}
	if params.Messages[1].Name != "maya" {
		t.Errorf("Name = %q, not preserved", params.Messages[1].Name)
	}
}

func TestBuildParamsOptionalFields(t *testing.T) {
	p := &Provider{model: "m"}

	bare := p.buildParams(llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "x"}}})
	if bare.Temperature != nil || bare.MaxTokens != nil {
		t.Error("zero-value temperature/max tokens should stay unset")
	}

	tuned := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "x"}},
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if tuned.Temperature == nil || *tuned.Temperature != 0.7 {
		t.Errorf("Temperature = %v", tuned.Temperature)
	}
	if tuned.MaxTokens == nil || *tuned.MaxTokens != 150 {
		t.Errorf("MaxTokens = %v", tuned.MaxTokens)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model      string
		wantWindow int
		wantOutput int
	}{
		{"gpt-4o-mini", 128_000, 16_384},
		{"gpt-4", 8_192, 4_096},
		{"claude-sonnet-4", 200_000, 8_192},
		{"gemini-1.5-pro", 2_097_152, 8_192},
		{"gemini-2.0-flash", 1_048_576, 8_192},
		{"mistral-large", 128_000, 4_096},
	}
	for _, tc := range tests {
		caps := modelCapabilities(tc.model)
		if !caps.SupportsStreaming {
			t.Errorf("%s: streaming not reported", tc.model)
		}
		if caps.ContextWindow != tc.wantWindow {
			t.Errorf("%s: ContextWindow = %d, want %d", tc.model, caps.ContextWindow, tc.wantWindow)
		}
		if caps.MaxOutputTokens != tc.wantOutput {
			t.Errorf("%s: MaxOutputTokens = %d, want %d", tc.model, caps.MaxOutputTokens, tc.wantOutput)
		}
	}
}
