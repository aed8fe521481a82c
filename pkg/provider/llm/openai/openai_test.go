package openai

import (
	"testing"

	"github.com/algonox/aados/pkg/provider/llm"
)

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("New accepted an empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("New accepted an empty model")
	}
	if _, err := New("sk-test", "gpt-4o-mini"); err != nil {
		t.Errorf("New: %v", err)
	}
}

func TestConvertMessageRoles(t *testing.T) {
	sys, err := convertMessage(llm.Message{Role: "system", Content: "You are helpful."})
	if err != nil {
		t.Fatalf("system: %v", err)
	}
	if sys.OfSystem == nil {
		t.Error("system message not converted to OfSystem")
	}

	usr, err := convertMessage(llm.Message{Role: "user", Content: "Hello!"})
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if usr.OfUser == nil {
		t.Error("user message not converted to OfUser")
	}

	asst, err := convertMessage(llm.Message{Role: "assistant", Content: "Hi there!"})
	if err != nil {
		t.Fatalf("assistant: %v", err)
	}
	if asst.OfAssistant == nil {
		t.Error("assistant message not converted to OfAssistant")
	}
}

func TestConvertMessageUnknownRole(t *testing.T) {
	if _, err := convertMessage(llm.Message{Role: "narrator", Content: "..."}); err == nil {
		t.Fatal("unknown role accepted")
	}
}

func TestBuildParamsIncludesSystemPrompt(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a sales agent.",
		Messages:     []llm.Message{{Role: "user", Content: "hi"}},
		MaxTokens:    150,
		Temperature:  0.7,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}

	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message is not the system prompt")
	}
	if v, ok := params.MaxCompletionTokens.Value, params.MaxCompletionTokens.Valid(); !ok || v != 150 {
		t.Errorf("MaxCompletionTokens = %v %v", v, ok)
	}
	if v, ok := params.Temperature.Value, params.Temperature.Valid(); !ok || v != 0.7 {
		t.Errorf("Temperature = %v %v", v, ok)
	}
}

func TestCountTokensApproximation(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n, err := p.CountTokens([]llm.Message{
		{Role: "user", Content: "twelve chars"},
	})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	// 12 chars -> 3 tokens, plus 4 per-message overhead.
	if n != 7 {
		t.Errorf("CountTokens = %d, want 7", n)
	}
}

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model      string
		wantWindow int
		wantOutput int
	}{
		{"gpt-4o-mini", 128_000, 16_384},
		{"gpt-4", 8_192, 4_096},
		{"gpt-3.5-turbo", 16_385, 4_096},
		{"o1-preview", 200_000, 100_000},
		{"some-future-model", 128_000, 4_096},
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
