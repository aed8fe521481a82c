package elevenlabs

import (
	"encoding/json"
	"strings"
	"testing"
)

// ---- Synthesis request construction ----

func TestSynthesizeBodyShape(t *testing.T) {
	body := synthesizeBody{
		Text:    "Hello there",
		ModelID: defaultModel,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           1.1,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["text"] != "Hello there" {
		t.Errorf("text = %v, want 'Hello there'", decoded["text"])
	}
	if decoded["model_id"] != defaultModel {
		t.Errorf("model_id = %v, want %q", decoded["model_id"], defaultModel)
	}
	if _, ok := decoded["voice_settings"]; !ok {
		t.Error("expected voice_settings in payload")
	}
}

func TestBuildSynthesizeURL(t *testing.T) {
	url := buildSynthesizeURL("voice-123", "mp3_44100_128")
	if !strings.Contains(url, "/text-to-speech/voice-123") {
		t.Errorf("url = %q, want voice id in path", url)
	}
	if !strings.Contains(url, "output_format=mp3_44100_128") {
		t.Errorf("url = %q, want output format in query", url)
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "mp3_44100_128"},
		{"mp3", "mp3_44100_128"},
		{"pcm", "pcm_16000"},
		{"mp3_22050_32", "mp3_22050_32"},
	}
	for _, tt := range tests {
		if got := outputFormat(tt.in); got != tt.want {
			t.Errorf("outputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ---- Provider construction ----

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") err = nil, want error")
	}
}

func TestNewAppliesOptions(t *testing.T) {
	p, err := New("key", WithModel("eleven_turbo_v2"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Model() != "eleven_turbo_v2" {
		t.Errorf("Model = %q, want eleven_turbo_v2", p.Model())
	}
}

// ---- Voices response parsing ----

const voicesJSON = `{
  "voices": [
    {
      "voice_id": "abc123",
      "name": "Rachel",
      "category": "premade",
      "labels": {"gender": "female", "accent": "american"}
    },
    {
      "voice_id": "def456",
      "name": "Custom Clone",
      "category": "cloned",
      "labels": {}
    }
  ]
}`

func TestParseVoicesResponse(t *testing.T) {
	voices, err := parseVoicesResponse([]byte(voicesJSON))
	if err != nil {
		t.Fatalf("parseVoicesResponse: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("len(voices) = %d, want 2", len(voices))
	}

	first := voices[0]
	if first.ID != "abc123" || first.Name != "Rachel" || first.Provider != "elevenlabs" {
		t.Errorf("first voice = %+v", first)
	}
	if first.Metadata["gender"] != "female" || first.Metadata["category"] != "premade" {
		t.Errorf("first voice metadata = %v", first.Metadata)
	}
}

func TestParseVoicesResponseInvalidJSON(t *testing.T) {
	if _, err := parseVoicesResponse([]byte("not json")); err == nil {
		t.Error("parseVoicesResponse err = nil, want error")
	}
}
