package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/algonox/aados/internal/engine"
	"github.com/algonox/aados/internal/respcache"
	"github.com/algonox/aados/internal/store"
	storemock "github.com/algonox/aados/internal/store/mock"
	"github.com/algonox/aados/internal/telephony"
	"github.com/algonox/aados/internal/ttscache"
	"github.com/algonox/aados/pkg/provider/llm"
	llmmock "github.com/algonox/aados/pkg/provider/llm/mock"
	ttsmock "github.com/algonox/aados/pkg/provider/tts/mock"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *storemock.Store, http.Handler) {
	t.Helper()

	st := storemock.New()
	st.AddLead(&store.Lead{ID: "l1", Name: "Maya Chen", Company: "Acme Corp", Source: "cold_call"})
	st.CreateCall(t.Context(), &store.Call{
		ID:        "c1",
		LeadID:    "l1",
		Status:    store.StatusInProgress,
		CallState: store.CallState{StateID: 1},
		StartedAt: time.Now(),
	})

	audio, err := ttscache.New(t.TempDir())
	if err != nil {
		t.Fatalf("ttscache.New: %v", err)
	}
	llmP := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "Got it. "},
			{Text: "How are you handling that today?", FinishReason: "stop"},
		},
	}
	ttsP := &ttsmock.Provider{SynthesizeAudio: []byte("audio")}
	eng := engine.New(llmP, ttsP,
		engine.WithResponseCache(respcache.New()),
		engine.WithTTSCache(audio),
	)

	srv := NewServer(st, eng, append([]Option{WithAudioCache(audio)}, opts...)...)
	return srv, st, srv.Router()
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// eventually polls cond for up to two seconds, covering the fire-and-forget
// persistence paths.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestFirstContactPlaysOpener(t *testing.T) {
	_, st, h := newTestServer(t)

	w := postForm(t, h, "/webhook/c1", url.Values{})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Play>/calls/c1/tts/tts_") {
		t.Errorf("body missing opener Play URL:\n%s", body)
	}
	if !strings.Contains(body, `action="/webhook/c1/turn"`) {
		t.Errorf("body missing turn gather:\n%s", body)
	}
	if !strings.Contains(body, `timeout="4"`) {
		t.Errorf("body missing greeting gather timeout:\n%s", body)
	}

	eventually(t, func() bool {
		c, err := st.GetCall(t.Context(), "c1")
		return err == nil && strings.Contains(c.FullTranscript, "Agent: ")
	}, "opener was not persisted to the transcript")
}

func TestTurnAdvancesStateAndPersists(t *testing.T) {
	_, st, h := newTestServer(t)

	w := postForm(t, h, "/webhook/c1/turn", url.Values{"SpeechResult": {"sure, go ahead"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `action="/webhook/c1/turn"`) {
		t.Errorf("body missing next gather:\n%s", body)
	}
	if !strings.Contains(body, `timeout="5"`) {
		t.Errorf("body missing discovery gather timeout:\n%s", body)
	}

	eventually(t, func() bool {
		c, err := st.GetCall(t.Context(), "c1")
		return err == nil && c.StateID == 2 &&
			strings.Contains(c.FullTranscript, "User: sure, go ahead")
	}, "turn was not persisted")
}

func TestTurnEmptySpeechReprompts(t *testing.T) {
	_, st, h := newTestServer(t)

	w := postForm(t, h, "/webhook/c1/turn", url.Values{"SpeechResult": {"  "}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Gather") {
		t.Errorf("reprompt should keep gathering:\n%s", body)
	}

	// The state must not advance on silence.
	c, err := st.GetCall(t.Context(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.StateID != 1 {
		t.Errorf("StateID = %d after empty speech, want 1", c.StateID)
	}
}

func TestTurnHostileHangsUp(t *testing.T) {
	_, st, h := newTestServer(t)

	w := postForm(t, h, "/webhook/c1/turn", url.Values{"SpeechResult": {"stop calling me you scammers"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<Gather") {
		t.Errorf("hostile turn must not gather:\n%s", body)
	}
	if !strings.Contains(body, "<Hangup></Hangup>") {
		t.Errorf("hostile turn must hang up:\n%s", body)
	}

	eventually(t, func() bool {
		c, err := st.GetCall(t.Context(), "c1")
		return err == nil && c.StateID == 12
	}, "exit state was not persisted")
}

func TestTurnTechIssuesEndCallAcrossWebhooks(t *testing.T) {
	_, st, h := newTestServer(t)
	st.CreateCall(t.Context(), &store.Call{
		ID:        "c2",
		LeadID:    "l1",
		Status:    store.StatusInProgress,
		CallState: store.CallState{StateID: 3},
		StartedAt: time.Now(),
	})

	// Each webhook rebuilds the conversation from the persisted snapshot, so
	// the repair counter must survive between requests. Two repair attempts,
	// then the third bad-connection turn hangs up.
	for i := 1; i <= 2; i++ {
		w := postForm(t, h, "/webhook/c2/turn", url.Values{"SpeechResult": {"sorry, I can't hear you"}})
		if w.Code != http.StatusOK {
			t.Fatalf("repair turn %d status = %d, want 200", i, w.Code)
		}
		if !strings.Contains(w.Body.String(), "<Gather") {
			t.Fatalf("repair turn %d must keep gathering:\n%s", i, w.Body.String())
		}
		want := i
		eventually(t, func() bool {
			c, err := st.GetCall(t.Context(), "c2")
			return err == nil && c.TechIssues == want && c.StateID == 3
		}, "repair attempt was not persisted")
	}

	w := postForm(t, h, "/webhook/c2/turn", url.Values{"SpeechResult": {"sorry, I can't hear you"}})
	if strings.Contains(w.Body.String(), "<Gather") {
		t.Errorf("third bad-connection turn must not gather:\n%s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "<Hangup></Hangup>") {
		t.Errorf("third bad-connection turn must hang up:\n%s", w.Body.String())
	}
	eventually(t, func() bool {
		c, err := st.GetCall(t.Context(), "c2")
		return err == nil && c.StateID == 12
	}, "exit state was not persisted")
}

func TestTurnDiscoveryProgressesAcrossWebhooks(t *testing.T) {
	_, st, h := newTestServer(t)
	st.CreateCall(t.Context(), &store.Call{
		ID:        "c2",
		LeadID:    "l1",
		Status:    store.StatusInProgress,
		CallState: store.CallState{StateID: 2},
		StartedAt: time.Now(),
	})

	// The mock agent reply ends in a question, so every substantive turn
	// consumes one unit of the discovery budget. Two open questions, a probe
	// entry, one probe turn, then pain confirmation. Each step waits for the
	// async persist so the next webhook resumes from a fresh snapshot.
	steps := []struct {
		answer         string
		stateID        int
		stateTurns     int
		stateQuestions int
	}{
		{"mostly spreadsheets and a lot of copy paste", 2, 1, 1},
		{"the team spends hours every single week cleaning it up", 2, 2, 2},
		{"we lose about two days every week reconciling orders by hand", 3, 0, 1},
		{"it gets worse at the end of the quarter", 3, 1, 2},
		{"honestly it is the biggest drag on the team", 4, 0, 1},
	}

	for i, step := range steps {
		w := postForm(t, h, "/webhook/c2/turn", url.Values{"SpeechResult": {step.answer}})
		if w.Code != http.StatusOK {
			t.Fatalf("turn %d status = %d, want 200", i+1, w.Code)
		}
		eventually(t, func() bool {
			c, err := st.GetCall(t.Context(), "c2")
			return err == nil && c.StateID == step.stateID &&
				c.StateTurns == step.stateTurns &&
				c.StateQuestions == step.stateQuestions
		}, "turn "+step.answer+" did not persist the expected snapshot")
	}
}

func TestTurnUnknownCallReturnsMinimalMarkup(t *testing.T) {
	_, _, h := newTestServer(t)

	w := postForm(t, h, "/webhook/nope/turn", url.Values{"SpeechResult": {"hello"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Response></Response>") {
		t.Errorf("body = %q, want the empty document", w.Body.String())
	}
}

func TestTurnFinishedCallReturnsMinimalMarkup(t *testing.T) {
	_, st, h := newTestServer(t)
	st.UpdateCallStatus(t.Context(), "c1", store.StatusCompleted, time.Now())

	w := postForm(t, h, "/webhook/c1/turn", url.Values{"SpeechResult": {"hello"}})
	if !strings.Contains(w.Body.String(), "<Response></Response>") {
		t.Errorf("body = %q, want the empty document", w.Body.String())
	}
}

func TestStatusTerminalIsIdempotent(t *testing.T) {
	_, st, h := newTestServer(t)

	for range 2 {
		w := postForm(t, h, "/webhook/c1/status", url.Values{"CallStatus": {"completed"}})
		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", w.Code)
		}
	}

	c, err := st.GetCall(t.Context(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != store.StatusCompleted {
		t.Errorf("Status = %q, want completed", c.Status)
	}
	first := c.EndedAt

	// Redelivery must not move the end timestamp.
	postForm(t, h, "/webhook/c1/status", url.Values{"CallStatus": {"completed"}})
	c, _ = st.GetCall(t.Context(), "c1")
	if !c.EndedAt.Equal(first) {
		t.Errorf("EndedAt moved on redelivery: %v -> %v", first, c.EndedAt)
	}

	eventually(t, func() bool {
		_, ok := st.Transcript("c1")
		return ok
	}, "terminal status did not denormalize the transcript")
}

func TestStatusNormalizesCarrierSpelling(t *testing.T) {
	_, st, h := newTestServer(t)

	w := postForm(t, h, "/webhook/c1/status", url.Values{"CallStatus": {"no-answer"}})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	c, _ := st.GetCall(t.Context(), "c1")
	if c.Status != store.StatusNoAnswer {
		t.Errorf("Status = %q, want no_answer", c.Status)
	}
}

func TestStatusUnknownCallAccepted(t *testing.T) {
	_, _, h := newTestServer(t)
	w := postForm(t, h, "/webhook/nope/status", url.Values{"CallStatus": {"completed"}})
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestStatusMissingFieldRejected(t *testing.T) {
	_, _, h := newTestServer(t)
	w := postForm(t, h, "/webhook/c1/status", url.Values{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRecordingStoresURL(t *testing.T) {
	_, st, h := newTestServer(t)

	w := postForm(t, h, "/webhook/c1/recording", url.Values{
		"RecordingUrl": {"https://carrier.example.com/rec/abc.mp3"},
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	c, _ := st.GetCall(t.Context(), "c1")
	if c.RecordingURL != "https://carrier.example.com/rec/abc.mp3" {
		t.Errorf("RecordingURL = %q", c.RecordingURL)
	}
}

func TestWebhookSignatureEnforced(t *testing.T) {
	const (
		token = "test-auth-token"
		base  = "https://agent.example.com"
	)
	v := telephony.NewValidator(token, base, true)
	_, _, h := newTestServer(t, WithValidator(v))

	form := url.Values{"SpeechResult": {"sure, go ahead"}}

	// Unsigned request is refused.
	w := postForm(t, h, "/webhook/c1/turn", form)
	if w.Code != http.StatusForbidden {
		t.Fatalf("unsigned status = %d, want 403", w.Code)
	}

	// Correctly signed request goes through.
	sig := telephony.Signature(token, base+"/webhook/c1/turn", form)
	req := httptest.NewRequest(http.MethodPost, "/webhook/c1/turn", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(telephony.SignatureHeader, sig)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("signed status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
}
