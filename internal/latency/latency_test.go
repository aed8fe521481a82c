package latency

import (
	"testing"
	"time"
)

func TestTurnMarks(t *testing.T) {
	now := time.Unix(1000, 0)
	turn := NewTurn("call-1", WithClock(func() time.Time { return now }))

	now = now.Add(30 * time.Millisecond)
	turn.Mark(StagePromptBuilt)
	now = now.Add(250 * time.Millisecond)
	turn.Mark(StageLLMFirstToken)
	now = now.Add(400 * time.Millisecond)
	turn.Mark(StageTTSDone)

	if got := turn.Elapsed(StagePromptBuilt); got != 30*time.Millisecond {
		t.Errorf("prompt_built = %v, want 30ms", got)
	}
	if got := turn.Elapsed(StageLLMFirstToken); got != 280*time.Millisecond {
		t.Errorf("llm_first_token = %v, want 280ms", got)
	}
	if got := turn.Elapsed(StageTTSDone); got != 680*time.Millisecond {
		t.Errorf("tts_done = %v, want 680ms", got)
	}
	if got := turn.Total(); got != 680*time.Millisecond {
		t.Errorf("Total = %v, want 680ms", got)
	}
}

func TestTurnFirstMarkWins(t *testing.T) {
	now := time.Unix(1000, 0)
	turn := NewTurn("call-1", WithClock(func() time.Time { return now }))

	now = now.Add(100 * time.Millisecond)
	turn.Mark(StageLLMDone)
	now = now.Add(900 * time.Millisecond)
	turn.Mark(StageLLMDone)

	if got := turn.Elapsed(StageLLMDone); got != 100*time.Millisecond {
		t.Errorf("llm_done = %v, want first mark 100ms", got)
	}
}

func TestTurnUnmarkedStageIsZero(t *testing.T) {
	turn := NewTurn("call-1")
	if got := turn.Elapsed(StagePersistDone); got != 0 {
		t.Errorf("persist_done = %v, want 0", got)
	}
}

func TestTurnDoneIsIdempotent(t *testing.T) {
	turn := NewTurn("call-1")
	turn.SetSource("quick")
	turn.Done()
	turn.Done() // must not panic or double-log
}
