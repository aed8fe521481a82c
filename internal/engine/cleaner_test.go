package engine

import (
	"strings"
	"testing"
)

func TestCleanPassesThroughShortReply(t *testing.T) {
	in := "That's fair. Would a quick email overview help?"
	if got := Clean(in); got != in {
		t.Errorf("Clean(%q) = %q, want unchanged", in, got)
	}
}

func TestCleanStripsSpeakerLabels(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AGENT: Hello there.", "Hello there."},
		{"Assistant: Sounds good.", "Sounds good."},
		{"aados: Got it.", "Got it."},
	}
	for _, tc := range tests {
		if got := Clean(tc.in); got != tc.want {
			t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanCollapsesWhitespace(t *testing.T) {
	in := "Got  it.\n\nCan you   hear me okay?"
	want := "Got it. Can you hear me okay?"
	if got := Clean(in); got != want {
		t.Errorf("Clean(%q) = %q, want %q", in, got, want)
	}
}

func TestCleanCapsSentences(t *testing.T) {
	in := "First thing. Second thing. Third thing. Fourth thing."
	want := "First thing. Second thing."
	if got := Clean(in); got != want {
		t.Errorf("Clean = %q, want %q", got, want)
	}
}

func TestCleanSingleQuestionMark(t *testing.T) {
	in := "Does that work? Or would Thursday suit better?"
	got := Clean(in)
	if strings.Count(got, "?") != 1 {
		t.Errorf("Clean = %q, want exactly one question mark", got)
	}
	if !strings.HasPrefix(got, "Does that work?") {
		t.Errorf("Clean = %q, first question should survive", got)
	}
}

func TestCleanPreservesReplyAtWordLimit(t *testing.T) {
	in := strings.TrimSpace(strings.Repeat("word ", maxWords))
	if got := Clean(in); got != in {
		t.Errorf("reply at the word limit was altered:\n got %q", got)
	}
}

func TestCleanTruncatesOnSentenceBoundary(t *testing.T) {
	first := strings.TrimSpace(strings.Repeat("alpha ", 30)) + "."
	second := strings.TrimSpace(strings.Repeat("beta ", 30)) + "."
	got := Clean(first + " " + second)
	if got != first {
		t.Errorf("Clean = %q, want first sentence only %q", got, first)
	}
}

func TestCleanHardCutsOverlongSentence(t *testing.T) {
	in := strings.TrimSpace(strings.Repeat("word ", maxWords+10))
	got := Clean(in)
	if n := len(strings.Fields(got)); n > maxWords {
		t.Errorf("cleaned reply has %d words, want <= %d", n, maxWords)
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("hard-cut reply %q should end with a period", got)
	}
}

func TestCleanEmptyInput(t *testing.T) {
	if got := Clean("   \n "); got != "" {
		t.Errorf("Clean(whitespace) = %q, want empty", got)
	}
}
