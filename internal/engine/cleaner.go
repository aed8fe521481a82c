package engine

import (
	"regexp"
	"strings"
)

const (
	// maxSentences caps a voice reply. Two sentences is the ceiling for a
	// turn that still feels like conversation rather than a monologue.
	maxSentences = 2

	// maxWords is the soft talk-time cap, roughly twelve seconds of speech.
	maxWords = 55
)

// speakerLabel matches leading role labels the model sometimes emits when
// the transcript format leaks into its output.
var speakerLabel = regexp.MustCompile(`(?im)^\s*(?:agent|assistant|aados)\s*:\s*`)

// Clean normalizes raw model output into a speakable reply: speaker labels
// stripped, whitespace collapsed, at most two sentences, at most one
// question mark, and a ~55-word cap with sentence-boundary truncation.
// A reply already within every limit passes through unchanged.
func Clean(text string) string {
	t := speakerLabel.ReplaceAllString(text, "")
	t = strings.Join(strings.Fields(t), " ")

	sents := splitSentences(t)
	if len(sents) > maxSentences {
		sents = sents[:maxSentences]
	}
	t = limitQuestions(strings.Join(sents, " "))
	return strings.TrimSpace(capWords(t))
}

// splitSentences cuts on '.', '!', or '?' followed by a space (or end of
// string). Fragments without a terminator come back as one sentence.
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' {
				out = append(out, strings.TrimSpace(s[start:i+1]))
				i++ // skip the space
				start = i + 1
			}
		}
	}
	if start < len(s) {
		if rest := strings.TrimSpace(s[start:]); rest != "" {
			out = append(out, rest)
		}
	}
	return out
}

// limitQuestions keeps the first question mark and turns the rest into
// periods, so the carrier's gather prompt stays unambiguous.
func limitQuestions(s string) string {
	first := strings.IndexByte(s, '?')
	if first < 0 {
		return s
	}
	return s[:first+1] + strings.ReplaceAll(s[first+1:], "?", ".")
}

// capWords enforces the talk-time cap. Over the limit, trailing sentences
// drop first; a single overlong sentence is cut at the cap.
func capWords(s string) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}

	sents := splitSentences(s)
	for len(sents) > 1 {
		sents = sents[:len(sents)-1]
		trimmed := strings.Join(sents, " ")
		if len(strings.Fields(trimmed)) <= maxWords {
			return trimmed
		}
	}

	cut := strings.Join(words[:maxWords], " ")
	return strings.TrimRight(cut, " ,;:") + "."
}
