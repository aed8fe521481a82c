// Package telephony renders the carrier voice markup returned from webhook
// handlers and validates carrier webhook signatures.
//
// The markup dialect is the Twilio-compatible XML the carrier executes on the
// live call: [Play] for synthesized audio served by this process, [Say] as
// the carrier-native fallback when no audio file is available, [Gather] to
// capture the prospect's next utterance, and [Hangup] to end the call.
package telephony

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Response is the markup document root. Verbs execute in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Play instructs the carrier to fetch and play an audio URL.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Say instructs the carrier to speak text with its native voice.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Gather captures prospect speech and posts the transcription to Action.
// Nested verbs play while the carrier listens, so the prospect can barge in.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Timeout       int      `xml:"timeout,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	BargeIn       bool     `xml:"bargeIn,attr"`
	Verbs         []any
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Render serialises the document with the XML declaration the carrier
// expects. Marshalling a fixed verb set cannot fail; if it somehow does, the
// empty document is returned so the carrier never receives invalid markup.
func (r Response) Render() string {
	b, err := xml.Marshal(r)
	if err != nil {
		return xml.Header + "<Response></Response>"
	}
	return xml.Header + string(b)
}

// TurnParams describes one agent reply to render as carrier markup.
type TurnParams struct {
	// CallID routes the gathered speech back to this call's turn webhook.
	CallID string

	// Text is the reply. Spoken by the carrier's native voice when AudioURL
	// is empty (the TTS-miss path).
	Text string

	// AudioURL is the synthesized reply audio served by this process. When
	// set it is preferred over Text.
	AudioURL string

	// SayVoice is the carrier-native voice used for Say fallbacks.
	SayVoice string

	// GatherTimeout is how long the carrier waits for prospect speech,
	// matched to the complexity of the state the agent just spoke in.
	// Zero means 5 seconds.
	GatherTimeout time.Duration

	// EndCall renders the reply followed by a hangup instead of a gather.
	EndCall bool
}

const (
	defaultGatherSeconds = 5

	turnGoodbye    = "Thanks for your time. Goodbye."
	openingGoodbye = "I didn't catch that. Thanks for your time. Goodbye."
)

// Opening builds the first-contact document: the opener plays inside a
// gather targeted at the turn webhook, and a no-input goodbye ends the call
// if the prospect never speaks.
func Opening(p TurnParams) string {
	return build(p, openingGoodbye)
}

// Turn builds the per-turn document. With EndCall set the reply plays and
// the call hangs up; otherwise the reply plays inside a gather and a
// no-input goodbye closes out silent prospects.
func Turn(p TurnParams) string {
	return build(p, turnGoodbye)
}

// Empty returns the minimal valid document. Used when a webhook arrives for
// an unknown call and there is nothing sensible to play.
func Empty() string {
	return Response{}.Render()
}

func build(p TurnParams, goodbye string) string {
	if p.EndCall {
		return Response{Verbs: []any{replyVerb(p), Hangup{}}}.Render()
	}

	seconds := int(p.GatherTimeout / time.Second)
	if seconds <= 0 {
		seconds = defaultGatherSeconds
	}
	g := Gather{
		Input:         "speech",
		Action:        fmt.Sprintf("/webhook/%s/turn", p.CallID),
		Method:        "POST",
		Timeout:       seconds,
		SpeechTimeout: "auto",
		BargeIn:       true,
		Verbs:         []any{replyVerb(p)},
	}
	return Response{Verbs: []any{
		g,
		Say{Voice: p.SayVoice, Text: goodbye},
		Hangup{},
	}}.Render()
}

func replyVerb(p TurnParams) any {
	if p.AudioURL != "" {
		return Play{URL: p.AudioURL}
	}
	text := p.Text
	if text == "" {
		text = "Okay."
	}
	return Say{Voice: p.SayVoice, Text: text}
}
