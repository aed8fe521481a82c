package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/algonox/aados/internal/broadcast"
	"github.com/algonox/aados/internal/engine"
	"github.com/algonox/aados/internal/latency"
	"github.com/algonox/aados/internal/salesflow"
	"github.com/algonox/aados/internal/store"
	"github.com/algonox/aados/internal/telephony"
)

// webhookForm parses the carrier's form body and checks its signature.
// Returns engine.ErrBadInput for an unparseable body and engine.ErrAuth for
// a rejected signature.
func (s *Server) webhookForm(c *gin.Context) (url.Values, error) {
	if err := c.Request.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrBadInput, err)
	}
	if s.verifier != nil {
		if err := s.verifier.Validate(c.Request, c.Request.PostForm); err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrAuth, err)
		}
	}
	return c.Request.PostForm, nil
}

// rejectWebhook maps a webhookForm failure to the carrier response. A bad
// signature is refused outright; anything else gets polite exit markup so
// the prospect hears a goodbye rather than dead air.
func (s *Server) rejectWebhook(c *gin.Context, callID string, err error) {
	if errors.Is(err, engine.ErrAuth) {
		slog.Warn("webhook signature rejected",
			slog.String("call_id", callID),
			slog.Any("error", err))
		c.String(http.StatusForbidden, "signature rejected")
		return
	}
	slog.Warn("bad webhook payload",
		slog.String("call_id", callID),
		slog.Any("error", err))
	xmlReply(c, telephony.Turn(telephony.TurnParams{
		Text:     "Sorry, something went wrong on our side. Thanks for your time.",
		SayVoice: s.sayVoice,
		EndCall:  true,
	}))
}

// loadCall fetches the call and its lead. An unknown id or a terminal call
// is a state violation answered with minimal markup by the caller.
func (s *Server) loadCall(c *gin.Context, callID string) (*store.Call, *store.Lead, bool) {
	call, err := s.store.GetCall(c.Request.Context(), callID)
	if err != nil {
		slog.Warn("webhook for unknown call",
			slog.String("call_id", callID),
			slog.Any("error", err))
		xmlReply(c, telephony.Empty())
		return nil, nil, false
	}
	if call.Status.Terminal() {
		slog.Warn("webhook for finished call",
			slog.String("call_id", callID),
			slog.String("status", string(call.Status)))
		xmlReply(c, telephony.Empty())
		return nil, nil, false
	}
	lead, err := s.store.GetLead(c.Request.Context(), call.LeadID)
	if err != nil {
		slog.Error("lead load failed",
			slog.String("call_id", callID),
			slog.String("lead_id", call.LeadID),
			slog.Any("error", err))
		xmlReply(c, telephony.Empty())
		return nil, nil, false
	}
	return call, lead, true
}

// handleFirstContact answers the carrier's connect webhook with the opener
// playing inside a gather aimed at the turn webhook.
func (s *Server) handleFirstContact(c *gin.Context) {
	callID := c.Param("call_id")
	if _, err := s.webhookForm(c); err != nil {
		s.rejectWebhook(c, callID, err)
		return
	}
	call, lead, ok := s.loadCall(c, callID)
	if !ok {
		return
	}

	res := s.engine.Opener(c.Request.Context(), lead)

	go s.persistTurn(call.ID, nil, "Agent: "+res.Text+"\n")
	s.publish(broadcast.TypeCallInProgress, broadcast.StatusUpdate{
		CallID: call.ID,
		Status: string(store.StatusInProgress),
	})

	xmlReply(c, telephony.Opening(telephony.TurnParams{
		CallID:        call.ID,
		Text:          res.Text,
		AudioURL:      s.audioURL(call.ID, res.AudioFile),
		SayVoice:      s.sayVoice,
		GatherTimeout: salesflow.StateGreeting.GatherTimeout(),
	}))
}

// handleTurn is the critical path: one prospect utterance in, one reply's
// markup out. Persistence and broadcasting happen off this path.
func (s *Server) handleTurn(c *gin.Context) {
	callID := c.Param("call_id")
	turn := latency.NewTurn(callID)
	defer turn.Done()

	form, err := s.webhookForm(c)
	if err != nil {
		s.rejectWebhook(c, callID, err)
		return
	}
	call, lead, ok := s.loadCall(c, callID)
	if !ok {
		return
	}

	conv := salesflow.Resume(call.ID, lead.ID, salesflow.Snapshot{
		StateID:        call.StateID,
		StateTurns:     call.StateTurns,
		StateQuestions: call.StateQuestions,
		TechIssues:     call.TechIssues,
		Objections:     call.Objections,
		ReturnStateID:  call.ReturnStateID,
	}, lead.Source)
	speech := strings.TrimSpace(form.Get("SpeechResult"))

	if speech == "" {
		res := s.engine.Reprompt(c.Request.Context(), turn, lead)
		turn.Mark(latency.StagePersistDone)
		xmlReply(c, telephony.Turn(telephony.TurnParams{
			CallID:        call.ID,
			Text:          res.Text,
			AudioURL:      s.audioURL(call.ID, res.AudioFile),
			SayVoice:      s.sayVoice,
			GatherTimeout: conv.State.GatherTimeout(),
		}))
		return
	}

	in := s.detector.Detect(speech)
	conv.Observe(speech, in)
	dec := conv.Route(in)

	var res engine.Result
	if dec.Interrupt != salesflow.InterruptNone {
		if r, ok := s.engine.InterruptReply(c.Request.Context(), turn, dec.Interrupt, lead, speech); ok {
			res = r
		}
	}
	if res.Text == "" {
		res = s.engine.Respond(c.Request.Context(), turn, dec.Next, lead, conv, call.FullTranscript, speech)
	}
	if dec.Interrupt == salesflow.InterruptNone {
		conv.NoteAgentReply(res.Text)
	}

	delta := "User: " + speech + "\nAgent: " + res.Text + "\n"
	go s.persistTurn(call.ID, callState(conv.Snapshot()), delta)
	turn.Mark(latency.StagePersistDone)

	s.publish(broadcast.TypeTranscriptUpdate, broadcast.TranscriptDelta{
		CallID: call.ID,
		Delta:  delta,
	})

	xmlReply(c, telephony.Turn(telephony.TurnParams{
		CallID:        call.ID,
		Text:          res.Text,
		AudioURL:      s.audioURL(call.ID, res.AudioFile),
		SayVoice:      s.sayVoice,
		GatherTimeout: dec.Next.GatherTimeout(),
		EndCall:       conv.EndCall,
	}))
}

// handleStatus absorbs carrier lifecycle callbacks. Idempotent under
// redelivery; terminal statuses trigger the transcript denormalization.
func (s *Server) handleStatus(c *gin.Context) {
	callID := c.Param("call_id")
	form, err := s.webhookForm(c)
	if err != nil {
		if errors.Is(err, engine.ErrAuth) {
			c.String(http.StatusForbidden, "signature rejected")
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "unparseable status payload"})
		return
	}

	raw := form.Get("CallStatus")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing CallStatus"})
		return
	}
	status := store.NormalizeStatus(raw)

	call, err := s.store.GetCall(c.Request.Context(), callID)
	if err != nil {
		slog.Warn("status for unknown call",
			slog.String("call_id", callID),
			slog.String("status", string(status)))
		c.Status(http.StatusNoContent)
		return
	}

	changed := call.Status != status
	if err := s.store.UpdateCallStatus(c.Request.Context(), callID, status, time.Now()); err != nil {
		slog.Error("status update failed",
			slog.String("call_id", callID),
			slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status update failed"})
		return
	}

	if changed && s.metrics != nil {
		switch {
		case status == store.StatusInProgress:
			s.metrics.ActiveCalls.Add(c.Request.Context(), 1)
		case status.Terminal() && call.Status == store.StatusInProgress:
			s.metrics.ActiveCalls.Add(c.Request.Context(), -1)
		}
	}
	if changed && status.Terminal() {
		go s.finalizeCall(callID)
	}

	s.publish(broadcast.TypeCallStatus, broadcast.StatusUpdate{
		CallID: callID,
		Status: string(status),
	})
	c.Status(http.StatusNoContent)
}

// handleRecording stores the recording location from the recording-ready
// callback.
func (s *Server) handleRecording(c *gin.Context) {
	callID := c.Param("call_id")
	form, err := s.webhookForm(c)
	if err != nil {
		if errors.Is(err, engine.ErrAuth) {
			c.String(http.StatusForbidden, "signature rejected")
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "unparseable recording payload"})
		return
	}

	recURL := form.Get("RecordingUrl")
	if recURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing RecordingUrl"})
		return
	}
	if err := s.store.SetRecordingURL(c.Request.Context(), callID, recURL); err != nil {
		slog.Error("recording url persist failed",
			slog.String("call_id", callID),
			slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recording update failed"})
		return
	}

	s.publish(broadcast.TypeRecordingReady, map[string]string{
		"call_id":       callID,
		"recording_url": recURL,
	})
	c.Status(http.StatusNoContent)
}
