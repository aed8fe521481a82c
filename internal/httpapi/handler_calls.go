package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/algonox/aados/internal/quality"
	"github.com/algonox/aados/internal/resilience"
)

// transcriptResponse is the operator view of one call.
type transcriptResponse struct {
	CallID            string  `json:"call_id"`
	LeadID            string  `json:"lead_id"`
	Status            string  `json:"status"`
	DurationSeconds   float64 `json:"duration"`
	Sentiment         string  `json:"sentiment"`
	InterestLevel     string  `json:"interest_level"`
	RecordingURL      string  `json:"recording_url"`
	FullTranscript    string  `json:"full_transcript"`
	TranscriptSummary string  `json:"transcript_summary"`
}

// handleTranscript serves a call's transcript from the call row blob, the
// source of truth. It may run ahead of the denormalized transcripts row.
func (s *Server) handleTranscript(c *gin.Context) {
	callID := c.Param("call_id")
	call, err := s.store.GetCall(c.Request.Context(), callID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	c.JSON(http.StatusOK, transcriptResponse{
		CallID:            call.ID,
		LeadID:            call.LeadID,
		Status:            string(call.Status),
		DurationSeconds:   call.Duration.Seconds(),
		Sentiment:         call.Sentiment,
		InterestLevel:     call.InterestLevel,
		RecordingURL:      call.RecordingURL,
		FullTranscript:    call.FullTranscript,
		TranscriptSummary: call.Summary,
	})
}

// handleQualityMetrics serves the scorer's aggregate snapshot on
// /calls/quality/metrics. The "quality" segment arrives as the call_id
// wildcard; any other value is not a route this handler owns.
func (s *Server) handleQualityMetrics(c *gin.Context) {
	if c.Param("call_id") != "quality" {
		c.Status(http.StatusNotFound)
		return
	}
	if s.scorer == nil {
		c.JSON(http.StatusOK, quality.Report{})
		return
	}
	c.JSON(http.StatusOK, s.scorer.Report())
}

// handleBreakers serves the provider circuit-breaker states.
func (s *Server) handleBreakers(c *gin.Context) {
	states := []resilience.BreakerStatus{}
	if s.breakers != nil {
		states = s.breakers()
	}
	c.JSON(http.StatusOK, gin.H{"breakers": states})
}

// audioContentTypes maps cache file extensions to response content types.
var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".aac":  "audio/aac",
	".flac": "audio/flac",
}

// handleAudio serves one content-addressed file from the TTS disk cache.
// File names are hash-derived, so anything that does not look like a cache
// entry is refused before touching the filesystem.
func (s *Server) handleAudio(c *gin.Context) {
	if s.audio == nil {
		c.Status(http.StatusNotFound)
		return
	}
	name := c.Param("filename")
	if name != filepath.Base(name) || !strings.HasPrefix(name, "tts_") {
		c.Status(http.StatusNotFound)
		return
	}

	path := filepath.Join(s.audio.Dir(), name)
	if _, err := os.Stat(path); err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	if ct, ok := audioContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		c.Header("Content-Type", ct)
	}
	// Content-addressed, so it never changes.
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	c.File(path)
}
