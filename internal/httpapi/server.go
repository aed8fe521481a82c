// Package httpapi exposes the HTTP surface of the agent: carrier webhooks,
// audio serving for the TTS cache, operator endpoints, health probes, the
// Prometheus scrape endpoint, and the dashboard WebSocket.
//
// The carrier webhooks are the latency-critical part. Everything they do
// past producing the reply is fire-and-forget: transcript persistence runs
// on a fresh background context, broadcasts never block, and a failure in
// either is logged but never changes the markup returned to the carrier.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/algonox/aados/internal/broadcast"
	"github.com/algonox/aados/internal/engine"
	"github.com/algonox/aados/internal/health"
	"github.com/algonox/aados/internal/observe"
	"github.com/algonox/aados/internal/quality"
	"github.com/algonox/aados/internal/resilience"
	"github.com/algonox/aados/internal/salesflow"
	"github.com/algonox/aados/internal/store"
	"github.com/algonox/aados/internal/telephony"
	"github.com/algonox/aados/internal/ttscache"
)

// persistTimeout bounds the background transcript write for one turn.
const persistTimeout = 10 * time.Second

// Server wires the handlers over their collaborators. All fields are
// read-only after construction.
type Server struct {
	store    store.Store
	engine   *engine.Engine
	detector *salesflow.Detector
	hub      *broadcast.Hub
	verifier *telephony.Validator
	scorer   *quality.Scorer
	audio    *ttscache.Cache
	health   *health.Handler
	metrics  *observe.Metrics
	breakers func() []resilience.BreakerStatus

	publicBase string
	sayVoice   string
}

// Option is a functional option for NewServer.
type Option func(*Server)

// WithHub wires the dashboard broadcast hub.
func WithHub(h *broadcast.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithValidator wires webhook signature validation. Nil skips validation.
func WithValidator(v *telephony.Validator) Option {
	return func(s *Server) { s.verifier = v }
}

// WithScorer wires the quality scorer behind the operator metrics endpoint.
func WithScorer(sc *quality.Scorer) Option {
	return func(s *Server) { s.scorer = sc }
}

// WithAudioCache wires the TTS disk cache served on the audio endpoint.
func WithAudioCache(c *ttscache.Cache) Option {
	return func(s *Server) { s.audio = c }
}

// WithHealth wires the liveness and readiness handlers.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics wires the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithBreakers wires the provider circuit-breaker snapshot behind the
// operator breaker endpoint.
func WithBreakers(fn func() []resilience.BreakerStatus) Option {
	return func(s *Server) { s.breakers = fn }
}

// WithPublicBaseURL sets the externally reachable base URL used to build
// the audio Play URLs handed to the carrier.
func WithPublicBaseURL(base string) Option {
	return func(s *Server) { s.publicBase = base }
}

// WithSayVoice sets the carrier-native voice used in Say fallbacks.
func WithSayVoice(voice string) Option {
	return func(s *Server) { s.sayVoice = voice }
}

// NewServer builds the handler set over st and eng.
func NewServer(st store.Store, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		store:    st,
		engine:   eng,
		detector: salesflow.NewDetector(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the route table. The returned engine is an http.Handler;
// the caller layers the tracing middleware around it.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/webhook/:call_id", s.handleFirstContact)
	r.POST("/webhook/:call_id/turn", s.handleTurn)
	r.POST("/webhook/:call_id/status", s.handleStatus)
	r.POST("/webhook/:call_id/recording", s.handleRecording)

	// gin cannot mix a static segment with a wildcard at the same position,
	// so /calls/quality/metrics rides the :call_id wildcard and the handler
	// checks the segment.
	r.GET("/calls/:call_id/metrics", s.handleQualityMetrics)
	r.GET("/calls/:call_id/transcript", s.handleTranscript)
	r.GET("/calls/:call_id/tts/:filename", s.handleAudio)

	r.GET("/providers/breakers", s.handleBreakers)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.health != nil {
		r.GET("/healthz", gin.WrapF(s.health.Healthz))
		r.GET("/readyz", gin.WrapF(s.health.Readyz))
	}
	if s.hub != nil {
		r.GET("/ws", s.handleWS)
	}
	return r
}

// publish sends a broadcast message when a hub is wired. Never blocks.
func (s *Server) publish(msgType string, data any) {
	if s.hub != nil {
		s.hub.Publish(msgType, data)
	}
}

// callState converts the routing snapshot into its call-row form.
func callState(snap salesflow.Snapshot) *store.CallState {
	return &store.CallState{
		StateID:        snap.StateID,
		StateTurns:     snap.StateTurns,
		StateQuestions: snap.StateQuestions,
		TechIssues:     snap.TechIssues,
		Objections:     snap.Objections,
		ReturnStateID:  snap.ReturnStateID,
	}
}

// persistTurn writes the turn's transcript delta and sales-machine snapshot
// on a fresh background context, isolated from the webhook request
// lifecycle. A nil snapshot leaves the persisted state untouched.
func (s *Server) persistTurn(callID string, st *store.CallState, delta string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if delta != "" {
		if err := s.store.AppendTranscript(ctx, callID, delta); err != nil {
			slog.Error("transcript append failed",
				slog.String("call_id", callID),
				slog.Any("error", err))
		}
	}
	if st != nil {
		if err := s.store.SetCallState(ctx, callID, *st); err != nil {
			slog.Error("state persist failed",
				slog.String("call_id", callID),
				slog.Any("error", err))
		}
	}
}

// finalizeCall denormalizes the finished call's transcript into the
// transcripts row. Runs in the background after a terminal status.
func (s *Server) finalizeCall(callID string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		slog.Error("finalize: call load failed",
			slog.String("call_id", callID),
			slog.Any("error", err))
		return
	}
	if err := s.store.UpsertTranscript(ctx, callID, call.FullTranscript); err != nil {
		slog.Error("finalize: transcript upsert failed",
			slog.String("call_id", callID),
			slog.Any("error", err))
	}
}

// audioURL builds the Play URL for a cached audio file, or "" when the turn
// has no audio and the carrier should speak the text natively.
func (s *Server) audioURL(callID, fileName string) string {
	if fileName == "" {
		return ""
	}
	return s.publicBase + "/calls/" + callID + "/tts/" + fileName
}

func xmlReply(c *gin.Context, markup string) {
	c.Data(http.StatusOK, "application/xml", []byte(markup))
}
