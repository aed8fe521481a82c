// Package broadcast fans call lifecycle events out to dashboard clients over
// WebSocket.
//
// Publish never blocks the caller: each subscriber owns a bounded outbound
// queue drained by its own writer goroutine, and a full queue drops the
// message with a log event rather than stalling a call's critical path. The
// hub pings every subscriber periodically to keep NAT paths open.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Message types emitted by the hub.
const (
	TypeConnected        = "connected"
	TypeDisconnected     = "disconnected"
	TypeCallInitiated    = "call_initiated"
	TypeCallInProgress   = "call_in_progress"
	TypeCallStatus       = "call_status"
	TypeTranscriptUpdate = "call_transcript_update"
	TypeRecordingReady   = "recording_ready"
	TypePing             = "ping"
	TypePong             = "pong"
)

// Message is the wire format for every hub event.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptDelta is the payload of a call_transcript_update message.
type TranscriptDelta struct {
	CallID string `json:"call_id"`
	Delta  string `json:"delta"`
}

// StatusUpdate is the payload of call lifecycle messages.
type StatusUpdate struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

const (
	// DefaultQueueSize bounds each subscriber's outbound queue.
	DefaultQueueSize = 32

	// DefaultWriteTimeout bounds a single WebSocket write.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultPingInterval is how often the hub pings subscribers.
	DefaultPingInterval = 20 * time.Second
)

// Hub is the broadcast fan-out. Safe for concurrent use.
type Hub struct {
	queueSize    int
	writeTimeout time.Duration
	pingInterval time.Duration
	clock        func() time.Time

	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool

	stop     chan struct{}
	stopOnce sync.Once
}

type subscriber struct {
	id     string
	conn   *websocket.Conn
	queue  chan []byte
	cancel context.CancelFunc
}

// Option customises a [Hub].
type Option func(*Hub)

// WithQueueSize overrides the per-subscriber queue bound.
func WithQueueSize(n int) Option {
	return func(h *Hub) { h.queueSize = n }
}

// WithWriteTimeout overrides the per-write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) { h.writeTimeout = d }
}

// WithPingInterval overrides the keepalive ping interval.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) { h.pingInterval = d }
}

// NewHub creates a Hub and starts its keepalive loop.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		queueSize:    DefaultQueueSize,
		writeTimeout: DefaultWriteTimeout,
		pingInterval: DefaultPingInterval,
		clock:        time.Now,
		subs:         make(map[string]*subscriber),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.pingLoop()
	return h
}

// Publish sends one typed message to every subscriber. Never blocks: a
// subscriber whose queue is full misses this message.
func (h *Hub) Publish(msgType string, data any) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: h.clock().UTC(),
	})
	if err != nil {
		slog.Warn("dropping unmarshalable broadcast message",
			slog.String("type", msgType), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.queue <- payload:
		default:
			slog.Warn("dropping broadcast message, subscriber queue full",
				slog.String("subscriber", s.id), slog.String("type", msgType))
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// HandleConnection registers an upgraded WebSocket connection and blocks
// until it closes. Called from the HTTP handler after [websocket.Accept].
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	s := &subscriber{
		id:     uuid.New().String(),
		conn:   conn,
		queue:  make(chan []byte, h.queueSize),
		cancel: cancel,
	}

	if !h.register(s) {
		cancel()
		_ = conn.Close(websocket.StatusGoingAway, "hub closed")
		return
	}
	defer h.unregister(s)

	go h.writeLoop(ctx, s)

	// Greet the client so it can confirm the stream is live.
	h.enqueue(s, Message{Type: TypeConnected, Data: map[string]string{"client_id": s.id}, Timestamp: h.clock().UTC()})

	// Read loop. Clients only ever send pings; everything else is ignored.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid dashboard message",
				slog.String("subscriber", s.id), slog.Any("error", err))
			continue
		}
		if msg.Type == TypePing {
			h.enqueue(s, Message{Type: TypePong, Timestamp: h.clock().UTC()})
		}
	}
}

// Close disconnects all subscribers and stops the keepalive loop.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })

	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.cancel()
		_ = s.conn.Close(websocket.StatusGoingAway, "shutting down")
	}
}

func (h *Hub) register(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s.id] = s
	return true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s.id)
	h.mu.Unlock()

	s.cancel()
	_ = s.conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) enqueue(s *subscriber, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case s.queue <- payload:
	default:
		slog.Warn("dropping message, subscriber queue full",
			slog.String("subscriber", s.id), slog.String("type", msg.Type))
	}
}

// writeLoop drains the subscriber's queue. A failed or timed-out write
// cancels the subscriber's context, which also terminates its read loop.
func (h *Hub) writeLoop(ctx context.Context, s *subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.queue:
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := s.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				slog.Warn("dashboard write failed, dropping subscriber",
					slog.String("subscriber", s.id), slog.Any("error", err))
				s.cancel()
				return
			}
		}
	}
}

func (h *Hub) pingLoop() {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.Publish(TypePing, nil)
		}
	}
}
