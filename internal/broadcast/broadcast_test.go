package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func setupHub(t *testing.T, opts ...Option) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(opts...)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			t.Logf("websocket accept: %v", err)
			return
		}
		hub.HandleConnection(r.Context(), conn)
	}))

	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, server
}

func connect(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), want)
}

func TestHub_ConnectedGreeting(t *testing.T) {
	_, server := setupHub(t)
	conn := connect(t, server)

	msg := readMessage(t, conn)
	if msg.Type != TypeConnected {
		t.Errorf("first message type = %q, want %q", msg.Type, TypeConnected)
	}
	if msg.Timestamp.IsZero() {
		t.Error("greeting has zero timestamp")
	}
}

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	hub, server := setupHub(t)

	conn1 := connect(t, server)
	conn2 := connect(t, server)
	readMessage(t, conn1) // connected
	readMessage(t, conn2)
	waitForClients(t, hub, 2)

	hub.Publish(TypeTranscriptUpdate, TranscriptDelta{CallID: "c1", Delta: "USER: hello"})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		msg := readMessage(t, conn)
		if msg.Type != TypeTranscriptUpdate {
			t.Fatalf("type = %q, want %q", msg.Type, TypeTranscriptUpdate)
		}
		data, ok := msg.Data.(map[string]any)
		if !ok {
			t.Fatalf("data = %T, want object", msg.Data)
		}
		if data["call_id"] != "c1" {
			t.Errorf("call_id = %v, want c1", data["call_id"])
		}
		if data["delta"] != "USER: hello" {
			t.Errorf("delta = %v, want USER: hello", data["delta"])
		}
	}
}

func TestHub_PingGetsPong(t *testing.T) {
	_, server := setupHub(t)
	conn := connect(t, server)
	readMessage(t, conn) // connected

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	payload, _ := json.Marshal(Message{Type: TypePing})
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != TypePong {
		t.Errorf("reply type = %q, want %q", msg.Type, TypePong)
	}
}

func TestHub_KeepalivePing(t *testing.T) {
	_, server := setupHub(t, WithPingInterval(30*time.Millisecond))
	conn := connect(t, server)
	readMessage(t, conn) // connected

	msg := readMessage(t, conn)
	if msg.Type != TypePing {
		t.Errorf("keepalive type = %q, want %q", msg.Type, TypePing)
	}
}

func TestHub_DisconnectedSubscriberIsRemoved(t *testing.T) {
	hub, server := setupHub(t)
	conn := connect(t, server)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	_ = conn.Close(websocket.StatusNormalClosure, "")
	waitForClients(t, hub, 0)

	// Publishing to an empty hub must not panic or block.
	hub.Publish(TypeCallStatus, StatusUpdate{CallID: "c1", Status: "completed"})
}

func TestHub_PublishDoesNotBlockOnFullQueue(t *testing.T) {
	hub, server := setupHub(t, WithQueueSize(1))
	conn := connect(t, server)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	// Flood without reading; the queue fills and messages drop, but Publish
	// must return promptly every time.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(TypeCallInProgress, StatusUpdate{CallID: "c1", Status: "in-progress"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub, server := setupHub(t)
	conn := connect(t, server)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("Read succeeded after hub close, want connection closed")
	}
}
