package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func serveClients(t *testing.T, hub *Hub, handle func(c *Client)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade() error = %v", err)
			return
		}
		handle(hub.RegisterClient(conn, "session-1", "text"))
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestClientRoundTrip(t *testing.T) {
	hub := startHub(t)
	url := serveClients(t, hub, func(c *Client) {
		ctx := context.Background()
		frame, err := c.Receive(ctx)
		if err != nil {
			t.Errorf("Receive() error = %v", err)
			return
		}
		c.Send(ctx, map[string]interface{}{"echo": string(frame.Data), "binary": frame.Kind == BinaryFrame})
		c.SendBinary(ctx, []byte{0x01, 0x02})
		c.Close(CloseNoQuestions, "bye")
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("audio")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	var reply struct {
		Echo   string `json:"echo"`
		Binary bool   `json:"binary"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if reply.Echo != "audio" || !reply.Binary {
		t.Errorf("reply = %+v", reply)
	}

	kind, data, err := conn.ReadMessage()
	if err != nil || kind != websocket.BinaryMessage || len(data) != 2 {
		t.Errorf("binary frame = %d, %v, %v", kind, data, err)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, CloseNoQuestions) {
		t.Errorf("close = %v, want code %d", err, CloseNoQuestions)
	}
}

func TestClientDisconnect(t *testing.T) {
	hub := startHub(t)
	result := make(chan error, 1)
	url := serveClients(t, hub, func(c *Client) {
		_, err := c.Receive(context.Background())
		result <- err
		if sendErr := c.Send(context.Background(), map[string]string{"type": "late"}); sendErr == nil {
			select {
			case <-c.Done():
			case <-time.After(time.Second):
				t.Error("client not done after disconnect")
			}
		}
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for hub.Count() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", hub.Count())
	}
	conn.Close()

	select {
	case err := <-result:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Receive() error = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Receive() did not return after disconnect")
	}

	deadline = time.Now().Add(time.Second)
	for hub.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Count() != 0 {
		t.Errorf("Count() = %d after disconnect, want 0", hub.Count())
	}
}

func TestReceiveHonorsContext(t *testing.T) {
	hub := startHub(t)
	result := make(chan error, 1)
	url := serveClients(t, hub, func(c *Client) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := c.Receive(ctx)
		result <- err
		c.Close(websocket.CloseNormalClosure, "")
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	select {
	case err := <-result:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Receive() error = %v, want DeadlineExceeded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Receive() ignored its context")
	}
}

func TestHubStopped(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()

	select {
	case <-hub.Stopped():
	case <-time.After(time.Second):
		t.Fatal("Stopped() not closed after Run returned")
	}
}
