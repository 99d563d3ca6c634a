package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 10 * 1024 * 1024 // large audio recordings
)

// Distinguished close codes sent to the candidate's client.
const (
	CloseInvalidSession     = 4001
	CloseSessionNotFound    = 4002
	CloseNoQuestions        = 4003
	CloseAudioRequired      = 4004
	CloseInterviewCompleted = 4005
	CloseReplyTimeout       = 4006
)

// ErrClosed is returned once the connection has gone away.
var ErrClosed = errors.New("websocket connection closed")

type FrameKind int

const (
	TextFrame FrameKind = iota
	BinaryFrame
)

// Frame is one inbound message from the client.
type Frame struct {
	Kind FrameKind
	Data []byte
}

type outbound struct {
	messageType int
	data        []byte
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	SessionID string
	Mode      string

	send    chan outbound
	inbound chan Frame
	done    chan struct{}
	closing chan struct{}

	closeOnce sync.Once
	doneOnce  sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "session_id", client.SessionID, "mode", client.Mode)

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client)
			h.mu.Unlock()
			slog.Info("Client unregistered", "session_id", client.SessionID, "mode", client.Mode)
		}
	}
}

// Stopped is closed once Run returns.
func (h *Hub) Stopped() <-chan struct{} {
	return h.stopped
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient wraps conn and starts its pumps. The caller owns the returned
// client until Close is called or the connection drops.
func (h *Hub) RegisterClient(conn *websocket.Conn, sessionID, mode string) *Client {
	client := newClient(h, conn, sessionID, mode)
	select {
	case h.register <- client:
	case <-h.stopped:
	}

	go client.ReadPump()
	go client.WritePump()
	return client
}

func newClient(h *Hub, conn *websocket.Conn, sessionID, mode string) *Client {
	return &Client{
		Hub:       h,
		Conn:      conn,
		SessionID: sessionID,
		Mode:      mode,
		send:      make(chan outbound, 16),
		inbound:   make(chan Frame, 16),
		done:      make(chan struct{}),
		closing:   make(chan struct{}),
	}
}

// ReadPump forwards frames to Receive and closes the inbound stream on disconnect
func (c *Client) ReadPump() {
	defer func() {
		close(c.inbound)
		c.markDone()
		if c.Hub != nil {
			select {
			case c.Hub.unregister <- c:
			case <-c.Hub.stopped:
			}
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err, "session_id", c.SessionID)
			}
			return
		}

		frame := Frame{Kind: TextFrame, Data: data}
		if messageType == websocket.BinaryMessage {
			frame.Kind = BinaryFrame
		}

		select {
		case c.inbound <- frame:
		case <-c.done:
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.markDone()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(msg.messageType, msg.data); err != nil {
				slog.Error("WebSocket write error", "error", err, "session_id", c.SessionID)
				return
			}
			if msg.messageType == websocket.CloseMessage {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Send queues a JSON event.
func (c *Client) Send(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, outbound{messageType: websocket.TextMessage, data: data})
}

// SendBinary queues a binary frame, used for synthesized audio.
func (c *Client) SendBinary(ctx context.Context, data []byte) error {
	return c.enqueue(ctx, outbound{messageType: websocket.BinaryMessage, data: data})
}

func (c *Client) enqueue(ctx context.Context, msg outbound) error {
	select {
	case <-c.closing:
		return ErrClosed
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next frame. It returns ErrClosed after a disconnect
// and the context's error when ctx ends first.
func (c *Client) Receive(ctx context.Context) (Frame, error) {
	select {
	case frame, ok := <-c.inbound:
		if !ok {
			return Frame{}, ErrClosed
		}
		return frame, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Close sends a close frame with the given code and waits briefly for the
// write pump to flush it.
func (c *Client) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		msg := outbound{
			messageType: websocket.CloseMessage,
			data:        websocket.FormatCloseMessage(code, reason),
		}
		select {
		case c.send <- msg:
		case <-c.done:
			err = ErrClosed
		}
		close(c.closing)

		select {
		case <-c.done:
		case <-time.After(writeWait):
			c.Conn.Close()
		}
	})
	return err
}

// Done is closed when either pump has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
