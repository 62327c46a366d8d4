package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a single established channel. The Manager is its only user.
type Conn interface {
	// ReadMessage blocks until the next inbound frame or a transport error.
	ReadMessage() ([]byte, error)
	// Ping sends a keepalive probe.
	Ping() error
	Close() error
}

// Dialer establishes authenticated connections. Tests inject fakes; the
// production implementation is WebsocketDialer.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Conn, error)
}

// Handshake frame types exchanged after the websocket upgrade.
const (
	frameAuth      = "auth"
	frameAuthOK    = "auth_ok"
	frameAuthError = "auth_error"
)

type authFrame struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// WebsocketDialer dials the backend over websocket and performs the JSON
// auth handshake: client sends {type:auth, token}, server answers auth_ok
// or auth_error.
type WebsocketDialer struct {
	// HandshakeTimeout bounds the dial plus auth exchange.
	HandshakeTimeout time.Duration
	// PongTimeout is the read deadline extended on every pong.
	PongTimeout time.Duration
}

func (d *WebsocketDialer) Dial(ctx context.Context, url, token string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	pongTimeout := d.PongTimeout
	if pongTimeout == 0 {
		pongTimeout = 60 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if err := ws.SetWriteDeadline(deadline); err != nil {
		ws.Close()
		return nil, err
	}
	if err := ws.WriteJSON(authFrame{Type: frameAuth, Token: token}); err != nil {
		ws.Close()
		return nil, err
	}

	if err := ws.SetReadDeadline(deadline); err != nil {
		ws.Close()
		return nil, err
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return nil, err
	}
	// Only an explicit auth_error means the token was rejected. A garbled
	// reply is a transport problem and stays retryable.
	var reply authFrame
	if err := json.Unmarshal(data, &reply); err != nil {
		ws.Close()
		return nil, fmt.Errorf("malformed handshake reply: %w", err)
	}
	switch reply.Type {
	case frameAuthOK:
	case frameAuthError:
		ws.Close()
		return nil, &AuthError{Reason: reply.Reason}
	default:
		ws.Close()
		return nil, fmt.Errorf("unexpected handshake reply type %q", reply.Type)
	}

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	if err := ws.SetReadDeadline(time.Now().Add(pongTimeout)); err != nil {
		ws.Close()
		return nil, err
	}

	return &wsConn{ws: ws, writeTimeout: timeout}, nil
}

// wsConn wraps a gorilla connection. Writes (pings only; the client never
// sends application frames after the handshake) are serialised by writeMu.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
