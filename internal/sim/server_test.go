package sim_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidecab/glidecab/internal/auth"
	"github.com/glidecab/glidecab/internal/events"
	"github.com/glidecab/glidecab/internal/realtime"
	"github.com/glidecab/glidecab/internal/sim"
)

func newTestServer(t *testing.T) (*httptest.Server, *sim.Hub, *auth.Service) {
	t.Helper()
	tokens := auth.NewService(auth.Config{SigningKey: "test-secret"})
	hub := sim.NewHub(zerolog.Nop())
	srv := sim.NewServer(sim.ServerConfig{
		Tokens: tokens,
		Hub:    hub,
		Logger: zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	t.Cleanup(hub.Close)
	return ts, hub, tokens
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestServer_Healthz(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_HandshakeAndBroadcast(t *testing.T) {
	ts, hub, tokens := newTestServer(t)

	token, err := tokens.Mint("rider-1")
	require.NoError(t, err)

	dialer := &realtime.WebsocketDialer{HandshakeTimeout: 5 * time.Second}
	conn, err := dialer.Dial(context.Background(), wsURL(ts), token)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Broadcast(events.TypeChatMessage, events.ChatMessage{
		ID: "m1", RideID: "ride-demo", Sender: "driver", Body: "hello",
	})

	data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env events.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, events.TypeChatMessage, env.Type)
	var msg events.ChatMessage
	require.NoError(t, json.Unmarshal(env.Payload, &msg))
	assert.Equal(t, "hello", msg.Body)
}

func TestServer_RejectsBadToken(t *testing.T) {
	ts, hub, _ := newTestServer(t)

	dialer := &realtime.WebsocketDialer{HandshakeTimeout: 5 * time.Second}
	_, err := dialer.Dial(context.Background(), wsURL(ts), "not-a-token")
	require.Error(t, err)

	var authErr *realtime.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.NotEmpty(t, authErr.Reason)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestServer_BroadcastsOutliveHandshakeDeadline(t *testing.T) {
	tokens := auth.NewService(auth.Config{SigningKey: "test-secret"})
	hub := sim.NewHub(zerolog.Nop())
	srv := sim.NewServer(sim.ServerConfig{
		Tokens: tokens,
		Hub:    hub,
		// Short handshake window so the test can outlast it quickly.
		HandshakeTimeout: 200 * time.Millisecond,
		Logger:           zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	t.Cleanup(hub.Close)

	token, err := tokens.Mint("rider-1")
	require.NoError(t, err)
	dialer := &realtime.WebsocketDialer{HandshakeTimeout: 5 * time.Second}
	conn, err := dialer.Dial(context.Background(), wsURL(ts), token)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	// A frame well past the handshake deadline must still be delivered; the
	// deadline covers the auth exchange only.
	time.Sleep(500 * time.Millisecond)
	hub.Broadcast(events.TypeChatMessage, events.ChatMessage{ID: "late", Body: "still here"})

	data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env events.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	var msg events.ChatMessage
	require.NoError(t, json.Unmarshal(env.Payload, &msg))
	assert.Equal(t, "late", msg.ID)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestServer_DisconnectRemovesClient(t *testing.T) {
	ts, hub, tokens := newTestServer(t)

	token, err := tokens.Mint("rider-1")
	require.NoError(t, err)

	dialer := &realtime.WebsocketDialer{HandshakeTimeout: 5 * time.Second}
	conn, err := dialer.Dial(context.Background(), wsURL(ts), token)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}
