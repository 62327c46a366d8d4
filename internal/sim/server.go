package sim

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/glidecab/glidecab/internal/auth"
)

// Handshake frame types mirrored from the client transport: after the
// upgrade the client sends {type:auth, token} and the server answers
// auth_ok or auth_error.
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

const (
	defaultAuthTimeout = 10 * time.Second
	// readWait must exceed the client ping interval; the deadline is
	// extended on every ping.
	readWait = 90 * time.Second
)

// ServerConfig wires the websocket endpoint.
type ServerConfig struct {
	Tokens             *auth.Service
	Hub                *Hub
	RateLimitPerMinute int
	// HandshakeTimeout bounds the auth exchange after the upgrade.
	// Default: 10s.
	HandshakeTimeout time.Duration
	Logger           zerolog.Logger
}

// Server exposes the simulator over HTTP: a health endpoint and the
// authenticated websocket channel.
type Server struct {
	tokens      *auth.Service
	hub         *Hub
	rate        int
	authTimeout time.Duration
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewServer builds the HTTP surface around a hub.
func NewServer(cfg ServerConfig) *Server {
	rate := cfg.RateLimitPerMinute
	if rate <= 0 {
		rate = 120
	}
	authTimeout := cfg.HandshakeTimeout
	if authTimeout <= 0 {
		authTimeout = defaultAuthTimeout
	}
	return &Server{
		tokens:      cfg.Tokens,
		hub:         cfg.Hub,
		rate:        rate,
		authTimeout: authTimeout,
		log:    cfg.Logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local development tool: any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(httprate.LimitByIP(s.rate, time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	claims, err := s.authenticate(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("handshake rejected")
		conn.Close()
		return
	}
	s.log.Info().Str("rider_id", claims.RiderID).Msg("rider authenticated")

	c := newClient(conn)
	s.hub.add(c)
	defer s.hub.remove(c)

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.authTimeout))
	})

	// Clients send no application frames after the handshake; the read
	// loop only notices pings, closes and transport errors.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) authenticate(conn *websocket.Conn) (*auth.Claims, error) {
	deadline := time.Now().Add(s.authTimeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)

	var frame authFrame
	if err := conn.ReadJSON(&frame); err != nil {
		return nil, err
	}
	if frame.Type != frameAuth {
		conn.WriteJSON(authFrame{Type: frameAuthError, Reason: "expected auth frame"})
		return nil, auth.ErrTokenInvalid
	}

	claims, err := s.tokens.Verify(frame.Token)
	if err != nil {
		conn.WriteJSON(authFrame{Type: frameAuthError, Reason: err.Error()})
		return nil, err
	}

	if err := conn.WriteJSON(authFrame{Type: frameAuthOK}); err != nil {
		return nil, err
	}
	// The handshake deadline must not outlive the handshake: the write pump
	// sets its own per-frame deadline.
	conn.SetWriteDeadline(time.Time{})
	return claims, nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
