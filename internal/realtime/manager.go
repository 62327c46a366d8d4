package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// BackoffConfig is the reconnection policy. All values are configuration,
// not constants: deployments tune them per network conditions.
type BackoffConfig struct {
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration
	// Multiplier is the exponential growth factor.
	Multiplier float64
	// Jitter is the randomization factor applied to each delay, 0..1.
	Jitter float64
	// MaxRetries bounds the attempts within one outage. 0 retries
	// indefinitely (bounded only by MaxInterval and cancellation).
	MaxRetries uint64
}

// DefaultBackoffConfig returns the default reconnection policy.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      1.8,
		Jitter:          0.4,
		MaxRetries:      0,
	}
}

// Config holds configuration for the connection manager.
type Config struct {
	// URL is the websocket endpoint of the ride backend.
	URL string
	// HandshakeTimeout bounds dial plus auth. Default: 10s.
	HandshakeTimeout time.Duration
	// PingInterval is the keepalive probe period. Default: 30s.
	PingInterval time.Duration
	// PongTimeout is the silence window after which the connection is
	// considered dead. Default: 60s.
	PongTimeout time.Duration
	// Backoff is the reconnection policy. Zero value means defaults.
	Backoff BackoffConfig
	// Dialer establishes connections. Defaults to a WebsocketDialer.
	Dialer Dialer
	// Logger is the structured logger for lifecycle events.
	Logger zerolog.Logger
	// OnMessage receives every inbound frame. It runs on the read pump
	// goroutine and must not block; the event router hands frames off to
	// its own buffers.
	OnMessage func([]byte)
}

// Manager owns exactly one logical persistent connection and exposes its
// health. It is the sole mutator of the connection handle and of Status;
// every other component only reads the published values.
type Manager struct {
	cfg    Config
	dialer Dialer
	log    zerolog.Logger

	mu     sync.Mutex
	status Status
	conn   Conn
	cancel context.CancelFunc
	subs   []func(Status)

	// pubMu serialises transitions so subscribers observe them in order.
	pubMu sync.Mutex
}

// NewManager creates a connection manager. The manager starts Disconnected;
// nothing happens until Connect.
func NewManager(cfg Config) *Manager {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout == 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoffConfig()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &WebsocketDialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			PongTimeout:      cfg.PongTimeout,
		}
	}
	return &Manager{
		cfg:    cfg,
		dialer: dialer,
		log:    cfg.Logger.With().Str("component", "realtime").Logger(),
		status: Status{State: StateDisconnected},
	}
}

// Status returns a snapshot of the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// OnStatus registers a subscriber invoked synchronously on every state
// transition. Subscribers must be idempotent to repeated identical states
// and must not block. Register before calling Connect.
func (m *Manager) OnStatus(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Connect establishes the channel, blocking until it is Connected or the
// attempt fails terminally. Transport failures are retried per the backoff
// policy, each publishing a Reconnecting status with an increasing attempt
// counter. Authentication failures are not retried: the manager transitions
// to Disconnected and returns an *AuthError for the caller to re-authenticate.
// Connect is a no-op when a connection is already live or being attempted.
func (m *Manager) Connect(ctx context.Context, token string) error {
	sessCtx, ok := m.beginConnect(ctx)
	if !ok {
		return nil
	}
	m.log.Info().Str("url", m.cfg.URL).Msg("connecting")

	err := m.dialLoop(sessCtx, token, 0)
	if err == nil {
		return nil
	}
	if sessCtx.Err() != nil {
		// Disconnect (or caller cancellation) already owns the teardown.
		m.settleDisconnected(Status{State: StateDisconnected})
		return sessCtx.Err()
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		m.teardown(Status{State: StateDisconnected, Err: err})
		return err
	}
	wrapped := fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
	m.teardown(Status{State: StateDisconnected, Err: wrapped})
	return wrapped
}

// Disconnect tears the channel down from any state: it cancels pending
// retry timers, stops the read pump and publishes Disconnected. Safe to
// call repeatedly.
func (m *Manager) Disconnect() {
	m.teardown(Status{State: StateDisconnected})
}

// beginConnect claims the Disconnected→Connecting transition for exactly one
// caller. The state check and the Connecting publish happen under the same
// publication lock, so two concurrent Connect calls can never both claim the
// session or start two dial loops.
func (m *Manager) beginConnect(ctx context.Context) (context.Context, bool) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	if m.status.State != StateDisconnected {
		m.mu.Unlock()
		return nil, false
	}
	sessCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	next := Status{State: StateConnecting}
	m.status = next
	subs := append([]func(Status){}, m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return sessCtx, true
}

// dialLoop dials until success or a terminal failure, publishing a
// Reconnecting status for every failed attempt. attempt carries the counter
// across the drop that triggered this loop.
func (m *Manager) dialLoop(ctx context.Context, token string, attempt int) error {
	op := func() error {
		conn, err := m.dialer.Dial(ctx, m.cfg.URL, token)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			attempt++
			m.log.Warn().Err(err).Int("attempt", attempt).Msg("dial failed")
			m.transition(Status{State: StateReconnecting, Attempt: attempt, Err: err})
			return err
		}

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()
		go m.readPump(ctx, conn, token)
		go m.pingLoop(ctx, conn)

		m.transition(Status{State: StateConnected})
		m.log.Info().Msg("channel connected")
		return nil
	}
	return backoff.Retry(op, m.newBackoff(ctx))
}

// readPump delivers inbound frames until the connection drops, then hands
// control to the reconnect loop.
func (m *Manager) readPump(ctx context.Context, conn Conn, token string) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()

			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Msg("connection dropped")
			m.transition(Status{State: StateReconnecting, Attempt: 1, Err: err})
			m.redial(ctx, token)
			return
		}
		if m.cfg.OnMessage != nil {
			m.cfg.OnMessage(data)
		}
	}
}

// redial runs the reconnect loop in the background after a drop.
func (m *Manager) redial(ctx context.Context, token string) {
	err := m.dialLoop(ctx, token, 1)
	if err == nil || ctx.Err() != nil {
		return
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		m.teardown(Status{State: StateDisconnected, Err: err})
		return
	}
	m.teardown(Status{State: StateDisconnected, Err: fmt.Errorf("%w: %v", ErrRetriesExhausted, err)})
}

// pingLoop sends keepalive probes for one connection. It exits when the
// session ends or the connection is replaced.
func (m *Manager) pingLoop(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			current := m.conn
			m.mu.Unlock()
			if current != conn {
				return
			}
			if err := conn.Ping(); err != nil {
				// The read pump will observe the failure and reconnect.
				conn.Close()
				return
			}
		}
	}
}

// teardown cancels the session and publishes the given terminal status.
func (m *Manager) teardown(final Status) {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	conn := m.conn
	m.conn = nil
	already := m.status.State == StateDisconnected && cancel == nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if already && final.Err == nil {
		return
	}
	m.transition(final)
	m.log.Info().Msg("disconnected")
}

// settleDisconnected publishes Disconnected only if no other flow already
// did, keeping cancel-after-complete idempotent.
func (m *Manager) settleDisconnected(final Status) {
	m.mu.Lock()
	already := m.status.State == StateDisconnected
	m.mu.Unlock()
	if !already {
		m.transition(final)
	}
}

func (m *Manager) transition(next Status) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	m.status = next
	subs := append([]func(Status){}, m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

func (m *Manager) newBackoff(ctx context.Context) backoff.BackOff {
	p := m.cfg.Backoff
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = p.Jitter
	bo.MaxElapsedTime = 0 // bounded via MaxRetries, not wall clock

	var b backoff.BackOff = bo
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return backoff.WithContext(b, ctx)
}
