// Package ride composes the realtime core for one live session: channel
// manager, event router, location tracker, camera controller, route scene
// and banner dispatcher, all explicitly constructed and owned here. There is
// no process-wide singleton; the session's lifetime is Start to Close.
package ride

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glidecab/glidecab/internal/camera"
	"github.com/glidecab/glidecab/internal/config"
	"github.com/glidecab/glidecab/internal/events"
	"github.com/glidecab/glidecab/internal/geo"
	"github.com/glidecab/glidecab/internal/notify"
	"github.com/glidecab/glidecab/internal/realtime"
	"github.com/glidecab/glidecab/internal/route"
	"github.com/glidecab/glidecab/internal/tracking"
)

// SessionConfig holds everything a session needs from the outside world.
type SessionConfig struct {
	// App is the loaded application configuration.
	App config.AppConfig
	// Surface is the map surface's camera command sink.
	Surface camera.Sink
	// Archiver, if set, receives every notification for the history screen.
	Archiver notify.Archiver
	// Dialer overrides the websocket dialer; tests inject fakes.
	Dialer realtime.Dialer
	// Logger is the structured logger.
	Logger zerolog.Logger
}

// Session is one live ride-tracking session.
type Session struct {
	log zerolog.Logger

	manager *realtime.Manager
	router  *events.Router
	tracker *tracking.Tracker
	camera  *camera.Controller
	scene   *route.Renderer
	banners *notify.Dispatcher

	renderTick time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewSession wires the core together. Nothing connects until Start.
func NewSession(cfg SessionConfig) *Session {
	log := cfg.Logger.With().Str("component", "session").Logger()
	app := cfg.App

	router := events.NewRouter(events.RouterConfig{
		LocationBuffer: app.Events.LocationBuffer,
		Logger:         cfg.Logger,
	})

	manager := realtime.NewManager(realtime.Config{
		URL:              app.Realtime.URL,
		HandshakeTimeout: ms(app.Realtime.HandshakeTimeoutMS),
		PingInterval:     ms(app.Realtime.PingIntervalMS),
		PongTimeout:      ms(app.Realtime.PongTimeoutMS),
		Backoff: realtime.BackoffConfig{
			InitialInterval: ms(app.Realtime.Backoff.InitialIntervalMS),
			MaxInterval:     ms(app.Realtime.Backoff.MaxIntervalMS),
			Multiplier:      app.Realtime.Backoff.Multiplier,
			Jitter:          app.Realtime.Backoff.Jitter,
			MaxRetries:      app.Realtime.Backoff.MaxRetries,
		},
		Dialer:    cfg.Dialer,
		Logger:    cfg.Logger,
		OnMessage: router.Dispatch,
	})

	tracker := tracking.NewTracker(tracking.Config{
		PositionDuration: ms(app.Tracking.PositionAnimationMS),
		BearingDuration:  ms(app.Tracking.BearingAnimationMS),
		StaleAfter:       ms(app.Tracking.StaleAfterMS),
	})

	cam := camera.NewController(camera.Config{
		QuietWindow:   ms(app.Camera.QuietWindowMS),
		MinZoom:       app.Camera.MinZoom,
		DefaultZoom:   app.Camera.DefaultZoom,
		FitPadding:    app.Camera.FitPadding,
		FollowHeading: app.Camera.FollowHeading,
		Logger:        cfg.Logger,
	}, cfg.Surface)

	banners := notify.NewDispatcher(notify.Config{
		BannerDuration: ms(app.Notifications.BannerDurationMS),
		Archiver:       cfg.Archiver,
		Logger:         cfg.Logger,
	})

	renderTick := ms(app.Tracking.RenderTickMS)
	if renderTick == 0 {
		renderTick = 100 * time.Millisecond
	}

	return &Session{
		log:        log,
		manager:    manager,
		router:     router,
		tracker:    tracker,
		camera:     cam,
		scene:      route.NewRenderer(),
		banners:    banners,
		renderTick: renderTick,
	}
}

// Start launches the consumer goroutines and connects the channel, blocking
// until the channel is up or the connection attempt fails terminally. After
// a terminal failure the session is back at rest: the caller can obtain a
// fresh token and call Start again.
func (s *Session) Start(ctx context.Context, token string) error {
	s.mu.Lock()
	if s.closed || s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(3)
	go s.consumeLocations(ctx)
	go s.consumeNotices(ctx)
	go s.renderLoop(ctx)

	err := s.manager.Connect(ctx, token)
	if err != nil {
		cancel()
		s.wg.Wait()
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel = nil
		}
		s.mu.Unlock()
	}
	return err
}

// Close tears the session down: disconnects, cancels every consumer, stops
// banner timers and terminates the event streams. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.manager.Disconnect()
	s.router.Close()
	s.wg.Wait()
	s.banners.Close()
	s.log.Info().Msg("session closed")
}

// Status returns the current connection status.
func (s *Session) Status() realtime.Status { return s.manager.Status() }

// OnStatus subscribes to connection transitions. Register before Start.
func (s *Session) OnStatus(fn func(realtime.Status)) { s.manager.OnStatus(fn) }

// Camera exposes the controller for gesture and zoom callbacks from the
// map surface.
func (s *Session) Camera() *camera.Controller { return s.camera }

// Scene exposes the drawable route scene.
func (s *Session) Scene() *route.Renderer { return s.scene }

// Banners exposes the notification dispatcher.
func (s *Session) Banners() *notify.Dispatcher { return s.banners }

// Chat is the lossless chat stream for the chat screen.
func (s *Session) Chat() <-chan events.ChatMessage { return s.router.Chat() }

// RideStatus is the lossless booking-status stream.
func (s *Session) RideStatus() <-chan events.RideStatusChange { return s.router.RideStatus() }

// SetJourney records pickup and dropoff: the camera fits both points until
// live poses arrive and the scene gains its endpoint markers.
func (s *Session) SetJourney(pickup, dropoff geo.LatLng) {
	s.scene.SetJourney(pickup, dropoff)
	s.camera.SetJourney(pickup, dropoff)
}

// consumeLocations feeds raw fixes into the tracker.
func (s *Session) consumeLocations(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.router.Locations():
			if !ok {
				return
			}
			at := ev.RecordedAt
			if at.IsZero() {
				at = time.Now()
			}
			s.tracker.Offer(tracking.Fix{
				Pos: geo.LatLng{Lat: ev.Lat, Lng: ev.Lng},
				At:  at,
			})
		}
	}
}

// consumeNotices feeds server notices into the banner dispatcher.
func (s *Session) consumeNotices(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-s.router.Notices():
			if !ok {
				return
			}
			s.banners.Publish(n)
		}
	}
}

// renderLoop drives the camera and the vehicle marker from interpolated
// tracker poses at the render tick.
func (s *Session) renderLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.renderTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			pose, ok := s.tracker.Pose(now)
			if !ok {
				continue
			}
			stale := s.tracker.Stale(now)
			s.scene.SetVehicle(pose)
			s.camera.ObservePose(pose, stale, now)
		}
	}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
