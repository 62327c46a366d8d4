// Package main runs a headless glidecab tracking client against the
// simulator: it maintains the realtime channel and logs the poses, camera
// commands, status changes and banners a map UI would render.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/glidecab/glidecab/internal/auth"
	"github.com/glidecab/glidecab/internal/camera"
	"github.com/glidecab/glidecab/internal/config"
	"github.com/glidecab/glidecab/internal/events"
	"github.com/glidecab/glidecab/internal/geo"
	"github.com/glidecab/glidecab/internal/realtime"
	"github.com/glidecab/glidecab/internal/ride"
	"github.com/glidecab/glidecab/internal/sim"
	"github.com/glidecab/glidecab/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// logSurface stands in for a map view: every camera command becomes a log
// line instead of an animation.
type logSurface struct {
	log zerolog.Logger
}

func (s *logSurface) MoveTo(m camera.Move) error {
	s.log.Info().
		Float64("lat", m.Target.Lat).
		Float64("lng", m.Target.Lng).
		Float64("zoom", m.Zoom).
		Float64("bearing", m.Bearing).
		Msg("camera move")
	return nil
}

func (s *logSurface) FitBounds(b geo.Bounds, paddingPx int) error {
	c := b.Center()
	s.log.Info().
		Float64("center_lat", c.Lat).
		Float64("center_lng", c.Lng).
		Int("padding_px", paddingPx).
		Msg("camera fit bounds")
	return nil
}

// logArchive keeps the notification history visible in the logs.
type logArchive struct {
	log zerolog.Logger
}

func (a *logArchive) Archive(n events.Notice) {
	a.log.Info().Str("id", n.ID).Str("title", n.Title).Msg("notice archived")
}

func main() {
	const serviceName = "glidecab-tracker"

	configPath := flag.String("config", "", "path to YAML config file")
	token := flag.String("token", "", "rider JWT (minted locally when empty)")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting tracker client")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	// Without an explicit token, mint one with the simulator's default dev
	// key so the two binaries work out of the box.
	riderToken := *token
	if riderToken == "" {
		signingKey := cfg.Simulator.JWTSigningKey
		if signingKey == "" {
			signingKey = "local-dev-signing-key-change-in-production"
		}
		tokens := auth.NewService(auth.Config{SigningKey: signingKey})
		riderToken, err = tokens.Mint("rider-demo")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to mint dev token")
		}
		log.Warn().Msg("no token given, minted one with the dev signing key")
	}

	session := ride.NewSession(ride.SessionConfig{
		App:      cfg,
		Surface:  &logSurface{log: log.With().Str("component", "surface").Logger()},
		Archiver: &logArchive{log: log.With().Str("component", "archive").Logger()},
		Dialer: &realtime.WebsocketDialer{
			HandshakeTimeout: time.Duration(cfg.Realtime.HandshakeTimeoutMS) * time.Millisecond,
			PongTimeout:      time.Duration(cfg.Realtime.PongTimeoutMS) * time.Millisecond,
		},
		Logger: log,
	})
	defer session.Close()

	session.OnStatus(func(st realtime.Status) {
		ev := log.Info()
		if st.Err != nil {
			ev = log.Warn().Err(st.Err)
		}
		ev.Str("state", st.State.String()).Int("attempt", st.Attempt).Msg("channel status")
	})

	session.Banners().OnChange(func(n *events.Notice) {
		if n == nil {
			log.Info().Msg("banner dismissed")
			return
		}
		log.Info().Str("title", n.Title).Str("message", n.Message).Msg("banner shown")
	})

	go func() {
		for msg := range session.Chat() {
			log.Info().Str("sender", msg.Sender).Str("body", msg.Body).Msg("chat message")
		}
	}()
	go func() {
		for change := range session.RideStatus() {
			log.Info().
				Str("previous", string(change.Previous)).
				Str("current", string(change.Current)).
				Msg("ride status")
		}
	}()

	if err := session.Start(ctx, riderToken); err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("tracker stopped")
			return
		}
		log.Fatal().Err(err).Msg("failed to connect")
	}

	// Frame the demo trip until the first pose arrives.
	demo := sim.DefaultRoute()
	session.SetJourney(demo[0], demo[len(demo)-1])

	<-ctx.Done()
	log.Info().Msg("tracker stopped")
}
