// Package main runs the glidecab ride simulator: a websocket backend that
// replays a scripted driver for local development of the tracking client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/glidecab/glidecab/internal/auth"
	"github.com/glidecab/glidecab/internal/config"
	"github.com/glidecab/glidecab/internal/geo"
	"github.com/glidecab/glidecab/internal/sim"
	"github.com/glidecab/glidecab/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "glidecab-simulator"

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting ride simulator")

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

	signingKey := cfg.Simulator.JWTSigningKey
	if signingKey == "" {
		signingKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	tokens := auth.NewService(auth.Config{SigningKey: signingKey})

	route := sim.DefaultRoute()
	if cfg.Simulator.RoutePolyline != "" {
		route = geo.DecodePolyline(cfg.Simulator.RoutePolyline)
		if len(route) < 2 {
			log.Fatal().Msg("route polyline decodes to fewer than two points")
		}
	}

	hub := sim.NewHub(log)
	driver := sim.NewDriver(sim.DriverConfig{
		RideID:         cfg.Simulator.RideID,
		Route:          route,
		SpeedKMH:       cfg.Simulator.SpeedKMH,
		UpdateInterval: time.Duration(cfg.Simulator.UpdateIntervalMS) * time.Millisecond,
		Logger:         log,
	}, hub)

	srv := sim.NewServer(sim.ServerConfig{
		Tokens:             tokens,
		Hub:                hub,
		RateLimitPerMinute: cfg.Simulator.RateLimitPerMinute,
		Logger:             log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Simulator.Port),
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("simulator listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Print a ready-to-use token so a tracker client can connect.
	if token, err := tokens.Mint("rider-demo"); err == nil {
		log.Info().Str("token", token).Msg("demo rider token")
	}

	// Replay the trip in a loop until shutdown.
	go func() {
		for {
			if err := driver.Run(ctx); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down simulator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	hub.Close()

	log.Info().Msg("simulator stopped")
}
