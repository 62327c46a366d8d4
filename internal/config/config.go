// Package config loads and validates the application configuration.
// Timing values are plain milliseconds in YAML; components convert them to
// durations when wiring. Every tunable the realtime core uses lives here —
// backoff policy, stale timeout, quiet window — none are hardcoded.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure.
type AppConfig struct {
	Realtime      RealtimeConfig     `yaml:"realtime"`
	Tracking      TrackingConfig     `yaml:"tracking"`
	Camera        CameraConfig       `yaml:"camera"`
	Notifications NotificationConfig `yaml:"notifications"`
	Events        EventsConfig       `yaml:"events"`
	Simulator     SimulatorConfig    `yaml:"simulator"`
	Telemetry     TelemetryConfig    `yaml:"telemetry"`
}

// RealtimeConfig tunes the persistent-channel manager.
type RealtimeConfig struct {
	URL                string        `yaml:"url" validate:"omitempty,uri"`
	HandshakeTimeoutMS int           `yaml:"handshakeTimeoutMS" validate:"gte=0"`
	PingIntervalMS     int           `yaml:"pingIntervalMS" validate:"gte=0"`
	PongTimeoutMS      int           `yaml:"pongTimeoutMS" validate:"gte=0"`
	Backoff            BackoffConfig `yaml:"backoff"`
}

// BackoffConfig is the reconnection policy.
type BackoffConfig struct {
	InitialIntervalMS int     `yaml:"initialIntervalMS" validate:"gte=0"`
	MaxIntervalMS     int     `yaml:"maxIntervalMS" validate:"gte=0"`
	Multiplier        float64 `yaml:"multiplier" validate:"gte=0"`
	Jitter            float64 `yaml:"jitter" validate:"gte=0,lte=1"`
	// MaxRetries bounds attempts per outage; 0 retries indefinitely.
	MaxRetries uint64 `yaml:"maxRetries"`
}

// TrackingConfig tunes pose interpolation.
type TrackingConfig struct {
	PositionAnimationMS int `yaml:"positionAnimationMS" validate:"gte=0"`
	BearingAnimationMS  int `yaml:"bearingAnimationMS" validate:"gte=0"`
	StaleAfterMS        int `yaml:"staleAfterMS" validate:"gte=0"`
	RenderTickMS        int `yaml:"renderTickMS" validate:"gte=0"`
}

// CameraConfig tunes the autopilot.
type CameraConfig struct {
	QuietWindowMS int     `yaml:"quietWindowMS" validate:"gte=0"`
	MinZoom       float64 `yaml:"minZoom" validate:"gte=0"`
	DefaultZoom   float64 `yaml:"defaultZoom" validate:"gte=0"`
	FitPadding    int     `yaml:"fitPadding" validate:"gte=0"`
	FollowHeading bool    `yaml:"followHeading"`
}

// NotificationConfig tunes banners.
type NotificationConfig struct {
	BannerDurationMS int `yaml:"bannerDurationMS" validate:"gte=0"`
}

// EventsConfig tunes the event router.
type EventsConfig struct {
	LocationBuffer int `yaml:"locationBuffer" validate:"gte=0"`
}

// SimulatorConfig configures the development ride simulator.
type SimulatorConfig struct {
	Port               int     `yaml:"port" validate:"gte=0,lte=65535"`
	JWTSigningKey      string  `yaml:"jwtSigningKey"`
	RideID             string  `yaml:"rideId"`
	RoutePolyline      string  `yaml:"routePolyline"`
	SpeedKMH           float64 `yaml:"speedKMH" validate:"gte=0"`
	UpdateIntervalMS   int     `yaml:"updateIntervalMS" validate:"gte=0"`
	RateLimitPerMinute int     `yaml:"rateLimitPerMinute" validate:"gte=0"`
}

// TelemetryConfig configures traces and metrics export. Disabled by
// default; when enabled, both signals go to the OTLP endpoint over gRPC.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint" validate:"omitempty,hostname_port"`
	Environment  string `yaml:"environment"`
}

// Default returns the configuration used when no file overrides it.
func Default() AppConfig {
	return AppConfig{
		Realtime: RealtimeConfig{
			URL:                "ws://localhost:8090/ws",
			HandshakeTimeoutMS: 10000,
			PingIntervalMS:     30000,
			PongTimeoutMS:      60000,
			Backoff: BackoffConfig{
				InitialIntervalMS: 500,
				MaxIntervalMS:     30000,
				Multiplier:        1.8,
				Jitter:            0.4,
				MaxRetries:        0,
			},
		},
		Tracking: TrackingConfig{
			PositionAnimationMS: 1000,
			BearingAnimationMS:  800,
			StaleAfterMS:        15000,
			RenderTickMS:        100,
		},
		Camera: CameraConfig{
			QuietWindowMS: 3000,
			MinZoom:       12,
			DefaultZoom:   16,
			FitPadding:    80,
		},
		Notifications: NotificationConfig{
			BannerDurationMS: 4000,
		},
		Events: EventsConfig{
			LocationBuffer: 8,
		},
		Simulator: SimulatorConfig{
			Port:   8090,
			RideID: "ride-demo",
			// RoutePolyline empty: the simulator falls back to its
			// built-in demo route.
			SpeedKMH:           30,
			UpdateIntervalMS:   2000,
			RateLimitPerMinute: 120,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			Environment:  "dev",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// An empty path returns the defaults unchanged.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
