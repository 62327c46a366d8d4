package sim

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/glidecab/glidecab/internal/events"
	"github.com/glidecab/glidecab/internal/geo"
)

// Broadcaster receives the frames the scripted driver produces. *Hub
// satisfies it.
type Broadcaster interface {
	Broadcast(typ string, payload any)
}

// DriverConfig describes one scripted trip.
type DriverConfig struct {
	RideID         string
	Route          geo.Path
	SpeedKMH       float64
	UpdateInterval time.Duration
	Logger         zerolog.Logger
}

// DefaultRoute is the demo trip used when no route polyline is configured:
// a short drive through central Amsterdam.
func DefaultRoute() geo.Path {
	return geo.Path{
		{Lat: 52.3731, Lng: 4.8926},
		{Lat: 52.3742, Lng: 4.8958},
		{Lat: 52.3763, Lng: 4.8997},
		{Lat: 52.3781, Lng: 4.9003},
		{Lat: 52.3792, Lng: 4.9041},
		{Lat: 52.3779, Lng: 4.9086},
	}
}

// Driver replays a trip along a fixed route, emitting location updates at a
// steady cadence plus ride status changes, chat and notifications at the
// scripted moments.
type Driver struct {
	cfg DriverConfig
	out Broadcaster
	log zerolog.Logger
}

// NewDriver builds a driver for one trip. Zero config fields fall back to
// the demo route at 30 km/h with 2s updates.
func NewDriver(cfg DriverConfig, out Broadcaster) *Driver {
	if cfg.RideID == "" {
		cfg.RideID = "ride-demo"
	}
	if len(cfg.Route) < 2 {
		cfg.Route = DefaultRoute()
	}
	if cfg.SpeedKMH <= 0 {
		cfg.SpeedKMH = 30
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 2 * time.Second
	}
	return &Driver{
		cfg: cfg,
		out: out,
		log: cfg.Logger.With().Str("component", "driver").Str("ride_id", cfg.RideID).Logger(),
	}
}

// Run plays the trip once and returns when the ride completes or the
// context is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	total := d.cfg.Route.Length()
	step := d.cfg.SpeedKMH / 3.6 * d.cfg.UpdateInterval.Seconds()

	d.log.Info().
		Float64("route_m", total).
		Float64("speed_kmh", d.cfg.SpeedKMH).
		Msg("trip started")

	d.status(events.RideRequested, events.RideDriverAssigned, "Your driver accepted the ride")
	d.notify("Driver assigned", "Your driver is on the way.", "info")
	d.chat("On my way!")

	d.status(events.RideDriverAssigned, events.RideInProgress, "")

	travelled := 0.0
	ticker := time.NewTicker(d.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		pos := d.cfg.Route.PointAt(travelled)
		d.out.Broadcast(events.TypeLocationUpdate, events.LocationUpdate{
			RideID:     d.cfg.RideID,
			Lat:        pos.Lat,
			Lng:        pos.Lng,
			RecordedAt: time.Now().UTC(),
		})

		if travelled >= total {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			travelled += step
			if travelled > total {
				travelled = total
			}
		}
	}

	d.status(events.RideInProgress, events.RideCompleted, "You have arrived")
	d.notify("Ride completed", "Thanks for riding with us.", "success")
	d.log.Info().Msg("trip completed")
	return nil
}

func (d *Driver) status(prev, cur events.RideState, msg string) {
	d.out.Broadcast(events.TypeRideStatus, events.RideStatusChange{
		RideID:    d.cfg.RideID,
		Previous:  prev,
		Current:   cur,
		Message:   msg,
		ChangedAt: time.Now().UTC(),
	})
}

func (d *Driver) chat(text string) {
	d.out.Broadcast(events.TypeChatMessage, events.ChatMessage{
		ID:     uuid.NewString(),
		RideID: d.cfg.RideID,
		Sender: "driver",
		Body:   text,
		SentAt: time.Now().UTC(),
	})
}

func (d *Driver) notify(title, body, typ string) {
	d.out.Broadcast(events.TypeNotification, events.Notice{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   body,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	})
}
