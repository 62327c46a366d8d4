// Package camera decides the map camera pose each tick without conflicting
// with the user: it autopilots toward the tracked driver, yields the moment
// the user touches the map, and takes over again only after the user has
// been quiet and the target is fresh.
package camera

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glidecab/glidecab/internal/geo"
	"github.com/glidecab/glidecab/internal/tracking"
)

// Mode is the camera driving mode.
type Mode int

const (
	// ModeAutoFollow tracks the moving target automatically.
	ModeAutoFollow Mode = iota
	// ModeUserControlled yields the camera entirely to user input.
	ModeUserControlled
)

func (m Mode) String() string {
	if m == ModeUserControlled {
		return "user_controlled"
	}
	return "auto_follow"
}

// Move is a camera-move command issued to the map surface.
type Move struct {
	Target   geo.LatLng
	Zoom     float64
	Bearing  float64
	Tilt     float64
	Animated bool
}

// Sink is the map surface's command channel. Errors from the surface are
// swallowed and the command retried on the next pose update; a rejected
// move is never fatal to the session.
type Sink interface {
	MoveTo(Move) error
	FitBounds(b geo.Bounds, paddingPx int) error
}

// Config holds camera tuning.
type Config struct {
	// QuietWindow is how long after the last gesture the controller waits
	// before resuming auto-follow. Default: 3s.
	QuietWindow time.Duration
	// MinZoom clamps the zoom used while following. Default: 12.
	MinZoom float64
	// DefaultZoom is used until the user zooms manually. Default: 16.
	DefaultZoom float64
	// FitPadding is the pixel padding for the initial bounds fit.
	// Default: 80.
	FitPadding int
	// FollowHeading rotates the camera to the driver's bearing instead of
	// keeping north up.
	FollowHeading bool
	// Logger is the structured logger.
	Logger zerolog.Logger
}

// Controller is the camera state machine. It is the sole mutator of camera
// state; user gestures and tracker poses are its only external triggers and
// may arrive concurrently.
type Controller struct {
	cfg  Config
	sink Sink
	log  zerolog.Logger

	mu            sync.Mutex
	mode          Mode
	gestureActive bool
	lastGestureAt time.Time
	userZoom      float64
	pickup        *geo.LatLng
	dropoff       *geo.LatLng
	sawPose       bool
}

// NewController creates a controller in AutoFollow mode driving the given
// sink.
func NewController(cfg Config, sink Sink) *Controller {
	if cfg.QuietWindow == 0 {
		cfg.QuietWindow = 3 * time.Second
	}
	if cfg.MinZoom == 0 {
		cfg.MinZoom = 12
	}
	if cfg.DefaultZoom == 0 {
		cfg.DefaultZoom = 16
	}
	if cfg.FitPadding == 0 {
		cfg.FitPadding = 80
	}
	return &Controller{
		cfg:  cfg,
		sink: sink,
		log:  cfg.Logger.With().Str("component", "camera").Logger(),
		mode: ModeAutoFollow,
	}
}

// Mode returns the current driving mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// GestureStarted must be called when the user begins any pan, pinch or
// rotate on the map surface. The controller yields synchronously: no
// autopilot command is issued from this instant until the quiet window
// expires.
func (c *Controller) GestureStarted(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModeUserControlled
	c.gestureActive = true
	c.lastGestureAt = now
}

// GestureEnded marks the end of a gesture. The quiet window starts counting
// from here.
func (c *Controller) GestureEnded(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gestureActive = false
	c.lastGestureAt = now
}

// ZoomChanged records the user's manually chosen zoom so auto-follow can
// preserve it. Last writer wins.
func (c *Controller) ZoomChanged(zoom float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userZoom = zoom
}

// SetJourney records the pickup and dropoff points. Until the first real
// pose arrives the camera fits both points with padding instead of
// following anything.
func (c *Controller) SetJourney(pickup, dropoff geo.LatLng) {
	c.mu.Lock()
	c.pickup = &pickup
	c.dropoff = &dropoff
	fit := !c.sawPose
	c.mu.Unlock()

	if !fit {
		return
	}
	if err := c.sink.FitBounds(geo.BoundsOf(pickup, dropoff), c.cfg.FitPadding); err != nil {
		c.log.Debug().Err(err).Msg("bounds fit rejected by map surface")
	}
}

// ObservePose is the per-tick entry point fed from the tracker. Depending on
// mode and staleness it either issues a camera move or deliberately does
// nothing: while UserControlled the controller stays silent, and while the
// pose is stale it holds the last camera rather than oscillating.
func (c *Controller) ObservePose(pose tracking.Pose, stale bool, now time.Time) {
	c.mu.Lock()
	c.sawPose = true

	if c.mode == ModeUserControlled {
		quiet := !c.gestureActive && now.Sub(c.lastGestureAt) >= c.cfg.QuietWindow
		if !quiet || stale {
			c.mu.Unlock()
			return
		}
		c.mode = ModeAutoFollow
		c.log.Debug().Msg("user quiet, resuming auto-follow")
	}

	if stale {
		// Hold the last camera pose; follow resumes transparently once
		// fresh poses return.
		c.mu.Unlock()
		return
	}

	move := Move{
		Target:   pose.Pos,
		Zoom:     c.followZoom(),
		Animated: true,
	}
	if c.cfg.FollowHeading {
		move.Bearing = pose.Bearing
	}
	c.mu.Unlock()

	if err := c.sink.MoveTo(move); err != nil {
		c.log.Debug().Err(err).Msg("camera move rejected, retrying next pose")
	}
}

// followZoom preserves the user's last manual zoom, clamped to a sane
// minimum. Callers hold c.mu.
func (c *Controller) followZoom() float64 {
	zoom := c.userZoom
	if zoom == 0 {
		zoom = c.cfg.DefaultZoom
	}
	if zoom < c.cfg.MinZoom {
		zoom = c.cfg.MinZoom
	}
	return zoom
}
