// Package tracking turns the sparse stream of driver location fixes into a
// smooth, continuously interpolated pose for rendering. Interpolation is a
// pure function of time, driven by whatever scheduler renders the map; the
// package has no dependency on any UI frame callback.
package tracking

import (
	"sync"
	"time"

	"github.com/glidecab/glidecab/internal/geo"
)

// Fix is a raw position report. Immutable once created; the tracker retains
// only the previous and current fix, never a history.
type Fix struct {
	Pos geo.LatLng
	At  time.Time
}

// Pose is the rendered state: interpolated position plus bearing in
// [0, 360). Distinct from the raw Fix it is animating toward.
type Pose struct {
	Pos     geo.LatLng
	Bearing float64
}

// Config holds tracker tuning. All durations are configuration; the
// defaults match typical ride-tracking UIs.
type Config struct {
	// PositionDuration is how long a position animation runs. Default: 1s.
	PositionDuration time.Duration
	// BearingDuration is how long a bearing rotation runs. Default: 800ms.
	BearingDuration time.Duration
	// StaleAfter marks the pose stale when no fix arrived within the
	// window. Default: 15s.
	StaleAfter time.Duration
	// Now is the clock, injectable for tests. Default: time.Now.
	Now func() time.Time
}

// Tracker interpolates between location fixes. Offer is the only mutator;
// Pose and Stale are safe to call concurrently from render loops.
type Tracker struct {
	cfg Config

	mu         sync.Mutex
	hasFix     bool
	last       Fix
	receivedAt time.Time

	start     Pose
	target    Pose
	startedAt time.Time
}

// NewTracker creates a tracker with no position yet.
func NewTracker(cfg Config) *Tracker {
	if cfg.PositionDuration == 0 {
		cfg.PositionDuration = time.Second
	}
	if cfg.BearingDuration == 0 {
		cfg.BearingDuration = 800 * time.Millisecond
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{cfg: cfg}
}

// Offer feeds the tracker a new fix.
//
// The first fix snaps the pose directly with a neutral bearing, since there
// is no prior direction. Every later fix computes the forward azimuth from
// the previous fix and retargets the in-flight animation: the new animation
// starts from the currently rendered pose, so the tracker always moves
// toward the most recent fix and never works through a backlog.
func (t *Tracker) Offer(fix Fix) {
	now := t.cfg.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasFix {
		pose := Pose{Pos: fix.Pos, Bearing: 0}
		t.hasFix = true
		t.last = fix
		t.receivedAt = now
		t.start = pose
		t.target = pose
		t.startedAt = now
		return
	}

	current := t.poseAt(now)

	bearing := t.target.Bearing
	if fix.Pos != t.last.Pos {
		bearing = geo.Bearing(t.last.Pos, fix.Pos)
	}

	t.last = fix
	t.receivedAt = now
	t.start = current
	t.target = Pose{Pos: fix.Pos, Bearing: bearing}
	t.startedAt = now
}

// Pose returns the interpolated pose at the given instant. The second
// return is false until the first fix arrives.
func (t *Tracker) Pose(at time.Time) (Pose, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasFix {
		return Pose{}, false
	}
	return t.poseAt(at), true
}

// Stale reports whether the pose is too old to trust for active decisions.
// The tracker never extrapolates past the last known pose; it surfaces
// staleness so the camera can stop following a dead target.
func (t *Tracker) Stale(at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasFix {
		return true
	}
	return at.Sub(t.receivedAt) > t.cfg.StaleAfter
}

// LastFix returns the most recent raw fix.
func (t *Tracker) LastFix() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasFix
}

func (t *Tracker) poseAt(at time.Time) Pose {
	elapsed := at.Sub(t.startedAt)
	return Pose{
		Pos:     geo.Lerp(t.start.Pos, t.target.Pos, progress(elapsed, t.cfg.PositionDuration)),
		Bearing: geo.LerpAngle(t.start.Bearing, t.target.Bearing, progress(elapsed, t.cfg.BearingDuration)),
	}
}

func progress(elapsed, duration time.Duration) float64 {
	if duration <= 0 || elapsed >= duration {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(duration)
}
