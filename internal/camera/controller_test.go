package camera_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidecab/glidecab/internal/camera"
	"github.com/glidecab/glidecab/internal/geo"
	"github.com/glidecab/glidecab/internal/tracking"
)

type recordingSink struct {
	mu      sync.Mutex
	moves   []camera.Move
	fits    []geo.Bounds
	moveErr error
}

func (s *recordingSink) MoveTo(m camera.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moveErr != nil {
		return s.moveErr
	}
	s.moves = append(s.moves, m)
	return nil
}

func (s *recordingSink) FitBounds(b geo.Bounds, paddingPx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fits = append(s.fits, b)
	return nil
}

func (s *recordingSink) moveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.moves)
}

func (s *recordingSink) lastMove() camera.Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moves[len(s.moves)-1]
}

func (s *recordingSink) setMoveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moveErr = err
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func pose(lat, lng float64) tracking.Pose {
	return tracking.Pose{Pos: geo.LatLng{Lat: lat, Lng: lng}}
}

func newTestController(sink camera.Sink) *camera.Controller {
	return camera.NewController(camera.Config{
		QuietWindow: 3 * time.Second,
		MinZoom:     12,
		DefaultZoom: 16,
	}, sink)
}

func TestAutoFollow_IssuesMovesPerPose(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)

	c.ObservePose(pose(40.0, -73.0), false, t0)
	c.ObservePose(pose(40.001, -73.0), false, t0.Add(time.Second))

	require.Equal(t, 2, sink.moveCount())
	last := sink.lastMove()
	assert.Equal(t, geo.LatLng{Lat: 40.001, Lng: -73.0}, last.Target)
	assert.Equal(t, 16.0, last.Zoom, "default zoom until the user zooms")
	assert.Zero(t, last.Bearing, "north-up unless follow-heading is enabled")
	assert.True(t, last.Animated)
}

func TestGesture_SilencesAutopilotUntilQuietWindow(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)

	c.GestureStarted(t0)
	assert.Equal(t, camera.ModeUserControlled, c.Mode(), "gesture yields synchronously")

	// Poses keep arriving while the user explores: zero autopilot moves,
	// even long after the gesture started, as long as it is still active.
	c.ObservePose(pose(40.0, -73.0), false, t0.Add(time.Second))
	c.ObservePose(pose(40.001, -73.0), false, t0.Add(10*time.Second))
	assert.Zero(t, sink.moveCount())

	c.GestureEnded(t0.Add(10 * time.Second))

	// Still inside the quiet window.
	c.ObservePose(pose(40.002, -73.0), false, t0.Add(12*time.Second))
	assert.Zero(t, sink.moveCount())
	assert.Equal(t, camera.ModeUserControlled, c.Mode())

	// Quiet window expired and the pose is fresh: follow resumes.
	c.ObservePose(pose(40.003, -73.0), false, t0.Add(13*time.Second))
	assert.Equal(t, camera.ModeAutoFollow, c.Mode())
	require.Equal(t, 1, sink.moveCount())
	assert.Equal(t, geo.LatLng{Lat: 40.003, Lng: -73.0}, sink.lastMove().Target)
}

func TestQuietWindow_DoesNotResumeOnStalePose(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)

	c.GestureStarted(t0)
	c.GestureEnded(t0)

	// Quiet long enough, but the target is stale: stay user-controlled.
	c.ObservePose(pose(40.0, -73.0), true, t0.Add(time.Minute))
	assert.Equal(t, camera.ModeUserControlled, c.Mode())
	assert.Zero(t, sink.moveCount())

	// A fresh pose after the quiet window flips back.
	c.ObservePose(pose(40.0, -73.0), false, t0.Add(time.Minute))
	assert.Equal(t, camera.ModeAutoFollow, c.Mode())
	assert.Equal(t, 1, sink.moveCount())
}

func TestStaleMidFollow_HoldsCamera(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)

	c.ObservePose(pose(40.0, -73.0), false, t0)
	require.Equal(t, 1, sink.moveCount())

	// The target goes stale: camera holds, no oscillation.
	c.ObservePose(pose(40.0, -73.0), true, t0.Add(20*time.Second))
	c.ObservePose(pose(40.0, -73.0), true, t0.Add(21*time.Second))
	assert.Equal(t, 1, sink.moveCount())
	assert.Equal(t, camera.ModeAutoFollow, c.Mode(), "staleness is not a mode change")

	// Fresh poses resume transparently.
	c.ObservePose(pose(40.005, -73.0), false, t0.Add(22*time.Second))
	assert.Equal(t, 2, sink.moveCount())
}

func TestFollowZoom_PreservesManualZoomClamped(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)

	c.ZoomChanged(17.5)
	c.ObservePose(pose(40.0, -73.0), false, t0)
	assert.Equal(t, 17.5, sink.lastMove().Zoom)

	// Zoomed out beyond the sane minimum: clamp.
	c.ZoomChanged(8)
	c.ObservePose(pose(40.0, -73.0), false, t0.Add(time.Second))
	assert.Equal(t, 12.0, sink.lastMove().Zoom)
}

func TestSetJourney_FitsBoundsUntilFirstPose(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)

	pickup := geo.LatLng{Lat: 40.0, Lng: -73.0}
	dropoff := geo.LatLng{Lat: 40.05, Lng: -73.02}
	c.SetJourney(pickup, dropoff)

	require.Len(t, sink.fits, 1)
	assert.Equal(t, geo.BoundsOf(pickup, dropoff), sink.fits[0])
	assert.Zero(t, sink.moveCount())

	// After the first real pose, journeys no longer refit.
	c.ObservePose(pose(40.01, -73.0), false, t0)
	c.SetJourney(pickup, dropoff)
	assert.Len(t, sink.fits, 1)
}

func TestMoveErrors_SwallowedAndRetried(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)

	sink.setMoveErr(errors.New("surface not ready"))
	c.ObservePose(pose(40.0, -73.0), false, t0)
	assert.Zero(t, sink.moveCount())

	// The next pose retries as if nothing happened.
	sink.setMoveErr(nil)
	c.ObservePose(pose(40.001, -73.0), false, t0.Add(time.Second))
	assert.Equal(t, 1, sink.moveCount())
}

func TestFollowHeading_UsesPoseBearing(t *testing.T) {
	sink := &recordingSink{}
	c := camera.NewController(camera.Config{FollowHeading: true}, sink)

	c.ObservePose(tracking.Pose{Pos: geo.LatLng{Lat: 40, Lng: -73}, Bearing: 135}, false, t0)
	require.Equal(t, 1, sink.moveCount())
	assert.Equal(t, 135.0, sink.lastMove().Bearing)
}
