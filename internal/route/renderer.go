// Package route maintains the set of polylines and markers the map should
// draw: the committed route, an optional preview route, the journey
// endpoints and the live vehicle marker.
package route

import (
	"sync"

	"github.com/glidecab/glidecab/internal/geo"
	"github.com/glidecab/glidecab/internal/tracking"
)

// Scene is everything drawable, derived purely from the state the renderer
// was given. Snapshot returns value copies so a consumer can render without
// racing updates.
type Scene struct {
	// Active is the committed route polyline.
	Active geo.Path
	// Preview is a speculative, not-yet-committed route.
	Preview geo.Path
	// Pickup and Dropoff are the journey endpoint markers.
	Pickup  *geo.LatLng
	Dropoff *geo.LatLng
	// Vehicle is the live driver marker.
	Vehicle *tracking.Pose
}

// Renderer holds the current scene. Routes are replaced wholesale and
// atomically; partial updates are not supported, so a redraw never shows a
// half-swapped line.
type Renderer struct {
	mu    sync.RWMutex
	scene Scene
}

// NewRenderer creates an empty scene.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// SetActiveRoute replaces the committed route. The previous polyline is
// discarded entirely; nil clears it.
func (r *Renderer) SetActiveRoute(p geo.Path) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scene.Active = clonePath(p)
}

// SetPreviewRoute replaces the speculative route.
func (r *Renderer) SetPreviewRoute(p geo.Path) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scene.Preview = clonePath(p)
}

// ClearPreview removes the speculative route, leaving the committed one.
func (r *Renderer) ClearPreview() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scene.Preview = nil
}

// SetJourney places the pickup and dropoff markers.
func (r *Renderer) SetJourney(pickup, dropoff geo.LatLng) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scene.Pickup = &pickup
	r.scene.Dropoff = &dropoff
}

// SetVehicle places the live driver marker.
func (r *Renderer) SetVehicle(pose tracking.Pose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scene.Vehicle = &pose
}

// ClearVehicle removes the driver marker.
func (r *Renderer) ClearVehicle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scene.Vehicle = nil
}

// Snapshot returns a consistent copy of the current scene.
func (r *Renderer) Snapshot() Scene {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Scene{
		Active:  clonePath(r.scene.Active),
		Preview: clonePath(r.scene.Preview),
	}
	if r.scene.Pickup != nil {
		p := *r.scene.Pickup
		out.Pickup = &p
	}
	if r.scene.Dropoff != nil {
		p := *r.scene.Dropoff
		out.Dropoff = &p
	}
	if r.scene.Vehicle != nil {
		v := *r.scene.Vehicle
		out.Vehicle = &v
	}
	return out
}

func clonePath(p geo.Path) geo.Path {
	if p == nil {
		return nil
	}
	return append(geo.Path{}, p...)
}
