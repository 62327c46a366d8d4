// Package notify turns server-pushed notices into transient UI banners with
// at-most-one-visible semantics.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/glidecab/glidecab/internal/events"
)

// Archiver receives every published notice, visible or not, so a history
// screen can list them independently of banner lifetimes.
type Archiver interface {
	Archive(events.Notice)
}

// Config holds dispatcher tuning.
type Config struct {
	// BannerDuration is how long a banner stays up before auto-dismissal.
	// Default: 4s.
	BannerDuration time.Duration
	// Archiver, if set, receives every notice.
	Archiver Archiver
	// Logger is the structured logger.
	Logger zerolog.Logger
}

// Dispatcher owns the single visible banner. A newly published notice
// replaces the current banner rather than queueing behind it: for transient
// surfaces the latest information wins, and the full feed remains available
// through the Archiver.
type Dispatcher struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	visible  *events.Notice
	timer    *time.Timer
	onChange []func(*events.Notice)
	closed   bool
}

// NewDispatcher creates a dispatcher with no visible banner.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.BannerDuration == 0 {
		cfg.BannerDuration = 4 * time.Second
	}
	return &Dispatcher{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "notify").Logger(),
	}
}

// OnChange registers a callback invoked with the new visible banner (nil on
// dismissal). Register before publishing.
func (d *Dispatcher) OnChange(fn func(*events.Notice)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = append(d.onChange, fn)
}

// Visible returns a copy of the currently visible banner, or nil.
func (d *Dispatcher) Visible() *events.Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.visible == nil {
		return nil
	}
	n := *d.visible
	return &n
}

// Publish shows a notice as the visible banner, replacing any current one,
// and schedules its auto-dismissal. Notices without an ID are assigned one.
func (d *Dispatcher) Publish(n events.Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.visible = &n
	id := n.ID
	d.timer = time.AfterFunc(d.cfg.BannerDuration, func() { d.Dismiss(id) })
	subs := append([]func(*events.Notice){}, d.onChange...)
	shown := n
	d.mu.Unlock()

	d.log.Debug().Str("id", n.ID).Str("title", n.Title).Msg("banner shown")
	for _, fn := range subs {
		copied := shown
		fn(&copied)
	}

	if d.cfg.Archiver != nil {
		d.cfg.Archiver.Archive(n)
	}
}

// Dismiss hides the banner with the given ID. Dismissing an already
// dismissed or superseded banner is a no-op, so user dismissal and the
// auto-dismiss timer can race safely.
func (d *Dispatcher) Dismiss(id string) {
	d.mu.Lock()
	if d.visible == nil || d.visible.ID != id {
		d.mu.Unlock()
		return
	}
	d.visible = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	subs := append([]func(*events.Notice){}, d.onChange...)
	d.mu.Unlock()

	d.log.Debug().Str("id", id).Msg("banner dismissed")
	for _, fn := range subs {
		fn(nil)
	}
}

// Close cancels any pending auto-dismiss timer and drops the banner.
// Safe to call repeatedly.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.visible = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
