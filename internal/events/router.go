package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Drop reasons recorded on the dropped-frames counter.
const (
	dropReasonUnknown      = "unknown_type"
	dropReasonMalformed    = "malformed"
	dropReasonBackpressure = "backpressure"
)

// RouterConfig holds configuration for the event router.
type RouterConfig struct {
	// LocationBuffer bounds the location stream. When a consumer lags, the
	// oldest buffered update is shed; stale positions are worse than lost
	// ones. Default: 8.
	LocationBuffer int
	// Logger is the structured logger.
	Logger zerolog.Logger
	// Meter records drop counters. Defaults to the global meter.
	Meter metric.Meter
}

// Router fans inbound frames out into independent typed streams.
//
// Per-type ordering equals arrival order. The location stream is lossy under
// load (bounded, drop-oldest); chat, ride-status and notification streams
// are lossless and buffer without bound so a slow consumer never blocks the
// connection and never loses an event.
type Router struct {
	log zerolog.Logger

	locations  chan LocationUpdate
	chat       *fifo[ChatMessage]
	rideStatus *fifo[RideStatusChange]
	notices    *fifo[Notice]

	dropped atomic.Uint64
	shed    atomic.Uint64
	counter metric.Int64Counter

	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool
	once    sync.Once
}

// NewRouter creates a router. Wire Dispatch as the connection manager's
// OnMessage sink and consume the typed streams from session goroutines.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.LocationBuffer <= 0 {
		cfg.LocationBuffer = 8
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter("glidecab.events")
	}

	r := &Router{
		log:       cfg.Logger.With().Str("component", "events").Logger(),
		locations: make(chan LocationUpdate, cfg.LocationBuffer),
		done:      make(chan struct{}),
	}
	r.chat = newFIFO[ChatMessage](r.done)
	r.rideStatus = newFIFO[RideStatusChange](r.done)
	r.notices = newFIFO[Notice](r.done)

	counter, err := meter.Int64Counter("glidecab.events.dropped",
		metric.WithDescription("Frames dropped by the event router, by reason"))
	if err != nil {
		r.log.Warn().Err(err).Msg("drop counter unavailable")
	} else {
		r.counter = counter
	}
	return r
}

// Locations is the driver-position stream. Lossy under load.
func (r *Router) Locations() <-chan LocationUpdate { return r.locations }

// Chat is the lossless chat-message stream.
func (r *Router) Chat() <-chan ChatMessage { return r.chat.out }

// RideStatus is the lossless ride-status stream.
func (r *Router) RideStatus() <-chan RideStatusChange { return r.rideStatus.out }

// Notices is the lossless generic-notification stream.
func (r *Router) Notices() <-chan Notice { return r.notices.out }

// Dropped returns how many frames were discarded as unknown or malformed.
func (r *Router) Dropped() uint64 { return r.dropped.Load() }

// Shed returns how many location updates were discarded under backpressure.
func (r *Router) Shed() uint64 { return r.shed.Load() }

// Dispatch routes one inbound frame. It never panics and never blocks on a
// slow consumer; bad frames are counted and discarded.
func (r *Router) Dispatch(frame []byte) {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return
	}

	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		r.drop(dropReasonMalformed)
		return
	}

	switch env.Type {
	case TypeLocationUpdate:
		var ev LocationUpdate
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			r.drop(dropReasonMalformed)
			return
		}
		r.offerLocation(ev)
	case TypeChatMessage:
		var ev ChatMessage
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			r.drop(dropReasonMalformed)
			return
		}
		r.chat.push(ev)
	case TypeRideStatus:
		var ev RideStatusChange
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			r.drop(dropReasonMalformed)
			return
		}
		r.rideStatus.push(ev)
	case TypeNotification:
		var ev Notice
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			r.drop(dropReasonMalformed)
			return
		}
		r.notices.push(ev)
	default:
		r.log.Debug().Str("type", env.Type).Msg("ignoring unknown frame type")
		r.drop(dropReasonUnknown)
	}
}

// offerLocation enqueues a location update, shedding the oldest buffered one
// when the consumer is behind.
func (r *Router) offerLocation(ev LocationUpdate) {
	select {
	case r.locations <- ev:
		return
	default:
	}

	select {
	case <-r.locations:
		r.shed.Add(1)
		r.count(dropReasonBackpressure)
	default:
	}

	select {
	case r.locations <- ev:
	default:
		r.shed.Add(1)
		r.count(dropReasonBackpressure)
	}
}

// Close terminates all streams. Safe to call more than once and safe against
// a concurrently running Dispatch.
func (r *Router) Close() {
	r.once.Do(func() {
		r.closeMu.Lock()
		r.closed = true
		r.closeMu.Unlock()

		close(r.done)
		close(r.locations)
	})
}

func (r *Router) drop(reason string) {
	r.dropped.Add(1)
	r.count(reason)
}

func (r *Router) count(reason string) {
	if r.counter == nil {
		return
	}
	r.counter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

// fifo is an unbounded in-order queue feeding an output channel. push never
// blocks; a dedicated drain goroutine delivers to consumers.
type fifo[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
	out    chan T
	done   chan struct{}
}

func newFIFO[T any](done chan struct{}) *fifo[T] {
	q := &fifo[T]{
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		done:   done,
	}
	go q.drain()
	return q
}

func (q *fifo[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *fifo[T]) drain() {
	defer close(q.out)
	for {
		q.mu.Lock()
		var next T
		have := len(q.items) > 0
		if have {
			next = q.items[0]
			q.items = q.items[1:]
		}
		q.mu.Unlock()

		if !have {
			select {
			case <-q.signal:
				continue
			case <-q.done:
				return
			}
		}

		select {
		case q.out <- next:
		case <-q.done:
			return
		}
	}
}
