// Package notify surfaces transient success and error messages to the user.
// At most one notification is visible; a new one preempts the old one.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/splitwiser-client/internal/metrics"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3 * time.Second

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one message shown to the user.
type Notification struct {
	Message string
	Kind    Kind
	ShownAt time.Time
}

// Listener is called whenever the visible notification changes. visible is
// false when the notification auto-hides.
type Listener func(n Notification, visible bool)

type timer interface {
	Stop() bool
}

// Channel is a fire-and-forget notification surface. It is safe for concurrent use.
type Channel struct {
	ttl      time.Duration
	logger   *slog.Logger
	listener Listener

	// afterFunc is time.AfterFunc outside tests.
	afterFunc func(d time.Duration, f func()) timer

	mu      sync.Mutex
	current *Notification
	seq     uint64
	timer   timer
}

// Option configures a Channel.
type Option func(*Channel)

// WithListener registers the function that renders notification changes.
func WithListener(l Listener) Option {
	return func(c *Channel) { c.listener = l }
}

// WithLogger sets the logger notifications are mirrored to.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}

// New creates a channel whose notifications hide after ttl (DefaultTTL if ttl <= 0).
func New(ttl time.Duration, opts ...Option) *Channel {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Channel{
		ttl:    ttl,
		logger: slog.Default(),
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify replaces any visible notification and restarts the hide window.
func (c *Channel) Notify(message string, kind Kind) {
	n := Notification{Message: message, Kind: kind, ShownAt: time.Now()}

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.current = &n
	c.timer = c.afterFunc(c.ttl, func() { c.expire(seq) })
	c.mu.Unlock()

	metrics.Notifications.WithLabelValues(string(kind)).Inc()
	if kind == KindError {
		c.logger.Warn("Notification", "kind", kind, "message", message)
	} else {
		c.logger.Info("Notification", "kind", kind, "message", message)
	}
	if c.listener != nil {
		c.listener(n, true)
	}
}

// Current returns the visible notification, if any.
func (c *Channel) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

// Close stops the pending hide timer.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// expire hides the notification shown as seq, unless a newer one replaced it.
func (c *Channel) expire(seq uint64) {
	c.mu.Lock()
	if seq != c.seq || c.current == nil {
		c.mu.Unlock()
		return
	}
	n := *c.current
	c.current = nil
	c.timer = nil
	c.mu.Unlock()

	if c.listener != nil {
		c.listener(n, false)
	}
}
