package notify

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// manualTimers replaces time.AfterFunc so tests decide when windows elapse.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

// fire runs timer i as if its window had elapsed, even if it was stopped:
// a stopped time.AfterFunc may already be running when Stop is called.
func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	t := m.timers[i]
	m.mu.Unlock()
	t.f()
}

func newTestChannel(opts ...Option) (*Channel, *manualTimers) {
	timers := &manualTimers{}
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c := New(DefaultTTL, opts...)
	c.afterFunc = timers.afterFunc
	return c, timers
}

func TestNotify_ShowsAndExpires(t *testing.T) {
	c, timers := newTestChannel()

	c.Notify("Login successful!", KindSuccess)
	n, ok := c.Current()
	if !ok {
		t.Fatal("expected a visible notification")
	}
	if n.Message != "Login successful!" || n.Kind != KindSuccess {
		t.Errorf("unexpected notification: %+v", n)
	}
	if timers.timers[0].d != 3*time.Second {
		t.Errorf("expected 3s window, got %v", timers.timers[0].d)
	}

	timers.fire(0)
	if _, ok := c.Current(); ok {
		t.Error("expected notification to hide after its window")
	}
}

func TestNotify_SecondPreemptsFirst(t *testing.T) {
	c, timers := newTestChannel()

	c.Notify("first", KindSuccess)
	c.Notify("second", KindError)

	n, ok := c.Current()
	if !ok || n.Message != "second" || n.Kind != KindError {
		t.Fatalf("expected 'second' to be visible, got %+v (ok=%v)", n, ok)
	}
	if !timers.timers[0].stopped {
		t.Error("expected first window to be cancelled")
	}

	// The first window elapsing late must not hide the second notification.
	timers.fire(0)
	if n, ok := c.Current(); !ok || n.Message != "second" {
		t.Errorf("expected 'second' to stay visible, got %+v (ok=%v)", n, ok)
	}

	timers.fire(1)
	if _, ok := c.Current(); ok {
		t.Error("expected second notification to hide after its own window")
	}
}

func TestNotify_Listener(t *testing.T) {
	var events []string
	c, timers := newTestChannel(WithListener(func(n Notification, visible bool) {
		state := "hide"
		if visible {
			state = "show"
		}
		events = append(events, state+":"+n.Message)
	}))

	c.Notify("a", KindSuccess)
	c.Notify("b", KindSuccess)
	timers.fire(1)

	want := []string{"show:a", "show:b", "hide:b"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], events[i])
		}
	}
}

func TestNotify_RealTimer(t *testing.T) {
	c := New(20*time.Millisecond, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer c.Close()

	c.Notify("short lived", KindSuccess)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Current(); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("notification never expired")
}
