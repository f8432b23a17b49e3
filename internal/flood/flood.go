// Package flood limits how fast one client may send messages.
package flood

import (
	"sync"
	"time"
)

// Config holds flood control settings. MaxMessages of 0 disables it.
type Config struct {
	MaxMessages   int `yaml:"max_messages" env:"MAX_MESSAGES"`
	WindowSeconds int `yaml:"window_seconds" env:"WINDOW_SECONDS"`
}

// DefaultConfig returns sensible defaults for flood control
func DefaultConfig() Config {
	return Config{
		MaxMessages:   30,
		WindowSeconds: 10,
	}
}

// Window is the configured sliding window.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Tracker tracks message times for a single client
type Tracker struct {
	mu           sync.Mutex
	max          int
	window       time.Duration
	messageTimes []time.Time
	now          func() time.Time
}

// NewTracker creates a tracker with the given config
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		max:          cfg.MaxMessages,
		window:       cfg.Window(),
		messageTimes: make([]time.Time, 0, max(cfg.MaxMessages, 0)),
		now:          time.Now,
	}
}

// CheckResult contains the result of a flood check
type CheckResult struct {
	Allowed bool
	Wait    time.Duration // until the next message is allowed, if blocked
}

// Check records a message and reports whether it is within the limit.
// Blocked messages are not recorded.
func (t *Tracker) Check() CheckResult {
	if t.max <= 0 || t.window <= 0 {
		return CheckResult{Allowed: true}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cleanup(now)

	if len(t.messageTimes) >= t.max {
		return CheckResult{Wait: t.messageTimes[0].Add(t.window).Sub(now)}
	}
	t.messageTimes = append(t.messageTimes, now)
	return CheckResult{Allowed: true}
}

// cleanup drops messages outside the window
func (t *Tracker) cleanup(now time.Time) {
	cutoff := now.Add(-t.window)
	kept := t.messageTimes[:0]
	for _, at := range t.messageTimes {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	t.messageTimes = kept
}

// Reset clears all tracking data
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageTimes = t.messageTimes[:0]
}
