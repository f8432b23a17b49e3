package flood

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(cfg Config) (*Tracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(cfg)
	tr.now = clock.now
	return tr, clock
}

func TestTracker_AllowsUpToLimit(t *testing.T) {
	tr, _ := newTestTracker(Config{MaxMessages: 3, WindowSeconds: 10})

	for i := 0; i < 3; i++ {
		if r := tr.Check(); !r.Allowed {
			t.Fatalf("message %d blocked", i+1)
		}
	}
	r := tr.Check()
	if r.Allowed {
		t.Fatal("fourth message allowed")
	}
	if r.Wait != 10*time.Second {
		t.Errorf("Wait = %v, want 10s", r.Wait)
	}
}

func TestTracker_WindowSlides(t *testing.T) {
	tr, clock := newTestTracker(Config{MaxMessages: 2, WindowSeconds: 10})

	tr.Check()
	clock.advance(4 * time.Second)
	tr.Check()

	clock.advance(5 * time.Second)
	if r := tr.Check(); r.Allowed {
		t.Fatal("allowed before the first message left the window")
	} else if r.Wait != time.Second {
		t.Errorf("Wait = %v, want 1s", r.Wait)
	}

	clock.advance(2 * time.Second)
	if r := tr.Check(); !r.Allowed {
		t.Error("blocked after the first message left the window")
	}
	if r := tr.Check(); r.Allowed {
		t.Error("allowed a third message inside the window")
	}
}

func TestTracker_BlockedNotRecorded(t *testing.T) {
	tr, clock := newTestTracker(Config{MaxMessages: 1, WindowSeconds: 5})

	tr.Check()
	for i := 0; i < 10; i++ {
		clock.advance(400 * time.Millisecond)
		tr.Check()
	}
	clock.advance(2 * time.Second)
	if r := tr.Check(); !r.Allowed {
		t.Error("blocked messages extended the window")
	}
}

func TestTracker_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero messages", Config{MaxMessages: 0, WindowSeconds: 10}},
		{"zero window", Config{MaxMessages: 1, WindowSeconds: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTestTracker(tt.cfg)
			for i := 0; i < 100; i++ {
				if r := tr.Check(); !r.Allowed {
					t.Fatalf("message %d blocked with flood control off", i+1)
				}
			}
		})
	}
}

func TestTracker_Reset(t *testing.T) {
	tr, _ := newTestTracker(Config{MaxMessages: 1, WindowSeconds: 60})
	tr.Check()
	tr.Reset()
	if r := tr.Check(); !r.Allowed {
		t.Error("blocked after Reset")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxMessages != 30 || cfg.Window() != 10*time.Second {
		t.Errorf("DefaultConfig = %+v", cfg)
	}
}
