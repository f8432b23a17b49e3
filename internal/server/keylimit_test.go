package server

import (
	"testing"
	"time"

	"github.com/lawnchairsociety/battlecalc/internal/config"
)

// newTestKeyLimiter returns a limiter on a fake clock.
func newTestKeyLimiter(t *testing.T, cfg config.RateLimitConfig) (*KeyLimiter, *time.Time) {
	t.Helper()
	kl := NewKeyLimiter(cfg)
	t.Cleanup(kl.Stop)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	kl.now = func() time.Time { return now }
	return kl, &now
}

func TestKeyLimiter_LocksAfterMaxAttempts(t *testing.T) {
	kl, _ := newTestKeyLimiter(t, config.RateLimitConfig{MaxAttempts: 3, LockoutSeconds: 30, MaxLockoutSeconds: 300})
	ip := "192.168.1.1"

	for i := 0; i < 2; i++ {
		if locked, _ := kl.Fail(ip); locked {
			t.Fatalf("failure %d should not lock", i+1)
		}
	}
	if kl.Attempts(ip) != 2 {
		t.Errorf("Attempts() = %d", kl.Attempts(ip))
	}
	locked, d := kl.Fail(ip)
	if !locked || d != 30*time.Second {
		t.Fatalf("third failure = %v, %v", locked, d)
	}
	if locked, left := kl.Locked(ip); !locked || left != 30*time.Second {
		t.Errorf("Locked() = %v, %v", locked, left)
	}
	if locked, _ := kl.Locked("192.168.1.2"); locked {
		t.Error("other IPs must not be locked")
	}
}

func TestKeyLimiter_ExpiresAndDoubles(t *testing.T) {
	kl, now := newTestKeyLimiter(t, config.RateLimitConfig{MaxAttempts: 1, LockoutSeconds: 10, MaxLockoutSeconds: 35})
	ip := "10.0.0.1"

	want := []time.Duration{10 * time.Second, 20 * time.Second, 35 * time.Second, 35 * time.Second}
	for i, w := range want {
		locked, d := kl.Fail(ip)
		if !locked || d != w {
			t.Fatalf("lockout %d = %v, %v; want %v", i+1, locked, d, w)
		}
		// Failing again while locked keeps the current lockout.
		if _, again := kl.Fail(ip); again != d {
			t.Errorf("failure while locked = %v, want %v", again, d)
		}
		*now = now.Add(d)
		if locked, _ := kl.Locked(ip); locked {
			t.Fatalf("lockout %d did not expire", i+1)
		}
	}
}

func TestKeyLimiter_SucceedClears(t *testing.T) {
	kl, _ := newTestKeyLimiter(t, config.RateLimitConfig{MaxAttempts: 3, LockoutSeconds: 1, MaxLockoutSeconds: 10})
	ip := "192.168.1.1"
	kl.Fail(ip)
	kl.Fail(ip)
	kl.Succeed(ip)
	if kl.Attempts(ip) != 0 {
		t.Errorf("Attempts() = %d after success", kl.Attempts(ip))
	}
	if locked, _ := kl.Fail(ip); locked {
		t.Error("count should restart after success")
	}
}

func TestKeyLimiter_Defaults(t *testing.T) {
	kl, _ := newTestKeyLimiter(t, config.RateLimitConfig{})
	if kl.maxAttempts != 5 || kl.lockout != 30*time.Second || kl.maxLockout != 30*time.Second {
		t.Errorf("defaults = %d, %v, %v", kl.maxAttempts, kl.lockout, kl.maxLockout)
	}
	kl.Stop()
}

func TestKeyLimiter_Cleanup(t *testing.T) {
	kl, now := newTestKeyLimiter(t, config.RateLimitConfig{MaxAttempts: 1, LockoutSeconds: 1, MaxLockoutSeconds: 1})
	kl.Fail("10.0.0.1")
	kl.Fail("10.0.0.2")

	*now = now.Add(11 * time.Minute)
	kl.cleanup()
	kl.mu.Lock()
	n := len(kl.failures)
	kl.mu.Unlock()
	if n != 0 {
		t.Errorf("%d entries left after cleanup", n)
	}
}
