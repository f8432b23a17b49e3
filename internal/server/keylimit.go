package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/battlecalc/internal/config"
)

// KeyLimiter locks out client IPs that keep sending wrong access keys.
// Each lockout doubles the previous one, up to the configured maximum.
type KeyLimiter struct {
	mu          sync.Mutex
	failures    map[string]*keyFailures
	maxAttempts int
	lockout     time.Duration
	maxLockout  time.Duration
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

type keyFailures struct {
	count       int
	lockouts    int
	lockedUntil time.Time
}

// NewKeyLimiter creates a limiter and starts its cleanup loop. Call Stop
// when done.
func NewKeyLimiter(cfg config.RateLimitConfig) *KeyLimiter {
	kl := &KeyLimiter{
		failures:    make(map[string]*keyFailures),
		maxAttempts: cfg.MaxAttempts,
		lockout:     time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout:  time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	if kl.maxAttempts <= 0 {
		kl.maxAttempts = 5
	}
	if kl.lockout <= 0 {
		kl.lockout = 30 * time.Second
	}
	if kl.maxLockout < kl.lockout {
		kl.maxLockout = kl.lockout
	}
	go kl.cleanupLoop(5 * time.Minute)
	return kl
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (kl *KeyLimiter) Stop() {
	kl.stopOnce.Do(func() { close(kl.stop) })
}

// Locked reports whether ip is locked out and for how much longer.
func (kl *KeyLimiter) Locked(ip string) (bool, time.Duration) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if f, ok := kl.failures[ip]; ok {
		if left := f.lockedUntil.Sub(kl.now()); left > 0 {
			return true, left
		}
	}
	return false, 0
}

// Fail records a wrong key from ip. It reports whether ip is now locked out
// and for how long.
func (kl *KeyLimiter) Fail(ip string) (bool, time.Duration) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	f, ok := kl.failures[ip]
	if !ok {
		f = &keyFailures{}
		kl.failures[ip] = f
	}
	if left := f.lockedUntil.Sub(now); left > 0 {
		return true, left
	}

	f.count++
	if f.count < kl.maxAttempts {
		return false, 0
	}
	f.count = 0
	f.lockouts++
	d := kl.lockoutFor(f.lockouts)
	f.lockedUntil = now.Add(d)
	return true, d
}

// lockoutFor is the duration of the n-th lockout.
func (kl *KeyLimiter) lockoutFor(n int) time.Duration {
	d := kl.lockout
	for i := 1; i < n; i++ {
		if d >= kl.maxLockout/2 {
			return kl.maxLockout
		}
		d *= 2
	}
	return min(d, kl.maxLockout)
}

// Succeed forgets the failures of ip.
func (kl *KeyLimiter) Succeed(ip string) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	delete(kl.failures, ip)
}

// Attempts returns the failures of ip since its last lockout.
func (kl *KeyLimiter) Attempts(ip string) int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	if f, ok := kl.failures[ip]; ok {
		return f.count
	}
	return 0
}

func (kl *KeyLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-kl.stop:
			return
		case <-ticker.C:
			kl.cleanup()
		}
	}
}

// cleanup drops entries unlocked for at least ten minutes with no new
// failures.
func (kl *KeyLimiter) cleanup() {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	cutoff := kl.now().Add(-10 * time.Minute)
	for ip, f := range kl.failures {
		if f.count == 0 && f.lockedUntil.Before(cutoff) {
			delete(kl.failures, ip)
		}
	}
}
