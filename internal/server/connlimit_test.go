package server

import (
	"net/http"
	"testing"

	"github.com/lawnchairsociety/battlecalc/internal/config"
)

func TestConnLimiter_PerIPLimit(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 2, MaxTotal: 100})

	if !limiter.TryAcquire("192.168.1.1") || !limiter.TryAcquire("192.168.1.1") {
		t.Fatal("first two connections should be allowed")
	}
	if limiter.TryAcquire("192.168.1.1") {
		t.Error("third connection from same IP should be rejected")
	}
	if !limiter.TryAcquire("192.168.1.2") {
		t.Error("connection from different IP should be allowed")
	}

	limiter.Release("192.168.1.1")
	if !limiter.TryAcquire("192.168.1.1") {
		t.Error("connection should be allowed after release")
	}
}

func TestConnLimiter_TotalLimit(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 10, MaxTotal: 3})

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if !limiter.TryAcquire(ip) {
			t.Fatalf("connection from %s should be allowed", ip)
		}
	}
	if limiter.TryAcquire("10.0.0.4") {
		t.Error("fourth connection should exceed the total limit")
	}
	if total, ips := limiter.Stats(); total != 3 || ips != 3 {
		t.Errorf("Stats() = %d, %d", total, ips)
	}
}

func TestConnLimiter_Unlimited(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{})
	for i := 0; i < 1000; i++ {
		if !limiter.TryAcquire("10.0.0.1") {
			t.Fatalf("connection %d rejected with no limits", i)
		}
	}
	if limiter.Count("10.0.0.1") != 1000 {
		t.Errorf("Count() = %d", limiter.Count("10.0.0.1"))
	}
}

func TestConnLimiter_ReleaseUnknown(t *testing.T) {
	limiter := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 1, MaxTotal: 1})
	limiter.Release("10.0.0.9")
	if total, _ := limiter.Stats(); total != 0 {
		t.Errorf("releasing an unknown IP changed the total to %d", total)
	}
	limiter.TryAcquire("10.0.0.1")
	limiter.Release("10.0.0.1")
	limiter.Release("10.0.0.1")
	if total, ips := limiter.Stats(); total != 0 || ips != 0 {
		t.Errorf("Stats() after double release = %d, %d", total, ips)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		xri        string
		remoteAddr string
		want       string
	}{
		{"remote addr", "", "", "192.168.1.1:12345", "192.168.1.1"},
		{"forwarded single", "203.0.113.1", "", "10.0.0.1:80", "203.0.113.1"},
		{"forwarded chain", "203.0.113.1, 70.41.3.18, 150.172.238.178", "", "10.0.0.1:80", "203.0.113.1"},
		{"real ip", "", " 203.0.113.7 ", "10.0.0.1:80", "203.0.113.7"},
		{"empty forwarded entry", " ,1.2.3.4", "", "10.0.0.1:80", "10.0.0.1"},
		{"no port", "", "", "192.168.1.1", "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{Header: http.Header{}, RemoteAddr: tt.remoteAddr}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
