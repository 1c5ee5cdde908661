// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps the number of IPs tracked at once; the least recently
	// seen are evicted during cleanup. Default: 10000.
	MaxVisitors int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return sieveerr.Errorf(sieveerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return sieveerr.Errorf(sieveerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)", c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return sieveerr.Errorf(sieveerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type visitors struct {
	mu   sync.Mutex
	cfg  RateLimitConfig
	byIP map[string]*visitor
}

func (v *visitors) allow(ip string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	vis, ok := v.byIP[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.Burst)}
		v.byIP[ip] = vis
	}
	vis.lastSeen = now
	return vis.limiter.AllowN(now, 1)
}

// cleanup drops idle visitors and enforces MaxVisitors.
func (v *visitors) cleanup(now time.Time) {
	const staleThreshold = 10 * time.Minute

	v.mu.Lock()
	defer v.mu.Unlock()

	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(v.byIP))
	for ip, vis := range v.byIP {
		if now.Sub(vis.lastSeen) > staleThreshold {
			delete(v.byIP, ip)
			continue
		}
		entries = append(entries, entry{ip: ip, lastSeen: vis.lastSeen})
	}

	if v.cfg.MaxVisitors > 0 && len(entries) > v.cfg.MaxVisitors {
		slices.SortFunc(entries, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
		toEvict := len(entries) - v.cfg.MaxVisitors
		for _, e := range entries[:toEvict] {
			delete(v.byIP, e.ip)
		}
		slog.Warn("rate limiter visitor map cap enforced",
			slog.Int("evicted", toEvict), slog.Int("max_visitors", v.cfg.MaxVisitors))
	}
}

// rateLimitMiddleware returns middleware that enforces per-IP token buckets.
// Returns a pass-through middleware when cfg.RequestsPerSecond is zero. The
// done channel stops the cleanup goroutine.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	vs := &visitors{cfg: cfg, byIP: make(map[string]*visitor)}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				vs.cleanup(now)
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit by IP, not by connection.
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !vs.allow(host, time.Now()) {
				slog.Warn("rate limit exceeded", slog.String("ip", host), slog.String("path", r.URL.Path))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
