package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gatherline/server/internal/api/problem"
	"github.com/gatherline/server/internal/config"
	"github.com/gatherline/server/internal/metrics"
)

// RateLimiter is a fixed-window counter per client key. A window lasts
// one minute from the client's first request in it; once the counter
// passes the ceiling, requests are rejected until the window rolls
// over. Rejected, never queued. State is in-process only.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow

	enabled bool
	limit   int
	trusted []string
	stop    chan struct{}
}

type rateWindow struct {
	start time.Time
	count int
}

const rateWindowLength = time.Minute

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	l := &RateLimiter{
		windows: make(map[string]*rateWindow),
		enabled: cfg.Enabled && cfg.PerMinute > 0,
		limit:   cfg.PerMinute,
		trusted: cfg.TrustedProxyCIDRs,
		stop:    make(chan struct{}),
	}
	if l.enabled {
		go l.sweepLoop()
	}
	return l
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || !l.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			next.ServeHTTP(w, r)
			return
		}

		key, keyType := l.clientKey(r)
		if !l.allow(key) {
			metrics.RateLimitRejections.WithLabelValues(keyType).Inc()
			w.Header().Set("Retry-After", "60")
			problem.Write(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow counts the request against the client's current window,
// opening a fresh one when the stored window has expired.
func (l *RateLimiter) allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	win, ok := l.windows[key]
	if !ok || now.Sub(win.start) > rateWindowLength {
		win = &rateWindow{start: now}
		l.windows[key] = win
	}
	win.count++
	return win.count <= l.limit
}

// clientKey prefers the authenticated identity so one user cannot
// multiply their quota across addresses, and falls back to the network
// origin for anonymous traffic.
func (l *RateLimiter) clientKey(r *http.Request) (key, keyType string) {
	if viewer, ok := ViewerFrom(r.Context()); ok && viewer.Authenticated() {
		return "user_" + viewer.UserID, "user"
	}
	return "ip_" + clientIP(r, l.trusted), "ip"
}

func (l *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *RateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, win := range l.windows {
		if now.Sub(win.start) > 2*rateWindowLength {
			delete(l.windows, key)
		}
	}
}

// Stop ends the background sweep.
func (l *RateLimiter) Stop() {
	if l != nil && l.enabled {
		close(l.stop)
	}
}

// clientIP resolves the caller's address. Forwarding headers are only
// believed when the direct peer is a configured trusted proxy.
func clientIP(r *http.Request, trustedCIDRs []string) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trustedCIDRs) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trustedCIDRs []string) bool {
	if len(trustedCIDRs) == 0 {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidrStr := range trustedCIDRs {
		_, cidr, err := net.ParseCIDR(cidrStr)
		if err != nil {
			continue
		}
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}
