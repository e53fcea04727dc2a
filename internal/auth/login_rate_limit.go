package auth

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LoginRateLimiter throttles login attempts per client IP with a sliding
// window. It complements account lockout: lockout protects a single account,
// this protects the endpoint from spraying across many accounts.
type LoginRateLimiter struct {
	mu       sync.Mutex
	maxHits  int
	window   time.Duration
	attempts map[string][]time.Time
	maxIPs   int
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:  maxHits,
		window:   window,
		attempts: make(map[string][]time.Time),
		maxIPs:   5000,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(requestIP(r), time.Now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := make([]time.Time, 0, len(l.attempts[ip])+1)
	for _, hit := range l.attempts[ip] {
		if hit.After(threshold) {
			recent = append(recent, hit)
		}
	}

	if len(recent) >= l.maxHits {
		retryAfter := recent[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.attempts[ip] = recent
		return false, retryAfter
	}

	l.attempts[ip] = append(recent, now)

	// Bounded memory: evict idle IPs once the map grows past the cap.
	if len(l.attempts) > l.maxIPs {
		for key, hits := range l.attempts {
			if len(hits) == 0 || hits[len(hits)-1].Before(threshold) {
				delete(l.attempts, key)
			}
		}
	}

	return true, 0
}

func requestIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
