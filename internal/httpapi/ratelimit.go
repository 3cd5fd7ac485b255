package httpapi

import (
	"net/http"
	"sync"
	"time"
)

// rateLimiter is a sliding-window counter keyed by caller-chosen strings
// (IP, email). Entries for a key are pruned on each check.
type rateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string][]time.Time
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	return &rateLimiter{
		window:  window,
		max:     max,
		entries: make(map[string][]time.Time),
	}
}

func (l *rateLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	ts := l.entries[key]

	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	ts = kept
	if len(ts) >= l.max {
		l.entries[key] = ts
		return false
	}

	ts = append(ts, now)
	l.entries[key] = ts
	return true
}

// limitRequests applies the per-IP API-wide limit.
func (a *api) limitRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.apiLimiter.Allow("ip:"+clientIP(r), time.Now()) {
			WriteFail(w, http.StatusTooManyRequests, "too many requests from this IP, please try again in an hour")
			return
		}
		next.ServeHTTP(w, r)
	})
}
