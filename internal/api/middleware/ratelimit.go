package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dom/jober-auth/internal/api/respond"
	"golang.org/x/time/rate"
)

// RateLimiter enforces per-client throttling.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	window  time.Duration
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter for the provided requests-per-minute
// budget. A non-positive budget returns nil, which admits everything.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	limit := rate.Limit(float64(requestsPerMinute) / 60.0)
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   limit,
		burst:   burst,
		window:  5 * time.Minute,
		clients: make(map[string]*clientLimiter),
	}
}

func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.getLimiter(clientIP(r)).Allow() {
			respond.Message(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	l.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	l.cleanupLocked(now)
	return limiter
}

func (l *RateLimiter) cleanupLocked(now time.Time) {
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.window {
			delete(l.clients, key)
		}
	}
}

// clientIP strips the port from RemoteAddr, which chi's RealIP has already
// rewritten from proxy headers when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
