package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// sweepEvery bounds how often the visitor map is scanned for stale
	// entries; idleEvict is how long a client may be silent before its
	// limiter is dropped.
	sweepEvery = time.Minute
	idleEvict  = 3 * time.Minute
)

// RateLimit returns middleware that limits each client IP to perMinute
// requests, with a small burst allowance. Stale per-IP limiters are evicted
// lazily during request handling, so the limiter holds no goroutines.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	l := &ipLimiter{
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute / 4,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
	if l.burst < 1 {
		l.burst = 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
				ip = realIP
			}

			if !l.allow(ip) {
				w.Header().Set("Retry-After", "60")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded","code":"RATE002"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ipLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	visitors  map[string]*visitor
	lastSweep time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) >= sweepEvery {
		l.sweep(now)
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// sweep drops limiters idle past the eviction window. Caller holds mu.
func (l *ipLimiter) sweep(now time.Time) {
	l.lastSweep = now
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > idleEvict {
			delete(l.visitors, ip)
		}
	}
}
